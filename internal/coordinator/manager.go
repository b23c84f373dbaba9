package coordinator

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/client"
	"github.com/alexchen1337/SpeakWell/internal/domain"
	"github.com/alexchen1337/SpeakWell/internal/metrics"
	"github.com/alexchen1337/SpeakWell/internal/publisher"
)

// Manager owns the set of active watches, one coordinator per audio id.
type Manager struct {
	client   client.StatusClient
	events   publisher.Publisher
	logger   *zap.Logger
	interval time.Duration

	mu      sync.Mutex
	watches map[string]*Coordinator
	closed  bool
}

// NewManager creates a watch registry.
func NewManager(c client.StatusClient, events publisher.Publisher, interval time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		client:   c,
		events:   events,
		logger:   logger,
		interval: interval,
		watches:  make(map[string]*Coordinator),
	}
}

// Watch starts tracking an audio resource. Watching an id that is already
// watched returns the existing coordinator, so the call is idempotent. If
// initialization fails the watch is not retained.
func (m *Manager) Watch(ctx context.Context, audioID string) (*Coordinator, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, domain.ErrTornDown
	}
	if existing, ok := m.watches[audioID]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	coord := New(audioID, m.client, m.events, m.interval, m.logger)
	m.watches[audioID] = coord
	m.mu.Unlock()

	metrics.WatchesActive.Inc()

	if err := coord.Initialize(ctx); err != nil {
		coord.Teardown()
		m.mu.Lock()
		delete(m.watches, audioID)
		m.mu.Unlock()
		metrics.WatchesActive.Dec()
		return nil, err
	}

	m.logger.Info("watch started", zap.String("audio_id", audioID))
	return coord, nil
}

// Get returns the coordinator for an audio id.
func (m *Manager) Get(audioID string) (*Coordinator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coord, ok := m.watches[audioID]
	if !ok {
		return nil, domain.ErrWatchNotFound
	}
	return coord, nil
}

// Unwatch tears the watch down and removes it from the registry.
func (m *Manager) Unwatch(audioID string) error {
	m.mu.Lock()
	coord, ok := m.watches[audioID]
	if ok {
		delete(m.watches, audioID)
	}
	m.mu.Unlock()

	if !ok {
		return domain.ErrWatchNotFound
	}
	coord.Teardown()
	metrics.WatchesActive.Dec()
	return nil
}

// Snapshots returns the state of every active watch, ordered by audio id.
func (m *Manager) Snapshots() []Update {
	m.mu.Lock()
	coords := make([]*Coordinator, 0, len(m.watches))
	for _, c := range m.watches {
		coords = append(coords, c)
	}
	m.mu.Unlock()

	out := make([]Update, 0, len(coords))
	for _, c := range coords {
		out = append(out, c.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AudioID < out[j].AudioID })
	return out
}

// Close tears down every watch. The manager accepts no new watches after.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	coords := make([]*Coordinator, 0, len(m.watches))
	for _, c := range m.watches {
		coords = append(coords, c)
	}
	m.watches = make(map[string]*Coordinator)
	m.mu.Unlock()

	for _, c := range coords {
		c.Teardown()
		metrics.WatchesActive.Dec()
	}
}
