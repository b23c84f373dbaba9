package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/metrics"
)

// CheckFunc performs one poll tick. It returns done=true when polling should
// stop (terminal status observed, or an unrecoverable not-found). A non-nil
// error marks the tick as transient: the poller logs it and tries again on
// the next tick. The supplied context is cancelled when the handle is
// cancelled, so an in-flight fetch is aborted and its result discarded.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Handle represents one active repeating-poll registration.
type Handle struct {
	key    string
	ctx    context.Context
	cancel context.CancelFunc
}

// Cancel stops the poll loop. It is safe to call multiple times and safe to
// call after the loop already stopped on its own.
func (h *Handle) Cancel() { h.cancel() }

// Active reports whether the handle has neither completed nor been cancelled.
func (h *Handle) Active() bool { return h.ctx.Err() == nil }

// Done is closed once the handle is cancelled or completes.
func (h *Handle) Done() <-chan struct{} { return h.ctx.Done() }

// Poller drives fixed-interval poll loops, one per target key. Starting a
// poll for a key that already has an active handle supersedes it: the prior
// handle is cancelled before the new loop begins, so at most one loop per
// key is ever live.
type Poller struct {
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// New creates a Poller that ticks at the given interval.
func New(interval time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		interval: interval,
		logger:   logger,
		handles:  make(map[string]*Handle),
	}
}

// Start begins polling check for key. kind labels the loop in logs and
// metrics ("transcript", "gradings"). The first tick fires one interval
// after Start; callers that already hold a terminal status must not call
// Start at all.
func (p *Poller) Start(kind, key string, check CheckFunc) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{key: key, ctx: ctx, cancel: cancel}

	p.mu.Lock()
	if prev, ok := p.handles[key]; ok {
		prev.cancel()
	}
	p.handles[key] = h
	p.mu.Unlock()

	metrics.PollsActive.Inc()
	go p.run(h, kind, check)
	return h
}

func (p *Poller) run(h *Handle, kind string, check CheckFunc) {
	defer metrics.PollsActive.Dec()
	defer p.release(h)
	defer h.cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			metrics.PollTicksTotal.WithLabelValues(kind).Inc()

			done, err := check(h.ctx)

			// Cancelled while the fetch was in flight: the result is
			// stale, drop it without further ticks.
			if h.ctx.Err() != nil {
				return
			}
			if err != nil {
				metrics.PollErrorsTotal.WithLabelValues(kind).Inc()
				p.logger.Debug("poll tick failed, retrying on next tick",
					zap.String("kind", kind),
					zap.String("target", h.key),
					zap.Error(err),
				)
				continue
			}
			if done {
				p.logger.Debug("poll loop finished",
					zap.String("kind", kind),
					zap.String("target", h.key),
				)
				return
			}
		}
	}
}

// release removes h from the registry unless it was already superseded by a
// newer handle for the same key.
func (p *Poller) release(h *Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handles[h.key] == h {
		delete(p.handles, h.key)
	}
}

// StopAll cancels every outstanding handle. Used on scope teardown so no
// timer outlives its owner.
func (p *Poller) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.handles {
		h.cancel()
	}
	p.handles = make(map[string]*Handle)
}

// ActiveCount returns how many poll loops are currently registered.
func (p *Poller) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}
