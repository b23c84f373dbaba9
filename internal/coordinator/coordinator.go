package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/client"
	"github.com/alexchen1337/SpeakWell/internal/domain"
	"github.com/alexchen1337/SpeakWell/internal/publisher"
	"github.com/alexchen1337/SpeakWell/internal/scheduler"
	"github.com/alexchen1337/SpeakWell/internal/tracker"
)

// State is the coordinator's position in the reconciliation sequence.
type State string

const (
	StateIdle              State = "idle"
	StateLoadingTranscript State = "loading_transcript"
	StateTranscriptPending State = "transcript_pending"
	StateTranscriptReady   State = "transcript_ready"
	StateLoadingGradings   State = "loading_gradings"
	StateGradingsPending   State = "gradings_pending"
	StateSettled           State = "settled"
	StateFailed            State = "failed"
	StateNotFound          State = "not_found"
)

// Update is a snapshot of a watch, delivered to subscribers on every change.
type Update struct {
	AudioID    string                   `json:"audio_id"`
	State      State                    `json:"state"`
	Transcript *domain.TranscriptionJob `json:"transcript,omitempty"`
	Gradings   []domain.GradingJob      `json:"gradings"`
}

// Coordinator reconciles one audio resource: it loads the transcript status,
// polls it to a terminal state, then loads the grading set and polls that
// until every grading settles. Grading loading is only ever reached from the
// transcription terminal callback, so it structurally cannot race ahead of
// transcript completion.
//
// Every poll handle the coordinator's trackers create lives in its own
// Poller, so Teardown cancels all of them at once and nothing outlives the
// watch.
type Coordinator struct {
	audioID       string
	transcription *tracker.TranscriptionTracker
	gradings      *tracker.GradingTracker
	poller        *scheduler.Poller
	events        publisher.Publisher
	logger        *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	state        State
	transcript   *domain.TranscriptionJob
	gradingSet   []domain.GradingJob
	transcriptID string
	torn         bool
	subs         map[int]chan Update
	nextSub      int
}

// New creates a coordinator for one audio resource. interval is the poll
// cadence for both job kinds.
func New(audioID string, c client.StatusClient, events publisher.Publisher, interval time.Duration, logger *zap.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	poller := scheduler.New(interval, logger)
	return &Coordinator{
		audioID:       audioID,
		transcription: tracker.NewTranscriptionTracker(c, poller, logger),
		gradings:      tracker.NewGradingTracker(c, poller, logger),
		poller:        poller,
		events:        events,
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		state:         StateIdle,
		subs:          make(map[int]chan Update),
	}
}

// AudioID returns the watched audio resource id.
func (c *Coordinator) AudioID() string { return c.audioID }

// Initialize runs the full reconciliation sequence once. The passed context
// bounds only the initial one-shot fetch; subsequent polling is owned by the
// coordinator and cancelled through Teardown.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return domain.ErrTornDown
	}
	c.state = StateLoadingTranscript
	c.notifyLocked()
	c.mu.Unlock()

	err := c.transcription.TrackUntilTerminal(ctx, c.audioID, c.onTranscriptUpdate, c.onTranscriptTerminal)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.setState(StateNotFound)
		}
		return err
	}
	return nil
}

// Teardown cancels every outstanding poll handle owned by this coordinator
// and closes all subscriptions. It is idempotent, and once it returns no
// further callback fires and no state mutation is observable, even from a
// fetch that was in flight when teardown was requested.
func (c *Coordinator) Teardown() {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.torn = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	c.cancel()
	c.poller.StopAll()

	for _, ch := range subs {
		close(ch)
	}

	c.logger.Info("watch torn down", zap.String("audio_id", c.audioID))
}

// Snapshot returns the current state of the watch.
func (c *Coordinator) Snapshot() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the coordinator's current position in the sequence.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers for updates. The returned cancel func is safe to call
// more than once; the channel is closed on unsubscribe or teardown. Slow
// subscribers skip intermediate updates rather than blocking the poll loop.
func (c *Coordinator) Subscribe() (<-chan Update, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.torn {
		ch := make(chan Update)
		close(ch)
		return ch, func() {}
	}

	id := c.nextSub
	c.nextSub++
	ch := make(chan Update, 16)
	c.subs[id] = ch

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// RetryTranscription requests a restart of a failed transcription and
// resumes polling. A rejection from the backend is returned to the caller.
func (c *Coordinator) RetryTranscription(ctx context.Context) error {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return domain.ErrTornDown
	}
	c.mu.Unlock()

	return c.transcription.Retry(ctx, c.audioID, c.onTranscriptUpdate, c.onTranscriptTerminal)
}

// InitiateGrading starts a new grading of the completed transcript against
// a rubric. It fails with ErrTranscriptNotReady while the transcription is
// still pending — the grading set cannot be touched before its parent
// transcript exists.
func (c *Coordinator) InitiateGrading(ctx context.Context, rubricID string, replaceExisting bool) (*domain.GradingJob, error) {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return nil, domain.ErrTornDown
	}
	transcriptID := c.transcriptID
	c.mu.Unlock()

	if transcriptID == "" {
		return nil, domain.ErrTranscriptNotReady
	}
	return c.gradings.Initiate(ctx, transcriptID, rubricID, replaceExisting, c.onGradingsUpdate, c.onGradingsGone)
}

// DeleteGrading removes a grading from the server and from local state.
func (c *Coordinator) DeleteGrading(ctx context.Context, gradingID string) error {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return domain.ErrTornDown
	}
	transcriptID := c.transcriptID
	c.mu.Unlock()

	if transcriptID == "" {
		return domain.ErrTranscriptNotReady
	}
	return c.gradings.Delete(ctx, transcriptID, gradingID, c.onGradingsUpdate)
}

func (c *Coordinator) onTranscriptUpdate(job *domain.TranscriptionJob) {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	changed := c.transcript == nil || c.transcript.Status != job.Status
	c.transcript = job
	if !job.Status.IsTerminal() {
		c.state = StateTranscriptPending
	}
	c.notifyLocked()
	c.mu.Unlock()

	if changed && !job.Status.IsTerminal() {
		c.publish(domain.EventTranscriptUpdated, job.Status)
	}
}

// onTranscriptTerminal is the single gateway into grading-set loading:
// the grading fetch can only fire after the transcription reported terminal.
func (c *Coordinator) onTranscriptTerminal(job *domain.TranscriptionJob) {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.transcript = job

	if job.Status != domain.StatusCompleted || job.Transcript == nil {
		c.state = StateFailed
		c.notifyLocked()
		c.mu.Unlock()
		c.publish(domain.EventTranscriptFailed, domain.StatusFailed)
		c.logger.Warn("transcription failed",
			zap.String("audio_id", c.audioID),
			zap.String("status", string(job.Status)),
		)
		return
	}

	c.transcriptID = job.Transcript.ID
	c.state = StateTranscriptReady
	transcriptID := c.transcriptID
	c.notifyLocked()
	c.state = StateLoadingGradings
	c.notifyLocked()
	c.mu.Unlock()

	c.publish(domain.EventTranscriptCompleted, domain.StatusCompleted)
	c.logger.Info("transcription completed",
		zap.String("audio_id", c.audioID),
		zap.String("transcript_id", transcriptID),
	)

	err := c.gradings.TrackSetUntilAllTerminal(c.ctx, transcriptID, c.onGradingsUpdate, c.onGradingsGone)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if errors.Is(err, domain.ErrJobNotFound) {
			c.onGradingsGone()
			return
		}
		// The initial set load blipped; the poll loop will pick it up.
		c.logger.Warn("initial grading-set load failed, polling instead",
			zap.String("transcript_id", transcriptID),
			zap.Error(err),
		)
		c.setState(StateGradingsPending)
		c.gradings.EnsurePolling(transcriptID, c.onGradingsUpdate, c.onGradingsGone)
	}
}

// onGradingsGone fires when the grading set's transcript has disappeared
// from the backend. The watch cannot settle, so it ends in not_found
// rather than lingering in a pending state forever.
func (c *Coordinator) onGradingsGone() {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.state = StateNotFound
	c.notifyLocked()
	c.mu.Unlock()

	c.logger.Warn("grading set vanished, watch ended",
		zap.String("audio_id", c.audioID),
	)
}

func (c *Coordinator) onGradingsUpdate(jobs []domain.GradingJob) {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	prev := c.state
	c.gradingSet = jobs
	if tracker.AnyProcessing(jobs) {
		c.state = StateGradingsPending
	} else {
		c.state = StateSettled
	}
	next := c.state
	c.notifyLocked()
	c.mu.Unlock()

	if next == StateSettled && prev != StateSettled {
		c.publish(domain.EventGradingsCompleted, domain.StatusCompleted)
	} else if next == StateGradingsPending {
		c.publish(domain.EventGradingsUpdated, domain.StatusProcessing)
	}
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.notifyLocked()
	c.mu.Unlock()
}

func (c *Coordinator) snapshotLocked() Update {
	return Update{
		AudioID:    c.audioID,
		State:      c.state,
		Transcript: c.transcript,
		Gradings:   append([]domain.GradingJob(nil), c.gradingSet...),
	}
}

// notifyLocked fans the current snapshot out to subscribers without blocking
// the poll loop; a full subscriber buffer drops the intermediate update.
func (c *Coordinator) notifyLocked() {
	upd := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- upd:
		default:
		}
	}
}

func (c *Coordinator) publish(kind domain.EventKind, status domain.JobStatus) {
	if c.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	transcriptID := c.transcriptID
	c.mu.Unlock()

	evt := &domain.Event{
		Kind:         kind,
		AudioID:      c.audioID,
		TranscriptID: transcriptID,
		Status:       status,
		OccurredAt:   time.Now().UTC(),
	}
	if err := c.events.Publish(c.ctx, evt); err != nil {
		c.logger.Warn("failed to publish event",
			zap.String("kind", string(kind)),
			zap.String("audio_id", c.audioID),
			zap.Error(err),
		)
	}
}
