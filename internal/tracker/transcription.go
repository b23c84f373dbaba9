package tracker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/client"
	"github.com/alexchen1337/SpeakWell/internal/domain"
	"github.com/alexchen1337/SpeakWell/internal/scheduler"
)

// UpdateFunc receives the latest observed transcription state on every tick,
// including non-terminal ones.
type UpdateFunc func(job *domain.TranscriptionJob)

// TerminalFunc receives the final state of an attempt exactly once.
type TerminalFunc func(job *domain.TranscriptionJob)

// TranscriptionTracker owns the lifecycle of transcription jobs, one per
// audio resource. It keeps the last observed state per audio id and
// guarantees monotonic status within an attempt: a terminal result is never
// overwritten by a stale non-terminal fetch. Only Retry, which begins a new
// attempt, may replace a terminal state.
type TranscriptionTracker struct {
	client client.StatusClient
	poller *scheduler.Poller
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[string]*domain.TranscriptionJob
}

// NewTranscriptionTracker creates a tracker driving poll loops through poller.
func NewTranscriptionTracker(c client.StatusClient, p *scheduler.Poller, logger *zap.Logger) *TranscriptionTracker {
	return &TranscriptionTracker{
		client: c,
		poller: p,
		logger: logger,
		jobs:   make(map[string]*domain.TranscriptionJob),
	}
}

// Observe performs a single status fetch and records the result.
func (t *TranscriptionTracker) Observe(ctx context.Context, audioID string) (*domain.TranscriptionJob, error) {
	job, err := t.client.GetTranscript(ctx, audioID)
	if err != nil {
		return nil, err
	}
	return t.apply(job), nil
}

// TrackUntilTerminal fetches the current status once, then polls until the
// job reaches a terminal state. onUpdate fires on every observation; if the
// first fetch is already terminal, onTerminal fires immediately and no poll
// loop is started at all.
func (t *TranscriptionTracker) TrackUntilTerminal(ctx context.Context, audioID string, onUpdate UpdateFunc, onTerminal TerminalFunc) error {
	job, err := t.Observe(ctx, audioID)
	if err != nil {
		return err
	}

	onUpdate(job)
	if job.Status.IsTerminal() {
		onTerminal(job)
		return nil
	}

	t.startPoll(audioID, onUpdate, onTerminal)
	return nil
}

// Retry asks the backend to restart a failed transcription. On acceptance
// the local state resets to processing (a new attempt) and polling resumes.
// A rejected retry is returned to the caller, never swallowed.
func (t *TranscriptionTracker) Retry(ctx context.Context, audioID string, onUpdate UpdateFunc, onTerminal TerminalFunc) error {
	if err := t.client.RetryTranscription(ctx, audioID); err != nil {
		return err
	}

	job := &domain.TranscriptionJob{AudioID: audioID, Status: domain.StatusProcessing}
	t.mu.Lock()
	t.jobs[audioID] = job
	t.mu.Unlock()

	t.logger.Info("transcription retry accepted",
		zap.String("audio_id", audioID),
	)

	onUpdate(snapshotTranscription(job))
	t.startPoll(audioID, onUpdate, onTerminal)
	return nil
}

// Snapshot returns a copy of the last observed state, or nil when the audio
// id has never been observed.
func (t *TranscriptionTracker) Snapshot(audioID string) *domain.TranscriptionJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[audioID]
	if !ok {
		return nil
	}
	return snapshotTranscription(job)
}

func (t *TranscriptionTracker) startPoll(audioID string, onUpdate UpdateFunc, onTerminal TerminalFunc) {
	t.poller.Start("transcript", "transcript:"+audioID, func(ctx context.Context) (bool, error) {
		job, err := t.client.GetTranscript(ctx, audioID)
		if err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				// The job will never appear; report a terminal failure and
				// stop cleanly instead of polling forever.
				failed := &domain.TranscriptionJob{AudioID: audioID, Status: domain.StatusFailed}
				failed = t.apply(failed)
				onTerminal(failed)
				return true, nil
			}
			return false, err
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		job = t.apply(job)
		onUpdate(job)
		if job.Status.IsTerminal() {
			onTerminal(job)
			return true, nil
		}
		return false, nil
	})
}

// apply stores the observation unless it would regress a terminal state,
// and returns a copy of whichever state is current afterwards.
func (t *TranscriptionTracker) apply(job *domain.TranscriptionJob) *domain.TranscriptionJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	current, ok := t.jobs[job.AudioID]
	if ok && current.Status.IsTerminal() && !job.Status.IsTerminal() {
		// Stale out-of-order observation; keep the terminal state.
		return snapshotTranscription(current)
	}

	stored := snapshotTranscription(job)
	t.jobs[job.AudioID] = stored
	return snapshotTranscription(stored)
}

func snapshotTranscription(job *domain.TranscriptionJob) *domain.TranscriptionJob {
	out := *job
	if job.Transcript != nil {
		tr := *job.Transcript
		tr.Words = append([]domain.Word(nil), job.Transcript.Words...)
		out.Transcript = &tr
	}
	return &out
}
