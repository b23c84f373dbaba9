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

// SetUpdateFunc receives the full grading set after every refetch or local
// mutation.
type SetUpdateFunc func(jobs []domain.GradingJob)

// SetGoneFunc fires when the backend reports the transcript (and with it
// the grading set) no longer exists. Fires at most once per poll loop; the
// loop stops afterwards.
type SetGoneFunc func()

// GradingTracker tracks the evolving set of grading jobs per transcript.
// Every poll tick refetches the entire set rather than individual jobs:
// gradings are created dynamically mid-session, and whole-set refetch is the
// only way the poll observes additions, not just status changes of jobs
// known at poll start.
type GradingTracker struct {
	client client.StatusClient
	poller *scheduler.Poller
	logger *zap.Logger

	mu   sync.Mutex
	sets map[string][]domain.GradingJob
}

// NewGradingTracker creates a tracker driving poll loops through poller.
func NewGradingTracker(c client.StatusClient, p *scheduler.Poller, logger *zap.Logger) *GradingTracker {
	return &GradingTracker{
		client: c,
		poller: p,
		logger: logger,
		sets:   make(map[string][]domain.GradingJob),
	}
}

// AnyProcessing reports whether at least one job in the set is non-terminal.
func AnyProcessing(jobs []domain.GradingJob) bool {
	for i := range jobs {
		if !jobs[i].Status.IsTerminal() {
			return true
		}
	}
	return false
}

// LoadAll fetches the full grading set once and replaces local state.
func (g *GradingTracker) LoadAll(ctx context.Context, transcriptID string) ([]domain.GradingJob, error) {
	jobs, err := g.client.ListGradings(ctx, transcriptID)
	if err != nil {
		return nil, err
	}
	return g.merge(transcriptID, jobs), nil
}

// TrackSetUntilAllTerminal loads the set once and, if any member is still
// processing, polls the whole set until none is. onUpdate fires after every
// fetch; onGone fires if the transcript disappears mid-poll. When the
// initial set is already settled no poll loop is started. A not-found on
// the initial load is returned to the caller, not routed through onGone.
func (g *GradingTracker) TrackSetUntilAllTerminal(ctx context.Context, transcriptID string, onUpdate SetUpdateFunc, onGone SetGoneFunc) error {
	jobs, err := g.LoadAll(ctx, transcriptID)
	if err != nil {
		return err
	}

	onUpdate(jobs)
	if !AnyProcessing(jobs) {
		return nil
	}

	g.EnsurePolling(transcriptID, onUpdate, onGone)
	return nil
}

// EnsurePolling (re)starts the poll loop for a transcript's grading set.
// An existing loop for the same transcript is superseded, so exactly one is
// ever active; a set that previously settled resumes polling here when a
// new grading is initiated.
func (g *GradingTracker) EnsurePolling(transcriptID string, onUpdate SetUpdateFunc, onGone SetGoneFunc) {
	g.poller.Start("gradings", "gradings:"+transcriptID, func(ctx context.Context) (bool, error) {
		jobs, err := g.client.ListGradings(ctx, transcriptID)
		if err != nil {
			if errors.Is(err, domain.ErrJobNotFound) {
				if ctx.Err() != nil {
					return false, ctx.Err()
				}
				// Transcript is gone; report it and stop observing.
				g.logger.Warn("grading set no longer exists",
					zap.String("transcript_id", transcriptID),
				)
				onGone()
				return true, nil
			}
			return false, err
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}

		jobs = g.merge(transcriptID, jobs)
		onUpdate(jobs)
		return !AnyProcessing(jobs), nil
	})
}

// Initiate starts a new grading for the transcript and inserts it into
// local state optimistically with status processing, then (re)starts the
// poll loop — a set that settled earlier is not settled forever.
func (g *GradingTracker) Initiate(ctx context.Context, transcriptID, rubricID string, replaceExisting bool, onUpdate SetUpdateFunc, onGone SetGoneFunc) (*domain.GradingJob, error) {
	req := domain.GradingRequest{TranscriptID: transcriptID, RubricID: rubricID}
	created, err := g.client.InitiateGrading(ctx, req, replaceExisting)
	if err != nil {
		return nil, err
	}

	job := *created
	if job.Status == "" {
		job.Status = domain.StatusProcessing
	}

	g.mu.Lock()
	set := g.sets[transcriptID]
	replaced := false
	for i := range set {
		if set[i].ID == job.ID {
			set[i] = job
			replaced = true
			break
		}
	}
	if !replaced {
		set = append(set, job)
	}
	g.sets[transcriptID] = set
	snapshot := snapshotGradings(set)
	g.mu.Unlock()

	g.logger.Info("grading initiated",
		zap.String("transcript_id", transcriptID),
		zap.String("rubric_id", rubricID),
		zap.String("grading_id", job.ID),
		zap.Bool("replace_existing", replaceExisting),
	)

	onUpdate(snapshot)
	g.EnsurePolling(transcriptID, onUpdate, onGone)
	return &job, nil
}

// Delete removes a grading on the server and filters it out of local state.
// The poll loop is left alone; AnyProcessing re-evaluates on its next
// natural tick.
func (g *GradingTracker) Delete(ctx context.Context, transcriptID, gradingID string, onUpdate SetUpdateFunc) error {
	if err := g.client.DeleteGrading(ctx, gradingID); err != nil {
		return err
	}

	g.mu.Lock()
	set := g.sets[transcriptID]
	filtered := set[:0]
	for i := range set {
		if set[i].ID != gradingID {
			filtered = append(filtered, set[i])
		}
	}
	g.sets[transcriptID] = filtered
	snapshot := snapshotGradings(filtered)
	g.mu.Unlock()

	onUpdate(snapshot)
	return nil
}

// Snapshot returns a copy of the last observed set for a transcript.
func (g *GradingTracker) Snapshot(transcriptID string) []domain.GradingJob {
	g.mu.Lock()
	defer g.mu.Unlock()
	return snapshotGradings(g.sets[transcriptID])
}

// merge replaces local state wholesale with the fetched set, except that a
// locally terminal job is never regressed by a stale non-terminal fetch of
// the same id.
func (g *GradingTracker) merge(transcriptID string, fetched []domain.GradingJob) []domain.GradingJob {
	g.mu.Lock()
	defer g.mu.Unlock()

	terminal := make(map[string]domain.GradingJob)
	for _, j := range g.sets[transcriptID] {
		if j.Status.IsTerminal() {
			terminal[j.ID] = j
		}
	}

	next := make([]domain.GradingJob, 0, len(fetched))
	for _, j := range fetched {
		if prev, ok := terminal[j.ID]; ok && !j.Status.IsTerminal() {
			next = append(next, prev)
			continue
		}
		next = append(next, j)
	}

	g.sets[transcriptID] = next
	return snapshotGradings(next)
}

func snapshotGradings(jobs []domain.GradingJob) []domain.GradingJob {
	return append([]domain.GradingJob(nil), jobs...)
}
