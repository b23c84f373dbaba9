package client

import (
	"context"

	"github.com/alexchen1337/SpeakWell/internal/domain"
)

// StatusClient is the watcher's view of the grading API. Every call is a
// single network round trip with no retry logic of its own; retrying on
// transient failure is the polling loop's decision.
//
// Implementations must be safe for concurrent use and must not mutate any
// shared state beyond the network call itself.
type StatusClient interface {
	// GetTranscript fetches the transcription status for an audio resource,
	// including the transcript payload once the job has completed.
	GetTranscript(ctx context.Context, audioID string) (*domain.TranscriptionJob, error)

	// RetryTranscription asks the backend to restart a transcription job.
	RetryTranscription(ctx context.Context, audioID string) error

	// ListGradings fetches the full grading set for a transcript.
	ListGradings(ctx context.Context, transcriptID string) ([]domain.GradingJob, error)

	// InitiateGrading starts a new grading of a transcript against a rubric.
	// With replaceExisting the backend reuses the transcript+rubric pair and
	// resets it to processing instead of creating a sibling.
	InitiateGrading(ctx context.Context, req domain.GradingRequest, replaceExisting bool) (*domain.GradingJob, error)

	// DeleteGrading removes a grading.
	DeleteGrading(ctx context.Context, gradingID string) error

	// CurrentUser fetches the account the configured token belongs to.
	CurrentUser(ctx context.Context) (*domain.User, error)
}
