package mock

import (
	"context"
	"sync"

	"github.com/alexchen1337/SpeakWell/internal/client"
	"github.com/alexchen1337/SpeakWell/internal/domain"
)

// Ensure StatusClient implements client.StatusClient.
var _ client.StatusClient = (*StatusClient)(nil)

// StatusClient is an in-memory mock of the grading API client for testing.
// Each method can be overridden with a hook function; calls are recorded in
// order so tests can assert sequencing (e.g. that grading fetches never
// precede transcription completion).
type StatusClient struct {
	mu    sync.Mutex
	calls []string

	GetTranscriptFn      func(ctx context.Context, audioID string) (*domain.TranscriptionJob, error)
	RetryTranscriptionFn func(ctx context.Context, audioID string) error
	ListGradingsFn       func(ctx context.Context, transcriptID string) ([]domain.GradingJob, error)
	InitiateGradingFn    func(ctx context.Context, req domain.GradingRequest, replaceExisting bool) (*domain.GradingJob, error)
	DeleteGradingFn      func(ctx context.Context, gradingID string) error
	CurrentUserFn        func(ctx context.Context) (*domain.User, error)
}

// NewStatusClient creates a new mock client.
func NewStatusClient() *StatusClient {
	return &StatusClient{}
}

func (m *StatusClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns a copy of the recorded call log.
func (m *StatusClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many recorded calls start with prefix.
func (m *StatusClient) CallCount(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (m *StatusClient) GetTranscript(ctx context.Context, audioID string) (*domain.TranscriptionJob, error) {
	m.record("GetTranscript:" + audioID)
	if m.GetTranscriptFn != nil {
		return m.GetTranscriptFn(ctx, audioID)
	}
	return &domain.TranscriptionJob{AudioID: audioID, Status: domain.StatusUploaded}, nil
}

func (m *StatusClient) RetryTranscription(ctx context.Context, audioID string) error {
	m.record("RetryTranscription:" + audioID)
	if m.RetryTranscriptionFn != nil {
		return m.RetryTranscriptionFn(ctx, audioID)
	}
	return nil
}

func (m *StatusClient) ListGradings(ctx context.Context, transcriptID string) ([]domain.GradingJob, error) {
	m.record("ListGradings:" + transcriptID)
	if m.ListGradingsFn != nil {
		return m.ListGradingsFn(ctx, transcriptID)
	}
	return nil, nil
}

func (m *StatusClient) InitiateGrading(ctx context.Context, req domain.GradingRequest, replaceExisting bool) (*domain.GradingJob, error) {
	m.record("InitiateGrading:" + req.TranscriptID)
	if m.InitiateGradingFn != nil {
		return m.InitiateGradingFn(ctx, req, replaceExisting)
	}
	return &domain.GradingJob{
		ID:           "grading-" + req.RubricID,
		TranscriptID: req.TranscriptID,
		RubricID:     req.RubricID,
		Status:       domain.StatusProcessing,
	}, nil
}

func (m *StatusClient) DeleteGrading(ctx context.Context, gradingID string) error {
	m.record("DeleteGrading:" + gradingID)
	if m.DeleteGradingFn != nil {
		return m.DeleteGradingFn(ctx, gradingID)
	}
	return nil
}

func (m *StatusClient) CurrentUser(ctx context.Context) (*domain.User, error) {
	m.record("CurrentUser")
	if m.CurrentUserFn != nil {
		return m.CurrentUserFn(ctx)
	}
	return &domain.User{ID: "user-1", Email: "watcher@speakwell.app", Role: "service"}, nil
}
