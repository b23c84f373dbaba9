package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/domain"
	"github.com/alexchen1337/SpeakWell/internal/metrics"
)

// Ensure GradeAPI implements StatusClient.
var _ StatusClient = (*GradeAPI)(nil)

// GradeAPI is the HTTP implementation of StatusClient against the SpeakWell
// backend. Each request carries the configured bearer token and is bounded
// by the client timeout so a hung fetch cannot stall a poll cycle.
type GradeAPI struct {
	baseURL string
	token   string
	httpc   *http.Client
	logger  *zap.Logger
}

// NewGradeAPI creates a GradeAPI client. baseURL is the backend root
// without a trailing slash, e.g. "https://api.speakwell.app".
func NewGradeAPI(baseURL, token string, timeout time.Duration, logger *zap.Logger) *GradeAPI {
	return &GradeAPI{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *GradeAPI) GetTranscript(ctx context.Context, audioID string) (*domain.TranscriptionJob, error) {
	var job domain.TranscriptionJob
	path := "/api/transcripts/" + url.PathEscape(audioID)
	if err := c.do(ctx, http.MethodGet, "get_transcript", path, nil, nil, &job); err != nil {
		return nil, err
	}
	if job.AudioID == "" {
		job.AudioID = audioID
	}
	return &job, nil
}

func (c *GradeAPI) RetryTranscription(ctx context.Context, audioID string) error {
	path := "/api/transcripts/" + url.PathEscape(audioID) + "/retry"
	return c.do(ctx, http.MethodPost, "retry_transcription", path, nil, nil, nil)
}

func (c *GradeAPI) ListGradings(ctx context.Context, transcriptID string) ([]domain.GradingJob, error) {
	var jobs []domain.GradingJob
	path := "/api/transcripts/" + url.PathEscape(transcriptID) + "/gradings"
	if err := c.do(ctx, http.MethodGet, "list_gradings", path, nil, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *GradeAPI) InitiateGrading(ctx context.Context, req domain.GradingRequest, replaceExisting bool) (*domain.GradingJob, error) {
	var job domain.GradingJob
	query := url.Values{}
	if replaceExisting {
		query.Set("replace_existing", "true")
	}
	if err := c.do(ctx, http.MethodPost, "initiate_grading", "/api/gradings", query, req, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *GradeAPI) DeleteGrading(ctx context.Context, gradingID string) error {
	path := "/api/gradings/" + url.PathEscape(gradingID)
	return c.do(ctx, http.MethodDelete, "delete_grading", path, nil, nil, nil)
}

func (c *GradeAPI) CurrentUser(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "current_user", "/auth/me", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// do issues one request and classifies the outcome: context cancellation
// passes through untouched, network/timeout/5xx failures become
// TransientError, 404 becomes ErrJobNotFound, and other 4xx become
// RejectedError with the backend's detail message.
func (c *GradeAPI) do(ctx context.Context, method, operation, path string, query url.Values, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gradeapi: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("gradeapi: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	metrics.FetchDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		// A caller-cancelled context is not a fetch failure; let the
		// poller see the cancellation and discard the tick.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.TransientError{Err: fmt.Errorf("%s %s: %w", method, path, err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, domain.ErrJobNotFound)
	case resp.StatusCode >= 500:
		return &domain.TransientError{Err: fmt.Errorf("%s %s: server returned %d", method, path, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return &domain.RejectedError{
			StatusCode: resp.StatusCode,
			Message:    decodeDetail(resp),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &domain.TransientError{Err: fmt.Errorf("%s %s: decode response: %w", method, path, err)}
		}
	}
	return nil
}

// decodeDetail extracts the {"detail": "..."} message FastAPI-style backends
// attach to rejections. Falls back to the HTTP status text.
func decodeDetail(resp *http.Response) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return http.StatusText(resp.StatusCode)
}
