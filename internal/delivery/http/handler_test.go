package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/authcache"
	"github.com/alexchen1337/SpeakWell/internal/client/mock"
	"github.com/alexchen1337/SpeakWell/internal/coordinator"
	"github.com/alexchen1337/SpeakWell/internal/domain"
	"github.com/alexchen1337/SpeakWell/internal/publisher"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) (*gin.Engine, *mock.StatusClient) {
	t.Helper()
	mc := mock.NewStatusClient()
	logger := zap.NewNop()

	manager := coordinator.NewManager(mc, publisher.Nop{}, 5*time.Millisecond, logger)
	t.Cleanup(manager.Close)

	router := NewRouter(RouterDeps{
		Manager:         manager,
		Auth:            authcache.New(mc, time.Minute, logger),
		Logger:          logger,
		RateLimitPerMin: 100,
	})

	return router, mc
}

// completedStack configures the mock so a watch settles on its first fetch.
func completedStack(mc *mock.StatusClient) {
	score := 82.0
	mc.GetTranscriptFn = func(ctx context.Context, audioID string) (*domain.TranscriptionJob, error) {
		return &domain.TranscriptionJob{
			AudioID:    audioID,
			Status:     domain.StatusCompleted,
			Transcript: &domain.Transcript{ID: "t1", Text: "hello"},
		}, nil
	}
	mc.ListGradingsFn = func(ctx context.Context, transcriptID string) ([]domain.GradingJob, error) {
		return []domain.GradingJob{{ID: "g1", TranscriptID: transcriptID, Status: domain.StatusCompleted, OverallScore: &score}}, nil
	}
}

func doJSON(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		buf = bytes.NewBuffer(jsonBody)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateWatch_Success(t *testing.T) {
	router, mc := setupTestRouter(t)
	completedStack(mc)

	w := doJSON(router, http.MethodPost, "/api/v1/watches", map[string]interface{}{"audio_id": "a1"})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var snap coordinator.Update
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if snap.AudioID != "a1" {
		t.Errorf("expected audio ID a1, got %s", snap.AudioID)
	}
	if snap.State != coordinator.StateSettled {
		t.Errorf("expected settled state, got %s", snap.State)
	}
}

func TestCreateWatch_EmptyBody(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodPost, "/api/v1/watches", map[string]interface{}{})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCreateWatch_UnknownAudio(t *testing.T) {
	router, mc := setupTestRouter(t)
	mc.GetTranscriptFn = func(ctx context.Context, audioID string) (*domain.TranscriptionJob, error) {
		return nil, domain.ErrJobNotFound
	}

	w := doJSON(router, http.MethodPost, "/api/v1/watches", map[string]interface{}{"audio_id": "missing"})

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetWatch_NotFound(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/watches/nope", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDeleteWatch(t *testing.T) {
	router, mc := setupTestRouter(t)
	completedStack(mc)

	doJSON(router, http.MethodPost, "/api/v1/watches", map[string]interface{}{"audio_id": "a1"})

	w := doJSON(router, http.MethodDelete, "/api/v1/watches/a1", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(router, http.MethodGet, "/api/v1/watches/a1", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404 after delete, got %d: %s", w.Code, w.Body.String())
	}
}

func TestListWatches(t *testing.T) {
	router, mc := setupTestRouter(t)
	completedStack(mc)

	doJSON(router, http.MethodPost, "/api/v1/watches", map[string]interface{}{"audio_id": "a1"})
	doJSON(router, http.MethodPost, "/api/v1/watches", map[string]interface{}{"audio_id": "a2"})

	w := doJSON(router, http.MethodGet, "/api/v1/watches", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string][]coordinator.Update
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(resp["watches"]) != 2 {
		t.Errorf("expected 2 watches, got %d", len(resp["watches"]))
	}
}

func TestRetry_RejectedSurfaces(t *testing.T) {
	router, mc := setupTestRouter(t)
	mc.GetTranscriptFn = func(ctx context.Context, audioID string) (*domain.TranscriptionJob, error) {
		return &domain.TranscriptionJob{AudioID: audioID, Status: domain.StatusProcessing}, nil
	}
	mc.RetryTranscriptionFn = func(ctx context.Context, audioID string) error {
		return &domain.RejectedError{StatusCode: http.StatusBadRequest, Message: "Job is already processing"}
	}

	doJSON(router, http.MethodPost, "/api/v1/watches", map[string]interface{}{"audio_id": "a1"})

	w := doJSON(router, http.MethodPost, "/api/v1/watches/a1/retry", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if resp["error"] != "Job is already processing" {
		t.Errorf("expected backend rejection message, got %q", resp["error"])
	}
}

func TestInitiateGrading_BeforeTranscriptReady(t *testing.T) {
	router, mc := setupTestRouter(t)
	mc.GetTranscriptFn = func(ctx context.Context, audioID string) (*domain.TranscriptionJob, error) {
		return &domain.TranscriptionJob{AudioID: audioID, Status: domain.StatusProcessing}, nil
	}

	doJSON(router, http.MethodPost, "/api/v1/watches", map[string]interface{}{"audio_id": "a1"})

	w := doJSON(router, http.MethodPost, "/api/v1/watches/a1/gradings", map[string]interface{}{"rubric_id": "r1"})
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestInitiateGrading_Success(t *testing.T) {
	router, mc := setupTestRouter(t)
	completedStack(mc)

	doJSON(router, http.MethodPost, "/api/v1/watches", map[string]interface{}{"audio_id": "a1"})

	w := doJSON(router, http.MethodPost, "/api/v1/watches/a1/gradings", map[string]interface{}{"rubric_id": "r1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job domain.GradingJob
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if job.Status != domain.StatusProcessing {
		t.Errorf("expected processing status on new grading, got %s", job.Status)
	}
	if job.TranscriptID != "t1" {
		t.Errorf("expected transcript t1, got %s", job.TranscriptID)
	}
}

func TestDeleteGrading(t *testing.T) {
	router, mc := setupTestRouter(t)
	completedStack(mc)

	doJSON(router, http.MethodPost, "/api/v1/watches", map[string]interface{}{"audio_id": "a1"})

	w := doJSON(router, http.MethodDelete, "/api/v1/watches/a1/gradings/g1", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d: %s", w.Code, w.Body.String())
	}
	if got := mc.CallCount("DeleteGrading:g1"); got != 1 {
		t.Errorf("expected 1 delete call, got %d", got)
	}
}

func TestHealth(t *testing.T) {
	router, _ := setupTestRouter(t)

	w := doJSON(router, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
}

func TestMe_ServedFromCache(t *testing.T) {
	router, mc := setupTestRouter(t)

	for i := 0; i < 3; i++ {
		w := doJSON(router, http.MethodGet, "/api/v1/me", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}
	}

	if got := mc.CallCount("CurrentUser"); got != 1 {
		t.Errorf("expected 1 backend identity fetch across 3 requests, got %d", got)
	}
}
