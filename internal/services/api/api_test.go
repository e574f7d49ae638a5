package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	phttp "alertrecon/internal/platform/net/http"
	"alertrecon/internal/platform/resilience"
	"alertrecon/internal/services/engine/domain"
	engsvc "alertrecon/internal/services/engine/service"
	emaildom "alertrecon/internal/services/emails/domain"
	matchdom "alertrecon/internal/services/matcher/domain"
	txdom "alertrecon/internal/services/transactions/domain"
)

type stubIngester struct{}

func (stubIngester) IngestBatch(context.Context, time.Time, time.Time, int) (emaildom.BatchStats, error) {
	return emaildom.BatchStats{}, nil
}
func (stubIngester) DeleteProcessedBefore(context.Context, time.Time) (int64, error) { return 2, nil }
func (stubIngester) BreakerState() resilience.BreakerState                           { return resilience.StateClosed }

type stubPoller struct{}

func (stubPoller) PollBatch(context.Context, time.Time, time.Time, int) (txdom.BatchStats, error) {
	return txdom.BatchStats{}, nil
}
func (stubPoller) BreakerState() resilience.BreakerState { return resilience.StateClosed }

type stubMatcher struct{}

func (stubMatcher) MatchAll(context.Context, int, bool) (matchdom.RunStats, error) {
	return matchdom.RunStats{}, nil
}

func (stubMatcher) Rematch(_ context.Context, emailID int64, _ bool) (matchdom.Result, error) {
	return matchdom.Result{EmailID: emailID, Status: "needs_review", Confidence: 0.65}, nil
}

func (stubMatcher) SetObserver(func(matchdom.Result)) {}

type stubCleaner struct{}

func (stubCleaner) CleanupAudits(context.Context, int) (int64, error) { return 4, nil }

func newTestRouter(t *testing.T) (http.Handler, *engsvc.Service) {
	t.Helper()
	cfg := domain.DefaultConfig()
	cfg.StartImmediately = false
	eng := engsvc.New(cfg, stubIngester{}, stubPoller{}, stubMatcher{}, stubCleaner{}, nil)

	mux := chi.NewRouter()
	r := phttp.AdaptChi(mux)
	Mount(r, Options{Engine: eng})
	return mux, eng
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	return env
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decode(t, rec)
	data, ok := env["data"].(map[string]any)
	if !ok {
		t.Fatalf("envelope = %v", env)
	}
	if data["running"] != false {
		t.Fatalf("running = %v, want false before Start", data["running"])
	}
}

func TestTriggerEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/trigger", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	env := decode(t, rec)
	data := env["data"].(map[string]any)
	if data["triggered"] != true {
		t.Fatalf("data = %v", data)
	}
}

func TestRematchEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/rematch/42?skip_actions=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	env := decode(t, rec)
	data := env["data"].(map[string]any)
	if data["email_id"] != float64(42) {
		t.Fatalf("data = %v", data)
	}
}

func TestRematchRejectsNonNumericID(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/rematch/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCleanupEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPost, "/cleanup", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	env := decode(t, rec)
	data := env["data"].(map[string]any)
	if data["audits_deleted"] != float64(4) || data["emails_deleted"] != float64(2) {
		t.Fatalf("data = %v", data)
	}
}

func TestConfigEndpointAppliesKnobs(t *testing.T) {
	h, eng := newTestRouter(t)
	rec := do(t, h, http.MethodPut, "/config", `{"interval_seconds":120,"actions_enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	st := eng.Status()
	if st.Interval != 2*time.Minute {
		t.Fatalf("Interval = %v, want 2m", st.Interval)
	}
	if st.ActionsEnabled {
		t.Fatal("ActionsEnabled = true, want disabled")
	}
}

func TestConfigEndpointValidatesInterval(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodPut, "/config", `{"interval_seconds":10}`)
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want validation failure", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := do(t, h, http.MethodGet, "/metrics?recent=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decode(t, rec)
	data := env["data"].(map[string]any)
	if data["window"] != float64(0) {
		t.Fatalf("window = %v, want 0 before any cycles", data["window"])
	}
}
