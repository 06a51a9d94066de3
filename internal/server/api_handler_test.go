package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"rlmtrace/internal/events"
	"rlmtrace/internal/history"
	"rlmtrace/internal/jsonx"
	"rlmtrace/internal/logging"
	"rlmtrace/internal/observability"
	"rlmtrace/internal/session"
	"rlmtrace/internal/trace"
)

type apiFixture struct {
	router  http.Handler
	tracer  *session.Tracer
	binding session.Binding
	store   *history.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store, err := history.New(4)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	metrics, err := observability.NewMetrics(observability.MetricsConfig{Enabled: true})
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	tracer := session.NewTracer(session.WithLogger(logging.Nop()), session.WithHistory(store))
	broadcaster := NewBroadcaster(logging.Nop(), metrics)
	return &apiFixture{
		router:  NewRouter(tracer, store, broadcaster, metrics),
		tracer:  tracer,
		binding: tracer.Begin(),
		store:   store,
	}
}

func (f *apiFixture) apply(t *testing.T, evs ...events.Event) {
	t.Helper()
	for _, ev := range evs {
		f.tracer.Apply(f.binding, ev)
	}
}

func (f *apiFixture) request(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := jsonx.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHandleTrace(t *testing.T) {
	f := newAPIFixture(t)
	f.apply(t,
		&events.ExecutionStart{ID: "e1", Query: "q"},
		&events.IterationStart{ID: "i1", Number: 1},
	)

	rec := f.request(t, http.MethodGet, "/api/trace")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	exec := decodeBody[trace.Execution](t, rec)
	if exec.ID != "e1" || len(exec.Iterations) != 1 {
		t.Fatalf("trace body: %+v", exec)
	}
}

func TestHandleTraceNoExecution(t *testing.T) {
	f := newAPIFixture(t)
	f.tracer.Reset()

	rec := f.request(t, http.MethodGet, "/api/trace")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["error"] == "" {
		t.Fatalf("error body: %v", body)
	}
}

func TestHandleStats(t *testing.T) {
	f := newAPIFixture(t)
	f.apply(t,
		&events.ExecutionStart{ID: "e1", Query: "q"},
		&events.IterationStart{ID: "i1", Number: 1},
		&events.IterationStart{ID: "i2", Number: 1, ParentID: "i1"},
	)

	rec := f.request(t, http.MethodGet, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	stats := decodeBody[trace.Stats](t, rec)
	if stats.TotalIterations != 2 || stats.Subcalls != 1 || stats.MaxDepth != 1 {
		t.Fatalf("stats body: %+v", stats)
	}
}

func TestHandleStatus(t *testing.T) {
	f := newAPIFixture(t)
	f.apply(t, &events.ExecutionStart{ID: "e1", Query: "q"})

	rec := f.request(t, http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["status"] != "running" {
		t.Fatalf("status body: %v", body)
	}
	if _, ok := body["version"]; !ok {
		t.Fatalf("status body missing version: %v", body)
	}
}

func TestHandleHistory(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.request(t, http.MethodGet, "/api/history")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("empty history = %s, want []", got)
	}

	f.apply(t,
		&events.ExecutionStart{ID: "e1", Query: "q"},
		&events.ExecutionComplete{},
	)

	rec = f.request(t, http.MethodGet, "/api/history")
	list := decodeBody[[]trace.Execution](t, rec)
	if len(list) != 1 || list[0].ID != "e1" {
		t.Fatalf("history body: %+v", list)
	}

	rec = f.request(t, http.MethodGet, "/api/history/e1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	exec := decodeBody[trace.Execution](t, rec)
	if exec.ID != "e1" || exec.Status != trace.StatusCompleted {
		t.Fatalf("history entry: %+v", exec)
	}

	rec = f.request(t, http.MethodGet, "/api/history/unknown")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandleReset(t *testing.T) {
	f := newAPIFixture(t)
	f.apply(t, &events.ExecutionStart{ID: "e1", Query: "q"})

	rec := f.request(t, http.MethodPost, "/api/reset")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if f.tracer.Snapshot() != nil {
		t.Fatal("reset should discard the execution")
	}

	rec = f.request(t, http.MethodGet, "/api/trace")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("trace after reset = %d, want 404", rec.Code)
	}
}

func TestResetRequiresPost(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.request(t, http.MethodGet, "/api/reset")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.request(t, http.MethodGet, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["status"] != "ok" {
		t.Fatalf("health body: %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.request(t, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
