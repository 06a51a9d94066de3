package server

import (
	"net/http"

	"rlmtrace/internal/history"
	"rlmtrace/internal/observability"
	"rlmtrace/internal/session"
)

// NewRouter wires every endpoint of the trace API.
func NewRouter(tracer *session.Tracer, store *history.Store, broadcaster *Broadcaster, metrics *observability.Metrics) http.Handler {
	api := NewAPIHandler(tracer, store)
	sse := NewSSEHandler(broadcaster)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/trace", api.handleTrace)
	mux.HandleFunc("GET /api/stats", api.handleStats)
	mux.HandleFunc("GET /api/status", api.handleStatus)
	mux.HandleFunc("GET /api/history", api.handleHistory)
	mux.HandleFunc("GET /api/history/{id}", api.handleHistoryByID)
	mux.HandleFunc("POST /api/reset", api.handleReset)
	mux.HandleFunc("GET /api/events", sse.HandleStream)
	mux.HandleFunc("GET /healthz", api.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}
