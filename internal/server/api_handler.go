package server

import (
	"net/http"

	"rlmtrace/internal/history"
	"rlmtrace/internal/jsonx"
	"rlmtrace/internal/logging"
	"rlmtrace/internal/session"
	"rlmtrace/internal/trace"
)

// APIHandler serves read-only views of the live trace plus the reset
// action. It never mutates iterations directly; every mutation goes through
// the tracer.
type APIHandler struct {
	tracer *session.Tracer
	store  *history.Store
	logger logging.Logger
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(tracer *session.Tracer, store *history.Store) *APIHandler {
	return &APIHandler{
		tracer: tracer,
		store:  store,
		logger: logging.NewComponentLogger("APIHandler"),
	}
}

func (h *APIHandler) handleTrace(w http.ResponseWriter, r *http.Request) {
	exec := h.tracer.Snapshot()
	if exec == nil {
		writeError(w, http.StatusNotFound, "no execution")
		return
	}
	h.writeJSON(w, http.StatusOK, exec)
}

func (h *APIHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.tracer.Stats())
}

func (h *APIHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.tracer.Status(),
		"version": h.tracer.Version(),
	})
}

func (h *APIHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	executions := h.store.List()
	if executions == nil {
		executions = []*trace.Execution{}
	}
	h.writeJSON(w, http.StatusOK, executions)
}

func (h *APIHandler) handleHistoryByID(w http.ResponseWriter, r *http.Request) {
	exec, ok := h.store.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown execution")
		return
	}
	h.writeJSON(w, http.StatusOK, exec)
}

func (h *APIHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.tracer.Reset()
	h.logger.Info("Trace reset via API")
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := jsonx.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to encode response: %v", err)
		writeError(w, http.StatusInternalServerError, "encoding failure")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := jsonx.Marshal(map[string]string{"error": message})
	_, _ = w.Write(body)
}
