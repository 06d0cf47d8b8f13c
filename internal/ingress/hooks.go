package ingress

import (
	"encoding/json"
	"net/http"

	"github.com/claudecube/claudecube/internal/pipeline"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return false
	}
	return true
}

func (s *Server) preToolUse(w http.ResponseWriter, r *http.Request) {
	var req pipeline.PreToolRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.handler.HandlePreToolUse(r.Context(), req))
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	var req pipeline.StopRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.handler.HandleStop(r.Context(), req))
}

func (s *Server) sessionStart(w http.ResponseWriter, r *http.Request) {
	var req pipeline.LifecycleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.handler.HandleSessionStart(r.Context(), req))
}

func (s *Server) sessionEnd(w http.ResponseWriter, r *http.Request) {
	var req pipeline.LifecycleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.handler.HandleSessionEnd(r.Context(), req))
}

func (s *Server) notification(w http.ResponseWriter, r *http.Request) {
	var req pipeline.LifecycleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.handler.HandleNotification(r.Context(), req))
}
