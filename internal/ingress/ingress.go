// Package ingress wires the HTTP surface: the Claude Code hook endpoints,
// a status endpoint for introspection, and a healthz probe.
package ingress

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/claudecube/claudecube/internal/pipeline"
	"github.com/claudecube/claudecube/internal/session"
)

// Server is the HTTP ingress: decodes hook payloads and dispatches them into
// the pipeline handler.
type Server struct {
	handler  *pipeline.Handler
	sessions *session.Registry
	rulesVer func() int
	log      *slog.Logger
	started  time.Time
}

// New builds the ingress server. rulesVer reports the currently-loaded rules
// document version for /healthz; pass nil if no rules source is wired.
func New(handler *pipeline.Handler, sessions *session.Registry, rulesVer func() int, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if rulesVer == nil {
		rulesVer = func() int { return 0 }
	}
	return &Server{handler: handler, sessions: sessions, rulesVer: rulesVer, log: log, started: time.Now()}
}

// Router builds the chi mux.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", s.healthz)
	r.Get("/status", s.status)

	r.Route("/hooks", func(r chi.Router) {
		r.Post("/PreToolUse", s.preToolUse)
		r.Post("/Stop", s.stop)
		r.Post("/SessionStart", s.sessionStart)
		r.Post("/SessionEnd", s.sessionEnd)
		r.Post("/Notification", s.notification)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found"})
	})

	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
		})
	}
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"rulesVersion":  s.rulesVer(),
		"uptimeSeconds": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": s.sessions.GetAll(),
		"count":    len(s.sessions.GetAll()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
