package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/pkordes/carpool/backend/spec"
)

// getHealth handles GET /healthz. It only proves the process is serving.
func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// getReady handles GET /readyz by pinging every configured dependency.
func (s *Server) getReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.opts.Checks))
	for name := range s.opts.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	body := readiness{Status: "ok", Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for _, name := range names {
		if err := s.opts.Checks[name].Ping(ctx); err != nil {
			s.log.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			body.Checks[name] = "unavailable"
			body.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		body.Checks[name] = "ok"
	}
	writeJSON(w, code, body)
}

// getOpenAPI serves the embedded API description.
func (s *Server) getOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(spec.OpenAPI)
}
