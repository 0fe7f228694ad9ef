// Package opshttp serves the operational surface: liveness, a status
// snapshot, and the Prometheus exposition endpoint. All endpoints are
// read-only; the trading loop is never driven from HTTP.
package opshttp

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status is the controller snapshot rendered at /status.
type Status struct {
	Symbol        string    `json:"symbol"`
	Magic         int       `json:"magic"`
	Equity        float64   `json:"equity"`
	Balance       float64   `json:"balance"`
	Positions     int       `json:"positions"`
	DailyHalted   bool      `json:"daily_halted"`
	CooldownUntil time.Time `json:"cooldown_until,omitempty"`
	TrailMode     string    `json:"trail_mode"`
	TPMode        string    `json:"tp_mode"`
	DecodeFails   int       `json:"decode_fails"`
	HBSendFails   int       `json:"hb_send_fails"`
}

// StatusFunc supplies the current snapshot; it must be safe to call from
// the HTTP goroutines.
type StatusFunc func() Status

type Server struct {
	status StatusFunc
}

func NewServer(status StatusFunc) *Server {
	return &Server{status: status}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
