// Package handlers serves the HTTP surface of the heartbeat monitor.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/benmeehan/heartbeat-agent/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// AlertController is the part of the alert service driven over HTTP.
type AlertController interface {
	RecordHeartbeat()
	Status() models.AlertStatus
	SetEnabled(enabled bool)
	SendTest(ctx context.Context, name string) error
}

// Handler serves the monitor endpoints on top of an AlertController.
type Handler struct {
	alert   AlertController
	version string
	logger  zerolog.Logger
}

// New creates a Handler reporting version on /version.
func New(alert AlertController, version string, logger zerolog.Logger) *Handler {
	return &Handler{alert: alert, version: version, logger: logger}
}

// RouterOptions holds the optional parts of the router.
type RouterOptions struct {
	AllowedOrigins []string
	Metrics        http.Handler     // Served at /metrics when set
	Websocket      http.HandlerFunc // Served at /ws when set
}

// NewRouter builds the monitor routes.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/heartbeat", h.Heartbeat)
	r.Get("/status", h.Status)
	r.Get("/heartbeat/status", h.Status)
	r.Get("/enable", h.Enable)
	r.Get("/disable", h.Disable)
	r.Route("/test", func(r chi.Router) {
		r.Get("/email", h.TestEmail)
		r.Get("/slack", h.TestSlack)
	})
	r.Get("/version", h.Version)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Websocket != nil {
		r.Get("/ws", opts.Websocket)
	}
	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("HTTP request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
