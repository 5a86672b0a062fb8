// Package server exposes the engraving pipeline over HTTP: multipart
// processing and compositing endpoints, a WebSocket progress stream, health
// and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pupring/engrave/internal/compositor"
	"github.com/pupring/engrave/internal/pipeline"
	"github.com/pupring/engrave/internal/version"
)

// processor is the slice of the pipeline orchestrator the server consumes.
type processor interface {
	Process(ctx context.Context, req pipeline.Request) *pipeline.Result
	Info() map[string]interface{}
}

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	CORSOrigin      string
	MaxUploadMB     int64
	TimeoutSec      int
	RateLimitPerMin int
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	proc        processor
	comp        *compositor.Compositor
	templates   map[string]image.Image
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	rateLimiter *RateLimiter
	validate    *validator.Validate
	logger      *slog.Logger
}

// HealthResponse is the payload of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// InfoResponse is the payload of GET /styles.
type InfoResponse struct {
	Pipeline  map[string]interface{} `json:"pipeline"`
	Templates []string               `json:"templates"`
}

// ErrorResponse is the JSON body of any non-2xx API response.
type ErrorResponse struct {
	Error            string `json:"error"`
	Message          string `json:"message,omitempty"`
	RequiresNewImage bool   `json:"requiresNewImage,omitempty"`
}

// NewServer creates a server around an already-built pipeline orchestrator.
func NewServer(cfg Config, proc processor, logger *slog.Logger) (*Server, error) {
	if proc == nil {
		return nil, errors.New("pipeline processor is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		proc:        proc,
		templates:   make(map[string]image.Image),
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeoutSec:  cfg.TimeoutSec,
		validate:    validator.New(),
		logger:      logger,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 25
	}
	if s.timeoutSec <= 0 {
		s.timeoutSec = 120
	}
	if cfg.RateLimitPerMin > 0 {
		s.rateLimiter = NewRateLimiter(cfg.RateLimitPerMin, 0, 0, 0)
	}
	return s, nil
}

// WithCompositor enables the /composite endpoint. templates maps template
// names to their pendant artwork.
func (s *Server) WithCompositor(comp *compositor.Compositor, templates map[string]image.Image) *Server {
	s.comp = comp
	for name, art := range templates {
		s.templates[name] = art
	}
	return s
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/styles", s.corsMiddleware(s.stylesHandler))
	mux.HandleFunc("/process", s.corsMiddleware(s.rateLimitMiddleware(s.processHandler)))
	mux.HandleFunc("/composite", s.corsMiddleware(s.rateLimitMiddleware(s.compositeHandler)))
	mux.HandleFunc("/ws/process", s.processWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// requestTimeout returns the per-request processing deadline.
func (s *Server) requestTimeout() time.Duration {
	return time.Duration(s.timeoutSec) * time.Second
}

func healthPayload() HealthResponse {
	v, _, _ := version.Info()
	return HealthResponse{
		Status:  "ok",
		Version: v,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
}
