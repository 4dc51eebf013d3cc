// Package chi serves the local status and control surface.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/quotawatch/internal/domain"
	"github.com/kailas-cloud/quotawatch/internal/domain/quota"
	logpkg "github.com/kailas-cloud/quotawatch/internal/logger"
	"github.com/kailas-cloud/quotawatch/internal/metrics"
	"github.com/kailas-cloud/quotawatch/internal/transport/dto"
	healthuc "github.com/kailas-cloud/quotawatch/internal/usecase/health"
	telemetryuc "github.com/kailas-cloud/quotawatch/internal/usecase/telemetry"
)

// maxBodyBytes bounds rename request bodies.
const maxBodyBytes = 4 << 10

// Telemetry is the consumer interface over the telemetry client (ISP).
type Telemetry interface {
	Latest() (quota.Snapshot, bool)
	Phase() telemetryuc.Phase
	PollCount() int64
	Target() domain.ConnectionTarget
	Connected() bool
	PollOnce(ctx context.Context) error
	Rediscover(ctx context.Context) (domain.ConnectionTarget, error)
	AutoGroup(ctx context.Context) (quota.Membership, error)
	RenameGroup(ctx context.Context, groupID, name string) error
	RenameModel(ctx context.Context, modelID, name string) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server is the status HTTP server.
type Server struct {
	telemetry     Telemetry
	health        *healthuc.Service
	events        http.Handler
	logger        *zap.Logger
	metrics       bool
	errorHandlers []errorHandler
}

// NewServer creates a status server. events may be nil to disable /events.
func NewServer(telemetry Telemetry, health *healthuc.Service, events http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		telemetry: telemetry,
		health:    health,
		events:    events,
		logger:    logger,
		metrics:   true,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, dto.ErrorCodeNotFound),
		sentinelHandler(domain.ErrInvalidConfiguration, http.StatusBadRequest, dto.ErrorCodeValidation),
		sentinelHandler(telemetryuc.ErrPollInProgress, http.StatusConflict, dto.ErrorCodePollInProgress),
		sentinelHandler(domain.ErrNotEngaged, http.StatusServiceUnavailable, dto.ErrorCodeNotEngaged),
		sentinelHandler(domain.ErrNoPayload, http.StatusServiceUnavailable, dto.ErrorCodeNoPayload),
		sentinelHandler(domain.ErrDiscoveryFailure, http.StatusServiceUnavailable, dto.ErrorCodeDiscoveryFailure),
		sentinelHandler(domain.ErrSignalLost, http.StatusBadGateway, dto.ErrorCodeSignalLost),
		sentinelHandler(domain.ErrPayloadCorrupt, http.StatusBadGateway, dto.ErrorCodePayloadCorrupt),
		sentinelHandler(domain.ErrTransportTimeout, http.StatusGatewayTimeout, dto.ErrorCodeTimeout),
	}
	return s
}

// WithMetrics toggles request metrics and the /metrics route. Enabled by default.
func (s *Server) WithMetrics(enabled bool) *Server {
	s.metrics = enabled
	return s
}

// Handler builds the router with the full middleware chain.
func (s *Server) Handler(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	if s.metrics {
		r.Use(metrics.Middleware())
	}

	r.Get("/snapshot", s.GetSnapshot)
	r.Get("/status", s.GetStatus)
	r.Post("/refresh", s.Refresh)
	r.Post("/rediscover", s.Rediscover)
	r.Post("/groups/auto", s.AutoGroup)
	r.Put("/groups/{id}/name", s.RenameGroup)
	r.Put("/models/{id}/name", s.RenameModel)
	r.Get("/health", s.HealthCheck)
	if s.metrics {
		r.Get("/metrics", s.Metrics)
	}
	if s.events != nil {
		r.Get("/events", s.events.ServeHTTP)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, dto.ErrorCodeNotFound, "route not found")
	})
	return r
}

// GetSnapshot handles GET /snapshot.
func (s *Server) GetSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.telemetry.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, dto.ErrorCodeNoPayload, "no snapshot yet")
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSnapshot(&snap))
}

// GetStatus handles GET /status.
func (s *Server) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) status() dto.Status {
	return dto.Status{
		Phase:     s.telemetry.Phase().String(),
		Connected: s.telemetry.Connected(),
		Port:      s.telemetry.Target().Port,
		PollCount: s.telemetry.PollCount(),
	}
}

// Refresh handles POST /refresh: one immediate poll.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.telemetry.PollOnce(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.GetSnapshot(w, r)
}

// Rediscover handles POST /rediscover.
func (s *Server) Rediscover(w http.ResponseWriter, r *http.Request) {
	if _, err := s.telemetry.Rediscover(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// AutoGroup handles POST /groups/auto.
func (s *Server) AutoGroup(w http.ResponseWriter, r *http.Request) {
	m, err := s.telemetry.AutoGroup(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"membership": m})
}

type renameRequest struct {
	Name string `json:"name"`
}

// RenameGroup handles PUT /groups/{id}/name.
func (s *Server) RenameGroup(w http.ResponseWriter, r *http.Request) {
	s.rename(w, r, s.telemetry.RenameGroup)
}

// RenameModel handles PUT /models/{id}/name.
func (s *Server) RenameModel(w http.ResponseWriter, r *http.Request) {
	s.rename(w, r, s.telemetry.RenameModel)
}

func (s *Server) rename(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, string) error) {
	var req renameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, dto.ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := fn(r.Context(), chi.URLParam(r, "id"), req.Name); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code dto.ErrorCode, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	var ce *domain.ConfigurationError
	if errors.As(err, &ce) {
		return ce.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		telemetryuc.ErrPollInProgress,
		domain.ErrNotEngaged,
		domain.ErrNoPayload,
		domain.ErrDiscoveryFailure,
		domain.ErrSignalLost,
		domain.ErrPayloadCorrupt,
		domain.ErrTransportTimeout,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code dto.ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, dto.ErrorCodeInternal, "internal error")
}
