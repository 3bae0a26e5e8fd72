package httpserver

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/radiusdt/roas-board/internal/config"
	"github.com/radiusdt/roas-board/internal/dashboard"
	"github.com/radiusdt/roas-board/internal/metrics"
	"github.com/radiusdt/roas-board/internal/middleware"
	"github.com/radiusdt/roas-board/internal/models"
	"github.com/radiusdt/roas-board/internal/storage"
)

const (
	maxBodyBytes  = 10 << 20
	maxBoardIDLen = 128
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// HealthCheck reports whether one backend is reachable.
type HealthCheck func(ctx context.Context) error

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Service     *dashboard.Service
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	RateLimiter *middleware.RateLimitMiddleware
	Checks      map[string]HealthCheck
}

// Server wraps HTTP handlers around the dashboard service.
type Server struct {
	service *dashboard.Service
	logger  *zap.Logger
	config  *config.Config
	metrics *metrics.Metrics
	checks  map[string]HealthCheck
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: deps.Service,
		logger:  logger,
		config:  deps.Config,
		metrics: deps.Metrics,
		checks:  deps.Checks,
	}

	r := chi.NewRouter()

	// Request IDs before anything that logs.
	r.Use(middleware.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(logger).Handler)
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics).Handler)
	}
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Handler)
	}
	r.Use(middleware.NewAuthMiddleware(deps.Config.Auth, logger).Handler)

	r.Get("/health", s.handleHealth)
	if deps.Config.Metrics.Enabled && deps.Metrics != nil {
		r.Method(http.MethodGet, deps.Config.Metrics.Path, deps.Metrics.Handler())
	}

	r.Post("/rows", s.handleUpsertRows)

	r.Route("/boards/{boardID}", func(r chi.Router) {
		r.Get("/", s.handleGetBoard)
		r.Get("/table", s.handleTable)
		r.Get("/export.xlsx", s.handleExport)

		r.Put("/criterion", s.handleSetCriterion)
		r.Put("/view", s.handleSetView)
		r.Put("/settings", s.handleUpdateSettings)
		r.Put("/hidden", s.handleSetHidden)

		r.Route("/order", func(r chi.Router) {
			r.Put("/supergroups", s.handleReorderSuperGroups)
			r.Put("/members", s.handleReorderMembers)
			r.Post("/move", s.handleMove)
			r.Post("/reset", s.handleResetOrder)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	return r
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.logger.Warn("health check failed", zap.Any("components", failed))
		s.jsonStatus(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded", "components": failed})
		return
	}
	s.jsonResponse(w, map[string]string{"status": "ok"})
}

// ---- Rows ----

func (s *Server) handleUpsertRows(w http.ResponseWriter, r *http.Request) {
	var rows []models.RawRow
	if !s.decode(w, r, &rows) {
		return
	}
	n, err := s.service.UpsertRows(r.Context(), rows)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, map[string]int{"upserted": n})
}

// ---- Boards ----

func (s *Server) handleGetBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	res, err := s.service.GetBoard(r.Context(), id, parseQuery(r))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, res)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	t, err := s.service.Table(r.Context(), id, parseQuery(r))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	s.jsonResponse(w, t)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	// Buffered: errors must still come back as JSON.
	var buf bytes.Buffer
	if err := s.service.ExportXLSX(r.Context(), id, parseQuery(r), &buf); err != nil {
		s.serviceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.xlsx"`)
	_, _ = w.Write(buf.Bytes())
}

type criterionRequest struct {
	Criterion string `json:"criterion"`
}

func (s *Server) handleSetCriterion(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	var req criterionRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.service.SetCriterion(r.Context(), id, req.Criterion))
}

type viewRequest struct {
	View string `json:"view"`
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	var req viewRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.service.SetView(r.Context(), id, req.View))
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	var settings models.Settings
	if !s.decode(w, r, &settings) {
		return
	}
	s.respond(w, r)(s.service.UpdateSettings(r.Context(), id, settings))
}

type keysRequest struct {
	Keys []string `json:"keys"`
}

func (s *Server) handleSetHidden(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	var req keysRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.service.SetHidden(r.Context(), id, req.Keys))
}

func (s *Server) handleReorderSuperGroups(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	var req keysRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.service.ReorderSuperGroups(r.Context(), id, req.Keys))
}

type membersRequest struct {
	SuperKey string   `json:"super_key"`
	Sources  []string `json:"sources"`
}

func (s *Server) handleReorderMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	var req membersRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.service.ReorderMembers(r.Context(), id, req.SuperKey, req.Sources))
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	var req dashboard.MoveRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.respond(w, r)(s.service.Move(r.Context(), id, req))
}

func (s *Server) handleResetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.boardID(w, r)
	if !ok {
		return
	}
	s.respond(w, r)(s.service.ResetOrder(r.Context(), id))
}

// ---- Helpers ----

func parseQuery(r *http.Request) dashboard.Query {
	q := r.URL.Query()
	var apps []string
	for _, v := range q["app"] {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				apps = append(apps, a)
			}
		}
	}
	return dashboard.Query{View: q.Get("view"), Apps: apps}
}

func (s *Server) boardID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "boardID")
	if id == "" || len(id) > maxBoardIDLen || strings.ContainsAny(id, "\"\\\r\n") {
		s.errorResponse(w, "invalid board id", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request) func(*dashboard.Result, error) {
	return func(res *dashboard.Result, err error) {
		if err != nil {
			s.serviceError(w, r, err)
			return
		}
		s.jsonResponse(w, res)
	}
}

// serviceError maps service errors to HTTP status codes.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dashboard.ErrInvalidArgument), errors.Is(err, dashboard.ErrInvalidSettings):
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, dashboard.ErrUnknownSuperGroup), errors.Is(err, dashboard.ErrUnknownKey):
		s.errorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, storage.ErrReadOnly):
		s.errorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, context.Canceled):
		s.errorResponse(w, "request canceled", http.StatusRequestTimeout)
	default:
		s.logger.Error("request failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) jsonResponse(w http.ResponseWriter, v any) {
	s.jsonStatus(w, http.StatusOK, v)
}

func (s *Server) jsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
