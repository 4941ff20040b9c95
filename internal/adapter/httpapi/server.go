// Package httpapi exposes the router service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/kaptinlin/jsonschema"

	"github.com/cheerhou/DevoLight/internal/domain"
	"github.com/cheerhou/DevoLight/internal/infra/config"
	"github.com/cheerhou/DevoLight/internal/infra/middleware"
	"github.com/cheerhou/DevoLight/internal/usecase"
	"github.com/cheerhou/DevoLight/internal/usecase/multiagent"
)

const subsystem = "httpapi"

// SessionHeader carries the effective session id back to the client.
const SessionHeader = "X-Session-ID"

// RouteService is the part of usecase.RouterService the API needs.
type RouteService interface {
	Route(ctx context.Context, in usecase.RouteInput) (*usecase.RouteOutput, error)
}

// Server serves the routing API.
type Server struct {
	cfg      config.ServerConfig
	service  RouteService
	registry *multiagent.Registry
	ids      multiagent.IDGenerator
	schema   *jsonschema.Schema
	logger   *slog.Logger

	server    *http.Server
	boundAddr string
	cancel    context.CancelFunc
}

// NewServer creates an API server. It fails only if the request schema
// does not compile.
func NewServer(cfg config.ServerConfig, service RouteService, registry *multiagent.Registry, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	schema, err := jsonschema.NewCompiler().Compile([]byte(routeSchema))
	if err != nil {
		return nil, fmt.Errorf("compile route schema: %w", err)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{
		cfg:      cfg,
		service:  service,
		registry: registry,
		ids:      multiagent.ULIDGenerator{},
		schema:   schema,
		logger:   logger,
	}, nil
}

// SetIDGenerator replaces the session id generator.
func (s *Server) SetIDGenerator(ids multiagent.IDGenerator) { s.ids = ids }

// Handler returns the full handler chain. ctx bounds the rate limiter's
// cleanup goroutine.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /route", s.handleRoute)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/health", s.handleHealth)

	mws := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.AccessLog(s.logger),
		middleware.SecurityHeaders,
		middleware.CORS(s.cfg.CORSOrigins),
	}
	if rl := s.cfg.RateLimit; rl.Enabled {
		mws = append(mws, middleware.RateLimit(ctx, middleware.RateLimitConfig{
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
		}))
	}
	return middleware.Chain(mux, mws...)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.boundAddr = ln.Addr().String()

	go func() {
		s.logger.Info("http api started", "addr", s.boundAddr)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string { return s.boundAddr }

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	const op = "Server.handleRoute"
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	req, err := s.decodeRoute(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, domain.NewSubSystemError(subsystem, op, domain.ErrInvalidInput, err.Error()))
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = s.ids.NewSessionID(time.Now())
	}
	w.Header().Set(SessionHeader, sessionID)

	out, err := s.service.Route(r.Context(), req.input(sessionID))
	if err != nil {
		s.logger.Error("route failed",
			"session_id", sessionID,
			"request_id", middleware.RequestIDFrom(r.Context()),
			"error", err,
		)
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, newRouteResponse(out, s.cfg.ExposeRouting))
}

func (s *Server) decodeRoute(r *http.Request) (routeRequest, error) {
	var raw any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&raw); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return routeRequest{}, fmt.Errorf("request body too large (max %d bytes)", tooLarge.Limit)
		}
		return routeRequest{}, fmt.Errorf("invalid JSON: %w", err)
	}

	result := s.schema.Validate(raw)
	if !result.IsValid() {
		return routeRequest{}, fmt.Errorf("schema validation failed: %s", result.Error())
	}

	// Re-encode the validated document into the typed request.
	data, err := json.Marshal(raw)
	if err != nil {
		return routeRequest{}, err
	}
	var req routeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return routeRequest{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return req, nil
}

type agentView struct {
	Key         string   `json:"key"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	Role        string   `json:"role"`
	Specialties []string `json:"specialties"`
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) {
	agents := s.registry.Agents()
	views := make([]agentView, 0, len(agents))
	for _, a := range agents {
		views = append(views, agentView{
			Key:         a.Key,
			ID:          a.ID,
			Name:        a.Name,
			Icon:        a.Icon,
			Role:        a.Role,
			Specialties: a.Specialties,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": views})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: domain.ErrorCodeOf(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
