package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/sessiongate/internal/httpapi"

// AdminStore is the store surface used by the administration routes.
// Both internal/memstore and internal/postgres implement it.
type AdminStore interface {
	ListUsers(ctx context.Context) ([]sessiongate.UserRecord, error)
	SetUserEnabled(ctx context.Context, userID string, enabled bool) error
	AssignRole(ctx context.Context, userID, roleName string) error
	ListRoles(ctx context.Context) ([]sessiongate.Role, error)
	FindRoleByID(ctx context.Context, roleID string) (sessiongate.Role, error)
	ListAttributeMappingsForRole(ctx context.Context, roleID string) ([]sessiongate.AttributeMapping, error)
	SetRoleAttribute(ctx context.Context, roleID, attribute string, value bool) error
}

// Deps are the collaborators of the HTTP surface. Engine and Admin are
// required; the rest fall back to defaults.
type Deps struct {
	Engine     *sessiongate.Engine
	Admin      AdminStore
	IPResolver *middleware.IPResolver
	Logger     *slog.Logger
	// Metrics, when set, is served at GET /metrics.
	Metrics http.Handler
	// Tracer defaults to the global OpenTelemetry tracer provider.
	Tracer trace.Tracer
}

// Server is an http.Server serving NewHandler.
type Server struct {
	httpServer *http.Server
}

// New returns a server listening on addr.
func New(addr string, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(deps),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// NewHandler builds the route table and wraps it, outermost first, in request
// tracing, client info resolution, request logging and the failure limiter.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}
	if deps.IPResolver == nil {
		deps.IPResolver, _ = middleware.NewIPResolver(nil)
	}

	a := &api{engine: deps.Engine, admin: deps.Admin, logger: deps.Logger}

	mux := http.NewServeMux()
	for _, rt := range a.routes() {
		var h http.Handler = a.wrap(rt.handle)
		if len(rt.attrs) > 0 {
			h = middleware.RequireAttributes(deps.Engine, rt.attrs...)(h)
		}
		if rt.guarded {
			h = middleware.Guard(deps.Engine)(h)
		}
		mux.Handle(rt.pattern, named(rt.pattern, h))
	}
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", named("GET /metrics", deps.Metrics))
	}
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusNotFound, "not found", nil)
	}))

	var h http.Handler = mux
	h = middleware.RateLimit(deps.Engine)(h)
	h = logRequests(deps.Logger, h)
	h = deps.IPResolver.ClientInfo(h)
	h = traceRequests(deps.Tracer, h)
	return h
}

// quietPaths are health and docs probes left out of the request log.
var quietPaths = map[string]struct{}{
	"/":             {},
	"/docs":         {},
	"/redoc":        {},
	"/openapi.json": {},
}

/*
====================================
ROUTES
====================================
*/

// route is one entry of the route table. Guarded routes run the
// authentication gate; attrs are additionally required of the caller.
type route struct {
	pattern string
	guarded bool
	attrs   []string
	handle  handlerFunc
}

type api struct {
	engine *sessiongate.Engine
	admin  AdminStore
	logger *slog.Logger
}

func (a *api) routes() []route {
	return []route{
		{pattern: "GET /{$}", handle: a.health},

		{pattern: "POST /auth/register", handle: a.register},
		{pattern: "POST /auth/login", handle: a.login},
		{pattern: "POST /auth/token", handle: a.token},
		{pattern: "POST /auth/logout", guarded: true, handle: a.logout},
		{pattern: "POST /auth/logout-all", guarded: true, handle: a.logoutAll},
		{pattern: "GET /auth/password-reset", handle: a.validateReset},
		{pattern: "POST /auth/password-reset", handle: a.resetPassword},

		{pattern: "GET /account", guarded: true, handle: a.profile},
		{pattern: "GET /account/sessions", guarded: true, handle: a.sessions},
		{pattern: "PUT /account/password", guarded: true, handle: a.changePassword},

		{pattern: "GET /users", guarded: true, attrs: []string{"view-users"}, handle: a.listUsers},
		{pattern: "PATCH /users/{id}/status", guarded: true, attrs: []string{"manage-users"}, handle: a.setUserStatus},
		{pattern: "PUT /users/{id}/role", guarded: true, attrs: []string{"manage-users"}, handle: a.assignRole},
		{pattern: "GET /roles", guarded: true, attrs: []string{"view-roles"}, handle: a.listRoles},
		{pattern: "GET /roles/{id}/attributes", guarded: true, attrs: []string{"view-roles", "manage-roles"}, handle: a.roleAttributes},
		{pattern: "PUT /roles/{id}/attributes", guarded: true, attrs: []string{"manage-roles"}, handle: a.setRoleAttributes},
	}
}

// handlerFunc returns the error to render instead of writing it itself.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (a *api) wrap(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		var se *statusError
		if !errors.As(err, &se) && sessiongate.StatusCode(err) >= http.StatusInternalServerError {
			a.logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			trace.SpanFromContext(r.Context()).SetStatus(codes.Error, err.Error())
		}
		writeError(w, err)
	})
}

func (a *api) health(w http.ResponseWriter, r *http.Request) error {
	latency, err := a.engine.Ping(r.Context())
	if err != nil {
		a.logger.WarnContext(r.Context(), "health check failed", "error", err)
		middleware.WriteJSON(w, http.StatusServiceUnavailable, "session store unavailable", nil)
		return nil
	}
	middleware.WriteJSON(w, http.StatusOK, "ok", map[string]any{
		"status":           "ok",
		"redis_latency_ms": float64(latency.Microseconds()) / 1000,
	})
	return nil
}

/*
====================================
OBSERVABILITY
====================================
*/

// named renames the request span after the matched route pattern.
func named(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := trace.SpanFromContext(r.Context())
		span.SetName(pattern)
		span.SetAttributes(semconv.HTTPRoute(pattern))
		next.ServeHTTP(w, r)
	})
}

func traceRequests(tracer trace.Tracer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.URLPath(r.URL.Path),
			),
		)
		defer span.End()

		rec := middleware.NewStatusRecorder(w)
		next.ServeHTTP(rec, r.WithContext(ctx))
		span.SetAttributes(semconv.HTTPResponseStatusCode(rec.Status()))
		if rec.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.Status()))
		}
	})
}

// logRequests runs inside ClientInfo so it records the resolved client
// address rather than the proxy peer.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, quiet := quietPaths[r.URL.Path]; quiet {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := middleware.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)
		logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.Status(),
			"duration", time.Since(start),
			"ip", sessiongate.ClientIPFromContext(r.Context()),
			"user_agent", sessiongate.UserAgentFromContext(r.Context()),
		)
	})
}
