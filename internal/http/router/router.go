package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/craftauth/yggdrasil/internal/http/handler"
	"github.com/craftauth/yggdrasil/internal/http/middleware"
	"github.com/craftauth/yggdrasil/internal/http/response"
)

type Dependencies struct {
	AuthHandler    *handler.AuthHandler
	SessionHandler *handler.SessionHandler
	MetaHandler    *handler.MetaHandler

	// AuthRateLimit applies to credential-bearing authserver endpoints;
	// APIRateLimit covers everything else.
	AuthRateLimitInterval  time.Duration
	AuthRateLimitThreshold int
	APIRateLimitInterval   time.Duration
	APIRateLimitThreshold  int

	// Readiness reports whether backing stores are reachable. Nil means
	// always ready.
	Readiness func(ctx context.Context) error

	EnableOTelHTTP bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))
	r.Use(middleware.NewRateLimiter(dep.APIRateLimitInterval, dep.APIRateLimitThreshold, "api").Middleware())

	authLimiter := middleware.NewRateLimiter(dep.AuthRateLimitInterval, dep.AuthRateLimitThreshold, "auth").Middleware()

	r.Get("/", dep.MetaHandler.Home)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness != nil {
			if err := dep.Readiness(r.Context()); err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, response.ErrorInternal, "dependencies are not ready")
				return
			}
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/authserver", func(r chi.Router) {
		r.With(authLimiter).Post("/authenticate", dep.AuthHandler.Authenticate)
		r.With(authLimiter).Post("/refresh", dep.AuthHandler.Refresh)
		r.Post("/validate", dep.AuthHandler.Validate)
		r.Post("/invalidate", dep.AuthHandler.Invalidate)
		r.With(authLimiter).Post("/signout", dep.AuthHandler.Signout)
		r.With(authLimiter).Post("/register", dep.AuthHandler.Register)
		r.With(authLimiter).Post("/verify", dep.AuthHandler.Verify)
	})

	r.Route("/sessionserver/session/minecraft", func(r chi.Router) {
		r.Post("/join", dep.SessionHandler.Join)
		r.Get("/hasJoined", dep.SessionHandler.HasJoined)
		r.Get("/profile/{uuid}", dep.SessionHandler.Profile)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
