package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	apiContext "shortr/internal/api/context"
	"shortr/internal/api/handlers"
	"shortr/internal/api/middleware"
	"shortr/internal/pkg/errors"
)

type Dependencies struct {
	LinkHandler     *handlers.LinkHandler
	RedirectHandler *handlers.RedirectHandler
	HealthHandler   *handlers.HealthHandler
	// MetricsHandler is optional; /metrics is not routed when nil.
	MetricsHandler *handlers.MetricsHandler
	// RateLimit is optional; routes are unguarded when nil.
	RateLimit  *middleware.RateLimitMiddleware
	APIVersion string
}

func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()
	router.NotFound = http.HandlerFunc(notFound)
	router.MethodNotAllowed = http.HandlerFunc(methodNotAllowed)
	router.PanicHandler = recoverPanic

	guard := []func(http.HandlerFunc) http.HandlerFunc{requireVersion(deps.APIVersion)}
	if deps.RateLimit != nil {
		guard = append(guard, deps.RateLimit.Handle)
	}
	route := func(name string) []func(http.HandlerFunc) http.HandlerFunc {
		return append([]func(http.HandlerFunc) http.HandlerFunc{middleware.Instrument(name)}, guard...)
	}

	// Shortener
	router.POST("/urls/:version/shorten",
		chain(deps.LinkHandler.Shorten, route("shorten")...))
	router.GET("/urls/:version/go/:code",
		chain(deps.RedirectHandler.Handle, route("redirect")...))
	router.GET("/urls/:version/qr/:code",
		chain(deps.RedirectHandler.QRCode, route("qr")...))

	// Operations
	router.GET("/health", chain(deps.HealthHandler.Check, middleware.Instrument("health")))
	if deps.MetricsHandler != nil {
		router.GET("/metrics", wrap(deps.MetricsHandler.Export))
	}

	return middleware.RequestLogger(router)
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

// requireVersion rejects paths whose version segment is not the one served.
func requireVersion(version string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ps, _ := r.Context().Value(apiContext.Params).(httprouter.Params)
			if ps.ByName("version") != version {
				errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Unknown API version", nil)
				return
			}
			next(w, r)
		}
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Route not found", nil)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	errors.WriteError(w, http.StatusMethodNotAllowed, errors.ErrCodeInvalidInput, "Method not allowed", nil)
}

func recoverPanic(w http.ResponseWriter, r *http.Request, v interface{}) {
	zerolog.Ctx(r.Context()).Error().Interface("panic", v).Str("path", r.URL.Path).Msg("handler panicked")
	errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Internal server error", nil)
}
