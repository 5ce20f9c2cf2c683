package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/aicmo-cam/internal/pkg/httputil"
)

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(recoverJSON)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.HandleHealth)
	r.Get("/health/live", s.HandleLiveness)
	r.Get("/health/ready", s.HandleReadiness)
	r.Get("/status", s.HandleStatus)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.Error(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path)
	})
	return r
}

// recoverJSON answers a panicking handler with the JSON 500 envelope.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			httputil.InternalError(w, fmt.Errorf("panic serving %s %s: %v", r.Method, r.URL.Path, rec))
		}()
		next.ServeHTTP(w, r)
	})
}
