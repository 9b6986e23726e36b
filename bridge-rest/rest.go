// Package bridgerest provides the HTTP plumbing shared by the
// hydrobridge server: CORS and logging middleware, JSON response
// helpers, and static asset mounting for the dashboard.
package bridgerest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	bridgecli "github.com/hydrotel/hydrobridge/bridge-cli"
)

func Middlewares(service bridgecli.Service, routes chi.Router) chi.Router {
	routes.Use(
		withCORS(),
		withLogger(bridgecli.Logger(service)),
		middleware.Recoverer,
	)
	return routes
}

// Webserver listens until the context is cancelled, then drains
// in-flight requests before returning.
func Webserver(ctx context.Context, service bridgecli.Service, routes chi.Router) error {
	logger := bridgecli.Logger(service)
	logger.Info().Int("port", bridgecli.CommonOpts.Port).Msg("starting http server")

	server := &http.Server{
		Addr:    fmt.Sprintf(":%v", bridgecli.CommonOpts.Port),
		Handler: routes,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("http shutdown")
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Static mounts a directory of assets under the given path prefix. The
// dashboard UI is an external collaborator; the bridge only serves it.
func Static(routes chi.Router, prefix, dir string) {
	if dir == "" {
		return
	}
	fileServer := http.FileServer(http.Dir(dir))
	if prefix == "/" {
		routes.Handle("/*", fileServer)
		return
	}
	routes.Handle(prefix+"/*", http.StripPrefix(prefix, fileServer))
}

// JSON writes a JSON response body with the given status code.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Headers are already written; an encode failure here is unrecoverable.
	_ = json.NewEncoder(w).Encode(body)
}

// Error writes the {"error": ...} shape the dashboard expects.
func Error(w http.ResponseWriter, status int, err error) {
	JSON(w, status, map[string]string{"error": err.Error()})
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context())
			req = req.WithContext(ctx)
			handler.ServeHTTP(w, req)
		})
	}
}
