// Package server exposes the part catalog over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harshithgowdakt/widepart/internal/logging"
	"github.com/harshithgowdakt/widepart/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Server is the widepart admin HTTP server.
type Server struct {
	addr     string
	handler  http.Handler
	requests *prometheus.CounterVec
}

// NewServer creates a server for db. Storage and HTTP metrics are
// registered with reg.
func NewServer(db *storage.Database, addr string, reg *prometheus.Registry, caches Caches) (*Server, error) {
	if err := storage.RegisterMetrics(reg); err != nil {
		return nil, err
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "widepart_http_requests_total",
		Help: "Admin API requests by method and status code.",
	}, []string{"method", "code"})
	if err := reg.Register(requests); err != nil {
		return nil, err
	}
	s := &Server{addr: addr, requests: requests}
	s.handler = s.instrument(NewHandler(db, reg, caches))
	return s, nil
}

// Handler returns the instrumented HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	log := logging.With("server")
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("admin server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("admin server stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	log := logging.With("server")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.requests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}
