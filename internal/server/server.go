// Package server exposes completion, parsing and highlighting over an HTTP
// JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/sqlgrammar/pkg/dialect"
	"golang.org/x/sync/errgroup"
)

// LoadFunc builds a fresh dialect registry.
type LoadFunc func(ctx context.Context) (*dialect.Registry, error)

// Config holds configuration for the server.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	// Dialect is used by requests that name none.
	Dialect string
	// Branches are merged into every request's branches.
	Branches []string
	// Load builds the registry at startup and on every reload.
	Load LoadFunc
	// WatchDirs are grammar directories whose changes trigger a reload.
	WatchDirs []string
	Logger    *slog.Logger
}

// Server serves the API over a registry that can be swapped at runtime.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	registry atomic.Pointer[dialect.Registry]
	gen      atomic.Uint64
	notifier *Notifier
}

// New creates a server and loads its registry.
func New(ctx context.Context, cfg Config) (*Server, error) {
	if cfg.Load == nil {
		return nil, errors.New("server: no registry loader")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{cfg: cfg, logger: logger, notifier: NewNotifier()}
	reg, err := cfg.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.registry.Store(reg)
	return s, nil
}

// Registry returns the current registry.
func (s *Server) Registry() *dialect.Registry { return s.registry.Load() }

// Generation counts successful reloads.
func (s *Server) Generation() uint64 { return s.gen.Load() }

// Notifier returns the reload notifier.
func (s *Server) Notifier() *Notifier { return s.notifier }

// Reload rebuilds the registry. On failure the current registry stays in
// service.
func (s *Server) Reload(ctx context.Context) error {
	reg, err := s.cfg.Load(ctx)
	if err != nil {
		s.logger.Error("grammar reload failed", slog.Any("error", err))
		return err
	}
	s.registry.Store(reg)
	gen := s.gen.Add(1)
	s.logger.Info("grammars reloaded", slog.Uint64("generation", gen), slog.Int("dialects", len(reg.List())))
	s.notifier.Broadcast(gen)
	return nil
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.logRequests,
		middleware.Recoverer,
	)
	s.routes(r)
	return r
}

// Serve starts the server and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, lis)
}

// ServeListener serves on lis until ctx is cancelled.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	s.logger.Info("starting server", slog.String("addr", lis.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if len(s.cfg.WatchDirs) > 0 {
		eg.Go(func() error {
			return s.watch(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
