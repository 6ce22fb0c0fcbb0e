package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/boozedog/corsserve/internal/config"
	"github.com/boozedog/corsserve/internal/web/middleware"
	"github.com/boozedog/corsserve/internal/web/reload"
	"github.com/boozedog/corsserve/internal/web/static"
)

// Server serves a site directory with permissive CORS headers.
type Server struct {
	cfg  *config.Config
	root string
	srv  *http.Server
}

// NewServer creates a server for the site directory root.
func NewServer(cfg *config.Config, root string) *Server {
	return &Server{
		cfg:  cfg,
		root: root,
	}
}

// Handler builds the request handler. The returned cleanup func releases
// the live-reload watcher, if one was started. Handler fails when the
// watcher cannot cover the site root, so callers build it before announcing
// the server.
func (s *Server) Handler(ctx context.Context) (http.Handler, func(), error) {
	cleanup := func() {}

	mux := http.NewServeMux()
	mux.Handle("/", static.New(s.root))

	if s.cfg.Reload.Enabled {
		broker := reload.NewBroker()
		watcher, err := reload.NewWatcher(s.root, s.cfg.Reload.Debounce.Duration, broker)
		if err != nil {
			return nil, nil, fmt.Errorf("watch site: %w", err)
		}
		cleanup = func() { _ = watcher.Close() }
		mux.Handle("GET "+reload.Path, reload.NewHandler(broker, 15*time.Second))
		slog.Info("live reload enabled", "path", reload.Path)
	}

	mw := []func(http.Handler) http.Handler{
		middleware.AccessLog(slog.Default()),
		middleware.CORS(),
	}
	if rl := s.cfg.RateLimit; rl.Rate > 0 {
		mw = append(mw, middleware.RateLimit(ctx, middleware.NewRateLimitConfig(rl.Rate, rl.Burst, reload.Path)))
	}

	return middleware.Chain(mux, mw...), cleanup, nil
}

// Serve handles connections on ln with handler until ctx is cancelled, then
// shuts down and returns once in-flight requests have finished or 5s have
// passed. It also returns, after the same shutdown, if accepting fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.srv = &http.Server{
		Handler: handler,
		// Request contexts derive from ctx so that live-reload streams end
		// when the server stops.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		slog.Debug("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	slog.Debug("serving", "root", s.root, "addr", ln.Addr().String())
	err := s.srv.Serve(ln)
	cancel()
	<-stopped
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
