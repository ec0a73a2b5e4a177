// Package server runs the development server: it serves the build output,
// rebuilds on source changes, and pushes live-reload notifications to
// connected browsers.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/nitrosh/nitro-cli/internal/config"
	"github.com/nitrosh/nitro-cli/internal/metrics"
	"github.com/nitrosh/nitro-cli/internal/watch"
)

// BuildFunc performs one (incremental) build of the project.
type BuildFunc func(ctx context.Context) error

// Options configures the development server.
type Options struct {
	Config      *config.Config
	ProjectRoot string
	OutputDir   string
	Rebuild     BuildFunc
	Registry    *prom.Registry
	Logger      *slog.Logger
}

// DevServer serves the output tree with live reload and change-triggered
// rebuilds.
type DevServer struct {
	opts   Options
	hub    *Hub
	logger *slog.Logger
	http   *http.Server
}

// New creates a development server.
func New(opts Options) *DevServer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = opts.Config.OutputDir(opts.ProjectRoot)
	}
	return &DevServer{
		opts:   opts,
		hub:    NewHub(opts.Logger),
		logger: opts.Logger,
	}
}

// Run builds once, then serves until the context is canceled.
func (s *DevServer) Run(ctx context.Context) error {
	cfg := s.opts.Config

	if err := s.opts.Rebuild(ctx); err != nil {
		return fmt.Errorf("initial build: %w", err)
	}

	watcher, err := s.startWatcher(ctx)
	if err != nil {
		return err
	}
	defer watcher.Close()

	scheduler, err := s.startPeriodicRebuild(ctx)
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() { _ = scheduler.Shutdown() }()
	}

	addr := net.JoinHostPort(cfg.DevServer.Host, fmt.Sprintf("%d", cfg.DevServer.Port))
	s.http = &http.Server{Addr: addr, Handler: s.handler()}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Development server listening", "addr", "http://"+addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *DevServer) startWatcher(ctx context.Context) (*watch.Watcher, error) {
	// Only the source tree is watched; watching the project root would loop
	// on our own writes to the build directory.
	sourceRoot := filepath.Join(s.opts.ProjectRoot, s.opts.Config.SourceDir)
	watcher, err := watch.New([]string{sourceRoot}, watch.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	watcher.Start(ctx)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case batch, ok := <-watcher.Changes():
				if !ok {
					return
				}
				s.logger.Info("Source changed, rebuilding", "files", len(batch))
				s.rebuildAndNotify(ctx)
			}
		}
	}()
	return watcher, nil
}

func (s *DevServer) startPeriodicRebuild(ctx context.Context) (gocron.Scheduler, error) {
	interval := s.opts.Config.DevServer.RebuildInterval
	if interval == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("parse rebuild_interval %q: %w", interval, err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create rebuild scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(d),
		gocron.NewTask(func() {
			s.logger.Info("Periodic rebuild")
			s.rebuildAndNotify(ctx)
		}),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule periodic rebuild: %w", err)
	}
	scheduler.Start()
	return scheduler, nil
}

func (s *DevServer) rebuildAndNotify(ctx context.Context) {
	if err := s.opts.Rebuild(ctx); err != nil {
		s.logger.Error("Rebuild failed", "error", err)
		return
	}
	s.hub.Broadcast()
}

func (s *DevServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(LiveReloadPath, s.hub)
	if s.opts.Config.DevServer.Metrics && s.opts.Registry != nil {
		mux.Handle("/metrics", metrics.HTTPHandler(s.opts.Registry))
	}
	mux.HandleFunc("/", s.serveFile)
	return mux
}

// serveFile maps request paths onto the output tree: directories resolve to
// index.html, and HTML responses get the live-reload snippet when enabled.
func (s *DevServer) serveFile(w http.ResponseWriter, r *http.Request) {
	urlPath := filepath.Clean("/" + r.URL.Path)
	fsPath := filepath.Join(s.opts.OutputDir, filepath.FromSlash(strings.TrimPrefix(urlPath, "/")))

	info, err := os.Stat(fsPath)
	if err == nil && info.IsDir() {
		fsPath = filepath.Join(fsPath, "index.html")
		_, err = os.Stat(fsPath)
	}
	if err != nil {
		s.serveNotFound(w)
		return
	}

	if !strings.HasSuffix(fsPath, ".html") {
		http.ServeFile(w, r, fsPath)
		return
	}

	data, err := os.ReadFile(fsPath)
	if err != nil {
		s.serveNotFound(w)
		return
	}
	if s.opts.Config.DevServer.LiveReloadEnabled() {
		data = injectReloadSnippet(data)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (s *DevServer) serveNotFound(w http.ResponseWriter) {
	custom := filepath.Join(s.opts.OutputDir, "404", "index.html")
	if data, err := os.ReadFile(custom); err == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write(data)
		return
	}
	http.Error(w, "404 page not found", http.StatusNotFound)
}
