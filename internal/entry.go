// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/arbor/internal/api"
	"github.com/starford/arbor/internal/catalog"
	"github.com/starford/arbor/internal/mcpserver"
	"github.com/starford/arbor/internal/seed"
)

func setup(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	// Initialize structured JSON logger.
	logger := newLogger(app.logOutput, app.config.App.LogLevel)
	slog.SetDefault(logger)
	return app, logger, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Run starts the replica's HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := setup(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("replica_id", cfg.Replica.ID),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rep, err := newReplica(cfg, logger)
	if err != nil {
		return err
	}
	defer rep.close()

	if err := rep.load(ctx); err != nil {
		return err
	}

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := rep.svc.Stats(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api; the event stream lives at /api/events.
	r.Mount("/api", api.NewRouter(rep.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rep.broker))

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	rep.receive(gCtx, g)

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE handlers only return once the broker closes.
		rep.broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the spool watcher and peer followers.
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP exposes the replica's index as MCP tools over stdio. Inbound
// transports keep running so the tools see other replicas' changes.
func ServeMCP(ctx context.Context, version string, opts ...Option) error {
	app, logger, err := setup(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	rep, err := newReplica(app.config, logger)
	if err != nil {
		return err
	}
	defer rep.close()

	if err := rep.load(ctx); err != nil {
		return err
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	rep.receive(gCtx, g)

	g.Go(func() error {
		defer stop()
		logger.Info("Serving MCP over stdio", slog.String("replica_id", app.config.Replica.ID))
		return mcpserver.New(rep.svc, version).ServeStdio()
	})

	return g.Wait()
}

// Seed loads a YAML fixture into the configured catalog. Running replicas
// pick the records up on their next start.
func Seed(ctx context.Context, path string, opts ...Option) (seed.Stats, error) {
	app, logger, err := setup(opts)
	if err != nil {
		return seed.Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return seed.Stats{}, err
	}

	db, err := catalog.Open(app.config.SQLite.Path)
	if err != nil {
		return seed.Stats{}, fmt.Errorf("init catalog: %w", err)
	}
	defer db.Close()

	st, err := seed.LoadFile(db, path)
	if err != nil {
		return st, err
	}
	logger.Info("catalog seeded",
		slog.String("file", path),
		slog.Int("records", st.Records),
		slog.Int("keywords", st.Keywords),
		slog.Int("examples", st.Examples),
	)
	return st, nil
}
