// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/outliner/internal/api"
	"github.com/starford/outliner/internal/apperr"
	"github.com/starford/outliner/internal/mcpserver"
	"github.com/starford/outliner/internal/persist"
	"github.com/starford/outliner/internal/recovery"
	"github.com/starford/outliner/internal/session"
	"github.com/starford/outliner/internal/sse"
	"github.com/starford/outliner/internal/storage"
	"github.com/starford/outliner/internal/watch"
	"github.com/starford/outliner/internal/writechan"
)

// runtime is the wired editor core shared by every command.
type runtime struct {
	cfg     *Config
	logger  *slog.Logger
	owned   *storage.FS
	slot    *recovery.Store
	worker  *writechan.Worker
	client  *writechan.Client
	sess    *session.Session
	coord   *persist.Coordinator
	extPath string
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// boot wires storage, the recovery slot, the write channel and the
// coordinator, then loads the first available document. hooks may carry a
// notifier and an edit observer; focus and discard handling are filled in.
func boot(ctx context.Context, app *application, hooks persist.Hooks) (*runtime, error) {
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("workspace_path", cfg.Workspace.Path),
		slog.String("owned_name", cfg.Workspace.OwnedName),
		slog.String("recovery_path", cfg.Recovery.Path),
		slog.String("platform", cfg.Workspace.Platform),
		slog.String("log_level", cfg.App.LogLevel.String()))

	owned, err := storage.NewFS(cfg.Workspace.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	slot, err := recovery.Open(cfg.Recovery.Path, cfg.Recovery.Quota)
	if err != nil {
		return nil, fmt.Errorf("init recovery: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, owned: owned, slot: slot}
	rt.worker = writechan.NewWorker(owned, logger)
	rt.client = writechan.NewClient(rt.worker, cfg.Channel.WriteTimeout, logger)

	// The session is the coordinator's focus keeper, so it exists first and
	// is bound once the coordinator is built.
	rt.sess = session.New(nil)
	hooks.Focus = rt.sess
	hooks.ConfirmDiscard = func(reason string) bool {
		logger.Warn("discarding unsaved changes", slog.String("reason", reason))
		return true
	}
	rt.coord = persist.NewCoordinator(owned, rt.client,
		persist.WithSettings(cfg.Settings()),
		persist.WithRecovery(slot),
		persist.WithHooks(hooks),
		persist.WithLogger(logger))
	rt.sess.Bind(rt.coord)

	if err := rt.coord.Startup(ctx); err != nil {
		rt.close()
		return nil, fmt.Errorf("startup: %w", err)
	}

	if cfg.Workspace.Open != "" {
		h, err := storage.OpenLocal(cfg.Workspace.Open, app.prompt)
		if err != nil {
			rt.close()
			return nil, err
		}
		if err := rt.coord.OpenExternal(ctx, h); err != nil {
			rt.close()
			return nil, fmt.Errorf("open %s: %w", cfg.Workspace.Open, err)
		}
		rt.extPath = h.Path()
	}

	st := rt.coord.State()
	logger.Info("Outline ready",
		slog.String("origin", st.Origin.String()),
		slog.String("name", st.Name),
		slog.Int("nodes", rt.sess.Document().Len()))
	return rt, nil
}

// watchExternal reloads the external file when another program changes it.
// onReload runs after a successful reload.
func (rt *runtime) watchExternal(ctx context.Context, onReload func()) error {
	return watch.Watch(ctx, rt.extPath, watch.DefaultDebounce, rt.logger, func(kind watch.Kind, path string) {
		if kind == watch.Removed {
			rt.logger.Warn("external file removed", slog.String("path", path))
			return
		}
		err := rt.coord.ExternalChanged(ctx)
		switch {
		case err == nil:
			if onReload != nil {
				onReload()
			}
		case errors.Is(err, apperr.ErrConflict):
			rt.logger.Warn("external file changed with unsaved edits", slog.String("path", path))
		default:
			rt.logger.Error("external reload failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	})
}

// close gives a dirty owned-store document one last quiet save, then stops
// autosave and the write channel and closes the recovery store.
func (rt *runtime) close() {
	if rt.coord != nil {
		if p := rt.coord.QuietSave(); p != nil {
			ctx, cancel := context.WithTimeout(context.Background(), rt.cfg.Channel.WriteTimeout)
			_, _ = p.Wait(ctx)
			cancel()
		}
		rt.coord.Close()
	}
	if rt.client != nil {
		rt.client.Close()
	}
	if rt.worker != nil {
		rt.worker.Close()
	}
	if err := rt.slot.Close(); err != nil {
		rt.logger.Warn("recovery close failed", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	rt, err := boot(ctx, app, persist.Hooks{Notify: broker, Observe: broker.PublishChange})
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	// Exports share the workspace root with the owned store.
	apiRouter := api.NewRouter(rt.sess, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, rt.owned, cfg.Workspace.ExportDir)

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
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if rt.coord.Loading() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gCtx)
	defer stopWatch()

	// Follow the external file, if one is open.
	if rt.extPath != "" && cfg.Workspace.Watch {
		g.Go(func() error {
			return rt.watchExternal(watchCtx, func() {
				broker.Publish(sse.Event{Type: sse.TypeOutline, Data: rt.coord.State()})
			})
		})
	}

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		stopWatch()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the outline over MCP on stdin/stdout. Logs go to stderr
// unless another output was configured.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	rt, err := boot(ctx, app, persist.Hooks{})
	if err != nil {
		return err
	}
	defer rt.close()

	g, gCtx := errgroup.WithContext(ctx)
	watchCtx, stopWatch := context.WithCancel(gCtx)
	defer stopWatch()

	if rt.extPath != "" && app.config.Workspace.Watch {
		g.Go(func() error {
			return rt.watchExternal(watchCtx, nil)
		})
	}
	g.Go(func() error {
		// The watcher has nothing to report to once stdio ends.
		defer stopWatch()
		err := mcpserver.New(rt.sess).ServeStdio()
		rt.logger.Info("MCP session ended")
		return err
	})
	return g.Wait()
}
