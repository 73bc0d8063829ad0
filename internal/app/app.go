// Package app wires the admin server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vpecom/shop-admin/internal/domain/catalog"
	"github.com/vpecom/shop-admin/internal/handler"
	"github.com/vpecom/shop-admin/internal/session"
	"github.com/vpecom/shop-admin/pkg/health"
	"github.com/vpecom/shop-admin/pkg/httpmiddleware"
	"github.com/vpecom/shop-admin/web"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the admin server.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.Backend),
		zap.String("session_file", cfg.SessionFile),
	)

	sessions := session.NewStore(cfg.SessionFile)
	backend, err := NewBackend(cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}

	healthSvc := health.New(health.WithLogger(lg.Named("health")))
	healthSvc.Register(health.Check{
		Name:    "repository",
		Kind:    health.Readiness,
		Timeout: cfg.GitHub.ReadTimeout,
		Func:    health.WhenEnabled(sessions.Configured, repositoryCheck(sessions, backend)),
	})
	healthSvc.Register(health.Check{
		Name:    "goroutines",
		Kind:    health.Liveness,
		Timeout: time.Second,
		Func:    health.GoroutineLimit(10000),
	})
	healthSvc.Start(ctx, time.Minute)
	healthSvc.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		// Bulk uploads make several throttled GitHub writes in one request.
		WriteTimeout:   5 * time.Minute,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: NewHTTPHandler(zctx.From(ctx), cfg, Deps{
			Sessions:       sessions,
			Backend:        backend,
			Health:         healthSvc,
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		}),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// Deps are the collaborators of the HTTP handler.
type Deps struct {
	Sessions       *session.Store
	Backend        handler.Backend
	Health         *health.Health
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// NewHTTPHandler mounts the health probes and the admin routes behind the
// middleware chain.
func NewHTTPHandler(lg *zap.Logger, cfg *Config, deps Deps) http.Handler {
	h := handler.NewHandler(
		handler.HandlerConfig{
			RawHost:        cfg.GitHub.RawHost,
			Branch:         cfg.GitHub.Branch,
			UploadThrottle: cfg.GitHub.UploadDelay,
		},
		deps.Sessions,
		deps.Backend,
		catalog.NewIDClock(time.Now),
		web.Pages,
	)

	mux := http.NewServeMux()
	deps.Health.Mount(mux)
	h.Register(mux)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument("shop-admin", deps.TracerProvider, deps.MeterProvider),
		httpmiddleware.LogRequests(),
	)
}

func repositoryCheck(sessions *session.Store, backend handler.Backend) health.CheckFunc {
	return func(ctx context.Context) error {
		conn, err := sessions.Load()
		if err != nil {
			return err
		}
		store, err := backend(conn)
		if err != nil {
			return err
		}
		return store.Check(ctx)
	}
}
