// Command simhost runs the simulation service host: it loads configuration,
// bootstraps the service container, brings the registered managers up
// through the phased orchestrator, and serves health and report endpoints
// until shutdown.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"verdant-core/internal/bootstrap"
	"verdant-core/internal/config"
	"verdant-core/internal/container"
	"verdant-core/internal/lifecycle"
	"verdant-core/internal/locator"
	"verdant-core/internal/observability"
	"verdant-core/internal/services"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("simhost: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := observability.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := observability.NewCollector(cfg.Metrics.Namespace)

	var tracerProvider *observability.TracerProvider
	if cfg.Tracing.Enabled {
		tracerProvider, err = observability.InitTracing(ctx, cfg)
		if err != nil {
			return fmt.Errorf("initializing tracing: %w", err)
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	// Composition root: one container for the whole process.
	busMgr := services.NewEventBusManager(services.NewEventBus(logger))
	settingsMgr := services.NewSettingsManager(services.NewSettings(nil))
	persistMgr := services.NewPersistenceManager(cfg.Persistence.SnapshotDir)

	b := bootstrap.New(cfg, logger).WithCollector(collector)
	b.PreRegister(func(c *container.Container) error {
		if err := container.RegisterSingletonInstance(c, busMgr.Bus()); err != nil {
			return err
		}
		return container.RegisterSingletonInstance(c, settingsMgr.Settings())
	})
	b.AddProvider(bootstrap.ProviderFunc{ProviderName: "observability", Fn: func(c *container.Container) error {
		return container.RegisterSingletonInstance(c, collector)
	}})
	b.AddChecklist(
		bootstrap.Check[*services.EventBus]("event-bus", true),
		bootstrap.Check[*services.Settings]("settings", true),
		bootstrap.Check[*services.SnapshotStore]("snapshot-store", true),
		bootstrap.Check[services.Clock]("clock", false),
	)

	c, report, err := b.Bootstrap(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer c.Dispose()
	if report.Overall == bootstrap.OverallCritical {
		return fmt.Errorf("bootstrap checklist critical: %d service(s) missing", report.CriticalFailures)
	}

	// Make the locator façade mirror the container-held services for code
	// that reaches for ambient lookup.
	loc := locator.New(locator.Options{
		Logger:           logger,
		Collector:        collector,
		CachingEnabled:   cfg.Locator.EnableCaching,
		DiscoveryEnabled: cfg.Locator.EnableAutoDiscovery,
		Breaker:          cfg.Locator.Breaker,
	})
	locator.SetDefault(loc)
	locator.Register(loc, busMgr.Bus())
	locator.Register(loc, settingsMgr.Settings())

	orch := lifecycle.NewOrchestrator(lifecycle.OrchestratorOptions{
		Logger: logger,
		Config: cfg.Orchestrator,
		Discovery: lifecycle.NewDiscoveryService(logger, lifecycle.SliceSource{
			busMgr, settingsMgr, persistMgr,
		}),
		Validator: lifecycle.NewValidationService(logger, c, cfg.Orchestrator.AttemptServiceRecovery),
		Collector: collector,
		Tracer:    tracerFrom(tracerProvider),
	})

	result, err := orch.Initialize(ctx)
	if err != nil {
		return fmt.Errorf("bring-up failed: %w", err)
	}
	logger.Info("simulation host running",
		zap.String("run_id", result.RunID),
		zap.Int("managers", result.InitializedManagers))

	// Dev-only config hot reload.
	if cfg.IsDevelopment() {
		watcher, werr := config.NewWatcher(cfg, logger)
		if werr != nil {
			logger.Warn("config watcher unavailable", zap.Error(werr))
		} else {
			watcher.OnChange(func(next *config.Config) {
				logger.Info("configuration reloaded",
					zap.String("environment", string(next.Environment)))
			})
			defer watcher.Stop()
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      buildRouter(cfg, logger, collector, orch, report),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("manager shutdown reported errors", zap.Error(err))
	}
	return nil
}

func tracerFrom(tp *observability.TracerProvider) trace.Tracer {
	if tp == nil {
		return nil
	}
	return tp.Tracer()
}

func buildRouter(cfg *config.Config, logger *zap.Logger, collector *observability.Collector, orch *lifecycle.Orchestrator, report *bootstrap.HealthReport) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		state := orch.State()
		code := http.StatusServiceUnavailable
		if state == lifecycle.StateRunning {
			code = http.StatusOK
		}
		writeJSON(w, code, map[string]string{"state": state.String()})
	})

	r.Get("/report", func(w http.ResponseWriter, _ *http.Request) {
		payload := map[string]any{
			"bootstrap": report,
			"state":     orch.State().String(),
		}
		if result := orch.Result(); result != nil {
			payload["bringUp"] = map[string]any{
				"runId":       result.RunID,
				"success":     result.Success,
				"initialized": result.InitializedManagers,
				"failed":      result.FailedManagers,
				"elapsedMs":   result.Elapsed.Milliseconds(),
			}
		}
		writeJSON(w, http.StatusOK, payload)
	})

	if cfg.Metrics.Enabled {
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
