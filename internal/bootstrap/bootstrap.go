// Package bootstrap owns the composition root: it creates the one container
// the application uses, seeds the core services, runs explicit service
// providers, and verifies the result against a service checklist before the
// bring-up pipeline starts.
package bootstrap

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"verdant-core/internal/config"
	"verdant-core/internal/container"
	apperrors "verdant-core/internal/errors"
	"verdant-core/internal/observability"
	"verdant-core/internal/services"
)

// ServiceProvider is the explicit wiring hook. Providers are opt-in: only
// those handed to the bootstrapper run, in the order given. Nothing is
// discovered reflectively.
type ServiceProvider interface {
	Name() string
	Provide(c *container.Container) error
}

// ProviderFunc adapts a function into a ServiceProvider.
type ProviderFunc struct {
	ProviderName string
	Fn           func(c *container.Container) error
}

func (p ProviderFunc) Name() string                         { return p.ProviderName }
func (p ProviderFunc) Provide(c *container.Container) error { return p.Fn(c) }

// ChecklistItem names one service the application expects to be resolvable
// after bootstrap. Critical items gate overall health.
type ChecklistItem struct {
	Capability reflect.Type
	Name       string
	Critical   bool
}

// Check builds a checklist item for capability T.
func Check[T any](name string, critical bool) ChecklistItem {
	return ChecklistItem{Capability: container.TypeOf[T](), Name: name, Critical: critical}
}

// Bootstrapper assembles and verifies the application container.
type Bootstrapper struct {
	logger    *zap.Logger
	cfg       *config.Config
	collector *observability.Collector
	seeds     []func(*container.Container) error
	providers []ServiceProvider
	checklist []ChecklistItem
}

// New creates a bootstrapper for the given configuration.
func New(cfg *config.Config, logger *zap.Logger) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrapper{logger: logger, cfg: cfg}
}

// WithCollector attaches container events to prometheus counters.
func (b *Bootstrapper) WithCollector(collector *observability.Collector) *Bootstrapper {
	b.collector = collector
	return b
}

// PreRegister runs before core seeding, letting the application bind its own
// implementation of a core service; seeding then skips that type.
func (b *Bootstrapper) PreRegister(fn func(*container.Container) error) *Bootstrapper {
	b.seeds = append(b.seeds, fn)
	return b
}

// AddProvider appends an explicit wiring step.
func (b *Bootstrapper) AddProvider(p ServiceProvider) *Bootstrapper {
	b.providers = append(b.providers, p)
	return b
}

// AddChecklist appends items verified after all providers have run.
func (b *Bootstrapper) AddChecklist(items ...ChecklistItem) *Bootstrapper {
	b.checklist = append(b.checklist, items...)
	return b
}

// Bootstrap builds the container, seeds core services, runs providers, and
// evaluates the checklist. A critical report never aborts bootstrap on its
// own; callers read report.Overall and decide. The error is non-nil only for
// seed or provider failures and cancellation.
func (b *Bootstrapper) Bootstrap(ctx context.Context) (*container.Container, *HealthReport, error) {
	c := container.New(
		container.WithLogger(b.logger),
		container.WithDuplicatePolicy(b.cfg.Container.DuplicatePolicy),
		container.WithEvents(b.cfg.Container.EmitEvents),
	)
	if b.collector != nil {
		attachMetrics(c, b.collector)
	}

	for _, seed := range b.seeds {
		if err := seed(c); err != nil {
			return c, nil, apperrors.Wrap(err, "pre-registration failed")
		}
	}

	if err := b.registerCoreServices(c); err != nil {
		return c, nil, err
	}

	for _, p := range b.providers {
		if err := ctx.Err(); err != nil {
			return c, nil, apperrors.Wrap(err, "bootstrap interrupted")
		}
		if err := p.Provide(c); err != nil {
			return c, nil, apperrors.Wrap(err, fmt.Sprintf("service provider %q failed", p.Name()))
		}
		b.logger.Debug("service provider applied", zap.String("provider", p.Name()))
	}

	report := b.evaluateChecklist(c)
	b.logReport(report)
	return c, report, nil
}

// attachMetrics mirrors container events into prometheus counters.
func attachMetrics(c *container.Container, collector *observability.Collector) {
	c.OnRegistered(func(ev container.Event) {
		collector.Registrations.WithLabelValues(string(ev.Lifetime)).Inc()
	})
	c.OnResolved(func(ev container.Event) {
		collector.Resolutions.WithLabelValues(string(ev.Lifetime)).Inc()
	})
	c.OnResolutionFailed(func(container.Event) {
		collector.ResolutionFailures.Inc()
	})
}

// registerCoreServices seeds the always-available services, skipping any the
// application pre-registered itself.
func (b *Bootstrapper) registerCoreServices(c *container.Container) error {
	if !container.IsRegistered[*config.Config](c) {
		if err := container.RegisterSingletonInstance(c, b.cfg); err != nil {
			return err
		}
	}
	if !container.IsRegistered[*zap.Logger](c) {
		if err := container.RegisterSingletonInstance(c, b.logger); err != nil {
			return err
		}
	}
	if !container.IsRegistered[services.Clock](c) {
		if err := container.RegisterSingleton(c, func() services.Clock { return services.NewClock() }); err != nil {
			return err
		}
	}
	if !container.IsRegistered[*services.EventBus](c) {
		if err := container.RegisterSingleton(c, func() *services.EventBus {
			return services.NewEventBus(b.logger)
		}); err != nil {
			return err
		}
	}
	if !container.IsRegistered[*services.Settings](c) {
		if err := container.RegisterSingleton(c, func() *services.Settings {
			return services.NewSettings(nil)
		}); err != nil {
			return err
		}
	}
	if !container.IsRegistered[*services.SnapshotStore](c) {
		dir := b.cfg.Persistence.SnapshotDir
		if err := container.RegisterSingletonFactory(c, func(*container.Container) (*services.SnapshotStore, error) {
			return services.NewSnapshotStore(dir, b.logger)
		}); err != nil {
			return err
		}
	}
	return nil
}
