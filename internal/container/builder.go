package container

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	coreerrors "verdant-core/internal/errors"
)

// Module is a cohesive bundle of related registrations. ConfigureServices
// runs for every module before any module's Initialize, so modules may depend
// on bindings created by sibling modules without ordering fragility.
type Module interface {
	Name() string
	ConfigureServices(c *Container) error
	Initialize(ctx context.Context, c *Container) error
}

// Builder is a fluent configuration accumulator. Each Add call appends a
// closure describing one registration action; nothing touches the target
// container until Build.
type Builder struct {
	logger            *zap.Logger
	actions           []func(*Container) error
	modules           []Module
	validations       []func(*Container) error
	moduleInitTimeout time.Duration
}

// NewBuilder creates a builder. The module initialization timeout is
// enforced during Build; zero means the default of 30 seconds.
func NewBuilder(logger *zap.Logger, moduleInitTimeout time.Duration) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if moduleInitTimeout <= 0 {
		moduleInitTimeout = 30 * time.Second
	}
	return &Builder{
		logger:            logger,
		moduleInitTimeout: moduleInitTimeout,
	}
}

// Add appends one raw registration action.
func (b *Builder) Add(action func(*Container) error) *Builder {
	b.actions = append(b.actions, action)
	return b
}

// AddModule appends one configuration module.
func (b *Builder) AddModule(module Module) *Builder {
	b.modules = append(b.modules, module)
	return b
}

// AddModules appends several configuration modules in order.
func (b *Builder) AddModules(modules ...Module) *Builder {
	b.modules = append(b.modules, modules...)
	return b
}

// Validate appends a final verification step failing the build when any of
// the required capability types is missing after all actions and modules ran.
func (b *Builder) Validate(required ...reflect.Type) *Builder {
	b.validations = append(b.validations, func(c *Container) error {
		for _, t := range required {
			if !c.isRegistered(registrationKey{capability: t}) {
				return coreerrors.Validation("REQUIRED_BINDING_MISSING",
					fmt.Sprintf("required binding %s is not registered", t.String()))
			}
		}
		return nil
	})
	return b
}

// Build executes every accumulated action in order against the target
// container and returns it. Module execution is two-pass: configure all
// modules, then initialize all modules, each Initialize under an enforced
// timeout. The first failure aborts the build and propagates.
func (b *Builder) Build(ctx context.Context, target *Container) (*Container, error) {
	if target == nil {
		target = New(WithLogger(b.logger))
	}

	for i, action := range b.actions {
		if err := action(target); err != nil {
			return nil, coreerrors.Wrap(err, fmt.Sprintf("registration action %d failed", i))
		}
	}

	for _, module := range b.modules {
		if err := module.ConfigureServices(target); err != nil {
			return nil, coreerrors.ModuleConfiguration(module.Name(), err)
		}
		b.logger.Debug("module configured", zap.String("module", module.Name()))
	}

	for _, module := range b.modules {
		if err := b.initializeModule(ctx, module, target); err != nil {
			return nil, err
		}
		b.logger.Debug("module initialized", zap.String("module", module.Name()))
	}

	for _, validation := range b.validations {
		if err := validation(target); err != nil {
			return nil, err
		}
	}

	b.logger.Info("container built",
		zap.Int("actions", len(b.actions)),
		zap.Int("modules", len(b.modules)),
		zap.Int("registrations", target.Count()))
	return target, nil
}

// initializeModule runs one module's Initialize pass under the enforced
// timeout. The module runs in its own goroutine since a misbehaving module
// may never observe ctx cancellation; on timeout the goroutine is abandoned
// and the build aborts.
func (b *Builder) initializeModule(ctx context.Context, module Module, target *Container) error {
	initCtx, cancel := context.WithTimeout(ctx, b.moduleInitTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- module.Initialize(initCtx, target)
	}()

	select {
	case err := <-done:
		if err != nil {
			// A cooperative module may surface the context error itself;
			// classify it the same way as the select branch below.
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return coreerrors.Wrap(ctx.Err(), "build cancelled during module "+module.Name())
			}
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return coreerrors.ModuleTimeout(module.Name(), b.moduleInitTimeout)
			}
			return coreerrors.ModuleConfiguration(module.Name(), err)
		}
		return nil
	case <-initCtx.Done():
		if ctx.Err() != nil {
			return coreerrors.Wrap(ctx.Err(), "build cancelled during module "+module.Name())
		}
		return coreerrors.ModuleTimeout(module.Name(), b.moduleInitTimeout)
	}
}

// AddInstance appends a pre-built singleton registration.
func AddInstance[T any](b *Builder, instance T) *Builder {
	return b.Add(func(c *Container) error {
		return RegisterSingletonInstance(c, instance)
	})
}

// AddSingleton appends a lazy singleton registration.
func AddSingleton[T any](b *Builder, ctor func() T) *Builder {
	return b.Add(func(c *Container) error {
		return RegisterSingleton(c, ctor)
	})
}

// AddSingletonFactory appends a resolver-aware singleton registration.
func AddSingletonFactory[T any](b *Builder, factory func(*Container) (T, error)) *Builder {
	return b.Add(func(c *Container) error {
		return RegisterSingletonFactory(c, factory)
	})
}

// AddTransient appends a transient registration.
func AddTransient[T any](b *Builder, ctor func() T) *Builder {
	return b.Add(func(c *Container) error {
		return RegisterTransient(c, ctor)
	})
}

// AddFactory appends a transient factory registration.
func AddFactory[T any](b *Builder, factory func(*Container) (T, error)) *Builder {
	return b.Add(func(c *Container) error {
		return RegisterFactory(c, factory)
	})
}

// AddNamed appends a named singleton registration.
func AddNamed[T any](b *Builder, name string, factory func(*Container) (T, error)) *Builder {
	return b.Add(func(c *Container) error {
		return RegisterNamed(c, name, factory)
	})
}
