package container

import (
	"io"
	"reflect"

	"go.uber.org/zap"

	"verdant-core/internal/config"
	coreerrors "verdant-core/internal/errors"
)

// Event describes one observable container action. Observers receive events
// so instrumentation can subscribe without the container depending on it.
type Event struct {
	Capability     string
	Implementation string
	Lifetime       Lifetime
	Err            error
}

// Container is the service container. It owns all registrations and singleton
// instances and disposes them on shutdown.
type Container struct {
	parent *Container
	logger *zap.Logger
	policy config.DuplicatePolicy

	registrations map[registrationKey]*registration
	collections   map[reflect.Type][]*registration

	emitEvents   bool
	onRegistered []func(Event)
	onResolved   []func(Event)
	onFailed     []func(Event)

	disposed bool
}

// Option configures a container at construction time.
type Option func(*Container)

// WithLogger sets the logger used for warnings and dispose diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) { c.logger = logger }
}

// WithDuplicatePolicy sets how re-registering a bound capability is handled.
func WithDuplicatePolicy(policy config.DuplicatePolicy) Option {
	return func(c *Container) { c.policy = policy }
}

// WithEvents toggles observer callbacks.
func WithEvents(enabled bool) Option {
	return func(c *Container) { c.emitEvents = enabled }
}

// New creates an empty container. Defaults: strict duplicate policy, events
// enabled, no-op logger.
func New(opts ...Option) *Container {
	c := &Container{
		logger:        zap.NewNop(),
		policy:        config.DuplicateStrict,
		registrations: make(map[registrationKey]*registration),
		collections:   make(map[reflect.Type][]*registration),
		emitEvents:    true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateChild creates a container that falls back to this one for lookups.
// Registrations on the child never leak into the parent, which is how scoped
// singleton sets are isolated.
func (c *Container) CreateChild() *Container {
	child := New(WithLogger(c.logger), WithDuplicatePolicy(c.policy), WithEvents(c.emitEvents))
	child.parent = c
	return child
}

// OnRegistered subscribes to successful registrations.
func (c *Container) OnRegistered(fn func(Event)) { c.onRegistered = append(c.onRegistered, fn) }

// OnResolved subscribes to successful resolutions.
func (c *Container) OnResolved(fn func(Event)) { c.onResolved = append(c.onResolved, fn) }

// OnResolutionFailed subscribes to failed resolutions.
func (c *Container) OnResolutionFailed(fn func(Event)) { c.onFailed = append(c.onFailed, fn) }

func (c *Container) emit(subscribers []func(Event), ev Event) {
	if !c.emitEvents {
		return
	}
	for _, fn := range subscribers {
		fn(ev)
	}
}

// register installs one registration, honoring the duplicate policy.
func (c *Container) register(reg *registration) error {
	key := registrationKey{capability: reg.capability, name: reg.name}
	if _, exists := c.registrations[key]; exists {
		switch c.policy {
		case config.DuplicateLastWins:
			c.logger.Warn("overwriting existing registration",
				zap.String("capability", key.String()),
				zap.String("implementation", reg.implementation))
		default:
			return coreerrors.DuplicateRegistration(key.String())
		}
	}
	c.registrations[key] = reg
	c.emit(c.onRegistered, Event{
		Capability:     key.String(),
		Implementation: reg.implementation,
		Lifetime:       reg.lifetime,
	})
	return nil
}

// resolve looks up and materializes one binding. Resolution order:
// registration lookup, cached singleton, factory invocation. Lookup falls
// back to the parent container when the key is unbound locally. The
// container performs no cycle detection; cyclic factory graphs recurse until
// the stack limit. Cycle detection over *manager* dependency graphs belongs
// to the lifecycle validation service.
func (c *Container) resolve(key registrationKey) (any, error) {
	reg, ok := c.registrations[key]
	if !ok {
		if c.parent != nil {
			return c.parent.resolve(key)
		}
		err := coreerrors.UnresolvedService(key.String())
		c.emit(c.onFailed, Event{Capability: key.String(), Err: err})
		return nil, err
	}

	switch reg.lifetime {
	case Transient:
		instance, err := reg.construct(c)
		if err != nil {
			c.emit(c.onFailed, Event{Capability: key.String(), Err: err})
			return nil, coreerrors.Wrap(err, "factory failed for "+key.String())
		}
		c.emit(c.onResolved, Event{Capability: key.String(), Implementation: reg.implementation, Lifetime: reg.lifetime})
		return instance, nil

	default: // Singleton and Scoped share singleton semantics
		if !reg.built {
			instance, err := reg.construct(c)
			if err != nil {
				c.emit(c.onFailed, Event{Capability: key.String(), Err: err})
				return nil, coreerrors.Wrap(err, "factory failed for "+key.String())
			}
			reg.instance = instance
			reg.built = true
		}
		c.emit(c.onResolved, Event{Capability: key.String(), Implementation: reg.implementation, Lifetime: reg.lifetime})
		return reg.instance, nil
	}
}

// isRegistered reports whether a key is bound here or in an ancestor.
func (c *Container) isRegistered(key registrationKey) bool {
	if _, ok := c.registrations[key]; ok {
		return true
	}
	if c.parent != nil {
		return c.parent.isRegistered(key)
	}
	return false
}

// ResolveType resolves a capability by its reflect.Type, for callers that
// hold type values rather than type parameters.
func (c *Container) ResolveType(t reflect.Type) (any, error) {
	return c.resolve(registrationKey{capability: t})
}

// IsRegisteredType reports whether a capability type is bound here or in an
// ancestor.
func (c *Container) IsRegisteredType(t reflect.Type) bool {
	return c.isRegistered(registrationKey{capability: t})
}

// RegisteredTypes lists every capability type bound on this container,
// excluding ancestors.
func (c *Container) RegisteredTypes() []reflect.Type {
	types := make([]reflect.Type, 0, len(c.registrations))
	for key := range c.registrations {
		types = append(types, key.capability)
	}
	return types
}

// Count returns the number of local registrations.
func (c *Container) Count() int {
	return len(c.registrations)
}

// Clear removes all registrations and cached instances without disposing
// them. Collaborators holding resolved instances keep them.
func (c *Container) Clear() {
	c.registrations = make(map[registrationKey]*registration)
	c.collections = make(map[reflect.Type][]*registration)
}

// Dispose closes every materialized singleton implementing io.Closer and
// clears the container. Safe to call more than once.
func (c *Container) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	for key, reg := range c.registrations {
		if !reg.built {
			continue
		}
		if closer, ok := reg.instance.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				c.logger.Warn("error disposing singleton",
					zap.String("capability", key.String()),
					zap.Error(err))
			}
		}
	}
	c.Clear()
}

// Diagnose inspects registration health and returns one message per problem
// found: bindings with no construction recipe and materialized singletons
// holding nil instances. The validation service folds these into its summary.
func (c *Container) Diagnose() []string {
	var problems []string
	for key, reg := range c.registrations {
		if reg.factory == nil && !reg.built {
			problems = append(problems, "registration "+key.String()+" has no factory or instance")
		}
		if reg.built && reg.instance == nil {
			problems = append(problems, "singleton "+key.String()+" materialized as nil")
		}
	}
	return problems
}

// Logger exposes the container's logger for packages layering on top of it.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}
