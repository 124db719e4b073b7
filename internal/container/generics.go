package container

import (
	"fmt"
	"reflect"

	"go.uber.org/zap"

	coreerrors "verdant-core/internal/errors"
)

// The typed registration and resolution API. Methods cannot carry type
// parameters, so the generic surface lives in package-level functions taking
// the container as their first argument.

// RegisterSingletonInstance binds a pre-built instance for the container's
// lifetime.
func RegisterSingletonInstance[T any](c *Container, instance T) error {
	return c.register(&registration{
		capability:     TypeOf[T](),
		implementation: implName(instance),
		lifetime:       Singleton,
		instance:       instance,
		built:          true,
	})
}

// RegisterSingleton binds a zero-dependency constructor, materialized lazily
// on first resolution and reused afterwards. Anything needing dependencies
// must go through RegisterSingletonFactory.
func RegisterSingleton[T any](c *Container, ctor func() T) error {
	return c.register(&registration{
		capability:     TypeOf[T](),
		implementation: TypeOf[T]().String(),
		lifetime:       Singleton,
		factory:        func(*Container) (any, error) { return ctor(), nil },
	})
}

// RegisterSingletonFactory binds a resolver-aware factory with singleton
// lifetime.
func RegisterSingletonFactory[T any](c *Container, factory func(*Container) (T, error)) error {
	return c.register(&registration{
		capability:     TypeOf[T](),
		implementation: TypeOf[T]().String(),
		lifetime:       Singleton,
		factory:        wrapFactory(factory),
	})
}

// RegisterTransient binds a zero-dependency constructor producing a new
// instance on every resolution.
func RegisterTransient[T any](c *Container, ctor func() T) error {
	return c.register(&registration{
		capability:     TypeOf[T](),
		implementation: TypeOf[T]().String(),
		lifetime:       Transient,
		factory:        func(*Container) (any, error) { return ctor(), nil },
	})
}

// RegisterFactory binds a resolver-aware factory producing a new instance on
// every resolution.
func RegisterFactory[T any](c *Container, factory func(*Container) (T, error)) error {
	return c.register(&registration{
		capability:     TypeOf[T](),
		implementation: TypeOf[T]().String(),
		lifetime:       Transient,
		factory:        wrapFactory(factory),
	})
}

// RegisterScoped binds with scoped lifetime, which the current design treats
// as Singleton. Per-scope isolation comes from child containers.
func RegisterScoped[T any](c *Container, ctor func() T) error {
	return c.register(&registration{
		capability:     TypeOf[T](),
		implementation: TypeOf[T]().String(),
		lifetime:       Scoped,
		factory:        func(*Container) (any, error) { return ctor(), nil },
	})
}

// RegisterNamed binds a factory under a capability plus string key.
func RegisterNamed[T any](c *Container, name string, factory func(*Container) (T, error)) error {
	return c.register(&registration{
		capability:     TypeOf[T](),
		implementation: TypeOf[T]().String(),
		lifetime:       Singleton,
		name:           name,
		factory:        wrapFactory(factory),
	})
}

// RegisterWhen binds only when the predicate over the current resolver
// evaluates true at registration time; otherwise the call is a logged no-op.
func RegisterWhen[T any](c *Container, condition func(*Container) bool, factory func(*Container) (T, error)) error {
	if !condition(c) {
		c.logger.Debug("conditional registration skipped",
			zap.String("capability", TypeOf[T]().String()))
		return nil
	}
	return RegisterSingletonFactory(c, factory)
}

// Resolve returns the bound instance for T, constructing it if needed.
func Resolve[T any](c *Container) (T, error) {
	return resolveKey[T](c, registrationKey{capability: TypeOf[T]()})
}

// ResolveNamed returns the instance bound under a capability plus name.
func ResolveNamed[T any](c *Container, name string) (T, error) {
	return resolveKey[T](c, registrationKey{capability: TypeOf[T](), name: name})
}

// TryResolve probes for an optional dependency: it never returns an error,
// only ok=false when nothing is bound or construction failed.
func TryResolve[T any](c *Container) (T, bool) {
	instance, err := Resolve[T](c)
	if err != nil {
		var zero T
		return zero, false
	}
	return instance, true
}

// MustResolve resolves or panics. Composition-root use only.
func MustResolve[T any](c *Container) T {
	instance, err := Resolve[T](c)
	if err != nil {
		panic(fmt.Sprintf("container: %v", err))
	}
	return instance
}

// IsRegistered reports whether T is bound on the container or an ancestor.
func IsRegistered[T any](c *Container) bool {
	return c.isRegistered(registrationKey{capability: TypeOf[T]()})
}

// IsRegisteredNamed reports whether T is bound under the given name.
func IsRegisteredNamed[T any](c *Container, name string) bool {
	return c.isRegistered(registrationKey{capability: TypeOf[T](), name: name})
}

// Unregister removes the binding for T, reporting whether one existed.
// Ancestors are untouched.
func Unregister[T any](c *Container) bool {
	key := registrationKey{capability: TypeOf[T]()}
	if _, ok := c.registrations[key]; !ok {
		return false
	}
	delete(c.registrations, key)
	return true
}

// Decorate wraps the existing binding for T. Singletons already materialized
// are wrapped in place; otherwise the construction recipe is wrapped so the
// decorator applies on first resolution.
func Decorate[T any](c *Container, wrap func(T) T) error {
	key := registrationKey{capability: TypeOf[T]()}
	reg, ok := c.registrations[key]
	if !ok {
		return coreerrors.UnresolvedService(key.String())
	}

	if reg.built {
		inner, ok := reg.instance.(T)
		if !ok {
			return coreerrors.Internal("DECORATE_TYPE_MISMATCH",
				fmt.Sprintf("instance bound to %s is not assignable to it", key.String()))
		}
		reg.instance = wrap(inner)
		return nil
	}

	innerFactory := reg.factory
	reg.factory = func(c *Container) (any, error) {
		raw, err := innerFactory(c)
		if err != nil {
			return nil, err
		}
		inner, ok := raw.(T)
		if !ok {
			return nil, coreerrors.Internal("DECORATE_TYPE_MISMATCH",
				fmt.Sprintf("factory for %s produced a non-assignable instance", key.String()))
		}
		return wrap(inner), nil
	}
	return nil
}

// RegisterMany appends an implementation to the homogeneous collection behind
// T and makes it the active plain binding: last registered wins for Resolve.
func RegisterMany[T any](c *Container, factory func(*Container) (T, error)) error {
	capability := TypeOf[T]()
	reg := &registration{
		capability:     capability,
		implementation: capability.String(),
		lifetime:       Singleton,
		factory:        wrapFactory(factory),
	}
	c.collections[capability] = append(c.collections[capability], reg)

	// Last-registered wins regardless of duplicate policy; collections are
	// the sanctioned multi-binding path.
	key := registrationKey{capability: capability}
	c.registrations[key] = reg
	c.emit(c.onRegistered, Event{
		Capability:     key.String(),
		Implementation: reg.implementation,
		Lifetime:       reg.lifetime,
	})
	return nil
}

// ResolveAll materializes every implementation registered behind T, in
// registration order.
func ResolveAll[T any](c *Container) ([]T, error) {
	capability := TypeOf[T]()
	regs := c.collections[capability]
	if len(regs) == 0 && c.parent != nil {
		return ResolveAll[T](c.parent)
	}

	instances := make([]T, 0, len(regs))
	for _, reg := range regs {
		if !reg.built {
			raw, err := reg.construct(c)
			if err != nil {
				return nil, coreerrors.Wrap(err, "collection factory failed for "+capability.String())
			}
			reg.instance = raw
			reg.built = true
		}
		typed, ok := reg.instance.(T)
		if !ok {
			return nil, coreerrors.Internal("COLLECTION_TYPE_MISMATCH",
				fmt.Sprintf("collection entry for %s is not assignable to it", capability.String()))
		}
		instances = append(instances, typed)
	}
	return instances, nil
}

// resolveKey resolves and type-asserts one key.
func resolveKey[T any](c *Container, key registrationKey) (T, error) {
	var zero T
	raw, err := c.resolve(key)
	if err != nil {
		return zero, err
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, coreerrors.Internal("RESOLUTION_TYPE_MISMATCH",
			fmt.Sprintf("instance bound to %s is not assignable to it", key.String()))
	}
	return typed, nil
}

// wrapFactory adapts a typed factory to the untyped registration recipe.
func wrapFactory[T any](factory func(*Container) (T, error)) Factory {
	return func(c *Container) (any, error) {
		return factory(c)
	}
}

// implName derives a readable implementation name from an instance.
func implName(instance any) string {
	t := reflect.TypeOf(instance)
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
