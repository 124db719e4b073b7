// Package container provides the service container at the heart of the core
// runtime: a type-keyed registration store with singleton, transient and
// scoped lifetimes, factory indirection, named and conditional bindings,
// decorators, homogeneous collections, and a fluent builder that applies
// batched registrations and configuration modules atomically.
//
// The container assumes the host's single-threaded cooperative model and
// performs no internal locking; call sites needing thread safety go through
// the locator package, which serializes access behind one mutex.
package container

import (
	"fmt"
	"reflect"
)

// Lifetime controls how long a resolved instance is reused.
type Lifetime string

const (
	// Singleton reuses one instance for the container's lifetime.
	Singleton Lifetime = "singleton"
	// Transient constructs a new instance on every resolution.
	Transient Lifetime = "transient"
	// Scoped is treated as Singleton in the current design. Child containers
	// created per scope give each scope its own singleton set.
	Scoped Lifetime = "scoped"
)

// Factory produces an instance, resolving its own dependencies through the
// supplied container.
type Factory func(*Container) (any, error)

// registrationKey identifies one active binding: a capability type plus an
// optional name for named registrations.
type registrationKey struct {
	capability reflect.Type
	name       string
}

func (k registrationKey) String() string {
	if k.name != "" {
		return fmt.Sprintf("%s[%s]", k.capability.String(), k.name)
	}
	return k.capability.String()
}

// registration holds the binding metadata for one capability. The instance
// field is populated lazily on first resolution for non-eager lifetimes.
type registration struct {
	capability     reflect.Type
	implementation string
	lifetime       Lifetime
	name           string

	factory  Factory
	instance any
	built    bool
}

// construct materializes one instance from the registration's recipe.
func (r *registration) construct(c *Container) (any, error) {
	if r.factory != nil {
		return r.factory(c)
	}
	if r.built {
		return r.instance, nil
	}
	return nil, fmt.Errorf("registration for %s has neither factory nor instance", r.capability)
}

// TypeOf returns the reflect.Type used as the registration key for T. For
// interface capabilities this is the interface type itself, not a concrete
// implementation.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
