package locator

import (
	"reflect"
	"sync"

	"github.com/google/uuid"

	coreerrors "verdant-core/internal/errors"
)

// Scope is a sub-container whose registrations shadow the parent locator.
// Closing a scope detaches it from the parent's active-scope list; instances
// registered in the scope are dropped with it.
type Scope struct {
	id     string
	parent *Locator

	mu       sync.Mutex
	services map[reflect.Type]any
	closed   bool
}

// CreateScope opens a new scope attached to this locator.
func (l *Locator) CreateScope() *Scope {
	scope := &Scope{
		id:       uuid.NewString(),
		parent:   l,
		services: make(map[reflect.Type]any),
	}
	l.mu.Lock()
	l.scopes[scope.id] = scope
	l.mu.Unlock()
	return scope
}

// ActiveScopes returns the number of scopes not yet closed.
func (l *Locator) ActiveScopes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.scopes)
}

// ID returns the scope's unique identifier.
func (s *Scope) ID() string { return s.id }

// Close detaches the scope from the parent. Safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.services = nil
	s.mu.Unlock()

	s.parent.mu.Lock()
	delete(s.parent.scopes, s.id)
	s.parent.mu.Unlock()
}

// RegisterInScope stores an instance visible only within the scope.
func RegisterInScope[T any](s *Scope, instance T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return coreerrors.Internal("SCOPE_CLOSED", "cannot register on a closed scope")
	}
	s.services[typeOf[T]()] = instance
	return nil
}

// ResolveInScope resolves from the scope first, falling back to the parent
// locator's full strategy chain.
func ResolveInScope[T any](s *Scope) (T, error) {
	s.mu.Lock()
	if !s.closed {
		if raw, ok := s.services[typeOf[T]()]; ok {
			s.mu.Unlock()
			typed, castOK := raw.(T)
			if !castOK {
				var zero T
				return zero, coreerrors.Internal("LOCATOR_TYPE_MISMATCH",
					"scoped instance is not assignable to "+typeOf[T]().String())
			}
			return typed, nil
		}
	}
	s.mu.Unlock()
	return Resolve[T](s.parent)
}
