package container

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdant-core/internal/config"
	coreerrors "verdant-core/internal/errors"
)

type greeter interface {
	Greet() string
}

type englishGreeter struct{ id int }

func (g *englishGreeter) Greet() string { return "hello" }

type frenchGreeter struct{}

func (g *frenchGreeter) Greet() string { return "bonjour" }

type loudGreeter struct{ inner greeter }

func (g *loudGreeter) Greet() string { return g.inner.Greet() + "!" }

type closableService struct{ closed bool }

func (s *closableService) Close() error {
	s.closed = true
	return nil
}

func TestRegisterSingletonInstance_ResolveReturnsSameInstance(t *testing.T) {
	c := New()
	instance := &englishGreeter{id: 1}
	require.NoError(t, RegisterSingletonInstance[greeter](c, instance))

	first, err := Resolve[greeter](c)
	require.NoError(t, err)
	second, err := Resolve[greeter](c)
	require.NoError(t, err)

	assert.Same(t, instance, first)
	assert.Same(t, first, second)
}

func TestRegisterSingleton_LazyAndCached(t *testing.T) {
	c := New()
	calls := 0
	require.NoError(t, RegisterSingleton[greeter](c, func() greeter {
		calls++
		return &englishGreeter{}
	}))
	assert.Equal(t, 0, calls, "singleton constructor must be lazy")

	first, err := Resolve[greeter](c)
	require.NoError(t, err)
	second, err := Resolve[greeter](c)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, first, second)
}

func TestRegisterTransient_NewInstancePerResolution(t *testing.T) {
	c := New()
	calls := 0
	require.NoError(t, RegisterTransient[greeter](c, func() greeter {
		calls++
		return &englishGreeter{id: calls}
	}))

	first, err := Resolve[greeter](c)
	require.NoError(t, err)
	second, err := Resolve[greeter](c)
	require.NoError(t, err)

	assert.Equal(t, 2, calls, "transient factory invoked per resolution")
	assert.NotSame(t, first, second)
}

func TestRegisterScoped_BehavesAsSingleton(t *testing.T) {
	c := New()
	require.NoError(t, RegisterScoped[greeter](c, func() greeter { return &englishGreeter{} }))

	first, err := Resolve[greeter](c)
	require.NoError(t, err)
	second, err := Resolve[greeter](c)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestDuplicateRegistration_StrictMode(t *testing.T) {
	c := New(WithDuplicatePolicy(config.DuplicateStrict))
	require.NoError(t, RegisterSingletonInstance[greeter](c, &englishGreeter{}))

	err := RegisterSingletonInstance[greeter](c, &frenchGreeter{})
	require.Error(t, err)
	assert.True(t, coreerrors.IsDuplicateRegistration(err))
}

func TestDuplicateRegistration_LastWins(t *testing.T) {
	c := New(WithDuplicatePolicy(config.DuplicateLastWins))
	require.NoError(t, RegisterSingletonInstance[greeter](c, &englishGreeter{}))
	require.NoError(t, RegisterSingletonInstance[greeter](c, &frenchGreeter{}))

	resolved, err := Resolve[greeter](c)
	require.NoError(t, err)
	assert.Equal(t, "bonjour", resolved.Greet())
}

func TestResolve_Unregistered(t *testing.T) {
	c := New()
	_, err := Resolve[greeter](c)
	require.Error(t, err)
	assert.True(t, coreerrors.IsUnresolvedService(err))
}

func TestTryResolve_NeverErrors(t *testing.T) {
	c := New()
	_, ok := TryResolve[greeter](c)
	assert.False(t, ok)

	require.NoError(t, RegisterSingletonInstance[greeter](c, &englishGreeter{}))
	resolved, ok := TryResolve[greeter](c)
	assert.True(t, ok)
	assert.Equal(t, "hello", resolved.Greet())
}

func TestRegisterFactory_ErrorsSurface(t *testing.T) {
	c := New()
	boom := errors.New("construction failed")
	require.NoError(t, RegisterFactory[greeter](c, func(*Container) (greeter, error) {
		return nil, boom
	}))

	_, err := Resolve[greeter](c)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRegisterSingletonFactory_ResolvesDependencies(t *testing.T) {
	c := New()
	require.NoError(t, RegisterSingletonInstance(c, &englishGreeter{id: 7}))
	require.NoError(t, RegisterSingletonFactory[greeter](c, func(c *Container) (greeter, error) {
		return Resolve[*englishGreeter](c)
	}))

	resolved, err := Resolve[greeter](c)
	require.NoError(t, err)
	assert.Equal(t, "hello", resolved.Greet())
}

func TestNamedRegistrations(t *testing.T) {
	c := New()
	require.NoError(t, RegisterNamed[greeter](c, "english", func(*Container) (greeter, error) {
		return &englishGreeter{}, nil
	}))
	require.NoError(t, RegisterNamed[greeter](c, "french", func(*Container) (greeter, error) {
		return &frenchGreeter{}, nil
	}))

	english, err := ResolveNamed[greeter](c, "english")
	require.NoError(t, err)
	french, err := ResolveNamed[greeter](c, "french")
	require.NoError(t, err)

	assert.Equal(t, "hello", english.Greet())
	assert.Equal(t, "bonjour", french.Greet())
	assert.True(t, IsRegisteredNamed[greeter](c, "english"))
	assert.False(t, IsRegisteredNamed[greeter](c, "german"))

	// Plain resolve does not see named bindings.
	_, err = Resolve[greeter](c)
	assert.Error(t, err)
}

func TestConditionalRegistration(t *testing.T) {
	c := New()
	require.NoError(t, RegisterWhen[greeter](c, func(*Container) bool { return false },
		func(*Container) (greeter, error) { return &englishGreeter{}, nil }))
	assert.False(t, IsRegistered[greeter](c))

	require.NoError(t, RegisterWhen[greeter](c, func(*Container) bool { return true },
		func(*Container) (greeter, error) { return &frenchGreeter{}, nil }))
	assert.True(t, IsRegistered[greeter](c))
}

func TestDecorate_WrapsUnbuiltBinding(t *testing.T) {
	c := New()
	require.NoError(t, RegisterSingletonFactory[greeter](c, func(*Container) (greeter, error) {
		return &englishGreeter{}, nil
	}))
	require.NoError(t, Decorate[greeter](c, func(inner greeter) greeter {
		return &loudGreeter{inner: inner}
	}))

	resolved, err := Resolve[greeter](c)
	require.NoError(t, err)
	assert.Equal(t, "hello!", resolved.Greet())
}

func TestDecorate_WrapsMaterializedSingleton(t *testing.T) {
	c := New()
	require.NoError(t, RegisterSingletonInstance[greeter](c, &englishGreeter{}))
	require.NoError(t, Decorate[greeter](c, func(inner greeter) greeter {
		return &loudGreeter{inner: inner}
	}))

	resolved, err := Resolve[greeter](c)
	require.NoError(t, err)
	assert.Equal(t, "hello!", resolved.Greet())
}

func TestDecorate_MissingBinding(t *testing.T) {
	c := New()
	err := Decorate[greeter](c, func(inner greeter) greeter { return inner })
	assert.True(t, coreerrors.IsUnresolvedService(err))
}

func TestCollections_LastRegisteredWins(t *testing.T) {
	c := New()
	require.NoError(t, RegisterMany[greeter](c, func(*Container) (greeter, error) {
		return &englishGreeter{}, nil
	}))
	require.NoError(t, RegisterMany[greeter](c, func(*Container) (greeter, error) {
		return &frenchGreeter{}, nil
	}))

	all, err := ResolveAll[greeter](c)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "hello", all[0].Greet())
	assert.Equal(t, "bonjour", all[1].Greet())

	active, err := Resolve[greeter](c)
	require.NoError(t, err)
	assert.Equal(t, "bonjour", active.Greet(), "plain resolve sees the last registration")
}

func TestChildContainer_FallsBackToParent(t *testing.T) {
	parent := New()
	require.NoError(t, RegisterSingletonInstance[greeter](parent, &englishGreeter{}))

	child := parent.CreateChild()
	resolved, err := Resolve[greeter](child)
	require.NoError(t, err)
	assert.Equal(t, "hello", resolved.Greet())

	// Child registrations shadow without touching the parent.
	require.NoError(t, RegisterSingletonInstance[*frenchGreeter](child, &frenchGreeter{}))
	assert.False(t, IsRegistered[*frenchGreeter](parent))
	assert.True(t, IsRegistered[*frenchGreeter](child))
}

func TestUnregisterAndClear(t *testing.T) {
	c := New()
	require.NoError(t, RegisterSingletonInstance[greeter](c, &englishGreeter{}))
	assert.True(t, Unregister[greeter](c))
	assert.False(t, Unregister[greeter](c))
	assert.False(t, IsRegistered[greeter](c))

	require.NoError(t, RegisterSingletonInstance[greeter](c, &englishGreeter{}))
	c.Clear()
	assert.Equal(t, 0, c.Count())
}

func TestDispose_ClosesSingletons(t *testing.T) {
	c := New()
	svc := &closableService{}
	require.NoError(t, RegisterSingletonInstance(c, svc))
	_, err := Resolve[*closableService](c)
	require.NoError(t, err)

	c.Dispose()
	assert.True(t, svc.closed)
	assert.Equal(t, 0, c.Count())

	c.Dispose() // second dispose is a no-op
}

func TestContainerEvents(t *testing.T) {
	c := New()
	var registered, resolved, failed []Event
	c.OnRegistered(func(ev Event) { registered = append(registered, ev) })
	c.OnResolved(func(ev Event) { resolved = append(resolved, ev) })
	c.OnResolutionFailed(func(ev Event) { failed = append(failed, ev) })

	require.NoError(t, RegisterSingletonInstance[greeter](c, &englishGreeter{}))
	_, _ = Resolve[greeter](c)
	_, _ = Resolve[*frenchGreeter](c)

	require.Len(t, registered, 1)
	assert.Equal(t, Singleton, registered[0].Lifetime)
	require.Len(t, resolved, 1)
	require.Len(t, failed, 1)
	assert.Error(t, failed[0].Err)
}

func TestContainerEvents_Disabled(t *testing.T) {
	c := New(WithEvents(false))
	fired := false
	c.OnRegistered(func(Event) { fired = true })
	require.NoError(t, RegisterSingletonInstance[greeter](c, &englishGreeter{}))
	assert.False(t, fired)
}

func TestDiagnose_ReportsNilSingleton(t *testing.T) {
	c := New()
	require.NoError(t, RegisterSingletonFactory[greeter](c, func(*Container) (greeter, error) {
		return nil, nil
	}))
	_, err := Resolve[greeter](c)
	require.Error(t, err, "a nil singleton is not assignable to its capability")

	problems := c.Diagnose()
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "nil")
}

func TestRegisteredTypes(t *testing.T) {
	c := New()
	require.NoError(t, RegisterSingletonInstance[greeter](c, &englishGreeter{}))
	require.NoError(t, RegisterSingletonInstance(c, &frenchGreeter{}))

	types := c.RegisteredTypes()
	assert.Len(t, types, 2)
	assert.Contains(t, types, TypeOf[greeter]())
	assert.Contains(t, types, TypeOf[*frenchGreeter]())
}
