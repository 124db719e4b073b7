package locator

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdant-core/internal/config"
	coreerrors "verdant-core/internal/errors"
)

type clock interface {
	Tick() int
}

type fakeClock struct{ ticks int }

func (c *fakeClock) Tick() int { return c.ticks }

type stubSource struct {
	name     string
	instance any
	err      error
	calls    int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Discover(reflect.Type) (any, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.instance, nil
}

func newTestLocator(opts ...func(*Options)) *Locator {
	options := Options{
		CachingEnabled:   true,
		DiscoveryEnabled: false,
		Breaker: config.Breaker{
			MaxRequests:      1,
			FailureThreshold: 0.5,
			MinRequests:      2,
		},
	}
	for _, opt := range opts {
		opt(&options)
	}
	return New(options)
}

func TestRegisterAndResolve(t *testing.T) {
	l := newTestLocator()
	Register[clock](l, &fakeClock{ticks: 5})

	resolved, err := Resolve[clock](l)
	require.NoError(t, err)
	assert.Equal(t, 5, resolved.Tick())
	assert.True(t, IsRegistered[clock](l))
}

func TestResolve_NotFound(t *testing.T) {
	l := newTestLocator()
	_, err := Resolve[clock](l)
	require.Error(t, err)
	assert.True(t, coreerrors.IsServiceNotFound(err))
}

func TestTryResolve_SwallowsFailure(t *testing.T) {
	l := newTestLocator()
	_, ok := TryResolve[clock](l)
	assert.False(t, ok)
}

func TestRegister_LastWinsOverwrite(t *testing.T) {
	l := newTestLocator()
	Register[clock](l, &fakeClock{ticks: 1})
	Register[clock](l, &fakeClock{ticks: 2})

	resolved, err := Resolve[clock](l)
	require.NoError(t, err)
	assert.Equal(t, 2, resolved.Tick())
}

func TestUnregister_ClearsCacheEntry(t *testing.T) {
	l := newTestLocator()
	Register[clock](l, &fakeClock{ticks: 9})
	_, err := Resolve[clock](l)
	require.NoError(t, err)

	require.True(t, Unregister[clock](l))
	_, err = Resolve[clock](l)
	assert.True(t, coreerrors.IsServiceNotFound(err), "unregister drops the cache entry too")
}

func TestRegisterLazy_ConstructsOnceAndCountsCacheHits(t *testing.T) {
	l := newTestLocator()
	builds := 0
	RegisterLazy[clock](l, func() (clock, error) {
		builds++
		return &fakeClock{ticks: 9}, nil
	})
	assert.True(t, IsRegistered[clock](l))

	first, err := Resolve[clock](l)
	require.NoError(t, err)
	assert.Equal(t, 9, first.Tick())
	assert.Equal(t, 1, builds)

	for i := 0; i < 3; i++ {
		again, err := Resolve[clock](l)
		require.NoError(t, err)
		assert.Same(t, first, again, "cache serves the constructed instance")
	}
	assert.Equal(t, 1, builds, "factory runs once; the cache short-circuits")
	stats := l.CacheStats()
	assert.Equal(t, int64(3), stats[typeOf[clock]().String()])
}

func TestRegisterLazy_ClearCacheForcesReconstruction(t *testing.T) {
	l := newTestLocator()
	builds := 0
	RegisterLazy[clock](l, func() (clock, error) {
		builds++
		return &fakeClock{ticks: builds}, nil
	})

	_, err := Resolve[clock](l)
	require.NoError(t, err)
	l.ClearCache()

	rebuilt, err := Resolve[clock](l)
	require.NoError(t, err)
	assert.Equal(t, 2, builds)
	assert.Equal(t, 2, rebuilt.Tick())
}

func TestRegisterLazy_FactoryErrorSurfaces(t *testing.T) {
	l := newTestLocator()
	boom := errors.New("no clock available")
	RegisterLazy[clock](l, func() (clock, error) { return nil, boom })

	_, err := Resolve[clock](l)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRegisterLazy_EagerRegistrationOverrides(t *testing.T) {
	l := newTestLocator()
	RegisterLazy[clock](l, func() (clock, error) { return &fakeClock{ticks: 1}, nil })
	_, err := Resolve[clock](l)
	require.NoError(t, err)

	Register[clock](l, &fakeClock{ticks: 2})
	resolved, err := Resolve[clock](l)
	require.NoError(t, err)
	assert.Equal(t, 2, resolved.Tick(), "eager binding replaces the lazy one and its cache entry")
}

func TestCachingDisabled_FactoryRunsEveryResolution(t *testing.T) {
	l := newTestLocator(func(o *Options) { o.CachingEnabled = false })
	builds := 0
	RegisterLazy[clock](l, func() (clock, error) {
		builds++
		return &fakeClock{ticks: builds}, nil
	})

	for i := 0; i < 3; i++ {
		_, err := Resolve[clock](l)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, builds)
	assert.Empty(t, l.CacheStats())
}

func TestAutoDiscovery_FindsAndAutoRegisters(t *testing.T) {
	l := newTestLocator(func(o *Options) { o.DiscoveryEnabled = true })
	source := &stubSource{name: "scene", instance: &fakeClock{ticks: 3}}
	l.AddSource(source)

	resolved, err := Resolve[clock](l)
	require.NoError(t, err)
	assert.Equal(t, 3, resolved.Tick())
	assert.Equal(t, 1, source.calls)
	assert.True(t, IsRegistered[clock](l), "discovered instance is auto-registered")

	// Subsequent lookups hit the direct registration, not the source.
	_, err = Resolve[clock](l)
	require.NoError(t, err)
	assert.Equal(t, 1, source.calls)
}

func TestAutoDiscovery_DisabledByDefault(t *testing.T) {
	l := newTestLocator()
	l.AddSource(&stubSource{name: "scene", instance: &fakeClock{}})

	_, err := Resolve[clock](l)
	assert.True(t, coreerrors.IsServiceNotFound(err))
}

func TestAutoDiscovery_BreakerTripsOnRepeatedFailures(t *testing.T) {
	l := newTestLocator(func(o *Options) { o.DiscoveryEnabled = true })
	source := &stubSource{name: "flaky", err: errors.New("scan failed")}
	l.AddSource(source)

	// MinRequests=2, threshold 0.5: the breaker opens after the second
	// failure and later scans skip the source entirely.
	for i := 0; i < 5; i++ {
		_, err := Resolve[clock](l)
		require.Error(t, err)
	}
	assert.LessOrEqual(t, source.calls, 2, "open breaker stops calling the source")
}

func TestScope_ResolveAndDetach(t *testing.T) {
	l := newTestLocator()
	Register[clock](l, &fakeClock{ticks: 1})

	scope := l.CreateScope()
	assert.Equal(t, 1, l.ActiveScopes())

	require.NoError(t, RegisterInScope[clock](scope, &fakeClock{ticks: 99}))
	scoped, err := ResolveInScope[clock](scope)
	require.NoError(t, err)
	assert.Equal(t, 99, scoped.Tick(), "scope registration shadows the parent")

	// Parent is unaffected by scope registrations.
	parentClock, err := Resolve[clock](l)
	require.NoError(t, err)
	assert.Equal(t, 1, parentClock.Tick())

	scope.Close()
	assert.Equal(t, 0, l.ActiveScopes())
	scope.Close() // idempotent

	// A closed scope falls back to the parent chain.
	fallback, err := ResolveInScope[clock](scope)
	require.NoError(t, err)
	assert.Equal(t, 1, fallback.Tick())
}

func TestScope_RegisterAfterClose(t *testing.T) {
	l := newTestLocator()
	scope := l.CreateScope()
	scope.Close()
	assert.Error(t, RegisterInScope[clock](scope, &fakeClock{}))
}

func TestReset(t *testing.T) {
	l := newTestLocator()
	Register[clock](l, &fakeClock{})
	l.CreateScope()

	l.Reset()
	assert.False(t, IsRegistered[clock](l))
	assert.Equal(t, 0, l.ActiveScopes())
	assert.Empty(t, l.CacheStats())
}

func TestDefault_SingletonAndSetDefault(t *testing.T) {
	ResetDefault()
	t.Cleanup(ResetDefault)

	first := Default()
	second := Default()
	assert.Same(t, first, second)

	replacement := newTestLocator()
	SetDefault(replacement)
	assert.Same(t, replacement, Default())
}

func TestConcurrentAccess(t *testing.T) {
	l := newTestLocator()
	Register[clock](l, &fakeClock{ticks: 1})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				Register[clock](l, &fakeClock{ticks: n})
			} else {
				_, _ = Resolve[clock](l)
			}
		}(i)
	}
	wg.Wait()

	_, err := Resolve[clock](l)
	assert.NoError(t, err)
}
