// Package locator provides the legacy process-wide service locator façade.
// It exists for call sites that cannot receive an injected container
// reference; new code should take its dependencies through constructors and
// leave this package to the composition root.
//
// Lookup layers four strategies: direct registration match, a hit-counted
// resolution cache serving the products of lazy bindings, lazy-binding
// construction, and best-effort auto-discovery over registered sources. A lazy
// binding (RegisterLazy) is constructed on first resolution and then answered
// from the cache; disabling the cache makes every resolution re-invoke the
// factory.
// Unlike the container, the locator guards its maps with a single lock and is
// safe to call from multiple goroutines, at the cost of serializing access.
package locator

import (
	"reflect"
	"sync"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"verdant-core/internal/config"
	coreerrors "verdant-core/internal/errors"
	"verdant-core/internal/observability"
)

// Source is an auto-discovery fallback: it attempts to locate a suitable
// instance already alive in the current session. Returning (nil, nil) means
// "nothing found"; an error counts against the source's circuit breaker.
type Source interface {
	Name() string
	Discover(capability reflect.Type) (any, error)
}

// cacheEntry is one resolved instance with its hit count.
type cacheEntry struct {
	instance any
	hits     int64
}

// Locator is the thread-safe legacy store.
type Locator struct {
	mu     sync.Mutex
	logger *zap.Logger

	services  map[reflect.Type]any
	factories map[reflect.Type]func() (any, error)
	cache     map[reflect.Type]*cacheEntry
	sources   []Source
	breakers  map[string]*gobreaker.CircuitBreaker

	breakerCfg       config.Breaker
	cachingEnabled   bool
	discoveryEnabled bool

	scopes map[string]*Scope

	collector *observability.Collector
}

// Options configures a locator.
type Options struct {
	Logger           *zap.Logger
	CachingEnabled   bool
	DiscoveryEnabled bool
	Breaker          config.Breaker
	Collector        *observability.Collector
}

// New creates a locator. A nil logger falls back to a no-op logger.
func New(opts Options) *Locator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Breaker.MaxRequests == 0 {
		opts.Breaker.MaxRequests = 3
	}
	return &Locator{
		logger:           opts.Logger,
		services:         make(map[reflect.Type]any),
		factories:        make(map[reflect.Type]func() (any, error)),
		cache:            make(map[reflect.Type]*cacheEntry),
		breakers:         make(map[string]*gobreaker.CircuitBreaker),
		breakerCfg:       opts.Breaker,
		cachingEnabled:   opts.CachingEnabled,
		discoveryEnabled: opts.DiscoveryEnabled,
		scopes:           make(map[string]*Scope),
		collector:        opts.Collector,
	}
}

var (
	defaultMu      sync.Mutex
	defaultLocator *Locator
)

// Default returns the process-wide locator, creating a conservatively
// configured one (caching on, discovery off) on first use. The bootstrapper
// replaces it via SetDefault.
func Default() *Locator {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLocator == nil {
		defaultLocator = New(Options{CachingEnabled: true})
	}
	return defaultLocator
}

// SetDefault installs the process-wide locator. Composition-root use only.
func SetDefault(l *Locator) {
	defaultMu.Lock()
	defaultLocator = l
	defaultMu.Unlock()
}

// ResetDefault discards the process-wide locator. Intended for tests.
func ResetDefault() {
	defaultMu.Lock()
	defaultLocator = nil
	defaultMu.Unlock()
}

// AddSource registers an auto-discovery source.
func (l *Locator) AddSource(source Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sources = append(l.sources, source)
}

// SetCachingEnabled toggles the resolution cache.
func (l *Locator) SetCachingEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cachingEnabled = enabled
}

// SetAutoDiscoveryEnabled toggles the discovery fallback.
func (l *Locator) SetAutoDiscoveryEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.discoveryEnabled = enabled
}

// ClearCache invalidates every cache entry.
func (l *Locator) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[reflect.Type]*cacheEntry)
}

// Reset clears registrations, lazy bindings, cache and scopes.
func (l *Locator) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = make(map[reflect.Type]any)
	l.factories = make(map[reflect.Type]func() (any, error))
	l.cache = make(map[reflect.Type]*cacheEntry)
	l.scopes = make(map[string]*Scope)
}

// CacheStats returns hit counts keyed by capability type name.
func (l *Locator) CacheStats() map[string]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := make(map[string]int64, len(l.cache))
	for t, entry := range l.cache {
		stats[t.String()] = entry.hits
	}
	return stats
}

// register stores an instance, overwriting with a warning (the legacy
// last-wins path; the strict policy lives in the container).
func (l *Locator) register(t reflect.Type, instance any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.services[t]; exists {
		l.logger.Warn("locator overwriting existing registration",
			zap.String("capability", t.String()))
	}
	l.services[t] = instance
	// A new binding invalidates any lazy binding and stale cache entry.
	delete(l.factories, t)
	delete(l.cache, t)
}

// registerLazy stores a factory whose product the cache serves after first
// construction. Last-wins like register.
func (l *Locator) registerLazy(t reflect.Type, factory func() (any, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.services[t]; exists {
		l.logger.Warn("locator overwriting existing registration",
			zap.String("capability", t.String()))
	}
	l.factories[t] = factory
	delete(l.services, t)
	delete(l.cache, t)
}

// resolve runs the lookup strategies in order: direct registration, the
// resolution cache, lazy-binding construction, auto-discovery.
func (l *Locator) resolve(t reflect.Type) (any, error) {
	l.mu.Lock()

	// Strategy 1: direct registration match.
	if instance, ok := l.services[t]; ok {
		l.mu.Unlock()
		return instance, nil
	}

	// Strategy 2: resolution cache. Entries are the products of lazy
	// bindings; a hit skips re-invoking the factory.
	if l.cachingEnabled {
		if entry, ok := l.cache[t]; ok {
			entry.hits++
			if l.collector != nil {
				l.collector.CacheHits.Inc()
			}
			l.mu.Unlock()
			return entry.instance, nil
		}
		if l.collector != nil {
			l.collector.CacheMisses.Inc()
		}
	}

	factory, hasFactory := l.factories[t]
	discoveryEnabled := l.discoveryEnabled
	sources := make([]Source, len(l.sources))
	copy(sources, l.sources)
	l.mu.Unlock()

	// Strategy 3: lazy binding, constructed outside the lock. With caching
	// off the factory runs on every resolution.
	if hasFactory {
		instance, err := factory()
		if err != nil {
			return nil, coreerrors.Wrap(err, "lazy binding failed for "+t.String())
		}
		l.mu.Lock()
		if l.cachingEnabled {
			if entry, ok := l.cache[t]; ok {
				// Another goroutine constructed first; serve its instance.
				l.mu.Unlock()
				return entry.instance, nil
			}
			l.cache[t] = &cacheEntry{instance: instance}
		}
		l.mu.Unlock()
		return instance, nil
	}

	// Strategy 4: best-effort auto-discovery, outside the lock since sources
	// may be arbitrarily slow.
	if discoveryEnabled {
		if instance, ok := l.discover(t, sources); ok {
			l.register(t, instance)
			return instance, nil
		}
	}

	return nil, coreerrors.ServiceNotFound(t.String())
}

// discover scans sources through their circuit breakers until one yields a
// suitable instance.
func (l *Locator) discover(t reflect.Type, sources []Source) (any, bool) {
	for _, source := range sources {
		breaker := l.breakerFor(source.Name())
		result, err := breaker.Execute(func() (any, error) {
			return source.Discover(t)
		})
		if err != nil {
			l.logger.Warn("auto-discovery source failed",
				zap.String("source", source.Name()),
				zap.String("capability", t.String()),
				zap.Error(err))
			continue
		}
		if result == nil {
			continue
		}
		if !reflect.TypeOf(result).AssignableTo(t) && !assignableAsInterface(result, t) {
			l.logger.Warn("auto-discovery returned unsuitable instance",
				zap.String("source", source.Name()),
				zap.String("capability", t.String()),
				zap.String("got", reflect.TypeOf(result).String()))
			continue
		}
		l.logger.Info("auto-discovered service",
			zap.String("source", source.Name()),
			zap.String("capability", t.String()))
		return result, true
	}
	return nil, false
}

// breakerFor lazily creates one circuit breaker per source.
func (l *Locator) breakerFor(name string) *gobreaker.CircuitBreaker {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cb, ok := l.breakers[name]; ok {
		return cb
	}
	cfg := l.breakerCfg
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "locator-discovery-" + name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			l.logger.Warn("discovery circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	l.breakers[name] = cb
	return cb
}

func assignableAsInterface(instance any, t reflect.Type) bool {
	if t.Kind() != reflect.Interface {
		return false
	}
	return reflect.TypeOf(instance).Implements(t)
}

// typeOf mirrors container.TypeOf without importing it, keeping the legacy
// package free of container dependencies.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Register stores an instance for T, overwriting any previous binding with a
// warning (last-wins legacy semantics).
func Register[T any](l *Locator, instance T) {
	l.register(typeOf[T](), instance)
}

// RegisterLazy binds a factory for T. The factory runs on first resolution;
// the cache then serves the constructed instance until it is invalidated by
// ClearCache, Reset, Unregister or an overwriting registration.
func RegisterLazy[T any](l *Locator, factory func() (T, error)) {
	l.registerLazy(typeOf[T](), func() (any, error) {
		return factory()
	})
}

// Resolve returns the instance for T, trying direct registration, the
// resolution cache, lazy-binding construction and auto-discovery in order.
func Resolve[T any](l *Locator) (T, error) {
	var zero T
	raw, err := l.resolve(typeOf[T]())
	if err != nil {
		return zero, err
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, coreerrors.Internal("LOCATOR_TYPE_MISMATCH",
			"instance bound to "+typeOf[T]().String()+" is not assignable to it")
	}
	return typed, nil
}

// TryResolve swallows resolution failures, returning ok=false instead.
func TryResolve[T any](l *Locator) (T, bool) {
	instance, err := Resolve[T](l)
	if err != nil {
		var zero T
		return zero, false
	}
	return instance, true
}

// IsRegistered reports whether T has a direct registration or lazy binding.
func IsRegistered[T any](l *Locator) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := typeOf[T]()
	if _, ok := l.services[t]; ok {
		return true
	}
	_, ok := l.factories[t]
	return ok
}

// Unregister removes the registration, lazy binding and cache entry for T.
func Unregister[T any](l *Locator) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := typeOf[T]()
	_, hadInstance := l.services[t]
	_, hadFactory := l.factories[t]
	delete(l.services, t)
	delete(l.factories, t)
	delete(l.cache, t)
	return hadInstance || hadFactory
}
