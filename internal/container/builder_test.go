package container

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	coreerrors "verdant-core/internal/errors"
)

type recordingModule struct {
	name        string
	configured  *[]string
	initialized *[]string
	configErr   error
	initErr     error
	initDelay   time.Duration
}

func (m *recordingModule) Name() string { return m.name }

func (m *recordingModule) ConfigureServices(c *Container) error {
	*m.configured = append(*m.configured, m.name)
	return m.configErr
}

func (m *recordingModule) Initialize(ctx context.Context, c *Container) error {
	if m.initDelay > 0 {
		select {
		case <-time.After(m.initDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	*m.initialized = append(*m.initialized, m.name)
	return m.initErr
}

func TestBuilder_ActionsRunInOrder(t *testing.T) {
	b := NewBuilder(zap.NewNop(), 0)
	var order []string
	b.Add(func(*Container) error { order = append(order, "first"); return nil })
	b.Add(func(*Container) error { order = append(order, "second"); return nil })

	_, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestBuilder_GenericAddHelpers(t *testing.T) {
	b := NewBuilder(zap.NewNop(), 0)
	AddInstance[greeter](b, &englishGreeter{})
	AddTransient(b, func() *frenchGreeter { return &frenchGreeter{} })

	c, err := b.Build(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, IsRegistered[greeter](c))
	assert.True(t, IsRegistered[*frenchGreeter](c))
}

func TestBuilder_ModulesRunInTwoPasses(t *testing.T) {
	var configured, initialized []string
	b := NewBuilder(zap.NewNop(), 0)
	b.AddModules(
		&recordingModule{name: "alpha", configured: &configured, initialized: &initialized},
		&recordingModule{name: "beta", configured: &configured, initialized: &initialized},
	)

	_, err := b.Build(context.Background(), nil)
	require.NoError(t, err)

	// All configure passes complete before any initialize pass.
	assert.Equal(t, []string{"alpha", "beta"}, configured)
	assert.Equal(t, []string{"alpha", "beta"}, initialized)
}

func TestBuilder_ModuleConfigureFailureAbortsBuild(t *testing.T) {
	var configured, initialized []string
	b := NewBuilder(zap.NewNop(), 0)
	b.AddModules(
		&recordingModule{name: "broken", configured: &configured, initialized: &initialized,
			configErr: errors.New("bad wiring")},
		&recordingModule{name: "next", configured: &configured, initialized: &initialized},
	)

	_, err := b.Build(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, coreerrors.IsModuleConfiguration(err))
	assert.Empty(t, initialized, "no module initializes after a configure failure")
}

func TestBuilder_ModuleInitFailureAbortsBuild(t *testing.T) {
	var configured, initialized []string
	b := NewBuilder(zap.NewNop(), 0)
	b.AddModule(&recordingModule{name: "flaky", configured: &configured, initialized: &initialized,
		initErr: errors.New("device offline")})

	_, err := b.Build(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, coreerrors.IsModuleConfiguration(err))
}

func TestBuilder_ModuleInitTimeoutEnforced(t *testing.T) {
	var configured, initialized []string
	b := NewBuilder(zap.NewNop(), 20*time.Millisecond)
	b.AddModule(&recordingModule{name: "slow", configured: &configured, initialized: &initialized,
		initDelay: 500 * time.Millisecond})

	start := time.Now()
	_, err := b.Build(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, coreerrors.IsTimeout(err))
	assert.Less(t, time.Since(start), 300*time.Millisecond, "build aborts at the timeout, not at module completion")
}

func TestBuilder_BuildCancellation(t *testing.T) {
	var configured, initialized []string
	b := NewBuilder(zap.NewNop(), time.Minute)
	b.AddModule(&recordingModule{name: "slow", configured: &configured, initialized: &initialized,
		initDelay: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := b.Build(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_ValidateRequiredBindings(t *testing.T) {
	b := NewBuilder(zap.NewNop(), 0)
	AddInstance[greeter](b, &englishGreeter{})
	b.Validate(TypeOf[greeter](), TypeOf[*frenchGreeter]())

	_, err := b.Build(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frenchGreeter")
}

func TestBuilder_ValidatePasses(t *testing.T) {
	b := NewBuilder(zap.NewNop(), 0)
	AddInstance[greeter](b, &englishGreeter{})
	b.Validate(TypeOf[greeter]())

	c, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestBuilder_SiblingModuleDependencies(t *testing.T) {
	// consumer's Initialize resolves a binding contributed by provider's
	// ConfigureServices even though consumer is added first.
	var resolved greeter
	consumer := &funcModule{
		name: "consumer",
		init: func(ctx context.Context, c *Container) error {
			g, err := Resolve[greeter](c)
			resolved = g
			return err
		},
	}
	provider := &funcModule{
		name: "provider",
		configure: func(c *Container) error {
			return RegisterSingletonInstance[greeter](c, &frenchGreeter{})
		},
	}

	b := NewBuilder(zap.NewNop(), 0)
	b.AddModules(consumer, provider)
	_, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "bonjour", resolved.Greet())
}

type funcModule struct {
	name      string
	configure func(*Container) error
	init      func(context.Context, *Container) error
}

func (m *funcModule) Name() string { return m.name }

func (m *funcModule) ConfigureServices(c *Container) error {
	if m.configure == nil {
		return nil
	}
	return m.configure(c)
}

func (m *funcModule) Initialize(ctx context.Context, c *Container) error {
	if m.init == nil {
		return nil
	}
	return m.init(ctx, c)
}
