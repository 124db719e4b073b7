package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"verdant-core/internal/config"
	apperrors "verdant-core/internal/errors"
	"verdant-core/internal/observability"
)

// State is the orchestrator's externally observable position in the bring-up
// sequence.
type State int

const (
	StateNotStarted State = iota
	StateDiscovering
	StateInitializingCore
	StateInitializingDomain
	StateInitializingProgression
	StateInitializingUI
	StateValidating
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateDiscovering:
		return "discovering"
	case StateInitializingCore:
		return "initializing_core"
	case StateInitializingDomain:
		return "initializing_domain"
	case StateInitializingProgression:
		return "initializing_progression"
	case StateInitializingUI:
		return "initializing_ui"
	case StateValidating:
		return "validating"
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Result is the final report of one bring-up run.
type Result struct {
	RunID               string
	Success             bool
	InitializedManagers int
	FailedManagers      int
	RecoveredManagers   int
	Elapsed             time.Duration
	Validation          *ValidationSummary
	Err                 error
}

// Orchestrator drives the full bring-up sequence: discovery, the four
// initialization phases in fixed order, validation, and the transition to
// running. A second Initialize call while one is in flight is rejected, not
// queued.
type Orchestrator struct {
	logger    *zap.Logger
	cfg       config.Orchestrator
	discovery *DiscoveryService
	executor  *PhaseExecutor
	validator *ValidationService
	events    *Events
	collector *observability.Collector
	tracer    trace.Tracer

	mu          sync.Mutex
	state       State
	running     bool
	descriptors []*Descriptor
	result      *Result
}

// OrchestratorOptions carries the orchestrator's collaborators. Discovery is
// required; the rest may be nil and receive no-op defaults.
type OrchestratorOptions struct {
	Logger    *zap.Logger
	Config    config.Orchestrator
	Discovery *DiscoveryService
	Validator *ValidationService
	Events    *Events
	Collector *observability.Collector
	Tracer    trace.Tracer
}

// NewOrchestrator assembles the state machine and its phase executor.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := opts.Events
	if events == nil {
		events = NewEvents()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("lifecycle")
	}
	validator := opts.Validator
	if validator == nil {
		validator = NewValidationService(logger, nil, opts.Config.AttemptServiceRecovery)
	}
	executor := NewPhaseExecutor(logger, opts.Config.MaxRecoveryAttempts,
		opts.Config.RetryBackoff, opts.Collector, tracer, events)
	return &Orchestrator{
		logger:    logger,
		cfg:       opts.Config,
		discovery: opts.Discovery,
		executor:  executor,
		validator: validator,
		events:    events,
		collector: opts.Collector,
		tracer:    tracer,
		state:     StateNotStarted,
	}
}

// State returns the current bring-up state. Safe for concurrent use.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Result returns the report of the most recent run, or nil before any run
// has finished.
func (o *Orchestrator) Result() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result
}

// Descriptors returns the managers found by the most recent discovery pass.
func (o *Orchestrator) Descriptors() []*Descriptor {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*Descriptor, len(o.descriptors))
	copy(out, o.descriptors)
	return out
}

// Events exposes the event registry for callback registration.
func (o *Orchestrator) Events() *Events { return o.events }

// Initialize runs the full bring-up sequence. Discovering zero managers is
// fatal. Individual manager failures are tolerated; validation failures are
// fatal only when FailOnValidation is set.
func (o *Orchestrator) Initialize(ctx context.Context) (*Result, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, apperrors.Internal("INITIALIZATION_IN_PROGRESS",
			"initialization already in progress")
	}
	o.running = true
	o.setStateLocked(StateDiscovering)
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	start := time.Now()
	result := &Result{RunID: uuid.New().String()}

	ctx, span := o.tracer.Start(ctx, "lifecycle.initialize",
		trace.WithAttributes(attribute.String("run_id", result.RunID)))
	defer span.End()

	o.logger.Info("initialization started", zap.String("run_id", result.RunID))

	descriptors := o.discovery.Discover()
	o.mu.Lock()
	o.descriptors = descriptors
	o.mu.Unlock()

	if len(descriptors) == 0 {
		return o.fail(result, start, apperrors.NoManagersDiscovered())
	}

	phases := []struct {
		state    State
		category Category
	}{
		{StateInitializingCore, CategoryCore},
		{StateInitializingDomain, CategoryDomain},
		{StateInitializingProgression, CategoryProgression},
		{StateInitializingUI, CategoryUI},
	}
	for i, p := range phases {
		o.setState(p.state)
		phaseResult, err := o.executor.ExecutePhase(ctx, p.category.Phase(), byCategory(descriptors, p.category))
		result.InitializedManagers += phaseResult.Succeeded
		result.FailedManagers += phaseResult.Failed
		if err != nil {
			return o.fail(result, start, err)
		}
		// Yield between phases so late-settling managers observe a frame
		// boundary before dependents come up.
		if i < len(phases)-1 && o.cfg.PhaseSettleDelay > 0 {
			if err := sleepContext(ctx, o.cfg.PhaseSettleDelay); err != nil {
				return o.fail(result, start, apperrors.Wrap(err, "bring-up interrupted"))
			}
		}
	}

	o.setState(StateValidating)
	summary := o.validator.Validate(ctx, descriptors)
	result.Validation = &summary
	// A recovery moves a manager from the failed tally to the initialized one.
	result.RecoveredManagers = summary.RecoveredManagers
	result.InitializedManagers += summary.RecoveredManagers
	result.FailedManagers -= summary.RecoveredManagers
	if !summary.Valid && o.cfg.FailOnValidation {
		return o.fail(result, start, apperrors.Validation("SYSTEM_VALIDATION_FAILED",
			fmt.Sprintf("system validation failed with %d issue(s)", len(summary.Errors))))
	}

	o.setState(StateRunning)
	result.Success = true
	result.Elapsed = time.Since(start)
	o.finish(result, "success")
	o.logger.Info("initialization completed",
		zap.String("run_id", result.RunID),
		zap.Int("initialized", result.InitializedManagers),
		zap.Int("failed", result.FailedManagers),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// Shutdown stops initialized managers in reverse initialization order.
// Errors are aggregated, not short-circuited.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	descriptors := make([]*Descriptor, len(o.descriptors))
	copy(descriptors, o.descriptors)
	o.setStateLocked(StateNotStarted)
	o.mu.Unlock()

	var firstErr error
	for i := len(descriptors) - 1; i >= 0; i-- {
		d := descriptors[i]
		if !d.Initialized {
			continue
		}
		if err := d.Manager.Shutdown(ctx); err != nil {
			o.logger.Warn("manager shutdown failed",
				zap.String("manager", d.Manager.Name()),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		d.Initialized = false
		o.logger.Debug("manager shut down", zap.String("manager", d.Manager.Name()))
	}
	return firstErr
}

func (o *Orchestrator) fail(result *Result, start time.Time, err error) (*Result, error) {
	o.setState(StateError)
	result.Err = err
	result.Elapsed = time.Since(start)
	o.finish(result, "failure")
	o.logger.Error("initialization failed",
		zap.String("run_id", result.RunID),
		zap.Error(err))
	return result, err
}

func (o *Orchestrator) finish(result *Result, outcome string) {
	o.mu.Lock()
	o.result = result
	o.mu.Unlock()
	if o.collector != nil {
		o.collector.BringUpTotal.WithLabelValues(outcome).Inc()
	}
	o.events.emitCompleted(*result)
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setStateLocked(s)
}

func (o *Orchestrator) setStateLocked(s State) {
	if o.state != s {
		o.logger.Debug("state transition",
			zap.String("from", o.state.String()),
			zap.String("to", s.String()))
		o.state = s
	}
}
