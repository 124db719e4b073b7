package lifecycle

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	apperrors "verdant-core/internal/errors"
	"verdant-core/internal/observability"
)

// Phase identifies one step of the bring-up sequence.
type Phase int

const (
	PhaseDiscovery Phase = iota
	PhaseCoreSystems
	PhaseDomainSystems
	PhaseProgressionSystems
	PhaseUISystems
	PhaseValidation
)

func (p Phase) String() string {
	switch p {
	case PhaseDiscovery:
		return "discovery"
	case PhaseCoreSystems:
		return "core_systems"
	case PhaseDomainSystems:
		return "domain_systems"
	case PhaseProgressionSystems:
		return "progression_systems"
	case PhaseUISystems:
		return "ui_systems"
	case PhaseValidation:
		return "validation"
	}
	return "unknown"
}

// Phase maps a manager category to its initialization phase.
func (c Category) Phase() Phase {
	switch c {
	case CategoryCore:
		return PhaseCoreSystems
	case CategoryDomain:
		return PhaseDomainSystems
	case CategoryProgression:
		return PhaseProgressionSystems
	default:
		return PhaseUISystems
	}
}

// PhaseResult summarizes one phase after every manager in it has been
// attempted.
type PhaseResult struct {
	Phase     Phase
	Attempted int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Failures  []error
}

// PhaseExecutor initializes the managers of a single phase sequentially,
// retrying each failing manager up to a bounded attempt count. A manager
// failure never aborts the phase; only context cancellation does.
type PhaseExecutor struct {
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration
	collector   *observability.Collector
	tracer      trace.Tracer
	events      *Events
}

// NewPhaseExecutor constructs an executor. maxAttempts below 1 is clamped to
// 1. collector and tracer may be nil.
func NewPhaseExecutor(logger *zap.Logger, maxAttempts int, backoff time.Duration, collector *observability.Collector, tracer trace.Tracer, events *Events) *PhaseExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("lifecycle")
	}
	if events == nil {
		events = NewEvents()
	}
	return &PhaseExecutor{
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		collector:   collector,
		tracer:      tracer,
		events:      events,
	}
}

// ExecutePhase runs every descriptor through initialization in order. The
// returned error is non-nil only when the context was cancelled; per-manager
// failures are carried in the result.
func (e *PhaseExecutor) ExecutePhase(ctx context.Context, phase Phase, descriptors []*Descriptor) (PhaseResult, error) {
	start := time.Now()
	result := PhaseResult{Phase: phase}

	ctx, span := e.tracer.Start(ctx, "lifecycle.phase",
		trace.WithAttributes(attribute.String("phase", phase.String())))
	defer span.End()

	e.events.emitPhaseStarted(phase)
	e.logger.Info("phase started",
		zap.String("phase", phase.String()),
		zap.Int("managers", len(descriptors)))

	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			result.Elapsed = time.Since(start)
			return result, apperrors.Wrap(err, "phase interrupted")
		}
		result.Attempted++
		if err := e.initializeManager(ctx, d); err != nil {
			if ctx.Err() != nil {
				result.Elapsed = time.Since(start)
				return result, err
			}
			result.Failed++
			result.Failures = append(result.Failures, err)
			continue
		}
		result.Succeeded++
	}

	result.Elapsed = time.Since(start)
	if e.collector != nil {
		e.collector.ObservePhase(phase.String(), result.Elapsed)
	}
	e.events.emitPhaseCompleted(phase, result)
	e.logger.Info("phase completed",
		zap.String("phase", phase.String()),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

// initializeManager drives one manager through its bounded retry loop. The
// ManagerInitialized event fires exactly once with the final outcome.
func (e *PhaseExecutor) initializeManager(ctx context.Context, d *Descriptor) error {
	name := d.Manager.Name()
	if d.Manager.IsInitialized() {
		d.Initialized = true
		e.logger.Debug("manager already initialized", zap.String("manager", name))
		e.events.emitManagerInitialized(ManagerEvent{
			Manager:  name,
			Category: d.Category,
			Priority: d.Priority,
			Success:  true,
			Attempts: 0,
		})
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return apperrors.Wrap(err, "manager initialization interrupted")
		}

		start := time.Now()
		initCtx, span := e.tracer.Start(ctx, "lifecycle.manager.init",
			trace.WithAttributes(
				attribute.String("manager", name),
				attribute.Int("attempt", attempt)))
		err := d.Manager.Initialize(initCtx)
		span.End()

		if e.collector != nil {
			e.collector.ObserveManagerInit(name, time.Since(start), err == nil)
		}

		if err == nil {
			d.Initialized = true
			e.events.emitManagerInitialized(ManagerEvent{
				Manager:  name,
				Category: d.Category,
				Priority: d.Priority,
				Success:  true,
				Attempts: attempt,
			})
			e.logger.Info("manager initialized",
				zap.String("manager", name),
				zap.Int("attempt", attempt))
			return nil
		}

		lastErr = err
		e.logger.Warn("manager initialization attempt failed",
			zap.String("manager", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", e.maxAttempts),
			zap.Error(err))

		if attempt < e.maxAttempts && e.backoff > 0 {
			if err := sleepContext(ctx, e.backoff); err != nil {
				return apperrors.Wrap(err, "manager initialization interrupted")
			}
		}
	}

	e.events.emitManagerInitialized(ManagerEvent{
		Manager:  name,
		Category: d.Category,
		Priority: d.Priority,
		Success:  false,
		Attempts: e.maxAttempts,
		Err:      lastErr,
	})
	return apperrors.ManagerInitialization(name, e.maxAttempts, lastErr)
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
