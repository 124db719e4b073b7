// Package lifecycle provides the manager bring-up pipeline: discovery of
// long-lived subsystem objects, ordered phase execution with bounded
// per-manager recovery, post-initialization validation, and the orchestrator
// state machine composing them into one end-to-end sequence.
package lifecycle

import (
	"context"
	"reflect"
)

// Priority orders managers within a phase. Lower values initialize first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	}
	return "unknown"
}

// Category assigns a manager to an initialization phase.
type Category int

const (
	CategoryCore Category = iota
	CategoryDomain
	CategoryProgression
	CategoryUI
)

func (c Category) String() string {
	switch c {
	case CategoryCore:
		return "core"
	case CategoryDomain:
		return "domain"
	case CategoryProgression:
		return "progression"
	case CategoryUI:
		return "ui"
	}
	return "unknown"
}

// Manager is the capability every discoverable subsystem object exposes.
// Managers remain owned by the hosting application; the orchestrator only
// drives their lifecycle.
type Manager interface {
	Name() string
	Priority() Priority
	Category() Category
	IsInitialized() bool
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// DependencyDeclarer is the optional hook through which a manager declares
// the names of managers it depends on, consulted by the validation service.
type DependencyDeclarer interface {
	Dependencies() []string
}

// SelfValidator is the optional custom-validation capability.
type SelfValidator interface {
	ValidateState() ValidationResult
}

// ValidationResult is the structured outcome of a manager's self-check.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// Descriptor is the per-manager bookkeeping record built fresh on each
// discovery pass and never persisted across sessions.
type Descriptor struct {
	Type        reflect.Type
	Manager     Manager
	Priority    Priority
	Category    Category
	Initialized bool
}

// Source enumerates manager objects alive in the current session. The
// hosting application supplies sources explicitly; there is no reflective
// scene scanning.
type Source interface {
	Managers() []Manager
}

// SliceSource adapts a fixed slice of managers into a Source.
type SliceSource []Manager

// Managers implements Source.
func (s SliceSource) Managers() []Manager { return s }
