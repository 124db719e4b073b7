package services

import (
	"context"
	"sync/atomic"

	"verdant-core/internal/lifecycle"
)

// baseManager carries the lifecycle bookkeeping shared by the built-in
// infrastructure managers.
type baseManager struct {
	name        string
	priority    lifecycle.Priority
	category    lifecycle.Category
	initialized atomic.Bool
}

func (m *baseManager) Name() string                 { return m.name }
func (m *baseManager) Priority() lifecycle.Priority { return m.priority }
func (m *baseManager) Category() lifecycle.Category { return m.category }
func (m *baseManager) IsInitialized() bool          { return m.initialized.Load() }

// EventBusManager exposes the event bus to the bring-up pipeline. The bus
// itself is constructed during bootstrap; the manager only tracks lifecycle.
type EventBusManager struct {
	baseManager
	bus *EventBus
}

// NewEventBusManager wraps an event bus as a critical core manager.
func NewEventBusManager(bus *EventBus) *EventBusManager {
	return &EventBusManager{
		baseManager: baseManager{
			name:     "event-bus",
			priority: lifecycle.PriorityCritical,
			category: lifecycle.CategoryCore,
		},
		bus: bus,
	}
}

func (m *EventBusManager) Bus() *EventBus { return m.bus }

func (m *EventBusManager) Initialize(ctx context.Context) error {
	m.initialized.Store(true)
	return nil
}

func (m *EventBusManager) Shutdown(ctx context.Context) error {
	m.initialized.Store(false)
	return m.bus.Close()
}

// SettingsManager brings up the runtime settings store.
type SettingsManager struct {
	baseManager
	settings *Settings
}

func NewSettingsManager(settings *Settings) *SettingsManager {
	return &SettingsManager{
		baseManager: baseManager{
			name:     "settings",
			priority: lifecycle.PriorityHigh,
			category: lifecycle.CategoryCore,
		},
		settings: settings,
	}
}

func (m *SettingsManager) Settings() *Settings { return m.settings }

func (m *SettingsManager) Initialize(ctx context.Context) error {
	m.initialized.Store(true)
	return nil
}

func (m *SettingsManager) Shutdown(ctx context.Context) error {
	m.initialized.Store(false)
	return nil
}

// PersistenceManager brings up snapshot storage and declares its reliance on
// the settings store.
type PersistenceManager struct {
	baseManager
	dir   string
	store *SnapshotStore
}

// NewPersistenceManager defers store creation until Initialize so a bad
// directory surfaces as an initialization failure with retries.
func NewPersistenceManager(dir string) *PersistenceManager {
	return &PersistenceManager{
		baseManager: baseManager{
			name:     "persistence",
			priority: lifecycle.PriorityNormal,
			category: lifecycle.CategoryCore,
		},
		dir: dir,
	}
}

func (m *PersistenceManager) Store() *SnapshotStore { return m.store }

func (m *PersistenceManager) Dependencies() []string { return []string{"settings"} }

func (m *PersistenceManager) Initialize(ctx context.Context) error {
	store, err := NewSnapshotStore(m.dir, nil)
	if err != nil {
		return err
	}
	m.store = store
	m.initialized.Store(true)
	return nil
}

func (m *PersistenceManager) Shutdown(ctx context.Context) error {
	m.initialized.Store(false)
	return nil
}

// ValidateState confirms the snapshot directory is still usable.
func (m *PersistenceManager) ValidateState() lifecycle.ValidationResult {
	if m.store == nil {
		return lifecycle.ValidationResult{Valid: false, Errors: []string{"snapshot store not created"}}
	}
	if _, err := m.store.List(); err != nil {
		return lifecycle.ValidationResult{Valid: false, Errors: []string{err.Error()}}
	}
	return lifecycle.ValidationResult{Valid: true}
}
