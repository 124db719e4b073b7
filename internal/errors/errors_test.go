package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoreError_ErrorFormat(t *testing.T) {
	err := DuplicateRegistration("lifecycle.Clock")
	assert.Contains(t, err.Error(), "DUPLICATE_REGISTRATION")
	assert.Contains(t, err.Error(), "lifecycle.Clock")
	assert.Equal(t, "lifecycle.Clock", err.Capability)
}

func TestClassificationHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"duplicate", DuplicateRegistration("T"), IsDuplicateRegistration},
		{"unresolved", UnresolvedService("T"), IsUnresolvedService},
		{"not found", ServiceNotFound("T"), IsServiceNotFound},
		{"no managers", NoManagersDiscovered(), IsNoManagersDiscovered},
		{"manager init", ManagerInitialization("M", 3, nil), IsManagerInitialization},
		{"cycle", DependencyCycle([]string{"A", "B", "A"}), IsDependencyCycle},
		{"missing dep", MissingDependency("M", "D"), IsMissingDependency},
		{"module", ModuleConfiguration("core", stderrors.New("boom")), IsModuleConfiguration},
		{"timeout", ModuleTimeout("core", 0), IsTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.False(t, tt.check(stderrors.New("plain")))
		})
	}
}

func TestWrap_PreservesClassification(t *testing.T) {
	inner := UnresolvedService("game.Economy")
	wrapped := Wrap(inner, "bring-up failed")

	require.NotNil(t, wrapped)
	assert.True(t, IsUnresolvedService(wrapped))
	assert.Equal(t, "game.Economy", wrapped.Capability)
	assert.ErrorIs(t, wrapped, inner)
}

func TestWrap_ForeignError(t *testing.T) {
	wrapped := Wrap(stderrors.New("io failure"), "snapshot save failed")
	assert.Equal(t, ErrorTypeInternal, wrapped.Type)
	assert.Contains(t, wrapped.Details, "io failure")
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, "whatever"))
}

func TestManagerInitialization_CarriesAttempts(t *testing.T) {
	cause := stderrors.New("device not ready")
	err := ManagerInitialization("EconomyManager", 3, cause)
	assert.Equal(t, 3, err.Attempts)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, SeverityHigh, GetSeverity(err))
}
