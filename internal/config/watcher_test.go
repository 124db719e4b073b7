package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeBaseConfig(t *testing.T, dir string, port int) {
	t.Helper()
	data := []byte(fmt.Sprintf("server:\n  port: %d\n", port))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), data, 0o644))
}

func TestWatcher_PassiveOutsideDevelopment(t *testing.T) {
	initial := Default()
	initial.Environment = Production

	w, err := NewWatcher(initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	assert.Same(t, initial, w.Current())
	w.Stop()
	w.Stop() // idempotent
}

func TestWatcher_ReloadsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("APP_ENV", "development")
	writeBaseConfig(t, dir, 7070)

	initial, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7070, initial.Server.Port)

	w, err := NewWatcher(initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	reloaded := make(chan *Config, 1)
	w.OnChange(func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})

	writeBaseConfig(t, dir, 9090)

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 9090, cfg.Server.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload after file change")
	}
	assert.Equal(t, 9090, w.Current().Server.Port)
}

func TestWatcher_DebouncesBurstsOfWrites(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("APP_ENV", "development")
	writeBaseConfig(t, dir, 7070)

	initial, err := Load()
	require.NoError(t, err)

	w, err := NewWatcher(initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	var reloads int32
	w.OnChange(func(*Config) { atomic.AddInt32(&reloads, 1) })

	// A burst of writes inside the debounce window collapses to one reload.
	for port := 8081; port <= 8085; port++ {
		writeBaseConfig(t, dir, port)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&reloads) >= 1
	}, 5*time.Second, 10*time.Millisecond)

	time.Sleep(700 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reloads))
	assert.Equal(t, 8085, w.Current().Server.Port)
}

func TestWatcher_KeepsLastGoodConfigOnInvalidReload(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("APP_ENV", "development")
	writeBaseConfig(t, dir, 7070)

	initial, err := Load()
	require.NoError(t, err)

	w, err := NewWatcher(initial, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	var reloads int32
	w.OnChange(func(*Config) { atomic.AddInt32(&reloads, 1) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"),
		[]byte("container:\n  duplicate_policy: sometimes\n"), 0o644))

	// The reload fails validation; callbacks stay silent and the last good
	// configuration remains current.
	time.Sleep(time.Second)
	assert.Equal(t, int32(0), atomic.LoadInt32(&reloads))
	assert.Equal(t, 7070, w.Current().Server.Port)
}
