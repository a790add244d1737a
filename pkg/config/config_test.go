package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerocoord/fleetcoord/pkg/models"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "coordinator.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestFileLoaderAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `{"listen_addr": ":7000"}`)

	var cfg models.CoordinatorConfig

	loader := &FileLoader{}
	require.NoError(t, loader.Load(context.Background(), path, &cfg))

	assert.Equal(t, ":7000", cfg.ListenAddr)
	assert.Equal(t, "fleet.telemetry", cfg.NATS.TelemetrySubject, "Validate ran")
}

func TestFileLoaderErrors(t *testing.T) {
	loader := &FileLoader{}

	var cfg models.CoordinatorConfig

	t.Run("missing file", func(t *testing.T) {
		err := loader.Load(context.Background(), "/nonexistent/coordinator.json", &cfg)
		assert.Error(t, err)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		path := writeTempConfig(t, "{broken")
		assert.Error(t, loader.Load(context.Background(), path, &cfg))
	})

	t.Run("nil destination", func(t *testing.T) {
		path := writeTempConfig(t, "{}")
		assert.ErrorIs(t, loader.Load(context.Background(), path, nil), errInvalidConfigPtr)
	})

	t.Run("non-pointer destination", func(t *testing.T) {
		path := writeTempConfig(t, "{}")
		assert.ErrorIs(t, loader.Load(context.Background(), path, models.CoordinatorConfig{}), errInvalidConfigPtr)
	})
}
