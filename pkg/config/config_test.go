package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "07:00", cfg.Grid.FirstSlotStart)
	assert.Equal(t, "15:00", cfg.Grid.LastSlotEnd)
	assert.Equal(t, 60.0, cfg.Grid.PixelsPerHour)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, cfg.Grid.Days)
	assert.Equal(t, 5*time.Minute, cfg.Grid.CacheTTL)
	assert.Equal(t, 60, cfg.RateLimit.WritesPerMinute)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GRID_FIRST_SLOT_START", "06:30")
	t.Setenv("GRID_PIXELS_PER_HOUR", "90")
	t.Setenv("GRID_DAYS", "1, 3,x,9,5")
	t.Setenv("GRID_CACHE_TTL", "bogus")
	t.Setenv("AUTH_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "06:30", cfg.Grid.FirstSlotStart)
	assert.Equal(t, 90.0, cfg.Grid.PixelsPerHour)
	assert.Equal(t, []int{1, 3, 5}, cfg.Grid.Days)
	assert.Equal(t, 5*time.Minute, cfg.Grid.CacheTTL)
	assert.True(t, cfg.Auth.Enabled)
}

func TestLoadDropsRepeatedGridDays(t *testing.T) {
	chdirTemp(t)
	t.Setenv("GRID_DAYS", "1,1,2, 2,0,1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 0}, cfg.Grid.Days)
}

func TestParseDays(t *testing.T) {
	assert.Equal(t, []int{3, 1}, parseDays("3,1,3,1"))
	assert.Nil(t, parseDays(""))
	assert.Nil(t, parseDays("7,-1,x"))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
