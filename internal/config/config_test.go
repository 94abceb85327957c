package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/hive/internal/optimization"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)

	assert.Equal(t, 10, cfg.Colony.NumBees)
	assert.Equal(t, 50, cfg.Colony.MaxIter)
	assert.Equal(t, 5, cfg.Colony.Limit)
	assert.Equal(t, -10.0, cfg.Colony.Lower)
	assert.Equal(t, 10.0, cfg.Colony.Upper)
	assert.Equal(t, "sphere", cfg.Colony.Objective)
	assert.Equal(t, 4, cfg.Optimization.WorkerCount)
	assert.Equal(t, 1000, cfg.Optimization.MaxJobs)
}

func TestLoadKeepsInfoLevelInDevelopment(t *testing.T) {
	t.Setenv("ENV", "development")
	// Setenv restores the original value on cleanup.
	t.Setenv("LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)

	t.Setenv("LOG_LEVEL", "debug")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ABC_NUM_BEES", "20")
	t.Setenv("ABC_MAX_ITER", "40")
	t.Setenv("ABC_LOWER", "-2.5")
	t.Setenv("ABC_UPPER", "7.5")
	t.Setenv("ABC_SEED", "99")
	t.Setenv("ABC_OBJECTIVE", "rastrigin")
	t.Setenv("OPT_WORKER_COUNT", "2")
	t.Setenv("HTTP_READ_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 2, cfg.Optimization.WorkerCount)

	cc, err := cfg.ColonyConfig()
	require.NoError(t, err)
	assert.Equal(t, 20, cc.NumBees)
	assert.Equal(t, 40, cc.MaxIter)
	assert.Equal(t, -2.5, cc.Lower)
	assert.Equal(t, 7.5, cc.Upper)
	assert.Equal(t, int64(99), cc.RandomSeed)
	require.NotNil(t, cc.Objective)
	assert.InDelta(t, 0.0, cc.Objective(0), 1e-12)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		is   error
	}{
		{"unparsable int", "ABC_NUM_BEES", "many", nil},
		{"too few bees", "ABC_NUM_BEES", "1", optimization.ErrInvalidConfig},
		{"inverted bounds", "ABC_LOWER", "20", optimization.ErrInvalidConfig},
		{"zero limit", "ABC_LIMIT", "0", optimization.ErrInvalidConfig},
		{"unknown objective", "ABC_OBJECTIVE", "himmelblau", optimization.ErrUnknownObjective},
		{"no workers", "OPT_WORKER_COUNT", "0", optimization.ErrInvalidConfig},
		{"zero submit rate", "OPT_SUBMIT_RATE", "0", optimization.ErrInvalidConfig},
		{"zero job retention", "OPT_MAX_JOBS", "0", optimization.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			cfg, err := Load()
			assert.Nil(t, cfg)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}
