package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Hour, cfg.Scheduler.TickInterval)
	assert.Equal(t, 25, cfg.Scheduler.ReminderDay)
	assert.Equal(t, 30, cfg.Scheduler.DeadlineDay)
	assert.Equal(t, 60, cfg.Scheduler.MassDay)
	assert.Equal(t, 168*time.Hour, cfg.Cooldown.MinInterval)

	require.Len(t, cfg.Fees.Brackets, 4)
	assert.Equal(t, 142.0, cfg.Fees.Brackets[0].Fee)
	assert.Equal(t, 35.50, cfg.Fees.Brackets[0].VAT)
	// The top bracket is unbounded.
	assert.Zero(t, cfg.Fees.Brackets[3].UpperBound)

	assert.Equal(t, 500.0, cfg.Detection.BaseDamages["critical"])
	assert.Equal(t, 1.5, cfg.Risk.TypeMultipliers["debt_collector"])
	assert.Equal(t, 5, cfg.Negotiation.MaxRounds)
	assert.Equal(t, 100, cfg.MassTrigger.LegacyTotal)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DAMOCLES_VERSION", "1.4.2")
	t.Setenv("DAMOCLES_ENVIRONMENT", "production")
	t.Setenv("DAMOCLES_REDIS_URL", "redis.internal:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "1.4.2", cfg.Version)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.URL)

	// Untouched keys keep their defaults.
	assert.Equal(t, 25, cfg.Scheduler.ReminderDay)
}
