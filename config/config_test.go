package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV", "test")
	cfg := LoadConfig()

	require.Equal(t, 8080, cfg.ServerPort)
	require.Equal(t, 4*time.Hour, cfg.Auth.TokenTTL)
	require.Equal(t, "memory", cfg.MQ.Backend)
	require.Equal(t, "none", cfg.Storage.Backend)
	require.Equal(t, 1, cfg.Progress.DailyGoal)
	require.Equal(t, 3, cfg.Progress.WeeklyGoal)
	require.Equal(t, 12, cfg.Progress.MonthlyGoal)
	require.Equal(t, 5*time.Second, cfg.Catalog.Timeout)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JWT_TTL", "30m")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("DB_SSL", "true")
	t.Setenv("PROGRESS_WEEKLY_GOAL", "not-a-number")

	cfg := LoadConfig()

	require.Equal(t, 9090, cfg.ServerPort)
	require.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.MQ.Kafka.Brokers)
	require.True(t, cfg.Database.UseSSL)
	require.Equal(t, 3, cfg.Progress.WeeklyGoal)
}
