package cmd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fittrack/apiserver/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	return config.Config{
		ServerPort: port,
		Store:      "memory",
		Auth:       config.AuthConfig{JWTSecret: "cmd-test", TokenTTL: time.Hour},
		Catalog:    config.CatalogConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second, Concurrency: 1},
		Progress:   config.ProgressConfig{DailyGoal: 1, WeeklyGoal: 3, MonthlyGoal: 12, Timezone: "UTC"},
		Notify:     config.NotifyConfig{Channel: "cmd.notifications", SendBuffer: 4, WriteTimeout: time.Second, PingInterval: time.Second},
		MQ:         config.MQConfig{Backend: "memory"},
		Storage:    config.StorageConfig{Backend: "none"},
	}
}

func TestRunServerReturnsStartupError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	cfg := memoryConfig(t)
	cfg.Auth.JWTSecret = ""

	err := runServer(context.Background(), cfg, zap.New(core), time.Second)
	require.ErrorContains(t, err, "JWT_SECRET")
	require.Equal(t, 1, logs.FilterMessage("failed to start server").Len())
}

func TestRunServerStopsOnCancel(t *testing.T) {
	cfg := memoryConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, cfg, zap.NewNop(), time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}
