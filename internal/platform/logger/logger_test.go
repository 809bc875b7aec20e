package logger_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/phrazzld/chatrelay-api/internal/config"
	"github.com/phrazzld/chatrelay-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup(t *testing.T) {
	l, err := logger.Setup(config.ServerConfig{LogLevel: "info", Port: 8080})

	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Same(t, l, slog.Default())
}

func TestSetupWithWriter_Levels(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	tests := []struct {
		level       string
		debugLogged bool
		infoLogged  bool
	}{
		{level: "debug", debugLogged: true, infoLogged: true},
		{level: "info", debugLogged: false, infoLogged: true},
		{level: "ERROR", debugLogged: false, infoLogged: false},
		{level: "bogus", debugLogged: false, infoLogged: true},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			_, capture := logger.NewCapture()
			l := logger.SetupWithWriter(config.ServerConfig{LogLevel: tc.level}, capture)

			l.Debug("debug message")
			l.Info("info message")

			_, debugFound := capture.Find(t, "debug message")
			_, infoFound := capture.Find(t, "info message")
			assert.Equal(t, tc.debugLogged, debugFound)
			assert.Equal(t, tc.infoLogged, infoFound)
		})
	}
}

func TestFromContextOrDefault(t *testing.T) {
	defaultLogger := slog.Default()
	customLogger := slog.New(slog.NewTextHandler(nil, nil))

	tests := []struct {
		name     string
		ctx      context.Context
		expected *slog.Logger
	}{
		{
			name:     "nil_context_returns_default",
			ctx:      nil,
			expected: defaultLogger,
		},
		{
			name:     "context_without_logger_returns_default",
			ctx:      context.Background(),
			expected: defaultLogger,
		},
		{
			name:     "context_with_logger_returns_context_logger",
			ctx:      logger.WithLogger(context.Background(), customLogger),
			expected: customLogger,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			//nolint:staticcheck // nil context is exercised on purpose
			result := logger.FromContextOrDefault(tt.ctx, defaultLogger)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestWithLogger(t *testing.T) {
	t.Run("valid_logger", func(t *testing.T) {
		customLogger := slog.New(slog.NewTextHandler(nil, nil))
		ctx := logger.WithLogger(context.Background(), customLogger)

		assert.Equal(t, customLogger, logger.FromContext(ctx))
	})

	t.Run("nil_logger_panics", func(t *testing.T) {
		assert.Panics(t, func() {
			logger.WithLogger(context.Background(), nil)
		})
	})
}
