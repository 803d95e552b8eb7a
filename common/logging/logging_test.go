package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"warning alias", "warning", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"mixed case", "DeBuG", slog.LevelDebug},
		{"invalid level", "loud", defaultLevel},
		{"empty string", "", defaultLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, LevelFromString(tc.input))
		})
	}
}

func TestNewWritesPlainText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("fetched document", "id", "abc")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "fetched document")
	require.Contains(t, out, "id=abc")
	require.NotContains(t, out, "\x1b[", "no ANSI color when not a terminal")
}
