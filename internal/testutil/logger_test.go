package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapturingLogger(t *testing.T) {
	logger, logs := NewCapturingLogger(t)

	logger.With("component", "bridge").Debug("Call", "method", "ping")
	logger.WithGroup("req").Error("Malformed query id", "query", "=Cell")
	logger.Info("Serving")

	assert.Len(t, logs.Entries(), 3)
	assert.Equal(t, 1, logs.Count(slog.LevelError))

	e, ok := logs.Find(slog.LevelDebug, "Call")
	require.True(t, ok)
	assert.Equal(t, map[string]string{"component": "bridge", "method": "ping"}, e.Attrs)

	e, ok = logs.Find(slog.LevelError, "Malformed")
	require.True(t, ok)
	assert.Equal(t, "=Cell", e.Attrs["query"])

	_, ok = logs.Find(slog.LevelWarn, "Call")
	assert.False(t, ok)
}

func TestGridWindow(t *testing.T) {
	w := GridWindow(0x10, "Book1")
	assert.Equal(t, "Book1", w.Caption)
	assert.Equal(t, GridWidth, w.Rect.Width)
	assert.Equal(t, GridHeight, w.Rect.Height)
	assert.Zero(t, w.Rect.Left)
}
