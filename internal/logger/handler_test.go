package logger

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrettyHandler(t *testing.T) {
	t.Run("writes message and attributes without color", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))

		log.With("component", "sweep.discovery").Info("discovery finished", "written", 200, "folder", "a b")

		line := buf.String()
		assert.Contains(t, line, "INFO ")
		assert.Contains(t, line, "discovery finished")
		assert.Contains(t, line, " component=sweep.discovery")
		assert.Contains(t, line, " written=200")
		assert.Contains(t, line, ` folder="a b"`)
		assert.NotContains(t, line, "\033[")
	})

	t.Run("filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}, false))

		log.Info("hidden")
		log.Warn("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("groups qualify keys", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(NewPrettyHandler(&buf, nil, false))

		log.WithGroup("run").Info("done", "id", "r1", slog.Group("result", "deleted", 3))
		log.Info("elapsed", "took", 1500*time.Millisecond)

		out := buf.String()
		assert.Contains(t, out, " run.id=r1")
		assert.Contains(t, out, " run.result.deleted=3")
		assert.Contains(t, out, " took=1.5s")
	})

	t.Run("colors when enabled", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(NewPrettyHandler(&buf, nil, true))

		log.Error("boom")

		require.Contains(t, buf.String(), red)
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
