package hooks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-optimizer/config"
	"github.com/Skryldev/image-optimizer/hooks"
)

type srcHandle string

func (s srcHandle) Source() string { return string(s) }

func TestMetricsHook(t *testing.T) {
	m := hooks.NewInMemoryMetrics()
	hook := hooks.NewMetricsHook(m)
	ctx := context.Background()

	hook.AfterStep(ctx, "autorotate", srcHandle("a.jpg"), 2*time.Millisecond, nil)
	hook.AfterStep(ctx, "autorotate", srcHandle("a.jpg"), 3*time.Millisecond, nil)
	hook.AfterStep(ctx, "compress", nil, time.Millisecond, errors.New("bad quality"))
	m.RecordThroughput(1024)

	snap := m.Snapshot()
	assert.EqualValues(t, 2, snap.StepCalls["autorotate"])
	assert.EqualValues(t, 5, snap.StepDurationsMs["autorotate"])
	assert.EqualValues(t, 1, snap.StepErrors["compress"])
	assert.EqualValues(t, 1024, snap.TotalThroughputB)

	// Snapshots are copies.
	snap.StepCalls["autorotate"] = 100
	assert.EqualValues(t, 2, m.Snapshot().StepCalls["autorotate"])
}

func TestLoggingHook_Slog(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.LogLevel = "debug"
	hook := hooks.NewLoggingHook(hooks.NewLogger(cfg, &buf))

	hook.BeforeStep(context.Background(), "strip_metadata", srcHandle("photo.png"))
	hook.AfterStep(context.Background(), "strip_metadata", nil, time.Millisecond, errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var start map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &start))
	assert.Equal(t, "pipeline.step.start", start["msg"])
	assert.Equal(t, "photo.png", start["source"])

	var failed map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failed))
	assert.Equal(t, "ERROR", failed["level"])
	assert.Equal(t, "boom", failed["error"])
}

func TestNewLogger_Zap(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.LogBackend = "zap"
	cfg.LogLevel = "warn"
	logger := hooks.NewLogger(cfg, &buf)

	logger.Info("dropped", "k", "v")
	logger.Warn("kept", "step", "compress")
	if z, ok := logger.(*hooks.ZapLogger); ok {
		_ = z.Sync()
	}

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	require.Contains(t, out, "kept")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &entry))
	assert.Equal(t, "compress", entry["step"])
	assert.Equal(t, "warn", entry["level"])
}
