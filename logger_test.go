package clusterfs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_Operations(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	fsys := openTestFS(t, testPath(t), WithLogger(logger))
	h := putFile(t, fsys, []byte("logged"))
	require.NoError(t, fsys.DeleteFile(h))
	_, err := fsys.GetAllFiles(context.Background(), nil)
	require.NoError(t, err)

	var msgs []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		msgs = append(msgs, rec["msg"].(string))
	}
	assert.Contains(t, msgs, "container opened")
	assert.Contains(t, msgs, "alloc completed")
	assert.Contains(t, msgs, "delete completed")
	assert.Contains(t, msgs, "chain deleted")
}

func TestLogger_Errors(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewTextHandler(&buf, nil)).WithPath("x.bfs")

	logger.LogDelete(context.Background(), 7, ErrNotChainHead)
	out := buf.String()
	assert.Contains(t, out, "delete failed")
	assert.Contains(t, out, "handle=7")
	assert.Contains(t, out, "path=x.bfs")
}

func TestNoopLogger(t *testing.T) {
	logger := NoopLogger()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestMetrics_Basic(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	fsys := openTestFS(t, testPath(t), WithMetricsCollector(metrics))

	h1 := putFile(t, fsys, []byte("a"))
	putFile(t, fsys, []byte("b"))
	require.NoError(t, fsys.DeleteFile(h1))
	assert.Error(t, fsys.DeleteFile(h1))
	_, err := fsys.RewriteFile(h1)
	assert.Error(t, err)
	_, err = fsys.GetAllFiles(context.Background(), nil)
	require.NoError(t, err)
	_, err = fsys.Repair()
	require.NoError(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.AllocCount)
	assert.Zero(t, stats.AllocErrors)
	assert.Equal(t, int64(2), stats.DeleteCount)
	assert.Equal(t, int64(1), stats.DeleteErrors)
	assert.Equal(t, int64(1), stats.RewriteErrors)
	assert.Equal(t, int64(1), stats.EnumerateCount)
	assert.Equal(t, int64(1), stats.RepairCount)
	assert.Zero(t, stats.RepairBytes)
}
