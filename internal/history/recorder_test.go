package history

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) (*Recorder, string, *time.Time) {
	t.Helper()
	dir := t.TempDir()
	r, err := New(dir, 5*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	clock := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }
	return r, dir, &clock
}

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func TestAppendPriceDedupWindow(t *testing.T) {
	r, dir, clock := newTestRecorder(t)

	r.AppendPrice("ammo", "5.56 Ammo", 1200)
	*clock = clock.Add(2 * time.Second)
	r.AppendPrice("ammo", "5.56 Ammo", 1200) // same price inside window, dropped
	*clock = clock.Add(2 * time.Second)
	r.AppendPrice("ammo", "5.56 Ammo", 1250) // price changed, kept
	*clock = clock.Add(6 * time.Second)
	r.AppendPrice("ammo", "5.56 Ammo", 1250) // window elapsed, kept

	lines := readLines(t, filepath.Join(dir, "price_history.jsonl"))
	require.Len(t, lines, 3)
	assert.Equal(t, float64(1200), lines[0]["price"])
	assert.Equal(t, float64(1250), lines[1]["price"])
	assert.Equal(t, float64(1250), lines[2]["price"])
}

func TestDedupIsPerItem(t *testing.T) {
	r, dir, _ := newTestRecorder(t)

	r.AppendPrice("a", "A", 100)
	r.AppendPrice("b", "B", 100)

	lines := readLines(t, filepath.Join(dir, "price_history.jsonl"))
	assert.Len(t, lines, 2)
}

func TestMinutelyAggregation(t *testing.T) {
	r, dir, clock := newTestRecorder(t)

	r.AppendPrice("ammo", "5.56 Ammo", 1200)
	*clock = clock.Add(10 * time.Second)
	r.AppendPrice("ammo", "5.56 Ammo", 1100)
	*clock = clock.Add(10 * time.Second)
	r.AppendPrice("ammo", "5.56 Ammo", 1300)

	// Nothing flushed until the minute rolls over.
	assert.Empty(t, readLines(t, filepath.Join(dir, "price_minutely.jsonl")))

	*clock = clock.Add(time.Minute)
	r.AppendPrice("ammo", "5.56 Ammo", 900)

	lines := readLines(t, filepath.Join(dir, "price_minutely.jsonl"))
	require.Len(t, lines, 1)
	assert.Equal(t, float64(1100), lines[0]["min"])
	assert.Equal(t, float64(1300), lines[0]["max"])
	assert.Equal(t, float64(1300), lines[0]["last"])
	assert.Equal(t, float64(3), lines[0]["count"])

	// Close flushes the open minute.
	require.NoError(t, r.Close())
	lines = readLines(t, filepath.Join(dir, "price_minutely.jsonl"))
	require.Len(t, lines, 2)
	assert.Equal(t, float64(900), lines[1]["last"])
}

func TestAppendPurchase(t *testing.T) {
	r, dir, _ := newTestRecorder(t)

	r.AppendPurchase("ammo", "5.56 Ammo", 1200, 10)

	lines := readLines(t, filepath.Join(dir, "purchase_history.jsonl"))
	require.Len(t, lines, 1)
	assert.Equal(t, float64(10), lines[0]["qty"])
	assert.Equal(t, float64(12000), lines[0]["amount"])
	assert.Equal(t, "ammo", lines[0]["item_id"])
}
