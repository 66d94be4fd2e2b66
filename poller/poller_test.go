package poller

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUntil_ImmediateSuccess(t *testing.T) {
	var calls atomic.Int32
	v, out := Until(context.Background(), Options{Interval: time.Hour, Immediate: true}, func(context.Context) (string, bool) {
		calls.Add(1)
		return "demo", true
	})

	assert.Equal(t, Found, out)
	assert.Equal(t, "demo", v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestUntil_SucceedsAfterSomeTicks(t *testing.T) {
	var calls atomic.Int32
	v, out := Until(context.Background(), Options{Interval: time.Millisecond, Timeout: 5 * time.Second}, func(context.Context) (int, bool) {
		n := calls.Add(1)
		return int(n), n == 3
	})

	assert.Equal(t, Found, out)
	assert.Equal(t, 3, v)
}

func TestUntil_Timeout(t *testing.T) {
	start := time.Now()
	v, out := Until(context.Background(), Options{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond, Immediate: true}, func(context.Context) (int, bool) {
		return 42, false
	})

	assert.Equal(t, TimedOut, out)
	assert.Zero(t, v)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUntil_MaxTicks(t *testing.T) {
	var calls atomic.Int32
	_, out := Until(context.Background(), Options{Interval: time.Millisecond, MaxTicks: 4}, func(context.Context) (struct{}, bool) {
		calls.Add(1)
		return struct{}{}, false
	})

	assert.Equal(t, TimedOut, out)
	assert.Equal(t, int32(4), calls.Load())
}

func TestUntil_CancelStopsPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, out := Until(ctx, Options{Interval: time.Hour, Timeout: time.Hour}, func(context.Context) (int, bool) {
		return 0, false
	})

	assert.Equal(t, Cancelled, out)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestUntil_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	_, out := Until(ctx, Options{Interval: time.Millisecond, Immediate: true}, func(context.Context) (int, bool) {
		calls.Add(1)
		return 0, true
	})

	assert.Equal(t, Cancelled, out)
	assert.Zero(t, calls.Load())
}

func TestUntil_WakeShortensWait(t *testing.T) {
	wake := make(chan struct{}, 1)
	wake <- struct{}{}

	start := time.Now()
	_, out := Until(context.Background(), Options{Interval: time.Hour, MaxTicks: 1, Wake: wake}, func(context.Context) (int, bool) {
		return 1, true
	})

	assert.Equal(t, Found, out)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWatchDir_SignalsOnCreate(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wake, err := WatchDir(ctx, dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tdm_mp_raid_12_10_2025_4_0.demo"), []byte("x"), 0o600))

	select {
	case <-wake:
	case <-time.After(5 * time.Second):
		t.Fatal("no wake signal after file creation")
	}
}

func TestWatchDir_MissingDirectory(t *testing.T) {
	_, err := WatchDir(context.Background(), filepath.Join(t.TempDir(), "missing"), zap.NewNop())
	assert.Error(t, err)
}
