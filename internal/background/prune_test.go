package background

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingDeleter struct {
	calls atomic.Int64
	err   error
}

func (d *countingDeleter) DeleteExpired(ctx context.Context) (int64, error) {
	d.calls.Add(1)
	if d.err != nil {
		return 0, d.err
	}
	return 3, nil
}

func TestPruneManager_RunsImmediatelyAndStops(t *testing.T) {
	deleter := &countingDeleter{}
	pm := NewPruneManager(deleter, slog.Default(), time.Hour)

	done := make(chan struct{})
	go func() {
		pm.Start(context.Background())
		close(done)
	}()

	// The first run happens before the first tick
	assert.Eventually(t, func() bool {
		return deleter.calls.Load() >= 1
	}, time.Second, 10*time.Millisecond)

	pm.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("prune manager did not stop")
	}
}

func TestPruneManager_StopsOnContextCancel(t *testing.T) {
	deleter := &countingDeleter{}
	pm := NewPruneManager(deleter, slog.Default(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		pm.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("prune manager did not stop on context cancel")
	}
}

func TestPruneManager_SurvivesDeleteErrors(t *testing.T) {
	deleter := &countingDeleter{err: assert.AnError}
	pm := NewPruneManager(deleter, slog.Default(), 20*time.Millisecond)

	done := make(chan struct{})
	go func() {
		pm.Start(context.Background())
		close(done)
	}()

	// Errors are logged, not fatal; the loop keeps ticking
	assert.Eventually(t, func() bool {
		return deleter.calls.Load() >= 2
	}, time.Second, 10*time.Millisecond)

	pm.Stop()
	<-done
}
