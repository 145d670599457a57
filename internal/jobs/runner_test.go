package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForTerminal(t *testing.T, r *Runner, id string, timeout time.Duration) Record {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		rec, ok := r.Snapshot(id)
		require.True(t, ok, "job %s not found", id)
		if rec.State != StateRunning {
			return rec
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state within %s", id, timeout)
	return Record{}
}

func TestSubmitRunsToCompletion(t *testing.T) {
	r := New(2, nil, nil)
	rec := r.Submit(context.Background(), KindCopy, "/root/a", func(ctx context.Context, p *Progress) error {
		p.SetTotal(2)
		p.Advance("a.txt", nil)
		p.Advance("b.txt", nil)
		return nil
	})
	final := waitForTerminal(t, r, rec.ID, time.Second)
	require.Equal(t, StateDone, final.State)
	assert.Equal(t, 2, final.Done)
	assert.Equal(t, 2, final.Total)
}

// TestAtMostOneRunningPerFingerprint verifies spec.md I8: a second Submit
// for the same (kind, root) cancels the first rather than running both
// concurrently.
func TestAtMostOneRunningPerFingerprint(t *testing.T) {
	r := New(4, nil, nil)
	started := make(chan struct{})
	release := make(chan struct{})

	first := r.Submit(context.Background(), KindDelete, "/root/a", func(ctx context.Context, p *Progress) error {
		close(started)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
			return nil
		}
	})
	<-started

	second := r.Submit(context.Background(), KindDelete, "/root/a", func(ctx context.Context, p *Progress) error {
		p.Advance("x", nil)
		return nil
	})

	firstFinal := waitForTerminal(t, r, first.ID, time.Second)
	require.Equal(t, StateCancelled, firstFinal.State)
	secondFinal := waitForTerminal(t, r, second.ID, time.Second)
	require.Equal(t, StateDone, secondFinal.State)
	close(release)

	active := r.Active()
	for _, rec := range active {
		if rec.Kind == KindDelete && rec.Root == "/root/a" {
			t.Fatalf("expected no running job left for (delete, /root/a), found %+v", rec)
		}
	}
}

func TestCancelStopsTask(t *testing.T) {
	r := New(2, nil, nil)
	started := make(chan struct{})
	rec := r.Submit(context.Background(), KindSearch, "/root/b", func(ctx context.Context, p *Progress) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	r.Cancel(rec.ID)
	final := waitForTerminal(t, r, rec.ID, time.Second)
	require.Equal(t, StateCancelled, final.State)
}

func TestFailedTaskRecordsError(t *testing.T) {
	r := New(1, nil, nil)
	boom := errors.New("boom")
	rec := r.Submit(context.Background(), KindGrep, "/root/c", func(ctx context.Context, p *Progress) error {
		return boom
	})
	final := waitForTerminal(t, r, rec.ID, time.Second)
	require.Equal(t, StateFailed, final.State)
	require.Len(t, final.Errors, 1)
}

// TestProgressMonotonic verifies spec.md I9: done is non-decreasing and
// never exceeds total, even when items advance concurrently via RunParallel.
func TestProgressMonotonic(t *testing.T) {
	r := New(2, nil, nil)
	const n = 50
	rec := r.Submit(context.Background(), KindCopy, "/root/d", func(ctx context.Context, p *Progress) error {
		p.SetTotal(n)
		items := make([]func(ctx context.Context) error, n)
		for i := 0; i < n; i++ {
			i := i
			items[i] = func(ctx context.Context) error {
				p.Advance(string(rune('a'+i%26)), nil)
				return nil
			}
		}
		return RunParallel(ctx, 8, items)
	})

	var mu sync.Mutex
	var lastDone int
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap, ok := r.Snapshot(rec.ID)
		require.True(t, ok)
		mu.Lock()
		require.GreaterOrEqual(t, snap.Done, lastDone, "done went backwards")
		lastDone = snap.Done
		mu.Unlock()
		require.LessOrEqual(t, snap.Done, snap.Total)
		if snap.State != StateRunning {
			break
		}
	}
	final := waitForTerminal(t, r, rec.ID, time.Second)
	assert.Equal(t, n, final.Done)
}

func TestRunParallelStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran int32
	var mu sync.Mutex
	items := make([]func(ctx context.Context) error, 20)
	for i := range items {
		items[i] = func(ctx context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			cancel()
			return nil
		}
	}
	_ = RunParallel(ctx, 1, items)
	mu.Lock()
	defer mu.Unlock()
	assert.NotEqual(t, int32(len(items)), ran, "expected cancellation to stop launching further items")
}

// TestSweepEvictsOnlyStaleTerminalJobs verifies Runner.Sweep removes
// terminal records past keepFor while leaving running and recent jobs alone.
func TestSweepEvictsOnlyStaleTerminalJobs(t *testing.T) {
	r := New(2, nil, nil)
	started := make(chan struct{})
	release := make(chan struct{})

	running := r.Submit(context.Background(), KindSearch, "/root/running", func(ctx context.Context, p *Progress) error {
		close(started)
		<-release
		return nil
	})
	<-started

	stale := r.Submit(context.Background(), KindGrep, "/root/stale", func(ctx context.Context, p *Progress) error {
		return nil
	})
	waitForTerminal(t, r, stale.ID, time.Second)

	now := time.Now()
	r.Sweep(time.Minute, now.Add(2*time.Minute))

	_, staleStillThere := r.Snapshot(stale.ID)
	assert.False(t, staleStillThere, "stale terminal job should have been swept")

	_, runningStillThere := r.Snapshot(running.ID)
	assert.True(t, runningStillThere, "running job must survive a sweep")

	close(release)
	waitForTerminal(t, r, running.ID, time.Second)
}
