package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm-sub008/internal/config"
	"github.com/shimomut/tfm-sub008/internal/dialogs"
	"github.com/shimomut/tfm-sub008/internal/jobs"
	"github.com/shimomut/tfm-sub008/internal/pane"
	"github.com/shimomut/tfm-sub008/internal/vpath/local"
)

func newTestCoordinator() *Coordinator {
	cfg := config.Default()
	cfg.KeyBindings = config.KeyBindings{"switch_pane": {"Tab"}}
	left := pane.New(local.New("/tmp/left"), 100, nil)
	right := pane.New(local.New("/tmp/right"), 100, nil)
	runner := jobs.New(2, nil, nil)
	c := New(left, right, cfg, runner, nil, nil)
	c.RegisterAction("switch_pane", func(c *Coordinator) error {
		c.SwitchPane()
		return nil
	})
	return c
}

func TestResolveNormalActionInvokesBoundAction(t *testing.T) {
	c := newTestCoordinator()
	require.Equal(t, 0, c.ActivePane)
	require.NoError(t, c.HandleKey(KeyEvent{Code: "Tab"}))
	assert.Equal(t, 1, c.ActivePane, "expected switch_pane to flip ActivePane to 1")
}

func TestPushModeClosesPreviousNonNormalMode(t *testing.T) {
	c := newTestCoordinator()
	var firstClosed bool
	c.PushMode(ModeQuickChoice, func(ev dialogs.KeyEvent) (bool, bool) {
		firstClosed = true
		return true, false
	})
	c.PushMode(ModeListDialog, func(ev dialogs.KeyEvent) (bool, bool) {
		return true, false
	})
	require.Len(t, c.modeStack, 1)
	require.Equal(t, ModeListDialog, c.CurrentMode())
	// The superseded mode's handleKey must never fire again.
	c.HandleKey(KeyEvent{Code: "x"})
	assert.False(t, firstClosed, "superseded mode's handler should never be invoked again")
}

func TestModeHandleKeyDoneReturnsToNormal(t *testing.T) {
	c := newTestCoordinator()
	c.PushMode(ModeInfoDialog, func(ev dialogs.KeyEvent) (bool, bool) {
		return true, true // consume and finish on the very first key
	})
	require.Equal(t, ModeInfoDialog, c.CurrentMode())
	require.NoError(t, c.HandleKey(KeyEvent{Code: "Enter"}))
	assert.Equal(t, ModeNormal, c.CurrentMode())
}

func TestShouldRedrawThrottles(t *testing.T) {
	c := newTestCoordinator()
	cur := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return cur }
	c.MarkDirty()
	require.True(t, c.ShouldRedraw(), "first redraw after dirty should fire")
	c.MarkDirty()
	assert.False(t, c.ShouldRedraw(), "redraw within the min interval should be throttled")
	cur = cur.Add(time.Duration(c.cfg.ProgressRedrawMinIntervalMs+1) * time.Millisecond)
	assert.True(t, c.ShouldRedraw(), "redraw after the min interval elapsed should fire")
}

func TestOnResizeForcesImmediateRedraw(t *testing.T) {
	c := newTestCoordinator()
	cur := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return cur }
	c.MarkDirty()
	c.ShouldRedraw() // consume the initial redraw, resetting lastDraw to `cur`

	c.OnResize(ResizeEvent{Cols: 100, Rows: 40})
	require.True(t, c.ShouldRedraw(), "resize should force an immediate redraw even within the throttle window")
	cols, rows := c.ScreenSize()
	assert.Equal(t, 100, cols)
	assert.Equal(t, 40, rows)
}

func TestSubmitJobDelegatesToRunner(t *testing.T) {
	c := newTestCoordinator()
	rec := c.SubmitJob(context.Background(), jobs.KindSearch, "/root", func(ctx context.Context, p *jobs.Progress) error {
		return nil
	})
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		snap, ok := c.jobs.Snapshot(rec.ID)
		if ok && snap.State != jobs.StateRunning {
			return
		}
	}
	t.Fatalf("job did not complete")
}

func TestRefreshActivePaneAppliesResult(t *testing.T) {
	c := newTestCoordinator()
	applied, msg := c.RefreshActivePane(context.Background())
	// /tmp/left likely doesn't exist in the test sandbox; either outcome
	// (applied with entries, or applied with a fallback message) is fine
	// — what matters is that Apply always reports applied=true for a
	// non-superseded refresh (spec.md §7, "fall back to an empty entry
	// list and a user-visible message").
	require.True(t, applied, "expected the first refresh to always apply (not superseded)")
	_ = msg
}

func TestSweepJobsEvictsOldFinishedJobs(t *testing.T) {
	c := newTestCoordinator()
	// Runner stamps finishedAt with the wall clock, so the fake clock starts
	// from the real current time.
	cur := time.Now()
	c.now = func() time.Time { return cur }

	rec := c.SubmitJob(context.Background(), jobs.KindGrep, "/root", func(ctx context.Context, p *jobs.Progress) error {
		return nil
	})
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := c.jobs.Snapshot(rec.ID); ok && snap.State != jobs.StateRunning {
			break
		}
	}

	c.now = func() time.Time { return cur.Add(jobHistoryRetention + time.Minute) }
	c.SweepJobs()

	_, ok := c.jobs.Snapshot(rec.ID)
	assert.False(t, ok, "expected job record to be swept after jobHistoryRetention elapsed")
}
