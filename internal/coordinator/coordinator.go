// Package coordinator implements the Coordinator described in spec.md
// §4.9: the single-threaded cooperative loop owning the mode stack, the
// active-pane indicator, and redraw throttling. There is no direct
// rclone analogue (rclone has no interactive UI loop), so this is written
// from spec.md §4.9/§5 directly, in the teacher's plain struct-plus-
// methods idiom, logging and publishing metrics through the same
// Logger/Registry interfaces the rest of the core consumes
// (SPEC_FULL.md §4.9a).
package coordinator

import (
	"context"
	"time"

	"github.com/shimomut/tfm-sub008/internal/config"
	"github.com/shimomut/tfm-sub008/internal/dialogs"
	"github.com/shimomut/tfm-sub008/internal/jobs"
	"github.com/shimomut/tfm-sub008/internal/logging"
	"github.com/shimomut/tfm-sub008/internal/metrics"
	"github.com/shimomut/tfm-sub008/internal/pane"
)

// KeyEvent is the core's input contract (spec.md §6, "consumes a stream
// of KeyEvent{code, modifiers, char?}"). Modifiers is a small bitset the
// TermUI adapter populates from the underlying terminal event.
type KeyEvent struct {
	Code      string
	Modifiers Modifiers
	Char      rune
	HasChar   bool
}

// Modifiers is a bitset of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
)

// dialogKeyEvent adapts a KeyEvent to the narrower dialogs.KeyEvent the
// Dialog layer consumes.
func (ev KeyEvent) dialogKeyEvent() dialogs.KeyEvent {
	return dialogs.KeyEvent{Code: ev.Code, Char: ev.Char, HasChar: ev.HasChar}
}

// ResizeEvent is the core's system-event contract (spec.md §6,
// "SystemEvent{resize}").
type ResizeEvent struct {
	Cols, Rows int
}

// ModeKind names one entry of the mode stack (spec.md §4.9, "a mode stack
// (normal, filter, rename, create, batch-rename, quick-choice,
// list-dialog, search-dialog, jump-dialog, info-dialog, text-viewer,
// subshell-suspend)").
type ModeKind string

const (
	ModeNormal          ModeKind = "normal"
	ModeFilter          ModeKind = "filter"
	ModeRename          ModeKind = "rename"
	ModeCreate          ModeKind = "create"
	ModeBatchRename     ModeKind = "batch_rename"
	ModeQuickChoice     ModeKind = "quick_choice"
	ModeListDialog      ModeKind = "list_dialog"
	ModeSearchDialog    ModeKind = "search_dialog"
	ModeJumpDialog      ModeKind = "jump_dialog"
	ModeInfoDialog      ModeKind = "info_dialog"
	ModeTextViewer      ModeKind = "text_viewer"
	ModeSubshellSuspend ModeKind = "subshell_suspend"
)

// modeFrame is one entry of the mode stack: a non-normal mode owns a
// HandleKey closure that processes events until it reports done, at
// which point the Coordinator pops it (spec.md §4.9, "fold each event
// through the topmost mode, which either consumes it or delegates").
type modeFrame struct {
	kind      ModeKind
	handleKey func(ev dialogs.KeyEvent) (consumed, done bool)
}

// ActionFunc is a normal-mode key-bound action (spec.md §4.9,
// "Key-to-action resolution is configurable via key_bindings").
type ActionFunc func(c *Coordinator) error

// Coordinator is the single-threaded cooperative loop (spec.md §4.9/§5).
// Every method here is called only from the UI thread by convention; it
// holds no internal locking of its own, matching PaneModel's contract.
type Coordinator struct {
	Left, Right *pane.Model
	ActivePane  int // 0 = Left, 1 = Right

	cfg     *config.Config
	jobs    *jobs.Runner
	logger  logging.Logger
	metrics *metrics.Registry

	modeStack []modeFrame
	actions   map[string]ActionFunc

	screenCols, screenRows int
	dirty                  bool
	lastDraw               time.Time
	now                    func() time.Time
}

// New builds a Coordinator wired to runner/logger/metrics/cfg, with both
// panes already constructed by the caller (their cwds come from
// persisted state or --left/--right, per spec.md §6).
func New(left, right *pane.Model, cfg *config.Config, runner *jobs.Runner, logger logging.Logger, m *metrics.Registry) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		Left:    left,
		Right:   right,
		cfg:     cfg,
		jobs:    runner,
		logger:  logger,
		metrics: m,
		actions: map[string]ActionFunc{},
		now:     time.Now,
	}
}

// ActivePaneModel returns whichever of Left/Right currently has focus.
func (c *Coordinator) ActivePaneModel() *pane.Model {
	if c.ActivePane == 1 {
		return c.Right
	}
	return c.Left
}

// OtherPaneModel returns the pane that does not currently have focus.
func (c *Coordinator) OtherPaneModel() *pane.Model {
	if c.ActivePane == 1 {
		return c.Left
	}
	return c.Right
}

// SwitchPane toggles ActivePane and marks the screen dirty.
func (c *Coordinator) SwitchPane() {
	c.ActivePane = 1 - c.ActivePane
	c.MarkDirty()
}

// RegisterAction binds name to fn, resolvable from config.KeyBindings in
// Normal mode (spec.md §4.9, "Key-to-action resolution is configurable
// via key_bindings").
func (c *Coordinator) RegisterAction(name string, fn ActionFunc) {
	c.actions[name] = fn
}

// CurrentMode reports the topmost mode, ModeNormal if the stack is empty.
func (c *Coordinator) CurrentMode() ModeKind {
	if len(c.modeStack) == 0 {
		return ModeNormal
	}
	return c.modeStack[len(c.modeStack)-1].kind
}

// PushMode enters a new non-normal mode, closing any previous non-normal
// mode first (spec.md §4.9, "Active dialog exclusivity: at most one
// non-normal mode is entered at a time; entering a new mode closes any
// previous non-normal mode").
func (c *Coordinator) PushMode(kind ModeKind, handleKey func(ev dialogs.KeyEvent) (consumed, done bool)) {
	if len(c.modeStack) > 0 {
		c.logger.Debugf("mode %s superseded by %s", c.modeStack[len(c.modeStack)-1].kind, kind)
		c.modeStack = nil
	}
	c.modeStack = append(c.modeStack, modeFrame{kind: kind, handleKey: handleKey})
	c.MarkDirty()
}

// PopMode exits the current non-normal mode, returning to Normal.
func (c *Coordinator) PopMode() {
	if len(c.modeStack) == 0 {
		return
	}
	popped := c.modeStack[len(c.modeStack)-1]
	c.modeStack = c.modeStack[:len(c.modeStack)-1]
	c.logger.Debugf("mode %s exited", popped.kind)
	c.MarkDirty()
}

// HandleKey folds ev through the topmost mode (spec.md §4.9, "Per tick:
// drain pending input events; fold each event through the topmost mode,
// which either consumes it or delegates"). In Normal mode, ev.Code is
// resolved against key_bindings into a registered action.
func (c *Coordinator) HandleKey(ev KeyEvent) error {
	if len(c.modeStack) > 0 {
		top := c.modeStack[len(c.modeStack)-1]
		consumed, done := top.handleKey(ev.dialogKeyEvent())
		if done {
			c.PopMode()
		}
		if consumed {
			c.MarkDirty()
			return nil
		}
	}
	return c.resolveNormalAction(ev)
}

func (c *Coordinator) resolveNormalAction(ev KeyEvent) error {
	for action, keys := range c.cfg.KeyBindings {
		for _, key := range keys {
			if key == ev.Code {
				fn, ok := c.actions[action]
				if !ok {
					return nil
				}
				if err := fn(c); err != nil {
					c.logger.Warnf("action %s failed: %v", action, err)
					return err
				}
				c.MarkDirty()
				return nil
			}
		}
	}
	return nil
}

// OnResize handles a SystemEvent{resize}: it collapses dialog dimension
// caches (the mode stack holds no cached dimensions of its own here —
// DialogRect computes a Rect from the Coordinator's current
// screenCols/screenRows on every call) and forces a full
// redraw regardless of the redraw-throttle interval (spec.md §4.9,
// "System events (resize) collapse all dialog dimension caches, recompute
// layout, and force full redraw").
func (c *Coordinator) OnResize(ev ResizeEvent) {
	c.screenCols = ev.Cols
	c.screenRows = ev.Rows
	c.dirty = true
	c.lastDraw = time.Time{} // force the next ShouldRedraw to fire immediately
}

// ScreenSize returns the last-known terminal dimensions.
func (c *Coordinator) ScreenSize() (cols, rows int) { return c.screenCols, c.screenRows }

// DialogRect computes the Rect for a dialog of wantWidth x wantHeight
// against the current screen size (spec.md §4.13).
func (c *Coordinator) DialogRect(wantWidth, wantHeight int) dialogs.Rect {
	return dialogs.Clamp(c.screenCols, c.screenRows, wantWidth, wantHeight)
}

// MarkDirty records that the display needs a redraw at the next
// opportunity (spec.md §5, "Redraw throttling").
func (c *Coordinator) MarkDirty() { c.dirty = true }

// ShouldRedraw reports whether a redraw should happen now, throttled to
// at most once per Config.ProgressRedrawMinIntervalMs (spec.md §4.9,
// "...progress_redraw_min_interval_ms elapsed since last draw, render").
// Calling it when it returns true clears the dirty flag and records the
// draw time; the caller is expected to actually render immediately after.
func (c *Coordinator) ShouldRedraw() bool {
	if !c.dirty {
		return false
	}
	now := c.now()
	minInterval := time.Duration(c.cfg.ProgressRedrawMinIntervalMs) * time.Millisecond
	if now.Sub(c.lastDraw) < minInterval {
		return false
	}
	start := c.lastDraw
	c.lastDraw = now
	c.dirty = false
	if c.metrics != nil && !start.IsZero() {
		c.metrics.ObserveRedraw(now.Sub(start).Seconds())
	}
	return true
}

// SubmitJob starts a background task through the JobRunner, logging its
// lifecycle through the Coordinator's Logger (SPEC_FULL.md §4.9a).
func (c *Coordinator) SubmitJob(ctx context.Context, kind jobs.Kind, root string, task jobs.TaskFunc) *jobs.Record {
	c.logger.Infof("job started: kind=%s root=%s", kind, root)
	return c.jobs.Submit(ctx, kind, root, task)
}

// ActiveJobs returns the JobRunner's currently running jobs, for
// rendering a progress bar/status line (spec.md §5, "tasks communicate
// with the UI via bounded channels... The UI thread drains these between
// input events" — here simplified to a poll since Runner already
// serializes its own bookkeeping).
func (c *Coordinator) ActiveJobs() []jobs.Record {
	return c.jobs.Active()
}

// jobHistoryRetention bounds how long a finished job's Record stays
// queryable after completion, the way ActiveJobs bounds what is ever
// rendered — without it, a long session accumulates one Record per
// completed copy/move/delete/search/grep/archive task forever.
const jobHistoryRetention = 10 * time.Minute

// SweepJobs evicts job records that finished more than jobHistoryRetention
// ago. Cheap to call every event-loop tick (Runner.Sweep is a single map
// scan), so the caller does not need its own timer.
func (c *Coordinator) SweepJobs() {
	c.jobs.Sweep(jobHistoryRetention, c.now())
}

// RefreshActivePane begins and immediately runs a synchronous refresh of
// the active pane (BeginRefresh, the returned closure, then Apply, all on
// the calling goroutine). The CLI's "refresh" action and tests use it.
func (c *Coordinator) RefreshActivePane(ctx context.Context) (applied bool, userMessage string) {
	return refreshSync(ctx, c.ActivePaneModel())
}

func refreshSync(ctx context.Context, m *pane.Model) (bool, string) {
	_, run := m.BeginRefresh()
	result := run(ctx)
	return m.Apply(result)
}
