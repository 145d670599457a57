package main

import (
	"os"
	"os/exec"
	"strings"

	"github.com/shimomut/tfm-sub008/internal/coordinator"
	"github.com/shimomut/tfm-sub008/internal/dialogs"
	"github.com/shimomut/tfm-sub008/internal/pane"
	"github.com/shimomut/tfm-sub008/internal/termui"
)

// runSubshell suspends the TermUI screen, execs $SHELL with the pane
// context exported as environment variables, and resumes the screen
// afterward (spec.md §6, "External process invocation... the core
// provides environment variables and suspends UI"; ModeSubshellSuspend in
// spec.md §4.9's mode stack).
func runSubshell(a *app, c *coordinator.Coordinator) error {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	c.PushMode(coordinator.ModeSubshellSuspend, func(ev dialogs.KeyEvent) (bool, bool) { return true, false })

	a.screen.Close()
	cmd := exec.Command(shell)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), subshellEnv(c)...)
	runErr := cmd.Run()

	screen, err := termui.New(a.cfg.ForceFallbackColors)
	if err != nil {
		return err
	}
	a.screen = screen
	cols, rows := screen.Size()
	c.OnResize(coordinator.ResizeEvent{Cols: cols, Rows: rows})
	c.PopMode()
	return runErr
}

// subshellEnv builds the TFM_* variables spec.md §6 names:
// TFM_ACTIVE, TFM_LEFT_DIR, TFM_RIGHT_DIR, TFM_THIS_DIR, TFM_OTHER_DIR,
// TFM_{LEFT,RIGHT,THIS,OTHER}_SELECTED (space-separated, shell-quoted
// absolute names; falls back to the cursor file if selection is empty).
func subshellEnv(c *coordinator.Coordinator) []string {
	left, right := c.Left, c.Right
	this, other := c.ActivePaneModel(), c.OtherPaneModel()

	return []string{
		"TFM_ACTIVE=1",
		"TFM_LEFT_DIR=" + left.Cwd().URI(),
		"TFM_RIGHT_DIR=" + right.Cwd().URI(),
		"TFM_THIS_DIR=" + this.Cwd().URI(),
		"TFM_OTHER_DIR=" + other.Cwd().URI(),
		"TFM_LEFT_SELECTED=" + selectedQuoted(left),
		"TFM_RIGHT_SELECTED=" + selectedQuoted(right),
		"TFM_THIS_SELECTED=" + selectedQuoted(this),
		"TFM_OTHER_SELECTED=" + selectedQuoted(other),
	}
}

// selectedQuoted renders a pane's selected names (or the cursor entry, if
// the selection is empty, per SelectedNames) as absolute, shell-quoted
// names joined by spaces (spec.md §6, "shell-quoted absolute names").
func selectedQuoted(m *pane.Model) string {
	names := m.SelectedNames()
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = shellQuote(m.Cwd().Join(n).URI())
	}
	return strings.Join(quoted, " ")
}

// shellQuote wraps s in single quotes, escaping any embedded single quote
// as '\'' — the standard POSIX-shell-safe quoting trick.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
