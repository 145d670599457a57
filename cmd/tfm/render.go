package main

import (
	"fmt"

	humanize "github.com/dustin/go-humanize"

	"github.com/shimomut/tfm-sub008/internal/coordinator"
	"github.com/shimomut/tfm-sub008/internal/jobs"
	"github.com/shimomut/tfm-sub008/internal/pane"
	"github.com/shimomut/tfm-sub008/internal/termui"
	"github.com/shimomut/tfm-sub008/internal/vpath"
)

var (
	colDefault = termui.Color{R: -1, G: -1, B: -1}
	colDim     = termui.Color{R: 120, G: 120, B: 120}
)

// render draws both panes and a status line of active jobs, then flushes
// the frame. Apart from Run's first paint, it is only called after
// Coordinator.ShouldRedraw() reports true (spec.md §4.9's redraw throttling).
func (a *app) render() {
	cols, rows := a.screen.Size()
	a.screen.Clear()
	if rows < 2 || cols < 2 {
		a.screen.Show()
		return
	}
	listRows := rows - 1
	half := cols / 2

	a.renderPane(a.coord.Left, 0, half, listRows, a.coord.ActivePane == 0)
	a.renderPane(a.coord.Right, half, cols-half, listRows, a.coord.ActivePane == 1)
	a.renderStatus(listRows, cols)
	a.screen.Show()
}

func (a *app) renderPane(m *pane.Model, col, width, rows int, active bool) {
	fg := colDefault
	if !active {
		fg = colDim
	}
	a.screen.DrawString(0, col, truncated(m.Cwd().URI(), width), fg, colDefault, termui.AttrBold)

	entries := m.Entries()
	top := m.ScrollOffset()
	for row := 1; row < rows; row++ {
		idx := top + row - 1
		if idx >= len(entries) {
			break
		}
		e := entries[idx]
		attrs := termui.Attrs(0)
		if active && idx == m.CursorIndex() {
			attrs |= termui.AttrReverse
		}
		marker := " "
		if m.IsSelected(e.Path.Name()) {
			marker = "*"
		}
		suffix := ""
		if e.Kind == vpath.KindDir {
			suffix = "/"
		}
		label := fmt.Sprintf("%s%s%s", marker, e.Path.Name(), suffix)
		size := ""
		if e.Kind != vpath.KindDir {
			size = humanize.Bytes(uint64(e.Size))
		}
		line := fmt.Sprintf("%-*s %8s", width-10, truncated(label, width-10), size)
		a.screen.DrawString(row, col, truncated(line, width), fg, colDefault, attrs)
	}
}

func (a *app) renderStatus(row, cols int) {
	if mode := a.coord.CurrentMode(); mode != coordinator.ModeNormal {
		a.screen.DrawString(row, 0, truncated(string(mode)+"...", cols), colDefault, colDefault, termui.AttrReverse)
		return
	}
	active := a.coord.ActiveJobs()
	if len(active) == 0 {
		a.screen.DrawString(row, 0, "Ready", colDim, colDefault, 0)
		return
	}
	rec := active[0]
	line := fmt.Sprintf("%s: %d/%d %s", rec.Kind, rec.Done, rec.Total, rec.State)
	if rec.State == jobs.StateRunning && rec.CurrentItem != "" {
		line += " (" + rec.CurrentItem + ")"
	}
	a.screen.DrawString(row, 0, truncated(line, cols), colDefault, colDefault, 0)
}

func truncated(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if len(s) <= width {
		return s
	}
	if width <= 1 {
		return s[:width]
	}
	return s[:width-1] + "…"
}
