package dialogs

import "github.com/mattn/go-runewidth"

// ColumnWidths measures the display width (not byte/rune count) of every
// label, so batch-rename preview rows and list-dialog entries align in
// fixed-width terminal columns even with multi-byte filenames
// (SPEC_FULL.md §4.13a, grounded on the teacher's direct dependency on
// github.com/mattn/go-runewidth). This is a pure layout computation: it
// returns column widths, not glyphs, so it stays on the core side of the
// "no rendering in core" boundary.
func ColumnWidths(labels []string) []int {
	widths := make([]int, len(labels))
	for i, label := range labels {
		widths[i] = runewidth.StringWidth(label)
	}
	return widths
}

// MaxWidth returns the widest display width among labels, 0 if empty.
func MaxWidth(labels []string) int {
	max := 0
	for _, w := range ColumnWidths(labels) {
		if w > max {
			max = w
		}
	}
	return max
}

// TruncateToWidth truncates label to fit within width display columns,
// appending tail (e.g. "…") if truncation occurred.
func TruncateToWidth(label string, width int, tail string) string {
	if runewidth.StringWidth(label) <= width {
		return label
	}
	return runewidth.Truncate(label, width, tail)
}
