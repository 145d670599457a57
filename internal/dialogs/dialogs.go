// Package dialogs implements the Dialog layer of spec.md §4.13: each
// dialog is a state machine with (enter, handle_key, exit) transitions;
// the dialogs have no render method of their own, and Clamp computes a
// dialog rectangle within the terminal bounds. There is no direct rclone analogue (rclone has no
// interactive dialogs), so this is written from spec.md §4.13/§8 (I10)
// directly, in the teacher's plain struct-plus-methods idiom, measuring
// display columns with github.com/mattn/go-runewidth (SPEC_FULL.md
// §4.13a) so multi-byte names still align in fixed-width layouts.
package dialogs

// Rect is a clamped rectangle in terminal cell coordinates.
type Rect struct {
	Row, Col, Width, Height int
}

// Clamp computes a dialog's Rect so that it never writes outside
// [0, screenCols) x [0, screenRows) (spec.md I10 in §8): width/height are
// capped to the screen, and the dialog is centered with
// max(0, (screen-dlg)/2) (spec.md §4.13, "clamp their own dimensions...
// centering uses max(0, (screen - dlg)/2)").
func Clamp(screenCols, screenRows, wantWidth, wantHeight int) Rect {
	width := min(wantWidth, screenCols)
	height := min(wantHeight, screenRows)
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	col := max(0, (screenCols-width)/2)
	row := max(0, (screenRows-height)/2)
	return Rect{Row: row, Col: col, Width: width, Height: height}
}

// KeyEvent is the subset of spec.md §6's KeyEvent a dialog's HandleKey
// needs: a named code (e.g. "Up", "Down", "Enter", "Escape") plus an
// optional literal character for text-entry fields.
type KeyEvent struct {
	Code string
	Char rune
	// HasChar reports whether Char is a printable character to insert,
	// as opposed to a bare control code.
	HasChar bool
}
