// Package termui is the TermUI adapter (spec.md §6, SPEC_FULL.md §2):
// it lives outside the core package boundary and translates tcell/v2
// events into the core's KeyEvent/ResizeEvent contract, and the core's
// (row, col, glyph, fg, bg, attrs) draw calls into tcell.Screen calls
// (SPEC_FULL.md §6). There is no direct rclone analogue (rclone has no
// terminal UI); this is written directly against the teacher's general
// "thin adapter wraps a third-party client" shape (e.g. backend/s3's
// Client interface over aws-sdk-go), applied here to tcell.Screen.
package termui

import (
	"io"
	"os"

	"github.com/gdamore/tcell/v2"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"

	"github.com/shimomut/tfm-sub008/internal/coordinator"
	"github.com/shimomut/tfm-sub008/internal/errs"
)

// maxColorPairs is the platform ceiling spec.md §6 names ("the color-pair
// allocation exceeds a known platform ceiling (observed at 32767)").
const maxColorPairs = 32767

// Color is an RGB terminal color the core selects; (-1,-1,-1) means
// "terminal default".
type Color struct {
	R, G, B int32
}

// Attrs is a bitset of text attributes the core may request.
type Attrs uint8

const (
	AttrBold Attrs = 1 << iota
	AttrUnderline
	AttrReverse
)

// Screen wraps a tcell.Screen, implementing the core's terminal I/O
// contract (spec.md §6).
type Screen struct {
	screen             tcell.Screen
	forceFallbackColors bool
}

// New initializes a tcell screen. forceFallbackColors overrides automatic
// true-color/256-color detection (Config.ForceFallbackColors, spec.md §6).
func New(forceFallbackColors bool) (*Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "termui_new", "screen", err)
	}
	if err := s.Init(); err != nil {
		return nil, errs.Wrap(errs.IoFailure, "termui_init", "screen", err)
	}
	return &Screen{screen: s, forceFallbackColors: forceFallbackColors}, nil
}

// Close tears down the screen, restoring the terminal to its prior state.
func (s *Screen) Close() { s.screen.Fini() }

// Size returns the current terminal dimensions in cells.
func (s *Screen) Size() (cols, rows int) { return s.screen.Size() }

// ColorCapable reports whether the terminal's color-pair allocation stays
// within the known ceiling and force_fallback_colors is not set (spec.md
// §6, "when the color-pair allocation exceeds a known platform ceiling
// ... the core switches to a fallback palette automatically").
func (s *Screen) ColorCapable() bool {
	if s.forceFallbackColors {
		return false
	}
	return s.screen.Colors() > 0 && s.screen.Colors() <= maxColorPairs
}

// Clear erases the screen's back buffer.
func (s *Screen) Clear() { s.screen.Clear() }

// Show flushes the back buffer to the terminal.
func (s *Screen) Show() { s.screen.Show() }

// Draw writes one cell: (row, col, glyph, fg, bg, attrs) (spec.md §6).
// Coordinates outside the current screen size are silently dropped,
// mirroring tcell's own SetContent clipping behavior, so a core bug
// computing an out-of-range coordinate can't panic the terminal.
func (s *Screen) Draw(row, col int, glyph rune, fg, bg Color, attrs Attrs) {
	cols, rows := s.screen.Size()
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return
	}
	style := tcell.StyleDefault
	if s.ColorCapable() {
		style = style.Foreground(rgbOrDefault(fg)).Background(rgbOrDefault(bg))
	}
	if attrs&AttrBold != 0 {
		style = style.Bold(true)
	}
	if attrs&AttrUnderline != 0 {
		style = style.Underline(true)
	}
	if attrs&AttrReverse != 0 {
		style = style.Reverse(true)
	}
	s.screen.SetContent(col, row, glyph, nil, style)
}

// DrawString writes text left to right starting at (row, col), one cell
// per rune, clipping at the screen edge via Draw.
func (s *Screen) DrawString(row, col int, text string, fg, bg Color, attrs Attrs) {
	for _, r := range text {
		s.Draw(row, col, r, fg, bg, attrs)
		col++
	}
}

func rgbOrDefault(c Color) tcell.Color {
	if c.R < 0 || c.G < 0 || c.B < 0 {
		return tcell.ColorDefault
	}
	return tcell.NewRGBColor(c.R, c.G, c.B)
}

// PollEvent blocks for the next terminal event, translated into the
// core's KeyEvent/ResizeEvent contract. ok is false once the screen has
// been closed and no further events will arrive.
func (s *Screen) PollEvent() (key coordinator.KeyEvent, resize coordinator.ResizeEvent, isResize bool, ok bool) {
	ev := s.screen.PollEvent()
	switch e := ev.(type) {
	case *tcell.EventKey:
		return translateKey(e), coordinator.ResizeEvent{}, false, true
	case *tcell.EventResize:
		cols, rows := e.Size()
		return coordinator.KeyEvent{}, coordinator.ResizeEvent{Cols: cols, Rows: rows}, true, true
	case nil:
		return coordinator.KeyEvent{}, coordinator.ResizeEvent{}, false, false
	default:
		// Mouse events and other tcell event types are outside spec.md
		// §6's contract (KeyEvent/SystemEvent only); drop and keep polling
		// is the caller's job (PollEvent returns ok=true with a zero
		// KeyEvent, which the Coordinator's HandleKey treats as a no-op).
		return coordinator.KeyEvent{}, coordinator.ResizeEvent{}, false, true
	}
}

func translateKey(e *tcell.EventKey) coordinator.KeyEvent {
	mods := coordinator.Modifiers(0)
	if e.Modifiers()&tcell.ModShift != 0 {
		mods |= coordinator.ModShift
	}
	if e.Modifiers()&tcell.ModCtrl != 0 {
		mods |= coordinator.ModCtrl
	}
	if e.Modifiers()&tcell.ModAlt != 0 {
		mods |= coordinator.ModAlt
	}
	if e.Key() == tcell.KeyRune {
		// Code carries the literal character so Config.KeyBindings can
		// bind single-character actions (e.g. "q", "r") the same way it
		// binds named keys ("Tab", "Enter"); HasChar/Char stay populated
		// for dialogs that need the raw rune (filter/input text entry).
		return coordinator.KeyEvent{Code: string(e.Rune()), Char: e.Rune(), HasChar: true, Modifiers: mods}
	}
	return coordinator.KeyEvent{Code: keyName(e.Key()), Modifiers: mods}
}

func keyName(k tcell.Key) string {
	switch k {
	case tcell.KeyEnter:
		return "Enter"
	case tcell.KeyEscape:
		return "Escape"
	case tcell.KeyUp:
		return "Up"
	case tcell.KeyDown:
		return "Down"
	case tcell.KeyLeft:
		return "Left"
	case tcell.KeyRight:
		return "Right"
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		return "Backspace"
	case tcell.KeyDelete:
		return "Delete"
	case tcell.KeyTab:
		return "Tab"
	case tcell.KeyCtrlC:
		return "Ctrl+C"
	default:
		return "Unknown"
	}
}

// IsInteractive reports whether stdout is attached to a real terminal,
// using github.com/mattn/go-isatty the same way the teacher's fs/config
// package detects an interactive session before prompting (SPEC_FULL.md
// §2, "go-isatty/go-colorable ... for color-mode detection").
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Stderr wraps os.Stderr with github.com/mattn/go-colorable so that
// pre-screen-init fatal messages (spec.md §6, "non-zero on fatal
// initialization failure") still render ANSI colors correctly on
// Windows consoles, before tcell itself has taken over the terminal.
func Stderr() io.Writer { return colorable.NewColorableStderr() }
