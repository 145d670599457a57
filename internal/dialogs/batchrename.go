package dialogs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shimomut/tfm-sub008/internal/errs"
)

// RowFlag classifies one batch-rename preview row (spec.md §4.13,
// "preview flags each row as OK | UNCHANGED | CONFLICT | INVALID").
type RowFlag int

const (
	FlagOK RowFlag = iota
	FlagUnchanged
	FlagConflict
	FlagInvalid
)

func (f RowFlag) String() string {
	switch f {
	case FlagOK:
		return "OK"
	case FlagUnchanged:
		return "UNCHANGED"
	case FlagConflict:
		return "CONFLICT"
	case FlagInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// Row is one entry of a batch-rename preview.
type Row struct {
	Src  string
	Dst  string
	Flag RowFlag
}

var macroPattern = regexp.MustCompile(`\\d|\\[0-9]`)

// expandMacros substitutes destination macros: \0 is the whole match,
// \1..\9 are capture groups, \d is a 1-based sequential counter across
// matched rows (spec.md §4.13, "destination macros \0, \1..\9, \d").
func expandMacros(destination string, match []string, counter int) string {
	return macroPattern.ReplaceAllStringFunc(destination, func(tok string) string {
		if tok == `\d` {
			return strconv.Itoa(counter)
		}
		idx := int(tok[1] - '0')
		if idx < len(match) {
			return match[idx]
		}
		return ""
	})
}

// Preview computes the batch-rename result for names against pattern/
// destination (spec.md §4.13, concrete scenario 3 in §8). Names that
// don't match pattern pass through unchanged (FlagUnchanged). Any two
// rows (including an unchanged row) that resolve to the same destination
// name are both flagged CONFLICT; a destination containing a path
// separator, or empty, is flagged INVALID.
func Preview(names []string, pattern, destination string) ([]Row, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, "batch_rename_preview", pattern, err)
	}
	rows := make([]Row, len(names))
	dstCount := map[string]int{}
	counter := 0
	for i, name := range names {
		match := re.FindStringSubmatch(name)
		if match == nil {
			rows[i] = Row{Src: name, Dst: name, Flag: FlagUnchanged}
			dstCount[name]++
			continue
		}
		counter++
		dst := expandMacros(destination, match, counter)
		flag := FlagOK
		switch {
		case dst == "" || strings.ContainsAny(dst, "/\\"):
			flag = FlagInvalid
		case dst == name:
			flag = FlagUnchanged
		}
		rows[i] = Row{Src: name, Dst: dst, Flag: flag}
		if flag != FlagInvalid {
			dstCount[dst]++
		}
	}
	for i := range rows {
		if rows[i].Flag == FlagInvalid {
			continue
		}
		if dstCount[rows[i].Dst] > 1 {
			rows[i].Flag = FlagConflict
		}
	}
	return rows, nil
}

// focusField identifies which of BatchRename's two text editors has
// keyboard focus (spec.md §4.13, "two text editors (regex, destination)
// with focus switching by Up/Down").
type focusField int

const (
	focusPattern focusField = iota
	focusDestination
)

// BatchRename is the batch-rename dialog's state machine.
type BatchRename struct {
	Pattern     string
	Destination string
	focus       focusField
	active      bool
}

func (b *BatchRename) Enter() { b.active = true; b.focus = focusPattern }
func (b *BatchRename) Exit()  { b.active = false }
func (b *BatchRename) Active() bool { return b.active }

// HandleKey edits whichever field has focus, switches focus on Up/Down,
// and reports done=true on Enter (confirm) or Escape (cancel, confirmed
// is always false in that case).
func (b *BatchRename) HandleKey(ev KeyEvent) (confirmed bool, done bool, consumed bool) {
	if !b.active {
		return false, false, false
	}
	switch ev.Code {
	case "Escape":
		return false, true, true
	case "Enter":
		return true, true, true
	case "Up":
		b.focus = focusPattern
		return false, false, true
	case "Down":
		b.focus = focusDestination
		return false, false, true
	case "Backspace":
		b.backspace()
		return false, false, true
	}
	if ev.HasChar {
		b.insert(ev.Char)
		return false, false, true
	}
	return false, false, false
}

func (b *BatchRename) insert(ch rune) {
	if b.focus == focusPattern {
		b.Pattern += string(ch)
	} else {
		b.Destination += string(ch)
	}
}

func (b *BatchRename) backspace() {
	if b.focus == focusPattern {
		if len(b.Pattern) > 0 {
			b.Pattern = b.Pattern[:len(b.Pattern)-1]
		}
		return
	}
	if len(b.Destination) > 0 {
		b.Destination = b.Destination[:len(b.Destination)-1]
	}
}

// Preview computes the current preview rows for names against this
// dialog's live Pattern/Destination fields.
func (b *BatchRename) Preview(names []string) ([]Row, error) {
	return Preview(names, b.Pattern, b.Destination)
}

// Execute applies rename(src, dst) for every row whose Flag permits it
// (OK only; UNCHANGED rows need no rename), refusing the whole batch if
// any row is CONFLICT or INVALID (spec.md §4.13, "Execution refuses any
// CONFLICT/INVALID row").
func Execute(rows []Row, rename func(src, dst string) error) error {
	for _, row := range rows {
		if row.Flag == FlagConflict || row.Flag == FlagInvalid {
			return errs.New(errs.ConflictingState, "batch_rename_execute", row.Src)
		}
	}
	for _, row := range rows {
		if row.Flag != FlagOK {
			continue
		}
		if err := rename(row.Src, row.Dst); err != nil {
			return err
		}
	}
	return nil
}
