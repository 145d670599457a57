package dialogs

// InputDialog is a single-line text editor dialog, used for rename,
// create (file/dir), jump-to-path, and search-query entry (spec.md
// §4.13: rename/create/jump/search dialogs all reduce to "one text field,
// confirm with Enter, cancel with Escape").
type InputDialog struct {
	Prompt string
	Text   string
	cursor int
	active bool
}

// NewInputDialog builds an InputDialog pre-filled with initial text (e.g.
// the current filename for a rename), cursor placed at the end.
func NewInputDialog(prompt, initial string) *InputDialog {
	return &InputDialog{Prompt: prompt, Text: initial, cursor: len([]rune(initial))}
}

func (d *InputDialog) Enter() { d.active = true }
func (d *InputDialog) Exit()  { d.active = false }
func (d *InputDialog) Active() bool { return d.active }
func (d *InputDialog) Cursor() int  { return d.cursor }

// HandleKey edits Text in place, confirming with Enter (done=true,
// confirmed=true) or cancelling with Escape (done=true, confirmed=false).
func (d *InputDialog) HandleKey(ev KeyEvent) (confirmed bool, done bool, consumed bool) {
	if !d.active {
		return false, false, false
	}
	runes := []rune(d.Text)
	switch ev.Code {
	case "Escape":
		return false, true, true
	case "Enter":
		return true, true, true
	case "Left":
		d.cursor = max(0, d.cursor-1)
		return false, false, true
	case "Right":
		d.cursor = min(d.cursor+1, len(runes))
		return false, false, true
	case "Backspace":
		if d.cursor > 0 {
			runes = append(runes[:d.cursor-1], runes[d.cursor:]...)
			d.cursor--
			d.Text = string(runes)
		}
		return false, false, true
	case "Delete":
		if d.cursor < len(runes) {
			runes = append(runes[:d.cursor], runes[d.cursor+1:]...)
			d.Text = string(runes)
		}
		return false, false, true
	}
	if ev.HasChar {
		runes = append(runes[:d.cursor], append([]rune{ev.Char}, runes[d.cursor:]...)...)
		d.Text = string(runes)
		d.cursor++
		return false, false, true
	}
	return false, false, false
}

// InfoDialog displays static informational text, dismissed by any key
// (spec.md §4.13's implicit info-dialog: a read-only message box).
type InfoDialog struct {
	Title  string
	Lines  []string
	active bool
}

func (d *InfoDialog) Enter() { d.active = true }
func (d *InfoDialog) Exit()  { d.active = false }
func (d *InfoDialog) Active() bool { return d.active }

// HandleKey dismisses the dialog on any key.
func (d *InfoDialog) HandleKey(ev KeyEvent) (done bool, consumed bool) {
	if !d.active {
		return false, false
	}
	return true, true
}
