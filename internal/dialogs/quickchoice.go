package dialogs

// Choice is one labeled hotkey option of a QuickChoice dialog (spec.md
// §4.13, "Quick-choice: displays a message plus labeled hotkeys and
// returns a choice tag").
type Choice struct {
	Label string
	Key   string // the key code that selects this choice, e.g. "y", "n"
	Tag   string // returned to the caller on selection
}

// QuickChoice is a message plus a fixed set of labeled hotkey choices.
type QuickChoice struct {
	Message string
	Choices []Choice
	active  bool
}

// Enter activates the dialog.
func (q *QuickChoice) Enter() { q.active = true }

// Exit deactivates the dialog.
func (q *QuickChoice) Exit() { q.active = false }

// Active reports whether the dialog currently owns input (spec.md §4.9,
// "Active dialog exclusivity").
func (q *QuickChoice) Active() bool { return q.active }

// HandleKey consumes ev if it matches one of the dialog's hotkeys
// (case-sensitive, matching the configured Key exactly) or "Escape",
// which cancels with tag="". Any other key is not consumed, so the
// Coordinator falls through to Normal-mode key resolution for it.
func (q *QuickChoice) HandleKey(ev KeyEvent) (tag string, done bool, consumed bool) {
	if !q.active {
		return "", false, false
	}
	if ev.Code == "Escape" {
		return "", true, true
	}
	if ev.HasChar {
		for _, c := range q.Choices {
			if c.Key == string(ev.Char) {
				return c.Tag, true, true
			}
		}
	}
	for _, c := range q.Choices {
		if c.Key == ev.Code {
			return c.Tag, true, true
		}
	}
	return "", false, false
}
