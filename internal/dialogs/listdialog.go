package dialogs

import "strings"

// ListDialog filters a list of string items by substring match, with
// selection confirmed by Enter (spec.md §4.13, "List dialog filters a
// list by substring match; selection is confirmed with Enter").
type ListDialog struct {
	items      []string
	filterText string
	cursor     int
	active     bool
}

// NewListDialog builds a ListDialog over items (the backing list is not
// copied defensively; callers should not mutate it while the dialog is
// active).
func NewListDialog(items []string) *ListDialog {
	return &ListDialog{items: items}
}

func (d *ListDialog) Enter() { d.active = true; d.filterText = ""; d.cursor = 0 }
func (d *ListDialog) Exit()  { d.active = false }
func (d *ListDialog) Active() bool { return d.active }

// Filtered returns the items matching the current filter text,
// case-insensitive substring match.
func (d *ListDialog) Filtered() []string {
	if d.filterText == "" {
		return d.items
	}
	needle := strings.ToLower(d.filterText)
	var out []string
	for _, item := range d.items {
		if strings.Contains(strings.ToLower(item), needle) {
			out = append(out, item)
		}
	}
	return out
}

// HandleKey processes navigation, filter text entry, and confirmation.
// Returns done=false except on Enter or Escape. Enter returns done=true
// with the row under the cursor, or selected="" when the filtered list is
// empty; Escape returns done=true with selected="".
func (d *ListDialog) HandleKey(ev KeyEvent) (selected string, done bool, consumed bool) {
	if !d.active {
		return "", false, false
	}
	filtered := d.Filtered()
	switch ev.Code {
	case "Escape":
		return "", true, true
	case "Enter":
		if d.cursor >= 0 && d.cursor < len(filtered) {
			return filtered[d.cursor], true, true
		}
		return "", true, true
	case "Up":
		d.cursor = max(0, d.cursor-1)
		return "", false, true
	case "Down":
		d.cursor = min(d.cursor+1, max(0, len(filtered)-1))
		return "", false, true
	case "Backspace":
		if len(d.filterText) > 0 {
			d.filterText = d.filterText[:len(d.filterText)-1]
			d.cursor = 0
		}
		return "", false, true
	}
	if ev.HasChar {
		d.filterText += string(ev.Char)
		d.cursor = 0
		return "", false, true
	}
	return "", false, false
}

// Cursor returns the current cursor index into Filtered().
func (d *ListDialog) Cursor() int { return d.cursor }

// FilterText returns the current filter text.
func (d *ListDialog) FilterText() string { return d.filterText }
