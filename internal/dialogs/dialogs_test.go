package dialogs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampNeverExceedsScreen(t *testing.T) {
	r := Clamp(80, 24, 200, 200)
	assert.LessOrEqual(t, r.Width, 80)
	assert.LessOrEqual(t, r.Height, 24)
	assert.GreaterOrEqual(t, r.Row, 0)
	assert.GreaterOrEqual(t, r.Col, 0)
}

func TestClampCentersWithinBounds(t *testing.T) {
	r := Clamp(80, 24, 40, 10)
	require.Equal(t, 40, r.Width)
	require.Equal(t, 10, r.Height)
	assert.Equal(t, 20, r.Col)
	assert.Equal(t, 7, r.Row)
	assert.LessOrEqual(t, r.Row+r.Height, 24, "dialog writes outside screen bounds: %+v", r)
	assert.LessOrEqual(t, r.Col+r.Width, 80, "dialog writes outside screen bounds: %+v", r)
}

func TestClampHandlesZeroScreen(t *testing.T) {
	r := Clamp(0, 0, 10, 10)
	assert.Equal(t, Rect{}, r)
}

func TestQuickChoiceResolvesHotkey(t *testing.T) {
	q := &QuickChoice{Message: "Overwrite?", Choices: []Choice{
		{Label: "Yes", Key: "y", Tag: "yes"},
		{Label: "No", Key: "n", Tag: "no"},
	}}
	q.Enter()
	tag, done, consumed := q.HandleKey(KeyEvent{HasChar: true, Char: 'y'})
	require.True(t, done)
	require.True(t, consumed)
	assert.Equal(t, "yes", tag)
}

func TestQuickChoiceEscapeCancels(t *testing.T) {
	q := &QuickChoice{Choices: []Choice{{Label: "Yes", Key: "y", Tag: "yes"}}}
	q.Enter()
	tag, done, consumed := q.HandleKey(KeyEvent{Code: "Escape"})
	assert.Empty(t, tag)
	assert.True(t, done)
	assert.True(t, consumed)
}

func TestListDialogFiltersBySubstring(t *testing.T) {
	d := NewListDialog([]string{"alpha", "beta", "gamma"})
	d.Enter()
	d.HandleKey(KeyEvent{HasChar: true, Char: 'a'})
	filtered := d.Filtered()
	assert.ElementsMatch(t, []string{"alpha", "beta", "gamma"}, filtered)

	d.HandleKey(KeyEvent{HasChar: true, Char: 'l'})
	filtered = d.Filtered()
	require.Len(t, filtered, 1)
	assert.Equal(t, "alpha", filtered[0])
}

func TestListDialogEnterConfirmsCursorItem(t *testing.T) {
	d := NewListDialog([]string{"one", "two"})
	d.Enter()
	d.HandleKey(KeyEvent{Code: "Down"})
	selected, done, consumed := d.HandleKey(KeyEvent{Code: "Enter"})
	require.True(t, done)
	require.True(t, consumed)
	assert.Equal(t, "two", selected)
}

func TestBatchRenamePreviewMacrosAndCounter(t *testing.T) {
	rows, err := Preview([]string{"a.txt", "b.txt"}, `(.*)\.txt`, `\1_\d.md`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a_1.md", rows[0].Dst)
	assert.Equal(t, FlagOK, rows[0].Flag)
	assert.Equal(t, "b_2.md", rows[1].Dst)
	assert.Equal(t, FlagOK, rows[1].Flag)
}

func TestBatchRenamePreviewUnmatchedIsUnchanged(t *testing.T) {
	rows, err := Preview([]string{"README"}, `(.*)\.txt`, `\1.md`)
	require.NoError(t, err)
	assert.Equal(t, FlagUnchanged, rows[0].Flag)
	assert.Equal(t, "README", rows[0].Dst)
}

func TestBatchRenamePreviewConflictOnCollision(t *testing.T) {
	rows, err := Preview([]string{"a1.txt", "a2.txt"}, `a\d\.txt`, `same.md`)
	require.NoError(t, err)
	for _, row := range rows {
		assert.Equal(t, FlagConflict, row.Flag, "expected CONFLICT for colliding destination, got %+v", rows)
	}
}

func TestBatchRenamePreviewInvalidOnPathSeparator(t *testing.T) {
	rows, err := Preview([]string{"a.txt"}, `(.*)\.txt`, `sub/\1.md`)
	require.NoError(t, err)
	assert.Equal(t, FlagInvalid, rows[0].Flag)
}

func TestExecuteRefusesWhenAnyRowIsConflictOrInvalid(t *testing.T) {
	rows := []Row{
		{Src: "a.txt", Dst: "b.txt", Flag: FlagOK},
		{Src: "c.txt", Dst: "d.txt", Flag: FlagConflict},
	}
	called := false
	err := Execute(rows, func(src, dst string) error { called = true; return nil })
	require.Error(t, err, "expected Execute to refuse a batch containing a CONFLICT row")
	assert.False(t, called, "Execute must not apply any rename when refusing the batch")
}

func TestExecuteAppliesOnlyOKRows(t *testing.T) {
	rows := []Row{
		{Src: "a.txt", Dst: "a_1.md", Flag: FlagOK},
		{Src: "README", Dst: "README", Flag: FlagUnchanged},
	}
	var applied [][2]string
	err := Execute(rows, func(src, dst string) error {
		applied = append(applied, [2]string{src, dst})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, applied, 1)
	assert.Equal(t, [2]string{"a.txt", "a_1.md"}, applied[0])
}

func TestInputDialogInsertAndBackspace(t *testing.T) {
	d := NewInputDialog("Rename:", "abc")
	d.Enter()
	d.HandleKey(KeyEvent{HasChar: true, Char: 'd'})
	require.Equal(t, "abcd", d.Text)
	d.HandleKey(KeyEvent{Code: "Backspace"})
	assert.Equal(t, "abc", d.Text)
}

func TestColumnWidthsMeasuresWideRunes(t *testing.T) {
	widths := ColumnWidths([]string{"ab", "日本語"})
	require.Equal(t, 2, widths[0])
	assert.Greater(t, widths[1], widths[0])
}
