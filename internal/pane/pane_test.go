package pane

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm-sub008/internal/vpath"
	"github.com/shimomut/tfm-sub008/internal/vpath/local"
)

func TestCursorHistoryBoundedAndDeduplicates(t *testing.T) {
	h := newCursorHistory(3)
	h.save("file:///a", "x")
	h.save("file:///b", "y")
	h.save("file:///c", "z")
	require.Equal(t, 3, h.len())
	h.save("file:///d", "w") // evicts /a (LRU)
	require.Equal(t, 3, h.len())
	_, ok := h.lookup("file:///a")
	assert.False(t, ok, "expected /a to be evicted")

	h.save("file:///b", "y2") // dedup: update in place, bump recency
	require.Equal(t, 3, h.len())
	name, ok := h.lookup("file:///b")
	require.True(t, ok)
	assert.Equal(t, "y2", name)
}

func makeEntry(name string, dir bool) vpath.DirEntry {
	p := local.New("/tmp/root/" + name)
	kind := vpath.KindFile
	if dir {
		kind = vpath.KindDir
	}
	return vpath.NewDirEntry(p, 0, time.Time{}, kind)
}

func TestNavigateIntoSavesCursorAndGoParentIsSymmetric(t *testing.T) {
	root := local.New("/tmp/root")
	m := New(root, 100, nil)
	m.entries = []vpath.DirEntry{makeEntry("a.txt", false), makeEntry("sub", true)}
	m.SetCursorIndex(1) // focus "sub"

	sub := root.Join("sub")
	m.NavigateInto(sub)
	require.Equal(t, sub.URI(), m.Cwd().URI())
	require.Equal(t, 1, m.HistoryLen())
	name, ok := m.history.lookup(root.URI())
	require.True(t, ok)
	assert.Equal(t, "sub", name)

	m.entries = []vpath.DirEntry{makeEntry("inner.txt", false)}
	m.SetCursorIndex(0)
	m.GoParent()
	assert.Equal(t, root.URI(), m.Cwd().URI())
}

func TestApplyDropsStaleRefresh(t *testing.T) {
	root := local.New("/tmp/root")
	m := New(root, 100, nil)

	id1, _ := m.BeginRefresh()
	id2, _ := m.BeginRefresh()

	applied, _ := m.Apply(RefreshResult{refreshID: id1, entries: []vpath.DirEntry{makeEntry("stale.txt", false)}})
	assert.False(t, applied, "stale refresh (id %d, current %d) should have been dropped", id1, id2)

	applied, _ = m.Apply(RefreshResult{refreshID: id2, entries: []vpath.DirEntry{makeEntry("fresh.txt", false)}})
	require.True(t, applied, "current refresh should be applied")
	require.Len(t, m.Entries(), 1)
	assert.Equal(t, "fresh.txt", m.Entries()[0].Path.Name())
}

func TestApplyRestoresCursorFromHistory(t *testing.T) {
	root := local.New("/tmp/root")
	m := New(root, 100, nil)
	m.history.save(root.URI(), "b.txt")

	id, _ := m.BeginRefresh()
	m.Apply(RefreshResult{refreshID: id, entries: []vpath.DirEntry{
		makeEntry("a.txt", false), makeEntry("b.txt", false), makeEntry("c.txt", false),
	}})
	entry, ok := m.CursorEntry()
	require.True(t, ok)
	assert.Equal(t, "b.txt", entry.Path.Name())
}

func TestApplyOnErrorFallsBackToEmptyAndKeepsHistory(t *testing.T) {
	root := local.New("/tmp/root")
	m := New(root, 100, nil)
	m.history.save(root.URI(), "b.txt")

	id, _ := m.BeginRefresh()
	applied, msg := m.Apply(RefreshResult{refreshID: id, err: errTest{}})
	require.True(t, applied, "error result should still apply (fall back to empty)")
	assert.NotEmpty(t, msg, "expected a user-visible message on refresh error")
	assert.Empty(t, m.Entries())
	assert.Equal(t, 1, m.HistoryLen(), "history should be preserved across refresh failure")
}

type errTest struct{}

func (errTest) Error() string { return "boom" }

func TestSelectionStaysSubsetOfEntriesAfterRefresh(t *testing.T) {
	root := local.New("/tmp/root")
	m := New(root, 100, nil)
	m.entries = []vpath.DirEntry{makeEntry("a.txt", false), makeEntry("b.txt", false)}
	m.ToggleSelection("a.txt")
	m.ToggleSelection("b.txt")

	id, _ := m.BeginRefresh()
	m.Apply(RefreshResult{refreshID: id, entries: []vpath.DirEntry{makeEntry("b.txt", false)}})

	assert.False(t, m.IsSelected("a.txt"), "a.txt should have been pruned from selection: no longer in entries")
	assert.True(t, m.IsSelected("b.txt"), "b.txt should remain selected")
}

func TestSortDirsFirstThenByName(t *testing.T) {
	entries := []vpath.DirEntry{
		makeEntry("zeta.txt", false),
		makeEntry("alpha_dir", true),
		makeEntry("alpha.txt", false),
	}
	sortEntries(entries, SortByName, true)
	require.Equal(t, "alpha_dir", entries[0].Path.Name(), "dirs-first violated: %+v", entries)
	assert.Equal(t, "alpha.txt", entries[1].Path.Name())
	assert.Equal(t, "zeta.txt", entries[2].Path.Name())
}

func TestSelectedNamesFallsBackToCursor(t *testing.T) {
	root := local.New("/tmp/root")
	m := New(root, 100, nil)
	m.entries = []vpath.DirEntry{makeEntry("a.txt", false)}
	m.SetCursorIndex(0)
	names := m.SelectedNames()
	require.Len(t, names, 1)
	assert.Equal(t, "a.txt", names[0])
}
