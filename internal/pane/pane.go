// Package pane implements PaneModel, the per-pane navigation state
// described in spec.md §4.8: cwd, entries, cursor, selection, sort/filter,
// and a bounded cursor-history LRU. There is no direct rclone analogue in
// this retrieval (rclone has no interactive dual-pane UI), so this is
// written directly from spec.md §3/§4.8 in the teacher's general
// struct-plus-methods style, reusing its container/list-backed LRU idiom
// (grounded on backend/netexplorer/netexplorer.go, which keeps a
// container/list-based bounded cache of discovered hosts).
package pane

import (
	"container/list"
	"context"
	"sort"
	"strings"

	"github.com/shimomut/tfm-sub008/internal/logging"
	"github.com/shimomut/tfm-sub008/internal/vpath"
)

// SortKey selects the ordering applied to a pane's entries (spec.md §4.8,
// "Sort keys: name, size, mtime, extension; stable; directories-first
// toggle").
type SortKey int

const (
	SortByName SortKey = iota
	SortBySize
	SortByModTime
	SortByExtension
)

// historyEntry is one (cwd_uri, name) tuple in the cursor-history LRU
// (spec.md §4.8, "Cursor history").
type historyEntry struct {
	cwdURI string
	name   string
}

// cursorHistory is a bounded LRU map from cwd URI to the name that was
// focused when the pane last left that directory, capacity-bounded with
// LRU eviction on overflow (spec.md §3, "cursor_history: BoundedMap").
type cursorHistory struct {
	capacity int
	order    *list.List               // front = most recently used
	index    map[string]*list.Element // cwdURI -> element (element.Value is *historyEntry)
}

func newCursorHistory(capacity int) *cursorHistory {
	if capacity <= 0 {
		capacity = 100
	}
	return &cursorHistory{capacity: capacity, order: list.New(), index: map[string]*list.Element{}}
}

// save records that name was focused when leaving cwdURI, evicting the
// least-recently-used entry if capacity is exceeded. Identical cwd
// entries deduplicate to the most recent save (spec.md I6 in §8).
func (h *cursorHistory) save(cwdURI, name string) {
	if el, ok := h.index[cwdURI]; ok {
		el.Value.(*historyEntry).name = name
		h.order.MoveToFront(el)
		return
	}
	el := h.order.PushFront(&historyEntry{cwdURI: cwdURI, name: name})
	h.index[cwdURI] = el
	for h.order.Len() > h.capacity {
		oldest := h.order.Back()
		if oldest == nil {
			break
		}
		h.order.Remove(oldest)
		delete(h.index, oldest.Value.(*historyEntry).cwdURI)
	}
}

// lookup returns the name saved for cwdURI, if any, without changing its
// recency (restoring a position is not itself a "use" for LRU purposes —
// only navigating away and saving bumps recency, per spec.md §4.8's
// "Save occurs on every directory transition").
func (h *cursorHistory) lookup(cwdURI string) (string, bool) {
	el, ok := h.index[cwdURI]
	if !ok {
		return "", false
	}
	return el.Value.(*historyEntry).name, true
}

// len reports the number of entries currently held (spec.md I6 in §8).
func (h *cursorHistory) len() int { return h.order.Len() }

// filterRemote discards entries whose cwdURI is a local scheme and fails
// an existence check, keeping everything else unconditionally (spec.md
// §4.8, "Remote-path cleanup on startup": "remote entries are preserved
// unconditionally (no network call at startup)").
func (h *cursorHistory) filterRemote(ctx context.Context, existsLocal func(ctx context.Context, uri string) bool) {
	var toRemove []string
	for el := h.order.Front(); el != nil; el = el.Next() {
		entry := el.Value.(*historyEntry)
		if !strings.HasPrefix(entry.cwdURI, "file://") {
			continue // remote: preserved unconditionally
		}
		if !existsLocal(ctx, entry.cwdURI) {
			toRemove = append(toRemove, entry.cwdURI)
		}
	}
	for _, uri := range toRemove {
		if el, ok := h.index[uri]; ok {
			h.order.Remove(el)
			delete(h.index, uri)
		}
	}
}

// Model is the per-pane state machine: cwd, entries, cursor, selection,
// sort/filter, and cursor history (spec.md §3/§4.8). Mutation is
// serialized on a single UI thread by convention (the Coordinator never
// calls Model methods from a worker goroutine); Model itself is not
// internally synchronized.
type Model struct {
	cwd          vpath.Path
	entries      []vpath.DirEntry
	sortKey      SortKey
	dirsFirst    bool
	filterText   string
	cursorIndex  int
	scrollOffset int
	selection    map[string]bool
	history      *cursorHistory
	logger       logging.Logger

	// lastRefreshID guards against out-of-order Refresh completions
	// superseding a newer one (spec.md §5, "refresh results supersede
	// prior refresh results by monotonic refresh-id").
	lastRefreshID uint64
}

// New builds a Model rooted at cwd. historyDepth is the cursor-history
// capacity (Config.CursorHistoryDepth, default 100).
func New(cwd vpath.Path, historyDepth int, logger logging.Logger) *Model {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Model{
		cwd:       cwd,
		sortKey:   SortByName,
		dirsFirst: true,
		selection: map[string]bool{},
		history:   newCursorHistory(historyDepth),
		logger:    logger,
	}
}

func (m *Model) Cwd() vpath.Path            { return m.cwd }
func (m *Model) Entries() []vpath.DirEntry  { return m.entries }
func (m *Model) CursorIndex() int           { return m.cursorIndex }
func (m *Model) ScrollOffset() int          { return m.scrollOffset }
func (m *Model) SortKey() SortKey           { return m.sortKey }
func (m *Model) FilterText() string         { return m.filterText }
func (m *Model) HistoryLen() int            { return m.history.len() }
func (m *Model) SetScrollOffset(offset int) { m.scrollOffset = offset }

// CursorEntry returns the entry at CursorIndex, or the zero value and
// false if entries is empty (invariant cursor_index ∈ [0, len(entries))
// only holds when entries is non-empty).
func (m *Model) CursorEntry() (vpath.DirEntry, bool) {
	if m.cursorIndex < 0 || m.cursorIndex >= len(m.entries) {
		return vpath.DirEntry{}, false
	}
	return m.entries[m.cursorIndex], true
}

// SetCursorIndex clamps idx into [0, len(entries)) (spec.md §3 invariant).
func (m *Model) SetCursorIndex(idx int) {
	m.cursorIndex = clamp(idx, 0, len(m.entries)-1)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// IsSelected reports whether name is in the selection set.
func (m *Model) IsSelected(name string) bool { return m.selection[name] }

// ToggleSelection flips the selection state of name. selection ⊆
// names(entries) is maintained by Apply, which drops selected names
// that no longer exist in the new entry list.
func (m *Model) ToggleSelection(name string) {
	if m.selection[name] {
		delete(m.selection, name)
	} else {
		m.selection[name] = true
	}
}

// ClearSelection empties the selection set.
func (m *Model) ClearSelection() { m.selection = map[string]bool{} }

// SelectedNames returns the current selection as a sorted slice, or — if
// empty — falls back to the name under the cursor (spec.md §6,
// "TFM_*_SELECTED ... falls back to the cursor file if selection is
// empty").
func (m *Model) SelectedNames() []string {
	if len(m.selection) == 0 {
		if entry, ok := m.CursorEntry(); ok {
			return []string{entry.Path.Name()}
		}
		return nil
	}
	names := make([]string, 0, len(m.selection))
	for name := range m.selection {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetSortKey changes the active sort key and re-sorts entries in place,
// preserving the cursor's name (not its index) across the re-sort.
func (m *Model) SetSortKey(key SortKey) {
	m.sortKey = key
	m.resort()
}

// ToggleDirsFirst flips the directories-first display toggle and re-sorts.
func (m *Model) ToggleDirsFirst() {
	m.dirsFirst = !m.dirsFirst
	m.resort()
}

// SetFilter updates the substring filter applied by the next BeginRefresh
// closure. Filtering does not itself trigger a refresh; the caller starts
// one after changing the filter, matching the rest of Model's "pure state
// transition" design (spec.md §4.8, "Pure state transitions").
func (m *Model) SetFilter(text string) { m.filterText = text }

func (m *Model) resort() {
	before, hadCursor := m.CursorEntry()
	var beforeName string
	if hadCursor {
		beforeName = before.Path.Name()
	}
	sortEntries(m.entries, m.sortKey, m.dirsFirst)
	if hadCursor {
		m.restoreCursorByName(beforeName)
	}
}

func (m *Model) restoreCursorByName(name string) {
	for i, e := range m.entries {
		if e.Path.Name() == name {
			m.cursorIndex = i
			return
		}
	}
	m.cursorIndex = clamp(m.cursorIndex, 0, len(m.entries)-1)
}

// sortEntries sorts entries by key, stably, with an optional
// directories-first grouping applied ahead of the key comparison (spec.md
// §4.8, "Sort keys: ...; stable; directories-first toggle").
func sortEntries(entries []vpath.DirEntry, key SortKey, dirsFirst bool) {
	isDir := func(e vpath.DirEntry) bool {
		return e.Kind == vpath.KindDir || e.Kind == vpath.KindVirtualDir
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if dirsFirst && isDir(a) != isDir(b) {
			return isDir(a)
		}
		switch key {
		case SortBySize:
			return a.Size < b.Size
		case SortByModTime:
			return a.ModTime.Before(b.ModTime)
		case SortByExtension:
			return extOf(a.Path.Name()) < extOf(b.Path.Name())
		default:
			return a.Path.Name() < b.Path.Name()
		}
	})
}

func extOf(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return ""
	}
	return name[idx:]
}

// RefreshResult carries the outcome of draining cwd.Iterdir, to be applied
// by Apply. The closure that computes it touches no Model state, so it may
// run on any goroutine; Apply must run on the UI thread so PaneModel
// mutation stays single-threaded (spec.md §5, "Scheduling").
type RefreshResult struct {
	refreshID uint64
	entries   []vpath.DirEntry
	err       error
}

// BeginRefresh allocates the next monotonic refresh id and returns a
// closure that performs the actual I/O (draining Iterdir, filtering);
// the caller runs the closure and then calls Apply with its result (the
// Coordinator's RefreshActivePane and cmd/tfm both run it synchronously on
// the UI thread) (spec.md §5, "per pane, refresh results supersede prior
// refresh results by monotonic refresh-id; out-of-order completions are
// dropped").
func (m *Model) BeginRefresh() (refreshID uint64, run func(ctx context.Context) RefreshResult) {
	m.lastRefreshID++
	id := m.lastRefreshID
	cwd := m.cwd
	filter := m.filterText
	return id, func(ctx context.Context) RefreshResult {
		entries, err := drain(ctx, cwd, filter)
		return RefreshResult{refreshID: id, entries: entries, err: err}
	}
}

func drain(ctx context.Context, cwd vpath.Path, filter string) ([]vpath.DirEntry, error) {
	it, err := cwd.Iterdir(ctx)
	if err != nil {
		return nil, err
	}
	var out []vpath.DirEntry
	for {
		p, ok, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if filter != "" && !strings.Contains(strings.ToLower(p.Name()), strings.ToLower(filter)) {
			continue
		}
		out = append(out, vpath.NewDirEntry(p, p.Hint().Size, p.Hint().ModTime, p.Hint().Kind))
	}
	return out, nil
}

// Apply installs result if it is not stale (result.refreshID ==
// m.lastRefreshID); a stale result is silently dropped (spec.md §5).
// On error, entries fall back to empty and a user-visible message is
// returned; cursor history is preserved either way (spec.md §7, "Pane
// refresh failures fall back to an empty entry list and a user-visible
// message; cursor history is preserved").
func (m *Model) Apply(result RefreshResult) (applied bool, userMessage string) {
	if result.refreshID != m.lastRefreshID {
		m.logger.Debugf("dropping stale refresh %d (current %d)", result.refreshID, m.lastRefreshID)
		return false, ""
	}
	if result.err != nil {
		m.entries = nil
		m.cursorIndex = 0
		return true, "refresh failed: " + result.err.Error()
	}
	sortEntries(result.entries, m.sortKey, m.dirsFirst)
	m.entries = result.entries
	m.pruneSelection()
	m.restoreCursorAfterRefresh()
	return true, ""
}

// pruneSelection keeps selection ⊆ names(entries) (spec.md §3 invariant).
func (m *Model) pruneSelection() {
	live := make(map[string]bool, len(m.entries))
	for _, e := range m.entries {
		live[e.Path.Name()] = true
	}
	for name := range m.selection {
		if !live[name] {
			delete(m.selection, name)
		}
	}
}

// restoreCursorAfterRefresh places the cursor at the name saved in
// history for this cwd, or index 0 if there is no saved name or it is no
// longer present (spec.md §4.8, "refresh: ... After refresh, if
// cursor_history has a prior name for this cwd, place cursor there; else
// cursor at index 0").
func (m *Model) restoreCursorAfterRefresh() {
	if name, ok := m.history.lookup(m.cwd.URI()); ok {
		for i, e := range m.entries {
			if e.Path.Name() == name {
				m.cursorIndex = i
				return
			}
		}
	}
	m.cursorIndex = 0
}

// NavigateInto saves the current (cwd, selected-name) into cursor_history
// and sets cwd to path; the caller is responsible for triggering a
// refresh afterward (spec.md §4.8, "navigate_into(path)").
func (m *Model) NavigateInto(path vpath.Path) {
	m.saveCursor()
	m.cwd = path
	m.filterText = ""
}

// GoParent is the symmetric operation to NavigateInto (spec.md §4.8,
// "go_parent: symmetric").
func (m *Model) GoParent() {
	m.saveCursor()
	m.cwd = m.cwd.Parent()
	m.filterText = ""
}

// saveCursor records the currently-focused entry's name into the
// cursor-history LRU under the current cwd (spec.md §4.8, "Save occurs on
// every directory transition. Save/restore operates purely on names,
// never on positional indexes").
func (m *Model) saveCursor() {
	if entry, ok := m.CursorEntry(); ok {
		m.history.save(m.cwd.URI(), entry.Path.Name())
	}
}

// CleanHistory filters cursor history against existence for local
// schemes only at startup; remote entries are preserved unconditionally
// (spec.md §4.8, "Remote-path cleanup on startup").
func (m *Model) CleanHistory(ctx context.Context, existsLocal func(ctx context.Context, uri string) bool) {
	m.history.filterRemote(ctx, existsLocal)
}
