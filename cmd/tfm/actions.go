package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shimomut/tfm-sub008/internal/archiveops"
	"github.com/shimomut/tfm-sub008/internal/coordinator"
	"github.com/shimomut/tfm-sub008/internal/dialogs"
	"github.com/shimomut/tfm-sub008/internal/jobs"
	"github.com/shimomut/tfm-sub008/internal/pane"
	"github.com/shimomut/tfm-sub008/internal/vpath"
	"github.com/shimomut/tfm-sub008/internal/vpath/archivestore"
)

// quitRequested is set by the "quit" action and checked at the top of the event
// loop; the Coordinator itself has no notion of exiting (spec.md §4.9
// scopes it to input handling and mode management only).
var quitRequested bool

// defaultKeyBindings covers the Normal-mode actions a fresh install needs
// before the user has edited key_bindings in config.yaml (spec.md §3's
// key_bindings option is a map the user can fully override; this is only
// the out-of-the-box default, mirroring config.Default()'s role for every
// other option).
func defaultKeyBindings() map[string][]string {
	return map[string][]string{
		"quit":            {"q"},
		"switch_pane":     {"Tab"},
		"move_down":       {"Down", "j"},
		"move_up":         {"Up", "k"},
		"enter_dir":       {"Enter"},
		"go_parent":       {"Backspace"},
		"toggle_select":   {" "},
		"refresh":         {"r"},
		"subshell":        {"!"},
		"copy_to_other":   {"c"},
		"move_to_other":   {"m"},
		"delete_selected": {"d"},
		"archive_create":  {"a"},
		"archive_extract": {"x"},
		"search":          {"/"},
		"grep":            {"g"},
	}
}

func registerActions(a *app, c *coordinator.Coordinator) {
	c.RegisterAction("quit", func(c *coordinator.Coordinator) error {
		quitRequested = true
		return nil
	})

	c.RegisterAction("switch_pane", func(c *coordinator.Coordinator) error {
		c.SwitchPane()
		return nil
	})

	c.RegisterAction("move_down", func(c *coordinator.Coordinator) error {
		m := c.ActivePaneModel()
		m.SetCursorIndex(m.CursorIndex() + 1)
		return nil
	})

	c.RegisterAction("move_up", func(c *coordinator.Coordinator) error {
		m := c.ActivePaneModel()
		m.SetCursorIndex(m.CursorIndex() - 1)
		return nil
	})

	c.RegisterAction("toggle_select", func(c *coordinator.Coordinator) error {
		m := c.ActivePaneModel()
		if entry, ok := m.CursorEntry(); ok {
			m.ToggleSelection(entry.Path.Name())
		}
		return nil
	})

	c.RegisterAction("enter_dir", func(c *coordinator.Coordinator) error {
		m := c.ActivePaneModel()
		entry, ok := m.CursorEntry()
		if !ok || entry.Kind != vpath.KindDir {
			return nil
		}
		m.NavigateInto(entry.Path)
		refreshPane(m)
		return nil
	})

	c.RegisterAction("go_parent", func(c *coordinator.Coordinator) error {
		m := c.ActivePaneModel()
		m.GoParent()
		refreshPane(m)
		return nil
	})

	c.RegisterAction("refresh", func(c *coordinator.Coordinator) error {
		c.RefreshActivePane(context.Background())
		return nil
	})

	c.RegisterAction("subshell", func(c *coordinator.Coordinator) error {
		return runSubshell(a, c)
	})

	c.RegisterAction("copy_to_other", func(c *coordinator.Coordinator) error {
		return submitTransfer(a, c, jobs.KindCopy, false)
	})

	c.RegisterAction("move_to_other", func(c *coordinator.Coordinator) error {
		return submitTransfer(a, c, jobs.KindMove, true)
	})

	c.RegisterAction("delete_selected", func(c *coordinator.Coordinator) error {
		return submitDelete(a, c)
	})

	c.RegisterAction("archive_create", func(c *coordinator.Coordinator) error {
		return submitArchiveCreate(a, c)
	})

	c.RegisterAction("archive_extract", func(c *coordinator.Coordinator) error {
		return submitArchiveExtract(a, c)
	})

	c.RegisterAction("search", func(c *coordinator.Coordinator) error {
		return submitSearch(a, c)
	})

	c.RegisterAction("grep", func(c *coordinator.Coordinator) error {
		return submitGrep(a, c)
	})
}

// submitArchiveCreate zips the active pane's selection (or cursor entry)
// into an archive written to the other pane's cwd (spec.md §4.12, task
// kind archive_create). The archive's base name is taken from the
// topmost selected entry.
func submitArchiveCreate(a *app, c *coordinator.Coordinator) error {
	src := c.ActivePaneModel()
	dst := c.OtherPaneModel()
	names := selectionOrCursor(src)
	if len(names) == 0 {
		return nil
	}
	entryByName := map[string]vpath.DirEntry{}
	for _, e := range src.Entries() {
		entryByName[e.Path.Name()] = e
	}
	sources := make([]vpath.Path, 0, len(names))
	for _, name := range names {
		if e, ok := entryByName[name]; ok {
			sources = append(sources, e.Path)
		}
	}
	archiveName := strings.TrimSuffix(names[0], filepath.Ext(names[0])) + ".zip"
	archivePath := dst.Cwd().Join(archiveName)
	root := src.Cwd().URI()
	c.SubmitJob(context.Background(), jobs.KindArchiveCreate, root, func(ctx context.Context, p *jobs.Progress) error {
		p.SetTotal(len(sources))
		err := archiveops.Create(ctx, sources, archivePath, archivestore.FormatZip, p)
		if err == nil {
			srcURIs := make([]string, len(names))
			for i, name := range names {
				srcURIs[i] = src.Cwd().Join(name).URI()
			}
			a.manager.OnArchiveCreate(archivePath.URI(), srcURIs)
		}
		return err
	})
	return nil
}

// submitArchiveExtract extracts the cursor entry (if it looks like an
// archive) into a same-named directory in the other pane's cwd (spec.md
// §4.12, task kind archive_extract).
func submitArchiveExtract(a *app, c *coordinator.Coordinator) error {
	src := c.ActivePaneModel()
	dst := c.OtherPaneModel()
	entry, ok := src.CursorEntry()
	if !ok || entry.Kind == vpath.KindDir {
		return nil
	}
	if _, err := archivestore.DetectFormat(entry.Path.Name()); err != nil {
		return nil // cursor entry doesn't look like a supported archive; quietly a no-op
	}
	destDir := dst.Cwd().Join(strings.TrimSuffix(entry.Path.Name(), filepath.Ext(entry.Path.Name())))
	root := entry.Path.URI()
	c.SubmitJob(context.Background(), jobs.KindArchiveExtract, root, func(ctx context.Context, p *jobs.Progress) error {
		err := archiveops.Extract(ctx, a.archiveBackend, entry.Path, destDir, p)
		if err == nil {
			a.manager.OnArchiveExtract(destDir.URI())
		}
		return err
	})
	return nil
}

// submitTransfer copies or moves the active pane's selection (or the
// cursor entry if nothing is selected) into the other pane's cwd
// (spec.md §4.10, task kinds copy/move), gated behind a QuickChoice
// confirmation when Config.ConfirmCopy/ConfirmMove says so (spec.md §3).
func submitTransfer(a *app, c *coordinator.Coordinator, kind jobs.Kind, removeSource bool) error {
	src := c.ActivePaneModel()
	dst := c.OtherPaneModel()
	names := selectionOrCursor(src)
	if len(names) == 0 {
		return nil
	}
	destDir := dst.Cwd()
	root := src.Cwd().URI()
	verb := "Copy"
	confirm := a.cfg.ConfirmCopy
	if removeSource {
		verb = "Move"
		confirm = a.cfg.ConfirmMove
	}
	start := func() {
		c.SubmitJob(context.Background(), kind, root, func(ctx context.Context, p *jobs.Progress) error {
			p.SetTotal(len(names))
			err := jobs.RunParallel(ctx, 4, transferFuncs(ctx, src, destDir, names, removeSource, p)...)
			invalidateAfterTransfer(a, src, destDir, names, removeSource)
			return err
		})
	}
	if !confirm {
		start()
		return nil
	}
	confirmAction(c, fmt.Sprintf("%s %d item(s) to %s?", verb, len(names), destDir.URI()), start)
	return nil
}

// confirmAction pushes a QuickChoice yes/no dialog and runs onYes only if
// the user picks "yes" (spec.md §4.9's active-dialog-exclusivity mode
// stack; the destructive action itself only fires from the dialog's own
// HandleKey closure, after the user has answered).
func confirmAction(c *coordinator.Coordinator, message string, onYes func()) {
	q := &dialogs.QuickChoice{
		Message: message,
		Choices: []dialogs.Choice{
			{Label: "Yes", Key: "y", Tag: "yes"},
			{Label: "No", Key: "n", Tag: "no"},
		},
	}
	q.Enter()
	c.PushMode(coordinator.ModeQuickChoice, func(ev dialogs.KeyEvent) (consumed, done bool) {
		tag, finished, consumedEv := q.HandleKey(ev)
		if finished && tag == "yes" {
			onYes()
		}
		return consumedEv, finished
	})
}

// invalidateAfterTransfer runs the Manager invalidation rows for copy/move
// (spec.md §4.7) once a transfer job completes. It fires unconditionally
// (even on partial failure) since whatever subset did succeed already
// changed the backing store.
func invalidateAfterTransfer(a *app, src *pane.Model, destDir vpath.Path, names []string, removeSource bool) {
	dstChildren := make([]string, len(names))
	for i, name := range names {
		dstChildren[i] = destDir.Join(filepath.Base(name)).URI()
	}
	if removeSource {
		srcURIs := make([]string, len(names))
		for i, name := range names {
			srcURIs[i] = src.Cwd().Join(name).URI()
		}
		a.manager.OnMove(srcURIs, destDir.URI())
		return
	}
	a.manager.OnCopy(destDir.URI(), dstChildren)
}

func transferFuncs(ctx context.Context, src *pane.Model, destDir vpath.Path, names []string, removeSource bool, p *jobs.Progress) []func(context.Context) error {
	entryByName := map[string]vpath.DirEntry{}
	for _, e := range src.Entries() {
		entryByName[e.Path.Name()] = e
	}
	fns := make([]func(context.Context) error, 0, len(names))
	for _, name := range names {
		name := name
		entry, ok := entryByName[name]
		if !ok {
			continue
		}
		fns = append(fns, func(ctx context.Context) error {
			dstPath := destDir.Join(filepath.Base(name))
			var err error
			if removeSource {
				err = vpath.MoveTo(ctx, entry.Path, dstPath, false)
			} else {
				err = vpath.CopyTo(ctx, entry.Path, dstPath, false)
			}
			p.Advance(name, err)
			return nil // per-item errors are collected, not fatal to the job
		})
	}
	return fns
}

func submitDelete(a *app, c *coordinator.Coordinator) error {
	m := c.ActivePaneModel()
	names := selectionOrCursor(m)
	if len(names) == 0 {
		return nil
	}
	entryByName := map[string]vpath.DirEntry{}
	for _, e := range m.Entries() {
		entryByName[e.Path.Name()] = e
	}
	root := m.Cwd().URI()
	start := func() {
		c.SubmitJob(context.Background(), jobs.KindDelete, root, func(ctx context.Context, p *jobs.Progress) error {
			p.SetTotal(len(names))
			var fns []func(context.Context) error
			for _, name := range names {
				name := name
				entry, ok := entryByName[name]
				if !ok {
					continue
				}
				fns = append(fns, func(ctx context.Context) error {
					var err error
					if entry.Kind == vpath.KindDir {
						err = entry.Path.Rmtree(ctx)
					} else {
						err = entry.Path.Unlink(ctx)
					}
					p.Advance(name, err)
					return nil
				})
			}
			err := jobs.RunParallel(ctx, 4, fns...)
			deletedURIs := make([]string, len(names))
			for i, name := range names {
				deletedURIs[i] = m.Cwd().Join(name).URI()
			}
			a.manager.OnDelete(deletedURIs)
			return err
		})
	}
	if !a.cfg.ConfirmDelete {
		start()
		return nil
	}
	confirmAction(c, fmt.Sprintf("Delete %d item(s)?", len(names)), start)
	return nil
}

func selectionOrCursor(m *pane.Model) []string {
	if names := m.SelectedNames(); len(names) > 0 {
		return names
	}
	if entry, ok := m.CursorEntry(); ok {
		return []string{entry.Path.Name()}
	}
	return nil
}
