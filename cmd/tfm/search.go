package main

import (
	"context"
	"fmt"

	"github.com/shimomut/tfm-sub008/internal/coordinator"
	"github.com/shimomut/tfm-sub008/internal/dialogs"
	"github.com/shimomut/tfm-sub008/internal/jobs"
	"github.com/shimomut/tfm-sub008/internal/search"
	"github.com/shimomut/tfm-sub008/internal/vpath"
)

// searchOutcome carries a completed search/grep job's results from the
// worker goroutine back to the event loop (spec.md §5, "tasks communicate
// with the UI via bounded channels... The UI thread drains these between
// input events"). labels are ListDialog rows; paths holds the destination
// each label navigates to on selection.
type searchOutcome struct {
	kind   jobs.Kind
	labels []string
	paths  []vpath.Path
	err    error
}

// submitSearch prompts for a filename glob, then runs it as a JobRunner
// search task over the active pane's subtree (spec.md §4.10's "search"
// task kind).
func submitSearch(a *app, c *coordinator.Coordinator) error {
	promptPattern(a, c, "Search filenames (glob): ", func(pattern string) {
		root := c.ActivePaneModel().Cwd()
		c.SubmitJob(context.Background(), jobs.KindSearch, root.URI(), func(ctx context.Context, p *jobs.Progress) error {
			matches, err := search.Search(ctx, root, search.Options{Pattern: pattern}, p)
			labels := make([]string, len(matches))
			paths := make([]vpath.Path, len(matches))
			for i, m := range matches {
				labels[i] = m.Path.URI()
				paths[i] = m.Path
			}
			a.searchDone <- searchOutcome{kind: jobs.KindSearch, labels: labels, paths: paths, err: err}
			return err
		})
	})
	return nil
}

// submitGrep prompts for a content substring, then runs it as a JobRunner
// grep task over the active pane's subtree (spec.md §4.10's "grep" task
// kind).
func submitGrep(a *app, c *coordinator.Coordinator) error {
	promptPattern(a, c, "Grep contents: ", func(pattern string) {
		root := c.ActivePaneModel().Cwd()
		c.SubmitJob(context.Background(), jobs.KindGrep, root.URI(), func(ctx context.Context, p *jobs.Progress) error {
			matches, err := search.Grep(ctx, root, search.Options{Pattern: pattern}, p)
			labels := make([]string, len(matches))
			paths := make([]vpath.Path, len(matches))
			for i, m := range matches {
				labels[i] = fmt.Sprintf("%s:%d: %s", m.Path.URI(), m.Line, m.Text)
				paths[i] = m.Path
			}
			a.searchDone <- searchOutcome{kind: jobs.KindGrep, labels: labels, paths: paths, err: err}
			return err
		})
	})
	return nil
}

// promptPattern pushes an InputDialog (ModeSearchDialog) and, on
// confirmation with non-empty text, calls onConfirm.
func promptPattern(a *app, c *coordinator.Coordinator, prompt string, onConfirm func(pattern string)) {
	d := dialogs.NewInputDialog(prompt, "")
	d.Enter()
	c.PushMode(coordinator.ModeSearchDialog, func(ev dialogs.KeyEvent) (consumed, done bool) {
		confirmed, finished, consumedEv := d.HandleKey(ev)
		if finished && confirmed && d.Text != "" {
			onConfirm(d.Text)
		}
		return consumedEv, finished
	})
}

// drainSearchResult checks for a completed search/grep job (non-blocking)
// and, if one is ready, pushes a ListDialog of its results (spec.md §4.13,
// "List dialog filters a list by substring match; selection is confirmed
// with Enter"). Selecting a row navigates the active pane to the match's
// containing directory and puts the cursor on it.
func (a *app) drainSearchResult() {
	select {
	case res := <-a.searchDone:
		if res.err != nil {
			a.logger.Warnf("%s: %v", res.kind, res.err)
		}
		pushResultList(a, res)
	default:
	}
}

func pushResultList(a *app, res searchOutcome) {
	d := dialogs.NewListDialog(res.labels)
	d.Enter()
	a.coord.PushMode(coordinator.ModeListDialog, func(ev dialogs.KeyEvent) (consumed, done bool) {
		selected, finished, consumedEv := d.HandleKey(ev)
		if finished && selected != "" {
			for i, label := range res.labels {
				if label == selected {
					navigateToMatch(a, res.paths[i])
					break
				}
			}
		}
		return consumedEv, finished
	})
}

// navigateToMatch moves the active pane to the match's containing
// directory and positions the cursor on the match itself, if still
// present after the refresh.
func navigateToMatch(a *app, p vpath.Path) {
	m := a.coord.ActivePaneModel()
	m.NavigateInto(p.Parent())
	refreshPane(m)
	for i, e := range m.Entries() {
		if e.Path.Name() == p.Name() {
			m.SetCursorIndex(i)
			break
		}
	}
}
