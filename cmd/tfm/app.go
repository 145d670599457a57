package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shimomut/tfm-sub008/internal/config"
	"github.com/shimomut/tfm-sub008/internal/coordinator"
	"github.com/shimomut/tfm-sub008/internal/jobs"
	"github.com/shimomut/tfm-sub008/internal/logging"
	"github.com/shimomut/tfm-sub008/internal/metadatacache"
	"github.com/shimomut/tfm-sub008/internal/metrics"
	"github.com/shimomut/tfm-sub008/internal/pane"
	"github.com/shimomut/tfm-sub008/internal/state"
	"github.com/shimomut/tfm-sub008/internal/termui"
	"github.com/shimomut/tfm-sub008/internal/vpath/archivestore"
	"github.com/shimomut/tfm-sub008/internal/vpath/s3store"
	"github.com/shimomut/tfm-sub008/internal/vpath/sftpstore"
)

// app owns every long-lived piece the CLI wires together: the core
// Coordinator plus the ambient infrastructure (logger, metrics, cache,
// persisted state, the TermUI screen).
type app struct {
	cfg     *config.Config
	logger  logging.Logger
	metrics *metrics.Registry
	cache   *metadatacache.Cache
	manager *metadatacache.Manager

	s3Backend      *s3store.Backend
	sftpBackend    *sftpstore.Backend
	archiveBackend *archivestore.Backend

	statePath string
	st        *state.State

	coord  *coordinator.Coordinator
	screen *termui.Screen

	searchDone chan searchOutcome
}

func newApp(cfg *config.Config) (*app, error) {
	logger := buildLogger()

	reg := metrics.New(prometheus.NewRegistry())
	cache := metadatacache.New(cfg.CacheTTL(), reg)
	manager := metadatacache.NewManager(cache, logger)

	statePath, err := state.DefaultPath()
	if err != nil {
		statePath = ""
	}
	st, err := state.Load(statePath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:            cfg,
		logger:         logger,
		metrics:        reg,
		cache:          cache,
		manager:        manager,
		archiveBackend: archivestore.NewBackend(cache),
		statePath:      statePath,
		st:             st,
		searchDone:     make(chan searchOutcome, 1),
	}

	leftPath, err := a.resolvePath(a.startingPath(opts.left, st.Left.CwdURI))
	if err != nil {
		return nil, err
	}
	rightPath, err := a.resolvePath(a.startingPath(opts.right, st.Right.CwdURI))
	if err != nil {
		return nil, err
	}

	leftPane := pane.New(leftPath, int(cfg.CursorHistoryDepth), logger)
	rightPane := pane.New(rightPath, int(cfg.CursorHistoryDepth), logger)
	refreshPane(leftPane)
	refreshPane(rightPane)

	if len(cfg.KeyBindings) == 0 {
		cfg.KeyBindings = defaultKeyBindings()
	}

	runner := jobs.New(4, logger, reg)
	coord := coordinator.New(leftPane, rightPane, cfg, runner, logger, reg)
	registerActions(a, coord)
	a.coord = coord

	screen, err := termui.New(cfg.ForceFallbackColors)
	if err != nil {
		return nil, err
	}
	a.screen = screen

	cols, rows := screen.Size()
	coord.OnResize(coordinator.ResizeEvent{Cols: cols, Rows: rows})

	return a, nil
}

// startingPath prefers an explicit --left/--right flag over persisted
// state, falling back to the current working directory if neither is set
// (spec.md §6, "--left PATH, --right PATH").
func (a *app) startingPath(flagValue, persisted string) string {
	if flagValue != "" {
		return flagValue
	}
	if persisted != "" {
		return persisted
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func buildLogger() logging.Logger {
	if opts.remoteLogPort > 0 {
		return logging.NewWithLevelAndHooks(opts.debug, newRemoteLogHook(opts.remoteLogPort))
	}
	return logging.NewWithLevel(opts.debug)
}

func refreshPane(m *pane.Model) {
	_, run := m.BeginRefresh()
	result := run(context.Background())
	m.Apply(result)
}

// Close releases the TermUI screen and persists cross-run state. It is
// safe to call even if initialization failed partway through.
func (a *app) Close() {
	if a.screen != nil {
		a.screen.Close()
	}
	if a.coord != nil && a.statePath != "" {
		a.saveState()
	}
}

func (a *app) saveState() {
	st := &state.State{
		Left:      state.PaneState{CwdURI: a.coord.Left.Cwd().URI()},
		Right:     state.PaneState{CwdURI: a.coord.Right.Cwd().URI()},
		Favorites: a.st.Favorites,
	}
	if err := state.Save(a.statePath, st); err != nil {
		a.logger.Warnf("save state: %v", err)
	}
}
