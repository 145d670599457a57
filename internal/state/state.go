// Package state implements the StateStore persisted-state file described
// in spec.md §6 ("Persisted state: a single file storing pane cwds,
// cursor history (bounded), and favorites... forward compatibility by
// ignoring unknown fields") and SPEC_FULL.md §6 (YAML via
// gopkg.in/yaml.v3, path expansion via github.com/mitchellh/go-homedir),
// grounded on internal/config's Load/Default pattern for the same two
// dependencies.
package state

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	yaml "gopkg.in/yaml.v3"

	"github.com/shimomut/tfm-sub008/internal/errs"
)

// HistoryEntry is one cursor-history tuple as persisted across runs.
type HistoryEntry struct {
	CwdURI string `yaml:"cwd_uri"`
	Name   string `yaml:"name"`
}

// Favorite is a named shortcut to a Path URI.
type Favorite struct {
	Name string `yaml:"name"`
	URI  string `yaml:"uri"`
}

// PaneState is one pane's persisted snapshot.
type PaneState struct {
	CwdURI  string         `yaml:"cwd_uri"`
	History []HistoryEntry `yaml:"history"`
}

// State is the opaque persisted record (spec.md §6, "Format is an opaque
// record; forward compatibility by ignoring unknown fields" — yaml.v3's
// default Unmarshal already ignores fields not present in this struct).
type State struct {
	Left      PaneState  `yaml:"left"`
	Right     PaneState  `yaml:"right"`
	Favorites []Favorite `yaml:"favorites"`
}

// DefaultPath returns the default StateStore location, ~/.tfm/state.yaml,
// expanded with go-homedir (matching config.Load's use of the same
// dependency).
func DefaultPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", errs.Wrap(errs.IoFailure, "state_default_path", "~", err)
	}
	return filepath.Join(home, ".tfm", "state.yaml"), nil
}

// Load reads path (expanding a leading ~), returning a zero-value State
// (not an error) if the file does not yet exist — matching the
// first-run experience of config.Load.
func Load(path string) (*State, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "state_load", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, errs.Wrap(errs.IoFailure, "state_load", path, err)
	}
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errs.Wrap(errs.ConfigInvalid, "state_load", path, err)
	}
	return &s, nil
}

// Save writes s to path (expanding a leading ~), creating parent
// directories as needed. Writes go to a temp file in the same directory
// then rename over the target, so a crash mid-write never leaves a
// truncated state file behind.
func Save(path string, s *State) error {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return errs.Wrap(errs.IoFailure, "state_save", path, err)
	}
	dir := filepath.Dir(expanded)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.IoFailure, "state_save", path, err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return errs.Wrap(errs.IoFailure, "state_save", path, err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.yaml.tmp")
	if err != nil {
		return errs.Wrap(errs.IoFailure, "state_save", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.Wrap(errs.IoFailure, "state_save", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.IoFailure, "state_save", path, err)
	}
	if err := os.Rename(tmpName, expanded); err != nil {
		os.Remove(tmpName)
		return errs.Wrap(errs.IoFailure, "state_save", path, err)
	}
	return nil
}

// BoundHistory truncates h to at most depth entries, keeping the most
// recently-saved (last) ones, matching cursor_history_depth (spec.md I6
// in §8, applied here to the persisted copy rather than the live LRU).
func BoundHistory(h []HistoryEntry, depth int) []HistoryEntry {
	if depth <= 0 || len(h) <= depth {
		return h
	}
	return h[len(h)-depth:]
}
