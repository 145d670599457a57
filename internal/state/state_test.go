package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaw(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.Left.CwdURI)
	assert.Empty(t, s.Favorites)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	want := &State{
		Left:  PaneState{CwdURI: "file:///home/x", History: []HistoryEntry{{CwdURI: "file:///home", Name: "x"}}},
		Right: PaneState{CwdURI: "s3://bkt/y"},
		Favorites: []Favorite{
			{Name: "home", URI: "file:///home/x"},
		},
	}
	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want.Left.CwdURI, got.Left.CwdURI)
	assert.Equal(t, want.Right.CwdURI, got.Right.CwdURI)
	require.Len(t, got.Favorites, 1)
	assert.Equal(t, "home", got.Favorites[0].Name)
	require.Len(t, got.Left.History, 1)
	assert.Equal(t, "x", got.Left.History[0].Name)
}

func TestLoadIgnoresUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	data := []byte("left:\n  cwd_uri: file:///a\nsome_future_field: 42\n")
	require.NoError(t, writeRaw(path, data))
	got, err := Load(path)
	require.NoError(t, err, "load should tolerate unknown fields")
	assert.Equal(t, "file:///a", got.Left.CwdURI)
}

func TestBoundHistoryKeepsMostRecent(t *testing.T) {
	h := []HistoryEntry{{Name: "a"}, {Name: "b"}, {Name: "c"}}
	bounded := BoundHistory(h, 2)
	require.Len(t, bounded, 2)
	assert.Equal(t, "b", bounded[0].Name)
	assert.Equal(t, "c", bounded[1].Name)

	full := BoundHistory(h, 0)
	assert.Len(t, full, 3, "depth 0 should mean unbounded")
}
