package vpath

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noIOImpl is a PathImpl whose Exists/IsFile/IsDir/IsSymlink panic if
// called, so a passing test proves the façade answered purely from a hint
// without ever reaching the backend (spec.md I2 in §8).
type noIOImpl struct{ name string }

func (n *noIOImpl) Scheme() Scheme                    { return SchemeFile }
func (n *noIOImpl) URI() string                       { return "file:///" + n.name }
func (n *noIOImpl) Name() string                      { return n.name }
func (n *noIOImpl) Parent() PathImpl                  { return &noIOImpl{name: "parent"} }
func (n *noIOImpl) IsAbsolute() bool                  { return true }
func (n *noIOImpl) Join(seg string) PathImpl          { return &noIOImpl{name: seg} }
func (n *noIOImpl) WithName(name string) PathImpl     { return &noIOImpl{name: name} }
func (n *noIOImpl) WithSuffix(suffix string) PathImpl { return &noIOImpl{name: n.name + suffix} }
func (n *noIOImpl) IsRemote() bool                    { return false }
func (n *noIOImpl) IsArchiveMember() bool             { return false }

func (n *noIOImpl) Exists(ctx context.Context) (bool, error) {
	panic("backend I/O despite a valid hint")
}
func (n *noIOImpl) IsFile(ctx context.Context) (bool, error) {
	panic("backend I/O despite a valid hint")
}
func (n *noIOImpl) IsDir(ctx context.Context) (bool, error) {
	panic("backend I/O despite a valid hint")
}
func (n *noIOImpl) IsSymlink(ctx context.Context) (bool, error) {
	panic("backend I/O despite a valid hint")
}

func (n *noIOImpl) Iterdir(ctx context.Context) (Iterator, error) { return nil, nil }
func (n *noIOImpl) Stat(ctx context.Context) (Stat, error)        { return Stat{}, nil }
func (n *noIOImpl) ReadBytes(ctx context.Context) ([]byte, error) { return nil, nil }
func (n *noIOImpl) WriteBytes(ctx context.Context, data []byte, overwrite bool) error {
	return nil
}
func (n *noIOImpl) Reader(ctx context.Context) (io.ReadCloser, error) { return nil, nil }
func (n *noIOImpl) Writer(ctx context.Context, overwrite bool) (io.WriteCloser, error) {
	return nil, nil
}
func (n *noIOImpl) Mkdir(ctx context.Context, parents, existOK bool) error { return nil }
func (n *noIOImpl) Unlink(ctx context.Context) error                       { return nil }
func (n *noIOImpl) Rmtree(ctx context.Context) error                       { return nil }
func (n *noIOImpl) Rename(ctx context.Context, dst PathImpl) error         { return nil }

var _ PathImpl = (*noIOImpl)(nil)

func TestNewDirEntryHintSatisfiesExistsIsDirXorIsFileWithoutIO(t *testing.T) {
	p := New(&noIOImpl{name: "f.txt"})
	entry := NewDirEntry(p, 42, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), KindFile)

	exists, err := entry.Path.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists, "hinted Path must report exists without backend I/O")

	isFile, err := entry.Path.IsFile(context.Background())
	require.NoError(t, err)
	isDir, err := entry.Path.IsDir(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, isFile, isDir)
	assert.True(t, isFile)
}

func TestNewDirEntryVirtualDirClassifiesAsDir(t *testing.T) {
	p := New(&noIOImpl{name: "b"})
	entry := NewDirEntry(p, 0, time.Now(), KindVirtualDir)

	isDir, err := entry.Path.IsDir(context.Background())
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestWithHintOverridesIndependentlyOfOriginal(t *testing.T) {
	base := New(&okImpl{name: "f.txt"})
	hinted := base.WithHint(Hint{Valid: true, Kind: KindDir})

	baseIsDir, err := base.IsDir(context.Background())
	require.NoError(t, err)
	hintedIsDir, err := hinted.IsDir(context.Background())
	require.NoError(t, err)

	assert.False(t, baseIsDir, "un-hinted Path must fall through to the backend")
	assert.True(t, hintedIsDir, "hinted copy must answer from its own hint")
}

// okImpl is a trivial PathImpl that actually answers IsDir/IsFile (false
// and true, as for a freshly-constructed, un-hinted file Path), used where a
// test needs the un-hinted fallback path to actually resolve rather than
// panic.
type okImpl struct{ noIOImpl }

func (o *okImpl) IsDir(ctx context.Context) (bool, error)  { return false, nil }
func (o *okImpl) IsFile(ctx context.Context) (bool, error) { return true, nil }

var _ PathImpl = (*okImpl)(nil)
