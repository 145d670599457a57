package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shimomut/tfm-sub008/internal/errs"
)

func TestExistsIsDirIsFileClassifyCorrectly(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hi"), 0o644))

	f := New(filePath)
	exists, err := f.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)

	isFile, err := f.IsFile(context.Background())
	require.NoError(t, err)
	isDir, err := f.IsDir(context.Background())
	require.NoError(t, err)
	assert.True(t, isFile)
	assert.False(t, isDir)

	d := New(dir)
	isDir, err = d.IsDir(context.Background())
	require.NoError(t, err)
	assert.True(t, isDir)
}

func TestExistsFalseForMissingPath(t *testing.T) {
	dir := t.TempDir()
	p := New(filepath.Join(dir, "nope.txt"))
	exists, err := p.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestIterdirHintSatisfiesIsFileXorIsDir verifies spec.md I2 for the local
// backend: every Path yielded by iterdir classifies from its hint alone.
func TestIterdirHintSatisfiesIsFileXorIsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	root := New(dir)
	it, err := root.Iterdir(context.Background())
	require.NoError(t, err)
	count := 0
	for {
		child, ok, err := it.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
		isFile, err := child.IsFile(context.Background())
		require.NoError(t, err)
		isDir, err := child.IsDir(context.Background())
		require.NoError(t, err)
		assert.NotEqual(t, isFile, isDir, "child %s", child.Name())
	}
	assert.Equal(t, 2, count)
}

func TestWriteBytesRefusesOverwriteWithoutFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	p := New(path)
	err := p.WriteBytes(context.Background(), []byte("new"), false)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.AlreadyExists))

	require.NoError(t, p.WriteBytes(context.Background(), []byte("new"), true))
	got, err := p.ReadBytes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestUnlinkThenExistsIsFalse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	p := New(path)
	require.NoError(t, p.Unlink(context.Background()))
	exists, err := p.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStatMissingPathReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	p := New(filepath.Join(dir, "nope.txt"))
	_, err := p.Stat(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}

func TestRenameAcrossDirectoriesSucceeds(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.txt")
	require.NoError(t, os.WriteFile(srcPath, []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	src := New(srcPath)
	dst := New(filepath.Join(dir, "sub", "dst.txt"))
	require.NoError(t, src.Rename(context.Background(), dst))

	srcExists, err := src.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, srcExists)
	dstExists, err := dst.Exists(context.Background())
	require.NoError(t, err)
	assert.True(t, dstExists)
}

func TestRmtreeRemovesDirectoryRecursively(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "f.txt"), []byte("x"), 0o644))

	p := New(filepath.Join(dir, "a"))
	require.NoError(t, p.Rmtree(context.Background()))
	exists, err := p.Exists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)
}
