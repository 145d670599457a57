package metadatacache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shimomut/tfm-sub008/internal/logging"
)

func TestOnDeleteInvalidatesParentListingOnly(t *testing.T) {
	c := New(0, nil)
	c.Put(Key("listing", "file", "path", "/dir/"), "cached", 0)
	c.Put(Key("listing", "file", "path", "/other/"), "cached", 0)

	m := NewManager(c, logging.Nop())
	m.OnDelete([]string{"/dir/a.txt"})

	_, ok := c.Get(Key("listing", "file", "path", "/dir/"))
	assert.False(t, ok, "the deleted file's parent listing must be invalidated")
	_, ok = c.Get(Key("listing", "file", "path", "/other/"))
	assert.True(t, ok, "an unrelated directory's listing must survive")
}

func TestOnMoveInvalidatesSourceParentAndDestDir(t *testing.T) {
	c := New(0, nil)
	c.Put(Key("listing", "file", "path", "/src/"), "cached", 0)
	c.Put(Key("listing", "file", "path", "/dst/"), "cached", 0)
	c.Put(Key("stat", "file", "path", "/src/a.txt"), "cached", 0)

	m := NewManager(c, logging.Nop())
	m.OnMove([]string{"/src/a.txt"}, "/dst/")

	_, ok := c.Get(Key("listing", "file", "path", "/src/"))
	assert.False(t, ok)
	_, ok = c.Get(Key("listing", "file", "path", "/dst/"))
	assert.False(t, ok)
	_, ok = c.Get(Key("stat", "file", "path", "/src/a.txt"))
	assert.False(t, ok, "the moved entry's own stat cache must be invalidated")
}

func TestOnCopyInvalidatesDestDirAndChildren(t *testing.T) {
	c := New(0, nil)
	c.Put(Key("listing", "file", "path", "/dst/"), "cached", 0)
	c.Put(Key("stat", "file", "path", "/dst/a.txt"), "cached", 0)

	m := NewManager(c, logging.Nop())
	m.OnCopy("/dst/", []string{"/dst/a.txt"})

	_, ok := c.Get(Key("listing", "file", "path", "/dst/"))
	assert.False(t, ok)
	_, ok = c.Get(Key("stat", "file", "path", "/dst/a.txt"))
	assert.False(t, ok)
}

func TestOnMkdirOrCreateInvalidatesParentListing(t *testing.T) {
	c := New(0, nil)
	c.Put(Key("listing", "file", "path", "/dir/"), "cached", 0)

	m := NewManager(c, logging.Nop())
	m.OnMkdirOrCreate("/dir/new.txt")

	_, ok := c.Get(Key("listing", "file", "path", "/dir/"))
	assert.False(t, ok)
}

func TestOnArchiveExtractInvalidatesEverythingUnderDestDir(t *testing.T) {
	c := New(0, nil)
	c.Put(Key("stat", "file", "path", "/dst/a.txt"), "cached", 0)
	c.Put(Key("listing", "file", "path", "/dst/sub/"), "cached", 0)
	c.Put(Key("stat", "file", "path", "/other/b.txt"), "cached", 0)

	m := NewManager(c, logging.Nop())
	m.OnArchiveExtract("/dst/")

	_, ok := c.Get(Key("stat", "file", "path", "/dst/a.txt"))
	assert.False(t, ok)
	_, ok = c.Get(Key("listing", "file", "path", "/dst/sub/"))
	assert.False(t, ok)
	_, ok = c.Get(Key("stat", "file", "path", "/other/b.txt"))
	assert.True(t, ok, "entries outside the extraction target must survive")
}

func TestOnArchiveCreateInvalidatesArchiveAndSourceParents(t *testing.T) {
	c := New(0, nil)
	c.Put(Key("listing", "file", "path", "/out/"), "cached", 0)
	c.Put(Key("listing", "file", "path", "/src/"), "cached", 0)

	m := NewManager(c, logging.Nop())
	m.OnArchiveCreate("/out/bundle.zip", []string{"/src/a.txt"})

	_, ok := c.Get(Key("listing", "file", "path", "/out/"))
	assert.False(t, ok)
	_, ok = c.Get(Key("listing", "file", "path", "/src/"))
	assert.False(t, ok)
}
