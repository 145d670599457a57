// Package archivestore implements vpath.PathImpl for archive-member paths
// (spec.md §4.4), grounded on the teacher's backend/archive/base.Fs: a
// read-only wrapper Fs over an outer path, whose objects are served from
// an index parsed once and cached, with every mutating call returning the
// archive equivalent of the teacher's vfs.EROFS (here, UnsupportedOperation).
package archivestore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/shimomut/tfm-sub008/internal/errs"
	"github.com/shimomut/tfm-sub008/internal/metadatacache"
	"github.com/shimomut/tfm-sub008/internal/vpath"
)

// Backend owns the shared MetadataCache that every archivePath consults to
// avoid re-parsing the same archive's index on every navigation.
type Backend struct {
	cache *metadatacache.Cache
}

// NewBackend builds a Backend sharing cache with the rest of the process's
// MetadataCache (spec.md §4.6).
func NewBackend(cache *metadatacache.Cache) *Backend {
	return &Backend{cache: cache}
}

// Open builds the Path for an archive's root, given outer — the Path to
// the raw archive bytes, which may itself be local, S3, or SFTP (spec.md
// §4.4, "Represents a logical path archive_uri#inner/path").
func (b *Backend) Open(outer vpath.Path) vpath.Path {
	return vpath.New(&archivePath{backend: b, outer: outer, inner: ""})
}

type archivePath struct {
	backend *Backend
	outer   vpath.Path
	inner   string // "/"-joined, no leading/trailing slash; "" = archive root
}

func (p *archivePath) Scheme() vpath.Scheme  { return vpath.SchemeArchive }
func (p *archivePath) URI() string           { return p.outer.URI() + "#" + p.inner }
func (p *archivePath) IsAbsolute() bool      { return true }
func (p *archivePath) IsRemote() bool        { return p.outer.IsRemote() }
func (p *archivePath) IsArchiveMember() bool { return true }

func (p *archivePath) Name() string {
	if p.inner == "" {
		return p.outer.Name()
	}
	parts := strings.Split(p.inner, "/")
	return parts[len(parts)-1]
}

func (p *archivePath) Parent() vpath.PathImpl {
	if p.inner == "" {
		return p // archive root's parent is itself; the façade never needs
		// to cross back out into the outer scheme through Parent.
	}
	idx := strings.LastIndex(p.inner, "/")
	if idx < 0 {
		return &archivePath{backend: p.backend, outer: p.outer, inner: ""}
	}
	return &archivePath{backend: p.backend, outer: p.outer, inner: p.inner[:idx]}
}

func (p *archivePath) Join(segment string) vpath.PathImpl {
	if p.inner == "" {
		return &archivePath{backend: p.backend, outer: p.outer, inner: segment}
	}
	return &archivePath{backend: p.backend, outer: p.outer, inner: p.inner + "/" + segment}
}

func (p *archivePath) WithName(name string) vpath.PathImpl {
	return p.Parent().(*archivePath).Join(name)
}

func (p *archivePath) WithSuffix(suffix string) vpath.PathImpl {
	idx := strings.LastIndex(p.inner, ".")
	base := p.inner
	if idx > strings.LastIndex(p.inner, "/") && idx >= 0 {
		base = p.inner[:idx]
	}
	return &archivePath{backend: p.backend, outer: p.outer, inner: base + suffix}
}

// treeKey caches the parsed tree under the outer path's URI: every
// archivePath sharing the same outer archive shares the same tree entry,
// so navigating between archive members never reparses (spec.md §4.4).
func (p *archivePath) treeKey() metadatacache.CacheKey {
	return metadatacache.Key("archive_tree", "archive", "uri", p.outer.URI())
}

func (p *archivePath) loadTree(ctx context.Context) (*tree, error) {
	v, err := p.backend.cache.GetOrInsertWith(p.treeKey(), 0, func() (interface{}, error) {
		return p.parse(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*tree), nil
}

func (p *archivePath) parse(ctx context.Context) (*tree, error) {
	raw, err := p.outer.ReadBytes(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, "parse_archive", p.outer.URI(), err)
	}
	format, err := DetectFormat(p.outer.Name())
	if err != nil {
		return nil, err
	}
	if format == FormatZip {
		return parseZip(raw)
	}
	stream, err := decompressStream(format, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if format.IsTarBased() {
		return parseTar(stream)
	}
	return parseSingleStream(p.outer.Name(), stream)
}

func (p *archivePath) resolve(ctx context.Context) (*node, error) {
	t, err := p.loadTree(ctx)
	if err != nil {
		return nil, err
	}
	n, ok := t.lookup(p.inner)
	if !ok {
		return nil, errs.New(errs.NotFound, "stat", p.URI())
	}
	return n, nil
}

func (p *archivePath) Exists(ctx context.Context) (bool, error) {
	_, err := p.resolve(ctx)
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (p *archivePath) IsDir(ctx context.Context) (bool, error) {
	n, err := p.resolve(ctx)
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return false, nil
		}
		return false, err
	}
	return n.isDir, nil
}

func (p *archivePath) IsFile(ctx context.Context) (bool, error) {
	n, err := p.resolve(ctx)
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return false, nil
		}
		return false, err
	}
	return !n.isDir, nil
}

// IsSymlink is always false: the in-memory tree does not model symlinks
// (tree.go, parseTar's default case).
func (p *archivePath) IsSymlink(ctx context.Context) (bool, error) { return false, nil }

type iterator struct {
	parent   *archivePath
	children []*node
	idx      int
}

func (it *iterator) Next(ctx context.Context) (vpath.Path, bool, error) {
	if it.idx >= len(it.children) {
		return vpath.Path{}, false, nil
	}
	n := it.children[it.idx]
	it.idx++
	child := it.parent.Join(n.name).(*archivePath)
	kind := vpath.KindFile
	modTime := n.modTime
	if n.isDir {
		kind = vpath.KindVirtualDir
		modTime = latestModTime(n, time.Now())
	}
	p := vpath.NewDirEntry(vpath.New(child), n.size, modTime, kind).Path
	return p, true, nil
}

func (p *archivePath) Iterdir(ctx context.Context) (vpath.Iterator, error) {
	n, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if !n.isDir {
		return nil, errs.New(errs.UnsupportedOperation, "iterdir", p.URI())
	}
	return &iterator{parent: p, children: sortedChildren(n)}, nil
}

func (p *archivePath) Stat(ctx context.Context) (vpath.Stat, error) {
	n, err := p.resolve(ctx)
	if err != nil {
		return vpath.Stat{}, err
	}
	if n.isDir {
		return vpath.Stat{Kind: vpath.KindVirtualDir, ModTime: latestModTime(n, time.Now())}, nil
	}
	return vpath.Stat{Size: n.size, ModTime: n.modTime, Kind: vpath.KindFile}, nil
}

func (p *archivePath) ReadBytes(ctx context.Context) ([]byte, error) {
	n, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if n.isDir {
		return nil, errs.New(errs.UnsupportedOperation, "read_bytes", p.URI())
	}
	return n.data()
}

func (p *archivePath) Reader(ctx context.Context) (io.ReadCloser, error) {
	data, err := p.ReadBytes(ctx)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// WriteBytes, Writer, Mkdir, Unlink, Rmtree, and Rename all fail with
// UnsupportedOperation: archives are read-only (spec.md §4.4, "rmtree/
// write_*/rename fail with UnsupportedOperation").
func (p *archivePath) WriteBytes(ctx context.Context, data []byte, overwrite bool) error {
	return errs.New(errs.UnsupportedOperation, "write_bytes", p.URI())
}

func (p *archivePath) Writer(ctx context.Context, overwrite bool) (io.WriteCloser, error) {
	return nil, errs.New(errs.UnsupportedOperation, "write", p.URI())
}

func (p *archivePath) Mkdir(ctx context.Context, parents, existOK bool) error {
	return errs.New(errs.UnsupportedOperation, "mkdir", p.URI())
}

func (p *archivePath) Unlink(ctx context.Context) error {
	return errs.New(errs.UnsupportedOperation, "unlink", p.URI())
}

func (p *archivePath) Rmtree(ctx context.Context) error {
	return errs.New(errs.UnsupportedOperation, "rmtree", p.URI())
}

func (p *archivePath) Rename(ctx context.Context, dst vpath.PathImpl) error {
	return errs.New(errs.UnsupportedOperation, "rename", p.URI())
}

var _ vpath.PathImpl = (*archivePath)(nil)
