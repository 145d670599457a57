// Package vpath implements the storage-polymorphic path layer of spec.md
// §4.1–§4.5: a uniform PathImpl contract over local filesystems, S3
// buckets, archive contents, and SSH/SFTP remotes, dispatched by scheme
// through the Path façade.
//
// The contract generalizes the teacher's (rclone) duck-typed fs.Fs/
// fs.Object backend interfaces into a single Go interface implemented by
// each backend in its own sub-package (local, s3store, archivestore,
// sftpstore), matching spec.md §9's guidance to express dynamic
// polymorphism over backends as a capability interface with tagged
// variants, dispatched at the façade.
package vpath

import (
	"context"
	"io"
	"time"
)

// Scheme identifies which backend a Path belongs to.
type Scheme string

const (
	SchemeFile    Scheme = "file"
	SchemeS3      Scheme = "s3"
	SchemeArchive Scheme = "archive"
	SchemeSFTP    Scheme = "sftp"
)

// Kind classifies a resolved directory entry.
type Kind int

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	// KindVirtualDir models S3 and archive directories that have no real
	// storage object (spec.md §3, DirEntry).
	KindVirtualDir
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindVirtualDir:
		return "virtual_dir"
	default:
		return "unknown"
	}
}

// Hint is the metadata hint a Path may embed, captured during a listing
// so that subsequent stat/is_dir/is_file calls don't trigger backend I/O
// (spec.md §3, "Path"). All fields are optional; a zero Hint means "no
// hint" and forces the backend to consult its own store.
type Hint struct {
	Valid        bool
	Size         int64
	ModTime      time.Time
	Kind         Kind
	ETag         string
	StorageClass string
}

// Stat is the resolved metadata returned by PathImpl.Stat.
type Stat struct {
	Size    int64
	ModTime time.Time
	Kind    Kind
	ETag    string
}

// Path is a cheap, clone-by-value logical location (spec.md §3, "Path").
// It holds no open handles; all I/O is performed through the backend it
// dispatches to via its Scheme.
type Path struct {
	impl PathImpl
	hint Hint
}

// newPath wraps a backend-produced PathImpl with an optional hint.
func newPath(impl PathImpl, hint Hint) Path {
	return Path{impl: impl, hint: hint}
}

// Impl exposes the underlying PathImpl for backend-specific orchestration
// (the façade's copy_to/move_to need this to decide same-scheme vs.
// cross-scheme handling).
func (p Path) Impl() PathImpl { return p.impl }

// Hint returns the metadata hint embedded in this Path, if any.
func (p Path) Hint() Hint { return p.hint }

// WithHint returns a copy of p carrying hint — used by backends when
// reconstructing Paths from a cached listing (spec.md §4.3, "(2) Listing
// aggregation and caching").
func (p Path) WithHint(hint Hint) Path {
	return Path{impl: p.impl, hint: hint}
}

func (p Path) Scheme() Scheme          { return p.impl.Scheme() }
func (p Path) URI() string             { return p.impl.URI() }
func (p Path) Name() string            { return p.impl.Name() }
func (p Path) IsAbsolute() bool        { return p.impl.IsAbsolute() }
func (p Path) IsRemote() bool          { return p.impl.IsRemote() }
func (p Path) IsArchiveMember() bool   { return p.impl.IsArchiveMember() }

// Parent returns the parent Path. Hints do not carry over to the parent
// since the parent was not observed by whatever listing produced p.
func (p Path) Parent() Path {
	return newPath(p.impl.Parent(), Hint{})
}

// Join appends segment and returns the child Path. No hint: the child
// was not observed by a listing.
func (p Path) Join(segment string) Path {
	return newPath(p.impl.Join(segment), Hint{})
}

// WithName returns a Path with the final component replaced.
func (p Path) WithName(name string) Path {
	return newPath(p.impl.WithName(name), Hint{})
}

// WithSuffix returns a Path with the final component's extension replaced.
func (p Path) WithSuffix(suffix string) Path {
	return newPath(p.impl.WithSuffix(suffix), Hint{})
}

// Exists consults the hint first; only calls into the backend when the
// hint is absent (spec.md §4.1, "Classification").
func (p Path) Exists(ctx context.Context) (bool, error) {
	if p.hint.Valid {
		return true, nil // we were enumerated by iterdir, so we exist
	}
	return p.impl.Exists(ctx)
}

// IsDir consults the hint first.
func (p Path) IsDir(ctx context.Context) (bool, error) {
	if p.hint.Valid {
		return p.hint.Kind == KindDir || p.hint.Kind == KindVirtualDir, nil
	}
	return p.impl.IsDir(ctx)
}

// IsFile consults the hint first.
func (p Path) IsFile(ctx context.Context) (bool, error) {
	if p.hint.Valid {
		return p.hint.Kind == KindFile, nil
	}
	return p.impl.IsFile(ctx)
}

// IsSymlink consults the hint first.
func (p Path) IsSymlink(ctx context.Context) (bool, error) {
	if p.hint.Valid {
		return p.hint.Kind == KindSymlink, nil
	}
	return p.impl.IsSymlink(ctx)
}

// Iterdir returns a finite, not-restartable lazy sequence of children.
// Each yielded Path carries a metadata hint (spec.md §4.1, "Enumeration").
func (p Path) Iterdir(ctx context.Context) (Iterator, error) {
	return p.impl.Iterdir(ctx)
}

// Stat returns resolved metadata, answered from the hint when one is
// present. Without a hint the backend resolves it (e.g. S3 needs no network
// call for a virtual directory with a cached listing, spec.md §4.3).
func (p Path) Stat(ctx context.Context) (Stat, error) {
	if p.hint.Valid {
		return Stat{Size: p.hint.Size, ModTime: p.hint.ModTime, Kind: p.hint.Kind, ETag: p.hint.ETag}, nil
	}
	return p.impl.Stat(ctx)
}

func (p Path) ReadBytes(ctx context.Context) ([]byte, error) { return p.impl.ReadBytes(ctx) }

// ReadText reads and decodes using the fallback chain UTF-8 -> Latin-1 ->
// CP-1252 (spec.md §4.1, "I/O").
func (p Path) ReadText(ctx context.Context) (string, error) {
	raw, err := p.impl.ReadBytes(ctx)
	if err != nil {
		return "", err
	}
	return decodeWithFallback(raw), nil
}

func (p Path) WriteBytes(ctx context.Context, data []byte, overwrite bool) error {
	return p.impl.WriteBytes(ctx, data, overwrite)
}

func (p Path) WriteText(ctx context.Context, text string, overwrite bool) error {
	return p.impl.WriteBytes(ctx, []byte(text), overwrite)
}

func (p Path) Mkdir(ctx context.Context, parents, existOK bool) error {
	return p.impl.Mkdir(ctx, parents, existOK)
}

func (p Path) Unlink(ctx context.Context) error { return p.impl.Unlink(ctx) }
func (p Path) Rmtree(ctx context.Context) error { return p.impl.Rmtree(ctx) }

// Rename is atomic within a backend, otherwise fails with
// UnsupportedOperation (spec.md §4.2). Cross-scheme renames must go
// through CopyTo/MoveTo on the façade instead.
func (p Path) Rename(ctx context.Context, dst Path) error {
	return p.impl.Rename(ctx, dst.impl)
}

// Reader opens a streaming reader, used by the façade's cross-scheme copy
// to avoid buffering whole files in memory.
func (p Path) Reader(ctx context.Context) (io.ReadCloser, error) {
	return p.impl.Reader(ctx)
}

// Writer opens a streaming writer.
func (p Path) Writer(ctx context.Context, overwrite bool) (io.WriteCloser, error) {
	return p.impl.Writer(ctx, overwrite)
}

// Iterator is a finite, not-restartable lazy sequence of Paths, modeling
// coroutine-style iterdir as described in spec.md §9 ("Coroutines /
// generators (iterdir): model as finite lazy sequences; consumers that
// need restart call iterdir again").
type Iterator interface {
	// Next returns the next Path, or ok=false when the sequence is
	// exhausted. Any error terminates the sequence.
	Next(ctx context.Context) (p Path, ok bool, err error)
}

// PathImpl is the capability set every backend implements (spec.md §4.1).
type PathImpl interface {
	Scheme() Scheme
	URI() string
	Name() string
	Parent() PathImpl
	IsAbsolute() bool
	Join(segment string) PathImpl
	WithName(name string) PathImpl
	WithSuffix(suffix string) PathImpl

	Exists(ctx context.Context) (bool, error)
	IsFile(ctx context.Context) (bool, error)
	IsDir(ctx context.Context) (bool, error)
	IsSymlink(ctx context.Context) (bool, error)

	Iterdir(ctx context.Context) (Iterator, error)
	Stat(ctx context.Context) (Stat, error)

	ReadBytes(ctx context.Context) ([]byte, error)
	WriteBytes(ctx context.Context, data []byte, overwrite bool) error
	Reader(ctx context.Context) (io.ReadCloser, error)
	Writer(ctx context.Context, overwrite bool) (io.WriteCloser, error)

	Mkdir(ctx context.Context, parents, existOK bool) error
	Unlink(ctx context.Context) error
	Rmtree(ctx context.Context) error
	Rename(ctx context.Context, dst PathImpl) error

	IsRemote() bool
	IsArchiveMember() bool
}

// New wraps a freshly constructed backend PathImpl with no hint. Backend
// packages call this (or construct Path via their own exported
// constructors, which call this internally) to produce a Path for a root
// the caller navigates to directly (e.g. typed by the user), as opposed
// to one discovered via Iterdir.
func New(impl PathImpl) Path {
	return newPath(impl, Hint{})
}

// DirEntry is a resolved child of a directory: a Path plus its cached
// metadata (spec.md §3, "DirEntry").
type DirEntry struct {
	Path    Path
	Size    int64
	ModTime time.Time
	Kind    Kind
}

// NewDirEntry builds a DirEntry and stamps its Path with a matching Hint,
// so that any later Exists/IsDir/IsFile/Stat on the DirEntry's Path can be
// answered without backend I/O (spec.md I2 in §8).
func NewDirEntry(p Path, size int64, modTime time.Time, kind Kind) DirEntry {
	hinted := p.WithHint(Hint{Valid: true, Size: size, ModTime: modTime, Kind: kind})
	return DirEntry{Path: hinted, Size: size, ModTime: modTime, Kind: kind}
}
