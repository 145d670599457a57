// Package local implements vpath.PathImpl for the local filesystem
// (spec.md §4.2), wrapping os calls directly the way the teacher's local
// backend wraps OS calls for its fs.Fs/fs.Object implementation.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/shimomut/tfm-sub008/internal/errs"
	"github.com/shimomut/tfm-sub008/internal/vpath"
)

// Path implements vpath.PathImpl over a local filesystem path.
type Path struct {
	abs string // absolute, OS-native path
}

// New builds a vpath.Path rooted at abs (which is cleaned and made
// absolute relative to the working directory if it isn't already).
func New(abs string) vpath.Path {
	if !filepath.IsAbs(abs) {
		if wd, err := os.Getwd(); err == nil {
			abs = filepath.Join(wd, abs)
		}
	}
	return vpath.New(&Path{abs: filepath.Clean(abs)})
}

func (p *Path) Scheme() vpath.Scheme { return vpath.SchemeFile }
func (p *Path) URI() string          { return "file://" + filepath.ToSlash(p.abs) }
func (p *Path) Name() string         { return filepath.Base(p.abs) }
func (p *Path) IsAbsolute() bool     { return filepath.IsAbs(p.abs) }
func (p *Path) IsRemote() bool       { return false }
func (p *Path) IsArchiveMember() bool { return false }

func (p *Path) Parent() vpath.PathImpl {
	return &Path{abs: filepath.Dir(p.abs)}
}

func (p *Path) Join(segment string) vpath.PathImpl {
	return &Path{abs: filepath.Join(p.abs, segment)}
}

func (p *Path) WithName(name string) vpath.PathImpl {
	return &Path{abs: filepath.Join(filepath.Dir(p.abs), name)}
}

func (p *Path) WithSuffix(suffix string) vpath.PathImpl {
	ext := filepath.Ext(p.abs)
	base := strings.TrimSuffix(p.abs, ext)
	return &Path{abs: base + suffix}
}

func (p *Path) normErr(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case os.IsNotExist(err):
		return errs.Wrap(errs.NotFound, op, p.abs, err)
	case os.IsExist(err):
		return errs.Wrap(errs.AlreadyExists, op, p.abs, err)
	case os.IsPermission(err):
		return errs.Wrap(errs.PermissionDenied, op, p.abs, err)
	default:
		return errs.Wrap(errs.IoFailure, op, p.abs, err)
	}
}

func (p *Path) Exists(ctx context.Context) (bool, error) {
	_, err := os.Lstat(p.abs)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, p.normErr("exists", err)
}

func (p *Path) IsDir(ctx context.Context) (bool, error) {
	fi, err := os.Stat(p.abs)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, p.normErr("is_dir", err)
	}
	return fi.IsDir(), nil
}

func (p *Path) IsFile(ctx context.Context) (bool, error) {
	fi, err := os.Stat(p.abs)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, p.normErr("is_file", err)
	}
	return fi.Mode().IsRegular(), nil
}

func (p *Path) IsSymlink(ctx context.Context) (bool, error) {
	fi, err := os.Lstat(p.abs)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, p.normErr("is_symlink", err)
	}
	return fi.Mode()&os.ModeSymlink != 0, nil
}

// iterator yields children in arbitrary order; PaneModel is responsible
// for sorting (spec.md §4.2).
type iterator struct {
	parent  *Path
	entries []os.DirEntry
	idx     int
}

func (it *iterator) Next(ctx context.Context) (vpath.Path, bool, error) {
	if it.idx >= len(it.entries) {
		return vpath.Path{}, false, nil
	}
	de := it.entries[it.idx]
	it.idx++
	childAbs := filepath.Join(it.parent.abs, de.Name())
	info, err := de.Info()
	if err != nil {
		return vpath.Path{}, false, it.parent.normErr("iterdir", err)
	}
	kind := vpath.KindFile
	if info.IsDir() {
		kind = vpath.KindDir
	} else if info.Mode()&os.ModeSymlink != 0 {
		kind = vpath.KindSymlink
	}
	child := vpath.New(&Path{abs: childAbs})
	return vpath.NewDirEntry(child, info.Size(), info.ModTime(), kind).Path, true, nil
}

func (p *Path) Iterdir(ctx context.Context) (vpath.Iterator, error) {
	entries, err := os.ReadDir(p.abs)
	if err != nil {
		return nil, p.normErr("iterdir", err)
	}
	return &iterator{parent: p, entries: entries}, nil
}

func (p *Path) Stat(ctx context.Context) (vpath.Stat, error) {
	fi, err := os.Stat(p.abs)
	if err != nil {
		return vpath.Stat{}, p.normErr("stat", err)
	}
	kind := vpath.KindFile
	if fi.IsDir() {
		kind = vpath.KindDir
	}
	return vpath.Stat{Size: fi.Size(), ModTime: fi.ModTime(), Kind: kind}, nil
}

func (p *Path) ReadBytes(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.abs)
	if err != nil {
		return nil, p.normErr("read_bytes", err)
	}
	return data, nil
}

func (p *Path) WriteBytes(ctx context.Context, data []byte, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(p.abs, flags, 0o644)
	if err != nil {
		return p.normErr("write_bytes", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return p.normErr("write_bytes", err)
	}
	return nil
}

func (p *Path) Reader(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(p.abs)
	if err != nil {
		return nil, p.normErr("read", err)
	}
	return f, nil
}

func (p *Path) Writer(ctx context.Context, overwrite bool) (io.WriteCloser, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(p.abs, flags, 0o644)
	if err != nil {
		return nil, p.normErr("write", err)
	}
	return f, nil
}

func (p *Path) Mkdir(ctx context.Context, parents, existOK bool) error {
	var err error
	if parents {
		err = os.MkdirAll(p.abs, 0o755)
	} else {
		err = os.Mkdir(p.abs, 0o755)
	}
	if err != nil {
		if os.IsExist(err) && existOK {
			return nil
		}
		return p.normErr("mkdir", err)
	}
	return nil
}

func (p *Path) Unlink(ctx context.Context) error {
	if err := os.Remove(p.abs); err != nil {
		return p.normErr("unlink", err)
	}
	return nil
}

func (p *Path) Rmtree(ctx context.Context) error {
	if err := os.RemoveAll(p.abs); err != nil {
		return p.normErr("rmtree", err)
	}
	return nil
}

// Rename is atomic within a filesystem; across filesystems os.Rename
// fails with EXDEV, which is normalized to UnsupportedOperation so the
// façade falls back to cross-scheme-style copy+delete (spec.md §4.2).
func (p *Path) Rename(ctx context.Context, dst vpath.PathImpl) error {
	dstLocal, ok := dst.(*Path)
	if !ok {
		return errs.New(errs.UnsupportedOperation, "rename", p.abs)
	}
	err := os.Rename(p.abs, dstLocal.abs)
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "cross-device") || strings.Contains(err.Error(), "invalid cross-device link") {
		return errs.Wrap(errs.UnsupportedOperation, "rename", p.abs, err)
	}
	return p.normErr("rename", err)
}

var _ vpath.PathImpl = (*Path)(nil)
