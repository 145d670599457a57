package vpath

import (
	"context"
	"io"
	"os"

	"github.com/shimomut/tfm-sub008/internal/errs"
)

// chunkSize is the minimum streaming chunk size for cross-scheme copy,
// per spec.md §4.5 ("Chunk size >= 1 MiB when supported").
const chunkSize = 1 << 20

// CopyTo implements the façade's copy_to, dispatching to a same-scheme
// backend copy when src and dst share a scheme, or streaming bytes
// through Reader/Writer otherwise (spec.md §4.5).
func CopyTo(ctx context.Context, src, dst Path, overwrite bool) error {
	if src.Scheme() == dst.Scheme() {
		if sameScheme, ok := src.impl.(sameSchemeCopier); ok {
			if dstImpl, ok2 := dst.impl.(PathImpl); ok2 {
				if err := sameScheme.CopySameScheme(ctx, dstImpl, overwrite); err == nil {
					return nil
				} else if !errs.Is(err, errs.UnsupportedOperation) {
					return err
				}
				// UnsupportedOperation falls through to the generic path.
			}
		}
	}

	isDir, err := src.IsDir(ctx)
	if err != nil {
		return err
	}
	if isDir {
		return copyDir(ctx, src, dst, overwrite)
	}
	return copyFile(ctx, src, dst, overwrite)
}

// sameSchemeCopier is an optional capability a backend's PathImpl may
// implement to provide a native server-side copy (e.g. S3 CopyObject).
// Backends that don't implement it (local, archive) fall back to the
// generic streaming path transparently.
type sameSchemeCopier interface {
	CopySameScheme(ctx context.Context, dst PathImpl, overwrite bool) error
}

func copyFile(ctx context.Context, src, dst Path, overwrite bool) error {
	if exists, err := dst.Exists(ctx); err != nil {
		return err
	} else if exists && !overwrite {
		return errs.New(errs.AlreadyExists, "copy_to", dst.URI())
	}
	r, err := src.Reader(ctx)
	if err != nil {
		return err
	}
	defer r.Close()
	w, err := dst.Writer(ctx, overwrite)
	if err != nil {
		return err
	}
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(w, r, buf); err != nil {
		_ = w.Close()
		return errs.Wrap(errs.IoFailure, "copy_to", dst.URI(), err)
	}
	return w.Close()
}

func copyDir(ctx context.Context, src, dst Path, overwrite bool) error {
	if err := dst.Mkdir(ctx, true, true); err != nil {
		return err
	}
	it, err := src.Iterdir(ctx)
	if err != nil {
		return err
	}
	for {
		child, ok, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		dstChild := dst.Join(child.Name())
		childIsDir, err := child.IsDir(ctx)
		if err != nil {
			return err
		}
		if childIsDir {
			if err := copyDir(ctx, child, dstChild, overwrite); err != nil {
				return err
			}
		} else if err := copyFile(ctx, child, dstChild, overwrite); err != nil {
			return err
		}
	}
	return nil
}

// MoveTo implements the façade's move_to: same-scheme uses native rename,
// cross-scheme copies then deletes the source. On partial failure the
// source is retained and the error is reported as recoverable (spec.md
// §4.5, I5 in §8).
func MoveTo(ctx context.Context, src, dst Path, overwrite bool) error {
	if src.Scheme() == dst.Scheme() {
		if err := src.Rename(ctx, dst); err == nil {
			return nil
		} else if !errs.Is(err, errs.UnsupportedOperation) {
			return err
		}
		// fall through to cross-scheme copy+delete
	}
	if err := CopyTo(ctx, src, dst, overwrite); err != nil {
		return errs.Wrap(errs.IoFailure, "move_to", src.URI(), err)
	}
	isDir, err := src.IsDir(ctx)
	if err != nil {
		return err
	}
	if isDir {
		err = src.Rmtree(ctx)
	} else {
		err = src.Unlink(ctx)
	}
	if err != nil {
		// Destination now has a full copy but the source could not be
		// removed: report as recoverable, source is retained.
		return errs.Wrap(errs.ConflictingState, "move_to", src.URI(), err)
	}
	return nil
}

// CheckLocalPermission implements the façade's permission pre-check: a
// local-filesystem destination uses OS permission checks; remote
// destinations skip pre-checks, deferred to the actual write (spec.md
// §4.5, "Permission pre-check").
func CheckLocalPermission(dst Path) error {
	if dst.Scheme() != SchemeFile {
		return nil
	}
	dir := dst.Parent().URI()
	// Strip the file:// prefix backends use for local URIs.
	const filePrefix = "file://"
	path := dir
	if len(path) >= len(filePrefix) && path[:len(filePrefix)] == filePrefix {
		path = path[len(filePrefix):]
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errs.Wrap(errs.NotFound, "copy_to", dir, err)
		}
		return errs.Wrap(errs.IoFailure, "copy_to", dir, err)
	}
	if info.Mode().Perm()&0o200 == 0 {
		return errs.New(errs.PermissionDenied, "copy_to", dir)
	}
	return nil
}
