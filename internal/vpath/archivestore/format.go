package archivestore

import (
	"bufio"
	"compress/bzip2"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/shimomut/tfm-sub008/internal/errs"
)

// Format is one of the archive/compression container formats spec.md §4.12
// names for ArchiveOps and ArchivePathImpl (spec.md §4.4a).
type Format int

const (
	FormatZip Format = iota
	FormatTar
	FormatTarGzip
	FormatTarBzip2
	FormatTarXz
	FormatGzip  // single-stream
	FormatBzip2 // single-stream
	FormatXz    // single-stream
)

// DetectFormat infers a Format from an archive's name, matching the
// extension table in spec.md §4.12 ("Formats: ZIP, TAR, TAR+GZIP,
// TAR+BZIP2, TAR+XZ, and single-stream GZIP/BZIP2/XZ").
func DetectFormat(name string) (Format, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGzip, nil
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return FormatTarBzip2, nil
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXz, nil
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, nil
	case strings.HasSuffix(lower, ".gz"):
		return FormatGzip, nil
	case strings.HasSuffix(lower, ".bz2"):
		return FormatBzip2, nil
	case strings.HasSuffix(lower, ".xz"):
		return FormatXz, nil
	default:
		return 0, errs.New(errs.UnsupportedOperation, "detect_format", name)
	}
}

// IsTarBased reports whether f decodes as a TAR container (as opposed to a
// single compressed stream or a ZIP's own central directory).
func (f Format) IsTarBased() bool {
	switch f {
	case FormatTar, FormatTarGzip, FormatTarBzip2, FormatTarXz:
		return true
	default:
		return false
	}
}

// decompressStream wraps raw with the decompressor f needs before a TAR
// reader (or, for single-stream formats, the caller) can consume it.
// gzip uses klauspost/compress/gzip for speed (spec.md §4.4a); bzip2 has no
// faster alternative in the corpus so uses the standard library
// (spec.md §4.4a, "TAR+BZIP2"); xz uses github.com/ulikunitz/xz, the same
// dependency the teacher's backend/press codec uses.
func decompressStream(f Format, raw io.Reader) (io.Reader, error) {
	switch f {
	case FormatTarGzip, FormatGzip:
		zr, err := gzip.NewReader(bufio.NewReader(raw))
		if err != nil {
			return nil, errs.Wrap(errs.IoFailure, "decompress", "gzip", err)
		}
		return zr, nil
	case FormatTarBzip2, FormatBzip2:
		return bzip2.NewReader(raw), nil
	case FormatTarXz, FormatXz:
		xr, err := xz.NewReader(bufio.NewReader(raw))
		if err != nil {
			return nil, errs.Wrap(errs.IoFailure, "decompress", "xz", err)
		}
		return xr, nil
	default:
		return raw, nil
	}
}
