package metadatacache

import (
	"strings"

	"github.com/shimomut/tfm-sub008/internal/logging"
)

// OpKind identifies the kind of file operation whose completion should
// invalidate cache entries (spec.md §4.7 table).
type OpKind int

const (
	OpCopy OpKind = iota
	OpMove
	OpDelete
	OpMkdir
	OpCreateFile
	OpArchiveCreate
	OpArchiveExtract
)

// Manager translates file-operation events into invalidation predicates
// against a Cache, per the table in spec.md §4.7. Invalidation failures
// are logged as warnings and never abort the file operation — since
// Cache.Invalidate can't itself fail (it's an in-memory scan), "failure"
// here means a Manager method being called with insufficient information;
// callers that hit that case should log and continue rather than treat it
// as fatal.
type Manager struct {
	cache  *Cache
	logger logging.Logger
}

// NewManager builds a Manager over cache, logging through logger.
func NewManager(cache *Cache, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{cache: cache, logger: logger}
}

// dirURI normalizes a URI to have exactly one trailing "/", matching the
// directory-listing key convention used by the path backends.
func dirURI(uri string) string {
	return strings.TrimRight(uri, "/") + "/"
}

func parentURI(uri string) string {
	trimmed := strings.TrimRight(uri, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return "/"
	}
	return trimmed[:idx+1]
}

// OnCopy invalidates dst_dir's listing and the individual destination
// child entries, per the "copy" row of spec.md §4.7.
func (m *Manager) OnCopy(dstDir string, dstChildren []string) {
	m.invalidateListing(dstDir, "copy")
	m.invalidateEntries(dstChildren, "copy")
}

// OnMove invalidates the parent listings of every source, the
// destination directory listing, and the source child entries.
func (m *Manager) OnMove(srcs []string, dstDir string) {
	for _, src := range srcs {
		m.invalidateListing(parentURI(src), "move")
	}
	m.invalidateListing(dstDir, "move")
	m.invalidateEntries(srcs, "move")
}

// OnDelete invalidates the parent listing of each deleted path.
func (m *Manager) OnDelete(paths []string) {
	seen := map[string]bool{}
	for _, p := range paths {
		parent := parentURI(p)
		if seen[parent] {
			continue
		}
		seen[parent] = true
		m.invalidateListing(parent, "delete")
	}
}

// OnMkdirOrCreate invalidates the parent listing of a newly created path.
func (m *Manager) OnMkdirOrCreate(path string) {
	m.invalidateListing(parentURI(path), "mkdir/create")
}

// OnArchiveCreate invalidates the parent listing of the new archive and
// the parent listings of every source that was archived.
func (m *Manager) OnArchiveCreate(archivePath string, sources []string) {
	m.invalidateListing(parentURI(archivePath), "archive_create")
	seen := map[string]bool{parentURI(archivePath): true}
	for _, src := range sources {
		parent := parentURI(src)
		if seen[parent] {
			continue
		}
		seen[parent] = true
		m.invalidateListing(parent, "archive_create")
	}
}

// OnArchiveExtract invalidates dst_dir's listing and everything beneath it.
func (m *Manager) OnArchiveExtract(dstDir string) {
	prefix := dirURI(dstDir)
	removed := m.cache.Invalidate(func(key CacheKey) bool {
		path, ok := key.Fields["path"]
		if ok && (path == dstDir || strings.HasPrefix(path, prefix)) {
			return true
		}
		bucket, bucketOK := key.Fields["bucket"]
		pref, prefOK := key.Fields["prefix"]
		if bucketOK && prefOK && strings.HasPrefix("s3://"+bucket+"/"+pref, prefix) {
			return true
		}
		return false
	})
	m.logger.Debugf("archive_extract invalidation: %s (%d entries removed)", dstDir, removed)
}

func (m *Manager) invalidateListing(dirPath string, reason string) {
	prefix := dirURI(dirPath)
	removed := m.cache.Invalidate(func(key CacheKey) bool {
		if key.Op != "listing" && key.Op != "complete_listing" {
			return false
		}
		path, ok := key.Fields["path"]
		if ok {
			return dirURI(path) == prefix
		}
		bucket := key.Fields["bucket"]
		pref := key.Fields["prefix"]
		return dirURI("s3://"+bucket+"/"+pref) == prefix
	})
	if removed == 0 {
		m.logger.Debugf("%s: no cached listing to invalidate for %s", reason, dirPath)
	} else {
		m.logger.Debugf("%s: invalidated listing for %s (%d entries)", reason, dirPath, removed)
	}
}

func (m *Manager) invalidateEntries(paths []string, reason string) {
	for _, p := range paths {
		removed := m.cache.Invalidate(func(key CacheKey) bool {
			if key.Op != "stat" && key.Op != "head" {
				return false
			}
			if path, ok := key.Fields["path"]; ok {
				return path == p
			}
			return false
		})
		if removed > 0 {
			m.logger.Debugf("%s: invalidated stat entry for %s", reason, p)
		}
	}
}
