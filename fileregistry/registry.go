// Package fileregistry is the process-wide interned file table: one
// entry per distinct path, lazily stat'd and cached, shared by every
// cmdstorage.Store in the process.
package fileregistry

import (
	"os"

	"github.com/cespare/xxhash/v2"

	"github.com/swbuild/sw/internal/rwmap"
	"github.com/swbuild/sw/swpath"
)

// OutdatednessReason classifies a single file's status within a
// command's recorded file set.
type OutdatednessReason uint8

const (
	NotRecorded OutdatednessReason = iota
	Missing
	Updated
	FreshFile
)

func (r OutdatednessReason) String() string {
	switch r {
	case NotRecorded:
		return "NotRecordedFile"
	case Missing:
		return "MissingFile"
	case Updated:
		return "UpdatedFile"
	case FreshFile:
		return "Fresh"
	default:
		return "unknown"
	}
}

// FileHash identifies a path; hash(path) is the interning key.
type FileHash uint64

// HashPath computes the interning key for a path.
func HashPath(p swpath.Path) FileHash {
	return FileHash(xxhash.Sum64String(string(p)))
}

// entry is one interned file's cached state.
type entry struct {
	path    swpath.Path
	mtime   int64 // unix nanoseconds; valid only if checked
	exists  bool
	checked bool
}

// Registry is the process-wide interned file table.
type Registry struct {
	m *rwmap.RWMap[FileHash, *entry]
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{m: rwmap.New[FileHash, *entry]()}
}

// Add interns path if absent, invoking persist (if non-nil) the first
// time the path is seen so it reaches the persistent stream exactly
// once. If reset is true and the path was already interned, its cached
// stat is invalidated, used when a command declares the path as an
// output, since the command about to run may change its mtime. The
// returned created flag reports whether this call was the first time
// path was ever interned process-wide; --explain logging keys the
// NewFile reason off it.
func (r *Registry) Add(path swpath.Path, persist func(swpath.Path), reset bool) (h FileHash, created bool) {
	h = HashPath(path)
	e, created := r.m.GetOrCreate(h, func() *entry { return &entry{path: path} })
	if created && persist != nil {
		persist(path)
	}
	if reset {
		e.checked = false
	}
	return h, created
}

// Stat forces a (possibly cached) stat of the interned file with hash
// h and reports its current mtime and existence. Returns ok=false if
// h was never interned.
func (r *Registry) Stat(h FileHash) (mtimeNanos int64, exists bool, ok bool) {
	e, present := r.m.Get(h)
	if !present {
		return 0, false, false
	}
	if !e.checked {
		r.restat(e)
	}
	return e.mtime, e.exists, true
}

func (r *Registry) restat(e *entry) {
	info, err := os.Stat(e.path.OSForm())
	if err != nil {
		e.exists = false
		e.mtime = 0
	} else {
		e.exists = true
		e.mtime = info.ModTime().UnixNano()
	}
	e.checked = true
}

// Outdated reports a single recorded file's status relative to
// cmdMtime, the end mtime recorded for the command that declared it.
func (r *Registry) Outdated(h FileHash, cmdMtime int64) OutdatednessReason {
	e, present := r.m.Get(h)
	if !present {
		return NotRecorded
	}
	if !e.checked {
		r.restat(e)
	}
	if !e.exists {
		return Missing
	}
	if e.mtime > cmdMtime {
		return Updated
	}
	return FreshFile
}

// Path returns the interned path for h, if known.
func (r *Registry) Path(h FileHash) (swpath.Path, bool) {
	e, present := r.m.Get(h)
	if !present {
		return "", false
	}
	return e.path, true
}

// Len reports the number of interned files.
func (r *Registry) Len() int { return r.m.Length() }
