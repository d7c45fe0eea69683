// Package cmdhash computes a command's fingerprint: a deterministic
// XOR of the hash of every argument, the working directory, every
// (k,v) environment pair, and any path-form redirection. XOR keeps the
// environment contribution order-independent, since environment maps
// are unordered.
package cmdhash

import "github.com/cespare/xxhash/v2"

// Hash is a 64-bit command fingerprint.
type Hash uint64

// ArgKind distinguishes owned/borrowed strings from path arguments.
// The kind participates in the hash so a path argument and a string
// argument with the same text are not accidentally equal.
type ArgKind uint8

const (
	ArgOwned ArgKind = iota
	ArgBorrowed
	ArgPath
)

// Builder accumulates the XOR-combined hash of a command's observable
// invocation.
type Builder struct {
	h Hash
}

func hashString(kindTag byte, s string) Hash {
	var d xxhash.Digest
	d.Reset()
	_, _ = d.Write([]byte{kindTag})
	_, _ = d.Write([]byte(s))
	return Hash(d.Sum64())
}

// Argument folds one argv element into the hash.
func (b *Builder) Argument(kind ArgKind, value string) *Builder {
	b.h ^= hashString(byte(kind)+1, value)
	return b
}

// WorkingDirectory folds the command's cwd into the hash.
func (b *Builder) WorkingDirectory(cwd string) *Builder {
	b.h ^= hashString('D', cwd)
	return b
}

// Env folds one (k,v) environment pair into the hash. Order of calls
// does not matter since XOR is commutative; callers may iterate a Go
// map directly.
func (b *Builder) Env(key, value string) *Builder {
	b.h ^= hashString('K', key)
	b.h ^= hashString('V', value)
	return b
}

// Redirect folds a path-form stream redirection (redirect-to-path on
// stdin/stdout/stderr) into the hash.
func (b *Builder) Redirect(path string) *Builder {
	b.h ^= hashString('R', path)
	return b
}

// Sum returns the accumulated hash.
func (b *Builder) Sum() Hash { return b.h }
