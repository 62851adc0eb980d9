// Package core implements the bitlog storage engine: an append-only,
// log-structured key-value store with an in-memory index and periodic
// compaction.
package core

import "errors"

// ErrKeyNotFound is returned by Get and Remove when the key is absent
// from the index.
var ErrKeyNotFound = errors.New("key not found")

// ErrCorrupt is returned when a record fails its checksum or a segment
// contains a malformed frame outside of a torn tail write. It indicates
// the on-disk format is not self-consistent and is always fatal to the
// call that surfaced it.
var ErrCorrupt = errors.New("corrupt record")

// ErrInvariant is returned when a read lands on a location that does not
// decode to a live Set record, or when the index references a segment
// that no longer exists on disk. Either case means the in-memory index
// and on-disk state have diverged, which should never happen in a
// single-owner engine and indicates a bug rather than an operational
// condition a caller can recover from.
var ErrInvariant = errors.New("storage invariant violated")
