package core

import (
	"fmt"
	"log"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultCompactionLimit is the uncompacted-byte threshold above which a
// Set triggers compaction, per §6/§7 of the spec this engine implements.
const DefaultCompactionLimit = 1 * 1024 * 1024 // 1 MiB

// Engine is the public façade over the storage engine: it orchestrates
// writes, reads, and compaction against a single directory. An Engine is
// single-owner and single-threaded — see the concurrency model this
// engine follows; callers are responsible for serializing all calls.
type Engine struct {
	dir string

	idx         *index
	uncompacted int64

	active   *segment
	readers  map[int]*os.File
	knownIDs mapset.Set[int]
	nextID   int

	compactionLimit int64
	fsync           bool
}

// Option configures an Engine at Open time.
type Option func(*Engine)

// WithCompactionLimit overrides the default 1 MiB uncompacted-byte
// threshold that triggers compaction.
func WithCompactionLimit(n int64) Option {
	return func(e *Engine) { e.compactionLimit = n }
}

// WithFsync controls whether every Set/Remove additionally issues an
// fsync, rather than relying on the OS-level flush §5 already requires.
// Durability per this spec never requires fsync; this option exists for
// callers who want it anyway, at the cost of throughput.
func WithFsync(b bool) Option {
	return func(e *Engine) { e.fsync = b }
}

// Open opens (creating if absent) the store at path, replaying every
// existing segment to rebuild the index, then activates a fresh segment
// for new writes (see DESIGN.md for why this engine always rotates into a
// new segment on Open rather than resuming appends into a historical one).
func Open(path string, opts ...Option) (e *Engine, err error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", path, err)
	}

	ids, err := listSegmentIDs(path)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}

	rr, err := recoverSegments(path, ids)
	if err != nil {
		return nil, fmt.Errorf("recover %q: %w", path, err)
	}

	e = &Engine{
		dir:             path,
		idx:             rr.idx,
		uncompacted:     rr.uncompacted,
		readers:         make(map[int]*os.File),
		knownIDs:        mapset.NewSet[int](),
		compactionLimit: DefaultCompactionLimit,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, id := range ids {
		e.knownIDs.Add(id)
	}

	activeID := rr.maxID + 1 // rr.maxID is -1 for an empty directory, so this also covers "create segment 0"
	e.nextID = activeID + 1

	active, err := createSegment(path, activeID)
	if err != nil {
		return nil, fmt.Errorf("create active segment %d: %w", activeID, err)
	}
	e.active = active
	e.knownIDs.Add(activeID)

	return e, nil
}

// claimID hands out the next unused segment id. Ids are never reused
// within a directory's lifetime (invariant 3).
func (e *Engine) claimID() int {
	id := e.nextID
	e.nextID++
	return id
}

// Set writes key=val as a new record in the active segment and installs
// its location in the index. If key already had a live record, that
// record's length is credited to the uncompacted-byte counter. If the
// counter then exceeds the configured limit, compaction runs before Set
// returns.
func (e *Engine) Set(key, val string) error {
	off, err := e.active.write(recordSet, key, val)
	if err != nil {
		return err
	}
	if e.fsync {
		if err := e.active.sync(); err != nil {
			return err
		}
	}

	d := descriptor{segID: e.active.id, offset: off, length: e.active.size - off}
	if prev, had := e.idx.insert(key, d); had {
		e.uncompacted += prev.length
	}

	if e.uncompacted > e.compactionLimit {
		if err := e.runCompaction(); err != nil {
			return fmt.Errorf("compaction after set %q: %w", key, err)
		}
	}

	return nil
}

// Get returns the current value for key, or ErrKeyNotFound if it has
// never been set or was removed.
func (e *Engine) Get(key string) (string, error) {
	d, ok := e.idx.get(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}

	r, err := e.readerFor(d.segID)
	if err != nil {
		return "", fmt.Errorf("%w: segment %d for key %q: %v", ErrInvariant, d.segID, key, err)
	}

	_, val, rt, err := readRecordAt(r, d.offset, d.length)
	if err != nil {
		return "", fmt.Errorf("read %q at seg %d off %d: %w", key, d.segID, d.offset, err)
	}
	if rt != recordSet {
		return "", fmt.Errorf("%w: index points at a non-Set record for %q", ErrInvariant, key)
	}

	return val, nil
}

// Remove deletes key. It returns ErrKeyNotFound (and writes nothing) if
// the key is not currently present — unlike the historical implementation
// this engine's design departs from, which wrote a tombstone unconditionally.
func (e *Engine) Remove(key string) error {
	prevDesc, had := e.idx.get(key)
	if !had {
		return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}

	if _, err := e.active.write(recordRemove, key, ""); err != nil {
		return err
	}
	if e.fsync {
		if err := e.active.sync(); err != nil {
			return err
		}
	}

	e.idx.remove(key)
	e.uncompacted += prevDesc.length

	return nil
}

// Close syncs and closes the active segment plus every cached reader.
func (e *Engine) Close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	record(e.active.sync())
	record(e.active.close())

	for id, f := range e.readers {
		if err := f.Close(); err != nil {
			record(fmt.Errorf("close reader for segment %d: %w", id, err))
		}
	}

	return firstErr
}

// Compact forces a compaction pass immediately, regardless of whether the
// uncompacted-byte threshold has been crossed. This mirrors an explicit
// maintenance operation the original implementation exposed but the
// distilled contract only describes as an automatic trigger.
func (e *Engine) Compact() error {
	return e.runCompaction()
}

// Stats is a read-only snapshot of engine bookkeeping, useful for an
// operator CLI and for tests. It performs no I/O beyond directory-less
// in-memory reads.
type Stats struct {
	SegmentCount int
	KeyCount     int
	Uncompacted  int64
}

func (e *Engine) Stats() Stats {
	return Stats{
		SegmentCount: e.knownIDs.Cardinality(),
		KeyCount:     e.idx.len(),
		Uncompacted:  e.uncompacted,
	}
}

// readerFor returns a ReaderAt for segID, opening and caching it on first
// use. The active segment's own handle is reused directly since it is
// already open for read and write.
func (e *Engine) readerFor(segID int) (*os.File, error) {
	if e.active != nil && segID == e.active.id {
		return e.active.file, nil
	}
	if f, ok := e.readers[segID]; ok {
		return f, nil
	}
	f, err := openSegmentForRead(e.dir, segID)
	if err != nil {
		return nil, err
	}
	e.readers[segID] = f
	return f, nil
}

// closeAndForgetReader drops and closes a cached reader, used when a
// segment is about to be deleted by compaction (handles must be closed
// before unlink, per §5).
func (e *Engine) closeAndForgetReader(segID int) {
	if f, ok := e.readers[segID]; ok {
		if err := f.Close(); err != nil {
			log.Printf("bitlog: close reader for segment %d during compaction: %v", segID, err)
		}
		delete(e.readers, segID)
	}
}
