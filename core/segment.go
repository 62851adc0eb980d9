package core

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// segment is one numbered on-disk log file. The active segment is owned
// exclusively by the engine for appends; all others are immutable and may
// additionally be held open for random reads via the engine's reader cache.
type segment struct {
	id   int
	file *os.File
	size int64 // logical write offset; equals the file's length
}

var segmentNameRE = regexp.MustCompile(`^(\d+)\.log$`)

// segmentPath returns the deterministic path for a segment id.
func segmentPath(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("%d.log", id))
}

// listSegmentIDs enumerates regular files under dir matching `<digits>.log`
// and returns their ids in ascending order. Files that don't match the
// pattern are ignored, per §4.2's contract.
func listSegmentIDs(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var ids []int
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := segmentNameRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue // name matched the pattern but overflowed int; ignore
		}
		ids = append(ids, id)
	}

	sort.Ints(ids)
	return ids, nil
}

// createSegment creates a brand new, empty segment file for id and opens
// it for append. It errors if the file already exists, since segment ids
// are never reused within a directory's lifetime (invariant 3).
func createSegment(dir string, id int) (*segment, error) {
	path := segmentPath(dir, id)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create segment %q: %w", path, err)
	}
	return &segment{id: id, file: f, size: 0}, nil
}

// openSegmentForRead opens an existing segment for random-access reads
// only; it never changes size and its file handle is never written to.
func openSegmentForRead(dir string, id int) (*os.File, error) {
	path := segmentPath(dir, id)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open segment %q for read: %w", path, err)
	}
	return f, nil
}

// deleteSegment unlinks the segment file. Callers must close any open
// handle (active writer or cached reader) for this id before calling,
// matching §5's "file handles are closed before unlink" policy.
func deleteSegment(dir string, id int) error {
	if err := os.Remove(segmentPath(dir, id)); err != nil {
		return fmt.Errorf("remove segment %d: %w", id, err)
	}
	return nil
}

// write appends one record to the segment, returning the offset the
// record was written at. The caller must call sync separately for
// fsync-level durability; the write itself is already visible to the OS.
func (s *segment) write(rt recordType, key, val string) (offset int64, err error) {
	offset = s.size
	n, err := encodeRecord(s.file, rt, key, val)
	if err != nil {
		return 0, fmt.Errorf("write record to segment %d: %w", s.id, err)
	}
	s.size += n
	return offset, nil
}

// sync forces the segment's writes to stable storage. §5 only requires
// "durable" to mean "handed to the OS", which an unbuffered os.File.Write
// already satisfies, so this is used only by Close (full durability on
// shutdown), by compaction (before the old segments are deleted), and for
// callers that opt into WithFsync per-operation durability.
func (s *segment) sync() error {
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync segment %d: %w", s.id, err)
	}
	return nil
}

func (s *segment) close() error {
	return s.file.Close()
}
