package core

import (
	"fmt"
	"log"

	mapset "github.com/deckarep/golang-set/v2"
)

// runCompaction implements §4.5's compaction algorithm: every currently
// live record is copied into a fresh segment C, a second fresh segment N
// is activated for future writes, the index is rewritten to point at C,
// and every segment older than C is deleted.
func (e *Engine) runCompaction() (rerr error) {
	c, err := createSegment(e.dir, e.claimID())
	if err != nil {
		return fmt.Errorf("create compaction segment: %w", err)
	}
	n, err := createSegment(e.dir, e.claimID())
	if err != nil {
		_ = c.close()
		_ = deleteSegment(e.dir, c.id)
		return fmt.Errorf("create new active segment: %w", err)
	}

	defer func() {
		if rerr != nil {
			_ = c.close()
			_ = n.close()
			_ = deleteSegment(e.dir, c.id)
			_ = deleteSegment(e.dir, n.id)
		}
	}()

	newDescriptors := make(map[string]descriptor, e.idx.len())

	var copyErr error
	e.idx.entries(func(key string, d descriptor) {
		if copyErr != nil {
			return
		}

		r, err := e.readerFor(d.segID)
		if err != nil {
			copyErr = fmt.Errorf("%w: open segment %d for compaction: %v", ErrInvariant, d.segID, err)
			return
		}

		_, val, rt, err := readRecordAt(r, d.offset, d.length)
		if err != nil {
			copyErr = fmt.Errorf("read %q during compaction: %w", key, err)
			return
		}
		if rt != recordSet {
			copyErr = fmt.Errorf("%w: compaction found non-Set record for %q", ErrInvariant, key)
			return
		}

		newOff, err := c.write(recordSet, key, val)
		if err != nil {
			copyErr = fmt.Errorf("write %q into compaction segment: %w", key, err)
			return
		}

		newDescriptors[key] = descriptor{segID: c.id, offset: newOff, length: c.size - newOff}
	})
	if copyErr != nil {
		return copyErr
	}

	if err := c.sync(); err != nil {
		return fmt.Errorf("sync compaction segment %d: %w", c.id, err)
	}

	// Every id known before compaction, including the old active segment,
	// is now superseded by c; §4.5 step 5 deletes all of them.
	stale := e.knownIDs.Clone()

	e.idx.replaceAll(newDescriptors)
	e.uncompacted = 0

	if err := e.active.close(); err != nil {
		log.Printf("bitlog: close superseded active segment %d: %v", e.active.id, err)
	}
	e.active = n

	e.knownIDs = mapset.NewSet[int](c.id, n.id)

	for _, id := range stale.ToSlice() {
		e.closeAndForgetReader(id)
		if err := deleteSegment(e.dir, id); err != nil {
			log.Printf("bitlog: remove stale segment %d: %v", id, err)
		}
	}

	return nil
}
