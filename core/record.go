package core

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// recordType distinguishes a live write from a tombstone on disk.
type recordType int8

const (
	recordSet recordType = iota
	recordRemove
)

// hdrLen is the fixed-size prefix every record carries:
// 8-byte checksum + 4-byte keyLen + 4-byte valLen + 1-byte type + 1-byte reserved.
const hdrLen = 18

const csLen = 8

// encodeRecord frames one command as a fully self-delimiting record:
//
//	[8B checksum][4B keyLen][4B valLen][1B type][1B reserved][key][val]
//
// There is no separator byte: the embedded lengths make every record
// self-delimiting, which is what lets recovery and reads seek directly to
// `length` bytes instead of scanning for a delimiter (see §4.1 / §9 of the
// design notes this engine follows).
func encodeRecord(w io.Writer, rt recordType, key, val string) (int64, error) {
	total := hdrLen + len(key) + len(val)
	buf := make([]byte, total)

	sb := buf[csLen:]
	binary.LittleEndian.PutUint32(sb, uint32(len(key)))
	sb = sb[4:]
	binary.LittleEndian.PutUint32(sb, uint32(len(val)))
	sb = sb[4:]
	sb[0] = byte(rt)
	sb = sb[1:]
	sb[0] = 0 // reserved, keeps the header an even length
	sb = sb[1:]
	copy(sb, key)
	sb = sb[len(key):]
	copy(sb, val)

	checksum := xxh3.Hash(buf[csLen:])
	binary.LittleEndian.PutUint64(buf[:csLen], checksum)

	if _, err := w.Write(buf); err != nil {
		return 0, err
	}
	return int64(total), nil
}

// readRecordAt reads the `length`-byte record located at off and returns its
// decoded key, value and type. length normally comes straight from an index
// Descriptor, so a single ReadAt suffices.
func readRecordAt(r io.ReaderAt, off, length int64) (key, val string, rt recordType, err error) {
	buf := make([]byte, length)
	if _, err = r.ReadAt(buf, off); err != nil {
		return "", "", 0, err
	}
	return decodeRecord(buf)
}

func decodeRecord(buf []byte) (key, val string, rt recordType, err error) {
	if len(buf) < hdrLen {
		return "", "", 0, fmt.Errorf("%w: record shorter than header", ErrCorrupt)
	}

	checksum := binary.LittleEndian.Uint64(buf[:csLen])
	keyLen := int(binary.LittleEndian.Uint32(buf[csLen : csLen+4]))
	valLen := int(binary.LittleEndian.Uint32(buf[csLen+4 : csLen+8]))
	rt = recordType(buf[csLen+8])

	want := hdrLen + keyLen + valLen
	if len(buf) != want {
		return "", "", 0, fmt.Errorf("%w: length mismatch, want %d got %d", ErrCorrupt, want, len(buf))
	}

	if computed := xxh3.Hash(buf[csLen:]); computed != checksum {
		return "", "", 0, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	key = string(buf[hdrLen : hdrLen+keyLen])
	val = string(buf[hdrLen+keyLen:])
	return key, val, rt, nil
}

// scannedRecord is one record surfaced by recordScanner while walking a
// segment front to back.
type scannedRecord struct {
	key    string
	val    string
	off    int64
	length int64
	typ    recordType
}

// recordScanner walks a segment's records in file order without touching
// the segment's own file offset, so recovery can scan a segment without
// disturbing any other handle's position in it.
type recordScanner struct {
	reader *bufio.Reader
	record *scannedRecord
	end    int64
	err    error
}

func newRecordScanner(r io.ReaderAt) *recordScanner {
	const maxInt64 = 1<<63 - 1
	sr := io.NewSectionReader(r, 0, maxInt64)
	return &recordScanner{reader: bufio.NewReader(sr)}
}

// scan advances to the next record, returning false at EOF or on error.
// A torn tail (a record whose header or payload was never fully flushed
// before a crash) is treated as a clean stop, not an error: that's how a
// process death after a partial write is expected to look on reopen.
func (rs *recordScanner) scan() bool {
	if rs.err != nil {
		return false
	}
	rs.record = nil

	isEOF := func(err error) bool {
		return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
	}

	var hdr [hdrLen]byte
	if _, err := io.ReadFull(rs.reader, hdr[:]); err != nil {
		if !isEOF(err) {
			rs.err = fmt.Errorf("read record header: %w", err)
		}
		return false
	}

	keyLen := int(binary.LittleEndian.Uint32(hdr[csLen : csLen+4]))
	valLen := int(binary.LittleEndian.Uint32(hdr[csLen+4 : csLen+8]))

	body := make([]byte, keyLen+valLen)
	if _, err := io.ReadFull(rs.reader, body); err != nil {
		if !isEOF(err) {
			rs.err = fmt.Errorf("read record body: %w", err)
		}
		return false
	}

	buf := make([]byte, 0, hdrLen+len(body))
	buf = append(buf, hdr[:]...)
	buf = append(buf, body...)

	key, val, rt, err := decodeRecord(buf)
	if err != nil {
		// A checksum failure mid-segment is real corruption, not a torn
		// tail, because a torn write can only ever truncate the record,
		// never leave a complete-but-wrong one in place.
		rs.err = err
		return false
	}

	length := int64(hdrLen + keyLen + valLen)
	rs.record = &scannedRecord{key: key, val: val, off: rs.end, length: length, typ: rt}
	rs.end += length
	return true
}
