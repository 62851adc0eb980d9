package core

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	n, err := encodeRecord(&buf, recordSet, "hello", "world")
	if err != nil {
		t.Fatalf("encodeRecord failed: %v", err)
	}
	if int(n) != buf.Len() {
		t.Fatalf("encodeRecord returned length %d, buffer has %d bytes", n, buf.Len())
	}

	key, val, rt, err := decodeRecord(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeRecord failed: %v", err)
	}
	if key != "hello" || val != "world" || rt != recordSet {
		t.Fatalf("got (%q, %q, %v), want (hello, world, recordSet)", key, val, rt)
	}
}

func TestDecodeDetectsChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	if _, err := encodeRecord(&buf, recordSet, "k", "v"); err != nil {
		t.Fatal(err)
	}

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF // flip every bit of the value's last byte

	if _, _, _, err := decodeRecord(corrupted); err == nil {
		t.Fatal("expected a checksum mismatch error, got nil")
	}
}

func TestScannerStopsCleanlyOnTornTail(t *testing.T) {
	var buf bytes.Buffer
	if _, err := encodeRecord(&buf, recordSet, "k1", "v1"); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()

	// Simulate a crash mid-write of a second record: only part of its
	// header made it to disk.
	truncated := append(full, []byte{1, 2, 3}...)

	rs := newRecordScanner(bytes.NewReader(truncated))
	var got []scannedRecord
	for rs.scan() {
		got = append(got, *rs.record)
	}
	if rs.err != nil {
		t.Fatalf("expected a torn tail to be treated as clean EOF, got error: %v", rs.err)
	}
	if len(got) != 1 || got[0].key != "k1" || got[0].val != "v1" {
		t.Fatalf("unexpected scan result: %+v", got)
	}
}

func TestScannerSurfacesMidSegmentCorruption(t *testing.T) {
	var buf bytes.Buffer
	if _, err := encodeRecord(&buf, recordSet, "k1", "v1"); err != nil {
		t.Fatal(err)
	}
	if _, err := encodeRecord(&buf, recordSet, "k2", "v2"); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	// Flip a byte inside the complete second record's payload: this is a
	// fully-written-but-wrong record, not a torn tail, so it must surface
	// as an error rather than being silently dropped.
	data[len(data)-1] ^= 0xFF

	rs := newRecordScanner(bytes.NewReader(data))
	var got []scannedRecord
	for rs.scan() {
		got = append(got, *rs.record)
	}

	if rs.err == nil {
		t.Fatal("expected mid-segment corruption to surface an error")
	}
	if len(got) != 1 || got[0].key != "k1" {
		t.Fatalf("expected exactly the first clean record to be returned, got %+v", got)
	}
}
