package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListSegmentIDsIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"0.log", "2.log", "10.log", "not-a-segment", "MANIFEST", "5.logx"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := listSegmentIDs(dir)
	if err != nil {
		t.Fatalf("listSegmentIDs failed: %v", err)
	}

	want := []int{0, 2, 10}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}

func TestSegmentWriteThenReadAt(t *testing.T) {
	dir := t.TempDir()

	seg, err := createSegment(dir, 0)
	if err != nil {
		t.Fatalf("createSegment failed: %v", err)
	}
	defer seg.close()

	off, err := seg.write(recordSet, "k", "v")
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if off != 0 {
		t.Fatalf("first write offset = %d, want 0", off)
	}

	key, val, rt, err := readRecordAt(seg.file, off, seg.size-off)
	if err != nil {
		t.Fatalf("readRecordAt failed: %v", err)
	}
	if key != "k" || val != "v" || rt != recordSet {
		t.Fatalf("got (%q, %q, %v)", key, val, rt)
	}
}
