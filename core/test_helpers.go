package core

import (
	"os"
	"testing"
)

// setupTempEngine opens a fresh Engine against a new temp directory and
// registers cleanup on tb, mirroring the teacher repo's SetupTempDB helper.
func setupTempEngine(tb testing.TB, opts ...Option) (e *Engine, dir string) {
	tb.Helper()

	dir, err := os.MkdirTemp("", "bitlog_test_*")
	if err != nil {
		tb.Fatalf("MkdirTemp failed: %v", err)
	}

	e, err = Open(dir, opts...)
	if err != nil {
		_ = os.RemoveAll(dir)
		tb.Fatalf("Open(%q) failed: %v", dir, err)
	}

	tb.Cleanup(func() {
		_ = e.Close()
		_ = os.RemoveAll(dir)
	})

	return e, dir
}
