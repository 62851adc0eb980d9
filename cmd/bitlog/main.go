// Command bitlog is a small CLI front-end over the bitlog storage engine.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/oskaro/bitlog/core"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  bitlog set <key> <value>\n")
	fmt.Fprintf(os.Stderr, "  bitlog get <key>\n")
	fmt.Fprintf(os.Stderr, "  bitlog rm <key>\n")
	fmt.Fprintf(os.Stderr, "  bitlog compact\n")
	fmt.Fprintf(os.Stderr, "  bitlog stats\n")
	os.Exit(1)
}

func dataPath() string {
	if p := os.Getenv("BITLOG_PATH"); p != "" {
		return p
	}
	return "./bitlog-data"
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	db, err := core.Open(dataPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	switch os.Args[1] {
	case "set":
		if len(os.Args) != 4 {
			usage()
		}
		if err := db.Set(os.Args[2], os.Args[3]); err != nil {
			fmt.Fprintf(os.Stderr, "failed to set the key: %v\n", err)
			os.Exit(1)
		}

	case "get":
		if len(os.Args) != 3 {
			usage()
		}
		val, err := db.Get(os.Args[2])
		if errors.Is(err, core.ErrKeyNotFound) {
			fmt.Println("Key not found")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get the key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(val)

	case "rm":
		if len(os.Args) != 3 {
			usage()
		}
		err := db.Remove(os.Args[2])
		if errors.Is(err, core.ErrKeyNotFound) {
			fmt.Println("Key not found")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to remove the key: %v\n", err)
			os.Exit(1)
		}

	case "compact":
		if err := db.Compact(); err != nil {
			fmt.Fprintf(os.Stderr, "compaction failed: %v\n", err)
			os.Exit(1)
		}

	case "stats":
		s := db.Stats()
		fmt.Printf("segments=%d keys=%d uncompacted=%d\n", s.SegmentCount, s.KeyCount, s.Uncompacted)

	default:
		fmt.Fprintf(os.Stderr, "unknown action %q\n", os.Args[1])
		usage()
	}
}
