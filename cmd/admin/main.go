package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "voxelforge.dev/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "log":
			logCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "mode":
			modeCmd(os.Args[2:])
			return
		case "stop":
			stopCmd(os.Args[2:])
			return
		case "check", "update", "place", "delete", "walk":
			cellCmd(os.Args[1], os.Args[2:])
			return
		case "meta":
			metaCmd(os.Args[2:])
			return
		case "info":
			infoCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	entries, err := os.ReadDir(filepath.Join(*dataDir, "levels"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if e.IsDir() {
			fmt.Println(e.Name())
		}
	}
}

// logCmd prints the decompressed tick or event log of one level as JSONL.
func logCmd(args []string) {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	levelName := fs.String("level", "", "level name (required)")
	kind := fs.String("kind", "events", "ticks|events")
	grep := fs.String("grep", "", "only print lines containing this text")
	_ = fs.Parse(args)

	if strings.TrimSpace(*levelName) == "" {
		fmt.Fprintln(os.Stderr, "missing -level")
		os.Exit(2)
	}
	if *kind != "ticks" && *kind != "events" {
		fmt.Fprintln(os.Stderr, "bad -kind:", *kind)
		os.Exit(2)
	}
	files, err := persistlog.Files(filepath.Join(*dataDir, "levels", *levelName), *kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
	for _, f := range files {
		err := persistlog.ReadLines(f, func(line []byte) error {
			if *grep != "" && !strings.Contains(string(line), *grep) {
				return nil
			}
			_, err := fmt.Println(string(line))
			return err
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", f, err)
			os.Exit(1)
		}
	}
}
