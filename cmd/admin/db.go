package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	levelName := fs.String("level", "", "level filter")
	kind := fs.String("kind", "", "event kind filter (events)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "events"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "physics.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	enc := json.NewEncoder(os.Stdout)
	switch q {
	case "ticks":
		rows, err := db.Query(`SELECT level,tick,mode,checks,updates,applied,failures,pending_checks,duration_ns,COALESCE(overload,'')
			FROM ticks WHERE (?='' OR level=?) ORDER BY tick DESC LIMIT ?`, *levelName, *levelName, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Level         string `json:"level"`
				Tick          int64  `json:"tick"`
				Mode          string `json:"mode"`
				Checks        int    `json:"checks"`
				Updates       int    `json:"updates"`
				Applied       int    `json:"applied"`
				Failures      int    `json:"failures"`
				PendingChecks int    `json:"pending_checks"`
				DurationNS    int64  `json:"duration_ns"`
				Overload      string `json:"overload,omitempty"`
			}
			if err := rows.Scan(&r.Level, &r.Tick, &r.Mode, &r.Checks, &r.Updates, &r.Applied, &r.Failures, &r.PendingChecks, &r.DurationNS, &r.Overload); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			_ = enc.Encode(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "events":
		rows, err := db.Query(`SELECT level,tick,kind,x,y,z,COALESCE(block,''),message,at
			FROM physics_events WHERE (?='' OR level=?) AND (?='' OR kind=?) ORDER BY id DESC LIMIT ?`,
			*levelName, *levelName, *kind, *kind, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				x, y, z sql.NullInt64
				r       struct {
					Level   string `json:"level"`
					Tick    int64  `json:"tick"`
					Kind    string `json:"kind"`
					Pos     []int  `json:"pos,omitempty"`
					Block   string `json:"block,omitempty"`
					Message string `json:"message"`
					At      string `json:"at"`
				}
			)
			if err := rows.Scan(&r.Level, &r.Tick, &r.Kind, &x, &y, &z, &r.Block, &r.Message, &r.At); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			if x.Valid {
				r.Pos = []int{int(x.Int64), int(y.Int64), int(z.Int64)}
			}
			_ = enc.Encode(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q, "(want ticks|events)")
		os.Exit(2)
	}
}
