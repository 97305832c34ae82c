package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"voxelforge.dev/internal/sim/level"
	"voxelforge.dev/internal/transport/admin"
)

func levelURL(baseURL, levelName, action string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/admin/v1/levels/" + levelName + "/" + action
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	levelName := fs.String("level", "", "level name (empty lists every level)")
	_ = fs.Parse(args)

	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/levels"
	if *levelName != "" {
		u = levelURL(*baseURL, *levelName, "state")
	}
	do(http.MethodGet, u, nil)
}

func modeCmd(args []string) {
	fs := flag.NewFlagSet("mode", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	levelName := fs.String("level", "main", "level name")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: admin mode -level NAME off|basic|advanced|hardcore|instant|doors")
		os.Exit(2)
	}
	do(http.MethodPost, levelURL(*baseURL, *levelName, "mode"), admin.ModeRequest{Mode: fs.Arg(0)})
}

func stopCmd(args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	levelName := fs.String("level", "main", "level name")
	_ = fs.Parse(args)
	do(http.MethodPost, levelURL(*baseURL, *levelName, "stop"), nil)
}

func cellCmd(action string, args []string) {
	fs := flag.NewFlagSet(action, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	levelName := fs.String("level", "main", "level name")
	x := fs.Int("x", 0, "x")
	y := fs.Int("y", 0, "y")
	z := fs.Int("z", 0, "z")
	blk := fs.String("block", "", "block name or code (update and place)")
	override := fs.Bool("override", false, "replace any pending entry")
	payload := fs.String("payload", "", `payload tag: "wait", "revert <code>" or free text`)
	_ = fs.Parse(args)

	if (action == "update" || action == "place") && strings.TrimSpace(*blk) == "" {
		fmt.Fprintln(os.Stderr, "missing -block")
		os.Exit(2)
	}
	do(http.MethodPost, levelURL(*baseURL, *levelName, action), admin.CellRequest{
		X: *x, Y: *y, Z: *z,
		Block:    *blk,
		Override: *override,
		Payload:  *payload,
	})
}

func metaCmd(args []string) {
	fs := flag.NewFlagSet("meta", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	levelName := fs.String("level", "main", "level name")
	x := fs.Int("x", 0, "x")
	y := fs.Int("y", 0, "y")
	z := fs.Int("z", 0, "z")
	msg := fs.String("message", "", "message block text")
	portal := fs.String("portal", "", "portal destination as x,y,z")
	_ = fs.Parse(args)

	req := admin.MetaRequest{X: *x, Y: *y, Z: *z, Message: *msg}
	if strings.TrimSpace(*portal) != "" {
		p, err := parsePos(*portal)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -portal:", err)
			os.Exit(2)
		}
		req.Portal = &p
	}
	do(http.MethodPost, levelURL(*baseURL, *levelName, "meta"), req)
}

func infoCmd(args []string) {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	levelName := fs.String("level", "main", "level name")
	x := fs.Int("x", 0, "x")
	y := fs.Int("y", 0, "y")
	z := fs.Int("z", 0, "z")
	_ = fs.Parse(args)
	do(http.MethodGet, infoURL(*baseURL, *levelName, level.Pos{X: *x, Y: *y, Z: *z}), nil)
}

func infoURL(baseURL, levelName string, p level.Pos) string {
	q := url.Values{}
	q.Set("x", strconv.Itoa(p.X))
	q.Set("y", strconv.Itoa(p.Y))
	q.Set("z", strconv.Itoa(p.Z))
	return levelURL(baseURL, levelName, "info") + "?" + q.Encode()
}

// parsePos reads "x,y,z".
func parsePos(s string) (level.Pos, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return level.Pos{}, fmt.Errorf("want x,y,z, got %q", s)
	}
	var v [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return level.Pos{}, fmt.Errorf("coordinate %q: %w", part, err)
		}
		v[i] = n
	}
	return level.Pos{X: v[0], Y: v[1], Z: v[2]}, nil
}

func do(method, u string, body any) {
	var rd io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, u, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
