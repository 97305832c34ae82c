package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelforge.dev/internal/sim/block"
	"voxelforge.dev/internal/sim/level"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	Level   string `json:"level"`
	Tick    uint64 `json:"tick"`
	Digest  string `json:"digest"`
}

// LevelV1 is a persisted level grid. Pending checks and updates are never
// saved; a snapshot is taken from a stable grid.
type LevelV1 struct {
	Header Header `json:"header"`

	Size   [3]int `json:"size"`
	Mode   string `json:"mode"`
	Seed   int64  `json:"seed"`
	Blocks []byte `json:"blocks"`
}

// Capture copies the grid of l into a snapshot. The digest and tick are
// read together with the grid.
func Capture(l *level.Level) LevelV1 {
	w, h, length := l.Size()
	v := l.View()
	raw := make([]byte, len(v.Blocks))
	for i, t := range v.Blocks {
		raw[i] = byte(t)
	}
	return LevelV1{
		Header: Header{
			Version: Version,
			Level:   l.Name(),
			Tick:    v.Tick,
			Digest:  fmt.Sprintf("%016x", v.Digest),
		},
		Size:   [3]int{w, h, length},
		Mode:   l.Mode().String(),
		Seed:   l.Config().Seed,
		Blocks: raw,
	}
}

// Restore loads snap into l. The level must have the same dimensions.
// Pending work is discarded.
func Restore(l *level.Level, snap LevelV1) error {
	w, h, length := l.Size()
	if snap.Size != [3]int{w, h, length} {
		return fmt.Errorf("snapshot size %v does not match level %s %v", snap.Size, l.Name(), [3]int{w, h, length})
	}
	blocks := make([]block.Type, len(snap.Blocks))
	for i, b := range snap.Blocks {
		blocks[i] = block.Type(b)
	}
	if err := l.Load(blocks); err != nil {
		return err
	}
	if l.Mode() == level.ModeOff {
		return nil
	}
	// Active blocks resume where they stopped.
	for i, t := range blocks {
		if block.NeedsRestart(t) {
			l.RequestCheck(l.PosOf(i), false, level.NoPayload())
		}
	}
	return nil
}

func WriteSnapshot(path string, snap LevelV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	// Header line first so tools can peek without decoding the body.
	hb, _ := json.Marshal(snap.Header)
	_, _ = bw.Write(hb)
	_ = bw.WriteByte('\n')

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		_ = f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadSnapshot(path string) (LevelV1, error) {
	var snap LevelV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	// Skip the header line; the gob body carries it too.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// PathFor names a snapshot taken at t under dir. Tick counters restart with
// the process, so files are ordered by wall clock.
func PathFor(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%d.snap.zst", t.UnixNano()))
}

// Latest returns the newest snapshot in dir, or "" if there is none.
func Latest(dir string) string {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	type cand struct {
		at   uint64
		name string
	}
	var all []cand
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
			continue
		}
		at, err := strconv.ParseUint(strings.TrimSuffix(e.Name(), ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		all = append(all, cand{at, e.Name()})
	}
	if len(all) == 0 {
		return ""
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at > all[j].at })
	return filepath.Join(dir, all[0].name)
}
