package main

import (
	"log"
	"path/filepath"
	"time"

	"voxelforge.dev/internal/persistence/snapshot"
	"voxelforge.dev/internal/sim/level"
	"voxelforge.dev/internal/sim/levels"
)

func restoreLatest(l *level.Level, levelsDir string, logger *log.Logger) {
	path := snapshot.Latest(filepath.Join(levelsDir, l.Name(), "snapshots"))
	if path == "" {
		return
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		logger.Printf("read snapshot (%s): %v", l.Name(), err)
		return
	}
	if err := snapshot.Restore(l, snap); err != nil {
		logger.Printf("restore snapshot (%s): %v", l.Name(), err)
		return
	}
	logger.Printf("level %s restored from %s digest=%s", l.Name(), filepath.Base(path), snap.Header.Digest)
}

func saveSnapshots(mgr *levels.Manager, levelsDir string, logger *log.Logger) {
	now := time.Now()
	for _, name := range mgr.Names() {
		l, err := mgr.Get(name)
		if err != nil {
			continue
		}
		path := snapshot.PathFor(filepath.Join(levelsDir, name, "snapshots"), now)
		if err := snapshot.WriteSnapshot(path, snapshot.Capture(l)); err != nil {
			logger.Printf("snapshot write (%s): %v", name, err)
		}
	}
}
