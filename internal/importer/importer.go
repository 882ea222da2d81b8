package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/renameio/v2"
	"github.com/meltforce/mapty/internal/models"
	"github.com/meltforce/mapty/internal/storage"
)

// Stats tracks import progress.
type Stats struct {
	FilesProcessed int
	FilesErrored   int

	WorkoutsRead       int
	WorkoutsInserted   int
	WorkoutsDuplicated int

	Running int
	Cycling int
}

// Importer merges exported workout files into a storage backend, and writes
// the stored collection back out.
type Importer struct {
	store  storage.Store
	key    string
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// New creates a new Importer for the blob stored under key.
func New(store storage.Store, key string, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{store: store, key: key, log: log, dryRun: dryRun}
}

// Import reads each path (a JSON export, or a directory of them) and appends
// workouts whose id is not stored yet. Existing workouts keep their position
// and values. The merged collection is written once at the end.
func (imp *Importer) Import(ctx context.Context, paths ...string) (*Stats, error) {
	existing, err := imp.load(ctx)
	if err != nil {
		return &imp.stats, err
	}
	seen := make(map[string]struct{}, len(existing))
	for _, w := range existing {
		seen[w.ID] = struct{}{}
	}

	files, err := expand(paths)
	if err != nil {
		return &imp.stats, err
	}

	merged := existing
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			imp.log.Warn("read failed", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}
		workouts, err := models.DecodeWorkouts(data)
		if err != nil {
			imp.log.Warn("parse failed", "file", f, "error", err)
			imp.stats.FilesErrored++
			continue
		}
		imp.stats.FilesProcessed++

		for _, w := range workouts {
			imp.stats.WorkoutsRead++
			if _, ok := seen[w.ID]; ok {
				imp.stats.WorkoutsDuplicated++
				continue
			}
			seen[w.ID] = struct{}{}
			merged = append(merged, w)
			imp.stats.WorkoutsInserted++
			switch w.Kind() {
			case models.KindRunning:
				imp.stats.Running++
			case models.KindCycling:
				imp.stats.Cycling++
			}
		}
	}

	if imp.dryRun || imp.stats.WorkoutsInserted == 0 {
		return &imp.stats, nil
	}

	blob, err := models.EncodeWorkouts(merged)
	if err != nil {
		return &imp.stats, err
	}
	if err := imp.store.Set(ctx, imp.key, blob); err != nil {
		return &imp.stats, fmt.Errorf("writing workouts: %w", err)
	}
	imp.log.Info("workouts stored", "key", imp.key, "total", len(merged))
	return &imp.stats, nil
}

// Export writes the stored collection to path as a JSON array. A missing blob
// exports as an empty array.
func (imp *Importer) Export(ctx context.Context, path string) (int, error) {
	workouts, err := imp.load(ctx)
	if err != nil {
		return 0, err
	}
	blob, err := models.EncodeWorkouts(workouts)
	if err != nil {
		return 0, err
	}
	if imp.dryRun {
		return len(workouts), nil
	}
	if err := renameio.WriteFile(path, blob, 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	return len(workouts), nil
}

func (imp *Importer) load(ctx context.Context) ([]*models.Workout, error) {
	blob, ok, err := imp.store.Get(ctx, imp.key)
	if err != nil {
		return nil, fmt.Errorf("reading stored workouts: %w", err)
	}
	if !ok {
		return []*models.Workout{}, nil
	}
	workouts, err := models.DecodeWorkouts(blob)
	if err != nil {
		return nil, fmt.Errorf("stored workouts under %q: %w", imp.key, err)
	}
	return workouts, nil
}

// expand replaces directories with the *.json files they contain, sorted by
// name so imports are repeatable.
func expand(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		files, err := filepath.Glob(filepath.Join(p, "*.json"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		out = append(out, files...)
	}
	return out, nil
}
