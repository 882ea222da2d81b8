package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/meltforce/mapty/internal/config"
	"github.com/meltforce/mapty/internal/importer"
	"github.com/meltforce/mapty/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	importPath := flag.String("import", "", "JSON export file or directory of exports to merge into storage")
	exportPath := flag.String("export", "", "write the stored workouts to this file")
	dryRun := flag.Bool("dry-run", false, "report counts without writing")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if (*importPath == "") == (*exportPath == "") {
		fmt.Fprintf(os.Stderr, "Usage: mapty-import -config config.yaml (-import <file|dir> | -export <file>) [-dry-run]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("reading .env failed", "error", err)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Storage.Driver == config.DriverMemory {
		log.Error("memory storage does not outlive this process; pick a persistent driver")
		os.Exit(1)
	}

	ctx := context.Background()

	if *dryRun {
		log.Info("DRY RUN mode, nothing will be written")
	}

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	imp := importer.New(store, cfg.Storage.Key, log, *dryRun)

	if *exportPath != "" {
		n, err := imp.Export(ctx, *exportPath)
		if err != nil {
			log.Error("export failed", "error", err)
			os.Exit(1)
		}
		log.Info("export complete", "path", *exportPath, "workouts", n)
		return
	}

	stats, err := imp.Import(ctx, *importPath)
	if err != nil {
		log.Error("import failed", "error", err)
		printStats(log, stats)
		os.Exit(1)
	}

	printStats(log, stats)
	log.Info("import complete")
}

func printStats(log *slog.Logger, stats *importer.Stats) {
	log.Info("import stats",
		"files_processed", stats.FilesProcessed,
		"files_errored", stats.FilesErrored,
		"workouts_read", stats.WorkoutsRead,
		"workouts_inserted", stats.WorkoutsInserted,
		"workouts_duplicated", stats.WorkoutsDuplicated,
		"running", stats.Running,
		"cycling", stats.Cycling,
	)
}
