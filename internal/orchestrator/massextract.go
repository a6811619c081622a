package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dvornik/unnest/internal/archive"
	"github.com/dvornik/unnest/internal/config"
	"github.com/dvornik/unnest/internal/db"
	"github.com/dvornik/unnest/internal/extractor"
)

// RunMassExtract is the simple sibling of RunUnpack: every .zip and .rar in
// the source folder is extracted in-process straight into its own destination
// folder, with no workspace, no nested resolution, and no segment filtering.
// The folder-exists skip rule and the success cap behave like RunUnpack's.
func RunMassExtract(ctx context.Context, cfg config.Config, dbConn *sql.DB, logger *slog.Logger) (Result, error) {
	var res Result

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create output folder %s: %w", cfg.OutputDir, err)
	}

	entries, err := os.ReadDir(cfg.SourceDir)
	if err != nil {
		return res, fmt.Errorf("read source folder %s: %w", cfg.SourceDir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		n := strings.ToLower(e.Name())
		if strings.HasSuffix(n, ".zip") || strings.HasSuffix(n, ".rar") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	logger.Info("Discovered archives for mass extraction.", slog.Int("count", len(names)))

	ext := extractor.NewLibraryExtractor(logger)
	var runErrs []error

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run cancelled between archives.", "error", err)
			return res, errors.Join(append(runErrs, err)...)
		}

		srcPath := filepath.Join(cfg.SourceDir, name)
		destDir := filepath.Join(cfg.OutputDir, archive.FamilyKey(name))
		l := logger.With(slog.String("archive", name), slog.String("destination", destDir))

		if _, err := os.Stat(destDir); err == nil {
			l.Info("Skipping archive, destination folder already exists.")
			db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventSkip, srcPath, destDir, "destination folder exists", nil)
			res.Skipped++
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.Error("Failed to stat destination folder.", "error", err)
			db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventError, srcPath, destDir, err.Error(), nil)
			runErrs = append(runErrs, fmt.Errorf("stat %s: %w", destDir, err))
			res.Failed++
			continue
		}

		l.Info("Extracting archive.")
		start := time.Now()
		db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventExtractStart, srcPath, destDir, "", nil)

		if err := ext.Extract(ctx, srcPath, destDir); err != nil {
			l.Error("Extraction failed.", "error", err)
			db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventError, srcPath, destDir, err.Error(), nil)
			runErrs = append(runErrs, fmt.Errorf("extract %s: %w", name, err))
			res.Failed++
			continue
		}

		duration := time.Since(start)
		db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventRunEnd, srcPath, destDir, "", &duration)
		l.Info("Archive extracted.", slog.Duration("duration", duration.Round(time.Millisecond)))
		res.Processed++

		if cfg.MaxArchives > 0 && res.Processed >= cfg.MaxArchives {
			logger.Info("Reached archive processing limit.", slog.Int("limit", cfg.MaxArchives))
			break
		}
	}

	logger.Info("Mass extraction complete.",
		slog.Int("processed", res.Processed),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed))
	return res, errors.Join(runErrs...)
}
