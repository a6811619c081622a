// Package orchestrator ties the pipeline together: it iterates the top-level
// archives in the source folder and, for each one, runs extraction into the
// shared workspace, nested-archive resolution, and payload relocation into a
// per-archive destination folder. Archives are processed strictly one at a
// time; the workspace is fully reset between them.
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
	"time"

	"github.com/dvornik/unnest/internal/archive"
	"github.com/dvornik/unnest/internal/config"
	"github.com/dvornik/unnest/internal/db"
	"github.com/dvornik/unnest/internal/extractor"
	"github.com/dvornik/unnest/internal/resolver"
)

// Result summarises one orchestrator run.
type Result struct {
	Processed int
	Skipped   int
	Failed    int
}

// listSourceArchives returns the sorted core archives directly under dir.
// Split segments and unrelated files never become top-level entry points.
func listSourceArchives(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source folder %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && archive.IsCore(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// resetDir clears and recreates dir.
func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

// RunUnpack processes every core archive in cfg.SourceDir into its own
// destination folder under cfg.OutputDir, stopping once cfg.MaxArchives
// successes have been produced (0 means no limit). A destination folder that
// already exists marks its archive as processed and is skipped; that folder is
// the only completion marker, so re-runs are idempotent. Per-archive failures
// are logged and collected, and the run continues.
func RunUnpack(ctx context.Context, cfg config.Config, dbConn *sql.DB, logger *slog.Logger, ext extractor.Extractor) (Result, error) {
	var res Result

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create output folder %s: %w", cfg.OutputDir, err)
	}

	names, err := listSourceArchives(cfg.SourceDir)
	if err != nil {
		return res, err
	}
	logger.Info("Discovered top-level archives.", slog.Int("count", len(names)), slog.String("folder", cfg.SourceDir))

	r := resolver.New(ext, logger)
	var runErrs []error

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run cancelled between archives.", "error", err)
			return res, errors.Join(append(runErrs, err)...)
		}
		if cfg.MaxArchives > 0 && res.Processed >= cfg.MaxArchives {
			logger.Info("Reached archive processing limit.", slog.Int("limit", cfg.MaxArchives))
			break
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
			// Anything other than "not there" means we cannot tell whether the
			// archive was already processed; don't guess.
			l.Error("Failed to stat destination folder.", "error", err)
			db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventError, srcPath, destDir, err.Error(), nil)
			runErrs = append(runErrs, fmt.Errorf("stat %s: %w", destDir, err))
			res.Failed++
			continue
		}

		l.Info("Processing archive.")
		start := time.Now()
		db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventExtractStart, srcPath, destDir, "", nil)

		if err := resetDir(cfg.WorkDir); err != nil {
			l.Error("Failed to reset workspace.", "error", err)
			db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventError, srcPath, destDir, err.Error(), nil)
			runErrs = append(runErrs, err)
			res.Failed++
			continue
		}
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			l.Error("Failed to create destination folder.", "error", err)
			db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventError, srcPath, destDir, err.Error(), nil)
			runErrs = append(runErrs, err)
			res.Failed++
			continue
		}

		// Top-level extraction into the workspace. On failure the run keeps
		// going: partial extractions still get resolved and relocated, and the
		// destination folder records whatever was recoverable.
		archiveErrs := []error{}
		if err := ext.Extract(ctx, srcPath, cfg.WorkDir); err != nil {
			l.Error("Top-level extraction failed.", "error", err)
			db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventError, srcPath, destDir, err.Error(), nil)
			archiveErrs = append(archiveErrs, fmt.Errorf("extract %s: %w", name, err))
		} else {
			extractDuration := time.Since(start)
			db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventExtractEnd, srcPath, destDir, "", &extractDuration)
		}

		nested, err := r.Resolve(ctx, cfg.WorkDir)
		if err != nil {
			l.Error("Nested resolution finished with errors.", "error", err)
			archiveErrs = append(archiveErrs, err)
		}
		db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventResolveEnd, srcPath, destDir,
			fmt.Sprintf("nested archives extracted: %d", nested), nil)

		moved, err := r.Relocate(ctx, cfg.WorkDir, destDir)
		if err != nil {
			l.Error("Payload relocation finished with errors.", "error", err)
			archiveErrs = append(archiveErrs, err)
		}
		db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventRelocateEnd, srcPath, destDir,
			fmt.Sprintf("payload files moved: %d", moved), nil)

		// Workspace cleanup is best effort.
		if err := os.RemoveAll(cfg.WorkDir); err != nil {
			l.Warn("Failed to clear workspace after processing.", "error", err)
		}

		duration := time.Since(start)
		if len(archiveErrs) > 0 {
			runErrs = append(runErrs, archiveErrs...)
			res.Failed++
			l.Warn("Archive processed with errors.",
				slog.Int("nested_archives", nested),
				slog.Int("payload_files", moved),
				slog.Duration("duration", duration.Round(time.Millisecond)))
			continue
		}

		res.Processed++
		db.LogFileEvent(ctx, dbConn, name, db.FileTypeArchive, db.EventRunEnd, srcPath, destDir,
			fmt.Sprintf("nested: %d, payload: %d", nested, moved), &duration)
		l.Info("Archive processed.",
			slog.Int("nested_archives", nested),
			slog.Int("payload_files", moved),
			slog.Duration("duration", duration.Round(time.Millisecond)))
	}

	logger.Info("Unpack run complete.",
		slog.Int("processed", res.Processed),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed))
	return res, errors.Join(runErrs...)
}
