// Package resolver implements the nested-archive resolution loop and the
// payload relocation that follows it. Resolution works entirely inside one
// workspace directory: nested archives are extracted in place next to the
// archive that contained them, so archives found at any nesting depth are
// picked up by the next scan. Only after the workspace holds no extractable
// archives does relocation flatten the surviving payload into the destination.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dvornik/unnest/internal/archive"
	"github.com/dvornik/unnest/internal/extractor"
)

// Resolver drives the scan/extract/delete cycle over a workspace using an
// injected extraction capability.
type Resolver struct {
	ext    extractor.Extractor
	logger *slog.Logger
}

func New(ext extractor.Extractor, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{ext: ext, logger: logger}
}

// scanCore walks workDir and returns a sorted worklist of core archive paths
// that have not been attempted yet.
func scanCore(workDir string, attempted map[string]bool) ([]string, error) {
	var candidates []string
	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if archive.IsCore(d.Name()) && !attempted[path] {
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", workDir, err)
	}
	sort.Strings(candidates)
	return candidates, nil
}

// Resolve repeatedly scans workDir for core archives and extracts each one in
// place until no extractable archives remain. Each candidate is attempted at
// most once, so a candidate that fails to extract or cannot be deleted never
// causes the loop to spin; the loop also stops after any pass that extracts
// nothing new. Returns the number of archives successfully extracted and the
// joined per-candidate errors.
func (r *Resolver) Resolve(ctx context.Context, workDir string) (int, error) {
	attempted := make(map[string]bool)
	extracted := 0
	var errs []error

	for {
		if err := ctx.Err(); err != nil {
			return extracted, errors.Join(append(errs, err)...)
		}

		candidates, err := scanCore(workDir, attempted)
		if err != nil {
			return extracted, errors.Join(append(errs, err)...)
		}
		if len(candidates) == 0 {
			break
		}

		extractedThisPass := 0
		for _, cand := range candidates {
			if err := ctx.Err(); err != nil {
				return extracted, errors.Join(append(errs, err)...)
			}
			attempted[cand] = true

			l := r.logger.With(slog.String("archive", cand))
			start := time.Now()
			if err := r.ext.Extract(ctx, cand, filepath.Dir(cand)); err != nil {
				// Leave the archive on disk; relocation skips core files, so
				// a broken archive never leaks into the destination.
				l.Error("Nested extraction failed.", "error", err)
				errs = append(errs, fmt.Errorf("extract %s: %w", cand, err))
				continue
			}
			l.Debug("Nested archive extracted.", slog.Duration("duration", time.Since(start).Round(time.Millisecond)))
			extractedThisPass++
			extracted++

			if err := os.Remove(cand); err != nil {
				l.Warn("Could not delete consumed archive.", "error", err)
			}
		}

		if extractedThisPass == 0 {
			break
		}
	}

	return extracted, errors.Join(errs...)
}

// Relocate walks workDir and moves every remaining payload file flat into
// destDir. Split segments are dropped silently; residual core archives are
// skipped with a log line (none should survive Resolve, but extraction tools
// can emit files that classify as core). A failure moving one file does not
// block the rest.
func (r *Resolver) Relocate(ctx context.Context, workDir, destDir string) (int, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("create destination %s: %w", destDir, err)
	}

	moved := 0
	var errs []error
	walkErr := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}

		name := d.Name()
		if archive.IsSplitSegment(name) {
			return nil
		}
		if archive.IsCore(name) {
			r.logger.Info("Skipping residual core archive during relocation.", slog.String("file", path))
			return nil
		}

		target, err := uniqueTarget(filepath.Join(destDir, name))
		if err != nil {
			r.logger.Error("Failed to resolve target for payload file.", slog.String("file", path), "error", err)
			errs = append(errs, fmt.Errorf("target for %s: %w", path, err))
			return nil
		}
		if filepath.Base(target) != name {
			r.logger.Warn("Payload name collision, renaming.",
				slog.String("file", path), slog.String("target", target))
		}
		if err := moveFile(path, target); err != nil {
			r.logger.Error("Failed to move payload file.", slog.String("file", path), "error", err)
			errs = append(errs, fmt.Errorf("move %s: %w", path, err))
			return nil
		}
		moved++
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	return moved, errors.Join(errs...)
}

// uniqueTarget returns target if nothing exists there yet, otherwise the
// first free "stem_N.ext" variant. Flattening collapses subdirectories, so
// two payload files may share a base name; overwriting would silently destroy
// the earlier one.
func uniqueTarget(target string) (string, error) {
	_, err := os.Lstat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return target, nil
	}
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(target)
	stem := strings.TrimSuffix(target, ext)
	for i := 1; ; i++ {
		cand := fmt.Sprintf("%s_%d%s", stem, i, ext)
		_, err := os.Lstat(cand)
		if errors.Is(err, fs.ErrNotExist) {
			return cand, nil
		}
		if err != nil {
			return "", err
		}
	}
}

// moveFile renames src to dst, falling back to copy-and-remove when the two
// paths live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// copyFile copies src to dst preserving the source's permission bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
