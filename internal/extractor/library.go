package extractor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
)

// LibraryExtractor unpacks archives in-process. It preserves the archive's
// internal directory structure, matching what the external tools produce when
// extracting to a fresh folder.
type LibraryExtractor struct {
	logger *slog.Logger
}

func NewLibraryExtractor(logger *slog.Logger) *LibraryExtractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LibraryExtractor{logger: logger}
}

func (e *LibraryExtractor) Extract(ctx context.Context, archivePath, targetDir string) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create target dir %s: %w", targetDir, err)
	}

	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer file.Close()

	format, input, err := archives.Identify(ctx, archivePath, file)
	if err != nil {
		return fmt.Errorf("identify archive %s: %w", archivePath, err)
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("%s: format does not support extraction", filepath.Base(archivePath))
	}

	handler := func(ctx context.Context, f archives.FileInfo) error {
		return e.writeEntry(targetDir, f)
	}
	if err := ex.Extract(ctx, input, handler); err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(archivePath), err)
	}
	return nil
}

func (e *LibraryExtractor) writeEntry(targetDir string, f archives.FileInfo) error {
	targetPath := filepath.Clean(filepath.Join(targetDir, f.NameInArchive))

	// Refuse entries that would escape the target directory.
	root := filepath.Clean(targetDir) + string(os.PathSeparator)
	if !strings.HasPrefix(targetPath+string(os.PathSeparator), root) {
		return fmt.Errorf("path traversal detected, skipping: %s", f.NameInArchive)
	}

	if f.IsDir() {
		return os.MkdirAll(targetPath, 0o755)
	}
	if f.Mode()&os.ModeSymlink != 0 {
		e.logger.Debug("Skipping symlink entry.", slog.String("entry", f.NameInArchive))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("create parent dirs for %s: %w", f.NameInArchive, err)
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.NameInArchive, err)
	}
	defer in.Close()

	out, err := os.Create(targetPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", targetPath, err)
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(targetPath)
		return fmt.Errorf("write %s: %w", targetPath, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", targetPath, closeErr)
	}
	return nil
}
