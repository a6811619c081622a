// Package extractor provides the decompression capability consumed by the
// resolver and orchestrator. The multi-part pipeline shells out to external
// tools (unzip, unrar, 7z), which carry their own multi-part awareness; the
// simpler mass-extract path uses an in-process library instead.
package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dvornik/unnest/internal/config"
)

// Extractor unpacks one archive into a target directory. Implementations must
// create the target directory if absent and must never delete the source
// archive; disposing of consumed archives is the caller's job.
type Extractor interface {
	Extract(ctx context.Context, archivePath, targetDir string) error
}

// ToolExtractor invokes external decompression commands, dispatching on the
// archive's extension. Anything that is not .zip or .rar goes to the 7z tool,
// which also handles multi-part .7z.001 families by consuming the sibling
// segments itself.
type ToolExtractor struct {
	zipTool      string
	rarTool      string
	sevenZipTool string
	logger       *slog.Logger
}

// NewToolExtractor builds a ToolExtractor from the configured tool names,
// falling back to the defaults for any name left empty.
func NewToolExtractor(cfg config.Config, logger *slog.Logger) *ToolExtractor {
	e := &ToolExtractor{
		zipTool:      cfg.ZipTool,
		rarTool:      cfg.RarTool,
		sevenZipTool: cfg.SevenZipTool,
		logger:       logger,
	}
	if e.zipTool == "" {
		e.zipTool = config.DefaultZipTool
	}
	if e.rarTool == "" {
		e.rarTool = config.DefaultRarTool
	}
	if e.sevenZipTool == "" {
		e.sevenZipTool = config.DefaultSevenZipTool
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return e
}

// command returns the tool and argument list used to extract archivePath into
// targetDir. Split out from Extract so dispatch is testable without running
// external processes.
func (e *ToolExtractor) command(archivePath, targetDir string) (string, []string) {
	switch name := strings.ToLower(filepath.Base(archivePath)); {
	case strings.HasSuffix(name, ".zip"):
		return e.zipTool, []string{"-o", archivePath, "-d", targetDir}
	case strings.HasSuffix(name, ".rar"):
		return e.rarTool, []string{"x", "-o+", archivePath, targetDir}
	default:
		return e.sevenZipTool, []string{"x", "-y", "-o" + targetDir, archivePath}
	}
}

// Extract runs the appropriate external tool, blocking until it exits. A
// non-zero exit is surfaced as an error with the tool's stderr attached.
func (e *ToolExtractor) Extract(ctx context.Context, archivePath, targetDir string) error {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create target dir %s: %w", targetDir, err)
	}

	tool, args := e.command(archivePath, targetDir)
	e.logger.Debug("Running extraction tool.",
		slog.String("tool", tool),
		slog.String("archive", filepath.Base(archivePath)),
		slog.String("target", targetDir))

	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return fmt.Errorf("%s %s: %w: %s", tool, filepath.Base(archivePath), err, detail)
		}
		return fmt.Errorf("%s %s: %w", tool, filepath.Base(archivePath), err)
	}
	return nil
}
