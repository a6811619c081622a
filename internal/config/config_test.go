package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unnest.toml")
	content := `
tmp_dir = "/scratch/unpack"
db_path = ":memory:"
rar_tool = "unrar-nonfree"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	fc, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/scratch/unpack", fc.WorkDir)
	assert.Equal(t, ":memory:", fc.DBPath)
	assert.Equal(t, "unrar-nonfree", fc.RarTool)
	// Unset keys stay zero so they never clobber flag values.
	assert.Empty(t, fc.ZipTool)
	assert.Empty(t, fc.SevenZipTool)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFileBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("tmp_dir = [broken"), 0o644))
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestOverlayPrecedence(t *testing.T) {
	fc := FileConfig{
		WorkDir:      "/scratch/unpack",
		ZipTool:      "file-unzip",
		SevenZipTool: "file-7zz",
	}

	// No flags set explicitly: file values override defaults, fields absent
	// from the file keep their defaults.
	cfg := Config{
		WorkDir:      DefaultWorkDir,
		ZipTool:      DefaultZipTool,
		RarTool:      DefaultRarTool,
		SevenZipTool: DefaultSevenZipTool,
	}
	cfg.Overlay(fc, func(string) bool { return false })
	assert.Equal(t, "/scratch/unpack", cfg.WorkDir)
	assert.Equal(t, "file-unzip", cfg.ZipTool)
	assert.Equal(t, "file-7zz", cfg.SevenZipTool)
	assert.Equal(t, DefaultRarTool, cfg.RarTool)

	// Explicit flags beat the file.
	cfg = Config{
		WorkDir:      "/flag/work",
		ZipTool:      "flag-unzip",
		RarTool:      DefaultRarTool,
		SevenZipTool: DefaultSevenZipTool,
	}
	changed := map[string]bool{"tmp_dir": true, "zip-tool": true}
	cfg.Overlay(fc, func(name string) bool { return changed[name] })
	assert.Equal(t, "/flag/work", cfg.WorkDir)
	assert.Equal(t, "flag-unzip", cfg.ZipTool)
	assert.Equal(t, "file-7zz", cfg.SevenZipTool)
	assert.Equal(t, DefaultRarTool, cfg.RarTool)
}

func TestValidate(t *testing.T) {
	src := t.TempDir()

	ok := Config{SourceDir: src, OutputDir: t.TempDir()}
	assert.NoError(t, ok.Validate())

	assert.Error(t, Config{OutputDir: "out"}.Validate())
	assert.Error(t, Config{SourceDir: src}.Validate())
	assert.Error(t, Config{SourceDir: filepath.Join(src, "missing"), OutputDir: "out"}.Validate())
}
