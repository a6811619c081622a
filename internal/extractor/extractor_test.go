package extractor

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvornik/unnest/internal/config"
)

func TestToolExtractorDispatch(t *testing.T) {
	e := NewToolExtractor(config.Config{
		ZipTool:      "unzip",
		RarTool:      "unrar",
		SevenZipTool: "7z",
	}, nil)

	cases := []struct {
		archive  string
		wantTool string
		wantArgs []string
	}{
		{"/in/a.zip", "unzip", []string{"-o", "/in/a.zip", "-d", "/work"}},
		{"/in/A.ZIP", "unzip", []string{"-o", "/in/A.ZIP", "-d", "/work"}},
		{"/in/b.rar", "unrar", []string{"x", "-o+", "/in/b.rar", "/work"}},
		{"/in/c.7z", "7z", []string{"x", "-y", "-o/work", "/in/c.7z"}},
		{"/in/movie.7z.001", "7z", []string{"x", "-y", "-o/work", "/in/movie.7z.001"}},
		{"/in/odd.tar", "7z", []string{"x", "-y", "-o/work", "/in/odd.tar"}},
	}
	for _, tc := range cases {
		tool, args := e.command(tc.archive, "/work")
		assert.Equal(t, tc.wantTool, tool, "tool for %s", tc.archive)
		assert.Equal(t, tc.wantArgs, args, "args for %s", tc.archive)
	}
}

func TestToolExtractorDefaults(t *testing.T) {
	e := NewToolExtractor(config.Config{}, nil)
	tool, _ := e.command("a.zip", "d")
	assert.Equal(t, config.DefaultZipTool, tool)
	tool, _ = e.command("a.rar", "d")
	assert.Equal(t, config.DefaultRarTool, tool)
	tool, _ = e.command("a.7z", "d")
	assert.Equal(t, config.DefaultSevenZipTool, tool)
}

func TestToolExtractorMissingTool(t *testing.T) {
	e := NewToolExtractor(config.Config{ZipTool: "definitely-not-a-real-tool"}, nil)
	target := filepath.Join(t.TempDir(), "out")
	err := e.Extract(context.Background(), "a.zip", target)
	assert.Error(t, err)
	// The target directory is created even when the tool cannot run.
	_, statErr := os.Stat(target)
	assert.NoError(t, statErr)
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestLibraryExtractorZip(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "payload.zip")
	writeZip(t, archivePath, map[string]string{
		"readme.txt":      "hello",
		"sub/nested.dat":  "data",
		"sub/deeper/x.md": "x",
	})

	target := filepath.Join(dir, "out")
	e := NewLibraryExtractor(nil)
	require.NoError(t, e.Extract(context.Background(), archivePath, target))

	got, err := os.ReadFile(filepath.Join(target, "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	got, err = os.ReadFile(filepath.Join(target, "sub", "nested.dat"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	_, err = os.Stat(filepath.Join(target, "sub", "deeper", "x.md"))
	assert.NoError(t, err)
}

func TestLibraryExtractorNotAnArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(path, []byte("not an archive"), 0o644))

	e := NewLibraryExtractor(nil)
	err := e.Extract(context.Background(), path, filepath.Join(dir, "out"))
	assert.Error(t, err)
}
