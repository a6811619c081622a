package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Defaults. Tool names match the stock Linux packages; note that unrar-free is
// not a workable substitute for unrar on many real-world .rar sets.
const (
	DefaultWorkDir      = "/tmp/unpack_folder"
	DefaultDBPath       = "./unnest_state.duckdb"
	DefaultZipTool      = "unzip"
	DefaultRarTool      = "unrar"
	DefaultSevenZipTool = "7z"
)

// Config holds application settings
type Config struct {
	SourceDir   string
	OutputDir   string
	WorkDir     string
	DBPath      string
	MaxArchives int // 0 means no limit

	ZipTool      string
	RarTool      string
	SevenZipTool string
}

// FileConfig mirrors the optional TOML config file. Zero values mean "not set"
// and are never applied over flag values.
type FileConfig struct {
	WorkDir      string `toml:"tmp_dir"`
	DBPath       string `toml:"db_path"`
	ZipTool      string `toml:"zip_tool"`
	RarTool      string `toml:"rar_tool"`
	SevenZipTool string `toml:"sevenzip_tool"`
}

// LoadFile reads a TOML config file.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

// Overlay fills in fields whose flags were left at their defaults from the
// config file. changed reports whether the named flag was set explicitly on
// the command line; explicit flags always win over the file, and the file
// wins over the built-in default.
func (c *Config) Overlay(fc FileConfig, changed func(flag string) bool) {
	if !changed("tmp_dir") && fc.WorkDir != "" {
		c.WorkDir = fc.WorkDir
	}
	if !changed("zip-tool") && fc.ZipTool != "" {
		c.ZipTool = fc.ZipTool
	}
	if !changed("rar-tool") && fc.RarTool != "" {
		c.RarTool = fc.RarTool
	}
	if !changed("sevenzip-tool") && fc.SevenZipTool != "" {
		c.SevenZipTool = fc.SevenZipTool
	}
}

// Validate checks that the settings required before any processing starts are
// present, so bad invocations abort up front rather than mid-run.
func (c Config) Validate() error {
	if c.SourceDir == "" {
		return fmt.Errorf("source folder is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output folder is required")
	}
	if _, err := os.Stat(c.SourceDir); err != nil {
		return fmt.Errorf("source folder %s: %w", c.SourceDir, err)
	}
	return nil
}
