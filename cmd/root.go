package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvornik/unnest/internal/config"
	"github.com/dvornik/unnest/internal/db"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	"github.com/spf13/cobra"
)

var (
	// Config flags - bound in init()
	cfgFile   string
	dbPath    string
	logFormat string
	logLevel  string
	logOutput string

	// Global instances populated in PersistentPreRunE
	rootLogger *slog.Logger
	dbConn     *sql.DB
	fileCfg    config.FileConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "unnest",
	Short: "Unpack multi-part zip/rar/7z archives into clean per-archive folders.",
	Long: `Unnest consolidates a folder of downloaded multi-part archives into one
destination folder per archive. Nested archives found inside an extracted
archive are unpacked recursively, and leftover split-segment files (.r01,
.z01, .7z.002, ...) are discarded instead of being copied into the output.

The primary command is 'unpack', which runs the full multi-part pipeline
using external decompression tools. 'extract' is the simpler in-process
variant for plain zip/rar collections, and 'state' shows the run history
kept in the DuckDB event log.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// --- 1. Initialize Logger ---
		var level slog.Level
		switch strings.ToLower(logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		var logWriter io.Writer = os.Stderr
		if logOutput != "" && strings.ToLower(logOutput) != "stderr" {
			if strings.ToLower(logOutput) == "stdout" {
				logWriter = os.Stdout
			} else {
				// Append to a log file. The handle is not explicitly closed;
				// for a CLI that exits after one run the OS cleanup suffices.
				f, err := os.OpenFile(logOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err != nil {
					return fmt.Errorf("failed to open log file %s: %w", logOutput, err)
				}
				logWriter = f
			}
		}

		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		if logFormat == "json" {
			handler = slog.NewJSONHandler(logWriter, opts)
		} else {
			handler = slog.NewTextHandler(logWriter, opts)
		}
		rootLogger = slog.New(handler)
		slog.SetDefault(rootLogger)
		rootLogger.Debug("Logger initialized", "level", level.String(), "format", logFormat, "output", logOutput)

		// --- 2. Load optional config file ---
		if cfgFile != "" {
			var err error
			fileCfg, err = config.LoadFile(cfgFile)
			if err != nil {
				return err
			}
			rootLogger.Debug("Config file loaded", "path", cfgFile)
		}

		// Flags beat the config file; the file beats the built-in default.
		if !cmd.Flags().Changed("db_path") && fileCfg.DBPath != "" {
			dbPath = fileCfg.DBPath
		}

		// --- 3. Initialize DuckDB connection & schema ---
		rootLogger.Debug("Initializing DuckDB connection", "path", dbPath)
		if dbPath != ":memory:" {
			dbDir := filepath.Dir(dbPath)
			if err := os.MkdirAll(dbDir, 0o755); err != nil {
				return fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
		var err error
		dbConn, err = sql.Open("duckdb", dbPath)
		if err != nil {
			return fmt.Errorf("failed to open duckdb database (%s): %w", dbPath, err)
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err = dbConn.PingContext(pingCtx); err != nil {
			dbConn.Close()
			return fmt.Errorf("failed to ping duckdb database (%s): %w", dbPath, err)
		}

		if err := db.InitializeSchema(dbConn); err != nil {
			dbConn.Close()
			return fmt.Errorf("failed to initialize database schema: %w", err)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if dbConn != nil {
			if err := dbConn.Close(); err != nil {
				rootLogger.Error("Failed to close DuckDB connection cleanly", "error", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.AddCommand(unpackCmd)  // multi-part pipeline
	rootCmd.AddCommand(extractCmd) // simple in-process extraction
	rootCmd.AddCommand(stateCmd)   // event log history

	err := rootCmd.Execute()
	if err != nil {
		if rootLogger != nil {
			rootLogger.Error("Command execution failed", "error", err)
		} else {
			fmt.Fprintf(os.Stderr, "Command execution failed: %v\n", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional TOML config file with tool and path overrides")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db_path", "d", config.DefaultDBPath, "Path to DuckDB state database file (:memory: for in-memory)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text or json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "stderr", "Log output destination (stderr, stdout, or file path)")

	rootCmd.Version = "0.3.1"
}

// Helper to get logger (could use context propagation instead)
func getLogger() *slog.Logger {
	if rootLogger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return rootLogger
}

// Helper to get DB connection
func getDB() *sql.DB {
	return dbConn
}
