package cmd

import (
	"context"
	"fmt"

	"github.com/dvornik/unnest/internal/config"
	"github.com/dvornik/unnest/internal/extractor"
	"github.com/dvornik/unnest/internal/orchestrator"

	"github.com/spf13/cobra"
)

// Flags for the unpack command
var (
	unpackFolder   string
	unpackOutput   string
	unpackTmpDir   string
	unpackNumFiles int
	zipTool        string
	rarTool        string
	sevenZipTool   string
)

// unpackCmd runs the full multi-part pipeline
var unpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Unpack multi-part archives, resolving nested archives recursively",
	Long: `Processes every core archive (.zip, .rar, .7z, .7z.001) found directly in
the source folder:
1. Extracts the archive into the scratch workspace using the matching
   external tool (unzip, unrar, or 7z for everything else including
   multi-part .7z.NNN families).
2. Recursively extracts any nested core archives found in the workspace
   until none remain.
3. Moves the surviving payload files flat into <output>/<archive-stem>/,
   discarding split-segment files.
An archive whose destination folder already exists is skipped, so re-runs
only process what is new.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()

		cfg := config.Config{
			SourceDir:    unpackFolder,
			OutputDir:    unpackOutput,
			WorkDir:      unpackTmpDir,
			DBPath:       dbPath,
			MaxArchives:  unpackNumFiles,
			ZipTool:      zipTool,
			RarTool:      rarTool,
			SevenZipTool: sevenZipTool,
		}
		// Config-file values fill in anything the flags left at default.
		cfg.Overlay(fileCfg, cmd.Flags().Changed)

		if err := cfg.Validate(); err != nil {
			return err
		}

		ext := extractor.NewToolExtractor(cfg, logger)
		res, err := orchestrator.RunUnpack(context.Background(), cfg, getDB(), logger, ext)

		fmt.Printf("\nUnpack complete:\n")
		fmt.Printf("Archives processed: %d\n", res.Processed)
		fmt.Printf("Archives skipped:   %d\n", res.Skipped)
		fmt.Printf("Archives failed:    %d\n", res.Failed)

		if err != nil {
			return fmt.Errorf("unpack finished with errors: %w", err)
		}
		return nil
	},
}

func init() {
	unpackCmd.Flags().StringVarP(&unpackFolder, "folder", "f", "", "Source folder containing archive files (required)")
	unpackCmd.Flags().StringVarP(&unpackOutput, "output", "o", "", "Destination root folder (required, created if absent)")
	unpackCmd.Flags().StringVarP(&unpackTmpDir, "tmp_dir", "t", config.DefaultWorkDir, "Scratch workspace folder, recreated per archive")
	unpackCmd.Flags().IntVarP(&unpackNumFiles, "num_files", "n", 0, "Number of archives to process, 0 means no limit")
	unpackCmd.Flags().StringVar(&zipTool, "zip-tool", config.DefaultZipTool, "External tool used for .zip archives")
	unpackCmd.Flags().StringVar(&rarTool, "rar-tool", config.DefaultRarTool, "External tool used for .rar archives")
	unpackCmd.Flags().StringVar(&sevenZipTool, "sevenzip-tool", config.DefaultSevenZipTool, "External tool used for .7z and multi-part archives")

	unpackCmd.MarkFlagRequired("folder")
	unpackCmd.MarkFlagRequired("output")
}
