package cmd

import (
	"context"
	"fmt"

	"github.com/dvornik/unnest/internal/config"
	"github.com/dvornik/unnest/internal/orchestrator"

	"github.com/spf13/cobra"
)

// Flags for the extract command
var (
	extractFolder   string
	extractOutput   string
	extractNumFiles int
)

// extractCmd is the simple single-level variant of unpack
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract plain zip/rar archives into per-archive folders",
	Long: `Extracts every .zip and .rar file in the source folder into
<output>/<archive-stem>/ using in-process decompression, preserving the
archive's internal directory structure. No nested-archive resolution and no
split-segment handling; use 'unpack' for multi-part collections.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()

		cfg := config.Config{
			SourceDir:   extractFolder,
			OutputDir:   extractOutput,
			DBPath:      dbPath,
			MaxArchives: extractNumFiles,
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		res, err := orchestrator.RunMassExtract(context.Background(), cfg, getDB(), logger)

		fmt.Printf("\nExtraction complete:\n")
		fmt.Printf("Files processed: %d\n", res.Processed)
		fmt.Printf("Files skipped: %d\n", res.Skipped)

		if err != nil {
			return fmt.Errorf("extract finished with errors: %w", err)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractFolder, "folder", "f", "", "Source folder containing zip/rar files (required)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Target folder for extracted files (required)")
	extractCmd.Flags().IntVarP(&extractNumFiles, "num_files", "n", 0, "Number of archives to process, 0 means no limit")

	extractCmd.MarkFlagRequired("folder")
	extractCmd.MarkFlagRequired("output")
}
