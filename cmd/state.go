package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvornik/unnest/internal/db"

	"github.com/spf13/cobra"
)

var (
	stateLimit       int
	stateFilterEvent string
	stateCompleted   bool
)

// stateCmd views the DuckDB event log
var stateCmd = &cobra.Command{
	Use:   "state [filetype]",
	Short: "View the event log history for processed archives",
	Long: `Queries the DuckDB event log and displays the history for tracked files.
Specify 'archives', 'nested' or 'payload' as an optional argument to filter
by file type. Use flags to filter by event type and limit the output, or
--completed to list just the archives whose runs finished cleanly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLogger()
		conn := getDB()

		if stateCompleted {
			completed, err := db.GetCompletedArchives(context.Background(), conn, logger)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(completed))
			for name := range completed {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Println(name)
			}
			fmt.Printf("%d archives completed.\n", len(names))
			return nil
		}

		fileTypeFilter := ""
		if len(args) > 0 {
			switch strings.ToLower(args[0]) {
			case "archives", "archive":
				fileTypeFilter = db.FileTypeArchive
			case "nested":
				fileTypeFilter = db.FileTypeNested
			case "payload":
				fileTypeFilter = db.FileTypePayload
			default:
				return fmt.Errorf("invalid filetype filter: %s (use 'archives', 'nested' or 'payload')", args[0])
			}
		}

		err := db.DisplayFileHistory(context.Background(), conn, fileTypeFilter, stateFilterEvent, stateLimit)
		if err != nil {
			logger.Error("Failed to display state history", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	stateCmd.Flags().IntVarP(&stateLimit, "limit", "n", 50, "Limit the number of log records displayed")
	stateCmd.Flags().StringVarP(&stateFilterEvent, "event", "e", "", "Filter records by event type (e.g. extract_end, error, skip)")
	stateCmd.Flags().BoolVar(&stateCompleted, "completed", false, "List archives whose unpack runs completed")
}
