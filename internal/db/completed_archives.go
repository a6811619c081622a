package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// GetCompletedArchives queries the event log for top-level archives that have
// finished a full unpack run (EventRunEnd on FileTypeArchive). This is
// reporting only: the orchestrator's skip decision is driven by destination
// folder existence, never by this log.
func GetCompletedArchives(ctx context.Context, dbConnPool *sql.DB, logger *slog.Logger) (map[string]bool, error) {
	logger.Debug("Querying database for completed archives...")
	completed := make(map[string]bool)

	query := `
		SELECT DISTINCT filename
		FROM unnest_event_log
		WHERE filetype = ? AND event = ?;
	`
	rows, err := dbConnPool.QueryContext(ctx, query, FileTypeArchive, EventRunEnd)
	if err != nil {
		logger.Error("Failed to query for completed archives", "error", err)
		return nil, fmt.Errorf("query completed archives: %w", err)
	}
	defer rows.Close()

	count := 0
	var scanErrors error
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			logger.Error("Failed to scan completed archive name", "error", err)
			scanErrors = errors.Join(scanErrors, fmt.Errorf("scan completed archive name: %w", err))
			continue
		}
		if name != "" {
			completed[name] = true
			count++
		}
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error iterating over completed archive query results", "error", err)
		scanErrors = errors.Join(scanErrors, fmt.Errorf("iterate completed archives: %w", err))
		return completed, scanErrors
	}

	logger.Info("Found completed archives in event log.", slog.Int("count", count))
	return completed, scanErrors
}
