package db

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, InitializeSchema(conn))
	return conn
}

func TestLogAndGetLatestFileEvent(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)

	require.NoError(t, LogFileEvent(ctx, conn, "a.zip", FileTypeArchive, EventExtractStart, "/src/a.zip", "", "", nil))
	d := 120 * time.Millisecond
	require.NoError(t, LogFileEvent(ctx, conn, "a.zip", FileTypeArchive, EventRunEnd, "/src/a.zip", "/out/a", "done", &d))

	event, ts, msg, found, err := GetLatestFileEvent(ctx, conn, "a.zip", FileTypeArchive)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, EventRunEnd, event)
	assert.Equal(t, "done", msg)
	assert.WithinDuration(t, time.Now().UTC(), ts, time.Minute)

	_, _, _, found, err = GetLatestFileEvent(ctx, conn, "missing.zip", FileTypeArchive)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLogFileEventNilDB(t *testing.T) {
	// Callers without a state DB must be able to log unconditionally.
	assert.NoError(t, LogFileEvent(context.Background(), nil, "a.zip", FileTypeArchive, EventSkip, "", "", "", nil))
}

func TestGetCompletedArchives(t *testing.T) {
	ctx := context.Background()
	conn := openTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, LogFileEvent(ctx, conn, "a.zip", FileTypeArchive, EventRunEnd, "", "", "", nil))
	require.NoError(t, LogFileEvent(ctx, conn, "b.rar", FileTypeArchive, EventExtractStart, "", "", "", nil))
	require.NoError(t, LogFileEvent(ctx, conn, "c.zip", FileTypeNested, EventRunEnd, "", "", "", nil))

	completed, err := GetCompletedArchives(ctx, conn, logger)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a.zip": true}, completed)
}
