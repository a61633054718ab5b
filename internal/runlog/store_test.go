package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

	first, err := s.Record(ctx, Entry{
		StartedAt: base, FinishedAt: base.Add(2 * time.Second),
		SectorTable: "sectors.txt", Sectors: 4, RankDepth: 5,
		Mode: "rss-max", Strategy: "batched", Rows: 1200, Status: "ok",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := s.Record(ctx, Entry{
		StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute + time.Second),
		SectorTable: "sectors.txt", Sectors: 4, RankDepth: 5,
		Mode: "lte-cinr", Strategy: "file", Status: "failed", Error: "output file exists",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, second, runs[0].ID)
	assert.Equal(t, "failed", runs[0].Status)
	assert.Equal(t, "output file exists", runs[0].Error)
	assert.Equal(t, first, runs[1].ID)
	assert.Equal(t, int64(1200), runs[1].Rows)
	assert.True(t, runs[1].StartedAt.Equal(base))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), Entry{
		StartedAt: time.Now(), FinishedAt: time.Now(), Status: "ok",
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening applies no further migrations and keeps existing rows.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.Runs(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunsLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.Record(ctx, Entry{
			StartedAt:  time.Date(2026, 8, 25, 10, i, 0, 0, time.UTC),
			FinishedAt: time.Date(2026, 8, 25, 10, i, 1, 0, time.UTC),
			Status:     "ok",
		})
		require.NoError(t, err)
	}

	runs, err := s.Runs(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
	assert.Equal(t, 4, runs[0].StartedAt.Minute())
}
