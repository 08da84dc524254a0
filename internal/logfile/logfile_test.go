package logfile_test

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/powerlog/internal/logfile"
)

func record(ts time.Time) logfile.Record {
	return logfile.Record{
		Timestamp:      ts,
		CPULoad:        12.345,
		Temperature:    48.2,
		HasTemperature: true,
		RAMUsage:       55.5,
		DiskUsage:      40.0,
		SentMB:         123.456,
		RecvMB:         789.012,
		Watts:          5.43,
		IntervalWh:     0.09052,
	}
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAppendCreatesHeaderOnce(t *testing.T) {
	w := logfile.NewWriter(t.TempDir())
	day := time.Date(2026, 8, 25, 10, 0, 0, 0, time.Local)

	require.NoError(t, w.Append(record(day)))
	require.NoError(t, w.Append(record(day.Add(time.Minute))))
	require.NoError(t, w.Append(record(day.Add(2*time.Minute))))

	rows := readRows(t, w.LivePath())
	require.Len(t, rows, 4)
	assert.Equal(t, logfile.Header, rows[0])

	headerCount := 0
	for _, row := range rows {
		if row[0] == "Timestamp" {
			headerCount++
		}
	}
	assert.Equal(t, 1, headerCount)
}

func TestRowFormatting(t *testing.T) {
	w := logfile.NewWriter(t.TempDir())
	ts := time.Date(2026, 8, 25, 9, 30, 15, 0, time.Local)

	require.NoError(t, w.Append(record(ts)))

	rows := readRows(t, w.LivePath())
	require.Len(t, rows, 2)
	row := rows[1]
	assert.Equal(t, "2026-08-25 09:30:15", row[0])
	assert.Equal(t, "12.35", row[1])
	assert.Equal(t, "48.20", row[2])
	assert.Equal(t, "55.50", row[3])
	assert.Equal(t, "40.00", row[4])
	assert.Equal(t, "123.46", row[5])
	assert.Equal(t, "789.01", row[6])
	assert.Equal(t, "5.43", row[7])
	assert.Equal(t, "0.0905", row[8])
}

func TestAbsentTemperatureWritesEmptyField(t *testing.T) {
	w := logfile.NewWriter(t.TempDir())
	rec := record(time.Date(2026, 8, 25, 9, 0, 0, 0, time.Local))
	rec.HasTemperature = false

	require.NoError(t, w.Append(rec))

	rows := readRows(t, w.LivePath())
	assert.Equal(t, "", rows[1][2])
}

func TestRotationAcrossDateBoundary(t *testing.T) {
	w := logfile.NewWriter(t.TempDir())
	day1 := time.Date(2026, 8, 24, 23, 58, 0, 0, time.Local)
	day2 := time.Date(2026, 8, 25, 0, 1, 0, 0, time.Local)

	require.NoError(t, w.Append(record(day1)))
	require.NoError(t, w.Append(record(day1.Add(time.Minute))))
	require.NoError(t, w.Append(record(day2)))

	archivePath := w.ArchivePath(day1)
	assert.True(t, strings.HasSuffix(archivePath, "2026/August_08/24_Monday.csv"), archivePath)

	archived := readRows(t, archivePath)
	require.Len(t, archived, 3)
	for _, row := range archived[1:] {
		assert.True(t, strings.HasPrefix(row[0], "2026-08-24"), row[0])
	}

	live := readRows(t, w.LivePath())
	require.Len(t, live, 2)
	assert.Equal(t, logfile.Header, live[0])
	assert.True(t, strings.HasPrefix(live[1][0], "2026-08-25"))
}

func TestRotationIdempotentWithinDay(t *testing.T) {
	w := logfile.NewWriter(t.TempDir())
	day1 := time.Date(2026, 8, 24, 12, 0, 0, 0, time.Local)
	day2 := time.Date(2026, 8, 25, 12, 0, 0, 0, time.Local)

	require.NoError(t, w.Append(record(day1)))
	require.NoError(t, w.Append(record(day2)))
	require.NoError(t, w.Append(record(day2.Add(time.Minute))))
	require.NoError(t, w.Append(record(day2.Add(2*time.Minute))))

	// One archive, still holding only day1 rows.
	archived := readRows(t, w.ArchivePath(day1))
	require.Len(t, archived, 2)

	live := readRows(t, w.LivePath())
	assert.Len(t, live, 4)
}

func TestMultipleBoundaries(t *testing.T) {
	w := logfile.NewWriter(t.TempDir())
	days := []time.Time{
		time.Date(2026, 8, 23, 8, 0, 0, 0, time.Local),
		time.Date(2026, 8, 24, 8, 0, 0, 0, time.Local),
		time.Date(2026, 8, 25, 8, 0, 0, 0, time.Local),
	}

	for _, day := range days {
		require.NoError(t, w.Append(record(day)))
	}

	for _, day := range days[:2] {
		archived := readRows(t, w.ArchivePath(day))
		require.Len(t, archived, 2, "archive for %s", day)
	}

	live := readRows(t, w.LivePath())
	assert.Len(t, live, 2)
}
