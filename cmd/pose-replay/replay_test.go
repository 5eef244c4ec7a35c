package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pose.report/internal/db"
	"github.com/banshee-data/pose.report/internal/pose/posetest"
	"github.com/banshee-data/pose.report/internal/pose/replay"
	"github.com/banshee-data/pose.report/internal/pose/storage/sqlite"
	"github.com/banshee-data/pose.report/internal/testutil"
)

// writeRecording stores n standing full-body records, separated by blank
// lines, and returns the path.
func writeRecording(t *testing.T, n int) string {
	t.Helper()
	var buf bytes.Buffer
	w := replay.NewWriter(&buf)
	for i := 0; i < n; i++ {
		require.NoError(t, w.Write(replay.Record{Seq: uint64(i + 1), Width: 160, Height: 120, Landmarks: posetest.FullBody(0.9)}))
		buf.WriteString("\n")
	}
	path := filepath.Join(t.TempDir(), "session.jsonl")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestCountRecords(t *testing.T) {
	n, err := countRecords(writeRecording(t, 4))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = countRecords(filepath.Join(t.TempDir(), "missing.jsonl"))
	assert.Error(t, err)
}

func TestRunReportsStats(t *testing.T) {
	testutil.MuteLogs(t)

	res, err := run(context.Background(), options{
		File:     writeRecording(t, 3),
		Exercise: "squat",
		Session:  "replay-1",
		Progress: true,
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "replay-1", res.StreamID)
	assert.Equal(t, uint64(3), res.Frames)
	assert.Equal(t, 3, res.Stats.TotalFrames)
	assert.Equal(t, 3, res.Stats.CorrectFrames)
	assert.Zero(t, res.SavedEvents)
	assert.Zero(t, res.FramesWritten)
}

func TestRunGateWithoutBoxes(t *testing.T) {
	testutil.MuteLogs(t)

	res, err := run(context.Background(), options{File: writeRecording(t, 2), Exercise: "squat", Gate: true}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stats.TotalFrames)
	assert.Zero(t, res.Stats.DetectedFrames)
	assert.NotEmpty(t, res.StreamID)
}

func TestRunWritesFramesAndEvents(t *testing.T) {
	testutil.MuteLogs(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "frames")
	dbPath := filepath.Join(dir, "events.db")

	res, err := run(context.Background(), options{
		File:     writeRecording(t, 3),
		Exercise: "squat",
		Session:  "gym",
		DBPath:   dbPath,
		OutDir:   out,
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, 3, res.FramesWritten)
	for _, name := range []string{"squat_000001.jpg", "squat_000002.jpg", "squat_000003.jpg"} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err, name)
		assert.Equal(t, []byte{0xFF, 0xD8}, data[:2], name)
	}

	assert.GreaterOrEqual(t, res.SavedEvents, uint64(1))
	database, err := db.Open(db.DriverSQLite, dbPath)
	require.NoError(t, err)
	defer database.Close()
	events, err := sqlite.NewEventStore(database.DB).RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, int(res.SavedEvents))
	assert.Equal(t, "gym", events[0].StreamID)
	assert.Equal(t, "squat", events[0].Exercise)
}

func TestRunRejectsBadInput(t *testing.T) {
	testutil.MuteLogs(t)
	rec := writeRecording(t, 1)

	tests := []struct {
		name string
		o    options
	}{
		{"unknown exercise", options{File: rec, Exercise: "handstand"}},
		{"missing file", options{File: filepath.Join(t.TempDir(), "nope.jsonl"), Exercise: "squat"}},
		{"db outside allowed dirs", options{File: rec, Exercise: "squat", DBPath: "/etc/pose.db"}},
		{"out outside allowed dirs", options{File: rec, Exercise: "squat", OutDir: "/etc/pose-frames"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(context.Background(), tt.o, io.Discard)
			assert.Error(t, err)
		})
	}
}
