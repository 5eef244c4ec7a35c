package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pose.report/internal/db"
	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/accuracy"
	"github.com/banshee-data/pose.report/internal/pose/sink"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *EventStore {
	t.Helper()
	monitoring.SetLogger(nil)
	d, err := db.OpenAndMigrate(db.DriverSQLite, filepath.Join(t.TempDir(), "pose.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewEventStore(d.DB)
}

func event(id string, at time.Time, correct bool) sink.Event {
	return sink.Event{
		ID:                  id,
		StreamID:            "cam-1",
		Exercise:            "squat",
		Correct:             correct,
		Detail:              "Active squat",
		DetectionConfidence: 0.91,
		AvgVisibility:       0.8,
		FrameAccuracy:       0.85,
		Timestamp:           at,
	}
}

func TestAppendAndRecent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendEvent(ctx, event(string(rune('a'+i)), t0.Add(time.Duration(i)*time.Second), i%2 == 0)))
	}

	got, err := s.RecentEvents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"e", "d", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})

	if diff := cmp.Diff(event("e", t0.Add(4*time.Second), true), got[0]); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	none, err := s.RecentEvents(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAppendFillsIDAndTimestamp(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendEvent(ctx, sink.Event{StreamID: "cam-1", Exercise: "plank"}))

	got, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.False(t, got[0].Timestamp.IsZero())
}

func TestDuplicateIDFails(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendEvent(ctx, event("dup", t0, true)))
	assert.Error(t, s.AppendEvent(ctx, event("dup", t0, true)))
}

func TestDeleteBefore(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	require.NoError(t, s.AppendEvent(ctx, event("old", t0, true)))
	require.NoError(t, s.AppendEvent(ctx, event("new", t0.Add(time.Hour), true)))

	n, err := s.DeleteBefore(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.RecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}

func TestIsBusy(t *testing.T) {
	assert.True(t, isBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, isBusy(errors.New("no such table: detected_poses")))
}

func TestSinkOverSQLite(t *testing.T) {
	s := setupStore(t)
	sk := sink.New(s, sink.Config{Interval: 3 * time.Second})
	r := sk.Recorder("cam-9")
	ctx := context.Background()
	sample := accuracy.Sample{DetectionConfidence: 0.95, AvgVisibility: 0.9, FrameAccuracy: 0.88}

	assert.True(t, r.MaybeSave(ctx, "lunge", pose.Incorrect("Lunge", "Keep moving"), sample, t0))
	assert.False(t, r.MaybeSave(ctx, "lunge", pose.Incorrect("Lunge", "Keep moving"), sample, t0.Add(time.Second)))
	assert.True(t, r.MaybeSave(ctx, "lunge", pose.Correct("Lunge", "Good bottom position"), sample, t0.Add(3*time.Second)))

	history, err := sk.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Correct)
	assert.Equal(t, "Good bottom position", history[0].Detail)
	assert.Equal(t, 95.0, history[1].ConfidencePercent())
	assert.Equal(t, "cam-9", history[1].StreamID)
}
