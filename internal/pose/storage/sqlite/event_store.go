package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pose.report/internal/pose/sink"
	"github.com/banshee-data/pose.report/internal/retry"
)

// EventStore persists events to the detected_poses table.
type EventStore struct {
	db    *sql.DB
	retry retry.Config
}

// NewEventStore creates a new EventStore.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db, retry: retry.DefaultConfig()}
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// AppendEvent inserts e. An empty ID is filled with a UUID.
func (s *EventStore) AppendEvent(ctx context.Context, e sink.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return retry.Do(ctx, s.retry, isBusy, func(int) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO detected_poses (
				id, stream_id, pose_name, is_correct, feedback,
				detection_confidence, avg_visibility, frame_accuracy, timestamp_ns
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.StreamID, e.Exercise, e.Correct, e.Detail,
			e.DetectionConfidence, e.AvgVisibility, e.FrameAccuracy, e.Timestamp.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return nil
	})
}

// RecentEvents returns up to limit events, newest first.
func (s *EventStore) RecentEvents(ctx context.Context, limit int) ([]sink.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stream_id, pose_name, is_correct, feedback,
		       detection_confidence, avg_visibility, frame_accuracy, timestamp_ns
		FROM detected_poses
		ORDER BY timestamp_ns DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []sink.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteBefore removes events older than cutoff and returns how many went.
func (s *EventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := retry.Do(ctx, s.retry, isBusy, func(int) error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM detected_poses WHERE timestamp_ns < ?`, cutoff.UnixNano())
		if err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		return nil
	})
	return n, err
}

// scanEvent scans an event row from a sql.Rows cursor.
func scanEvent(rows *sql.Rows) (sink.Event, error) {
	var e sink.Event
	var ts int64
	err := rows.Scan(
		&e.ID, &e.StreamID, &e.Exercise, &e.Correct, &e.Detail,
		&e.DetectionConfidence, &e.AvgVisibility, &e.FrameAccuracy, &ts,
	)
	if err != nil {
		return e, fmt.Errorf("scan event row: %w", err)
	}
	e.Timestamp = time.Unix(0, ts).UTC()
	return e, nil
}
