// Package postgres implements sink.Store on PostgreSQL through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pose.report/internal/pose/sink"
)

// EventStore persists events to the detected_poses table.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates a new EventStore. db must come from the "pgx"
// driver with migrations applied.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// AppendEvent inserts e. An empty ID is filled with a UUID.
func (s *EventStore) AppendEvent(ctx context.Context, e sink.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO detected_poses (
			id, stream_id, pose_name, is_correct, feedback,
			detection_confidence, avg_visibility, frame_accuracy, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.StreamID, e.Exercise, e.Correct, e.Detail,
		e.DetectionConfidence, e.AvgVisibility, e.FrameAccuracy, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (s *EventStore) RecentEvents(ctx context.Context, limit int) ([]sink.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stream_id, pose_name, is_correct, feedback,
		       detection_confidence, avg_visibility, frame_accuracy, timestamp
		FROM detected_poses
		ORDER BY timestamp DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []sink.Event
	for rows.Next() {
		var e sink.Event
		if err := rows.Scan(
			&e.ID, &e.StreamID, &e.Exercise, &e.Correct, &e.Detail,
			&e.DetectionConfidence, &e.AvgVisibility, &e.FrameAccuracy, &e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteBefore removes events older than cutoff and returns how many went.
func (s *EventStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM detected_poses WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	return res.RowsAffected()
}
