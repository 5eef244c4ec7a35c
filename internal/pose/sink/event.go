package sink

import (
	"context"
	"math"
	"time"
)

// Event is one persisted evaluation. Events are immutable once built.
type Event struct {
	ID                  string    `json:"id"`
	StreamID            string    `json:"stream_id"`
	Exercise            string    `json:"pose_name"`
	Correct             bool      `json:"is_correct"`
	Detail              string    `json:"feedback"`
	DetectionConfidence float64   `json:"detection_confidence"`
	AvgVisibility       float64   `json:"avg_visibility"`
	FrameAccuracy       float64   `json:"frame_accuracy"`
	Timestamp           time.Time `json:"timestamp"`
}

// ConfidencePercent is DetectionConfidence as a rounded percentage.
func (e Event) ConfidencePercent() float64 { return percent(e.DetectionConfidence) }

// VisibilityPercent is AvgVisibility as a rounded percentage.
func (e Event) VisibilityPercent() float64 { return percent(e.AvgVisibility) }

// AccuracyPercent is FrameAccuracy as a rounded percentage.
func (e Event) AccuracyPercent() float64 { return percent(e.FrameAccuracy) }

func percent(v float64) float64 {
	return math.Round(v*10000) / 100
}

// Store persists evaluation events.
type Store interface {
	// AppendEvent stores e.
	AppendEvent(ctx context.Context, e Event) error
	// RecentEvents returns up to limit events, newest first.
	RecentEvents(ctx context.Context, limit int) ([]Event, error)
}

// Publisher receives events after they have been stored.
type Publisher interface {
	PublishEvent(ctx context.Context, e Event) error
}
