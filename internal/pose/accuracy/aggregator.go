// Package accuracy keeps session scoped detection and correctness
// statistics fed by the per-frame evaluation loop.
package accuracy

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/pose.report/internal/timeutil"
)

// DefaultCapacity bounds the confidence and visibility sample buffers.
const DefaultCapacity = 100

// Stats is a point-in-time view of an Aggregator.
type Stats struct {
	TotalFrames     int           `json:"total_frames"`
	DetectedFrames  int           `json:"detected_frames"`
	CorrectFrames   int           `json:"correct_poses"`
	IncorrectFrames int           `json:"incorrect_poses"`
	DetectionRate   float64       `json:"detection_rate"`
	AccuracyRate    float64       `json:"accuracy_rate"`
	AvgConfidence   float64       `json:"avg_confidence"`
	AvgVisibility   float64       `json:"avg_visibility"`
	AvgFrameScore   float64       `json:"avg_frame_accuracy"`
	Samples         int           `json:"samples"`
	SessionStart    time.Time     `json:"session_start"`
	SessionDuration time.Duration `json:"-"`
	// SessionSeconds mirrors SessionDuration for JSON clients.
	SessionSeconds float64 `json:"session_duration"`
}

// Aggregator accumulates per-frame outcomes. All methods are safe for
// concurrent use.
type Aggregator struct {
	clock    timeutil.Clock
	capacity int

	mu          sync.Mutex
	total       int
	detected    int
	correct     int
	incorrect   int
	confidence  *Ring[float64]
	visibility  *Ring[float64]
	frameScores *Ring[float64]
	start       time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the clock used for session timing.
func WithClock(c timeutil.Clock) Option {
	return func(a *Aggregator) { a.clock = c }
}

// WithCapacity overrides the sample buffer capacity.
func WithCapacity(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.capacity = n
		}
	}
}

// NewAggregator starts a session now.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{clock: timeutil.RealClock{}, capacity: DefaultCapacity}
	for _, o := range opts {
		o(a)
	}
	a.confidence = NewRing[float64](a.capacity)
	a.visibility = NewRing[float64](a.capacity)
	a.frameScores = NewRing[float64](a.capacity)
	a.start = a.clock.Now()
	return a
}

// Observe records one processed frame. sample may be nil.
func (a *Aggregator) Observe(detected, correct bool, sample *Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	if detected {
		a.detected++
		if correct {
			a.correct++
		} else {
			a.incorrect++
		}
	}
	if sample != nil {
		a.confidence.Push(sample.DetectionConfidence)
		a.visibility.Push(sample.AvgVisibility)
		a.frameScores.Push(sample.FrameAccuracy)
	}
}

// Stats derives rates and averages from the current counters.
func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Stats{
		TotalFrames:     a.total,
		DetectedFrames:  a.detected,
		CorrectFrames:   a.correct,
		IncorrectFrames: a.incorrect,
		AvgConfidence:   mean(a.confidence),
		AvgVisibility:   mean(a.visibility),
		AvgFrameScore:   mean(a.frameScores),
		Samples:         a.confidence.Len(),
		SessionStart:    a.start,
		SessionDuration: a.clock.Since(a.start),
	}
	s.SessionSeconds = s.SessionDuration.Seconds()
	if a.total > 0 {
		s.DetectionRate = float64(a.detected) / float64(a.total) * 100
	}
	if a.detected > 0 {
		s.AccuracyRate = float64(a.correct) / float64(a.detected) * 100
	}
	return s
}

// ConfidenceSamples returns the buffered confidence values oldest first.
func (a *Aggregator) ConfidenceSamples() []float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.confidence.Values()
}

// Reset clears all counters and restarts the session clock.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total, a.detected, a.correct, a.incorrect = 0, 0, 0, 0
	a.confidence.Reset()
	a.visibility.Reset()
	a.frameScores.Reset()
	a.start = a.clock.Now()
}

func mean(r *Ring[float64]) float64 {
	if r.Len() == 0 {
		return 0
	}
	return stat.Mean(r.Values(), nil)
}
