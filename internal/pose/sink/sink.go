// Package sink throttles persistence of evaluation events and reads back
// recent history.
//
// Each stream gets its own Recorder so concurrent viewers throttle
// independently. Store and publisher failures are logged and swallowed;
// they never reach the frame loop.
package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/accuracy"
)

var logf = monitoring.Prefixed("sink")

// Config controls throttling and read-back.
type Config struct {
	// Interval is the minimum time between saves for one stream.
	Interval time.Duration
	// Timeout bounds a single store or publish call.
	Timeout time.Duration
	// HistoryLimit is the default number of events History returns.
	HistoryLimit int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Interval:     3 * time.Second,
		Timeout:      time.Second,
		HistoryLimit: 50,
	}
}

// Sink owns the store and the publishers shared by all recorders.
type Sink struct {
	store Store
	cfg   Config

	pubMu      sync.RWMutex
	publishers []Publisher

	saved     atomic.Uint64
	failed    atomic.Uint64
	throttled atomic.Uint64
}

// New returns a sink over store. Zero config fields take defaults. A nil
// store disables saving; MaybeSave then always reports false.
func New(store Store, cfg Config) *Sink {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	return &Sink{store: store, cfg: cfg}
}

// Config returns the effective configuration.
func (s *Sink) Config() Config { return s.cfg }

// AddPublisher registers p to receive every stored event.
func (s *Sink) AddPublisher(p Publisher) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.publishers = append(s.publishers, p)
}

// Counters reports saved, failed and throttled MaybeSave calls.
func (s *Sink) Counters() (saved, failed, throttled uint64) {
	return s.saved.Load(), s.failed.Load(), s.throttled.Load()
}

// History returns up to limit events newest first. limit <= 0 selects the
// configured default.
func (s *Sink) History(ctx context.Context, limit int) ([]Event, error) {
	if s.store == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	events, err := s.store.RecentEvents(ctx, limit)
	if err != nil {
		logf("history read failed: %v", err)
		return nil, err
	}
	return events, nil
}

// Recorder returns a throttled recorder for one stream.
func (s *Sink) Recorder(streamID string) *Recorder {
	return &Recorder{sink: s, streamID: streamID}
}

func (s *Sink) publish(ctx context.Context, e Event) {
	s.pubMu.RLock()
	pubs := append([]Publisher(nil), s.publishers...)
	s.pubMu.RUnlock()
	for _, p := range pubs {
		if err := p.PublishEvent(ctx, e); err != nil {
			logf("publish %s failed: %v", e.ID, err)
		}
	}
}

// Recorder throttles saves for a single stream.
type Recorder struct {
	sink     *Sink
	streamID string

	mu       sync.Mutex
	lastSave time.Time
	saved    bool
}

// StreamID returns the stream this recorder belongs to.
func (r *Recorder) StreamID() string { return r.streamID }

// MaybeSave stores an event when at least the configured interval has
// passed since this stream's last successful save. It reports whether an
// event was stored.
func (r *Recorder) MaybeSave(ctx context.Context, exercise string, v pose.Verdict, sample accuracy.Sample, now time.Time) bool {
	s := r.sink
	if s.store == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved && now.Sub(r.lastSave) < s.cfg.Interval {
		s.throttled.Add(1)
		return false
	}

	e := Event{
		ID:                  uuid.NewString(),
		StreamID:            r.streamID,
		Exercise:            exercise,
		Correct:             v.Correct,
		Detail:              v.Detail,
		DetectionConfidence: sample.DetectionConfidence,
		AvgVisibility:       sample.AvgVisibility,
		FrameAccuracy:       sample.FrameAccuracy,
		Timestamp:           now,
	}

	saveCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	if err := s.store.AppendEvent(saveCtx, e); err != nil {
		s.failed.Add(1)
		logf("stream %s: save %s failed: %v", r.streamID, exercise, err)
		return false
	}
	r.lastSave = now
	r.saved = true
	s.saved.Add(1)

	pubCtx, pubCancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer pubCancel()
	s.publish(pubCtx, e)
	return true
}
