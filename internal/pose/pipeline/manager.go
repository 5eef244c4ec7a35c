package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/pose.report/internal/pose/accuracy"
	"github.com/banshee-data/pose.report/internal/pose/fusion"
	"github.com/banshee-data/pose.report/internal/pose/sink"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

// DefaultSession is used when a request names no session.
const DefaultSession = "default"

// ErrManagerClosed is returned by Run after Close.
var ErrManagerClosed = errors.New("stream manager closed")

// Runtime bundles the collaborators shared by every stream a Manager
// starts.
type Runtime struct {
	// NewSource opens a fresh capture resource per stream.
	NewSource func() (FrameSource, error)
	Landmarks LandmarkDetector
	Coarse    CoarseDetector // Optional
	Gate      *fusion.Gate
	Evaluator Evaluator
	Sink      *sink.Sink // Optional
	Annotator Annotator  // Optional
	Clock     timeutil.Clock
	// RingCapacity sizes new session aggregators. Zero uses the default.
	RingCapacity int
}

// StreamRequest names what a viewer wants to run.
type StreamRequest struct {
	Exercise string
	Session  string
}

// StreamInfo describes an active stream.
type StreamInfo struct {
	ID        string    `json:"id"`
	Exercise  string    `json:"exercise"`
	Session   string    `json:"session"`
	State     string    `json:"state"`
	Frames    uint64    `json:"frames"`
	StartedAt time.Time `json:"started_at"`
}

type activeStream struct {
	stream  *Stream
	session string
}

// Manager owns session aggregators and tracks running streams.
type Manager struct {
	rt Runtime

	mu       sync.Mutex
	sessions map[string]*accuracy.Aggregator
	streams  map[string]activeStream
	closed   bool
	wg       sync.WaitGroup
}

// NewManager returns a manager over rt.
func NewManager(rt Runtime) *Manager {
	if rt.Clock == nil {
		rt.Clock = timeutil.RealClock{}
	}
	return &Manager{
		rt:       rt,
		sessions: make(map[string]*accuracy.Aggregator),
		streams:  make(map[string]activeStream),
	}
}

// Session returns the aggregator for id, creating it on first use.
func (m *Manager) Session(id string) *accuracy.Aggregator {
	if id == "" {
		id = DefaultSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.sessions[id]
	if !ok {
		a = accuracy.NewAggregator(accuracy.WithClock(m.rt.Clock), accuracy.WithCapacity(m.rt.RingCapacity))
		m.sessions[id] = a
	}
	return a
}

// LookupSession returns the aggregator for id without creating one.
func (m *Manager) LookupSession(id string) (*accuracy.Aggregator, bool) {
	if id == "" {
		id = DefaultSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.sessions[id]
	return a, ok
}

// SessionIDs lists known sessions in sorted order.
func (m *Manager) SessionIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Sink returns the shared sink, which may be nil.
func (m *Manager) Sink() *sink.Sink { return m.rt.Sink }

// Run starts a stream for req and blocks until it ends.
func (m *Manager) Run(ctx context.Context, req StreamRequest, emit EmitFunc) error {
	if req.Session == "" {
		req.Session = DefaultSession
	}
	if m.rt.NewSource == nil {
		return errors.New("runtime has no frame source factory")
	}
	src, err := m.rt.NewSource()
	if err != nil {
		return err
	}

	cfg := StreamConfig{
		Exercise:   req.Exercise,
		Source:     src,
		Landmarks:  m.rt.Landmarks,
		Coarse:     m.rt.Coarse,
		Gate:       m.rt.Gate,
		Evaluator:  m.rt.Evaluator,
		Aggregator: m.Session(req.Session),
		Annotator:  m.rt.Annotator,
		Clock:      m.rt.Clock,
	}
	st, err := NewStream(cfg)
	if err != nil {
		_ = src.Close()
		return err
	}
	if m.rt.Sink != nil {
		st.cfg.Recorder = m.rt.Sink.Recorder(st.ID())
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		_ = src.Close()
		return ErrManagerClosed
	}
	m.streams[st.ID()] = activeStream{stream: st, session: req.Session}
	m.wg.Add(1)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.streams, st.ID())
		m.mu.Unlock()
		m.wg.Done()
	}()
	return st.Run(ctx, emit)
}

// Stop stops the stream with the given id. It reports whether the stream
// was found.
func (m *Manager) Stop(id string) bool {
	m.mu.Lock()
	a, ok := m.streams[id]
	m.mu.Unlock()
	if ok {
		a.stream.Stop()
	}
	return ok
}

// Streams describes the running streams ordered by start time.
func (m *Manager) Streams() []StreamInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StreamInfo, 0, len(m.streams))
	for id, a := range m.streams {
		out = append(out, StreamInfo{
			ID:        id,
			Exercise:  a.stream.Exercise(),
			Session:   a.session,
			State:     a.stream.State().String(),
			Frames:    a.stream.Frames(),
			StartedAt: a.stream.StartedAt(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Active returns the number of running streams.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams)
}

// Accepting reports whether Run will start new streams.
func (m *Manager) Accepting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Close stops every stream, rejects new ones and waits up to ctx for the
// running streams to finish.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, a := range m.streams {
		a.stream.Stop()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
