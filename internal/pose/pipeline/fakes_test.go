package pipeline

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/fusion"
)

// sliceSource replays a fixed list of frames then reports io.EOF.
type sliceSource struct {
	frames  []Frame
	openErr error

	mu     sync.Mutex
	next   int
	opened int
	closed int
}

func newSliceSource(n int) *sliceSource {
	s := &sliceSource{}
	for i := 0; i < n; i++ {
		s.frames = append(s.frames, Frame{Seq: uint64(i + 1), Width: 640, Height: 480})
	}
	return s
}

func (s *sliceSource) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened++
	return s.openErr
}

func (s *sliceSource) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *sliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *sliceSource) counts() (opened, closed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened, s.closed
}

// blockingSource blocks every Read until ctx is done.
type blockingSource struct {
	reading chan struct{}
	once    sync.Once
	closed  atomic.Int32
}

func newBlockingSource() *blockingSource {
	return &blockingSource{reading: make(chan struct{})}
}

func (s *blockingSource) Open(ctx context.Context) error { return nil }

func (s *blockingSource) Read(ctx context.Context) (Frame, error) {
	s.once.Do(func() { close(s.reading) })
	<-ctx.Done()
	return Frame{}, ctx.Err()
}

func (s *blockingSource) Close() error {
	s.closed.Add(1)
	return nil
}

type fixedLandmarks struct {
	set *pose.LandmarkSet
	err error
}

func (f fixedLandmarks) DetectLandmarks(ctx context.Context, _ Frame) (*pose.LandmarkSet, error) {
	return f.set, f.err
}

type fixedBoxes []fusion.DetectionBox

func (f fixedBoxes) DetectBoxes(ctx context.Context, _ Frame) ([]fusion.DetectionBox, error) {
	return f, nil
}

// countingEvaluator returns a fixed verdict and counts its calls.
type countingEvaluator struct {
	verdict pose.Verdict
	calls   atomic.Int32
}

func (e *countingEvaluator) Evaluate(*pose.LandmarkSet, string) pose.Verdict {
	e.calls.Add(1)
	return e.verdict
}

type collector struct {
	mu  sync.Mutex
	out []Output
}

func (c *collector) emit(ctx context.Context, o Output) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, o)
	return nil
}

func (c *collector) outputs() []Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Output(nil), c.out...)
}
