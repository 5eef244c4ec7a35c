package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/accuracy"
	"github.com/banshee-data/pose.report/internal/pose/fusion"
	"github.com/banshee-data/pose.report/internal/pose/rules"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

var logf = monitoring.Prefixed("pipeline")

// ErrStopped may be returned by an EmitFunc to end a stream cleanly.
var ErrStopped = errors.New("stream stopped")

// State is the position of a stream in its per-frame cycle.
type State int32

const (
	StateIdle State = iota
	StateAwaitingFrame
	StateGateCheck
	StateEvaluating
	StateEmitting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAwaitingFrame:
		return "AWAITING_FRAME"
	case StateGateCheck:
		return "GATE_CHECK"
	case StateEvaluating:
		return "EVALUATING"
	case StateEmitting:
		return "EMITTING"
	case StateClosed:
		return "CLOSED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// StreamConfig holds the collaborators of one stream. Source, Landmarks
// and Exercise are required; everything else is optional.
type StreamConfig struct {
	ID         string
	Exercise   string
	Source     FrameSource
	Landmarks  LandmarkDetector
	Coarse     CoarseDetector // Optional: enables the fusion gate
	Gate       *fusion.Gate   // Defaults to fusion.DefaultThreshold when Coarse is set
	Evaluator  Evaluator      // Defaults to the built-in rule catalog
	Aggregator *accuracy.Aggregator
	Recorder   Recorder  // Optional: throttled persistence
	Annotator  Annotator // Optional: encoded output frames
	Clock      timeutil.Clock
}

// Stream runs the frame loop for a single viewer.
type Stream struct {
	cfg StreamConfig

	state    atomic.Int32
	frames   atomic.Uint64
	detected atomic.Uint64
	started  time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewStream validates cfg and fills defaults.
func NewStream(cfg StreamConfig) (*Stream, error) {
	if cfg.Source == nil {
		return nil, errors.New("stream requires a frame source")
	}
	if cfg.Landmarks == nil {
		return nil, errors.New("stream requires a landmark detector")
	}
	if cfg.Exercise == "" {
		return nil, errors.New("stream requires an exercise")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Coarse != nil && cfg.Gate == nil {
		cfg.Gate = fusion.NewGate(fusion.DefaultThreshold)
	}
	if cfg.Evaluator == nil {
		cfg.Evaluator = rules.NewEvaluator(nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = accuracy.NewAggregator(accuracy.WithClock(cfg.Clock))
	}
	return &Stream{cfg: cfg, started: cfg.Clock.Now(), stopCh: make(chan struct{})}, nil
}

// ID returns the stream identifier.
func (s *Stream) ID() string { return s.cfg.ID }

// Exercise returns the exercise this stream evaluates.
func (s *Stream) Exercise() string { return s.cfg.Exercise }

// State returns the current cycle state.
func (s *Stream) State() State { return State(s.state.Load()) }

// Frames returns the number of frames processed so far.
func (s *Stream) Frames() uint64 { return s.frames.Load() }

// StartedAt returns when the stream was created.
func (s *Stream) StartedAt() time.Time { return s.started }

// Aggregator returns the aggregator this stream feeds.
func (s *Stream) Aggregator() *accuracy.Aggregator { return s.cfg.Aggregator }

// Stop ends the stream at the top of its next cycle, or immediately if it
// is blocked reading a frame. Stop is idempotent.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Stream) setState(st State) { s.state.Store(int32(st)) }

// Run drives the loop until the source is exhausted, the stream is stopped,
// ctx is cancelled or emit fails. Exhaustion and stopping return nil. The
// frame source is closed on every path once it has been opened.
func (s *Stream) Run(ctx context.Context, emit EmitFunc) error {
	defer s.setState(StateClosed)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.cfg.Source.Open(ctx); err != nil {
		return fmt.Errorf("open frame source: %w", err)
	}
	defer func() {
		if cerr := s.cfg.Source.Close(); cerr != nil {
			logf("stream %s: close source: %v", s.cfg.ID, cerr)
		}
	}()

	logf("stream %s: started exercise=%s", s.cfg.ID, s.cfg.Exercise)
	defer func() {
		logf("stream %s: closed after %d frames (%d detected)", s.cfg.ID, s.frames.Load(), s.detected.Load())
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		s.setState(StateAwaitingFrame)
		frame, err := s.cfg.Source.Read(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read frame: %w", err)
		}

		out := s.process(ctx, frame)

		s.setState(StateEmitting)
		if err := emit(ctx, out); err != nil {
			if errors.Is(err, ErrStopped) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("emit frame %d: %w", frame.Seq, err)
		}
	}
}

// process runs gate, evaluation, aggregation and save for one frame. It
// never fails: detector errors degrade to a not-detected verdict.
func (s *Stream) process(ctx context.Context, frame Frame) Output {
	cfg := s.cfg
	s.frames.Add(1)

	verdict := pose.NotDetected("")
	var box *BoundingBox
	passed := true

	if cfg.Coarse != nil {
		s.setState(StateGateCheck)
		boxes, err := cfg.Coarse.DetectBoxes(ctx, frame)
		if err != nil {
			logf("stream %s: coarse detector frame %d: %v", cfg.ID, frame.Seq, err)
		}
		b, ok := cfg.Gate.Select(boxes)
		if ok {
			box = &BoundingBox{
				XMin: int(b.XMin), YMin: int(b.YMin), XMax: int(b.XMax), YMax: int(b.YMax),
				Label: b.ClassLabel, Confidence: b.Confidence,
			}
		} else {
			passed = false
			verdict = pose.NotDetected("No pose detected")
		}
	}

	var sample *accuracy.Sample
	var landmarks *pose.LandmarkSet
	if passed {
		s.setState(StateEvaluating)
		set, err := cfg.Landmarks.DetectLandmarks(ctx, frame)
		if err != nil {
			logf("stream %s: landmark detector frame %d: %v", cfg.ID, frame.Seq, err)
		}
		if set.Len() > 0 {
			landmarks = set
			verdict = cfg.Evaluator.Evaluate(set, cfg.Exercise)
			if verdict.Detected() {
				sm := accuracy.SampleFrom(set)
				sample = &sm
			}
			if box == nil {
				box = landmarkBox(set, frame)
			}
		} else {
			verdict = pose.NotDetected("Landmarks not detected")
		}
	}

	detected := verdict.Detected()
	cfg.Aggregator.Observe(detected, detected && verdict.Correct, sample)

	saved := false
	if detected && cfg.Recorder != nil {
		saved = cfg.Recorder.MaybeSave(ctx, cfg.Exercise, verdict, *sample, cfg.Clock.Now())
	}
	if detected {
		s.detected.Add(1)
	}

	overlay := Overlay{
		StreamID:  cfg.ID,
		Seq:       frame.Seq,
		Exercise:  cfg.Exercise,
		Verdict:   verdict,
		Color:     ColorFor(verdict),
		Box:       box,
		Landmarks: landmarks,
		Sample:    sample,
		Stats:     cfg.Aggregator.Stats(),
		Saved:     saved,
	}
	out := Output{Frame: frame, Overlay: overlay}
	if cfg.Annotator != nil {
		img, err := cfg.Annotator.Annotate(frame, overlay)
		if err != nil {
			logf("stream %s: annotate frame %d: %v", cfg.ID, frame.Seq, err)
		}
		out.Image = img
	}
	return out
}

// landmarkBox scales the landmark extent to frame pixels.
func landmarkBox(set *pose.LandmarkSet, f Frame) *BoundingBox {
	minX, minY, maxX, maxY, ok := set.Bounds()
	w, h := f.Size()
	if !ok || w == 0 || h == 0 {
		return nil
	}
	clamp := func(v float64, limit int) int {
		return int(math.Max(0, math.Min(float64(limit), v*float64(limit))))
	}
	return &BoundingBox{
		XMin: clamp(minX, w), YMin: clamp(minY, h),
		XMax: clamp(maxX, w), YMax: clamp(maxY, h),
		Label: "pose",
	}
}
