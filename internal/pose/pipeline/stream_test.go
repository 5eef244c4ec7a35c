package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/accuracy"
	"github.com/banshee-data/pose.report/internal/pose/fusion"
	"github.com/banshee-data/pose.report/internal/pose/posetest"
	"github.com/banshee-data/pose.report/internal/pose/sink"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestNewStreamValidation(t *testing.T) {
	lm := fixedLandmarks{}
	_, err := NewStream(StreamConfig{Exercise: "squat", Landmarks: lm})
	assert.Error(t, err)
	_, err = NewStream(StreamConfig{Exercise: "squat", Source: newSliceSource(0)})
	assert.Error(t, err)
	_, err = NewStream(StreamConfig{Source: newSliceSource(0), Landmarks: lm})
	assert.Error(t, err)

	s, err := NewStream(StreamConfig{Exercise: "squat", Source: newSliceSource(0), Landmarks: lm})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, StateIdle, s.State())
	assert.NotNil(t, s.Aggregator())
}

func TestStreamGateRejectSkipsEvaluation(t *testing.T) {
	src := newSliceSource(4)
	eval := &countingEvaluator{verdict: pose.Correct("Squat", "")}
	agg := accuracy.NewAggregator(accuracy.WithClock(timeutil.NewMockClock(t0)))

	s, err := NewStream(StreamConfig{
		Exercise:   "squat",
		Source:     src,
		Landmarks:  fixedLandmarks{set: posetest.FullBody(0.9)},
		Coarse:     fixedBoxes{{XMax: 100, YMax: 200, Confidence: 0.4, ClassLabel: "person"}},
		Evaluator:  eval,
		Aggregator: agg,
	})
	require.NoError(t, err)

	var c collector
	require.NoError(t, s.Run(context.Background(), c.emit))

	assert.Equal(t, int32(0), eval.calls.Load())
	stats := agg.Stats()
	assert.Equal(t, 4, stats.TotalFrames)
	assert.Equal(t, 0, stats.DetectedFrames)
	assert.Equal(t, 0, stats.Samples)

	out := c.outputs()
	require.Len(t, out, 4)
	for _, o := range out {
		assert.False(t, o.Overlay.Verdict.Detected())
		assert.Equal(t, "No pose detected", o.Overlay.Verdict.Detail)
		assert.Equal(t, ColorNotDetected, o.Overlay.Color)
		assert.Nil(t, o.Overlay.Box)
		assert.Nil(t, o.Overlay.Sample)
	}
}

func TestStreamGatePassUsesSelectedBox(t *testing.T) {
	eval := &countingEvaluator{verdict: pose.Correct("Squat", "")}
	s, err := NewStream(StreamConfig{
		Exercise:  "squat",
		Source:    newSliceSource(2),
		Landmarks: fixedLandmarks{set: posetest.FullBody(0.9)},
		Coarse: fixedBoxes{
			{XMax: 10, YMax: 10, Confidence: 0.5},
			{XMin: 20, YMin: 30, XMax: 220, YMax: 430, Confidence: 0.8, ClassLabel: "person"},
		},
		Evaluator: eval,
	})
	require.NoError(t, err)

	var c collector
	require.NoError(t, s.Run(context.Background(), c.emit))
	assert.Equal(t, int32(2), eval.calls.Load())

	out := c.outputs()
	require.Len(t, out, 2)
	assert.Equal(t, &BoundingBox{XMin: 20, YMin: 30, XMax: 220, YMax: 430, Label: "person", Confidence: 0.8}, out[0].Overlay.Box)
	assert.Equal(t, ColorCorrect, out[0].Overlay.Color)
	require.NotNil(t, out[0].Overlay.Sample)

	stats := s.Aggregator().Stats()
	assert.Equal(t, 2, stats.DetectedFrames)
	assert.Equal(t, 2, stats.CorrectFrames)
}

func TestStreamWithoutCoarseDetectorFallsBackToLandmarkBox(t *testing.T) {
	set := posetest.New().At(pose.LeftShoulder, 0.25, 0.5).At(pose.RightAnkle, 0.75, 1.5).Set()
	s, err := NewStream(StreamConfig{
		Exercise:  "squat",
		Source:    newSliceSource(1),
		Landmarks: fixedLandmarks{set: set},
		Evaluator: &countingEvaluator{verdict: pose.Incorrect("Squat", "")},
	})
	require.NoError(t, err)

	var c collector
	require.NoError(t, s.Run(context.Background(), c.emit))
	out := c.outputs()
	require.Len(t, out, 1)
	assert.Equal(t, &BoundingBox{XMin: 160, YMin: 240, XMax: 480, YMax: 480, Label: "pose"}, out[0].Overlay.Box)
	assert.Equal(t, ColorIncorrect, out[0].Overlay.Color)
}

func TestStreamNoLandmarks(t *testing.T) {
	eval := &countingEvaluator{verdict: pose.Correct("Squat", "")}
	s, err := NewStream(StreamConfig{
		Exercise:  "squat",
		Source:    newSliceSource(3),
		Landmarks: fixedLandmarks{err: errors.New("model failed")},
		Evaluator: eval,
	})
	require.NoError(t, err)

	var c collector
	require.NoError(t, s.Run(context.Background(), c.emit))
	assert.Equal(t, int32(0), eval.calls.Load())
	for _, o := range c.outputs() {
		assert.Equal(t, "Landmarks not detected", o.Overlay.Verdict.Detail)
	}
	assert.Equal(t, 3, s.Aggregator().Stats().TotalFrames)
	assert.Equal(t, 0, s.Aggregator().Stats().DetectedFrames)
}

func TestStreamEOFClosesSource(t *testing.T) {
	src := newSliceSource(5)
	s, err := NewStream(StreamConfig{
		Exercise:  "squat",
		Source:    src,
		Landmarks: fixedLandmarks{set: posetest.FullBody(0.9)},
	})
	require.NoError(t, err)

	var c collector
	require.NoError(t, s.Run(context.Background(), c.emit))
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, uint64(5), s.Frames())
	opened, closed := src.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestStreamOpenFailure(t *testing.T) {
	src := newSliceSource(1)
	src.openErr = errors.New("no camera")
	s, err := NewStream(StreamConfig{Exercise: "squat", Source: src, Landmarks: fixedLandmarks{}})
	require.NoError(t, err)

	err = s.Run(context.Background(), (&collector{}).emit)
	require.Error(t, err)
	assert.ErrorIs(t, err, src.openErr)
	assert.Equal(t, StateClosed, s.State())
	_, closed := src.counts()
	assert.Equal(t, 0, closed)
}

func TestStreamStopDuringBlockingRead(t *testing.T) {
	src := newBlockingSource()
	s, err := NewStream(StreamConfig{Exercise: "squat", Source: src, Landmarks: fixedLandmarks{}})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), (&collector{}).emit) }()

	<-src.reading
	assert.Equal(t, StateAwaitingFrame, s.State())
	s.Stop()
	s.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, int32(1), src.closed.Load())
}

func TestStreamContextCancel(t *testing.T) {
	src := newBlockingSource()
	s, err := NewStream(StreamConfig{Exercise: "squat", Source: src, Landmarks: fixedLandmarks{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, (&collector{}).emit) }()
	<-src.reading
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
	assert.Equal(t, int32(1), src.closed.Load())
}

func TestStreamEmitErrors(t *testing.T) {
	t.Run("stopped", func(t *testing.T) {
		src := newSliceSource(10)
		s, err := NewStream(StreamConfig{Exercise: "squat", Source: src, Landmarks: fixedLandmarks{}})
		require.NoError(t, err)
		n := 0
		err = s.Run(context.Background(), func(context.Context, Output) error {
			n++
			if n == 3 {
				return ErrStopped
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, uint64(3), s.Frames())
		_, closed := src.counts()
		assert.Equal(t, 1, closed)
	})

	t.Run("failure", func(t *testing.T) {
		src := newSliceSource(10)
		s, err := NewStream(StreamConfig{Exercise: "squat", Source: src, Landmarks: fixedLandmarks{}})
		require.NoError(t, err)
		broken := errors.New("client went away")
		err = s.Run(context.Background(), func(context.Context, Output) error { return broken })
		assert.ErrorIs(t, err, broken)
		_, closed := src.counts()
		assert.Equal(t, 1, closed)
	})
}

func TestStreamRecorderThrottles(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	store := sink.NewMemoryStore()
	sk := sink.New(store, sink.Config{Interval: 3 * time.Second})

	s, err := NewStream(StreamConfig{
		ID:        "cam-1",
		Exercise:  "squat",
		Source:    newSliceSource(5),
		Landmarks: fixedLandmarks{set: posetest.FullBody(0.9)},
		Evaluator: &countingEvaluator{verdict: pose.Incorrect("Squat", "Too deep, rise slightly")},
		Recorder:  sk.Recorder("cam-1"),
		Clock:     clock,
	})
	require.NoError(t, err)

	var c collector
	require.NoError(t, s.Run(context.Background(), c.emit))
	assert.Equal(t, 1, store.Len())

	out := c.outputs()
	require.Len(t, out, 5)
	assert.True(t, out[0].Overlay.Saved)
	for _, o := range out[1:] {
		assert.False(t, o.Overlay.Saved)
	}

	events, err := store.RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "cam-1", events[0].StreamID)
	assert.Equal(t, "squat", events[0].Exercise)
	assert.False(t, events[0].Correct)
	assert.Equal(t, t0, events[0].Timestamp)
}

func TestStreamUsesRuleCatalogByDefault(t *testing.T) {
	s, err := NewStream(StreamConfig{
		Exercise:  "no-such-move",
		Source:    newSliceSource(1),
		Landmarks: fixedLandmarks{set: posetest.FullBody(0.9)},
		Coarse:    fixedBoxes{{XMax: 10, YMax: 10, Confidence: fusion.DefaultThreshold + 0.1}},
	})
	require.NoError(t, err)

	var c collector
	require.NoError(t, s.Run(context.Background(), c.emit))
	out := c.outputs()
	require.Len(t, out, 1)
	assert.Equal(t, pose.OutcomeUnrecognized, out[0].Overlay.Verdict.Outcome)
	assert.False(t, out[0].Overlay.Verdict.Correct)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "AWAITING_FRAME", StateAwaitingFrame.String())
	assert.Equal(t, "CLOSED", StateClosed.String())
	assert.Equal(t, "State(42)", State(42).String())
}
