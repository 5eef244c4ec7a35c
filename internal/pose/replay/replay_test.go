package replay

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/fusion"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/pose/posetest"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func recording(t *testing.T, recs ...Record) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	return &buf
}

func readAll(t *testing.T, s *Source) []pipeline.Frame {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	defer s.Close()
	var out []pipeline.Frame
	for {
		f, err := s.Read(ctx)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, f)
	}
}

func TestSourceReadsRecords(t *testing.T) {
	body := posetest.FullBody(0.9)
	buf := recording(t,
		Record{Seq: 7, Timestamp: t0, Width: 640, Height: 480, Landmarks: body,
			Boxes: []fusion.DetectionBox{{XMax: 100, YMax: 200, Confidence: 0.9, ClassLabel: "person"}}},
		Record{Timestamp: t0.Add(time.Second), Width: 640, Height: 480},
	)

	frames := readAll(t, NewReaderSource(buf, Config{Blank: true}))
	require.Len(t, frames, 2)

	assert.Equal(t, uint64(7), frames[0].Seq)
	assert.Equal(t, body.Len(), frames[0].Landmarks.Len())
	assert.InDelta(t, 0.45, frames[0].Landmarks.At(pose.LeftHip).X, 1e-9)
	require.Len(t, frames[0].Boxes, 1)
	assert.Equal(t, "person", frames[0].Boxes[0].ClassLabel)
	require.NotNil(t, frames[0].Image)
	w, h := frames[0].Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, h)

	// Missing seq falls back to the line number.
	assert.Equal(t, uint64(2), frames[1].Seq)
	assert.Nil(t, frames[1].Landmarks)
}

func TestSourceSkipsBlankLinesAndRejectsGarbage(t *testing.T) {
	in := "\n" + `{"seq":1,"width":10,"height":10}` + "\n\nnot json\n"
	s := NewReaderSource(strings.NewReader(in), Config{Clock: timeutil.NewMockClock(t0)})
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	defer s.Close()

	f, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, t0, f.Timestamp)

	_, err = s.Read(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
}

func TestSourceRejectsUnknownJoint(t *testing.T) {
	in := `{"seq":1,"landmarks":{"tail":{"x":0,"y":0}}}` + "\n"
	s := NewReaderSource(strings.NewReader(in), Config{})
	require.NoError(t, s.Open(context.Background()))
	_, err := s.Read(context.Background())
	assert.Error(t, err)
}

func TestSourceNotOpen(t *testing.T) {
	s := NewReaderSource(strings.NewReader(""), Config{})
	_, err := s.Read(context.Background())
	assert.Error(t, err)
	assert.NoError(t, s.Close())
}

func TestSourcePacing(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	buf := recording(t,
		Record{Seq: 1, Timestamp: t0},
		Record{Seq: 2, Timestamp: t0.Add(2 * time.Second)},
	)
	s := NewReaderSource(buf, Config{SpeedMultiplier: 2, Clock: clock})
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	defer s.Close()

	_, err := s.Read(ctx)
	require.NoError(t, err)

	got := make(chan pipeline.Frame, 1)
	go func() {
		f, err := s.Read(ctx)
		if err == nil {
			got <- f
		}
	}()

	require.Eventually(t, func() bool { return clock.Pending() == 1 }, 5*time.Second, time.Millisecond)
	clock.Advance(999 * time.Millisecond)
	select {
	case <-got:
		t.Fatal("frame released early")
	case <-time.After(20 * time.Millisecond):
	}
	clock.Advance(time.Millisecond)
	select {
	case f := <-got:
		assert.Equal(t, uint64(2), f.Seq)
	case <-time.After(5 * time.Second):
		t.Fatal("frame not released")
	}
}

func TestSourcePacingCancelled(t *testing.T) {
	clock := timeutil.NewMockClock(t0)
	buf := recording(t,
		Record{Seq: 1, Timestamp: t0},
		Record{Seq: 2, Timestamp: t0.Add(time.Hour)},
	)
	s := NewReaderSource(buf, Config{SpeedMultiplier: 1, Clock: clock})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Open(ctx))
	_, err := s.Read(ctx)
	require.NoError(t, err)

	cancel()
	_, err = s.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.jsonl")
	buf := recording(t, Record{Seq: 1}, Record{Seq: 2}, Record{Seq: 3})
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	frames := readAll(t, NewFileSource(path, Config{}))
	assert.Len(t, frames, 3)

	missing := NewFileSource(filepath.Join(t.TempDir(), "nope.jsonl"), Config{})
	assert.Error(t, missing.Open(context.Background()))
}

func TestDetectorEchoesFrame(t *testing.T) {
	set := posetest.FullBody(0.8)
	boxes := []fusion.DetectionBox{{Confidence: 0.7}}
	f := pipeline.Frame{Landmarks: set, Boxes: boxes}

	var d Detector
	got, err := d.DetectLandmarks(context.Background(), f)
	require.NoError(t, err)
	assert.Same(t, set, got)
	gotBoxes, err := d.DetectBoxes(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, boxes, gotBoxes)
}

func TestReplayThroughStream(t *testing.T) {
	var recs []Record
	for i := 0; i < 6; i++ {
		recs = append(recs, Record{Seq: uint64(i + 1), Width: 640, Height: 480, Landmarks: posetest.FullBody(0.9),
			Boxes: []fusion.DetectionBox{{XMax: 300, YMax: 400, Confidence: 0.9}}})
	}
	// Frames 5 and 6 fail the gate.
	recs[4].Boxes[0].Confidence = 0.2
	recs[5].Boxes = nil

	st, err := pipeline.NewStream(pipeline.StreamConfig{
		Exercise:  "squat",
		Source:    NewReaderSource(recording(t, recs...), Config{}),
		Landmarks: Detector{},
		Coarse:    Detector{},
	})
	require.NoError(t, err)
	require.NoError(t, st.Run(context.Background(), func(context.Context, pipeline.Output) error { return nil }))

	stats := st.Aggregator().Stats()
	assert.Equal(t, 6, stats.TotalFrames)
	assert.Equal(t, 4, stats.DetectedFrames)
}
