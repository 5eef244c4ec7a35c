// Package replay reads recorded sessions of precomputed detections so the
// evaluation loop can run without a camera or model.
//
// A recording is JSON Lines, one frame per line:
//
//	{"seq":1,"timestamp":"2026-03-01T09:00:00Z","width":640,"height":480,
//	 "landmarks":{"left_hip":{"x":0.45,"y":0.55,"z":0,"visibility":0.9}},
//	 "boxes":[{"x_min":10,"y_min":20,"x_max":300,"y_max":460,"confidence":0.8,"class_label":"person"}]}
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/fusion"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

var logf = monitoring.Prefixed("replay")

// maxLine bounds a single recorded frame.
const maxLine = 4 << 20

// Record is one line of a recording.
type Record struct {
	Seq       uint64                `json:"seq"`
	Timestamp time.Time             `json:"timestamp"`
	Width     int                   `json:"width"`
	Height    int                   `json:"height"`
	Landmarks *pose.LandmarkSet     `json:"landmarks,omitempty"`
	Boxes     []fusion.DetectionBox `json:"boxes,omitempty"`
}

// Config controls playback.
type Config struct {
	// SpeedMultiplier paces frames by their recorded timestamps. 1.0 is
	// real time, 2.0 twice as fast. Zero or less replays without waiting.
	SpeedMultiplier float64
	// Blank attaches an empty RGBA image of the recorded size to each frame
	// so annotators have something to draw on.
	Blank bool
	Clock timeutil.Clock
}

// Source plays a recording as a pipeline.FrameSource.
type Source struct {
	cfg  Config
	open func() (io.ReadCloser, error)

	rc      io.ReadCloser
	scanner *bufio.Scanner
	line    int
	last    time.Time
}

// NewFileSource replays the recording at path.
func NewFileSource(path string, cfg Config) *Source {
	return newSource(func() (io.ReadCloser, error) { return os.Open(path) }, cfg)
}

// NewReaderSource replays r. Close does not close r.
func NewReaderSource(r io.Reader, cfg Config) *Source {
	return newSource(func() (io.ReadCloser, error) { return io.NopCloser(r), nil }, cfg)
}

func newSource(open func() (io.ReadCloser, error), cfg Config) *Source {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Source{cfg: cfg, open: open}
}

func (s *Source) Open(ctx context.Context) error {
	if s.rc != nil {
		return errors.New("replay source already open")
	}
	rc, err := s.open()
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	s.rc = rc
	s.scanner = bufio.NewScanner(rc)
	s.scanner.Buffer(make([]byte, 64*1024), maxLine)
	return nil
}

// Read returns the next frame. Blank lines are skipped; a malformed line
// fails the read.
func (s *Source) Read(ctx context.Context) (pipeline.Frame, error) {
	if s.scanner == nil {
		return pipeline.Frame{}, errors.New("replay source not open")
	}
	for {
		if err := ctx.Err(); err != nil {
			return pipeline.Frame{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return pipeline.Frame{}, fmt.Errorf("scan recording: %w", err)
			}
			return pipeline.Frame{}, io.EOF
		}
		s.line++
		b := s.scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(b, &rec); err != nil {
			return pipeline.Frame{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		if err := s.pace(ctx, rec.Timestamp); err != nil {
			return pipeline.Frame{}, err
		}
		return s.frame(rec), nil
	}
}

func (s *Source) pace(ctx context.Context, ts time.Time) error {
	if s.cfg.SpeedMultiplier <= 0 || ts.IsZero() {
		return nil
	}
	if !s.last.IsZero() {
		delay := time.Duration(float64(ts.Sub(s.last)) / s.cfg.SpeedMultiplier)
		if err := timeutil.Wait(ctx, s.cfg.Clock, delay); err != nil {
			return err
		}
	}
	s.last = ts
	return nil
}

func (s *Source) frame(rec Record) pipeline.Frame {
	f := pipeline.Frame{
		Seq:       rec.Seq,
		Timestamp: rec.Timestamp,
		Width:     rec.Width,
		Height:    rec.Height,
		Landmarks: rec.Landmarks,
		Boxes:     rec.Boxes,
	}
	if f.Seq == 0 {
		f.Seq = uint64(s.line)
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = s.cfg.Clock.Now()
	}
	if s.cfg.Blank && rec.Width > 0 && rec.Height > 0 {
		f.Image = image.NewRGBA(image.Rect(0, 0, rec.Width, rec.Height))
	}
	return f
}

func (s *Source) Close() error {
	if s.rc == nil {
		return nil
	}
	err := s.rc.Close()
	s.rc, s.scanner = nil, nil
	logf("closed after %d lines", s.line)
	return err
}

// Detector answers both detector stages from the detections a replayed
// frame already carries.
type Detector struct{}

func (Detector) DetectLandmarks(ctx context.Context, f pipeline.Frame) (*pose.LandmarkSet, error) {
	return f.Landmarks, nil
}

func (Detector) DetectBoxes(ctx context.Context, f pipeline.Frame) ([]fusion.DetectionBox, error) {
	return f.Boxes, nil
}

// Writer appends records to a recording.
type Writer struct {
	enc *json.Encoder
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer { return &Writer{enc: json.NewEncoder(w)} }

// Write appends one frame.
func (w *Writer) Write(rec Record) error { return w.enc.Encode(rec) }
