package pipeline

import (
	"context"
	"image"
	"image/color"
	"time"

	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/accuracy"
	"github.com/banshee-data/pose.report/internal/pose/fusion"
)

// Frame is one captured image plus anything a replay already knows about
// it. Landmarks and Boxes are only set by sources that carry precomputed
// detections.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Image     image.Image
	Width     int
	Height    int
	Landmarks *pose.LandmarkSet
	Boxes     []fusion.DetectionBox
}

// Size returns the frame dimensions in pixels.
func (f Frame) Size() (w, h int) {
	if f.Image != nil {
		b := f.Image.Bounds()
		return b.Dx(), b.Dy()
	}
	return f.Width, f.Height
}

// FrameSource is a scoped capture resource. Open is called once before the
// first Read and Close exactly once after the last. Read returns io.EOF
// when the source is exhausted and may block until ctx is cancelled.
type FrameSource interface {
	Open(ctx context.Context) error
	Read(ctx context.Context) (Frame, error)
	Close() error
}

// LandmarkDetector returns the landmark set for a frame, or nil when no
// person was found.
type LandmarkDetector interface {
	DetectLandmarks(ctx context.Context, f Frame) (*pose.LandmarkSet, error)
}

// CoarseDetector returns candidate boxes in its native order.
type CoarseDetector interface {
	DetectBoxes(ctx context.Context, f Frame) ([]fusion.DetectionBox, error)
}

// Evaluator classifies one landmark set. *rules.Evaluator satisfies it.
type Evaluator interface {
	Evaluate(s *pose.LandmarkSet, exercise string) pose.Verdict
}

// Annotator renders the overlay onto a frame and encodes it.
type Annotator interface {
	Annotate(f Frame, o Overlay) ([]byte, error)
}

// Recorder persists throttled events. *sink.Recorder satisfies it.
type Recorder interface {
	MaybeSave(ctx context.Context, exercise string, v pose.Verdict, sample accuracy.Sample, now time.Time) bool
}

// Overlay colors.
var (
	ColorCorrect     = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	ColorIncorrect   = color.RGBA{R: 220, G: 0, B: 0, A: 255}
	ColorNotDetected = color.RGBA{R: 230, G: 160, B: 0, A: 255}
)

// ColorFor picks the overlay color for a verdict.
func ColorFor(v pose.Verdict) color.RGBA {
	switch {
	case !v.Detected():
		return ColorNotDetected
	case v.Correct:
		return ColorCorrect
	}
	return ColorIncorrect
}

// BoundingBox is the box drawn around the subject, in pixels.
type BoundingBox struct {
	XMin       int     `json:"x_min"`
	YMin       int     `json:"y_min"`
	XMax       int     `json:"x_max"`
	YMax       int     `json:"y_max"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Overlay is the structured metadata drawn onto, and emitted with, each
// frame.
type Overlay struct {
	StreamID  string            `json:"stream_id"`
	Seq       uint64            `json:"seq"`
	Exercise  string            `json:"exercise"`
	Verdict   pose.Verdict      `json:"verdict"`
	Color     color.RGBA        `json:"-"`
	Box       *BoundingBox      `json:"box,omitempty"`
	Landmarks *pose.LandmarkSet `json:"-"`
	Sample    *accuracy.Sample  `json:"sample,omitempty"`
	Stats     accuracy.Stats    `json:"stats"`
	Saved     bool              `json:"saved"`
}

// Output is what a stream emits per cycle. Image is nil when no annotator
// is configured or annotation failed.
type Output struct {
	Frame   Frame
	Image   []byte
	Overlay Overlay
}

// EmitFunc delivers one output to the transport. Returning an error ends
// the stream.
type EmitFunc func(ctx context.Context, out Output) error
