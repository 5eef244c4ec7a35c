//go:build opencv

package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/banshee-data/pose.report/internal/pose/pipeline"
)

// Source reads frames from an OpenCV VideoCapture.
type Source struct {
	cfg Config

	mu      sync.Mutex
	capture *gocv.VideoCapture
	mat     gocv.Mat
	seq     uint64
}

// Open returns a frame source for cfg. The device itself is opened by
// Source.Open.
func Open(cfg Config) (pipeline.FrameSource, error) {
	return &Source{cfg: cfg}, nil
}

func (s *Source) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture != nil {
		return errors.New("capture already open")
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	if id, ok := Device(s.cfg.Source); ok {
		vc, err = gocv.VideoCaptureDevice(id)
	} else {
		vc, err = gocv.VideoCaptureFile(s.cfg.Source)
	}
	if err != nil {
		if vc != nil {
			vc.Close()
		}
		return fmt.Errorf("open capture %q: %w", s.cfg.Source, err)
	}
	if s.cfg.Width > 0 && s.cfg.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.Height))
	}
	s.capture = vc
	s.mat = gocv.NewMat()
	logf("opened %q", s.cfg.Source)
	return nil
}

// Read grabs the next frame. An empty read ends the stream with io.EOF.
func (s *Source) Read(ctx context.Context) (pipeline.Frame, error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return pipeline.Frame{}, errors.New("capture not open")
	}
	if ok := s.capture.Read(&s.mat); !ok || s.mat.Empty() {
		return pipeline.Frame{}, io.EOF
	}
	if s.cfg.Mirror {
		gocv.Flip(s.mat, &s.mat, 1)
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return pipeline.Frame{}, fmt.Errorf("convert frame: %w", err)
	}
	s.seq++
	b := img.Bounds()
	return pipeline.Frame{
		Seq:       s.seq,
		Timestamp: time.Now(),
		Width:     b.Dx(),
		Height:    b.Dy(),
		Image:     img,
	}, nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return nil
	}
	s.mat.Close()
	err := s.capture.Close()
	s.capture = nil
	logf("closed %q after %d frames", s.cfg.Source, s.seq)
	return err
}
