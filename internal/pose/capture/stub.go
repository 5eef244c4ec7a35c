//go:build !opencv

package capture

import "github.com/banshee-data/pose.report/internal/pose/pipeline"

// Open reports ErrUnavailable; this build has no OpenCV backend.
func Open(cfg Config) (pipeline.FrameSource, error) {
	logf("capture %q requested without opencv support", cfg.Source)
	return nil, ErrUnavailable
}
