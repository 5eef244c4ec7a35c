// Package capture opens a camera or video file as a frame source. The
// OpenCV backend is compiled only with the opencv build tag; without it
// Open reports ErrUnavailable and deployments use replay instead.
package capture

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/banshee-data/pose.report/internal/monitoring"
)

var logf = monitoring.Prefixed("capture")

// ErrUnavailable is returned by Open in builds without OpenCV.
var ErrUnavailable = errors.New("capture: built without opencv support (rebuild with -tags opencv)")

// Config selects the capture device.
type Config struct {
	// Source is a camera index ("0") or a video file path.
	Source string
	// Mirror flips frames horizontally, as a selfie view.
	Mirror bool
	// Width and Height request a capture size; zero keeps the device default.
	Width, Height int
}

// Device reports whether src names a camera and, if so, its index. A path
// that exists on disk is always treated as a file.
func Device(src string) (int, bool) {
	src = strings.TrimSpace(src)
	if src == "" {
		return 0, true
	}
	if _, err := os.Stat(src); err == nil {
		return 0, false
	}
	id, err := strconv.Atoi(src)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
