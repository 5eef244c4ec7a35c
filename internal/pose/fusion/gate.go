// Package fusion decides whether a coarse detector's output is trusted
// enough to run landmark classification on a frame.
package fusion

// DefaultThreshold is the minimum confidence a box must exceed.
const DefaultThreshold = 0.5

// DetectionBox is one coarse detector candidate in pixel coordinates.
type DetectionBox struct {
	XMin       float64 `json:"x_min" msgpack:"x_min"`
	YMin       float64 `json:"y_min" msgpack:"y_min"`
	XMax       float64 `json:"x_max" msgpack:"x_max"`
	YMax       float64 `json:"y_max" msgpack:"y_max"`
	Confidence float64 `json:"confidence" msgpack:"confidence"`
	ClassLabel string  `json:"class_label" msgpack:"class_label"`
}

// Width returns the box width, never negative.
func (b DetectionBox) Width() float64 { return max(b.XMax-b.XMin, 0) }

// Height returns the box height, never negative.
func (b DetectionBox) Height() float64 { return max(b.YMax-b.YMin, 0) }

// Gate selects the first box whose confidence is strictly above Threshold.
// Boxes are considered in the detector's native order; there is no
// re-ranking.
type Gate struct {
	Threshold float64
}

// NewGate returns a gate at threshold, or DefaultThreshold when threshold
// is not positive.
func NewGate(threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{Threshold: threshold}
}

// Select returns the first qualifying box.
func (g *Gate) Select(boxes []DetectionBox) (DetectionBox, bool) {
	for _, b := range boxes {
		if b.Confidence > g.Threshold {
			return b, true
		}
	}
	return DetectionBox{}, false
}
