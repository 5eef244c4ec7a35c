package pose

import "math"

// DefaultVisibilityThreshold is the visibility a joint needs before its
// coordinates are considered reliably tracked.
const DefaultVisibilityThreshold = 0.65

// Angle returns the interior angle at vertex b formed by the rays b→a and
// b→c, in degrees within [0, 180]. Only the planar coordinates are used.
func Angle(a, b, c Landmark) float64 {
	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	deg := math.Abs(radians * 180.0 / math.Pi)
	if deg > 180.0 {
		deg = 360.0 - deg
	}
	return deg
}

// Distance is the planar Euclidean distance between two landmarks.
func Distance(a, b Landmark) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// HorizontalOffset is |a.x - b.x|.
func HorizontalOffset(a, b Landmark) float64 {
	return math.Abs(a.X - b.X)
}

// IsVisible reports whether lm's visibility is strictly above threshold.
// A threshold <= 0 selects DefaultVisibilityThreshold.
func IsVisible(lm Landmark, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultVisibilityThreshold
	}
	return lm.Visibility > threshold
}
