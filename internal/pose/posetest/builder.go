// Package posetest builds synthetic landmark sets for tests.
package posetest

import (
	"math"

	"github.com/banshee-data/pose.report/internal/pose"
)

// SegmentLength is the limb length used when Bend places a joint.
const SegmentLength = 0.15

// Builder assembles a LandmarkSet joint by joint. Joints default to
// visibility 0.9.
type Builder struct {
	set *pose.LandmarkSet
}

// New returns an empty builder.
func New() *Builder { return &Builder{set: &pose.LandmarkSet{}} }

// At places j at (x, y).
func (b *Builder) At(j pose.Joint, x, y float64) *Builder {
	b.set.Set(j, pose.Landmark{X: x, Y: y, Visibility: 0.9})
	return b
}

// Landmark stores lm verbatim.
func (b *Builder) Landmark(j pose.Joint, lm pose.Landmark) *Builder {
	b.set.Set(j, lm)
	return b
}

// Visibility overrides the visibility of an already placed joint.
func (b *Builder) Visibility(j pose.Joint, v float64) *Builder {
	lm := b.set.At(j)
	lm.Visibility = v
	b.set.Set(j, lm)
	return b
}

// Bend places c so that the angle a-vertex-c equals deg. a and vertex must
// already be placed. The ray vertex→a is rotated by +deg in frame
// coordinates, which turns an upward ray toward +x.
func (b *Builder) Bend(a, vertex, c pose.Joint, deg float64) *Builder {
	return b.bend(a, vertex, c, deg, 1)
}

// BendCW is Bend rotating the other way, turning an upward ray toward -x.
func (b *Builder) BendCW(a, vertex, c pose.Joint, deg float64) *Builder {
	return b.bend(a, vertex, c, deg, -1)
}

func (b *Builder) bend(a, vertex, c pose.Joint, deg, dir float64) *Builder {
	pa, pv := b.set.At(a), b.set.At(vertex)
	dx, dy := pa.X-pv.X, pa.Y-pv.Y
	n := math.Hypot(dx, dy)
	if n == 0 {
		n = 1
	}
	ux, uy := dx/n, dy/n
	theta := dir * deg * math.Pi / 180
	rx := ux*math.Cos(theta) - uy*math.Sin(theta)
	ry := ux*math.Sin(theta) + uy*math.Cos(theta)
	return b.At(c, pv.X+SegmentLength*rx, pv.Y+SegmentLength*ry)
}

// Without drops joints from the set built so far.
func (b *Builder) Without(js ...pose.Joint) *Builder {
	next := &pose.LandmarkSet{}
	for _, j := range b.set.Joints() {
		skip := false
		for _, d := range js {
			if d == j {
				skip = true
			}
		}
		if !skip {
			next.Set(j, b.set.At(j))
		}
	}
	b.set = next
	return b
}

// Set returns a copy of the set built so far.
func (b *Builder) Set() *pose.LandmarkSet {
	out := *b.set
	return &out
}

// FullBody returns a standing figure with every primary joint and the nose
// placed, all at the given visibility.
func FullBody(visibility float64) *pose.LandmarkSet {
	b := New().
		At(pose.Nose, 0.5, 0.1).
		At(pose.LeftShoulder, 0.4, 0.25).At(pose.RightShoulder, 0.6, 0.25).
		At(pose.LeftElbow, 0.38, 0.4).At(pose.RightElbow, 0.62, 0.4).
		At(pose.LeftWrist, 0.37, 0.55).At(pose.RightWrist, 0.63, 0.55).
		At(pose.LeftHip, 0.45, 0.55).At(pose.RightHip, 0.55, 0.55).
		At(pose.LeftKnee, 0.45, 0.72).At(pose.RightKnee, 0.55, 0.72).
		At(pose.LeftAnkle, 0.45, 0.9).At(pose.RightAnkle, 0.55, 0.9)
	for _, j := range b.set.Joints() {
		b.Visibility(j, visibility)
	}
	return b.Set()
}
