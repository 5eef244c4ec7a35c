package pose

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Joint identifies a body landmark. Values follow the 33-point BlazePose
// topology so detector output can be indexed without translation.
type Joint int

const (
	Nose Joint = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex

	// NumJoints is the size of a full landmark set.
	NumJoints
)

var jointNames = [NumJoints]string{
	"nose", "left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear", "mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_pinky", "right_pinky",
	"left_index", "right_index", "left_thumb", "right_thumb",
	"left_hip", "right_hip", "left_knee", "right_knee",
	"left_ankle", "right_ankle", "left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// PrimaryJoints are the twelve limb joints used for frame quality scoring.
var PrimaryJoints = []Joint{
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
}

func (j Joint) String() string {
	if j < 0 || j >= NumJoints {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// Valid reports whether j is inside the landmark topology.
func (j Joint) Valid() bool { return j >= 0 && j < NumJoints }

// ParseJoint resolves a snake_case joint name.
func ParseJoint(name string) (Joint, error) {
	for i, n := range jointNames {
		if n == name {
			return Joint(i), nil
		}
	}
	return 0, fmt.Errorf("unknown joint %q", name)
}

// Landmark is a single tracked joint in normalized frame coordinates.
// X and Y are fractions of frame width and height with Y growing downward.
type Landmark struct {
	X          float64  `json:"x" msgpack:"x"`
	Y          float64  `json:"y" msgpack:"y"`
	Z          float64  `json:"z" msgpack:"z"`
	Visibility float64  `json:"visibility" msgpack:"visibility"`
	Presence   *float64 `json:"presence,omitempty" msgpack:"presence,omitempty"`
}

// Finite reports whether the planar coordinates are usable.
func (l Landmark) Finite() bool {
	return !math.IsNaN(l.X) && !math.IsInf(l.X, 0) &&
		!math.IsNaN(l.Y) && !math.IsInf(l.Y, 0)
}

// LandmarkSet holds at most one landmark per joint for a single frame.
// The zero value is an empty set.
type LandmarkSet struct {
	points  [NumJoints]Landmark
	present [NumJoints]bool
}

// NewLandmarkSet builds a set from a joint keyed map.
func NewLandmarkSet(m map[Joint]Landmark) *LandmarkSet {
	s := &LandmarkSet{}
	for j, lm := range m {
		s.Set(j, lm)
	}
	return s
}

// Set stores lm for joint j. Out of range joints are ignored.
func (s *LandmarkSet) Set(j Joint, lm Landmark) {
	if !j.Valid() {
		return
	}
	s.points[j] = lm
	s.present[j] = true
}

// Get returns the landmark for j and whether it was reported.
func (s *LandmarkSet) Get(j Joint) (Landmark, bool) {
	if s == nil || !j.Valid() || !s.present[j] {
		return Landmark{}, false
	}
	return s.points[j], true
}

// At returns the landmark for j, or the zero Landmark when absent.
// Rules call At only after the evaluator has checked their joints.
func (s *LandmarkSet) At(j Joint) Landmark {
	lm, _ := s.Get(j)
	return lm
}

// Has reports whether every joint in js is present with finite coordinates.
func (s *LandmarkSet) Has(js ...Joint) bool {
	for _, j := range js {
		lm, ok := s.Get(j)
		if !ok || !lm.Finite() {
			return false
		}
	}
	return true
}

// Missing lists the joints of js that are absent or non-finite.
func (s *LandmarkSet) Missing(js ...Joint) []Joint {
	var out []Joint
	for _, j := range js {
		lm, ok := s.Get(j)
		if !ok || !lm.Finite() {
			out = append(out, j)
		}
	}
	return out
}

// Len returns the number of joints present.
func (s *LandmarkSet) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, p := range s.present {
		if p {
			n++
		}
	}
	return n
}

// Joints returns the present joints in topology order.
func (s *LandmarkSet) Joints() []Joint {
	if s == nil {
		return nil
	}
	out := make([]Joint, 0, NumJoints)
	for j := Joint(0); j < NumJoints; j++ {
		if s.present[j] {
			out = append(out, j)
		}
	}
	return out
}

// Bounds returns the normalized extent of all finite landmarks.
func (s *LandmarkSet) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, j := range s.Joints() {
		lm := s.points[j]
		if !lm.Finite() {
			continue
		}
		ok = true
		minX = math.Min(minX, lm.X)
		minY = math.Min(minY, lm.Y)
		maxX = math.Max(maxX, lm.X)
		maxY = math.Max(maxY, lm.Y)
	}
	if !ok {
		return 0, 0, 0, 0, false
	}
	return minX, minY, maxX, maxY, true
}

// MarshalJSON encodes the set as an object keyed by joint name.
func (s *LandmarkSet) MarshalJSON() ([]byte, error) {
	m := make(map[string]Landmark, s.Len())
	for _, j := range s.Joints() {
		m[j.String()] = s.points[j]
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by joint name. Unknown names are
// rejected so a typo in a replay file does not silently drop a joint.
func (s *LandmarkSet) UnmarshalJSON(data []byte) error {
	var m map[string]Landmark
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*s = LandmarkSet{}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		j, err := ParseJoint(name)
		if err != nil {
			return err
		}
		s.Set(j, m[name])
	}
	return nil
}
