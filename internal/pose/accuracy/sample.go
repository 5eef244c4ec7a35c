package accuracy

import (
	"math"

	"github.com/banshee-data/pose.report/internal/pose"
)

// Weights of the frame accuracy composite.
const (
	VisibilityWeight  = 0.4
	PresenceWeight    = 0.4
	QualityWeight     = 0.2
	PresenceScale     = 1.2 // presence estimate from visibility when none is reported
	QualityVisibility = 0.5
)

// Sample scores how trustworthy one frame's landmark detection looks.
//
// FrameAccuracy is a heuristic composite of the other fields. It is not a
// calibrated probability and should only be compared with other frames
// scored the same way.
type Sample struct {
	DetectionConfidence float64 `json:"detection_confidence"`
	AvgVisibility       float64 `json:"avg_visibility"`
	LandmarkQuality     float64 `json:"landmark_quality"`
	FrameAccuracy       float64 `json:"frame_accuracy"`
}

// SampleFrom scores s over the twelve primary limb joints. Absent joints
// count as zero visibility and presence.
func SampleFrom(s *pose.LandmarkSet) Sample {
	var visSum, presSum float64
	good := 0
	for _, j := range pose.PrimaryJoints {
		lm, ok := s.Get(j)
		if !ok {
			continue
		}
		vis := finiteOrZero(lm.Visibility)
		visSum += vis
		if lm.Presence != nil {
			presSum += finiteOrZero(*lm.Presence)
		} else {
			presSum += math.Min(vis*PresenceScale, 1.0)
		}
		if vis > QualityVisibility {
			good++
		}
	}
	n := float64(len(pose.PrimaryJoints))
	avgVis := visSum / n
	avgPres := presSum / n
	quality := float64(good) / n
	return Sample{
		DetectionConfidence: avgPres,
		AvgVisibility:       avgVis,
		LandmarkQuality:     quality,
		FrameAccuracy:       VisibilityWeight*avgVis + PresenceWeight*avgPres + QualityWeight*quality,
	}
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
