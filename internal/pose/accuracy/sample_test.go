package accuracy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/posetest"
)

func TestSampleFrom_EstimatedPresence(t *testing.T) {
	s := SampleFrom(posetest.FullBody(0.8))
	// presence = min(0.8*1.2, 1) = 0.96, every joint above 0.5
	assert.InDelta(t, 0.8, s.AvgVisibility, 1e-9)
	assert.InDelta(t, 0.96, s.DetectionConfidence, 1e-9)
	assert.InDelta(t, 1.0, s.LandmarkQuality, 1e-9)
	assert.InDelta(t, 0.4*0.8+0.4*0.96+0.2*1.0, s.FrameAccuracy, 1e-9)
}

func TestSampleFrom_PresenceCapped(t *testing.T) {
	s := SampleFrom(posetest.FullBody(0.95))
	assert.InDelta(t, 1.0, s.DetectionConfidence, 1e-9)
}

func TestSampleFrom_NativePresence(t *testing.T) {
	b := posetest.New()
	presence := 0.5
	for _, j := range pose.PrimaryJoints {
		b.Landmark(j, pose.Landmark{X: 0.5, Y: 0.5, Visibility: 0.4, Presence: &presence})
	}
	s := SampleFrom(b.Set())
	assert.InDelta(t, 0.4, s.AvgVisibility, 1e-9)
	assert.InDelta(t, 0.5, s.DetectionConfidence, 1e-9)
	assert.InDelta(t, 0.0, s.LandmarkQuality, 1e-9)
	assert.InDelta(t, 0.4*0.4+0.4*0.5, s.FrameAccuracy, 1e-9)
}

func TestSampleFrom_MissingJointsCountAsZero(t *testing.T) {
	set := posetest.New().
		At(pose.LeftShoulder, 0.4, 0.3).Visibility(pose.LeftShoulder, 0.6).
		At(pose.RightShoulder, 0.6, 0.3).Visibility(pose.RightShoulder, 0.6).
		Set()
	s := SampleFrom(set)
	assert.InDelta(t, 1.2/12, s.AvgVisibility, 1e-9)
	assert.InDelta(t, 2.0/12, s.LandmarkQuality, 1e-9)
}

func TestSampleFrom_Empty(t *testing.T) {
	assert.Equal(t, Sample{}, SampleFrom(nil))
}
