package rules

import (
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/posetest"
)

// Fixtures place the joints each rule reads so that the measured angles
// equal the requested values.

func arms(right, left float64) *pose.LandmarkSet {
	return posetest.New().
		At(pose.RightShoulder, 0.4, 0.3).At(pose.RightElbow, 0.4, 0.45).
		Bend(pose.RightShoulder, pose.RightElbow, pose.RightWrist, right).
		At(pose.LeftShoulder, 0.6, 0.3).At(pose.LeftElbow, 0.6, 0.45).
		BendCW(pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, left).
		Set()
}

func pushUpPose(elbow, body float64) *pose.LandmarkSet {
	return posetest.New().
		At(pose.RightShoulder, 0.3, 0.4).At(pose.RightElbow, 0.3, 0.55).
		Bend(pose.RightShoulder, pose.RightElbow, pose.RightWrist, elbow).
		At(pose.RightHip, 0.55, 0.42).
		Bend(pose.RightShoulder, pose.RightHip, pose.RightKnee, body).
		Set()
}

func plankPose(left, right float64) *pose.LandmarkSet {
	return posetest.New().
		At(pose.LeftShoulder, 0.2, 0.4).At(pose.LeftHip, 0.5, 0.42).
		Bend(pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle, left).
		At(pose.RightShoulder, 0.2, 0.45).At(pose.RightHip, 0.5, 0.47).
		Bend(pose.RightShoulder, pose.RightHip, pose.RightAnkle, right).
		Set()
}

// knees builds both legs from vertical thighs. The right shin turns toward
// +x and the left toward -x, so ankles splay outward.
func knees(leftX, rightX, left, right float64) *posetest.Builder {
	return posetest.New().
		At(pose.LeftHip, leftX, 0.4).At(pose.LeftKnee, leftX, 0.55).
		BendCW(pose.LeftHip, pose.LeftKnee, pose.LeftAnkle, left).
		At(pose.RightHip, rightX, 0.4).At(pose.RightKnee, rightX, 0.55).
		Bend(pose.RightHip, pose.RightKnee, pose.RightAnkle, right)
}

func crunchPose(upper, knee float64) *pose.LandmarkSet {
	return posetest.New().
		At(pose.LeftHip, 0.5, 0.6).At(pose.LeftShoulder, 0.3, 0.5).
		Bend(pose.LeftHip, pose.LeftShoulder, pose.Nose, upper).
		Bend(pose.LeftShoulder, pose.LeftHip, pose.LeftKnee, knee).
		Set()
}

func pilatesPose(hip, knee float64) *pose.LandmarkSet {
	return posetest.New().
		At(pose.LeftShoulder, 0.5, 0.2).At(pose.LeftHip, 0.5, 0.5).
		Bend(pose.LeftShoulder, pose.LeftHip, pose.LeftKnee, hip).
		Bend(pose.LeftHip, pose.LeftKnee, pose.LeftAnkle, knee).
		Set()
}

func alignPose(shoulderHip, hipAnkle float64) *pose.LandmarkSet {
	return posetest.New().
		At(pose.LeftShoulder, 0.5, 0.2).
		At(pose.LeftHip, 0.5+shoulderHip, 0.5).
		At(pose.LeftAnkle, 0.5+shoulderHip+hipAnkle, 0.9).
		Set()
}

// raisedArm puts the elbow above (raised) or below the shoulder and bends
// the forearm by deg.
func raisedArm(deg float64, raised bool) *pose.LandmarkSet {
	elbowY := 0.35
	if !raised {
		elbowY = 0.65
	}
	return posetest.New().
		At(pose.RightShoulder, 0.5, 0.5).At(pose.RightElbow, 0.5, elbowY).
		Bend(pose.RightShoulder, pose.RightElbow, pose.RightWrist, deg).
		Set()
}

// rowPose places the elbow by its lean angle at the hip, then the wrist by
// the elbow angle.
func rowPose(left bool, elbow, lean float64) *pose.LandmarkSet {
	sh, el, wr, hip := pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightHip
	if left {
		sh, el, wr, hip = pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.LeftHip
	}
	return posetest.New().
		At(sh, 0.5, 0.3).At(hip, 0.5, 0.6).
		Bend(sh, hip, el, lean).
		Bend(sh, el, wr, elbow).
		Set()
}

func tBarPose(elbow, lean float64) *pose.LandmarkSet {
	return posetest.New().
		At(pose.RightShoulder, 0.4, 0.3).At(pose.RightElbow, 0.4, 0.45).
		Bend(pose.RightShoulder, pose.RightElbow, pose.RightWrist, elbow).
		At(pose.RightHip, 0.6, 0.5).
		Bend(pose.RightShoulder, pose.RightHip, pose.RightKnee, lean).
		Set()
}

func rightKnee(deg float64) *pose.LandmarkSet {
	return posetest.New().
		At(pose.RightHip, 0.5, 0.5).At(pose.RightKnee, 0.5, 0.65).
		Bend(pose.RightHip, pose.RightKnee, pose.RightAnkle, deg).
		Set()
}
