package rules

import "github.com/banshee-data/pose.report/internal/pose"

// Arm and core thresholds (degrees unless noted).
const (
	ArmPressElbowMin = 80.0
	ArmPressElbowMax = 100.0

	PushUpElbowMin = 70.0
	PushUpElbowMax = 110.0
	PushUpBodyMin  = 160.0
	PushUpBodyMax  = 190.0

	PlankBodyMin = 160.0
	PlankBodyMax = 200.0

	WarriorBentMin     = 80.0
	WarriorBentMax     = 110.0
	WarriorStraightMin = 160.0

	CrunchUpperMax = 160.0
	CrunchKneeMax  = 130.0

	BicepCurlElbowMax = 90.0

	PilatesMin = 160.0
	PilatesMax = 200.0

	AlignOffsetMax = 0.1 // normalized x units
)

func armRules() []Rule {
	return []Rule{
		{
			Name: "arm-press", Display: "Arm Press", Category: CategoryArms,
			Aliases: []string{"Arm Press"},
			Joints:  []pose.Joint{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.RightShoulder, pose.RightElbow, pose.RightWrist},
			Eval:    armPress,
		},
		{
			Name: "push-up", Display: "Push Up", Category: CategoryArms,
			Aliases: []string{"Push up", "pushup"},
			Joints:  []pose.Joint{pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightHip, pose.RightKnee},
			Eval:    pushUp,
		},
		{
			Name: "plank", Display: "Plank", Category: CategoryArms,
			Joints: []pose.Joint{pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle, pose.RightShoulder, pose.RightHip, pose.RightAnkle},
			Eval:   plank,
		},
		{
			Name: "warrior-pose", Display: "Warrior Pose", Category: CategoryArms,
			Joints: []pose.Joint{pose.LeftHip, pose.LeftKnee, pose.LeftAnkle, pose.RightHip, pose.RightKnee, pose.RightAnkle},
			Eval:   warriorPose,
		},
		{
			Name: "crunch", Display: "Crunch", Category: CategoryArms,
			Joints: []pose.Joint{pose.Nose, pose.LeftShoulder, pose.LeftHip, pose.LeftKnee},
			Eval:   crunch,
		},
		{
			Name: "bicep-curl", Display: "Bicep Curl", Category: CategoryArms,
			Joints: []pose.Joint{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.RightShoulder, pose.RightElbow, pose.RightWrist},
			Eval:   bicepCurl,
		},
		{
			Name: "pilates", Display: "Pilates", Category: CategoryArms,
			Joints: []pose.Joint{pose.LeftShoulder, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle},
			Eval:   pilates,
		},
		{
			Name: "align", Display: "Align", Category: CategoryArms,
			Joints: []pose.Joint{pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle},
			Eval:   align,
		},
	}
}

func armPress(s *pose.LandmarkSet) pose.Verdict {
	right := angle(s, pose.RightShoulder, pose.RightElbow, pose.RightWrist)
	left := angle(s, pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist)
	if within(right, ArmPressElbowMin, ArmPressElbowMax) && within(left, ArmPressElbowMin, ArmPressElbowMax) {
		return pose.Correct("Arm Press", "")
	}
	detail := ""
	switch {
	case right < ArmPressElbowMin || left < ArmPressElbowMin:
		detail = "Open the elbows wider (angle too narrow)"
	case right > ArmPressElbowMax || left > ArmPressElbowMax:
		detail = "Bend the elbows more (angle too wide)"
	}
	return pose.Incorrect("Arm Press", detail)
}

func pushUp(s *pose.LandmarkSet) pose.Verdict {
	elbow := angle(s, pose.RightShoulder, pose.RightElbow, pose.RightWrist)
	body := angle(s, pose.RightShoulder, pose.RightHip, pose.RightKnee)
	switch {
	case elbow < PushUpElbowMin:
		return pose.Incorrect("Push Up", "Too low, raise the body")
	case elbow > PushUpElbowMax:
		return pose.Incorrect("Push Up", "Too high, lower the body")
	case !within(body, PushUpBodyMin, PushUpBodyMax):
		return pose.Incorrect("Push Up", "Keep the body straight, do not bend at the hips")
	}
	return pose.Correct("Push Up", "")
}

func plank(s *pose.LandmarkSet) pose.Verdict {
	left := angle(s, pose.LeftShoulder, pose.LeftHip, pose.LeftAnkle)
	right := angle(s, pose.RightShoulder, pose.RightHip, pose.RightAnkle)
	if within(left, PlankBodyMin, PlankBodyMax) && within(right, PlankBodyMin, PlankBodyMax) {
		return pose.Correct("Plank", "")
	}
	if left < PlankBodyMin || right < PlankBodyMin {
		return pose.Incorrect("Plank", "Hips too low, lift the hips")
	}
	return pose.Incorrect("Plank", "Hips too high, lower the hips")
}

func warriorPose(s *pose.LandmarkSet) pose.Verdict {
	left := angle(s, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle)
	right := angle(s, pose.RightHip, pose.RightKnee, pose.RightAnkle)
	bent := func(v float64) bool { return within(v, WarriorBentMin, WarriorBentMax) }
	if (bent(left) && right >= WarriorStraightMin) || (bent(right) && left >= WarriorStraightMin) {
		return pose.Correct("Warrior Pose", "")
	}
	return pose.Incorrect("Warrior Pose", "Bend one knee to about 90° and keep the other leg straight")
}

func crunch(s *pose.LandmarkSet) pose.Verdict {
	upper := angle(s, pose.Nose, pose.LeftShoulder, pose.LeftHip)
	knee := angle(s, pose.LeftShoulder, pose.LeftHip, pose.LeftKnee)
	if upper < CrunchUpperMax && knee < CrunchKneeMax {
		return pose.Correct("Crunch", "")
	}
	if knee >= CrunchKneeMax {
		return pose.Incorrect("Crunch", "Bend the knees more")
	}
	return pose.Incorrect("Crunch", "Lift the upper body higher")
}

func bicepCurl(s *pose.LandmarkSet) pose.Verdict {
	right := angle(s, pose.RightShoulder, pose.RightElbow, pose.RightWrist)
	left := angle(s, pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist)
	if right < BicepCurlElbowMax || left < BicepCurlElbowMax {
		return pose.Correct("Bicep Curl", "")
	}
	return pose.Incorrect("Bicep Curl", "Bend the elbow more when lifting")
}

func pilates(s *pose.LandmarkSet) pose.Verdict {
	hip := angle(s, pose.LeftShoulder, pose.LeftHip, pose.LeftKnee)
	knee := angle(s, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle)
	if within(hip, PilatesMin, PilatesMax) && within(knee, PilatesMin, PilatesMax) {
		return pose.Correct("Pilates", "")
	}
	if knee < PilatesMin {
		return pose.Incorrect("Pilates", "Straighten the legs")
	}
	return pose.Incorrect("Pilates", "Straighten the back, do not bend forward")
}

func align(s *pose.LandmarkSet) pose.Verdict {
	shoulderHip := pose.HorizontalOffset(s.At(pose.LeftShoulder), s.At(pose.LeftHip))
	hipAnkle := pose.HorizontalOffset(s.At(pose.LeftHip), s.At(pose.LeftAnkle))
	if shoulderHip < AlignOffsetMax && hipAnkle < AlignOffsetMax {
		return pose.Correct("Align", "")
	}
	return pose.Incorrect("Align", "Line up the shoulders, hips and ankles")
}
