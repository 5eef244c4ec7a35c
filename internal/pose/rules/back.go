package rules

import "github.com/banshee-data/pose.report/internal/pose"

// Back exercise thresholds. Lean angles are measured at the hip between
// the shoulder and the elbow or knee.
const (
	FrontRaiseArmMin = 160.0
	FrontRaiseArmMax = 200.0

	CableRowElbowMax = 110.0
	CableRowLeanMax  = 120.0

	DeltoidPressElbowMin = 160.0
	DeltoidPressElbowMax = 200.0

	DumbbellRowElbowMax = 100.0
	DumbbellRowLeanMax  = 120.0

	LatPulldownElbowMax = 120.0

	TBarRowElbowMax = 110.0
	TBarRowLeanMax  = 150.0
)

func backRules() []Rule {
	rightArm := []pose.Joint{pose.RightShoulder, pose.RightElbow, pose.RightWrist}
	return []Rule{
		{
			Name: "cable-front-raise", Display: "Cable Front Raise", Category: CategoryBack,
			Aliases: []string{"cabble frontraise", "cable frontraise"},
			Joints:  rightArm,
			Eval:    cableFrontRaise,
		},
		{
			Name: "cable-row", Display: "Cable Row", Category: CategoryBack,
			Aliases: []string{"cabble row"},
			Joints:  []pose.Joint{pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightHip},
			Eval:    cableRow,
		},
		{
			Name: "deltoid-press", Display: "Deltoid Press", Category: CategoryBack,
			Joints: rightArm,
			Eval:   deltoidPress,
		},
		{
			Name: "dumbbell-row", Display: "Dumbbell Row", Category: CategoryBack,
			Aliases: []string{"dumble row"},
			Joints:  []pose.Joint{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.LeftHip},
			Eval:    dumbbellRow,
		},
		{
			Name: "lat-pulldown", Display: "Lat Pulldown", Category: CategoryBack,
			Aliases: []string{"lets pulldown"},
			Joints:  []pose.Joint{pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.RightShoulder, pose.RightElbow, pose.RightWrist},
			Eval:    latPulldown,
		},
		{
			Name: "t-bar-row", Display: "T-Bar Row", Category: CategoryBack,
			Aliases: []string{"t bar row", "tbar row"},
			Joints:  []pose.Joint{pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightHip, pose.RightKnee},
			Eval:    tBarRow,
		},
	}
}

func cableFrontRaise(s *pose.LandmarkSet) pose.Verdict {
	shoulder, wrist := s.At(pose.RightShoulder), s.At(pose.RightWrist)
	arm := angle(s, pose.RightShoulder, pose.RightElbow, pose.RightWrist)
	raised := wrist.Y < shoulder.Y
	straight := within(arm, FrontRaiseArmMin, FrontRaiseArmMax)
	switch {
	case raised && straight:
		return pose.Correct("Cable Front Raise", "")
	case !straight:
		return pose.Incorrect("Cable Front Raise", "Keep the arm straight")
	}
	return pose.Incorrect("Cable Front Raise", "Raise the arm above the shoulder")
}

func cableRow(s *pose.LandmarkSet) pose.Verdict {
	elbow := angle(s, pose.RightShoulder, pose.RightElbow, pose.RightWrist)
	lean := angle(s, pose.RightShoulder, pose.RightHip, pose.RightElbow)
	switch {
	case elbow < CableRowElbowMax && lean < CableRowLeanMax:
		return pose.Correct("Cable Row", "")
	case lean >= CableRowLeanMax:
		return pose.Incorrect("Cable Row", "Lean the torso slightly forward")
	}
	return pose.Incorrect("Cable Row", "Pull the elbow further back")
}

func deltoidPress(s *pose.LandmarkSet) pose.Verdict {
	elbowPt, wrist := s.At(pose.RightElbow), s.At(pose.RightWrist)
	elbow := angle(s, pose.RightShoulder, pose.RightElbow, pose.RightWrist)
	raised := wrist.Y < elbowPt.Y
	switch {
	case within(elbow, DeltoidPressElbowMin, DeltoidPressElbowMax) && raised:
		return pose.Correct("Deltoid Press", "")
	case !raised:
		return pose.Incorrect("Deltoid Press", "Raise the arm higher")
	}
	return pose.Incorrect("Deltoid Press", "Straighten the arm")
}

func dumbbellRow(s *pose.LandmarkSet) pose.Verdict {
	elbow := angle(s, pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist)
	lean := angle(s, pose.LeftShoulder, pose.LeftHip, pose.LeftElbow)
	switch {
	case elbow < DumbbellRowElbowMax && lean < DumbbellRowLeanMax:
		return pose.Correct("Dumbbell Row", "")
	case lean >= DumbbellRowLeanMax:
		return pose.Incorrect("Dumbbell Row", "Lean the torso further forward")
	}
	return pose.Incorrect("Dumbbell Row", "Bend the elbow more when pulling")
}

func latPulldown(s *pose.LandmarkSet) pose.Verdict {
	right := angle(s, pose.RightShoulder, pose.RightElbow, pose.RightWrist)
	left := angle(s, pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist)
	if right < LatPulldownElbowMax && left < LatPulldownElbowMax {
		return pose.Correct("Lat Pulldown", "")
	}
	return pose.Incorrect("Lat Pulldown", "Pull the bar down until the elbows bend more")
}

func tBarRow(s *pose.LandmarkSet) pose.Verdict {
	elbow := angle(s, pose.RightShoulder, pose.RightElbow, pose.RightWrist)
	lean := angle(s, pose.RightShoulder, pose.RightHip, pose.RightKnee)
	switch {
	case elbow < TBarRowElbowMax && lean < TBarRowLeanMax:
		return pose.Correct("T-Bar Row", "")
	case lean >= TBarRowLeanMax:
		return pose.Incorrect("T-Bar Row", "Lean the torso further forward")
	}
	return pose.Incorrect("T-Bar Row", "Pull the weight higher")
}
