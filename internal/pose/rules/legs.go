package rules

import "github.com/banshee-data/pose.report/internal/pose"

// Leg exercise thresholds. Distances are normalized frame units.
const (
	HighSquatKneeMin = 120.0
	HighSquatKneeMax = 150.0

	LegPressKneeMin = 90.0
	LegPressKneeMax = 120.0

	SumoKneeMin         = 90.0
	SumoKneeMax         = 110.0
	SumoAnkleSeparation = 0.3

	// Squat phases by average knee angle.
	SquatTooDeepMax     = 60.0
	SquatShallowMax     = 80.0 // [60, 80) is not deep enough
	SquatActiveMax      = 130.0
	SquatPrepMax        = 170.0
	SquatKneeForwardGap = 0.3

	LungeStandingMin    = 160.0
	LungeBottomMax      = 110.0
	LungeBottomStance   = 0.25
	LungeStepStance     = 0.2
	LungeShallowMin     = 130.0
	LungeShallowMax     = 150.0 // [130, 150) with a step is a stalled lunge
	LungeDescendingMin  = 140.0
	LungeKneeForwardGap = 0.2
)

var legJoints = []pose.Joint{
	pose.LeftHip, pose.LeftKnee, pose.LeftAnkle,
	pose.RightHip, pose.RightKnee, pose.RightAnkle,
}

func legRules() []Rule {
	rightLeg := []pose.Joint{pose.RightHip, pose.RightKnee, pose.RightAnkle}
	return []Rule{
		{
			Name: "high-squat", Display: "High Squat", Category: CategoryLegs,
			Aliases: []string{"hai squad"},
			Joints:  rightLeg,
			Eval:    highSquat,
		},
		{
			Name: "lunge", Display: "Lunge", Category: CategoryLegs,
			Aliases: []string{"langus", "lunges"},
			Joints:  legJoints,
			Eval:    lunge,
		},
		{
			Name: "leg-extension", Display: "Leg Extension", Category: CategoryLegs,
			Aliases: []string{"leg extention"},
		},
		{
			Name: "leg-press", Display: "Leg Press", Category: CategoryLegs,
			Joints: rightLeg,
			Eval:   legPress,
		},
		{
			Name: "squat", Display: "Squat", Category: CategoryLegs,
			Aliases: []string{"squad"},
			Joints:  legJoints,
			Eval:    squat,
		},
		{
			Name: "standing-calf-raise", Display: "Standing Calf Raise", Category: CategoryLegs,
			Aliases: []string{"standing caflraise"},
		},
		{
			Name: "sumo-squat", Display: "Sumo Squat", Category: CategoryLegs,
			Aliases: []string{"sumo squad"},
			Joints:  legJoints,
			Eval:    sumoSquat,
		},
	}
}

func highSquat(s *pose.LandmarkSet) pose.Verdict {
	knee := angle(s, pose.RightHip, pose.RightKnee, pose.RightAnkle)
	switch {
	case knee < HighSquatKneeMin:
		return pose.Incorrect("High Squat", "Too deep, rise slightly")
	case knee > HighSquatKneeMax:
		return pose.Incorrect("High Squat", "Too high, lower the body further")
	}
	return pose.Correct("High Squat", "")
}

func legPress(s *pose.LandmarkSet) pose.Verdict {
	knee := angle(s, pose.RightHip, pose.RightKnee, pose.RightAnkle)
	switch {
	case knee < LegPressKneeMin:
		return pose.Incorrect("Leg Press", "Too deep, this can injure the knee")
	case knee > LegPressKneeMax:
		return pose.Incorrect("Leg Press", "Bend the knees more")
	}
	return pose.Correct("Leg Press", "")
}

func sumoSquat(s *pose.LandmarkSet) pose.Verdict {
	right := angle(s, pose.RightHip, pose.RightKnee, pose.RightAnkle)
	left := angle(s, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle)
	stance := pose.Distance(s.At(pose.RightAnkle), s.At(pose.LeftAnkle))
	switch {
	case right < SumoKneeMin || left < SumoKneeMin:
		return pose.Incorrect("Sumo Squat", "Too deep, raise the body")
	case right > SumoKneeMax || left > SumoKneeMax:
		return pose.Incorrect("Sumo Squat", "Bend the knees more")
	case stance <= SumoAnkleSeparation:
		return pose.Incorrect("Sumo Squat", "Widen the stance for a proper sumo position")
	}
	return pose.Correct("Sumo Squat", "")
}

// squat classifies by the average knee angle. Standing, preparation and
// active phases all pass; only unsafe or out-of-band depths fail.
func squat(s *pose.LandmarkSet) pose.Verdict {
	right := angle(s, pose.RightHip, pose.RightKnee, pose.RightAnkle)
	left := angle(s, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle)
	avg := (right + left) / 2

	rightForward := s.At(pose.RightKnee).X > s.At(pose.RightAnkle).X+SquatKneeForwardGap
	leftForward := s.At(pose.LeftKnee).X > s.At(pose.LeftAnkle).X+SquatKneeForwardGap

	switch {
	case rightForward && leftForward:
		return pose.Incorrect("Squat", "Knees too far forward, shift the weight to the heels")
	case avg < SquatTooDeepMax:
		return pose.Incorrect("Squat", "Too deep, rise slightly")
	case avg < SquatShallowMax:
		return pose.Incorrect("Squat", "Not deep enough, lower the body")
	}

	var phase string
	switch {
	case avg > SquatPrepMax:
		phase = "Standing upright"
	case avg >= SquatActiveMax:
		phase = "Preparing to squat"
	default:
		phase = "Active squat"
	}
	return pose.Correct("Squat", phase)
}

// lunge picks the front leg as the one whose knee sits lower in the frame,
// then classifies the current stance.
func lunge(s *pose.LandmarkSet) pose.Verdict {
	right := angle(s, pose.RightHip, pose.RightKnee, pose.RightAnkle)
	left := angle(s, pose.LeftHip, pose.LeftKnee, pose.LeftAnkle)
	stance := pose.HorizontalOffset(s.At(pose.RightAnkle), s.At(pose.LeftAnkle))

	frontKnee, frontAnkle, front := s.At(pose.LeftKnee), s.At(pose.LeftAnkle), left
	if s.At(pose.RightKnee).Y > s.At(pose.LeftKnee).Y {
		frontKnee, frontAnkle, front = s.At(pose.RightKnee), s.At(pose.RightAnkle), right
	}

	switch {
	case right > LungeStandingMin && left > LungeStandingMin:
		return pose.Correct("Lunge", "Start or end position")
	case front < LungeBottomMax && stance > LungeBottomStance:
		if frontKnee.X > frontAnkle.X+LungeKneeForwardGap {
			return pose.Incorrect("Lunge", "Front knee is too far past the toes")
		}
		return pose.Correct("Lunge", "Good bottom position")
	case front >= LungeShallowMin && front < LungeShallowMax && stance > LungeStepStance:
		return pose.Incorrect("Lunge", "Not low enough, bend the front knee more")
	case stance > LungeStepStance:
		if front > LungeDescendingMin {
			return pose.Correct("Lunge", "Starting to descend, keep going")
		}
		return pose.Correct("Lunge", "Keep moving")
	}
	return pose.Incorrect("Lunge", "No lunge movement yet")
}
