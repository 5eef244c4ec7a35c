package rules

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/posetest"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "arm-press", Normalize(" Arm Press "))
	assert.Equal(t, "t-bar-row", Normalize("t_bar  row"))
	assert.Equal(t, "squat", Normalize("SQUAT"))
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	assert.Len(t, c.Names(), 21)

	evaluable := 0
	for _, name := range c.Names() {
		r, ok := c.Lookup(name)
		require.True(t, ok, name)
		if r.Eval != nil {
			evaluable++
			assert.NotEmpty(t, r.Joints, name)
		}
	}
	assert.Equal(t, 19, evaluable)
}

func TestLookupAliases(t *testing.T) {
	c := Default()
	for alias, want := range map[string]string{
		"Arm Press":         "arm-press",
		"Push up":           "push-up",
		"squad":             "squat",
		"langus":            "lunge",
		"hai squad":         "high-squat",
		"sumo squad":        "sumo-squat",
		"cabble frontraise": "cable-front-raise",
		"cabble row":        "cable-row",
		"dumble row":        "dumbbell-row",
		"lets pulldown":     "lat-pulldown",
		"t-bar row":         "t-bar-row",
		"deltoid press":     "deltoid-press",
		"bicep curl":        "bicep-curl",
		"leg press":         "leg-press",
	} {
		r, ok := c.Lookup(alias)
		if assert.True(t, ok, alias) {
			assert.Equal(t, want, r.Name, alias)
		}
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	c := NewCatalog()
	require.NoError(t, c.Register(Rule{Name: "wall-sit", Aliases: []string{"wallsit"}}))
	assert.Error(t, c.Register(Rule{Name: "Wall Sit"}))
	assert.Error(t, c.Register(Rule{Name: "other", Aliases: []string{"wallsit"}}))
	assert.Error(t, c.Register(Rule{Name: "  "}))
}

func TestListings(t *testing.T) {
	c := NewCatalog()
	c.MustRegister(Rule{Name: "squat", Category: CategoryLegs, Eval: squat})
	c.MustRegister(Rule{Name: "curl", Category: CategoryArms, Eval: bicepCurl})
	c.MustRegister(Rule{Name: "calf", Category: CategoryLegs})
	c.MustRegister(Rule{Name: "breathing", Category: "mobility"})

	got := c.Listings()
	require.Len(t, got, 3)
	assert.Equal(t, CategoryArms, got[0].Category)
	assert.Equal(t, CategoryLegs, got[1].Category)
	assert.Equal(t, []Entry{
		{Name: "squat", Display: "squat", Evaluable: true},
		{Name: "calf", Display: "calf", Evaluable: false},
	}, got[1].Exercises)
	assert.Equal(t, Category("mobility"), got[2].Category)
}

func TestEvaluate_UnknownExercise(t *testing.T) {
	ev := NewEvaluator(nil)
	for _, set := range []*pose.LandmarkSet{nil, {}, posetest.FullBody(0.9)} {
		v := ev.Evaluate(set, "handstand")
		assert.False(t, v.Correct)
		assert.Equal(t, pose.OutcomeUnrecognized, v.Outcome)
		assert.Contains(t, v.Message, "Unrecognized")
	}
}

func TestEvaluate_ListedWithoutRule(t *testing.T) {
	ev := NewEvaluator(nil)
	for _, name := range []string{"leg-extension", "standing-calf-raise", "leg extention"} {
		v := ev.Evaluate(posetest.FullBody(0.9), name)
		assert.Equal(t, pose.OutcomeUnrecognized, v.Outcome, name)
	}
}

func TestEvaluate_FailsClosed(t *testing.T) {
	ev := NewEvaluator(nil)

	v := ev.Evaluate(nil, "arm-press")
	assert.False(t, v.Correct)
	assert.Equal(t, pose.OutcomeNotDetected, v.Outcome)

	partial := posetest.New().
		At(pose.RightShoulder, 0.4, 0.3).At(pose.RightElbow, 0.4, 0.45).At(pose.RightWrist, 0.5, 0.45).
		Set()
	v = ev.Evaluate(partial, "arm-press")
	assert.Equal(t, pose.OutcomeNotDetected, v.Outcome)
	assert.Contains(t, v.Detail, "left_shoulder")

	bad := arms(90, 90)
	lm := bad.At(pose.LeftWrist)
	lm.X = math.Inf(1)
	bad.Set(pose.LeftWrist, lm)
	v = ev.Evaluate(bad, "arm-press")
	assert.Equal(t, pose.OutcomeNotDetected, v.Outcome)
	assert.Contains(t, v.Detail, "left_wrist")
}

func TestEvaluate_Deterministic(t *testing.T) {
	ev := NewEvaluator(nil)
	set := lungePose(90, 170)
	first := ev.Evaluate(set, "lunge")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ev.Evaluate(set, "lunge"))
	}
}

func TestEvaluate_EveryRuleOnFullBody(t *testing.T) {
	ev := NewEvaluator(nil)
	set := posetest.FullBody(0.9)
	for _, name := range Default().Names() {
		v := ev.Evaluate(set, name)
		assert.NotEmpty(t, v.Message, name)
		assert.NotEqual(t, pose.OutcomeNotDetected, v.Outcome, name)
	}
}
