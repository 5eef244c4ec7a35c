package rules

import (
	"fmt"
	"strings"

	"github.com/banshee-data/pose.report/internal/pose"
)

// Evaluator applies catalog rules to landmark sets.
type Evaluator struct {
	catalog    *Catalog
	visibility float64
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithVisibilityThreshold makes every joint a rule reads pass
// pose.IsVisible at threshold; frames that fail are not detected.
// A threshold <= 0 leaves the check off.
func WithVisibilityThreshold(threshold float64) EvaluatorOption {
	return func(e *Evaluator) { e.visibility = threshold }
}

// NewEvaluator returns an evaluator over c, or the default catalog when c
// is nil.
func NewEvaluator(c *Catalog, opts ...EvaluatorOption) *Evaluator {
	if c == nil {
		c = Default()
	}
	e := &Evaluator{catalog: c}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog backing e.
func (e *Evaluator) Catalog() *Catalog { return e.catalog }

// Evaluate classifies one frame against the named exercise. It never
// panics on bad input: unknown names give an unrecognized verdict and
// missing or non-finite joints give a not-detected verdict.
func (e *Evaluator) Evaluate(s *pose.LandmarkSet, exercise string) pose.Verdict {
	r, ok := e.catalog.Lookup(exercise)
	if !ok || r.Eval == nil {
		return pose.Unrecognized(exercise)
	}
	if s.Len() == 0 {
		return pose.NotDetected("")
	}
	if missing := s.Missing(r.Joints...); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, j := range missing {
			names[i] = j.String()
		}
		return pose.NotDetected(fmt.Sprintf("missing landmarks: %s", strings.Join(names, ", ")))
	}
	if e.visibility > 0 {
		var hidden []string
		for _, j := range r.Joints {
			if !pose.IsVisible(s.At(j), e.visibility) {
				hidden = append(hidden, j.String())
			}
		}
		if len(hidden) > 0 {
			return pose.NotDetected(fmt.Sprintf("low visibility: %s", strings.Join(hidden, ", ")))
		}
	}
	return r.Eval(s)
}
