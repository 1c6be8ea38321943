// Package sigtest scores how unexpected the extreme value of a result set is
// under a fitted null distribution.
package sigtest

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNonPositive is returned by tests that need strictly positive values.
	ErrNonPositive = errors.New("series has non-positive values")
	// ErrTooFewPoints is returned when a series is too short to fit.
	ErrTooFewPoints = errors.New("series has too few points")
	// ErrNoOrdinal is returned by linear tests when X is missing.
	ErrNoOrdinal = errors.New("series has no ordinal values")
)

// Series is the input of a significance test: one measure value per row of
// a result set, labelled by the dividing-dimension value. X holds the numeric
// ordinal values and is nil when the dividing dimension is not ordinal.
type Series struct {
	Label  string
	Labels []string
	X      []float64
	Y      []float64
}

// Len returns the number of points.
func (s Series) Len() int { return len(s.Y) }

func (s Series) argmax() int {
	best := 0
	for i, v := range s.Y {
		if v > s.Y[best] {
			best = i
		}
	}
	return best
}

func (s Series) labelAt(i int) string {
	if i < len(s.Labels) {
		return s.Labels[i]
	}
	return fmt.Sprint(i)
}

// Result is the outcome of a test.
type Result struct {
	Test         string  `json:"test" yaml:"test"`
	Description  string  `json:"description" yaml:"description"`
	Significance float64 `json:"significance" yaml:"significance"`
}

// Test is one entry of the test catalog.
type Test interface {
	Name() string
	Evaluate(s Series) (Result, error)
}

// Run evaluates t on s. A power-law fit over non-positive data falls back to
// the normal test. Significance is always clamped to [0,1].
func Run(t Test, s Series) (Result, error) {
	res, err := t.Evaluate(s)
	if errors.Is(err, ErrNonPositive) {
		res, err = Normal{}.Evaluate(s)
	}
	if err != nil {
		return Result{Test: t.Name()}, err
	}
	res.Significance = clamp01(res.Significance)
	return res, nil
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
