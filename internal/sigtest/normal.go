package sigtest

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Normal fits a normal distribution to Y and z-scores its maximum. The
// one-sided p-value is compared with 1/n, the p-value expected of the largest
// of n draws, so significance = max(1 - p·n, 0).
type Normal struct{}

func (Normal) Name() string { return "normal" }

func (n Normal) Evaluate(s Series) (Result, error) {
	if s.Len() < 2 {
		return Result{Test: n.Name()}, ErrTooFewPoints
	}
	i := s.argmax()
	top := s.Y[i]
	sig := normalSignificance(s.Y)
	return Result{
		Test:         n.Name(),
		Description:  fmt.Sprintf("maximum point %.2f at %s=%s", top, s.Label, s.labelAt(i)),
		Significance: sig,
	}, nil
}

func normalSignificance(ys []float64) float64 {
	data := stats.Float64Data(ys)
	top, err := stats.Max(data)
	if err != nil {
		return 0
	}
	mean, _ := stats.Mean(data)
	std, err := stats.StandardDeviationSample(data)
	if err != nil || std == 0 || math.IsNaN(std) {
		return 0
	}
	z := (top - mean) / std
	p := distuv.UnitNormal.Survival(z)
	alpha := 1 / float64(len(ys))
	return math.Max(1-p/alpha, 0)
}
