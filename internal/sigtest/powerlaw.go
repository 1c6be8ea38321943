package sigtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PowerLaw removes the maximum, fits log2(y) = a + b·log2(rank) to the
// remaining values ranked in descending order, and asks how far the actual
// maximum exceeds the fitted rank-1 value 2^a relative to the fit residuals.
// Only an excess counts, so the test is one-sided.
type PowerLaw struct{}

func (PowerLaw) Name() string { return "powerlaw" }

func (p PowerLaw) Evaluate(s Series) (Result, error) {
	res := Result{Test: p.Name()}
	if s.Len() < 4 {
		return res, ErrTooFewPoints
	}
	for _, v := range s.Y {
		if !(v > 0) {
			return res, ErrNonPositive
		}
	}
	top := s.argmax()
	rest := make([]float64, 0, s.Len()-1)
	for i, v := range s.Y {
		if i != top {
			rest = append(rest, v)
		}
	}
	// descending; equal values get consecutive ranks
	sort.Sort(sort.Reverse(sort.Float64Slice(rest)))
	logx := make([]float64, len(rest))
	logy := make([]float64, len(rest))
	for i, v := range rest {
		logx[i] = math.Log2(float64(i + 1))
		logy[i] = math.Log2(v)
	}
	alpha, beta := stat.LinearRegression(logx, logy, nil, false)

	errs := make([]float64, len(rest))
	for i, v := range rest {
		errs[i] = math.Pow(2, alpha+beta*logx[i]) - v
	}
	maxErr := math.Pow(2, alpha) - s.Y[top]
	mean, _ := stats.Mean(errs)
	std, err := stats.StandardDeviationSample(errs)
	res.Description = fmt.Sprintf("maximum point %.2f at %s=%s", s.Y[top], s.Label, s.labelAt(top))
	spread, _ := stats.StandardDeviationSample(rest)
	if err != nil || spread == 0 || std <= 1e-12*math.Abs(rest[0]) || math.IsNaN(alpha) {
		return res, nil
	}
	z := (maxErr - mean) / std
	res.Significance = distuv.UnitNormal.CDF(-z)
	return res, nil
}
