package sigtest

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// fit is an ordinary least-squares line y = Alpha + Beta·x.
type fit struct {
	Alpha, Beta float64
	R2          float64
	// P is the two-sided p-value of the slope t-test with n-2 degrees of freedom.
	P float64
}

func linearFit(x, y []float64) (fit, bool) {
	n := len(x)
	if n < 3 || len(y) != n {
		return fit{}, false
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(alpha) || math.IsNaN(beta) || math.IsNaN(r) {
		return fit{}, false
	}
	mx := stat.Mean(x, nil)
	var sxx, sse float64
	for i := range x {
		dx := x[i] - mx
		sxx += dx * dx
		e := y[i] - (alpha + beta*x[i])
		sse += e * e
	}
	f := fit{Alpha: alpha, Beta: beta, R2: r * r}
	df := float64(n - 2)
	se := math.Sqrt(sse / df / sxx)
	switch {
	case se == 0 && beta != 0:
		f.P = 0
	case se == 0 || math.IsNaN(se):
		f.P = 1
	default:
		t := math.Abs(beta / se)
		f.P = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(t)
	}
	return f, true
}

// LinearShape regresses Y on the ordinal values and scores the trend as
// r²·(1-p).
type LinearShape struct{}

func (LinearShape) Name() string { return "linear_shape" }

func (l LinearShape) Evaluate(s Series) (Result, error) {
	res := Result{Test: l.Name()}
	if len(s.X) != s.Len() {
		return res, ErrNoOrdinal
	}
	if s.Len() < 3 {
		return res, ErrTooFewPoints
	}
	f, ok := linearFit(s.X, s.Y)
	if !ok {
		res.Description = "no trend"
		return res, nil
	}
	if f.Beta > 0 {
		res.Description = fmt.Sprintf("positive slope %.2f", f.Beta)
	} else {
		res.Description = fmt.Sprintf("negative slope %.2f", f.Beta)
	}
	res.Significance = f.R2 * (1 - f.P)
	return res, nil
}

// LinearPoint looks for the single point furthest from the regression line.
// The residuals are scored with the normal test (negated when the outlier
// lies below the line) and weighted by the r² of the line refitted without
// the outlier.
type LinearPoint struct{}

func (LinearPoint) Name() string { return "linear_point" }

func (l LinearPoint) Evaluate(s Series) (Result, error) {
	res := Result{Test: l.Name()}
	if len(s.X) != s.Len() {
		return res, ErrNoOrdinal
	}
	if s.Len() < 4 {
		return res, ErrTooFewPoints
	}
	f, ok := linearFit(s.X, s.Y)
	if !ok {
		res.Description = "no outlier"
		return res, nil
	}
	resid := make([]float64, s.Len())
	worst := 0
	for i := range s.Y {
		resid[i] = s.Y[i] - (f.Alpha + f.Beta*s.X[i])
		if math.Abs(resid[i]) > math.Abs(resid[worst]) {
			worst = i
		}
	}
	low := resid[worst] < 0
	if low {
		for i := range resid {
			resid[i] = -resid[i]
		}
	}
	errSig := normalSignificance(resid)

	xs := make([]float64, 0, s.Len()-1)
	ys := make([]float64, 0, s.Len()-1)
	for i := range s.Y {
		if i != worst {
			xs = append(xs, s.X[i])
			ys = append(ys, s.Y[i])
		}
	}
	var r2 float64
	if g, ok := linearFit(xs, ys); ok {
		r2 = g.R2
	}

	dir := "high"
	if low {
		dir = "low"
	}
	res.Description = fmt.Sprintf("%s %s surprisingly %s at %.2f", s.Label, formatOrdinal(s, worst), dir, s.Y[worst])
	res.Significance = errSig * r2
	return res, nil
}

func formatOrdinal(s Series, i int) string {
	if i < len(s.Labels) {
		return s.Labels[i]
	}
	return strconv.FormatFloat(s.X[i], 'f', -1, 64)
}
