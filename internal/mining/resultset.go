package mining

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
	"github.com/KaramelBytes/insightloom/internal/sigtest"
)

// Row is one sibling of a result set. Values holds every dataset dimension:
// the dividing value, the analysis value, subspace values, and the wildcard
// for unbound dimensions. Sum is the first-level aggregate behind M.
type Row struct {
	Values map[string]string `json:"values" yaml:"values"`
	Sum    float64           `json:"sum" yaml:"sum"`
	M      float64           `json:"m" yaml:"m"`
}

// ResultSet is the derived measure M of a sibling group, one row per
// dividing-dimension value, ordered by that value.
type ResultSet struct {
	Subspace  dataset.Subspace    `json:"subspace" yaml:"subspace"`
	Dimension string              `json:"dimension" yaml:"dimension"`
	Extractor extractor.Extractor `json:"extractor" yaml:"extractor"`
	Rows      []Row               `json:"rows" yaml:"rows"`
}

func (rs *ResultSet) Len() int { return len(rs.Rows) }

// Measures returns the M column.
func (rs *ResultSet) Measures() []float64 {
	out := make([]float64, len(rs.Rows))
	for i, r := range rs.Rows {
		out[i] = r.M
	}
	return out
}

// Series converts the result set to significance-test input. When ordinal is
// set the dividing values are parsed into X.
func (rs *ResultSet) Series(ordinal bool) (sigtest.Series, error) {
	s := sigtest.Series{Label: rs.Dimension}
	for _, r := range rs.Rows {
		v := r.Values[rs.Dimension]
		s.Labels = append(s.Labels, v)
		s.Y = append(s.Y, r.M)
		if ordinal {
			x, ok := parseOrdinal(v)
			if !ok {
				return sigtest.Series{}, fmt.Errorf("%w: %q", dataset.ErrOrdinalNotNumeric, v)
			}
			s.X = append(s.X, x)
		}
	}
	return s, nil
}

// Builder computes result sets over one dataset. It holds no mutable state
// and is safe for concurrent use.
type Builder struct {
	ds *dataset.Dataset
}

func NewBuilder(ds *dataset.Dataset) *Builder {
	return &Builder{ds: ds}
}

// Build computes the result set of the sibling group SG(sub, dividing) under ce.
// Rows whose M is undefined are dropped.
func (b *Builder) Build(sub dataset.Subspace, dividing string, ce extractor.Extractor) (*ResultSet, error) {
	if !b.ds.HasDimension(dividing) {
		return nil, fmt.Errorf("%w: dividing dimension %q", dataset.ErrUnknownColumn, dividing)
	}
	rs := &ResultSet{Subspace: sub, Dimension: dividing, Extractor: ce}
	op, analysis, derived := ce.Derived()
	var err error
	switch {
	case !derived:
		rs.Rows = b.baseRows(sub, dividing)
	case analysis == dividing:
		rs.Rows, err = b.sameDimension(sub, dividing, op)
	default:
		if !b.ds.HasDimension(analysis) {
			return nil, fmt.Errorf("%w: analysis dimension %q", dataset.ErrUnknownColumn, analysis)
		}
		rs.Rows, err = b.crossDimension(sub, dividing, analysis, op)
	}
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// group is a first-level aggregate for one dividing value.
type group struct {
	value string
	sum   float64
}

// groupSums sums the measure over rows per value of dim, in dim's value order.
func (b *Builder) groupSums(rows []int, dim string) []group {
	sums := make(map[string]float64)
	for _, r := range rows {
		sums[b.ds.Value(dim, r)] += b.ds.MeasureAt(r)
	}
	vals := make([]string, 0, len(sums))
	for v := range sums {
		vals = append(vals, v)
	}
	b.ds.SortValues(dim, vals)
	out := make([]group, len(vals))
	for i, v := range vals {
		out[i] = group{value: v, sum: sums[v]}
	}
	return out
}

func (b *Builder) row(sub dataset.Subspace, fixed map[string]string, sum, m float64) Row {
	vals := make(map[string]string, len(b.ds.Dimensions()))
	for _, d := range b.ds.Dimensions() {
		if v, ok := fixed[d]; ok {
			vals[d] = v
		} else if v, ok := sub.Get(d); ok {
			vals[d] = v
		} else {
			vals[d] = dataset.Wildcard
		}
	}
	return Row{Values: vals, Sum: sum, M: m}
}

func (b *Builder) baseRows(sub dataset.Subspace, dividing string) []Row {
	groups := b.groupSums(b.ds.Rows(sub), dividing)
	out := make([]Row, 0, len(groups))
	for _, g := range groups {
		if math.IsNaN(g.sum) {
			continue
		}
		out = append(out, b.row(sub, map[string]string{dividing: g.value}, g.sum, g.sum))
	}
	return out
}

// sameDimension is depth 2 with the analysis dimension equal to the dividing
// dimension: M is derived across the whole sibling group.
func (b *Builder) sameDimension(sub dataset.Subspace, dividing string, op extractor.DerivedOp) ([]Row, error) {
	rows := b.ds.Rows(sub)
	period, fixedPeriod := sub.Get(dividing)
	if op == extractor.DeltaPrev && fixedPeriod {
		// the derivative needs the prior period even though sub excludes it
		if _, err := b.ds.OrdinalValue(period); err != nil {
			return nil, err
		}
		if prev, ok := b.ds.PriorPeriod(period); ok {
			rows = union(rows, b.ds.Rows(sub.With(dividing, prev)))
		}
	}
	groups := b.groupSums(rows, dividing)
	sums := make([]float64, len(groups))
	for i, g := range groups {
		sums[i] = g.sum
	}
	if op == extractor.DeltaPrev {
		for _, g := range groups {
			if _, err := b.ds.OrdinalValue(g.value); err != nil {
				return nil, err
			}
		}
	}
	ms := derive(op, sums)
	out := make([]Row, 0, len(groups))
	for i, g := range groups {
		if math.IsNaN(ms[i]) {
			continue
		}
		if op == extractor.DeltaPrev && fixedPeriod && g.value != period {
			continue
		}
		out = append(out, b.row(sub, map[string]string{dividing: g.value}, g.sum, ms[i]))
	}
	return out, nil
}

// crossDimension is depth 2 with a distinct analysis dimension that sub
// binds. The analysis binding is lifted so that M can be derived within each
// dividing-dimension group; the output keeps only the bound analysis value.
func (b *Builder) crossDimension(sub dataset.Subspace, dividing, analysis string, op extractor.DerivedOp) ([]Row, error) {
	fixed, ok := sub.Get(analysis)
	if !ok {
		return nil, fmt.Errorf("analysis dimension %q is not bound in %s", analysis, sub)
	}
	var prev string
	hasPrev := false
	if op == extractor.DeltaPrev {
		if _, err := b.ds.OrdinalValue(fixed); err != nil {
			return nil, err
		}
		prev, hasPrev = b.ds.PriorPeriod(fixed)
	}
	rows := b.ds.Rows(sub.Without(analysis))

	// dividing value -> analysis value -> sum
	sums := make(map[string]map[string]float64)
	for _, r := range rows {
		d := b.ds.Value(dividing, r)
		inner := sums[d]
		if inner == nil {
			inner = make(map[string]float64)
			sums[d] = inner
		}
		inner[b.ds.Value(analysis, r)] += b.ds.MeasureAt(r)
	}
	divVals := make([]string, 0, len(sums))
	for d := range sums {
		divVals = append(divVals, d)
	}
	b.ds.SortValues(dividing, divVals)

	out := make([]Row, 0, len(divVals))
	for _, d := range divVals {
		inner := sums[d]
		own, present := inner[fixed]
		if !present {
			continue
		}
		var m float64
		switch op {
		case extractor.DeltaPrev:
			p, ok := inner[prev]
			if !hasPrev || !ok {
				m = math.NaN()
			} else {
				m = own - p
			}
		default:
			anVals := make([]string, 0, len(inner))
			for a := range inner {
				anVals = append(anVals, a)
			}
			b.ds.SortValues(analysis, anVals)
			vals := make([]float64, len(anVals))
			at := 0
			for i, a := range anVals {
				vals[i] = inner[a]
				if a == fixed {
					at = i
				}
			}
			m = derive(op, vals)[at]
		}
		if math.IsNaN(m) {
			continue
		}
		out = append(out, b.row(sub, map[string]string{dividing: d, analysis: fixed}, own, m))
	}
	return out, nil
}

// derive applies a derived operator across a group of first-level sums that
// are already in group order. Undefined results are NaN.
func derive(op extractor.DerivedOp, sums []float64) []float64 {
	out := make([]float64, len(sums))
	switch op {
	case extractor.Rank:
		idx := make([]int, len(sums))
		for i := range idx {
			idx[i] = i
		}
		// descending; ties keep group order
		sort.SliceStable(idx, func(a, b int) bool { return sums[idx[a]] > sums[idx[b]] })
		for pos, i := range idx {
			out[i] = float64(pos + 1)
		}
	case extractor.Pct:
		var total float64
		for _, v := range sums {
			total += v
		}
		for i, v := range sums {
			if total == 0 {
				out[i] = math.NaN()
				continue
			}
			out[i] = 100 * v / total
		}
	case extractor.DeltaAvg:
		var total float64
		for _, v := range sums {
			total += v
		}
		mean := total / float64(len(sums))
		for i, v := range sums {
			out[i] = v - mean
		}
	case extractor.DeltaPrev:
		for i, v := range sums {
			if i == 0 {
				out[i] = math.NaN()
				continue
			}
			out[i] = v - sums[i-1]
		}
	default:
		for i := range out {
			out[i] = math.NaN()
		}
	}
	return out
}

// union merges two ascending row id lists.
func union(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case j == len(b) || (i < len(a) && a[i] < b[j]):
			out = append(out, a[i])
			i++
		case i == len(a) || b[j] < a[i]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
