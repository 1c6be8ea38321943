package dataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/extractor"
)

// CountMeasure is the synthetic constant-1 measure used for count aggregation.
const CountMeasure = "count"

var (
	ErrNoDimensions       = errors.New("at least one dimension is required")
	ErrUnknownColumn      = errors.New("unknown column")
	ErrDuplicateDimension = errors.New("duplicate dimension")
	ErrNonNumericMeasure  = errors.New("measure column is not numeric")
	ErrNegativeMeasure    = errors.New("measure column has negative values")
	ErrNonPositiveTotal   = errors.New("measure total must be positive")
	ErrOrdinalNotNumeric  = errors.New("ordinal dimension value is not numeric")
)

// Schema designates the dimensions and measure of a table.
type Schema struct {
	Dimensions []string
	// Measure is ignored when Aggregation is Count.
	Measure     string
	Aggregation extractor.AggOp
	// Ordinal names the single order-sensitive dimension (e.g. "year"). Optional.
	Ordinal string
	// Number parsing for the measure column; zero values auto-detect.
	DecimalSeparator   rune
	ThousandsSeparator rune
}

// Dataset is an immutable in-memory relation of categorical dimensions and one
// numeric measure. It is safe for concurrent readers.
type Dataset struct {
	name    string
	dims    []string
	dimPos  map[string]int
	measure string
	agg     extractor.AggOp
	ordinal string

	cols   [][]string // cols[d][row]
	values []float64
	total  float64
	index  []postings
	all    []int

	// ordinal value (numeric) -> raw string as stored
	periods map[float64]string
}

// New validates the schema against the table and builds the dataset.
// Missing dimension cells are stored as "".
func New(t *Table, s Schema) (*Dataset, error) {
	if t == nil {
		return nil, errors.New("nil table")
	}
	if len(s.Dimensions) == 0 {
		return nil, ErrNoDimensions
	}
	colPos := make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		colPos[strings.TrimSpace(h)] = i
	}
	ds := &Dataset{
		name:    t.Name,
		dims:    append([]string(nil), s.Dimensions...),
		dimPos:  make(map[string]int, len(s.Dimensions)),
		agg:     s.Aggregation,
		ordinal: s.Ordinal,
	}
	srcIdx := make([]int, len(s.Dimensions))
	for i, d := range s.Dimensions {
		if _, dup := ds.dimPos[d]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDimension, d)
		}
		pos, ok := colPos[d]
		if !ok {
			return nil, fmt.Errorf("%w: dimension %q", ErrUnknownColumn, d)
		}
		ds.dimPos[d] = i
		srcIdx[i] = pos
	}
	if s.Ordinal != "" {
		if _, ok := ds.dimPos[s.Ordinal]; !ok {
			return nil, fmt.Errorf("%w: ordinal dimension %q is not a dimension", ErrUnknownColumn, s.Ordinal)
		}
	}

	measurePos := -1
	switch s.Aggregation {
	case extractor.Count:
		ds.measure = CountMeasure
	case extractor.Sum:
		pos, ok := colPos[s.Measure]
		if !ok || s.Measure == "" {
			return nil, fmt.Errorf("%w: measure %q", ErrUnknownColumn, s.Measure)
		}
		if _, clash := ds.dimPos[s.Measure]; clash {
			return nil, fmt.Errorf("measure %q is also listed as a dimension", s.Measure)
		}
		ds.measure = s.Measure
		measurePos = pos
	default:
		return nil, fmt.Errorf("unsupported aggregation %v", s.Aggregation)
	}

	n := len(t.Rows)
	ds.cols = make([][]string, len(ds.dims))
	for i := range ds.cols {
		ds.cols[i] = make([]string, n)
	}
	ds.values = make([]float64, n)
	ds.all = make([]int, n)
	for r, rec := range t.Rows {
		ds.all[r] = r
		for i, pos := range srcIdx {
			if pos < len(rec) {
				ds.cols[i][r] = strings.TrimSpace(rec[pos])
			}
		}
		if measurePos < 0 {
			ds.values[r] = 1
			continue
		}
		var cell string
		if measurePos < len(rec) {
			cell = strings.TrimSpace(rec[measurePos])
		}
		if cell == "" {
			continue
		}
		v, ok := ParseNumeric(cell, s.DecimalSeparator, s.ThousandsSeparator)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: row %d value %q", ErrNonNumericMeasure, r+1, cell)
		}
		if v < 0 {
			return nil, fmt.Errorf("%w: row %d value %q", ErrNegativeMeasure, r+1, cell)
		}
		ds.values[r] = v
	}
	for _, v := range ds.values {
		ds.total += v
	}
	if !(ds.total > 0) {
		return nil, ErrNonPositiveTotal
	}

	ds.index = make([]postings, len(ds.dims))
	for i, col := range ds.cols {
		ds.index[i] = buildIndex(col)
	}
	if ds.ordinal != "" {
		ds.periods = make(map[float64]string)
		for v := range ds.index[ds.dimPos[ds.ordinal]] {
			if x, err := strconv.ParseFloat(v, 64); err == nil {
				ds.periods[x] = v
			}
		}
	}
	return ds, nil
}

func (d *Dataset) Name() string                 { return d.name }
func (d *Dataset) Measure() string              { return d.measure }
func (d *Dataset) Aggregation() extractor.AggOp { return d.agg }
func (d *Dataset) Ordinal() string              { return d.ordinal }
func (d *Dataset) Len() int                     { return len(d.values) }
func (d *Dataset) Total() float64               { return d.total }
func (d *Dataset) MeasureAt(row int) float64    { return d.values[row] }

// IsOrdinal reports whether dim is the configured ordinal dimension.
func (d *Dataset) IsOrdinal(dim string) bool { return d.ordinal != "" && dim == d.ordinal }

func (d *Dataset) HasDimension(dim string) bool {
	_, ok := d.dimPos[dim]
	return ok
}

// Dimensions returns a copy of the dimension names in schema order.
func (d *Dataset) Dimensions() []string { return append([]string(nil), d.dims...) }

// Value returns the dimension value of a row.
func (d *Dataset) Value(dim string, row int) string {
	return d.cols[d.dimPos[dim]][row]
}

// Rows returns the ascending row ids matching every binding of sub.
// The returned slice must not be modified.
func (d *Dataset) Rows(sub Subspace) []int {
	if sub.Len() == 0 {
		return d.all
	}
	lists := make([][]int, 0, sub.Len())
	for b := sub.head; b != nil; b = b.next {
		pos, ok := d.dimPos[b.dim]
		if !ok {
			return nil
		}
		l := d.index[pos][b.value]
		if len(l) == 0 {
			return nil
		}
		lists = append(lists, l)
	}
	return intersect(lists)
}

// Sum adds the measure over the given rows.
func (d *Dataset) Sum(rows []int) float64 {
	var s float64
	for _, r := range rows {
		s += d.values[r]
	}
	return s
}

// Impact is the share of the total measure held by the rows of sub.
// The empty subspace has impact 1.
func (d *Dataset) Impact(sub Subspace) float64 {
	if sub.Len() == 0 {
		return 1
	}
	imp := d.Sum(d.Rows(sub)) / d.total
	// summation order differs from the cached total
	if imp > 1 && imp < 1+1e-9 {
		imp = 1
	}
	if imp < 0 || imp > 1 || math.IsNaN(imp) {
		panic(fmt.Sprintf("dataset: impact %v of %s outside [0,1]", imp, sub))
	}
	return imp
}

// Distinct returns the distinct values of dim among rows, ordered with
// SortValues. A nil rows slice means every row.
func (d *Dataset) Distinct(dim string, rows []int) []string {
	pos, ok := d.dimPos[dim]
	if !ok {
		return nil
	}
	var out []string
	if rows == nil {
		out = make([]string, 0, len(d.index[pos]))
		for v := range d.index[pos] {
			out = append(out, v)
		}
	} else {
		seen := make(map[string]struct{})
		col := d.cols[pos]
		for _, r := range rows {
			if _, ok := seen[col[r]]; ok {
				continue
			}
			seen[col[r]] = struct{}{}
			out = append(out, col[r])
		}
	}
	d.SortValues(dim, out)
	return out
}

// SortValues orders values of dim in place: numerically for the ordinal
// dimension (unparseable values last), lexically otherwise.
func (d *Dataset) SortValues(dim string, vals []string) {
	sort.SliceStable(vals, func(i, j int) bool { return d.lessValue(dim, vals[i], vals[j]) })
}

func (d *Dataset) lessValue(dim, a, b string) bool {
	if d.IsOrdinal(dim) {
		xa, ea := strconv.ParseFloat(a, 64)
		xb, eb := strconv.ParseFloat(b, 64)
		switch {
		case ea == nil && eb == nil:
			return xa < xb
		case ea == nil:
			return true
		case eb == nil:
			return false
		}
	}
	return a < b
}

// OrdinalValue parses a value of the ordinal dimension.
func (d *Dataset) OrdinalValue(v string) (float64, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrOrdinalNotNumeric, v)
	}
	return x, nil
}

// PriorPeriod returns the stored ordinal value one unit before v.
func (d *Dataset) PriorPeriod(v string) (string, bool) {
	x, err := d.OrdinalValue(v)
	if err != nil || d.periods == nil {
		return "", false
	}
	p, ok := d.periods[x-1]
	return p, ok
}
