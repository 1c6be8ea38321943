package mining

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
)

// salesTable: yearly totals 2010=16, 2011=35, 2012=73; brand totals
// A=60, B=50, C=6, D=8.
func salesTable() *dataset.Table {
	return &dataset.Table{
		Name:   "sales",
		Header: []string{"brand", "year", "region", "sales"},
		Rows: [][]string{
			{"A", "2010", "EU", "10"},
			{"A", "2011", "EU", "20"},
			{"A", "2012", "US", "30"},
			{"B", "2010", "EU", "5"},
			{"B", "2011", "US", "5"},
			{"B", "2012", "EU", "40"},
			{"C", "2010", "US", "1"},
			{"C", "2011", "EU", "2"},
			{"C", "2012", "EU", "3"},
			{"D", "2011", "EU", "8"},
		},
	}
}

func salesData(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(salesTable(), dataset.Schema{
		Dimensions: []string{"brand", "year", "region"},
		Measure:    "sales",
		Ordinal:    "year",
	})
	require.NoError(t, err)
	return ds
}

func ce2(op extractor.DerivedOp, dim string) extractor.Extractor {
	return extractor.Derive(extractor.Sum, "sales", op, dim)
}

type mrow struct {
	div string
	m   float64
}

func rowsOf(rs *ResultSet) []mrow {
	out := make([]mrow, len(rs.Rows))
	for i, r := range rs.Rows {
		out[i] = mrow{div: r.Values[rs.Dimension], m: r.M}
	}
	return out
}

func assertRows(t *testing.T, want []mrow, rs *ResultSet) {
	t.Helper()
	got := rowsOf(rs)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].div, got[i].div, "row %d", i)
		assert.InDelta(t, want[i].m, got[i].m, 1e-9, "row %d", i)
	}
}

func TestBuildDepthOne(t *testing.T) {
	b := NewBuilder(salesData(t))
	rs, err := b.Build(dataset.Empty(), "brand", extractor.Base(extractor.Sum, "sales"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"A", 60}, {"B", 50}, {"C", 6}, {"D", 8}}, rs)
	assert.Equal(t, dataset.Wildcard, rs.Rows[0].Values["year"])
	assert.Equal(t, dataset.Wildcard, rs.Rows[0].Values["region"])

	rs, err = b.Build(dataset.Empty().With("region", "EU"), "year", extractor.Base(extractor.Sum, "sales"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"2010", 15}, {"2011", 30}, {"2012", 43}}, rs)
	assert.Equal(t, "EU", rs.Rows[0].Values["region"])
}

func TestBuildSameDimension(t *testing.T) {
	b := NewBuilder(salesData(t))

	rs, err := b.Build(dataset.Empty(), "brand", ce2(extractor.Pct, "brand"))
	require.NoError(t, err)
	var total float64
	for _, m := range rs.Measures() {
		total += m
	}
	assert.InDelta(t, 100, total, 1e-9)
	assert.InDelta(t, 100*60.0/124, rs.Rows[0].M, 1e-9)

	rs, err = b.Build(dataset.Empty(), "brand", ce2(extractor.Rank, "brand"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"A", 1}, {"B", 2}, {"C", 4}, {"D", 3}}, rs)

	rs, err = b.Build(dataset.Empty(), "brand", ce2(extractor.DeltaAvg, "brand"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"A", 29}, {"B", 19}, {"C", -25}, {"D", -23}}, rs)
}

func TestBuildDeltaPrevDropsEarliestPeriod(t *testing.T) {
	b := NewBuilder(salesData(t))
	rs, err := b.Build(dataset.Empty(), "year", ce2(extractor.DeltaPrev, "year"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"2011", 19}, {"2012", 38}}, rs)
	for _, m := range rs.Measures() {
		assert.False(t, math.IsNaN(m))
	}
}

func TestBuildDeltaPrevWidensFixedPeriod(t *testing.T) {
	b := NewBuilder(salesData(t))
	rs, err := b.Build(dataset.Empty().With("year", "2012"), "year", ce2(extractor.DeltaPrev, "year"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"2012", 38}}, rs)

	rs, err = b.Build(dataset.Empty().With("year", "2010"), "year", ce2(extractor.DeltaPrev, "year"))
	require.NoError(t, err)
	assert.Equal(t, 0, rs.Len())
}

func TestBuildCrossDimension(t *testing.T) {
	b := NewBuilder(salesData(t))
	y2012 := dataset.Empty().With("year", "2012")

	rs, err := b.Build(y2012, "brand", ce2(extractor.Pct, "year"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"A", 50}, {"B", 80}, {"C", 50}}, rs)
	for _, r := range rs.Rows {
		assert.Equal(t, "2012", r.Values["year"])
		assert.Equal(t, dataset.Wildcard, r.Values["region"])
	}

	rs, err = b.Build(y2012, "brand", ce2(extractor.Rank, "year"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"A", 1}, {"B", 1}, {"C", 1}}, rs)

	rs, err = b.Build(y2012, "brand", ce2(extractor.DeltaAvg, "year"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"A", 10}, {"B", 40 - 50.0/3}, {"C", 1}}, rs)

	rs, err = b.Build(y2012, "brand", ce2(extractor.DeltaPrev, "year"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"A", 10}, {"B", 35}, {"C", 1}}, rs)

	// D has no 2010 row, so its delta is undefined
	rs, err = b.Build(dataset.Empty().With("year", "2011"), "brand", ce2(extractor.DeltaPrev, "year"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"A", 10}, {"B", 0}, {"C", 1}}, rs)

	rs, err = b.Build(y2012.With("region", "EU"), "brand", ce2(extractor.Pct, "year"))
	require.NoError(t, err)
	assertRows(t, []mrow{{"B", 100 * 40.0 / 45}, {"C", 60}}, rs)
	assert.Equal(t, "EU", rs.Rows[0].Values["region"])
}

func TestBuildRejectsNonNumericPeriod(t *testing.T) {
	tb := salesTable()
	tb.Rows[0][1] = "early"
	ds, err := dataset.New(tb, dataset.Schema{Dimensions: []string{"brand", "year", "region"}, Measure: "sales", Ordinal: "year"})
	require.NoError(t, err)
	_, err = NewBuilder(ds).Build(dataset.Empty(), "year", ce2(extractor.DeltaPrev, "year"))
	assert.ErrorIs(t, err, dataset.ErrOrdinalNotNumeric)
}

func TestBuildIsIdempotent(t *testing.T) {
	b := NewBuilder(salesData(t))
	sub := dataset.Empty().With("year", "2012")
	first, err := b.Build(sub, "brand", ce2(extractor.Pct, "year"))
	require.NoError(t, err)
	second, err := b.Build(sub, "brand", ce2(extractor.Pct, "year"))
	require.NoError(t, err)
	assert.Equal(t, first.Rows, second.Rows)
}

func TestDeriveRankTiesKeepGroupOrder(t *testing.T) {
	assert.Equal(t, []float64{2, 1, 3, 4}, derive(extractor.Rank, []float64{5, 7, 5, 1}))
	pct := derive(extractor.Pct, []float64{0, 0})
	assert.True(t, math.IsNaN(pct[0]))
}

func TestDepthOneCountAggregation(t *testing.T) {
	tb := salesTable()
	ds, err := dataset.New(tb, dataset.Schema{Dimensions: []string{"brand", "year", "region"}, Aggregation: extractor.Count})
	require.NoError(t, err)
	m, err := New(ds, Options{Depth: 1, K: 5, Cutoff: DefaultCutoff})
	require.NoError(t, err)
	ces := m.Extractors()
	require.Len(t, ces, 1)
	assert.Equal(t, "[(count, count)]", ces[0].String())

	rs, err := NewBuilder(ds).Build(dataset.Empty(), "brand", ces[0])
	require.NoError(t, err)
	var total float64
	for _, v := range rs.Measures() {
		total += v
	}
	assert.Equal(t, float64(len(tb.Rows)), total)
}

func TestSeriesParsesOrdinal(t *testing.T) {
	b := NewBuilder(salesData(t))
	rs, err := b.Build(dataset.Empty(), "year", extractor.Base(extractor.Sum, "sales"))
	require.NoError(t, err)
	s, err := rs.Series(true)
	require.NoError(t, err)
	assert.Equal(t, []float64{2010, 2011, 2012}, s.X)
	assert.Equal(t, []float64{16, 35, 73}, s.Y)
	assert.Equal(t, "year", s.Label)

	rs, err = b.Build(dataset.Empty(), "brand", extractor.Base(extractor.Sum, "sales"))
	require.NoError(t, err)
	_, err = rs.Series(true)
	assert.ErrorIs(t, err, dataset.ErrOrdinalNotNumeric)
	s, err = rs.Series(false)
	require.NoError(t, err)
	assert.Nil(t, s.X)
}

func TestValid(t *testing.T) {
	base := extractor.Base(extractor.Sum, "sales")
	y := dataset.Empty().With("year", "2012")
	tests := []struct {
		name string
		sub  dataset.Subspace
		div  string
		ce   extractor.Extractor
		want bool
	}{
		{"depth one always valid", dataset.Empty(), "brand", base, true},
		{"same dimension", dataset.Empty(), "brand", ce2(extractor.Pct, "brand"), true},
		{"analysis unbound", dataset.Empty(), "brand", ce2(extractor.Pct, "year"), false},
		{"analysis bound", y, "brand", ce2(extractor.Pct, "year"), true},
		{"delta_prev on ordinal", dataset.Empty(), "year", ce2(extractor.DeltaPrev, "year"), true},
		{"delta_prev on categorical", dataset.Empty(), "brand", ce2(extractor.DeltaPrev, "brand"), false},
		{"delta_prev bound ordinal", y, "brand", ce2(extractor.DeltaPrev, "year"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.sub, tt.div, tt.ce, "year"))
		})
	}
	assert.False(t, Valid(dataset.Empty(), "year", ce2(extractor.DeltaPrev, "year"), ""))
}

func TestUnion(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 5, 8}, union([]int{1, 3, 8}, []int{2, 3, 5}))
	assert.Equal(t, []int{4}, union(nil, []int{4}))
	assert.Empty(t, union(nil, nil))
}
