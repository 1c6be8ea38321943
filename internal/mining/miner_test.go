package mining

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
	"github.com/KaramelBytes/insightloom/internal/insight"
)

// randomSales builds a brand x region x year table with some cells missing.
func randomSales(t *testing.T, seed uint64) *dataset.Dataset {
	t.Helper()
	g := rand.New(rand.NewPCG(seed, seed))
	tb := &dataset.Table{Name: fmt.Sprintf("random-%d", seed), Header: []string{"brand", "region", "year", "sales"}}
	for _, b := range []string{"A", "B", "C"} {
		for _, r := range []string{"N", "S", "W"} {
			for y := 2010; y <= 2015; y++ {
				if g.IntN(7) == 0 {
					continue
				}
				tb.Rows = append(tb.Rows, []string{b, r, strconv.Itoa(y), strconv.Itoa(1 + g.IntN(100))})
			}
		}
	}
	ds, err := dataset.New(tb, dataset.Schema{Dimensions: []string{"brand", "region", "year"}, Measure: "sales", Ordinal: "year"})
	require.NoError(t, err)
	return ds
}

// plantedSpike has a clean linear trend per brand and one outlier in
// Toyota's 2006 sales.
func plantedSpike(t *testing.T) *dataset.Dataset {
	t.Helper()
	tb := &dataset.Table{Header: []string{"brand", "year", "sales"}}
	offsets := map[string]int{"BMW": 0, "Ford": 10, "Kia": 20, "Toyota": 30}
	for _, b := range []string{"BMW", "Ford", "Kia", "Toyota"} {
		for y := 2000; y < 2012; y++ {
			v := 100 + 5*(y-2000) + offsets[b]
			if b == "Toyota" && y == 2006 {
				v += 400
			}
			tb.Rows = append(tb.Rows, []string{b, strconv.Itoa(y), strconv.Itoa(v)})
		}
	}
	ds, err := dataset.New(tb, dataset.Schema{Dimensions: []string{"brand", "year"}, Measure: "sales", Ordinal: "year"})
	require.NoError(t, err)
	return ds
}

func mine(t *testing.T, ds *dataset.Dataset, opt Options) *Result {
	t.Helper()
	m, err := New(ds, opt)
	require.NoError(t, err)
	res, err := m.Mine(context.Background())
	require.NoError(t, err)
	return res
}

func scores(xs []insight.Insight) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x.Score
	}
	return out
}

func TestNewRejectsBadOptions(t *testing.T) {
	ds := salesData(t)
	cases := []struct {
		opt  Options
		want error
	}{
		{Options{Depth: 3, K: 1}, ErrInvalidDepth},
		{Options{Depth: 0, K: 1}, ErrInvalidDepth},
		{Options{Depth: 1, K: 0}, ErrInvalidK},
		{Options{Depth: 1, K: 1, Cutoff: math.NaN()}, ErrInvalidCutoff},
		{Options{Depth: 1, K: 1, Cutoff: 1}, ErrInvalidCutoff},
	}
	for _, tc := range cases {
		_, err := New(ds, tc.opt)
		assert.ErrorIs(t, err, tc.want)
	}
}

func TestMineFindsPlantedSpike(t *testing.T) {
	res := mine(t, plantedSpike(t), Options{Depth: 1, K: 5, Cutoff: DefaultCutoff})
	require.Len(t, res.Insights, 5)
	assert.NotEmpty(t, res.RunID)

	var found bool
	for _, in := range res.Insights {
		if in.Subspace.Len() == 0 && in.Dimension == "year" && in.Test == "linear_point" {
			found = true
			assert.Contains(t, in.Description, "year 2006 surprisingly high")
			assert.Greater(t, in.Score, 0.98)
		}
	}
	assert.True(t, found, "expected the whole-dataset yearly outlier among %v", res.Insights)
}

func TestMineResultInvariants(t *testing.T) {
	ds := randomSales(t, 7)
	res := mine(t, ds, Options{Depth: 2, K: 5, Cutoff: DefaultCutoff})
	require.Len(t, res.Insights, 5)
	assert.True(t, sort.SliceIsSorted(res.Insights, func(i, j int) bool {
		return res.Insights[i].Score > res.Insights[j].Score
	}))
	for _, in := range res.Insights {
		assert.GreaterOrEqual(t, in.Score, 0.0)
		assert.LessOrEqual(t, in.Score, in.Impact)
		assert.InDelta(t, in.Impact*in.Significance, in.Score, 1e-12)
		assert.InDelta(t, ds.Impact(in.Subspace), in.Impact, 1e-12)
		assert.True(t, Valid(in.Subspace, in.Dimension, in.Extractor, "year"))
		if in.Type == "shape" {
			assert.Equal(t, "year", in.Dimension)
		}
	}
	assert.Greater(t, res.Stats.Visited, 0)
	assert.Greater(t, res.Stats.Pruned, 0)
	assert.GreaterOrEqual(t, res.Stats.Offered, res.Stats.Retained)
}

// Pruning must never lose an insight that an exhaustive search would keep.
func TestPruningIsSound(t *testing.T) {
	for _, depth := range []int{1, 2} {
		for _, seed := range []uint64{1, 2, 3} {
			t.Run(fmt.Sprintf("depth%d/seed%d", depth, seed), func(t *testing.T) {
				ds := randomSales(t, seed)

				var offered []float64
				all := mine(t, ds, Options{
					Depth:    depth,
					K:        1 << 20,
					Cutoff:   -1,
					Observer: ObserverFunc(func(e Event) { offered = appendScore(offered, e) }),
				})
				require.Zero(t, all.Stats.Pruned)
				require.Len(t, all.Insights, len(offered))

				for _, k := range []int{1, 5, 20} {
					pruned := mine(t, ds, Options{Depth: depth, K: k, Cutoff: -1})
					want := scores(all.Insights)
					if len(want) > k {
						want = want[:k]
					}
					assert.InDeltaSlice(t, want, scores(pruned.Insights), 1e-12, "k=%d", k)
				}
			})
		}
	}
}

func appendScore(xs []float64, e Event) []float64 {
	if e.Kind == InsightOffered {
		xs = append(xs, e.Score)
	}
	return xs
}

func TestTopKKeepsBestOffered(t *testing.T) {
	ds := randomSales(t, 11)
	var offered []float64
	res := mine(t, ds, Options{
		Depth:    2,
		K:        6,
		Cutoff:   DefaultCutoff,
		Observer: ObserverFunc(func(e Event) { offered = appendScore(offered, e) }),
	})
	require.Len(t, res.Insights, 6)
	sort.Sort(sort.Reverse(sort.Float64Slice(offered)))
	assert.InDeltaSlice(t, offered[:6], scores(res.Insights), 1e-12)
	assert.Equal(t, len(offered), res.Stats.Offered)
}

func TestParallelMatchesSequential(t *testing.T) {
	for _, seed := range []uint64{4, 5} {
		ds := randomSales(t, seed)
		seq := mine(t, ds, Options{Depth: 2, K: 10, Cutoff: DefaultCutoff, Workers: 1})
		var events atomic.Int64
		par := mine(t, ds, Options{
			Depth:    2,
			K:        10,
			Cutoff:   DefaultCutoff,
			Workers:  4,
			Observer: ObserverFunc(func(Event) { events.Add(1) }),
		})
		assert.InDeltaSlice(t, scores(seq.Insights), scores(par.Insights), 1e-12, "seed %d", seed)
		assert.Greater(t, events.Load(), int64(0))
	}
}

func TestMineHonoursCancellation(t *testing.T) {
	ds := randomSales(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m, err := New(ds, Options{Depth: 2, K: 5, Cutoff: DefaultCutoff})
	require.NoError(t, err)
	_, err = m.Mine(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	for _, workers := range []int{1, 3} {
		ctx, cancel := context.WithCancel(context.Background())
		var visited atomic.Int64
		m, err := New(ds, Options{
			Depth:   2,
			K:       5,
			Cutoff:  -1,
			Workers: workers,
			Observer: ObserverFunc(func(e Event) {
				if e.Kind == NodeVisited && visited.Add(1) == 50 {
					cancel()
				}
			}),
		})
		require.NoError(t, err)
		_, err = m.Mine(ctx)
		assert.ErrorIs(t, err, context.Canceled, "workers=%d", workers)
		cancel()
	}
}

func TestEventKindsAreCounted(t *testing.T) {
	ds := salesData(t)
	counts := map[EventKind]int{}
	res := mine(t, ds, Options{
		Depth:    2,
		K:        3,
		Cutoff:   DefaultCutoff,
		Observer: ObserverFunc(func(e Event) { counts[e.Kind]++ }),
	})
	assert.Equal(t, counts[NodeVisited], res.Stats.Visited)
	assert.Equal(t, counts[NodePruned], res.Stats.Pruned)
	assert.Equal(t, counts[NodeInvalid], res.Stats.Invalid)
	assert.Equal(t, counts[NodeInsufficient], res.Stats.Insufficient)
	assert.Equal(t, counts[InsightOffered], res.Stats.Offered)
	assert.Greater(t, res.Stats.Invalid, 0)
	assert.Greater(t, res.Stats.Insufficient, 0)
	assert.Equal(t, "pruned", NodePruned.String())
}

func TestOpsRestrictDerivedExtractors(t *testing.T) {
	ds := salesData(t)
	m, err := New(ds, Options{Depth: 2, K: 5, Cutoff: DefaultCutoff, Ops: []extractor.DerivedOp{extractor.Pct, extractor.Rank}})
	require.NoError(t, err)
	var got []string
	for _, ce := range m.Extractors() {
		got = append(got, ce.String())
	}
	assert.Equal(t, []string{
		"[(sum, sales), (rank, brand)]",
		"[(sum, sales), (pct, brand)]",
		"[(sum, sales), (rank, year)]",
		"[(sum, sales), (pct, year)]",
		"[(sum, sales), (rank, region)]",
		"[(sum, sales), (pct, region)]",
	}, got)

	res, err := m.Mine(context.Background())
	require.NoError(t, err)
	for _, in := range res.Insights {
		op, _, ok := in.Extractor.Derived()
		require.True(t, ok)
		assert.Contains(t, []extractor.DerivedOp{extractor.Pct, extractor.Rank}, op)
	}

	all, err := New(ds, Options{Depth: 2, K: 5, Cutoff: DefaultCutoff})
	require.NoError(t, err)
	assert.Len(t, all.Extractors(), 4*len(ds.Dimensions()))

	base, err := New(ds, Options{Depth: 1, K: 5, Cutoff: DefaultCutoff, Ops: []extractor.DerivedOp{extractor.Pct}})
	require.NoError(t, err)
	require.Len(t, base.Extractors(), 1)
	assert.Equal(t, "[(sum, sales)]", base.Extractors()[0].String())
}
