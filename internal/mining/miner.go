// Package mining searches a dataset for its top-K insights.
package mining

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
	"github.com/KaramelBytes/insightloom/internal/insight"
)

var (
	ErrInvalidDepth  = errors.New("depth must be 1 or 2")
	ErrInvalidK      = errors.New("k must be at least 1")
	ErrInvalidCutoff = errors.New("cutoff must be a number below 1")
)

// DefaultCutoff is the impact below which subspaces are not explored.
const DefaultCutoff = 0.01

// Options configures a search.
type Options struct {
	Depth int
	K     int
	// Cutoff prunes subspaces with impact <= Cutoff. A negative value disables
	// the cutoff; top-K bound pruning still applies.
	Cutoff float64
	// Workers > 1 runs the top-level (extractor, dimension) roots in parallel,
	// each with its own selector.
	Workers int
	// Ops restricts the derived operators searched at depth 2. Empty means all.
	Ops      []extractor.DerivedOp
	Logger   *slog.Logger
	Observer Observer
}

// DefaultOptions returns the reference search settings.
func DefaultOptions() Options {
	return Options{Depth: 2, K: 10, Cutoff: DefaultCutoff, Workers: 1}
}

// Validate reports configuration errors.
func (o Options) Validate() error {
	if o.Depth != 1 && o.Depth != 2 {
		return fmt.Errorf("%w: got %d", ErrInvalidDepth, o.Depth)
	}
	if o.K < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidK, o.K)
	}
	if math.IsNaN(o.Cutoff) || o.Cutoff >= 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidCutoff, o.Cutoff)
	}
	return nil
}

// Result is the outcome of a search.
type Result struct {
	RunID    string            `json:"run_id" yaml:"run_id"`
	Insights []insight.Insight `json:"insights" yaml:"insights"`
	Stats    Stats             `json:"stats" yaml:"stats"`
	Elapsed  time.Duration     `json:"elapsed" yaml:"elapsed"`
}

// Miner runs top-K insight searches over one dataset.
type Miner struct {
	ds      *dataset.Dataset
	opt     Options
	builder *Builder
	log     *slog.Logger
	ces     []extractor.Extractor
}

// New validates opt against ds.
func New(ds *dataset.Dataset, opt Options) (*Miner, error) {
	if ds == nil {
		return nil, errors.New("nil dataset")
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	if opt.Workers < 1 {
		opt.Workers = 1
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	ces, err := extractor.Enumerate(opt.Depth, ds.Aggregation(), ds.Measure(), ds.Dimensions())
	if err != nil {
		return nil, err
	}
	if len(opt.Ops) > 0 && opt.Depth == 2 {
		ces = keepOps(ces, opt.Ops)
	}
	return &Miner{ds: ds, opt: opt, builder: NewBuilder(ds), log: opt.Logger, ces: ces}, nil
}

// Extractors returns the composite extractors searched.
func (m *Miner) Extractors() []extractor.Extractor {
	return append([]extractor.Extractor(nil), m.ces...)
}

func keepOps(ces []extractor.Extractor, ops []extractor.DerivedOp) []extractor.Extractor {
	want := make(map[extractor.DerivedOp]bool, len(ops))
	for _, op := range ops {
		want[op] = true
	}
	out := ces[:0]
	for _, ce := range ces {
		if op, _, ok := ce.Derived(); ok && want[op] {
			out = append(out, ce)
		}
	}
	return out
}

type root struct {
	ce  extractor.Extractor
	dim string
}

func (m *Miner) roots() []root {
	var out []root
	for _, ce := range m.ces {
		for _, d := range m.ds.Dimensions() {
			out = append(out, root{ce: ce, dim: d})
		}
	}
	return out
}

// Mine runs the search. It returns ctx.Err() if the context ends first.
func (m *Miner) Mine(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	log := m.log.With("run_id", res.RunID)
	log.Debug("search started", "dataset", m.ds.Name(), "depth", m.opt.Depth, "k", m.opt.K,
		"extractors", len(m.ces), "workers", m.opt.Workers)

	var top *insight.TopK
	var err error
	if m.opt.Workers <= 1 {
		top, res.Stats, err = m.mineSequential(ctx)
	} else {
		top, res.Stats, err = m.mineParallel(ctx)
	}
	if err != nil {
		return nil, err
	}
	res.Insights = top.Items()
	res.Elapsed = time.Since(start)
	log.Info("search finished",
		"insights", len(res.Insights),
		"visited", res.Stats.Visited,
		"pruned", res.Stats.Pruned,
		"errors", res.Stats.Errors,
		"elapsed", res.Elapsed.Round(time.Millisecond).String())
	return res, nil
}

// mineSequential shares one selector across every root so later roots
// benefit from the bound established by earlier ones.
func (m *Miner) mineSequential(ctx context.Context) (*insight.TopK, Stats, error) {
	w := m.newWalker()
	for _, r := range m.roots() {
		if err := w.enumerate(ctx, r.ce, dataset.Empty(), r.dim); err != nil {
			return nil, w.stats, err
		}
	}
	return w.top, w.stats, nil
}

// mineParallel gives every root its own walker and selector and reduces the
// partial selectors into one.
func (m *Miner) mineParallel(ctx context.Context) (*insight.TopK, Stats, error) {
	roots := m.roots()
	walkers := make([]*walker, len(roots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opt.Workers)
	for i, r := range roots {
		i, r := i, r
		g.Go(func() error {
			w := m.newWalker()
			walkers[i] = w
			return w.enumerate(gctx, r.ce, dataset.Empty(), r.dim)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}
	if err := ctx.Err(); err != nil {
		return nil, Stats{}, err
	}
	top := insight.NewTopK(m.opt.K)
	var stats Stats
	for _, w := range walkers {
		top.Merge(w.top)
		stats.Add(w.stats)
	}
	return top, stats, nil
}
