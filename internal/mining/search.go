package mining

import (
	"context"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
	"github.com/KaramelBytes/insightloom/internal/insight"
	"github.com/KaramelBytes/insightloom/internal/sigtest"
)

// minPoints is the smallest result set that is scored.
const minPoints = 4

// walker is one depth-first search owning its selector and counters.
type walker struct {
	m     *Miner
	top   *insight.TopK
	stats Stats
}

func (m *Miner) newWalker() *walker {
	return &walker{m: m, top: insight.NewTopK(m.opt.K)}
}

func (w *walker) emit(e Event) {
	w.stats.record(e.Kind)
	if w.m.opt.Observer != nil {
		w.m.opt.Observer.Observe(e)
	}
}

// enumerate processes the node (sub, dim, ce) and then its children.
func (w *walker) enumerate(ctx context.Context, ce extractor.Extractor, sub dataset.Subspace, dim string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ds := w.m.ds
	impact := ds.Impact(sub)
	node := Event{Subspace: sub, Dimension: dim, Extractor: ce, Impact: impact}

	// impact bounds the score of every insight in this subtree
	if impact <= w.m.opt.Cutoff {
		w.prune(node, "below cutoff")
		return nil
	}
	if bound, ok := w.top.Min(); ok && w.top.Full() && impact <= bound {
		w.prune(node, "below top-k bound")
		return nil
	}
	node.Kind = NodeVisited
	w.emit(node)

	if !Valid(sub, dim, ce, ds.Ordinal()) {
		node.Kind = NodeInvalid
		w.emit(node)
		w.m.log.Debug("invalid sibling group", "subspace", sub.String(), "dimension", dim, "extractor", ce.String())
	} else {
		w.score(node)
	}

	rows := ds.Rows(sub)
	for _, v := range ds.Distinct(dim, rows) {
		child := sub.With(dim, v)
		for _, next := range ds.Dimensions() {
			if child.Has(next) {
				continue
			}
			if err := w.enumerate(ctx, ce, child, next); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walker) prune(node Event, reason string) {
	node.Kind = NodePruned
	w.emit(node)
	w.m.log.Debug("pruned subspace", "subspace", node.Subspace.String(), "dimension", node.Dimension,
		"impact", node.Impact, "reason", reason)
}

// score builds the result set of a valid node and offers one insight per
// applicable insight kind. Failures are recorded and never stop the search.
func (w *walker) score(node Event) {
	ds := w.m.ds
	rs, err := w.m.builder.Build(node.Subspace, node.Dimension, node.Extractor)
	if err != nil {
		w.fail(node, err)
		return
	}
	if rs.Len() < minPoints {
		node.Kind = NodeInsufficient
		w.emit(node)
		return
	}
	ordinal := ds.IsOrdinal(node.Dimension)
	series, err := rs.Series(ordinal)
	if err != nil {
		w.fail(node, err)
		return
	}
	op, _, _ := node.Extractor.Derived()
	for _, kind := range sigtest.Kinds {
		if kind == sigtest.Shape && !ordinal {
			continue
		}
		test := sigtest.Select(kind, ordinal, node.Extractor.Depth(), op)
		res, err := sigtest.Run(test, series)
		if err != nil {
			w.fail(node, err)
			continue
		}
		in := insight.New(node.Subspace, node.Dimension, node.Extractor, kind, res, node.Impact)
		offered := node
		offered.Kind = InsightOffered
		offered.Score = in.Score
		w.emit(offered)
		if w.top.Offer(in) {
			offered.Kind = InsightRetained
			w.emit(offered)
		}
	}
}

func (w *walker) fail(node Event, err error) {
	node.Kind = NodeFailed
	node.Err = err
	w.emit(node)
	w.m.log.Debug("node failed", "subspace", node.Subspace.String(), "dimension", node.Dimension,
		"extractor", node.Extractor.String(), "error", err)
}
