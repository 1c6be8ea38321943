package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AggOp is the first-level aggregation applied to the measure.
type AggOp int

const (
	Sum AggOp = iota
	Count
)

func (a AggOp) String() string {
	switch a {
	case Sum:
		return "sum"
	case Count:
		return "count"
	default:
		return fmt.Sprintf("agg(%d)", int(a))
	}
}

// ParseAggOp accepts "sum" or "count" (case-insensitive).
func ParseAggOp(s string) (AggOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sum", "":
		return Sum, nil
	case "count":
		return Count, nil
	default:
		return Sum, fmt.Errorf("unsupported aggregation: %s (use sum or count)", s)
	}
}

// DerivedOp is the second-level computation applied over an analysis dimension.
type DerivedOp int

const (
	Rank DerivedOp = iota
	DeltaPrev
	Pct
	DeltaAvg
)

// DerivedOps lists every derived operator in enumeration order.
var DerivedOps = []DerivedOp{Rank, DeltaPrev, Pct, DeltaAvg}

func (d DerivedOp) String() string {
	switch d {
	case Rank:
		return "rank"
	case DeltaPrev:
		return "delta_prev"
	case Pct:
		return "pct"
	case DeltaAvg:
		return "delta_avg"
	default:
		return fmt.Sprintf("derived(%d)", int(d))
	}
}

// ParseDerivedOp maps an operator name to its DerivedOp.
func ParseDerivedOp(s string) (DerivedOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rank":
		return Rank, nil
	case "delta_prev", "delta-prev":
		return DeltaPrev, nil
	case "pct", "percent":
		return Pct, nil
	case "delta_avg", "delta-avg":
		return DeltaAvg, nil
	default:
		return Rank, fmt.Errorf("unsupported derived operator: %s", s)
	}
}

// ParseDerivedOps parses a comma-separated operator list, dropping repeats.
// An empty list yields nil.
func ParseDerivedOps(list string) ([]DerivedOp, error) {
	var out []DerivedOp
	seen := map[DerivedOp]bool{}
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		op, err := ParseDerivedOp(name)
		if err != nil {
			return nil, err
		}
		if !seen[op] {
			seen[op] = true
			out = append(out, op)
		}
	}
	return out, nil
}

// Extractor is a composite extractor: a base aggregation over the measure,
// optionally followed by one derived operator over an analysis dimension.
// The zero value is not useful; build one with Base or Derive.
type Extractor struct {
	agg      AggOp
	measure  string
	derived  DerivedOp
	analysis string
	depth    int
}

// Base returns the depth-1 extractor (agg, measure).
func Base(agg AggOp, measure string) Extractor {
	return Extractor{agg: agg, measure: measure, depth: 1}
}

// Derive returns a depth-2 extractor [(agg, measure), (op, dimension)].
func Derive(agg AggOp, measure string, op DerivedOp, dimension string) Extractor {
	return Extractor{agg: agg, measure: measure, derived: op, analysis: dimension, depth: 2}
}

func (e Extractor) Depth() int      { return e.depth }
func (e Extractor) Agg() AggOp      { return e.agg }
func (e Extractor) Measure() string { return e.measure }

// Derived reports the second pair of a depth-2 extractor.
func (e Extractor) Derived() (op DerivedOp, dimension string, ok bool) {
	if e.depth < 2 {
		return 0, "", false
	}
	return e.derived, e.analysis, true
}

// String renders the extractor as its ordered pair list,
// e.g. "[(sum, sales), (pct, year)]".
func (e Extractor) String() string {
	if e.depth < 2 {
		return fmt.Sprintf("[(%s, %s)]", e.agg, e.measure)
	}
	return fmt.Sprintf("[(%s, %s), (%s, %s)]", e.agg, e.measure, e.derived, e.analysis)
}

// Describe is the human phrase used in interpretations,
// e.g. "pct of year of sum" or "sum".
func (e Extractor) Describe() string {
	if e.depth < 2 {
		return e.agg.String()
	}
	return fmt.Sprintf("%s of %s of %s", e.derived, e.analysis, e.agg)
}

// Pair is one (operator, target) step of an extractor.
type Pair struct {
	Op     string `json:"op" yaml:"op"`
	Target string `json:"target" yaml:"target"`
}

// Pairs returns the (operator, target) list.
func (e Extractor) Pairs() []Pair {
	out := []Pair{{Op: e.agg.String(), Target: e.measure}}
	if e.depth == 2 {
		out = append(out, Pair{Op: e.derived.String(), Target: e.analysis})
	}
	return out
}

func (e Extractor) MarshalJSON() ([]byte, error) { return json.Marshal(e.Pairs()) }

func (e Extractor) MarshalYAML() (any, error) { return e.Pairs(), nil }

// Enumerate lists the composite extractors searched at the given depth:
// a single base extractor for depth 1, and one extractor per
// (dimension, derived operator) for depth 2.
func Enumerate(depth int, agg AggOp, measure string, dims []string) ([]Extractor, error) {
	switch depth {
	case 1:
		return []Extractor{Base(agg, measure)}, nil
	case 2:
		out := make([]Extractor, 0, len(dims)*len(DerivedOps))
		for _, d := range dims {
			for _, op := range DerivedOps {
				out = append(out, Derive(agg, measure, op, d))
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected depth 1 or 2, got %d", depth)
	}
}
