package sigtest

import "github.com/KaramelBytes/insightloom/internal/extractor"

// Kind is the type of insight a test looks for.
type Kind string

const (
	Point Kind = "point"
	Shape Kind = "shape"
)

// Kinds lists insight kinds in evaluation order.
var Kinds = []Kind{Point, Shape}

// Select returns the test used for an insight kind on a dividing dimension.
// Shape insights are only attempted on the ordinal dimension. Point insights
// use linear_point on the ordinal dimension, powerlaw at depth 1 and normal
// for every derived operator at depth 2.
func Select(kind Kind, ordinal bool, depth int, op extractor.DerivedOp) Test {
	if kind == Shape {
		return LinearShape{}
	}
	if ordinal {
		return LinearPoint{}
	}
	if depth == 1 {
		return PowerLaw{}
	}
	if t, ok := derivedPoint[op]; ok {
		return t
	}
	return Normal{}
}

// derivedPoint maps derived operators to the point test used at depth 2 on a
// categorical dimension.
var derivedPoint = map[extractor.DerivedOp]Test{
	extractor.Rank:      Normal{},
	extractor.DeltaPrev: Normal{},
	extractor.Pct:       Normal{},
	extractor.DeltaAvg:  Normal{},
}
