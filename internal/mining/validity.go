package mining

import (
	"strconv"
	"strings"

	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
)

// Valid reports whether the sibling group SG(sub, dividing) is a valid input
// for ce. The derived step of a depth-2 extractor must target the dividing
// dimension or a dimension bound in sub, and delta_prev may only target the
// ordinal dimension.
func Valid(sub dataset.Subspace, dividing string, ce extractor.Extractor, ordinal string) bool {
	op, target, ok := ce.Derived()
	if !ok {
		return true
	}
	if target != dividing && !sub.Has(target) {
		return false
	}
	if op == extractor.DeltaPrev && (ordinal == "" || target != ordinal) {
		return false
	}
	return true
}

func parseOrdinal(v string) (float64, bool) {
	x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return x, err == nil
}
