package insight

import (
	"container/heap"
	"sort"
)

// TopK keeps the k highest-scoring insights offered to it. It is not safe for
// concurrent use; parallel searches keep one TopK each and Merge them.
type TopK struct {
	k int
	h minHeap
}

// NewTopK returns an empty selector of capacity k (k >= 1).
func NewTopK(k int) *TopK {
	if k < 1 {
		k = 1
	}
	return &TopK{k: k, h: make(minHeap, 0, min(k, 64))}
}

// Offer inserts i when there is room, or replaces the current minimum when i
// scores strictly higher. It reports whether i was retained.
func (t *TopK) Offer(i Insight) bool {
	if len(t.h) < t.k {
		heap.Push(&t.h, i)
		return true
	}
	if i.Score > t.h[0].Score {
		t.h[0] = i
		heap.Fix(&t.h, 0)
		return true
	}
	return false
}

func (t *TopK) Len() int   { return len(t.h) }
func (t *TopK) Full() bool { return len(t.h) >= t.k }

// Min returns the lowest retained score.
func (t *TopK) Min() (float64, bool) {
	if len(t.h) == 0 {
		return 0, false
	}
	return t.h[0].Score, true
}

// Items returns a copy of the retained insights sorted by score descending,
// ties by id.
func (t *TopK) Items() []Insight {
	out := append([]Insight(nil), t.h...)
	Sort(out)
	return out
}

// Merge offers every insight retained by o.
func (t *TopK) Merge(o *TopK) {
	if o == nil {
		return
	}
	for _, i := range o.h {
		t.Offer(i)
	}
}

// Sort orders insights by score descending, ties by id.
func Sort(xs []Insight) {
	sort.SliceStable(xs, func(a, b int) bool {
		if xs[a].Score != xs[b].Score {
			return xs[a].Score > xs[b].Score
		}
		return xs[a].ID < xs[b].ID
	})
}

type minHeap []Insight

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(Insight)) }

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
