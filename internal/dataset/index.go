package dataset

import "sort"

// postings maps each value of one dimension to the ascending row ids holding it.
type postings map[string][]int

func buildIndex(col []string) postings {
	idx := make(postings)
	for row, v := range col {
		idx[v] = append(idx[v], row)
	}
	return idx
}

// intersect merges ascending id lists, smallest first.
func intersect(lists [][]int) []int {
	if len(lists) == 0 {
		return nil
	}
	sort.Slice(lists, func(i, j int) bool { return len(lists[i]) < len(lists[j]) })
	out := append([]int(nil), lists[0]...)
	for _, l := range lists[1:] {
		if len(out) == 0 {
			break
		}
		out = intersectTwo(out, l)
	}
	return out
}

func intersectTwo(a, b []int) []int {
	out := a[:0]
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
