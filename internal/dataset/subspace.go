package dataset

import (
	"encoding/json"
	"sort"
	"strings"
)

// Wildcard marks an unbound dimension in result sets and descriptors.
const Wildcard = "*"

type binding struct {
	dim   string
	value string
	next  *binding
}

// Subspace is an immutable partial assignment of dimension -> value.
// Extending a subspace returns a new value that shares structure with its
// parent; there is no way to modify a Subspace in place, so sibling branches
// of a search never see each other's bindings.
type Subspace struct {
	head *binding
	n    int
}

// Empty returns the subspace that matches every row.
func Empty() Subspace { return Subspace{} }

// SubspaceOf builds a subspace from a map. Handy in tests and HTTP handlers.
func SubspaceOf(m map[string]string) Subspace {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := Empty()
	for _, k := range keys {
		s = s.With(k, m[k])
	}
	return s
}

// With returns a copy of s with dim bound to value. An existing binding for
// dim is replaced in the copy only.
func (s Subspace) With(dim, value string) Subspace {
	base := s
	if s.Has(dim) {
		base = s.Without(dim)
	}
	return Subspace{head: &binding{dim: dim, value: value, next: base.head}, n: base.n + 1}
}

// Without returns a copy of s with dim unbound.
func (s Subspace) Without(dim string) Subspace {
	if !s.Has(dim) {
		return s
	}
	out := Empty()
	// rebuild preserving the remaining bindings
	var kept []*binding
	for b := s.head; b != nil; b = b.next {
		if b.dim != dim {
			kept = append(kept, b)
		}
	}
	for i := len(kept) - 1; i >= 0; i-- {
		out = Subspace{head: &binding{dim: kept[i].dim, value: kept[i].value, next: out.head}, n: out.n + 1}
	}
	return out
}

// Get returns the value bound to dim.
func (s Subspace) Get(dim string) (string, bool) {
	for b := s.head; b != nil; b = b.next {
		if b.dim == dim {
			return b.value, true
		}
	}
	return "", false
}

// Has reports whether dim is bound.
func (s Subspace) Has(dim string) bool {
	_, ok := s.Get(dim)
	return ok
}

// Len is the number of bound dimensions.
func (s Subspace) Len() int { return s.n }

// Dims returns the bound dimensions in sorted order.
func (s Subspace) Dims() []string {
	out := make([]string, 0, s.n)
	for b := s.head; b != nil; b = b.next {
		out = append(out, b.dim)
	}
	sort.Strings(out)
	return out
}

// Map returns a fresh map of the bindings.
func (s Subspace) Map() map[string]string {
	m := make(map[string]string, s.n)
	for b := s.head; b != nil; b = b.next {
		m[b.dim] = b.value
	}
	return m
}

// Equal reports whether both subspaces hold the same bindings.
func (s Subspace) Equal(o Subspace) bool {
	if s.n != o.n {
		return false
	}
	for b := s.head; b != nil; b = b.next {
		if v, ok := o.Get(b.dim); !ok || v != b.value {
			return false
		}
	}
	return true
}

// String renders bindings sorted by dimension, e.g. "{brand=Toyota, year=2012}".
func (s Subspace) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, d := range s.Dims() {
		if i > 0 {
			sb.WriteString(", ")
		}
		v, _ := s.Get(d)
		sb.WriteString(d)
		sb.WriteByte('=')
		sb.WriteString(v)
	}
	sb.WriteByte('}')
	return sb.String()
}

func (s Subspace) MarshalJSON() ([]byte, error) { return json.Marshal(s.Map()) }

func (s Subspace) MarshalYAML() (any, error) { return s.Map(), nil }
