package mining

import (
	"github.com/KaramelBytes/insightloom/internal/dataset"
	"github.com/KaramelBytes/insightloom/internal/extractor"
)

// EventKind classifies what happened at a search node.
type EventKind int

const (
	NodeVisited EventKind = iota
	NodePruned
	NodeInvalid
	NodeInsufficient
	NodeFailed
	InsightOffered
	InsightRetained
)

func (k EventKind) String() string {
	switch k {
	case NodeVisited:
		return "visited"
	case NodePruned:
		return "pruned"
	case NodeInvalid:
		return "invalid"
	case NodeInsufficient:
		return "insufficient"
	case NodeFailed:
		return "failed"
	case InsightOffered:
		return "offered"
	case InsightRetained:
		return "retained"
	default:
		return "unknown"
	}
}

// Event is emitted by the search for every node decision and every insight
// offered to the selector.
type Event struct {
	Kind      EventKind
	Subspace  dataset.Subspace
	Dimension string
	Extractor extractor.Extractor
	Impact    float64
	// Score is set for insight events.
	Score float64
	// Err is set for NodeFailed.
	Err error
}

// Observer receives search events. With Workers > 1 it is called from
// several goroutines at once.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Stats counts search events.
type Stats struct {
	Visited      int `json:"visited" yaml:"visited"`
	Pruned       int `json:"pruned" yaml:"pruned"`
	Invalid      int `json:"invalid" yaml:"invalid"`
	Insufficient int `json:"insufficient" yaml:"insufficient"`
	Errors       int `json:"errors" yaml:"errors"`
	Offered      int `json:"offered" yaml:"offered"`
	Retained     int `json:"retained" yaml:"retained"`
}

func (s *Stats) record(k EventKind) {
	switch k {
	case NodeVisited:
		s.Visited++
	case NodePruned:
		s.Pruned++
	case NodeInvalid:
		s.Invalid++
	case NodeInsufficient:
		s.Insufficient++
	case NodeFailed:
		s.Errors++
	case InsightOffered:
		s.Offered++
	case InsightRetained:
		s.Retained++
	}
}

// Add sums o into s.
func (s *Stats) Add(o Stats) {
	s.Visited += o.Visited
	s.Pruned += o.Pruned
	s.Invalid += o.Invalid
	s.Insufficient += o.Insufficient
	s.Errors += o.Errors
	s.Offered += o.Offered
	s.Retained += o.Retained
}
