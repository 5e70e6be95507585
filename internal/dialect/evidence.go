package dialect

import (
	"slices"

	"idlc/internal/source"
	"idlc/internal/token"
)

// Hint is a small piece of evidence suggesting a particular dialect.
type Hint struct {
	Dialect token.Dialect
	Score   int
	Reason  string
	Span    source.Span
}

// Evidence aggregates per-file hints.
type Evidence struct {
	hints []Hint
}

func NewEvidence() *Evidence {
	return &Evidence{hints: make([]Hint, 0, 16)}
}

func (e *Evidence) Add(h Hint) {
	if e == nil {
		return
	}
	e.hints = append(e.hints, h)
}

func (e *Evidence) Hints() []Hint {
	if e == nil {
		return nil
	}
	return e.hints
}

// Reasons returns the distinct reasons that point at d, strongest first,
// at most limit of them.
func (e *Evidence) Reasons(d token.Dialect, limit int) []string {
	best := make(map[string]int)
	var order []string
	for _, h := range e.Hints() {
		if h.Dialect != d {
			continue
		}
		if old, ok := best[h.Reason]; !ok {
			order = append(order, h.Reason)
			best[h.Reason] = h.Score
		} else if h.Score > old {
			best[h.Reason] = h.Score
		}
	}
	slices.SortStableFunc(order, func(a, b string) int { return best[b] - best[a] })
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	return order
}

// First returns the span of the earliest hint for d.
func (e *Evidence) First(d token.Dialect) (source.Span, bool) {
	for _, h := range e.Hints() {
		if h.Dialect == d {
			return h.Span, true
		}
	}
	return source.Span{}, false
}
