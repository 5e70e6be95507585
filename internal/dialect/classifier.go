package dialect

import "idlc/internal/token"

// Classification is the result of scoring evidence for a file.
type Classification struct {
	Kind            token.Dialect
	Score           int
	TotalScore      int
	Confidence      float64
	RunnerUp        token.Dialect
	RunnerUpScore   int
	ObservedSignals int
}

// Classifier scores evidence and chooses a dominant dialect. Callers apply
// their own thresholds.
type Classifier struct{}

func (Classifier) Classify(e *Evidence) Classification {
	if e == nil || len(e.hints) == 0 {
		return Classification{Kind: token.DialectUnknown}
	}

	scores := map[token.Dialect]int{}
	total := 0
	for _, h := range e.hints {
		if h.Score <= 0 || h.Dialect == token.DialectUnknown {
			continue
		}
		scores[h.Dialect] += h.Score
		total += h.Score
	}

	bestKind, bestScore := token.DialectUnknown, 0
	runnerKind, runnerScore := token.DialectUnknown, 0
	for _, k := range []token.Dialect{token.DialectThrift, token.DialectProto} {
		score := scores[k]
		if score > bestScore {
			runnerKind, runnerScore = bestKind, bestScore
			bestKind, bestScore = k, score
			continue
		}
		if score > runnerScore {
			runnerKind, runnerScore = k, score
		}
	}

	conf := 0.0
	if total > 0 {
		conf = float64(bestScore) / float64(total)
	}
	return Classification{
		Kind:            bestKind,
		Score:           bestScore,
		TotalScore:      total,
		Confidence:      conf,
		RunnerUp:        runnerKind,
		RunnerUpScore:   runnerScore,
		ObservedSignals: len(e.hints),
	}
}

// Thresholds of Foreign.
const (
	minForeignScore      = 10
	minForeignConfidence = 0.75
)

// Foreign reports the dialect f really looks like when that is not the
// one its extension claims.
func Foreign(c Classification, declared token.Dialect) (token.Dialect, bool) {
	if c.Kind == token.DialectUnknown || c.Kind == declared {
		return token.DialectUnknown, false
	}
	if c.Score < minForeignScore || c.Confidence < minForeignConfidence {
		return token.DialectUnknown, false
	}
	return c.Kind, true
}
