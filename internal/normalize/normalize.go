// Package normalize maps provider-specific output rows into the unified
// domain.CandidateMove shape. Pure functions only — no I/O, no blocking.
package normalize

import "github.com/aaweaver-actuary/repgrow/internal/domain"

// Quality maps quality-provider evaluation lines into candidates, preserving
// provider order and populating only quality signals (EvalCentipawns,
// AnalysisDepth).
func Quality(parent domain.PositionKey, lines []domain.EvaluationLine) []domain.CandidateMove {
	out := make([]domain.CandidateMove, len(lines))
	for i, l := range lines {
		eval := l.EvalCentipawns
		depth := l.Depth
		out[i] = domain.CandidateMove{
			UCI:          l.UCI,
			NextPosition: parent, // placeholder; pipeline overwrites after Apply
			Signals: domain.Signals{
				EvalCentipawns: &eval,
				AnalysisDepth:  &depth,
			},
		}
	}
	return out
}

// Popularity maps popularity-provider rows into candidates, preserving
// provider order and populating only popularity signals (PlayRate,
// GameCount).
func Popularity(parent domain.PositionKey, rows []domain.PopularityRow) []domain.CandidateMove {
	out := make([]domain.CandidateMove, len(rows))
	for i, r := range rows {
		rate := r.PlayRate
		count := r.GameCount
		out[i] = domain.CandidateMove{
			UCI:          r.UCI,
			NextPosition: parent,
			Signals: domain.Signals{
				PlayRate:  &rate,
				GameCount: &count,
			},
		}
	}
	return out
}
