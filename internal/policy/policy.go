// Package policy decides, per node, which provider to consult and how to
// order and filter its candidates. The decide/adjust split is side-based:
// my-side moves go to the quality provider with a centipawn window,
// opponent moves go to the popularity provider with a minimum play rate.
// Policy is fully synchronous and does no internal buffering.
package policy

import (
	"sort"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

// Role is the provider a node's expansion should consult.
type Role int

const (
	Quality Role = iota
	Popularity
	// Hybrid is reserved: Decide never returns it and no provider is wired
	// to it. The pipeline's fetch step maps Hybrid to an empty candidate set.
	Hybrid
)

// Policy is immutable once constructed: MySide, the centipawn window, and
// the minimum play rate are fixed for the lifetime of a run.
type Policy struct {
	MySide          domain.Side
	CentipawnWindow int
	MinPlayRate     float64
}

// New constructs a Policy for the given side and thresholds.
func New(mySide domain.Side, centipawnWindow int, minPlayRate float64) *Policy {
	return &Policy{MySide: mySide, CentipawnWindow: centipawnWindow, MinPlayRate: minPlayRate}
}

// Decide returns Quality when sideToMove is my side, Popularity otherwise.
func (p *Policy) Decide(sideToMove domain.Side) Role {
	if sideToMove == p.MySide {
		return Quality
	}
	return Popularity
}

// Adjust tightens req in place: when isMySide, sets the centipawn window;
// otherwise sets the minimum play rate.
func (p *Policy) Adjust(req *domain.CandidateRequest, isMySide bool) {
	if isMySide {
		req.CentipawnWindow = p.CentipawnWindow
	} else {
		req.MinPlayRate = p.MinPlayRate
	}
}

// PostFilter returns candidates in the required deterministic total order:
// primary by EvalCentipawns descending (absent treated as -infinity),
// secondary by PlayRate descending (absent treated as -1), tertiary by UCI
// ascending lexicographically. The input slice is not mutated; the result is
// a new, sorted slice.
func (p *Policy) PostFilter(candidates []domain.CandidateMove) []domain.CandidateMove {
	out := make([]domain.CandidateMove, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		ei, ej := evalOrFloor(out[i]), evalOrFloor(out[j])
		if ei != ej {
			return ei > ej
		}
		ri, rj := rateOrFloor(out[i]), rateOrFloor(out[j])
		if ri != rj {
			return ri > rj
		}
		return out[i].UCI < out[j].UCI
	})
	return out
}

const negInfEval = -1 << 62

func evalOrFloor(c domain.CandidateMove) int {
	if c.Signals.EvalCentipawns == nil {
		return negInfEval
	}
	return *c.Signals.EvalCentipawns
}

func rateOrFloor(c domain.CandidateMove) float64 {
	if c.Signals.PlayRate == nil {
		return -1
	}
	return *c.Signals.PlayRate
}
