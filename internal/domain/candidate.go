package domain

import "strconv"

// Signals are the optional evaluation fields a provider may attach to a
// candidate move. Pointer fields distinguish "absent" from the zero value;
// PostFilter's comparator treats a nil EvalCentipawns as -infinity and a nil
// PlayRate as -1, per the policy ordering contract.
type Signals struct {
	EvalCentipawns *int     `json:"eval_centipawns,omitempty"`
	AnalysisDepth  *uint8   `json:"analysis_depth,omitempty"`
	PlayRate       *float64 `json:"play_rate,omitempty"`
	GameCount      *uint32  `json:"game_count,omitempty"`
}

// EvaluationLine is one line of a quality (engine) provider's multi-PV
// response, ordered by the provider (best first).
type EvaluationLine struct {
	UCI            string
	EvalCentipawns int
	Depth          uint8
}

// PopularityRow is one row of a popularity (explorer) provider's response,
// ordered by the provider (by frequency, typically).
type PopularityRow struct {
	UCI       string
	PlayRate  float64
	GameCount uint32
}

// CandidateMove is the normalizer's unified output shape: a provider-agnostic
// move suggestion with whatever signals that provider populated. NextPosition
// starts as a placeholder equal to the parent position; the expansion
// pipeline overwrites it once the move applier has computed the real child
// position.
type CandidateMove struct {
	UCI          string
	NextPosition PositionKey
	Signals      Signals
}

// CandidateRequest is the query sent to a provider: not just a cache key but
// the full request shape, mutated by the policy's Adjust step before
// dispatch.
type CandidateRequest struct {
	Position        PositionKey
	MaxCandidates    int
	CentipawnWindow  int
	MinPlayRate      float64
	MultiPV          int
}

// Fingerprint returns the cache/single-flight key for this request. Providers
// construct it as "service|position|params"; callers pass the service name.
func (r CandidateRequest) Fingerprint(service string) string {
	return service + "|" + r.Position.String() + "|" +
		strconv.Itoa(r.MaxCandidates) + "|" + strconv.Itoa(r.CentipawnWindow) + "|" +
		strconv.FormatFloat(r.MinPlayRate, 'f', 6, 64) + "|" + strconv.Itoa(r.MultiPV)
}
