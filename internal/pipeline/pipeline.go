// Package pipeline implements the four-step node-expansion pipeline run per
// dequeued node id: plan, fetch, select, expand.
package pipeline

import (
	"context"
	"fmt"

	"github.com/aaweaver-actuary/repgrow/internal/arena"
	"github.com/aaweaver-actuary/repgrow/internal/chessrules"
	"github.com/aaweaver-actuary/repgrow/internal/domain"
	"github.com/aaweaver-actuary/repgrow/internal/engineerr"
	"github.com/aaweaver-actuary/repgrow/internal/logging"
	"github.com/aaweaver-actuary/repgrow/internal/metrics"
	"github.com/aaweaver-actuary/repgrow/internal/normalize"
	"github.com/aaweaver-actuary/repgrow/internal/policy"
	"github.com/aaweaver-actuary/repgrow/internal/provider/popularity"
	"github.com/aaweaver-actuary/repgrow/internal/provider/quality"
	"github.com/aaweaver-actuary/repgrow/internal/seenset"
)

// ExpansionInput is Plan's output: the snapshot needed to fetch and expand a
// node, without re-reading the arena in later steps.
type ExpansionInput struct {
	NodeID   uint64
	Position domain.PositionKey
	PlyDepth uint32
}

// Config bundles the per-run parameters the pipeline needs beyond the shared
// infra handles: ply/child budgets and the base candidate request the fetch
// step copies per node.
type Config struct {
	MySide            domain.Side
	MaxPlies          uint32
	MaxChildrenMySide int
	MaxChildrenOppSide int
	BaseRequest       domain.CandidateRequest
	MultiPV           int
}

// Pipeline holds the shared, reference-type handles every step needs. All
// fields are safe for concurrent use; a Pipeline is constructed once per run
// and shared by every dispatcher worker.
type Pipeline struct {
	Config     Config
	Arena      *arena.Arena
	Seen       *seenset.Set
	Policy     *policy.Policy
	Quality    quality.Provider
	Popularity popularity.Provider
	Logger     *logging.Logger
	Metrics    *metrics.Collector
}

// Plan reads the node snapshot and decides whether to proceed. ok is false
// when the node should be skipped: missing, at/beyond the ply budget, or a
// position already seen.
func (p *Pipeline) Plan(_ context.Context, nodeID uint64) (input ExpansionInput, ok bool, err error) {
	node, getErr := p.Arena.Get(nodeID)
	if getErr != nil {
		return ExpansionInput{}, false, engineerr.New(engineerr.ArenaCorruption,
			fmt.Sprintf("plan: node %d missing from arena", nodeID), getErr)
	}
	if node.PlyDepth >= p.Config.MaxPlies {
		p.Metrics.IncNodesSkipped()
		return ExpansionInput{}, false, nil
	}
	if !p.Seen.InsertIfAbsent(node.Position) {
		p.Metrics.IncNodesSkipped()
		return ExpansionInput{}, false, nil
	}
	return ExpansionInput{NodeID: nodeID, Position: node.Position, PlyDepth: node.PlyDepth}, true, nil
}

// isMySide reports whether it is my side's move at input's position.
func (p *Pipeline) isMySide(input ExpansionInput) bool {
	return input.Position.SideToMove == p.Config.MySide
}

// Fetch copies the base request with the node's position, lets the policy
// adjust it, calls the decided provider, and normalizes the result. On
// provider failure it returns the provider's error unchanged; Run treats
// any such error whose kind is not fatal as "the node becomes a leaf."
func (p *Pipeline) Fetch(ctx context.Context, input ExpansionInput) ([]domain.CandidateMove, error) {
	req := p.Config.BaseRequest
	req.Position = input.Position

	isMySide := p.isMySide(input)
	p.Policy.Adjust(&req, isMySide)

	role := p.Policy.Decide(input.Position.SideToMove)
	p.Metrics.IncProviderCall()

	switch role {
	case policy.Quality:
		lines, err := p.Quality.Evaluate(ctx, input.Position, p.Config.MultiPV)
		if err != nil {
			p.recordProviderError(err)
			return nil, err
		}
		return normalize.Quality(input.Position, lines), nil
	case policy.Popularity:
		rows, err := p.Popularity.Sample(ctx, input.Position)
		if err != nil {
			p.recordProviderError(err)
			return nil, err
		}
		return normalize.Popularity(input.Position, rows), nil
	default: // policy.Hybrid: reserved, empty candidate set
		return nil, nil
	}
}

func (p *Pipeline) recordProviderError(err error) {
	kind := "unknown"
	var ee *engineerr.Error
	if e, ok := err.(*engineerr.Error); ok {
		ee = e
	}
	if ee != nil {
		kind = ee.Kind.String()
	}
	p.Metrics.IncProviderError(kind)
}

// Select applies the policy's post-filter ordering, then truncates to the
// per-node child budget appropriate for whose move it is.
func (p *Pipeline) Select(_ context.Context, input ExpansionInput, raw []domain.CandidateMove) []domain.CandidateMove {
	ordered := p.Policy.PostFilter(raw)

	limit := p.Config.MaxChildrenOppSide
	if p.isMySide(input) {
		limit = p.Config.MaxChildrenMySide
	}
	if limit < 0 {
		limit = 0
	}
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered
}

// Expand applies each candidate's move, constructs and appends a child node
// for every legal result, and links it into the parent's child list.
// Illegal moves are silently dropped. remaining, when non-nil, enforces the
// optional hard cap on total arena size: it is called once per legal
// candidate, and when it returns false Expand stops appending nodes for this
// call (plan/fetch/select already ran, for observability).
func (p *Pipeline) Expand(_ context.Context, input ExpansionInput, selected []domain.CandidateMove, remaining func() bool) ([]uint64, error) {
	childIDs := make([]uint64, 0, len(selected))

	for _, cand := range selected {
		uci, ok := domain.ParseUCI(cand.UCI)
		if !ok {
			continue
		}
		nextPos, err := chessrules.Apply(input.Position, uci)
		if err != nil {
			if engineerr.Is(err, engineerr.IllegalMove) {
				continue
			}
			return childIDs, err
		}

		// Consult the global cap only once we know the candidate is a
		// legal move that would actually produce a new node; an illegal
		// suggestion must not consume a cap slot.
		if remaining != nil && !remaining() {
			break
		}

		child := domain.Node{
			Parent:   &input.NodeID,
			Position: nextPos,
			LastMove: &uci,
			PlyDepth: input.PlyDepth + 1,
			Children: nil,
			Signals:  cand.Signals,
		}
		childID := p.Arena.Append(child)
		if err := p.Arena.PushChild(input.NodeID, childID); err != nil {
			return childIDs, engineerr.New(engineerr.ArenaCorruption,
				fmt.Sprintf("expand: failed to link child %d to parent %d", childID, input.NodeID), err)
		}
		childIDs = append(childIDs, childID)
	}

	if len(childIDs) > 0 {
		p.Metrics.IncNodesExpanded()
	}
	return childIDs, nil
}

// Run executes plan -> fetch -> select -> expand for a single node id,
// returning the new child ids to enqueue. A skip from Plan, or a non-fatal
// provider failure from Fetch, both yield an empty slice and a nil error:
// the node simply becomes a leaf. Only fatal errors (an *engineerr.Error
// whose IsFatal is true, such as ArenaCorruption) are returned.
func (p *Pipeline) Run(ctx context.Context, nodeID uint64, remaining func() bool) ([]uint64, error) {
	input, ok, err := p.Plan(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	raw, err := p.Fetch(ctx, input)
	if err != nil {
		// A provider error of any other kind, including a plain error that
		// is not an *engineerr.Error, only makes this node a leaf.
		if ee, isEngineErr := err.(*engineerr.Error); isEngineErr && ee.IsFatal() {
			return nil, err
		}
		return nil, nil
	}
	if len(raw) == 0 {
		return nil, nil
	}

	selected := p.Select(ctx, input, raw)
	if len(selected) == 0 {
		return nil, nil
	}

	return p.Expand(ctx, input, selected, remaining)
}
