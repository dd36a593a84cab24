package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/aaweaver-actuary/repgrow/internal/arena"
	"github.com/aaweaver-actuary/repgrow/internal/chessrules"
	"github.com/aaweaver-actuary/repgrow/internal/domain"
	"github.com/aaweaver-actuary/repgrow/internal/engineerr"
	"github.com/aaweaver-actuary/repgrow/internal/policy"
	"github.com/aaweaver-actuary/repgrow/internal/provider/popularity"
	"github.com/aaweaver-actuary/repgrow/internal/provider/quality"
	"github.com/aaweaver-actuary/repgrow/internal/seenset"
)

func newTestPipeline(q quality.Provider, pop popularity.Provider, maxPlies uint32, maxMySide, maxOppSide int) (*Pipeline, *arena.Arena) {
	a := arena.New(8)
	p := &Pipeline{
		Config: Config{
			MySide:             domain.White,
			MaxPlies:           maxPlies,
			MaxChildrenMySide:  maxMySide,
			MaxChildrenOppSide: maxOppSide,
			MultiPV:            3,
		},
		Arena:      a,
		Seen:       seenset.New(4),
		Policy:     policy.New(domain.White, 50, 0.1),
		Quality:    q,
		Popularity: pop,
	}
	return p, a
}

func eval(v int) *int { return &v }

func TestPlanSkipsNodeAtMaxPlies(t *testing.T) {
	p, a := newTestPipeline(&quality.StubProvider{}, &popularity.StubProvider{}, 2, 1, 1)
	root := a.Append(domain.Node{Position: chessrules.StartPosition(), PlyDepth: 2})

	_, ok, err := p.Plan(context.Background(), root)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected Plan to skip a node already at max plies")
	}
}

func TestPlanSkipsAlreadySeenPosition(t *testing.T) {
	p, a := newTestPipeline(&quality.StubProvider{}, &popularity.StubProvider{}, 4, 1, 1)
	start := chessrules.StartPosition()
	root := a.Append(domain.Node{Position: start, PlyDepth: 0})

	if _, ok, _ := p.Plan(context.Background(), root); !ok {
		t.Fatal("first Plan should succeed")
	}

	dup := a.Append(domain.Node{Position: start, PlyDepth: 0})
	_, ok, err := p.Plan(context.Background(), dup)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("second Plan over the same position must be skipped (S3 dedup)")
	}
}

func TestPlanReturnsFatalOnMissingNode(t *testing.T) {
	p, _ := newTestPipeline(&quality.StubProvider{}, &popularity.StubProvider{}, 4, 1, 1)
	_, _, err := p.Plan(context.Background(), 99)
	if err == nil || !engineerr.Is(err, engineerr.ArenaCorruption) {
		t.Fatalf("expected ArenaCorruption, got %v", err)
	}
}

func TestFetchUsesQualityForMySideAndPopularityForOpponent(t *testing.T) {
	cp30, d20 := 30, uint8(20)
	q := &quality.StubProvider{Lines: []domain.EvaluationLine{{UCI: "e2e4", EvalCentipawns: cp30, Depth: d20}}}
	pop := &popularity.StubProvider{Rows: []domain.PopularityRow{{UCI: "e7e5", PlayRate: 0.6, GameCount: 1000}}}
	p, a := newTestPipeline(q, pop, 4, 1, 1)

	rootPos := chessrules.StartPosition()
	root := a.Append(domain.Node{Position: rootPos, PlyDepth: 0})
	input, ok, err := p.Plan(context.Background(), root)
	if err != nil || !ok {
		t.Fatalf("plan failed: ok=%v err=%v", ok, err)
	}
	cands, err := p.Fetch(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 || cands[0].UCI != "e2e4" || cands[0].Signals.EvalCentipawns == nil {
		t.Fatalf("expected quality candidate for my side, got %+v", cands)
	}

	blackPos, err := chessrules.Apply(rootPos, mustUCI(t, "e2e4"))
	if err != nil {
		t.Fatalf("apply e2e4: %v", err)
	}
	childID := a.Append(domain.Node{Position: blackPos, PlyDepth: 1})
	childInput, ok, err := p.Plan(context.Background(), childID)
	if err != nil || !ok {
		t.Fatalf("plan child failed: ok=%v err=%v", ok, err)
	}
	cands, err = p.Fetch(context.Background(), childInput)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cands) != 1 || cands[0].UCI != "e7e5" || cands[0].Signals.PlayRate == nil {
		t.Fatalf("expected popularity candidate for opponent side, got %+v", cands)
	}
	_ = eval
}

func mustUCI(t *testing.T, s string) domain.UciMove {
	t.Helper()
	u, ok := domain.ParseUCI(s)
	if !ok {
		t.Fatalf("could not parse uci %q", s)
	}
	return u
}

func TestSelectTruncatesToChildBudgetPreservingOrder(t *testing.T) {
	p, _ := newTestPipeline(&quality.StubProvider{}, &popularity.StubProvider{}, 4, 1, 2)
	root := domain.PositionKey{FEN: "x", SideToMove: domain.White}
	e1, e2, e3 := 50, 10, 5
	candidates := []domain.CandidateMove{
		{UCI: "a2a3", NextPosition: root, Signals: domain.Signals{EvalCentipawns: &e2}},
		{UCI: "b2b3", NextPosition: root, Signals: domain.Signals{EvalCentipawns: &e1}},
		{UCI: "c2c3", NextPosition: root, Signals: domain.Signals{EvalCentipawns: &e3}},
	}
	input := ExpansionInput{Position: domain.PositionKey{FEN: "x", SideToMove: domain.White}}
	selected := p.Select(context.Background(), input, candidates)
	if len(selected) != 1 || selected[0].UCI != "b2b3" {
		t.Fatalf("expected top-1 by eval for my side, got %+v", selected)
	}
}

func TestExpandDropsIllegalCandidatesAndKeepsSiblings(t *testing.T) {
	q := &quality.StubProvider{}
	p, a := newTestPipeline(q, &popularity.StubProvider{}, 4, 3, 3)
	root := chessrules.StartPosition()
	rootID := a.Append(domain.Node{Position: root, PlyDepth: 0})

	e1 := 30
	candidates := []domain.CandidateMove{
		{UCI: "e7e5", NextPosition: root, Signals: domain.Signals{EvalCentipawns: &e1}}, // illegal: black pawn move on white's turn
		{UCI: "e2e4", NextPosition: root, Signals: domain.Signals{EvalCentipawns: &e1}}, // legal
	}
	input := ExpansionInput{NodeID: rootID, Position: root, PlyDepth: 0}
	childIDs, err := p.Expand(context.Background(), input, candidates, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(childIDs) != 1 {
		t.Fatalf("expected exactly 1 legal child (illegal dropped), got %d: %v", len(childIDs), childIDs)
	}
	child, err := a.Get(childIDs[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if child.LastMove == nil || child.LastMove.String() != "e2e4" {
		t.Fatalf("expected surviving child to be e2e4, got %+v", child.LastMove)
	}
}

func TestRunProviderFailureYieldsLeaf(t *testing.T) {
	q := &quality.StubProvider{Err: errors.New("boom")}
	p, a := newTestPipeline(q, &popularity.StubProvider{}, 4, 1, 1)
	root := a.Append(domain.Node{Position: chessrules.StartPosition(), PlyDepth: 0})

	children, err := p.Run(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("provider failure must not propagate as a fatal error: %v", err)
	}
	if len(children) != 0 {
		t.Fatalf("expected no children when provider fails, got %v", children)
	}
	node, _ := a.Get(root)
	if len(node.Children) != 0 {
		t.Fatalf("root must remain a leaf, got children %v", node.Children)
	}
}

func TestRunTwoPlyBaseline(t *testing.T) {
	cp30, cp10, d20 := 30, 10, uint8(20)
	q := &quality.StubProvider{Lines: []domain.EvaluationLine{
		{UCI: "e2e4", EvalCentipawns: cp30, Depth: d20},
		{UCI: "d2d4", EvalCentipawns: cp10, Depth: d20},
	}}
	pop := &popularity.StubProvider{Rows: []domain.PopularityRow{
		{UCI: "e7e5", PlayRate: 0.6, GameCount: 1000},
		{UCI: "c7c5", PlayRate: 0.3, GameCount: 800},
	}}
	p, a := newTestPipeline(q, pop, 2, 1, 1)
	root := a.Append(domain.Node{Position: chessrules.StartPosition(), PlyDepth: 0})

	children, err := p.Run(context.Background(), root, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("expected exactly one child of root, got %v", children)
	}
	whiteChild, _ := a.Get(children[0])
	if whiteChild.LastMove.String() != "e2e4" {
		t.Fatalf("expected root's only child to be e2e4, got %s", whiteChild.LastMove)
	}

	grandchildren, err := p.Run(context.Background(), children[0], nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grandchildren) != 1 {
		t.Fatalf("expected exactly one grandchild, got %v", grandchildren)
	}
	leaf, _ := a.Get(grandchildren[0])
	if leaf.LastMove.String() != "e7e5" {
		t.Fatalf("expected leaf to be e7e5, got %s", leaf.LastMove)
	}
	if leaf.PlyDepth != 2 {
		t.Fatalf("leaf PlyDepth = %d, want 2", leaf.PlyDepth)
	}
}
