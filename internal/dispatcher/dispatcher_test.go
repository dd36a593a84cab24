package dispatcher

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/aaweaver-actuary/repgrow/internal/arena"
	"github.com/aaweaver-actuary/repgrow/internal/chessrules"
	"github.com/aaweaver-actuary/repgrow/internal/domain"
	"github.com/aaweaver-actuary/repgrow/internal/engineerr"
	"github.com/aaweaver-actuary/repgrow/internal/logging"
	"github.com/aaweaver-actuary/repgrow/internal/pipeline"
	"github.com/aaweaver-actuary/repgrow/internal/policy"
	"github.com/aaweaver-actuary/repgrow/internal/provider/popularity"
	"github.com/aaweaver-actuary/repgrow/internal/provider/quality"
	"github.com/aaweaver-actuary/repgrow/internal/seenset"
)

func newFixture(t *testing.T, maxPlies uint32, maxMySide, maxOppSide int) (*pipeline.Pipeline, *arena.Arena, uint64) {
	t.Helper()
	cp30, cp10, d20 := 30, 10, uint8(20)
	q := &quality.StubProvider{Lines: []domain.EvaluationLine{
		{UCI: "e2e4", EvalCentipawns: cp30, Depth: d20},
		{UCI: "d2d4", EvalCentipawns: cp10, Depth: d20},
	}}
	pop := &popularity.StubProvider{Rows: []domain.PopularityRow{
		{UCI: "e7e5", PlayRate: 0.6, GameCount: 1000},
		{UCI: "c7c5", PlayRate: 0.3, GameCount: 800},
	}}
	a := arena.New(8)
	root := a.Append(domain.Node{Position: chessrules.StartPosition(), PlyDepth: 0})
	p := &pipeline.Pipeline{
		Config: pipeline.Config{
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
	return p, a, root
}

func testLogger() *logging.Logger {
	return logging.New(logging.RunContext{RunID: "test"}).WithOutput(&bytes.Buffer{})
}

func TestDispatcherTwoPlyBaseline(t *testing.T) {
	p, a, root := newFixture(t, 2, 1, 1)
	d := New(Config{Concurrency: 4}, p, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result := d.Run(ctx, root)
	if result.FatalErr != nil {
		t.Fatalf("unexpected fatal error: %v", result.FatalErr)
	}

	rootNode, _ := a.Get(root)
	if len(rootNode.Children) != 1 {
		t.Fatalf("expected root to have exactly 1 child, got %d", len(rootNode.Children))
	}
	child, _ := a.Get(rootNode.Children[0])
	if child.LastMove.String() != "e2e4" {
		t.Fatalf("expected root's child to be e2e4, got %s", child.LastMove)
	}
	if len(child.Children) != 1 {
		t.Fatalf("expected e2e4's node to have exactly 1 child, got %d", len(child.Children))
	}
	leaf, _ := a.Get(child.Children[0])
	if leaf.LastMove.String() != "e7e5" {
		t.Fatalf("expected leaf to be e7e5, got %s", leaf.LastMove)
	}
	if leaf.PlyDepth != 2 {
		t.Fatalf("leaf PlyDepth = %d, want 2", leaf.PlyDepth)
	}
	if a.Len() != 3 {
		t.Fatalf("expected exactly 3 nodes in the arena, got %d", a.Len())
	}
}

func TestDispatcherProviderFailureYieldsLeafRoot(t *testing.T) {
	a := arena.New(4)
	root := a.Append(domain.Node{Position: chessrules.StartPosition(), PlyDepth: 0})
	p := &pipeline.Pipeline{
		Config: pipeline.Config{MySide: domain.White, MaxPlies: 2, MaxChildrenMySide: 1, MaxChildrenOppSide: 1, MultiPV: 3},
		Arena:  a,
		Seen:   seenset.New(4),
		Policy:     policy.New(domain.White, 50, 0.1),
		Quality:    &quality.StubProvider{Err: engineerr.New(engineerr.ProviderUnavailable, "cloud provider down", nil)},
		Popularity: &popularity.StubProvider{},
	}
	d := New(Config{Concurrency: 2}, p, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	result := d.Run(ctx, root)
	if result.FatalErr != nil {
		t.Fatalf("provider failure must not be fatal at the dispatcher: %v", result.FatalErr)
	}
	node, _ := a.Get(root)
	if len(node.Children) != 0 {
		t.Fatalf("expected root to remain a leaf, got children %v", node.Children)
	}
}

func TestDispatcherGlobalNodeCap(t *testing.T) {
	p, a, root := newFixture(t, 10, 2, 2)
	d := New(Config{Concurrency: 4, MaxTotalNodes: 3}, p, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result := d.Run(ctx, root)
	if result.FatalErr != nil {
		t.Fatalf("unexpected fatal error: %v", result.FatalErr)
	}
	if a.Len() > 3 {
		t.Fatalf("expected arena to stop growing at the cap of 3, got %d nodes", a.Len())
	}
}

// TestDispatcherFanOutExceedsQueueCapacity reproduces a single node whose
// legal candidate count exceeds the queue's capacity (4*concurrency) under
// concurrency=1, i.e. a queue of depth 4 fed 6 children by one worker. The
// consumer must keep draining the queue while that worker is still running
// rather than parking until it returns, or the worker's blocking push and
// the consumer's wait would deadlock.
func TestDispatcherFanOutExceedsQueueCapacity(t *testing.T) {
	cp := func(v int) int { return v }
	lines := []domain.EvaluationLine{
		{UCI: "e2e4", EvalCentipawns: cp(60), Depth: 20},
		{UCI: "d2d4", EvalCentipawns: cp(50), Depth: 20},
		{UCI: "c2c4", EvalCentipawns: cp(40), Depth: 20},
		{UCI: "g1f3", EvalCentipawns: cp(30), Depth: 20},
		{UCI: "b1c3", EvalCentipawns: cp(20), Depth: 20},
		{UCI: "a2a3", EvalCentipawns: cp(10), Depth: 20},
	}
	q := &quality.StubProvider{Lines: lines}
	pop := &popularity.StubProvider{}

	a := arena.New(8)
	root := a.Append(domain.Node{Position: chessrules.StartPosition(), PlyDepth: 0})
	p := &pipeline.Pipeline{
		Config: pipeline.Config{
			MySide:             domain.White,
			MaxPlies:           1,
			MaxChildrenMySide:  len(lines),
			MaxChildrenOppSide: 1,
			MultiPV:            len(lines),
		},
		Arena:      a,
		Seen:       seenset.New(4),
		Policy:     policy.New(domain.White, 50, 0.1),
		Quality:    q,
		Popularity: pop,
	}

	d := New(Config{Concurrency: 1}, p, testLogger())

	done := make(chan Result, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() { done <- d.Run(ctx, root) }()

	select {
	case result := <-done:
		if result.FatalErr != nil {
			t.Fatalf("unexpected fatal error: %v", result.FatalErr)
		}
	case <-time.After(4 * time.Second):
		t.Fatal("dispatcher deadlocked: fan-out exceeding queue capacity never completed")
	}

	rootNode, _ := a.Get(root)
	if len(rootNode.Children) != len(lines) {
		t.Fatalf("expected root to have %d children, got %d", len(lines), len(rootNode.Children))
	}
}

func TestDispatcherDedupAcrossTranspositions(t *testing.T) {
	// Two synthetic nodes sharing the same position: the second must not
	// expand (S3), leaving the arena with exactly one expansion's worth of
	// children for that position.
	p, a, _ := newFixture(t, 4, 1, 1)
	pos := chessrules.StartPosition()
	n1 := a.Append(domain.Node{Position: pos, PlyDepth: 0})
	n2 := a.Append(domain.Node{Position: pos, PlyDepth: 0})

	d := New(Config{Concurrency: 1}, p, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Drive both ids through the same dispatcher with two independent Run
	// calls sharing the same Seen set: the first expands, the second must be
	// skipped by Plan.
	res1 := d.Run(ctx, n1)
	if res1.FatalErr != nil {
		t.Fatalf("unexpected fatal error: %v", res1.FatalErr)
	}
	first, _ := a.Get(n1)
	if len(first.Children) != 1 {
		t.Fatalf("expected first occurrence to expand exactly 1 child, got %d", len(first.Children))
	}

	res2 := d.Run(ctx, n2)
	if res2.FatalErr != nil {
		t.Fatalf("unexpected fatal error: %v", res2.FatalErr)
	}
	second, _ := a.Get(n2)
	if len(second.Children) != 0 {
		t.Fatalf("expected duplicate position to be skipped, got children %v", second.Children)
	}
}
