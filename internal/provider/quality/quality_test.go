package quality

import (
	"context"
	"errors"
	"testing"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

func TestStubProviderReturnsConfiguredLines(t *testing.T) {
	lines := []domain.EvaluationLine{{UCI: "e2e4", EvalCentipawns: 30, Depth: 20}}
	s := &StubProvider{Lines: lines}
	got, err := s.Evaluate(context.Background(), domain.PositionKey{}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].UCI != "e2e4" {
		t.Fatalf("got %+v, want %+v", got, lines)
	}
}

func TestStubProviderReturnsConfiguredError(t *testing.T) {
	wantErr := errors.New("unavailable")
	s := &StubProvider{Err: wantErr}
	_, err := s.Evaluate(context.Background(), domain.PositionKey{}, 3)
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
