package quality

import (
	"context"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

// StubProvider returns a fixed, configurable set of lines regardless of the
// position queried. Used for local development and for the deterministic
// scenario-based tests in internal/pipeline and internal/dispatcher.
type StubProvider struct {
	Lines []domain.EvaluationLine
	Err   error
}

// Evaluate implements Provider.
func (s *StubProvider) Evaluate(_ context.Context, _ domain.PositionKey, _ int) ([]domain.EvaluationLine, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Lines, nil
}

var _ Provider = (*StubProvider)(nil)
