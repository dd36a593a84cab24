package popularity

import (
	"context"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

// StubProvider returns a fixed, configurable set of rows regardless of the
// position queried. Used for local development and for the deterministic
// scenario-based tests in internal/pipeline and internal/dispatcher.
type StubProvider struct {
	Rows []domain.PopularityRow
	Err  error
}

// Sample implements Provider.
func (s *StubProvider) Sample(_ context.Context, _ domain.PositionKey) ([]domain.PopularityRow, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Rows, nil
}

var _ Provider = (*StubProvider)(nil)
