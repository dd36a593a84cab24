// Package quality implements the engine-style multi-PV evaluation provider.
// Swappable by configuration string ("cloud" or "stub").
package quality

import (
	"context"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

// Provider evaluates a position and returns its top candidate lines.
// Implementations must be safe for concurrent use and should layer
// cache -> single-flight -> rate limiter -> HTTP when fetching.
type Provider interface {
	Evaluate(ctx context.Context, position domain.PositionKey, multiPV int) ([]domain.EvaluationLine, error)
}
