// Package popularity implements the human-game-frequency provider. Swappable
// by configuration string ("explorer", "redis", or "stub").
package popularity

import (
	"context"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
)

// Provider samples move frequencies for a position and returns its rows.
// Implementations must be safe for concurrent use and should layer
// cache -> single-flight -> rate limiter -> HTTP when fetching.
type Provider interface {
	Sample(ctx context.Context, position domain.PositionKey) ([]domain.PopularityRow, error)
}
