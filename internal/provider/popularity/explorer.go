package popularity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aaweaver-actuary/repgrow/internal/cache"
	"github.com/aaweaver-actuary/repgrow/internal/coalesce"
	"github.com/aaweaver-actuary/repgrow/internal/domain"
	"github.com/aaweaver-actuary/repgrow/internal/engineerr"
	"github.com/aaweaver-actuary/repgrow/internal/httpclient"
	"github.com/aaweaver-actuary/repgrow/internal/ratelimit"
)

// ExplorerConfig configures the HTTP-backed human-game explorer provider.
type ExplorerConfig struct {
	BaseURL    string
	Speed      string
	MinRating  int
	MaxRating  int
	SinceYear  int
	Retries    int
}

// ExplorerProvider calls a remote game-database explorer, layering cache,
// single-flight coalescing, and a rate limiter in front of the shared HTTP
// client.
type ExplorerProvider struct {
	cfg     ExplorerConfig
	client  *http.Client
	cache   *cache.Cache[[]domain.PopularityRow]
	flight  *coalesce.Group
	limiter *ratelimit.Limiter
}

// NewExplorerProvider wires the shared infra into an ExplorerProvider.
func NewExplorerProvider(cfg ExplorerConfig, client *http.Client, c *cache.Cache[[]domain.PopularityRow], flight *coalesce.Group, limiter *ratelimit.Limiter) *ExplorerProvider {
	return &ExplorerProvider{cfg: cfg, client: client, cache: c, flight: flight, limiter: limiter}
}

// Sample implements Provider.
func (p *ExplorerProvider) Sample(ctx context.Context, position domain.PositionKey) ([]domain.PopularityRow, error) {
	key := fmt.Sprintf("explorer|%s|%s|%d-%d|%d", position.String(), p.cfg.Speed, p.cfg.MinRating, p.cfg.MaxRating, p.cfg.SinceYear)

	if rows, ok := p.cache.Get(key); ok {
		return rows, nil
	}

	v, err := p.flight.Run(key, func() (any, error) {
		if err := p.limiter.Acquire(ctx); err != nil {
			return nil, engineerr.New(engineerr.ProviderUnavailable, "rate limiter acquire canceled", err)
		}
		rows, err := p.fetch(ctx, position)
		if err != nil {
			return nil, err
		}
		p.cache.Put(key, rows)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.PopularityRow), nil
}

type explorerResponse struct {
	Moves []struct {
		UCI       string  `json:"uci"`
		PlayRate  float64 `json:"play_rate"`
		GameCount uint32  `json:"game_count"`
	} `json:"moves"`
}

func (p *ExplorerProvider) fetch(ctx context.Context, position domain.PositionKey) ([]domain.PopularityRow, error) {
	var rows []domain.PopularityRow
	err := httpclient.Retry(p.cfg.Retries, 500*time.Millisecond, func(attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.requestURL(position), nil)
		if err != nil {
			return err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			return engineerr.New(engineerr.ProviderRateLimited, "explorer provider rate limited us", &httpclient.StatusError{Code: resp.StatusCode})
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &httpclient.StatusError{Code: resp.StatusCode}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var parsed explorerResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return engineerr.New(engineerr.ProviderMalformed, "explorer provider returned malformed JSON", err)
		}
		rows = make([]domain.PopularityRow, len(parsed.Moves))
		for i, m := range parsed.Moves {
			rows[i] = domain.PopularityRow{UCI: m.UCI, PlayRate: m.PlayRate, GameCount: m.GameCount}
		}
		return nil
	})
	if err != nil {
		if engineerr.Is(err, engineerr.ProviderRateLimited) || engineerr.Is(err, engineerr.ProviderMalformed) {
			return nil, err
		}
		return nil, engineerr.New(engineerr.ProviderUnavailable, "explorer provider request failed", err)
	}
	return rows, nil
}

func (p *ExplorerProvider) requestURL(position domain.PositionKey) string {
	q := url.Values{}
	q.Set("fen", position.FEN)
	q.Set("speed", p.cfg.Speed)
	q.Set("min_rating", fmt.Sprintf("%d", p.cfg.MinRating))
	q.Set("max_rating", fmt.Sprintf("%d", p.cfg.MaxRating))
	q.Set("since_year", fmt.Sprintf("%d", p.cfg.SinceYear))
	return p.cfg.BaseURL + "?" + q.Encode()
}
