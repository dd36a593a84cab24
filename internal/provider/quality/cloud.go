package quality

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

// CloudConfig configures the HTTP-backed cloud evaluation provider.
type CloudConfig struct {
	BaseURL string
	Retries int
}

// CloudProvider calls a remote multi-PV evaluation service, layering cache,
// single-flight coalescing, and a token-bucket rate limiter in front of the
// shared HTTP client.
type CloudProvider struct {
	cfg     CloudConfig
	client  *http.Client
	cache   *cache.Cache[[]domain.EvaluationLine]
	flight  *coalesce.Group
	limiter *ratelimit.Limiter
}

// NewCloudProvider wires the shared infra into a CloudProvider.
func NewCloudProvider(cfg CloudConfig, client *http.Client, c *cache.Cache[[]domain.EvaluationLine], flight *coalesce.Group, limiter *ratelimit.Limiter) *CloudProvider {
	return &CloudProvider{cfg: cfg, client: client, cache: c, flight: flight, limiter: limiter}
}

// Evaluate implements Provider.
func (p *CloudProvider) Evaluate(ctx context.Context, position domain.PositionKey, multiPV int) ([]domain.EvaluationLine, error) {
	key := fmt.Sprintf("cloud|%s|%d", position.String(), multiPV)

	if lines, ok := p.cache.Get(key); ok {
		return lines, nil
	}

	v, err := p.flight.Run(key, func() (any, error) {
		if err := p.limiter.Acquire(ctx); err != nil {
			return nil, engineerr.New(engineerr.ProviderUnavailable, "rate limiter acquire canceled", err)
		}
		lines, err := p.fetch(ctx, position, multiPV)
		if err != nil {
			return nil, err
		}
		p.cache.Put(key, lines)
		return lines, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]domain.EvaluationLine), nil
}

type cloudResponse struct {
	Lines []struct {
		UCI   string `json:"uci"`
		Eval  int    `json:"eval_centipawns"`
		Depth uint8  `json:"depth"`
	} `json:"lines"`
}

func (p *CloudProvider) fetch(ctx context.Context, position domain.PositionKey, multiPV int) ([]domain.EvaluationLine, error) {
	var lines []domain.EvaluationLine
	err := httpclient.Retry(p.cfg.Retries, 500*time.Millisecond, func(attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.requestURL(position, multiPV), nil)
		if err != nil {
			return err
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			return engineerr.New(engineerr.ProviderRateLimited, "cloud provider rate limited us", &httpclient.StatusError{Code: resp.StatusCode})
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &httpclient.StatusError{Code: resp.StatusCode}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		var parsed cloudResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return engineerr.New(engineerr.ProviderMalformed, "cloud provider returned malformed JSON", err)
		}
		lines = make([]domain.EvaluationLine, len(parsed.Lines))
		for i, l := range parsed.Lines {
			lines[i] = domain.EvaluationLine{UCI: l.UCI, EvalCentipawns: l.Eval, Depth: l.Depth}
		}
		return nil
	})
	if err != nil {
		if engineerr.Is(err, engineerr.ProviderRateLimited) || engineerr.Is(err, engineerr.ProviderMalformed) {
			return nil, err
		}
		return nil, engineerr.New(engineerr.ProviderUnavailable, "cloud provider request failed", err)
	}
	return lines, nil
}

func (p *CloudProvider) requestURL(position domain.PositionKey, multiPV int) string {
	q := url.Values{}
	q.Set("fen", position.FEN)
	q.Set("multipv", fmt.Sprintf("%d", multiPV))
	return p.cfg.BaseURL + "?" + q.Encode()
}
