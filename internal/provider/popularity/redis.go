package popularity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aaweaver-actuary/repgrow/internal/domain"
	"github.com/aaweaver-actuary/repgrow/internal/engineerr"
)

// DefaultRedisTimeout is the default per-request timeout.
const DefaultRedisTimeout = 5 * time.Second

// DefaultRedisRetries is the default number of retry attempts.
const DefaultRedisRetries = 3

// RedisConfig configures the Redis-backed popularity source. Unlike the
// HTTP explorer source, this source reads precomputed popularity rows that
// some external job has already written into Redis, keyed by KeyPrefix plus
// PositionKey.String() (the FEN and the side to move);
// it never invokes the live explorer service itself.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// KeyPrefix namespaces the position keys (default "repgrow:popularity:").
	KeyPrefix string
	// Timeout is the per-request timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on connection errors (default 3).
	Retries int
}

const defaultKeyPrefix = "repgrow:popularity:"

// RedisProvider reads popularity rows from a Redis GET per position key,
// with exponential-backoff retry around the connection and the read.
type RedisProvider struct {
	cfg    RedisConfig
	client *goredis.Client
}

// NewRedisProvider creates a Redis-backed popularity source from the given
// config. Returns an error if the URL is empty or invalid.
func NewRedisProvider(cfg RedisConfig) (*RedisProvider, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis popularity source requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis popularity source: invalid URL: %w", err)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultKeyPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRedisTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}
	if cfg.Retries == 0 {
		cfg.Retries = DefaultRedisRetries
	}
	return &RedisProvider{cfg: cfg, client: goredis.NewClient(opts)}, nil
}

// Sample implements Provider. Retries with exponential backoff on
// connection-level failures; a clean "key not found" is not an error, it
// just yields zero rows (the caller's node becomes a leaf via the normal
// empty-candidate path, not a provider failure).
func (p *RedisProvider) Sample(ctx context.Context, position domain.PositionKey) ([]domain.PopularityRow, error) {
	redisKey := p.cfg.KeyPrefix + position.String()

	var payload string
	var lastErr error
	attempts := 1 + p.cfg.Retries

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, engineerr.New(engineerr.ProviderUnavailable, "context canceled", err)
		}
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, engineerr.New(engineerr.ProviderUnavailable, "context canceled during backoff", ctx.Err())
			case <-time.After(backoff):
			}
		}

		getCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		payload, lastErr = p.client.Get(getCtx, redisKey).Result()
		cancel()

		if lastErr == nil || errors.Is(lastErr, goredis.Nil) {
			break
		}
	}

	if lastErr != nil && errors.Is(lastErr, goredis.Nil) {
		return nil, nil
	}
	if lastErr != nil {
		return nil, engineerr.New(engineerr.ProviderUnavailable,
			fmt.Sprintf("redis popularity source failed after %d attempts", attempts), lastErr)
	}

	var rows []domain.PopularityRow
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return nil, engineerr.New(engineerr.ProviderMalformed, "redis popularity payload was not valid JSON", err)
	}
	return rows, nil
}

// Close releases the Redis connection.
func (p *RedisProvider) Close() error {
	return p.client.Close()
}

var _ Provider = (*RedisProvider)(nil)
