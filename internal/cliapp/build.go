// Package cliapp wires configuration, providers, policy, and the dispatcher
// into a runnable engine, and exposes the urfave/cli/v2 command that drives
// it end to end: load an optional --config, resolve every field by
// CLI-flag-over-config-over-default precedence, validate, then build and run.
package cliapp

import (
	"context"
	"fmt"
	"time"

	"github.com/aaweaver-actuary/repgrow/internal/arena"
	"github.com/aaweaver-actuary/repgrow/internal/cache"
	"github.com/aaweaver-actuary/repgrow/internal/chessrules"
	"github.com/aaweaver-actuary/repgrow/internal/coalesce"
	"github.com/aaweaver-actuary/repgrow/internal/dispatcher"
	"github.com/aaweaver-actuary/repgrow/internal/domain"
	"github.com/aaweaver-actuary/repgrow/internal/engineerr"
	"github.com/aaweaver-actuary/repgrow/internal/httpclient"
	"github.com/aaweaver-actuary/repgrow/internal/logging"
	"github.com/aaweaver-actuary/repgrow/internal/metrics"
	"github.com/aaweaver-actuary/repgrow/internal/pipeline"
	"github.com/aaweaver-actuary/repgrow/internal/policy"
	"github.com/aaweaver-actuary/repgrow/internal/provider/popularity"
	"github.com/aaweaver-actuary/repgrow/internal/provider/quality"
	"github.com/aaweaver-actuary/repgrow/internal/ratelimit"
	"github.com/aaweaver-actuary/repgrow/internal/seenset"
)

// defaultArenaCapacityHint seeds the arena's backing slice; oversized by
// design since under-allocating just costs a few slice growths.
const defaultArenaCapacityHint = 256

const defaultSeenShards = 16

// Options is the fully-resolved set of parameters needed to build a run,
// after CLI/config/default precedence has already been applied by the
// caller.
type Options struct {
	RunID              string
	MySide             domain.Side
	MaxPlies           uint32
	Start              string
	Concurrency        int
	MaxTotalNodes      int64
	MaxChildrenMySide  int
	MaxChildrenOppSide int
	CentipawnWindow    int
	MinPlayRate        float64

	QualitySource  string
	QualityBaseURL string
	MultiPV        int

	PopularitySource  string
	PopularityBaseURL string
	PopularitySpeed   string
	MinRating         int
	MaxRating         int
	SinceYear         int

	HTTPTimeout time.Duration
	HTTPRetries int

	CacheEntries int
	CacheTTL     time.Duration

	RateCloudPerSec    int
	RateExplorerPerSec int
}

// Engine bundles everything BuildFromStart assembled: the arena, the root
// id, and the dispatcher ready to run.
type Engine struct {
	Arena      *arena.Arena
	RootID     uint64
	Dispatcher *dispatcher.Dispatcher
	Metrics    *metrics.Collector
	Logger     *logging.Logger
}

// BuildFromStart assembles a fully-wired Engine: providers (selected by
// Options.QualitySource/PopularitySource), the shared cache/rate-limit/HTTP
// infra each provider layers on top of, the side-split policy, the
// four-step pipeline, and the dispatcher, seeded with a root node at
// Options.Start (or the standard starting position when empty). This is the
// only place providers are selected by configuration string. The CLI is the
// only caller.
func BuildFromStart(opts Options, logger *logging.Logger) (*Engine, error) {
	rootPosition, err := chessrules.FromLine(opts.Start)
	if err != nil {
		return nil, err
	}

	qualityProvider, err := buildQualityProvider(opts)
	if err != nil {
		return nil, err
	}
	popularityProvider, err := buildPopularityProvider(opts)
	if err != nil {
		return nil, err
	}

	a := arena.New(defaultArenaCapacityHint)
	rootID := a.Append(domain.Node{Position: rootPosition, PlyDepth: 0})

	collector := metrics.NewCollector(opts.MySide.String())

	p := &pipeline.Pipeline{
		Config: pipeline.Config{
			MySide:             opts.MySide,
			MaxPlies:           opts.MaxPlies,
			MaxChildrenMySide:  opts.MaxChildrenMySide,
			MaxChildrenOppSide: opts.MaxChildrenOppSide,
			MultiPV:            opts.MultiPV,
			BaseRequest: domain.CandidateRequest{
				MaxCandidates: opts.MaxChildrenMySide,
				MultiPV:       opts.MultiPV,
			},
		},
		Arena:      a,
		Seen:       seenset.New(defaultSeenShards),
		Policy:     policy.New(opts.MySide, opts.CentipawnWindow, opts.MinPlayRate),
		Quality:    qualityProvider,
		Popularity: popularityProvider,
		Logger:     logger,
		Metrics:    collector,
	}

	d := dispatcher.New(dispatcher.Config{
		Concurrency:   opts.Concurrency,
		MaxTotalNodes: opts.MaxTotalNodes,
	}, p, logger)

	return &Engine{Arena: a, RootID: rootID, Dispatcher: d, Metrics: collector, Logger: logger}, nil
}

// Run drives the dispatcher to completion and returns the final node count
// and any fatal error.
func (e *Engine) Run(ctx context.Context) (int, error) {
	result := e.Dispatcher.Run(ctx, e.RootID)
	if result.FatalErr != nil {
		return e.Arena.Len(), result.FatalErr
	}
	return e.Arena.Len(), nil
}

func buildQualityProvider(opts Options) (quality.Provider, error) {
	switch opts.QualitySource {
	case "", "stub":
		return &quality.StubProvider{}, nil
	case "cloud":
		httpClient := httpclient.New(opts.HTTPTimeout)
		c := cache.New[[]domain.EvaluationLine](opts.CacheEntries, opts.CacheTTL)
		limiter := ratelimit.New("quality", opts.RateCloudPerSec)
		return quality.NewCloudProvider(quality.CloudConfig{
			BaseURL: opts.QualityBaseURL,
			Retries: opts.HTTPRetries,
		}, httpClient, c, &coalesce.Group{}, limiter), nil
	default:
		return nil, engineerr.New(engineerr.ConfigInvalid,
			fmt.Sprintf("unknown quality.source %q (want \"cloud\" or \"stub\")", opts.QualitySource), nil)
	}
}

func buildPopularityProvider(opts Options) (popularity.Provider, error) {
	switch opts.PopularitySource {
	case "", "stub":
		return &popularity.StubProvider{}, nil
	case "explorer":
		httpClient := httpclient.New(opts.HTTPTimeout)
		c := cache.New[[]domain.PopularityRow](opts.CacheEntries, opts.CacheTTL)
		limiter := ratelimit.New("popularity", opts.RateExplorerPerSec)
		return popularity.NewExplorerProvider(popularity.ExplorerConfig{
			BaseURL:   opts.PopularityBaseURL,
			Speed:     opts.PopularitySpeed,
			MinRating: opts.MinRating,
			MaxRating: opts.MaxRating,
			SinceYear: opts.SinceYear,
			Retries:   opts.HTTPRetries,
		}, httpClient, c, &coalesce.Group{}, limiter), nil
	case "redis":
		return popularity.NewRedisProvider(popularity.RedisConfig{URL: opts.PopularityBaseURL})
	default:
		return nil, engineerr.New(engineerr.ConfigInvalid,
			fmt.Sprintf("unknown popularity.source %q (want \"explorer\", \"redis\", or \"stub\")", opts.PopularitySource), nil)
	}
}
