package cliapp

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/aaweaver-actuary/repgrow/internal/columnar"
	"github.com/aaweaver-actuary/repgrow/internal/config"
	"github.com/aaweaver-actuary/repgrow/internal/domain"
	"github.com/aaweaver-actuary/repgrow/internal/logging"
	"github.com/aaweaver-actuary/repgrow/internal/store"
	"github.com/aaweaver-actuary/repgrow/internal/tui"
	"github.com/aaweaver-actuary/repgrow/internal/write"
)

// Exit codes. exitConfigError covers failures before the run starts (bad
// flags, a malformed config file, an engine that cannot be built);
// exitEngineFatal covers a fatal error returned by the run itself, and
// exitWriteError a failure to write the output.
const (
	exitSuccess     = 0
	exitConfigError = 1
	exitEngineFatal = 2
	exitWriteError  = 3
)

// RunCommand returns the repgrow run command. This is the only command: the
// CLI's entire job is to resolve flags/config into cliapp.Options, build an
// Engine, run it, and hand the result to internal/write.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Build an opening repertoire tree and write it to a file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to YAML config file"},
			&cli.StringFlag{Name: "side", Usage: "The side the repertoire is built for: white or black"},
			&cli.UintFlag{Name: "plies", Usage: "Maximum ply depth to expand"},
			&cli.StringFlag{Name: "start", Usage: "Space-separated line of opening moves (SAN or UCI) to start from"},
			&cli.StringFlag{Name: "out", Usage: "Output file path"},
			&cli.BoolFlag{Name: "tui", Usage: "Show a live progress view while the run is in-flight"},
			&cli.StringFlag{Name: "columnar-out", Usage: "Optional path to also write a flattened parquet export of the tree"},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	var cfg *config.Config
	if configPath := c.String("config"); configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to load config: %v", err), exitConfigError)
		}
		cfg = loaded
	}

	sideStr := resolveString(c, "side", configVal(cfg, func(c *config.Config) string { return c.Policy.MySide }))
	if sideStr == "" {
		return cli.Exit("--side is required (provide via CLI flag or config file)", exitConfigError)
	}
	mySide, err := domain.ParseSide(sideStr)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	plies := resolveUint(c, "plies")
	if plies == 0 {
		return cli.Exit("--plies is required and must be > 0", exitConfigError)
	}

	outPath := c.String("out")
	if outPath == "" {
		return cli.Exit("--out is required", exitConfigError)
	}

	opts := Options{
		RunID:              fmt.Sprintf("%s-%d-%s", sideStr, plies, uuid.New().String()),
		MySide:             mySide,
		MaxPlies:           plies,
		Start:              c.String("start"),
		Concurrency:        configIntVal(cfg, func(c *config.Config) int { return c.Search.Concurrency }),
		MaxTotalNodes:      configInt64Val(cfg, func(c *config.Config) int64 { return c.Search.MaxTotalNodes }),
		MaxChildrenMySide:  configIntVal(cfg, func(c *config.Config) int { return c.Search.MaxChildrenMySide }),
		MaxChildrenOppSide: configIntVal(cfg, func(c *config.Config) int { return c.Search.MaxChildrenOppSide }),
		CentipawnWindow:    configIntVal(cfg, func(c *config.Config) int { return c.Policy.CentipawnWindow }),
		MinPlayRate:        configFloatVal(cfg, func(c *config.Config) float64 { return c.Policy.MinPlayRate }),

		QualitySource:  configVal(cfg, func(c *config.Config) string { return c.Quality.Source }),
		QualityBaseURL: configVal(cfg, func(c *config.Config) string { return c.Quality.BaseURL }),
		MultiPV:        configIntVal(cfg, func(c *config.Config) int { return c.Quality.MultiPV }),

		PopularitySource:  configVal(cfg, func(c *config.Config) string { return c.Popularity.Source }),
		PopularityBaseURL: configVal(cfg, func(c *config.Config) string { return c.Popularity.BaseURL }),
		PopularitySpeed:   configVal(cfg, func(c *config.Config) string { return c.Popularity.Speed }),
		MinRating:         configIntVal(cfg, func(c *config.Config) int { return c.Popularity.MinRating }),
		MaxRating:         configIntVal(cfg, func(c *config.Config) int { return c.Popularity.MaxRating }),
		SinceYear:         configIntVal(cfg, func(c *config.Config) int { return c.Popularity.SinceYear }),

		HTTPTimeout: time.Duration(configIntVal(cfg, func(c *config.Config) int { return c.HTTP.TimeoutMS })) * time.Millisecond,
		HTTPRetries: configIntVal(cfg, func(c *config.Config) int { return c.HTTP.Retries }),

		CacheEntries: configIntVal(cfg, func(c *config.Config) int { return c.Cache.Entries }),
		CacheTTL:     time.Duration(configIntVal(cfg, func(c *config.Config) int { return c.Cache.TTLSecs })) * time.Second,

		RateCloudPerSec:    configIntVal(cfg, func(c *config.Config) int { return c.Rate.CloudPerSec }),
		RateExplorerPerSec: configIntVal(cfg, func(c *config.Config) int { return c.Rate.ExplorerPerSec }),
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxChildrenMySide <= 0 {
		opts.MaxChildrenMySide = 1
	}
	if opts.MaxChildrenOppSide <= 0 {
		opts.MaxChildrenOppSide = 1
	}

	logger := logging.New(logging.RunContext{RunID: opts.RunID, Side: sideStr, Plies: plies})

	engine, err := BuildFromStart(opts, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to build engine: %v", err), exitConfigError)
	}

	ctx := context.Background()
	runErr := runEngine(ctx, engine, c.Bool("tui"))
	if runErr != nil {
		logger.Error("run aborted", map[string]any{"error": runErr.Error()})
		return cli.Exit(fmt.Sprintf("run failed: %v", runErr), exitEngineFatal)
	}

	nodes := engine.Arena.Snapshot()

	f, err := os.Create(outPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create output file: %v", err), exitWriteError)
	}
	defer f.Close()

	if writeErr := writeTo(f, outPath, nodes); writeErr != nil {
		return cli.Exit(fmt.Sprintf("failed to write output: %v", writeErr), exitWriteError)
	}

	if columnarOut := c.String("columnar-out"); columnarOut != "" {
		if colErr := writeColumnar(columnarOut, nodes); colErr != nil {
			return cli.Exit(fmt.Sprintf("failed to write columnar output: %v", colErr), exitWriteError)
		}
	}

	if storageEnabled := configBoolVal(cfg, func(c *config.Config) bool { return c.Storage.Enabled }); storageEnabled {
		if storageErr := mirrorSummary(ctx, cfg, opts, engine, sideStr); storageErr != nil {
			logger.Warn("storage mirror failed", map[string]any{"error": storageErr.Error()})
		}
	}

	return cli.Exit("", exitSuccess)
}

// runEngine drives engine.Run to completion. When showTUI is set, the run is
// started on its own goroutine and internal/tui.Run polls engine.Arena and
// engine.Metrics on the calling goroutine until the run's done channel
// closes; otherwise it simply blocks on the run.
func runEngine(ctx context.Context, engine *Engine, showTUI bool) error {
	if !showTUI {
		_, err := engine.Run(ctx)
		return err
	}

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		_, runErr = engine.Run(ctx)
	}()

	progress := tui.Progress{Arena: engine.Arena, Metrics: engine.Metrics}
	if tuiErr := tui.Run(progress, done); tuiErr != nil {
		<-done
		return tuiErr
	}
	<-done
	return runErr
}

func writeTo(f *os.File, path string, nodes []domain.Node) error {
	switch extOf(path) {
	case "pgn":
		pgn, err := write.PGN(nodes)
		if err != nil {
			return err
		}
		_, err = f.WriteString(pgn)
		return err
	case "msgpack", "mpk":
		return write.MsgPack(f, nodes)
	default:
		return write.JSON(f, nodes)
	}
}

func writeColumnar(path string, nodes []domain.Node) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return columnar.Write(f, nodes)
}

func extOf(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/'; i-- {
		if path[i] == '.' {
			return path[i+1:]
		}
	}
	return ""
}

func mirrorSummary(ctx context.Context, cfg *config.Config, opts Options, engine *Engine, side string) error {
	bucket := configVal(cfg, func(c *config.Config) string { return c.Storage.Bucket })
	dataset := configVal(cfg, func(c *config.Config) string { return c.Storage.Dataset })

	client, err := store.NewS3Client(ctx, store.S3Config{Bucket: bucket})
	if err != nil {
		return err
	}
	defer client.Close()

	now := time.Now()
	sink := store.NewSink(store.Config{
		Dataset:  dataset,
		Source:   "cli",
		Category: "run_summary",
		Day:      store.DeriveDay(now),
		RunID:    opts.RunID,
	}, client)

	root, _ := engine.Arena.Get(engine.RootID)
	summary := store.NewSummary(opts.RunID, root, engine.Arena.Len(), engine.Metrics.Snapshot(), now)
	summary.Side = side
	summary.MaxPlies = opts.MaxPlies
	return sink.Write(ctx, summary)
}

func resolveString(c *cli.Context, flag string, configVal string) string {
	if c.IsSet(flag) {
		return c.String(flag)
	}
	if configVal != "" {
		return configVal
	}
	return c.String(flag)
}

// resolveUint reads flag, which has no config-file equivalent (--plies is
// CLI-only per the external interface contract).
func resolveUint(c *cli.Context, flag string) uint32 {
	return uint32(c.Uint(flag))
}

func configVal(cfg *config.Config, fn func(*config.Config) string) string {
	if cfg == nil {
		return ""
	}
	return fn(cfg)
}

func configIntVal(cfg *config.Config, fn func(*config.Config) int) int {
	if cfg == nil {
		return 0
	}
	return fn(cfg)
}

func configInt64Val(cfg *config.Config, fn func(*config.Config) int64) int64 {
	if cfg == nil {
		return 0
	}
	return fn(cfg)
}

func configFloatVal(cfg *config.Config, fn func(*config.Config) float64) float64 {
	if cfg == nil {
		return 0
	}
	return fn(cfg)
}

func configBoolVal(cfg *config.Config, fn func(*config.Config) bool) bool {
	if cfg == nil {
		return false
	}
	return fn(cfg)
}

