// ssi-make - Normalize solar spectral irradiance sources into canonical datasets
//
// Each source is fetched into the raw cache, parsed, converted to nm and
// W m^-2 nm^-1 and written as a CF netCDF file (t, w, ssi). Parquet and
// gzip CSV exports and a ClickHouse load are available as extra outputs.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/ssi-make ./cmd/ssi-make

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/cache"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/common"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/export"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/metrics"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/ncio"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/pipeline"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/source"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/warehouse"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

const (
	formatNC      = "nc"
	formatParquet = "parquet"
	formatCSV     = "csv"
)

func loadConfig(cmd *cli.Command) (*common.Config, error) {
	cfg, err := common.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if dir := cmd.String("cache-dir"); dir != "" {
		cfg.Cache.Dir = dir
	}
	if f := cmd.String("metrics-file"); f != "" {
		cfg.Metrics.Textfile = f
	}
	return cfg, nil
}

// fileSink picks the sink for --format. An empty path writes per-name
// files under dir.
func fileSink(format, dir, path string) (pipeline.Sink, error) {
	switch format {
	case formatNC:
		if path != "" {
			return ncio.FileSink{Path: path}, nil
		}
		return ncio.DirSink{Dir: dir}, nil
	case formatParquet:
		return export.ParquetSink{Dir: dir, Path: path}, nil
	case formatCSV:
		return export.CSVSink{Dir: dir, Path: path}, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want %s, %s or %s)", format, formatNC, formatParquet, formatCSV)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()

	adapters, err := source.DefaultRegistry.Resolve(cmd.Args().Slice()...)
	if err != nil {
		return err
	}

	store := cache.New(cfg.Cache.Dir)
	if err := store.Init(); err != nil {
		return err
	}

	dryRun := cmd.Bool("dry-run")
	output := cmd.String("output")
	outDir := cmd.String("out-dir")
	if outDir == "" {
		outDir = store.FormattedDir()
	}

	var sinks []pipeline.Sink
	if !dryRun {
		s, err := fileSink(cmd.String("format"), outDir, output)
		if err != nil {
			return err
		}
		sinks = append(sinks, s)

		if cmd.Bool("clickhouse") {
			wh, err := warehouse.Open(ctx, cfg.ClickHouse, logger)
			if err != nil {
				return err
			}
			defer wh.Close()
			if err := wh.EnsureSchema(ctx); err != nil {
				return err
			}
			sinks = append(sinks, wh.Sink())
		}
	}

	stats := common.NewStats()
	m := metrics.New()
	client := fetch.NewClient(cfg.Fetch.Timeout, logger)
	client.FTPUser = cfg.Fetch.FTPUser
	client.FTPPassword = cfg.Fetch.FTPPassword
	client.OnBytes = func(n int64) { stats.AddBytes(uint64(n)) }

	runner := &pipeline.Runner{
		Fetcher:   client,
		Cache:     store,
		Builder:   dataset.NewBuilder(dataset.WithTool("ssi-make", Version)),
		Logger:    logger,
		Metrics:   m,
		Stats:     stats,
		SkipFetch: cmd.Bool("offline"),
	}

	fmt.Println("=========================================================")
	fmt.Printf("SSI Make v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Cache:       %s\n", store.Root)
	fmt.Printf("Sources:     %d\n", len(adapters))
	fmt.Printf("Jobs:        %d\n", cmd.Int("jobs"))
	if dryRun {
		fmt.Printf("Mode:        dry run (nothing written)\n")
	} else {
		fmt.Printf("Format:      %s\n", cmd.String("format"))
		fmt.Printf("ClickHouse:  %v\n", cmd.Bool("clickhouse"))
	}
	fmt.Println()

	stats.StartReporter()
	startTime := time.Now()
	var results []pipeline.Persisted
	if output != "" && !dryRun {
		results, err = runSingle(ctx, runner, adapters, sinks)
	} else {
		results, err = runner.RunAll(ctx, adapters, int(cmd.Int("jobs")), sinks...)
	}
	stats.StopReporter()
	elapsed := time.Since(startTime)

	if cfg.Metrics.Textfile != "" {
		if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn("metrics textfile not written", slog.String("path", cfg.Metrics.Textfile), slog.String("error", werr.Error()))
		}
	}
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("=========================================================")
	fmt.Println("Make Summary")
	fmt.Println("=========================================================")
	for _, r := range results {
		ds := r.Dataset
		fmt.Printf("  %-32s nt=%-5d nw=%-7d valid=%d\n", r.Name, ds.NT(), ds.NW(), ds.ValidPoints())
		for _, loc := range r.Locations {
			fmt.Printf("  %-32s -> %s\n", "", loc)
		}
	}
	fmt.Println()
	fmt.Printf("%s\n", stats.Summary())
	fmt.Printf("Elapsed:    %v\n", elapsed.Round(time.Millisecond))
	fmt.Println("=========================================================")
	return nil
}

// runSingle builds in memory first so an explicit --output is never
// overwritten by a second output of the same run.
func runSingle(ctx context.Context, r *pipeline.Runner, adapters []source.Adapter, sinks []pipeline.Sink) ([]pipeline.Persisted, error) {
	built, err := r.RunAll(ctx, adapters, 1)
	if err != nil {
		return nil, err
	}
	if len(built) != 1 {
		return nil, fmt.Errorf("--output needs exactly one output, the selected sources yield %d; use --out-dir", len(built))
	}
	p := built[0]
	for _, s := range sinks {
		loc, err := s.Persist(ctx, p.Name, p.Dataset)
		if err != nil {
			return nil, fmt.Errorf("%s: persist: %w", p.Name, err)
		}
		p.Locations = append(p.Locations, loc)
	}
	return []pipeline.Persisted{p}, nil
}

func cacheList(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store := cache.New(cfg.Cache.Dir)
	names, err := store.List()
	if err != nil {
		return err
	}
	fmt.Printf("Cache: %s\n\n", store.Root)
	if len(names) == 0 {
		fmt.Println("  (no canonical datasets)")
		return nil
	}
	for _, n := range names {
		fmt.Printf("  %s\n", n)
	}
	return nil
}

func cacheRemove(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cmd.Bool("yes") {
		return errors.New("refusing to remove the cache without --yes")
	}
	store := cache.New(cfg.Cache.Dir)
	if err := store.Remove(); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", store.Root)
	return nil
}

func sharedFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to config file",
			Sources: cli.EnvVars("SSI_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Cache root (overrides config and " + cache.EnvDir + ")",
		},
		&cli.StringFlag{
			Name:  "metrics-file",
			Usage: "Write Prometheus metrics to this textfile on exit",
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:      "ssi-make",
		Usage:     "Normalize solar spectral irradiance sources into canonical datasets",
		ArgsUsage: "[source ...|all]",
		Version:   Version,
		Action:    run,
		Flags: append(sharedFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the single output to this path",
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "Directory for per-name outputs (default: formatted cache)",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: nc, parquet or csv",
				Value: formatNC,
			},
			&cli.BoolFlag{
				Name:  "clickhouse",
				Usage: "Also load every output into ClickHouse",
			},
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Skip downloads and build from the raw cache",
			},
			&cli.IntFlag{
				Name:    "jobs",
				Aliases: []string{"j"},
				Usage:   "Sources converted in parallel",
				Value:   2,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Build in memory and print a summary without writing",
			},
		),
		Commands: []*cli.Command{
			{
				Name:  "cache",
				Usage: "Inspect or clear the local cache",
				Commands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List canonical datasets in the cache",
						Flags:  sharedFlags(),
						Action: cacheList,
					},
					{
						Name:  "remove",
						Usage: "Delete the whole cache tree",
						Flags: append(sharedFlags(), &cli.BoolFlag{
							Name:  "yes",
							Usage: "Confirm removal",
						}),
						Action: cacheRemove,
					},
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("ssi-make failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
