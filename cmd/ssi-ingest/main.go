// ssi-ingest - Load canonical spectral irradiance datasets into ClickHouse
//
// Supported inputs:
//   - Canonical netCDF (<name>.nc) written by ssi-make
//   - Long-format Parquet (<name>.parquet) written by ssi-make --format parquet
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/ssi-ingest ./cmd/ssi-ingest

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/KI7MT/ki7mt-ssi-apps/internal/cache"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/common"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/dataset"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/export"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/ncio"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/warehouse"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

// readFile loads one input by extension and returns its dataset name.
func readFile(path string) (string, *dataset.Dataset, error) {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, ncio.Ext):
		ds, err := ncio.Read(path)
		return strings.TrimSuffix(base, ncio.Ext), ds, err
	case strings.HasSuffix(base, export.ParquetExt):
		name, ds, err := export.ReadParquet(path)
		if err == nil && name == "" {
			name = strings.TrimSuffix(base, export.ParquetExt)
		}
		return name, ds, err
	default:
		return "", nil, fmt.Errorf("%s: unsupported file type", path)
	}
}

func discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read source directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n := e.Name()
		if strings.HasSuffix(n, ncio.Ext) || strings.HasSuffix(n, export.ParquetExt) {
			files = append(files, filepath.Join(dir, n))
		}
	}
	sort.Strings(files)
	return files, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := common.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("batch") {
		cfg.ClickHouse.BatchSize = int(cmd.Int("batch"))
	}
	logger := cfg.NewLogger()

	fmt.Println("=========================================================")
	fmt.Printf("SSI Ingest v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("ClickHouse:  %s/%s\n", cfg.ClickHouse.Addr(), cfg.ClickHouse.Database)
	fmt.Printf("Batch:       %d rows\n", cfg.ClickHouse.BatchSize)

	wh, err := warehouse.Open(ctx, cfg.ClickHouse, logger)
	if err != nil {
		return err
	}
	defer wh.Close()

	if err := wh.EnsureSchema(ctx); err != nil {
		return err
	}

	if cmd.Bool("list") {
		recs, err := wh.Datasets(ctx)
		if err != nil {
			return err
		}
		fmt.Println()
		for _, r := range recs {
			fmt.Printf("  %-32s nt=%-5d nw=%-7d loaded %s\n", r.Name, r.NT, r.NW, r.LoadedAt.Format(time.RFC3339))
		}
		fmt.Printf("\n%d dataset(s)\n", len(recs))
		return nil
	}

	files := cmd.Args().Slice()
	if len(files) == 0 {
		dir := cmd.String("source-dir")
		if dir == "" {
			dir = cache.New(cfg.Cache.Dir).FormattedDir()
		}
		fmt.Printf("Source:      %s\n", dir)
		if files, err = discover(dir); err != nil {
			return err
		}
	}
	fmt.Printf("Files:       %d\n", len(files))
	fmt.Println()

	stats := common.NewStats()
	sink := wh.Sink()
	startTime := time.Now()
	failed := 0

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		name, ds, err := readFile(path)
		if err != nil {
			fmt.Printf("  ERROR: %v\n", err)
			stats.AddFailure()
			failed++
			continue
		}
		loc, err := sink.Persist(ctx, name, ds)
		if err != nil {
			fmt.Printf("  ERROR: %s: %v\n", name, err)
			stats.AddFailure()
			failed++
			continue
		}
		points := ds.NT() * ds.NW()
		stats.AddDataset(uint64(points))
		fmt.Printf("  %-32s %d rows -> %s\n", name, points, loc)
		logger.Debug("ingested", slog.String("file", path), slog.String("name", name))
	}

	elapsed := time.Since(startTime)
	rate := float64(stats.GetPoints()) / elapsed.Seconds()

	fmt.Println()
	fmt.Println("=========================================================")
	fmt.Println("Ingest Summary")
	fmt.Println("=========================================================")
	fmt.Printf("%s\n", stats.Summary())
	fmt.Printf("Elapsed:    %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Rate:       %.0f rows/sec\n", rate)
	fmt.Println("=========================================================")

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:      "ssi-ingest",
		Usage:     "Load canonical spectral irradiance datasets into ClickHouse",
		ArgsUsage: "[file.nc|file.parquet ...]",
		Version:   Version,
		Action:    run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Sources: cli.EnvVars("SSI_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:  "source-dir",
				Usage: "Directory of inputs when no files are given (default: formatted cache)",
			},
			&cli.IntFlag{
				Name:  "batch",
				Usage: "Spectrum rows per insert block",
				Value: warehouse.DefaultBatchSize,
			},
			&cli.BoolFlag{
				Name:  "list",
				Usage: "List datasets already in the warehouse",
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("ssi-ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
