// ssi-download - Download raw solar spectral irradiance files
//
// Data sources:
//   - Thuillier 2003 ATLAS reference spectrum
//   - WHI 2008 reference solar spectra (three solar activity periods)
//   - Meftah 2018 SOLAR/SOLSPEC reference spectrum
//   - SOLID 2017 daily composite (FTP, 20 wavelength bins)
//   - Coddington 2021 TSIS-1 hybrid solar reference spectrum
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/ssi-download ./cmd/ssi-download

package main

import (
	"context"
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
	"github.com/KI7MT/ki7mt-ssi-apps/internal/fetch"
	"github.com/KI7MT/ki7mt-ssi-apps/internal/source"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func listSources(reg *source.Registry) {
	fmt.Printf("Available spectral irradiance sources:\n\n")
	for _, id := range reg.IDs() {
		a, _ := reg.Lookup(id)
		fmt.Printf("  %-15s %s\n", a.ID(), a.Describe())
		urls := a.URLs()
		if len(urls) == 1 {
			fmt.Printf("                  URL: %s\n\n", urls[0])
		} else {
			fmt.Printf("                  URLs: %d files, first %s\n\n", len(urls), urls[0])
		}
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	reg := source.DefaultRegistry
	if cmd.Bool("list") {
		listSources(reg)
		return nil
	}

	cfg, err := common.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if dir := cmd.String("cache-dir"); dir != "" {
		cfg.Cache.Dir = dir
	}
	if cmd.IsSet("timeout") {
		cfg.Fetch.Timeout = cmd.Duration("timeout")
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

	stats := common.NewStats()
	client := fetch.NewClient(cfg.Fetch.Timeout, logger)
	client.FTPUser = cfg.Fetch.FTPUser
	client.FTPPassword = cfg.Fetch.FTPPassword
	client.ReuseExisting = cmd.Bool("reuse-raw")
	client.OnBytes = func(n int64) { stats.AddBytes(uint64(n)) }

	fmt.Println("=========================================================")
	fmt.Printf("SSI Download v%s\n", Version)
	fmt.Println("=========================================================")
	fmt.Printf("Cache:       %s\n", store.Root)
	fmt.Printf("Timeout:     %v\n", cfg.Fetch.Timeout)
	fmt.Printf("Sources:     %d\n", len(adapters))
	fmt.Println()

	startTime := time.Now()
	downloaded := 0
	failed := 0

	for _, a := range adapters {
		rawDir := store.RawDir(a.ID())
		fmt.Printf("[%s] Downloading %d file(s) into %s...\n", a.ID(), len(a.URLs()), rawDir)

		if err := a.Fetch(ctx, client, rawDir); err != nil {
			fmt.Printf("  ERROR: %v\n", err)
			logger.Debug("fetch failed", slog.String("source", a.ID()), slog.String("error", err.Error()))
			failed++
			if ctx.Err() != nil {
				break
			}
		} else {
			downloaded++
		}
	}

	elapsed := time.Since(startTime)

	fmt.Println()
	fmt.Println("=========================================================")
	fmt.Println("Download Summary")
	fmt.Println("=========================================================")
	fmt.Printf("Sources:    %d ok, %d failed\n", downloaded, failed)
	fmt.Printf("Bytes:      %d\n", stats.GetBytes())
	fmt.Printf("Elapsed:    %v\n", elapsed.Round(time.Millisecond))
	fmt.Println("=========================================================")

	if failed > 0 {
		return fmt.Errorf("%d source(s) failed", failed)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:      "ssi-download",
		Usage:     "Download raw solar spectral irradiance files into the cache",
		ArgsUsage: "[source ...|all]",
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
				Name:  "cache-dir",
				Usage: "Cache root (overrides config and " + cache.EnvDir + ")",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Timeout per download",
				Value: 60 * time.Second,
			},
			&cli.BoolFlag{
				Name:  "reuse-raw",
				Usage: "Keep raw files already in the cache instead of downloading them again",
			},
			&cli.BoolFlag{
				Name:  "list",
				Usage: "List available data sources",
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("ssi-download failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
