package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/terratensor/geonorm/internal/adapters/downloader"
	"github.com/terratensor/geonorm/internal/adapters/repositories/manticore"
	"github.com/terratensor/geonorm/internal/app/services"
	"github.com/terratensor/geonorm/internal/config"
	"github.com/terratensor/geonorm/internal/logger"
	"go.uber.org/zap"
)

var cfg *config.Config

func main() {
	os.Exit(run())
}

// run возвращает код выхода, чтобы отложенный Sync логгера успел выполниться
func run() int {
	var err error

	// Загружаем конфигурацию
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log := logger.Setup()
	defer log.Sync()

	rootCmd := &cobra.Command{
		Use:           "geonorm",
		Short:         "Administrative boundary geo-normalization for listings",
		Long:          `Matches listings to ward, district and province boundaries and repairs coordinates that fall outside the claimed unit`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createIndexCmd())
	rootCmd.AddCommand(createDownloadCmd())
	rootCmd.AddCommand(createDropTablesCmd())

	return execute(signalContext(), rootCmd, os.Stderr)
}

// execute выполняет команду и печатает ошибку. 1 при любой ошибке.
func execute(ctx context.Context, cmd *cobra.Command, w io.Writer) int {
	if err := cmd.ExecuteContext(ctx); err != nil {
		if isBelowTarget(err) {
			color.New(color.FgYellow, color.Bold).Fprintf(w, "Quality target not met: %v\n", err)
		} else {
			color.New(color.FgRed, color.Bold).Fprintf(w, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// signalContext отменяется по SIGINT и SIGTERM
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.L().Info("received shutdown signal")
		cancel()
	}()
	return ctx
}

func createRunCmd() *cobra.Command {
	var opts runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Normalize listings against the boundary index and write the QC report",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.apply(cmd, cfg)

			start := time.Now()
			result, err := services.NewRunner(cfg, logger.L()).Run(cmd.Context())
			if result != nil {
				printSummary(os.Stdout, result, cfg.MinSuccessRate, time.Since(start))
			}
			return err
		},
	}

	opts.register(cmd)
	return cmd
}

func createIndexCmd() *cobra.Command {
	var opts runFlags

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load the boundary dataset and print index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.apply(cmd, cfg)

			ix, err := services.NewRunner(cfg, logger.L()).BuildIndex(cmd.Context())
			if err != nil {
				return err
			}
			printIndex(os.Stdout, ix)
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}

func createDownloadCmd() *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download and extract the GADM level-3 boundary dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = cfg.GADMURL
			}
			path, err := downloader.New(cfg, logger.L()).FetchBoundaries(cmd.Context(), url)
			if err != nil {
				return fmt.Errorf("download failed: %w", err)
			}
			color.New(color.FgGreen).Printf("Boundaries ready: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "archive URL (default GADM_URL)")
	return cmd
}

func createDropTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop-tables",
		Short: "Drop the Manticore listings table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logger.L()

			client, err := manticore.NewClient(cfg.ManticoreHost, cfg.ManticorePort, cfg.ManticoreConnTimeout)
			if err != nil {
				return fmt.Errorf("failed to create manticore client: %w", err)
			}

			table := cfg.ManticoreTable
			exists, err := client.TableExists(ctx, table)
			if err != nil {
				return err
			}
			if !exists {
				log.Info("table does not exist, skipping", zap.String("table", table))
				return nil
			}

			log.Info("dropping table", zap.String("table", table))
			if err := client.DropTable(ctx, table); err != nil {
				return err
			}
			log.Info("table dropped", zap.String("table", table))
			return nil
		},
	}
}

// runFlags флаги, перекрывающие значения из окружения
type runFlags struct {
	boundaries     string
	listings       string
	listingsFormat string
	tables         string
	outputDir      string
	reportDir      string
	outputFormat   string
	sinks          []string
	targets        []string
	workers        int
	seed           int64
	minSuccessRate float64
	detectSwap     bool
	noProgress     bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.boundaries, "boundaries", "", "boundary GeoJSON file (BOUNDARIES_FILE)")
	fl.StringVar(&f.listings, "listings", "", "listings file (LISTINGS_FILE)")
	fl.StringVar(&f.listingsFormat, "listings-format", "", "json or csv (LISTINGS_FORMAT)")
	fl.StringVar(&f.tables, "tables", "", "alias and prefix tables YAML (TABLES_FILE)")
	fl.StringVar(&f.outputDir, "output-dir", "", "output directory (OUTPUT_DIR)")
	fl.StringVar(&f.reportDir, "report-dir", "", "report directory (REPORT_DIR)")
	fl.StringVar(&f.outputFormat, "format", "", "json or csv (OUTPUT_FORMAT)")
	fl.StringSliceVar(&f.sinks, "sinks", nil, "file, manticore, postgres (OUTPUT_SINKS)")
	fl.StringSliceVar(&f.targets, "targets", nil, "province keys to index, * for all (TARGET_PROVINCES)")
	fl.IntVar(&f.workers, "workers", 0, "worker count (WORKERS_COUNT)")
	fl.Int64Var(&f.seed, "seed", 0, "random seed (RANDOM_SEED)")
	fl.Float64Var(&f.minSuccessRate, "min-success-rate", 0, "fail when success rate is lower (MIN_SUCCESS_RATE)")
	fl.BoolVar(&f.detectSwap, "detect-swap", false, "flag swapped latitude and longitude (DETECT_SWAP)")
	fl.BoolVar(&f.noProgress, "no-progress", false, "disable progress bars")
}

// apply переносит только явно заданные флаги
func (f *runFlags) apply(cmd *cobra.Command, c *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("boundaries") {
		c.BoundariesFile = f.boundaries
	}
	if fl.Changed("listings") {
		c.ListingsFile = f.listings
	}
	if fl.Changed("listings-format") {
		c.ListingsFormat = f.listingsFormat
	}
	if fl.Changed("tables") {
		c.TablesFile = f.tables
	}
	if fl.Changed("output-dir") {
		c.OutputDir = f.outputDir
	}
	if fl.Changed("report-dir") {
		c.ReportDir = f.reportDir
	}
	if fl.Changed("format") {
		c.OutputFormat = f.outputFormat
	}
	if fl.Changed("sinks") {
		c.OutputSinks = f.sinks
	}
	if fl.Changed("targets") {
		c.TargetProvinces = f.targets
	}
	if fl.Changed("workers") {
		c.WorkersCount = f.workers
	}
	if fl.Changed("seed") {
		c.RandomSeed = f.seed
	}
	if fl.Changed("min-success-rate") {
		c.MinSuccessRate = f.minSuccessRate
	}
	if fl.Changed("detect-swap") {
		c.DetectSwap = f.detectSwap
	}
	if f.noProgress {
		c.ShowProgress = false
	}
}

// isBelowTarget ошибка означает только непройденный порог качества
func isBelowTarget(err error) bool {
	return errors.Is(err, services.ErrBelowTarget)
}
