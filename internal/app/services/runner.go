package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/terratensor/geonorm/internal/adapters/exporters"
	"github.com/terratensor/geonorm/internal/adapters/repositories/manticore"
	"github.com/terratensor/geonorm/internal/adapters/repositories/postgres"
	"github.com/terratensor/geonorm/internal/app/boundary"
	"github.com/terratensor/geonorm/internal/app/classify"
	"github.com/terratensor/geonorm/internal/app/matcher"
	"github.com/terratensor/geonorm/internal/app/normalize"
	"github.com/terratensor/geonorm/internal/app/pipeline"
	"github.com/terratensor/geonorm/internal/app/qc"
	"github.com/terratensor/geonorm/internal/config"
	"github.com/terratensor/geonorm/internal/core/domain"
	"github.com/terratensor/geonorm/internal/core/ports"
	"github.com/terratensor/geonorm/internal/metrics"
	"go.uber.org/zap"
)

// ErrBelowTarget успешность ниже MIN_SUCCESS_RATE
var ErrBelowTarget = errors.New("success rate below target")

// IndexResult загруженный индекс границ и статистика загрузки
type IndexResult struct {
	Index *boundary.Index
	Stats boundary.Stats
	Load  boundary.LoadStats
}

// RunResult итог запуска нормализации
type RunResult struct {
	Report      *qc.Report
	ReportPaths exporters.ReportPaths
	Index       IndexResult
	Outputs     []string
}

// Runner собирает движок по конфигурации и прогоняет набор объявлений
type Runner struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Recorder
	sinks   []ports.ListingSink
}

func NewRunner(cfg *config.Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
	}
}

// Metrics метрики текущего запуска
func (r *Runner) Metrics() *metrics.Recorder {
	return r.metrics
}

// BuildIndex загружает таблицы и строит индекс границ
func (r *Runner) BuildIndex(ctx context.Context) (IndexResult, error) {
	tables, err := normalize.LoadTablesOrDefault(r.cfg.TablesFile)
	if err != nil {
		return IndexResult{}, fmt.Errorf("failed to load tables: %w", err)
	}

	targets := r.cfg.TargetProvinces
	if len(targets) == 0 {
		targets = tables.Targets
	}
	var opts []boundary.Option
	if !contains(targets, "*") {
		opts = append(opts, boundary.WithTargetProvinces(targets...))
	}

	if err := ctx.Err(); err != nil {
		return IndexResult{}, err
	}

	r.logger.Info("loading boundaries",
		zap.String("file", r.cfg.BoundariesFile),
		zap.Strings("targets", targets),
	)
	start := time.Now()

	index := boundary.NewIndex(tables.Resolver(), opts...)
	loader := boundary.NewLoader(index, boundary.DefaultFieldAliases(), r.logger)
	load, err := loader.LoadFile(r.cfg.BoundariesFile)
	if err != nil {
		return IndexResult{}, fmt.Errorf("failed to load boundaries: %w", err)
	}

	stats := index.Stats()
	r.metrics.ObserveIndex(stats, load)
	r.logger.Info("boundary index built",
		zap.Int("features", load.Features),
		zap.Int("indexed", load.Indexed),
		zap.Int("malformed", load.Malformed),
		zap.Int("not_target", load.NotTarget),
		zap.Int("wards", stats.Wards),
		zap.Int("districts", stats.Districts),
		zap.Int("provinces", stats.Provinces),
		zap.Duration("took", time.Since(start)),
	)

	return IndexResult{Index: index, Stats: stats, Load: load}, nil
}

// Run выполняет полный цикл: индекс, объявления, обработка, выгрузка, отчёт
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	// Шаг 1: индекс границ
	ix, err := r.BuildIndex(ctx)
	if err != nil {
		return nil, err
	}

	// Шаг 2: объявления
	reader := pipeline.NewReader(pipeline.DefaultFieldAliases(), r.cfg.ShowProgress, r.logger)
	listings, err := reader.ReadFile(r.cfg.ListingsFile, r.cfg.ListingsFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}

	// Шаг 3: сопоставление и классификация
	classifier := classify.New(classify.Options{
		MatchedMethod:  domain.GeoMethod(r.cfg.MatchedMethod),
		SampleAttempts: r.cfg.SampleAttempts,
		DetectSwap:     r.cfg.DetectSwap,
	})
	processor := pipeline.NewProcessor(matcher.New(ix.Index), classifier, pipeline.Options{
		Workers:      r.cfg.WorkersCount,
		Seed:         r.cfg.RandomSeed,
		SampleLimit:  r.cfg.SampleLimit,
		CellLevel:    r.cfg.S2CellLevel,
		ShowProgress: r.cfg.ShowProgress,
	}, pipeline.WithObserver(r.metrics), pipeline.WithLogger(r.logger))

	agg, err := processor.Process(ctx, listings)
	if err != nil {
		return nil, fmt.Errorf("failed to process listings: %w", err)
	}
	report := agg.Finalize()
	r.metrics.SuccessRate.Set(report.SuccessRate)
	r.logger.Info("listings processed", zap.Any("summary", report.Summary()))

	// Шаг 4: выгрузка
	if err := r.initSinks(); err != nil {
		return nil, fmt.Errorf("failed to initialize sinks: %w", err)
	}
	defer r.closeSinks()

	var outputs []string
	for _, sink := range r.sinks {
		if err := sink.Write(ctx, listings); err != nil {
			return nil, fmt.Errorf("sink %s failed: %w", sink.Name(), err)
		}
		if fs, ok := sink.(*exporters.FileSink); ok {
			outputs = append(outputs, fs.Path())
		} else {
			outputs = append(outputs, sink.Name())
		}
	}

	// Шаг 5: отчёт и метрики
	paths, err := exporters.WriteReport(r.cfg.ReportDir, report)
	if err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	r.logger.Info("report saved",
		zap.String("run_id", report.RunID),
		zap.String("json", paths.JSON),
		zap.String("markdown", paths.Markdown),
	)

	if r.cfg.MetricsFile != "" {
		if err := r.metrics.WriteFile(r.cfg.MetricsFile); err != nil {
			return nil, err
		}
	}

	result := &RunResult{Report: report, ReportPaths: paths, Index: ix, Outputs: outputs}
	if r.cfg.MinSuccessRate > 0 && report.SuccessRate < r.cfg.MinSuccessRate {
		return result, fmt.Errorf("%w: %.4f < %.4f", ErrBelowTarget, report.SuccessRate, r.cfg.MinSuccessRate)
	}
	return result, nil
}

// initSinks создаёт приёмники из OUTPUT_SINKS
func (r *Runner) initSinks() error {
	r.sinks = r.sinks[:0]
	for _, name := range r.cfg.OutputSinks {
		switch strings.ToLower(name) {
		case "file":
			r.sinks = append(r.sinks, exporters.NewFileSink(r.fileOptions(), r.logger))

		case "manticore":
			client, err := manticore.NewClient(r.cfg.ManticoreHost, r.cfg.ManticorePort, r.cfg.ManticoreConnTimeout)
			if err != nil {
				return fmt.Errorf("failed to create manticore client: %w", err)
			}
			r.sinks = append(r.sinks, manticore.NewListingSink(client, r.cfg.ManticoreTable, r.cfg.BatchSize, r.logger))

		case "postgres":
			db, err := postgres.OpenPostgres(r.cfg.PostgresDSN)
			if err != nil {
				return fmt.Errorf("failed to open postgres: %w", err)
			}
			r.sinks = append(r.sinks, postgres.NewListingSink(db, r.cfg.PostgresTable, r.cfg.BatchSize, r.logger))

		default:
			return fmt.Errorf("unknown sink: %s", name)
		}
	}
	return nil
}

func (r *Runner) closeSinks() {
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil {
			r.logger.Warn("failed to close sink", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
	r.sinks = nil
}

// fileOptions параметры файловой выгрузки по OUTPUT_FORMAT
func (r *Runner) fileOptions() ports.ExportOptions {
	format := ports.ExportFormat(strings.ToLower(r.cfg.OutputFormat))
	if format != ports.FormatCSV {
		format = ports.FormatJSON
	}

	base := strings.TrimSuffix(filepath.Base(r.cfg.ListingsFile), filepath.Ext(r.cfg.ListingsFile))
	if base == "" || base == "." || base == string(os.PathSeparator) {
		base = "listings"
	}

	return ports.ExportOptions{
		Format:        format,
		FilePath:      filepath.Join(r.cfg.OutputDir, base+"_geo_verified."+string(format)),
		IncludeHeader: true,
		PrettyPrint:   true,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
