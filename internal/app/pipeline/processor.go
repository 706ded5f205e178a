package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/terratensor/geonorm/internal/app/classify"
	"github.com/terratensor/geonorm/internal/app/matcher"
	"github.com/terratensor/geonorm/internal/app/qc"
	"github.com/terratensor/geonorm/internal/core/domain"
	"go.uber.org/zap"
)

// Observer получает каждую обработанную запись, например для метрик.
// При нескольких воркерах вызывается конкурентно.
type Observer interface {
	ObserveRecord(l *domain.Listing, d time.Duration)
}

// Options настройки пакетной обработки
type Options struct {
	Workers      int
	Seed         int64
	SampleLimit  int
	CellLevel    int
	ShowProgress bool
}

// Processor прогоняет объявления через сопоставление и классификацию
type Processor struct {
	matcher    *matcher.Matcher
	classifier *classify.Classifier
	opts       Options
	observer   Observer
	logger     *zap.Logger
}

type ProcessorOption func(*Processor)

func WithObserver(o Observer) ProcessorOption {
	return func(p *Processor) {
		p.observer = o
	}
}

func WithLogger(l *zap.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewProcessor(m *matcher.Matcher, c *classify.Classifier, opts Options, options ...ProcessorOption) *Processor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = qc.DefaultSampleLimit
	}
	p := &Processor{
		matcher:    m,
		classifier: c,
		opts:       opts,
		logger:     zap.NewNop(),
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// Process аннотирует записи на месте и возвращает агрегатор QC.
// Порядок записей сохраняется. С одним воркером результат полностью
// воспроизводим при том же seed.
func (p *Processor) Process(ctx context.Context, listings []*domain.Listing) (*qc.Aggregator, error) {
	start := time.Now()

	var bar *progressbar.ProgressBar
	if p.opts.ShowProgress {
		bar = p.progressBar(len(listings))
		defer bar.Finish()
	}

	workers := p.opts.Workers
	if workers > len(listings) {
		workers = len(listings)
	}

	var agg *qc.Aggregator
	var err error
	if workers <= 1 {
		agg, err = p.processRange(ctx, listings, rand.New(rand.NewSource(p.opts.Seed)), bar)
	} else {
		agg, err = p.processSharded(ctx, listings, workers, bar)
	}
	if err != nil {
		return nil, err
	}

	total := agg.Total()
	p.logger.Info("listings processed",
		zap.Int("total", total.Total),
		zap.Int("matched", total.Matched),
		zap.Int("adjusted", total.Adjusted),
		zap.Int("failed", total.Failed),
		zap.Int("workers", p.opts.Workers),
		zap.Duration("took", time.Since(start)),
	)
	return agg, nil
}

// processSharded делит записи на непрерывные диапазоны по воркерам.
// Агрегаторы сливаются в порядке воркеров.
func (p *Processor) processSharded(ctx context.Context, listings []*domain.Listing, workers int, bar *progressbar.ProgressBar) (*qc.Aggregator, error) {
	chunk := (len(listings) + workers - 1) / workers

	results := make([]*qc.Aggregator, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		from := w * chunk
		to := from + chunk
		if to > len(listings) {
			to = len(listings)
		}
		if from >= to {
			results[w] = qc.NewAggregator(p.opts.SampleLimit)
			continue
		}

		wg.Add(1)
		go func(w int, part []*domain.Listing) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(p.opts.Seed + int64(w)))
			results[w], errs[w] = p.processRange(ctx, part, rng, bar)
		}(w, listings[from:to])
	}
	wg.Wait()

	agg := qc.NewAggregator(p.opts.SampleLimit)
	for w := 0; w < workers; w++ {
		if errs[w] != nil {
			return nil, fmt.Errorf("worker %d: %w", w, errs[w])
		}
		agg.Merge(results[w])
	}
	return agg, nil
}

func (p *Processor) processRange(ctx context.Context, listings []*domain.Listing, rng classify.Rand, bar *progressbar.ProgressBar) (*qc.Aggregator, error) {
	agg := qc.NewAggregator(p.opts.SampleLimit)

	for _, l := range listings {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		p.processOne(l, rng)
		agg.Add(l)

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return agg, nil
}

// processOne сопоставляет и классифицирует одну запись
func (p *Processor) processOne(l *domain.Listing, rng classify.Rand) {
	start := time.Now()

	res := p.matcher.Match(l.Province, l.District, l.Ward)
	p.classifier.Apply(l, res, rng)
	assignCell(l, p.opts.CellLevel)

	if p.observer != nil {
		p.observer.ObserveRecord(l, time.Since(start))
	}

	if l.GeoStatus == domain.StatusFailed {
		p.logger.Debug("no boundary for listing",
			zap.String("id", l.ID),
			zap.String("province", l.Province),
			zap.String("district", l.District),
			zap.String("ward", l.Ward),
		)
	}
}

func (p *Processor) progressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetDescription("Normalizing listings"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)
}
