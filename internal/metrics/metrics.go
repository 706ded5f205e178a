package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/terratensor/geonorm/internal/app/boundary"
	"github.com/terratensor/geonorm/internal/core/domain"
)

// Recorder метрики одного запуска на собственном реестре.
// Пишутся в файл для textfile collector node_exporter.
type Recorder struct {
	registry *prometheus.Registry

	RecordsTotal      *prometheus.CounterVec
	RecordDuration    prometheus.Histogram
	BoundariesIndexed *prometheus.GaugeVec
	BoundariesDropped prometheus.Counter
	SuccessRate       prometheus.Gauge
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		RecordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geonorm_records_total",
			Help: "Processed listings by status, method and match level",
		}, []string{"status", "method", "level"}),
		RecordDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "geonorm_record_duration_seconds",
			Help:    "Time to match and classify one listing",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		BoundariesIndexed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "geonorm_boundaries_indexed",
			Help: "Boundary index entries by level",
		}, []string{"level"}),
		BoundariesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geonorm_boundaries_dropped_total",
			Help: "Boundary features dropped as malformed",
		}),
		SuccessRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "geonorm_success_rate",
			Help: "Share of matched and adjusted listings in the last run",
		}),
	}

	r.registry.MustRegister(
		r.RecordsTotal,
		r.RecordDuration,
		r.BoundariesIndexed,
		r.BoundariesDropped,
		r.SuccessRate,
	)
	return r
}

// ObserveRecord учитывает одну обработанную запись
func (r *Recorder) ObserveRecord(l *domain.Listing, d time.Duration) {
	r.RecordsTotal.WithLabelValues(string(l.GeoStatus), string(l.GeoMethod), string(l.AdminMatchLevel)).Inc()
	r.RecordDuration.Observe(d.Seconds())
}

// ObserveIndex фиксирует размеры индекса после загрузки
func (r *Recorder) ObserveIndex(stats boundary.Stats, load boundary.LoadStats) {
	r.BoundariesIndexed.WithLabelValues(string(domain.LevelWard)).Set(float64(stats.Wards))
	r.BoundariesIndexed.WithLabelValues(string(domain.LevelDistrict)).Set(float64(stats.Districts))
	r.BoundariesIndexed.WithLabelValues(string(domain.LevelProvince)).Set(float64(stats.Provinces))
	r.BoundariesDropped.Add(float64(load.Malformed))
}

// WriteFile сохраняет метрики в текстовом формате Prometheus
func (r *Recorder) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
