package qc

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/terratensor/geonorm/internal/core/domain"
)

// Rates доли статусов в группе, округлены до 4 знаков
type Rates struct {
	SuccessRate  float64 `json:"success_rate"`
	MatchedRate  float64 `json:"matched_rate"`
	AdjustedRate float64 `json:"adjusted_rate"`
	FailedRate   float64 `json:"failed_rate"`
}

// GroupStats статистика одной группы (провинция, район или участок)
type GroupStats struct {
	Province string `json:"province"`
	District string `json:"district,omitempty"`
	Ward     string `json:"ward,omitempty"`
	Counts
	Rates
}

// Key составной ключ группы
func (g GroupStats) Key() string {
	parts := []string{g.Province}
	if g.District != "" || g.Ward != "" {
		parts = append(parts, g.District)
	}
	if g.Ward != "" {
		parts = append(parts, g.Ward)
	}
	return strings.Join(parts, "|")
}

// Report итоговый отчёт QC
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Counts
	Rates

	ByStatus map[string]int `json:"by_status"`
	ByMethod map[string]int `json:"by_method"`
	ByLevel  map[string]int `json:"by_match_level"`

	ByProvince []GroupStats `json:"by_province"`
	ByDistrict []GroupStats `json:"by_district"`
	ByWard     []GroupStats `json:"by_ward"`

	SampleAdjusted  []map[string]interface{} `json:"sample_adjusted"`
	SampleFailed    []map[string]interface{} `json:"sample_failed"`
	MissingPolygons []string                 `json:"missing_polygons"`
}

// Finalize строит отчёт. Группы отсортированы по ключу.
func (a *Aggregator) Finalize() *Report {
	r := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Counts:      a.total,
		Rates:       rates(a.total),
		ByStatus:    make(map[string]int),
		ByMethod:    make(map[string]int),
		ByLevel:     make(map[string]int),
	}

	for _, s := range []domain.GeoStatus{domain.StatusMatched, domain.StatusAdjusted, domain.StatusFailed} {
		r.ByStatus[string(s)] = a.byStatus[s]
	}
	for k, v := range a.byMethod {
		r.ByMethod[string(k)] = v
	}
	for _, l := range []domain.Level{domain.LevelWard, domain.LevelDistrict, domain.LevelProvince, domain.LevelNone} {
		r.ByLevel[string(l)] = a.byLevel[l]
	}

	r.ByProvince = groups(a.byProvince)
	r.ByDistrict = groups(a.byDistrict)
	r.ByWard = groups(a.byWard)

	r.SampleAdjusted = samples(a.sampleAdjusted)
	r.SampleFailed = samples(a.sampleFailed)

	missing := make([]groupKey, 0, len(a.missing))
	for k := range a.missing {
		missing = append(missing, k)
	}
	sortKeys(missing)
	if len(missing) > a.sampleLimit {
		missing = missing[:a.sampleLimit]
	}
	r.MissingPolygons = make([]string, 0, len(missing))
	for _, k := range missing {
		g := GroupStats{Province: k.Province, District: k.District, Ward: k.Ward}
		r.MissingPolygons = append(r.MissingPolygons, g.Key())
	}

	return r
}

func rates(c Counts) Rates {
	if c.Total == 0 {
		return Rates{}
	}
	total := float64(c.Total)
	return Rates{
		SuccessRate:  round4(float64(c.Matched+c.Adjusted) / total),
		MatchedRate:  round4(float64(c.Matched) / total),
		AdjustedRate: round4(float64(c.Adjusted) / total),
		FailedRate:   round4(float64(c.Failed) / total),
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func groups(m map[groupKey]*Counts) []GroupStats {
	keys := make([]groupKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sortKeys(keys)

	out := make([]GroupStats, 0, len(keys))
	for _, k := range keys {
		c := *m[k]
		out = append(out, GroupStats{
			Province: k.Province,
			District: k.District,
			Ward:     k.Ward,
			Counts:   c,
			Rates:    rates(c),
		})
	}
	return out
}

func sortKeys(keys []groupKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
}

func samples(ls []*domain.Listing) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(ls))
	for _, l := range ls {
		out = append(out, l.ToMap())
	}
	return out
}

// Summary одна строка с общими цифрами для логов
func (r *Report) Summary() map[string]interface{} {
	return map[string]interface{}{
		"total":        r.Total,
		"matched":      r.Matched,
		"adjusted":     r.Adjusted,
		"failed":       r.Failed,
		"success_rate": r.SuccessRate,
	}
}
