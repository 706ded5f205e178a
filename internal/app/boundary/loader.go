package boundary

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/terratensor/geonorm/internal/app/geometry"
	"go.uber.org/zap"
)

// ErrDatasetLoad набор границ не удалось разобрать
var ErrDatasetLoad = errors.New("failed to load boundary dataset")

// FieldAliases имена свойств для каждого уровня в порядке приоритета
type FieldAliases struct {
	Province []string
	District []string
	Ward     []string
}

// DefaultFieldAliases поля GADM и упрощённые поля
func DefaultFieldAliases() FieldAliases {
	return FieldAliases{
		Province: []string{"NAME_1", "province", "VARNAME_1"},
		District: []string{"NAME_2", "district", "VARNAME_2"},
		Ward:     []string{"NAME_3", "ward", "VARNAME_3"},
	}
}

// LoadStats итог загрузки набора границ
type LoadStats struct {
	Features   int `json:"features"`
	Indexed    int `json:"indexed"`
	NoGeometry int `json:"no_geometry"`
	NoProvince int `json:"no_province"`
	NotTarget  int `json:"not_target"`
	Malformed  int `json:"malformed"`
}

type featureCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

type rawFeature struct {
	Properties map[string]interface{} `json:"properties"`
	Geometry   json.RawMessage        `json:"geometry"`
}

// Loader наполняет индекс из GeoJSON FeatureCollection
type Loader struct {
	index   *Index
	aliases FieldAliases
	logger  *zap.Logger
}

func NewLoader(index *Index, aliases FieldAliases, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{index: index, aliases: aliases, logger: logger}
}

// LoadFile загружает набор границ из файла
func (l *Loader) LoadFile(path string) (LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return LoadStats{}, fmt.Errorf("%w: %v", ErrDatasetLoad, err)
	}
	defer file.Close()

	return l.Load(bufio.NewReader(file))
}

// Load разбирает FeatureCollection и добавляет каждую фичу в индекс.
// Ошибка разбора всего набора фатальна, ошибки отдельных фич только считаются.
func (l *Loader) Load(r io.Reader) (LoadStats, error) {
	var stats LoadStats

	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return stats, fmt.Errorf("%w: %v", ErrDatasetLoad, err)
	}
	if fc.Type != "FeatureCollection" {
		return stats, fmt.Errorf("%w: unexpected type %q", ErrDatasetLoad, fc.Type)
	}

	for i, f := range fc.Features {
		stats.Features++

		if isNullGeometry(f.Geometry) {
			stats.NoGeometry++
			continue
		}

		g, err := geojson.UnmarshalGeometry(f.Geometry)
		if err != nil {
			stats.Malformed++
			l.logger.Warn("skip feature with unreadable geometry", zap.Int("feature", i), zap.Error(err))
			continue
		}

		province := pick(f.Properties, l.aliases.Province)
		district := pick(f.Properties, l.aliases.District)
		ward := pick(f.Properties, l.aliases.Ward)

		err = l.index.Add(province, district, ward, g.Geometry())
		switch {
		case err == nil:
			stats.Indexed++
		case errors.Is(err, ErrNoProvince):
			stats.NoProvince++
		case errors.Is(err, ErrNotTarget):
			stats.NotTarget++
		case errors.Is(err, geometry.ErrMalformedGeometry):
			stats.Malformed++
			l.logger.Warn("drop malformed boundary",
				zap.Int("feature", i),
				zap.String("province", province),
				zap.String("district", district),
				zap.String("ward", ward),
				zap.Error(err),
			)
		default:
			return stats, fmt.Errorf("failed to index feature %d: %w", i, err)
		}
	}

	return stats, nil
}

func isNullGeometry(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// pick возвращает первое непустое строковое свойство из списка
func pick(props map[string]interface{}, keys []string) string {
	for _, k := range keys {
		v, ok := props[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = fmt.Sprintf("%g", t)
		default:
			continue
		}
		// VARNAME поля GADM содержат варианты через "|"
		if i := strings.Index(s, "|"); i >= 0 {
			s = s[:i]
		}
		if s = strings.TrimSpace(s); s != "" && s != "NA" {
			return s
		}
	}
	return ""
}
