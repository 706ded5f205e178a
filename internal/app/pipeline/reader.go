package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/terratensor/geonorm/internal/core/domain"
	"go.uber.org/zap"
)

// ErrDatasetLoad набор объявлений не удалось разобрать
var ErrDatasetLoad = errors.New("listing dataset load failed")

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Поля Extra с исходным текстом координаты, которую не удалось разобрать
const (
	RawLatitudeField  = "latitude_raw"
	RawLongitudeField = "longitude_raw"
)

// FieldAliases имена колонок для полей объявления, в порядке приоритета
type FieldAliases struct {
	ID        []string
	Province  []string
	District  []string
	Ward      []string
	Latitude  []string
	Longitude []string
}

func DefaultFieldAliases() FieldAliases {
	return FieldAliases{
		ID:        []string{"id", "listing_id"},
		Province:  []string{"province", "city"},
		District:  []string{"district"},
		Ward:      []string{"ward"},
		Latitude:  []string{"latitude", "lat"},
		Longitude: []string{"longitude", "lon", "lng"},
	}
}

func (a FieldAliases) known() map[string]bool {
	m := make(map[string]bool)
	for _, group := range [][]string{a.ID, a.Province, a.District, a.Ward, a.Latitude, a.Longitude} {
		for _, k := range group {
			m[k] = true
		}
	}
	return m
}

// Reader читает объявления из JSON массива или CSV с заголовком
type Reader struct {
	aliases      FieldAliases
	known        map[string]bool
	showProgress bool
	logger       *zap.Logger
}

func NewReader(aliases FieldAliases, showProgress bool, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{aliases: aliases, known: aliases.known(), showProgress: showProgress, logger: logger}
}

// DetectFormat определяет формат по расширению файла
func DetectFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

// ReadFile читает файл целиком. Пустой format определяется по расширению.
func (r *Reader) ReadFile(path, format string) ([]*domain.Listing, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetLoad, err)
	}
	defer file.Close()

	if format == "" {
		format = DetectFormat(path)
	}

	var src io.Reader = file
	if r.showProgress {
		bar, err := r.ProgressBar(file, "Reading "+filepath.Base(path))
		if err != nil {
			return nil, err
		}
		defer bar.Finish()
		src = io.TeeReader(file, bar)
	}

	start := time.Now()
	var listings []*domain.Listing
	switch strings.ToLower(format) {
	case FormatCSV:
		listings, err = r.ReadCSV(src)
	case FormatJSON:
		listings, err = r.ReadJSON(src)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrDatasetLoad, format)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("listings loaded",
		zap.String("file", path),
		zap.Int("count", len(listings)),
		zap.Duration("took", time.Since(start)),
	)
	return listings, nil
}

// ReadJSON разбирает JSON массив объектов
func (r *Reader) ReadJSON(src io.Reader) ([]*domain.Listing, error) {
	dec := json.NewDecoder(bufio.NewReader(src))
	dec.UseNumber()

	var rows []map[string]interface{}
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatasetLoad, err)
	}

	listings := make([]*domain.Listing, 0, len(rows))
	skipped := 0
	for i, row := range rows {
		if row == nil {
			skipped++
			continue
		}
		listings = append(listings, r.fromRow(row, i))
	}
	if skipped > 0 {
		r.logger.Warn("skipped null rows", zap.Int("count", skipped))
	}
	return listings, nil
}

// CSVReader создаёт CSV reader с настройками для выгрузок объявлений
func (r *Reader) CSVReader(src io.Reader) *csv.Reader {
	reader := csv.NewReader(bufio.NewReader(src))
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // Разрешаем переменное количество полей
	reader.ReuseRecord = true
	return reader
}

// ReadCSV разбирает CSV, первая строка заголовок
func (r *Reader) ReadCSV(src io.Reader) ([]*domain.Listing, error) {
	reader := r.CSVReader(src)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrDatasetLoad, err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	var listings []*domain.Listing
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrDatasetLoad, line, err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if i < len(record) && col != "" {
				row[col] = record[i]
			}
		}
		listings = append(listings, r.fromRow(row, len(listings)))
	}
	return listings, nil
}

// fromRow собирает объявление. Неизвестные поля уходят в Extra.
func (r *Reader) fromRow(row map[string]interface{}, pos int) *domain.Listing {
	l := &domain.Listing{
		ID:       text(row, r.aliases.ID),
		Province: text(row, r.aliases.Province),
		District: text(row, r.aliases.District),
		Ward:     text(row, r.aliases.Ward),
	}
	if l.ID == "" {
		l.ID = strconv.Itoa(pos + 1)
	}

	lat, okLat := number(row, r.aliases.Latitude)
	lon, okLon := number(row, r.aliases.Longitude)
	l.Latitude, l.Longitude = lat, lon
	if okLat && okLon {
		l.HasCoordinate = true
	} else {
		l.HasLatitude, l.HasLongitude = okLat, okLon
	}

	for k, v := range row {
		if r.known[k] {
			continue
		}
		setExtra(l, k, v)
	}

	// неразобранное значение координаты остаётся в выгрузке как есть
	if raw := rawText(row, r.aliases.Latitude, okLat); raw != "" {
		setExtra(l, RawLatitudeField, raw)
	}
	if raw := rawText(row, r.aliases.Longitude, okLon); raw != "" {
		setExtra(l, RawLongitudeField, raw)
	}
	return l
}

func setExtra(l *domain.Listing, key string, v interface{}) {
	if l.Extra == nil {
		l.Extra = make(map[string]interface{})
	}
	l.Extra[key] = v
}

// rawText исходный текст поля, если оно есть, но не разобрано как число
func rawText(row map[string]interface{}, keys []string, parsed bool) string {
	if parsed {
		return ""
	}
	s := text(row, keys)
	if isMissing(s) {
		return ""
	}
	return s
}

func value(row map[string]interface{}, keys []string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func text(row map[string]interface{}, keys []string) string {
	v, ok := value(row, keys)
	if !ok {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func number(row map[string]interface{}, keys []string) (float64, bool) {
	v, ok := value(row, keys)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		return ParseFloat(t)
	}
	return 0, false
}

// ParseFloat разбирает число, пустые и служебные значения считаются отсутствующими
func ParseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return 0, false
	}
	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Пробуем заменить запятую на точку, если есть
		val, err = strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	}
	return val, err == nil
}

// isMissing пустые и служебные значения, означающие отсутствие числа
func isMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "\\n", "null", "none", "nan":
		return true
	}
	return false
}

// ProgressBar creates a progress bar for file processing
func (r *Reader) ProgressBar(file *os.File, description string) (*progressbar.ProgressBar, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file stats: %w", err)
	}

	return progressbar.NewOptions64(
		stat.Size(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	), nil
}
