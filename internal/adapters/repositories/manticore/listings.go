package manticore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/terratensor/geonorm/internal/core/domain"
	"go.uber.org/zap"
)

// DefaultListingsTable таблица аннотированных объявлений
const DefaultListingsTable = "geo_listings"

// createListingsSQL схема таблицы. Числовой id назначает Manticore,
// исходный идентификатор хранится в listing_id.
func createListingsSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        listing_id string attribute indexed,
        province text,
        district text,
        ward text,
        province_norm string,
        district_norm string,
        ward_norm string,
        latitude float,
        longitude float,
        original_latitude float,
        original_longitude float,
        has_original bool,
        geo_status string,
        geo_method string,
        admin_match_level string,
        mismatch_reason text,
        geo_cell string attribute indexed,
        extra json
    )
    min_infix_len='2'
    index_exact_words='1'`, table)
}

// ListingSink пишет объявления в Manticore пачками
type ListingSink struct {
	client    *ManticoreClient
	table     string
	batchSize int
	logger    *zap.Logger
}

func NewListingSink(client *ManticoreClient, table string, batchSize int, logger *zap.Logger) *ListingSink {
	if table == "" {
		table = DefaultListingsTable
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingSink{client: client, table: table, batchSize: batchSize, logger: logger}
}

func (s *ListingSink) Name() string {
	return "manticore"
}

// InitSchema создает таблицу если она не существует
func (s *ListingSink) InitSchema(ctx context.Context) error {
	exists, err := s.client.TableExists(ctx, s.table)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := s.client.Exec(ctx, createListingsSQL(s.table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	s.logger.Info("created manticore table", zap.String("table", s.table))
	return nil
}

func (s *ListingSink) Write(ctx context.Context, listings []*domain.Listing) error {
	if err := s.InitSchema(ctx); err != nil {
		return err
	}

	batch := make([]map[string]interface{}, 0, s.batchSize)
	written := 0
	for _, l := range listings {
		batch = append(batch, listingDoc(l))
		if len(batch) < s.batchSize {
			continue
		}
		if err := s.client.bulkInsert(ctx, s.table, batch); err != nil {
			return fmt.Errorf("failed to insert batch at %d: %w", written, err)
		}
		written += len(batch)
		batch = batch[:0]
	}
	if err := s.client.bulkInsert(ctx, s.table, batch); err != nil {
		return fmt.Errorf("failed to insert batch at %d: %w", written, err)
	}
	written += len(batch)

	s.logger.Info("listings indexed in manticore",
		zap.String("table", s.table),
		zap.Int("count", written),
	)
	return nil
}

func (s *ListingSink) Close() error {
	return nil
}

// listingDoc конвертирует объявление в документ Manticore
func listingDoc(l *domain.Listing) map[string]interface{} {
	doc := map[string]interface{}{
		"listing_id":        l.ID,
		"province":          l.Province,
		"district":          l.District,
		"ward":              l.Ward,
		"province_norm":     l.Keys.Province,
		"district_norm":     l.Keys.District,
		"ward_norm":         l.Keys.Ward,
		"geo_status":        string(l.GeoStatus),
		"geo_method":        string(l.GeoMethod),
		"admin_match_level": string(l.AdminMatchLevel),
		"mismatch_reason":   l.MismatchReason,
		"geo_cell":          l.GeoCell,
		"has_original":      l.OriginalLatitude != nil || l.OriginalLongitude != nil,
	}

	if l.LatitudeKnown() {
		doc["latitude"] = l.Latitude
	}
	if l.LongitudeKnown() {
		doc["longitude"] = l.Longitude
	}
	if l.OriginalLatitude != nil {
		doc["original_latitude"] = *l.OriginalLatitude
	}
	if l.OriginalLongitude != nil {
		doc["original_longitude"] = *l.OriginalLongitude
	}

	if len(l.Extra) > 0 {
		// json атрибут принимает объект, значения не поддающиеся кодированию пропускаем
		extra := make(map[string]interface{}, len(l.Extra))
		for k, v := range l.Extra {
			if _, err := json.Marshal(v); err == nil {
				extra[k] = v
			}
		}
		doc["extra"] = extra
	}

	return doc
}
