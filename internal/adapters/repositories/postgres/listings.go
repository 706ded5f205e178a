package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/terratensor/geonorm/internal/core/domain"
	"go.uber.org/zap"
)

// DefaultListingsTable таблица аннотированных объявлений
const DefaultListingsTable = "geo_listings"

var listingColumns = []string{
	"listing_id", "province", "district", "ward",
	"province_norm", "district_norm", "ward_norm",
	"latitude", "longitude", "original_latitude", "original_longitude",
	"geo_status", "geo_method", "admin_match_level", "mismatch_reason",
	"geo_cell", "extra",
}

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}

// ListingSink сохраняет объявления в PostgreSQL, повторный запуск обновляет строки
type ListingSink struct {
	db        *sql.DB
	table     string
	batchSize int
	logger    *zap.Logger
}

func NewListingSink(db *sql.DB, table string, batchSize int, logger *zap.Logger) *ListingSink {
	if table == "" {
		table = DefaultListingsTable
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingSink{db: db, table: table, batchSize: batchSize, logger: logger}
}

func (s *ListingSink) Name() string {
	return "postgres"
}

func createTableSQL(table string) string {
	t := pq.QuoteIdentifier(table)
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    listing_id TEXT PRIMARY KEY,
    province TEXT NOT NULL DEFAULT '',
    district TEXT NOT NULL DEFAULT '',
    ward TEXT NOT NULL DEFAULT '',
    province_norm TEXT NOT NULL DEFAULT '',
    district_norm TEXT NOT NULL DEFAULT '',
    ward_norm TEXT NOT NULL DEFAULT '',
    latitude DOUBLE PRECISION,
    longitude DOUBLE PRECISION,
    original_latitude DOUBLE PRECISION,
    original_longitude DOUBLE PRECISION,
    geo_status TEXT NOT NULL,
    geo_method TEXT NOT NULL,
    admin_match_level TEXT NOT NULL,
    mismatch_reason TEXT NOT NULL DEFAULT '',
    geo_cell TEXT NOT NULL DEFAULT '',
    extra JSONB,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS %s ON %s (geo_status, admin_match_level)`,
		t, pq.QuoteIdentifier(table+"_status_idx"), t)
}

func upsertSQL(table string) string {
	placeholders := make([]string, len(listingColumns))
	updates := make([]string, 0, len(listingColumns))
	for i, c := range listingColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if c != "listing_id" {
			updates = append(updates, c+"=EXCLUDED."+c)
		}
	}
	updates = append(updates, "updated_at=now()")

	return fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s) ON CONFLICT (listing_id) DO UPDATE SET %s",
		pq.QuoteIdentifier(table),
		strings.Join(listingColumns, ","),
		strings.Join(placeholders, ","),
		strings.Join(updates, ","),
	)
}

// EnsureSchema создает таблицу если она не существует
func (s *ListingSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

func (s *ListingSink) Write(ctx context.Context, listings []*domain.Listing) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	query := upsertSQL(s.table)
	for from := 0; from < len(listings); from += s.batchSize {
		to := from + s.batchSize
		if to > len(listings) {
			to = len(listings)
		}
		if err := s.writeBatch(ctx, query, listings[from:to]); err != nil {
			return fmt.Errorf("failed to write batch at %d: %w", from, err)
		}
	}

	s.logger.Info("listings exported to postgres",
		zap.String("table", s.table),
		zap.Int("count", len(listings)),
	)
	return nil
}

func (s *ListingSink) writeBatch(ctx context.Context, query string, listings []*domain.Listing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, l := range listings {
		args, err := listingArgs(l)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return fmt.Errorf("listing %s: %w", l.ID, err)
		}
	}
	return tx.Commit()
}

func (s *ListingSink) Close() error {
	return s.db.Close()
}

// listingArgs значения в порядке listingColumns
func listingArgs(l *domain.Listing) ([]interface{}, error) {
	var lat, lon sql.NullFloat64
	if l.LatitudeKnown() {
		lat = sql.NullFloat64{Float64: l.Latitude, Valid: true}
	}
	if l.LongitudeKnown() {
		lon = sql.NullFloat64{Float64: l.Longitude, Valid: true}
	}

	var origLat, origLon sql.NullFloat64
	if l.OriginalLatitude != nil {
		origLat = sql.NullFloat64{Float64: *l.OriginalLatitude, Valid: true}
	}
	if l.OriginalLongitude != nil {
		origLon = sql.NullFloat64{Float64: *l.OriginalLongitude, Valid: true}
	}

	var extra interface{}
	if len(l.Extra) > 0 {
		data, err := json.Marshal(l.Extra)
		if err != nil {
			return nil, fmt.Errorf("failed to encode extra fields of %s: %w", l.ID, err)
		}
		extra = string(data)
	}

	return []interface{}{
		l.ID, l.Province, l.District, l.Ward,
		l.Keys.Province, l.Keys.District, l.Keys.Ward,
		lat, lon, origLat, origLon,
		string(l.GeoStatus), string(l.GeoMethod), string(l.AdminMatchLevel), l.MismatchReason,
		l.GeoCell, extra,
	}, nil
}
