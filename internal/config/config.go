package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Input
	BoundariesFile string
	ListingsFile   string
	ListingsFormat string // json, csv или пусто (по расширению)
	TablesFile     string // YAML с алиасами и префиксами

	// Output
	OutputDir    string
	ReportDir    string
	OutputFormat string   // json или csv
	OutputSinks  []string // file, manticore, postgres
	MetricsFile  string

	// Pipeline
	BatchSize    int
	WorkersCount int
	RandomSeed   int64
	ShowProgress bool

	// Classification
	SampleAttempts int
	SampleLimit    int
	MatchedMethod  string
	DetectSwap     bool
	// TargetProvinces ключи провинций для индекса. Пусто: из таблиц, "*": все.
	TargetProvinces []string

	// S2 Geometry
	S2CellLevel int // уровень ячейки для geo_cell

	// Quality gate
	MinSuccessRate float64

	// Manticore
	ManticoreHost        string
	ManticorePort        int
	ManticoreConnTimeout time.Duration
	ManticoreTable       string

	// PostgreSQL
	PostgresDSN   string
	PostgresTable string

	// Download
	GADMURL         string
	DataDir         string
	DownloadTimeout time.Duration
}

func Load() (*Config, error) {
	// Загружаем .env файл если существует
	_ = godotenv.Load()

	cfg := &Config{
		BoundariesFile: getEnv("BOUNDARIES_FILE", "./data/gadm41_VNM_3.json"),
		ListingsFile:   getEnv("LISTINGS_FILE", "./data/listings.json"),
		ListingsFormat: getEnv("LISTINGS_FORMAT", ""),
		TablesFile:     getEnv("TABLES_FILE", ""),

		OutputDir:    getEnv("OUTPUT_DIR", "./output"),
		ReportDir:    getEnv("REPORT_DIR", "./reports"),
		OutputFormat: getEnv("OUTPUT_FORMAT", "json"),
		OutputSinks:  getEnvAsList("OUTPUT_SINKS", []string{"file"}),
		MetricsFile:  getEnv("METRICS_FILE", ""),

		BatchSize:    getEnvAsInt("BATCH_SIZE", 1000),
		WorkersCount: getEnvAsInt("WORKERS_COUNT", 1),
		RandomSeed:   int64(getEnvAsInt("RANDOM_SEED", 42)),
		ShowProgress: getEnvAsBool("SHOW_PROGRESS", true),

		SampleAttempts:  getEnvAsInt("SAMPLE_ATTEMPTS", 100),
		SampleLimit:     getEnvAsInt("SAMPLE_LIMIT", 50),
		MatchedMethod:   getEnv("MATCHED_METHOD", "verified"),
		DetectSwap:      getEnvAsBool("DETECT_SWAP", false),
		TargetProvinces: getEnvAsList("TARGET_PROVINCES", nil),

		S2CellLevel: getEnvAsInt("S2_CELL_LEVEL", 13),

		MinSuccessRate: getEnvAsFloat("MIN_SUCCESS_RATE", 0),

		ManticoreHost:        getEnv("MANTICORE_HOST", "localhost"),
		ManticorePort:        getEnvAsInt("MANTICORE_PORT", 9308),
		ManticoreConnTimeout: getEnvAsDuration("MANTICORE_TIMEOUT", 30*time.Second),
		ManticoreTable:       getEnv("MANTICORE_TABLE", "geo_listings"),

		PostgresDSN:   getEnv("PG_DSN", buildPostgresDSN()),
		PostgresTable: getEnv("PG_TABLE", "geo_listings"),

		GADMURL:         getEnv("GADM_URL", "https://geodata.ucdavis.edu/gadm/gadm4.1/json/gadm41_VNM_3.json.zip"),
		DataDir:         getEnv("DATA_DIR", "./data"),
		DownloadTimeout: getEnvAsDuration("DOWNLOAD_TIMEOUT", 10*time.Minute),
	}

	return cfg, nil
}

// buildPostgresDSN собирает DSN из PG_* переменных
func buildPostgresDSN() string {
	host := getEnv("PG_HOST", "localhost")
	port := getEnv("PG_PORT", "5432")
	user := getEnv("PG_USER", "postgres")
	pass := getEnv("PG_PASSWORD", "")
	db := getEnv("PG_DB", "geonorm")
	ssl := getEnv("PG_SSLMODE", "disable")

	dsn := "postgres://" + user
	if pass != "" {
		dsn += ":" + pass
	}
	return dsn + "@" + host + ":" + port + "/" + db + "?sslmode=" + ssl
}

// Вспомогательные функции для получения переменных окружения
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsList разбирает список через запятую
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
