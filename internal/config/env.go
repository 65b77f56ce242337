package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port     string
	LogLevel string
	LogJSON  bool

	StoreBackend string
	DatabaseURL  string

	AIAPIKey      string
	EmbedModel    string
	GenModel      string
	RedisURL      string
	EmbedCacheTTL time.Duration

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	JWTSecret string

	RequestTimeout      time.Duration
	CatalogURL          string
	CatalogFetchTimeout time.Duration
	SyncInterval        time.Duration

	HistoryLimit        int
	SearchTopK          int
	SimilarityThreshold float64
	IngestWorkers       int

	DefaultCyrillicLanguage string
	DefaultLatinLanguage    string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogJSON:  getEnvBool("LOG_JSON", false),

		StoreBackend: getEnv("STORE_BACKEND", BackendPostgres),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AIAPIKey:      getEnv("GEMINI_API_KEY", ""),
		EmbedModel:    getEnv("EMBED_MODEL", "text-embedding-004"),
		GenModel:      getEnv("GEN_MODEL", "gemini-1.5-flash"),
		RedisURL:      getEnv("REDIS_URL", ""),
		EmbedCacheTTL: getEnvDuration("EMBED_CACHE_TTL", 24*time.Hour),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		CatalogURL:          getEnv("CATALOG_URL", "https://library-service.com.ua:8443/khkhdak/DocumentSearchForm"),
		CatalogFetchTimeout: getEnvDuration("CATALOG_FETCH_TIMEOUT", 15*time.Second),
		SyncInterval:        getEnvDuration("SYNC_INTERVAL", 6*time.Hour),

		HistoryLimit:        getEnvInt("HISTORY_LIMIT", 10),
		SearchTopK:          getEnvInt("SEARCH_TOP_K", 3),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.5),
		IngestWorkers:       getEnvInt("INGEST_WORKERS", 2),

		DefaultCyrillicLanguage: getEnv("DEFAULT_CYRILLIC_LANGUAGE", "uk"),
		DefaultLatinLanguage:    getEnv("DEFAULT_LATIN_LANGUAGE", "en"),
	}
}

// Validate reports every missing or inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	if c.AIAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET not set"))
	}
	if c.SearchTopK < 1 {
		errs = append(errs, errors.New("SEARCH_TOP_K must be at least 1"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, errors.New("HISTORY_LIMIT must not be negative"))
	}
	return errors.Join(errs...)
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getEnvDuration accepts Go duration strings ("90s", "6h") and treats a bare
// "0" as zero.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	if v == "0" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
