package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"
)

type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Cricbuzz  CricbuzzConfig
	Store     StoreConfig
	Worker    WorkerConfig
	Retention RetentionConfig
	Series    SeriesConfig
}

type AppConfig struct {
	Environment string
	Timezone    string
}

type ServerConfig struct {
	Port               string
	Host               string
	CORSAllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CricbuzzConfig struct {
	BaseURL        string
	APIKey         string
	APIHost        string
	Timeout        time.Duration
	RequestsPerMin int
	MaxRetries     int

	CircuitFailureCount int
	CircuitOpenTimeout  time.Duration
	CircuitHalfOpenReqs int
}

type StoreConfig struct {
	Backend                  string
	FirestoreProjectID       string
	FirestoreCredentialsFile string
}

type WorkerConfig struct {
	PoolSize   int
	JobTimeout time.Duration
	Locking    bool
}

type RetentionConfig struct {
	RunLogDays int
	MatchDays  int
}

type SeriesConfig struct {
	IDs []int64
}

func Load() *Config {
	return &Config{
		App: AppConfig{
			Environment: getEnv("ENVIRONMENT", "development"),
			Timezone:    getEnv("APP_TIMEZONE", "UTC"),
		},
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			Host:               getEnv("HOST", "localhost"),
			CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "cricmirror"),
			Password: getEnv("DB_PASSWORD", "cricmirror"),
			DBName:   getEnv("DB_NAME", "cricmirror"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Cricbuzz: CricbuzzConfig{
			BaseURL:             getEnv("CRICBUZZ_BASE_URL", "https://cricbuzz-cricket.p.rapidapi.com"),
			APIKey:              getEnv("RAPIDAPI_KEY", ""),
			APIHost:             getEnv("RAPIDAPI_HOST", "cricbuzz-cricket.p.rapidapi.com"),
			Timeout:             getEnvAsDuration("CRICBUZZ_TIMEOUT", 15*time.Second),
			RequestsPerMin:      getEnvAsInt("CRICBUZZ_REQUESTS_PER_MINUTE", 60),
			MaxRetries:          getEnvAsInt("CRICBUZZ_MAX_RETRIES", 3),
			CircuitFailureCount: getEnvAsInt("CRICBUZZ_CIRCUIT_FAILURE_COUNT", 5),
			CircuitOpenTimeout:  getEnvAsDuration("CRICBUZZ_CIRCUIT_OPEN_TIMEOUT", 30*time.Second),
			CircuitHalfOpenReqs: getEnvAsInt("CRICBUZZ_CIRCUIT_HALF_OPEN_MAX_REQ", 1),
		},
		Store: StoreConfig{
			Backend:                  strings.ToLower(getEnv("DOCUMENT_STORE", StorePostgres)),
			FirestoreProjectID:       getEnv("FIRESTORE_PROJECT_ID", ""),
			FirestoreCredentialsFile: getEnv("FIRESTORE_CREDENTIALS_FILE", ""),
		},
		Worker: WorkerConfig{
			PoolSize:   getEnvAsInt("WORKER_POOL_SIZE", 4),
			JobTimeout: getEnvAsDuration("JOB_TIMEOUT", 10*time.Minute),
			Locking:    getEnvAsBool("JOB_LOCKING_ENABLED", true),
		},
		Retention: RetentionConfig{
			RunLogDays: getEnvAsInt("RUN_LOG_RETENTION_DAYS", 14),
			MatchDays:  getEnvAsInt("MATCH_RETENTION_DAYS", 7),
		},
		Series: SeriesConfig{
			IDs: getEnvAsInt64List("SERIES_IDS"),
		},
	}
}

// Validate reports configuration that would only fail later at runtime.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.App.Timezone, err)
	}

	switch c.Store.Backend {
	case StorePostgres:
	case StoreFirestore:
		if c.Store.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required when DOCUMENT_STORE=firestore")
		}
	default:
		return fmt.Errorf("unknown DOCUMENT_STORE %q", c.Store.Backend)
	}

	if c.Worker.PoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be > 0")
	}
	if c.Cricbuzz.RequestsPerMin < 1 {
		return fmt.Errorf("CRICBUZZ_REQUESTS_PER_MINUTE must be > 0")
	}

	return nil
}

// Location returns the application timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("30s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsInt64List(key string) []int64 {
	var ids []int64
	for _, raw := range getEnvAsList(key, nil) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (c *Config) DatabaseURL() string {
	// If DATABASE_URL is set, use it directly
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.DBName + "?sslmode=" + c.Database.SSLMode
}
