package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
	StoreDriverCSV      = "csv"
)

// Schema variants for the star schema layout.
const (
	SchemaVariantFolded   = "folded"
	SchemaVariantRelation = "relation"
)

// Roster status derivation strategies used by the normalization pass.
const (
	StatusStrategyStatusCode   = "status_code"
	StatusStrategyLatestReport = "latest_report"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Log      LogConfig
	Store    StoreConfig
	Sheets   SheetsConfig
	Pipeline PipelineConfig
	Snapshot SnapshotCacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// AuthConfig lists the operator accounts allowed to use the editor API.
// Each entry is "username:ROLE:bcrypt-hash".
type AuthConfig struct {
	Operators []string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the tabular store backend.
type StoreConfig struct {
	Driver string
	// Dir holds one <table>.csv per table for the csv driver.
	Dir string
}

// SheetsConfig names the tables read and written by the pipeline.
type SheetsConfig struct {
	Raw         string
	Students    string
	Enrollments string
	Facts       string
}

// PipelineConfig governs normalization and reconciliation behaviour.
type PipelineConfig struct {
	SchemaVariant  string
	StatusStrategy string
	ReuseKeys      bool
	DefaultLesson  int
	Timezone       string
	QueueBuffer    int
}

// SnapshotCacheConfig controls the Redis read cache in front of the store.
type SnapshotCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// WithEnrollments reports whether the relation variant is configured.
func (p PipelineConfig) WithEnrollments() bool {
	return p.SchemaVariant == SchemaVariantRelation
}

// Location resolves the configured reporting timezone, falling back to UTC.
func (p PipelineConfig) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 12*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Auth = AuthConfig{Operators: splitAndTrim(v.GetString("AUTH_OPERATORS"))}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Store = StoreConfig{
		Driver: strings.ToLower(v.GetString("STORE_DRIVER")),
		Dir:    v.GetString("STORE_DIR"),
	}

	cfg.Sheets = SheetsConfig{
		Raw:         v.GetString("SHEET_RAW"),
		Students:    v.GetString("SHEET_STUDENTS"),
		Enrollments: v.GetString("SHEET_ENROLLMENTS"),
		Facts:       v.GetString("SHEET_FACTS"),
	}

	cfg.Pipeline = PipelineConfig{
		SchemaVariant:  strings.ToLower(v.GetString("SCHEMA_VARIANT")),
		StatusStrategy: strings.ToLower(v.GetString("ROSTER_STATUS_STRATEGY")),
		ReuseKeys:      v.GetBool("NORMALIZE_REUSE_KEYS"),
		DefaultLesson:  v.GetInt("DEFAULT_LESSON"),
		Timezone:       v.GetString("APP_TIMEZONE"),
		QueueBuffer:    v.GetInt("PIPELINE_QUEUE_BUFFER"),
	}

	cfg.Snapshot = SnapshotCacheConfig{
		Enabled: v.GetBool("SNAPSHOT_CACHE_ENABLED"),
		TTL:     parseDuration(v.GetString("SNAPSHOT_CACHE_TTL"), 2*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects enum-like settings outside their allowed values.
func (c *Config) Validate() error {
	var errs []string
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	case StoreDriverCSV:
		if c.Store.Dir == "" {
			errs = append(errs, "STORE_DIR is required for the csv driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORE_DRIVER (%q) must be one of: postgres, memory, csv", c.Store.Driver))
	}
	switch c.Pipeline.SchemaVariant {
	case SchemaVariantFolded, SchemaVariantRelation:
	default:
		errs = append(errs, fmt.Sprintf("SCHEMA_VARIANT (%q) must be one of: folded, relation", c.Pipeline.SchemaVariant))
	}
	switch c.Pipeline.StatusStrategy {
	case StatusStrategyStatusCode, StatusStrategyLatestReport:
	default:
		errs = append(errs, fmt.Sprintf("ROSTER_STATUS_STRATEGY (%q) must be one of: status_code, latest_report", c.Pipeline.StatusStrategy))
	}
	if c.Pipeline.DefaultLesson <= 0 {
		errs = append(errs, "DEFAULT_LESSON must be positive")
	}
	if c.Sheets.Raw == "" || c.Sheets.Students == "" || c.Sheets.Facts == "" {
		errs = append(errs, "SHEET_RAW, SHEET_STUDENTS and SHEET_FACTS are required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "kumon_analytics")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "12h")
	v.SetDefault("JWT_ISSUER", "kumon-analytics")
	v.SetDefault("AUTH_OPERATORS", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("STORE_DIR", "./data")

	v.SetDefault("SHEET_RAW", "data_cleaned")
	v.SetDefault("SHEET_STUDENTS", "dim_students")
	v.SetDefault("SHEET_ENROLLMENTS", "rel_students_subject")
	v.SetDefault("SHEET_FACTS", "fct_status_report")

	v.SetDefault("SCHEMA_VARIANT", SchemaVariantFolded)
	v.SetDefault("ROSTER_STATUS_STRATEGY", StatusStrategyStatusCode)
	v.SetDefault("NORMALIZE_REUSE_KEYS", true)
	v.SetDefault("DEFAULT_LESSON", 10)
	v.SetDefault("APP_TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("PIPELINE_QUEUE_BUFFER", 4)

	v.SetDefault("SNAPSHOT_CACHE_ENABLED", false)
	v.SetDefault("SNAPSHOT_CACHE_TTL", "2m")
}

// isMissingFile reports a .env path that does not exist; viper only returns
// ConfigFileNotFoundError when searching config paths, not for SetConfigFile.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
