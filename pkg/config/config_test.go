package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, SchemaVariantFolded, cfg.Pipeline.SchemaVariant)
	assert.Equal(t, StatusStrategyStatusCode, cfg.Pipeline.StatusStrategy)
	assert.True(t, cfg.Pipeline.ReuseKeys)
	assert.Equal(t, 10, cfg.Pipeline.DefaultLesson)
	assert.Equal(t, "dim_students", cfg.Sheets.Students)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiration)
	assert.False(t, cfg.Pipeline.WithEnrollments())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "CSV")
	t.Setenv("STORE_DIR", "/tmp/kumon")
	t.Setenv("SCHEMA_VARIANT", "relation")
	t.Setenv("NORMALIZE_REUSE_KEYS", "false")
	t.Setenv("AUTH_OPERATORS", "root:ADMIN:hash, maria:OPERATOR:hash ,")
	t.Setenv("SNAPSHOT_CACHE_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverCSV, cfg.Store.Driver)
	assert.Equal(t, "/tmp/kumon", cfg.Store.Dir)
	assert.True(t, cfg.Pipeline.WithEnrollments())
	assert.False(t, cfg.Pipeline.ReuseKeys)
	assert.Equal(t, []string{"root:ADMIN:hash", "maria:OPERATOR:hash"}, cfg.Auth.Operators)
	assert.Equal(t, 2*time.Minute, cfg.Snapshot.TTL)
}

func TestValidateRejectsUnknownSettings(t *testing.T) {
	t.Setenv("SCHEMA_VARIANT", "snowflake")
	t.Setenv("ROSTER_STATUS_STRATEGY", "guess")
	t.Setenv("DEFAULT_LESSON", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEMA_VARIANT")
	assert.Contains(t, err.Error(), "ROSTER_STATUS_STRATEGY")
	assert.Contains(t, err.Error(), "DEFAULT_LESSON")
}

func TestValidateCSVDriverNeedsDir(t *testing.T) {
	cfg := &Config{
		Store:    StoreConfig{Driver: StoreDriverCSV},
		Sheets:   SheetsConfig{Raw: "raw", Students: "students", Facts: "facts"},
		Pipeline: PipelineConfig{SchemaVariant: SchemaVariantFolded, StatusStrategy: StatusStrategyLatestReport, DefaultLesson: 10},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DIR")

	cfg.Store.Dir = "./data"
	assert.NoError(t, cfg.Validate())
}

func TestPipelineLocation(t *testing.T) {
	assert.Equal(t, time.UTC, PipelineConfig{}.Location())
	assert.Equal(t, time.UTC, PipelineConfig{Timezone: "Mars/Olympus"}.Location())
	assert.Equal(t, "America/Sao_Paulo", PipelineConfig{Timezone: "America/Sao_Paulo"}.Location().String())
}
