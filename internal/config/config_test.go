package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/lot-map/internal/database"
	"github.com/iliyamo/lot-map/internal/normalize"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"STORE_BACKEND", "NUMBER_FORMAT", "TIMEZONE", "CSV_PATH", "APP_PORT", "CORS_ORIGINS"} {
		t.Setenv(k, "")
	}
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendCSV, c.StoreBackend)
	assert.Equal(t, "data/lotes.csv", c.CSVPath)
	assert.Equal(t, normalize.ThousandsComma, c.NumberFormat)
	assert.Equal(t, "America/Lima", c.Location.String())
	assert.Equal(t, []string{"*"}, c.CORSOrigins)
	assert.Equal(t, "8080", c.Port)
}

func TestLoad_SQLite(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQL")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/x.db")
	t.Setenv("NUMBER_FORMAT", "decimal")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSQL, c.StoreBackend)
	assert.Equal(t, database.DriverSQLite, c.DB.Driver)
	assert.Equal(t, "/tmp/x.db", c.DB.SQLitePath)
	assert.Equal(t, normalize.DecimalComma, c.NumberFormat)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, c.CORSOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"backend":       {"STORE_BACKEND": "excel"},
		"number format": {"NUMBER_FORMAT": "roman"},
		"timezone":      {"TIMEZONE": "Mars/Olympus"},
		"mysql creds":   {"STORE_BACKEND": "sql", "DB_DRIVER": "mysql", "DB_USER": "", "DB_NAME": ""},
		"db driver":     {"STORE_BACKEND": "sql", "DB_DRIVER": "oracle"},
		"supabase":      {"STORE_BACKEND": "supabase", "SUPABASE_URL": "", "SUPABASE_KEY": ""},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRateLimitConfig_FixUps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "3s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 3*time.Second, c.RefillInterval)
	assert.Equal(t, 15*time.Second, c.TTL)
	assert.Equal(t, "ip_route", c.KeyStrategy)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_ENABLED", "off")
	c := LoadCacheConfig()
	assert.False(t, c.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_DB", "2")
	o := RedisOptions()
	assert.Equal(t, "cache:6380", o.Addr)
	assert.Equal(t, 2, o.DB)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	assert.Equal(t, "redis:6379", RedisOptions().Addr)
}
