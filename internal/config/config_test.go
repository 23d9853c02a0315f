package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorePostgres, cfg.Store)
	assert.Equal(t, "global", cfg.PromotionScope)
	assert.True(t, cfg.VerifyRegistrations)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, int32(20), cfg.Database.MaxConns)
	assert.Equal(t, 6*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DEV", "true")
	t.Setenv("STORE", "memory")
	t.Setenv("PROMOTION_SCOPE", "range")
	t.Setenv("DB_URL", "postgres://u:p@db:5432/regs")
	t.Setenv("RATE_LIMIT_CAPACITY", "3")
	t.Setenv("SMTP_HOST", "smtp.test")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.True(t, cfg.Dev)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "range", cfg.PromotionScope)
	assert.Equal(t, "postgres://u:p@db:5432/regs", cfg.Database.DSN())
	assert.Equal(t, 3, cfg.RateLimit.Capacity)
	assert.Equal(t, "smtp.test", cfg.SMTP.Host)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad store", map[string]string{"STORE": "mongo"}, "STORE"},
		{"bad scope", map[string]string{"PROMOTION_SCOPE": "everywhere"}, "PROMOTION_SCOPE"},
		{"bad int", map[string]string{"REDIS_DB": "zero"}, "parse env:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
