package internal

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://localhost/oraculo")
	t.Setenv("AUTH_JWT_SECRET", "dev-secret")
	t.Setenv("AI_PROVIDER", "mock")
	t.Setenv("STORAGE_PROVIDER", "local")
}

func TestNewConfig_Defaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "pt-BR", cfg.ReadingLanguage)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, time.UTC, cfg.DailyLocation())
	assert.Positive(t, cfg.RateLimitRPS)
	assert.True(t, cfg.IsDevelopment())
}

func TestNewConfig_Overrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("REVEAL_INTERVAL", "250ms")
	t.Setenv("DAILY_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.RevealInterval)
	assert.Equal(t, "America/Sao_Paulo", cfg.DailyLocation().String())
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
}

func TestNewConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing database", map[string]string{"DATABASE_URL": ""}, "DATABASE_URL"},
		{"missing jwt secret", map[string]string{"AUTH_JWT_SECRET": ""}, "AUTH_JWT_SECRET"},
		{"short secret in production", map[string]string{"ENV": "production", "AI_PROVIDER": "gateway", "AI_GATEWAY_URL": "http://ai"}, "at least 32 bytes"},
		{"gateway without url", map[string]string{"AI_PROVIDER": "gateway"}, "AI_GATEWAY_URL"},
		{"anthropic without key", map[string]string{"AI_PROVIDER": "anthropic"}, "ANTHROPIC_API_KEY"},
		{"mock in production", map[string]string{"ENV": "production", "AUTH_JWT_SECRET": "0123456789abcdef0123456789abcdef"}, "only allowed in development"},
		{"unknown provider", map[string]string{"AI_PROVIDER": "oracle"}, "AI_PROVIDER must be"},
		{"r2 without bucket", map[string]string{"STORAGE_PROVIDER": "r2", "R2_ACCOUNT_ID": "a", "R2_ACCESS_KEY_ID": "b", "R2_SECRET_ACCESS_KEY": "c"}, "R2_BUCKET_NAME"},
		{"unknown storage", map[string]string{"STORAGE_PROVIDER": "ftp"}, "STORAGE_PROVIDER"},
		{"bad timezone", map[string]string{"DAILY_TIMEZONE": "Mars/Olympus"}, "DAILY_TIMEZONE"},
		{"stripe without webhook secret", map[string]string{"STRIPE_SECRET_KEY": "sk_test_1"}, "STRIPE_WEBHOOK_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := NewConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production", "info")

	logger.Debug("hidden")
	logger.Info("visible", "user_id", "u1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "oraculo", entry["service"])
	assert.Equal(t, "u1", entry["user_id"])
}
