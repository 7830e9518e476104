package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := newViper()
	v.Set("JWT_SECRET", "secret")
	v.Set("S3_ENDPOINT", "")

	cfg, err := FromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.RequestTimeout)
	assert.False(t, cfg.Storage.Enabled())
	assert.Equal(t, "attachments", cfg.Storage.Prefix)
	assert.Equal(t, 8*1024*1024, cfg.Server.BodyLimit)
	assert.Equal(t, "233", cfg.Messages.DefaultCountryCode)
	assert.Equal(t, 4000, cfg.Messages.MaxLength)
	assert.Equal(t, []string{"hub"}, cfg.Realtime.Transports)
	assert.Equal(t, 3, cfg.StoreRetryAttempts)
	assert.Contains(t, cfg.Database.DSN(), "host=localhost")
}

func TestFromViperValidation(t *testing.T) {
	tests := []struct {
		name    string
		set     map[string]any
		wantErr string
	}{
		{"missing secret", map[string]any{"JWT_SECRET": ""}, "JWT_SECRET"},
		{"bad country code", map[string]any{"JWT_SECRET": "x", "DEFAULT_COUNTRY_CODE": "gh"}, "DEFAULT_COUNTRY_CODE"},
		{"kafka without brokers", map[string]any{"JWT_SECRET": "x", "REALTIME_TRANSPORTS": "hub,kafka", "KAFKA_BROKERS": ""}, "KAFKA_BROKERS"},
		{"nats without url", map[string]any{"JWT_SECRET": "x", "REALTIME_TRANSPORTS": "nats", "NATS_URL": ""}, "NATS_URL"},
		{"storage without bucket", map[string]any{"JWT_SECRET": "x", "S3_ENDPOINT": "minio:9000", "S3_BUCKET": ""}, "S3_BUCKET"},
		{"unknown transport", map[string]any{"JWT_SECRET": "x", "REALTIME_TRANSPORTS": "pigeon"}, "pigeon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := FromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCountryCodePlusStripped(t *testing.T) {
	v := newViper()
	v.Set("JWT_SECRET", "secret")
	v.Set("DEFAULT_COUNTRY_CODE", "+44")
	v.Set("REALTIME_TRANSPORTS", "hub, redis")

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "44", cfg.Messages.DefaultCountryCode)
	assert.Equal(t, []string{"hub", "redis"}, cfg.Realtime.Transports)
}
