package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TIMEZONE", "")
	t.Setenv("ALLOW_RESEND", "")
	t.Setenv("QUEUE_BACKEND", "")

	cfg := Load()
	assert.Equal(t, "UTC", cfg.TimeZone)
	assert.True(t, cfg.AllowResend)
	assert.Equal(t, "redis", cfg.QueueBackend)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ALLOW_RESEND", "false")
	t.Setenv("ACCESS_TTL", "2h")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg := Load()
	assert.False(t, cfg.AllowResend)
	assert.Equal(t, 2*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestEnvHelpersFallback(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		run  func() any
		want any
	}{
		{"bad duration", "X_DUR", "soon", func() any { return durationEnv("X_DUR", time.Minute) }, time.Minute},
		{"bad bool", "X_BOOL", "maybe", func() any { return boolEnv("X_BOOL", true) }, true},
		{"bad int", "X_INT", "ten", func() any { return intEnv("X_INT", 10) }, 10},
		{"bool one", "X_BOOL", "1", func() any { return boolEnv("X_BOOL", false) }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			assert.Equal(t, tt.want, tt.run())
		})
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		zone string
		want string
	}{
		{"", "UTC"},
		{"utc", "UTC"},
		{"Asia/Kathmandu", "Asia/Kathmandu"},
		{"Mars/Olympus", "UTC"},
	}
	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			got := App{TimeZone: tt.zone}.Location()
			assert.Equal(t, tt.want, got.String())
		})
	}
}
