package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRouting(t *testing.T) {
	t.Run("Multiple departments", func(t *testing.T) {
		routing := ParseRouting("HI=hi@example.com|hi2@example.com; QA = qa@example.com")

		require.Len(t, routing, 2)
		assert.Equal(t, []string{"hi@example.com", "hi2@example.com"}, routing["HI"])
		assert.Equal(t, []string{"qa@example.com"}, routing["QA"])
	})

	t.Run("Empty input", func(t *testing.T) {
		assert.Empty(t, ParseRouting(""))
	})

	t.Run("Malformed entries are skipped", func(t *testing.T) {
		routing := ParseRouting("nodelimiter;=a@example.com;OPS=ops@example.com||")

		require.Len(t, routing, 1)
		assert.Equal(t, []string{"ops@example.com"}, routing["OPS"])
	})
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/checkout")
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("NOTIFICATION_HR_RECIPIENTS", "hr@example.com, hr2@example.com")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "8080", cfg.Server.Port)
		assert.Equal(t, "checkout_session", cfg.Session.CookieName)
		assert.Equal(t, 24*time.Hour, cfg.Session.MaxAge)
		assert.False(t, cfg.Session.Secure)
		assert.Equal(t, "log", cfg.Notification.Mode)
		assert.Equal(t, []string{"hr@example.com", "hr2@example.com"}, cfg.Notification.HRRecipients)
		assert.Equal(t, 20*time.Minute, cfg.Scheduler.PendingMaxAge)
		assert.Equal(t, 15*time.Minute, cfg.Scheduler.TokenRetention)
		assert.Equal(t, "@every 1m", cfg.Scheduler.PendingSweepSchedule)
		assert.Equal(t, "@every 5m", cfg.Scheduler.TokenSweepSchedule)
		assert.Equal(t, "0 0 20 * * *", cfg.Scheduler.DailySweepSchedule)
	})

	t.Run("Production enables secure cookies", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/checkout")
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("ENVIRONMENT", "production")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Session.Secure)
	})

	t.Run("Missing database URL", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_SECRET", "secret")

		_, err := Load()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:     DatabaseConfig{URL: "postgres://localhost/checkout"},
			JWT:          JWTConfig{Secret: "secret"},
			Session:      SessionConfig{CookieName: "checkout_session"},
			Notification: NotificationConfig{Mode: "log", Workers: 1, QueueSize: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"Valid", func(c *Config) {}, ""},
		{"SMTP without host", func(c *Config) { c.Notification.Mode = "smtp" }, "SMTP_HOST"},
		{"SMTP without sender", func(c *Config) {
			c.Notification.Mode = "smtp"
			c.Notification.SMTPHost = "mail.example.com"
		}, "NOTIFICATION_FROM"},
		{"Unknown mode", func(c *Config) { c.Notification.Mode = "pigeon" }, "invalid NOTIFICATION_MODE"},
		{"No workers", func(c *Config) { c.Notification.Workers = 0 }, "NOTIFICATION_WORKERS"},
		{"No queue", func(c *Config) { c.Notification.QueueSize = 0 }, "NOTIFICATION_QUEUE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchedulerLocation(t *testing.T) {
	assert.Equal(t, time.Local, SchedulerConfig{}.Location())
	assert.Equal(t, time.Local, SchedulerConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "UTC", SchedulerConfig{Timezone: "UTC"}.Location().String())
}
