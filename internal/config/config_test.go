package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("INTAKE_SUBMISSIONS_PER_MINUTE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.App.Port)
	assert.Equal(t, "sqlite:///./taxdesk.db", cfg.Database.URL)
	assert.Equal(t, 5, cfg.Intake.SubmissionsPerMinute)
	assert.Same(t, cfg, Get())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEBUG", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("INTAKE_SUBMISSIONS_PER_MINUTE", "12")
	t.Setenv("SMTP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.App.Port)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 12, cfg.Intake.SubmissionsPerMinute)
	assert.Equal(t, 587, cfg.Email.SMTPPort, "invalid ints fall back to the default")
}

func TestLoad_RejectsNonPositiveLimit(t *testing.T) {
	t.Setenv("INTAKE_SUBMISSIONS_PER_MINUTE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTAKE_SUBMISSIONS_PER_MINUTE")
}

func TestValidateForProduction(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{SecretKey: defaultSecretKey}}
	assert.Error(t, cfg.ValidateForProduction())

	cfg.Auth.SecretKey = "short"
	assert.Error(t, cfg.ValidateForProduction())

	cfg.Auth.SecretKey = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.ValidateForProduction())
}

func TestDatabaseConfig_Dialects(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		postgres bool
		dsn      string
	}{
		{
			name:     "postgres url",
			url:      "postgres://tax:s3cr:et@db.internal:5433/intake?sslmode=require",
			postgres: true,
			dsn:      "host=db.internal port=5433 user=tax dbname=intake sslmode=require password=s3cr:et",
		},
		{
			name:     "postgresql url without db",
			url:      "postgresql://tax@localhost",
			postgres: true,
			dsn:      "host=localhost port=5432 user=tax dbname=postgres sslmode=disable",
		},
		{
			name:     "key value dsn",
			url:      "host=localhost user=tax dbname=intake",
			postgres: true,
			dsn:      "host=localhost user=tax dbname=intake",
		},
		{
			name:     "sqlite",
			url:      "sqlite:///./taxdesk.db",
			postgres: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &DatabaseConfig{URL: tt.url}
			assert.Equal(t, tt.postgres, c.IsPostgres())
			if tt.postgres {
				assert.Equal(t, tt.dsn, c.GetPostgresDSN())
			}
		})
	}

	assert.Equal(t, "./taxdesk.db", (&DatabaseConfig{URL: "sqlite:///./taxdesk.db"}).GetSQLitePath())
	assert.Equal(t, ":memory:", (&DatabaseConfig{URL: ":memory:"}).GetSQLitePath())
}
