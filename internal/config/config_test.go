package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SECRET", "HTTP_PORT", "DB_DRIVER", "DATABASE_DSN", "SERVICE_CATEGORIES", "ALLOW_NEGATIVE_STOCK", "CURRENCY", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "dev_secret", cfg.Secret)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "clinicpos.db", cfg.DatabaseDSN)
	assert.Equal(t, []string{"Consultations", "Analyses"}, cfg.ServiceCategories)
	assert.False(t, cfg.AllowNegativeStock)
	assert.Equal(t, "XOF", cfg.Currency)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")
	t.Setenv("DB_DRIVER", "PGX")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("SERVICE_CATEGORIES", " Consultations , Imagerie ,,")
	t.Setenv("ALLOW_NEGATIVE_STOCK", "true")
	t.Setenv("ADMIN_EMAIL", " Admin@Clinic.test ")

	cfg := Load()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "pgx", cfg.DatabaseDriver)
	assert.Contains(t, cfg.DatabaseDSN, "postgres://")
	assert.Equal(t, []string{"Consultations", "Imagerie"}, cfg.ServiceCategories)
	assert.True(t, cfg.AllowNegativeStock)
	assert.Equal(t, "admin@clinic.test", cfg.AdminEmail)
}
