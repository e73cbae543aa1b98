package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"clinicpos/m/domain"
)

// Config holds application configuration values.
type Config struct {
	Secret             string
	HTTPPort           string
	DatabaseDriver     string
	DatabaseDSN        string
	ServiceCategories  []string
	AllowNegativeStock bool
	SeedCatalog        bool
	AdminEmail         string
	AdminPassword      string
	PrintServerURL     string
	DefaultPrinter     string
	PrintServerPort    string
	ClinicName         string
	ClinicSubtitle     string
	Currency           string
	OTLPEndpoint       string
	ServiceName        string
	AllowedOrigins     []string
}

// Load reads configuration from environment variables with reasonable defaults.
func Load() Config {
	cfg := Config{
		Secret:             getEnv("SECRET", "dev_secret"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		DatabaseDriver:     strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabaseDSN:        os.Getenv("DATABASE_DSN"),
		ServiceCategories:  splitList(getEnv("SERVICE_CATEGORIES", strings.Join(domain.DefaultServiceCategories, ","))),
		AllowNegativeStock: getBool("ALLOW_NEGATIVE_STOCK", false),
		SeedCatalog:        getBool("SEED_CATALOG", true),
		AdminEmail:         strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		PrintServerURL:     getEnv("PRINT_SERVER_URL", "http://localhost:3001"),
		DefaultPrinter:     os.Getenv("DEFAULT_PRINTER"),
		PrintServerPort:    getEnv("PRINT_SERVER_PORT", "3001"),
		ClinicName:         getEnv("CLINIC_NAME", "Centre de Santé"),
		ClinicSubtitle:     os.Getenv("CLINIC_SUBTITLE"),
		Currency:           getEnv("CURRENCY", "XOF"),
		OTLPEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:        getEnv("SERVICE_NAME", "clinicpos"),
		AllowedOrigins:     splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
	}

	if cfg.DatabaseDriver != "sqlite" && cfg.DatabaseDriver != "pgx" {
		log.Printf("invalid DB_DRIVER value %q, defaulting to sqlite", cfg.DatabaseDriver)
		cfg.DatabaseDriver = "sqlite"
	}

	if cfg.DatabaseDSN == "" {
		if cfg.DatabaseDriver == "pgx" {
			cfg.DatabaseDSN = "postgres://postgres@localhost:5432/clinicpos?sslmode=disable"
		} else {
			cfg.DatabaseDSN = "clinicpos.db"
		}
	}

	// Validate that ports are numeric.
	if _, err := strconv.Atoi(cfg.HTTPPort); err != nil {
		log.Printf("invalid HTTP_PORT value %q, defaulting to 8080", cfg.HTTPPort)
		cfg.HTTPPort = "8080"
	}
	if _, err := strconv.Atoi(cfg.PrintServerPort); err != nil {
		log.Printf("invalid PRINT_SERVER_PORT value %q, defaulting to 3001", cfg.PrintServerPort)
		cfg.PrintServerPort = "3001"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s value %q, defaulting to %t", key, raw, fallback)
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
