// Package config loads server settings from a .env file and the environment.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Business  BusinessConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Audit     AuditConfig
}

type AppConfig struct {
	Name string
	Env  string
	Port int
}

type DatabaseConfig struct {
	Path string // ":memory:" for an in-memory database
}

// BusinessConfig holds the venue's wall-clock settings. Happy-hour windows
// are evaluated in Location.
type BusinessConfig struct {
	Timezone string
	Location *time.Location
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// AuditConfig controls the periodic ledger verification job.
type AuditConfig struct {
	Enabled  bool
	Interval time.Duration
	Repair   bool
}

// Load reads envFile (if present) and the environment. A missing file is
// not an error; an unknown timezone is.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			log.Printf("Warning: %s not loaded, using environment variables: %v", envFile, err)
		}
	}

	v.SetDefault("APP_NAME", "backoffice-engine")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("DB_PATH", "backoffice.db")
	v.SetDefault("BUSINESS_TIMEZONE", "Europe/Istanbul")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("AUDIT_ENABLED", true)
	v.SetDefault("AUDIT_INTERVAL", "1h")
	v.SetDefault("AUDIT_REPAIR", false)

	tz := v.GetString("BUSINESS_TIMEZONE")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", tz, err)
	}

	return &Config{
		App: AppConfig{
			Name: v.GetString("APP_NAME"),
			Env:  v.GetString("APP_ENV"),
			Port: v.GetInt("APP_PORT"),
		},
		Database: DatabaseConfig{
			Path: v.GetString("DB_PATH"),
		},
		Business: BusinessConfig{
			Timezone: tz,
			Location: loc,
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:             v.GetInt("RATE_LIMIT_BURST"),
		},
		Audit: AuditConfig{
			Enabled:  v.GetBool("AUDIT_ENABLED"),
			Interval: v.GetDuration("AUDIT_INTERVAL"),
			Repair:   v.GetBool("AUDIT_REPAIR"),
		},
	}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
