package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/geoattend-api/internal/schedule"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName       string
	AppEnv        string
	AppPort       string
	DatabaseURL   string
	RedisURL      string
	NATSURL       string
	EventsChannel string
	JWTSecret     string
	CORSOrigins   string

	Timezone          string
	GraceBefore       time.Duration
	GraceAfter        time.Duration
	DefaultRadius     float64
	RescheduledPolicy schedule.RescheduledPolicy
	StoreTimeout      time.Duration

	ReportCacheTTL time.Duration
	ReportMaxDays  int

	MarkRateLimit  int
	MarkRateWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Location resolves the configured school time zone.
func (c Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ATTEND")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Attendance API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "attendance")
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("attendance.timezone", "UTC")
	v.SetDefault("attendance.grace_before", "10m")
	v.SetDefault("attendance.grace_after", "10m")
	v.SetDefault("attendance.default_radius", 30)
	v.SetDefault("attendance.rescheduled_policy", string(schedule.UseReschedule))
	v.SetDefault("attendance.store_timeout", "3s")
	v.SetDefault("report.cache_ttl", "2m")
	v.SetDefault("report.max_days", 366)
	v.SetDefault("ratelimit.mark_max", 10)
	v.SetDefault("ratelimit.mark_window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{"attendance.grace_before", "attendance.grace_after", "attendance.store_timeout", "report.cache_ttl", "ratelimit.mark_window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:        v.GetString("app.name"),
		AppEnv:         v.GetString("app.env"),
		AppPort:        v.GetString("app.port"),
		DatabaseURL:    v.GetString("database.url"),
		RedisURL:       v.GetString("redis.url"),
		NATSURL:        v.GetString("nats.url"),
		EventsChannel:  v.GetString("events.channel"),
		JWTSecret:      v.GetString("jwt.secret"),
		CORSOrigins:    v.GetString("cors.allowed_origins"),
		Timezone:       v.GetString("attendance.timezone"),
		GraceBefore:    durations["attendance.grace_before"],
		GraceAfter:     durations["attendance.grace_after"],
		DefaultRadius:  v.GetFloat64("attendance.default_radius"),
		StoreTimeout:   durations["attendance.store_timeout"],
		ReportCacheTTL: durations["report.cache_ttl"],
		ReportMaxDays:  v.GetInt("report.max_days"),
		MarkRateLimit:  v.GetInt("ratelimit.mark_max"),
		MarkRateWindow: durations["ratelimit.mark_window"],
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	policy, err := schedule.ParsePolicy(v.GetString("attendance.rescheduled_policy"))
	if err != nil {
		return Config{}, err
	}
	cfg.RescheduledPolicy = policy

	if _, err := cfg.Location(); err != nil {
		return Config{}, fmt.Errorf("invalid attendance timezone: %w", err)
	}

	if cfg.DefaultRadius <= 0 {
		cfg.DefaultRadius = 30
	}
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = 3 * time.Second
	}
	if cfg.ReportMaxDays <= 0 {
		cfg.ReportMaxDays = 366
	}

	return cfg, nil
}
