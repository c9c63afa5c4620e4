package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	defaultPort                  = "3333"
	defaultResendAPIURL          = "https://api.resend.com/emails"
	defaultResendFromEmail       = "DoEase <notifications@example.com>"
	defaultResendRatePerSec      = 5
	defaultSchedulerCaller       = "postgres"
	defaultSchedulerCallerHeader = "X-Supabase-Caller"
	defaultStreakTimezone        = "UTC"
	defaultSweepConcurrency      = 10
	defaultStreakSweepInterval   = 24 * time.Hour
	defaultReminderSweepInterval = 5 * time.Minute
)

type Config struct {
	DatabaseURL    string
	Port           string
	ClerkSecretKey string

	// ClerkWebhookSecret is the "whsec_" signing secret for /webhooks/clerk.
	ClerkWebhookSecret string

	ResendAPIKey     string
	ResendAPIURL     string
	ResendFromEmail  string
	ResendRatePerSec float64

	SchedulerCaller       string
	SchedulerCallerHeader string

	// StreakLocation is the single reference timezone for every streak
	// computation: the reset sweep, task completion and profile reads.
	StreakLocation   *time.Location
	SweepConcurrency int

	MetricsUser string
	MetricsPass string

	InternalScheduler     bool
	StreakSweepInterval   time.Duration
	ReminderSweepInterval time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := &Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		Port:                  getEnv("PORT", defaultPort),
		ClerkSecretKey:        os.Getenv("CLERK_SECRET_KEY"),
		ClerkWebhookSecret:    os.Getenv("CLERK_WEBHOOK_SECRET"),
		ResendAPIKey:          os.Getenv("RESEND_API_KEY"),
		ResendAPIURL:          getEnv("RESEND_API_URL", defaultResendAPIURL),
		ResendFromEmail:       getEnv("RESEND_FROM_EMAIL", defaultResendFromEmail),
		SchedulerCaller:       getEnv("SCHEDULER_CALLER", defaultSchedulerCaller),
		SchedulerCallerHeader: getEnv("SCHEDULER_CALLER_HEADER", defaultSchedulerCallerHeader),
		MetricsUser:           os.Getenv("METRICS_USER"),
		MetricsPass:           os.Getenv("METRICS_PASS"),
	}

	var err error

	tz := getEnv("STREAK_TIMEZONE", defaultStreakTimezone)
	cfg.StreakLocation, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid STREAK_TIMEZONE %q: %w", tz, err)
	}

	if cfg.ResendRatePerSec, err = getFloat("RESEND_RATE_PER_SEC", defaultResendRatePerSec); err != nil {
		return nil, err
	}
	if cfg.SweepConcurrency, err = getInt("SWEEP_CONCURRENCY", defaultSweepConcurrency); err != nil {
		return nil, err
	}
	if cfg.SweepConcurrency < 1 {
		return nil, fmt.Errorf("SWEEP_CONCURRENCY must be at least 1, got %d", cfg.SweepConcurrency)
	}
	if cfg.InternalScheduler, err = getBool("INTERNAL_SCHEDULER", false); err != nil {
		return nil, err
	}
	if cfg.StreakSweepInterval, err = getDuration("STREAK_SWEEP_INTERVAL", defaultStreakSweepInterval); err != nil {
		return nil, err
	}
	if cfg.ReminderSweepInterval, err = getDuration("REMINDER_SWEEP_INTERVAL", defaultReminderSweepInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

// RequireDatabase reports an error when no database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	return nil
}

// EmailEnabled reports whether outbound email is configured. Sweeps run
// without sending anything when it is not.
func (c *Config) EmailEnabled() bool {
	return c.ResendAPIKey != ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, d)
	}
	return d, nil
}
