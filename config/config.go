package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dealscope/models"
)

type Config struct {
	Port        string
	DBPath      string
	DatabaseURL string
	LogLevel    string
	LogPath     string
	ProfileDir  string
	Scheduler   SchedulerConfig
	Valuation   ValuationConfig
	Entitlement EntitlementConfig
	S3          S3Config
	Profiles    []models.GradeProfile
}

type SchedulerConfig struct {
	Interval   time.Duration
	Cron       string
	WindowDays int
}

type ValuationConfig struct {
	Provider string // "api", "comparables" or empty
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

type EntitlementConfig struct {
	DefaultTier string
	PaidOwners  []string
	FreeLimit   int
	PaidLimit   int
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for DO Spaces, R2, MinIO
	AccessKeyID     string
	SecretAccessKey string
}

// Enabled reports whether evaluation export is configured
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("APP_PORT", "8080"),
		DBPath:      getEnv("DB_PATH", "dealscope.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPath:     os.Getenv("LOG_PATH"),
		ProfileDir:  getEnv("PROFILE_DIR", "config/profiles"),
		Scheduler: SchedulerConfig{
			Cron:       os.Getenv("DEADLINE_CRON"),
			WindowDays: getEnvInt("DEADLINE_WINDOW_DAYS", 3),
		},
		Valuation: ValuationConfig{
			Provider: os.Getenv("VALUATION_PROVIDER"),
			BaseURL:  os.Getenv("VALUATION_BASE_URL"),
			APIKey:   os.Getenv("VALUATION_API_KEY"),
			Timeout:  time.Duration(getEnvInt("VALUATION_TIMEOUT_SEC", 15)) * time.Second,
		},
		Entitlement: EntitlementConfig{
			DefaultTier: getEnv("ENTITLEMENT_DEFAULT_TIER", "free"),
			PaidOwners:  splitList(os.Getenv("ENTITLEMENT_PAID_OWNERS")),
			FreeLimit:   getEnvInt("ENTITLEMENT_FREE_OFFER_LIMIT", 1),
			PaidLimit:   getEnvInt("ENTITLEMENT_PAID_OFFER_LIMIT", 0),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		},
	}

	if interval := os.Getenv("DEADLINE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadProfiles(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the daemon cannot run with
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}
	switch c.Entitlement.DefaultTier {
	case "free", "paid":
	default:
		return fmt.Errorf("ENTITLEMENT_DEFAULT_TIER must be free or paid, got %q", c.Entitlement.DefaultTier)
	}
	switch c.Valuation.Provider {
	case "":
	case "api", "comparables":
		if c.Valuation.BaseURL == "" {
			return fmt.Errorf("VALUATION_BASE_URL is required for provider %q", c.Valuation.Provider)
		}
	default:
		return fmt.Errorf("unknown VALUATION_PROVIDER %q", c.Valuation.Provider)
	}
	if c.Scheduler.WindowDays < 0 {
		return fmt.Errorf("DEADLINE_WINDOW_DAYS cannot be negative")
	}
	for i := range c.Profiles {
		if err := c.Profiles[i].Check(); err != nil {
			return fmt.Errorf("profile %q: %w", c.Profiles[i].Name, err)
		}
	}
	return nil
}

func (c *Config) loadProfiles() error {
	entries, err := os.ReadDir(c.ProfileDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(c.ProfileDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		// Thresholds left out of the file keep the built-in values
		profile := models.FallbackGradeProfile()
		profile.Name = ""
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		if profile.Name == "" {
			profile.Name = strings.TrimSuffix(entry.Name(), ".yaml")
		}

		c.Profiles = append(c.Profiles, profile)
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
