package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the resolved runtime configuration. Fields carry their env
// names; LoadConfig applies them over the file values.
type Config struct {
	ServiceName string `env:"SERVICE_NAME"`
	LogLevel    string `env:"LOG_LEVEL"`

	HTTPPort int `env:"HTTP_PORT"`
	GRPCPort int `env:"GRPC_PORT"`

	StorageDriver string `env:"STORAGE_DRIVER"`
	DatabaseURL   string `env:"DATABASE_URL"`
	MaxDBConns    int32  `env:"DB_MAX_CONNS"`
	AutoMigrate   bool   `env:"DB_AUTO_MIGRATE"`
	RedisURL      string `env:"REDIS_URL"`

	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaGroupID  string   `env:"KAFKA_GROUP_ID"`
	CampaignTopic string   `env:"KAFKA_CAMPAIGN_TOPIC"`

	JWTSecret   string `env:"JWT_SECRET"`
	JWTAudience string `env:"JWT_AUDIENCE"`
	JWTIssuer   string `env:"JWT_ISSUER"`

	OTELEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELSampleRatio float64 `env:"OTEL_SAMPLE_RATIO"`

	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	SecureCookies bool   `env:"SECURE_COOKIES"`

	ListCacheTTL    time.Duration `env:"LIST_CACHE_TTL"`
	IdempotencyTTL  time.Duration `env:"IDEMPOTENCY_TTL"`
	WriteRateLimit  int           `env:"WRITE_RATE_LIMIT"`
	WriteRateWindow time.Duration `env:"WRITE_RATE_WINDOW"`
	ConvertRate     float64       `env:"CONVERT_RATE"`
	ConvertBurst    int           `env:"CONVERT_BURST"`
	MaxHTMLBytes    int           `env:"MAX_HTML_BYTES"`

	OutboxPollInterval   time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxBatchSize      int           `env:"OUTBOX_BATCH_SIZE"`
	ConsumerPollInterval time.Duration `env:"CONSUMER_POLL_INTERVAL"`
	HealthInterval       time.Duration `env:"HEALTH_CHECK_INTERVAL"`
}

// aliasEnv holds the variable names the hosted auth backend hands out. They
// only apply when the canonical names are unset.
type aliasEnv struct {
	SupabaseDBURL     string `env:"SUPABASE_DB_URL"`
	SupabaseJWTSecret string `env:"SUPABASE_JWT_SECRET"`
	DBURL             string `env:"DB_URL"`
}

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		Name     string `yaml:"name"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
		LogLevel string `yaml:"log_level"`
		BaseURL  string `yaml:"public_base_url"`
	} `yaml:"service"`
	Storage struct {
		Driver      string `yaml:"driver"`
		PostgresURL string `yaml:"postgres_url"`
		MaxConns    int32  `yaml:"max_conns"`
		AutoMigrate *bool  `yaml:"auto_migrate"`
	} `yaml:"storage"`
	Dependencies struct {
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaGroupID string   `yaml:"kafka_group_id"`
		OTELEndpoint string   `yaml:"otel_endpoint"`
	} `yaml:"dependencies"`
	Auth struct {
		Audience string `yaml:"audience"`
		Issuer   string `yaml:"issuer"`
	} `yaml:"auth"`
	Limits struct {
		WriteRateLimit  int     `yaml:"write_rate_limit"`
		WriteRateWindow string  `yaml:"write_rate_window"`
		ConvertRate     float64 `yaml:"convert_rate"`
		ConvertBurst    int     `yaml:"convert_burst"`
	} `yaml:"limits"`
}

func defaultConfig() Config {
	return Config{
		ServiceName:          "campaign-service",
		LogLevel:             "info",
		HTTPPort:             8080,
		GRPCPort:             9090,
		StorageDriver:        StoragePostgres,
		MaxDBConns:           20,
		AutoMigrate:          true,
		KafkaGroupID:         "campaign-service",
		CampaignTopic:        "marketing.campaign.events",
		ListCacheTTL:         time.Minute,
		IdempotencyTTL:       24 * time.Hour,
		WriteRateLimit:       60,
		WriteRateWindow:      time.Minute,
		ConvertRate:          5,
		ConvertBurst:         10,
		MaxHTMLBytes:         2 << 20,
		OutboxPollInterval:   2 * time.Second,
		OutboxBatchSize:      100,
		ConsumerPollInterval: 2 * time.Second,
		HealthInterval:       10 * time.Second,
	}
}

// LoadConfig resolves configuration in priority order: defaults -> file ->
// .env -> process env. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := applyFile(&cfg, raw); err != nil {
			return Config{}, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	var aliases aliasEnv
	if err := env.Parse(&aliases); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = firstNonEmpty(aliases.SupabaseDBURL, aliases.DBURL)
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = aliases.SupabaseJWTSecret
	}

	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Service.Name != "" {
		cfg.ServiceName = f.Service.Name
	}
	if f.Service.HTTPPort > 0 {
		cfg.HTTPPort = f.Service.HTTPPort
	}
	if f.Service.GRPCPort > 0 {
		cfg.GRPCPort = f.Service.GRPCPort
	}
	if f.Service.LogLevel != "" {
		cfg.LogLevel = f.Service.LogLevel
	}
	if f.Service.BaseURL != "" {
		cfg.PublicBaseURL = f.Service.BaseURL
	}
	if f.Storage.Driver != "" {
		cfg.StorageDriver = f.Storage.Driver
	}
	if f.Storage.PostgresURL != "" {
		cfg.DatabaseURL = f.Storage.PostgresURL
	}
	if f.Storage.MaxConns > 0 {
		cfg.MaxDBConns = f.Storage.MaxConns
	}
	if f.Storage.AutoMigrate != nil {
		cfg.AutoMigrate = *f.Storage.AutoMigrate
	}
	if f.Dependencies.RedisURL != "" {
		cfg.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Dependencies.KafkaGroupID != "" {
		cfg.KafkaGroupID = f.Dependencies.KafkaGroupID
	}
	if f.Dependencies.OTELEndpoint != "" {
		cfg.OTELEndpoint = f.Dependencies.OTELEndpoint
	}
	if f.Auth.Audience != "" {
		cfg.JWTAudience = f.Auth.Audience
	}
	if f.Auth.Issuer != "" {
		cfg.JWTIssuer = f.Auth.Issuer
	}
	if f.Limits.WriteRateLimit > 0 {
		cfg.WriteRateLimit = f.Limits.WriteRateLimit
	}
	if f.Limits.WriteRateWindow != "" {
		d, err := time.ParseDuration(f.Limits.WriteRateWindow)
		if err != nil {
			return fmt.Errorf("parse limits.write_rate_window: %w", err)
		}
		cfg.WriteRateWindow = d
	}
	if f.Limits.ConvertRate > 0 {
		cfg.ConvertRate = f.Limits.ConvertRate
	}
	if f.Limits.ConvertBurst > 0 {
		cfg.ConvertBurst = f.Limits.ConvertBurst
	}
	return nil
}

// loadDotEnv reads a local .env file into the process environment without
// overriding variables that are already set.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("missing DATABASE_URL/SUPABASE_DB_URL")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("missing JWT_SECRET/SUPABASE_JWT_SECRET")
	}
	if c.HTTPPort < 0 || c.GRPCPort < 0 {
		return fmt.Errorf("ports must not be negative")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
