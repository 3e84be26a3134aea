package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // reset.timezone must resolve in minimal images

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/your-org/reid/internal/vision"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Identity IdentityConfig `yaml:"identity"`
	Tracking TrackingConfig `yaml:"tracking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Audit    AuditConfig    `yaml:"audit"`
	Reset    ResetConfig    `yaml:"reset"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	APIKey      string   `yaml:"api_key"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type NATSConfig struct {
	URL string `yaml:"url"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// IdentityConfig is the identity engine's tuning surface. Absent keys keep
// the engine defaults; explicit zeros are honored.
type IdentityConfig struct {
	IoUWeight           float64       `yaml:"iou_weight"`
	AppearanceWeight    float64       `yaml:"appearance_weight"`
	MatchCostCutoff     float64       `yaml:"match_cost_cutoff"`
	Matcher             string        `yaml:"matcher"`
	EMAMomentum         float32       `yaml:"ema_momentum"`
	TTL                 time.Duration `yaml:"ttl"`
	AcceptanceThreshold float32       `yaml:"acceptance_threshold"`
	EmbeddingDim        int           `yaml:"embedding_dim"`
	CompactAfterTTLs    int           `yaml:"compact_after_ttls"`
	WarmStart           bool          `yaml:"warm_start"`
}

// EngineConfig converts to the engine's configuration.
func (c IdentityConfig) EngineConfig() vision.Config {
	return vision.Config{
		IoUWeight:           c.IoUWeight,
		AppearanceWeight:    c.AppearanceWeight,
		MatchCostCutoff:     c.MatchCostCutoff,
		Matcher:             c.Matcher,
		EMAMomentum:         c.EMAMomentum,
		TTL:                 c.TTL,
		AcceptanceThreshold: c.AcceptanceThreshold,
		EmbeddingDim:        c.EmbeddingDim,
		CompactAfterTTLs:    c.CompactAfterTTLs,
	}
}

func defaultIdentity() IdentityConfig {
	d := vision.DefaultConfig()
	return IdentityConfig{
		IoUWeight:           d.IoUWeight,
		AppearanceWeight:    d.AppearanceWeight,
		MatchCostCutoff:     d.MatchCostCutoff,
		Matcher:             d.Matcher,
		EMAMomentum:         d.EMAMomentum,
		TTL:                 d.TTL,
		AcceptanceThreshold: d.AcceptanceThreshold,
		EmbeddingDim:        d.EmbeddingDim,
		CompactAfterTTLs:    d.CompactAfterTTLs,
		WarmStart:           true,
	}
}

type TrackingConfig struct {
	MaxMissed int `yaml:"max_missed"`
}

type WorkerConfig struct {
	Count               int           `yaml:"count"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
}

type AuditConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	MaxPending    int           `yaml:"max_pending"` // records kept while uploads fail
}

type ResetConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hour     int    `yaml:"hour"`
	Minute   int    `yaml:"minute"`
	Timezone string `yaml:"timezone"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads an optional .env file, the YAML config at path and then applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config and applies environment overrides and defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Identity: defaultIdentity(),
		Reset:    ResetConfig{Enabled: true, Hour: 12},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	if err := cfg.Identity.EngineConfig().Validate(); err != nil {
		return nil, fmt.Errorf("identity config: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Reset.Timezone); err != nil {
		return nil, fmt.Errorf("reset timezone: %w", err)
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Tracking.MaxMissed == 0 {
		cfg.Tracking.MaxMissed = 30
	}
	if cfg.Worker.Count == 0 {
		cfg.Worker.Count = 4
	}
	if cfg.Worker.MaintenanceInterval == 0 {
		cfg.Worker.MaintenanceInterval = 30 * time.Second
	}
	if cfg.Audit.BatchSize == 0 {
		cfg.Audit.BatchSize = 500
	}
	if cfg.Audit.FlushInterval == 0 {
		cfg.Audit.FlushInterval = 30 * time.Second
	}
	if cfg.Audit.MaxPending == 0 {
		cfg.Audit.MaxPending = 50000
	}
	if cfg.Reset.Timezone == "" {
		cfg.Reset.Timezone = "Asia/Kolkata"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REID_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REID_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("REID_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("REID_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("REID_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REID_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("REID_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REID_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("REID_MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("REID_MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("REID_MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
	if v := os.Getenv("REID_MINIO_BUCKET"); v != "" {
		cfg.MinIO.Bucket = v
	}
	if v := os.Getenv("REID_MATCHER"); v != "" {
		cfg.Identity.Matcher = v
	}
	if v := os.Getenv("REID_ACCEPTANCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			cfg.Identity.AcceptanceThreshold = float32(f)
		}
	}
	if v := os.Getenv("REID_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Identity.TTL = d
		}
	}
	if v := os.Getenv("REID_EMBEDDING_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Identity.EmbeddingDim = n
		}
	}
	if v := os.Getenv("REID_WORKER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Count = n
		}
	}
	if v := os.Getenv("REID_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
