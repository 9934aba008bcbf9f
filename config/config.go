package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSignatureHeader = "MyFatoorah-Signature"
	DefaultStagingTTL      = 60
)

type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	GRPC       GRPCConfig       `yaml:"grpc"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	Inventory  InventoryConfig  `yaml:"inventory"`
	Frontend   FrontendConfig   `yaml:"frontend"`
	Staging    StagingConfig    `yaml:"staging"`
	Settlement SettlementConfig `yaml:"settlement"`
	Worker     WorkerConfig     `yaml:"worker"`
	Log        LogConfig        `yaml:"log"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	SwaggerDir string `yaml:"swagger_dir"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// QueueDB holds the compensation task queue, kept apart from staged bookings.
	QueueDB int `yaml:"queue_db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	SettlementTopic    string   `yaml:"settlement_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type GatewayConfig struct {
	BaseURL         string `yaml:"base_url"`
	Token           string `yaml:"token"`
	WebhookSecret   string `yaml:"webhook_secret"`
	SignatureHeader string `yaml:"signature_header"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

type InventoryConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (i InventoryConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}

type FrontendConfig struct {
	BaseURL string `yaml:"base_url"`
}

func (f FrontendConfig) SuccessURL() string {
	return strings.TrimRight(f.BaseURL, "/") + "/thank-you"
}

func (f FrontendConfig) ErrorURL() string {
	return strings.TrimRight(f.BaseURL, "/") + "/payment-failed"
}

type StagingConfig struct {
	TTLMinutes            int `yaml:"ttl_minutes"`
	ReferenceCacheMinutes int `yaml:"reference_cache_minutes"`
}

type SettlementConfig struct {
	ReconcileOnPoll      bool `yaml:"reconcile_on_poll"`
	CompensationMaxRetry int  `yaml:"compensation_max_retry"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
}

type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// LoadConfig reads an optional .env file, expands ${VAR} references in the
// YAML at path and validates the result.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse([]byte(os.ExpandEnv(string(data))))
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Gateway.SignatureHeader == "" {
		c.Gateway.SignatureHeader = DefaultSignatureHeader
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = 15
	}
	if c.Inventory.TimeoutSeconds <= 0 {
		c.Inventory.TimeoutSeconds = 30
	}
	if c.Staging.TTLMinutes <= 0 {
		c.Staging.TTLMinutes = DefaultStagingTTL
	}
	if c.Staging.ReferenceCacheMinutes <= 0 {
		c.Staging.ReferenceCacheMinutes = 24 * 60
	}
	if c.Settlement.CompensationMaxRetry <= 0 {
		c.Settlement.CompensationMaxRetry = 10
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 10
	}
	if c.Kafka.SettlementTopic == "" {
		c.Kafka.SettlementTopic = "settlements"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "airsettle-worker"
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		c.RateLimit.RequestsPerMinute = 120
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 20
	}
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	var missing []string
	if c.Gateway.BaseURL == "" {
		missing = append(missing, "gateway.base_url")
	}
	if c.Gateway.Token == "" {
		missing = append(missing, "gateway.token")
	}
	if c.Gateway.WebhookSecret == "" {
		missing = append(missing, "gateway.webhook_secret")
	}
	if c.Inventory.BaseURL == "" {
		missing = append(missing, "inventory.base_url")
	}
	if c.Frontend.BaseURL == "" {
		missing = append(missing, "frontend.base_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s StagingConfig) TTL() time.Duration {
	return time.Duration(s.TTLMinutes) * time.Minute
}

func (s StagingConfig) ReferenceCacheTTL() time.Duration {
	return time.Duration(s.ReferenceCacheMinutes) * time.Minute
}
