// Package config loads the staffing service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gartstein/staffing/internal/staffing/db"
	"github.com/gartstein/staffing/internal/staffing/features"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	// PathEnv names the environment variable holding the config file path.
	PathEnv     = "CONFIG_PATH"
	DefaultPath = "config/staffing.yaml"

	jwtSecretEnv  = "JWT_SECRET"
	dbPasswordEnv = "DB_PASSWORD"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Auth      AuthConfig      `yaml:"auth"`
	Modules   ModulesConfig   `yaml:"modules"`
	Contracts ContractsConfig `yaml:"contracts"`
}

type ServerConfig struct {
	GRPCPort           int           `yaml:"grpc_port"`
	HTTPPort           int           `yaml:"http_port"`
	ShutdownTimeout    time.Duration `yaml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
}

// KafkaConfig leaves Brokers empty to run without event publishing.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ModulesConfig is the feature-flag snapshot. Disabled switches modules off
// for every firm; Firms overrides single firms by id.
type ModulesConfig struct {
	Disabled []string                   `yaml:"disabled"`
	Firms    map[string]map[string]bool `yaml:"firms"`
}

type ContractsConfig struct {
	DefaultAlertThresholdDays int `yaml:"default_alert_threshold_days"`
}

// Load reads the file at path, applies environment overrides and validates
// the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes the same way Load does.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PathFromEnv returns the config path from CONFIG_PATH or the default.
func PathFromEnv() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) applyEnv() {
	if v := os.Getenv(jwtSecretEnv); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(dbPasswordEnv); v != "" {
		c.Database.Password = v
	}
}

func (c *Config) validateAndNormalize() error {
	if err := c.Server.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return fmt.Errorf("config: kafka.topic must be set when brokers are configured")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config: auth.jwt_secret must be set")
	}
	if _, err := c.Modules.Snapshot(); err != nil {
		return err
	}
	if c.Contracts.DefaultAlertThresholdDays < 0 {
		return fmt.Errorf("config: contracts.default_alert_threshold_days must not be negative")
	}
	if c.Contracts.DefaultAlertThresholdDays == 0 {
		c.Contracts.DefaultAlertThresholdDays = models.DefaultAlertThreshold
	}
	return nil
}

func (s *ServerConfig) validateAndNormalize() error {
	if s.GRPCPort <= 0 {
		return fmt.Errorf("config: server.grpc_port must be set")
	}
	if s.HTTPPort <= 0 {
		return fmt.Errorf("config: server.http_port must be set")
	}
	if s.GRPCPort == s.HTTPPort {
		return fmt.Errorf("config: server.grpc_port and server.http_port must differ")
	}

	timeout, err := parseDurationAllowEmpty(s.ShutdownTimeoutRaw)
	if err != nil {
		return fmt.Errorf("config: server.shutdown_timeout: %w", err)
	}
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	s.ShutdownTimeout = timeout
	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime
	return nil
}

// Repository converts the section into the repository connection settings.
func (d DatabaseConfig) Repository() *db.Config {
	return &db.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		DBName:          d.Name,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
	}
}

// Snapshot builds the feature registry described by the section.
func (m ModulesConfig) Snapshot() (*features.Snapshot, error) {
	disabled := make([]features.Module, 0, len(m.Disabled))
	for _, name := range m.Disabled {
		module, err := parseModule(name)
		if err != nil {
			return nil, err
		}
		disabled = append(disabled, module)
	}

	overrides := make(map[uuid.UUID]map[features.Module]bool, len(m.Firms))
	for rawID, modules := range m.Firms {
		firmID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("config: modules.firms: invalid firm id %q", rawID)
		}
		overrides[firmID] = make(map[features.Module]bool, len(modules))
		for name, on := range modules {
			module, err := parseModule(name)
			if err != nil {
				return nil, err
			}
			overrides[firmID][module] = on
		}
	}
	return features.NewSnapshot(disabled, overrides), nil
}

func parseModule(name string) (features.Module, error) {
	switch m := features.Module(name); m {
	case features.ModuleContracts, features.ModuleTransfers:
		return m, nil
	}
	return "", fmt.Errorf("config: unknown module %q", name)
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
