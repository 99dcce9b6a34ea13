package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers accepted by DatabaseConfig.Driver.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration of the release keeper.
type Config struct {
	RPCURL                 string         `yaml:"rpc_url"`
	ChainID                uint64         `yaml:"chain_id"`
	AuthorityKeystore      string         `yaml:"authority_keystore"`
	AuthorityPassphraseEnv string         `yaml:"authority_passphrase_env"`
	JWTSecretEnv           string         `yaml:"jwt_secret_env"`
	JWTIssuer              string         `yaml:"jwt_issuer"`
	PollInterval           Duration       `yaml:"poll_interval"`
	MaxBackoff             Duration       `yaml:"max_backoff"`
	BatchSize              int            `yaml:"batch_size"`
	MetricsListen          string         `yaml:"metrics_listen"`
	Database               DatabaseConfig `yaml:"database"`
	Logging                LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig selects the GORM dialector.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// DSNEnv names an environment variable that overrides DSN.
	DSNEnv string `yaml:"dsn_env"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Env   string `yaml:"env"`
	File  string `yaml:"file"`
}

// Load reads configuration from path and applies defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RPCURL == "" {
		cfg.RPCURL = "http://127.0.0.1:8545"
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = 187
	}
	if cfg.AuthorityPassphraseEnv == "" {
		cfg.AuthorityPassphraseEnv = "STAY_AUTHORITY_PASSPHRASE"
	}
	if cfg.JWTSecretEnv == "" {
		cfg.JWTSecretEnv = "STAY_RPC_JWT_SECRET"
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "staychain"
	}
	if cfg.PollInterval.Duration <= 0 {
		cfg.PollInterval.Duration = 15 * time.Second
	}
	if cfg.MaxBackoff.Duration <= 0 {
		cfg.MaxBackoff.Duration = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MetricsListen == "" {
		cfg.MetricsListen = ":9102"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == DriverSQLite {
		cfg.Database.DSN = "releasekeeper.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks the configuration for obvious mistakes.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AuthorityKeystore) == "" {
		return fmt.Errorf("authority_keystore is required")
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q", DriverSQLite, DriverPostgres)
	}
	if strings.TrimSpace(c.DatabaseDSN()) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.BatchSize > 1000 {
		return fmt.Errorf("batch_size must be <= 1000")
	}
	return nil
}

// DatabaseDSN resolves the DSN, preferring DSNEnv.
func (c Config) DatabaseDSN() string {
	if env := strings.TrimSpace(c.Database.DSNEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return c.Database.DSN
}

// JWTSecret returns the node's RPC signing secret, or "".
func (c Config) JWTSecret() string {
	return strings.TrimSpace(os.Getenv(c.JWTSecretEnv))
}
