package config

import (
	"os"
	"path/filepath"
	"strings"

	"staychain/crypto"

	"github.com/BurntSushi/toml"
)

// Storage backends accepted by StorageBackend.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendMemory  = "memory"
)

type Config struct {
	RPCAddress     string `toml:"RPCAddress"`
	DataDir        string `toml:"DataDir"`
	ChainID        uint64 `toml:"ChainID"`
	StorageBackend string `toml:"StorageBackend"`
	EventLogPath   string `toml:"EventLogPath"`

	// The platform authority releases escrows and owns the payment mint.
	AuthorityKeystorePath  string   `toml:"AuthorityKeystorePath"`
	AuthorityPassphraseEnv string   `toml:"AuthorityPassphraseEnv"`
	PausedModules          []string `toml:"PausedModules"`

	Payment   Payment   `toml:"payment"`
	RPC       RPC       `toml:"rpc"`
	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
}

// Option customises Load.
type Option func(*loadOptions)

type loadOptions struct {
	passphrase func() (string, error)
}

// WithKeystorePassphraseSource supplies the passphrase used when a fresh
// authority keystore has to be written. Without it the passphrase comes from
// AuthorityPassphraseEnv.
func WithKeystorePassphraseSource(fn func() (string, error)) Option {
	return func(o *loadOptions) { o.passphrase = fn }
}

// Load loads the configuration from the given path, writing a default file
// and authority keystore when the path does not exist.
func Load(path string, opts ...Option) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, o)
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := ensureKeystore(path, cfg, o); err != nil {
		return nil, err
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration of a local single-node deployment.
func Default() *Config {
	return &Config{
		RPCAddress:             "127.0.0.1:8545",
		DataDir:                "./stay-data",
		ChainID:                187,
		StorageBackend:         BackendLevelDB,
		AuthorityPassphraseEnv: "STAY_AUTHORITY_PASSPHRASE",
		PausedModules:          []string{},
		Payment: Payment{
			Symbol:         "USDS",
			TransferFeeBps: 500,
			MaxTransferFee: 1_000_000,
			InitialSupply:  1_000_000_000_000_000,
		},
		RPC: RPC{
			JWTSecretEnv:       "STAY_RPC_JWT_SECRET",
			JWTIssuer:          "staychain",
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			MaxBodyBytes:       1 << 20,
			ReadHeaderTimeout:  5,
			ReadTimeout:        15,
			WriteTimeout:       15,
			IdleTimeout:        60,
		},
		Logging: Logging{Level: "info", Env: "local", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 28},
	}
}

// EventLogFile resolves the event log location, defaulting into DataDir.
func (c *Config) EventLogFile() string {
	if p := strings.TrimSpace(c.EventLogPath); p != "" {
		return p
	}
	return filepath.Join(c.DataDir, "events.db")
}

// ResolveJWTSecret returns the RPC signing secret, preferring the environment.
func (c *Config) ResolveJWTSecret() string {
	if env := strings.TrimSpace(c.RPC.JWTSecretEnv); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return c.RPC.JWTSecret
}

// AuthorityPassphrase returns the keystore passphrase from the environment,
// or "" when unset.
func (c *Config) AuthorityPassphrase() string {
	if env := strings.TrimSpace(c.AuthorityPassphraseEnv); env != "" {
		return os.Getenv(env)
	}
	return ""
}

func (o loadOptions) resolvePassphrase(cfg *Config) (string, error) {
	if o.passphrase != nil {
		return o.passphrase()
	}
	return cfg.AuthorityPassphrase(), nil
}

func ensureKeystore(configPath string, cfg *Config, o loadOptions) error {
	keystorePath := cfg.AuthorityKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		passphrase, err := o.resolvePassphrase(cfg)
		if err != nil {
			return err
		}
		if err := crypto.SaveToKeystore(keystorePath, key, passphrase); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.AuthorityKeystorePath != keystorePath {
		cfg.AuthorityKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string, o loadOptions) (*Config, error) {
	cfg := Default()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	passphrase, err := o.resolvePassphrase(cfg)
	if err != nil {
		return nil, err
	}
	cfg.AuthorityKeystorePath = defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(cfg.AuthorityKeystorePath, key, passphrase); err != nil {
		return nil, err
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "authority.keystore")
}
