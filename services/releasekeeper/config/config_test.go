package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keeper.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "authority_keystore: ./authority.keystore\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval.Duration != 15*time.Second || cfg.BatchSize != 100 {
		t.Fatalf("poll defaults = %v %d", cfg.PollInterval.Duration, cfg.BatchSize)
	}
	if cfg.MaxBackoff.Duration != time.Hour {
		t.Fatalf("max backoff default = %v", cfg.MaxBackoff.Duration)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.DSN != "releasekeeper.db" {
		t.Fatalf("database defaults = %+v", cfg.Database)
	}
	if cfg.ChainID != 187 || cfg.RPCURL != "http://127.0.0.1:8545" {
		t.Fatalf("rpc defaults = %d %s", cfg.ChainID, cfg.RPCURL)
	}
}

func TestLoadParsesSettings(t *testing.T) {
	path := writeConfig(t, `rpc_url: http://node:8545
chain_id: 42
authority_keystore: /keys/authority.keystore
poll_interval: 2m
max_backoff: 10m
batch_size: 25
database:
  driver: postgres
  dsn: postgres://keeper@db/keeper
  dsn_env: KEEPER_DSN
`)
	t.Setenv("KEEPER_DSN", "postgres://override@db/keeper")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChainID != 42 || cfg.PollInterval.Duration != 2*time.Minute || cfg.BatchSize != 25 || cfg.MaxBackoff.Duration != 10*time.Minute {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.DatabaseDSN() != "postgres://override@db/keeper" {
		t.Fatalf("dsn = %s", cfg.DatabaseDSN())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"missing keystore": "chain_id: 1\n",
		"bad driver":       "authority_keystore: k\ndatabase:\n  driver: mysql\n",
		"bad duration":     "authority_keystore: k\npoll_interval: soon\n",
		"unknown field":    "authority_keystore: k\nlisten: :80\n",
		"postgres no dsn":  "authority_keystore: k\ndatabase:\n  driver: postgres\n",
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
