package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"staychain/config"
	"staychain/storage"
)

func TestOpenDatabaseBackends(t *testing.T) {
	for _, backend := range []string{config.BackendMemory, config.BackendBolt, config.BackendLevelDB} {
		t.Run(backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.DataDir = t.TempDir()
			cfg.StorageBackend = backend
			db, err := openDatabase(cfg)
			require.NoError(t, err)
			defer db.Close()

			require.NoError(t, db.Put([]byte("k"), []byte("v")))
			got, err := db.Get([]byte("k"))
			require.NoError(t, err)
			require.Equal(t, []byte("v"), got)
			_, err = db.Get([]byte("missing"))
			require.ErrorIs(t, err, storage.ErrNotFound)
		})
	}
}

func TestOpenDatabaseRejectsUnknownBackend(t *testing.T) {
	cfg := config.Default()
	cfg.StorageBackend = "cassandra"
	_, err := openDatabase(cfg)
	require.Error(t, err)
}

func TestServerConfigFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.RPC.JWTSecret = "from-file"
	t.Setenv(cfg.RPC.JWTSecretEnv, "from-env")

	sc := serverConfig(cfg)
	require.Equal(t, "from-env", sc.JWT.Secret)
	require.Equal(t, "staychain", sc.JWT.Issuer)
	require.Equal(t, float64(20), sc.RateLimit.PerSecond)
	require.Equal(t, 40, sc.RateLimit.Burst)
	require.Equal(t, int64(1<<20), sc.MaxBodyBytes)
	require.Equal(t, 15*time.Second, seconds(cfg.RPC.WriteTimeout))
}
