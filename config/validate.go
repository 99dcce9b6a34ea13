package config

import (
	"fmt"
	"strings"

	"staychain/native/common"
)

// MaxTransferFeeBps bounds Payment.TransferFeeBps.
const MaxTransferFeeBps = 10_000

var knownModules = map[string]struct{}{
	common.ModuleLodging: {},
	common.ModuleEscrow:  {},
	common.ModuleToken:   {},
}

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress required")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("config: ChainID must be non-zero")
	}
	switch c.StorageBackend {
	case BackendLevelDB, BackendBolt:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("config: DataDir required for %s storage", c.StorageBackend)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown StorageBackend %q", c.StorageBackend)
	}
	for _, m := range c.PausedModules {
		if _, ok := knownModules[m]; !ok {
			return fmt.Errorf("config: unknown paused module %q", m)
		}
	}
	if strings.TrimSpace(c.Payment.Symbol) == "" {
		return fmt.Errorf("payment: Symbol required")
	}
	if c.Payment.TransferFeeBps > MaxTransferFeeBps {
		return fmt.Errorf("payment: TransferFeeBps %d > %d", c.Payment.TransferFeeBps, MaxTransferFeeBps)
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.RateLimitPerSecond > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: RateLimitBurst required when RateLimitPerSecond is set")
	}
	if c.RPC.MaxBodyBytes < 0 {
		return fmt.Errorf("rpc: MaxBodyBytes must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio outside [0,1]")
	}
	return nil
}
