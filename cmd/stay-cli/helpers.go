package main

import (
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"staychain/crypto"
)

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	v, err := strconv.ParseUint(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

// parseAddressArg accepts a stay1 bech32 address or 20 hex bytes.
func parseAddressArg(flagName, raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, fmt.Errorf("--%s is required", flagName)
	}
	if strings.HasPrefix(trimmed, string(crypto.StayPrefix)+"1") {
		addr, err := crypto.DecodeAddress(trimmed)
		if err != nil {
			return out, fmt.Errorf("--%s: %w", flagName, err)
		}
		return addr.Raw(), nil
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(trimmed, "0x"))
	if err != nil || len(decoded) != len(out) {
		return out, fmt.Errorf("--%s must be a stay1 address or 20 hex bytes", flagName)
	}
	copy(out[:], decoded)
	return out, nil
}

// parseAmount parses a base-unit amount. "2e6" shorthand is accepted.
func parseAmount(flagName, raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("--%s is required", flagName)
	}
	mantissa, exponent, hasExp := strings.Cut(strings.ToLower(trimmed), "e")
	value, err := strconv.ParseUint(mantissa, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--%s must be a non-negative integer", flagName)
	}
	if !hasExp {
		return value, nil
	}
	exp, err := strconv.ParseUint(exponent, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("--%s has an invalid exponent", flagName)
	}
	for i := uint64(0); i < exp; i++ {
		if value > math.MaxUint64/10 {
			return 0, fmt.Errorf("--%s overflows uint64", flagName)
		}
		value *= 10
	}
	return value, nil
}

// parseTime accepts +duration relative to now, an RFC3339 timestamp, a
// YYYY-MM-DD date (UTC midnight) or unix seconds.
func parseTime(flagName, raw string, now time.Time) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("--%s is required", flagName)
	}
	if strings.HasPrefix(trimmed, "+") {
		d, err := time.ParseDuration(trimmed[1:])
		if err != nil {
			return 0, fmt.Errorf("--%s: %w", flagName, err)
		}
		return uint64(now.Add(d).Unix()), nil
	}
	if ts, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return toUnix(flagName, ts)
	}
	if ts, err := time.Parse("2006-01-02", trimmed); err == nil {
		return toUnix(flagName, ts)
	}
	v, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--%s must be +duration, RFC3339, YYYY-MM-DD or unix seconds", flagName)
	}
	return v, nil
}

func toUnix(flagName string, ts time.Time) (uint64, error) {
	if ts.Unix() < 0 {
		return 0, fmt.Errorf("--%s is before the unix epoch", flagName)
	}
	return uint64(ts.Unix()), nil
}
