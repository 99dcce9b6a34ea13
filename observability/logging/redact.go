package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces sensitive values in log output.
const RedactedValue = "[REDACTED]"

// Keys that never reach a log sink in clear text. Lodging records carry
// personal data and the CLI and keeper handle credentials.
var sensitiveKeys = map[string]struct{}{
	"email":          {},
	"hashedpassword": {},
	"password":       {},
	"passphrase":     {},
	"phonenumber":    {},
	"dateofbirth":    {},
	"authorization":  {},
	"token":          {},
	"jwt":            {},
	"secret":         {},
	"privatekey":     {},
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "").Replace(key)
}

// IsSensitive reports whether values logged under key are masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[normalizeKey(key)]
	return ok
}

// SensitiveKeys returns the sorted normalized keys that are always masked.
// Tests use this to ensure personal data stays out of logs.
func SensitiveKeys() []string {
	keys := make([]string, 0, len(sensitiveKeys))
	for key := range sensitiveKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue returns the redacted placeholder for non-empty values. Empty values
// are returned unchanged to avoid introducing noise in logs.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField returns an attribute whose value is always redacted, for call
// sites logging data under a key that is not in the sensitive set.
func MaskField(key, value string) slog.Attr {
	return slog.String(key, MaskValue(value))
}
