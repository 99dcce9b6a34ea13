package common

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrRecordExists is returned by create-if-absent writes when the
	// address is already occupied.
	ErrRecordExists = errors.New("record already exists")
	// ErrRecordNotFound is returned when a required record is missing.
	ErrRecordNotFound = errors.New("record not found")
	// ErrFieldTooLong is returned when a string exceeds its declared maximum.
	ErrFieldTooLong = errors.New("field exceeds maximum length")
	// ErrInvalidUTF8 is returned for strings that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("field is not valid utf-8")
)

// NormalizeField returns value in Unicode NFC and checks that its byte length
// does not exceed max.
func NormalizeField(field, value string, max int) (string, error) {
	if !utf8.ValidString(value) {
		return "", fmt.Errorf("%s: %w", field, ErrInvalidUTF8)
	}
	normalized := norm.NFC.String(value)
	if len(normalized) > max {
		return "", fmt.Errorf("%s: %w (%d > %d bytes)", field, ErrFieldTooLong, len(normalized), max)
	}
	return normalized, nil
}
