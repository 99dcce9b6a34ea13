package crypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// MaxSeedLength bounds a single derivation seed.
const MaxSeedLength = 32

// MaxSeeds bounds the number of seeds accepted by DeriveAddress.
const MaxSeeds = 8

var derivationMarker = []byte("staychain/derived")

var (
	// ErrSeedTooLong is returned when a seed exceeds MaxSeedLength.
	ErrSeedTooLong = errors.New("derive: seed exceeds maximum length")
	// ErrTooManySeeds is returned when more than MaxSeeds seeds are supplied.
	ErrTooManySeeds = errors.New("derive: too many seeds")
	// ErrNoCanonicalBump is returned in the (practically unreachable) case
	// where every bump produces an address with the high bit set.
	ErrNoCanonicalBump = errors.New("derive: no canonical bump")
)

// DeriveAddress computes the deterministic address for seeds. Bumps are tried
// from 255 downwards and the first candidate whose leading byte has its high
// bit clear is returned together with that bump.
func DeriveAddress(seeds ...[]byte) ([AddressLength]byte, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return [AddressLength]byte{}, 0, err
	}
	for bump := 255; bump >= 0; bump-- {
		candidate := deriveWithBump(seeds, uint8(bump))
		if candidate[0]&0x80 == 0 {
			return candidate, uint8(bump), nil
		}
	}
	return [AddressLength]byte{}, 0, ErrNoCanonicalBump
}

// VerifyDerived reports whether addr is the address for seeds at bump.
func VerifyDerived(addr [AddressLength]byte, bump uint8, seeds ...[]byte) (bool, error) {
	if err := checkSeeds(seeds); err != nil {
		return false, err
	}
	return deriveWithBump(seeds, bump) == addr, nil
}

// Uint64Seed encodes v as the 8-byte little-endian seed used for sequence
// numbers and identifiers.
func Uint64Seed(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return ErrTooManySeeds
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return fmt.Errorf("%w: seed %d has %d bytes", ErrSeedTooLong, i, len(seed))
		}
	}
	return nil
}

func deriveWithBump(seeds [][]byte, bump uint8) [AddressLength]byte {
	parts := make([][]byte, 0, len(seeds)+2)
	parts = append(parts, seeds...)
	parts = append(parts, []byte{bump}, derivationMarker)
	hash := crypto.Keccak256(parts...)
	var out [AddressLength]byte
	copy(out[:], hash[len(hash)-AddressLength:])
	return out
}
