package escrow

import (
	"fmt"

	"staychain/crypto"
)

// PaymentEscrowSeed is the seed domain of escrow addresses.
const PaymentEscrowSeed = "PAYMENT_ESCROW_SEED"

// Status represents the lifecycle states of a payment escrow. Refunded and
// Disputed are reserved: no instruction transitions into them yet, but every
// switch over Status names them so adding those transitions is a compile-time
// exercise.
type Status uint8

const (
	StatusFunded Status = iota + 1
	StatusReleased
	StatusRefunded
	StatusDisputed
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusFunded, StatusReleased, StatusRefunded, StatusDisputed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	switch s {
	case StatusReleased, StatusRefunded:
		return true
	case StatusFunded, StatusDisputed:
		return false
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusFunded:
		return "funded"
	case StatusReleased:
		return "released"
	case StatusRefunded:
		return "refunded"
	case StatusDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Escrow custodies a guest's reservation payment until release. Everything
// except Status is fixed when the escrow is funded.
type Escrow struct {
	Address     [20]byte
	Reservation [20]byte
	EscrowID    uint64
	Guest       [20]byte
	Host        [20]byte
	Mint        [20]byte
	Amount      uint64
	PlatformFee uint64
	Status      Status
	CreatedAt   uint64
	ReleaseDate uint64
	Bump        uint8
}

// Clone returns a copy callers can mutate freely.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// EscrowAddress derives the address of the escrowID-th escrow of reservation.
func EscrowAddress(reservation [20]byte, escrowID uint64) ([20]byte, uint8, error) {
	return crypto.DeriveAddress([]byte(PaymentEscrowSeed), reservation[:], crypto.Uint64Seed(escrowID))
}
