package escrow

import (
	"errors"
	"fmt"
)

// Kind classifies escrow failures.
type Kind uint8

const (
	KindAuthorization Kind = iota + 1
	KindValidation
	KindState
	KindTiming
	KindArithmetic
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindTiming:
		return "timing"
	case KindArithmetic:
		return "arithmetic"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Error is a typed escrow failure. Sentinels below are compared with
// errors.Is; wrap them with fmt.Errorf("%w: ...") to add detail.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return "escrow: " + e.Message
}

var (
	ErrUnauthorizedGuest = &Error{Kind: KindAuthorization, Code: "UnauthorizedGuest",
		Message: "only the guest can create escrow for their reservation"}
	ErrUnauthorizedAuthority = &Error{Kind: KindAuthorization, Code: "UnauthorizedAuthority",
		Message: "only the platform authority can release escrow"}

	ErrInvalidMint = &Error{Kind: KindValidation, Code: "InvalidMint",
		Message: "invalid mint provided"}
	ErrInvalidTreasuryMint = &Error{Kind: KindValidation, Code: "InvalidTreasuryMint",
		Message: "platform treasury mint does not match payment mint"}
	ErrHostIsPlatformAuthority = &Error{Kind: KindValidation, Code: "HostIsPlatformAuthority",
		Message: "reservation host is the platform authority and cannot be paid from its own treasury"}

	ErrEscrowNotFunded = &Error{Kind: KindState, Code: "EscrowNotFunded",
		Message: "escrow is not in funded status"}
	ErrEscrowExists = &Error{Kind: KindState, Code: "EscrowExists",
		Message: "escrow already exists for this reservation and id"}
	ErrEscrowNotFound = &Error{Kind: KindState, Code: "EscrowNotFound",
		Message: "escrow not found"}
	ErrReservationNotFound = &Error{Kind: KindState, Code: "ReservationNotFound",
		Message: "reservation not found"}
	ErrReservationAlreadyEscrowed = &Error{Kind: KindState, Code: "ReservationAlreadyEscrowed",
		Message: "reservation already has a funded escrow"}

	ErrReleaseNotYetAllowed = &Error{Kind: KindTiming, Code: "ReleaseNotYetAllowed",
		Message: "release date has not been reached yet"}

	ErrArithmetic = &Error{Kind: KindArithmetic, Code: "Arithmetic",
		Message: "fee arithmetic failed"}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func wrap(sentinel *Error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %v", sentinel, cause)
}
