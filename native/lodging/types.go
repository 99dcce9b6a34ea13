package lodging

import (
	"fmt"

	"staychain/crypto"
)

// Seed domains for lodging record addresses.
const (
	HostSeed        = "HOST_SEED"
	GuestSeed       = "GUEST_SEED"
	ListingSeed     = "LISTING_SEED"
	ReservationSeed = "RESERVATION_SEED"
)

// Declared maximum byte lengths of string fields.
const (
	MaxNameLength         = 32
	MaxEmailLength        = 64
	MaxImageLength        = 500
	MaxPasswordHashLength = 500
	MaxPhoneNumberLength  = 20
	MaxLanguageLength     = 10
	MaxTitleLength        = 64
	MaxDescriptionLength  = 300
	MaxCategoryLength     = 32
	MaxCountryCodeLength  = 4
)

type Host struct {
	Address        [20]byte
	Author         [20]byte
	Name           string
	Email          string
	Image          string
	HashedPassword string
	CreatedAt      uint64
	ListingCount   uint64
	Bump           uint8
}

type Guest struct {
	Address           [20]byte
	Author            [20]byte
	Name              string
	Email             string
	ImageURL          string
	HashedPassword    string
	CreatedAt         uint64
	PhoneNumber       string
	DateOfBirth       uint64
	PreferredLanguage string
	Bump              uint8
}

type Listing struct {
	Address       [20]byte
	Host          [20]byte
	Title         string
	Description   string
	ImageURL      string
	CreatedAt     uint64
	Category      string
	RoomCount     uint8
	BathroomCount uint8
	GuestCount    uint8
	CountryCode   string
	TotalBookings uint64
	IsActive      bool
	Price         uint64
	Bump          uint8
}

// ReservationStatus is the booking state of a reservation.
type ReservationStatus uint8

const (
	ReservationPending ReservationStatus = iota
	ReservationConfirmed
	ReservationCancelled
	ReservationCompleted
)

func (s ReservationStatus) String() string {
	switch s {
	case ReservationPending:
		return "pending"
	case ReservationConfirmed:
		return "confirmed"
	case ReservationCancelled:
		return "cancelled"
	case ReservationCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// PaymentStatus tracks settlement of a reservation's payment.
type PaymentStatus uint8

const (
	PaymentPending PaymentStatus = iota
	PaymentPaid
	PaymentRefunded
	PaymentFailed
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentPending:
		return "pending"
	case PaymentPaid:
		return "paid"
	case PaymentRefunded:
		return "refunded"
	case PaymentFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Reservation is a guest's booking of a listing. PaymentEscrow, TokenAmount
// and PlatformFee mirror the escrow that funds it; a zero PaymentEscrow means
// none has been funded.
type Reservation struct {
	Address       [20]byte
	ReservationID uint64
	Guest         [20]byte
	Listing       [20]byte
	Host          [20]byte
	StartDate     uint64
	EndDate       uint64
	GuestCount    uint8
	TotalNights   uint16
	PricePerNight uint64
	TotalPrice    uint64
	Status        ReservationStatus
	CreatedAt     uint64
	PaymentStatus PaymentStatus
	PaymentEscrow [20]byte
	TokenAmount   uint64
	PlatformFee   uint64
	Bump          uint8
}

// HasEscrow reports whether an escrow has been linked to the reservation.
func (r *Reservation) HasEscrow() bool {
	return r != nil && r.PaymentEscrow != [20]byte{}
}

func HostAddress(author [20]byte) ([20]byte, uint8, error) {
	return crypto.DeriveAddress([]byte(HostSeed), author[:])
}

func GuestAddress(author [20]byte) ([20]byte, uint8, error) {
	return crypto.DeriveAddress([]byte(GuestSeed), author[:])
}

// ListingAddress derives the address of the index-th listing created by
// author.
func ListingAddress(author [20]byte, index uint64) ([20]byte, uint8, error) {
	return crypto.DeriveAddress([]byte(ListingSeed), author[:], crypto.Uint64Seed(index))
}

func ReservationAddress(guest [20]byte, reservationID uint64) ([20]byte, uint8, error) {
	return crypto.DeriveAddress([]byte(ReservationSeed), guest[:], crypto.Uint64Seed(reservationID))
}
