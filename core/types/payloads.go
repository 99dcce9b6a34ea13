package types

// InitializeHostPayload registers the signer as a host.
type InitializeHostPayload struct {
	Name           string
	Email          string
	Image          string
	HashedPassword string
}

// InitializeGuestPayload registers the signer as a guest.
type InitializeGuestPayload struct {
	Name              string
	Email             string
	ImageURL          string
	HashedPassword    string
	PhoneNumber       string
	DateOfBirth       uint64
	PreferredLanguage string
}

// InitializeListingPayload creates the next listing of the signer's host
// record.
type InitializeListingPayload struct {
	Title         string
	Description   string
	ImageURL      string
	Category      string
	RoomCount     uint8
	BathroomCount uint8
	GuestCount    uint8
	CountryCode   string
	Price         uint64
}

// InitializeReservationPayload books a listing for the signer's guest record.
type InitializeReservationPayload struct {
	Listing       [20]byte
	ReservationID uint64
	StartDate     uint64
	EndDate       uint64
	GuestCount    uint8
	TotalNights   uint16
	PricePerNight uint64
	TotalPrice    uint64
}

// FundEscrowPayload moves a guest payment into escrow for a reservation.
type FundEscrowPayload struct {
	Reservation [20]byte
	EscrowID    uint64
	Amount      uint64
	ReleaseDate uint64
	Mint        [20]byte
	Treasury    [20]byte
}

// ReleaseEscrowPayload pays out a funded escrow to its host.
type ReleaseEscrowPayload struct {
	Escrow   [20]byte
	Mint     [20]byte
	Treasury [20]byte
}

// InitializeMintPayload creates a fungible asset owned by the signer.
type InitializeMintPayload struct {
	Symbol         string
	Decimals       uint8
	TransferFeeBps uint16
	MaxTransferFee uint64
}

// CreateTokenAccountPayload opens the associated account of Owner for Mint.
type CreateTokenAccountPayload struct {
	Owner [20]byte
	Mint  [20]byte
}

// MintToPayload issues new supply into Owner's associated account.
type MintToPayload struct {
	Mint   [20]byte
	Owner  [20]byte
	Amount uint64
}

// TransferPayload moves value from the signer's associated account to the
// associated account of To.
type TransferPayload struct {
	Mint     [20]byte
	To       [20]byte
	Amount   uint64
	Decimals uint8
}
