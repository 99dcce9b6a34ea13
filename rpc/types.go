package rpc

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"staychain/core"
	"staychain/core/types"
	"staychain/crypto"
	"staychain/native/escrow"
	"staychain/native/lodging"
	"staychain/native/token"
)

// Amounts are rendered as decimal strings so JavaScript clients keep full
// uint64 precision.

type EscrowJSON struct {
	Address     string `json:"address"`
	Reservation string `json:"reservation"`
	EscrowID    string `json:"escrowId"`
	Guest       string `json:"guest"`
	Host        string `json:"host"`
	Mint        string `json:"mint"`
	Amount      string `json:"amount"`
	PlatformFee string `json:"platformFee"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"createdAt"`
	ReleaseDate int64  `json:"releaseDate"`
	Bump        uint8  `json:"bump"`
}

type ReservationJSON struct {
	Address       string `json:"address"`
	ReservationID string `json:"reservationId"`
	Guest         string `json:"guest"`
	Listing       string `json:"listing"`
	Host          string `json:"host"`
	StartDate     int64  `json:"startDate"`
	EndDate       int64  `json:"endDate"`
	GuestCount    uint8  `json:"guestCount"`
	TotalNights   uint16 `json:"totalNights"`
	PricePerNight string `json:"pricePerNight"`
	TotalPrice    string `json:"totalPrice"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	PaymentEscrow string `json:"paymentEscrow,omitempty"`
	TokenAmount   string `json:"tokenAmount"`
	PlatformFee   string `json:"platformFee"`
	CreatedAt     int64  `json:"createdAt"`
}

// HostJSON omits the stored password hash; contact data is returned as is.
type HostJSON struct {
	Address      string `json:"address"`
	Author       string `json:"author"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Image        string `json:"image"`
	CreatedAt    int64  `json:"createdAt"`
	ListingCount uint64 `json:"listingCount"`
}

type GuestJSON struct {
	Address           string `json:"address"`
	Author            string `json:"author"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	ImageURL          string `json:"imageUrl"`
	PhoneNumber       string `json:"phoneNumber"`
	DateOfBirth       int64  `json:"dateOfBirth"`
	PreferredLanguage string `json:"preferredLanguage"`
	CreatedAt         int64  `json:"createdAt"`
}

type ListingJSON struct {
	Address       string `json:"address"`
	Host          string `json:"host"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	ImageURL      string `json:"imageUrl"`
	Category      string `json:"category"`
	RoomCount     uint8  `json:"roomCount"`
	BathroomCount uint8  `json:"bathroomCount"`
	GuestCount    uint8  `json:"guestCount"`
	CountryCode   string `json:"countryCode"`
	Price         string `json:"price"`
	TotalBookings uint64 `json:"totalBookings"`
	IsActive      bool   `json:"isActive"`
	CreatedAt     int64  `json:"createdAt"`
}

type TokenAccountJSON struct {
	Address  string `json:"address"`
	Owner    string `json:"owner"`
	Mint     string `json:"mint"`
	Amount   string `json:"amount"`
	Withheld string `json:"withheld"`
}

type MintJSON struct {
	Address        string `json:"address"`
	Authority      string `json:"authority"`
	Symbol         string `json:"symbol"`
	Decimals       uint8  `json:"decimals"`
	Supply         string `json:"supply"`
	TransferFeeBps uint16 `json:"transferFeeBps"`
	MaxTransferFee string `json:"maxTransferFee"`
}

type QuoteJSON struct {
	Amount         string `json:"amount"`
	PlatformFee    string `json:"platformFee"`
	HostNet        string `json:"hostNet"`
	TransferAmount string `json:"transferAmount"`
}

type EventJSON struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// ReceiptJSON reflects a committed transaction.
type ReceiptJSON struct {
	TxHash string      `json:"txHash"`
	Type   string      `json:"type"`
	Sender string      `json:"sender"`
	Nonce  uint64      `json:"nonce"`
	Events []EventJSON `json:"events"`
}

type PaymentAssetJSON struct {
	Mint     string `json:"mint"`
	Treasury string `json:"treasury"`
}

func formatAddress(addr [20]byte) string { return crypto.FromRaw(addr).String() }

func formatUint(v uint64) string { return strconv.FormatUint(v, 10) }

// parseAddress accepts a bech32 stay address or 20 hex bytes with an optional
// 0x prefix.
func parseAddress(raw string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return out, fmt.Errorf("address required")
	}
	if strings.HasPrefix(trimmed, string(crypto.StayPrefix)+"1") {
		addr, err := crypto.DecodeAddress(trimmed)
		if err != nil {
			return out, err
		}
		return addr.Raw(), nil
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(trimmed, "0x"))
	if err != nil {
		return out, fmt.Errorf("invalid address %q: %w", raw, err)
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("invalid address %q: expected %d bytes", raw, len(out))
	}
	copy(out[:], decoded)
	return out, nil
}

func parseAmount(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("amount required")
	}
	v, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return v, nil
}

func formatEscrow(esc *escrow.Escrow) EscrowJSON {
	return EscrowJSON{
		Address:     formatAddress(esc.Address),
		Reservation: formatAddress(esc.Reservation),
		EscrowID:    formatUint(esc.EscrowID),
		Guest:       formatAddress(esc.Guest),
		Host:        formatAddress(esc.Host),
		Mint:        formatAddress(esc.Mint),
		Amount:      formatUint(esc.Amount),
		PlatformFee: formatUint(esc.PlatformFee),
		Status:      esc.Status.String(),
		CreatedAt:   int64(esc.CreatedAt),
		ReleaseDate: int64(esc.ReleaseDate),
		Bump:        esc.Bump,
	}
}

func formatReservation(r *lodging.Reservation) ReservationJSON {
	out := ReservationJSON{
		Address:       formatAddress(r.Address),
		ReservationID: formatUint(r.ReservationID),
		Guest:         formatAddress(r.Guest),
		Listing:       formatAddress(r.Listing),
		Host:          formatAddress(r.Host),
		StartDate:     int64(r.StartDate),
		EndDate:       int64(r.EndDate),
		GuestCount:    r.GuestCount,
		TotalNights:   r.TotalNights,
		PricePerNight: formatUint(r.PricePerNight),
		TotalPrice:    formatUint(r.TotalPrice),
		Status:        r.Status.String(),
		PaymentStatus: r.PaymentStatus.String(),
		TokenAmount:   formatUint(r.TokenAmount),
		PlatformFee:   formatUint(r.PlatformFee),
		CreatedAt:     int64(r.CreatedAt),
	}
	if r.HasEscrow() {
		out.PaymentEscrow = formatAddress(r.PaymentEscrow)
	}
	return out
}

func formatHost(h *lodging.Host) HostJSON {
	return HostJSON{
		Address:      formatAddress(h.Address),
		Author:       formatAddress(h.Author),
		Name:         h.Name,
		Email:        h.Email,
		Image:        h.Image,
		CreatedAt:    int64(h.CreatedAt),
		ListingCount: h.ListingCount,
	}
}

func formatGuest(g *lodging.Guest) GuestJSON {
	return GuestJSON{
		Address:           formatAddress(g.Address),
		Author:            formatAddress(g.Author),
		Name:              g.Name,
		Email:             g.Email,
		ImageURL:          g.ImageURL,
		PhoneNumber:       g.PhoneNumber,
		DateOfBirth:       int64(g.DateOfBirth),
		PreferredLanguage: g.PreferredLanguage,
		CreatedAt:         int64(g.CreatedAt),
	}
}

func formatListing(l *lodging.Listing) ListingJSON {
	return ListingJSON{
		Address:       formatAddress(l.Address),
		Host:          formatAddress(l.Host),
		Title:         l.Title,
		Description:   l.Description,
		ImageURL:      l.ImageURL,
		Category:      l.Category,
		RoomCount:     l.RoomCount,
		BathroomCount: l.BathroomCount,
		GuestCount:    l.GuestCount,
		CountryCode:   l.CountryCode,
		Price:         formatUint(l.Price),
		TotalBookings: l.TotalBookings,
		IsActive:      l.IsActive,
		CreatedAt:     int64(l.CreatedAt),
	}
}

func formatTokenAccount(a *token.Account) TokenAccountJSON {
	return TokenAccountJSON{
		Address:  formatAddress(a.Address),
		Owner:    formatAddress(a.Owner),
		Mint:     formatAddress(a.Mint),
		Amount:   formatUint(a.Amount),
		Withheld: formatUint(a.Withheld),
	}
}

func formatMint(m *token.Mint) MintJSON {
	return MintJSON{
		Address:        formatAddress(m.Address),
		Authority:      formatAddress(m.Authority),
		Symbol:         m.Symbol,
		Decimals:       m.Decimals,
		Supply:         formatUint(m.Supply),
		TransferFeeBps: m.TransferFeeBps,
		MaxTransferFee: formatUint(m.MaxTransferFee),
	}
}

func formatReceipt(r *core.Receipt) ReceiptJSON {
	evts := make([]EventJSON, 0, len(r.Events))
	for _, evt := range r.Events {
		evts = append(evts, formatEvent(evt))
	}
	return ReceiptJSON{
		TxHash: "0x" + hex.EncodeToString(r.TxHash),
		Type:   r.Type.String(),
		Sender: formatAddress(r.Sender),
		Nonce:  r.Nonce,
		Events: evts,
	}
}

func formatEvent(evt types.Event) EventJSON {
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	return EventJSON{Type: evt.Type, Attributes: attrs}
}
