// Package lodging maintains the marketplace records the escrow engine reads:
// hosts, guests, their listings and reservations. Every record lives at a
// deterministic address and is created exactly once.
package lodging

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"staychain/core/events"
	"staychain/core/types"
	"staychain/native/common"
)

var (
	errNilState = errors.New("lodging engine: state not configured")

	ErrHostExists          = errors.New("lodging: host already registered")
	ErrGuestExists         = errors.New("lodging: guest already registered")
	ErrListingExists       = errors.New("lodging: listing already exists")
	ErrReservationExists   = errors.New("lodging: reservation already exists")
	ErrHostNotFound        = errors.New("lodging: host not registered")
	ErrGuestNotFound       = errors.New("lodging: guest not registered")
	ErrListingNotFound     = errors.New("lodging: listing not found")
	ErrReservationNotFound = errors.New("lodging: reservation not found")
	ErrListingInactive     = errors.New("lodging: listing is not active")
	ErrInvalidDates        = errors.New("lodging: end date must be after start date")
	ErrTooManyGuests       = errors.New("lodging: guest count exceeds listing capacity")
)

const (
	EventTypeHostRegistered     = "lodging.host_registered"
	EventTypeGuestRegistered    = "lodging.guest_registered"
	EventTypeListingCreated     = "lodging.listing_created"
	EventTypeReservationCreated = "lodging.reservation_created"
)

type engineState interface {
	HostGet(addr [20]byte) (*Host, bool, error)
	HostCreate(*Host) error
	HostPut(*Host) error
	GuestGet(addr [20]byte) (*Guest, bool, error)
	GuestCreate(*Guest) error
	ListingGet(addr [20]byte) (*Listing, bool, error)
	ListingCreate(*Listing) error
	ListingPut(*Listing) error
	ReservationGet(addr [20]byte) (*Reservation, bool, error)
	ReservationCreate(*Reservation) error
}

type lodgingEvent struct{ evt *types.Event }

func (e lodgingEvent) EventType() string   { return e.evt.Type }
func (e lodgingEvent) Event() *types.Event { return e.evt }

// Engine applies lodging instructions.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) emit(eventType string, attrs map[string]string) {
	if e.emitter == nil {
		return
	}
	e.emitter.Emit(lodgingEvent{evt: &types.Event{Type: eventType, Attributes: attrs}})
}

// InitializeHost registers author as a host.
func (e *Engine) InitializeHost(author [20]byte, p types.InitializeHostPayload) (*Host, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var err error
	host := &Host{Author: author, CreatedAt: e.now()}
	if host.Name, err = common.NormalizeField("name", p.Name, MaxNameLength); err != nil {
		return nil, err
	}
	if host.Email, err = common.NormalizeField("email", p.Email, MaxEmailLength); err != nil {
		return nil, err
	}
	if host.Image, err = common.NormalizeField("image", p.Image, MaxImageLength); err != nil {
		return nil, err
	}
	if host.HashedPassword, err = common.NormalizeField("hashed_password", p.HashedPassword, MaxPasswordHashLength); err != nil {
		return nil, err
	}
	if host.Address, host.Bump, err = HostAddress(author); err != nil {
		return nil, err
	}
	if err := e.state.HostCreate(host); err != nil {
		if errors.Is(err, common.ErrRecordExists) {
			return nil, ErrHostExists
		}
		return nil, err
	}
	e.emit(EventTypeHostRegistered, map[string]string{
		"host":   hex.EncodeToString(host.Address[:]),
		"author": hex.EncodeToString(author[:]),
	})
	return host, nil
}

// InitializeGuest registers author as a guest.
func (e *Engine) InitializeGuest(author [20]byte, p types.InitializeGuestPayload) (*Guest, error) {
	if e.state == nil {
		return nil, errNilState
	}
	var err error
	guest := &Guest{Author: author, CreatedAt: e.now(), DateOfBirth: p.DateOfBirth}
	fields := []struct {
		name string
		in   string
		max  int
		out  *string
	}{
		{"name", p.Name, MaxNameLength, &guest.Name},
		{"email", p.Email, MaxEmailLength, &guest.Email},
		{"image_url", p.ImageURL, MaxImageLength, &guest.ImageURL},
		{"hashed_password", p.HashedPassword, MaxPasswordHashLength, &guest.HashedPassword},
		{"phone_number", p.PhoneNumber, MaxPhoneNumberLength, &guest.PhoneNumber},
		{"preferred_language", p.PreferredLanguage, MaxLanguageLength, &guest.PreferredLanguage},
	}
	for _, f := range fields {
		if *f.out, err = common.NormalizeField(f.name, f.in, f.max); err != nil {
			return nil, err
		}
	}
	if guest.Address, guest.Bump, err = GuestAddress(author); err != nil {
		return nil, err
	}
	if err := e.state.GuestCreate(guest); err != nil {
		if errors.Is(err, common.ErrRecordExists) {
			return nil, ErrGuestExists
		}
		return nil, err
	}
	e.emit(EventTypeGuestRegistered, map[string]string{
		"guest":  hex.EncodeToString(guest.Address[:]),
		"author": hex.EncodeToString(author[:]),
	})
	return guest, nil
}

// InitializeListing creates the next listing for the host registered by
// author and bumps the host's listing counter.
func (e *Engine) InitializeListing(author [20]byte, p types.InitializeListingPayload) (*Listing, error) {
	if e.state == nil {
		return nil, errNilState
	}
	hostAddr, _, err := HostAddress(author)
	if err != nil {
		return nil, err
	}
	host, ok, err := e.state.HostGet(hostAddr)
	if err != nil {
		return nil, err
	}
	if !ok || host.Author != author {
		return nil, ErrHostNotFound
	}

	listing := &Listing{
		Host:          host.Address,
		CreatedAt:     e.now(),
		RoomCount:     p.RoomCount,
		BathroomCount: p.BathroomCount,
		GuestCount:    p.GuestCount,
		IsActive:      true,
		Price:         p.Price,
	}
	fields := []struct {
		name string
		in   string
		max  int
		out  *string
	}{
		{"title", p.Title, MaxTitleLength, &listing.Title},
		{"description", p.Description, MaxDescriptionLength, &listing.Description},
		{"image_url", p.ImageURL, MaxImageLength, &listing.ImageURL},
		{"category", p.Category, MaxCategoryLength, &listing.Category},
		{"country_code", p.CountryCode, MaxCountryCodeLength, &listing.CountryCode},
	}
	for _, f := range fields {
		if *f.out, err = common.NormalizeField(f.name, f.in, f.max); err != nil {
			return nil, err
		}
	}
	if listing.Address, listing.Bump, err = ListingAddress(author, host.ListingCount); err != nil {
		return nil, err
	}
	if err := e.state.ListingCreate(listing); err != nil {
		if errors.Is(err, common.ErrRecordExists) {
			return nil, ErrListingExists
		}
		return nil, err
	}
	host.ListingCount++
	if err := e.state.HostPut(host); err != nil {
		return nil, err
	}
	e.emit(EventTypeListingCreated, map[string]string{
		"listing": hex.EncodeToString(listing.Address[:]),
		"host":    hex.EncodeToString(host.Address[:]),
		"index":   strconv.FormatUint(host.ListingCount-1, 10),
	})
	return listing, nil
}

// InitializeReservation books p.Listing for the guest registered by author.
// The reservation's Host is the listing host's author identity, which is the
// account escrow payouts are sent to.
func (e *Engine) InitializeReservation(author [20]byte, p types.InitializeReservationPayload) (*Reservation, error) {
	if e.state == nil {
		return nil, errNilState
	}
	guestAddr, _, err := GuestAddress(author)
	if err != nil {
		return nil, err
	}
	if _, ok, err := e.state.GuestGet(guestAddr); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrGuestNotFound
	}
	listing, ok, err := e.state.ListingGet(p.Listing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	if !listing.IsActive {
		return nil, ErrListingInactive
	}
	if p.EndDate <= p.StartDate {
		return nil, ErrInvalidDates
	}
	if listing.GuestCount > 0 && p.GuestCount > listing.GuestCount {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyGuests, p.GuestCount, listing.GuestCount)
	}
	host, ok, err := e.state.HostGet(listing.Host)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHostNotFound
	}

	res := &Reservation{
		ReservationID: p.ReservationID,
		Guest:         author,
		Listing:       listing.Address,
		Host:          host.Author,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		GuestCount:    p.GuestCount,
		TotalNights:   p.TotalNights,
		PricePerNight: p.PricePerNight,
		TotalPrice:    p.TotalPrice,
		Status:        ReservationPending,
		CreatedAt:     e.now(),
		PaymentStatus: PaymentPending,
	}
	if res.Address, res.Bump, err = ReservationAddress(author, p.ReservationID); err != nil {
		return nil, err
	}
	if err := e.state.ReservationCreate(res); err != nil {
		if errors.Is(err, common.ErrRecordExists) {
			return nil, ErrReservationExists
		}
		return nil, err
	}
	listing.TotalBookings++
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(EventTypeReservationCreated, map[string]string{
		"reservation": hex.EncodeToString(res.Address[:]),
		"guest":       hex.EncodeToString(author[:]),
		"host":        hex.EncodeToString(res.Host[:]),
		"listing":     hex.EncodeToString(listing.Address[:]),
		"totalPrice":  strconv.FormatUint(res.TotalPrice, 10),
	})
	return res, nil
}
