package state

import (
	"errors"
	"strings"
	"testing"

	"staychain/native/common"
	"staychain/native/escrow"
	"staychain/native/lodging"
	"staychain/storage"
)

func TestEscrowCreateIsExclusive(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	addr, bump, err := escrow.EscrowAddress([20]byte{1}, 7)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	rec := &escrow.Escrow{Address: addr, EscrowID: 7, Amount: 1_000_000, PlatformFee: 50_000, Status: escrow.StatusFunded, Bump: bump}
	if err := mgr.EscrowCreate(rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := mgr.EscrowCreate(rec); !errors.Is(err, common.ErrRecordExists) {
		t.Fatalf("expected ErrRecordExists, got %v", err)
	}
	got, ok, err := mgr.EscrowGet(addr)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if *got != *rec {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, rec)
	}

	got.Status = escrow.StatusReleased
	if err := mgr.EscrowPut(got); err != nil {
		t.Fatalf("put: %v", err)
	}
	again, _, _ := mgr.EscrowGet(addr)
	if again.Status != escrow.StatusReleased {
		t.Fatalf("status not persisted")
	}
}

func TestGetMissingRecord(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	rec, ok, err := mgr.ReservationGet([20]byte{9})
	if err != nil || ok || rec != nil {
		t.Fatalf("expected missing record, got %v %v %v", rec, ok, err)
	}
}

func TestRecordSizeIsBounded(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	host := &lodging.Host{
		Address:        [20]byte{1},
		Name:           strings.Repeat("n", lodging.MaxNameLength),
		Email:          strings.Repeat("e", lodging.MaxEmailLength),
		Image:          strings.Repeat("i", lodging.MaxImageLength),
		HashedPassword: strings.Repeat("p", lodging.MaxPasswordHashLength),
		CreatedAt:      ^uint64(0),
		ListingCount:   ^uint64(0),
		Bump:           255,
	}
	if err := mgr.HostCreate(host); err != nil {
		t.Fatalf("max-length host must fit: %v", err)
	}
	host.Address = [20]byte{2}
	host.Image = strings.Repeat("i", 2*MaxHostSize)
	if err := mgr.HostCreate(host); !errors.Is(err, ErrRecordTooLarge) {
		t.Fatalf("expected ErrRecordTooLarge, got %v", err)
	}
}

func TestMaxLengthRecordsFit(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	guest := &lodging.Guest{
		Address:           [20]byte{1},
		Name:              strings.Repeat("n", lodging.MaxNameLength),
		Email:             strings.Repeat("e", lodging.MaxEmailLength),
		ImageURL:          strings.Repeat("i", lodging.MaxImageLength),
		HashedPassword:    strings.Repeat("p", lodging.MaxPasswordHashLength),
		PhoneNumber:       strings.Repeat("1", lodging.MaxPhoneNumberLength),
		PreferredLanguage: strings.Repeat("l", lodging.MaxLanguageLength),
		CreatedAt:         ^uint64(0),
		DateOfBirth:       ^uint64(0),
		Bump:              255,
	}
	if err := mgr.GuestCreate(guest); err != nil {
		t.Fatalf("guest: %v", err)
	}
	listing := &lodging.Listing{
		Address:       [20]byte{2},
		Title:         strings.Repeat("t", lodging.MaxTitleLength),
		Description:   strings.Repeat("d", lodging.MaxDescriptionLength),
		ImageURL:      strings.Repeat("i", lodging.MaxImageLength),
		Category:      strings.Repeat("c", lodging.MaxCategoryLength),
		CountryCode:   strings.Repeat("c", lodging.MaxCountryCodeLength),
		CreatedAt:     ^uint64(0),
		TotalBookings: ^uint64(0),
		Price:         ^uint64(0),
		RoomCount:     255,
		IsActive:      true,
		Bump:          255,
	}
	if err := mgr.ListingCreate(listing); err != nil {
		t.Fatalf("listing: %v", err)
	}
	res := &lodging.Reservation{
		Address: [20]byte{3}, ReservationID: ^uint64(0), TotalNights: ^uint16(0),
		StartDate: ^uint64(0), EndDate: ^uint64(0), PricePerNight: ^uint64(0), TotalPrice: ^uint64(0),
		CreatedAt: ^uint64(0), PaymentEscrow: [20]byte{4}, TokenAmount: ^uint64(0), PlatformFee: ^uint64(0),
		Status: lodging.ReservationCompleted, PaymentStatus: lodging.PaymentFailed, Bump: 255,
	}
	if err := mgr.ReservationCreate(res); err != nil {
		t.Fatalf("reservation: %v", err)
	}
}

func TestNonceDefaultsToZero(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	n, err := mgr.Nonce([20]byte{1})
	if err != nil || n != 0 {
		t.Fatalf("nonce = %d, %v", n, err)
	}
	if err := mgr.SetNonce([20]byte{1}, 5); err != nil {
		t.Fatalf("set nonce: %v", err)
	}
	if n, _ := mgr.Nonce([20]byte{1}); n != 5 {
		t.Fatalf("nonce = %d", n)
	}
}

func TestKVRoundTrip(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	if err := mgr.KVPut([]byte("genesis"), []byte("done")); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out []byte
	ok, err := mgr.KVGet([]byte("genesis"), &out)
	if err != nil || !ok || string(out) != "done" {
		t.Fatalf("kv get: %q %v %v", out, ok, err)
	}
	if _, err := mgr.KVGet(nil, &out); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestWritesThroughOverlayAreDiscardable(t *testing.T) {
	base := storage.NewMemDB()
	ov := storage.NewOverlay(base)
	mgr := NewManager(ov)
	if err := mgr.SetNonce([20]byte{1}, 3); err != nil {
		t.Fatalf("set nonce: %v", err)
	}
	ov.Discard()
	if n, _ := NewManager(base).Nonce([20]byte{1}); n != 0 {
		t.Fatalf("discarded write leaked: %d", n)
	}
}
