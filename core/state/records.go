package state

import (
	"staychain/native/escrow"
	"staychain/native/lodging"
	"staychain/native/token"
)

// --- lodging ---

func (m *Manager) HostGet(addr [20]byte) (*lodging.Host, bool, error) {
	var h lodging.Host
	ok, err := m.get(hostPrefix, addr, &h)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &h, true, nil
}

func (m *Manager) HostCreate(h *lodging.Host) error {
	return m.create(hostPrefix, h.Address, h, MaxHostSize)
}

func (m *Manager) HostPut(h *lodging.Host) error {
	return m.put(hostPrefix, h.Address, h, MaxHostSize)
}

func (m *Manager) GuestGet(addr [20]byte) (*lodging.Guest, bool, error) {
	var g lodging.Guest
	ok, err := m.get(guestPrefix, addr, &g)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &g, true, nil
}

func (m *Manager) GuestCreate(g *lodging.Guest) error {
	return m.create(guestPrefix, g.Address, g, MaxGuestSize)
}

func (m *Manager) ListingGet(addr [20]byte) (*lodging.Listing, bool, error) {
	var l lodging.Listing
	ok, err := m.get(listingPrefix, addr, &l)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &l, true, nil
}

func (m *Manager) ListingCreate(l *lodging.Listing) error {
	return m.create(listingPrefix, l.Address, l, MaxListingSize)
}

func (m *Manager) ListingPut(l *lodging.Listing) error {
	return m.put(listingPrefix, l.Address, l, MaxListingSize)
}

func (m *Manager) ReservationGet(addr [20]byte) (*lodging.Reservation, bool, error) {
	var r lodging.Reservation
	ok, err := m.get(reservationPrefix, addr, &r)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &r, true, nil
}

func (m *Manager) ReservationCreate(r *lodging.Reservation) error {
	return m.create(reservationPrefix, r.Address, r, MaxReservationSize)
}

func (m *Manager) ReservationPut(r *lodging.Reservation) error {
	return m.put(reservationPrefix, r.Address, r, MaxReservationSize)
}

// --- escrow ---

func (m *Manager) EscrowGet(addr [20]byte) (*escrow.Escrow, bool, error) {
	var e escrow.Escrow
	ok, err := m.get(escrowPrefix, addr, &e)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &e, true, nil
}

func (m *Manager) EscrowCreate(e *escrow.Escrow) error {
	return m.create(escrowPrefix, e.Address, e, MaxEscrowSize)
}

func (m *Manager) EscrowPut(e *escrow.Escrow) error {
	return m.put(escrowPrefix, e.Address, e, MaxEscrowSize)
}

// --- token ---

func (m *Manager) TokenMintGet(addr [20]byte) (*token.Mint, bool, error) {
	var mint token.Mint
	ok, err := m.get(mintPrefix, addr, &mint)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &mint, true, nil
}

func (m *Manager) TokenMintCreate(mint *token.Mint) error {
	return m.create(mintPrefix, mint.Address, mint, MaxMintSize)
}

func (m *Manager) TokenMintPut(mint *token.Mint) error {
	return m.put(mintPrefix, mint.Address, mint, MaxMintSize)
}

func (m *Manager) TokenAccountGet(addr [20]byte) (*token.Account, bool, error) {
	var acct token.Account
	ok, err := m.get(tokenAcctPrefix, addr, &acct)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &acct, true, nil
}

func (m *Manager) TokenAccountCreate(acct *token.Account) error {
	return m.create(tokenAcctPrefix, acct.Address, acct, MaxTokenAccountSize)
}

func (m *Manager) TokenAccountPut(acct *token.Account) error {
	return m.put(tokenAcctPrefix, acct.Address, acct, MaxTokenAccountSize)
}
