package core

import (
	"fmt"

	"staychain/core/state"
	"staychain/native/common"
	"staychain/native/escrow"
	"staychain/native/fees"
	"staychain/native/lodging"
	"staychain/native/token"
)

// Read-only views. They take the state lock so callers never observe a
// half-committed batch.

func (n *Node) manager() *state.Manager { return state.NewManager(n.db) }

func notFound(kind string, addr [20]byte) error {
	return fmt.Errorf("%s %x: %w", kind, addr, common.ErrRecordNotFound)
}

func (n *Node) EscrowGet(addr [20]byte) (*escrow.Escrow, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	esc, ok, err := n.manager().EscrowGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, escrow.ErrEscrowNotFound
	}
	return esc, nil
}

// EscrowAddress derives the escrow address of (reservation, escrowID)
// without touching state.
func (n *Node) EscrowAddress(reservation [20]byte, escrowID uint64) ([20]byte, error) {
	addr, _, err := escrow.EscrowAddress(reservation, escrowID)
	return addr, err
}

func (n *Node) ReservationGet(addr [20]byte) (*lodging.Reservation, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	res, ok, err := n.manager().ReservationGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("reservation", addr)
	}
	return res, nil
}

func (n *Node) HostGet(addr [20]byte) (*lodging.Host, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	host, ok, err := n.manager().HostGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("host", addr)
	}
	return host, nil
}

func (n *Node) GuestGet(addr [20]byte) (*lodging.Guest, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	guest, ok, err := n.manager().GuestGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("guest", addr)
	}
	return guest, nil
}

func (n *Node) ListingGet(addr [20]byte) (*lodging.Listing, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	listing, ok, err := n.manager().ListingGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("listing", addr)
	}
	return listing, nil
}

func (n *Node) TokenAccountGet(addr [20]byte) (*token.Account, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	acct, ok, err := n.manager().TokenAccountGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("token account", addr)
	}
	return acct, nil
}

func (n *Node) MintGet(addr [20]byte) (*token.Mint, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	mint, ok, err := n.manager().TokenMintGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("mint", addr)
	}
	return mint, nil
}

// Nonce returns the next nonce addr must sign with.
func (n *Node) Nonce(addr [20]byte) (uint64, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.manager().Nonce(addr)
}

// Quote previews the fee split of an escrow of amount.
func (n *Node) Quote(amount uint64) (fees.Quote, error) {
	return fees.QuoteEscrow(amount)
}
