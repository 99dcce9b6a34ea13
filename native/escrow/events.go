package escrow

import (
	"encoding/hex"
	"strconv"

	"staychain/core/types"
)

const (
	EventTypeEscrowFunded   = "escrow.funded"
	EventTypeEscrowReleased = "escrow.released"
)

// NewFundedEvent returns the canonical event payload emitted when a guest
// funds an escrow.
func NewFundedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowFunded, e) }

// NewReleasedEvent returns the canonical event payload for a release of escrow
// funds to the host.
func NewReleasedEvent(r *ReleaseResult) *types.Event {
	if r == nil {
		return newEscrowEvent(EventTypeEscrowReleased, nil)
	}
	evt := newEscrowEvent(EventTypeEscrowReleased, r.Escrow)
	evt.Attributes["hostNet"] = strconv.FormatUint(r.HostNet, 10)
	evt.Attributes["transferAmount"] = strconv.FormatUint(r.TransferAmount, 10)
	evt.Attributes["received"] = strconv.FormatUint(r.Received, 10)
	return evt
}

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["escrow"] = hex.EncodeToString(e.Address[:])
	attrs["reservation"] = hex.EncodeToString(e.Reservation[:])
	attrs["escrowId"] = strconv.FormatUint(e.EscrowID, 10)
	attrs["guest"] = hex.EncodeToString(e.Guest[:])
	attrs["host"] = hex.EncodeToString(e.Host[:])
	attrs["mint"] = hex.EncodeToString(e.Mint[:])
	attrs["amount"] = strconv.FormatUint(e.Amount, 10)
	attrs["platformFee"] = strconv.FormatUint(e.PlatformFee, 10)
	attrs["status"] = e.Status.String()
	attrs["createdAt"] = strconv.FormatUint(e.CreatedAt, 10)
	attrs["releaseDate"] = strconv.FormatUint(e.ReleaseDate, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
