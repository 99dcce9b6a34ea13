package escrow

import "staychain/native/lodging"

// requireGuest is the authorization guard of Fund.
func requireGuest(res *lodging.Reservation, caller [20]byte) error {
	if res == nil || res.Guest != caller {
		return ErrUnauthorizedGuest
	}
	return nil
}

// requireNoActiveEscrow rejects funding a reservation whose linked escrow is
// still Funded, keeping at most one non-terminal escrow per reservation.
func (e *Engine) requireNoActiveEscrow(res *lodging.Reservation) error {
	if !res.HasEscrow() {
		return nil
	}
	linked, ok, err := e.state.EscrowGet(res.PaymentEscrow)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	switch linked.Status {
	case StatusFunded, StatusDisputed:
		return ErrReservationAlreadyEscrowed
	case StatusReleased, StatusRefunded:
		return nil
	default:
		return nil
	}
}

// linkReservation mirrors the funded escrow onto the reservation. The
// reservation's own Status and PaymentStatus are left alone.
func (e *Engine) linkReservation(res *lodging.Reservation, esc *Escrow) error {
	res.PaymentEscrow = esc.Address
	res.TokenAmount = esc.Amount
	res.PlatformFee = esc.PlatformFee
	return e.state.ReservationPut(res)
}
