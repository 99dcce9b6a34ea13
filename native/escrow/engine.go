package escrow

import (
	"errors"
	"fmt"
	"time"

	"staychain/core/events"
	"staychain/core/types"
	"staychain/native/fees"
	"staychain/native/lodging"
	"staychain/native/token"
)

var (
	errNilState     = errors.New("escrow engine: state not configured")
	errNilGateway   = errors.New("escrow engine: transfer gateway not configured")
	errNilAuthority = errors.New("escrow engine: platform authority not configured")
)

type engineState interface {
	EscrowGet(addr [20]byte) (*Escrow, bool, error)
	EscrowCreate(*Escrow) error
	EscrowPut(*Escrow) error
	ReservationGet(addr [20]byte) (*lodging.Reservation, bool, error)
	ReservationPut(*lodging.Reservation) error
}

// transferGateway moves value between token accounts, validating the mint on
// both legs, the decimals and the authority over the source.
type transferGateway interface {
	Account(addr [20]byte) (*token.Account, error)
	EnsureAssociatedAccount(owner, mint [20]byte) (*token.Account, error)
	TransferChecked(token.TransferParams) (token.TransferResult, error)
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// FundParams are the inputs of Fund.
type FundParams struct {
	Reservation [20]byte
	EscrowID    uint64
	Amount      uint64
	ReleaseDate uint64
	Mint        [20]byte
	Treasury    [20]byte
}

// ReleaseParams are the inputs of Release.
type ReleaseParams struct {
	Escrow   [20]byte
	Mint     [20]byte
	Treasury [20]byte
}

// ReleaseResult reports the payout of a released escrow.
type ReleaseResult struct {
	Escrow         *Escrow
	HostNet        uint64
	TransferAmount uint64
	Received       uint64
}

// Engine wires the escrow lifecycle to ledger state, the token gateway and an
// event emitter.
type Engine struct {
	state     engineState
	gateway   transferGateway
	emitter   events.Emitter
	authority [20]byte
	nowFn     func() int64
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetGateway configures the token ledger used for value movement.
func (e *Engine) SetGateway(gw transferGateway) { e.gateway = gw }

// SetPlatformAuthority configures the only signer allowed to release escrows.
func (e *Engine) SetPlatformAuthority(addr [20]byte) { e.authority = addr }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) now() uint64 {
	var ts int64
	if e == nil || e.nowFn == nil {
		ts = time.Now().Unix()
	} else {
		ts = e.nowFn()
	}
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.gateway == nil {
		return errNilGateway
	}
	return nil
}

// Fund creates a Funded escrow for p.Reservation and moves the full amount
// from the caller's token account to the treasury in one transfer. The
// platform fee is recorded but not separated.
func (e *Engine) Fund(caller [20]byte, p FundParams) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res, ok, err := e.state.ReservationGet(p.Reservation)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReservationNotFound
	}
	if err := requireGuest(res, caller); err != nil {
		return nil, err
	}
	// Release pays the host's associated account from the authority's
	// treasury, which is the same account when the host is the authority.
	if e.authority != ([20]byte{}) && res.Host == e.authority {
		return nil, ErrHostIsPlatformAuthority
	}

	treasury, err := e.gateway.Account(p.Treasury)
	if err != nil {
		return nil, wrap(ErrInvalidTreasuryMint, err)
	}
	if treasury.Mint != p.Mint {
		return nil, ErrInvalidTreasuryMint
	}
	guestAddr, _, err := token.AssociatedAddress(caller, p.Mint)
	if err != nil {
		return nil, err
	}
	guestAcct, err := e.gateway.Account(guestAddr)
	if err != nil {
		return nil, wrap(ErrInvalidMint, err)
	}
	if guestAcct.Mint != p.Mint || guestAcct.Owner != caller {
		return nil, ErrInvalidMint
	}

	addr, bump, err := EscrowAddress(p.Reservation, p.EscrowID)
	if err != nil {
		return nil, err
	}
	if _, exists, err := e.state.EscrowGet(addr); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrEscrowExists
	}
	if err := e.requireNoActiveEscrow(res); err != nil {
		return nil, err
	}

	fee, err := fees.PlatformFee(p.Amount)
	if err != nil {
		return nil, wrap(ErrArithmetic, err)
	}
	esc := &Escrow{
		Address:     addr,
		Reservation: p.Reservation,
		EscrowID:    p.EscrowID,
		Guest:       caller,
		Host:        res.Host,
		Mint:        p.Mint,
		Amount:      p.Amount,
		PlatformFee: fee,
		Status:      StatusFunded,
		CreatedAt:   e.now(),
		ReleaseDate: p.ReleaseDate,
		Bump:        bump,
	}
	if err := e.state.EscrowCreate(esc); err != nil {
		return nil, err
	}

	if _, err := e.gateway.TransferChecked(token.TransferParams{
		From:      guestAcct.Address,
		To:        treasury.Address,
		Authority: caller,
		Mint:      p.Mint,
		Amount:    p.Amount,
		Decimals:  fees.TransferDecimals,
	}); err != nil {
		return nil, transferError(err)
	}

	if err := e.linkReservation(res, esc); err != nil {
		return nil, err
	}
	e.emit(NewFundedEvent(esc))
	return esc.Clone(), nil
}

// Release pays a Funded escrow out to its host once the release date has
// passed. The treasury sends the grossed-up host net so the host receives
// roughly the net after the asset's transfer fee. Status becomes Released
// only after the transfer succeeds.
func (e *Engine) Release(caller [20]byte, p ReleaseParams) (*ReleaseResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.authority == ([20]byte{}) {
		return nil, errNilAuthority
	}
	if caller != e.authority {
		return nil, ErrUnauthorizedAuthority
	}
	esc, ok, err := e.state.EscrowGet(p.Escrow)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEscrowNotFound
	}
	if err := requireFunded(esc.Status); err != nil {
		return nil, err
	}
	if e.now() < esc.ReleaseDate {
		return nil, fmt.Errorf("%w: now %d, release date %d", ErrReleaseNotYetAllowed, e.now(), esc.ReleaseDate)
	}

	treasury, err := e.gateway.Account(p.Treasury)
	if err != nil {
		return nil, wrap(ErrInvalidTreasuryMint, err)
	}
	if treasury.Mint != p.Mint {
		return nil, ErrInvalidTreasuryMint
	}
	if p.Mint != esc.Mint {
		return nil, ErrInvalidMint
	}

	hostNet, err := fees.HostNet(esc.Amount, esc.PlatformFee)
	if err != nil {
		return nil, wrap(ErrArithmetic, err)
	}
	transferAmount, err := fees.GrossUp(hostNet)
	if err != nil {
		return nil, wrap(ErrArithmetic, err)
	}

	hostAcct, err := e.gateway.EnsureAssociatedAccount(esc.Host, p.Mint)
	if err != nil {
		return nil, transferError(err)
	}
	moved, err := e.gateway.TransferChecked(token.TransferParams{
		From:      treasury.Address,
		To:        hostAcct.Address,
		Authority: caller,
		Mint:      p.Mint,
		Amount:    transferAmount,
		Decimals:  fees.TransferDecimals,
	})
	if err != nil {
		return nil, transferError(err)
	}

	esc.Status = StatusReleased
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	result := &ReleaseResult{
		Escrow:         esc.Clone(),
		HostNet:        hostNet,
		TransferAmount: transferAmount,
		Received:       moved.Received,
	}
	e.emit(NewReleasedEvent(result))
	return result, nil
}

// Escrow returns the escrow stored at addr.
func (e *Engine) Escrow(addr [20]byte) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	esc, ok, err := e.state.EscrowGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return esc, nil
}

func requireFunded(s Status) error {
	switch s {
	case StatusFunded:
		return nil
	case StatusReleased, StatusRefunded, StatusDisputed:
		return ErrEscrowNotFunded
	default:
		return fmt.Errorf("%w: invalid status %d", ErrEscrowNotFunded, uint8(s))
	}
}

// transferError maps asset validation failures from the gateway onto
// ErrInvalidMint and passes everything else through.
func transferError(err error) error {
	switch {
	case errors.Is(err, token.ErrMintMismatch),
		errors.Is(err, token.ErrMintNotFound),
		errors.Is(err, token.ErrDecimalsMismatch):
		return wrap(ErrInvalidMint, err)
	default:
		return fmt.Errorf("escrow: transfer: %w", err)
	}
}
