package escrow

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"staychain/core/events"
	"staychain/core/types"
	"staychain/native/common"
	"staychain/native/lodging"
	"staychain/native/token"
)

type mockState struct {
	escrows      map[[20]byte]*Escrow
	reservations map[[20]byte]*lodging.Reservation
	mints        map[[20]byte]*token.Mint
	accounts     map[[20]byte]*token.Account
}

func newMockState() *mockState {
	return &mockState{
		escrows:      make(map[[20]byte]*Escrow),
		reservations: make(map[[20]byte]*lodging.Reservation),
		mints:        make(map[[20]byte]*token.Mint),
		accounts:     make(map[[20]byte]*token.Account),
	}
}

func (m *mockState) EscrowGet(addr [20]byte) (*Escrow, bool, error) {
	esc, ok := m.escrows[addr]
	if !ok {
		return nil, false, nil
	}
	return esc.Clone(), true, nil
}

func (m *mockState) EscrowCreate(esc *Escrow) error {
	if _, ok := m.escrows[esc.Address]; ok {
		return common.ErrRecordExists
	}
	return m.EscrowPut(esc)
}

func (m *mockState) EscrowPut(esc *Escrow) error {
	m.escrows[esc.Address] = esc.Clone()
	return nil
}

func (m *mockState) ReservationGet(addr [20]byte) (*lodging.Reservation, bool, error) {
	r, ok := m.reservations[addr]
	if !ok {
		return nil, false, nil
	}
	c := *r
	return &c, true, nil
}

func (m *mockState) ReservationPut(r *lodging.Reservation) error {
	c := *r
	m.reservations[r.Address] = &c
	return nil
}

func (m *mockState) TokenMintGet(addr [20]byte) (*token.Mint, bool, error) {
	mint, ok := m.mints[addr]
	if !ok {
		return nil, false, nil
	}
	c := *mint
	return &c, true, nil
}

func (m *mockState) TokenMintCreate(mint *token.Mint) error {
	if _, ok := m.mints[mint.Address]; ok {
		return common.ErrRecordExists
	}
	return m.TokenMintPut(mint)
}

func (m *mockState) TokenMintPut(mint *token.Mint) error {
	c := *mint
	m.mints[mint.Address] = &c
	return nil
}

func (m *mockState) TokenAccountGet(addr [20]byte) (*token.Account, bool, error) {
	acct, ok := m.accounts[addr]
	if !ok {
		return nil, false, nil
	}
	c := *acct
	return &c, true, nil
}

func (m *mockState) TokenAccountCreate(acct *token.Account) error {
	if _, ok := m.accounts[acct.Address]; ok {
		return common.ErrRecordExists
	}
	return m.TokenAccountPut(acct)
}

func (m *mockState) TokenAccountPut(acct *token.Account) error {
	c := *acct
	m.accounts[acct.Address] = &c
	return nil
}

type captureEmitter struct{ events []*types.Event }

func (c *captureEmitter) Emit(evt events.Event) {
	if p, ok := evt.(events.Payload); ok {
		c.events = append(c.events, p.Event())
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type fixture struct {
	t           *testing.T
	state       *mockState
	ledger      *token.Ledger
	engine      *Engine
	emitter     *captureEmitter
	now         int64
	authority   [20]byte
	guest       [20]byte
	host        [20]byte
	mint        [20]byte
	treasury    [20]byte
	reservation [20]byte
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:         t,
		state:     newMockState(),
		emitter:   &captureEmitter{},
		now:       1_700_000_000,
		authority: newTestAddress(0xA1),
		guest:     newTestAddress(0xB2),
		host:      newTestAddress(0xC3),
	}
	f.ledger = token.NewLedger()
	f.ledger.SetState(f.state)

	mint, err := f.ledger.InitializeMint(f.authority, "STAY", 9, 500, 1_000_000)
	if err != nil {
		t.Fatalf("init mint: %v", err)
	}
	f.mint = mint.Address
	treasury, err := f.ledger.MintTo(f.authority, f.mint, f.authority, 10_000_000_000_000)
	if err != nil {
		t.Fatalf("fund treasury: %v", err)
	}
	f.treasury = treasury.Address
	if _, err := f.ledger.MintTo(f.authority, f.mint, f.guest, 10_000_000); err != nil {
		t.Fatalf("fund guest: %v", err)
	}

	resAddr, bump, err := lodging.ReservationAddress(f.guest, 1)
	if err != nil {
		t.Fatalf("derive reservation: %v", err)
	}
	f.reservation = resAddr
	f.state.reservations[resAddr] = &lodging.Reservation{
		Address: resAddr, ReservationID: 1, Guest: f.guest, Host: f.host,
		TotalPrice: 2_000_000, Bump: bump,
	}

	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetGateway(f.ledger)
	f.engine.SetPlatformAuthority(f.authority)
	f.engine.SetEmitter(f.emitter)
	f.engine.SetNowFunc(func() int64 { return f.now })
	return f
}

func (f *fixture) fundParams(id, amount, releaseDate uint64) FundParams {
	return FundParams{
		Reservation: f.reservation,
		EscrowID:    id,
		Amount:      amount,
		ReleaseDate: releaseDate,
		Mint:        f.mint,
		Treasury:    f.treasury,
	}
}

func (f *fixture) releaseParams(esc [20]byte) ReleaseParams {
	return ReleaseParams{Escrow: esc, Mint: f.mint, Treasury: f.treasury}
}

func (f *fixture) balance(owner [20]byte) uint64 {
	addr, _, err := token.AssociatedAddress(owner, f.mint)
	if err != nil {
		f.t.Fatalf("derive ata: %v", err)
	}
	acct, ok := f.state.accounts[addr]
	if !ok {
		return 0
	}
	return acct.Amount
}

func TestFundCreatesFundedEscrow(t *testing.T) {
	f := newFixture(t)
	treasuryBefore := f.state.accounts[f.treasury].Amount

	esc, err := f.engine.Fund(f.guest, f.fundParams(1, 1_000_000, uint64(f.now+3600)))
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if esc.Status != StatusFunded || esc.PlatformFee != 50_000 || esc.Amount != 1_000_000 {
		t.Fatalf("unexpected escrow %+v", esc)
	}
	if esc.Host != f.host || esc.Guest != f.guest || esc.CreatedAt != uint64(f.now) {
		t.Fatalf("unexpected parties/timestamps %+v", esc)
	}
	wantAddr, wantBump, _ := EscrowAddress(f.reservation, 1)
	if esc.Address != wantAddr || esc.Bump != wantBump {
		t.Fatalf("escrow address not derived from reservation and id")
	}
	if got := f.balance(f.guest); got != 9_000_000 {
		t.Fatalf("guest balance = %d", got)
	}
	// full amount leaves the guest; the treasury receives it minus the asset transfer fee
	if got := f.state.accounts[f.treasury].Amount - treasuryBefore; got != 950_000 {
		t.Fatalf("treasury delta = %d", got)
	}

	res := f.state.reservations[f.reservation]
	if res.PaymentEscrow != esc.Address || res.TokenAmount != 1_000_000 || res.PlatformFee != 50_000 {
		t.Fatalf("reservation mirror not populated: %+v", res)
	}
	if res.Status != lodging.ReservationPending || res.PaymentStatus != lodging.PaymentPending {
		t.Fatalf("reservation status must not change")
	}

	var funded *types.Event
	for _, evt := range f.emitter.events {
		if evt.Type == EventTypeEscrowFunded {
			funded = evt
		}
	}
	if funded == nil || funded.Attributes["platformFee"] != "50000" || funded.Attributes["status"] != "funded" {
		t.Fatalf("missing or malformed funded event: %+v", funded)
	}
}

func TestFundTwiceWithSameIDFails(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Fund(f.guest, f.fundParams(1, 1_000, 0)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := f.engine.Fund(f.guest, f.fundParams(1, 1_000, 0)); !errors.Is(err, ErrEscrowExists) {
		t.Fatalf("expected ErrEscrowExists, got %v", err)
	}
}

func TestFundSecondEscrowWhileFundedFails(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Fund(f.guest, f.fundParams(1, 1_000, 0)); err != nil {
		t.Fatalf("fund: %v", err)
	}
	_, err := f.engine.Fund(f.guest, f.fundParams(2, 1_000, 0))
	if !errors.Is(err, ErrReservationAlreadyEscrowed) {
		t.Fatalf("expected ErrReservationAlreadyEscrowed, got %v", err)
	}
	if kind, _ := KindOf(err); kind != KindState {
		t.Fatalf("expected state error, got %v", kind)
	}
}

func TestFundAfterReleaseAllowsNewEscrow(t *testing.T) {
	f := newFixture(t)
	esc, err := f.engine.Fund(f.guest, f.fundParams(1, 1_000, 0))
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if _, err := f.engine.Release(f.authority, f.releaseParams(esc.Address)); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := f.engine.Fund(f.guest, f.fundParams(2, 1_000, 0)); err != nil {
		t.Fatalf("fund after release: %v", err)
	}
}

func TestFundRejectsWrongCaller(t *testing.T) {
	f := newFixture(t)
	stranger := newTestAddress(0xEE)
	_, err := f.engine.Fund(stranger, f.fundParams(1, 1_000, 0))
	if !errors.Is(err, ErrUnauthorizedGuest) {
		t.Fatalf("expected ErrUnauthorizedGuest, got %v", err)
	}
	if kind, _ := KindOf(err); kind != KindAuthorization {
		t.Fatalf("expected authorization kind, got %v", kind)
	}
	if len(f.state.escrows) != 0 {
		t.Fatalf("no escrow must be created")
	}
}

func TestFundRejectsTreasuryWithOtherMint(t *testing.T) {
	f := newFixture(t)
	other, err := f.ledger.InitializeMint(f.authority, "OTHER", 9, 0, 0)
	if err != nil {
		t.Fatalf("init other: %v", err)
	}
	wrongTreasury, err := f.ledger.EnsureAssociatedAccount(f.authority, other.Address)
	if err != nil {
		t.Fatalf("open other treasury: %v", err)
	}
	p := f.fundParams(1, 1_000, 0)
	p.Treasury = wrongTreasury.Address
	if _, err := f.engine.Fund(f.guest, p); !errors.Is(err, ErrInvalidTreasuryMint) {
		t.Fatalf("expected ErrInvalidTreasuryMint, got %v", err)
	}
	if len(f.state.escrows) != 0 {
		t.Fatalf("no escrow must be created")
	}
}

func TestFundRejectsGuestWithoutTokenAccount(t *testing.T) {
	f := newFixture(t)
	other, err := f.ledger.InitializeMint(f.authority, "OTHER", 9, 0, 0)
	if err != nil {
		t.Fatalf("init other: %v", err)
	}
	otherTreasury, err := f.ledger.EnsureAssociatedAccount(f.authority, other.Address)
	if err != nil {
		t.Fatalf("open other treasury: %v", err)
	}
	p := f.fundParams(1, 1_000, 0)
	p.Mint = other.Address
	p.Treasury = otherTreasury.Address
	_, err = f.engine.Fund(f.guest, p)
	if !errors.Is(err, ErrInvalidMint) {
		t.Fatalf("expected ErrInvalidMint, got %v", err)
	}
	if kind, _ := KindOf(err); kind != KindValidation {
		t.Fatalf("expected validation kind, got %v", kind)
	}
}

func TestFundRejectsPlatformAuthorityAsHost(t *testing.T) {
	f := newFixture(t)
	f.state.reservations[f.reservation].Host = f.authority
	guestBefore := f.balance(f.guest)

	_, err := f.engine.Fund(f.guest, f.fundParams(1, 1_000, 0))
	if !errors.Is(err, ErrHostIsPlatformAuthority) {
		t.Fatalf("expected ErrHostIsPlatformAuthority, got %v", err)
	}
	if kind, _ := KindOf(err); kind != KindValidation {
		t.Fatalf("expected validation kind, got %v", kind)
	}
	if len(f.state.escrows) != 0 || f.balance(f.guest) != guestBefore {
		t.Fatalf("rejected fund must not move value")
	}
}

// Any account of the payment mint is accepted as the treasury; Release still
// pays the host from the treasury it is given.
func TestFundAcceptsAnyTreasuryOfMint(t *testing.T) {
	f := newFixture(t)
	sink, err := f.ledger.EnsureAssociatedAccount(newTestAddress(0xDD), f.mint)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	p := f.fundParams(1, 1_000_000, 0)
	p.Treasury = sink.Address
	esc, err := f.engine.Fund(f.guest, p)
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if got := f.state.accounts[sink.Address].Amount; got != 950_000 {
		t.Fatalf("sink balance = %d", got)
	}
	treasuryBefore := f.state.accounts[f.treasury].Amount
	res, err := f.engine.Release(f.authority, f.releaseParams(esc.Address))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if treasuryBefore-f.state.accounts[f.treasury].Amount != res.TransferAmount {
		t.Fatalf("release must draw on the platform treasury")
	}
}

func TestFundUnknownReservation(t *testing.T) {
	f := newFixture(t)
	p := f.fundParams(1, 1_000, 0)
	p.Reservation = newTestAddress(0x77)
	if _, err := f.engine.Fund(f.guest, p); !errors.Is(err, ErrReservationNotFound) {
		t.Fatalf("expected ErrReservationNotFound, got %v", err)
	}
}

func TestFundInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Fund(f.guest, f.fundParams(1, 10_000_001, 0))
	if !errors.Is(err, token.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestReleaseLifecycle(t *testing.T) {
	f := newFixture(t)
	releaseAt := f.now + 1
	esc, err := f.engine.Fund(f.guest, f.fundParams(1, 2_000_000, uint64(releaseAt)))
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	if esc.PlatformFee != 100_000 || esc.Status != StatusFunded {
		t.Fatalf("unexpected funded escrow %+v", esc)
	}

	_, err = f.engine.Release(f.authority, f.releaseParams(esc.Address))
	if !errors.Is(err, ErrReleaseNotYetAllowed) {
		t.Fatalf("expected ErrReleaseNotYetAllowed, got %v", err)
	}
	if kind, _ := KindOf(err); kind != KindTiming {
		t.Fatalf("expected timing kind, got %v", kind)
	}

	f.now = releaseAt
	treasuryBefore := f.state.accounts[f.treasury].Amount
	result, err := f.engine.Release(f.authority, f.releaseParams(esc.Address))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if result.HostNet != 1_900_000 || result.TransferAmount != 2_000_000 {
		t.Fatalf("unexpected payout %+v", result)
	}
	if result.Escrow.Status != StatusReleased {
		t.Fatalf("status = %s", result.Escrow.Status)
	}
	if got := treasuryBefore - f.state.accounts[f.treasury].Amount; got != 2_000_000 {
		t.Fatalf("treasury debit = %d", got)
	}
	// the asset withholds 5% of the grossed-up transfer, leaving the host net
	if got := f.balance(f.host); got != 1_900_000 {
		t.Fatalf("host balance = %d", got)
	}
	if f.state.escrows[esc.Address].Status != StatusReleased {
		t.Fatalf("stored status not updated")
	}

	_, err = f.engine.Release(f.authority, f.releaseParams(esc.Address))
	if !errors.Is(err, ErrEscrowNotFunded) {
		t.Fatalf("expected ErrEscrowNotFunded on second release, got %v", err)
	}

	last := f.emitter.events[len(f.emitter.events)-1]
	if last.Type != EventTypeEscrowReleased || last.Attributes["transferAmount"] != "2000000" || last.Attributes["hostNet"] != "1900000" {
		t.Fatalf("unexpected released event %+v", last)
	}
}

func TestReleaseStatusCheckedBeforeTime(t *testing.T) {
	f := newFixture(t)
	esc, err := f.engine.Fund(f.guest, f.fundParams(1, 1_000, uint64(f.now+100)))
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	stored := f.state.escrows[esc.Address]
	stored.Status = StatusDisputed
	_, err = f.engine.Release(f.authority, f.releaseParams(esc.Address))
	if !errors.Is(err, ErrEscrowNotFunded) {
		t.Fatalf("expected ErrEscrowNotFunded before timing check, got %v", err)
	}
}

func TestReleaseRejectsNonAuthority(t *testing.T) {
	f := newFixture(t)
	esc, err := f.engine.Fund(f.guest, f.fundParams(1, 1_000, 0))
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	_, err = f.engine.Release(f.guest, f.releaseParams(esc.Address))
	if !errors.Is(err, ErrUnauthorizedAuthority) {
		t.Fatalf("expected ErrUnauthorizedAuthority, got %v", err)
	}
	if f.state.escrows[esc.Address].Status != StatusFunded {
		t.Fatalf("status must remain funded")
	}
}

func TestReleaseRejectsMintMismatch(t *testing.T) {
	f := newFixture(t)
	esc, err := f.engine.Fund(f.guest, f.fundParams(1, 1_000, 0))
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
	other, err := f.ledger.InitializeMint(f.authority, "OTHER", 9, 0, 0)
	if err != nil {
		t.Fatalf("init other: %v", err)
	}
	p := f.releaseParams(esc.Address)
	p.Mint = other.Address
	if _, err := f.engine.Release(f.authority, p); !errors.Is(err, ErrInvalidTreasuryMint) {
		t.Fatalf("expected ErrInvalidTreasuryMint, got %v", err)
	}
	otherTreasury, err := f.ledger.EnsureAssociatedAccount(f.authority, other.Address)
	if err != nil {
		t.Fatalf("open other treasury: %v", err)
	}
	p.Treasury = otherTreasury.Address
	if _, err := f.engine.Release(f.authority, p); !errors.Is(err, ErrInvalidMint) {
		t.Fatalf("expected ErrInvalidMint, got %v", err)
	}
}

func TestReleaseUnknownEscrow(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Release(f.authority, f.releaseParams(newTestAddress(0x55))); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("expected ErrEscrowNotFound, got %v", err)
	}
}

func TestReleaseSurfacesArithmeticError(t *testing.T) {
	f := newFixture(t)
	addr, bump, _ := EscrowAddress(f.reservation, 9)
	f.state.escrows[addr] = &Escrow{
		Address: addr, Reservation: f.reservation, EscrowID: 9,
		Guest: f.guest, Host: f.host, Mint: f.mint,
		Amount: math.MaxUint64, PlatformFee: 0, Status: StatusFunded, Bump: bump,
	}
	_, err := f.engine.Release(f.authority, f.releaseParams(addr))
	if !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected ErrArithmetic, got %v", err)
	}
	if kind, _ := KindOf(err); kind != KindArithmetic {
		t.Fatalf("expected arithmetic kind, got %v", kind)
	}

	f.state.escrows[addr].PlatformFee = 10
	f.state.escrows[addr].Amount = 5
	if _, err := f.engine.Release(f.authority, f.releaseParams(addr)); !errors.Is(err, ErrArithmetic) {
		t.Fatalf("expected ErrArithmetic for fee above amount, got %v", err)
	}
}

func TestStatusTaxonomy(t *testing.T) {
	for _, s := range []Status{StatusFunded, StatusReleased, StatusRefunded, StatusDisputed} {
		if !s.Valid() {
			t.Fatalf("%s must be valid", s)
		}
	}
	if Status(0).Valid() || Status(9).Valid() {
		t.Fatalf("out of range statuses must be invalid")
	}
	if !StatusReleased.Terminal() || StatusFunded.Terminal() {
		t.Fatalf("unexpected terminality")
	}
	if CodeOf(ErrReleaseNotYetAllowed) != "ReleaseNotYetAllowed" {
		t.Fatalf("unexpected code")
	}
}
