// Package token implements the fungible asset ledger the escrow engine moves
// value through: mints with a withheld transfer fee, associated token
// accounts, issuance and checked transfers.
package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"staychain/core/events"
	"staychain/core/types"
	"staychain/native/common"
	"staychain/native/fees"
)

type ledgerState interface {
	TokenMintGet(addr [20]byte) (*Mint, bool, error)
	TokenMintCreate(*Mint) error
	TokenMintPut(*Mint) error
	TokenAccountGet(addr [20]byte) (*Account, bool, error)
	TokenAccountCreate(*Account) error
	TokenAccountPut(*Account) error
}

var errNilState = errors.New("token ledger: state not configured")

// TransferParams describes a checked transfer between two token accounts.
type TransferParams struct {
	From      [20]byte
	To        [20]byte
	Authority [20]byte
	Mint      [20]byte
	Amount    uint64
	Decimals  uint8
}

// TransferResult reports how much reached the destination.
type TransferResult struct {
	Amount   uint64
	Fee      uint64
	Received uint64
}

type tokenEvent struct{ evt *types.Event }

func (e tokenEvent) EventType() string   { return e.evt.Type }
func (e tokenEvent) Event() *types.Event { return e.evt }

// Ledger executes token instructions against state.
type Ledger struct {
	state   ledgerState
	emitter events.Emitter
}

// NewLedger returns a ledger with a no-op emitter.
func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

func (l *Ledger) SetState(state ledgerState) { l.state = state }

func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func (l *Ledger) emit(evt *types.Event) {
	if l.emitter == nil || evt == nil {
		return
	}
	l.emitter.Emit(tokenEvent{evt: evt})
}

// InitializeMint creates a new mint owned by authority.
func (l *Ledger) InitializeMint(authority [20]byte, symbol string, decimals uint8, feeBps uint16, maxFee uint64) (*Mint, error) {
	if l.state == nil {
		return nil, errNilState
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || len(symbol) > MaxSymbolLength {
		return nil, ErrInvalidSymbol
	}
	if feeBps > MaxTransferFeeBps {
		return nil, ErrInvalidTransferFee
	}
	addr, bump, err := MintAddress(authority, symbol)
	if err != nil {
		return nil, err
	}
	mint := &Mint{
		Address:        addr,
		Authority:      authority,
		Symbol:         symbol,
		Decimals:       decimals,
		TransferFeeBps: feeBps,
		MaxTransferFee: maxFee,
		Bump:           bump,
	}
	if err := l.state.TokenMintCreate(mint); err != nil {
		if errors.Is(err, common.ErrRecordExists) {
			return nil, ErrMintExists
		}
		return nil, err
	}
	l.emit(newMintInitializedEvent(mint))
	return mint, nil
}

// CreateAssociatedAccount opens the associated account of owner for mint. It
// fails with ErrAccountExists when the account is already open.
func (l *Ledger) CreateAssociatedAccount(owner, mintAddr [20]byte) (*Account, error) {
	if l.state == nil {
		return nil, errNilState
	}
	if _, err := l.loadMint(mintAddr); err != nil {
		return nil, err
	}
	addr, bump, err := AssociatedAddress(owner, mintAddr)
	if err != nil {
		return nil, err
	}
	acct := &Account{Address: addr, Owner: owner, Mint: mintAddr, Bump: bump}
	if err := l.state.TokenAccountCreate(acct); err != nil {
		if errors.Is(err, common.ErrRecordExists) {
			return nil, ErrAccountExists
		}
		return nil, err
	}
	return acct, nil
}

// EnsureAssociatedAccount returns the associated account of owner for mint,
// opening it when absent.
func (l *Ledger) EnsureAssociatedAccount(owner, mintAddr [20]byte) (*Account, error) {
	addr, _, err := AssociatedAddress(owner, mintAddr)
	if err != nil {
		return nil, err
	}
	if l.state == nil {
		return nil, errNilState
	}
	existing, ok, err := l.state.TokenAccountGet(addr)
	if err != nil {
		return nil, err
	}
	if ok {
		if existing.Mint != mintAddr {
			return nil, ErrMintMismatch
		}
		return existing, nil
	}
	return l.CreateAssociatedAccount(owner, mintAddr)
}

// MintTo issues amount of mint into owner's associated account.
func (l *Ledger) MintTo(authority, mintAddr, owner [20]byte, amount uint64) (*Account, error) {
	mint, err := l.loadMint(mintAddr)
	if err != nil {
		return nil, err
	}
	if mint.Authority != authority {
		return nil, ErrMintAuthority
	}
	supply, ok := checkedAdd(mint.Supply, amount)
	if !ok {
		return nil, ErrSupplyOverflow
	}
	acct, err := l.EnsureAssociatedAccount(owner, mintAddr)
	if err != nil {
		return nil, err
	}
	balance, ok := checkedAdd(acct.Amount, amount)
	if !ok {
		return nil, ErrBalanceOverflow
	}
	mint.Supply = supply
	acct.Amount = balance
	if err := l.state.TokenMintPut(mint); err != nil {
		return nil, err
	}
	if err := l.state.TokenAccountPut(acct); err != nil {
		return nil, err
	}
	l.emit(newMintedEvent(mint, acct, amount))
	return acct, nil
}

// TransferChecked moves p.Amount out of p.From. The mint's transfer fee is
// withheld in the destination account, so the destination balance grows by
// Amount minus the fee.
func (l *Ledger) TransferChecked(p TransferParams) (TransferResult, error) {
	mint, err := l.loadMint(p.Mint)
	if err != nil {
		return TransferResult{}, err
	}
	if p.Decimals != mint.Decimals {
		return TransferResult{}, ErrDecimalsMismatch
	}
	if p.From == p.To {
		return TransferResult{}, ErrSelfTransfer
	}
	from, err := l.loadAccount(p.From)
	if err != nil {
		return TransferResult{}, fmt.Errorf("source: %w", err)
	}
	to, err := l.loadAccount(p.To)
	if err != nil {
		return TransferResult{}, fmt.Errorf("destination: %w", err)
	}
	if from.Mint != p.Mint || to.Mint != p.Mint {
		return TransferResult{}, ErrMintMismatch
	}
	if from.Owner != p.Authority {
		return TransferResult{}, ErrOwnerMismatch
	}
	if from.Amount < p.Amount {
		return TransferResult{}, ErrInsufficientFunds
	}
	fee := fees.TransferFee(p.Amount, mint.TransferFeeBps, mint.MaxTransferFee)
	received := p.Amount - fee
	balance, ok := checkedAdd(to.Amount, received)
	if !ok {
		return TransferResult{}, ErrBalanceOverflow
	}
	withheld, ok := checkedAdd(to.Withheld, fee)
	if !ok {
		return TransferResult{}, ErrBalanceOverflow
	}
	from.Amount -= p.Amount
	to.Amount = balance
	to.Withheld = withheld
	if err := l.state.TokenAccountPut(from); err != nil {
		return TransferResult{}, err
	}
	if err := l.state.TokenAccountPut(to); err != nil {
		return TransferResult{}, err
	}
	res := TransferResult{Amount: p.Amount, Fee: fee, Received: received}
	l.emit(newTransferEvent(p, res))
	return res, nil
}

// Account returns the token account at addr.
func (l *Ledger) Account(addr [20]byte) (*Account, error) { return l.loadAccount(addr) }

// Mint returns the mint at addr.
func (l *Ledger) Mint(addr [20]byte) (*Mint, error) { return l.loadMint(addr) }

func (l *Ledger) loadMint(addr [20]byte) (*Mint, error) {
	if l.state == nil {
		return nil, errNilState
	}
	mint, ok, err := l.state.TokenMintGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMintNotFound
	}
	return mint, nil
}

func (l *Ledger) loadAccount(addr [20]byte) (*Account, error) {
	if l.state == nil {
		return nil, errNilState
	}
	acct, ok, err := l.state.TokenAccountGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

// checkedAdd returns a+b and false when the sum does not fit in a uint64.
func checkedAdd(a, b uint64) (uint64, bool) {
	sum := new(uint256.Int).Add(uint256.NewInt(a), uint256.NewInt(b))
	if !sum.IsUint64() {
		return 0, false
	}
	return sum.Uint64(), true
}
