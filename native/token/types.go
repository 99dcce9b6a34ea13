package token

import (
	"errors"

	"staychain/crypto"
)

// Seed domains used to derive token addresses.
const (
	MintSeed            = "MINT_SEED"
	AssociatedTokenSeed = "ASSOCIATED_TOKEN_SEED"
	MaxSymbolLength     = 16
	MaxTransferFeeBps   = 10_000
)

var (
	ErrMintNotFound       = errors.New("token: mint not found")
	ErrMintExists         = errors.New("token: mint already exists")
	ErrAccountNotFound    = errors.New("token: account not found")
	ErrAccountExists      = errors.New("token: account already exists")
	ErrMintMismatch       = errors.New("token: account mint does not match")
	ErrDecimalsMismatch   = errors.New("token: decimals do not match mint")
	ErrOwnerMismatch      = errors.New("token: authority does not own source account")
	ErrInsufficientFunds  = errors.New("token: insufficient funds")
	ErrMintAuthority      = errors.New("token: signer is not the mint authority")
	ErrInvalidSymbol      = errors.New("token: invalid symbol")
	ErrInvalidTransferFee = errors.New("token: transfer fee bps out of range")
	ErrSupplyOverflow     = errors.New("token: supply overflow")
	ErrBalanceOverflow    = errors.New("token: balance overflow")
	ErrSelfTransfer       = errors.New("token: source and destination are the same account")
)

// Mint describes a fungible asset. Every transfer of the asset withholds a
// transfer fee of TransferFeeBps, capped at MaxTransferFee.
type Mint struct {
	Address        [20]byte
	Authority      [20]byte
	Symbol         string
	Decimals       uint8
	Supply         uint64
	TransferFeeBps uint16
	MaxTransferFee uint64
	Bump           uint8
}

// Account holds a balance of a single mint for an owner.
type Account struct {
	Address  [20]byte
	Owner    [20]byte
	Mint     [20]byte
	Amount   uint64
	Withheld uint64
	Bump     uint8
}

// MintAddress derives the address of the mint authority creates for symbol.
func MintAddress(authority [20]byte, symbol string) ([20]byte, uint8, error) {
	return crypto.DeriveAddress([]byte(MintSeed), authority[:], []byte(symbol))
}

// AssociatedAddress derives the canonical token account of owner for mint.
func AssociatedAddress(owner, mint [20]byte) ([20]byte, uint8, error) {
	return crypto.DeriveAddress([]byte(AssociatedTokenSeed), owner[:], mint[:])
}
