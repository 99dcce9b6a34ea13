// Package fees implements the platform fee schedule applied to escrowed
// reservation payments and the asset-level transfer fee charged on every
// token movement. All results are exact integers; intermediates are computed
// in 256-bit space and anything that does not fit a uint64 is an error.
package fees

import (
	"errors"

	"github.com/holiman/uint256"
)

const (
	// PlatformFeeBps is the platform's share of every escrowed payment.
	PlatformFeeBps uint64 = 500
	// BpsDenominator is the basis point scale.
	BpsDenominator uint64 = 10_000
	// GrossUpDivisor is the complement of the 500 bps asset transfer fee used
	// to gross up host payouts.
	GrossUpDivisor uint64 = 9_500
	// TransferDecimals is the decimal precision every escrow transfer asserts.
	TransferDecimals uint8 = 9
)

var (
	// ErrArithmeticOverflow reports a result that does not fit in a uint64.
	ErrArithmeticOverflow = errors.New("fees: arithmetic overflow")
	// ErrArithmeticUnderflow reports a subtraction that would go negative.
	ErrArithmeticUnderflow = errors.New("fees: arithmetic underflow")
)

// PlatformFee returns floor(amount * 500 / 10000).
func PlatformFee(amount uint64) (uint64, error) {
	return mulDiv(amount, PlatformFeeBps, BpsDenominator)
}

// GrossUp returns floor(net * 10000 / 9500), the amount that must leave the
// treasury for the host to receive roughly net after the asset's transfer
// fee.
func GrossUp(net uint64) (uint64, error) {
	return mulDiv(net, BpsDenominator, GrossUpDivisor)
}

// HostNet returns amount - fee.
func HostNet(amount, fee uint64) (uint64, error) {
	if fee > amount {
		return 0, ErrArithmeticUnderflow
	}
	return amount - fee, nil
}

// TransferFee returns min(ceil(amount * bps / 10000), max).
func TransferFee(amount uint64, bps uint16, max uint64) uint64 {
	if amount == 0 || bps == 0 {
		return 0
	}
	num := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(bps)))
	num.Add(num, uint256.NewInt(BpsDenominator-1))
	num.Div(num, uint256.NewInt(BpsDenominator))
	if !num.IsUint64() || num.Uint64() > max {
		return max
	}
	return num.Uint64()
}

// Quote summarises the accounting of a single escrow from funding to release.
type Quote struct {
	Amount         uint64 `json:"amount"`
	PlatformFee    uint64 `json:"platformFee"`
	HostNet        uint64 `json:"hostNet"`
	TransferAmount uint64 `json:"transferAmount"`
}

// QuoteEscrow computes the fee, host net and grossed-up payout for amount.
func QuoteEscrow(amount uint64) (Quote, error) {
	fee, err := PlatformFee(amount)
	if err != nil {
		return Quote{}, err
	}
	net, err := HostNet(amount, fee)
	if err != nil {
		return Quote{}, err
	}
	transfer, err := GrossUp(net)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Amount: amount, PlatformFee: fee, HostNet: net, TransferAmount: transfer}, nil
}

func mulDiv(x, mul, div uint64) (uint64, error) {
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(x), uint256.NewInt(mul))
	if overflow {
		return 0, ErrArithmeticOverflow
	}
	product.Div(product, uint256.NewInt(div))
	if !product.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return product.Uint64(), nil
}
