package token

import (
	"encoding/hex"
	"strconv"

	"staychain/core/types"
)

const (
	EventTypeMintInitialized = "token.mint_initialized"
	EventTypeMinted          = "token.minted"
	EventTypeTransfer        = "token.transfer"
)

func newMintInitializedEvent(m *Mint) *types.Event {
	return &types.Event{Type: EventTypeMintInitialized, Attributes: map[string]string{
		"mint":           hex.EncodeToString(m.Address[:]),
		"authority":      hex.EncodeToString(m.Authority[:]),
		"symbol":         m.Symbol,
		"decimals":       strconv.FormatUint(uint64(m.Decimals), 10),
		"transferFeeBps": strconv.FormatUint(uint64(m.TransferFeeBps), 10),
		"maxTransferFee": strconv.FormatUint(m.MaxTransferFee, 10),
	}}
}

func newMintedEvent(m *Mint, acct *Account, amount uint64) *types.Event {
	return &types.Event{Type: EventTypeMinted, Attributes: map[string]string{
		"mint":    hex.EncodeToString(m.Address[:]),
		"account": hex.EncodeToString(acct.Address[:]),
		"owner":   hex.EncodeToString(acct.Owner[:]),
		"amount":  strconv.FormatUint(amount, 10),
		"supply":  strconv.FormatUint(m.Supply, 10),
	}}
}

func newTransferEvent(p TransferParams, res TransferResult) *types.Event {
	return &types.Event{Type: EventTypeTransfer, Attributes: map[string]string{
		"mint":      hex.EncodeToString(p.Mint[:]),
		"from":      hex.EncodeToString(p.From[:]),
		"to":        hex.EncodeToString(p.To[:]),
		"authority": hex.EncodeToString(p.Authority[:]),
		"amount":    strconv.FormatUint(res.Amount, 10),
		"fee":       strconv.FormatUint(res.Fee, 10),
		"received":  strconv.FormatUint(res.Received, 10),
	}}
}
