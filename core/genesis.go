package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"staychain/core/state"
	"staychain/native/fees"
	"staychain/native/token"
	"staychain/storage"
)

var bootstrapKey = []byte("bootstrap/payment")

type bootstrapRecord struct {
	Mint     [20]byte
	Treasury [20]byte
}

// BootstrapParams describe the payment asset the node settles escrows in.
type BootstrapParams struct {
	Symbol         string
	TransferFeeBps uint16
	MaxTransferFee uint64
	// InitialSupply is minted into the treasury when the mint is created.
	InitialSupply uint64
}

// DefaultBootstrapParams returns the stablecoin the marketplace settles in: 9
// decimals and a 500 bps transfer fee capped at 1,000,000 base units.
func DefaultBootstrapParams() BootstrapParams {
	return BootstrapParams{
		Symbol:         "USDS",
		TransferFeeBps: 500,
		MaxTransferFee: 1_000_000,
	}
}

func (n *Node) loadBootstrap() error {
	var rec bootstrapRecord
	ok, err := state.NewManager(n.db).KVGet(bootstrapKey, &rec)
	if err != nil {
		return fmt.Errorf("core: load bootstrap: %w", err)
	}
	if ok {
		n.paymentMint = rec.Mint
		n.treasury = rec.Treasury
	}
	return nil
}

// Bootstrap ensures the payment mint, owned by the platform authority, and the
// treasury, the authority's associated account, exist. It is idempotent; an
// existing mint is reused and never re-supplied.
func (n *Node) Bootstrap(ctx context.Context, p BootstrapParams) (mint, treasury [20]byte, err error) {
	symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if symbol == "" {
		return mint, treasury, token.ErrInvalidSymbol
	}

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	overlay := storage.NewOverlay(n.db)
	sp := n.newStateProcessor(overlay)
	defer func() {
		if err != nil {
			overlay.Discard()
		}
	}()

	mintAddr, _, err := token.MintAddress(n.authority, symbol)
	if err != nil {
		return mint, treasury, err
	}
	created := false
	if _, err = sp.token.Mint(mintAddr); errors.Is(err, token.ErrMintNotFound) {
		if _, err = sp.token.InitializeMint(n.authority, symbol, fees.TransferDecimals, p.TransferFeeBps, p.MaxTransferFee); err != nil {
			return mint, treasury, err
		}
		created = true
	} else if err != nil {
		return mint, treasury, err
	}
	acct, err := sp.token.EnsureAssociatedAccount(n.authority, mintAddr)
	if err != nil {
		return mint, treasury, err
	}
	if created && p.InitialSupply > 0 {
		if _, err = sp.token.MintTo(n.authority, mintAddr, n.authority, p.InitialSupply); err != nil {
			return mint, treasury, err
		}
	}
	rec := bootstrapRecord{Mint: mintAddr, Treasury: acct.Address}
	if err = sp.manager.KVPut(bootstrapKey, rec); err != nil {
		return mint, treasury, err
	}
	if err = overlay.Commit(); err != nil {
		return mint, treasury, fmt.Errorf("core: commit bootstrap: %w", err)
	}
	n.paymentMint, n.treasury = rec.Mint, rec.Treasury

	if evts := sp.events.Drain(); n.eventLog != nil && len(evts) > 0 {
		if appendErr := n.eventLog.Append(ctx, ethcrypto.Keccak256(bootstrapKey), evts); appendErr != nil {
			n.logger.Error("append bootstrap events failed", slog.String("error", appendErr.Error()))
		}
	}
	n.logger.Info("payment asset ready",
		slog.String("symbol", symbol),
		slog.Bool("created", created))
	return rec.Mint, rec.Treasury, nil
}

// PaymentAsset returns the bootstrapped payment mint and treasury account.
func (n *Node) PaymentAsset() (mint, treasury [20]byte, err error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	if n.paymentMint == ([20]byte{}) {
		return mint, treasury, ErrMintNotBootstrapped
	}
	return n.paymentMint, n.treasury, nil
}
