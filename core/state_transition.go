package core

import (
	"fmt"

	"staychain/core/events"
	"staychain/core/state"
	"staychain/core/types"
	"staychain/native/common"
	"staychain/native/escrow"
	"staychain/native/lodging"
	"staychain/native/token"
	"staychain/observability/metrics"
	"staychain/storage"
)

// StateProcessor executes one transaction against a write buffer. A new
// processor is built per transaction so engines never share buffered state.
type StateProcessor struct {
	manager *state.Manager
	events  *events.Buffer
	lodging *lodging.Engine
	escrow  *escrow.Engine
	token   *token.Ledger
	pauses  common.PauseView
	chainID uint64

	// afterCommit runs once the overlay has been flushed.
	afterCommit []func()
}

type processorConfig struct {
	chainID   uint64
	authority [20]byte
	pauses    common.PauseView
	now       func() int64
}

func newStateProcessor(db storage.Database, cfg processorConfig) *StateProcessor {
	manager := state.NewManager(db)
	buf := &events.Buffer{}

	ledger := token.NewLedger()
	ledger.SetState(manager)
	ledger.SetEmitter(buf)

	lodgingEngine := lodging.NewEngine()
	lodgingEngine.SetState(manager)
	lodgingEngine.SetEmitter(buf)
	lodgingEngine.SetNowFunc(cfg.now)

	escrowEngine := escrow.NewEngine()
	escrowEngine.SetState(manager)
	escrowEngine.SetGateway(ledger)
	escrowEngine.SetPlatformAuthority(cfg.authority)
	escrowEngine.SetNowFunc(cfg.now)
	escrowEngine.SetEmitter(buf)

	return &StateProcessor{
		manager: manager,
		events:  buf,
		lodging: lodgingEngine,
		escrow:  escrowEngine,
		token:   ledger,
		pauses:  cfg.pauses,
		chainID: cfg.chainID,
	}
}

// ApplyTransaction verifies the envelope of tx, dispatches it to its module
// and advances the sender nonce. It returns the recovered sender.
func (sp *StateProcessor) ApplyTransaction(tx *types.Transaction) ([20]byte, error) {
	var sender [20]byte
	if tx == nil {
		return sender, ErrNilTransaction
	}
	if tx.ChainID != sp.chainID {
		return sender, fmt.Errorf("%w: expected %d, got %d", ErrInvalidChainID, sp.chainID, tx.ChainID)
	}
	if !tx.Type.Valid() {
		return sender, fmt.Errorf("%w: %s", ErrUnsupportedTxType, tx.Type)
	}
	sender, err := tx.FromRaw()
	if err != nil {
		return sender, err
	}
	expected, err := sp.manager.Nonce(sender)
	if err != nil {
		return sender, err
	}
	if tx.Nonce != expected {
		return sender, fmt.Errorf("%w: expected %d, got %d", ErrNonceMismatch, expected, tx.Nonce)
	}
	if err := common.Guard(sp.pauses, moduleOf(tx.Type)); err != nil {
		return sender, fmt.Errorf("%s: %w", moduleOf(tx.Type), err)
	}
	if err := sp.handleNativeTransaction(sender, tx); err != nil {
		return sender, err
	}
	return sender, sp.manager.SetNonce(sender, expected+1)
}

func moduleOf(t types.TxType) string {
	switch t {
	case types.TxTypeInitializeHost, types.TxTypeInitializeGuest,
		types.TxTypeInitializeListing, types.TxTypeInitializeReservation:
		return common.ModuleLodging
	case types.TxTypeFundEscrow, types.TxTypeReleaseEscrow:
		return common.ModuleEscrow
	default:
		return common.ModuleToken
	}
}

func (sp *StateProcessor) handleNativeTransaction(sender [20]byte, tx *types.Transaction) error {
	switch tx.Type {
	case types.TxTypeInitializeHost:
		var p types.InitializeHostPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		_, err := sp.lodging.InitializeHost(sender, p)
		return err
	case types.TxTypeInitializeGuest:
		var p types.InitializeGuestPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		_, err := sp.lodging.InitializeGuest(sender, p)
		return err
	case types.TxTypeInitializeListing:
		var p types.InitializeListingPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		_, err := sp.lodging.InitializeListing(sender, p)
		return err
	case types.TxTypeInitializeReservation:
		var p types.InitializeReservationPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		_, err := sp.lodging.InitializeReservation(sender, p)
		return err
	case types.TxTypeFundEscrow:
		return sp.applyFundEscrow(sender, tx)
	case types.TxTypeReleaseEscrow:
		return sp.applyReleaseEscrow(sender, tx)
	case types.TxTypeInitializeMint:
		var p types.InitializeMintPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		_, err := sp.token.InitializeMint(sender, p.Symbol, p.Decimals, p.TransferFeeBps, p.MaxTransferFee)
		return err
	case types.TxTypeCreateTokenAccount:
		var p types.CreateTokenAccountPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		_, err := sp.token.CreateAssociatedAccount(p.Owner, p.Mint)
		return err
	case types.TxTypeMintTo:
		var p types.MintToPayload
		if err := tx.DecodePayload(&p); err != nil {
			return err
		}
		_, err := sp.token.MintTo(sender, p.Mint, p.Owner, p.Amount)
		return err
	case types.TxTypeTransfer:
		return sp.applyTransfer(sender, tx)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedTxType, tx.Type)
}

func (sp *StateProcessor) applyFundEscrow(sender [20]byte, tx *types.Transaction) error {
	var p types.FundEscrowPayload
	if err := tx.DecodePayload(&p); err != nil {
		return err
	}
	esc, err := sp.escrow.Fund(sender, escrow.FundParams{
		Reservation: p.Reservation,
		EscrowID:    p.EscrowID,
		Amount:      p.Amount,
		ReleaseDate: p.ReleaseDate,
		Mint:        p.Mint,
		Treasury:    p.Treasury,
	})
	if err != nil {
		observeEscrowFailure("fund", err)
		return err
	}
	sp.afterCommit = append(sp.afterCommit, func() {
		metrics.Escrow().ObserveFunded(esc.Amount, esc.PlatformFee)
	})
	return nil
}

func (sp *StateProcessor) applyReleaseEscrow(sender [20]byte, tx *types.Transaction) error {
	var p types.ReleaseEscrowPayload
	if err := tx.DecodePayload(&p); err != nil {
		return err
	}
	res, err := sp.escrow.Release(sender, escrow.ReleaseParams{
		Escrow:   p.Escrow,
		Mint:     p.Mint,
		Treasury: p.Treasury,
	})
	if err != nil {
		observeEscrowFailure("release", err)
		return err
	}
	sp.afterCommit = append(sp.afterCommit, func() {
		metrics.Escrow().ObserveReleased(res.Received)
	})
	return nil
}

func (sp *StateProcessor) applyTransfer(sender [20]byte, tx *types.Transaction) error {
	var p types.TransferPayload
	if err := tx.DecodePayload(&p); err != nil {
		return err
	}
	from, _, err := token.AssociatedAddress(sender, p.Mint)
	if err != nil {
		return err
	}
	to, err := sp.token.EnsureAssociatedAccount(p.To, p.Mint)
	if err != nil {
		return err
	}
	_, err = sp.token.TransferChecked(token.TransferParams{
		From:      from,
		To:        to.Address,
		Authority: sender,
		Mint:      p.Mint,
		Amount:    p.Amount,
		Decimals:  p.Decimals,
	})
	return err
}

func observeEscrowFailure(op string, err error) {
	kind := "internal"
	if k, ok := escrow.KindOf(err); ok {
		kind = k.String()
	}
	metrics.Escrow().ObserveFailure(op, kind)
}
