// Package keeper drives time-gated escrow releases. It projects escrow events
// from the node's event log into a local table and submits ReleaseEscrow, signed
// by the platform authority, once an escrow's release date has passed.
package keeper

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staychain/core/types"
	"staychain/crypto"
	"staychain/native/escrow"
	"staychain/observability/metrics"
	"staychain/rpc"
	"staychain/services/releasekeeper/models"
)

const (
	cursorName  = "escrow-events"
	eventPrefix = "escrow."
	maxErrorLen = 512
)

// Submission outcomes.
const (
	OutcomeReleased       = "released"
	OutcomeAlreadySettled = "already_settled"
	OutcomeNotDue         = "not_due"
	OutcomeError          = "error"
)

// Node is the subset of the node RPC the keeper uses. *rpc.Client satisfies it.
type Node interface {
	ListEvents(ctx context.Context, typePrefix string, afterSeq int64, limit int) ([]rpc.EventRecordJSON, int64, error)
	Nonce(ctx context.Context, addr string) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) (*rpc.ReceiptJSON, error)
	Call(ctx context.Context, method string, param interface{}, out interface{}) error
}

type Config struct {
	ChainID      uint64
	Authority    *crypto.PrivateKey
	PollInterval time.Duration
	// MaxBackoff caps the delay before an escrow whose release failed is
	// submitted again.
	MaxBackoff   time.Duration
	BatchSize    int
	Logger       *slog.Logger
	Now          func() time.Time
}

type Keeper struct {
	db      *gorm.DB
	node    Node
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.KeeperMetrics

	mint     [20]byte
	treasury [20]byte
}

func New(db *gorm.DB, node Node, cfg Config) (*Keeper, error) {
	if db == nil {
		return nil, errors.New("keeper: database required")
	}
	if node == nil {
		return nil, errors.New("keeper: node client required")
	}
	if cfg.Authority == nil {
		return nil, errors.New("keeper: authority key required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Keeper{
		db:      db,
		node:    node,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "releasekeeper")),
		metrics: metrics.Keeper(),
	}, nil
}

// Run ticks until ctx is cancelled. Errors are logged and retried on the next
// tick.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := k.Tick(ctx); err != nil && ctx.Err() == nil {
			k.logger.Warn("keeper tick failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick syncs new events and then releases every due escrow.
func (k *Keeper) Tick(ctx context.Context) error {
	_, err := k.Sync(ctx)
	k.metrics.ObservePoll(err)
	if err != nil {
		return fmt.Errorf("sync events: %w", err)
	}
	if _, err := k.ReleaseDue(ctx); err != nil {
		return fmt.Errorf("release due escrows: %w", err)
	}
	return nil
}

// Sync consumes escrow events after the stored cursor and returns how many
// were applied. Each page is applied with its cursor update in one database
// transaction. Escrows funded in any asset other than the node's payment mint
// are not projected: the platform treasury cannot release them.
func (k *Keeper) Sync(ctx context.Context) (int, error) {
	mint, _, err := k.paymentAsset(ctx)
	if err != nil {
		return 0, err
	}
	paymentMint := hex.EncodeToString(mint[:])
	db := k.db.WithContext(ctx)
	var cursor models.Cursor
	if err := db.Where(models.Cursor{Name: cursorName}).FirstOrCreate(&cursor).Error; err != nil {
		return 0, err
	}
	processed := 0
	for {
		events, next, err := k.node.ListEvents(ctx, eventPrefix, cursor.Seq, k.cfg.BatchSize)
		if err != nil {
			return processed, err
		}
		if len(events) == 0 {
			return processed, nil
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			for _, evt := range events {
				if err := k.applyEvent(tx, evt, paymentMint); err != nil {
					return err
				}
			}
			return tx.Model(&models.Cursor{}).Where("name = ?", cursorName).Update("seq", next).Error
		})
		if err != nil {
			return processed, err
		}
		cursor.Seq = next
		processed += len(events)
		k.metrics.SetCursor(next)
		if len(events) < k.cfg.BatchSize {
			return processed, nil
		}
	}
}

func (k *Keeper) applyEvent(tx *gorm.DB, evt rpc.EventRecordJSON, paymentMint string) error {
	switch evt.Type {
	case escrow.EventTypeEscrowFunded, escrow.EventTypeEscrowReleased:
	default:
		return nil
	}
	row, err := escrowFromEvent(evt)
	if err != nil {
		k.logger.Warn("skipping malformed escrow event", slog.Int64("seq", evt.Seq), slog.Any("error", err))
		return nil
	}
	if row.ReleaseDate == math.MaxInt64 {
		k.logger.Warn("escrow release date beyond keeper range",
			slog.String("escrow", row.Address), slog.String("releaseDate", evt.Attributes["releaseDate"]))
	}
	if evt.Type == escrow.EventTypeEscrowFunded {
		if row.Mint != paymentMint {
			k.logger.Info("ignoring escrow funded in foreign mint",
				slog.String("escrow", row.Address), slog.String("mint", row.Mint))
			return nil
		}
		row.Status = models.StatusFunded
		row.FundedSeq = evt.Seq
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	}

	res := tx.Model(&models.Escrow{}).Where("address = ?", row.Address).Updates(map[string]interface{}{
		"status":       models.StatusReleased,
		"released_seq": evt.Seq,
		"release_tx":   evt.TxHash,
		"last_error":   "",
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// Released before the keeper saw it funded.
	row.Status = models.StatusReleased
	row.ReleasedSeq = evt.Seq
	row.ReleaseTx = evt.TxHash
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func escrowFromEvent(evt rpc.EventRecordJSON) (models.Escrow, error) {
	attrs := evt.Attributes
	row := models.Escrow{
		Address:     strings.ToLower(attrs["escrow"]),
		Reservation: strings.ToLower(attrs["reservation"]),
		Guest:       strings.ToLower(attrs["guest"]),
		Host:        strings.ToLower(attrs["host"]),
		Mint:        strings.ToLower(attrs["mint"]),
	}
	if _, err := decodeAddress(row.Address); err != nil {
		return row, fmt.Errorf("escrow: %w", err)
	}
	var err error
	if row.EscrowID, err = strconv.ParseUint(attrs["escrowId"], 10, 64); err != nil {
		return row, fmt.Errorf("escrowId: %w", err)
	}
	if row.Amount, err = strconv.ParseUint(attrs["amount"], 10, 64); err != nil {
		return row, fmt.Errorf("amount: %w", err)
	}
	if row.PlatformFee, err = strconv.ParseUint(attrs["platformFee"], 10, 64); err != nil {
		return row, fmt.Errorf("platformFee: %w", err)
	}
	releaseDate, err := strconv.ParseUint(attrs["releaseDate"], 10, 64)
	if err != nil {
		return row, fmt.Errorf("releaseDate: %w", err)
	}
	// Dates past the int64 column range are never due in practice.
	if releaseDate > math.MaxInt64 {
		releaseDate = math.MaxInt64
	}
	row.ReleaseDate = int64(releaseDate)
	return row, nil
}

// ReleaseDue submits ReleaseEscrow for funded escrows whose release date has
// passed, oldest first, and returns how many the node accepted. Escrows that
// failed recently wait out their backoff so they cannot fill every batch.
func (k *Keeper) ReleaseDue(ctx context.Context) (int, error) {
	db := k.db.WithContext(ctx)
	now := k.cfg.Now().Unix()
	var due []models.Escrow
	err := db.Where("status = ? AND release_date <= ? AND next_attempt_at <= ?", models.StatusFunded, now, now).
		Order("release_date asc").
		Limit(k.cfg.BatchSize).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	released := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return released, err
		}
		outcome, err := k.release(ctx, &due[i])
		if err != nil {
			return released, err
		}
		if outcome == OutcomeReleased {
			released++
		}
	}

	var pending int64
	if err := db.Model(&models.Escrow{}).Where("status = ?", models.StatusFunded).Count(&pending).Error; err != nil {
		return released, err
	}
	k.metrics.SetPending(int(pending))
	return released, nil
}

// release submits one escrow and records the outcome. The returned error is a
// database failure; node rejections are outcomes.
func (k *Keeper) release(ctx context.Context, row *models.Escrow) (string, error) {
	receipt, submitErr := k.submitRelease(ctx, row)

	outcome := OutcomeReleased
	updates := map[string]interface{}{}
	submission := models.Submission{Escrow: row.Address}
	switch {
	case submitErr == nil:
		updates["status"] = models.StatusReleased
		updates["release_tx"] = receipt.TxHash
		updates["last_error"] = ""
		submission.TxHash = receipt.TxHash
	case rpc.ErrorCode(submitErr) == escrow.ErrEscrowNotFunded.Code:
		outcome = OutcomeAlreadySettled
		updates["status"] = models.StatusReleased
		updates["last_error"] = ""
	case rpc.ErrorCode(submitErr) == escrow.ErrReleaseNotYetAllowed.Code:
		outcome = OutcomeNotDue
		updates["last_error"] = truncate(submitErr.Error())
	default:
		outcome = OutcomeError
		updates["attempts"] = gorm.Expr("attempts + 1")
		updates["next_attempt_at"] = k.cfg.Now().Add(k.backoff(row.Attempts + 1)).Unix()
		updates["last_error"] = truncate(submitErr.Error())
	}
	submission.Outcome = outcome
	if submitErr != nil {
		submission.Detail = truncate(submitErr.Error())
	}

	err := k.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Escrow{}).Where("address = ?", row.Address).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Create(&submission).Error
	})
	if err != nil {
		return outcome, err
	}
	k.metrics.ObserveSubmission(outcome)

	logAttrs := []any{slog.String("escrow", row.Address), slog.String("outcome", outcome)}
	if submitErr != nil {
		logAttrs = append(logAttrs, slog.Any("error", submitErr))
	}
	if outcome == OutcomeError {
		k.logger.Warn("escrow release failed", logAttrs...)
	} else {
		k.logger.Info("escrow release submitted", logAttrs...)
	}
	return outcome, nil
}

func (k *Keeper) submitRelease(ctx context.Context, row *models.Escrow) (*rpc.ReceiptJSON, error) {
	escrowAddr, err := decodeAddress(row.Address)
	if err != nil {
		return nil, err
	}
	mint, err := decodeAddress(row.Mint)
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}
	_, treasury, err := k.paymentAsset(ctx)
	if err != nil {
		return nil, err
	}
	authority := k.cfg.Authority.PubKey().Address()
	nonce, err := k.node.Nonce(ctx, authority.String())
	if err != nil {
		return nil, err
	}
	tx := &types.Transaction{ChainID: k.cfg.ChainID, Type: types.TxTypeReleaseEscrow, Nonce: nonce}
	if err := tx.EncodePayload(types.ReleaseEscrowPayload{Escrow: escrowAddr, Mint: mint, Treasury: treasury}); err != nil {
		return nil, err
	}
	if err := tx.Sign(k.cfg.Authority.PrivateKey); err != nil {
		return nil, err
	}
	return k.node.SendTransaction(ctx, tx)
}

// backoff doubles the poll interval per failed attempt up to MaxBackoff.
func (k *Keeper) backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	shift := attempts - 1
	if shift > 16 {
		shift = 16
	}
	delay := k.cfg.PollInterval << uint(shift)
	if delay <= 0 || delay > k.cfg.MaxBackoff {
		return k.cfg.MaxBackoff
	}
	return delay
}

// paymentAsset asks the node for the bootstrapped mint and treasury once.
func (k *Keeper) paymentAsset(ctx context.Context) (mint, treasury [20]byte, err error) {
	if k.treasury != ([20]byte{}) {
		return k.mint, k.treasury, nil
	}
	var asset rpc.PaymentAssetJSON
	if err := k.node.Call(ctx, "token_getPaymentAsset", nil, &asset); err != nil {
		return mint, treasury, fmt.Errorf("payment asset: %w", err)
	}
	mintAddr, err := crypto.DecodeAddress(asset.Mint)
	if err != nil {
		return mint, treasury, fmt.Errorf("payment mint: %w", err)
	}
	treasuryAddr, err := crypto.DecodeAddress(asset.Treasury)
	if err != nil {
		return mint, treasury, fmt.Errorf("payment treasury: %w", err)
	}
	k.mint, k.treasury = mintAddr.Raw(), treasuryAddr.Raw()
	return k.mint, k.treasury, nil
}

func decodeAddress(raw string) ([20]byte, error) {
	var out [20]byte
	decoded, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return out, err
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("address %q is not 20 bytes", raw)
	}
	copy(out[:], decoded)
	return out, nil
}

func truncate(s string) string {
	if len(s) <= maxErrorLen {
		return s
	}
	return s[:maxErrorLen]
}
