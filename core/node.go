package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"staychain/core/types"
	"staychain/native/common"
	"staychain/observability/metrics"
	"staychain/storage"
	"staychain/storage/eventlog"
)

// EventLog persists the events of committed transactions.
type EventLog interface {
	Append(ctx context.Context, txHash []byte, evts []types.Event) error
	List(ctx context.Context, filter eventlog.Filter) ([]eventlog.Record, error)
}

// Options configure a Node.
type Options struct {
	ChainID           uint64
	PlatformAuthority [20]byte
	PausedModules     []string
	EventLog          EventLog
	Logger            *slog.Logger
	Now               func() time.Time
}

// Receipt describes a committed transaction.
type Receipt struct {
	TxHash []byte
	Type   types.TxType
	Sender [20]byte
	Nonce  uint64
	Events []types.Event
}

// Node is the central controller, wiring storage, the native modules and the
// event log together. Transactions are applied one at a time.
type Node struct {
	db        storage.Database
	chainID   uint64
	authority [20]byte
	pauses    common.PauseView
	eventLog  EventLog
	logger    *slog.Logger
	tracer    trace.Tracer
	nowFn     func() time.Time

	stateMu     sync.Mutex
	paymentMint [20]byte
	treasury    [20]byte
}

// NewNode creates a node over db.
func NewNode(db storage.Database, opts Options) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if opts.PlatformAuthority == ([20]byte{}) {
		return nil, fmt.Errorf("core: platform authority required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	nowFn := opts.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	n := &Node{
		db:        db,
		chainID:   opts.ChainID,
		authority: opts.PlatformAuthority,
		pauses:    common.NewPauseSet(opts.PausedModules...),
		eventLog:  opts.EventLog,
		logger:    logger.With(slog.String("component", "core")),
		tracer:    otel.Tracer("staychain/core"),
		nowFn:     nowFn,
	}
	if err := n.loadBootstrap(); err != nil {
		return nil, err
	}
	return n, nil
}

// ChainID returns the chain id transactions must carry.
func (n *Node) ChainID() uint64 { return n.chainID }

// PlatformAuthority returns the only identity allowed to release escrows.
func (n *Node) PlatformAuthority() [20]byte { return n.authority }

func (n *Node) newStateProcessor(db storage.Database) *StateProcessor {
	return newStateProcessor(db, processorConfig{
		chainID:   n.chainID,
		authority: n.authority,
		pauses:    n.pauses,
		now:       func() int64 { return n.nowFn().Unix() },
	})
}

// ApplyTransaction executes tx atomically. Writes are buffered in an overlay
// and events in a buffer; both are dropped if any step fails, otherwise the
// overlay is committed in one batch and the events are appended to the log.
func (n *Node) ApplyTransaction(ctx context.Context, tx *types.Transaction) (*Receipt, error) {
	if tx == nil {
		return nil, ErrNilTransaction
	}
	ctx, span := n.tracer.Start(ctx, "core.ApplyTransaction",
		trace.WithAttributes(attribute.String("tx.type", tx.Type.String())))
	defer span.End()

	hash, err := tx.Hash()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	overlay := storage.NewOverlay(n.db)
	sp := n.newStateProcessor(overlay)
	sender, err := sp.ApplyTransaction(tx)
	if err != nil {
		overlay.Discard()
		sp.events.Reset()
		metrics.Escrow().ObserveTransaction(tx.Type.String(), false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		n.logger.Debug("transaction rejected",
			slog.String("txHash", hex.EncodeToString(hash)),
			slog.String("type", tx.Type.String()),
			slog.String("error", err.Error()))
		return nil, err
	}
	if err := overlay.Commit(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("core: commit: %w", err)
	}
	for _, fn := range sp.afterCommit {
		fn()
	}
	metrics.Escrow().ObserveTransaction(tx.Type.String(), true)

	evts := sp.events.Drain()
	if n.eventLog != nil {
		if err := n.eventLog.Append(ctx, hash, evts); err != nil {
			// State is already committed; the log is a derived view.
			n.logger.Error("append events failed",
				slog.String("txHash", hex.EncodeToString(hash)),
				slog.String("error", err.Error()))
		}
	}
	span.SetAttributes(attribute.Int("tx.events", len(evts)))
	n.logger.Info("transaction applied",
		slog.String("txHash", hex.EncodeToString(hash)),
		slog.String("type", tx.Type.String()),
		slog.Int("events", len(evts)))

	return &Receipt{
		TxHash: hash,
		Type:   tx.Type,
		Sender: sender,
		Nonce:  tx.Nonce,
		Events: evts,
	}, nil
}

// ListEvents pages through the persisted event log.
func (n *Node) ListEvents(ctx context.Context, filter eventlog.Filter) ([]eventlog.Record, error) {
	if n.eventLog == nil {
		return nil, ErrEventLogUnavailable
	}
	return n.eventLog.List(ctx, filter)
}
