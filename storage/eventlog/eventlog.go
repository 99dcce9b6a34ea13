// Package eventlog persists the events emitted by committed transactions so
// that RPC clients and off-ledger services can page through history.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"lukechampine.com/blake3"

	"staychain/core/types"
)

// DefaultLimit caps List when the caller does not supply a limit.
const DefaultLimit = 100

// MaxLimit is the largest page List will return.
const MaxLimit = 1000

// Record is a persisted event together with its position in the log.
type Record struct {
	Seq        int64             `json:"seq"`
	TxHash     string            `json:"txHash"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Digest     string            `json:"digest"`
	RecordedAt int64             `json:"recordedAt"`
}

// Filter narrows List results.
type Filter struct {
	TypePrefix string
	AfterSeq   int64
	Limit      int
}

// Store is an append-only SQLite event log.
type Store struct {
	db    *sql.DB
	nowFn func() time.Time
}

// Open creates or opens the log at path. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("eventlog: path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps :memory: databases coherent and serialises
	// writers the same way the ledger does.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, nowFn: time.Now}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS events (
            seq INTEGER PRIMARY KEY AUTOINCREMENT,
            tx_hash TEXT NOT NULL,
            type TEXT NOT NULL,
            attributes TEXT NOT NULL,
            digest TEXT NOT NULL,
            recorded_at INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS events_type_seq ON events(type, seq);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("eventlog: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append stores evts under txHash in a single SQL transaction.
func (s *Store) Append(ctx context.Context, txHash []byte, evts []types.Event) error {
	if len(evts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	hash := hex.EncodeToString(txHash)
	now := s.nowFn().Unix()
	for _, evt := range evts {
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("eventlog: encode attributes: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (tx_hash, type, attributes, digest, recorded_at) VALUES (?, ?, ?, ?, ?)`,
			hash, evt.Type, string(attrs), Digest(evt), now,
		); err != nil {
			return fmt.Errorf("eventlog: insert: %w", err)
		}
	}
	return tx.Commit()
}

// List returns events in sequence order matching filter.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, tx_hash, type, attributes, digest, recorded_at FROM events
         WHERE seq > ? AND substr(type, 1, ?) = ? ORDER BY seq ASC LIMIT ?`,
		filter.AfterSeq, len(filter.TypePrefix), filter.TypePrefix, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var (
			rec   Record
			attrs string
		)
		if err := rows.Scan(&rec.Seq, &rec.TxHash, &rec.Type, &attrs, &rec.Digest, &rec.RecordedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(attrs), &rec.Attributes); err != nil {
			return nil, fmt.Errorf("eventlog: decode attributes: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Digest returns the blake3 fingerprint of an event: its type followed by the
// attributes in key order.
func Digest(evt types.Event) string {
	keys := make([]string, 0, len(evt.Attributes))
	for k := range evt.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(evt.Type))
	for _, k := range keys {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{'='})
		_, _ = h.Write([]byte(evt.Attributes[k]))
	}
	return hex.EncodeToString(h.Sum(nil))
}
