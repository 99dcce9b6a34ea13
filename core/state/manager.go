package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"staychain/native/common"
	"staychain/storage"
)

// ErrRecordTooLarge is returned when an encoded record exceeds the maximum
// size declared for its type.
var ErrRecordTooLarge = errors.New("state: record exceeds declared size")

// Manager reads and writes typed ledger records. Each record lives under
// keccak256(prefix || address) and is RLP encoded. Creation is exclusive: a
// second create at the same address fails with common.ErrRecordExists.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on db. During transaction
// execution db is a storage.Overlay so a failed instruction leaves no trace.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func recordKey(prefix []byte, addr [20]byte) []byte {
	return ethcrypto.Keccak256(prefix, addr[:])
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(kvPrefix, key)
}

func encodeRecord(value interface{}, max int) ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return nil, err
	}
	if max > 0 && len(encoded) > max {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrRecordTooLarge, len(encoded), max)
	}
	return encoded, nil
}

func (m *Manager) put(prefix []byte, addr [20]byte, value interface{}, max int) error {
	encoded, err := encodeRecord(value, max)
	if err != nil {
		return err
	}
	return m.db.Put(recordKey(prefix, addr), encoded)
}

func (m *Manager) create(prefix []byte, addr [20]byte, value interface{}, max int) error {
	key := recordKey(prefix, addr)
	exists, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return common.ErrRecordExists
	}
	encoded, err := encodeRecord(value, max)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) get(prefix []byte, addr [20]byte, out interface{}) (bool, error) {
	data, err := m.db.Get(recordKey(prefix, addr))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

// KVPut stores the provided value under the supplied key using RLP encoding.
// The key is hashed with keccak256 so arbitrary keys share the record keyspace
// without colliding with it.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Nonce returns the next expected transaction nonce of addr.
func (m *Manager) Nonce(addr [20]byte) (uint64, error) {
	var nonce uint64
	if _, err := m.get(noncePrefix, addr, &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// SetNonce stores the next expected transaction nonce of addr.
func (m *Manager) SetNonce(addr [20]byte, nonce uint64) error {
	return m.put(noncePrefix, addr, nonce, 0)
}
