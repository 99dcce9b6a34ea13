package types

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// TxType defines the purpose of a transaction.
type TxType byte

const (
	TxTypeInitializeHost        TxType = 0x01
	TxTypeInitializeGuest       TxType = 0x02
	TxTypeInitializeListing     TxType = 0x03
	TxTypeInitializeReservation TxType = 0x04
	TxTypeFundEscrow            TxType = 0x10
	TxTypeReleaseEscrow         TxType = 0x11
	TxTypeInitializeMint        TxType = 0x20
	TxTypeCreateTokenAccount    TxType = 0x21
	TxTypeMintTo                TxType = 0x22
	TxTypeTransfer              TxType = 0x23
)

var txTypeNames = map[TxType]string{
	TxTypeInitializeHost:        "initialize_host",
	TxTypeInitializeGuest:       "initialize_guest",
	TxTypeInitializeListing:     "initialize_listing",
	TxTypeInitializeReservation: "initialize_reservation",
	TxTypeFundEscrow:            "fund_escrow",
	TxTypeReleaseEscrow:         "release_escrow",
	TxTypeInitializeMint:        "initialize_mint",
	TxTypeCreateTokenAccount:    "create_token_account",
	TxTypeMintTo:                "mint_to",
	TxTypeTransfer:              "transfer",
}

// String returns the snake_case instruction name.
func (t TxType) String() string {
	if name, ok := txTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02x)", byte(t))
}

// Valid reports whether t is a known instruction.
func (t TxType) Valid() bool {
	_, ok := txTypeNames[t]
	return ok
}

var (
	// ErrMissingSignature is returned by From for unsigned transactions.
	ErrMissingSignature = errors.New("transaction: missing signature")
	// ErrInvalidPayload is returned when Data does not decode as the
	// payload of Type.
	ErrInvalidPayload = errors.New("transaction: invalid payload")
)

// Transaction is a signed ledger instruction. Data carries the RLP encoded
// payload for Type.
type Transaction struct {
	ChainID uint64 `json:"chainId"`
	Type    TxType `json:"type"`
	Nonce   uint64 `json:"nonce"`
	Data    []byte `json:"data"`

	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
	V *big.Int `json:"v"`

	from []byte
}

type txSigningData struct {
	ChainID uint64
	Type    uint8
	Nonce   uint64
	Data    []byte
}

// Hash returns keccak256 over the RLP encoding of the signed fields.
func (tx *Transaction) Hash() ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(txSigningData{
		ChainID: tx.ChainID,
		Type:    uint8(tx.Type),
		Nonce:   tx.Nonce,
		Data:    tx.Data,
	})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// Sign attaches a secp256k1 signature over Hash.
func (tx *Transaction) Sign(privKey *ecdsa.PrivateKey) error {
	hash, err := tx.Hash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash, privKey)
	if err != nil {
		return err
	}
	tx.R = new(big.Int).SetBytes(sig[:32])
	tx.S = new(big.Int).SetBytes(sig[32:64])
	tx.V = new(big.Int).SetBytes([]byte{sig[64] + 27})
	tx.from = nil
	return nil
}

// From recovers the signer address.
func (tx *Transaction) From() ([]byte, error) {
	if tx.from != nil {
		return tx.from, nil
	}
	if tx.R == nil || tx.S == nil || tx.V == nil {
		return nil, ErrMissingSignature
	}
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	rBytes, sBytes := tx.R.Bytes(), tx.S.Bytes()
	if len(rBytes) > 32 || len(sBytes) > 32 || tx.V.Uint64() < 27 {
		return nil, errors.New("transaction: malformed signature")
	}
	sig := make([]byte, 65)
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = byte(tx.V.Uint64() - 27)
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	tx.from = crypto.PubkeyToAddress(*pubKey).Bytes()
	return tx.from, nil
}

// FromRaw is From returning the fixed-size address.
func (tx *Transaction) FromRaw() ([20]byte, error) {
	var out [20]byte
	from, err := tx.From()
	if err != nil {
		return out, err
	}
	copy(out[:], from)
	return out, nil
}

// EncodePayload RLP-encodes v into tx.Data.
func (tx *Transaction) EncodePayload(v interface{}) error {
	data, err := rlp.EncodeToBytes(v)
	if err != nil {
		return err
	}
	tx.Data = data
	return nil
}

// DecodePayload decodes tx.Data into v.
func (tx *Transaction) DecodePayload(v interface{}) error {
	if len(tx.Data) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidPayload)
	}
	if err := rlp.DecodeBytes(tx.Data, v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidPayload, tx.Type, err)
	}
	return nil
}
