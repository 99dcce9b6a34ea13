package types

import (
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestTransactionSignAndRecover(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := &Transaction{ChainID: 7, Type: TxTypeReleaseEscrow, Nonce: 3}
	if err := tx.EncodePayload(ReleaseEscrowPayload{Escrow: [20]byte{1}}); err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	if err := tx.Sign(key); err != nil {
		t.Fatalf("sign: %v", err)
	}
	from, err := tx.FromRaw()
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if from != [20]byte(ethcrypto.PubkeyToAddress(key.PublicKey)) {
		t.Fatalf("recovered signer mismatch")
	}

	var payload ReleaseEscrowPayload
	if err := tx.DecodePayload(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Escrow != [20]byte{1} {
		t.Fatalf("payload mismatch: %+v", payload)
	}
}

func TestTransactionHashCoversChainID(t *testing.T) {
	a := &Transaction{ChainID: 1, Type: TxTypeTransfer, Nonce: 1, Data: []byte{0xc0}}
	b := &Transaction{ChainID: 2, Type: TxTypeTransfer, Nonce: 1, Data: []byte{0xc0}}
	ha, err := a.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	hb, err := b.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if string(ha) == string(hb) {
		t.Fatalf("chain id must change the hash")
	}
}

func TestUnsignedTransactionHasNoSender(t *testing.T) {
	tx := &Transaction{Type: TxTypeFundEscrow}
	if _, err := tx.From(); err != ErrMissingSignature {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}

func TestTxTypeNames(t *testing.T) {
	if TxTypeFundEscrow.String() != "fund_escrow" {
		t.Fatalf("unexpected name %q", TxTypeFundEscrow.String())
	}
	if TxType(0xff).Valid() {
		t.Fatalf("0xff must not be valid")
	}
}
