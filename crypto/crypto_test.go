package crypto

import (
	"path/filepath"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Raw() != addr.Raw() {
		t.Fatalf("decoded address mismatch")
	}
}

func TestDecodeAddressRejectsForeignPrefix(t *testing.T) {
	if _, err := DecodeAddress("bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"); err == nil {
		t.Fatalf("expected prefix error")
	}
}

func TestDeriveAddressDeterministic(t *testing.T) {
	owner := make([]byte, 20)
	owner[3] = 7
	a1, bump1, err := DeriveAddress([]byte("GUEST_SEED"), owner)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	a2, bump2, err := DeriveAddress([]byte("GUEST_SEED"), owner)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a1 != a2 || bump1 != bump2 {
		t.Fatalf("derivation not deterministic")
	}
	if a1[0]&0x80 != 0 {
		t.Fatalf("canonical address must have high bit clear")
	}
	ok, err := VerifyDerived(a1, bump1, []byte("GUEST_SEED"), owner)
	if err != nil || !ok {
		t.Fatalf("verify failed: ok=%v err=%v", ok, err)
	}
	other, _, err := DeriveAddress([]byte("HOST_SEED"), owner)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if other == a1 {
		t.Fatalf("different seeds must derive different addresses")
	}
}

func TestDeriveAddressSeedLimits(t *testing.T) {
	if _, _, err := DeriveAddress(make([]byte, MaxSeedLength+1)); err == nil {
		t.Fatalf("expected seed length error")
	}
	seeds := make([][]byte, MaxSeeds+1)
	if _, _, err := DeriveAddress(seeds...); err == nil {
		t.Fatalf("expected seed count error")
	}
}

func TestUint64SeedLittleEndian(t *testing.T) {
	seed := Uint64Seed(0x0102)
	if seed[0] != 0x02 || seed[1] != 0x01 || len(seed) != 8 {
		t.Fatalf("unexpected encoding %x", seed)
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "platform.json")
	if err := SaveToKeystore(path, key, "pass"); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "pass")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.PubKey().Address().Raw() != key.PubKey().Address().Raw() {
		t.Fatalf("loaded key mismatch")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected decrypt error")
	}
}
