package processor

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func testKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	return pub, priv
}

func TestVerifier_ValidSignature(t *testing.T) {
	pub, priv := testKeypair(t)

	v, err := NewVerifier(hex.EncodeToString(pub))
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	payload := []byte(`{"amount":1200,"currency":"usd"}`)
	sig := ed25519.Sign(priv, payload)

	if err := v.Verify(payload, hex.EncodeToString(sig)); err != nil {
		t.Errorf("Expected valid signature to verify, got %v", err)
	}
}

func TestVerifier_RejectsTamperedPayload(t *testing.T) {
	pub, priv := testKeypair(t)
	v, _ := NewVerifier(hex.EncodeToString(pub))

	sig := ed25519.Sign(priv, []byte(`{"amount":1200}`))
	err := v.Verify([]byte(`{"amount":9999}`), hex.EncodeToString(sig))
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("Expected ErrBadSignature for tampered payload, got %v", err)
	}
}

func TestVerifier_RejectsMalformedSignature(t *testing.T) {
	pub, _ := testKeypair(t)
	v, _ := NewVerifier(hex.EncodeToString(pub))

	cases := []string{"", "zz", "deadbeef", hex.EncodeToString(make([]byte, 32))}
	for _, sig := range cases {
		if err := v.Verify([]byte("payload"), sig); !errors.Is(err, ErrBadSignature) {
			t.Errorf("Expected ErrBadSignature for %q, got %v", sig, err)
		}
	}
}

func TestNewVerifier_RejectsBadKeys(t *testing.T) {
	cases := []struct {
		name string
		key  string
	}{
		{"empty", ""},
		{"not hex", strings.Repeat("zz", 32)},
		{"short", "deadbeef"},
		{"not on curve", strings.Repeat("ff", 32)},
	}
	for _, tc := range cases {
		if _, err := NewVerifier(tc.key); !errors.Is(err, ErrBadKey) {
			t.Errorf("%s: expected ErrBadKey, got %v", tc.name, err)
		}
	}
}
