// Package processor ingests, archives and replays payment processor events.
package processor

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Verification errors.
var (
	// ErrBadKey is returned when a provider key is not a valid ed25519 point.
	ErrBadKey = errors.New("invalid provider key")

	// ErrBadSignature is returned when a payload signature does not verify.
	ErrBadSignature = errors.New("signature verification failed")
)

// Verifier checks provider signatures over raw webhook bodies.
type Verifier struct {
	key ed25519.PublicKey
}

// NewVerifier parses a hex-encoded provider public key. The key must be a
// canonical point on the edwards25519 curve; a key that merely has the right
// length would make every later Verify fail in a confusing way.
func NewVerifier(hexKey string) (*Verifier, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrBadKey, ed25519.PublicKeySize, len(raw))
	}
	if !isOnCurve(raw) {
		return nil, fmt.Errorf("%w: not a curve point", ErrBadKey)
	}
	return &Verifier{key: ed25519.PublicKey(raw)}, nil
}

// Verify checks the hex signature over the raw payload bytes.
func (v *Verifier) Verify(payload []byte, signatureHex string) error {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("%w: bad signature encoding: %v", ErrBadSignature, err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrBadSignature, ed25519.SignatureSize, len(sig))
	}
	if !ed25519.Verify(v.key, payload, sig) {
		return ErrBadSignature
	}
	return nil
}

// isOnCurve checks that a 32-byte value decodes to a point on edwards25519.
func isOnCurve(point []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
