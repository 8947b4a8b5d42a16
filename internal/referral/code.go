// Package referral issues and validates the short codes customers share
// with invitees.
package referral

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// CodeBytes is the number of digest bytes kept for a short code. 6 bytes of
// base58 yields 8-9 characters, short enough to share verbally.
const CodeBytes = 6

// NewCode derives a deterministic short code from the referring customer,
// the invitee address and an attempt counter. The same triple always yields
// the same code, so retried invite creation is idempotent; bumping attempt
// resolves store-level collisions.
func NewCode(customerID, inviteeEmail string, attempt int) string {
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", customerID, inviteeEmail, attempt)))
	return base58.Encode(digest[:CodeBytes])
}

// ValidCode reports whether a string is a plausible short code: base58
// payload of the expected length. It is a cheap pre-filter before the store
// lookup, not proof the code was issued.
func ValidCode(code string) bool {
	if code == "" {
		return false
	}
	raw, err := base58.Decode(code)
	if err != nil {
		return false
	}
	return len(raw) == CodeBytes
}
