package timeline

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"

	"loyalty-service/internal/observability"
)

// CursorBundle is the resumable pagination state of one timeline page: the
// upstream per-source cursors, each nullable. A nil field means that source
// has no further data or was not requested. Callers must treat the encoded
// form as opaque and pass it back verbatim.
type CursorBundle struct {
	Ledger      *string `json:"ledger"`
	Redemptions *string `json:"redemptions"`
	Referrals   *string `json:"referrals"`
}

// EncodeCursor serializes a bundle to a base64url token safe for query
// strings. Returns nil for a nil bundle.
func EncodeCursor(b *CursorBundle) *string {
	if b == nil {
		return nil
	}
	data, err := json.Marshal(b)
	if err != nil {
		// CursorBundle marshals unconditionally; keep the signature total.
		return nil
	}
	token := base64.RawURLEncoding.EncodeToString(data)
	return &token
}

// DecodeCursor parses an encoded cursor token. Empty input returns nil.
// Malformed input fails soft: a warning is logged and nil is returned, which
// restarts pagination from the beginning. A corrupted bookmark must never
// crash the caller.
func DecodeCursor(token string, logger *log.Logger) *CursorBundle {
	if token == "" {
		return nil
	}
	bundle, err := parseCursor(token)
	if err != nil {
		observability.RecordCursorDecodeFailure()
		if logger != nil {
			logger.Printf("WARN: invalid timeline cursor, restarting pagination: %v", err)
		}
		return nil
	}
	return bundle
}

// parseCursor is the strict counterpart of DecodeCursor.
func parseCursor(token string) (*CursorBundle, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("decode cursor token: %w", err)
	}
	var bundle CursorBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("unmarshal cursor bundle: %w", err)
	}
	return &bundle, nil
}

// encodeResumeToken builds the per-item resumption token recorded after each
// consumed entry: base64url of "{timestamp}|{id}". It is distinct from the
// upstream page cursors and never leaves a single FetchTimeline call.
func encodeResumeToken(occurredAt int64, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d|%s", occurredAt, id)))
}
