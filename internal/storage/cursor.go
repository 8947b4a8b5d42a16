package storage

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Keyset pagination cursors shared by the list endpoints of every backend:
// base64url of "{timestamp}|{id}", pointing at the last row of the previous
// page. Rows are ordered by (timestamp DESC, id DESC), so resumption takes
// everything strictly below the cursor pair.

// EncodeKeysetCursor builds the cursor for the row (timestamp, id).
func EncodeKeysetCursor(timestamp int64, id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("%d|%s", timestamp, id)))
}

// DecodeKeysetCursor parses a cursor produced by EncodeKeysetCursor.
// Returns ErrBadCursor on any malformed input.
func DecodeKeysetCursor(cursor string) (int64, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", ErrBadCursor, err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", fmt.Errorf("%w: missing separator", ErrBadCursor)
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: bad timestamp: %v", ErrBadCursor, err)
	}
	return ts, parts[1], nil
}
