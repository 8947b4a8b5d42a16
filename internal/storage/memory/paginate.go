package memory

import (
	"loyalty-service/internal/storage"
)

// paginate applies a keyset cursor to items already sorted by
// (timestamp DESC, id DESC) and cuts one page. key extracts the sort pair
// of an item. The returned cursor is nil when no rows remain.
func paginate[T any](items []T, cursor *string, limit int, key func(T) (int64, string)) ([]T, *string, error) {
	start := 0
	if cursor != nil {
		ts, id, err := storage.DecodeKeysetCursor(*cursor)
		if err != nil {
			return nil, nil, err
		}
		for start < len(items) {
			its, iid := key(items[start])
			if its < ts || (its == ts && iid < id) {
				break
			}
			start++
		}
	}

	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	page := items[start:end]

	var next *string
	if end < len(items) && len(page) > 0 {
		ts, id := key(page[len(page)-1])
		token := storage.EncodeKeysetCursor(ts, id)
		next = &token
	}
	return page, next, nil
}
