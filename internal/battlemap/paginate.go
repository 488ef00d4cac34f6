package battlemap

import (
	"context"

	. "github.com/eneris/battlemap/internal/logging"
)

// GetPagedRequest walks a cursor-paginated list endpoint until the server
// returns an empty page, accumulating response[itemsKey] in arrival order.
// The next cursor is the server-supplied lastID when present, otherwise the
// maximum id seen on the page. Termination relies on the server eventually
// sending an empty page; SetPageCap bounds the walk for callers that want a
// guarantee.
func (s *Session) GetPagedRequest(ctx context.Context, endpoint string, query map[string]interface{}, itemsKey, cursorPrefix string, startCursor int64) ([]interface{}, error) {
	var items []interface{}
	cursor := startCursor
	cursorKey := cursorPrefix + "LastID"

	// Snapshot once; a cap change mid-walk applies to the next walk.
	s.mu.Lock()
	maxPages := s.pageCap
	s.mu.Unlock()

	for page := 0; ; page++ {
		if maxPages > 0 && page >= maxPages {
			L_warn("paginate: page cap reached", "endpoint", endpoint, "pages", page, "items", len(items))
			return items, nil
		}

		payload := make(map[string]interface{}, len(query)+1)
		for k, v := range query {
			payload[k] = v
		}
		payload[cursorKey] = cursor

		resp, err := s.GetAPIData(ctx, endpoint, payload, "post")
		if err != nil {
			return nil, err
		}

		envelope, ok := resp.(map[string]interface{})
		if !ok {
			return nil, newError(KindRequestFailed, 0, "unexpected page shape from %s", endpoint)
		}

		pageItems, _ := envelope[itemsKey].([]interface{})
		if len(pageItems) == 0 {
			L_debug("paginate: done", "endpoint", endpoint, "pages", page, "items", len(items))
			return items, nil
		}
		items = append(items, pageItems...)

		cursor = nextCursor(envelope, pageItems, cursor)
	}
}

// SetPageCap bounds pagination to at most n pages per walk. Zero restores
// the unbounded default.
func (s *Session) SetPageCap(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageCap = n
}

// nextCursor picks the server-supplied lastID when the envelope carries one,
// falling back to the maximum item id on the page.
func nextCursor(envelope map[string]interface{}, pageItems []interface{}, current int64) int64 {
	if v, ok := envelope["lastID"].(float64); ok {
		return int64(v)
	}
	next := current
	for _, it := range pageItems {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := m["id"].(float64); ok && int64(id) > next {
			next = int64(id)
		}
	}
	return next
}
