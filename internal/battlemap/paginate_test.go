package battlemap

import (
	"context"
	"testing"
)

// pagedSession builds a session whose relay transport serves scripted pages
// keyed by cursor value.
func pagedSession(t *testing.T, pages map[int64]map[string]interface{}, calls *[]int64) *Session {
	t.Helper()

	driver := newFakeDriver()
	driver.setVisible(selAuthMarker, true)
	driver.evalFn = func(js string, args ...interface{}) (interface{}, error) {
		payload, _ := args[2].(map[string]interface{})
		cursor, _ := payload["baseLastID"].(int64)
		*calls = append(*calls, cursor)

		page, ok := pages[cursor]
		if !ok {
			page = map[string]interface{}{"bases": []interface{}{}}
		}
		return relayEnvelope(200, page, ""), nil
	}

	s := newTestSession(driver)
	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(s.Exit)
	return s
}

func rows(ids ...int) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = map[string]interface{}{"id": float64(id)}
	}
	return out
}

func TestGetPagedRequest_AccumulatesUntilEmptyPage(t *testing.T) {
	var calls []int64
	s := pagedSession(t, map[int64]map[string]interface{}{
		0: {"bases": rows(1, 2, 3), "lastID": float64(3)},
		3: {"bases": rows(4, 5), "lastID": float64(5)},
		5: {"bases": []interface{}{}},
	}, &calls)

	items, err := s.GetPagedRequest(context.Background(), "/bases", nil, "bases", "base", 0)
	if err != nil {
		t.Fatalf("GetPagedRequest: %v", err)
	}

	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
	for i, want := range []float64{1, 2, 3, 4, 5} {
		m := items[i].(map[string]interface{})
		if m["id"] != want {
			t.Errorf("items[%d].id = %v, want %v (arrival order broken)", i, m["id"], want)
		}
	}

	if len(calls) != 3 {
		t.Errorf("calls = %d, want 3 (no fourth call after the empty page)", len(calls))
	}
}

func TestGetPagedRequest_MaxIDFallback(t *testing.T) {
	// No server-supplied lastID: the cursor advances to the page's max id.
	var calls []int64
	s := pagedSession(t, map[int64]map[string]interface{}{
		0: {"bases": rows(9, 4, 7)},
		9: {"bases": []interface{}{}},
	}, &calls)

	items, err := s.GetPagedRequest(context.Background(), "/bases", nil, "bases", "base", 0)
	if err != nil {
		t.Fatalf("GetPagedRequest: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("items = %d, want 3", len(items))
	}
	if len(calls) != 2 || calls[1] != 9 {
		t.Errorf("calls = %v, want second cursor 9", calls)
	}
}

func TestGetPagedRequest_StartCursor(t *testing.T) {
	var calls []int64
	s := pagedSession(t, map[int64]map[string]interface{}{
		100: {"bases": rows(101), "lastID": float64(101)},
		101: {"bases": []interface{}{}},
	}, &calls)

	items, err := s.GetPagedRequest(context.Background(), "/bases", nil, "bases", "base", 100)
	if err != nil {
		t.Fatalf("GetPagedRequest: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("items = %d, want 1", len(items))
	}
	if calls[0] != 100 {
		t.Errorf("first cursor = %d, want 100", calls[0])
	}
}

func TestGetPagedRequest_PageCap(t *testing.T) {
	// A server that never sends an empty page starves the walk; the cap
	// bounds it.
	var calls []int64
	s := pagedSession(t, map[int64]map[string]interface{}{
		0: {"bases": rows(1), "lastID": float64(0)}, // cursor never advances
	}, &calls)
	s.SetPageCap(4)

	items, err := s.GetPagedRequest(context.Background(), "/bases", nil, "bases", "base", 0)
	if err != nil {
		t.Fatalf("GetPagedRequest: %v", err)
	}
	if len(calls) != 4 {
		t.Errorf("calls = %d, want 4 (capped)", len(calls))
	}
	if len(items) != 4 {
		t.Errorf("items = %d, want 4", len(items))
	}
}

func TestSetPageCap_ConcurrentWithWalk(t *testing.T) {
	// The walk snapshots the cap once; a caller adjusting it mid-walk must
	// not race the reader. Meaningful under the race detector.
	var calls []int64
	s := pagedSession(t, map[int64]map[string]interface{}{
		0: {"bases": rows(1, 2), "lastID": float64(2)},
		2: {"bases": rows(3), "lastID": float64(3)},
		3: {"bases": []interface{}{}},
	}, &calls)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s.SetPageCap(1000)
		}
	}()

	items, err := s.GetPagedRequest(context.Background(), "/bases", nil, "bases", "base", 0)
	<-done
	if err != nil {
		t.Fatalf("GetPagedRequest: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("items = %d, want 3", len(items))
	}
}

func TestGetPagedRequest_QueryPreserved(t *testing.T) {
	driver := newFakeDriver()
	driver.setVisible(selAuthMarker, true)
	var seen map[string]interface{}
	driver.evalFn = func(js string, args ...interface{}) (interface{}, error) {
		seen, _ = args[2].(map[string]interface{})
		return relayEnvelope(200, map[string]interface{}{"bases": []interface{}{}}, ""), nil
	}

	s := newTestSession(driver)
	if err := s.Init(context.Background(), nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer s.Exit()

	_, err := s.GetPagedRequest(context.Background(), "/bases", map[string]interface{}{"latMin": -200.0}, "bases", "base", 0)
	if err != nil {
		t.Fatalf("GetPagedRequest: %v", err)
	}
	if seen["latMin"] != -200.0 {
		t.Errorf("query param dropped: %v", seen)
	}
	if _, ok := seen["baseLastID"]; !ok {
		t.Error("cursor param missing")
	}
}
