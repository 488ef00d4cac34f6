package store

import (
	"testing"

	"github.com/eneris/battlemap/internal/battlemap"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveBase_RoundTrip(t *testing.T) {
	s := openTest(t)

	err := s.SaveBase(battlemap.Base{
		ID: 42, Name: "Outpost", LevelID: 3,
		Latitude: 50.1, Longitude: 14.4,
		OwnerID: 7, Faction: 2,
	})
	if err != nil {
		t.Fatalf("SaveBase: %v", err)
	}

	row, err := s.GetBase(42)
	if err != nil {
		t.Fatalf("GetBase: %v", err)
	}
	if row == nil {
		t.Fatal("GetBase returned nil for saved base")
	}
	if row.Name != "Outpost" || row.Level != 3 || row.PlayerID != 7 || row.FactionID != 2 {
		t.Errorf("row = %+v", row)
	}
	if row.LastUpdateAt == 0 {
		t.Error("last_update_at not stamped")
	}
}

func TestSaveBase_LevelIsMonotonic(t *testing.T) {
	s := openTest(t)

	if err := s.SaveBase(battlemap.Base{ID: 1, Name: "a", LevelID: 5}); err != nil {
		t.Fatal(err)
	}
	// A stale observation must not lower the mirrored level.
	if err := s.SaveBase(battlemap.Base{ID: 1, Name: "a2", LevelID: 2}); err != nil {
		t.Fatal(err)
	}

	row, err := s.GetBase(1)
	if err != nil {
		t.Fatal(err)
	}
	if row.Level != 5 {
		t.Errorf("level = %d, want 5 (downgrade accepted)", row.Level)
	}
	if row.Name != "a2" {
		t.Errorf("name = %q, want latest name", row.Name)
	}
}

func TestSaveBaseDetail_MergesOntoListRow(t *testing.T) {
	s := openTest(t)

	if err := s.SaveBase(battlemap.Base{ID: 9, Name: "Fort", LevelID: 1, Latitude: 1, Longitude: 2}); err != nil {
		t.Fatal(err)
	}
	err := s.SaveBaseDetail(9, &battlemap.BaseDetail{
		BsID: 9, BsHsID: "abc123", Name: "Fort", Level: 4,
		Latitude: 1, Longitude: 2,
	})
	if err != nil {
		t.Fatalf("SaveBaseDetail: %v", err)
	}

	row, err := s.GetBase(9)
	if err != nil {
		t.Fatal(err)
	}
	if row.UniqueID != "abc123" {
		t.Errorf("uniqueId = %q, want abc123", row.UniqueID)
	}
	if row.Level != 4 {
		t.Errorf("level = %d, want 4", row.Level)
	}
}

func TestSavePlayer_RoundTrip(t *testing.T) {
	s := openTest(t)

	player := &battlemap.PlayerDetail{ID: 11, Username: "neo", LevelID: 8, FactionID: 1}
	if err := s.SavePlayer(11, player, "hsid-1"); err != nil {
		t.Fatalf("SavePlayer: %v", err)
	}

	row, err := s.GetPlayer(11)
	if err != nil {
		t.Fatal(err)
	}
	if row == nil {
		t.Fatal("GetPlayer returned nil")
	}
	if row.Name != "neo" || row.Level != 8 || row.FactionID != 1 || row.BaseUniqueID != "hsid-1" {
		t.Errorf("row = %+v", row)
	}

	uid, err := s.PlayerBaseUniqueID(11)
	if err != nil {
		t.Fatal(err)
	}
	if uid != "hsid-1" {
		t.Errorf("PlayerBaseUniqueID = %q", uid)
	}
}

func TestSavePlayer_LevelIsMonotonic(t *testing.T) {
	s := openTest(t)

	if err := s.SavePlayer(5, &battlemap.PlayerDetail{ID: 5, Username: "x", LevelID: 10}, "h1"); err != nil {
		t.Fatal(err)
	}
	if err := s.SavePlayer(5, &battlemap.PlayerDetail{ID: 5, Username: "x", LevelID: 3}, "h2"); err != nil {
		t.Fatal(err)
	}

	row, err := s.GetPlayer(5)
	if err != nil {
		t.Fatal(err)
	}
	if row.Level != 10 {
		t.Errorf("level = %d, want 10", row.Level)
	}
	// The base id is not versioned; latest wins.
	if row.BaseUniqueID != "h2" {
		t.Errorf("baseUniqueId = %q, want h2", row.BaseUniqueID)
	}
}

func TestLastBaseID(t *testing.T) {
	s := openTest(t)

	id, err := s.LastBaseID()
	if err != nil {
		t.Fatal(err)
	}
	if id != 0 {
		t.Errorf("LastBaseID on empty mirror = %d, want 0", id)
	}

	for _, n := range []int64{3, 17, 9} {
		if err := s.SaveBase(battlemap.Base{ID: n}); err != nil {
			t.Fatal(err)
		}
	}
	id, err = s.LastBaseID()
	if err != nil {
		t.Fatal(err)
	}
	if id != 17 {
		t.Errorf("LastBaseID = %d, want 17", id)
	}
}

func TestLookupsReturnNilWhenAbsent(t *testing.T) {
	s := openTest(t)

	base, err := s.GetBase(999)
	if err != nil || base != nil {
		t.Errorf("GetBase(999) = %v, %v", base, err)
	}
	player, err := s.GetPlayer(999)
	if err != nil || player != nil {
		t.Errorf("GetPlayer(999) = %v, %v", player, err)
	}
	uid, err := s.PlayerBaseUniqueID(999)
	if err != nil || uid != "" {
		t.Errorf("PlayerBaseUniqueID(999) = %q, %v", uid, err)
	}
}

func TestCounts(t *testing.T) {
	s := openTest(t)

	if err := s.SaveBase(battlemap.Base{ID: 1}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveBase(battlemap.Base{ID: 2}); err != nil {
		t.Fatal(err)
	}
	if err := s.SavePlayer(1, &battlemap.PlayerDetail{ID: 1}, ""); err != nil {
		t.Fatal(err)
	}

	bases, players, err := s.Counts()
	if err != nil {
		t.Fatal(err)
	}
	if bases != 2 || players != 1 {
		t.Errorf("Counts = %d, %d", bases, players)
	}
}
