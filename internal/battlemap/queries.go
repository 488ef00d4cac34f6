package battlemap

import (
	"context"
)

// Derived query helpers: thin endpoint-name + payload-shape bindings over
// GetAPIData. All resilience lives in the retry policy underneath.

// GetBattles returns the current battle log, optionally filtered by faction
// and resolution cycle.
func (s *Session) GetBattles(ctx context.Context, factions []int, resolution int) ([]Battle, error) {
	payload := map[string]interface{}{}
	if len(factions) > 0 {
		payload["factions"] = factions
	}
	if resolution != 0 {
		payload["resolution"] = resolution
	}

	resp, err := s.GetAPIData(ctx, "/battle-log", payload, "get")
	if err != nil {
		return nil, err
	}

	var battles []Battle
	if err := decodeInto(unwrapEnvelope(resp), &battles); err != nil {
		return nil, err
	}
	return battles, nil
}

// GetBattleDetail returns the profile of one battle.
func (s *Session) GetBattleDetail(ctx context.Context, id int64) (*BattleDetail, error) {
	resp, err := s.GetAPIData(ctx, "/get-battle-details", map[string]interface{}{"battleID": id}, "post")
	if err != nil {
		return nil, err
	}

	var detail BattleDetail
	if err := decodeInto(unwrapEnvelope(resp), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetBases walks the map's base list from search.LastID to the end,
// accumulating pages in arrival order.
func (s *Session) GetBases(ctx context.Context, search MapSearch) ([]Base, error) {
	rows, err := s.GetPagedRequest(ctx, "/bases", search.payload(), "bases", "base", search.LastID)
	if err != nil {
		return nil, err
	}

	var bases []Base
	if err := decodeInto(rows, &bases); err != nil {
		return nil, err
	}
	return bases, nil
}

// GetCores returns the raw core list for a map area. The core family's
// shape varies per zoom level, so it stays dynamic.
func (s *Session) GetCores(ctx context.Context, search MapSearch) (interface{}, error) {
	resp, err := s.GetAPIData(ctx, "/cores", search.payload(), "post")
	if err != nil {
		return nil, err
	}
	return unwrapEnvelope(resp), nil
}

// GetMines returns the raw mine list for a map area.
func (s *Session) GetMines(ctx context.Context, search MapSearch) (interface{}, error) {
	resp, err := s.GetAPIData(ctx, "/mines", search.payload(), "post")
	if err != nil {
		return nil, err
	}
	return unwrapEnvelope(resp), nil
}

// GetBaseDetail returns the profile of one base.
func (s *Session) GetBaseDetail(ctx context.Context, id int64) (*BaseDetail, error) {
	resp, err := s.GetAPIData(ctx, "/base-profile", map[string]interface{}{"id": id}, "post")
	if err != nil {
		return nil, err
	}

	var detail BaseDetail
	if err := decodeInto(unwrapEnvelope(resp), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetPlayerDetail returns the public profile of one player.
func (s *Session) GetPlayerDetail(ctx context.Context, id int64) (*PlayerDetail, error) {
	resp, err := s.GetAPIData(ctx, "/player-public-profile", map[string]interface{}{"id": id}, "post")
	if err != nil {
		return nil, err
	}

	var detail PlayerDetail
	if err := decodeInto(unwrapEnvelope(resp), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetClusterDetail returns a base's cluster, clusterType selects the
// parent/child direction the game distinguishes.
func (s *Session) GetClusterDetail(ctx context.Context, id int64, clusterType string) (interface{}, error) {
	payload := map[string]interface{}{"id": id}
	if clusterType != "" {
		payload["type"] = clusterType
	}
	resp, err := s.GetAPIData(ctx, "/cluster-profile", payload, "post")
	if err != nil {
		return nil, err
	}
	return unwrapEnvelope(resp), nil
}

// GetCoreDetail returns the profile of one core.
func (s *Session) GetCoreDetail(ctx context.Context, id int64) (interface{}, error) {
	resp, err := s.GetAPIData(ctx, "/core-profile", map[string]interface{}{"id": id}, "post")
	if err != nil {
		return nil, err
	}
	return unwrapEnvelope(resp), nil
}

// GetMineDetail returns the profile of one mine.
func (s *Session) GetMineDetail(ctx context.Context, id int64) (interface{}, error) {
	resp, err := s.GetAPIData(ctx, "/mine-profile", map[string]interface{}{"id": id}, "post")
	if err != nil {
		return nil, err
	}
	return unwrapEnvelope(resp), nil
}

// GetSearchQuery searches bases/players by name.
func (s *Session) GetSearchQuery(ctx context.Context, term string, faction int) ([]SearchResult, error) {
	resp, err := s.GetAPIData(ctx, "/search", map[string]interface{}{"term": term, "faction": faction}, "get")
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	if err := decodeInto(unwrapEnvelope(resp), &results); err != nil {
		return nil, err
	}
	return results, nil
}

// GetIDFromQuery resolves a name to an id via search, taking the last
// (most relevant) hit.
func (s *Session) GetIDFromQuery(ctx context.Context, query string) (int64, error) {
	results, err := s.GetSearchQuery(ctx, query, 0)
	if err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, newError(KindRequestFailed, 404, "%q not found", query)
	}
	return results[len(results)-1].ID, nil
}

// GetPlayerBase returns the base profile owned by a player.
func (s *Session) GetPlayerBase(ctx context.Context, playerID int64) (*BaseDetail, error) {
	resp, err := s.GetAPIData(ctx, "/player-base", map[string]interface{}{"id": playerID}, "post")
	if err != nil {
		return nil, err
	}

	var detail BaseDetail
	if err := decodeInto(unwrapEnvelope(resp), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// GetPlayerBaseUniqueID returns the stable hash id of a player's base.
func (s *Session) GetPlayerBaseUniqueID(ctx context.Context, playerID int64) (string, error) {
	base, err := s.GetPlayerBase(ctx, playerID)
	if err != nil {
		return "", err
	}
	return base.BsHsID, nil
}

// SendMessage posts a message to the game's chat. Global selects the
// all-factions channel.
func (s *Session) SendMessage(ctx context.Context, message string, global bool) error {
	_, err := s.GetAPIData(ctx, "/send-message", map[string]interface{}{
		"message": message,
		"global":  global,
	}, "post")
	return err
}
