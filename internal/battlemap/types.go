package battlemap

import (
	"encoding/json"
)

// Typed shapes for the endpoint families the relay exposes. The game's
// field names are short and inconsistent across families; these mirror them
// verbatim so decoded values survive a round trip back to API consumers.

// Base is one row of the map's base list.
type Base struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Faction   int     `json:"faction"`
	Health    float64 `json:"health"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	LevelID   int     `json:"level_id"`
	OwnerID   int64   `json:"owner_id"`
}

// BaseDetail is the base profile family's shape.
type BaseDetail struct {
	BsID        int64       `json:"bs_id"`
	BsHsID      string      `json:"bs_hsid"`
	Name        string      `json:"nm"`
	Owner       string      `json:"ownr"`
	ClusterName string      `json:"cr_nm"`
	Level       int         `json:"lvl"`
	Health      float64     `json:"hth"`
	MaxHealth   int         `json:"mx_hth"`
	Latitude    float64     `json:"lat"`
	Longitude   float64     `json:"lng"`
	Strength    int         `json:"strngth"`
	AvailPower  int         `json:"av_pwr"`
	UsedPower   int         `json:"us_pwr"`
	Battlefield int         `json:"bf"`
	Deleted     bool        `json:"del"`
	Melting     bool        `json:"mltng"`
	TCGen       bool        `json:"tc_gen"`
	TMGen       bool        `json:"tm_gen"`
	BaseLinks   []BaseLink  `json:"bs_lnks"`
	CoreLinks   []CoreLink  `json:"cr_lnks"`
	Rings       [][]BaseMod `json:"rings"`
}

type BaseLink struct {
	Forward   bool    `json:"fwd"`
	Longitude float64 `json:"lng"`
	Latitude  float64 `json:"ltd"`
}

type CoreLink struct {
	Longitude float64 `json:"lng"`
	Latitude  float64 `json:"ltd"`
}

type BaseMod struct {
	Code      string  `json:"cd"`
	RingNo    string  `json:"r_no"`
	Health    float64 `json:"hth"`
	MaxHealth int     `json:"mx_hth"`
	Level     int     `json:"lvl"`
}

// Battle is one row of the battle log list.
type Battle struct {
	ID             int64  `json:"id"`
	BattleUniqueID string `json:"battleUniqueID"`
	CurrentCycle   int    `json:"currentCycle"`
	FactionEnum    int    `json:"factionEnum"`
	Finished       int    `json:"finished"`
	OppoBase       string `json:"oppoBase"`
	OwnBase        string `json:"ownBase"`
	ReservedPower  int    `json:"reservedPower"`
	ResolutionTime string `json:"resolutionTime"`
}

// BattleDetail is the battle profile family's shape.
type BattleDetail struct {
	ID                  int64       `json:"id"`
	AttackOn            string      `json:"attack_on"`
	InitiatedByID       int64       `json:"initiated_by_id"`
	InitiatedOn         string      `json:"initiated_on"`
	IsCancelled         int         `json:"is_cancelled"`
	IsDone              int         `json:"is_done"`
	UniqueName          string      `json:"unique_name"`
	Dominance           interface{} `json:"dominance"`
	OwnBase             string      `json:"own_base"`
	OwnBaseName         string      `json:"own_base_name"`
	OwnBaseFacEnum      int         `json:"own_base_fac_enum"`
	OwnBaseFinalProfit  int         `json:"own_base_final_profit"`
	OwnClusterStrength  int         `json:"ownClusterStrength"`
	OppoBase            string      `json:"oppo_base"`
	OppoBaseName        string      `json:"oppo_base_name"`
	OppoBaseFacEnum     int         `json:"oppo_base_fac_enum"`
	OppoBaseFinalProfit int         `json:"oppo_base_final_profit"`
	OppoClusterStrength int         `json:"oppoClusterStrength"`
	ReservedPower       int         `json:"reservedPower"`
	WinnerFacEnum       interface{} `json:"winner_fac_enum"`
}

// PlayerDetail is the public player profile family's shape.
type PlayerDetail struct {
	ID             int64              `json:"id"`
	Username       string             `json:"uname"`
	FactionID      int                `json:"faction_id"`
	BaseLevel      int                `json:"base_level"`
	LevelID        int                `json:"level_id"`
	CoreInfoID     int64              `json:"core_info_id"`
	StatsID        int64              `json:"stats_id"`
	PoiInfoID      int64              `json:"poi_info_id"`
	SocialInfoID   int64              `json:"social_info_id"`
	CoreInfo       *PlayerCores       `json:"get_core_info"`
	StatsPublic    *PlayerStats       `json:"get_stats_public"`
	PoiInfo        *PlayerPoiInfo     `json:"get_poi_info"`
	FactionDetails *PlayerFactionInfo `json:"get_faction_details"`
}

type PlayerCores struct {
	ID             int64  `json:"id"`
	CoresSeeded    int    `json:"no_of_cores_seeded"`
	OwnedCores     string `json:"owned_cores"`
	BasesDestroyed int    `json:"no_of_bases_destroyed"`
	CoresDestroyed int    `json:"no_of_cores_destroyed"`
	CoresCaptured  int    `json:"no_of_cores_captured"`
}

type PlayerStats struct {
	ID             int64  `json:"id"`
	ModsDeployed   int    `json:"total_mods_deployed"`
	BattlesWon     int    `json:"nof_of_battles_won"`
	Achievements   string `json:"achievements"`
	UnlockedSkills string `json:"unlocked_skills"`
}

type PlayerPoiInfo struct {
	ID           int64 `json:"id"`
	PoisCaptured int   `json:"no_of_pois_captured"`
}

type PlayerFactionInfo struct {
	ID      int64 `json:"id"`
	FacEnum int   `json:"fac_enum"`
}

// SearchResult is one row of the search endpoint.
type SearchResult struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Faction int    `json:"faction"`
	Type    string `json:"type"`
}

// MapSearch bounds a map query. LastID is the pagination cursor.
type MapSearch struct {
	LatMin    float64 `json:"latMin"`
	LngMin    float64 `json:"lngMin"`
	LatMax    float64 `json:"latMax"`
	LngMax    float64 `json:"lngMax"`
	Faction   int     `json:"faction"`
	MinLevel  int     `json:"minLevel"`
	MaxLevel  int     `json:"maxLevel"`
	MinHealth int     `json:"minHealth"`
	MaxHealth int     `json:"maxHealth"`
	LastID    int64   `json:"lastId"`
}

func (m MapSearch) payload() map[string]interface{} {
	return map[string]interface{}{
		"latMin":    m.LatMin,
		"lngMin":    m.LngMin,
		"latMax":    m.LatMax,
		"lngMax":    m.LngMax,
		"faction":   m.Faction,
		"minLevel":  m.MinLevel,
		"maxLevel":  m.MaxLevel,
		"minHealth": m.MinHealth,
		"maxHealth": m.MaxHealth,
	}
}

// unwrapEnvelope strips the game's inconsistent response wrappers. Endpoint
// families wrap their payload in one of _result, dt or data; some return it
// bare.
func unwrapEnvelope(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	for _, key := range []string{"_result", "dt", "data"} {
		if inner, ok := m[key]; ok {
			return inner
		}
	}
	return v
}

// decodeInto re-marshals a dynamic response into a typed shape, failing
// closed: an unrecognized structure surfaces KindRequestFailed instead of
// passing through unknown data.
func decodeInto(v interface{}, dst interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return wrapError(KindRequestFailed, err, "unencodable response shape")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return wrapError(KindRequestFailed, err, "unrecognized response shape")
	}
	return nil
}
