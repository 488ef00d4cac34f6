// Package store mirrors selected game responses into SQLite so consumers
// can query map history without hitting the live session. Levels and update
// timestamps only ever move forward (MAX on conflict), matching how the
// game itself versions entities.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eneris/battlemap/internal/battlemap"
	. "github.com/eneris/battlemap/internal/logging"
)

// Store is the SQLite mirror.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS bases (
	id             INTEGER PRIMARY KEY,
	unique_id      TEXT,
	name           TEXT NOT NULL DEFAULT '',
	level          INTEGER NOT NULL DEFAULT 0,
	latitude       REAL NOT NULL DEFAULT 0,
	longitude      REAL NOT NULL DEFAULT 0,
	player_id      INTEGER,
	faction_id     INTEGER,
	detail         TEXT,
	last_update_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS players (
	id             INTEGER PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	level          INTEGER NOT NULL DEFAULT 0,
	faction_id     INTEGER,
	base_unique_id TEXT,
	data           TEXT,
	last_update_at INTEGER NOT NULL DEFAULT 0
);
`

// Open opens (creating if needed) the mirror database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	L_info("store: opened", "path", path)
	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory mirror, used by tests.
func OpenMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	L_debug("store: closing")
	return s.db.Close()
}

func now() int64 {
	return time.Now().UnixMilli()
}

// SaveBase upserts one base list row. Insert-only fields (coordinates,
// owner) keep their first-seen values; level and last_update_at are
// monotonic.
func (s *Store) SaveBase(base battlemap.Base) error {
	_, err := s.db.Exec(`
		INSERT INTO bases (id, name, level, latitude, longitude, player_id, faction_id, last_update_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name           = excluded.name,
			level          = MAX(level, excluded.level),
			last_update_at = MAX(last_update_at, excluded.last_update_at)`,
		base.ID, base.Name, base.LevelID, base.Latitude, base.Longitude, base.OwnerID, base.Faction, now())
	return err
}

// SaveBaseDetail upserts a base profile, keeping the raw detail JSON for
// consumers that want fields the mirror does not model.
func (s *Store) SaveBaseDetail(id int64, detail *battlemap.BaseDetail) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to encode base detail: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO bases (id, unique_id, name, level, latitude, longitude, detail, last_update_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unique_id      = excluded.unique_id,
			name           = excluded.name,
			detail         = excluded.detail,
			level          = MAX(level, excluded.level),
			last_update_at = MAX(last_update_at, excluded.last_update_at)`,
		id, detail.BsHsID, detail.Name, detail.Level, detail.Latitude, detail.Longitude, string(raw), now())
	return err
}

// SavePlayer upserts a player profile together with the stable id of the
// base it owned when seen.
func (s *Store) SavePlayer(id int64, player *battlemap.PlayerDetail, baseUniqueID string) error {
	raw, err := json.Marshal(player)
	if err != nil {
		return fmt.Errorf("failed to encode player: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO players (id, name, level, faction_id, base_unique_id, data, last_update_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			data           = excluded.data,
			base_unique_id = excluded.base_unique_id,
			level          = MAX(level, excluded.level),
			last_update_at = MAX(last_update_at, excluded.last_update_at)`,
		id, player.Username, player.LevelID, player.FactionID, baseUniqueID, string(raw), now())
	return err
}

// LastBaseID returns the highest mirrored base id, 0 when the mirror is
// empty. The ETL resumes its cursor walk from here.
func (s *Store) LastBaseID() (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(id) FROM bases`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

// PlayerBaseUniqueID returns the mirrored stable base id for a player, ""
// when unknown.
func (s *Store) PlayerBaseUniqueID(playerID int64) (string, error) {
	var uid sql.NullString
	err := s.db.QueryRow(`SELECT base_unique_id FROM players WHERE id = ?`, playerID).Scan(&uid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return uid.String, nil
}

// PlayerRow is the mirrored player summary, without the raw data blob.
type PlayerRow struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Level        int    `json:"level"`
	FactionID    int    `json:"factionId"`
	BaseUniqueID string `json:"baseUniqueId"`
	LastUpdateAt int64  `json:"lastUpdateAt"`
}

// GetPlayer returns the mirrored player summary, nil when absent.
func (s *Store) GetPlayer(id int64) (*PlayerRow, error) {
	var (
		row PlayerRow
		uid sql.NullString
		fac sql.NullInt64
	)
	err := s.db.QueryRow(
		`SELECT id, name, level, faction_id, base_unique_id, last_update_at FROM players WHERE id = ?`, id,
	).Scan(&row.ID, &row.Name, &row.Level, &fac, &uid, &row.LastUpdateAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.FactionID = int(fac.Int64)
	row.BaseUniqueID = uid.String
	return &row, nil
}

// BaseRow is the mirrored base summary.
type BaseRow struct {
	ID           int64   `json:"id"`
	UniqueID     string  `json:"uniqueId"`
	Name         string  `json:"name"`
	Level        int     `json:"level"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	PlayerID     int64   `json:"playerId"`
	FactionID    int     `json:"factionId"`
	LastUpdateAt int64   `json:"lastUpdateAt"`
}

// GetBase returns the mirrored base summary, nil when absent.
func (s *Store) GetBase(id int64) (*BaseRow, error) {
	var (
		row    BaseRow
		uid    sql.NullString
		player sql.NullInt64
		fac    sql.NullInt64
	)
	err := s.db.QueryRow(
		`SELECT id, unique_id, name, level, latitude, longitude, player_id, faction_id, last_update_at
		 FROM bases WHERE id = ?`, id,
	).Scan(&row.ID, &uid, &row.Name, &row.Level, &row.Latitude, &row.Longitude, &player, &fac, &row.LastUpdateAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.UniqueID = uid.String
	row.PlayerID = player.Int64
	row.FactionID = int(fac.Int64)
	return &row, nil
}

// Counts returns mirrored row counts for status reporting.
func (s *Store) Counts() (bases, players int64, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM bases`).Scan(&bases); err != nil {
		return
	}
	err = s.db.QueryRow(`SELECT COUNT(*) FROM players`).Scan(&players)
	return
}
