// Package etl walks the game's base list into the SQLite mirror on a
// schedule. Each run resumes from the highest mirrored base id, so a fresh
// mirror backfills the whole map over successive runs and a warm one only
// picks up new bases.
package etl

import (
	"context"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/eneris/battlemap/internal/battlemap"
	. "github.com/eneris/battlemap/internal/logging"
)

// gameClient is the slice of the session the updater needs.
type gameClient interface {
	GetBases(ctx context.Context, search battlemap.MapSearch) ([]battlemap.Base, error)
	GetBaseDetail(ctx context.Context, id int64) (*battlemap.BaseDetail, error)
	GetPlayerDetail(ctx context.Context, id int64) (*battlemap.PlayerDetail, error)
}

// mirror is the slice of the store the updater needs.
type mirror interface {
	LastBaseID() (int64, error)
	SaveBase(base battlemap.Base) error
	SaveBaseDetail(id int64, detail *battlemap.BaseDetail) error
	SavePlayer(id int64, player *battlemap.PlayerDetail, baseUniqueID string) error
}

// worldSearch covers the entire map. The game treats out-of-range bounds as
// unbounded.
var worldSearch = battlemap.MapSearch{
	LatMin: -200, LngMin: -200, LatMax: 200, LngMax: 200,
	MinLevel: 0, MaxLevel: 99, MinHealth: 0, MaxHealth: 100,
}

// detailPause spaces out per-base profile requests so a backfill does not
// hammer the relay.
const detailPause = 250 * time.Millisecond

// Updater runs the mirror sync.
type Updater struct {
	game  gameClient
	store mirror

	mu      sync.Mutex
	running bool

	cron  *cronlib.Cron
	pause time.Duration
}

// New creates an updater. The cron scheduler is not started until Start.
func New(game gameClient, store mirror) *Updater {
	return &Updater{game: game, store: store, pause: detailPause}
}

// Start registers the sync on the given cron schedule ("@every 6h" style or
// a 5-field expression) and starts the scheduler.
func (u *Updater) Start(schedule string) error {
	c := cronlib.New()
	if _, err := c.AddFunc(schedule, func() {
		if err := u.RunOnce(context.Background()); err != nil {
			L_error("etl: scheduled run failed: %v", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	u.cron = c
	L_info("etl: scheduled", "schedule", schedule)
	return nil
}

// Stop stops the scheduler. A run already in flight finishes.
func (u *Updater) Stop() {
	if u.cron != nil {
		u.cron.Stop()
	}
}

// RunOnce performs one sync pass. Overlapping invocations are skipped, not
// queued: a backfill can outlast the schedule interval.
func (u *Updater) RunOnce(ctx context.Context) error {
	u.mu.Lock()
	if u.running {
		u.mu.Unlock()
		L_warn("etl: previous run still in progress, skipping")
		return nil
	}
	u.running = true
	u.mu.Unlock()
	defer func() {
		u.mu.Lock()
		u.running = false
		u.mu.Unlock()
	}()

	lastID, err := u.store.LastBaseID()
	if err != nil {
		return err
	}
	L_info("etl: run starting", "fromBaseID", lastID)

	search := worldSearch
	search.LastID = lastID
	bases, err := u.game.GetBases(ctx, search)
	if err != nil {
		return err
	}
	L_info("etl: bases fetched", "count", len(bases))

	var saved, failed int
	for _, base := range bases {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := u.syncBase(ctx, base); err != nil {
			// One broken base must not abort the pass; its id stays
			// below the cursor and gets retried next run only if it was
			// never list-saved.
			L_warn("etl: base %d sync failed: %v", base.ID, err)
			failed++
			continue
		}
		saved++
		if u.pause > 0 {
			time.Sleep(u.pause)
		}
	}

	L_info("etl: run finished", "saved", saved, "failed", failed)
	return nil
}

func (u *Updater) syncBase(ctx context.Context, base battlemap.Base) error {
	detail, err := u.game.GetBaseDetail(ctx, base.ID)
	if err != nil {
		return err
	}
	if err := u.store.SaveBaseDetail(base.ID, detail); err != nil {
		return err
	}
	if err := u.store.SaveBase(base); err != nil {
		return err
	}

	// Ownerless bases (melted, neutral) have no player profile.
	if base.OwnerID == 0 {
		return nil
	}
	player, err := u.game.GetPlayerDetail(ctx, base.OwnerID)
	if err != nil {
		return err
	}
	return u.store.SavePlayer(base.OwnerID, player, detail.BsHsID)
}
