package realtime

import (
	"context"
	"time"

	"github.com/eneris/battlemap/internal/battlemap"
	. "github.com/eneris/battlemap/internal/logging"
)

// battleSource is the slice of the session the poller needs.
type battleSource interface {
	GetBattles(ctx context.Context, factions []int, resolution int) ([]battlemap.Battle, error)
}

// publisher receives the events the poller derives.
type publisher interface {
	Publish(event Event)
}

// Poller diffs the battle log on an interval and publishes changes.
type Poller struct {
	source   battleSource
	sink     publisher
	interval time.Duration

	known  map[int64]battlemap.Battle
	primed bool
}

// NewPoller creates a poller pushing into sink every interval.
func NewPoller(source battleSource, sink publisher, interval time.Duration) *Poller {
	return &Poller{
		source:   source,
		sink:     sink,
		interval: interval,
		known:    make(map[int64]battlemap.Battle),
	}
}

// Run polls until ctx is cancelled. The first successful poll only primes
// the known set; battles already in flight at startup are not replayed as
// started events.
func (p *Poller) Run(ctx context.Context) {
	L_info("realtime: battle poller starting", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			L_info("realtime: battle poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	battles, err := p.source.GetBattles(ctx, nil, 0)
	if err != nil {
		L_warn("realtime: battle poll failed: %v", err)
		return
	}
	for _, event := range p.diff(battles) {
		p.sink.Publish(event)
	}
}

// diff folds a fresh battle list into the known set and returns the events
// the change implies.
func (p *Poller) diff(battles []battlemap.Battle) []Event {
	now := time.Now()
	var events []Event

	seen := make(map[int64]struct{}, len(battles))
	for _, b := range battles {
		seen[b.ID] = struct{}{}
		prev, ok := p.known[b.ID]
		if !ok {
			if p.primed {
				events = append(events, Event{Type: EventBattleStarted, Time: now, Data: b})
			}
		} else if prev.Finished == 0 && b.Finished != 0 {
			events = append(events, Event{Type: EventBattleResolved, Time: now, Data: b})
		}
		p.known[b.ID] = b
	}

	// A battle that vanished from the log resolved between polls.
	for id, prev := range p.known {
		if _, ok := seen[id]; ok {
			continue
		}
		if p.primed && prev.Finished == 0 {
			events = append(events, Event{Type: EventBattleResolved, Time: now, Data: prev})
		}
		delete(p.known, id)
	}

	p.primed = true
	return events
}
