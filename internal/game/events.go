package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"refinery/internal/catalog"
	"refinery/internal/operative"
)

// StartEvent records a run of ev beginning at start. The modifier becomes
// visible to resolution after the next RefreshBoosts.
func (s *Service) StartEvent(ctx context.Context, ev catalog.Event, start time.Time) (ActiveEvent, error) {
	out := ActiveEvent{
		ID:       uuid.New(),
		Name:     ev.Name,
		Kind:     ev.Modifier.Kind,
		Value:    ev.Modifier.Value,
		StartsAt: start.UTC(),
		EndsAt:   start.Add(ev.Duration).UTC(),
	}
	raw, err := encodeBundle(out.Value)
	if err != nil {
		return out, err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO refinery.global_events (id, name, kind, value, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, out.ID, out.Name, out.Kind.String(), raw, out.StartsAt, out.EndsAt)
	if err != nil {
		return out, err
	}
	s.log.Info("global event started", "event", out.Name, "id", out.ID, "ends_at", out.EndsAt)
	return out, nil
}

// ActiveEvents lists the events whose window contains at.
func (s *Service) ActiveEvents(ctx context.Context, at time.Time) ([]ActiveEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, kind, value, starts_at, ends_at
		FROM refinery.global_events
		WHERE starts_at <= $1 AND ends_at > $1
		ORDER BY starts_at, id
	`, at)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActiveEvent
	for rows.Next() {
		var ev ActiveEvent
		var kind string
		var raw []byte
		if err := rows.Scan(&ev.ID, &ev.Name, &kind, &raw, &ev.StartsAt, &ev.EndsAt); err != nil {
			return nil, err
		}
		if ev.Kind, err = operative.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		if ev.Value, err = decodeBundle(raw); err != nil {
			return nil, fmt.Errorf("event %s: %w", ev.ID, err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// PurgeExpiredEvents deletes events that ended before cutoff.
func (s *Service) PurgeExpiredEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := s.db.Exec(ctx, `
		DELETE FROM refinery.global_events
		WHERE ends_at < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// RefreshBoosts reloads active events into the registry and publishes a new
// snapshot. It is the only place global boosts change.
func (s *Service) RefreshBoosts(ctx context.Context) (*operative.Snapshot, error) {
	active, err := s.ActiveEvents(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	added, removed := syncEvents(s.registry, s.events, active)
	s.mu.Unlock()

	snap := s.registry.Refresh()
	if added > 0 || removed > 0 {
		s.log.Info("boosts refreshed", "version", snap.Version, "events_added", added, "events_removed", removed)
	}
	return snap, nil
}

// syncEvents makes the registry hold exactly the modifiers of active.
// handles maps event ids to registry handles and is updated in place.
func syncEvents(r *operative.Registry, handles map[uuid.UUID]uuid.UUID, active []ActiveEvent) (added, removed int) {
	keep := make(map[uuid.UUID]bool, len(active))
	for _, ev := range active {
		keep[ev.ID] = true
		if _, ok := handles[ev.ID]; ok {
			continue
		}
		handles[ev.ID] = r.Register(operative.GlobalModifier{Name: ev.Name, Kind: ev.Kind, Value: ev.Value})
		added++
	}
	for id, h := range handles {
		if keep[id] {
			continue
		}
		r.Deregister(h)
		delete(handles, id)
		removed++
	}
	return added, removed
}
