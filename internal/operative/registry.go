package operative

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Registry holds the boost sources currently loaded. Register and
// Deregister stage changes; Refresh publishes them as an immutable Snapshot.
// Readers only ever see published snapshots, so one Refresh per tick is the
// single point where cached boosts change.
type Registry struct {
	log *slog.Logger

	mu      sync.Mutex
	sources map[uuid.UUID]Source
	version uint64

	current atomic.Pointer[Snapshot]
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{log: log, sources: map[uuid.UUID]Source{}}
	r.current.Store(emptySnapshot())
	return r
}

// Register stages s and returns the handle used to remove it.
func (r *Registry) Register(s Source) uuid.UUID {
	h := uuid.New()
	r.mu.Lock()
	r.sources[h] = s
	r.mu.Unlock()
	return h
}

// Deregister stages removal of the source behind h. It reports whether the
// handle was known.
func (r *Registry) Deregister(h uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[h]; !ok {
		return false
	}
	delete(r.sources, h)
	return true
}

// Pending returns the number of staged sources.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}

// Refresh builds a snapshot of the staged sources and publishes it.
func (r *Registry) Refresh() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.version++
	entries := make([]entry, 0, len(r.sources))
	for h, s := range r.sources {
		entries = append(entries, entry{handle: h, source: s})
	}
	// Stable order so snapshots with the same content fold identically.
	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(a.source.Label(), b.source.Label()); c != 0 {
			return c
		}
		return cmp.Compare(a.handle.String(), b.handle.String())
	})

	snap := &Snapshot{
		Version: r.version,
		TakenAt: time.Now().UTC(),
		local:   map[string][]Source{},
	}
	for _, e := range entries {
		switch s := e.source.(type) {
		case ItemLocalBoost:
			snap.local[s.ItemID] = append(snap.local[s.ItemID], s)
		default:
			if s.Scope() == ScopeGlobal {
				snap.global = append(snap.global, s)
			} else {
				snap.upgrade = append(snap.upgrade, s)
			}
		}
	}
	snap.globalTriple = Fold(Template(), snap.global, nil)

	r.current.Store(snap)
	r.log.Debug("boost snapshot published",
		"version", snap.Version,
		"global", len(snap.global),
		"upgrade", len(snap.upgrade),
		"items", len(snap.local),
	)
	return snap
}

// Snapshot returns the most recently published snapshot without locking.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

type entry struct {
	handle uuid.UUID
	source Source
}

// Snapshot is an immutable view of the registry at one Refresh.
type Snapshot struct {
	Version uint64
	TakenAt time.Time

	global       []Source
	upgrade      []Source
	local        map[string][]Source
	globalTriple Triple
}

func emptySnapshot() *Snapshot {
	return &Snapshot{local: map[string][]Source{}, globalTriple: Template()}
}

// Sources returns the sources that apply to production on itemID: every
// global and upgrade source plus the item's own local boosts. The slice is
// freshly allocated.
func (s *Snapshot) Sources(itemID string) []Source {
	local := s.local[itemID]
	out := make([]Source, 0, len(s.global)+len(s.upgrade)+len(local))
	out = append(out, s.global...)
	out = append(out, s.upgrade...)
	return append(out, local...)
}

// Globals returns the global modifiers folded over the neutral triple. It is
// computed once per snapshot.
func (s *Snapshot) Globals() Triple {
	return s.globalTriple
}

func (s *Snapshot) Len() int {
	n := len(s.global) + len(s.upgrade)
	for _, l := range s.local {
		n += len(l)
	}
	return n
}
