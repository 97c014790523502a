package resolver

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"taubsi/internal/domain"
)

type slot struct {
	location  domain.Location
	encounter atomic.Pointer[domain.Encounter]
}

// Table хранит каталог арен по регионам и текущий рейд каждой арены.
// Рейд в слоте заменяется целиком и не изменяется после публикации.
type Table struct {
	mu       sync.RWMutex
	slots    map[string]*slot
	byRegion map[string][]string
}

// NewTable создаёт пустую таблицу.
func NewTable() *Table {
	return &Table{slots: make(map[string]*slot), byRegion: make(map[string][]string)}
}

// SetLocations заменяет каталог региона. Рейды уже известных арен сохраняются.
func (t *Table) SetLocations(region string, locations []domain.Location) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(locations))
	for _, loc := range locations {
		loc.Region = region
		if s, ok := t.slots[loc.ID]; ok {
			s.location = loc
		} else {
			t.slots[loc.ID] = &slot{location: loc}
		}
		ids = append(ids, loc.ID)
	}
	sort.Strings(ids)
	t.byRegion[region] = ids
}

// Locations возвращает арены региона.
func (t *Table) Locations(region string) []domain.Location {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := t.byRegion[region]
	out := make([]domain.Location, 0, len(ids))
	for _, id := range ids {
		out = append(out, t.slots[id].location)
	}
	return out
}

// Location ищет арену по идентификатору.
func (t *Table) Location(id string) (domain.Location, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.slots[id]
	if !ok {
		return domain.Location{}, false
	}
	return s.location, true
}

// Encounter возвращает текущий рейд арены или nil.
func (t *Table) Encounter(id string) *domain.Encounter {
	t.mu.RLock()
	s, ok := t.slots[id]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	return s.encounter.Load()
}

// SetEncounter публикует новый рейд арены. Замена происходит, если сменился
// босс, атаки или окно времени. Возвращает true при замене.
func (t *Table) SetEncounter(id string, e domain.Encounter) bool {
	t.mu.RLock()
	s, ok := t.slots[id]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	old := s.encounter.Load()
	if old != nil && old.Equal(e) && old.Moveset == e.Moveset && old.Start.Equal(e.Start) && old.End.Equal(e.End) && old.Level == e.Level {
		return false
	}
	snap := e
	return s.encounter.CompareAndSwap(old, &snap)
}

// Resolve разрешает рейд арены через Resolver.
func (t *Table) Resolve(r *Resolver, id string, level int, now time.Time) domain.Encounter {
	return r.Resolve(t.Encounter(id), level, now)
}
