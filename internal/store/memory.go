package store

import (
	"context"
	"sort"
	"sync"

	"github.com/MiX1964/wforecast/internal/weather"
)

// MemoryStore is a concurrency-safe in-memory PlaceCache. Contents are lost on restart.
type MemoryStore struct {
	mu sync.RWMutex

	// key: provider place id
	places map[int64]weather.Place
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		places: make(map[int64]weather.Place),
	}
}

// GetByName returns the place with the lowest id among those named name.
func (s *MemoryStore) GetByName(_ context.Context, name string) (weather.Place, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  weather.Place
		found bool
	)
	for _, p := range s.places {
		if p.Name != name {
			continue
		}
		if !found || p.ID < best.ID {
			best = p
			found = true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (weather.Place, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.places[id]
	return p, ok, nil
}

func (s *MemoryStore) ExistsByID(_ context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.places[id]
	return ok, nil
}

// InsertIfAbsent checks and inserts under the write lock, so it is atomic.
func (s *MemoryStore) InsertIfAbsent(_ context.Context, place weather.Place) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.places[place.ID]; ok {
		return false, nil
	}
	s.places[place.ID] = place
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.places, id)
	return nil
}

// List returns all places ordered by name, then id.
func (s *MemoryStore) List(_ context.Context) ([]weather.Place, error) {
	s.mu.RLock()
	out := make([]weather.Place, 0, len(s.places))
	for _, p := range s.places {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
