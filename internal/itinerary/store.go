package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/odyssey-travel/odyssey/server/internal/catalog"
)

// DefaultKey is the single key holding the itinerary
const DefaultKey = "odyssey-itinerary"

// Store persists the user's list of places as one JSON array
type Store struct {
	kv     KV
	key    string
	logger *zap.Logger

	// serializes read-modify-write cycles
	mu sync.Mutex
}

// NewStore uses DefaultKey when key is empty
func NewStore(kv KV, key string, logger *zap.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, key: key, logger: logger}
}

// Load returns the stored places. Missing or unreadable data yields an empty list.
func (s *Store) Load(ctx context.Context) ([]catalog.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Save replaces the stored list
func (s *Store) Save(ctx context.Context, places []catalog.Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, places)
}

// Add appends place unless a place with the same id is present, returning the resulting list
func (s *Store) Add(ctx context.Context, place catalog.Place) ([]catalog.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	places, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	if indexOf(places, place.ID) >= 0 {
		return places, nil
	}
	places = append(places, place)
	if err := s.saveLocked(ctx, places); err != nil {
		return nil, err
	}
	s.logger.Info("Added place to itinerary", zap.String("place_id", place.ID), zap.Int("size", len(places)))
	return places, nil
}

// Remove drops the place with id, returning the resulting list
func (s *Store) Remove(ctx context.Context, id string) ([]catalog.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	places, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	kept := places[:0]
	for _, p := range places {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if err := s.saveLocked(ctx, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

// Clear deletes the stored itinerary
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to clear itinerary: %w", err)
	}
	return nil
}

// Contains reports whether id is in the itinerary
func (s *Store) Contains(ctx context.Context, id string) (bool, error) {
	places, err := s.Load(ctx)
	if err != nil {
		return false, err
	}
	return indexOf(places, id) >= 0, nil
}

// Get returns the itinerary entry with id
func (s *Store) Get(ctx context.Context, id string) (catalog.Place, bool, error) {
	places, err := s.Load(ctx)
	if err != nil {
		return catalog.Place{}, false, err
	}
	if i := indexOf(places, id); i >= 0 {
		return places[i], true, nil
	}
	return catalog.Place{}, false, nil
}

func (s *Store) loadLocked(ctx context.Context) ([]catalog.Place, error) {
	data, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to load itinerary: %w", err)
	}
	if !ok || len(data) == 0 {
		return []catalog.Place{}, nil
	}

	var places []catalog.Place
	if err := json.Unmarshal(data, &places); err != nil {
		s.logger.Warn("Discarding corrupt itinerary", zap.String("key", s.key), zap.Error(err))
		return []catalog.Place{}, nil
	}
	if places == nil {
		places = []catalog.Place{}
	}
	return places, nil
}

func (s *Store) saveLocked(ctx context.Context, places []catalog.Place) error {
	if places == nil {
		places = []catalog.Place{}
	}
	data, err := json.Marshal(places)
	if err != nil {
		return fmt.Errorf("failed to encode itinerary: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, data); err != nil {
		return fmt.Errorf("failed to save itinerary: %w", err)
	}
	return nil
}

func indexOf(places []catalog.Place, id string) int {
	for i, p := range places {
		if p.ID == id {
			return i
		}
	}
	return -1
}
