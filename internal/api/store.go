package api

import "sync"

// ModelCard is the registry entry served by the models endpoints.
type ModelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`

	ContextWindow int `json:"context_window,omitempty"`
}

// ModelStore tracks the models this process serves. The first registered
// model is the default for requests that leave the model field empty.
type ModelStore struct {
	mu        sync.RWMutex
	order     []string
	models    map[string]ModelCard
	defaultID string
}

func NewModelStore() *ModelStore {
	return &ModelStore{models: make(map[string]ModelCard)}
}

func (s *ModelStore) Add(card ModelCard) {
	if card.Object == "" {
		card.Object = "model"
	}
	if card.OwnedBy == "" {
		card.OwnedBy = "local"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[card.ID]; !ok {
		s.order = append(s.order, card.ID)
	}
	s.models[card.ID] = card
	if s.defaultID == "" {
		s.defaultID = card.ID
	}
}

func (s *ModelStore) Get(id string) (ModelCard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.models[id]
	return card, ok
}

// Default returns the card requests fall back to when no model is named.
func (s *ModelStore) Default() (ModelCard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	card, ok := s.models[s.defaultID]
	return card, ok
}

// List returns the cards in registration order.
func (s *ModelStore) List() []ModelCard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ModelCard, 0, len(s.order))
	for _, id := range s.order {
		if card, ok := s.models[id]; ok {
			out = append(out, card)
		}
	}
	return out
}

func (s *ModelStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[id]; !ok {
		return false
	}
	delete(s.models, id)
	for i, mid := range s.order {
		if mid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.defaultID == id {
		s.defaultID = ""
		if len(s.order) > 0 {
			s.defaultID = s.order[0]
		}
	}
	return true
}

func (s *ModelStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}
