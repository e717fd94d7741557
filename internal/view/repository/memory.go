package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"aeriegateway/internal/view/model"
)

// MemoryRepository keeps views in process memory with the same ownership and
// ordering and decoding rules as ViewRepository. Used by tests.
type MemoryRepository struct {
	mu    sync.RWMutex
	store map[string]model.View
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: make(map[string]model.View)}
}

func (m *MemoryRepository) List(_ context.Context) ([]model.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summaries := make([]model.Summary, 0, len(m.store))
	for _, v := range m.sorted(func(model.View) bool { return true }) {
		summaries = append(summaries, v.Summary())
	}
	return summaries, nil
}

func (m *MemoryRepository) Get(_ context.Context, id string) (*model.View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.store[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	return cloneView(v), nil
}

func (m *MemoryRepository) ListForOwner(_ context.Context, username string) ([]model.View, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sorted(func(v model.View) bool {
		return v.Meta.Owner == username || v.Meta.Owner == model.SystemOwner
	}), nil
}

func (m *MemoryRepository) Create(_ context.Context, v *model.View) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[v.ID]; exists {
		return ErrViewNotCreated
	}
	m.store[v.ID] = *cloneView(*v)
	return nil
}

func (m *MemoryRepository) Update(_ context.Context, id, owner string, payload model.Payload, now int64) (*model.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.store[id]
	if !ok || current.Meta.Owner != owner {
		return nil, ErrViewNotFound
	}

	meta := current.Meta
	if now > meta.TimeUpdated {
		meta.TimeUpdated = now
	}
	// Round-trip through the document form so name is read the way a stored
	// row is.
	doc, err := json.Marshal(model.View{ID: current.ID, Meta: meta, Payload: payload.Without("id", "meta")})
	if err != nil {
		return nil, fmt.Errorf("encode view payload: %w", err)
	}
	next, err := decodeView(doc)
	if err != nil {
		return nil, err
	}
	m.store[id] = *next
	return cloneView(*next), nil
}

func (m *MemoryRepository) Delete(_ context.Context, id, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[id]
	if !ok || v.Meta.Owner != owner {
		return ErrViewNotFound
	}
	delete(m.store, id)
	return nil
}

// sorted must be called with the lock held.
func (m *MemoryRepository) sorted(keep func(model.View) bool) []model.View {
	out := make([]model.View, 0, len(m.store))
	for _, v := range m.store {
		if keep(v) {
			out = append(out, *cloneView(v))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Meta.TimeUpdated != out[j].Meta.TimeUpdated {
			return out[i].Meta.TimeUpdated > out[j].Meta.TimeUpdated
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneView(v model.View) *model.View {
	c := v
	c.Payload = make(map[string]json.RawMessage, len(v.Payload))
	for k, raw := range v.Payload {
		c.Payload[k] = append(json.RawMessage(nil), raw...)
	}
	return &c
}
