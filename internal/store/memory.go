package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store used in tests and local development.
type Memory struct {
	mu     sync.RWMutex
	byCode map[string]Mapping
	byID   map[string]Mapping
	clicks map[string][]Click // mapping id -> clicks, insertion order
}

func NewMemory() *Memory {
	return &Memory{
		byCode: make(map[string]Mapping),
		byID:   make(map[string]Mapping),
		clicks: make(map[string][]Click),
	}
}

func (m *Memory) SaveMapping(_ context.Context, mp Mapping) (Mapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byCode[mp.ShortCode]; exists {
		return Mapping{}, ErrConflict
	}
	if mp.ID == "" {
		mp.ID = uuid.NewString()
	}
	m.byCode[mp.ShortCode] = mp
	m.byID[mp.ID] = mp
	return mp, nil
}

func (m *Memory) FindByCode(_ context.Context, code string) (Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mp, ok := m.byCode[code]
	if !ok {
		return Mapping{}, ErrNotFound
	}
	return mp, nil
}

func (m *Memory) ListMappings(_ context.Context) ([]Mapping, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Mapping, 0, len(m.byID))
	for _, mp := range m.byID {
		out = append(out, mp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ShortCode < out[j].ShortCode
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) DeleteMapping(_ context.Context, mappingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mp, ok := m.byID[mappingID]
	if !ok {
		return ErrNotFound
	}
	delete(m.byID, mappingID)
	delete(m.byCode, mp.ShortCode)
	delete(m.clicks, mappingID)
	return nil
}

func (m *Memory) SaveClick(_ context.Context, c Click) (Click, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[c.MappingID]; !ok {
		return Click{}, ErrNotFound
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	m.clicks[c.MappingID] = append(m.clicks[c.MappingID], c)
	return c, nil
}

func (m *Memory) CountClicks(_ context.Context, mappingID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.clicks[mappingID])), nil
}

func (m *Memory) RecentClicks(_ context.Context, mappingID string, limit int) ([]Click, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.clicks[mappingID]
	out := make([]Click, len(all))
	copy(out, all)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ClickedAt.After(out[j].ClickedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) TopCodes(_ context.Context, n int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type entry struct {
		code string
		hits int
	}
	es := make([]entry, 0, len(m.byID))
	for id, mp := range m.byID {
		es = append(es, entry{code: mp.ShortCode, hits: len(m.clicks[id])})
	}
	sort.Slice(es, func(i, j int) bool {
		if es[i].hits == es[j].hits {
			return es[i].code < es[j].code
		}
		return es[i].hits > es[j].hits
	})
	if len(es) > n {
		es = es[:n]
	}
	codes := make([]string, len(es))
	for i, e := range es {
		codes[i] = e.code
	}
	return codes, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
