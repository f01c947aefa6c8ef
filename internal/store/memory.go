package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"lifesim/internal/apperr"
)

type memoryEntry struct {
	snapshot  []byte
	updatedAt time.Time
}

type Memory struct {
	mu    sync.Mutex
	games map[string]memoryEntry
}

func NewMemory() *Memory {
	return &Memory{games: make(map[string]memoryEntry)}
}

func (m *Memory) Create(ctx context.Context, id string, snapshot []byte) error {
	if err := checkID(id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[id]; ok {
		return apperr.ErrGameExists
	}
	m.games[id] = memoryEntry{snapshot: slices.Clone(snapshot), updatedAt: time.Now().UTC()}
	return nil
}

func (m *Memory) Load(ctx context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.games[id]
	if !ok {
		return nil, apperr.ErrGameNotFound
	}
	return slices.Clone(e.snapshot), nil
}

func (m *Memory) Update(ctx context.Context, id string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.games[id]
	if !ok {
		return apperr.ErrGameNotFound
	}
	next, err := fn(slices.Clone(e.snapshot))
	if err != nil {
		return err
	}
	m.games[id] = memoryEntry{snapshot: slices.Clone(next), updatedAt: time.Now().UTC()}
	return nil
}

func (m *Memory) List(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.games))
	for id, e := range m.games {
		out = append(out, Record{ID: id, UpdatedAt: e.updatedAt})
	}
	slices.SortFunc(out, func(a, b Record) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[id]; !ok {
		return apperr.ErrGameNotFound
	}
	delete(m.games, id)
	return nil
}

func (m *Memory) Close() error { return nil }
