package store

import (
	"context"
	"slices"
	"sync"
)

type memKey struct {
	pk, id string
}

type memEntry struct {
	seq uint64
	doc []byte
}

// Memory is an in-process Backend. Query results follow insertion order,
// matching the Postgres backend's seq ordering.
type Memory struct {
	mu    sync.RWMutex
	seq   uint64
	items map[memKey]memEntry
}

func NewMemory() *Memory {
	return &Memory{items: make(map[memKey]memEntry)}
}

func (m *Memory) Get(_ context.Context, id, pk string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.items[memKey{pk, id}]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(e.doc), nil
}

func (m *Memory) Add(_ context.Context, id, pk string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{pk, id}
	if _, ok := m.items[k]; ok {
		return ErrConflict
	}
	m.seq++
	m.items[k] = memEntry{seq: m.seq, doc: slices.Clone(doc)}
	return nil
}

// Update keeps the original insertion position.
func (m *Memory) Update(_ context.Context, id, pk string, doc []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{pk, id}
	e, ok := m.items[k]
	if !ok {
		return ErrNotFound
	}
	e.doc = slices.Clone(doc)
	m.items[k] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, id, pk string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memKey{pk, id}
	if _, ok := m.items[k]; !ok {
		return ErrNotFound
	}
	delete(m.items, k)
	return nil
}

func (m *Memory) Query(ctx context.Context, q *Query) ([][]byte, error) {
	m.mu.RLock()
	matched := make([]memEntry, 0, len(m.items))
	for _, e := range m.items {
		ok, err := q.Match(e.doc)
		if err != nil {
			m.mu.RUnlock()
			return nil, err
		}
		if ok {
			matched = append(matched, memEntry{seq: e.seq, doc: slices.Clone(e.doc)})
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(matched, func(a, b memEntry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([][]byte, len(matched))
	for i, e := range matched {
		out[i] = e.doc
	}
	return out, ctx.Err()
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }
