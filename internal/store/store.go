// Package store provides partitioned document access: point CRUD keyed by
// (partition key, id) and read-only queries over the whole collection.
//
// Writes are single-document and non-transactional. Callers composing
// check-then-act sequences (Get followed by Add or Update) get no atomicity
// between the two calls.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("store: item not found")
	ErrConflict            = errors.New("store: item already exists")
	ErrMissingPartitionKey = errors.New("store: partition key required")
	ErrMissingID           = errors.New("store: id required")
)

// Backend is the raw document engine. Documents are JSON objects.
// Implementations must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, id, pk string) ([]byte, error)
	Add(ctx context.Context, id, pk string, doc []byte) error
	Update(ctx context.Context, id, pk string, doc []byte) error
	Delete(ctx context.Context, id, pk string) error
	Query(ctx context.Context, q *Query) ([][]byte, error)
	Ping(ctx context.Context) error
}

// Document is anything with a stable document id.
type Document interface {
	DocumentID() string
}

// Items is a typed view of a Backend.
type Items[T Document] struct {
	backend Backend
}

func NewItems[T Document](b Backend) *Items[T] {
	return &Items[T]{backend: b}
}

// Get returns found=false with a nil error when nothing is stored at (pk, id).
func (s *Items[T]) Get(ctx context.Context, id, pk string) (T, bool, error) {
	var zero T
	if err := checkKeys(id, pk); err != nil {
		return zero, false, err
	}
	doc, err := s.backend.Get(ctx, id, pk)
	if errors.Is(err, ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var item T
	if err := json.Unmarshal(doc, &item); err != nil {
		return zero, false, fmt.Errorf("store: decode %s/%s: %w", pk, id, err)
	}
	return item, true, nil
}

// Add inserts item under pk. It never overwrites: an existing item yields ErrConflict.
func (s *Items[T]) Add(ctx context.Context, item T, pk string) error {
	id := item.DocumentID()
	if err := checkKeys(id, pk); err != nil {
		return err
	}
	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", pk, id, err)
	}
	return s.backend.Add(ctx, id, pk, doc)
}

// Update fully replaces the item at (pk, id), or returns ErrNotFound.
func (s *Items[T]) Update(ctx context.Context, id, pk string, item T) error {
	if err := checkKeys(id, pk); err != nil {
		return err
	}
	if got := item.DocumentID(); got != id {
		return fmt.Errorf("store: update %s: item id is %s", id, got)
	}
	doc, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", pk, id, err)
	}
	return s.backend.Update(ctx, id, pk, doc)
}

// Delete removes the item at (pk, id), or returns ErrNotFound.
func (s *Items[T]) Delete(ctx context.Context, id, pk string) error {
	if err := checkKeys(id, pk); err != nil {
		return err
	}
	return s.backend.Delete(ctx, id, pk)
}

// Query runs expr (see ParseQuery) across all partitions.
// Results come back in store-native order.
func (s *Items[T]) Query(ctx context.Context, expr string) ([]T, error) {
	q, err := ParseQuery(expr)
	if err != nil {
		return nil, err
	}
	docs, err := s.backend.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := json.Unmarshal(doc, &item); err != nil {
			return nil, fmt.Errorf("store: decode query result: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Items[T]) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func checkKeys(id, pk string) error {
	if pk == "" {
		return ErrMissingPartitionKey
	}
	if id == "" {
		return ErrMissingID
	}
	return nil
}
