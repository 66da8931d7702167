package export

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// DocumentSink is the write side of an export.
type DocumentSink interface {
	// Clear removes every document from collection. Missing collections are fine.
	Clear(ctx context.Context, collection string) error
	// InsertMany appends docs to collection. An empty slice is a no-op.
	InsertMany(ctx context.Context, collection string, docs []any) error
	// EnsureUniqueIndex creates an ascending unique index on field.
	EnsureUniqueIndex(ctx context.Context, collection, field string) error
	// Count returns the number of documents in collection.
	Count(ctx context.Context, collection string) (int64, error)
}

// MemorySink keeps documents in memory. Used by tests and dry runs.
type MemorySink struct {
	mu      sync.Mutex
	docs    map[string][]any
	indexes map[string][]string
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		docs:    make(map[string][]any),
		indexes: make(map[string][]string),
	}
}

func (m *MemorySink) Clear(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, collection)
	return nil
}

func (m *MemorySink) InsertMany(_ context.Context, collection string, docs []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, field := range m.indexes[collection] {
		if err := checkUnique(append(append([]any{}, m.docs[collection]...), docs...), field); err != nil {
			return fmt.Errorf("%s: %w", collection, err)
		}
	}
	m.docs[collection] = append(m.docs[collection], docs...)
	return nil
}

// EnsureUniqueIndex fails like a document store would when the collection
// already holds duplicates of field.
func (m *MemorySink) EnsureUniqueIndex(_ context.Context, collection, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.indexes[collection] {
		if f == field {
			return nil
		}
	}
	if err := checkUnique(m.docs[collection], field); err != nil {
		return fmt.Errorf("%s: %w", collection, err)
	}
	m.indexes[collection] = append(m.indexes[collection], field)
	return nil
}

func (m *MemorySink) Count(_ context.Context, collection string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.docs[collection])), nil
}

// Documents returns a copy of the documents in collection.
func (m *MemorySink) Documents(collection string) []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.docs[collection]...)
}

// Indexes returns the unique index fields of collection, sorted.
func (m *MemorySink) Indexes(collection string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]string(nil), m.indexes[collection]...)
	sort.Strings(out)
	return out
}

// checkUnique reports the first duplicate value of the field tagged
// bson:"field" across docs.
func checkUnique(docs []any, field string) error {
	seen := make(map[any]bool, len(docs))
	for _, d := range docs {
		v, ok := fieldByTag(d, field)
		if !ok {
			continue
		}
		if seen[v] {
			return fmt.Errorf("duplicate key %s: %v", field, v)
		}
		seen[v] = true
	}
	return nil
}

func fieldByTag(doc any, field string) (any, bool) {
	v := reflect.ValueOf(doc)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("bson") == field {
			return v.Field(i).Interface(), true
		}
	}
	return nil, false
}
