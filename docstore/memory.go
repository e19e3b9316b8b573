// ABOUTME: In-memory Backend implementation
// ABOUTME: Backs tests and the ephemeral store mode; supports transactions and watch
package docstore

import (
	"context"
	"sync"
)

// MemoryBackend keeps all documents in a process-local map. It implements
// the full Backend contract including transactions and watch, so the service
// layer behaves identically on it and on Firestore.
type MemoryBackend struct {
	mu     sync.RWMutex
	docs   map[string]Document
	hub    *watchHub
	closed bool
}

// NewMemoryBackend returns an empty in-memory store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs: make(map[string]Document),
		hub:  newWatchHub(),
	}
}

func (m *MemoryBackend) Get(_ context.Context, path string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	doc, ok := m.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyDoc(doc)
	out[PathKey] = path
	return out, nil
}

func (m *MemoryBackend) Set(_ context.Context, path string, doc Document) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.docs[path] = copyDoc(doc)
	m.mu.Unlock()
	m.hub.broadcast(path)
	return nil
}

func (m *MemoryBackend) Update(_ context.Context, path string, fields map[string]any) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	doc, ok := m.docs[path]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	next := copyDoc(doc)
	for k, v := range fields {
		next[k] = normalize(v)
	}
	m.docs[path] = next
	m.mu.Unlock()
	m.hub.broadcast(path)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	delete(m.docs, path)
	m.mu.Unlock()
	m.hub.broadcast(path)
	return nil
}

func (m *MemoryBackend) Find(_ context.Context, col Collection, q Query) ([]Document, error) {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, ErrClosed
	}
	var docs []Document
	for path, doc := range m.docs {
		if col.matches(path) {
			d := copyDoc(doc)
			d[PathKey] = path
			docs = append(docs, d)
		}
	}
	m.mu.RUnlock()
	return evalQuery(docs, q), nil
}

func (m *MemoryBackend) RunTransaction(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	tx := &memoryTx{
		base:    m.docs,
		staged:  make(map[string]Document),
		deleted: make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		m.mu.Unlock()
		return err
	}
	changed := make([]string, 0, len(tx.staged)+len(tx.deleted))
	for path, doc := range tx.staged {
		m.docs[path] = doc
		changed = append(changed, path)
	}
	for path := range tx.deleted {
		delete(m.docs, path)
		changed = append(changed, path)
	}
	m.mu.Unlock()
	m.hub.broadcast(changed...)
	return nil
}

func (m *MemoryBackend) Watch(ctx context.Context, col Collection, q Query, fn func(docs []Document)) (func(), error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	stop := m.hub.subscribe(col, func() {
		docs, err := m.Find(ctx, col, q)
		if err != nil {
			return
		}
		fn(docs)
	})
	return stop, nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// memoryTx stages writes until commit. Reads see staged state first so a
// transaction observes its own writes.
type memoryTx struct {
	base    map[string]Document
	staged  map[string]Document
	deleted map[string]bool
}

func (t *memoryTx) Get(path string) (Document, error) {
	if t.deleted[path] {
		return nil, ErrNotFound
	}
	if doc, ok := t.staged[path]; ok {
		out := copyDoc(doc)
		out[PathKey] = path
		return out, nil
	}
	doc, ok := t.base[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyDoc(doc)
	out[PathKey] = path
	return out, nil
}

func (t *memoryTx) Set(path string, doc Document) error {
	delete(t.deleted, path)
	t.staged[path] = copyDoc(doc)
	return nil
}

func (t *memoryTx) Update(path string, fields map[string]any) error {
	cur, err := t.Get(path)
	if err != nil {
		return err
	}
	delete(cur, PathKey)
	for k, v := range fields {
		cur[k] = normalize(v)
	}
	t.staged[path] = cur
	return nil
}

func (t *memoryTx) Delete(path string) error {
	delete(t.staged, path)
	t.deleted[path] = true
	return nil
}

func copyDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if k == PathKey {
			continue
		}
		out[k] = v
	}
	return out
}

// normalize pushes a raw value through the JSON round-trip so in-memory
// documents hold the same shapes a real document database would return.
func normalize(v any) any {
	switch v.(type) {
	case nil, string, bool, float64:
		return v
	}
	doc, err := Encode(map[string]any{"v": v})
	if err != nil {
		return v
	}
	return doc["v"]
}
