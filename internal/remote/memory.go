package remote

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs tests and offline development,
// and can be told to fail every call to simulate an unreachable remote.
// It is safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	docs   map[string]map[string]map[string]any // collection -> id -> data
	fail   error
	calls  map[string]int
	closed bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs:  make(map[string]map[string]map[string]any),
		calls: make(map[string]int),
	}
}

// FailWith makes every later call return err. A nil err restores normal operation.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Calls returns how many times op ("add", "get", "set", "update", "delete",
// "query") has been invoked, failed calls included.
func (m *Memory) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// Len returns the number of documents in collection.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[collection])
}

// enter records the call and reports the injected failure, if any.
// Callers hold m.mu for writing.
func (m *Memory) enter(op string) error {
	m.calls[op]++
	if m.closed {
		return ErrClosed
	}
	return m.fail
}

func (m *Memory) Add(_ context.Context, collection string, data map[string]any) (string, error) {
	doc, err := normalize(data)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("add"); err != nil {
		return "", err
	}
	id := uuid.NewString()
	m.collection(collection)[id] = doc
	return id, nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("get"); err != nil {
		return nil, err
	}
	data, ok := m.docs[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &Document{ID: id, Data: maps.Clone(data)}, nil
}

func (m *Memory) Set(_ context.Context, collection, id string, data map[string]any) error {
	doc, err := normalize(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("set"); err != nil {
		return err
	}
	m.collection(collection)[id] = doc
	return nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]any) error {
	patch, err := normalize(fields)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("update"); err != nil {
		return err
	}
	data, ok := m.docs[collection][id]
	if !ok {
		return ErrNotFound
	}
	maps.Copy(data, patch)
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("delete"); err != nil {
		return err
	}
	delete(m.docs[collection], id)
	return nil
}

func (m *Memory) Query(_ context.Context, collection string, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("query"); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(m.docs[collection]))
	for id, data := range m.docs[collection] {
		docs = append(docs, Document{ID: id, Data: maps.Clone(data)})
	}
	return q.Apply(docs), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Memory) collection(name string) map[string]map[string]any {
	c, ok := m.docs[name]
	if !ok {
		c = make(map[string]map[string]any)
		m.docs[name] = c
	}
	return c
}
