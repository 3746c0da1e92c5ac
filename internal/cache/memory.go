package cache

import (
	"context"
	"sort"
	"sync"
)

// MemoryStorage is a process-local Storage.
type MemoryStorage struct {
	mu         sync.RWMutex
	namespaces map[string]*memoryNamespace
	order      []string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{namespaces: make(map[string]*memoryNamespace)}
}

func (m *MemoryStorage) Open(_ context.Context, name string) (Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ns, ok := m.namespaces[name]; ok {
		return ns, nil
	}
	ns := &memoryNamespace{name: name, entries: make(map[string]*Response)}
	m.namespaces[name] = ns
	m.order = append(m.order, name)
	return ns, nil
}

func (m *MemoryStorage) Has(_ context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.namespaces[name]
	return ok, nil
}

func (m *MemoryStorage) Names(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

func (m *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[name]
	if !ok {
		return false, nil
	}
	delete(m.namespaces, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	ns.mu.Lock()
	ns.entries = make(map[string]*Response)
	ns.mu.Unlock()
	return true, nil
}

type memoryNamespace struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Response
}

func (n *memoryNamespace) Name() string { return n.name }

func (n *memoryNamespace) Match(_ context.Context, key string) (*Response, bool, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	r, ok := n.entries[key]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (n *memoryNamespace) Put(_ context.Context, key string, resp *Response) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries[key] = resp.Clone()
	return nil
}

func (n *memoryNamespace) Delete(_ context.Context, key string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.entries[key]
	delete(n.entries, key)
	return ok, nil
}

func (n *memoryNamespace) Keys(_ context.Context) ([]string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	keys := make([]string, 0, len(n.entries))
	for k := range n.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
