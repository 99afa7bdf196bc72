package exthost

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopware/exthost/internal/protocol"
)

// Memento is a key value store persisted by the main side. Shared mementos
// are visible to every workspace.
type Memento struct {
	main   protocol.StorageProxy
	shared bool

	mu    sync.Mutex
	cache map[string]json.RawMessage
}

func newMemento(main protocol.StorageProxy, shared bool) *Memento {
	return &Memento{main: main, shared: shared, cache: make(map[string]json.RawMessage)}
}

// Get decodes the value of key into v. It reports false when key is not set.
func (m *Memento) Get(ctx context.Context, key string, v any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.cache[key]
	m.mu.Unlock()

	if !ok {
		var err error
		raw, err = m.main.GetValue(ctx, m.shared, key)
		if err != nil {
			return false, err
		}
		m.mu.Lock()
		m.cache[key] = raw
		m.mu.Unlock()
	}
	if len(raw) == 0 || string(raw) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to decode state %s: %w", key, err)
	}
	return true, nil
}

// Update stores value under key. A nil value deletes the key.
func (m *Memento) Update(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state %s: %w", key, err)
	}
	if err := m.main.SetValue(ctx, m.shared, key, raw); err != nil {
		return err
	}
	m.mu.Lock()
	m.cache[key] = raw
	m.mu.Unlock()
	return nil
}
