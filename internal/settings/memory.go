package settings

import (
	"context"
	"sync"
)

// Memory is an in-process Backend.
type Memory struct {
	mu   sync.Mutex
	data map[string]string
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{data: map[string]string{}}
}

func (m *Memory) Get(_ context.Context, keys []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) Set(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.data[k] = v
	}
	return nil
}
