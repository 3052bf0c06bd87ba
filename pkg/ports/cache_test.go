package ports_test

import (
	"context"
	"sync"
	"testing"

	"github.com/aretw0/opera/pkg/domain"
	"github.com/aretw0/opera/pkg/ports"
	"github.com/stretchr/testify/assert"
)

// mapCache is the smallest AnalysisCache that satisfies the contract.
type mapCache struct {
	mu       sync.Mutex
	data     map[string]ports.AnalysisEntry
	capacity int
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string]ports.AnalysisEntry), capacity: ports.CapacityFor(1)}
}

func (m *mapCache) Save(_ context.Context, e ports.AnalysisEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.data[e.Key]; ok && old.Depth > e.Depth {
		return nil
	}
	m.data[e.Key] = e
	return nil
}

func (m *mapCache) Load(_ context.Context, key string) (ports.AnalysisEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok {
		return ports.AnalysisEntry{}, domain.ErrCacheMiss
	}
	return e, nil
}

func (m *mapCache) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.data)
	return nil
}

func (m *mapCache) Len(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data), nil
}

func (m *mapCache) Resize(_ context.Context, mb int) error {
	m.capacity = ports.CapacityFor(mb)
	return nil
}

func (m *mapCache) Capacity() int { return m.capacity }

func TestAnalysisCacheContract_MapCache(t *testing.T) {
	ports.RunAnalysisCacheContract(t, newMapCache())
}

func TestCapacityFor(t *testing.T) {
	assert.Equal(t, ports.EntriesPerMB, ports.CapacityFor(0))
	assert.Equal(t, 16*ports.EntriesPerMB, ports.CapacityFor(16))
}
