package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// sweepEvery bounds how many writes may pass between sweeps of expired
// entries, so the map does not grow past its live set for long.
const sweepEvery = 256

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store. Reads go through sync.Map and take no lock;
// writes are atomic per key. An expired entry is treated as absent on read
// and dropped; a full sweep runs every sweepEvery writes.
type Memory struct {
	entries sync.Map
	writes  atomic.Uint64

	// now is a test seam.
	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	e := v.(entry)
	if !e.expiresAt.After(m.now()) {
		m.entries.Delete(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.entries.Store(key, entry{value: stored, expiresAt: m.now().Add(ttl)})

	if m.writes.Add(1)%sweepEvery == 0 {
		m.sweep()
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}

func (m *Memory) sweep() {
	now := m.now()
	m.entries.Range(func(k, v any) bool {
		if !v.(entry).expiresAt.After(now) {
			m.entries.Delete(k)
		}
		return true
	})
}
