package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type memoryCache struct {
	namespace string
	log       *slog.Logger

	mu       sync.Mutex
	versions map[string]int64
}

// NewMemoryCache keeps versions in process; they reset on restart.
func NewMemoryCache(namespace string, log *slog.Logger) Cache {
	if log == nil {
		log = slog.Default()
	}
	return &memoryCache{
		namespace: namespace,
		log:       log,
		versions:  make(map[string]int64),
	}
}

func (m *memoryCache) Invalidate(ctx context.Context, key string) {
	k := m.GenerateKey(opVersion, key)
	m.mu.Lock()
	m.versions[k]++
	v := m.versions[k]
	m.mu.Unlock()
	m.log.DebugContext(ctx, "cache: invalidated", "key", key, "version", v)
}

func (m *memoryCache) Version(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[m.GenerateKey(opVersion, key)], nil
}

func (m *memoryCache) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", m.namespace, operation, key)
}
