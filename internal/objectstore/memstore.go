package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/agentforge/controlplane/internal/apperr"
)

// MemStore is an in-memory Store backing unit tests for the stager and
// upload path, avoiding a real S3-compatible endpoint in CI.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

func (m *MemStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return apperr.Wrap(err, "read object body")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *MemStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("object", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *MemStore) PresignGET(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return "", apperr.NotFound("object", key)
	}
	return fmt.Sprintf("mem://%s?ttl=%s", key, ttl), nil
}
