package objectclient

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/markdave123-py/libassist/internal/core"
)

// MemoryObjects is the object store used when S3 is not configured.
type MemoryObjects struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{objects: make(map[string][]byte)}
}

func (m *MemoryObjects) UploadFile(_ context.Context, bucket, key string, data io.Reader, _ string) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	m.mu.Lock()
	m.objects[bucket+"/"+key] = b
	m.mu.Unlock()
	return "memory://" + bucket + "/" + key, nil
}

func (m *MemoryObjects) DeleteFile(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	delete(m.objects, bucket+"/"+key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryObjects) GetFile(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
	}
	return append([]byte(nil), b...), nil
}

var _ core.ObjectClient = (*MemoryObjects)(nil)
