package inventory

import (
	"context"
	"sync"
)

type MemBackend struct {
	mu  sync.RWMutex
	doc []byte
}

func NewMemBackend() *MemBackend {
	return &MemBackend{}
}

// NewMemBackendWith seeds the backend with a raw document.
func NewMemBackendWith(doc []byte) *MemBackend {
	return &MemBackend{doc: append([]byte(nil), doc...)}
}

func (b *MemBackend) Read(ctx context.Context) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.doc == nil {
		return nil, nil
	}
	return append([]byte(nil), b.doc...), nil
}

func (b *MemBackend) Write(ctx context.Context, doc []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.doc = append([]byte(nil), doc...)
	return nil
}

func (b *MemBackend) Ping(ctx context.Context) error { return nil }

func (b *MemBackend) Close() error { return nil }
