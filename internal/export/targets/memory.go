package targets

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryTarget keeps the last stored file in memory. The HTTP download and
// tests read it back.
type MemoryTarget struct {
	mu   sync.Mutex
	name string
	data []byte
}

// NewMemoryTarget creates an empty in-memory target
func NewMemoryTarget() *MemoryTarget { return &MemoryTarget{} }

func (t *MemoryTarget) Name() string { return "memory" }

// Store replaces the held file with the contents of r
func (t *MemoryTarget) Store(ctx context.Context, name string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return storeError("memory", "read", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
	t.data = buf.Bytes()
	return nil
}

// File returns the name and contents of the last stored file
func (t *MemoryTarget) File() (string, []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name, t.data
}
