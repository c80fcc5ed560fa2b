package host

import "sync"

type Buffer struct {
	mu   sync.RWMutex
	data []float32
}

func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.data)
}

func (b *Buffer) Close() error {
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
	return nil
}
