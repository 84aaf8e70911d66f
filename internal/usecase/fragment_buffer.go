package usecase

import (
	"sync"
)

// fragmentBuffer keeps captured audio fragments in arrival order.
type fragmentBuffer struct {
	mu        sync.Mutex
	fragments [][]byte
	size      int
}

func newFragmentBuffer() *fragmentBuffer {
	return &fragmentBuffer{}
}

func (b *fragmentBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	copied := append([]byte(nil), chunk...)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.fragments = append(b.fragments, copied)
	b.size += len(copied)
}

func (b *fragmentBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.fragments)
}

// Drain concatenates the buffered fragments into one payload and clears the buffer.
func (b *fragmentBuffer) Drain() ([]byte, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	payload := make([]byte, 0, b.size)
	for _, fragment := range b.fragments {
		payload = append(payload, fragment...)
	}
	count := len(b.fragments)
	b.fragments = nil
	b.size = 0
	return payload, count
}
