package usecase

import (
	"context"
	"sync"
	"time"

	"presstalk/internal/ports"
)

// pendingStart tracks a microphone request that has not resolved yet.
type pendingStart struct {
	id      string
	cancel  context.CancelFunc
	aborted bool
}

type activeSession struct {
	id        string
	cancel    context.CancelFunc
	audio     ports.AudioSession
	startedAt time.Time

	fragments *fragmentBuffer
	pumpDone  chan struct{}

	releaseOnce sync.Once
	releaseErr  error
}

func newActiveSession(id string, cancel context.CancelFunc, audio ports.AudioSession) *activeSession {
	return &activeSession{
		id:        id,
		cancel:    cancel,
		audio:     audio,
		startedAt: time.Now(),
		fragments: newFragmentBuffer(),
		pumpDone:  make(chan struct{}),
	}
}

// release stops the microphone stream. Only the first call reaches the capture session.
func (s *activeSession) release() error {
	s.releaseOnce.Do(func() {
		s.releaseErr = s.audio.Stop()
	})
	return s.releaseErr
}
