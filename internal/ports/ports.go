package ports

import (
	"context"
	"io"

	"presstalk/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session. Stop releases the microphone and
// must be safe to call more than once.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture acquires the microphone and starts a capture session.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Uploader submits one finalized recording to the backend collaborator.
type Uploader interface {
	Submit(ctx context.Context, recording domain.Recording) (domain.Reply, error)
}

// Player renders a playable audio reference (URL or data URI).
type Player interface {
	Play(ctx context.Context, source string) error
}

// EventSink receives the observable effects of session transitions.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	ConversationUpdated(userText string, assistantText string)
	PlaybackRequested(source string)
	SessionError(code domain.ErrorCode, detail string)
}
