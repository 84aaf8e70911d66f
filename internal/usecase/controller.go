package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"presstalk/internal/audio/wav"
	"presstalk/internal/domain"
	"presstalk/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active recording session")
	ErrSessionBusy     = errors.New("a recording session is already in progress")
	ErrStartAborted    = errors.New("recording released before capture started")
)

// Config controls recording behavior.
type Config struct {
	Audio     ports.AudioConfig
	ChunkSize int
}

// SessionController drives the Idle → Recording → Processing → Idle state
// machine for press-to-talk interactions. Events are emitted while the
// controller lock is held so they arrive in transition order; sinks must not
// call back into the controller.
type SessionController struct {
	capture   ports.AudioCapture
	uploader  ports.Uploader
	events    ports.EventSink
	presenter replyPresenter
	log       *log.Logger
	cfg       Config
	newID     func() string

	mu      sync.Mutex
	state   domain.SessionState
	pending *pendingStart
	current *activeSession
}

func NewSessionController(
	capture ports.AudioCapture,
	uploader ports.Uploader,
	events ports.EventSink,
	logger *log.Logger,
	cfg Config,
) *SessionController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &SessionController{
		capture:   capture,
		uploader:  uploader,
		events:    events,
		presenter: newReplyPresenter(events),
		log:       logger,
		cfg:       cfg,
		newID:     uuid.NewString,
		state:     domain.SessionStateIdle,
	}
}

// Start acquires the microphone and begins recording. It is a no-op returning
// ErrSessionBusy unless the controller is idle with no acquisition in flight.
func (c *SessionController) Start(ctx context.Context) error {
	pending, sessionCtx, err := c.reserve(ctx)
	if err != nil {
		return err
	}
	return c.acquire(sessionCtx, pending)
}

// StartAsync reserves the session before returning and acquires the
// microphone in the background. A Stop issued after StartAsync returns always
// observes the reservation.
func (c *SessionController) StartAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	pending, sessionCtx, err := c.reserve(ctx)
	if err != nil {
		done <- err
		return done
	}
	go func() {
		done <- c.acquire(sessionCtx, pending)
	}()
	return done
}

func (c *SessionController) reserve(ctx context.Context) (*pendingStart, context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.SessionStateIdle || c.pending != nil {
		return nil, nil, ErrSessionBusy
	}
	sessionCtx, cancel := context.WithCancel(ctx)
	pending := &pendingStart{id: c.newID(), cancel: cancel}
	c.pending = pending
	return pending, sessionCtx, nil
}

func (c *SessionController) acquire(sessionCtx context.Context, pending *pendingStart) error {
	audioSession, err := c.capture.Start(sessionCtx, c.cfg.Audio)

	c.mu.Lock()
	c.pending = nil

	if pending.aborted {
		pending.cancel()
		c.log.Info("recording released before capture started", "session", pending.id)
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
		c.mu.Unlock()

		// A late stream is stopped outside the lock; ffmpeg may take a grace period to exit.
		if err == nil {
			_ = audioSession.Stop()
		}
		return ErrStartAborted
	}
	defer c.mu.Unlock()

	if err != nil {
		pending.cancel()
		c.log.Error("microphone access failed", "session", pending.id, "error", err)
		c.events.SessionError(domain.ErrorCodeMicrophone, err.Error())
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonMicUnavailable)
		return fmt.Errorf("%w: %w", domain.ErrMicrophoneUnavailable, err)
	}

	active := newActiveSession(pending.id, pending.cancel, audioSession)
	c.current = active
	c.state = domain.SessionStateRecording

	go pumpAudioFragments(active.audio, active.fragments, c.cfg.ChunkSize, c.events, c.log.With("session", active.id), active.pumpDone)

	c.log.Info("recording started", "session", active.id)
	c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	return nil
}

// Stop ends the recording phase, submits the captured audio and presents the
// reply. Releasing the control while idle resets the display without an error
// event; while processing it is a no-op.
func (c *SessionController) Stop(ctx context.Context) (domain.Reply, error) {
	return c.stop(ctx, false)
}

// Leave handles the pointer leaving the control while pressed. It only acts
// when a recording is in progress.
func (c *SessionController) Leave(ctx context.Context) (domain.Reply, error) {
	return c.stop(ctx, true)
}

// StopAsync performs the transition out of Recording before returning and
// finishes the capture and submission in the background.
func (c *SessionController) StopAsync(ctx context.Context) <-chan error {
	return c.stopAsync(ctx, false)
}

// LeaveAsync is the background form of Leave.
func (c *SessionController) LeaveAsync(ctx context.Context) <-chan error {
	return c.stopAsync(ctx, true)
}

func (c *SessionController) stopAsync(ctx context.Context, onlyIfRecording bool) <-chan error {
	done := make(chan error, 1)
	active, err := c.beginStop(onlyIfRecording)
	if err != nil {
		done <- err
		return done
	}
	go func() {
		_, err := c.completeStop(ctx, active)
		done <- err
	}()
	return done
}

func (c *SessionController) stop(ctx context.Context, onlyIfRecording bool) (domain.Reply, error) {
	active, err := c.beginStop(onlyIfRecording)
	if err != nil {
		return domain.Reply{}, err
	}
	return c.completeStop(ctx, active)
}

// beginStop moves a recording session to Processing. Every other state is
// handled here without blocking.
func (c *SessionController) beginStop(onlyIfRecording bool) (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		c.pending.aborted = true
		c.pending.cancel()
		return nil, ErrNoActiveSession
	}

	switch c.state {
	case domain.SessionStateProcessing:
		return nil, ErrSessionBusy
	case domain.SessionStateIdle:
		if !onlyIfRecording {
			c.log.Debug("release without an active recording")
			c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonNoActiveRecording)
		}
		return nil, ErrNoActiveSession
	}

	c.state = domain.SessionStateProcessing
	c.events.SessionStateChanged(domain.SessionStateProcessing, domain.SessionReasonProcessing)
	return c.current, nil
}

func (c *SessionController) completeStop(ctx context.Context, active *activeSession) (domain.Reply, error) {
	recording := c.finalizeCapture(active)
	return c.submit(ctx, active, recording)
}

// Abort discards an in-progress recording without submitting it.
func (c *SessionController) Abort() error {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.aborted = true
		c.pending.cancel()
		c.mu.Unlock()
		return nil
	}
	if c.state != domain.SessionStateRecording {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	active := c.current
	c.state = domain.SessionStateProcessing
	c.mu.Unlock()

	_ = active.release()
	<-active.pumpDone
	active.fragments.Drain()

	c.finish(active, func() {
		c.log.Info("recording discarded", "session", active.id)
		c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
	})
	return nil
}

// Status returns the current session status.
func (c *SessionController) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.Status{State: c.state, Active: c.state != domain.SessionStateIdle}
	switch {
	case c.current != nil:
		status.SessionID = c.current.id
	case c.pending != nil:
		status.SessionID = c.pending.id
		status.Active = true
	}
	return status
}

func (c *SessionController) finalizeCapture(active *activeSession) domain.Recording {
	if err := active.release(); err != nil {
		c.log.Warn("audio capture did not stop cleanly", "session", active.id, "error", err)
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	<-active.pumpDone

	pcm, fragments := active.fragments.Drain()
	return domain.Recording{
		SessionID:   active.id,
		Audio:       wav.Encode(pcm, c.cfg.Audio.SampleRate, c.cfg.Audio.Channels),
		ContentType: wav.ContentType,
		Fragments:   fragments,
	}
}

func (c *SessionController) submit(ctx context.Context, active *activeSession, recording domain.Recording) (domain.Reply, error) {
	c.log.Info("submitting recording",
		"session", active.id,
		"bytes", len(recording.Audio),
		"fragments", recording.Fragments,
		"duration", time.Since(active.startedAt).Round(time.Millisecond),
	)

	reply, err := c.uploader.Submit(ctx, recording)
	if err != nil {
		c.finish(active, func() {
			code, _ := c.presenter.Fail(err)
			c.log.Error("submission failed", "session", active.id, "code", code, "error", err)
			c.events.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonRequestFailed)
		})
		return domain.Reply{}, err
	}

	c.finish(active, func() {
		reason := c.presenter.Present(reply)
		c.log.Info("reply received", "session", active.id, "audio", reply.HasAudio())
		c.events.SessionStateChanged(domain.SessionStateIdle, reason)
	})
	return reply, nil
}

func (c *SessionController) finish(active *activeSession, emit func()) {
	active.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == active {
		c.current = nil
	}
	c.state = domain.SessionStateIdle
	emit()
}
