package view

import (
	"sync"

	"presstalk/internal/domain"
	"presstalk/internal/ports"
)

// Element ids of the widget page.
const (
	ElementRecordButton  = "recordButton"
	ElementStatus        = "status"
	ElementUserText      = "userText"
	ElementAssistantText = "assistantText"
	ElementAudioPlayer   = "audioPlayer"
)

const (
	LabelIdle       = "Hold to Talk"
	LabelRecording  = "Release to Send"
	LabelProcessing = "Processing..."

	StatusReady              = "Ready. Hold the button to talk."
	StatusRecording          = "Recording... Release to send."
	StatusProcessing         = "Processing audio..."
	StatusReplyPlaying       = "Reply received. Playing..."
	StatusReplyTextOnly      = "Text reply received, but no audio."
	StatusReadyForNext       = "Ready for a new request."
	StatusMicrophoneError    = "Microphone access error. Check permissions."
	StatusNoRecording        = "Ready. Previous error or no recording started."
	StatusRecordingDiscarded = "Recording discarded. Hold the button to talk."
	StatusNetworkError       = "Network or processing error."
	StatusMalformedReply     = "Error: malformed response from server"
	StatusPlaybackError      = "Could not play the reply audio."
)

// Snapshot is everything the widget renders at one point in time.
type Snapshot struct {
	State           domain.SessionState `json:"state"`
	Status          string              `json:"status"`
	ControlLabel    string              `json:"controlLabel"`
	ControlDisabled bool                `json:"controlDisabled"`
	Recording       bool                `json:"recording"`
	UserText        string              `json:"userText"`
	AssistantText   string              `json:"assistantText"`
	AudioSource     string              `json:"audioSource,omitempty"`
	// PlaybackSeq increments on every playback request so renderers can tell a
	// repeated reply apart from a re-render.
	PlaybackSeq int              `json:"playbackSeq"`
	ErrorCode   domain.ErrorCode `json:"errorCode,omitempty"`
	ErrorDetail string           `json:"errorDetail,omitempty"`
}

// InitialSnapshot is the page as first rendered.
func InitialSnapshot() Snapshot {
	return Snapshot{
		State:        domain.SessionStateIdle,
		Status:       StatusReady,
		ControlLabel: LabelIdle,
	}
}

// Model folds session events into a Snapshot and notifies subscribers. It
// implements ports.EventSink.
type Model struct {
	mu          sync.Mutex
	snap        Snapshot
	nextID      int
	subscribers map[int]func(Snapshot)

	// feedback receives renderer-reported errors; the model itself when unset.
	feedback ports.EventSink
}

func NewModel() *Model {
	return &Model{
		snap:        InitialSnapshot(),
		subscribers: make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current view state.
func (m *Model) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Subscribe registers fn for every snapshot change and returns a function that
// removes it. fn runs outside the model lock.
func (m *Model) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

func (m *Model) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	m.update(func(s *Snapshot) {
		s.State = state
		switch state {
		case domain.SessionStateRecording:
			s.Status = StatusRecording
			s.ControlLabel = LabelRecording
			s.ControlDisabled = false
			s.Recording = true
			s.UserText = ""
			s.AssistantText = ""
			s.ErrorCode = ""
			s.ErrorDetail = ""
		case domain.SessionStateProcessing:
			s.Status = StatusProcessing
			s.ControlLabel = LabelProcessing
			s.ControlDisabled = true
			s.Recording = false
		default:
			s.ControlLabel = LabelIdle
			s.ControlDisabled = false
			s.Recording = false
			if status := idleStatus(reason); status != "" {
				s.Status = status
			}
		}
	})
}

func (m *Model) ConversationUpdated(userText string, assistantText string) {
	m.update(func(s *Snapshot) {
		s.UserText = userText
		s.AssistantText = assistantText
	})
}

func (m *Model) PlaybackRequested(source string) {
	m.update(func(s *Snapshot) {
		s.AudioSource = source
		s.PlaybackSeq++
	})
}

func (m *Model) SessionError(code domain.ErrorCode, detail string) {
	m.update(func(s *Snapshot) {
		s.ErrorCode = code
		s.ErrorDetail = detail
		if status := errorStatus(code, detail); status != "" {
			s.Status = status
		}
	})
}

// PlaybackEnded records that the reply audio finished playing.
func (m *Model) PlaybackEnded() {
	m.update(func(s *Snapshot) {
		if s.State == domain.SessionStateIdle {
			s.Status = StatusReadyForNext
		}
	})
}

// ReportTo routes renderer feedback such as playback failures through sink,
// which must forward to the model. Used to count them alongside session errors.
func (m *Model) ReportTo(sink ports.EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = sink
}

// PlaybackFailed records that the renderer could not play the reply audio.
func (m *Model) PlaybackFailed(detail string) {
	m.mu.Lock()
	sink := m.feedback
	m.mu.Unlock()
	if sink == nil {
		sink = m
	}
	sink.SessionError(domain.ErrorCodePlayback, detail)
}

func (m *Model) update(apply func(*Snapshot)) {
	m.mu.Lock()
	before := m.snap
	apply(&m.snap)
	after := m.snap
	if before == after {
		m.mu.Unlock()
		return
	}
	subscribers := make([]func(Snapshot), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subscribers = append(subscribers, fn)
	}
	m.mu.Unlock()

	for _, fn := range subscribers {
		fn(after)
	}
}

// idleStatus returns the status text for a transition back to idle. An empty
// result keeps the status set by a preceding error event.
func idleStatus(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return StatusReady
	case domain.SessionReasonReplyPlaying:
		return StatusReplyPlaying
	case domain.SessionReasonReplyTextOnly:
		return StatusReplyTextOnly
	case domain.SessionReasonNoActiveRecording:
		return StatusNoRecording
	case domain.SessionReasonRecordingDiscarded:
		return StatusRecordingDiscarded
	default:
		return ""
	}
}

func errorStatus(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeMicrophone:
		return StatusMicrophoneError
	case domain.ErrorCodeServer:
		return "Error: " + detail
	case domain.ErrorCodeMalformedReply:
		return StatusMalformedReply
	case domain.ErrorCodeNetwork:
		return StatusNetworkError
	case domain.ErrorCodePlayback:
		return StatusPlaybackError
	case domain.ErrorCodeStartup:
		if detail == "" {
			return "Startup failed"
		}
		return "Startup failed: " + detail
	default:
		// Capture hiccups while recording keep the recording prompt.
		return ""
	}
}
