package domain

// SessionState models the press-to-talk lifecycle.
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateRecording  SessionState = "recording"
	SessionStateProcessing SessionState = "processing"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady              SessionStateReason = "ready"
	SessionReasonRecordingStarted   SessionStateReason = "recording_started"
	SessionReasonRecordingDiscarded SessionStateReason = "recording_discarded"
	SessionReasonNoActiveRecording  SessionStateReason = "no_active_recording"
	SessionReasonMicUnavailable     SessionStateReason = "mic_unavailable"
	SessionReasonProcessing         SessionStateReason = "processing"
	SessionReasonReplyPlaying       SessionStateReason = "reply_playing"
	SessionReasonReplyTextOnly      SessionStateReason = "reply_text_only"
	SessionReasonRequestFailed      SessionStateReason = "request_failed"
)

// ErrorCode identifies the error taxonomy surfaced to the UI.
type ErrorCode string

const (
	ErrorCodeStartup        ErrorCode = "startup"
	ErrorCodeMicrophone     ErrorCode = "microphone"
	ErrorCodeAudioStream    ErrorCode = "audio_stream"
	ErrorCodeAudioStop      ErrorCode = "audio_stop"
	ErrorCodeNetwork        ErrorCode = "network"
	ErrorCodeServer         ErrorCode = "server"
	ErrorCodeMalformedReply ErrorCode = "malformed_reply"
	ErrorCodePlayback       ErrorCode = "playback"
)

// Recording is the finalized payload of one press-to-talk capture.
type Recording struct {
	SessionID   string
	Audio       []byte
	ContentType string
	Fragments   int
}

// Reply is the backend result for one submitted recording.
type Reply struct {
	UserText      string `json:"user_text"`
	AssistantText string `json:"llm_response_text"`
	AudioURL      string `json:"audio_response_data_url,omitempty"`
}

// HasAudio reports whether the reply carries a playable audio reference.
func (r Reply) HasAudio() bool {
	return r.AudioURL != ""
}

// Status summarizes the current runtime status.
type Status struct {
	State     SessionState `json:"state"`
	Active    bool         `json:"active"`
	SessionID string       `json:"sessionId,omitempty"`
	Message   string       `json:"message,omitempty"`
}
