package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMicrophoneUnavailable marks capture start failures (denied or missing device).
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")
	// ErrNetwork marks submissions that never produced an HTTP response.
	ErrNetwork = errors.New("network error")
	// ErrMalformedReply marks a success status whose body is not a valid reply.
	ErrMalformedReply = errors.New("malformed reply")
)

// ServerError is a completed submission that returned a non-success status.
type ServerError struct {
	StatusCode int
	Status     string
	Detail     string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message())
}

// Message is the text shown to the user: the server detail, else the status text.
func (e *ServerError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Status != "" {
		return e.Status
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// ClassifySubmitError maps a submission error onto the UI error taxonomy.
func ClassifySubmitError(err error) (ErrorCode, string) {
	var serverErr *ServerError
	switch {
	case errors.As(err, &serverErr):
		return ErrorCodeServer, serverErr.Message()
	case errors.Is(err, ErrMalformedReply):
		return ErrorCodeMalformedReply, err.Error()
	default:
		return ErrorCodeNetwork, err.Error()
	}
}
