package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveSession is returned for control actions invoked without a
	// live session.
	ErrNoActiveSession = errors.New("no active session")
	// ErrSessionActive is returned when Connect is called while a session
	// already exists or is being established.
	ErrSessionActive = errors.New("session already active")
	// ErrToggleInFlight rejects a microphone toggle while another toggle has
	// not finished. The call is rejected, never queued.
	ErrToggleInFlight = errors.New("microphone toggle already in flight")
	// ErrMicrophoneActive rejects text input while the microphone is live.
	ErrMicrophoneActive = errors.New("microphone is active")
	// ErrUplinkUnavailable reports that the microphone or the audio channel
	// could not be opened. Non-fatal: the session stays connected and the
	// user may retry.
	ErrUplinkUnavailable = errors.New("audio uplink unavailable")
)

// ConnectionError reports a failed session establishment. The session is
// fully torn down before it is returned.
type ConnectionError struct {
	Stage string
	Err   error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed during %s: %v", e.Stage, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
