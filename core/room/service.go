package room

import (
	"context"
	"errors"
	"sync"

	"github.com/bizjuned/conversational-ai-assistant/core/audio"
)

// ErrMicrophoneInUse is returned when a second track acquisition is attempted
// while one is still held. The microphone is exclusively owned by whoever
// acquired it until Release.
var ErrMicrophoneInUse = errors.New("microphone track already acquired")

// Track is an exclusively-owned microphone track. Start may be called once
// per acquisition; Release returns the microphone to the service.
type Track interface {
	Start(ctx context.Context, onFrame func(frame []byte)) error
	Stop() error
	Release()
	EncodingInfo() audio.EncodingInfo
}

// CaptureClient is the device-facing side of a microphone track.
type CaptureClient interface {
	StartCapture(ctx context.Context, onFrame func(frame []byte)) error
	StopCapture() error
	EncodingInfo() audio.EncodingInfo
}

// Service joins rooms through the token endpoint and hands out the local
// microphone as an exclusively-owned track.
type Service struct {
	tokens  *TokenClient
	capture CaptureClient

	mu       sync.Mutex
	acquired bool
}

type ServiceOption func(*Service)

func WithTokenClient(tokens *TokenClient) ServiceOption {
	return func(s *Service) { s.tokens = tokens }
}

func NewService(capture CaptureClient, opts ...ServiceOption) *Service {
	service := &Service{
		tokens:  NewTokenClient(),
		capture: capture,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// Join performs identity setup with the room service and returns the join
// credential for the given room.
func (s *Service) Join(ctx context.Context, roomName string) (Credential, error) {
	return s.tokens.FetchToken(ctx, roomName)
}

// AcquireMicrophone hands out the microphone track. A second acquisition
// before Release fails with [ErrMicrophoneInUse].
func (s *Service) AcquireMicrophone(ctx context.Context) (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.acquired {
		return nil, ErrMicrophoneInUse
	}
	if s.capture == nil {
		return nil, errors.New("no capture device configured")
	}

	s.acquired = true
	return &microphoneTrack{
		capture: s.capture,
		release: func() {
			s.mu.Lock()
			s.acquired = false
			s.mu.Unlock()
		},
	}, nil
}

type microphoneTrack struct {
	capture CaptureClient
	release func()

	mu       sync.Mutex
	started  bool
	released bool
}

func (t *microphoneTrack) Start(ctx context.Context, onFrame func(frame []byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.released {
		return errors.New("microphone track released")
	}
	if t.started {
		return nil
	}

	if err := t.capture.StartCapture(ctx, onFrame); err != nil {
		return err
	}
	t.started = true
	return nil
}

func (t *microphoneTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return nil
	}
	t.started = false
	return t.capture.StopCapture()
}

func (t *microphoneTrack) Release() {
	t.mu.Lock()
	if t.released {
		t.mu.Unlock()
		return
	}
	t.released = true
	started := t.started
	t.started = false
	t.mu.Unlock()

	if started {
		_ = t.capture.StopCapture()
	}
	t.release()
}

func (t *microphoneTrack) EncodingInfo() audio.EncodingInfo {
	return t.capture.EncodingInfo()
}
