package session

import (
	"context"
	"time"

	"github.com/bizjuned/conversational-ai-assistant/core/backend"
	"github.com/bizjuned/conversational-ai-assistant/core/room"
)

// DefaultRoomName is the media room joined during session establishment
// unless overridden.
const DefaultRoomName = "ai-voice-bot"

type ControllerOption func(*Controller)

// EventStream is a live downlink connection handle.
type EventStream interface {
	Close() error
}

// EventStreamOpener opens the downlink event stream for a conversation id.
type EventStreamOpener interface {
	OpenEventStream(ctx context.Context, conversationID string, opts ...backend.EventStreamOption) (EventStream, error)
}

// AudioChannel is a live uplink connection handle.
type AudioChannel interface {
	SendFrame(frame []byte) error
	Close() error
}

// AudioChannelOpener opens the audio uplink channel for a conversation id.
type AudioChannelOpener interface {
	OpenAudioChannel(ctx context.Context, conversationID string, opts ...backend.AudioChannelOption) (AudioChannel, error)
}

// TextSender submits typed user input as a one-shot request.
type TextSender interface {
	SendText(ctx context.Context, conversationID string, text string) error
}

// RoomService performs identity setup and hands out the exclusively-owned
// microphone track.
type RoomService interface {
	Join(ctx context.Context, roomName string) (room.Credential, error)
	AcquireMicrophone(ctx context.Context) (room.Track, error)
}

// SinkBuffer is the host playback primitive: append-only, exclusive writer,
// asynchronous completion. Implementations report [audio.ErrSinkBusy] when an
// append is attempted while one is still in flight.
type SinkBuffer interface {
	Append(chunk []byte, done func(error)) error
	Reset() error
}

type eventStreamOpenerFunc func(ctx context.Context, conversationID string, opts ...backend.EventStreamOption) (EventStream, error)

func (f eventStreamOpenerFunc) OpenEventStream(ctx context.Context, conversationID string, opts ...backend.EventStreamOption) (EventStream, error) {
	return f(ctx, conversationID, opts...)
}

type audioChannelOpenerFunc func(ctx context.Context, conversationID string, opts ...backend.AudioChannelOption) (AudioChannel, error)

func (f audioChannelOpenerFunc) OpenAudioChannel(ctx context.Context, conversationID string, opts ...backend.AudioChannelOption) (AudioChannel, error) {
	return f(ctx, conversationID, opts...)
}

// WithBackend wires all backend channels (event stream, audio channel and
// one-shot text requests) to one backend client.
func WithBackend(client *backend.Client) ControllerOption {
	return func(c *Controller) {
		c.streams = eventStreamOpenerFunc(func(ctx context.Context, conversationID string, opts ...backend.EventStreamOption) (EventStream, error) {
			return client.OpenEventStream(ctx, conversationID, opts...)
		})
		c.audioChannels = audioChannelOpenerFunc(func(ctx context.Context, conversationID string, opts ...backend.AudioChannelOption) (AudioChannel, error) {
			return client.OpenAudioChannel(ctx, conversationID, opts...)
		})
		c.texts = client
	}
}

func WithEventStreamOpener(opener EventStreamOpener) ControllerOption {
	return func(c *Controller) { c.streams = opener }
}

func WithAudioChannelOpener(opener AudioChannelOpener) ControllerOption {
	return func(c *Controller) { c.audioChannels = opener }
}

func WithTextSender(sender TextSender) ControllerOption {
	return func(c *Controller) { c.texts = sender }
}

func WithRoomService(service RoomService) ControllerOption {
	return func(c *Controller) { c.room = service }
}

func WithRoomName(roomName string) ControllerOption {
	return func(c *Controller) { c.roomName = roomName }
}

func WithSinkBuffer(sink SinkBuffer) ControllerOption {
	return func(c *Controller) { c.sink = sink }
}

// WithReconnectBackoff overrides the fixed delay between downlink reconnect
// attempts.
func WithReconnectBackoff(backoff time.Duration) ControllerOption {
	return func(c *Controller) { c.reconnectBackoff = backoff }
}

// SessionOptions carry the per-connection callbacks. All callbacks are
// optional and are invoked outside the controller's internal locks.
type SessionOptions struct {
	onConnectionStateChanged func(state ConnectionState)
	onMicrophoneStateChanged func(active bool)
	onThinkingStateChanged   func(active bool)
	onSpeakingStateChanged   func(active bool)
	onTranscriptUpdated      func(entries []TranscriptEntry)
	onPlaybackDegraded       func(err error)
	onChannelError           func(err error)
}

type SessionOption func(*SessionOptions)

func OnConnectionStateChanged(callback func(state ConnectionState)) SessionOption {
	return func(o *SessionOptions) { o.onConnectionStateChanged = callback }
}

func OnMicrophoneStateChanged(callback func(active bool)) SessionOption {
	return func(o *SessionOptions) { o.onMicrophoneStateChanged = callback }
}

func OnThinkingStateChanged(callback func(active bool)) SessionOption {
	return func(o *SessionOptions) { o.onThinkingStateChanged = callback }
}

func OnSpeakingStateChanged(callback func(active bool)) SessionOption {
	return func(o *SessionOptions) { o.onSpeakingStateChanged = callback }
}

func OnTranscriptUpdated(callback func(entries []TranscriptEntry)) SessionOption {
	return func(o *SessionOptions) { o.onTranscriptUpdated = callback }
}

// OnPlaybackDegraded reports skipped playback chunks. Playback continues with
// the next chunk.
func OnPlaybackDegraded(callback func(err error)) SessionOption {
	return func(o *SessionOptions) { o.onPlaybackDegraded = callback }
}

// OnChannelError reports non-fatal channel failures: downlink drops that will
// be retried and uplink teardowns.
func OnChannelError(callback func(err error)) SessionOption {
	return func(o *SessionOptions) { o.onChannelError = callback }
}
