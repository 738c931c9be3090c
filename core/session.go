package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ConnectionState is the session lifecycle state.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

/// Controller owns one voice session at a time: the downlink event stream, the
// optional microphone uplink, the playback queue and the conversation
// transcript. All exported methods are safe for concurrent use.
type Controller struct {
	streams       EventStreamOpener
	audioChannels AudioChannelOpener
	texts         TextSender
	room          RoomService
	sink          SinkBuffer

	roomName         string
	reconnectBackoff time.Duration

	toggleInFlight atomic.Bool

	mu             sync.Mutex
	state          ConnectionState
	conversationID string
	identity       string
	thinking       bool
	sessionOptions SessionOptions
	ledger         *transcriptLedger
	playback       *playbackBuffer
	downlink       *eventDownlink
	uplink         *audioUplink
}

func NewController(opts ...ControllerOption) *Controller {
	controller := &Controller{
		roomName:         DefaultRoomName,
		reconnectBackoff: defaultReconnectBackoff,
		state:            StateDisconnected,
	}

	for _, opt := range opts {
		opt(controller)
	}

	return controller
}

// Connect establishes a new session: it mints a conversation id, joins the
// media room and opens the downlink event stream. The microphone stays off
// until toggled. Any failure tears down whatever was established and leaves
// the controller disconnected.
func (c *Controller) Connect(ctx context.Context, opts ...SessionOption) error {
	ctx, span := tracer.Start(ctx, "connect session")
	defer span.End()

	options := SessionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		span.SetStatus(codes.Error, ErrSessionActive.Error())
		return ErrSessionActive
	}

	conversationID := uuid.NewString()
	c.state = StateConnecting
	c.conversationID = conversationID
	c.identity = ""
	c.thinking = false
	c.sessionOptions = options
	c.ledger = newTranscriptLedger()
	c.playback = newPlaybackBuffer(c.sink, func(active bool) {
		if options.onSpeakingStateChanged != nil {
			options.onSpeakingStateChanged(active)
		}
	}, func(err error) {
		if options.onPlaybackDegraded != nil {
			options.onPlaybackDegraded(err)
		}
	})
	c.downlink = newEventDownlink(c.streams, c.reconnectBackoff, c.handleEvent)
	c.uplink = newAudioUplink(c.room, c.audioChannels, c.handleEvent)
	downlink := c.downlink
	c.mu.Unlock()

	span.SetAttributes(attribute.String("conversation.id", conversationID))
	c.notifyConnectionState(options, StateConnecting)

	if c.room != nil {
		credential, err := c.room.Join(ctx, c.roomName)
		if err != nil {
			c.abandonConnect(options)
			connErr := &ConnectionError{Stage: "room join", Err: err}
			span.RecordError(connErr)
			span.SetStatus(codes.Error, connErr.Error())
			return connErr
		}

		c.mu.Lock()
		c.identity = credential.Identity
		c.mu.Unlock()
	}

	if err := downlink.open(ctx, conversationID); err != nil {
		c.abandonConnect(options)
		connErr := &ConnectionError{Stage: "event stream", Err: err}
		span.RecordError(connErr)
		span.SetStatus(codes.Error, connErr.Error())
		return connErr
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Disconnected while establishing; leave things torn down.
		c.mu.Unlock()
		_ = downlink.close()
		span.SetStatus(codes.Error, ErrNoActiveSession.Error())
		return ErrNoActiveSession
	}
	c.state = StateConnected
	c.mu.Unlock()

	c.notifyConnectionState(options, StateConnected)
	return nil
}

// Disconnect ends the session: the microphone is released, both channels are
// closed, queued playback is dropped and the transcript is cleared. Safe to
// call repeatedly and from cleanup paths; without a session it does nothing.
func (c *Controller) Disconnect() error {
	_, span := tracer.Start(context.Background(), "disconnect session")
	defer span.End()

	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = StateDisconnected
	thinking := c.thinking
	c.thinking = false
	options := c.sessionOptions
	downlink := c.downlink
	uplink := c.uplink
	playback := c.playback
	ledger := c.ledger
	c.downlink = nil
	c.uplink = nil
	c.mu.Unlock()

	if ledger != nil {
		ledger.Clear()
	}

	micWasActive := uplink != nil && uplink.isActive()
	c.teardown(downlink, uplink, playback)

	if micWasActive && options.onMicrophoneStateChanged != nil {
		options.onMicrophoneStateChanged(false)
	}
	if thinking && options.onThinkingStateChanged != nil {
		options.onThinkingStateChanged(false)
	}
	c.notifyConnectionState(options, StateDisconnected)
	return nil
}

// abandonConnect rolls a failed Connect back to the disconnected state.
func (c *Controller) abandonConnect(options SessionOptions) {
	c.mu.Lock()
	c.state = StateDisconnected
	downlink := c.downlink
	uplink := c.uplink
	playback := c.playback
	c.downlink = nil
	c.uplink = nil
	c.mu.Unlock()

	c.teardown(downlink, uplink, playback)
	c.notifyConnectionState(options, StateDisconnected)
}

func (c *Controller) teardown(downlink *eventDownlink, uplink *audioUplink, playback *playbackBuffer) {
	if uplink != nil {
		if err := uplink.stop(); err != nil {
			logger.Warn("failed to stop audio uplink", "error", err)
		}
	}
	if downlink != nil {
		if err := downlink.close(); err != nil {
			logger.Warn("failed to close event stream", "error", err)
		}
	}
	playback.Reset()
}

func (c *Controller) notifyConnectionState(options SessionOptions, state ConnectionState) {
	if options.onConnectionStateChanged != nil {
		options.onConnectionStateChanged(state)
	}
}

// State reports the session lifecycle state.
func (c *Controller) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConversationID reports the id of the current session, or the last session
// when disconnected.
func (c *Controller) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// Identity reports the identity assigned by the room service on join.
func (c *Controller) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// MicrophoneActive reports whether the microphone uplink is live.
func (c *Controller) MicrophoneActive() bool {
	c.mu.Lock()
	uplink := c.uplink
	c.mu.Unlock()
	return uplink != nil && uplink.isActive()
}

// Thinking reports whether the backend is composing a response.
func (c *Controller) Thinking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.thinking
}

// Speaking reports whether agent audio is queued or playing.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	playback := c.playback
	c.mu.Unlock()
	return playback.Speaking()
}

// Transcript returns a snapshot of the conversation transcript.
func (c *Controller) Transcript() []TranscriptEntry {
	c.mu.Lock()
	ledger := c.ledger
	c.mu.Unlock()

	if ledger == nil {
		return nil
	}
	return ledger.Entries()
}
