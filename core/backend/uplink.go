package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bizjuned/conversational-ai-assistant/core/audio"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

// AudioChannelOptions configure one uplink connection.
type AudioChannelOptions struct {
	// OnClosed is invoked exactly once when the channel stops. err is nil for
	// a locally requested close.
	OnClosed func(err error)
	// EncodingInfo describes the frames the producer sends; silence padding
	// is synthesized in the same encoding.
	EncodingInfo audio.EncodingInfo
}

type AudioChannelOption func(*AudioChannelOptions)

func WithChannelClosedCallback(onClosed func(err error)) AudioChannelOption {
	return func(o *AudioChannelOptions) { o.OnClosed = onClosed }
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) AudioChannelOption {
	return func(o *AudioChannelOptions) { o.EncodingInfo = encodingInfo }
}

// AudioChannel is one live uplink connection for a conversation id. Frames
// are raw encoded audio; there is no in-band framing.
type AudioChannel struct {
	conn   *websocket.Conn
	connMu sync.Mutex

	lastFrameTs   time.Time
	lastFrameTsMu sync.Mutex

	closed        bool
	silenceCancel context.CancelFunc

	options AudioChannelOptions
}

// OpenAudioChannel connects the uplink for the given conversation id. The
// channel is ready to accept frames as soon as this returns.
func (c *Client) OpenAudioChannel(ctx context.Context, conversationID string, opts ...AudioChannelOption) (*AudioChannel, error) {
	ctx, span := tracer.Start(ctx, "open audio channel")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	channel := &AudioChannel{
		options: AudioChannelOptions{
			OnClosed:     func(error) {},
			EncodingInfo: audio.GetDefaultEncodingInfo(),
		},
	}
	for _, opt := range opts {
		opt(&channel.options)
	}

	channelURL, err := c.websocketURL("/ws/audio/" + conversationID)
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, channelURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio channel socket: %w", err)
	}

	channel.conn = conn
	channel.markFrameSent()

	silenceCtx, silenceCancel := context.WithCancel(context.Background())
	channel.silenceCancel = silenceCancel
	go channel.generateSilence(silenceCtx)
	go channel.watchForClose()

	return channel, nil
}

// SendFrame writes one binary audio frame. A write failure is terminal for
// the channel; the caller is expected to tear it down.
func (a *AudioChannel) SendFrame(frame []byte) error {
	a.markFrameSent()

	a.connMu.Lock()
	defer a.connMu.Unlock()

	if a.closed {
		return fmt.Errorf("audio channel closed")
	}

	if err := a.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write audio frame: %w", err)
	}
	return nil
}

func (a *AudioChannel) sendSilence(frame []byte) error {
	a.connMu.Lock()
	defer a.connMu.Unlock()

	if a.closed {
		return fmt.Errorf("audio channel closed")
	}

	if err := a.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to write silence frame: %w", err)
	}
	return nil
}

// Close shuts the channel down. Safe to call more than once.
func (a *AudioChannel) Close() error {
	a.connMu.Lock()
	if a.closed {
		a.connMu.Unlock()
		return nil
	}
	a.closed = true
	a.connMu.Unlock()

	a.silenceCancel()

	_ = a.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	return a.conn.Close()
}

// watchForClose reads the duplex channel only to notice remote closure; the
// backend never sends payload data on this connection.
func (a *AudioChannel) watchForClose() {
	for {
		if _, _, err := a.conn.ReadMessage(); err != nil {
			a.connMu.Lock()
			closedLocally := a.closed
			a.closed = true
			a.connMu.Unlock()

			a.silenceCancel()
			a.conn.Close()

			if closedLocally || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				a.options.OnClosed(nil)
			} else {
				a.options.OnClosed(err)
			}
			return
		}
	}
}

func (a *AudioChannel) markFrameSent() {
	a.lastFrameTsMu.Lock()
	a.lastFrameTs = time.Now()
	a.lastFrameTsMu.Unlock()
}

func (a *AudioChannel) sinceLastFrame() time.Duration {
	a.lastFrameTsMu.Lock()
	defer a.lastFrameTsMu.Unlock()
	return time.Since(a.lastFrameTs)
}

// generateSilence pads the uplink with silence frames while the producer is
// quiet so the backend does not idle the connection out. Capture frames
// always take priority; silence only fills gaps longer than one frame.
func (a *AudioChannel) generateSilence(ctx context.Context) {
	const frameDurationMs = 200
	const millisecondsPerSecond = 1000
	ticker := time.NewTicker(frameDurationMs * time.Millisecond)
	defer ticker.Stop()

	encoding := a.options.EncodingInfo
	frame := make([]byte, encoding.SampleRate*encoding.Format.ByteSize()*frameDurationMs/millisecondsPerSecond)
	for i := range frame {
		frame[i] = encoding.SilenceValue()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if a.sinceLastFrame() < frameDurationMs*time.Millisecond {
				continue
			}

			if err := a.sendSilence(frame); err != nil {
				return
			}
		}
	}
}
