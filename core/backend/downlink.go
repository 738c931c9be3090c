package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bizjuned/conversational-ai-assistant/core/events"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
)

// EventStreamOptions configure one downlink connection.
type EventStreamOptions struct {
	// OnEvent is invoked for every decoded event, in strict arrival order,
	// from the single read goroutine.
	OnEvent func(events.Event)
	// OnClosed is invoked exactly once when the stream stops reading. err is
	// nil for a locally requested close.
	OnClosed func(err error)
}

type EventStreamOption func(*EventStreamOptions)

func WithEventCallback(onEvent func(events.Event)) EventStreamOption {
	return func(o *EventStreamOptions) { o.OnEvent = onEvent }
}

func WithStreamClosedCallback(onClosed func(err error)) EventStreamOption {
	return func(o *EventStreamOptions) { o.OnClosed = onClosed }
}

// EventStream is one live downlink connection for a conversation id.
type EventStream struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool

	options EventStreamOptions
}

// OpenEventStream connects the downlink for the given conversation id and
// starts delivering decoded events. The id is carried in the connection path;
// reconnecting with the same id resumes the backend's buffered state.
func (c *Client) OpenEventStream(ctx context.Context, conversationID string, opts ...EventStreamOption) (*EventStream, error) {
	ctx, span := tracer.Start(ctx, "open event stream")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	stream := &EventStream{
		options: EventStreamOptions{
			OnEvent:  func(events.Event) {},
			OnClosed: func(error) {},
		},
	}
	for _, opt := range opts {
		opt(&stream.options)
	}

	streamURL, err := c.websocketURL("/ws/" + conversationID)
	if err != nil {
		return nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open event stream socket: %w", err)
	}

	stream.conn = conn
	go stream.readAndProcessMessages()

	return stream, nil
}

func (s *EventStream) readAndProcessMessages() {
	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.conn.Close()

			s.mu.Lock()
			closedLocally := s.closed
			s.mu.Unlock()

			if closedLocally || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.options.OnClosed(nil)
			} else {
				s.options.OnClosed(err)
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			// The downlink contract is one JSON object per message.
			malformedEvents.Add(context.Background(), 1)
			continue
		}

		event, err := decodeEvent(msg)
		if err != nil {
			if errors.Is(err, ErrMalformedEvent) {
				malformedEvents.Add(context.Background(), 1)
				logger.Warn("dropping malformed downlink event", "error", err)
				continue
			}
			logger.Warn("failed to decode downlink event", "error", err)
			continue
		}

		s.options.OnEvent(event)
	}
}

// Close stops the stream. The read loop reports the closure through OnClosed
// with a nil error.
func (s *EventStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	); err != nil {
		if aggressiveCloseErr := s.conn.Close(); aggressiveCloseErr != nil {
			return fmt.Errorf("failed to close event stream socket: %w", errors.Join(err, aggressiveCloseErr))
		}
	}
	return nil
}
