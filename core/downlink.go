package session

import (
	"context"
	"sync"
	"time"

	"github.com/bizjuned/conversational-ai-assistant/core/backend"
	"github.com/bizjuned/conversational-ai-assistant/core/events"
)

const defaultReconnectBackoff = time.Second

// eventDownlink keeps the downlink event stream alive for the duration of a
// session. A dropped stream is reopened with the same conversation id after a
// fixed backoff so the backend resumes the buffered conversation. A locally
// closed downlink stays closed and never reconnects on its own.
type eventDownlink struct {
	streams EventStreamOpener
	backoff time.Duration
	onEvent func(events.Event)

	mu             sync.Mutex
	conversationID string
	stream         EventStream
	retry          *time.Timer
	dialing        bool
	dropped        bool
	closed         bool
}

func newEventDownlink(streams EventStreamOpener, backoff time.Duration, onEvent func(events.Event)) *eventDownlink {
	if backoff <= 0 {
		backoff = defaultReconnectBackoff
	}
	return &eventDownlink{
		streams: streams,
		backoff: backoff,
		onEvent: onEvent,
		closed:  true,
	}
}

func (d *eventDownlink) open(ctx context.Context, conversationID string) error {
	d.mu.Lock()
	d.closed = false
	d.dropped = false
	d.conversationID = conversationID
	d.mu.Unlock()

	return d.dial(ctx)
}

func (d *eventDownlink) dial(ctx context.Context) error {
	d.mu.Lock()
	// A stream that is already open or being opened for this id makes a
	// second dial a no-op.
	if d.stream != nil || d.dialing {
		d.mu.Unlock()
		return nil
	}
	d.dialing = true
	conversationID := d.conversationID
	d.mu.Unlock()

	stream, err := d.streams.OpenEventStream(ctx, conversationID,
		backend.WithEventCallback(d.onEvent),
		backend.WithStreamClosedCallback(d.handleStreamClosed),
	)

	d.mu.Lock()
	d.dialing = false
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if d.closed {
		d.mu.Unlock()
		return stream.Close()
	}
	if d.dropped {
		// The stream died before the open finished. Storing it would make the
		// armed retry a no-op, so discard it and let the retry run.
		d.dropped = false
		d.mu.Unlock()
		return nil
	}
	d.stream = stream
	d.mu.Unlock()

	return nil
}

// handleStreamClosed reacts to the stream's read loop stopping. A nil error
// means the close was requested locally and nothing needs to happen; anything
// else is an unexpected drop that schedules a reconnect.
func (d *eventDownlink) handleStreamClosed(err error) {
	if err == nil {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.dialing {
		// The drop belongs to the stream currently being opened.
		d.dropped = true
	}
	d.stream = nil
	d.retry = time.AfterFunc(d.backoff, d.redial)
	d.mu.Unlock()

	d.onEvent(events.NewStreamLost(err))
}

func (d *eventDownlink) redial() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	if d.dialing {
		// An open is still in progress; check back after another backoff.
		d.retry = time.AfterFunc(d.backoff, d.redial)
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	if err := d.dial(context.Background()); err != nil {
		logger.Warn("failed to reopen event stream", "error", err)

		d.mu.Lock()
		if !d.closed {
			d.retry = time.AfterFunc(d.backoff, d.redial)
		}
		d.mu.Unlock()
	}
}

// close stops the downlink and any pending reconnect. Safe to call more than
// once; a later open starts a fresh session.
func (d *eventDownlink) close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	stream := d.stream
	d.stream = nil
	if d.retry != nil {
		d.retry.Stop()
		d.retry = nil
	}
	d.mu.Unlock()

	if stream == nil {
		return nil
	}
	return stream.Close()
}
