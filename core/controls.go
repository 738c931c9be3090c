package session

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ToggleMicrophone flips the microphone uplink and returns the resulting
// state. Only one toggle may be in flight at a time; a concurrent call is
// rejected with [ErrToggleInFlight] rather than queued. A failure to open the
// uplink leaves the session connected and the microphone off.
func (c *Controller) ToggleMicrophone(ctx context.Context) (bool, error) {
	ctx, span := tracer.Start(ctx, "toggle microphone")
	defer span.End()

	if !c.toggleInFlight.CompareAndSwap(false, true) {
		span.SetStatus(codes.Error, ErrToggleInFlight.Error())
		return false, ErrToggleInFlight
	}
	defer c.toggleInFlight.Store(false)

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		span.SetStatus(codes.Error, ErrNoActiveSession.Error())
		return false, ErrNoActiveSession
	}
	conversationID := c.conversationID
	options := c.sessionOptions
	uplink := c.uplink
	c.mu.Unlock()

	span.SetAttributes(attribute.String("conversation.id", conversationID))

	if uplink.isActive() {
		if err := uplink.stop(); err != nil {
			logger.Warn("failed to stop audio uplink", "error", err)
		}
		if options.onMicrophoneStateChanged != nil {
			options.onMicrophoneStateChanged(false)
		}
		// Capture stopping means the utterance is complete and the backend is
		// presumed to be finishing transcription.
		c.setThinking(options, true)
		span.AddEvent("microphone toggled", trace.WithAttributes(attribute.Bool("microphone.active", false)))
		return false, nil
	}

	if err := uplink.start(ctx, conversationID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	// Disconnected while the uplink was being established; the teardown saw
	// an inactive uplink, so release it here.
	c.mu.Lock()
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected {
		if err := uplink.stop(); err != nil {
			logger.Warn("failed to stop audio uplink", "error", err)
		}
		span.SetStatus(codes.Error, ErrNoActiveSession.Error())
		return false, ErrNoActiveSession
	}

	span.AddEvent("microphone toggled", trace.WithAttributes(attribute.Bool("microphone.active", true)))
	return true, nil
}

// SendText submits typed user input for the current conversation. The text is
// recorded in the transcript before the request goes out; a request failure
// is returned to the caller and the entry stays in the transcript.
func (c *Controller) SendText(ctx context.Context, text string) error {
	ctx, span := tracer.Start(ctx, "send text")
	defer span.End()

	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		span.SetStatus(codes.Error, ErrNoActiveSession.Error())
		return ErrNoActiveSession
	}
	conversationID := c.conversationID
	options := c.sessionOptions
	ledger := c.ledger
	uplink := c.uplink
	c.mu.Unlock()

	if uplink.isActive() {
		span.SetStatus(codes.Error, ErrMicrophoneActive.Error())
		return ErrMicrophoneActive
	}

	span.SetAttributes(attribute.String("conversation.id", conversationID))

	ledger.AppendUserText(text)
	c.notifyTranscript(options, ledger)
	c.setThinking(options, true)

	if err := c.texts.SendText(ctx, conversationID, text); err != nil {
		c.setThinking(options, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}
