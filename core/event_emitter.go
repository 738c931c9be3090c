package session

import (
	"github.com/bizjuned/conversational-ai-assistant/core/events"
)

// handleEvent is the single funnel for downlink and uplink events. Events are
// delivered in arrival order from the channel read loops; everything observed
// after teardown is dropped.
func (c *Controller) handleEvent(event events.Event) {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	options := c.sessionOptions
	ledger := c.ledger
	playback := c.playback
	c.mu.Unlock()

	switch e := event.(type) {
	case events.TranscriptPartial:
		ledger.ApplyPartialTranscript(e.Text)
		c.notifyTranscript(options, ledger)

	case events.TranscriptFinal:
		ledger.ApplyFinalTranscript(e.Text)
		c.notifyTranscript(options, ledger)

	case events.Thinking:
		c.setThinking(options, e.Active)

	case events.SpeechChunk:
		c.setThinking(options, false)
		if e.ResponseText != "" {
			ledger.ApplyResponseText(e.ResponseText)
			c.notifyTranscript(options, ledger)
		}
		playback.Enqueue(e.Audio)

	case events.StreamLost:
		if options.onChannelError != nil {
			options.onChannelError(e.Err)
		}

	case events.UplinkReady:
		if options.onMicrophoneStateChanged != nil {
			options.onMicrophoneStateChanged(true)
		}

	case events.UplinkClosed:
		if options.onMicrophoneStateChanged != nil {
			options.onMicrophoneStateChanged(false)
		}
		// The backend treats an uplink drop as end of utterance and starts
		// composing; reflect that until it says otherwise.
		c.setThinking(options, true)
		if e.Err != nil && options.onChannelError != nil {
			options.onChannelError(e.Err)
		}

	default:
		logger.Warn("unhandled session event", "kind", event.Kind())
	}
}

func (c *Controller) setThinking(options SessionOptions, active bool) {
	c.mu.Lock()
	changed := c.thinking != active
	c.thinking = active
	c.mu.Unlock()

	if changed && options.onThinkingStateChanged != nil {
		options.onThinkingStateChanged(active)
	}
}

func (c *Controller) notifyTranscript(options SessionOptions, ledger *transcriptLedger) {
	if options.onTranscriptUpdated != nil {
		options.onTranscriptUpdated(ledger.Entries())
	}
}
