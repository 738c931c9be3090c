package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/bizjuned/conversational-ai-assistant/core/backend"
	"github.com/bizjuned/conversational-ai-assistant/core/events"
	"github.com/bizjuned/conversational-ai-assistant/core/room"
)

// audioUplink binds the microphone track to the uplink audio channel for one
// microphone activation. Frames flow straight from capture to the channel
// with no buffering; a frame that cannot be written is lost with the channel.
type audioUplink struct {
	rooms    RoomService
	channels AudioChannelOpener
	onEvent  func(events.Event)

	mu      sync.Mutex
	track   room.Track
	channel AudioChannel
	active  bool
}

func newAudioUplink(rooms RoomService, channels AudioChannelOpener, onEvent func(events.Event)) *audioUplink {
	return &audioUplink{
		rooms:    rooms,
		channels: channels,
		onEvent:  onEvent,
	}
}

func (u *audioUplink) isActive() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.active
}

// start acquires the microphone, opens the audio channel and begins streaming
// capture frames. Any failure releases everything that was set up; the
// session itself is unaffected and start may be retried.
func (u *audioUplink) start(ctx context.Context, conversationID string) error {
	u.mu.Lock()
	if u.active {
		u.mu.Unlock()
		return nil
	}
	u.mu.Unlock()

	track, err := u.rooms.AcquireMicrophone(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to acquire microphone: %w", ErrUplinkUnavailable, err)
	}

	channel, err := u.channels.OpenAudioChannel(ctx, conversationID,
		backend.WithChannelClosedCallback(u.handleChannelClosed),
		backend.WithEncodingInfo(track.EncodingInfo()),
	)
	if err != nil {
		track.Release()
		return fmt.Errorf("%w: failed to open audio channel: %w", ErrUplinkUnavailable, err)
	}

	if err := track.Start(ctx, func(frame []byte) {
		if sendErr := channel.SendFrame(frame); sendErr != nil {
			// A write failure is terminal for the channel. Tear down off the
			// capture callback to avoid stopping the device from within it.
			logger.Warn("failed to send audio frame", "error", sendErr)
			go u.handleChannelClosed(sendErr)
		}
	}); err != nil {
		_ = channel.Close()
		track.Release()
		return fmt.Errorf("%w: failed to start capture: %w", ErrUplinkUnavailable, err)
	}

	u.mu.Lock()
	u.track = track
	u.channel = channel
	u.active = true
	u.mu.Unlock()

	u.onEvent(events.NewUplinkReady())
	return nil
}

// stop tears the uplink down and releases the microphone. Safe to call while
// inactive.
func (u *audioUplink) stop() error {
	u.mu.Lock()
	if !u.active {
		u.mu.Unlock()
		return nil
	}
	u.active = false
	track := u.track
	channel := u.channel
	u.track = nil
	u.channel = nil
	u.mu.Unlock()

	stopErr := track.Stop()
	closeErr := channel.Close()
	track.Release()

	if stopErr != nil {
		return stopErr
	}
	return closeErr
}

// handleChannelClosed reacts to the audio channel dropping underneath a live
// microphone. The capture side is released and the closure is surfaced as an
// uplink event; the session stays connected.
func (u *audioUplink) handleChannelClosed(err error) {
	if err == nil {
		return
	}

	u.mu.Lock()
	if !u.active {
		u.mu.Unlock()
		return
	}
	u.active = false
	track := u.track
	channel := u.channel
	u.track = nil
	u.channel = nil
	u.mu.Unlock()

	if track != nil {
		_ = track.Stop()
		track.Release()
	}
	if channel != nil {
		_ = channel.Close()
	}

	u.onEvent(events.NewUplinkClosed(err))
}
