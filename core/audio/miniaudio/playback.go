package miniaudio

import (
	"fmt"
	"sync"

	"github.com/bizjuned/conversational-ai-assistant/core/audio"
	"github.com/gen2brain/malgo"
)

// playbackClient is a single-writer playback sink. At most one appended chunk
// is in flight at a time; a second Append before the in-flight chunk has been
// fully consumed by the device is rejected with [audio.ErrSinkBusy]. The
// completion callback fires once the device has drained the chunk.
type playbackClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	pending     []byte
	pendingDone func(error)

	mu      sync.Mutex
	audioMu sync.Mutex
}

func (c *playbackClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.config = malgo.DefaultDeviceConfig(malgo.Playback)
	c.config.SampleRate = sampleRate
	c.config.Playback.Format = format
	c.config.Playback.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PeriodSizeInFrames = sampleRate / 10 // ~100ms of audio
	c.config.Periods = 4

	c.audioContext = audioContext

	var err error
	if c.device, err = malgo.InitDevice(
		c.audioContext.Context,
		c.config,
		malgo.DeviceCallbacks{Data: c.processAudio(bytesPerFrame)},
	); err != nil {
		return err
	}

	return nil
}

func (c *playbackClient) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	return nil
}

func (c *playbackClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop playback device: %w", err)
	}

	return c.Reset()
}

// Append hands one chunk to the device. done is invoked exactly once, from a
// separate goroutine, after the device has consumed the chunk.
func (c *playbackClient) Append(chunk []byte, done func(error)) error {
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return fmt.Errorf("device not started")
	}

	c.audioMu.Lock()
	defer c.audioMu.Unlock()

	if c.pending != nil {
		return audio.ErrSinkBusy
	}

	c.pending = chunk
	c.pendingDone = done
	return nil
}

// Reset drops the in-flight chunk without completing it.
func (c *playbackClient) Reset() error {
	c.audioMu.Lock()
	defer c.audioMu.Unlock()
	c.pending = nil
	c.pendingDone = nil
	return nil
}

func (c *playbackClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return fmt.Errorf("device not initialized")
	}

	c.device.Uninit()
	c.device = nil

	return nil
}

func (c *playbackClient) processAudio(bytesPerFrame int) malgo.DataProc {
	return func(pOutput, _ []byte, frameCount uint32) {
		need := int(frameCount) * bytesPerFrame

		c.audioMu.Lock()
		if c.pending == nil {
			c.audioMu.Unlock()
			return
		}

		if len(c.pending) <= need {
			_ = copy(pOutput, c.pending)
			done := c.pendingDone
			c.pending = nil
			c.pendingDone = nil
			c.audioMu.Unlock()

			if done != nil {
				go done(nil)
			}
			return
		}

		_ = copy(pOutput, c.pending[:need])
		c.pending = c.pending[need:]
		c.audioMu.Unlock()
	}
}
