package miniaudio

import (
	"fmt"
	"sync"

	"github.com/bizjuned/conversational-ai-assistant/core/audio"
	"github.com/gen2brain/malgo"
)

// frameDurationMs is the cadence at which captured audio is handed to the
// consumer. The device callback delivers much smaller buffers; they are
// accumulated into fixed frames so the uplink sees a steady frame rate.
const frameDurationMs = 200

type captureClient struct {
	audioContext *malgo.AllocatedContext
	device       *malgo.Device
	config       malgo.DeviceConfig

	frame      []byte
	frameBytes int

	onFrame func(frame []byte)

	mu sync.Mutex
}

func (c *captureClient) Init(audioContext *malgo.AllocatedContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sampleRate := uint32(audio.DefaultSampleRate)
	channels := 1
	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) * channels

	c.frameBytes = int(sampleRate) * bytesPerFrame * frameDurationMs / 1000

	c.config = malgo.DefaultDeviceConfig(malgo.Capture)
	c.config.SampleRate = sampleRate
	c.config.Capture.Format = format
	c.config.Capture.Channels = uint32(channels)
	c.config.Alsa.NoMMap = 1
	c.config.PerformanceProfile = malgo.LowLatency
	c.config.PeriodSizeInFrames = 480
	c.config.Periods = 3

	c.audioContext = audioContext

	var err error
	c.device, err = malgo.InitDevice(c.audioContext.Context, c.config, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFrame
			if len(pInput) < n || n == 0 {
				return
			}
			c.accumulate(pInput[:n])
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	return nil
}

// accumulate collects device buffers into fixed-cadence frames. Frames are
// emitted as soon as they fill; the slice handed out is owned by the
// consumer and never reused.
func (c *captureClient) accumulate(input []byte) {
	c.mu.Lock()
	onFrame := c.onFrame
	if onFrame == nil {
		c.mu.Unlock()
		return
	}

	c.frame = append(c.frame, input...)
	var full [][]byte
	for len(c.frame) >= c.frameBytes {
		full = append(full, c.frame[:c.frameBytes:c.frameBytes])
		c.frame = append([]byte(nil), c.frame[c.frameBytes:]...)
	}
	c.mu.Unlock()

	for _, frame := range full {
		onFrame(frame)
	}
}

func (c *captureClient) Start(onFrame func(frame []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if c.device.IsStarted() {
		return nil
	}

	if err := c.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	c.onFrame = onFrame
	return nil
}

func (c *captureClient) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return fmt.Errorf("device not initialized")
	} else if !c.device.IsStarted() {
		return nil
	}

	if err := c.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop device: %w", err)
	}

	c.onFrame = nil
	c.frame = nil
	return nil
}

func (c *captureClient) Uninit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}

	c.onFrame = nil
	c.frame = nil
	return nil
}
