package portaudio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log"

	"github.com/bizjuned/conversational-ai-assistant/core/audio"
	"github.com/gordonklaus/portaudio"
)

// Client captures microphone audio through PortAudio. The buffer size is
// chosen by the caller; reads are framed and handed out as raw linear16
// bytes.
type Client struct {
	bufferSize int
	stream     *portaudio.Stream

	in []int16
}

func NewClient(bufferSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	in := make([]int16, bufferSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.DefaultSampleRate, bufferSize, in)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}

	return &Client{
		bufferSize: bufferSize,
		stream:     stream,
		in:         in,
	}, nil
}

func (c *Client) StartCapture(ctx context.Context, onFrame func(frame []byte)) error {
	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start portaudio stream: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if err := c.stream.Read(); err != nil {
					log.Printf("Failed to read from portaudio stream: %v", err)
					return
				}

				frame := bytes.Buffer{}
				_ = binary.Write(&frame, binary.LittleEndian, c.in)
				onFrame(frame.Bytes())
			}
		}
	}()

	return nil
}

func (c *Client) StopCapture() error {
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop portaudio stream: %w", err)
	}
	return nil
}

func (c *Client) Close() {
	c.stream.Close()
	portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.GetDefaultEncodingInfo()
}
