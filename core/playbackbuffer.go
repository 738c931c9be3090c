package session

import (
	"context"
	"errors"
	"sync"

	"github.com/bizjuned/conversational-ai-assistant/core/audio"
	"github.com/bizjuned/conversational-ai-assistant/internal/utils"
)

// playbackBuffer serializes agent speech chunks onto the host sink. The sink
// accepts exactly one append at a time, so chunks queue here and the next one
// is submitted only after the previous append completes. A failed append is
// skipped, reported, and playback continues with the next chunk.
type playbackBuffer struct {
	sink SinkBuffer

	onSpeakingChanged func(active bool)
	onDegraded        func(err error)

	mu         sync.Mutex
	queue      [][]byte
	inFlight   bool
	generation uint64
	speaking   bool
}

func newPlaybackBuffer(sink SinkBuffer, onSpeakingChanged func(bool), onDegraded func(error)) *playbackBuffer {
	return &playbackBuffer{
		sink:              sink,
		onSpeakingChanged: onSpeakingChanged,
		onDegraded:        onDegraded,
	}
}

// Enqueue adds a speech chunk to the playback queue and submits it to the
// sink as soon as the sink is free.
func (b *playbackBuffer) Enqueue(chunk []byte) {
	if b == nil || b.sink == nil {
		return
	}

	b.mu.Lock()
	b.queue = append(b.queue, chunk)
	degraded, speaking := b.pumpLocked()
	b.mu.Unlock()

	b.notify(degraded, speaking)
}

// Reset drops all queued chunks and invalidates the in-flight append, then
// clears the host sink. Used on disconnect and session teardown.
func (b *playbackBuffer) Reset() {
	if b == nil || b.sink == nil {
		return
	}

	b.mu.Lock()
	b.generation++
	b.queue = nil
	b.inFlight = false
	// Clearing the sink inside the critical section keeps a concurrent
	// Enqueue from hitting a still-busy sink with no completion left to
	// re-pump it.
	if err := b.sink.Reset(); err != nil {
		logger.Warn("failed to reset playback sink", "error", err)
	}
	speaking := b.speakingTransitionLocked()
	b.mu.Unlock()

	b.notify(nil, speaking)
}

// Speaking reports whether agent audio is queued or being written.
func (b *playbackBuffer) Speaking() bool {
	if b == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inFlight || len(b.queue) > 0
}

func (b *playbackBuffer) appendCompleted(generation uint64, err error) {
	b.mu.Lock()
	if generation != b.generation {
		b.mu.Unlock()
		return
	}

	b.inFlight = false
	var degraded []error
	if err != nil {
		degraded = append(degraded, err)
	}

	pumped, speaking := b.pumpLocked()
	degraded = append(degraded, pumped...)
	b.mu.Unlock()

	b.notify(degraded, speaking)
}

// pumpLocked submits queued chunks until one append is in flight or the queue
// drains. A busy sink defers the chunk until the current append completes;
// any other failure drops the chunk and moves on. Callers hold b.mu.
func (b *playbackBuffer) pumpLocked() (degraded []error, speaking *bool) {
	for !b.inFlight && len(b.queue) > 0 {
		chunk := b.queue[0]
		b.queue = b.queue[1:]
		b.inFlight = true

		generation := b.generation
		err := b.sink.Append(chunk, func(appendErr error) {
			b.appendCompleted(generation, appendErr)
		})
		if err == nil {
			break
		}

		b.inFlight = false
		if errors.Is(err, audio.ErrSinkBusy) {
			b.queue = append([][]byte{chunk}, b.queue...)
			break
		}
		degraded = append(degraded, err)
	}

	return degraded, b.speakingTransitionLocked()
}

// speakingTransitionLocked re-derives the speaking state and returns the new
// value when it changed, nil otherwise. Callers hold b.mu.
func (b *playbackBuffer) speakingTransitionLocked() *bool {
	speaking := b.inFlight || len(b.queue) > 0
	if speaking == b.speaking {
		return nil
	}
	b.speaking = speaking
	return utils.Ptr(speaking)
}

func (b *playbackBuffer) notify(degraded []error, speaking *bool) {
	for _, err := range degraded {
		degradedChunks.Add(context.Background(), 1)
		logger.Warn("skipped playback chunk", "error", err)
		if b.onDegraded != nil {
			b.onDegraded(err)
		}
	}
	if speaking != nil && b.onSpeakingChanged != nil {
		b.onSpeakingChanged(*speaking)
	}
}
