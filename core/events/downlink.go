package events

const (
	// KindTranscriptPartial identifies mutable user transcript snapshots.
	KindTranscriptPartial Kind = "downlink.transcript_partial"
	// KindTranscriptFinal identifies the final user transcript for the utterance.
	KindTranscriptFinal Kind = "downlink.transcript_final"
	// KindThinking identifies backend response-generation activity changes.
	KindThinking Kind = "downlink.thinking"
	// KindSpeechChunk identifies synthesized speech audio for a response.
	KindSpeechChunk Kind = "downlink.speech_chunk"
	// KindStreamLost identifies an event stream drop.
	KindStreamLost Kind = "downlink.stream_lost"
)

// TranscriptPartial carries a mutable snapshot of the user transcript in
// progress.
type TranscriptPartial struct {
	Base
	Text string
}

// NewTranscriptPartial creates a partial user transcript event.
func NewTranscriptPartial(text string) TranscriptPartial {
	return TranscriptPartial{Base: NewBase(KindTranscriptPartial), Text: text}
}

// TranscriptFinal carries the terminal user transcript for the utterance.
type TranscriptFinal struct {
	Base
	Text string
}

// NewTranscriptFinal creates a final user transcript event.
func NewTranscriptFinal(text string) TranscriptFinal {
	return TranscriptFinal{Base: NewBase(KindTranscriptFinal), Text: text}
}

// Thinking reports whether the backend is composing a response.
type Thinking struct {
	Base
	Active bool
}

// NewThinking creates a thinking state event.
func NewThinking(active bool) Thinking {
	return Thinking{Base: NewBase(KindThinking), Active: active}
}

// SpeechChunk carries synthesized speech bytes tied to one response.
type SpeechChunk struct {
	Base
	Audio        []byte
	ResponseText string
}

// NewSpeechChunk creates a synthesized speech chunk event.
func NewSpeechChunk(audio []byte, responseText string) SpeechChunk {
	return SpeechChunk{Base: NewBase(KindSpeechChunk), Audio: audio, ResponseText: responseText}
}

// StreamLost marks an event stream drop with the error that caused it.
type StreamLost struct {
	Base
	Err error
}

// NewStreamLost creates a stream lost event.
func NewStreamLost(err error) StreamLost {
	return StreamLost{Base: NewBase(KindStreamLost), Err: err}
}
