package backend

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bizjuned/conversational-ai-assistant/core/events"
	"github.com/invopop/jsonschema"
)

// ErrMalformedEvent marks a downlink payload that could not be decoded. The
// stream drops the single event and keeps reading.
var ErrMalformedEvent = errors.New("malformed downlink event")

const (
	eventTypeTranscriptUpdate = "stt_transcript_update"
	eventTypeTranscriptFinal  = "final_transcript"
	eventTypeThinking         = "ai_thinking"
	eventTypeAudioChunk       = "audio_chunk"
)

// WireEvent is the downlink wire envelope: one JSON object per websocket
// message, discriminated by Type. Only the fields relevant to the tagged
// type are populated.
type WireEvent struct {
	Type string `json:"type" jsonschema:"enum=stt_transcript_update,enum=final_transcript,enum=ai_thinking,enum=audio_chunk"`

	// Text carries the transcript for both transcript event types.
	Text string `json:"text,omitempty"`

	// Active reports thinking activity for ai_thinking events.
	Active bool `json:"active,omitempty"`

	// AudioChunk is base64-encoded synthesized speech for audio_chunk events.
	AudioChunk string `json:"audio_chunk,omitempty"`
	// LLMResponseText is the response text the audio chunk belongs to.
	LLMResponseText string `json:"llm_response_text,omitempty"`
}

// EventSchema returns the JSON schema of the downlink wire contract.
func EventSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}
	return reflector.Reflect(&WireEvent{})
}

// decodeEvent turns one wire message into a typed session event. Undecodable
// payloads are reported as [ErrMalformedEvent] wrappers.
func decodeEvent(msg []byte) (events.Event, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var wireEvent WireEvent
	if err := json.Unmarshal(msg, &wireEvent); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch probe.Type {
	case eventTypeTranscriptUpdate:
		return events.NewTranscriptPartial(wireEvent.Text), nil
	case eventTypeTranscriptFinal:
		return events.NewTranscriptFinal(wireEvent.Text), nil
	case eventTypeThinking:
		return events.NewThinking(wireEvent.Active), nil
	case eventTypeAudioChunk:
		audio, err := base64.StdEncoding.DecodeString(wireEvent.AudioChunk)
		if err != nil {
			return nil, fmt.Errorf("%w: bad audio chunk encoding: %v", ErrMalformedEvent, err)
		}
		return events.NewSpeechChunk(audio, wireEvent.LLMResponseText), nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, probe.Type)
	}
}
