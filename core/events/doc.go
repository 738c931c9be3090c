// Package events defines the typed session event contract.
//
// Event kinds are grouped by channel-facing namespaces:
//
//   - downlink.*: events decoded from the backend event stream.
//   - uplink.*: lifecycle of the audio uplink channel.
//
// Semantics used across the package:
//
//   - Partial: mutable point-in-time snapshot that may still change.
//   - Final: terminal immutable text for the current turn phase.
//   - Chunk: binary synthesized-audio payload tied to a response.
//
// downlink events
//
//   - TranscriptPartial (downlink.transcript_partial): mutable snapshot of
//     the user transcript in progress.
//   - TranscriptFinal (downlink.transcript_final): terminal user transcript
//     for the utterance.
//   - Thinking (downlink.thinking): backend response-generation activity
//     toggled on or off.
//   - SpeechChunk (downlink.speech_chunk): synthesized speech bytes plus the
//     response text they belong to.
//   - StreamLost (downlink.stream_lost): the event stream dropped with an
//     error; the session decides whether to reconnect.
//
// uplink events
//
//   - UplinkReady (uplink.ready): the audio channel is open and accepting
//     frames.
//   - UplinkClosed (uplink.closed): the audio channel closed, locally or
//     remotely.
package events
