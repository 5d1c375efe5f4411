// Package events defines the typed observer event contract for a session.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - assistant_response.*
//   - assistant_speech.*
//   - assistant_playback.*
//   - turn_state.*
//   - stage.*
//   - conversation.*
//
// Semantics used across the package:
//
//   - Frame: binary audio frame/chunk payload.
//   - Segment: append-only text piece emitted in stream order.
//   - Interim: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text/state for the current stream/turn phase.
//   - Ended: lifecycle boundary indicating stream completion.
//
// Observers receive events after the fact and must not block; the session
// never waits on an observer.
package events
