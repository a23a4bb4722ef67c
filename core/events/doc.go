// Package events defines the typed session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - alignment.*
//   - script.*
//   - prompt.*
//
// user_input events
//
//   - UserAudioFrame (user_input.audio_frame): raw microphone frame.
//   - UserSpeechStarted (user_input.speech_started): speech activity began.
//   - UserSpeechEnded (user_input.speech_ended): short silence after speech.
//   - UserSilenceLong (user_input.silence_long): long silence after speech.
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable interim transcript snapshot.
//   - UserTranscriptFinal (user_input.transcript_final): finalized transcript
//     fragment, forwarded to the alignment service.
//
// alignment events
//
//   - AlignmentStateChanged (alignment.state_changed): the alignment channel
//     connected, disconnected or gave up reconnecting.
//
// script events
//
//   - SegmentHighlighted (script.segment_highlighted): the segment pointer
//     moved.
//   - ScriptPaused (script.paused): the speaker stalled.
//   - ScriptResumed (script.resumed): the speaker continued.
//   - ScriptCompleted (script.completed): the last segment was read.
//   - SegmentsChanged (script.segments_changed): the script was segmented
//     again.
//
// prompt events
//
//   - PromptRequested (prompt.requested): audio for a segment was requested.
//   - PromptStarted (prompt.started): prompt audio reached the output.
//   - PromptEnded (prompt.ended): prompt audio finished playing.
//   - PromptStopped (prompt.stopped): the active prompt was abandoned.
//   - PromptFailed (prompt.failed): fetching or playing the prompt failed
//     after all retries.
package events
