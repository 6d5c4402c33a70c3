// Package events defines the typed session event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - turn_state.*
//   - assistant_response.*
//   - mode.*
//   - interaction.*
//
// Semantics used across the package:
//
//   - Segment: append-only sentence emitted in stream order.
//   - Completed/Failed: terminal outcome for the turn; exactly one of the
//     two is emitted per delivered turn.
//   - Superseded: the turn lost currency to a newer submission; its
//     remaining output is dropped, not rolled back.
//
// turn_state events
//
//   - TurnStarted (turn_state.started): a submission obtained a turn index
//     and its stream is being opened.
//   - TurnCompleted (turn_state.completed): the stream finished and the
//     result was forwarded to the display collaborator.
//   - TurnFailed (turn_state.failed): the stream failed; a single failure
//     notification was forwarded.
//   - TurnCancelled (turn_state.cancelled): the turn was explicitly
//     cancelled by the user.
//   - TurnSuperseded (turn_state.superseded): a newer submission took over
//     while this turn's stream was still open.
//
// assistant_response events
//
//   - ResponseSegment (assistant_response.segment): one streamed sentence
//     forwarded to the display collaborator.
//   - ResponseFinal (assistant_response.final): the sentence stream for the
//     turn is complete.
//
// mode events
//
//   - ModeChanged (mode.changed): the interaction mode transition
//     committed, hooks included.
//
// interaction events
//
//   - FlagChanged (interaction.flag_changed): an interaction flag changed
//     value after mutual-exclusion rules were applied.
package events
