// Package normalizer classifies raw CDC messages and turns them into flat,
// consistently cased records.
//
// A raw message is routed by its shape:
//
//   - text starting with "Struct" is struct-text and is parsed by a
//     structtext.Parser;
//   - a JSON object with an "op" member is a change-event envelope whose
//     "after" state becomes the record;
//   - any other JSON object is used as the record as-is;
//   - anything else is unparseable and is kept as {"message": raw}.
//
// Routing never fails: every message resolves to an Outcome.
package normalizer

import (
	"errors"

	"github.com/telhawk-systems/telhawk-bridge/internal/record"
	"github.com/telhawk-systems/telhawk-bridge/internal/structtext"
)

var (
	// ErrMalformedStruct marks struct-text whose boundaries or pairs could not
	// be read. The message still succeeds with whatever was recovered.
	ErrMalformedStruct = structtext.ErrMalformedStruct
	// ErrMissingAfterState marks a change-event envelope without a usable
	// "after" payload.
	ErrMissingAfterState = errors.New("change event has no after state")
	// ErrUnparseableMessage marks a message that is neither struct-text nor a
	// JSON object.
	ErrUnparseableMessage = errors.New("unparseable message")
	// ErrInternalProcessing marks an unexpected failure inside the pipeline.
	ErrInternalProcessing = errors.New("internal processing error")
)

// FallbackField is the single field of the record kept for an unparseable
// message.
const FallbackField = "message"

// OutcomeKind classifies a routed message.
type OutcomeKind int

const (
	Success OutcomeKind = iota
	PartialFailure
	HardFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case PartialFailure:
		return "partial_failure"
	case HardFailure:
		return "hard_failure"
	default:
		return "unknown"
	}
}

// Outcome is the result of routing one raw message.
//
// Fields holds the flat payload for Success and the fallback field for
// HardFailure; it is nil for PartialFailure. Err is set on every failure and
// also on a Success recovered from malformed struct-text.
type Outcome struct {
	Kind   OutcomeKind
	Fields []record.Field
	Reason string
	Raw    string
	Err    error
}

// Failed reports whether the outcome counts as a failed transaction.
func (o Outcome) Failed() bool {
	return o.Kind != Success
}

// HasRecord reports whether the outcome produces a record for the window.
func (o Outcome) HasRecord() bool {
	return o.Kind != PartialFailure
}
