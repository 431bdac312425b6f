package correlator

import (
	"errors"
	"fmt"
	"time"
)

// Outcome tells the driver loop what to do with a failed phase.
type Outcome int

const (
	// Retry sleeps for the phase delay, then redoes the batch from the
	// unadvanced checkpoint.
	Retry Outcome = iota
	// Skip abandons the current record only; the batch goes on.
	Skip
	// Fatal stops the run. Upstream data has a shape retrying cannot fix.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Retry:
		return "retry"
	case Skip:
		return "skip"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Phase names the step of a batch that failed.
type Phase string

const (
	PhaseCheckpoint Phase = "load_checkpoint"
	PhaseFetchBatch Phase = "fetch_batch"
	PhaseFetchItem  Phase = "fetch_item"
	PhaseParse      Phase = "parse_payload"
	PhaseCommittee  Phase = "resolve_committee"
	PhaseDecode     Phase = "decode"
	PhaseUpsert     Phase = "upsert"
	PhasePersist    Phase = "persist_checkpoint"
)

// PhaseError carries the outcome of a failed phase.
type PhaseError struct {
	Phase   Phase
	Outcome Outcome
	Delay   time.Duration
	Err     error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Phase, e.Outcome, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func retryAfter(phase Phase, delay time.Duration, err error) error {
	return &PhaseError{Phase: phase, Outcome: Retry, Delay: delay, Err: err}
}

func skip(phase Phase, err error) error {
	return &PhaseError{Phase: phase, Outcome: Skip, Err: err}
}

func fatal(phase Phase, err error) error {
	return &PhaseError{Phase: phase, Outcome: Fatal, Err: err}
}

// OutcomeOf classifies err. Errors that did not come from a phase are fatal.
func OutcomeOf(err error) Outcome {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Outcome
	}
	return Fatal
}

func delayOf(err error) time.Duration {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Delay
	}
	return 0
}

func phaseOf(err error) Phase {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}
