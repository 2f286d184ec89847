package domain

import "fmt"

// Stage is a step of the per-request state machine.
type Stage int

const (
	StageReceived Stage = iota
	StageTranscribing
	StageResolving
	StageValidating
	StageDispatching
	StageResponding
	StageDone
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageTranscribing:
		return "transcribing"
	case StageResolving:
		return "resolving"
	case StageValidating:
		return "validating"
	case StageDispatching:
		return "dispatching"
	case StageResponding:
		return "responding"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// Run tracks the stages one request has gone through. Stages only move
// forward; any non-terminal stage may exit to StageFailed.
type Run struct {
	current Stage
	trace   []Stage
	reason  Kind
}

func NewRun() *Run {
	return &Run{current: StageReceived, trace: []Stage{StageReceived}}
}

// Advance moves the run to next. Stages may be skipped but never revisited.
func (r *Run) Advance(next Stage) error {
	if r.current.Terminal() {
		return fmt.Errorf("run already %s, cannot enter %s", r.current, next)
	}
	if next == StageFailed {
		return fmt.Errorf("use Fail to enter %s", next)
	}
	if next <= r.current {
		return fmt.Errorf("cannot move from %s back to %s", r.current, next)
	}
	r.current = next
	r.trace = append(r.trace, next)
	return nil
}

// Fail moves the run to the terminal failed state.
func (r *Run) Fail(reason Kind) {
	if r.current.Terminal() {
		return
	}
	r.current = StageFailed
	r.reason = reason
	r.trace = append(r.trace, StageFailed)
}

func (r *Run) Current() Stage { return r.current }

// Reason is the failure kind, set only after Fail.
func (r *Run) Reason() Kind { return r.reason }

func (r *Run) Trace() []Stage {
	out := make([]Stage, len(r.trace))
	copy(out, r.trace)
	return out
}
