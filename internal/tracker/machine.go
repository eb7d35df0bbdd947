package tracker

import (
	"errors"
	"time"

	"audittracker/pkg/backoff"
)

// ErrTerminal is returned when a response is fed to a machine that has
// already reached a terminal state.
var ErrTerminal = errors.New("job already in a terminal state")

// State is the tracking state of one job.
type State string

const (
	StateSubmitting State = "submitting"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"

	// StateCancelled is set by the poller when tracking stops without an
	// outcome. A Machine never enters it.
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether no further transitions can leave s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut || s == StateCancelled
}

// Decision is the machine's verdict on one query response.
type Decision struct {
	State   State
	Delay   time.Duration // wait before the next query; zero when terminal
	Outcome *Outcome      // non-nil exactly when State is terminal
}

// Continue reports whether another query should be scheduled.
func (d Decision) Continue() bool {
	return d.Outcome == nil
}

// Machine interprets status query responses for a single job.
//
// Every response counts as one attempt, including transport errors.
// A machine is owned by one poller goroutine and is not safe for
// concurrent use.
type Machine struct {
	jobID       string
	state       State
	attempts    int
	maxAttempts int
	policy      backoff.Strategy
}

// NewMachine creates a machine in StateSubmitting. maxAttempts below 1
// falls back to DefaultMaxAttempts; a nil policy uses backoff.DefaultTiered.
func NewMachine(jobID string, maxAttempts int, policy backoff.Strategy) *Machine {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	if policy == nil {
		policy = backoff.DefaultTiered()
	}
	return &Machine{
		jobID:       jobID,
		state:       StateSubmitting,
		maxAttempts: maxAttempts,
		policy:      policy,
	}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Attempts returns the number of responses observed so far.
func (m *Machine) Attempts() int {
	return m.attempts
}

// Issue marks a query as sent. The first call leaves StateSubmitting.
func (m *Machine) Issue() {
	if m.state == StateSubmitting {
		m.state = StateProcessing
	}
}

// Observe consumes one query response. queryErr non-nil (or a nil report)
// is treated as a transient processing response.
func (m *Machine) Observe(report *StatusReport, queryErr error) (Decision, error) {
	if m.state.IsTerminal() {
		return Decision{State: m.state}, ErrTerminal
	}
	m.state = StateProcessing
	m.attempts++

	if queryErr == nil && report != nil {
		switch report.Status {
		case StatusCompleted:
			result := report.Result
			if result == nil {
				result = &Result{}
			}
			return m.terminate(StateCompleted, Outcome{Kind: OutcomeSuccess, Result: result}), nil
		case StatusFailed:
			msg := report.Error
			if msg == "" {
				msg = DefaultFailureMessage
			}
			return m.terminate(StateFailed, Outcome{Kind: OutcomeFailure, Message: msg}), nil
		}
	}

	if m.attempts >= m.maxAttempts {
		return m.terminate(StateTimedOut, Outcome{Kind: OutcomeTimeout, Message: TimeoutMessage}), nil
	}
	return Decision{State: m.state, Delay: m.policy.Delay(m.attempts)}, nil
}

func (m *Machine) terminate(state State, outcome Outcome) Decision {
	m.state = state
	outcome.JobID = m.jobID
	outcome.Attempts = m.attempts
	return Decision{State: state, Outcome: &outcome}
}
