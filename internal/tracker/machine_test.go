package tracker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audittracker/pkg/backoff"
)

func TestMachine_StartsSubmittingAndIssueEntersProcessing(t *testing.T) {
	t.Parallel()
	m := NewMachine("job-1", 0, nil)

	assert.Equal(t, StateSubmitting, m.State())
	m.Issue()
	assert.Equal(t, StateProcessing, m.State())
	m.Issue()
	assert.Equal(t, StateProcessing, m.State())
	assert.Zero(t, m.Attempts())
}

func TestMachine_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		report      *StatusReport
		err         error
		wantState   State
		wantKind    OutcomeKind
		wantMessage string
	}{
		{
			name:      "completed",
			report:    &StatusReport{Status: StatusCompleted, Result: &Result{ChannelID: "UC1"}},
			wantState: StateCompleted,
			wantKind:  OutcomeSuccess,
		},
		{
			name:        "failed with message",
			report:      &StatusReport{Status: StatusFailed, Error: "quota exceeded"},
			wantState:   StateFailed,
			wantKind:    OutcomeFailure,
			wantMessage: "quota exceeded",
		},
		{
			name:        "failed without message",
			report:      &StatusReport{Status: StatusFailed},
			wantState:   StateFailed,
			wantKind:    OutcomeFailure,
			wantMessage: DefaultFailureMessage,
		},
		{
			name:      "processing",
			report:    &StatusReport{Status: StatusProcessing},
			wantState: StateProcessing,
		},
		{
			name:      "transport error",
			err:       errors.New("connection reset"),
			wantState: StateProcessing,
		},
		{
			name:      "nil report",
			wantState: StateProcessing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewMachine("job-1", 60, nil)
			m.Issue()

			d, err := m.Observe(tt.report, tt.err)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, d.State)
			assert.Equal(t, 1, m.Attempts())

			if tt.wantKind == "" {
				assert.True(t, d.Continue())
				assert.Equal(t, time.Second, d.Delay)
				return
			}
			require.NotNil(t, d.Outcome)
			assert.False(t, d.Continue())
			assert.Equal(t, tt.wantKind, d.Outcome.Kind)
			assert.Equal(t, tt.wantMessage, d.Outcome.Message)
			assert.Equal(t, "job-1", d.Outcome.JobID)
			assert.Equal(t, 1, d.Outcome.Attempts)
		})
	}
}

func TestMachine_CompletedWithoutPayloadStillSucceeds(t *testing.T) {
	t.Parallel()
	m := NewMachine("job-1", 60, nil)

	d, err := m.Observe(&StatusReport{Status: StatusCompleted}, nil)
	require.NoError(t, err)
	require.NotNil(t, d.Outcome)
	assert.NotNil(t, d.Outcome.Result)
}

func TestMachine_TimesOutAtBudget(t *testing.T) {
	t.Parallel()
	m := NewMachine("job-1", 3, nil)

	for i := 1; i <= 2; i++ {
		d, err := m.Observe(&StatusReport{Status: StatusProcessing}, nil)
		require.NoError(t, err)
		require.True(t, d.Continue(), "attempt %d should continue", i)
	}

	d, err := m.Observe(nil, errors.New("timeout"))
	require.NoError(t, err)
	require.NotNil(t, d.Outcome)
	assert.Equal(t, StateTimedOut, d.State)
	assert.Equal(t, OutcomeTimeout, d.Outcome.Kind)
	assert.Equal(t, TimeoutMessage, d.Outcome.Message)
	assert.Equal(t, 3, d.Outcome.Attempts)
}

func TestMachine_TerminalStatusOnLastAttemptWins(t *testing.T) {
	t.Parallel()
	m := NewMachine("job-1", 2, nil)

	_, _ = m.Observe(&StatusReport{Status: StatusProcessing}, nil)
	d, err := m.Observe(&StatusReport{Status: StatusCompleted}, nil)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, d.State)
}

func TestMachine_TerminalStatesAreFinal(t *testing.T) {
	t.Parallel()
	m := NewMachine("job-1", 60, nil)

	_, err := m.Observe(&StatusReport{Status: StatusFailed}, nil)
	require.NoError(t, err)

	d, err := m.Observe(&StatusReport{Status: StatusCompleted}, nil)
	assert.ErrorIs(t, err, ErrTerminal)
	assert.Equal(t, StateFailed, d.State)
	assert.Nil(t, d.Outcome)
	assert.Equal(t, 1, m.Attempts())
}

func TestMachine_DelayFollowsPolicy(t *testing.T) {
	t.Parallel()
	m := NewMachine("job-1", 60, backoff.DefaultTiered())

	var got []time.Duration
	for range 7 {
		d, err := m.Observe(&StatusReport{Status: StatusProcessing}, nil)
		require.NoError(t, err)
		got = append(got, d.Delay)
	}

	want := append(repeatDelay(time.Second, 5), 3*time.Second, 3*time.Second)
	assert.Equal(t, want, got)
}

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]Status{
		"completed":        StatusCompleted,
		"failed":           StatusFailed,
		"processing":       StatusProcessing,
		"queued":           StatusProcessing,
		"channel_resolved": StatusProcessing,
		"videos_fetched":   StatusProcessing,
		"":                 StatusProcessing,
	}
	for raw, want := range tests {
		assert.Equal(t, want, NormalizeStatus(raw), "raw status %q", raw)
	}
}

func TestState_IsTerminal(t *testing.T) {
	t.Parallel()

	assert.False(t, StateSubmitting.IsTerminal())
	assert.False(t, StateProcessing.IsTerminal())
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateTimedOut.IsTerminal())
	assert.True(t, StateCancelled.IsTerminal())
}
