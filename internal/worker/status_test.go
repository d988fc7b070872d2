package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusManager_InitialStateIsStopped(t *testing.T) {
	t.Parallel()

	m := NewStatusManager()
	require.Equal(t, StatusStopped, m.Current())
	require.False(t, m.Healthy())
	require.False(t, m.CanProcess())
}

func TestStatusManager_TransitionTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusIdle, StatusBusy, true},
		{StatusIdle, StatusError, true},
		{StatusIdle, StatusStopped, true},
		{StatusBusy, StatusIdle, true},
		{StatusBusy, StatusError, true},
		{StatusBusy, StatusStopped, true},
		{StatusError, StatusIdle, true},
		{StatusError, StatusBusy, false},
		{StatusError, StatusStopped, true},
		{StatusStopped, StatusIdle, true},
		{StatusStopped, StatusBusy, false},
		{StatusStopped, StatusError, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			t.Parallel()
			m := statusManagerAt(t, tc.from)
			err := m.To(tc.to)
			if tc.allowed {
				require.NoError(t, err)
				require.Equal(t, tc.to, m.Current())
			} else {
				require.Error(t, err)
				require.Equal(t, tc.from, m.Current())
			}
		})
	}
}

func TestStatusManager_SelfTransitionIsNoOp(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusIdle, StatusBusy, StatusError, StatusStopped} {
		m := statusManagerAt(t, s)
		require.NoError(t, m.To(s))
		require.Equal(t, s, m.Current())
	}
}

func TestStatusManager_Predicates(t *testing.T) {
	t.Parallel()

	cases := map[Status]struct {
		healthy    bool
		canProcess bool
	}{
		StatusIdle:    {true, true},
		StatusBusy:    {true, false},
		StatusError:   {false, false},
		StatusStopped: {false, false},
	}
	for s, want := range cases {
		m := statusManagerAt(t, s)
		require.Equal(t, want.healthy, m.Healthy(), s)
		require.Equal(t, want.canProcess, m.CanProcess(), s)
	}
}

// statusManagerAt walks a manager into the target state via legal moves.
func statusManagerAt(t *testing.T, target Status) *StatusManager {
	t.Helper()
	m := NewStatusManager()
	switch target {
	case StatusStopped:
	case StatusIdle:
		require.NoError(t, m.To(StatusIdle))
	case StatusBusy:
		require.NoError(t, m.To(StatusIdle))
		require.NoError(t, m.To(StatusBusy))
	case StatusError:
		require.NoError(t, m.To(StatusError))
	}
	return m
}
