package client

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestState_Transitions(t *testing.T) {
	legal := [][2]State{
		{StateFresh, StateDispatched},
		{StateFresh, StateFailedOther},
		{StateDispatched, StateSucceeded},
		{StateDispatched, StateFailedAuth},
		{StateDispatched, StateFailedOther},
		{StateFailedAuth, StateRefreshInFlight},
		{StateRefreshInFlight, StateRetryDispatched},
		{StateRefreshInFlight, StateRefreshFailed},
		{StateRetryDispatched, StateSucceeded},
		{StateRetryDispatched, StateFailedFinal},
		{StateRefreshFailed, StateFailedFinal},
	}
	for _, tr := range legal {
		require.Truef(t, tr[0].CanTransition(tr[1]), "%s -> %s", tr[0], tr[1])
	}

	illegal := [][2]State{
		{StateRetryDispatched, StateFailedAuth},
		{StateRetryDispatched, StateRefreshInFlight},
		{StateFailedFinal, StateDispatched},
		{StateSucceeded, StateDispatched},
		{StateFailedAuth, StateSucceeded},
		{StateFresh, StateRetryDispatched},
	}
	for _, tr := range illegal {
		require.Falsef(t, tr[0].CanTransition(tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestState_Terminal(t *testing.T) {
	for _, s := range []State{StateSucceeded, StateFailedOther, StateFailedFinal} {
		require.True(t, s.Terminal(), s.String())
		for next := StateFresh; next <= StateFailedFinal; next++ {
			require.False(t, s.CanTransition(next), "%s must have no outgoing transition", s)
		}
	}
	require.False(t, StateRefreshInFlight.Terminal())
	require.Equal(t, "unknown", State(200).String())
}

func TestTracker_ReportsIllegalTransition(t *testing.T) {
	var illegal [][2]State
	var seen []State
	tr := &tracker{
		requestID: "rid",
		state:     StateFresh,
		hook:      func(_ string, _, to State) { seen = append(seen, to) },
		onIllegal: func(from, to State) { illegal = append(illegal, [2]State{from, to}) },
	}
	tr.to(StateDispatched)
	tr.to(StateSucceeded)
	tr.to(StateDispatched)

	require.Equal(t, []State{StateDispatched, StateSucceeded, StateDispatched}, seen)
	require.Equal(t, [][2]State{{StateSucceeded, StateDispatched}}, illegal)
}

func TestAttempt_RetryCarriesToken(t *testing.T) {
	req, err := NewRequest("get", "/cart")
	require.NoError(t, err)

	first := firstAttempt{req: req}
	retry := first.retryWith("T2")

	require.Equal(t, 1, first.number())
	require.Equal(t, 2, retry.number())
	require.Same(t, req, retry.request())
	require.Equal(t, "T2", retry.token)
	require.Equal(t, "GET", req.Method)
}
