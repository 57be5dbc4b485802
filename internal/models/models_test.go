package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistrationStatusTransitions(t *testing.T) {
	cases := []struct {
		from    RegistrationStatus
		to      RegistrationStatus
		allowed bool
	}{
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusCancelled, true},
		{StatusApproved, StatusCompleted, true},
		{StatusApproved, StatusCancelled, true},
		{StatusApproved, StatusPending, false},
		{StatusCompleted, StatusApproved, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusApproved, false},
		{StatusCancelled, StatusCompleted, false},
	}

	for _, tc := range cases {
		require.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	require.False(t, StatusPending.IsTerminal())
	require.False(t, StatusApproved.IsTerminal())
	require.True(t, StatusCompleted.IsTerminal())
	require.True(t, StatusCancelled.IsTerminal())
}
