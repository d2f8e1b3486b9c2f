package models

import "testing"

func TestIsValidRequestTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{RequestStatusPendingPayment, RequestStatusPaidHeld, true},
		{RequestStatusPaidHeld, RequestStatusInTransit, true},
		{RequestStatusInTransit, RequestStatusDelivered, true},
		{RequestStatusInTransit, RequestStatusCompleted, true},
		{RequestStatusDelivered, RequestStatusCompleted, true},

		// Cancellation before payment
		{RequestStatusPendingPayment, RequestStatusCancelled, true},

		// Dispute paths
		{RequestStatusPaidHeld, RequestStatusDisputed, true},
		{RequestStatusInTransit, RequestStatusDisputed, true},
		{RequestStatusDelivered, RequestStatusDisputed, true},
		{RequestStatusDisputed, RequestStatusCompleted, true},
		{RequestStatusDisputed, RequestStatusRefunded, true},

		// Invalid transitions
		{RequestStatusPendingPayment, RequestStatusInTransit, false},
		{RequestStatusPendingPayment, RequestStatusDisputed, false},
		{RequestStatusPaidHeld, RequestStatusCancelled, false},
		{RequestStatusPaidHeld, RequestStatusCompleted, false},
		{RequestStatusInTransit, RequestStatusCancelled, false},
		{RequestStatusDelivered, RequestStatusRefunded, false},
		{RequestStatusCompleted, RequestStatusDisputed, false},
		{RequestStatusCompleted, RequestStatusRefunded, false},
		{RequestStatusCancelled, RequestStatusPendingPayment, false},
		{RequestStatusRefunded, RequestStatusCompleted, false},
		{"nonexistent", RequestStatusPaidHeld, false},
		{RequestStatusPaidHeld, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidRequestTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidRequestTransition(%s, %s) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsTerminalRequestStatus(t *testing.T) {
	terminal := []string{RequestStatusCompleted, RequestStatusCancelled, RequestStatusRefunded}
	for _, s := range terminal {
		if !IsTerminalRequestStatus(s) {
			t.Errorf("expected %s to be terminal", s)
		}
		if len(ValidRequestTransitions[s]) != 0 {
			t.Errorf("terminal status %s has outgoing transitions", s)
		}
	}

	nonTerminal := []string{
		RequestStatusPendingPayment, RequestStatusPaidHeld,
		RequestStatusInTransit, RequestStatusDelivered, RequestStatusDisputed,
	}
	for _, s := range nonTerminal {
		if IsTerminalRequestStatus(s) {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}

func TestIsDisputableRequestStatus(t *testing.T) {
	disputable := []string{RequestStatusPaidHeld, RequestStatusInTransit, RequestStatusDelivered}
	for _, s := range disputable {
		if !IsDisputableRequestStatus(s) {
			t.Errorf("expected %s to be disputable", s)
		}
	}
	notDisputable := []string{
		RequestStatusPendingPayment, RequestStatusDisputed,
		RequestStatusCompleted, RequestStatusCancelled, RequestStatusRefunded,
	}
	for _, s := range notDisputable {
		if IsDisputableRequestStatus(s) {
			t.Errorf("expected %s not to be disputable", s)
		}
	}
}
