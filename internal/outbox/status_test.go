package outbox

import "testing"

func TestValidOutboxTransitions_Defined(t *testing.T) {
	statuses := []OutboxStatus{StatusPending, StatusProcessing, StatusPublished, StatusFailed, StatusDLQ}
	for _, s := range statuses {
		if _, exists := ValidOutboxTransitions[s]; !exists {
			t.Errorf("status %s must be in ValidOutboxTransitions", s)
		}
	}
}

func TestOutboxStatus_CanTransitionTo_ValidTransitions(t *testing.T) {
	tests := []struct {
		from OutboxStatus
		to   OutboxStatus
	}{
		{StatusPending, StatusProcessing},
		{StatusProcessing, StatusPublished},
		{StatusProcessing, StatusFailed},
		{StatusFailed, StatusProcessing},
		{StatusFailed, StatusDLQ},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if !tt.from.CanTransitionTo(tt.to) {
				t.Errorf("transition from %s to %s should be valid", tt.from, tt.to)
			}
		})
	}
}

func TestOutboxStatus_CanTransitionTo_InvalidTransitions(t *testing.T) {
	tests := []struct {
		from OutboxStatus
		to   OutboxStatus
	}{
		{StatusPending, StatusPublished},
		{StatusPending, StatusFailed},
		{StatusPending, StatusDLQ},
		{StatusProcessing, StatusPending},
		{StatusProcessing, StatusDLQ},
		{StatusPublished, StatusPending},
		{StatusPublished, StatusProcessing},
		{StatusPublished, StatusFailed},
		{StatusPublished, StatusDLQ},
		{StatusDLQ, StatusPending},
		{StatusDLQ, StatusProcessing},
		{StatusDLQ, StatusPublished},
		{StatusDLQ, StatusFailed},
		{StatusFailed, StatusPublished},
		{StatusFailed, StatusPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if tt.from.CanTransitionTo(tt.to) {
				t.Errorf("transition from %s to %s should be invalid", tt.from, tt.to)
			}
		})
	}
}

func TestOutboxStatus_IsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() {
		t.Error("PENDING is not terminal")
	}

	if StatusProcessing.IsTerminal() {
		t.Error("PROCESSING is not terminal")
	}

	if StatusFailed.IsTerminal() {
		t.Error("FAILED is not terminal")
	}

	if !StatusPublished.IsTerminal() {
		t.Error("PUBLISHED is terminal")
	}

	if !StatusDLQ.IsTerminal() {
		t.Error("DLQ is terminal")
	}
}
