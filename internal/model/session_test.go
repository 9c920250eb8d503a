package model

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()
	allowed := []struct{ from, to SessionStatus }{
		{StatusPending, StatusValidated},
		{StatusPending, StatusCancelled},
		{StatusValidated, StatusCompleted},
		{StatusValidated, StatusNoshowCharged},
		{StatusValidated, StatusNoshowFailed},
		{StatusValidated, StatusCancelled},
		{StatusNoshowFailed, StatusNoshowCharged},
		{StatusNoshowFailed, StatusNoshowFailed},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to SessionStatus }{
		{StatusPending, StatusCompleted},
		{StatusPending, StatusNoshowCharged},
		{StatusCompleted, StatusValidated},
		{StatusCompleted, StatusNoshowCharged},
		{StatusCancelled, StatusValidated},
		{StatusNoshowCharged, StatusNoshowFailed},
		{StatusNoshowCharged, StatusValidated},
		{StatusNoshowFailed, StatusCancelled},
		{StatusValidated, StatusPending},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tc.from, tc.to)
		}
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()
	for _, s := range []SessionStatus{StatusCompleted, StatusCancelled, StatusNoshowCharged} {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	for _, s := range []SessionStatus{StatusPending, StatusValidated, StatusNoshowFailed} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestChargeable(t *testing.T) {
	t.Parallel()
	for _, s := range []SessionStatus{StatusValidated, StatusNoshowFailed} {
		if !s.Chargeable() {
			t.Errorf("%s.Chargeable() = false, want true", s)
		}
	}
	for _, s := range []SessionStatus{StatusPending, StatusCompleted, StatusCancelled, StatusNoshowCharged} {
		if s.Chargeable() {
			t.Errorf("%s.Chargeable() = true, want false", s)
		}
	}
}

func TestPenaltyTotalCents(t *testing.T) {
	t.Parallel()
	s := &GuaranteeSession{PenaltyCentsPerPerson: 2500, PartySize: 6}
	if got := s.PenaltyTotalCents(); got != 15000 {
		t.Fatalf("PenaltyTotalCents() = %d, want 15000", got)
	}
}
