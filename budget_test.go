package xymodem

import "testing"

func TestErrorBudgetCaps(t *testing.T) {
	b := newErrorBudget(3, 5)
	b.reset()

	for i := 0; i < 2; i++ {
		if b.bumpInitial() {
			t.Fatalf("bumpInitial exhausted too early at i=%d", i)
		}
	}
	if !b.bumpInitial() {
		t.Fatal("bumpInitial should report exhausted at the cap")
	}

	for i := 0; i < 4; i++ {
		if b.bumpMain() {
			t.Fatalf("bumpMain exhausted too early at i=%d", i)
		}
	}
	if !b.bumpMain() {
		t.Fatal("bumpMain should report exhausted at the cap")
	}
}

func TestErrorBudgetResetsPerCall(t *testing.T) {
	b := newErrorBudget(2, 2)
	b.reset()
	b.bumpInitial()
	b.bumpMain()
	b.reset()
	if b.initial != 0 || b.main != 0 {
		t.Fatalf("reset() left counters at (%d, %d), want (0, 0)", b.initial, b.main)
	}
}
