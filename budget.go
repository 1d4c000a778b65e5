package xymodem

// errorBudget tracks the two soft-error counters described in spec §4.3:
// initial is used only while the receiver probes for the first header;
// main is used for everything afterwards. Both reset at the start of
// every top-level Send/Receive call.
type errorBudget struct {
	initial    int
	main       int
	maxInitial int
	maxMain    int
}

func newErrorBudget(maxInitial, maxMain int) *errorBudget {
	return &errorBudget{maxInitial: maxInitial, maxMain: maxMain}
}

// reset zeroes both counters; called once at the top of Send/Receive.
func (b *errorBudget) reset() {
	b.initial = 0
	b.main = 0
}

// bumpInitial increments the probe-phase counter and reports whether the
// cap has been reached.
func (b *errorBudget) bumpInitial() bool {
	b.initial++
	return b.initial >= b.maxInitial
}

// bumpMain increments the main-phase counter and reports whether the cap
// has been reached.
func (b *errorBudget) bumpMain() bool {
	b.main++
	return b.main >= b.maxMain
}
