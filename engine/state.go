package engine

// State is the per-instance mutable state of a running ping instance.
// It is created at Init, mutated exclusively by Machine's transition
// methods, and released at Terminate. It is never accessed
// concurrently: spec.md §5 guarantees events for a given instance are
// delivered strictly serially, so no locking is required here.
type State struct {
	// NumReplies counts reply-or-timeout events processed.
	// Invariant: NumReplies <= options.Count.
	NumReplies int

	// NumLosses counts timeouts. Invariant: NumLosses <= NumReplies.
	NumLosses int

	// NumProbesInFlight counts probes sent but neither replied-to nor
	// timed-out. Invariant: NumProbesInFlight >= 0 and
	// NumReplies + NumProbesInFlight <= options.Count.
	NumProbesInFlight int

	// Probes holds every probe transmitted, in send order. The engine
	// owns these for the lifetime of the instance.
	Probes []*Probe

	// Stats holds the RTT samples of successful replies only.
	Stats *Stats

	// terminated marks teardown as already performed, so Terminate is
	// idempotent.
	terminated bool
}

// newState allocates a fresh State for a new instance.
func newState() *State {
	return &State{
		Stats: NewStats(),
	}
}

// release clears the state's owned slices. Freeing an already-released
// (or nil) state is a no-op, matching the source's idempotent teardown.
func (s *State) release() {
	if s == nil || s.terminated {
		return
	}
	s.Probes = nil
	s.terminated = true
}
