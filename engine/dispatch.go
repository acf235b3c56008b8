package engine

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Sender is the framework's best-effort transmission primitive. It
// returns whether the probe was successfully handed off for sending.
// The engine never learns about socket-level failure details — only
// the boolean, per spec.md §6's outbound contract.
type Sender func(probe *Probe) bool

// dispatchErrWriter receives dispatch-failure diagnostics. Tests may
// swap it for a buffer; production code leaves it at os.Stderr.
var dispatchErrWriter io.Writer = os.Stderr

// dispatchBatch clones the skeleton probe k times (1-indexed within
// this batch), staggers each clone's delay, records it in state, and
// hands it to send. It aborts on the first send failure without
// rolling back probes already dispatched, matching
// SPEC_FULL.md §4.3 / original_source send_ping_probes.
//
// It returns the number of probes actually dispatched.
func dispatchBatch(state *State, skeleton *Probe, k int, send Sender) int {
	dispatched := 0
	for i := 1; i <= k; i++ {
		clone := skeleton.Clone()
		if skeleton.Delay() != BestEffortDelay {
			clone.SetDelay(time.Duration(i) * skeleton.Delay())
		}
		state.Probes = append(state.Probes, clone)

		if !send(clone) {
			fmt.Fprintf(dispatchErrWriter, "pingo: failed to send probe %d of batch\n", i)
			return dispatched
		}
		dispatched++
	}
	return dispatched
}
