package engine

import (
	"time"
)

// Terminated is the sentinel returned by HandleReply/HandleTimeout in
// place of a dispatch count when AllProbesSent has just been emitted:
// the caller must raise framework-termination and stop driving this
// Machine.
const Terminated = -1

// Machine is the engine's event-handling state machine. It holds no
// I/O of its own: transport feeds it events and carries out whatever
// dispatch the transition methods request, exactly per the
// "pure transition function" re-architecture in SPEC_FULL.md (Design
// Notes item 3): (state, event) -> (state', outgoing events, dispatch_n).
type Machine struct {
	opts     Options
	skeleton *Probe
	send     Sender

	state *State

	// framework timeout, used only to cap the initial dispatch burst.
	frameworkTimeout time.Duration
}

// NewMachine validates opts and allocates a fresh Machine. An
// absent/malformed Options is a fatal InvalidOptions error,
// corresponding to the source's ALGORITHM_INIT failure path.
func NewMachine(opts Options, skeleton *Probe, frameworkTimeout time.Duration, send Sender) (*Machine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Machine{
		opts:             opts,
		skeleton:         skeleton,
		send:             send,
		state:            newState(),
		frameworkTimeout: frameworkTimeout,
	}, nil
}

// State exposes the machine's current state for inspection (tests,
// reporting). Callers must not mutate it.
func (m *Machine) State() *State {
	return m.state
}

// Init performs the ALGORITHM_INIT transition: it computes and issues
// the initial dispatch burst, capped to what fits within the
// framework's overall timeout window.
//
//	initial_k = min(floor(framework_timeout / options.interval), options.count)
//
// This expression is preserved verbatim from the source per
// SPEC_FULL.md §4.4. It returns the number of probes dispatched, the
// outcomes to forward upstream (empty unless Count is 0), and whether
// the instance must terminate immediately — the Count == 0 boundary
// case, where no probe is ever sent and AllProbesSent fires without
// waiting for any event.
func (m *Machine) Init() (dispatched int, outcomes []Outcome, terminate bool) {
	if m.opts.Count == 0 {
		return 0, []Outcome{AllProbesSent{}}, true
	}

	if m.opts.Interval <= 0 {
		return 0, nil, false
	}
	byTimeout := int(m.frameworkTimeout / m.opts.Interval)
	k := byTimeout
	if m.opts.Count < k {
		k = m.opts.Count
	}
	if k < 0 {
		k = 0
	}

	dispatched = dispatchBatch(m.state, m.skeleton, k, m.send)
	m.state.NumProbesInFlight += dispatched
	return dispatched, nil, false
}

// HandleReply performs the PROBE_REPLY transition: spec.md §4.4.
// Returns the outcomes to forward upstream (exactly one for the reply
// itself, per §8 invariant 5, followed by AllProbesSent or Wait when no
// further probe is dispatched) and the number of additional probes
// dispatched as a result (0 or 1, the deliberate one-probe-at-a-time
// refill policy), or Terminated once AllProbesSent has been emitted.
func (m *Machine) HandleReply(probe, reply *Probe, now time.Time) ([]Outcome, int) {
	s := m.state
	s.NumReplies++
	s.NumProbesInFlight--

	reply.SetReceiveTime(now)

	var out Outcome
	if destinationReached(m.opts.Destination, reply) {
		rtt := reply.ReceiveTime().Sub(probe.SendTime())
		s.Stats.Record(rtt.Seconds())
		out = ProbeReply{Probe: probe, Reply: reply, RTT: rtt}
	} else {
		kind := classify(reply)
		out = outcomeForKind(kind, reply)
	}

	needMore := 0
	if m.opts.Count-s.NumReplies > 0 {
		needMore = 1
	}

	return m.postEvent(out, needMore)
}

// HandleTimeout performs the PROBE_TIMEOUT transition: spec.md §4.4.
func (m *Machine) HandleTimeout(probe *Probe) ([]Outcome, int) {
	s := m.state
	s.NumReplies++
	s.NumLosses++
	s.NumProbesInFlight--

	needMore := 0
	if m.opts.Count-s.NumReplies > 0 {
		needMore = 1
	}

	return m.postEvent(Timeout{Probe: probe}, needMore)
}

// postEvent implements spec.md §4.4's "Post-event" steps 1-3: forward
// the original event, then either dispatch more probes, or emit
// AllProbesSent + signal termination, or emit Wait.
func (m *Machine) postEvent(original Outcome, needMore int) ([]Outcome, int) {
	s := m.state
	outcomes := []Outcome{original}

	if needMore > 0 && s.NumReplies+s.NumProbesInFlight < m.opts.Count {
		dispatched := dispatchBatch(s, m.skeleton, needMore, m.send)
		s.NumProbesInFlight += dispatched
		return outcomes, dispatched
	}

	if s.NumProbesInFlight == 0 {
		outcomes = append(outcomes, AllProbesSent{})
		return outcomes, Terminated
	}

	outcomes = append(outcomes, Wait{})
	return outcomes, 0
}

// Terminate performs the ALGORITHM_TERMINATED transition: release
// state. Idempotent; terminating a nil or already-terminated Machine
// is a no-op.
func (m *Machine) Terminate() {
	if m == nil {
		return
	}
	m.state.release()
}
