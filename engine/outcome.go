package engine

import "time"

// OutcomeKind identifies which classification a reply fell into. It is
// used internally by classify; Outcome values (below) are what the
// engine actually emits upstream.
type OutcomeKind int

const (
	KindGenError OutcomeKind = iota
	KindDstNetUnreachable
	KindDstHostUnreachable
	KindDstPortUnreachable
	KindDstProtUnreachable
	KindTtlExceededTransit
	KindTimeExceededReassembly
	KindRedirect
	KindParameterProblem
)

// Outcome is the sealed set of semantic results the engine emits
// upstream, one per consumed PROBE_REPLY/PROBE_TIMEOUT event (plus the
// two lifecycle events AllProbesSent and Wait). Each variant is a
// distinct struct implementing the marker method outcomeTag.
type Outcome interface {
	outcomeTag()
}

// ProbeReply is emitted when the destination itself replied.
type ProbeReply struct {
	Probe *Probe
	Reply *Probe
	RTT   time.Duration
}

func (ProbeReply) outcomeTag() {}

// DstNetUnreachable is emitted for an ICMPv4 host-unreachable
// (UNREACH_HOST) or ICMPv6 address-unreachable reply: the name keeps
// the source's net/host naming swap (see classify).
type DstNetUnreachable struct{ Reply *Probe }

func (DstNetUnreachable) outcomeTag() {}

// DstHostUnreachable is emitted for an ICMPv4 net-unreachable
// (UNREACH_NET) or ICMPv6 no-route reply, with the same naming swap as
// DstNetUnreachable.
type DstHostUnreachable struct{ Reply *Probe }

func (DstHostUnreachable) outcomeTag() {}

// DstProtUnreachable corresponds to an ICMP(v6) protocol-unreachable reply.
type DstProtUnreachable struct{ Reply *Probe }

func (DstProtUnreachable) outcomeTag() {}

// DstPortUnreachable corresponds to an ICMP(v6) port-unreachable reply.
type DstPortUnreachable struct{ Reply *Probe }

func (DstPortUnreachable) outcomeTag() {}

// TtlExceededTransit corresponds to a TTL-exceeded-in-transit reply.
type TtlExceededTransit struct{ Reply *Probe }

func (TtlExceededTransit) outcomeTag() {}

// TimeExceededReassembly corresponds to a fragment-reassembly-time-exceeded reply.
type TimeExceededReassembly struct{ Reply *Probe }

func (TimeExceededReassembly) outcomeTag() {}

// Redirect corresponds to an ICMP(v6) redirect reply.
type Redirect struct{ Reply *Probe }

func (Redirect) outcomeTag() {}

// ParameterProblem corresponds to an ICMP(v6) parameter-problem reply.
type ParameterProblem struct{ Reply *Probe }

func (ParameterProblem) outcomeTag() {}

// GenError is emitted when a reply did not match any known
// classification, or when a required field could not be extracted.
type GenError struct{ Reply *Probe }

func (GenError) outcomeTag() {}

// Timeout is emitted when no reply arrived within the framework's deadline.
type Timeout struct{ Probe *Probe }

func (Timeout) outcomeTag() {}

// AllProbesSent is emitted exactly once per instance, after the final
// probe's outcome has been recorded, immediately before termination.
type AllProbesSent struct{}

func (AllProbesSent) outcomeTag() {}

// Wait is emitted when probing is complete but replies are still pending.
type Wait struct{}

func (Wait) outcomeTag() {}

// outcomeForKind converts a classifier decision into its Outcome value.
func outcomeForKind(kind OutcomeKind, reply *Probe) Outcome {
	switch kind {
	case KindDstNetUnreachable:
		return DstNetUnreachable{Reply: reply}
	case KindDstHostUnreachable:
		return DstHostUnreachable{Reply: reply}
	case KindDstPortUnreachable:
		return DstPortUnreachable{Reply: reply}
	case KindDstProtUnreachable:
		return DstProtUnreachable{Reply: reply}
	case KindTtlExceededTransit:
		return TtlExceededTransit{Reply: reply}
	case KindTimeExceededReassembly:
		return TimeExceededReassembly{Reply: reply}
	case KindRedirect:
		return Redirect{Reply: reply}
	case KindParameterProblem:
		return ParameterProblem{Reply: reply}
	default:
		return GenError{Reply: reply}
	}
}
