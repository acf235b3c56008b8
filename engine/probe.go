package engine

import (
	"net"
	"time"
)

// BestEffortDelay is the sentinel delay value meaning "do not stagger
// this probe's departure" — the dispatcher leaves Delay untouched when
// the skeleton carries this value.
const BestEffortDelay time.Duration = -1

// Probe is the engine's view of a single outbound or inbound packet.
// Unlike the source's dynamic string-keyed field extraction, fields
// are exposed through typed accessors (see SPEC_FULL.md Design Notes).
type Probe struct {
	version uint8
	typ     uint8
	code    uint8
	srcIP   net.IP
	size    int
	ttl     uint8

	delay       time.Duration
	sendTime    time.Time
	receiveTime time.Time
}

// NewProbe builds a Probe from its header fields. Transport adapters
// construct Probes this way when parsing a reply off the wire, or when
// building the skeleton probe for a run.
func NewProbe(version, typ, code uint8, srcIP net.IP, size int, ttl uint8) *Probe {
	return &Probe{
		version: version,
		typ:     typ,
		code:    code,
		srcIP:   srcIP,
		size:    size,
		ttl:     ttl,
		delay:   BestEffortDelay,
	}
}

// Clone deep-copies the probe so the skeleton it was cloned from is
// never mutated by a subsequent dispatch.
func (p *Probe) Clone() *Probe {
	clone := *p
	if p.srcIP != nil {
		clone.srcIP = append(net.IP(nil), p.srcIP...)
	}
	return &clone
}

// Version returns the IP version the probe/reply was carried over: 4 or 6.
func (p *Probe) Version() uint8 { return p.version }

// Type returns the ICMP/ICMPv6 type field.
func (p *Probe) Type() uint8 { return p.typ }

// Code returns the ICMP/ICMPv6 code field.
func (p *Probe) Code() uint8 { return p.code }

// SrcIP returns the reply's source address.
func (p *Probe) SrcIP() net.IP { return p.srcIP }

// Size returns the packet size in bytes.
func (p *Probe) Size() int { return p.size }

// TTL returns the TTL/hop-limit stamped into an outbound probe.
func (p *Probe) TTL() uint8 { return p.ttl }

// Delay returns the probe's scheduled send delay.
func (p *Probe) Delay() time.Duration { return p.delay }

// SetDelay sets the scheduled send delay. The dispatcher calls it only
// on clones; a skeleton's delay is set once, before the skeleton is
// handed to NewMachine.
func (p *Probe) SetDelay(d time.Duration) { p.delay = d }

// SendTime returns when the probe was transmitted.
func (p *Probe) SendTime() time.Time { return p.sendTime }

// SetSendTime records when the probe was transmitted.
func (p *Probe) SetSendTime(t time.Time) { p.sendTime = t }

// ReceiveTime returns when the reply was received.
func (p *Probe) ReceiveTime() time.Time { return p.receiveTime }

// SetReceiveTime records when the reply was received.
func (p *Probe) SetReceiveTime(t time.Time) { p.receiveTime = t }
