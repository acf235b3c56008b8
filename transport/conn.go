package transport

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/pingo-core/pingo/engine"
)

const (
	echoCode                  = 0
	icmpProtocol              = 1
	icmpv6Protocol            = 58
	icmpPrivilegedNetwork     = "ip4:icmp"
	icmpv6PrivilegedNetwork   = "ip6:ipv6-icmp"
	icmpUnprivilegedNetwork   = "udp4"
	icmpv6UnprivilegedNetwork = "udp6"

	// echoHeaderLen is the length, in bytes, of an ICMP echo
	// request/reply header: type(1) + code(1) + checksum(2) + id(2) + seq(2).
	echoHeaderLen = 8
	ipv4HeaderLen = 20
	ipv6HeaderLen = 40
)

// getNetwork returns the network string to pass to icmp.ListenPacket.
func getNetwork(v4, privileged bool) string {
	switch {
	case v4 && privileged:
		return icmpPrivilegedNetwork
	case v4 && !privileged:
		return icmpUnprivilegedNetwork
	case !v4 && privileged:
		return icmpv6PrivilegedNetwork
	default:
		return icmpv6UnprivilegedNetwork
	}
}

// getProtocolNumber returns the IANA protocol number used to interpret
// raw ICMP bytes, matching golang.org/x/net/icmp's ParseMessage contract.
func getProtocolNumber(v4 bool) int {
	if v4 {
		return icmpProtocol
	}
	return icmpv6Protocol
}

// openConnection opens and configures an ICMP socket for the given
// address family, adapted from the teacher's core/icmp.go getConnection.
func openConnection(settings *Settings, v4 bool) (*icmp.PacketConn, error) {
	conn, err := icmp.ListenPacket(getNetwork(v4, settings.IsPrivileged), "")
	if err != nil {
		return nil, fmt.Errorf("could not listen for ICMP packets: %w", err)
	}

	if v4 {
		if err := conn.IPv4PacketConn().SetTTL(settings.TTL); err != nil {
			return nil, fmt.Errorf("could not set TTL: %w", err)
		}
		if err := conn.IPv4PacketConn().SetControlMessage(ipv4.FlagTTL|ipv4.FlagSrc, true); err != nil {
			return nil, fmt.Errorf("could not enable control messages: %w", err)
		}
	} else {
		if err := conn.IPv6PacketConn().SetHopLimit(settings.TTL); err != nil {
			return nil, fmt.Errorf("could not set hop limit: %w", err)
		}
		if err := conn.IPv6PacketConn().SetControlMessage(ipv6.FlagHopLimit|ipv6.FlagSrc, true); err != nil {
			return nil, fmt.Errorf("could not enable control messages: %w", err)
		}
	}

	return conn, nil
}

// readPacket reads one datagram from conn, normalizing the IPv4/IPv6
// control message shapes into the version-independent controlMessage.
func readPacket(conn *icmp.PacketConn, v4 bool, buf []byte) (int, *controlMessage, error) {
	if v4 {
		n, cm, _, err := conn.IPv4PacketConn().ReadFrom(buf)
		if cm == nil {
			return n, nil, err
		}
		return n, &controlMessage{TTL: cm.TTL, Src: cm.Src, Dst: cm.Dst}, err
	}

	n, cm, _, err := conn.IPv6PacketConn().ReadFrom(buf)
	if cm == nil {
		return n, nil, err
	}
	return n, &controlMessage{TTL: cm.HopLimit, Src: cm.Src, Dst: cm.Dst}, err
}

// buildEchoMessage constructs an echo request ICMP message carrying id
// and seq in its header and the supplied payload.
func buildEchoMessage(v4 bool, id, seq int, payload []byte) *icmp.Message {
	typ := icmp.Type(ipv4.ICMPTypeEcho)
	if !v4 {
		typ = icmp.Type(ipv6.ICMPTypeEchoRequest)
	}

	return &icmp.Message{
		Type: typ,
		Code: echoCode,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: payload,
		},
	}
}

// originalEchoIDSeq extracts the ID and Seq fields embedded in the
// original echo request carried inside an ICMP error message's body,
// following the teacher's TimeExceeded-only logic (core/icmp.go),
// generalized here to every error body type the classifier recognizes.
func originalEchoIDSeq(v4 bool, data []byte) (id, seq int, ok bool) {
	headerLen := ipv4HeaderLen
	if !v4 {
		headerLen = ipv6HeaderLen
	}

	if len(data) < headerLen+echoHeaderLen {
		return 0, 0, false
	}

	orig := data[headerLen : headerLen+echoHeaderLen]
	id = int(uint16(orig[4])<<8 | uint16(orig[5]))
	seq = int(uint16(orig[6])<<8 | uint16(orig[7]))
	return id, seq, true
}

// errorBodyData returns the original-datagram bytes embedded in an
// ICMP error message body, regardless of which error type it is.
func errorBodyData(body icmp.MessageBody) ([]byte, bool) {
	switch b := body.(type) {
	case *icmp.DstUnreach:
		return b.Data, true
	case *icmp.TimeExceeded:
		return b.Data, true
	case *icmp.ParamProb:
		return b.Data, true
	case *icmp.RawBody:
		return b.Data, true
	default:
		return nil, false
	}
}

// parsedReply is the result of decoding one inbound raw packet: either
// an echo reply (matched by ID) or an ICMP error whose embedded echo
// header lets us recover the sequence number of the probe it concerns.
type parsedReply struct {
	probe *engine.Probe
	seq   int
	isErr bool
}

// parseInbound decodes a raw packet into a parsedReply, or returns
// ok=false if it is not relevant to this session: neither an echo
// reply nor an ICMP error carrying an original echo header, or an ID
// (of the echo reply, or of the embedded echo header) other than
// ourID. The ID is checked the same way for privileged and
// unprivileged sockets. A packet that cannot be parsed returns an error.
func parseInbound(raw *rawPacket, v4 bool, ourID int) (*parsedReply, bool, error) {
	m, err := icmp.ParseMessage(getProtocolNumber(v4), raw.content[:raw.length])
	if err != nil {
		return nil, false, fmt.Errorf("parsing ICMP message: %w", err)
	}

	version := uint8(6)
	if v4 {
		version = 4
	}

	typ, code := raw.content[0], raw.content[1]

	var src net.IP
	var ttl uint8
	if raw.cm != nil {
		src = raw.cm.Src
		ttl = uint8(raw.cm.TTL)
	}

	switch body := m.Body.(type) {
	case *icmp.Echo:
		if body.ID != ourID {
			return nil, false, nil
		}
		probe := engine.NewProbe(version, typ, code, src, raw.length, ttl)
		return &parsedReply{probe: probe, seq: body.Seq & 0xffff, isErr: false}, true, nil
	default:
		data, ok := errorBodyData(m.Body)
		if !ok {
			return nil, false, nil
		}
		id, seq, ok := originalEchoIDSeq(v4, data)
		if !ok || id != ourID {
			return nil, false, nil
		}
		probe := engine.NewProbe(version, typ, code, src, raw.length, ttl)
		return &parsedReply{probe: probe, seq: seq & 0xffff, isErr: true}, true, nil
	}
}

// writeEcho marshals and sends an echo request on conn.
func writeEcho(conn *icmp.PacketConn, addr net.Addr, msg *icmp.Message) error {
	b, err := msg.Marshal(nil)
	if err != nil {
		return fmt.Errorf("marshal ICMP echo: %w", err)
	}
	_, err = conn.WriteTo(b, addr)
	return err
}

// readDeadline is how long pollConnection blocks on each read before
// checking for a finish request, matching the teacher's 200ms poll.
const readDeadline = 200 * time.Millisecond
