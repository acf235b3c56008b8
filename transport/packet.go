package transport

import "net"

// rawPacket is a raw datagram read off the ICMP connection, alongside
// the control-message metadata the kernel attached to it. Adapted from
// the teacher's core/packet.go.
type rawPacket struct {
	content []byte
	length  int
	cm      *controlMessage
}

// controlMessage holds the per-packet metadata the engine's classifier
// and destination matcher need: TTL/hop limit and source address.
type controlMessage struct {
	TTL int
	Src net.IP
	Dst net.IP
}

func isIPv4(ip net.IP) bool {
	return ip.To4() != nil
}
