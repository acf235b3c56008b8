package engine

import (
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// ICMPv4 (type, code) constants, named after RFC 792 / netinet/ip_icmp.h.
const (
	icmpv4TypeUnreach   = uint8(ipv4.ICMPTypeDestinationUnreachable)
	icmpv4UnreachNet    = 0
	icmpv4UnreachHost   = 1
	icmpv4UnreachProto  = 2
	icmpv4UnreachPort   = 3
	icmpv4TypeTimxceed  = uint8(ipv4.ICMPTypeTimeExceeded)
	icmpv4TimxceedIntr  = 0
	icmpv4TimxceedReass = 1
	icmpv4TypeRedirect  = uint8(ipv4.ICMPTypeRedirect)
	icmpv4RedirectNet   = 0
	icmpv4TypeParamprob = uint8(ipv4.ICMPTypeParameterProblem)
)

// ICMPv6 (type, code) constants, named after RFC 4443 / netinet/icmp6.h.
const (
	icmpv6TypeDstUnreach     = uint8(ipv6.ICMPTypeDestinationUnreachable)
	icmpv6DstUnreachAddr     = 3
	icmpv6DstUnreachNoRoute  = 0
	icmpv6DstUnreachNoPort   = 4
	icmpv6TypeParamProb      = uint8(ipv6.ICMPTypeParameterProblem)
	icmpv6ParamProbHeader    = 0
	icmpv6ParamProbNextHdr   = 1
	icmpv6ParamProbOption    = 2
	icmpv6TypeTimeExceeded   = uint8(ipv6.ICMPTypeTimeExceeded)
	icmpv6TimeExceedTransit  = 0
	icmpv6TimeExceedReassbly = 1
	icmpv6TypeNDRedirect     = uint8(ipv6.ICMPTypeRedirect)
)

// classify maps a reply's (version, type, code) to a semantic outcome,
// following the decision table in SPEC_FULL.md §4.1 exactly. Checks are
// applied in order; the first match wins. An unrecognized triple
// degrades to GenError rather than failing hard.
func classify(reply *Probe) OutcomeKind {
	version, typ, code := reply.Version(), reply.Type(), reply.Code()

	if version == 4 {
		switch {
		case typ == icmpv4TypeUnreach && code == icmpv4UnreachHost:
			// Preserves the source's historical naming swap: UNREACH_HOST
			// maps to net-unreachable here, not host-unreachable.
			return KindDstNetUnreachable
		case typ == icmpv4TypeUnreach && code == icmpv4UnreachNet:
			return KindDstHostUnreachable
		case typ == icmpv4TypeUnreach && code == icmpv4UnreachPort:
			return KindDstPortUnreachable
		case typ == icmpv4TypeUnreach && code == icmpv4UnreachProto:
			return KindDstProtUnreachable
		case typ == icmpv4TypeTimxceed && code == icmpv4TimxceedIntr:
			return KindTtlExceededTransit
		case typ == icmpv4TypeTimxceed && code == icmpv4TimxceedReass:
			return KindTimeExceededReassembly
		case typ == icmpv4TypeRedirect && code == icmpv4RedirectNet:
			return KindRedirect
		case typ == icmpv4TypeParamprob:
			return KindParameterProblem
		default:
			return KindGenError
		}
	}

	// IPv6.
	switch {
	case typ == icmpv6TypeDstUnreach && code == icmpv6DstUnreachAddr:
		return KindDstNetUnreachable
	case typ == icmpv6TypeDstUnreach && code == icmpv6DstUnreachNoRoute:
		return KindDstHostUnreachable
	case typ == icmpv6TypeDstUnreach && code == icmpv6DstUnreachNoPort:
		return KindDstPortUnreachable
	case typ == icmpv6TypeParamProb && code == icmpv6ParamProbNextHdr:
		// Must be tested before the generic ParameterProblem case below.
		return KindDstProtUnreachable
	case typ == icmpv6TypeTimeExceeded && code == icmpv6TimeExceedTransit:
		return KindTtlExceededTransit
	case typ == icmpv6TypeTimeExceeded && code == icmpv6TimeExceedReassbly:
		return KindTimeExceededReassembly
	case typ == icmpv6TypeNDRedirect:
		return KindRedirect
	case typ == icmpv6TypeParamProb && (code == icmpv6ParamProbHeader || code == icmpv6ParamProbOption):
		return KindParameterProblem
	default:
		return KindGenError
	}
}

// destinationReached reports whether reply's source address equals the
// configured destination, independent of address family. A reply
// classified as a protocol error but whose source equals the
// destination is still reported as ProbeReply — destination-reached
// takes precedence over error classification; machine.go checks this
// before ever calling classify.
func destinationReached(destination net.IP, reply *Probe) bool {
	if destination == nil || reply.SrcIP() == nil {
		return false
	}
	return destination.Equal(reply.SrcIP())
}
