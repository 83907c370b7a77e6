// Package trace renders one-line summaries of relayed frames for debug
// logging. A tun frame is a bare IP packet; a tap frame is an ethernet
// frame whose ARP and IPv4 payloads are worth naming.
package trace

import (
	"fmt"

	"github.com/mdlayher/arp"
	"github.com/mdlayher/ethernet"
	"gvisor.dev/gvisor/pkg/tcpip"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

// Summary describes frame in one line. It never fails: an unparseable
// frame is summarized as its length.
func Summary(frame []byte, tap bool) string {
	if tap {
		return ethSummary(frame)
	}
	return ipSummary(frame)
}

func ipSummary(b []byte) string {
	switch ver := header.IPVersion(b); ver {
	case 4:
		if len(b) < header.IPv4MinimumSize {
			return opaque(b)
		}
		ip := header.IPv4(b)
		return fmt.Sprintf("ip4 %s>%s %s len %d",
			ip.SourceAddress(), ip.DestinationAddress(),
			protoStr(ip.TransportProtocol()), ip.TotalLength(),
		)
	case 6:
		if len(b) < header.IPv6FixedHeaderSize {
			return opaque(b)
		}
		ip := header.IPv6(b)
		return fmt.Sprintf("ip6 %s>%s %s len %d",
			ip.SourceAddress(), ip.DestinationAddress(),
			protoStr(ip.TransportProtocol()), len(b),
		)
	default:
		return opaque(b)
	}
}

func ethSummary(b []byte) string {
	var f ethernet.Frame
	if err := f.UnmarshalBinary(b); err != nil {
		return opaque(b)
	}

	switch f.EtherType {
	case ethernet.EtherTypeARP:
		var p arp.Packet
		if err := p.UnmarshalBinary(f.Payload); err != nil {
			break
		}
		return fmt.Sprintf("arp %s %s>%s", opStr(p.Operation), p.SenderIP, p.TargetIP)
	case ethernet.EtherTypeIPv4, ethernet.EtherTypeIPv6:
		return fmt.Sprintf("eth %s>%s %s", f.Source, f.Destination, ipSummary(f.Payload))
	}
	return fmt.Sprintf("eth %s>%s type %#04x len %d", f.Source, f.Destination, uint16(f.EtherType), len(b))
}

func opaque(b []byte) string { return fmt.Sprintf("opaque len %d", len(b)) }

func opStr(op arp.Operation) string {
	switch op {
	case arp.OperationRequest:
		return "who-has"
	case arp.OperationReply:
		return "is-at"
	default:
		return fmt.Sprintf("op(%d)", op)
	}
}

func protoStr(num tcpip.TransportProtocolNumber) string {
	switch num {
	case header.TCPProtocolNumber:
		return "tcp"
	case header.UDPProtocolNumber:
		return "udp"
	case header.ICMPv4ProtocolNumber:
		return "icmp"
	case header.ICMPv6ProtocolNumber:
		return "icmp6"
	default:
		return fmt.Sprintf("proto(%d)", int(num))
	}
}
