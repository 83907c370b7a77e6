// Package tun opens a tun/tap device by name and moves whole frames
// through it. The device is an opaque frame channel to the relay: a tun
// device yields bare IP packets, a tap device yields ethernet frames, and
// neither is parsed here.
package tun

import "github.com/lysShub/netkit/packet"

type Mode uint8

const (
	// TUN is pure network-layer passthrough, one IP packet per read/write.
	TUN Mode = iota
	// TAP is link-layer passthrough, one ethernet frame per read/write.
	TAP
)

func (m Mode) String() string {
	switch m {
	case TUN:
		return "tun"
	case TAP:
		return "tap"
	default:
		return "invalid"
	}
}

// EthHdrLen is the extra header a tap device prepends to every frame.
const EthHdrLen = 14

type Device interface {
	// Read reads one frame into pkt, setting its data length.
	Read(pkt *packet.Packet) error

	// Write writes pkt's bytes as one frame.
	Write(pkt *packet.Packet) error

	Name() string
	Mode() Mode
	Close() error
}
