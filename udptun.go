// Package udptun relays raw frames between a local tun/tap device and a
// single remote peer over plain UDP datagrams.
//
// One endpoint accepts (waits for the handshake token), the other dials
// (sends the token to a known address). After the token exchange the two
// sides are symmetric: frames read from the device are sent to the tracked
// peer address, and datagrams received from the socket are written to the
// device.
//
// The peer address may be re-learned from the source address of every
// inbound datagram (see Config.DisableLearn). Learning is unauthenticated:
// any host that can send a datagram to the local port can redirect the
// relay to itself. This is a deliberate property of the protocol, not an
// oversight.
package udptun

import (
	"fmt"
	"net/netip"
)

// Token is the shared handshake token. It is a liveness check, not a
// secret: it proves only that one correct datagram arrived from some
// address at some point in time.
var Token = []byte("Wazaaaaaaaaaaahhhh !")

// DefaultPort is the well-known local port both endpoints bind by default.
const DefaultPort = 5588

type ErrTokenMismatch struct {
	From netip.AddrPort
}

func (e ErrTokenMismatch) Error() string {
	return fmt.Sprintf("bad handshake token from %s", e.From)
}

type ErrPeerNotSet struct{}

func (ErrPeerNotSet) Error() string { return "peer address not established" }
