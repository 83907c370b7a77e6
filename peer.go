package udptun

import (
	"net/netip"
	"sync"
)

// Peer tracks the single remote address outbound frames are sent to.
//
// The handshake seeds it, afterwards the downlink service is the only
// writer and the uplink service the only reader, so a plain RWMutex cell
// is enough. Set never verifies the new address.
type Peer struct {
	mu   sync.RWMutex
	addr netip.AddrPort
}

func (p *Peer) Set(addr netip.AddrPort) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addr = addr
}

func (p *Peer) Get() (netip.AddrPort, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.addr.IsValid() {
		return netip.AddrPort{}, ErrPeerNotSet{}
	}
	return p.addr, nil
}
