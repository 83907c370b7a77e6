// Package conn is the relay's transport endpoint: one UDP socket bound to
// a local port for the whole run, sending and receiving address-tagged
// opaque datagrams.
package conn

import (
	"context"
	"net"
	"net/netip"
	"syscall"
	"time"

	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

type Config struct {
	// TOS/TTL mark outbound datagrams when >0.
	TOS int
	TTL int
}

type Conn struct {
	udp *net.UDPConn
}

// Bind opens the endpoint on laddr. The port is reused-on-bind so a
// restarted endpoint doesn't trip over a lingering socket.
func Bind(laddr netip.AddrPort, cfg *Config) (*Conn, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var serr error
			err := c.Control(func(fd uintptr) {
				serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return serr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", laddr.String())
	if err != nil {
		return nil, errors.WithStack(err)
	}
	udp := pc.(*net.UDPConn)

	if cfg.TOS > 0 || cfg.TTL > 0 {
		p := ipv4.NewPacketConn(udp)
		if cfg.TOS > 0 {
			if err := p.SetTOS(cfg.TOS); err != nil {
				udp.Close()
				return nil, errors.WithStack(err)
			}
		}
		if cfg.TTL > 0 {
			if err := p.SetTTL(cfg.TTL); err != nil {
				udp.Close()
				return nil, errors.WithStack(err)
			}
		}
	}

	return &Conn{udp: udp}, nil
}

// Send writes pkt's bytes as one datagram to `to`.
func (c *Conn) Send(pkt *packet.Packet, to netip.AddrPort) error {
	_, err := c.udp.WriteToUDPAddrPort(pkt.Bytes(), to)
	return errors.WithStack(err)
}

// Recv blocks for one datagram, sets pkt's data length and returns the
// source address.
func (c *Conn) Recv(pkt *packet.Packet) (netip.AddrPort, error) {
	n, src, err := c.udp.ReadFromUDPAddrPort(pkt.Bytes())
	if err != nil {
		return netip.AddrPort{}, errors.WithStack(err)
	}
	pkt.SetData(n)
	return src, nil
}

func (c *Conn) LocalAddr() netip.AddrPort {
	return netip.MustParseAddrPort(c.udp.LocalAddr().String())
}

// SetDeadline bounds blocked Send/Recv calls, used to abort the handshake
// on context cancel.
func (c *Conn) SetDeadline(t time.Time) error {
	return errors.WithStack(c.udp.SetDeadline(t))
}

func (c *Conn) Close() error { return errors.WithStack(c.udp.Close()) }
