//go:build linux
// +build linux

package tun

import (
	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const clonePath = "/dev/net/tun"

type device struct {
	fd   int
	name string
	mode Mode
}

var _ Device = (*device)(nil)

// Open allocates or reconnects to the named tun/tap device. An empty name
// lets the kernel pick one; the effective name is reported by Name.
// Requires CAP_NET_ADMIN. Address assignment and link-up are left to the
// caller (ip-addr/ip-link), the device is only a frame channel here.
func Open(name string, mode Mode) (Device, error) {
	fd, err := unix.Open(clonePath, unix.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrap(err, clonePath)
	}

	ifr, err := unix.NewIfreq(name)
	if err != nil {
		unix.Close(fd)
		return nil, errors.WithStack(err)
	}
	flags := unix.IFF_TUN
	if mode == TAP {
		flags = unix.IFF_TAP
	}
	ifr.SetUint16(uint16(flags | unix.IFF_NO_PI))

	if err := unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "ioctl TUNSETIFF")
	}

	return &device{fd: fd, name: ifr.Name(), mode: mode}, nil
}

func (d *device) Read(pkt *packet.Packet) error {
	for {
		n, err := unix.Read(d.fd, pkt.Bytes())
		if err == unix.EINTR {
			continue
		} else if err != nil {
			return errors.WithStack(err)
		}
		pkt.SetData(n)
		return nil
	}
}

func (d *device) Write(pkt *packet.Packet) error {
	for {
		_, err := unix.Write(d.fd, pkt.Bytes())
		if err == unix.EINTR {
			continue
		}
		return errors.WithStack(err)
	}
}

func (d *device) Name() string { return d.name }
func (d *device) Mode() Mode   { return d.mode }

func (d *device) Close() error {
	return errors.WithStack(unix.Close(d.fd))
}
