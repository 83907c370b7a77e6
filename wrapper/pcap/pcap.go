// Package pcap decorates a tun device so every relayed IP packet is also
// appended to a pcap file.
package pcap

import (
	"github.com/lysShub/netkit/packet"
	"github.com/lysShub/netkit/pcap"
	"github.com/lysShub/udptun/tun"
)

type DeviceWrapper struct {
	tun.Device
	pcap *pcap.Pcap
}

// WrapDevice captures every frame read from or written to device into
// file. Only tun mode is supported: the writer records IP packets and a
// tap device carries ethernet frames.
func WrapDevice(device tun.Device, file string) (tun.Device, error) {
	p, err := pcap.File(file)
	if err != nil {
		return nil, err
	}
	return &DeviceWrapper{
		Device: device,
		pcap:   p,
	}, nil
}

func (d *DeviceWrapper) Read(pkt *packet.Packet) error {
	err := d.Device.Read(pkt)
	if err != nil {
		return err
	}
	return d.pcap.WriteIP(pkt.Bytes())
}

func (d *DeviceWrapper) Write(pkt *packet.Packet) error {
	err := d.Device.Write(pkt)
	if err != nil {
		return err
	}
	return d.pcap.WriteIP(pkt.Bytes())
}

func (d *DeviceWrapper) Close() error {
	defer func() { d.pcap.Close() }()
	return d.Device.Close()
}

func (d *DeviceWrapper) Unwrap() tun.Device { return d.Device }
