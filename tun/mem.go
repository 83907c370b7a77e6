package tun

import (
	"os"

	"github.com/lysShub/netkit/errorx"
	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
)

// Mem is an in-memory Device for tests: Inject feeds frames that the relay
// will Read, Outbound yields frames the relay Wrote.
type Mem struct {
	name     string
	mode     Mode
	inbound  chan []byte
	outbound chan []byte
	closeErr errorx.CloseErr
}

var _ Device = (*Mem)(nil)

func NewMem(name string, mode Mode) *Mem {
	return &Mem{
		name:     name,
		mode:     mode,
		inbound:  make(chan []byte, 64),
		outbound: make(chan []byte, 64),
	}
}

func (m *Mem) Read(pkt *packet.Packet) error {
	b, ok := <-m.inbound
	if !ok {
		return errors.WithStack(os.ErrClosed)
	}

	n := copy(pkt.Bytes(), b)
	pkt.SetData(n)
	if n != len(b) {
		return errorx.ShortBuff(len(b), n)
	}
	return nil
}

func (m *Mem) Write(pkt *packet.Packet) error {
	if m.closeErr.Closed() {
		return errors.WithStack(os.ErrClosed)
	}

	b := make([]byte, pkt.Data())
	copy(b, pkt.Bytes())
	m.outbound <- b
	return nil
}

// Inject queues one frame for the next Read.
func (m *Mem) Inject(frame []byte) {
	b := make([]byte, len(frame))
	copy(b, frame)
	m.inbound <- b
}

// Outbound exposes frames written to the device.
func (m *Mem) Outbound() <-chan []byte { return m.outbound }

func (m *Mem) Name() string { return m.name }
func (m *Mem) Mode() Mode   { return m.mode }

func (m *Mem) Close() error {
	return m.closeErr.Close(func() (errs []error) {
		close(m.inbound)
		return nil
	})
}
