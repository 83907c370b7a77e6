package udptun

import (
	"bytes"
	"context"
	"log/slog"
	"net/netip"
	"time"

	"github.com/lysShub/netkit/debug"
	"github.com/lysShub/netkit/packet"
	"github.com/pkg/errors"
)

// handshakeActive sends the token to server and blocks for the echo. The
// echo's sender becomes the peer; a wrong echo is fatal since the active
// side already committed to this server.
func (s *Session) handshakeActive(ctx context.Context, server netip.AddrPort) error {
	if !server.IsValid() {
		return errors.New("active endpoint requires a server address")
	}
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetDeadline(time.Now())
	})
	defer stop()

	var pkt = packet.Make(0, s.config.MaxRecvBuff)

	if err := s.conn.Send(pkt.Sets(0, 0).Append(s.config.Token), server); err != nil {
		return err
	}

	src, err := s.conn.Recv(pkt.Sets(0, s.config.MaxRecvBuff))
	if err != nil {
		return err
	}
	if !bytes.Equal(pkt.Bytes(), s.config.Token) {
		return errors.WithStack(ErrTokenMismatch{From: src})
	}

	s.peer.Set(src)
	return nil
}

// handshakePassive blocks until a datagram equal to the token arrives,
// adopts its sender and echoes the token back. Anything else is discarded
// without terminating the wait.
func (s *Session) handshakePassive(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetDeadline(time.Now())
	})
	defer stop()

	var pkt = packet.Make(0, s.config.MaxRecvBuff)

	for {
		src, err := s.conn.Recv(pkt.Sets(0, s.config.MaxRecvBuff))
		if err != nil {
			return err
		}

		if !bytes.Equal(pkt.Bytes(), s.config.Token) {
			s.config.Logger.Debug("discard handshake datagram",
				slog.String("from", src.String()), slog.Int("bytes", pkt.Data()))
			continue
		}

		s.peer.Set(src)
		if debug.Debug() {
			if addr, err := s.peer.Get(); err != nil || addr != src {
				panic("peer not seeded")
			}
		}
		return s.conn.Send(pkt, src)
	}
}
