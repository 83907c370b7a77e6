package udptun

import (
	"context"
	"log/slog"
	"net/netip"

	"github.com/lysShub/netkit/errorx"
	"github.com/lysShub/netkit/packet"
	"github.com/lysShub/udptun/conn"
	"github.com/lysShub/udptun/trace"
	"github.com/lysShub/udptun/tun"
	"github.com/pkg/errors"
)

// Session is one established relay: a device, a bound socket and the
// tracked peer address. Constructed by Dial or Accept, which complete the
// handshake before returning; Serve then relays until the context is
// cancelled or the transport fails.
type Session struct {
	config *Config
	device tun.Device
	conn   *conn.Conn
	peer   Peer
	stats  Stats

	srvCtx   context.Context
	cancel   context.CancelFunc
	closeErr errorx.CloseErr
}

// Dial runs the active side: it sends the handshake token to server and
// blocks until the token is echoed back. The echo's source address seeds
// the peer tracker. There is no timeout beyond ctx.
func Dial(ctx context.Context, device tun.Device, server netip.AddrPort, config *Config) (*Session, error) {
	s, err := newSession(device, config)
	if err != nil {
		return nil, err
	}

	if err := s.handshakeActive(ctx, server); err != nil {
		return nil, s.close(err)
	}
	peer, _ := s.peer.Get()
	s.config.Logger.Info("connected", slog.String("peer", peer.String()))
	return s, nil
}

// Accept runs the passive side: it blocks until a datagram carrying the
// token arrives, adopts its sender as the peer and echoes the token back.
// Non-matching datagrams are discarded and the wait continues.
func Accept(ctx context.Context, device tun.Device, config *Config) (*Session, error) {
	s, err := newSession(device, config)
	if err != nil {
		return nil, err
	}

	if err := s.handshakePassive(ctx); err != nil {
		return nil, s.close(err)
	}
	peer, _ := s.peer.Get()
	s.config.Logger.Info("peer connected", slog.String("peer", peer.String()))
	return s, nil
}

func newSession(device tun.Device, config *Config) (*Session, error) {
	if err := config.Init(); err != nil {
		return nil, err
	}
	if device.Mode() == tun.TAP && config.MaxRecvBuff < 1500+tun.EthHdrLen {
		return nil, errors.Errorf("recv buffer %d can't cover an ethernet frame", config.MaxRecvBuff)
	}

	var s = &Session{config: config, device: device}
	s.srvCtx, s.cancel = context.WithCancel(context.Background())

	var err error
	laddr := netip.AddrPortFrom(netip.IPv4Unspecified(), config.LocalPort)
	s.conn, err = conn.Bind(laddr, &conn.Config{TOS: config.TOS, TTL: config.TTL})
	if err != nil {
		return nil, s.close(err)
	}

	return s, nil
}

func (s *Session) close(cause error) error {
	if cause != nil {
		s.config.Logger.Error(cause.Error(), errorx.Trace(cause))
	} else {
		s.config.Logger.Info("session close", errorx.Trace(nil))
	}

	return s.closeErr.Close(func() (errs []error) {
		errs = append(errs, cause)

		if s.cancel != nil {
			s.cancel()
		}
		if s.conn != nil {
			errs = append(errs, s.conn.Close())
		}
		if s.device != nil {
			errs = append(errs, s.device.Close())
		}
		return
	})
}

// Serve relays frames until ctx is cancelled or the session dies. A
// cancelled context is a clean shutdown and returns nil; a dead transport
// returns its cause.
func (s *Session) Serve(ctx context.Context) error {
	go s.uplinkService()
	go s.downlinkService()
	go s.statsService()

	select {
	case <-ctx.Done():
		s.close(nil)
		return nil
	case <-s.srvCtx.Done():
		return s.close(nil)
	}
}

// LocalAddr reports the bound transport address.
func (s *Session) LocalAddr() netip.AddrPort { return s.conn.LocalAddr() }

// PeerAddr reports the currently tracked peer address.
func (s *Session) PeerAddr() (netip.AddrPort, error) { return s.peer.Get() }

func (s *Session) Close() error { return s.close(nil) }

// uplinkService moves frames device to socket. The tracked peer address is
// consulted before every send, so a re-learned peer takes effect on the
// next outbound frame.
func (s *Session) uplinkService() (_ error) {
	var pkt = packet.Make(0, s.config.MaxRecvBuff)

	for {
		err := s.device.Read(pkt.Sets(0, s.config.MaxRecvBuff))
		if err != nil {
			if errorx.Temporary(err) {
				s.config.Logger.Warn(err.Error(), errorx.Trace(err))
				continue
			}
			return s.close(err)
		}
		if s.config.FixedSizeFrames {
			pkt.SetData(s.config.MaxRecvBuff)
		}

		dst, err := s.peer.Get()
		if err != nil {
			s.config.Logger.Warn(err.Error(), errorx.Trace(err))
			continue
		}

		if err := s.conn.Send(pkt, dst); err != nil {
			// loop-time send failures are not fatal, the next frame retries
			s.config.Logger.Warn(err.Error(), errorx.Trace(err))
			continue
		}

		s.stats.Uplink(pkt.Data())
		s.trace("uplink", pkt, dst)
	}
}

// downlinkService moves datagrams socket to device, re-learning the peer
// from each datagram's source address unless learning is disabled.
func (s *Session) downlinkService() (_ error) {
	var pkt = packet.Make(0, s.config.MaxRecvBuff)

	for {
		src, err := s.conn.Recv(pkt.Sets(0, s.config.MaxRecvBuff))
		if err != nil {
			if errorx.Temporary(err) {
				s.config.Logger.Warn(err.Error(), errorx.Trace(err))
				continue
			}
			return s.close(err)
		}

		if !s.config.DisableLearn {
			s.peer.Set(src)
		}
		if s.config.FixedSizeFrames {
			pkt.SetData(s.config.MaxRecvBuff)
		}

		if err := s.device.Write(pkt); err != nil {
			if errorx.Temporary(err) {
				s.config.Logger.Warn(err.Error(), errorx.Trace(err))
				continue
			}
			return s.close(err)
		}

		s.stats.Downlink(pkt.Data())
		s.trace("downlink", pkt, src)
	}
}

func (s *Session) trace(dir string, pkt *packet.Packet, addr netip.AddrPort) {
	if !s.config.Logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s.config.Logger.Debug(dir,
		slog.Int("bytes", pkt.Data()),
		slog.String("addr", addr.String()),
		slog.String("frame", trace.Summary(pkt.Bytes(), s.device.Mode() == tun.TAP)),
	)
}
