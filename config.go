package udptun

import (
	"log/slog"
	"os"

	"github.com/pkg/errors"
)

type Config struct {
	// LocalPort is the UDP port bound for the whole run, DefaultPort if zero.
	LocalPort uint16

	// Token overrides the package-level handshake token.
	Token []byte

	// MaxRecvBuff caps one frame/datagram transfer, 4096 if zero. Must
	// cover the device MTU (plus the ethernet header in tap mode); larger
	// frames are truncated by the device read, never reassembled.
	MaxRecvBuff int

	// DisableLearn freezes the peer address after the handshake instead of
	// re-learning it from every inbound datagram's source address.
	DisableLearn bool

	// FixedSizeFrames ships the full MaxRecvBuff buffer on every transfer,
	// padding included, discarding the true frame length. Off by default:
	// each datagram carries exactly the bytes the read produced.
	FixedSizeFrames bool

	// TOS/TTL mark outbound datagrams when >0.
	TOS int
	TTL int

	Logger *slog.Logger
}

func (c *Config) Init() error {
	if c == nil {
		return errors.New("nil config")
	}

	if c.LocalPort == 0 {
		c.LocalPort = DefaultPort
	}
	if len(c.Token) == 0 {
		c.Token = Token
	}
	if c.MaxRecvBuff == 0 {
		c.MaxRecvBuff = 4096
	}
	if c.MaxRecvBuff < 1500 {
		return errors.Errorf("recv buffer %d can't cover a standard mtu", c.MaxRecvBuff)
	}
	if c.TOS > 0xff || c.TTL > 0xff || c.TOS < 0 || c.TTL < 0 {
		return errors.Errorf("invalid tos %d or ttl %d", c.TOS, c.TTL)
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return nil
}
