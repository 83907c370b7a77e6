// Command udptun bridges a local tun/tap device and a remote peer over
// UDP. One side runs --server and waits for the handshake token, the other
// runs --connect <addr> and sends it; after that both sides just relay
// frames. Addressing the device (ip addr / ip link) is up to the operator.
package main

import (
	"context"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"

	"github.com/lysShub/udptun"
	"github.com/lysShub/udptun/tun"
	"github.com/lysShub/udptun/wrapper/pcap"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "udptun",
	Short:        "point-to-point tun/tap frame relay over UDP",
	RunE:         run,
	SilenceUsage: true,
}

var configPath string

func init() {
	f := rootCmd.Flags()
	f.StringP("iface", "i", "", "tun/tap device name (empty lets the kernel pick)")
	f.BoolP("server", "s", false, "passive endpoint, wait for a peer")
	f.StringP("connect", "c", "", "active endpoint, server address (ip or ip:port)")
	f.Uint16P("port", "p", udptun.DefaultPort, "local UDP port")
	f.BoolP("tap", "a", false, "link-layer passthrough (tap) instead of tun")
	f.Bool("no-learn-peer", false, "freeze the peer address after handshake")
	f.Bool("fixed-size", false, "ship the full buffer per transfer, padding included")
	f.BoolP("debug", "d", false, "per-frame trace logging")
	f.String("pcap", "", "capture relayed packets to a pcap file (tun mode only)")
	f.Int("tos", 0, "TOS/DSCP byte on outbound datagrams")
	f.Int("ttl", 0, "TTL on outbound datagrams")
	f.StringVar(&configPath, "config", "", "yaml config file, flags take precedence")
}

func run(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd, configPath)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	mode := tun.TUN
	if opts.Tap {
		mode = tun.TAP
	}
	device, err := tun.Open(opts.Iface, mode)
	if err != nil {
		return err
	}
	logger.Info("device ready", slog.String("name", device.Name()), slog.String("mode", mode.String()))

	if opts.Pcap != "" {
		if mode == tun.TAP {
			device.Close()
			return errors.New("--pcap requires tun mode")
		}
		if device, err = pcap.WrapDevice(device, opts.Pcap); err != nil {
			device.Close()
			return err
		}
	}

	config := &udptun.Config{
		LocalPort:       opts.Port,
		MaxRecvBuff:     opts.MaxRecvBuff,
		DisableLearn:    opts.NoLearnPeer,
		FixedSizeFrames: opts.FixedSize,
		TOS:             opts.TOS,
		TTL:             opts.TTL,
		Logger:          logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var sess *udptun.Session
	if opts.Server {
		logger.Info("waiting for peer", slog.Uint64("port", uint64(opts.Port)))
		sess, err = udptun.Accept(ctx, device, config)
	} else {
		var server netip.AddrPort
		if server, err = resolveServer(opts.Connect, opts.Port); err != nil {
			device.Close()
			return err
		}
		logger.Info("dialing", slog.String("server", server.String()))
		sess, err = udptun.Dial(ctx, device, server, config)
	}
	if err != nil {
		return err
	}

	return sess.Serve(ctx)
}

// resolveServer accepts "ip" or "ip:port"; a bare ip targets the default
// well-known port, matching the C-era -c/-p surface.
func resolveServer(addr string, port uint16) (netip.AddrPort, error) {
	if ip, err := netip.ParseAddr(addr); err == nil {
		return netip.AddrPortFrom(ip, port), nil
	}
	ap, err := netip.ParseAddrPort(addr)
	if err != nil {
		return netip.AddrPort{}, errors.Errorf("invalid server address %q", addr)
	}
	return ap, nil
}
