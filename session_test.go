package udptun_test

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/lysShub/udptun"
	"github.com/lysShub/udptun/tun"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var locIP = netip.MustParseAddr("127.0.0.1")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freePorts(t *testing.T, n int) []uint16 {
	var ports []uint16
	for i := 0; i < n; i++ {
		c, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
		require.NoError(t, err)
		ports = append(ports, netip.MustParseAddrPort(c.LocalAddr().String()).Port())
		require.NoError(t, c.Close())
	}
	return ports
}

func randFrame(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

// establish returns an active/passive session pair over loopback.
func establish(t *testing.T, active, passive *udptun.Config) (a, b *udptun.Session, devA, devB *tun.Mem) {
	ports := freePorts(t, 2)
	active.LocalPort, passive.LocalPort = ports[0], ports[1]
	active.Logger, passive.Logger = testLogger(), testLogger()

	devA = tun.NewMem("memA", tun.TUN)
	devB = tun.NewMem("memB", tun.TUN)

	eg, ctx := errgroup.WithContext(context.Background())
	eg.Go(func() error {
		var err error
		b, err = udptun.Accept(ctx, devB, passive)
		return err
	})
	eg.Go(func() error {
		time.Sleep(time.Millisecond * 100)

		var err error
		a, err = udptun.Dial(ctx, devA, netip.AddrPortFrom(locIP, ports[1]), active)
		return err
	})
	require.NoError(t, eg.Wait())
	return a, b, devA, devB
}

func Test_Handshake(t *testing.T) {
	a, b, _, _ := establish(t, &udptun.Config{}, &udptun.Config{})
	defer a.Close()
	defer b.Close()

	peerA, err := a.PeerAddr()
	require.NoError(t, err)
	peerB, err := b.PeerAddr()
	require.NoError(t, err)

	require.Equal(t, locIP, peerA.Addr())
	require.Equal(t, b.LocalAddr().Port(), peerA.Port())
	require.Equal(t, locIP, peerB.Addr())
	require.Equal(t, a.LocalAddr().Port(), peerB.Port())
}

func Test_Handshake_Discard_Invalid(t *testing.T) {
	ports := freePorts(t, 2)
	devB := tun.NewMem("memB", tun.TUN)
	passive := &udptun.Config{LocalPort: ports[1], Logger: testLogger()}

	eg, ctx := errgroup.WithContext(context.Background())

	var b *udptun.Session
	eg.Go(func() error {
		var err error
		b, err = udptun.Accept(ctx, devB, passive)
		return err
	})

	// garbage before the real dial must not complete the handshake
	bogus, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: locIP.AsSlice(), Port: int(ports[1])})
	require.NoError(t, err)
	defer bogus.Close()
	time.Sleep(time.Millisecond * 100)
	_, err = bogus.Write([]byte("not the token"))
	require.NoError(t, err)

	var a *udptun.Session
	eg.Go(func() error {
		time.Sleep(time.Millisecond * 300)

		devA := tun.NewMem("memA", tun.TUN)
		var err error
		a, err = udptun.Dial(ctx, devA,
			netip.AddrPortFrom(locIP, ports[1]),
			&udptun.Config{LocalPort: ports[0], Logger: testLogger()},
		)
		return err
	})
	require.NoError(t, eg.Wait())
	defer a.Close()
	defer b.Close()

	peerB, err := b.PeerAddr()
	require.NoError(t, err)
	require.Equal(t, a.LocalAddr().Port(), peerB.Port())
	require.NotEqual(t, netip.MustParseAddrPort(bogus.LocalAddr().String()), peerB)
}

func Test_Relay(t *testing.T) {
	a, b, devA, devB := establish(t, &udptun.Config{}, &udptun.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Serve(ctx)
	go b.Serve(ctx)

	up := randFrame(64)
	devA.Inject(up)
	select {
	case got := <-devB.Outbound():
		require.Equal(t, up, got)
	case <-time.After(time.Second * 3):
		t.Fatal("uplink frame lost")
	}

	down := randFrame(512)
	devB.Inject(down)
	select {
	case got := <-devA.Outbound():
		require.Equal(t, down, got)
	case <-time.After(time.Second * 3):
		t.Fatal("downlink frame lost")
	}
}

func Test_Relay_Learn_Peer(t *testing.T) {
	a, b, devA, _ := establish(t, &udptun.Config{}, &udptun.Config{})
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Serve(ctx)

	// a datagram from a new source re-targets a's next outbound frame
	q, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: locIP.AsSlice(), Port: int(a.LocalAddr().Port())})
	require.NoError(t, err)
	defer q.Close()
	_, err = q.Write(randFrame(32))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		peer, err := a.PeerAddr()
		require.NoError(t, err)
		return peer == netip.MustParseAddrPort(q.LocalAddr().String())
	}, time.Second*3, time.Millisecond*50)

	frame := randFrame(64)
	devA.Inject(frame)

	q.SetReadDeadline(time.Now().Add(time.Second * 3))
	var buf = make([]byte, 4096)
	n, err := q.Read(buf)
	require.NoError(t, err)
	require.Equal(t, frame, buf[:n])
}

func Test_Relay_Learn_Disabled(t *testing.T) {
	a, _, devA, _ := establish(t,
		&udptun.Config{DisableLearn: true}, &udptun.Config{},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Serve(ctx)

	peerBefore, err := a.PeerAddr()
	require.NoError(t, err)

	q, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: locIP.AsSlice(), Port: int(a.LocalAddr().Port())})
	require.NoError(t, err)
	defer q.Close()
	_, err = q.Write(randFrame(32))
	require.NoError(t, err)

	// the injected datagram still reaches the device, but the peer is frozen
	select {
	case <-devA.Outbound():
	case <-time.After(time.Second * 3):
		t.Fatal("inbound datagram not written to device")
	}
	peerAfter, err := a.PeerAddr()
	require.NoError(t, err)
	require.Equal(t, peerBefore, peerAfter)
}

func Test_Relay_Token_Redelivery(t *testing.T) {
	_, b, _, devB := establish(t,
		&udptun.Config{}, &udptun.Config{DisableLearn: true},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Serve(ctx)

	// a late duplicate of the handshake token is just an opaque frame
	q, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: locIP.AsSlice(), Port: int(b.LocalAddr().Port())})
	require.NoError(t, err)
	defer q.Close()
	_, err = q.Write(udptun.Token)
	require.NoError(t, err)

	select {
	case got := <-devB.Outbound():
		require.Equal(t, udptun.Token, got)
	case <-time.After(time.Second * 3):
		t.Fatal("token datagram not forwarded")
	}
}

func Test_Relay_Fixed_Size(t *testing.T) {
	const buffSize = 2048
	a, b, devA, devB := establish(t,
		&udptun.Config{FixedSizeFrames: true, MaxRecvBuff: buffSize},
		&udptun.Config{MaxRecvBuff: buffSize},
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Serve(ctx)
	go b.Serve(ctx)

	frame := randFrame(64)
	devA.Inject(frame)

	// the peer receives the whole buffer, padding included
	select {
	case got := <-devB.Outbound():
		require.Equal(t, buffSize, len(got))
		require.Equal(t, frame, got[:len(frame)])
	case <-time.After(time.Second * 3):
		t.Fatal("fixed-size frame lost")
	}
}
