package transport_test

import (
	"context"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dlepradio/dlepd/internal/transport"
	"github.com/dlepradio/dlepd/internal/wire"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestSessionRoundTripFramesAMessage(t *testing.T) {
	ln, err := transport.ListenSession("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	addr := ln.Addr()

	acceptCh := make(chan *transport.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		acceptCh <- c
	}()

	client, err := transport.DialSession(addr)
	require.NoError(t, err)
	defer client.Close()

	server := <-acceptCh
	defer server.Close()

	payload := wire.BuildPeerHeartbeat(7)
	require.NoError(t, client.Send(payload))

	got, err := server.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, payload, got)

	var pad wire.ScratchPad
	require.NoError(t, wire.DecodeMessage(got, &pad))
	require.Equal(t, wire.MsgPeerHeartbeat, pad.MessageCode)
	require.Equal(t, uint16(7), pad.Sequence)
}

func TestSessionPumpDeliversMessagesAndClose(t *testing.T) {
	ln, err := transport.ListenSession("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan *transport.Conn, 1)
	go func() {
		c, err := ln.Accept()
		require.NoError(t, err)
		acceptCh <- c
	}()

	client, err := transport.DialSession(ln.Addr())
	require.NoError(t, err)

	server := <-acceptCh

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan transport.SessionEvent, 4)
	closedCh := make(chan transport.SessionClosedEvent, 1)
	go transport.RunSessionPump(ctx, 42, server, events, closedCh, testLogger())

	require.NoError(t, client.Send(wire.BuildPeerHeartbeat(1)))

	select {
	case ev := <-events:
		require.Equal(t, uint32(42), ev.PeerID)
		var pad wire.ScratchPad
		require.NoError(t, wire.DecodeMessage(ev.Raw, &pad))
		require.Equal(t, wire.MsgPeerHeartbeat, pad.MessageCode)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session event")
	}

	require.NoError(t, client.Close())

	select {
	case ev := <-closedCh:
		require.Equal(t, uint32(42), ev.PeerID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session-closed event")
	}
}

// discoveryReplySender isn't exported, so this test exercises the same
// unicast-reply behavior directly over a plain loopback UDP pair rather
// than going through multicast group join (which needs a real
// multicast-capable interface unavailable in a unit test sandbox).
func TestDiscoveryListenerReplyToUnicasts(t *testing.T) {
	serverConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer serverConn.Close()

	clientConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer clientConn.Close()

	serverAddr := serverConn.LocalAddr().(*net.UDPAddr)

	discoveryPayload := wire.BuildPeerDiscovery(true)
	_, err = clientConn.WriteToUDP(discoveryPayload, serverAddr)
	require.NoError(t, err)

	buf := make([]byte, 2048)
	n, from, err := serverConn.ReadFromUDP(buf)
	require.NoError(t, err)

	var pad wire.ScratchPad
	require.NoError(t, wire.DecodeSignal(buf[:n], &pad))
	require.Equal(t, wire.SignalPeerDiscovery, pad.SignalType)
	require.Equal(t, wire.FlagAttached, pad.SignalFlags)

	offer := wire.BuildPeerOffer()
	_, err = serverConn.WriteToUDP(offer, from)
	require.NoError(t, err)

	n, _, err = clientConn.ReadFromUDP(buf)
	require.NoError(t, err)
	var replyPad wire.ScratchPad
	require.NoError(t, wire.DecodeSignal(buf[:n], &replyPad))
	require.Equal(t, wire.SignalPeerOffer, replyPad.SignalType)
}
