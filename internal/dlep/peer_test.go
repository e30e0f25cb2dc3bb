package dlep

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dlepradio/dlepd/internal/timerwheel"
	"github.com/dlepradio/dlepd/internal/wire"
)

type fakeSender struct {
	sent [][]byte
}

func (f *fakeSender) Send(buf []byte) error {
	cp := append([]byte(nil), buf...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeSender) lastCode(t *testing.T) wire.MessageCode {
	t.Helper()
	require.NotEmpty(t, f.sent)
	var pad wire.ScratchPad
	require.NoError(t, wire.DecodeMessage(f.sent[len(f.sent)-1], &pad))
	return pad.MessageCode
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPeer() (*Peer, *fakeSender, *timerwheel.Wheel) {
	w := timerwheel.New()
	s := &fakeSender{}
	p := NewPeer(1, PeerConfig{LocalType: "radio", HeartbeatInterval: 5 * time.Second, HeartbeatMissed: 3, TermAckTimeout: time.Second, TermMissed: 3}, s, w, testLogger(), nil)
	return p, s, w
}

func TestPeerInitRequestTransitionsToInSessionAndReplies(t *testing.T) {
	p, s, _ := newTestPeer()
	pad := &wire.ScratchPad{PeerType: "router-x", HasPeerType: true}
	p.Dispatch(PeerEventInitRequestReceived, pad)

	require.Equal(t, PeerStateInSession, p.State())
	require.Equal(t, "router-x", p.PeerType())
	require.Equal(t, wire.MsgPeerInitResponse, s.lastCode(t))
}

func TestPeerHeartbeatMissedThresholdSelfTerminates(t *testing.T) {
	p, s, _ := newTestPeer()
	p.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})

	for i := 0; i < p.cfg.HeartbeatMissed; i++ {
		p.Dispatch(PeerEventHeartbeatMissedTimeout, nil)
	}

	require.Equal(t, PeerStateTerminating, p.State())
	require.Equal(t, wire.MsgPeerTermRequest, s.lastCode(t))
}

func TestPeerHeartbeatReceivedResetsMissedCounter(t *testing.T) {
	p, _, _ := newTestPeer()
	p.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})
	p.Dispatch(PeerEventHeartbeatMissedTimeout, nil)
	require.Equal(t, 1, p.missedHeartbeats)

	p.Dispatch(PeerEventHeartbeatReceived, nil)
	require.Equal(t, 0, p.missedHeartbeats)
}

func TestPeerUpdateRequestIsAcknowledgedNeverOriginated(t *testing.T) {
	p, s, _ := newTestPeer()
	p.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})
	p.Dispatch(PeerEventUpdateRequestReceived, &wire.ScratchPad{})

	require.Equal(t, PeerStateInSession, p.State())
	require.Equal(t, wire.MsgPeerUpdateResponse, s.lastCode(t))
}

func TestPeerCleanTermHandshakeResetsWithoutRetransmit(t *testing.T) {
	p, s, _ := newTestPeer()
	p.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})

	p.Dispatch(PeerEventSendTermRequested, nil)
	require.Equal(t, PeerStateTerminating, p.State())
	sentBeforeAck := len(s.sent)

	p.Dispatch(PeerEventTermAckReceived, nil)
	require.Equal(t, PeerStateReset, p.State())
	require.Equal(t, 0, p.missedTermAcks)
	require.Equal(t, sentBeforeAck, len(s.sent), "ack should not trigger any further send")
}

func TestPeerAttachedDiscoveryArmsAndInitRequestStopsPeerOfferTimer(t *testing.T) {
	p, s, _ := newTestPeer()

	p.Dispatch(PeerEventAttachedDiscoveryReceived, nil)
	require.Equal(t, wire.MsgPeerOffer, s.lastCode(t))
	require.True(t, p.peerOfferTimer.IsRunning())

	p.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})
	require.False(t, p.peerOfferTimer.IsRunning())
}

func TestPeerTermAckGivesUpAfterThresholdMissedAcks(t *testing.T) {
	p, s, w := newTestPeer()
	p.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})
	p.Dispatch(PeerEventSendTermRequested, nil)

	ticksPerTimeout := int(p.cfg.TermAckTimeout / timerwheel.Tick)

	// The first TermMissed-1 timeouts retransmit and stay terminating.
	for i := 0; i < p.cfg.TermMissed-1; i++ {
		for j := 0; j < ticksPerTimeout; j++ {
			w.Advance()
		}
		require.Equal(t, PeerStateTerminating, p.State())
	}
	sentBeforeGiveUp := len(s.sent)

	// The TermMissed-th timeout must give up one retransmit early rather
	// than send a further Peer-Term-Request.
	for j := 0; j < ticksPerTimeout; j++ {
		w.Advance()
	}
	require.Equal(t, PeerStateReset, p.State())
	require.Equal(t, sentBeforeGiveUp, len(s.sent), "giving up must not send one more retransmit")
}

func TestPeerUnexpectedMessageInitiatesTermination(t *testing.T) {
	p, s, _ := newTestPeer()
	p.Dispatch(PeerEventInitRequestReceived, &wire.ScratchPad{})

	p.Dispatch(PeerEventUnexpectedMessage, nil)

	require.Equal(t, PeerStateTerminating, p.State())
	require.Equal(t, wire.MsgPeerTermRequest, s.lastCode(t))
}
