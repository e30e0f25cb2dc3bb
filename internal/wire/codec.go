package wire

import (
	"encoding/binary"
	"net"
	"net/netip"
	"sync"
	"time"
)

// BufferPool is the "buffer allocator" collaborator (spec §1: out of
// scope beyond its interface). Every Build* function below borrows its
// tlvBuilder's backing array from here and returns it once the TLV body
// has been copied into the message's final, freshly allocated frame.
var BufferPool = sync.Pool{ //nolint:gochecknoglobals // pooled scratch buffers, not protocol state
	New: func() any {
		b := make([]byte, 0, maxPacketLen)
		return &b
	},
}

// mandatoryTLVs lists, per message code, the TLV types that must be
// present for the message to decode successfully (spec §4.2).
var mandatoryTLVs = map[MessageCode][]TLVType{ //nolint:gochecknoglobals // static protocol table
	MsgPeerInitRequest:             {TLVPeerType, TLVHeartbeatInterval},
	MsgPeerInitResponse:            {TLVPeerType, TLVHeartbeatInterval, TLVStatus},
	MsgPeerHeartbeat:               {},
	MsgPeerUpdateRequest:           {},
	MsgPeerUpdateResponse:          {TLVStatus},
	MsgPeerTermRequest:             {TLVStatus},
	MsgPeerTermResponse:            {TLVStatus},
	MsgNeighborUpRequest:           {TLVMACAddress},
	MsgNeighborUpResponse:          {TLVMACAddress, TLVStatus},
	MsgNeighborMetrics:             {TLVMACAddress},
	MsgNeighborAddressRequest:      {TLVMACAddress, TLVAddressOperation},
	MsgNeighborAddressResponse:     {TLVMACAddress, TLVStatus},
	MsgNeighborDownRequest:         {TLVMACAddress, TLVStatus},
	MsgNeighborDownResponse:        {TLVMACAddress, TLVStatus},
	MsgLinkCharacteristicsRequest:  {TLVMACAddress},
	MsgLinkCharacteristicsResponse: {TLVMACAddress, TLVStatus},
}

// EncodeSignal builds the wire form of a Signal: a 4-byte header (flags,
// version, length) followed by the signal type and its TLVs.
func EncodeSignal(typ SignalType, flags SignalFlag, b *tlvBuilder) []byte {
	body := make([]byte, 2, 2+len(b.buf))
	binary.BigEndian.PutUint16(body, uint16(typ))
	body = append(body, b.buf...)

	out := make([]byte, signalHeaderLen+len(body))
	out[0] = uint8(flags)
	out[1] = ProtocolVersion
	binary.BigEndian.PutUint16(out[2:4], uint16(len(body))) //nolint:gosec // bounded by maxPacketLen
	copy(out[signalHeaderLen:], body)
	return out
}

// DecodeSignal parses a Signal header and its TLVs into pad. On error no
// partial state is left in pad.
func DecodeSignal(buf []byte, pad *ScratchPad) error {
	if len(buf) < signalHeaderLen {
		return newDecodeError(ErrKindShortPacket, "signal header")
	}
	flags := SignalFlag(buf[0])
	version := buf[1]
	length := binary.BigEndian.Uint16(buf[2:4])
	rest := buf[signalHeaderLen:]

	if version != ProtocolVersion {
		return newDecodeError(ErrKindBadVersion, "")
	}
	if int(length) != len(rest) {
		return newDecodeError(ErrKindShortPacket, "length mismatch")
	}
	if len(rest) < 2 {
		return newDecodeError(ErrKindShortPacket, "signal type")
	}

	typ := SignalType(binary.BigEndian.Uint16(rest[0:2]))
	tlvs, err := parseTLVs(rest[2:])
	if err != nil {
		return err
	}

	var scratch ScratchPad
	if err := applyAll(&scratch, tlvs); err != nil {
		return err
	}
	scratch.IsSignal = true
	scratch.SignalType = typ
	scratch.SignalFlags = flags
	*pad = scratch
	return nil
}

// EncodeMessage builds the wire form of a Message: a 6-byte header
// (code, length, sequence) followed by its TLVs. Length is back-patched
// once the TLV body is known.
func EncodeMessage(code MessageCode, seq uint16, b *tlvBuilder) []byte {
	out := make([]byte, messageHeaderLen+len(b.buf))
	binary.BigEndian.PutUint16(out[0:2], uint16(code))
	binary.BigEndian.PutUint16(out[2:4], uint16(len(b.buf))) //nolint:gosec // bounded by maxPacketLen
	binary.BigEndian.PutUint16(out[4:6], seq)
	copy(out[messageHeaderLen:], b.buf)
	return out
}

// PeekMessageLength inspects a 6-byte message header and returns the
// number of TLV-body bytes that follow it, implementing the "peek header
// -> read remainder" TCP framing spec §4.3 requires. header must be
// exactly messageHeaderLen bytes.
func PeekMessageLength(header []byte) (uint16, error) {
	if len(header) != messageHeaderLen {
		return 0, newDecodeError(ErrKindShortPacket, "message header")
	}
	return binary.BigEndian.Uint16(header[2:4]), nil
}

// DecodeMessage parses a full Message (header + body, as framed by
// PeekMessageLength) into pad. Mandatory TLVs for the message's code are
// validated; if any are missing, ErrKindMandatoryTLVMissing is returned
// and no ScratchPad is produced.
func DecodeMessage(buf []byte, pad *ScratchPad) error {
	if len(buf) < messageHeaderLen {
		return newDecodeError(ErrKindShortPacket, "message header")
	}
	code := MessageCode(binary.BigEndian.Uint16(buf[0:2]))
	length := binary.BigEndian.Uint16(buf[2:4])
	seq := binary.BigEndian.Uint16(buf[4:6])
	body := buf[messageHeaderLen:]

	if int(length) != len(body) {
		return newDecodeError(ErrKindShortPacket, "length mismatch")
	}

	tlvs, err := parseTLVs(body)
	if err != nil {
		return err
	}

	var scratch ScratchPad
	if err := applyAll(&scratch, tlvs); err != nil {
		return err
	}

	if code.IsKnown() {
		for _, want := range mandatoryTLVs[code] {
			if !hasTLV(tlvs, want) {
				return newDecodeError(ErrKindMandatoryTLVMissing, want.String())
			}
		}
	}

	scratch.MessageCode = code
	scratch.Sequence, scratch.HasSequence = seq, true
	*pad = scratch
	return nil
}

func applyAll(pad *ScratchPad, tlvs []rawTLV) error {
	seen := make(map[TLVType]bool, len(tlvs))
	for _, t := range tlvs {
		if seen[t.typ] {
			return newDecodeError(ErrKindDuplicateTLV, t.typ.String())
		}
		seen[t.typ] = true

		if _, err := applyTLV(pad, t); err != nil {
			return err
		}
	}
	return nil
}

func hasTLV(tlvs []rawTLV, typ TLVType) bool {
	for _, t := range tlvs {
		if t.typ == typ {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------
// Per-message builders (spec §4.2: "one builder per outbound message").
// ---------------------------------------------------------------------

// BuildPeerDiscovery encodes a Peer Discovery signal.
func BuildPeerDiscovery(attached bool) []byte {
	var flags SignalFlag
	if attached {
		flags = FlagAttached
	}
	b := newTLVBuilder()
	defer b.release()
	return EncodeSignal(SignalPeerDiscovery, flags, b)
}

// BuildPeerOffer encodes a Peer Offer signal.
func BuildPeerOffer() []byte {
	b := newTLVBuilder()
	defer b.release()
	return EncodeSignal(SignalPeerOffer, 0, b)
}

// BuildPeerInitRequest encodes a Peer Initialization Request message.
func BuildPeerInitRequest(seq uint16, peerType string, heartbeat time.Duration) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.str(TLVPeerType, peerType)
	b.millis(TLVHeartbeatInterval, heartbeat)
	return EncodeMessage(MsgPeerInitRequest, seq, b)
}

// BuildPeerInitResponse encodes a Peer Initialization Response message.
func BuildPeerInitResponse(seq uint16, peerType string, heartbeat time.Duration, status StatusCode) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.str(TLVPeerType, peerType)
	b.millis(TLVHeartbeatInterval, heartbeat)
	b.uint8(TLVStatus, uint8(status))
	return EncodeMessage(MsgPeerInitResponse, seq, b)
}

// BuildPeerHeartbeat encodes a Peer Heartbeat message.
func BuildPeerHeartbeat(seq uint16) []byte {
	b := newTLVBuilder()
	defer b.release()
	return EncodeMessage(MsgPeerHeartbeat, seq, b)
}

// BuildPeerUpdateResponse encodes a Peer Update Response message.
func BuildPeerUpdateResponse(seq uint16, status StatusCode) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.uint8(TLVStatus, uint8(status))
	return EncodeMessage(MsgPeerUpdateResponse, seq, b)
}

// BuildPeerTermRequest encodes a Peer Termination Request message.
func BuildPeerTermRequest(seq uint16, status StatusCode) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.uint8(TLVStatus, uint8(status))
	return EncodeMessage(MsgPeerTermRequest, seq, b)
}

// BuildPeerTermResponse encodes a Peer Termination Response message.
func BuildPeerTermResponse(seq uint16, status StatusCode) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.uint8(TLVStatus, uint8(status))
	return EncodeMessage(MsgPeerTermResponse, seq, b)
}

// NeighborMetricsParams bundles the metrics snapshot used by
// BuildNeighborUpRequest and BuildNeighborMetrics.
type NeighborMetricsParams struct {
	MDRTx, MDRRx             uint64
	CDRTx, CDRRx             uint64
	Latency                  time.Duration
	ResourcesTx, ResourcesRx uint8
	RLQTx, RLQRx             uint8
	MTU                      uint16
}

func writeMetrics(b *tlvBuilder, m NeighborMetricsParams) {
	b.uint64(TLVLinkMDRTx, m.MDRTx)
	b.uint64(TLVLinkMDRRx, m.MDRRx)
	b.uint64(TLVLinkCDRTx, m.CDRTx)
	b.uint64(TLVLinkCDRRx, m.CDRRx)
	b.millis(TLVLinkLatency, m.Latency)
	b.uint8(TLVLinkResourcesTx, m.ResourcesTx)
	b.uint8(TLVLinkResourcesRx, m.ResourcesRx)
	b.uint8(TLVLinkRLQTx, m.RLQTx)
	b.uint8(TLVLinkRLQRx, m.RLQRx)
	b.uint16(TLVMTU, m.MTU)
}

// BuildNeighborUpRequest encodes a Neighbor Up Request message.
func BuildNeighborUpRequest(seq uint16, mac net.HardwareAddr, v4, v6 netip.Addr, m NeighborMetricsParams) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.mac(TLVMACAddress, mac)
	if v4.IsValid() {
		b.ip(TLVIPv4Address, v4)
	}
	if v6.IsValid() {
		b.ip(TLVIPv6Address, v6)
	}
	writeMetrics(b, m)
	return EncodeMessage(MsgNeighborUpRequest, seq, b)
}

// BuildNeighborUpResponse encodes a Neighbor Up Response message.
func BuildNeighborUpResponse(seq uint16, mac net.HardwareAddr, status StatusCode) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.mac(TLVMACAddress, mac)
	b.uint8(TLVStatus, uint8(status))
	return EncodeMessage(MsgNeighborUpResponse, seq, b)
}

// BuildNeighborMetrics encodes a Neighbor Metrics message.
func BuildNeighborMetrics(seq uint16, mac net.HardwareAddr, m NeighborMetricsParams) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.mac(TLVMACAddress, mac)
	writeMetrics(b, m)
	return EncodeMessage(MsgNeighborMetrics, seq, b)
}

// BuildNeighborAddressRequest encodes a Neighbor Address Request message.
func BuildNeighborAddressRequest(seq uint16, mac net.HardwareAddr, op AddressOp, v4, v6 netip.Addr) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.mac(TLVMACAddress, mac)
	b.uint8(TLVAddressOperation, uint8(op))
	if v4.IsValid() {
		b.ip(TLVIPv4Address, v4)
	}
	if v6.IsValid() {
		b.ip(TLVIPv6Address, v6)
	}
	return EncodeMessage(MsgNeighborAddressRequest, seq, b)
}

// BuildNeighborAddressResponse encodes a Neighbor Address Response message.
func BuildNeighborAddressResponse(seq uint16, mac net.HardwareAddr, status StatusCode) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.mac(TLVMACAddress, mac)
	b.uint8(TLVStatus, uint8(status))
	return EncodeMessage(MsgNeighborAddressResponse, seq, b)
}

// BuildNeighborDownRequest encodes a Neighbor Down Request message.
func BuildNeighborDownRequest(seq uint16, mac net.HardwareAddr, status StatusCode) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.mac(TLVMACAddress, mac)
	b.uint8(TLVStatus, uint8(status))
	return EncodeMessage(MsgNeighborDownRequest, seq, b)
}

// BuildNeighborDownResponse encodes a Neighbor Down Response message.
func BuildNeighborDownResponse(seq uint16, mac net.HardwareAddr, status StatusCode) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.mac(TLVMACAddress, mac)
	b.uint8(TLVStatus, uint8(status))
	return EncodeMessage(MsgNeighborDownResponse, seq, b)
}

// BuildLinkCharacteristicsResponse encodes a Link Characteristics
// Response message, echoing the (optionally clamped) current metrics.
func BuildLinkCharacteristicsResponse(seq uint16, mac net.HardwareAddr, status StatusCode, m NeighborMetricsParams) []byte {
	b := newTLVBuilder()
	defer b.release()
	b.mac(TLVMACAddress, mac)
	b.uint8(TLVStatus, uint8(status))
	writeMetrics(b, m)
	return EncodeMessage(MsgLinkCharacteristicsResponse, seq, b)
}
