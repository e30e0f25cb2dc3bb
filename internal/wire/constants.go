package wire

// ProtocolVersion is the version carried in every Signal header. Peers
// with a mismatched version fail decode with ErrKindBadVersion.
const ProtocolVersion uint8 = 1

// Wire size constants, all integers network byte order (RFC 5444-style).
const (
	signalHeaderLen  = 4 // flags(1) + version(1) + length(2)
	messageHeaderLen = 6 // code(2) + length(2) + sequence(2)
	tlvHeaderLen     = 4 // type(2) + length(2)

	// maxPacketLen bounds a single decoded packet/message, guarding against
	// a hostile or corrupt length field demanding unbounded allocation.
	maxPacketLen = 1 << 16
)

// SignalType identifies a UDP multicast discovery signal.
type SignalType uint16

// Recognized signal types (spec §4.2: "peer discovery attached/detached,
// peer offer").
const (
	SignalPeerDiscovery SignalType = 1
	SignalPeerOffer     SignalType = 2
)

func (s SignalType) String() string {
	switch s {
	case SignalPeerDiscovery:
		return "peer-discovery"
	case SignalPeerOffer:
		return "peer-offer"
	default:
		return "unknown-signal"
	}
}

// SignalFlag bits carried in the signal header's flags byte.
type SignalFlag uint8

// FlagAttached, set on a Peer Discovery signal, marks it as an attached
// discovery; a Peer Discovery without it is a detached discovery.
const FlagAttached SignalFlag = 1 << 0

// MessageCode identifies a TCP session message.
type MessageCode uint16

// Recognized message codes, spec §4.2.
const (
	MsgPeerInitRequest MessageCode = iota + 1
	MsgPeerInitResponse
	MsgPeerHeartbeat
	MsgPeerUpdateRequest
	MsgPeerUpdateResponse
	MsgPeerTermRequest
	MsgPeerTermResponse
	MsgNeighborUpRequest
	MsgNeighborUpResponse
	MsgNeighborMetrics
	MsgNeighborAddressRequest
	MsgNeighborAddressResponse
	MsgNeighborDownRequest
	MsgNeighborDownResponse
	MsgLinkCharacteristicsRequest
	MsgLinkCharacteristicsResponse
)

var messageNames = map[MessageCode]string{
	MsgPeerInitRequest:             "peer-init-request",
	MsgPeerInitResponse:            "peer-init-response",
	MsgPeerHeartbeat:               "peer-heartbeat",
	MsgPeerUpdateRequest:           "peer-update-request",
	MsgPeerUpdateResponse:          "peer-update-response",
	MsgPeerTermRequest:             "peer-term-request",
	MsgPeerTermResponse:            "peer-term-response",
	MsgNeighborUpRequest:           "neighbor-up-request",
	MsgNeighborUpResponse:          "neighbor-up-response",
	MsgNeighborMetrics:             "neighbor-metrics",
	MsgNeighborAddressRequest:      "neighbor-address-request",
	MsgNeighborAddressResponse:     "neighbor-address-response",
	MsgNeighborDownRequest:         "neighbor-down-request",
	MsgNeighborDownResponse:        "neighbor-down-response",
	MsgLinkCharacteristicsRequest:  "link-characteristics-request",
	MsgLinkCharacteristicsResponse: "link-characteristics-response",
}

func (c MessageCode) String() string {
	if n, ok := messageNames[c]; ok {
		return n
	}
	return "unknown-message"
}

// IsKnown reports whether c is a recognized message code.
func (c MessageCode) IsKnown() bool {
	_, ok := messageNames[c]
	return ok
}

// TLVType identifies a type-length-value item.
type TLVType uint16

// Recognized TLV types, spec §4.2.
const (
	TLVPeerType TLVType = iota + 1
	TLVVersion
	TLVHeartbeatInterval
	TLVStatus
	TLVMACAddress
	TLVIPv4Address
	TLVIPv6Address
	TLVIPv4AttachedSubnet
	TLVIPv6AttachedSubnet
	TLVLinkMDRTx
	TLVLinkMDRRx
	TLVLinkCDRTx
	TLVLinkCDRRx
	TLVLinkLatency
	TLVLinkResourcesTx
	TLVLinkResourcesRx
	TLVLinkRLQTx
	TLVLinkRLQRx
	TLVMTU
	TLVCreditGrant
	TLVCreditRequest
	TLVCreditWindowStatus
	TLVVendorExtension

	// TLVAddressOperation carries the Neighbor Address Request pending-
	// update op-code {NONE,ADD,DELETE} (spec §3), which otherwise has no
	// wire representation in the base TLV enumeration; added here.
	TLVAddressOperation
)

var tlvNames = map[TLVType]string{
	TLVPeerType:           "peer-type",
	TLVVersion:            "version",
	TLVHeartbeatInterval:  "heartbeat-interval",
	TLVStatus:             "status",
	TLVMACAddress:         "mac-address",
	TLVIPv4Address:        "ipv4-address",
	TLVIPv6Address:        "ipv6-address",
	TLVIPv4AttachedSubnet: "ipv4-attached-subnet",
	TLVIPv6AttachedSubnet: "ipv6-attached-subnet",
	TLVLinkMDRTx:          "link-mdr-tx",
	TLVLinkMDRRx:          "link-mdr-rx",
	TLVLinkCDRTx:          "link-cdr-tx",
	TLVLinkCDRRx:          "link-cdr-rx",
	TLVLinkLatency:        "link-latency",
	TLVLinkResourcesTx:    "link-resources-tx",
	TLVLinkResourcesRx:    "link-resources-rx",
	TLVLinkRLQTx:          "link-rlq-tx",
	TLVLinkRLQRx:          "link-rlq-rx",
	TLVMTU:                "mtu",
	TLVCreditGrant:        "credit-grant",
	TLVCreditRequest:      "credit-request",
	TLVCreditWindowStatus: "credit-window-status",
	TLVVendorExtension:    "vendor-extension",
	TLVAddressOperation:   "address-operation",
}

func (t TLVType) String() string {
	if n, ok := tlvNames[t]; ok {
		return n
	}
	return "unknown-tlv"
}

// AddressOp is the pending-update operation code carried by a Neighbor
// Address Request (spec §3: Peer/Neighbor "pending update address").
type AddressOp uint8

// Recognized address operation codes.
const (
	AddressOpNone AddressOp = iota
	AddressOpAdd
	AddressOpDelete
)

// StatusCode is the value carried in a Status TLV, echoed into response
// messages and into the peer/neighbor term-request that follows a
// ProtocolError (spec §7).
type StatusCode uint8

// Recognized status codes.
const (
	StatusSuccess StatusCode = iota
	StatusUnknownMessage
	StatusUnexpectedMessage
	StatusUnknownNeighbor
	StatusInvalidData
	StatusTimedOut
)

func (s StatusCode) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusUnknownMessage:
		return "unknown-message"
	case StatusUnexpectedMessage:
		return "unexpected-message"
	case StatusUnknownNeighbor:
		return "unknown-neighbor"
	case StatusInvalidData:
		return "invalid-data"
	case StatusTimedOut:
		return "timed-out"
	default:
		return "unknown-status"
	}
}
