package wire

import (
	"net"
	"net/netip"
	"time"
)

// ScratchPad is the transient, per-inbound-message decode result (spec
// §3). It is a plain value: it is built by Decode, read once by the
// dispatcher, and scrubbed (zeroed) immediately after dispatch. It never
// escapes a single decode -> dispatch -> scrub sequence, so it carries no
// synchronization of its own.
type ScratchPad struct {
	MessageCode MessageCode
	IsSignal    bool
	SignalType  SignalType
	SignalFlags SignalFlag

	Sequence    uint16
	HasSequence bool

	PeerType    string
	HasPeerType bool

	Version    uint8
	HasVersion bool

	HeartbeatInterval    time.Duration
	HasHeartbeatInterval bool

	Status    StatusCode
	HasStatus bool

	MAC    net.HardwareAddr
	HasMAC bool

	IPv4    netip.Addr
	HasIPv4 bool

	IPv6    netip.Addr
	HasIPv6 bool

	IPv4Subnet    netip.Prefix
	HasIPv4Subnet bool

	IPv6Subnet    netip.Prefix
	HasIPv6Subnet bool

	AddressOp    AddressOp
	HasAddressOp bool

	// Metrics, per spec §3's Neighbor metrics snapshot.
	MDRTx, MDRRx             uint64 // bits per second
	HasMDRTx, HasMDRRx       bool
	CDRTx, CDRRx             uint64 // bits per second
	HasCDRTx, HasCDRRx       bool
	LatencyMS                int64
	HasLatency               bool
	ResourcesTx, ResourcesRx uint8 // 0-100
	HasResourcesTx           bool
	HasResourcesRx           bool
	RLQTx, RLQRx             uint8
	HasRLQTx, HasRLQRx       bool
	MTU                      uint16
	HasMTU                   bool

	// Credit fields, gated by CreditSupported (spec §3: "optional credit
	// fields {mrw,rrw,cgr,eft} gated by credit-supported flag").
	CreditSupported bool
	MRW, RRW        uint64
	CGR             uint64
	EFT             time.Duration

	VendorData    []byte
	HasVendorData bool
}

// Scrub zeroes every present-flag and payload field, returning the
// ScratchPad to its just-allocated state (spec §4.6: "after dispatch,
// scrub scratch pad"). Scrub is idempotent: scrubbing an already-scrubbed
// pad is a no-op observationally.
func (s *ScratchPad) Scrub() {
	*s = ScratchPad{}
}
