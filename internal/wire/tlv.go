package wire

import (
	"encoding/binary"
	"net"
	"net/netip"
	"time"
)

type rawTLV struct {
	typ TLVType
	val []byte
}

// parseTLVs splits buf into a sequence of raw TLVs, validating that every
// declared length stays inside the remaining buffer (ErrKindTLVOverrun)
// and that no declared length is internally inconsistent
// (ErrKindBadTLVLength is reserved for per-field length checks applied in
// applyTLV). Duplicate type detection happens in the caller, which knows
// which message is being decoded.
func parseTLVs(buf []byte) ([]rawTLV, error) {
	var out []rawTLV
	for len(buf) > 0 {
		if len(buf) < tlvHeaderLen {
			return nil, newDecodeError(ErrKindTLVOverrun, "truncated tlv header")
		}
		typ := TLVType(binary.BigEndian.Uint16(buf[0:2]))
		length := binary.BigEndian.Uint16(buf[2:4])
		buf = buf[tlvHeaderLen:]
		if int(length) > len(buf) {
			return nil, newDecodeError(ErrKindTLVOverrun, typ.String())
		}
		out = append(out, rawTLV{typ: typ, val: buf[:length]})
		buf = buf[length:]
	}
	return out, nil
}

// tlvBuilder accumulates TLVs for one outbound message or signal. buf is
// borrowed from BufferPool when built via newTLVBuilder, so the body
// bytes never hit the allocator for the common case of one small
// message at a time.
type tlvBuilder struct {
	buf    []byte
	pooled *[]byte
}

// newTLVBuilder returns a tlvBuilder backed by a buffer from BufferPool.
// Callers must defer release() once the builder's bytes have been copied
// out (EncodeMessage/EncodeSignal do this; they never retain b.buf).
func newTLVBuilder() *tlvBuilder {
	bufp, _ := BufferPool.Get().(*[]byte)
	return &tlvBuilder{buf: (*bufp)[:0], pooled: bufp}
}

// release returns b's backing buffer to BufferPool. Safe to call on a
// zero-value tlvBuilder (pooled == nil), which some signal builders with
// no TLVs never bother allocating.
func (b *tlvBuilder) release() {
	if b.pooled == nil {
		return
	}
	*b.pooled = b.buf[:0]
	BufferPool.Put(b.pooled)
	b.pooled = nil
}

func (b *tlvBuilder) write(typ TLVType, val []byte) {
	var hdr [tlvHeaderLen]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(typ))
	binary.BigEndian.PutUint16(hdr[2:4], uint16(len(val)))
	b.buf = append(b.buf, hdr[:]...)
	b.buf = append(b.buf, val...)
}

func (b *tlvBuilder) uint8(typ TLVType, v uint8) {
	b.write(typ, []byte{v})
}

func (b *tlvBuilder) uint16(typ TLVType, v uint16) {
	var val [2]byte
	binary.BigEndian.PutUint16(val[:], v)
	b.write(typ, val[:])
}

func (b *tlvBuilder) uint64(typ TLVType, v uint64) {
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], v)
	b.write(typ, val[:])
}

func (b *tlvBuilder) int64(typ TLVType, v int64) {
	b.uint64(typ, uint64(v))
}

func (b *tlvBuilder) millis(typ TLVType, d time.Duration) {
	b.uint64(typ, uint64(d.Milliseconds()))
}

func (b *tlvBuilder) str(typ TLVType, s string) {
	b.write(typ, []byte(s))
}

func (b *tlvBuilder) mac(typ TLVType, hw net.HardwareAddr) {
	b.write(typ, hw)
}

func (b *tlvBuilder) ip(typ TLVType, addr netip.Addr) {
	if addr.Is4() {
		a := addr.As4()
		b.write(typ, a[:])
		return
	}
	a := addr.As16()
	b.write(typ, a[:])
}

func (b *tlvBuilder) prefix(typ TLVType, p netip.Prefix) {
	addr := p.Addr()
	var val []byte
	if addr.Is4() {
		a := addr.As4()
		val = append(val, a[:]...)
	} else {
		a := addr.As16()
		val = append(val, a[:]...)
	}
	val = append(val, uint8(p.Bits())) //nolint:gosec // prefix bits fit in a byte
	b.write(typ, val)
}

func u16(v []byte) (uint16, bool) {
	if len(v) != 2 {
		return 0, false
	}
	return binary.BigEndian.Uint16(v), true
}

func u64(v []byte) (uint64, bool) {
	if len(v) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}

// applyTLV decodes one raw TLV into the matching ScratchPad field. Unknown
// TLV types are returned as (known=false, err=nil): the caller skips
// them. They are not logged.
func applyTLV(pad *ScratchPad, t rawTLV) (known bool, err error) {
	switch t.typ {
	case TLVPeerType:
		pad.PeerType, pad.HasPeerType = string(t.val), true
	case TLVVersion:
		if len(t.val) != 1 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.Version, pad.HasVersion = t.val[0], true
	case TLVHeartbeatInterval:
		v, ok := u64(t.val)
		if !ok {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.HeartbeatInterval, pad.HasHeartbeatInterval = time.Duration(v)*time.Millisecond, true
	case TLVStatus:
		if len(t.val) != 1 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.Status, pad.HasStatus = StatusCode(t.val[0]), true
	case TLVMACAddress:
		if len(t.val) != 6 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		mac := make(net.HardwareAddr, 6)
		copy(mac, t.val)
		pad.MAC, pad.HasMAC = mac, true
	case TLVIPv4Address:
		if len(t.val) != 4 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.IPv4, pad.HasIPv4 = netip.AddrFrom4([4]byte(t.val)), true
	case TLVIPv6Address:
		if len(t.val) != 16 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.IPv6, pad.HasIPv6 = netip.AddrFrom16([16]byte(t.val)), true
	case TLVIPv4AttachedSubnet:
		if len(t.val) != 5 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		addr := netip.AddrFrom4([4]byte(t.val[:4]))
		pad.IPv4Subnet = netip.PrefixFrom(addr, int(t.val[4]))
		pad.HasIPv4Subnet = true
	case TLVIPv6AttachedSubnet:
		if len(t.val) != 17 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		addr := netip.AddrFrom16([16]byte(t.val[:16]))
		pad.IPv6Subnet = netip.PrefixFrom(addr, int(t.val[16]))
		pad.HasIPv6Subnet = true
	case TLVLinkMDRTx:
		v, ok := u64(t.val)
		if !ok {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.MDRTx, pad.HasMDRTx = v, true
	case TLVLinkMDRRx:
		v, ok := u64(t.val)
		if !ok {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.MDRRx, pad.HasMDRRx = v, true
	case TLVLinkCDRTx:
		v, ok := u64(t.val)
		if !ok {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.CDRTx, pad.HasCDRTx = v, true
	case TLVLinkCDRRx:
		v, ok := u64(t.val)
		if !ok {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.CDRRx, pad.HasCDRRx = v, true
	case TLVLinkLatency:
		v, ok := u64(t.val)
		if !ok {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.LatencyMS, pad.HasLatency = int64(v), true //nolint:gosec // wire value, bounded by caller
	case TLVLinkResourcesTx:
		if len(t.val) != 1 || t.val[0] > 100 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.ResourcesTx, pad.HasResourcesTx = t.val[0], true
	case TLVLinkResourcesRx:
		if len(t.val) != 1 || t.val[0] > 100 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.ResourcesRx, pad.HasResourcesRx = t.val[0], true
	case TLVLinkRLQTx:
		if len(t.val) != 1 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.RLQTx, pad.HasRLQTx = t.val[0], true
	case TLVLinkRLQRx:
		if len(t.val) != 1 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.RLQRx, pad.HasRLQRx = t.val[0], true
	case TLVMTU:
		v, ok := u16(t.val)
		if !ok {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.MTU, pad.HasMTU = v, true
	case TLVCreditGrant:
		if len(t.val) != 16 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.MRW = binary.BigEndian.Uint64(t.val[0:8])
		pad.CGR = binary.BigEndian.Uint64(t.val[8:16])
		pad.CreditSupported = true
	case TLVCreditRequest:
		v, ok := u64(t.val)
		if !ok {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.RRW = v
		pad.CreditSupported = true
	case TLVCreditWindowStatus:
		v, ok := u64(t.val)
		if !ok {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.EFT = time.Duration(v) * time.Millisecond
		pad.CreditSupported = true
	case TLVVendorExtension:
		pad.VendorData, pad.HasVendorData = append([]byte(nil), t.val...), true
	case TLVAddressOperation:
		if len(t.val) != 1 {
			return true, newDecodeError(ErrKindBadTLVLength, t.typ.String())
		}
		pad.AddressOp, pad.HasAddressOp = AddressOp(t.val[0]), true
	default:
		return false, nil
	}
	return true, nil
}
