package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// DefaultMulticastGroupV4 and DefaultMulticastGroupV6 are DLEP's
// well-known discovery multicast addresses (spec §6).
var (
	DefaultMulticastGroupV4 = netip.MustParseAddr("224.0.0.117")
	DefaultMulticastGroupV6 = netip.MustParseAddr("ff02::1:117")
)

// ErrUnexpectedConnType is returned when a net.ListenConfig produces a
// connection of a type this package doesn't know how to wrap.
var ErrUnexpectedConnType = errors.New("transport: unexpected connection type")

// DiscoveryConfig configures a multicast discovery socket, bound per
// spec §4.1: the radio listens on Port for Peer Discovery signals (and
// replies with unicast Peer Offer), the router listens for the reply.
type DiscoveryConfig struct {
	Group   netip.Addr // multicast group to join
	IfName  string      // interface to join the group on
	Port    int
}

// DiscoveryListener receives UDP datagrams on a joined multicast group
// and can reply unicast to whatever source address sent them.
type DiscoveryListener struct {
	conn *net.UDPConn
	ipv4 *ipv4.PacketConn
	ipv6 *ipv6.PacketConn
}

// NewDiscoveryListener opens a UDP socket on cfg.Port, joins cfg.Group
// on the named interface, and returns a listener ready for Recv.
func NewDiscoveryListener(cfg DiscoveryConfig) (*DiscoveryListener, error) {
	iface, err := net.InterfaceByName(cfg.IfName)
	if err != nil {
		return nil, fmt.Errorf("discovery listener: lookup interface %s: %w", cfg.IfName, err)
	}

	isV6 := cfg.Group.Is6() && !cfg.Group.Is4In6()
	network := "udp4"
	if isV6 {
		network = "udp6"
	}

	pc, err := net.ListenPacket(network, fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("discovery listener: listen %s:%d: %w", network, cfg.Port, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("discovery listener: %w", ErrUnexpectedConnType)
	}

	l := &DiscoveryListener{conn: conn}
	groupUDP := &net.UDPAddr{IP: net.IP(cfg.Group.AsSlice())}

	if isV6 {
		p := ipv6.NewPacketConn(conn)
		if err := p.JoinGroup(iface, groupUDP); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("discovery listener: join group %s on %s: %w", cfg.Group, cfg.IfName, err)
		}
		l.ipv6 = p
	} else {
		p := ipv4.NewPacketConn(conn)
		if err := p.JoinGroup(iface, groupUDP); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("discovery listener: join group %s on %s: %w", cfg.Group, cfg.IfName, err)
		}
		l.ipv4 = p
	}

	return l, nil
}

// Recv blocks for one datagram and returns its payload and source
// address. The returned slice is only valid until the next Recv call.
func (l *DiscoveryListener) Recv(buf []byte) (n int, from netip.AddrPort, err error) {
	nn, addr, err := l.conn.ReadFromUDP(buf)
	if err != nil {
		return 0, netip.AddrPort{}, fmt.Errorf("discovery recv: %w", err)
	}
	ap, ok := netip.AddrFromSlice(addr.IP)
	if !ok {
		return 0, netip.AddrPort{}, fmt.Errorf("discovery recv: bad source address %s", addr.IP)
	}
	return nn, netip.AddrPortFrom(ap, uint16(addr.Port)), nil //nolint:gosec // addr.Port is a valid UDP port
}

// ReplyTo returns a Sender (see internal/dlep.Sender) that unicasts to
// one discovered source address over this listener's socket — used for
// the Peer Offer reply to a Peer Discovery signal (spec §4.1).
func (l *DiscoveryListener) ReplyTo(addr netip.AddrPort) *discoveryReplySender {
	return &discoveryReplySender{conn: l.conn, addr: net.UDPAddrFromAddrPort(addr)}
}

// Close closes the underlying socket.
func (l *DiscoveryListener) Close() error {
	if err := l.conn.Close(); err != nil {
		return fmt.Errorf("discovery listener close: %w", err)
	}
	return nil
}

type discoveryReplySender struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

// Send implements internal/dlep.Sender.
func (s *discoveryReplySender) Send(buf []byte) error {
	if _, err := s.conn.WriteToUDP(buf, s.addr); err != nil {
		return fmt.Errorf("discovery reply send to %s: %w", s.addr, err)
	}
	return nil
}

// DiscoverySender periodically multicasts Peer Discovery signals from
// the router side (spec §4.1: the router is the active discoverer; the
// radio only ever replies). Not exercised by the radio-agent daemon
// built here, but kept as the symmetric counterpart since the wire
// codec already builds both signal types.
type DiscoverySender struct {
	conn  *net.UDPConn
	group *net.UDPAddr
}

// NewDiscoverySender opens a UDP socket for multicasting to cfg.Group.
func NewDiscoverySender(cfg DiscoveryConfig) (*DiscoverySender, error) {
	isV6 := cfg.Group.Is6() && !cfg.Group.Is4In6()
	network := "udp4"
	if isV6 {
		network = "udp6"
	}
	conn, err := net.ListenUDP(network, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery sender: listen: %w", err)
	}
	return &DiscoverySender{
		conn:  conn,
		group: &net.UDPAddr{IP: net.IP(cfg.Group.AsSlice()), Port: cfg.Port},
	}, nil
}

// Send implements internal/dlep.Sender by multicasting buf to the group.
func (s *DiscoverySender) Send(buf []byte) error {
	if _, err := s.conn.WriteToUDP(buf, s.group); err != nil {
		return fmt.Errorf("discovery multicast send: %w", err)
	}
	return nil
}

// Close closes the underlying socket.
func (s *DiscoverySender) Close() error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("discovery sender close: %w", err)
	}
	return nil
}
