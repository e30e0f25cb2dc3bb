package transport

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/dlepradio/dlepd/internal/wire"
)

// ErrSessionClosed is returned by Conn methods after Close.
var ErrSessionClosed = errors.New("transport: session connection closed")

// messageHeaderLen mirrors internal/wire's unexported constant: a
// Message header is code(2)+length(2)+sequence(2) bytes, the fixed
// prefix wire.PeekMessageLength expects (spec §4.2).
const messageHeaderLen = 6

// SessionListener accepts the router's incoming TCP session connection
// (spec §4.3: the radio listens on the port it advertised in its Peer
// Offer; the router connects).
type SessionListener struct {
	ln net.Listener
}

// ListenSession opens a TCP listener on addr (host:port form).
func ListenSession(addr string) (*SessionListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("session listen %s: %w", addr, err)
	}
	return &SessionListener{ln: ln}, nil
}

// Addr returns the listener's bound address in host:port form.
func (l *SessionListener) Addr() string {
	return l.ln.Addr().String()
}

// Accept blocks for the next incoming session connection.
func (l *SessionListener) Accept() (*Conn, error) {
	c, err := l.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("session accept: %w", err)
	}
	return &Conn{conn: c}, nil
}

// Close closes the listening socket; already-accepted Conns are
// unaffected.
func (l *SessionListener) Close() error {
	if err := l.ln.Close(); err != nil {
		return fmt.Errorf("session listener close: %w", err)
	}
	return nil
}

// Conn wraps one peer's TCP session connection, implementing
// internal/dlep.Sender and providing the length-prefixed message
// framing spec §4.3 requires (peek a 6-byte header, then read exactly
// as many body bytes as it declares).
type Conn struct {
	conn   net.Conn
	closed bool
}

// DialSession opens an outbound session connection — used only in
// tests and by a future router-role build; the radio-agent daemon here
// only ever accepts.
func DialSession(addr string) (*Conn, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("session dial %s: %w", addr, err)
	}
	return &Conn{conn: c}, nil
}

// Send implements internal/dlep.Sender: buf must already be a complete
// wire.EncodeMessage result.
func (c *Conn) Send(buf []byte) error {
	if c.closed {
		return ErrSessionClosed
	}
	if _, err := c.conn.Write(buf); err != nil {
		return fmt.Errorf("session send: %w", err)
	}
	return nil
}

// ReadMessage blocks for one complete framed Message and returns the
// header+body bytes exactly as internal/wire.DecodeMessage expects.
func (c *Conn) ReadMessage() ([]byte, error) {
	header := make([]byte, messageHeaderLen)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, fmt.Errorf("session read header: %w", err)
	}

	bodyLen, err := wire.PeekMessageLength(header)
	if err != nil {
		return nil, fmt.Errorf("session read: %w", err)
	}

	buf := make([]byte, messageHeaderLen+int(bodyLen))
	copy(buf, header)
	if bodyLen > 0 {
		if _, err := io.ReadFull(c.conn, buf[messageHeaderLen:]); err != nil {
			return nil, fmt.Errorf("session read body: %w", err)
		}
	}

	return buf, nil
}

// RemoteAddr returns the peer's remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("session close: %w", err)
	}
	return nil
}
