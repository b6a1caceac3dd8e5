// Package devicelink implements the client side of the device link
// protocol: length-framed property list exchange over an established
// connection, the DLMessage version handshake, and the raw byte
// primitives bulk transfers are built on.
package devicelink

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/devlink-go/backup2/pkg/plist"
	"github.com/pion/logging"
)

// Device link message tags. These are fixed wire constants.
const (
	DLMessageVersionExchange = "DLMessageVersionExchange"
	DLMessageDeviceReady     = "DLMessageDeviceReady"
	DLMessageProcessMessage  = "DLMessageProcessMessage"
	DLMessageDisconnect      = "DLMessageDisconnect"
	DLMessagePing            = "DLMessagePing"

	// DLVersionsOk acknowledges the device's advertised link version.
	DLVersionsOk = "DLVersionsOk"

	// EmptyParameterString fills message slots the wire format requires
	// but the caller has no value for.
	EmptyParameterString = "___EmptyParameterString___"
)

// Client is a device link endpoint over a connected byte stream. It is
// not safe for concurrent use; callers serialize access.
type Client struct {
	conn   net.Conn
	reader *StreamReader
	writer *StreamWriter
	log    logging.LeveledLogger

	mu     sync.Mutex
	closed bool
}

// Config configures a device link client.
type Config struct {
	// Conn is the established connection to the device service.
	// Required for NewClient; ignored by Connect.
	Conn net.Conn

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// NewClient creates a client over an already-connected conn. The
// client takes ownership of the conn.
func NewClient(config Config) (*Client, error) {
	if config.Conn == nil {
		return nil, ErrInvalidArgument
	}

	c := &Client{
		conn:   config.Conn,
		reader: NewStreamReader(config.Conn),
		writer: NewStreamWriter(config.Conn),
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("devicelink")
	}
	return c, nil
}

// Connect dials the device service at host:port over TCP and returns a
// client over the new connection.
func Connect(host string, port uint16, config Config) (*Client, error) {
	if host == "" || port == 0 {
		return nil, ErrInvalidArgument
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMux, err)
	}

	config.Conn = conn
	return NewClient(config)
}

// VersionExchange performs the link-level version handshake. The
// device opens with its link version; if it is newer than
// major.minor the handshake fails with ErrBadVersion. Otherwise the
// version is acknowledged and the device must report ready.
func (c *Client) VersionExchange(major, minor uint64) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	msg, err := c.reader.ReadPacket()
	if err != nil {
		return err
	}

	arr, ok := msg.(*plist.Array)
	if !ok || arr.Len() < 3 {
		return fmt.Errorf("%w: version exchange message", ErrPlist)
	}
	tag, err := plist.StringValue(arr.At(0))
	if err != nil || tag != DLMessageVersionExchange {
		return fmt.Errorf("%w: expected %s", ErrPlist, DLMessageVersionExchange)
	}
	devMajor, err := plist.UintValue(arr.At(1))
	if err != nil {
		return fmt.Errorf("%w: version exchange major: %v", ErrPlist, err)
	}
	devMinor, err := plist.UintValue(arr.At(2))
	if err != nil {
		return fmt.Errorf("%w: version exchange minor: %v", ErrPlist, err)
	}

	if c.log != nil {
		c.log.Debugf("device reports link version %d.%d", devMajor, devMinor)
	}
	if devMajor > major || (devMajor == major && devMinor > minor) {
		return fmt.Errorf("%w: device has %d.%d, client has %d.%d",
			ErrBadVersion, devMajor, devMinor, major, minor)
	}

	reply := plist.NewArray()
	reply.Append(plist.String(DLMessageVersionExchange))
	reply.Append(plist.String(DLVersionsOk))
	reply.Append(plist.UInt(major))
	if err := c.writer.WritePacket(reply); err != nil {
		return err
	}

	msg, err = c.reader.ReadPacket()
	if err != nil {
		return err
	}
	arr, ok = msg.(*plist.Array)
	if !ok || arr.Len() < 1 {
		return fmt.Errorf("%w: device ready message", ErrPlist)
	}
	tag, err = plist.StringValue(arr.At(0))
	if err != nil || tag != DLMessageDeviceReady {
		return fmt.Errorf("%w: expected %s", ErrPlist, DLMessageDeviceReady)
	}
	return nil
}

// Send transmits a structured document verbatim. This is the path for
// messages that are sequences rather than process-message envelopes.
func (c *Client) Send(v plist.Value) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if v == nil {
		return ErrInvalidArgument
	}
	return c.writer.WritePacket(v)
}

// SendProcessMessage wraps dict in a DLMessageProcessMessage envelope
// and transmits it.
func (c *Client) SendProcessMessage(dict *plist.Dict) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if dict == nil {
		return ErrInvalidArgument
	}

	msg := plist.NewArray()
	msg.Append(plist.String(DLMessageProcessMessage))
	msg.Append(dict)
	return c.writer.WritePacket(msg)
}

// ReceiveProcessMessage receives one message and unwraps its
// DLMessageProcessMessage envelope, returning the carried document.
func (c *Client) ReceiveProcessMessage() (plist.Value, error) {
	doc, tag, err := c.ReceiveMessage()
	if err != nil {
		return nil, err
	}
	if tag != DLMessageProcessMessage {
		if c.log != nil {
			c.log.Warnf("received %q while waiting for %s", tag, DLMessageProcessMessage)
		}
		return nil, fmt.Errorf("%w: expected %s, got %q", ErrPlist, DLMessageProcessMessage, tag)
	}

	payload := doc.(*plist.Array).At(1)
	if payload == nil {
		return nil, fmt.Errorf("%w: %s without payload", ErrPlist, DLMessageProcessMessage)
	}
	return payload, nil
}

// ReceiveMessage receives one structured message of any shape. When
// the message is a sequence led by a string tag, the tag is returned
// alongside the document so callers can branch on it.
func (c *Client) ReceiveMessage() (plist.Value, string, error) {
	if err := c.checkOpen(); err != nil {
		return nil, "", err
	}

	doc, err := c.reader.ReadPacket()
	if err != nil {
		return nil, "", err
	}

	var tag string
	if arr, ok := doc.(*plist.Array); ok && arr.Len() > 0 {
		if s, err := plist.StringValue(arr.At(0)); err == nil {
			tag = s
		}
	}
	return doc, tag, nil
}

// SendBytes writes raw bytes to the connection in a single shot; it
// may move fewer bytes than asked. Callers loop until done.
func (c *Client) SendBytes(p []byte) (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	n, err := c.conn.Write(p)
	if err != nil {
		return n, fmt.Errorf("%w: %v", ErrMux, err)
	}
	return n, nil
}

// ReceiveBytes reads raw bytes from the connection in a single shot;
// it may move fewer bytes than asked. Callers loop until done. A
// graceful end of stream returns 0 with no error.
func (c *Client) ReceiveBytes(p []byte) (int, error) {
	if err := c.checkOpen(); err != nil {
		return 0, err
	}
	n, err := c.conn.Read(p)
	if err != nil {
		if n > 0 {
			return n, nil
		}
		if isEOF(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrMux, err)
	}
	return n, nil
}

// Disconnect notifies the peer that the link is going away. An empty
// message is substituted with the wire format's placeholder sentinel.
func (c *Client) Disconnect(message string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if message == "" {
		message = EmptyParameterString
	}

	msg := plist.NewArray()
	msg.Append(plist.String(DLMessageDisconnect))
	msg.Append(plist.String(message))
	return c.writer.WritePacket(msg)
}

// Close closes the underlying connection. The client is unusable
// afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrMux, err)
	}
	return nil
}

func (c *Client) checkOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
