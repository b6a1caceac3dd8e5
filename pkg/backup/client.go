// Package backup implements the client core of the device backup and
// restore protocol: version negotiation, discriminated message
// exchange, request and status-response construction, and length-exact
// raw payload transfer over an established device link.
package backup

import (
	"fmt"

	"github.com/devlink-go/backup2/pkg/plist"
	"github.com/pion/logging"
)

// Link version advertised during the link-level handshake.
const (
	linkVersionMajor = 100
	linkVersionMinor = 0
)

// Wire vocabulary. These strings are fixed protocol constants and must
// be reproduced verbatim for interoperability.
const (
	messageNameKey        = "MessageName"
	errorCodeKey          = "ErrorCode"
	protocolVersionKey    = "ProtocolVersion"
	supportedVersionsKey  = "SupportedProtocolVersions"
	targetIdentifierKey   = "TargetIdentifier"
	sourceIdentifierKey   = "SourceIdentifier"
	optionsKey            = "Options"
	messageNameHello      = "Hello"
	messageNameResponse   = "Response"
	statusResponseMessage = "DLMessageStatusResponse"
)

// Request names understood by the device backup service. SendRequest
// also accepts free-form names for protocol extensions.
const (
	RequestBackup  = "Backup"
	RequestRestore = "Restore"
	RequestInfo    = "Info"
	RequestList    = "List"
)

// supportedProtocolVersions is the version set advertised in the
// Hello message, ascending.
var supportedProtocolVersions = []float64{2.0, 2.1}

// Link is the device link surface the backup client drives. It is
// satisfied by *devicelink.Client; tests substitute fakes.
type Link interface {
	VersionExchange(major, minor uint64) error
	SendProcessMessage(dict *plist.Dict) error
	ReceiveProcessMessage() (plist.Value, error)
	ReceiveMessage() (plist.Value, string, error)
	Send(v plist.Value) error
	SendBytes(p []byte) (int, error)
	ReceiveBytes(p []byte) (int, error)
	Disconnect(message string) error
	Close() error
}

// Client is a backup protocol session. It exclusively owns its Link
// for the session's lifetime. A Client is not safe for concurrent use;
// callers serialize access.
type Client struct {
	link Link
	log  logging.LeveledLogger

	protocolVersion float64
	negotiated      bool
}

// Config configures a backup client.
type Config struct {
	// Link is the established device link. Required. The client takes
	// exclusive ownership, including when New fails.
	Link Link

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// New creates a session over an established link and performs the
// link-level version handshake. On handshake failure the link is
// disconnected and closed before the error is returned, so no
// half-open link leaks.
func New(config Config) (*Client, error) {
	if config.Link == nil {
		return nil, ErrInvalidArgument
	}

	c := &Client{link: config.Link}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("backup")
	}

	if err := c.link.VersionExchange(linkVersionMajor, linkVersionMinor); err != nil {
		if c.log != nil {
			c.log.Errorf("link version exchange failed: %v", err)
		}
		c.link.Disconnect("")
		c.link.Close()
		return nil, mapLinkError(err)
	}

	return c, nil
}

// Close disconnects and releases the owned link. The link is closed
// even when the disconnect notification fails; the first error
// encountered is reported. Close must be called exactly once per
// successfully created Client.
func (c *Client) Close() error {
	if c == nil || c.link == nil {
		return ErrInvalidArgument
	}

	err := c.link.Disconnect("")
	if closeErr := c.link.Close(); err == nil {
		err = closeErr
	}
	c.link = nil
	return mapLinkError(err)
}

// Negotiate performs the protocol-level handshake: it advertises the
// supported protocol versions in a Hello message and records the
// version the device elects in its Response. The elected version is
// accepted as-is; callers inspect it via ProtocolVersion.
func (c *Client) Negotiate() error {
	if c.link == nil {
		return ErrInvalidArgument
	}

	versions := plist.NewArray()
	for _, v := range supportedProtocolVersions {
		versions.Append(plist.Real(v))
	}
	hello := plist.NewDict()
	hello.Set(supportedVersionsKey, versions)

	if err := c.SendMessage(messageNameHello, hello); err != nil {
		return err
	}

	reply, err := c.ReceiveMessage(messageNameResponse)
	if err != nil {
		return err
	}

	node, ok := reply.Get(errorCodeKey)
	if !ok {
		return fmt.Errorf("%w: %s missing %s", ErrMalformedMessage, messageNameResponse, errorCodeKey)
	}
	code, err := plist.UintValue(node)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if code != 0 {
		return fmt.Errorf("%w: error code %d", ErrPeerRejected, code)
	}

	node, ok = reply.Get(protocolVersionKey)
	if !ok {
		return fmt.Errorf("%w: %s missing %s", ErrMalformedMessage, messageNameResponse, protocolVersionKey)
	}
	version, err := plist.RealValue(node)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	c.protocolVersion = version
	c.negotiated = true
	if c.log != nil {
		c.log.Infof("using protocol version %g", version)
	}
	return nil
}

// ProtocolVersion returns the version the device elected during
// Negotiate. The value is meaningful only when ok is true.
func (c *Client) ProtocolVersion() (version float64, ok bool) {
	return c.protocolVersion, c.negotiated
}

// SendMessage transmits a protocol message. When name is non-empty, a
// copy of options (or a fresh dictionary) gains name under the
// MessageName key and is transmitted; the caller's options value is
// never mutated. When name is empty, options is transmitted verbatim.
// At least one of the two must be present.
func (c *Client) SendMessage(name string, options *plist.Dict) error {
	if c.link == nil || (name == "" && options == nil) {
		return ErrInvalidArgument
	}

	var err error
	if name != "" {
		var dict *plist.Dict
		if options != nil {
			dict = options.Copy().(*plist.Dict)
		} else {
			dict = plist.NewDict()
		}
		dict.Set(messageNameKey, plist.String(name))
		err = c.link.SendProcessMessage(dict)
	} else {
		err = c.link.SendProcessMessage(options)
	}

	if err != nil {
		if c.log != nil {
			c.log.Errorf("could not send message %q: %v", name, err)
		}
		return mapLinkError(err)
	}
	return nil
}

// ReceiveMessage receives one protocol message and verifies that its
// MessageName discriminator equals expected. On a match the received
// dictionary is returned for further field extraction; on a mismatch
// or a malformed message the document is discarded.
func (c *Client) ReceiveMessage(expected string) (*plist.Dict, error) {
	if c.link == nil || expected == "" {
		return nil, ErrInvalidArgument
	}

	doc, err := c.link.ReceiveProcessMessage()
	if err != nil {
		return nil, mapLinkError(err)
	}

	dict, ok := doc.(*plist.Dict)
	if !ok {
		return nil, fmt.Errorf("%w: message is not a dictionary", ErrMalformedMessage)
	}
	node, ok := dict.Get(messageNameKey)
	if !ok {
		if c.log != nil {
			c.log.Errorf("%s key not found in message", messageNameKey)
		}
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedMessage, messageNameKey)
	}
	name, err := plist.StringValue(node)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if name != expected {
		if c.log != nil {
			c.log.Errorf("received message %q while waiting for %q", name, expected)
		}
		return nil, fmt.Errorf("%w: got %q, want %q", ErrReplyMismatch, name, expected)
	}
	return dict, nil
}

// Receive passes through the link's generic receive, returning the
// document and the link-level message tag with no discriminator check.
// Callers use it to branch on peer-initiated messages outside the
// request/response pattern.
func (c *Client) Receive() (plist.Value, string, error) {
	if c.link == nil {
		return nil, "", ErrInvalidArgument
	}
	doc, tag, err := c.link.ReceiveMessage()
	if err != nil {
		return nil, "", mapLinkError(err)
	}
	return doc, tag, nil
}
