package devicelink

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/devlink-go/backup2/pkg/plist"
)

// Packets are framed with a 4-byte big-endian length prefix followed
// by a binary property list.
const lengthPrefixSize = 4

// MaxPacketSize bounds the size of a single structured packet. Bulk
// payload data moves over the raw byte path and is not framed.
const MaxPacketSize = 64 << 20

// StreamWriter frames property list packets onto an io.Writer.
type StreamWriter struct {
	w io.Writer
}

// NewStreamWriter creates a writer framing packets onto w.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// WritePacket marshals v and writes it with a length prefix.
func (sw *StreamWriter) WritePacket(v plist.Value) error {
	data, err := plist.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlist, err)
	}
	if len(data) > MaxPacketSize {
		return fmt.Errorf("%w: packet of %d bytes", ErrPlist, len(data))
	}

	var lenBuf [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := sw.w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrMux, err)
	}
	if _, err := sw.w.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrMux, err)
	}
	return nil
}

// StreamReader reads length-prefixed property list packets from an
// io.Reader.
type StreamReader struct {
	r io.Reader
}

// NewStreamReader creates a reader consuming packets from r.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

// ReadPacket reads one framed packet and decodes it.
func (sr *StreamReader) ReadPacket() (plist.Value, error) {
	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(sr.r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMux, err)
	}

	packetLen := binary.BigEndian.Uint32(lenBuf[:])
	if packetLen == 0 || packetLen > MaxPacketSize {
		return nil, fmt.Errorf("%w: packet of %d bytes", ErrPlist, packetLen)
	}

	data := make([]byte, packetLen)
	if _, err := io.ReadFull(sr.r, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMux, err)
	}

	v, err := plist.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlist, err)
	}
	return v, nil
}
