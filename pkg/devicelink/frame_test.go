package devicelink

import (
	"bytes"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/devlink-go/backup2/pkg/plist"
)

func TestPacketRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	d := plist.NewDict()
	d.Set("MessageName", plist.String("Hello"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- NewStreamWriter(clientConn).WritePacket(d)
	}()

	got, err := NewStreamReader(serverConn).ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WritePacket() error = %v", err)
	}

	if !plist.Equal(d, got) {
		t.Errorf("ReadPacket() = %#v, want %#v", got, d)
	}
}

func TestWritePacketFraming(t *testing.T) {
	var buf bytes.Buffer
	if err := NewStreamWriter(&buf).WritePacket(plist.String("x")); err != nil {
		t.Fatalf("WritePacket() error = %v", err)
	}

	frame := buf.Bytes()
	if len(frame) < lengthPrefixSize {
		t.Fatalf("frame too short: %d bytes", len(frame))
	}
	declared := binary.BigEndian.Uint32(frame[:lengthPrefixSize])
	if int(declared) != len(frame)-lengthPrefixSize {
		t.Errorf("length prefix = %d, payload = %d bytes",
			declared, len(frame)-lengthPrefixSize)
	}
}

func TestReadPacketErrors(t *testing.T) {
	t.Run("zero length prefix", func(t *testing.T) {
		frame := make([]byte, lengthPrefixSize)
		_, err := NewStreamReader(bytes.NewReader(frame)).ReadPacket()
		if !errors.Is(err, ErrPlist) {
			t.Errorf("error = %v, want ErrPlist", err)
		}
	})

	t.Run("oversized length prefix", func(t *testing.T) {
		frame := make([]byte, lengthPrefixSize)
		binary.BigEndian.PutUint32(frame, MaxPacketSize+1)
		_, err := NewStreamReader(bytes.NewReader(frame)).ReadPacket()
		if !errors.Is(err, ErrPlist) {
			t.Errorf("error = %v, want ErrPlist", err)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		frame := make([]byte, lengthPrefixSize+3)
		binary.BigEndian.PutUint32(frame, 100)
		_, err := NewStreamReader(bytes.NewReader(frame)).ReadPacket()
		if !errors.Is(err, ErrMux) {
			t.Errorf("error = %v, want ErrMux", err)
		}
	})

	t.Run("closed peer", func(t *testing.T) {
		clientConn, serverConn := net.Pipe()
		serverConn.Close()
		clientConn.SetReadDeadline(time.Now().Add(time.Second))
		_, err := NewStreamReader(clientConn).ReadPacket()
		if !errors.Is(err, ErrMux) {
			t.Errorf("error = %v, want ErrMux", err)
		}
		clientConn.Close()
	})
}
