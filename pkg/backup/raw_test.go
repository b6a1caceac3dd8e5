package backup

import (
	"bytes"
	"errors"
	"testing"

	"github.com/devlink-go/backup2/pkg/devicelink"
)

func TestRawRoundTrip(t *testing.T) {
	// Cap the per-call transfer at a few bytes so the retry loops have
	// to run many iterations to move the payload.
	for _, chunk := range []int{1, 2, 3} {
		link := &fakeLink{chunk: chunk}
		c := newTestClient(t, link)

		payload := make([]byte, 257)
		for i := range payload {
			payload[i] = byte(i * 31)
		}

		n, err := c.SendRaw(payload)
		if err != nil {
			t.Fatalf("chunk %d: SendRaw() error = %v", chunk, err)
		}
		if n != len(payload) {
			t.Errorf("chunk %d: SendRaw() = %d, want %d", chunk, n, len(payload))
		}

		buf := make([]byte, len(payload))
		n, err = c.ReceiveRaw(buf)
		if err != nil {
			t.Fatalf("chunk %d: ReceiveRaw() error = %v", chunk, err)
		}
		if n != len(payload) {
			t.Errorf("chunk %d: ReceiveRaw() = %d, want %d", chunk, n, len(payload))
		}
		if !bytes.Equal(buf, payload) {
			t.Errorf("chunk %d: payload corrupted in transit", chunk)
		}
	}
}

func TestSendRawZeroBytesIsError(t *testing.T) {
	link := &fakeLink{rawSendErr: devicelink.ErrMux}
	c := newTestClient(t, link)

	n, err := c.SendRaw([]byte("payload"))
	if n != 0 {
		t.Errorf("SendRaw() = %d, want 0", n)
	}
	if !errors.Is(err, ErrLinkFailure) {
		t.Errorf("SendRaw() error = %v, want ErrLinkFailure", err)
	}
}

func TestSendRawPartialProgressIsSuccess(t *testing.T) {
	// The link accepts one chunk and then fails hard; the cumulative
	// count moved so far is reported without an error, mirroring the
	// protocol's partial-write accounting.
	link := &fakeLink{
		chunk:         4,
		rawSendErr:    devicelink.ErrMux,
		failSendAfter: 1,
	}
	c := newTestClient(t, link)

	n, err := c.SendRaw([]byte("12345678"))
	if err != nil {
		t.Fatalf("SendRaw() error = %v, want nil after partial progress", err)
	}
	if n != 4 {
		t.Errorf("SendRaw() = %d, want 4", n)
	}
}

func TestReceiveRawZeroBytesIsSuccess(t *testing.T) {
	// An immediate clean end-of-data is a zero count, not an error.
	link := &fakeLink{}
	c := newTestClient(t, link)

	buf := make([]byte, 16)
	n, err := c.ReceiveRaw(buf)
	if err != nil {
		t.Errorf("ReceiveRaw() error = %v, want nil", err)
	}
	if n != 0 {
		t.Errorf("ReceiveRaw() = %d, want 0", n)
	}
}

func TestReceiveRawPartial(t *testing.T) {
	link := &fakeLink{}
	link.wire.WriteString("abc")
	c := newTestClient(t, link)

	buf := make([]byte, 16)
	n, err := c.ReceiveRaw(buf)
	if err != nil {
		t.Fatalf("ReceiveRaw() error = %v", err)
	}
	if n != 3 || string(buf[:n]) != "abc" {
		t.Errorf("ReceiveRaw() = %d, %q, want 3, abc", n, buf[:n])
	}
}
