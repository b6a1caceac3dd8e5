package backup

import "fmt"

// SendRaw moves len(data) bytes of payload to the device over the
// link's raw byte channel, compensating for short writes. It returns
// the byte count actually moved. Moving nothing at all is a hard
// error: the peer expects the declared length, so a send can never
// silently succeed with zero bytes.
func (c *Client) SendRaw(data []byte) (int, error) {
	if c.link == nil {
		return 0, ErrInvalidArgument
	}

	sent := 0
	var lastErr error
	for {
		n, err := c.link.SendBytes(data[sent:])
		if n <= 0 {
			lastErr = err
			break
		}
		sent += n
		if sent >= len(data) {
			break
		}
	}

	if sent > 0 {
		return sent, nil
	}
	if lastErr != nil {
		return 0, fmt.Errorf("%w: %v", ErrLinkFailure, lastErr)
	}
	return 0, ErrLinkFailure
}

// ReceiveRaw moves up to len(buf) bytes of payload from the device
// into buf, compensating for short reads, and returns the byte count
// actually moved. A zero count is a valid terminal condition on a
// stream (graceful end of data), not a failure; this asymmetry with
// SendRaw is part of the protocol contract.
func (c *Client) ReceiveRaw(buf []byte) (int, error) {
	if c.link == nil {
		return 0, ErrInvalidArgument
	}

	received := 0
	for received < len(buf) {
		// Any non-positive read terminates the transfer; whatever has
		// arrived by then is the result.
		n, _ := c.link.ReceiveBytes(buf[received:])
		if n <= 0 {
			break
		}
		received += n
	}
	return received, nil
}
