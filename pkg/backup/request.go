package backup

import (
	"github.com/devlink-go/backup2/pkg/devicelink"
	"github.com/devlink-go/backup2/pkg/plist"
)

// SendRequest builds a request message addressed to targetID and
// transmits it under the given request name (one of the Request*
// constants, or a free-form extension name). sourceID and options are
// optional; options is copied, so the caller keeps ownership of its
// value and may reuse it immediately.
func (c *Client) SendRequest(request, targetID, sourceID string, options *plist.Dict) error {
	if c.link == nil || request == "" || targetID == "" {
		return ErrInvalidArgument
	}

	dict := plist.NewDict()
	dict.Set(targetIdentifierKey, plist.String(targetID))
	if sourceID != "" {
		dict.Set(sourceIdentifierKey, plist.String(sourceID))
	}
	if options != nil {
		dict.Set(optionsKey, options.Copy())
	}
	return c.SendMessage(request, dict)
}

// SendStatusResponse transmits a status checkpoint to the device. The
// wire shape is a fixed 4-element sequence, not a dictionary envelope:
// the status-response tag, the code, and two status slots. Absent
// slots (empty status1, nil status2) are filled with the placeholder
// sentinel the wire format requires. code must be non-negative.
func (c *Client) SendStatusResponse(code int, status1 string, status2 plist.Value) error {
	if c.link == nil || code < 0 {
		return ErrInvalidArgument
	}

	msg := plist.NewArray()
	msg.Append(plist.String(statusResponseMessage))
	msg.Append(plist.UInt(uint64(code)))
	if status1 != "" {
		msg.Append(plist.String(status1))
	} else {
		msg.Append(plist.String(devicelink.EmptyParameterString))
	}
	if status2 != nil {
		msg.Append(status2.Copy())
	} else {
		msg.Append(plist.String(devicelink.EmptyParameterString))
	}

	if err := c.link.Send(msg); err != nil {
		if c.log != nil {
			c.log.Errorf("could not send status response %d: %v", code, err)
		}
		return mapLinkError(err)
	}
	return nil
}
