package backup

import (
	"bytes"

	"github.com/devlink-go/backup2/pkg/plist"
)

// fakeLink is a scriptable Link for driving the client without a
// device. Structured sends are recorded; structured receives are
// served from a queue; the raw channel is an in-memory buffer whose
// per-call transfer size can be capped to force the retry loops.
type fakeLink struct {
	versionExchangeErr error

	processMessages []*plist.Dict // SendProcessMessage arguments
	sequences       []plist.Value // Send arguments

	replies    []plist.Value // served by ReceiveProcessMessage
	receiveErr error

	wire          bytes.Buffer
	chunk         int // max bytes moved per raw call; 0 = unlimited
	rawSendErr    error
	failSendAfter int // successful SendBytes calls before rawSendErr applies
	sendCalls     int
	rawRecvErr    error

	disconnected bool
	closed       bool
}

func (f *fakeLink) VersionExchange(major, minor uint64) error {
	return f.versionExchangeErr
}

func (f *fakeLink) SendProcessMessage(dict *plist.Dict) error {
	f.processMessages = append(f.processMessages, dict)
	return nil
}

func (f *fakeLink) ReceiveProcessMessage() (plist.Value, error) {
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if len(f.replies) == 0 {
		return nil, nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *fakeLink) ReceiveMessage() (plist.Value, string, error) {
	doc, err := f.ReceiveProcessMessage()
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

func (f *fakeLink) Send(v plist.Value) error {
	f.sequences = append(f.sequences, v)
	return nil
}

func (f *fakeLink) SendBytes(p []byte) (int, error) {
	if f.rawSendErr != nil && f.sendCalls >= f.failSendAfter {
		return 0, f.rawSendErr
	}
	f.sendCalls++
	if f.chunk > 0 && len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.wire.Write(p)
}

func (f *fakeLink) ReceiveBytes(p []byte) (int, error) {
	if f.rawRecvErr != nil {
		return 0, f.rawRecvErr
	}
	if f.chunk > 0 && len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.wire.Read(p)
}

func (f *fakeLink) Disconnect(message string) error {
	f.disconnected = true
	return nil
}

func (f *fakeLink) Close() error {
	f.closed = true
	return nil
}

// queueReply enqueues a Response-style dict for the next structured
// receive.
func (f *fakeLink) queueReply(dict *plist.Dict) {
	f.replies = append(f.replies, dict)
}

func responseDict(fields map[string]plist.Value) *plist.Dict {
	d := plist.NewDict()
	d.Set("MessageName", plist.String("Response"))
	for k, v := range fields {
		d.Set(k, v)
	}
	return d
}
