package medianode

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alxayo/mediabroker/internal/port"
)

type fakeProducerNode struct {
	BaseNode
	lastFormat any
}

func (f *fakeProducerNode) FormatProposal(desired any) (any, error) {
	f.lastFormat = desired
	return desired, nil
}
func (f *fakeProducerNode) PrepareToConnect(source, destination string, format any, name string) (string, any, string, error) {
	return source, format, name, nil
}
func (f *fakeProducerNode) ProducerConnect(status error, source, destination string, format any, name string) error {
	return status
}
func (f *fakeProducerNode) ProducerDisconnect(destination string) error { return nil }
func (f *fakeProducerNode) FormatChangeRequested(destination string, format any) error { return nil }
func (f *fakeProducerNode) AdditionalBufferRequested(destination string) (int32, error) {
	return 7, nil
}
func (f *fakeProducerNode) VideoClippingChanged(destination string, clip ClippingRegion) error {
	return nil
}
func (f *fakeProducerNode) SetBufferGroup(destination string, group BufferGroup) error { return nil }
func (f *fakeProducerNode) GetLatency() (int64, error)                                { return 1000, nil }
func (f *fakeProducerNode) GetInitialLatency() (int64, error)                          { return 2000, nil }
func (f *fakeProducerNode) SetPlayRate(rate PlayRate) error                            { return nil }
func (f *fakeProducerNode) EnableOutput(destination string, enabled bool) error        { return nil }
func (f *fakeProducerNode) SetRunModeDelay(delay int64) error                          { return nil }
func (f *fakeProducerNode) LateNoticeReceived(howLate int64) error                     { return nil }

func TestDispatchGeneralOpcode(t *testing.T) {
	impl := &fakeProducerNode{}
	n := New(1, port.New("ctl", 4), impl)

	args, _ := json.Marshal(struct {
		Mode RunMode `json:"mode"`
	}{RunModeRecording})
	env := port.Envelope{Opcode: uint32(OpSetRunMode), Payload: mustMarshalRequest(t, "", args)}

	n.dispatch(context.Background(), nopLogger{}, env)
	if impl.RunMode != RunModeRecording {
		t.Fatalf("expected run mode to be set, got %v", impl.RunMode)
	}
}

func TestDispatchReturnsCapabilityErrorWhenMissing(t *testing.T) {
	impl := &BaseNode{}
	n := New(1, port.New("ctl", 4), impl)
	replies := NewMapReplyPorts()
	n.Replies = replies
	rp := port.New("reply-1", 1)
	replies.Register("reply-1", rp)

	env := port.Envelope{Opcode: uint32(OpGetLatency), Payload: mustMarshalRequest(t, "reply-1", nil)}
	n.dispatch(context.Background(), nopLogger{}, env)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	replyEnv, err := rp.Receive(ctx, 0)
	if err != nil {
		t.Fatalf("expected a reply describing the missing capability: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(replyEnv.Payload, &resp); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if resp.Err == "" {
		t.Fatalf("expected an error in the reply for a node with no producer capability")
	}
}

func TestDispatchProducerRoundTrip(t *testing.T) {
	impl := &fakeProducerNode{}
	n := New(1, port.New("ctl", 4), impl)
	replies := NewMapReplyPorts()
	n.Replies = replies
	rp := port.New("reply-2", 1)
	replies.Register("reply-2", rp)

	args, _ := json.Marshal(struct {
		Destination string `json:"destination"`
	}{"out-0"})
	env := port.Envelope{Opcode: uint32(OpAdditionalBufferRequested), Payload: mustMarshalRequest(t, "reply-2", args)}
	n.dispatch(context.Background(), nopLogger{}, env)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	replyEnv, err := rp.Receive(ctx, 0)
	if err != nil {
		t.Fatalf("receive reply: %v", err)
	}
	var resp Response
	if err := json.Unmarshal(replyEnv.Payload, &resp); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if resp.Err != "" {
		t.Fatalf("unexpected error in reply: %s", resp.Err)
	}
	var bufferID int32
	if err := json.Unmarshal(resp.Result, &bufferID); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if bufferID != 7 {
		t.Fatalf("expected buffer id 7, got %d", bufferID)
	}
}

func TestRunExitsWhenControlPortClosed(t *testing.T) {
	impl := &BaseNode{}
	control := port.New("ctl", 2)
	n := New(1, control, impl)

	done := make(chan struct{})
	go func() {
		n.Run(context.Background())
		close(done)
	}()
	control.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("expected Run to return once the control port is closed")
	}
}

func mustMarshalRequest(t *testing.T, replyPort string, args json.RawMessage) []byte {
	t.Helper()
	b, err := json.Marshal(Request{ReplyPort: replyPort, Args: args})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return b
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}
