// Package medianode is the node runtime: the client-library side of
// spec §4.3. Every node owns exactly one control port and exactly one
// dispatch goroutine reading it; the dispatch loop classifies each
// incoming opcode into one of six families and invokes the matching
// capability method on the node's implementation.
//
// Capabilities are modeled as optional interfaces a concrete node type
// may additionally satisfy, checked with a type assertion against the
// node's GeneralNode implementation — composition over the virtual
// inheritance the original design used, per spec §9's design notes.
package medianode

import (
	"context"
	"encoding/json"
	"fmt"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
	"github.com/alxayo/mediabroker/internal/logger"
	"github.com/alxayo/mediabroker/internal/port"
)

// GeneralNode is the mandatory interface every node implements.
// Real nodes override individual methods; BaseNode supplies the
// spec-mandated defaults for anything not overridden.
type GeneralNode interface {
	Start(performanceTime int64) error
	Stop(performanceTime int64, immediate bool) error
	Seek(mediaTime, performanceTime int64) error
	SetRunMode(mode RunMode) error
	TimeWarp(realTime int64) (performanceTime int64, err error)
	Preroll() error
	SetTimeSource(nodeID int32) error
	RequestCompleted(info map[string]any) error
}

// Producer is the optional producer capability.
type Producer interface {
	FormatProposal(desired any) (narrowed any, err error)
	PrepareToConnect(source, destination string, format any, name string) (actualSource string, finalFormat any, finalName string, err error)
	ProducerConnect(status error, source, destination string, format any, name string) error
	ProducerDisconnect(destination string) error
	FormatChangeRequested(destination string, format any) error
	AdditionalBufferRequested(destination string) (bufferID int32, err error)
	VideoClippingChanged(destination string, clip ClippingRegion) error
	SetBufferGroup(destination string, group BufferGroup) error
	GetLatency() (int64, error)
	GetInitialLatency() (int64, error)
	SetPlayRate(rate PlayRate) error
	EnableOutput(destination string, enabled bool) error
	SetRunModeDelay(delay int64) error
	LateNoticeReceived(howLate int64) error
}

// Consumer is the optional consumer capability.
type Consumer interface {
	GetNextInput(cookie int32) (input MediaInput, nextCookie int32, err error)
	AcceptFormat(proposed any) (narrowed any, err error)
	Connected(source, destination string, format any, name string) (MediaInput, error)
	Disconnected(destination string) error
	BufferReceived(hdr BufferHeader) error
	ProducerDataStatus(destination string, status int32) error
	GetLatencyFor(destination string) (int64, error)
	FormatChanged(destination string, format any) error
	SeekTagRequested(destination string, targetTime int64) (taggedTime int64, err error)
}

// TimeSource is the optional time-source capability.
type TimeSource interface {
	StartTimeSource(realTime int64) error
	StopTimeSource(realTime int64, immediate bool) error
	SeekTimeSource(performanceTime, realTime int64) error
	SnoozeUntil(performanceTime int64, withLatency bool, retry bool) error
}

// Controllable is the optional controllable capability: a parameter
// web plus get/set by parameter id.
type Controllable interface {
	GetParameterWeb() (ParameterWeb, error)
	GetParameterValue(id int32) (any, error)
	SetParameterValue(id int32, value any) error
}

// FileInterface is the optional file-interface capability
// (SPEC_FULL.md addition, grounded on Haiku's FileInterface.cpp).
type FileInterface interface {
	SetLocation(ref string) error
	GetLocation() (string, error)
	SetRef(ref string) error
}

// Request is the control-port wire envelope: an optional reply port
// name and opcode-specific JSON args. Exported so pkg/mediaroster can
// construct the same shape on the calling side of the wire.
type Request struct {
	ReplyPort string          `json:"reply_port,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// Response is the corresponding reply, sent back on the named reply
// port when one was given, carrying either a result or an error string.
type Response struct {
	Err    string          `json:"err,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ReplyPorts resolves a reply port name to a live *port.Port, for
// sending asynchronous responses (e.g. request-completed) back to the
// caller that named it.
type ReplyPorts interface {
	Get(name string) (*port.Port, bool)
}

// Node wires a control port to a GeneralNode implementation and runs
// its dispatch loop.
type Node struct {
	ID      int32
	Control *port.Port
	Impl    GeneralNode
	Replies ReplyPorts // may be nil if this node never needs to reply out-of-band
}

// New creates a node runtime around impl, listening on control.
func New(id int32, control *port.Port, impl GeneralNode) *Node {
	return &Node{ID: id, Control: control, Impl: impl}
}

// Run reads from the control port until ctx is cancelled or the port
// is closed, dispatching each envelope to impl's capability methods.
// It is meant to be the node's single dispatch goroutine.
func (n *Node) Run(ctx context.Context) {
	log := logger.WithNode(logger.Logger(), n.ID)
	for {
		env, err := n.Control.Receive(ctx, 0)
		if err != nil {
			if ctx.Err() != nil || mberrors.Is(err, mberrors.Transport) {
				return
			}
			log.Warn("control port receive error", "error", err)
			continue
		}
		n.dispatch(ctx, log, env)
	}
}

func (n *Node) dispatch(ctx context.Context, log interface {
	Warn(string, ...any)
}, env port.Envelope) {
	op := Opcode(env.Opcode)
	var req Request
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			log.Warn("malformed control-port payload", "opcode", op)
			return
		}
	}

	result, err := n.handle(op, req.Args)
	if req.ReplyPort == "" || n.Replies == nil {
		if err != nil {
			log.Warn("opcode handler failed with no reply port to report to", "opcode", op, "error", err)
		}
		return
	}
	rp, ok := n.Replies.Get(req.ReplyPort)
	if !ok {
		log.Warn("reply port not found", "reply_port", req.ReplyPort)
		return
	}
	resp := Response{}
	if err != nil {
		resp.Err = err.Error()
	} else if result != nil {
		raw, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			resp.Err = marshalErr.Error()
		} else {
			resp.Result = raw
		}
	}
	payload, _ := json.Marshal(resp)
	if sendErr := rp.Send(ctx, port.Envelope{Opcode: env.Opcode, Payload: payload}); sendErr != nil {
		log.Warn("failed to send reply", "reply_port", req.ReplyPort, "error", sendErr)
	}
}

func (n *Node) handle(op Opcode, args json.RawMessage) (any, error) {
	switch op.Family() {
	case familyGeneral:
		return n.handleGeneral(op, args)
	case familyProducer:
		return n.handleProducer(op, args)
	case familyConsumer:
		return n.handleConsumer(op, args)
	case familyTimeSource:
		return n.handleTimeSource(op, args)
	case familyFileInterface:
		return n.handleFileInterface(op, args)
	case familyControllable:
		return n.handleControllable(op, args)
	default:
		return nil, mberrors.NewArgument("medianode.dispatch", fmt.Errorf("opcode %#x in unknown family", uint32(op)))
	}
}

func decode[T any](args json.RawMessage) (T, error) {
	var v T
	if len(args) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(args, &v); err != nil {
		return v, mberrors.NewArgument("medianode.decode", err)
	}
	return v, nil
}
