package mediaroster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alxayo/mediabroker/internal/broker/notify"
	"github.com/alxayo/mediabroker/internal/broker/registry"
	mberrors "github.com/alxayo/mediabroker/internal/errors"
	"github.com/alxayo/mediabroker/internal/logger"
	"github.com/alxayo/mediabroker/internal/port"
	"github.com/alxayo/mediabroker/pkg/medianode"
)

// ConnectParams names one producer output / consumer input pair to
// connect, per spec §4.2.2.
type ConnectParams struct {
	Producer      int32
	Consumer      int32
	DesiredFormat any
	Name          string
	MuteOnConnect bool
}

// Connection is the handshake's successful result.
type Connection struct {
	Producer    int32
	Consumer    int32
	Source      string
	Destination string
	Format      any
	Name        string
}

// Connect drives the exact five-step handshake of spec §4.2.2 as a
// single user-visible operation: propose format, accept format,
// prepare-to-connect, consumer-connected, producer-connect. On success
// it publishes the updated endpoint lists to the node registry and
// raises a connection-made notification.
func (r *Roster) Connect(ctx context.Context, p ConnectParams) (Connection, error) {
	producerControl, err := r.controlPortFor(p.Producer)
	if err != nil {
		return Connection{}, err
	}
	consumerControl, err := r.controlPortFor(p.Consumer)
	if err != nil {
		return Connection{}, err
	}

	srcName := fmt.Sprintf("node-%d-out", p.Producer)
	destName := fmt.Sprintf("node-%d-in", p.Consumer)

	// 1. Propose format.
	var narrowed any
	if err := r.call(ctx, producerControl, medianode.OpFormatProposal,
		struct {
			Desired any `json:"desired"`
		}{p.DesiredFormat}, &narrowed); err != nil {
		return Connection{}, mberrors.NewState("mediaroster.Connect", fmt.Errorf("format mismatch proposing to producer %d: %w", p.Producer, err))
	}

	// 2. Accept format.
	var accepted any
	if err := r.call(ctx, consumerControl, medianode.OpAcceptFormat,
		struct {
			Proposed any `json:"proposed"`
		}{narrowed}, &accepted); err != nil {
		return Connection{}, mberrors.NewState("mediaroster.Connect", fmt.Errorf("format mismatch accepting on consumer %d: %w", p.Consumer, err))
	}

	// 3. Prepare-to-connect. From this point on the producer has
	// reserved the output; any failure below must be carried into step
	// 5 so the producer can roll back the reservation itself.
	var prep struct {
		ActualSource string `json:"actual_source"`
		FinalFormat  any    `json:"final_format"`
		FinalName    string `json:"final_name"`
	}
	if err := r.call(ctx, producerControl, medianode.OpPrepareToConnect,
		struct {
			Source      string `json:"source"`
			Destination string `json:"destination"`
			Format      any    `json:"format"`
			Name        string `json:"name"`
		}{srcName, destName, accepted, p.Name}, &prep); err != nil {
		return Connection{}, err
	}

	// 4. Consumer-connected.
	var mediaInput medianode.MediaInput
	connErr := r.call(ctx, consumerControl, medianode.OpConnected,
		struct {
			Source      string `json:"source"`
			Destination string `json:"destination"`
			Format      any    `json:"format"`
			Name        string `json:"name"`
		}{prep.ActualSource, destName, prep.FinalFormat, prep.FinalName}, &mediaInput)

	// 5. Producer-connect, unconditionally: this is how the producer
	// either finalizes the connection or rolls back its step-3
	// reservation, based on whether connErr is nil.
	pcArgs := struct {
		ConsumerErr string `json:"consumer_err"`
		Source      string `json:"source"`
		Destination string `json:"destination"`
		Format      any    `json:"format"`
		Name        string `json:"name"`
	}{Source: prep.ActualSource, Destination: destName, Format: prep.FinalFormat, Name: prep.FinalName}
	if connErr != nil {
		pcArgs.ConsumerErr = connErr.Error()
	}
	if err := r.call(ctx, producerControl, medianode.OpProducerConnect, pcArgs, nil); err != nil {
		return Connection{}, err
	}
	if connErr != nil {
		return Connection{}, mberrors.NewState("mediaroster.Connect", fmt.Errorf("consumer %d rejected connection: %w", p.Consumer, connErr))
	}

	if p.MuteOnConnect {
		_ = r.call(ctx, producerControl, medianode.OpEnableOutput,
			struct {
				Destination string `json:"destination"`
				Enabled     bool   `json:"enabled"`
			}{destName, false}, nil)
	}

	r.publishEndpoints(p.Producer, p.Consumer, prep.ActualSource, destName, prep.FinalFormat, mediaInput.Name)
	r.notifier.PublishEvent(notify.Event{
		Kind:      notify.ConnectionMade,
		NodeID:    p.Producer,
		Data:      map[string]any{"consumer": p.Consumer, "destination": destName},
		Timestamp: time.Now(),
	})

	return Connection{
		Producer:    p.Producer,
		Consumer:    p.Consumer,
		Source:      prep.ActualSource,
		Destination: destName,
		Format:      prep.FinalFormat,
		Name:        mediaInput.Name,
	}, nil
}

// Disconnect breaks a connection symmetrically: producer-disconnect
// then consumer-disconnected, both unconditional, followed by a
// refreshed endpoint publication and a connection-broken notification.
func (r *Roster) Disconnect(ctx context.Context, producer, consumer int32, destination string) error {
	producerControl, err := r.controlPortFor(producer)
	if err != nil {
		return err
	}
	consumerControl, err := r.controlPortFor(consumer)
	if err != nil {
		return err
	}

	_ = r.call(ctx, producerControl, medianode.OpProducerDisconnect,
		struct {
			Destination string `json:"destination"`
		}{destination}, nil)
	_ = r.call(ctx, consumerControl, medianode.OpDisconnected,
		struct {
			Destination string `json:"destination"`
		}{destination}, nil)

	r.clearEndpoint(producer, consumer, destination)
	r.notifier.PublishEvent(notify.Event{
		Kind:      notify.ConnectionBroken,
		NodeID:    producer,
		Data:      map[string]any{"consumer": consumer, "destination": destination},
		Timestamp: time.Now(),
	})
	return nil
}

func (r *Roster) controlPortFor(nodeID int32) (*port.Port, error) {
	n, err := r.Acquire(nodeID)
	if err != nil {
		return nil, err
	}
	if r.ports == nil {
		return nil, mberrors.NewState("mediaroster.controlPortFor", fmt.Errorf("no port directory bound"))
	}
	p, ok := r.ports.Lookup(n.ControlPort)
	if !ok {
		return nil, mberrors.NewNotFound("mediaroster.controlPortFor", fmt.Errorf("control port %q for node %d not resolvable", n.ControlPort, nodeID))
	}
	return p, nil
}

// call issues a request/response round trip over target's control
// port, acquiring a reply port from the pool for the duration of the
// call.
func (r *Roster) call(ctx context.Context, target *port.Port, op medianode.Opcode, args any, result any) error {
	rp, err := r.replyPool.Acquire(ctx)
	if err != nil {
		return mberrors.NewTransport("mediaroster.call", err)
	}
	defer r.replyPool.Release(rp)

	r.replies.Register(rp.Name(), rp)
	defer r.replies.Unregister(rp.Name())

	var argsJSON json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return mberrors.NewArgument("mediaroster.call", err)
		}
		argsJSON = b
	}
	reqJSON, err := json.Marshal(medianode.Request{ReplyPort: rp.Name(), Args: argsJSON})
	if err != nil {
		return mberrors.NewArgument("mediaroster.call", err)
	}

	if err := target.Send(ctx, port.Envelope{Opcode: uint32(op), Payload: reqJSON}); err != nil {
		return err
	}

	env, err := rp.Receive(ctx, port.BrokerCallTimeout)
	if err != nil {
		return err
	}
	var resp medianode.Response
	if err := json.Unmarshal(env.Payload, &resp); err != nil {
		return mberrors.NewArgument("mediaroster.call", err)
	}
	if resp.Err != "" {
		return mberrors.NewRemote("mediaroster.call", fmt.Errorf("%s", resp.Err))
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return mberrors.NewArgument("mediaroster.call", err)
		}
	}
	return nil
}

func (r *Roster) publishEndpoints(producer, consumer int32, source, destination string, finalFormat any, name string) {
	r.mu.Lock()
	r.outputs[producer] = append(r.outputs[producer], registry.Endpoint{Port: source, Name: name, Format: finalFormat})
	r.inputs[consumer] = append(r.inputs[consumer], registry.Endpoint{Port: destination, Name: name, Format: finalFormat})
	outs := append([]registry.Endpoint(nil), r.outputs[producer]...)
	ins := append([]registry.Endpoint(nil), r.inputs[consumer]...)
	r.mu.Unlock()

	if err := r.nodes.PublishOutputs(producer, outs); err != nil {
		logger.Logger().Warn("publish outputs after connect failed", "node_id", producer, "error", err)
	}
	if err := r.nodes.PublishInputs(consumer, ins); err != nil {
		logger.Logger().Warn("publish inputs after connect failed", "node_id", consumer, "error", err)
	}
}

func (r *Roster) clearEndpoint(producer, consumer int32, destination string) {
	r.mu.Lock()
	r.outputs[producer] = removeEndpoint(r.outputs[producer], destination)
	r.inputs[consumer] = removeEndpoint(r.inputs[consumer], destination)
	outs := append([]registry.Endpoint(nil), r.outputs[producer]...)
	ins := append([]registry.Endpoint(nil), r.inputs[consumer]...)
	r.mu.Unlock()

	if err := r.nodes.PublishOutputs(producer, outs); err != nil {
		logger.Logger().Warn("publish outputs after disconnect failed", "node_id", producer, "error", err)
	}
	if err := r.nodes.PublishInputs(consumer, ins); err != nil {
		logger.Logger().Warn("publish inputs after disconnect failed", "node_id", consumer, "error", err)
	}
}

func removeEndpoint(list []registry.Endpoint, portName string) []registry.Endpoint {
	out := list[:0]
	for _, ep := range list {
		if ep.Port != portName {
			out = append(out, ep)
		}
	}
	return out
}
