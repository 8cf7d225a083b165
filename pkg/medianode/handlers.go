package medianode

import (
	"encoding/json"
	"fmt"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

func errNoCapability(op Opcode, capability string) error {
	return mberrors.NewState("medianode.dispatch", fmt.Errorf("opcode %#x requires the %s capability, which this node does not implement", uint32(op), capability))
}

func (n *Node) handleGeneral(op Opcode, args json.RawMessage) (any, error) {
	switch op {
	case OpStart:
		a, err := decode[struct {
			PerformanceTime int64 `json:"performance_time"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, n.Impl.Start(a.PerformanceTime)

	case OpStop:
		a, err := decode[struct {
			PerformanceTime int64 `json:"performance_time"`
			Immediate       bool  `json:"immediate"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, n.Impl.Stop(a.PerformanceTime, a.Immediate)

	case OpSeek:
		a, err := decode[struct {
			MediaTime       int64 `json:"media_time"`
			PerformanceTime int64 `json:"performance_time"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, n.Impl.Seek(a.MediaTime, a.PerformanceTime)

	case OpSetRunMode:
		a, err := decode[struct {
			Mode RunMode `json:"mode"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, n.Impl.SetRunMode(a.Mode)

	case OpTimeWarp:
		a, err := decode[struct {
			RealTime int64 `json:"real_time"`
		}](args)
		if err != nil {
			return nil, err
		}
		perf, err := n.Impl.TimeWarp(a.RealTime)
		return perf, err

	case OpPreroll:
		return nil, n.Impl.Preroll()

	case OpSetTimeSource:
		a, err := decode[struct {
			NodeID int32 `json:"node_id"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, n.Impl.SetTimeSource(a.NodeID)

	case OpRequestCompleted:
		a, err := decode[struct {
			Info map[string]any `json:"info"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, n.Impl.RequestCompleted(a.Info)

	default:
		return nil, mberrors.NewArgument("medianode.handleGeneral", fmt.Errorf("unknown general opcode %#x", uint32(op)))
	}
}

func (n *Node) producer() (Producer, error) {
	p, ok := n.Impl.(Producer)
	if !ok {
		return nil, errNoCapability(0, "producer")
	}
	return p, nil
}

func (n *Node) handleProducer(op Opcode, args json.RawMessage) (any, error) {
	p, err := n.producer()
	if err != nil {
		return nil, err
	}
	switch op {
	case OpFormatProposal:
		a, err := decode[struct {
			Desired any `json:"desired"`
		}](args)
		if err != nil {
			return nil, err
		}
		return p.FormatProposal(a.Desired)

	case OpPrepareToConnect:
		a, err := decode[struct {
			Source      string `json:"source"`
			Destination string `json:"destination"`
			Format      any    `json:"format"`
			Name        string `json:"name"`
		}](args)
		if err != nil {
			return nil, err
		}
		actualSource, finalFormat, finalName, err := p.PrepareToConnect(a.Source, a.Destination, a.Format, a.Name)
		if err != nil {
			return nil, err
		}
		return struct {
			ActualSource string `json:"actual_source"`
			FinalFormat  any    `json:"final_format"`
			FinalName    string `json:"final_name"`
		}{actualSource, finalFormat, finalName}, nil

	case OpProducerConnect:
		a, err := decode[struct {
			ConsumerErr string `json:"consumer_err"`
			Source      string `json:"source"`
			Destination string `json:"destination"`
			Format      any    `json:"format"`
			Name        string `json:"name"`
		}](args)
		if err != nil {
			return nil, err
		}
		var consumerErr error
		if a.ConsumerErr != "" {
			consumerErr = fmt.Errorf("%s", a.ConsumerErr)
		}
		return nil, p.ProducerConnect(consumerErr, a.Source, a.Destination, a.Format, a.Name)

	case OpProducerDisconnect:
		a, err := decode[struct {
			Destination string `json:"destination"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, p.ProducerDisconnect(a.Destination)

	case OpFormatChangeRequested:
		a, err := decode[struct {
			Destination string `json:"destination"`
			Format      any    `json:"format"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, p.FormatChangeRequested(a.Destination, a.Format)

	case OpAdditionalBufferRequested:
		a, err := decode[struct {
			Destination string `json:"destination"`
		}](args)
		if err != nil {
			return nil, err
		}
		return p.AdditionalBufferRequested(a.Destination)

	case OpVideoClippingChanged:
		a, err := decode[struct {
			Destination string         `json:"destination"`
			Clip        ClippingRegion `json:"clip"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, p.VideoClippingChanged(a.Destination, a.Clip)

	case OpSetBufferGroup:
		a, err := decode[struct {
			Destination string      `json:"destination"`
			Group       BufferGroup `json:"group"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, p.SetBufferGroup(a.Destination, a.Group)

	case OpGetLatency:
		return p.GetLatency()

	case OpGetInitialLatency:
		return p.GetInitialLatency()

	case OpSetPlayRate:
		a, err := decode[PlayRate](args)
		if err != nil {
			return nil, err
		}
		return nil, p.SetPlayRate(a)

	case OpEnableOutput:
		a, err := decode[struct {
			Destination string `json:"destination"`
			Enabled     bool   `json:"enabled"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, p.EnableOutput(a.Destination, a.Enabled)

	case OpSetRunModeDelay:
		a, err := decode[struct {
			Delay int64 `json:"delay"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, p.SetRunModeDelay(a.Delay)

	case OpLateNoticeReceived:
		a, err := decode[struct {
			HowLate int64 `json:"how_late"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, p.LateNoticeReceived(a.HowLate)

	default:
		return nil, mberrors.NewArgument("medianode.handleProducer", fmt.Errorf("unknown producer opcode %#x", uint32(op)))
	}
}

func (n *Node) consumer() (Consumer, error) {
	c, ok := n.Impl.(Consumer)
	if !ok {
		return nil, errNoCapability(0, "consumer")
	}
	return c, nil
}

func (n *Node) handleConsumer(op Opcode, args json.RawMessage) (any, error) {
	c, err := n.consumer()
	if err != nil {
		return nil, err
	}
	switch op {
	case OpGetNextInput:
		a, err := decode[struct {
			Cookie int32 `json:"cookie"`
		}](args)
		if err != nil {
			return nil, err
		}
		input, next, err := c.GetNextInput(a.Cookie)
		if err != nil {
			return nil, err
		}
		return struct {
			Input      MediaInput `json:"input"`
			NextCookie int32      `json:"next_cookie"`
		}{input, next}, nil

	case OpAcceptFormat:
		a, err := decode[struct {
			Proposed any `json:"proposed"`
		}](args)
		if err != nil {
			return nil, err
		}
		return c.AcceptFormat(a.Proposed)

	case OpConnected:
		a, err := decode[struct {
			Source      string `json:"source"`
			Destination string `json:"destination"`
			Format      any    `json:"format"`
			Name        string `json:"name"`
		}](args)
		if err != nil {
			return nil, err
		}
		return c.Connected(a.Source, a.Destination, a.Format, a.Name)

	case OpDisconnected:
		a, err := decode[struct {
			Destination string `json:"destination"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, c.Disconnected(a.Destination)

	case OpBufferReceived:
		a, err := decode[BufferHeader](args)
		if err != nil {
			return nil, err
		}
		return nil, c.BufferReceived(a)

	case OpProducerDataStatus:
		a, err := decode[struct {
			Destination string `json:"destination"`
			Status      int32  `json:"status"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, c.ProducerDataStatus(a.Destination, a.Status)

	case OpGetLatencyFor:
		a, err := decode[struct {
			Destination string `json:"destination"`
		}](args)
		if err != nil {
			return nil, err
		}
		return c.GetLatencyFor(a.Destination)

	case OpFormatChanged:
		a, err := decode[struct {
			Destination string `json:"destination"`
			Format      any    `json:"format"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, c.FormatChanged(a.Destination, a.Format)

	case OpSeekTagRequested:
		a, err := decode[struct {
			Destination string `json:"destination"`
			TargetTime  int64  `json:"target_time"`
		}](args)
		if err != nil {
			return nil, err
		}
		return c.SeekTagRequested(a.Destination, a.TargetTime)

	default:
		return nil, mberrors.NewArgument("medianode.handleConsumer", fmt.Errorf("unknown consumer opcode %#x", uint32(op)))
	}
}

func (n *Node) timeSource() (TimeSource, error) {
	ts, ok := n.Impl.(TimeSource)
	if !ok {
		return nil, errNoCapability(0, "time-source")
	}
	return ts, nil
}

func (n *Node) handleTimeSource(op Opcode, args json.RawMessage) (any, error) {
	ts, err := n.timeSource()
	if err != nil {
		return nil, err
	}
	switch op {
	case OpTSStart:
		a, err := decode[struct {
			RealTime int64 `json:"real_time"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, ts.StartTimeSource(a.RealTime)

	case OpTSStop:
		a, err := decode[struct {
			RealTime  int64 `json:"real_time"`
			Immediate bool  `json:"immediate"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, ts.StopTimeSource(a.RealTime, a.Immediate)

	case OpTSSeek:
		a, err := decode[struct {
			PerformanceTime int64 `json:"performance_time"`
			RealTime        int64 `json:"real_time"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, ts.SeekTimeSource(a.PerformanceTime, a.RealTime)

	case OpTSSnoozeUntil:
		a, err := decode[struct {
			PerformanceTime int64 `json:"performance_time"`
			WithLatency     bool  `json:"with_latency"`
			Retry           bool  `json:"retry"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, ts.SnoozeUntil(a.PerformanceTime, a.WithLatency, a.Retry)

	default:
		return nil, mberrors.NewArgument("medianode.handleTimeSource", fmt.Errorf("unknown time-source opcode %#x", uint32(op)))
	}
}

func (n *Node) fileInterface() (FileInterface, error) {
	fi, ok := n.Impl.(FileInterface)
	if !ok {
		return nil, errNoCapability(0, "file-interface")
	}
	return fi, nil
}

func (n *Node) handleFileInterface(op Opcode, args json.RawMessage) (any, error) {
	fi, err := n.fileInterface()
	if err != nil {
		return nil, err
	}
	switch op {
	case OpSetLocation:
		a, err := decode[struct {
			Ref string `json:"ref"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, fi.SetLocation(a.Ref)

	case OpGetLocation:
		return fi.GetLocation()

	case OpSetRef:
		a, err := decode[struct {
			Ref string `json:"ref"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, fi.SetRef(a.Ref)

	default:
		return nil, mberrors.NewArgument("medianode.handleFileInterface", fmt.Errorf("unknown file-interface opcode %#x", uint32(op)))
	}
}

func (n *Node) controllable() (Controllable, error) {
	c, ok := n.Impl.(Controllable)
	if !ok {
		return nil, errNoCapability(0, "controllable")
	}
	return c, nil
}

func (n *Node) handleControllable(op Opcode, args json.RawMessage) (any, error) {
	c, err := n.controllable()
	if err != nil {
		return nil, err
	}
	switch op {
	case OpGetParameterWeb:
		web, err := c.GetParameterWeb()
		if err != nil {
			return nil, err
		}
		// A web larger than a port's inline payload limit must be
		// fetched via shared memory instead; the broker-side buffer
		// registry, not this package, owns that handoff (spec §4.3).
		return web, nil

	case OpGetParameterValue:
		a, err := decode[struct {
			ID int32 `json:"id"`
		}](args)
		if err != nil {
			return nil, err
		}
		return c.GetParameterValue(a.ID)

	case OpSetParameterValue:
		a, err := decode[struct {
			ID    int32 `json:"id"`
			Value any   `json:"value"`
		}](args)
		if err != nil {
			return nil, err
		}
		return nil, c.SetParameterValue(a.ID, a.Value)

	default:
		return nil, mberrors.NewArgument("medianode.handleControllable", fmt.Errorf("unknown controllable opcode %#x", uint32(op)))
	}
}
