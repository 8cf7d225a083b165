package medianode

// BaseNode supplies the spec-mandated default behavior for every
// mandatory opcode. Concrete node types embed BaseNode and override
// whichever methods their behavior actually needs; the rest fall
// through to these defaults, mirroring the original design's "real
// nodes override by subclassing" without virtual inheritance.
type BaseNode struct {
	RunMode RunMode
	// TimeSourceID is the node id this node is slaved to, 0 if none.
	TimeSourceID int32
}

func (b *BaseNode) Start(performanceTime int64) error { return nil }

func (b *BaseNode) Stop(performanceTime int64, immediate bool) error { return nil }

func (b *BaseNode) Seek(mediaTime, performanceTime int64) error { return nil }

func (b *BaseNode) SetRunMode(mode RunMode) error {
	b.RunMode = mode
	return nil
}

// TimeWarp's default maps real time to performance time one-to-one,
// i.e. this node has no independent clock of its own.
func (b *BaseNode) TimeWarp(realTime int64) (int64, error) {
	return realTime, nil
}

func (b *BaseNode) Preroll() error { return nil }

func (b *BaseNode) SetTimeSource(nodeID int32) error {
	b.TimeSourceID = nodeID
	return nil
}

// RequestCompleted's default is a no-op; nodes that issue asynchronous
// requests of their own override this to correlate the reply.
func (b *BaseNode) RequestCompleted(info map[string]any) error { return nil }
