package medianode

// RunMode enumerates the node-level run modes (spec §4.3).
type RunMode int

const (
	RunModeIncreaseLatency RunMode = iota
	RunModeDecreasePrecision
	RunModeOffline
	RunModeRecording
)

// MediaInput is the final connection descriptor a consumer returns
// from Connected, including its chosen name.
type MediaInput struct {
	Source      string
	Destination string
	Format      any
	Name        string
}

// ClippingRegion carries a producer's video-clipping-changed payload.
type ClippingRegion struct {
	Regions []byte // opaque clipping rectangle list, shape left to the add-on
	Offset  [2]int32
}

// BufferGroup names a set of buffer ids a producer should draw from.
type BufferGroup struct {
	BufferIDs []int32
}

// PlayRate is a numerator/denominator rate, per spec §4.3
// ("set-play-rate (rate as numer/denom)").
type PlayRate struct {
	Numer int32
	Denom int32
}

// BufferHeader accompanies a buffer-received opcode: the buffer id plus
// a media-type-specific header (timestamp, flags, ...).
type BufferHeader struct {
	BufferID int32
	Header   map[string]any
}

// ParameterWeb is a tree of parameter groups and controls, exposed by
// the controllable capability. Fetched inline, or by shared-memory
// region id when its encoded size exceeds port.MaxPayload.
type ParameterWeb struct {
	Groups []ParameterGroup
}

// ParameterGroup is a named collection of parameters, possibly nested.
type ParameterGroup struct {
	Name       string
	Parameters []Parameter
	Subgroups  []ParameterGroup
}

// Parameter is one controllable value in a parameter web.
type Parameter struct {
	ID   int32
	Name string
	Kind string // e.g. "number", "enum", "text"
}
