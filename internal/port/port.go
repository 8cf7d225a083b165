// Package port implements the runtime's transport primitive: a typed,
// bounded-capacity message queue carrying a 32-bit opcode and a payload
// blob. Every broker-to-client and node-to-node interaction goes through
// a Port; buffer traffic (the actual media payload) never does —
// producers send buffer ids through a consumer's Port, and the payload
// itself lives in shared memory registered with the buffer registry.
package port

import (
	"context"
	"strconv"
	"sync"
	"time"

	mberrors "github.com/alxayo/mediabroker/internal/errors"
)

// MaxPayload is the largest payload a Port carries inline. Larger
// payloads must be handed off as a shared-memory region id instead.
const MaxPayload = 16 * 1024

// Default call timeouts per spec §4.1.
const (
	BrokerCallTimeout = 5 * time.Second
	NodeCallTimeout   = 1 * time.Second
)

// Envelope is the unit of transport: an opcode plus a payload blob.
type Envelope struct {
	Opcode  uint32
	Payload []byte
}

// Port is a bounded, typed, FIFO message queue. Exactly one goroutine
// may read from a given Port (the node's dispatch loop); many goroutines
// may send to it concurrently — a channel send is already atomic, so no
// additional locking is needed on this path.
type Port struct {
	name string
	ch   chan Envelope

	mu     sync.Mutex
	closed bool
}

// New creates a Port with the given well-known or generated name and
// queue capacity.
func New(name string, capacity int) *Port {
	if capacity <= 0 {
		capacity = 64
	}
	return &Port{name: name, ch: make(chan Envelope, capacity)}
}

// Name returns the port's well-known or generated identifier.
func (p *Port) Name() string { return p.name }

// Send enqueues env, blocking until space is available, ctx is done, or
// the port is closed. Payloads over MaxPayload are rejected — callers
// must register a shared-memory region and send its id instead.
func (p *Port) Send(ctx context.Context, env Envelope) (err error) {
	if len(env.Payload) > MaxPayload {
		return mberrors.NewArgument("port.send", errTooLarge(len(env.Payload)))
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return mberrors.NewTransport("port.send", errClosed)
	}
	// A Close that lands after the check above closes p.ch under this
	// send; the runtime panics on that, which is reported as Transport.
	defer func() {
		if recover() != nil {
			err = mberrors.NewTransport("port.send", errClosed)
		}
	}()
	select {
	case p.ch <- env:
		return nil
	case <-ctx.Done():
		return mberrors.NewTimeout("port.send", 0, ctx.Err())
	}
}

// Receive blocks for the next envelope, up to timeout. A non-positive
// timeout blocks until ctx is cancelled instead.
func (p *Port) Receive(ctx context.Context, timeout time.Duration) (Envelope, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	select {
	case env, ok := <-p.ch:
		if !ok {
			return Envelope{}, mberrors.NewTransport("port.receive", errClosed)
		}
		return env, nil
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return Envelope{}, mberrors.NewTimeout("port.receive", timeout, ctx.Err())
		}
		return Envelope{}, mberrors.NewTransport("port.receive", ctx.Err())
	}
}

// Close marks the port closed. Pending sends fail with Transport; a
// Close is idempotent.
func (p *Port) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errClosed = sentinelErr("port closed")

func errTooLarge(n int) error {
	return sentinelErr("payload of " + strconv.Itoa(n) + " bytes exceeds 16KiB inline limit")
}
