package core

import "github.com/safedispatch/relay/internal/domain"

// Frame is an encoded outbound event, opaque to the hub.
type Frame []byte

// ConnID identifies one live transport connection.
type ConnID string

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}

// CallDirectory is the slice of the call store the hub needs for
// termination.
type CallDirectory interface {
	Deactivate(id domain.CallID)
}
