// Package transport provides the uniform CAN channel interface the
// protocol engine drives: open/close a channel, enqueue outgoing frames,
// and receive frames and status transitions as events. Two backends
// implement it — a hardware backend bound to a real SocketCAN interface,
// and an in-process simulator used for development and tests.
package transport

import (
	"errors"

	"github.com/RudolfRTC/CCS-Charger/internal/canframe"
)

// Status is the observed state of a CAN channel as a backend reports it.
// Neither backend in this package produces StatusPassive or StatusBusOff.
type Status uint8

const (
	StatusDisconnected Status = iota
	StatusOK
	StatusWarning
	StatusPassive
	StatusBusOff
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusWarning:
		return "warning"
	case StatusPassive:
		return "passive"
	case StatusBusOff:
		return "bus-off"
	default:
		return "disconnected"
	}
}

// ErrLibraryLoad names a failure to load a vendor CAN library. Neither
// backend in this package returns it: the hardware backend binds SocketCAN
// directly and reports any interface open failure as ErrChannelOpen.
var ErrLibraryLoad = errors.New("transport: failed to load vendor CAN library")

// ErrChannelOpen is returned when the CAN interface cannot be opened,
// including when no interface of that name exists.
var ErrChannelOpen = errors.New("transport: channel open rejected")

// ErrWriteRejected is returned when Write is called on a closed
// transport, or the vendor write call itself fails.
var ErrWriteRejected = errors.New("transport: write rejected")

// EventKind distinguishes the two kinds of asynchronous notification a
// transport publishes.
type EventKind uint8

const (
	EventFrameReceived EventKind = iota
	EventStatusChanged
)

// Event is a single asynchronous notification from a transport's receiver.
type Event struct {
	Kind   EventKind
	Frame  canframe.Frame
	Status Status
}

// Transport is the uniform interface the protocol engine drives. Backends
// must never block the caller of Write or Events; delivery is
// single-producer, multi-reader via the channel returned by Events.
type Transport interface {
	// Open connects the channel. baud is backend-specific (bit rate for
	// hardware, ignored by the simulator).
	Open(channel string, baud int) error
	// Close requests the receiver to stop, bounded by an internal
	// deadline, and releases the channel.
	Close() error
	// Write enqueues a frame for transmission. A rejected write is
	// non-fatal; callers are expected to retry on their own cadence.
	Write(frame canframe.Frame) error
	// Status reports the last observed channel status.
	Status() Status
	// Channels enumerates channel names this backend can open.
	Channels() []string
	// LastError returns the most recent error observed by the receiver,
	// or nil.
	LastError() error
	// Events returns the transport's event stream. Close does not close
	// the channel.
	Events() <-chan Event
}
