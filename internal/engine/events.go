package engine

import "github.com/RudolfRTC/CCS-Charger/internal/canframe"

// EventKind identifies the kind of notification delivered on the
// engine's event stream. It folds the safety monitor's own event kinds
// in alongside the decode-derived ones so callers watch a single channel.
type EventKind uint8

const (
	EventStateChanged EventKind = iota
	EventErrorCodeReceived
	EventRawFrameReceived
	EventHeartbeatLost
	EventHeartbeatRestored
	EventMessageTimeout
	EventEmergencyStopTriggered
	EventEmergencyStopCleared
)

// Event is a single engine notification.
type Event struct {
	Kind EventKind

	OldState SupervisorState
	NewState SupervisorState

	ErrorCode        int
	ErrorDescription string

	Frame canframe.Frame

	Identifier uint32
	Reason     string
}
