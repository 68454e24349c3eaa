package transport

import (
	"sync"
	"time"

	"github.com/brutella/can"
	log "github.com/sirupsen/logrus"

	"github.com/RudolfRTC/CCS-Charger/internal/canframe"
)

// Hardware is a Transport backed by a real SocketCAN interface via
// brutella/can. The vendor library itself owns the receive loop and its
// retry/backoff cadence on empty reads and bus errors; Hardware's job is
// to translate its frames and to surface channel status transitions.
type Hardware struct {
	mu      sync.Mutex
	bus     *can.Bus
	channel string
	open    bool
	status  Status
	lastErr error
	events  chan Event
	done    chan struct{}
}

// NewHardware constructs an unopened hardware transport.
func NewHardware() *Hardware {
	return &Hardware{events: make(chan Event, 256), status: StatusDisconnected}
}

func (h *Hardware) Open(channel string, baud int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.open {
		return nil
	}
	bus, err := can.NewBusForInterfaceWithName(channel)
	if err != nil {
		h.lastErr = err
		log.WithError(err).WithField("channel", channel).Error("transport: failed to open CAN interface")
		return ErrChannelOpen
	}
	h.bus = bus
	h.channel = channel
	h.bus.Subscribe(h)
	h.done = make(chan struct{})
	h.open = true
	h.status = StatusOK

	go func() {
		if err := h.bus.ConnectAndPublish(); err != nil {
			h.mu.Lock()
			h.lastErr = err
			h.setStatusLocked(StatusDisconnected)
			h.mu.Unlock()
			log.WithError(err).WithField("channel", channel).Warn("transport: receive loop exited")
		}
		close(h.done)
	}()

	h.emit(Event{Kind: EventStatusChanged, Status: StatusOK})
	return nil
}

// Handle implements brutella/can's frame handler interface; it is invoked
// from the vendor library's receive loop, never from engine code.
func (h *Hardware) Handle(frame can.Frame) {
	translated := canframe.Frame{
		ID:        frame.ID & 0x1FFFFFFF,
		Extended:  frame.ID&0x80000000 != 0,
		DLC:       frame.Length,
		Data:      frame.Data,
		Timestamp: time.Now(),
	}
	h.emit(Event{Kind: EventFrameReceived, Frame: translated})
}

func (h *Hardware) Close() error {
	h.mu.Lock()
	if !h.open {
		h.mu.Unlock()
		return nil
	}
	h.open = false
	bus := h.bus
	done := h.done
	h.mu.Unlock()

	if bus != nil {
		_ = bus.Disconnect()
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		log.Warn("transport: receive goroutine did not exit within 2s, detaching")
	}

	h.mu.Lock()
	h.setStatusLocked(StatusDisconnected)
	h.mu.Unlock()
	return nil
}

func (h *Hardware) Write(frame canframe.Frame) error {
	h.mu.Lock()
	bus, open := h.bus, h.open
	h.mu.Unlock()
	if !open || bus == nil {
		return ErrWriteRejected
	}
	id := frame.ID
	if frame.Extended {
		id |= 0x80000000
	}
	err := bus.Publish(can.Frame{ID: id, Length: frame.DLC, Data: frame.Data})
	if err != nil {
		h.mu.Lock()
		h.lastErr = err
		h.setStatusLocked(StatusWarning)
		h.mu.Unlock()
		return ErrWriteRejected
	}
	return nil
}

func (h *Hardware) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *Hardware) Channels() []string {
	return []string{"can0", "can1"}
}

func (h *Hardware) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}

func (h *Hardware) Events() <-chan Event { return h.events }

func (h *Hardware) setStatusLocked(s Status) {
	h.status = s
	h.emit(Event{Kind: EventStatusChanged, Status: s})
}

func (h *Hardware) emit(ev Event) {
	select {
	case h.events <- ev:
	default:
	}
}
