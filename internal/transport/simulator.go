package transport

import (
	"sync"
	"time"

	"github.com/RudolfRTC/CCS-Charger/internal/canframe"
)

// simState is the simulator's own tiny supervisor state machine, just
// enough to react plausibly to the frames the engine under test sends it.
type simState uint8

const (
	simDefault simState = iota
	simInit
	simParameter
	simPreCharge
	simCharge
)

// Simulator is an in-process Transport backend that manufactures a
// plausible CMS counterpart: it ticks every 100ms publishing the frames a
// real supervisor would send, and reacts to EVStatusControl frames
// written to it.
type Simulator struct {
	mu      sync.Mutex
	open    bool
	status  Status
	lastErr error
	events  chan Event
	stopCh  chan struct{}
	wg      sync.WaitGroup

	state      simState
	aliveCtr   uint8
	ticksAtDef int
	tickCount  int
}

// NewSimulator constructs an unopened simulator.
func NewSimulator() *Simulator {
	return &Simulator{events: make(chan Event, 256)}
}

func (s *Simulator) Open(channel string, baud int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return nil
	}
	s.open = true
	s.status = StatusOK
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.run()
	s.emit(Event{Kind: EventStatusChanged, Status: StatusOK})
	return nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil
	}
	s.open = false
	stopCh := s.stopCh
	s.mu.Unlock()

	close(stopCh)
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	s.mu.Lock()
	s.status = StatusDisconnected
	s.emit(Event{Kind: EventStatusChanged, Status: StatusDisconnected})
	s.mu.Unlock()
	return nil
}

func (s *Simulator) Write(frame canframe.Frame) error {
	s.mu.Lock()
	open := s.open
	s.mu.Unlock()
	if !open {
		return ErrWriteRejected
	}
	if frame.ID == 0x1302 {
		s.reactToStatusControl(frame)
	}
	return nil
}

func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Simulator) Channels() []string { return []string{"sim0"} }

func (s *Simulator) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Simulator) Events() <-chan Event { return s.events }

// Inject publishes an arbitrary frame as if it had arrived over the wire,
// used by tests to drive scenarios the periodic tick wouldn't reach.
func (s *Simulator) Inject(frame canframe.Frame) {
	s.emit(Event{Kind: EventFrameReceived, Frame: frame})
}

func (s *Simulator) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

func (s *Simulator) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	softwareInfoEvery := 100 // ~10s at 100ms
	tick := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			tick++
			s.publishTick(tick, tick%softwareInfoEvery == 0)
		}
	}
}

func (s *Simulator) publishTick(tick int, withSoftwareInfo bool) {
	s.mu.Lock()
	s.aliveCtr = (s.aliveCtr + 1) % 15
	if s.state == simDefault {
		s.ticksAtDef++
		if s.ticksAtDef >= 10 {
			s.state = simInit
		}
	}
	state := s.state
	alive := s.aliveCtr
	s.mu.Unlock()

	chargeInfo := canframe.NewZero(0x0600, true, 8)
	encodeUint(chargeInfo.Payload(), 8, 4, canframe.BigEndian, uint64(stateCode(state)))
	encodeUint(chargeInfo.Payload(), 8, 4, canframe.LittleEndian, uint64(alive))
	s.emit(Event{Kind: EventFrameReceived, Frame: chargeInfo})

	evseStatus := canframe.NewZero(0x1402, true, 8)
	s.emit(Event{Kind: EventFrameReceived, Frame: evseStatus})

	evseMaxLimits := canframe.NewZero(0x1400, true, 8)
	s.emit(Event{Kind: EventFrameReceived, Frame: evseMaxLimits})

	if tick%10 == 0 {
		errorCodes := canframe.NewZero(0x2002, true, 8)
		errorCodes.Data[0] = 1 // level 0 = STATUS_OK
		s.emit(Event{Kind: EventFrameReceived, Frame: errorCodes})
	}

	if withSoftwareInfo {
		swInfo := canframe.NewZero(0x2001, true, 8)
		s.emit(Event{Kind: EventFrameReceived, Frame: swInfo})
	}
}

func stateCode(s simState) int {
	switch s {
	case simInit:
		return 1
	case simParameter:
		return 3
	case simPreCharge:
		return 5
	case simCharge:
		return 6
	default:
		return 0
	}
}

// reactToStatusControl implements the simulator's embedded state machine:
// EVReady rising edge while below Parameter jumps to Parameter; charge
// progress indicating Start while in PreCharge advances to Charge; any
// other EVStatusControl frame received in Parameter advances to PreCharge.
func (s *Simulator) reactToStatusControl(frame canframe.Frame) {
	evReady, _ := decodeBit(frame.Payload(), 8)
	progress, _ := decodeUint(frame.Payload(), 0, 2, canframe.LittleEndian)

	s.mu.Lock()
	defer s.mu.Unlock()
	if evReady == 1 && s.state < simParameter {
		s.state = simParameter
		return
	}
	if progress == 1 && s.state == simPreCharge {
		s.state = simCharge
	}
	if s.state == simParameter {
		s.state = simPreCharge
	}
}

func encodeUint(payload []byte, startBit, length uint8, order canframe.ByteOrder, value uint64) {
	_ = canframe.InsertRaw(payload, startBit, length, order, value)
}

func decodeUint(payload []byte, startBit, length uint8, order canframe.ByteOrder) (uint64, error) {
	return canframe.ExtractRaw(payload, startBit, length, order)
}

func decodeBit(payload []byte, bit uint8) (uint64, error) {
	return canframe.ExtractRaw(payload, bit, 1, canframe.LittleEndian)
}
