package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/RudolfRTC/CCS-Charger/internal/canframe"
	"github.com/RudolfRTC/CCS-Charger/internal/dbc"
	"github.com/RudolfRTC/CCS-Charger/internal/transport"
)

// fakeTransport is a minimal, deterministic Transport double: it records
// every Write and lets tests push Events synchronously, avoiding
// dependence on the simulator's own 100ms tick.
type fakeTransport struct {
	mu     sync.Mutex
	writes []canframe.Frame
	events chan transport.Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan transport.Event, 256)}
}

func (f *fakeTransport) Open(string, int) error { return nil }
func (f *fakeTransport) Close() error            { return nil }
func (f *fakeTransport) Write(frame canframe.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, frame)
	return nil
}
func (f *fakeTransport) Status() transport.Status  { return transport.StatusOK }
func (f *fakeTransport) Channels() []string        { return []string{"fake0"} }
func (f *fakeTransport) LastError() error          { return nil }
func (f *fakeTransport) Events() <-chan transport.Event { return f.events }

func (f *fakeTransport) writesSnapshot() []canframe.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]canframe.Frame, len(f.writes))
	copy(out, f.writes)
	return out
}

func loadTestDB(t *testing.T) *dbc.Database {
	t.Helper()
	db, err := dbc.Parse("../../testdata/sample.dbc")
	if err != nil {
		t.Fatalf("dbc.Parse: %v", err)
	}
	return db
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.CyclicPeriod = 20 * time.Millisecond
	return cfg
}

func TestResetModuleSendsStandardFrame(t *testing.T) {
	db := loadTestDB(t)
	tr := newFakeTransport()
	e := New(db, tr, DefaultConfig())

	if err := e.ResetModule(); err != nil {
		t.Fatalf("ResetModule: %v", err)
	}
	writes := tr.writesSnapshot()
	if len(writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(writes))
	}
	f := writes[0]
	if f.ID != ResetModuleID || f.Extended || f.DLC != 2 {
		t.Fatalf("frame = %+v", f)
	}
	if f.Data[0] != 0xFF || f.Data[1] != 0x00 {
		t.Fatalf("payload = % X", f.Data)
	}
}

func TestCyclicScheduleEmitsAllSixIdentifiers(t *testing.T) {
	db := loadTestDB(t)
	tr := newFakeTransport()
	e := New(db, tr, fastConfig())
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(500 * time.Millisecond)
	e.Stop()

	counts := map[uint32]int{}
	for _, f := range tr.writesSnapshot() {
		counts[f.ID]++
	}
	want := []uint32{0x1300, 0x1301, 0x1302, 0x1303, 0x1304, 0x1305}
	for _, id := range want {
		if counts[id] < 4 {
			t.Fatalf("identifier %#x seen %d times, want >= 4", id, counts[id])
		}
	}
}

func TestPreChargeClampsTargetCurrent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CyclicPeriod = 60 * time.Millisecond
	db := loadTestDB(t)
	tr := newFakeTransport()
	e := New(db, tr, cfg)
	e.SetChargeTargets(400, 100, 390) // request 100A target current
	e.Start()
	deliverChargeInfo(t, db, tr, e, StatePreCharge, 1)
	time.Sleep(90 * time.Millisecond)
	e.Stop()

	msg, _ := db.FindMessage(0x1301)
	found := false
	for _, f := range tr.writesSnapshot() {
		if f.ID != 0x1301 {
			continue
		}
		found = true
		sig, _ := msg.Signal("EVTargetCurrent")
		d, err := sig.Decode(f.Payload())
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if d.Physical > 2.0 {
			t.Fatalf("EVTargetCurrent = %v, want <= 2.0 while PreCharge", d.Physical)
		}
	}
	if !found {
		t.Fatal("no EVDCChargeTargets frame observed")
	}
}

func TestEmergencyStopDuringChargingForcesSafeState(t *testing.T) {
	db := loadTestDB(t)
	tr := newFakeTransport()
	e := New(db, tr, fastConfig())
	e.Start()
	e.RequestStartCharging()
	time.Sleep(40 * time.Millisecond)

	e.EmergencyStop("test trigger")
	time.Sleep(60 * time.Millisecond)
	e.Stop()

	if !e.EmergencyStopped() {
		t.Fatal("expected latch to read true")
	}
	msg, _ := db.FindMessage(0x1302)
	writes := tr.writesSnapshot()
	last := writes[len(writes)-1]
	for i := len(writes) - 1; i >= 0; i-- {
		if writes[i].ID == 0x1302 {
			last = writes[i]
			break
		}
	}
	ready, _ := msg.Signal("EVReady")
	progress, _ := msg.Signal("ChargeProgressIndication")
	stop, _ := msg.Signal("ChargeStopIndication")
	dReady, _ := ready.Decode(last.Payload())
	dProgress, _ := progress.Decode(last.Payload())
	dStop, _ := stop.Decode(last.Payload())
	if dReady.Raw != 0 {
		t.Fatalf("EVReady = %v, want 0", dReady.Raw)
	}
	if ChargeProgress(dProgress.Raw) != ChargeProgressStop {
		t.Fatalf("ChargeProgressIndication = %v, want Stop", dProgress.Raw)
	}
	if ChargeStop(dStop.Raw) != ChargeStopTerminate {
		t.Fatalf("ChargeStopIndication = %v, want Terminate", dStop.Raw)
	}
}

func TestChargeInfoStateChangeEmitsEvent(t *testing.T) {
	db := loadTestDB(t)
	tr := newFakeTransport()
	e := New(db, tr, fastConfig())
	e.Start()
	deliverChargeInfo(t, db, tr, e, StateInit, 1)

	select {
	case ev := <-e.Events():
		if ev.Kind != EventStateChanged || ev.NewState != StateInit {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected StateChanged event")
	}
	e.Stop()
	if e.Snapshot().State != StateInit {
		t.Fatalf("snapshot state = %v", e.Snapshot().State)
	}
}

func TestEVSEDCStatusMalfunctionTriggersEmergencyStop(t *testing.T) {
	db := loadTestDB(t)
	tr := newFakeTransport()
	e := New(db, tr, fastConfig())
	e.Start()
	defer e.Stop()

	msg, _ := db.FindMessage(0x1402)
	frame := canframe.NewZero(0x1402, true, 8)
	msg.EncodeSignalRaw(frame.Payload(), "StatusCode", 2) // Malfunction
	tr.events <- transportFrameEvent(frame)

	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case <-deadline:
			t.Fatal("emergency stop never latched")
		default:
		}
		if e.EmergencyStopped() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func deliverChargeInfo(t *testing.T, db *dbc.Database, tr *fakeTransport, e *Engine, state SupervisorState, alive uint8) {
	t.Helper()
	msg, ok := db.FindMessage(0x0600)
	if !ok {
		t.Fatal("ChargeInfo message missing from test database")
	}
	frame := canframe.NewZero(0x0600, true, 8)
	msg.EncodeSignalRaw(frame.Payload(), "StateMachineState", uint64(state))
	msg.EncodeSignalRaw(frame.Payload(), "AliveCounter", uint64(alive))
	tr.events <- transportFrameEvent(frame)
	time.Sleep(30 * time.Millisecond)
}

func transportFrameEvent(f canframe.Frame) transport.Event {
	return transport.Event{Kind: transport.EventFrameReceived, Frame: f}
}
