package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/RudolfRTC/CCS-Charger/internal/canframe"
	"github.com/RudolfRTC/CCS-Charger/internal/dbc"
	"github.com/RudolfRTC/CCS-Charger/internal/safety"
	"github.com/RudolfRTC/CCS-Charger/internal/transport"
)

// Fallback identifiers used when a message name is absent from the
// loaded database — see Database.IdentifierOrFallback. ChargeInfo is the
// one documented discrepancy; the rest are held to the same policy for
// consistency.
const (
	fallbackEVDCMaxLimits          uint32 = 0x1300
	fallbackEVDCChargeTargets      uint32 = 0x1301
	fallbackEVStatusControl        uint32 = 0x1302
	fallbackEVStatusDisplay        uint32 = 0x1303
	fallbackEVPlugStatus           uint32 = 0x1304
	fallbackEVDCEnergyLimits       uint32 = 0x1305
	fallbackChargeInfo             uint32 = 0x0600
	fallbackEVSEDCMaxLimits        uint32 = 0x1400
	fallbackEVSEDCRegulationLimits uint32 = 0x1401
	fallbackEVSEDCStatus           uint32 = 0x1402
	fallbackSoftwareInfo           uint32 = 0x2001
	fallbackErrorCodes             uint32 = 0x2002
	fallbackSLACInfo               uint32 = 0x2003
)

// ResetModuleID is the standard (11-bit) frame identifier used by
// reset_module; it is the only standard-frame transmission in the system.
const ResetModuleID uint32 = 0x667

const preChargeCurrentClampA = 2.0

// Config carries the engine's construction-time knobs.
type Config struct {
	UserMaxVoltage, UserMaxCurrent, UserMaxPower float64
	HeartbeatTimeout, FreshnessTimeout           time.Duration
	CyclicPeriod                                 time.Duration
}

// DefaultConfig returns the documented external-interface defaults.
func DefaultConfig() Config {
	return Config{
		UserMaxVoltage:   500,
		UserMaxCurrent:   200,
		UserMaxPower:     100000,
		HeartbeatTimeout: 1500 * time.Millisecond,
		FreshnessTimeout: 1000 * time.Millisecond,
		CyclicPeriod:     100 * time.Millisecond,
	}
}

type ids struct {
	evDCMaxLimits, evDCChargeTargets, evStatusControl             uint32
	evStatusDisplay, evPlugStatus, evDCEnergyLimits                uint32
	chargeInfo, evseDCMaxLimits, evseDCRegulationLimits, evseDCStatus uint32
	softwareInfo, errorCodes, slacInfo                             uint32
}

// Engine owns the database, the safety monitor and the transport, runs
// the cyclic schedule, and decodes inbound frames into a supervisor
// snapshot. All mutation of VcuParameters and SupervisorSnapshot is
// guarded by mu; the safety monitor guards its own state with its own
// locks and is called without holding mu.
type Engine struct {
	db     *dbc.Database
	tr     transport.Transport
	safety *safety.Monitor
	period time.Duration
	ids    ids

	mu        sync.Mutex
	vcu       VcuParameters
	snapshot  SupervisorSnapshot
	running   bool
	ticker    *time.Ticker
	stopTick  chan struct{}
	tickWG    sync.WaitGroup

	events  chan Event
	stopRX  chan struct{}
	rxWG    sync.WaitGroup

	sessionID string
}

// New builds an Engine over the given database and transport. The
// transport must already be constructed (Open is the caller's
// responsibility; the engine only writes to and reads events from it).
func New(db *dbc.Database, tr transport.Transport, cfg Config) *Engine {
	limits := safety.NewLimits(-50, 6500, -50, 6500, 0, 3276700, cfg.UserMaxVoltage, cfg.UserMaxCurrent, cfg.UserMaxPower)
	e := &Engine{
		db:     db,
		tr:     tr,
		safety: safety.NewMonitor(limits, cfg.HeartbeatTimeout, cfg.FreshnessTimeout),
		period: cfg.CyclicPeriod,
		vcu:    NewVcuParameters(),
		snapshot: NewSupervisorSnapshot(),
		events: make(chan Event, 256),
		ids: ids{
			evDCMaxLimits:          db.IdentifierOrFallback("EVDCMaxLimits", fallbackEVDCMaxLimits),
			evDCChargeTargets:      db.IdentifierOrFallback("EVDCChargeTargets", fallbackEVDCChargeTargets),
			evStatusControl:        db.IdentifierOrFallback("EVStatusControl", fallbackEVStatusControl),
			evStatusDisplay:        db.IdentifierOrFallback("EVStatusDisplay", fallbackEVStatusDisplay),
			evPlugStatus:           db.IdentifierOrFallback("EVPlugStatus", fallbackEVPlugStatus),
			evDCEnergyLimits:       db.IdentifierOrFallback("EVDCEnergyLimits", fallbackEVDCEnergyLimits),
			chargeInfo:             db.IdentifierOrFallback("ChargeInfo", fallbackChargeInfo),
			evseDCMaxLimits:        db.IdentifierOrFallback("EVSEDCMaxLimits", fallbackEVSEDCMaxLimits),
			evseDCRegulationLimits: db.IdentifierOrFallback("EVSEDCRegulationLimits", fallbackEVSEDCRegulationLimits),
			evseDCStatus:           db.IdentifierOrFallback("EVSEDCStatus", fallbackEVSEDCStatus),
			softwareInfo:           db.IdentifierOrFallback("SoftwareInfo", fallbackSoftwareInfo),
			errorCodes:             db.IdentifierOrFallback("ErrorCodes", fallbackErrorCodes),
			slacInfo:               db.IdentifierOrFallback("SLACInfo", fallbackSLACInfo),
		},
	}
	return e
}

// Events returns the engine's merged notification stream (decode-derived
// events plus the safety monitor's own).
func (e *Engine) Events() <-chan Event { return e.events }

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		log.Warn("engine: event channel full, dropping event")
	}
}

// Snapshot returns a copy of the current supervisor snapshot.
func (e *Engine) Snapshot() SupervisorSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// VcuSnapshot returns a copy of the current VCU parameter block.
func (e *Engine) VcuSnapshot() VcuParameters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vcu
}

// SessionID identifies the current run of the cyclic schedule, freshly
// generated on each Start call, for correlating logs and telemetry
// across a single charging session.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Start arms the cyclic timer and begins consuming transport events. It
// is idempotent.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.stopTick = make(chan struct{})
	e.stopRX = make(chan struct{})
	e.sessionID = uuid.NewString()
	e.mu.Unlock()

	e.rxWG.Add(1)
	go e.runReceiver()

	e.tickWG.Add(1)
	go e.runScheduler()

	return nil
}

// Stop disarms the cyclic timer and enqueues one safe-state frame. It
// leaves the transport open and the receiver running.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopTick)
	e.mu.Unlock()
	e.tickWG.Wait()

	e.mu.Lock()
	e.vcu.safeState()
	frame := e.composeEVStatusControlLocked()
	e.mu.Unlock()
	_ = e.tr.Write(frame)
}

// runScheduler is the periodic scheduler: it holds the engine mutex,
// composes six frames, releases the mutex, then submits them to the
// transport in order. The emergency-stop latch is checked at the top of
// every tick, before composing frames.
func (e *Engine) runScheduler() {
	defer e.tickWG.Done()
	ticker := time.NewTicker(e.period)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopTick:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	e.mu.Lock()
	if e.safety.EmergencyStopped() {
		e.vcu.safeState()
	}
	frames := [...]canframe.Frame{
		e.composeEVDCMaxLimitsLocked(),
		e.composeEVDCChargeTargetsLocked(),
		e.composeEVStatusControlLocked(),
		e.composeEVStatusDisplayLocked(),
		e.composeEVPlugStatusLocked(),
		e.composeEVDCEnergyLimitsLocked(),
	}
	e.mu.Unlock()

	for _, f := range frames {
		if err := e.tr.Write(f); err != nil {
			log.WithError(err).WithField("id", fmt.Sprintf("%#x", f.ID)).Debug("engine: cyclic write rejected, retrying next tick")
		}
	}
}

func (e *Engine) zeroFrame(id uint32) canframe.Frame {
	return canframe.NewZero(id, true, 8)
}

func (e *Engine) encode(f *canframe.Frame, fields map[string]float64) {
	msg, ok := e.db.FindMessage(f.ID)
	if !ok {
		return
	}
	payload := f.Payload()
	for name, value := range fields {
		msg.EncodeSignal(payload, name, value)
	}
}

func (e *Engine) composeEVDCMaxLimitsLocked() canframe.Frame {
	f := e.zeroFrame(e.ids.evDCMaxLimits)
	e.encode(&f, map[string]float64{
		"EVMaxCurrent": e.vcu.MaxCurrent,
		"EVMaxVoltage": e.vcu.MaxVoltage,
		"EVMaxPower":   e.vcu.MaxPower,
		"EVFullSoC":    e.vcu.FullSoC,
		"EVBulkSoC":    e.vcu.BulkSoC,
	})
	return f
}

func (e *Engine) composeEVDCChargeTargetsLocked() canframe.Frame {
	f := e.zeroFrame(e.ids.evDCChargeTargets)
	targetCurrent := e.vcu.TargetCurrent
	if e.snapshot.State == StatePreCharge && targetCurrent > preChargeCurrentClampA {
		targetCurrent = preChargeCurrentClampA
	}
	e.encode(&f, map[string]float64{
		"EVTargetCurrent":    targetCurrent,
		"EVTargetVoltage":    e.vcu.TargetVoltage,
		"EVPreChargeVoltage": e.vcu.PreChargeVoltage,
	})
	return f
}

func (e *Engine) composeEVStatusControlLocked() canframe.Frame {
	f := e.zeroFrame(e.ids.evStatusControl)
	msg, ok := e.db.FindMessage(f.ID)
	if !ok {
		return f
	}
	payload := f.Payload()
	msg.EncodeSignalRaw(payload, "ChargeProgressIndication", uint64(e.vcu.ChargeProgressIndication))
	msg.EncodeSignalRaw(payload, "ChargeStopIndication", uint64(e.vcu.ChargeStopIndication))
	msg.EncodeSignalRaw(payload, "EVReady", boolRaw(e.vcu.EVReady))
	msg.EncodeSignalRaw(payload, "EVWeldingDetectionEnable", boolRaw(e.vcu.WeldingDetectionEnable))
	msg.EncodeSignalRaw(payload, "ChargeProtocolPriority", uint64(e.vcu.ChargeProtocolPriority))
	msg.EncodeSignalRaw(payload, "BCBControl", boolRaw(e.vcu.BCBControl))
	return f
}

func (e *Engine) composeEVStatusDisplayLocked() canframe.Frame {
	f := e.zeroFrame(e.ids.evStatusDisplay)
	msg, ok := e.db.FindMessage(f.ID)
	if !ok {
		return f
	}
	payload := f.Payload()
	msg.EncodeSignal(payload, "SoC", e.vcu.SoCPercent)
	msg.EncodeSignalRaw(payload, "EVErrorCode", uint64(e.vcu.ErrorCode))
	msg.EncodeSignalRaw(payload, "ChargingComplete", boolRaw(e.vcu.ChargingComplete))
	msg.EncodeSignalRaw(payload, "BulkComplete", boolRaw(e.vcu.BulkComplete))
	msg.EncodeSignalRaw(payload, "CabinConditioning", boolRaw(e.vcu.CabinConditioning))
	msg.EncodeSignalRaw(payload, "RESSConditioning", boolRaw(e.vcu.RESSConditioning))
	msg.EncodeSignalRaw(payload, "TimeToFullSoC", uint64(e.vcu.TimeToFullSoC))
	msg.EncodeSignalRaw(payload, "TimeToBulkSoC", uint64(e.vcu.TimeToBulkSoC))
	return f
}

func (e *Engine) composeEVPlugStatusLocked() canframe.Frame {
	f := e.zeroFrame(e.ids.evPlugStatus)
	e.encode(&f, map[string]float64{
		"CPDutyCycle": e.vcu.CPDuty,
	})
	msg, ok := e.db.FindMessage(f.ID)
	if ok {
		payload := f.Payload()
		msg.EncodeSignalRaw(payload, "CPState", uint64(e.vcu.CPState))
		msg.EncodeSignalRaw(payload, "ProximityPin", uint64(e.vcu.ProximityPin))
	}
	return f
}

func (e *Engine) composeEVDCEnergyLimitsLocked() canframe.Frame {
	f := e.zeroFrame(e.ids.evDCEnergyLimits)
	msg, ok := e.db.FindMessage(f.ID)
	if !ok {
		return f
	}
	payload := f.Payload()
	msg.EncodeSignalRaw(payload, "EVEnergyCapacity", uint64(e.vcu.EnergyCapacity))
	msg.EncodeSignalRaw(payload, "EVEnergyRequest", uint64(e.vcu.EnergyRequest))
	return f
}

func boolRaw(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// runReceiver consumes the transport's event stream, merges in safety
// monitor events, and drives the 100ms heartbeat/freshness ticks.
func (e *Engine) runReceiver() {
	defer e.rxWG.Done()
	freshnessTicker := time.NewTicker(100 * time.Millisecond)
	defer freshnessTicker.Stop()
	for {
		select {
		case <-e.stopRX:
			return
		case now := <-freshnessTicker.C:
			e.safety.TickHeartbeat(now)
			e.safety.TickFreshness(now)
			e.drainSafetyEvents()
		case ev, ok := <-e.tr.Events():
			if !ok {
				return
			}
			if ev.Kind == transport.EventFrameReceived {
				e.handleReceived(ev.Frame)
			}
			e.drainSafetyEvents()
		}
	}
}

// triggerEmergencyStop latches the e-stop and synchronously drains the
// resulting event so the forced safe-state frame goes out immediately,
// rather than waiting for the next 100ms freshness tick to notice it.
func (e *Engine) triggerEmergencyStop(reason string) {
	e.safety.TriggerEmergencyStop(reason)
	e.drainSafetyEvents()
}

func (e *Engine) drainSafetyEvents() {
	for {
		select {
		case sev := <-e.safety.Events():
			e.translateSafetyEvent(sev)
		default:
			return
		}
	}
}

func (e *Engine) translateSafetyEvent(sev safety.Event) {
	switch sev.Kind {
	case safety.HeartbeatLost:
		e.emit(Event{Kind: EventHeartbeatLost})
	case safety.HeartbeatRestored:
		e.emit(Event{Kind: EventHeartbeatRestored})
	case safety.MessageTimeout:
		e.emit(Event{Kind: EventMessageTimeout, Identifier: sev.Identifier})
	case safety.EmergencyStopTriggered:
		e.onEmergencyStopTriggered(sev.Reason)
		e.emit(Event{Kind: EventEmergencyStopTriggered, Reason: sev.Reason})
	case safety.EmergencyStopCleared:
		e.emit(Event{Kind: EventEmergencyStopCleared})
	}
}

// onEmergencyStopTriggered forces the safe state immediately and sends
// one extra EVStatusControl frame outside the cyclic schedule.
func (e *Engine) onEmergencyStopTriggered(reason string) {
	e.mu.Lock()
	e.vcu.safeState()
	frame := e.composeEVStatusControlLocked()
	e.mu.Unlock()
	_ = e.tr.Write(frame)
}

// handleReceived decodes one inbound frame, updates the snapshot and
// safety monitor, and emits the derived events. The snapshot is updated
// before RawFrameReceived and any derived event fires.
func (e *Engine) handleReceived(f canframe.Frame) {
	now := f.Timestamp
	if now.IsZero() {
		now = time.Now()
	}
	e.safety.ObserveMessage(f.ID, now)

	msg, ok := e.db.FindMessage(f.ID)
	if ok {
		decoded := msg.DecodeAll(f.Payload())
		e.applyDecoded(f.ID, decoded, now)
	}

	e.emit(Event{Kind: EventRawFrameReceived, Frame: f})
}

func (e *Engine) applyDecoded(id uint32, decoded []dbc.DecodedSignal, now time.Time) {
	byName := make(map[string]dbc.DecodedSignal, len(decoded))
	for _, d := range decoded {
		byName[d.Name] = d
	}

	e.mu.Lock()
	var stateChanged bool
	var oldState, newState SupervisorState
	var errorChanged bool
	var newErrCode int

	switch id {
	case e.ids.chargeInfo:
		oldState = e.snapshot.State
		if d, ok := byName["StateMachineState"]; ok {
			newState = SupervisorState(d.Raw)
			e.snapshot.State = newState
			if newState != oldState {
				stateChanged = true
			}
		}
		if d, ok := byName["AliveCounter"]; ok {
			e.snapshot.AliveCounter = uint8(d.Raw)
			if d.Raw != 15 {
				e.safety.ObserveAliveCounter(uint8(d.Raw), now)
			}
		}
		setI(byName, "ControlPilotState", &e.snapshot.ControlPilotState)
		setF(byName, "ControlPilotDuty", &e.snapshot.ControlPilotDuty)
		setI(byName, "ActiveProtocol", &e.snapshot.ActiveProtocol)
		setI(byName, "ProximityPin", &e.snapshot.ProximityPin)
		setB(byName, "S2Closed", &e.snapshot.S2Closed)
		setB(byName, "VoltageMatch", &e.snapshot.VoltageMatch)
		setB(byName, "Compatible", &e.snapshot.Compatible)
		setB(byName, "TCPUp", &e.snapshot.TCPUp)
		setB(byName, "BCBStatus", &e.snapshot.BCBStatus)
	case e.ids.evseDCMaxLimits:
		setF(byName, "EVSEMaxVoltage", &e.snapshot.EVSEMaxVoltage)
		setF(byName, "EVSEMaxCurrent", &e.snapshot.EVSEMaxCurrent)
		setF(byName, "EVSEMaxPower", &e.snapshot.EVSEMaxPower)
		setF(byName, "EVSEEnergyToDeliver", &e.snapshot.EVSEEnergyToDeliver)
	case e.ids.evseDCRegulationLimits:
		setF(byName, "EVSEMinVoltage", &e.snapshot.EVSEMinVoltage)
		setF(byName, "EVSEMinCurrent", &e.snapshot.EVSEMinCurrent)
		setF(byName, "EVSERipple", &e.snapshot.EVSERipple)
		setF(byName, "EVSETolerance", &e.snapshot.EVSETolerance)
	case e.ids.evseDCStatus:
		setF(byName, "PresentVoltage", &e.snapshot.PresentVoltage)
		setF(byName, "PresentCurrent", &e.snapshot.PresentCurrent)
		setI(byName, "IsolationStatus", &e.snapshot.IsolationStatus)
		setI(byName, "StatusCode", &e.snapshot.StatusCode)
		setI(byName, "NotificationCode", &e.snapshot.NotificationCode)
		setI(byName, "MaxDelay", &e.snapshot.MaxDelay)
		setB(byName, "LimitAchievedCurrent", &e.snapshot.LimitAchievedCurrent)
		setB(byName, "LimitAchievedVoltage", &e.snapshot.LimitAchievedVoltage)
		setB(byName, "LimitAchievedPower", &e.snapshot.LimitAchievedPower)
		if d, ok := byName["StatusCode"]; ok && d.HasLabel && (d.Label == "EmergencyShutdown" || d.Label == "Malfunction") {
			e.mu.Unlock()
			e.triggerEmergencyStop(fmt.Sprintf("EVSEDCStatus status code %s", d.Label))
			e.mu.Lock()
		}
	case e.ids.softwareInfo:
		setU8(byName, "FWVersionMajor", &e.snapshot.FWVersionMajor)
		setU8(byName, "FWVersionMinor", &e.snapshot.FWVersionMinor)
		setU8(byName, "FWVersionPatch", &e.snapshot.FWVersionPatch)
		setU8(byName, "FWVersionBuild", &e.snapshot.FWVersionBuild)
	case e.ids.errorCodes:
		oldLevel0 := e.snapshot.ErrorCodeLevel0
		setI(byName, "ErrorCodeLevel0", &e.snapshot.ErrorCodeLevel0)
		setI(byName, "ErrorCodeLevel1", &e.snapshot.ErrorCodeLevel1)
		setI(byName, "ErrorCodeLevel2", &e.snapshot.ErrorCodeLevel2)
		setI(byName, "ErrorCodeLevel3", &e.snapshot.ErrorCodeLevel3)
		if e.snapshot.ErrorCodeLevel0 != oldLevel0 && e.snapshot.ErrorCodeLevel0 > 1 {
			errorChanged = true
			newErrCode = e.snapshot.ErrorCodeLevel0
		}
	case e.ids.slacInfo:
		setI(byName, "SLACState", &e.snapshot.SLACState)
		setB(byName, "SLACLink", &e.snapshot.SLACLink)
		setI(byName, "SLACAttenuation", &e.snapshot.SLACAttenuation)
	}
	e.mu.Unlock()

	if stateChanged {
		e.emit(Event{Kind: EventStateChanged, OldState: oldState, NewState: newState})
	}
	if errorChanged {
		desc := safety.DescribeErrorCode(newErrCode)
		e.emit(Event{Kind: EventErrorCodeReceived, ErrorCode: newErrCode, ErrorDescription: desc.Label})
	}
}

func setF(m map[string]dbc.DecodedSignal, name string, dst *float64) {
	if d, ok := m[name]; ok {
		*dst = d.Physical
	}
}

func setI(m map[string]dbc.DecodedSignal, name string, dst *int) {
	if d, ok := m[name]; ok {
		*dst = int(d.Raw)
	}
}

func setU8(m map[string]dbc.DecodedSignal, name string, dst *uint8) {
	if d, ok := m[name]; ok {
		*dst = uint8(d.Raw)
	}
}

func setB(m map[string]dbc.DecodedSignal, name string, dst *bool) {
	if d, ok := m[name]; ok {
		*dst = d.Raw != 0
	}
}

// SetMaxLimits sets the VCU's outgoing EVDCMaxLimits fields.
func (e *Engine) SetMaxLimits(maxVoltage, maxCurrent, maxPower, fullSoC, bulkSoC float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vcu.MaxVoltage = e.safety.Limits.ClampVoltage(maxVoltage)
	e.vcu.MaxCurrent = e.safety.Limits.ClampCurrent(maxCurrent)
	e.vcu.MaxPower = e.safety.Limits.ClampPower(maxPower)
	e.vcu.FullSoC = fullSoC
	e.vcu.BulkSoC = bulkSoC
}

// SetChargeTargets sets the VCU's outgoing EVDCChargeTargets fields.
// The PreCharge current clamp, if applicable, is applied at frame
// composition time, not here.
func (e *Engine) SetChargeTargets(targetVoltage, targetCurrent, preChargeVoltage float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vcu.TargetVoltage = e.safety.Limits.ClampVoltage(targetVoltage)
	e.vcu.TargetCurrent = e.safety.Limits.ClampCurrent(targetCurrent)
	e.vcu.PreChargeVoltage = e.safety.Limits.ClampVoltage(preChargeVoltage)
}

// SetPlugStatus sets the VCU's outgoing EVPlugStatus fields.
func (e *Engine) SetPlugStatus(cpState int, cpDuty float64, proximityPin int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vcu.CPState = cpState
	e.vcu.CPDuty = cpDuty
	e.vcu.ProximityPin = proximityPin
}

// SetEnergyLimits sets the VCU's outgoing EVDCEnergyLimits fields.
func (e *Engine) SetEnergyLimits(capacity, request float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vcu.EnergyCapacity = capacity
	e.vcu.EnergyRequest = request
}

// SetSoC records the VCU's own outgoing state-of-charge display fields.
func (e *Engine) SetSoC(socPercent float64, timeToFull, timeToBulk int, chargingComplete, bulkComplete bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vcu.SoCPercent = socPercent
	e.vcu.TimeToFullSoC = timeToFull
	e.vcu.TimeToBulkSoC = timeToBulk
	e.vcu.ChargingComplete = chargingComplete
	e.vcu.BulkComplete = bulkComplete
}

// SetUserMaxVoltage, SetUserMaxCurrent and SetUserMaxPower forward to the
// safety monitor's saturating setters.
func (e *Engine) SetUserMaxVoltage(v float64) { e.safety.Limits.SetUserMaxVoltage(v) }
func (e *Engine) SetUserMaxCurrent(v float64) { e.safety.Limits.SetUserMaxCurrent(v) }
func (e *Engine) SetUserMaxPower(v float64)   { e.safety.Limits.SetUserMaxPower(v) }

// RequestStartCharging sets ev_ready=true, clears the error code and
// sets the stop indication to NoStop.
func (e *Engine) RequestStartCharging() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vcu.EVReady = true
	e.vcu.ErrorCode = 0
	e.vcu.ChargeStopIndication = ChargeStopNoStop
}

// RequestStopCharging sets progress=Stop, stop=Terminate.
func (e *Engine) RequestStopCharging() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vcu.ChargeProgressIndication = ChargeProgressStop
	e.vcu.ChargeStopIndication = ChargeStopTerminate
}

// EmergencyStop latches the e-stop and immediately forces the safe state,
// sending one extra EVStatusControl frame outside the cyclic schedule.
func (e *Engine) EmergencyStop(reason string) {
	e.triggerEmergencyStop(reason)
}

// ClearEmergencyStop releases the latch.
func (e *Engine) ClearEmergencyStop() {
	e.safety.ClearEmergencyStop()
}

// EmergencyStopped reports the current latch state.
func (e *Engine) EmergencyStopped() bool { return e.safety.EmergencyStopped() }

// ResetModule transmits the one-off standard reset frame: id 0x667,
// 2 bytes, payload FF 00.
func (e *Engine) ResetModule() error {
	f := canframe.New(ResetModuleID, false, []byte{0xFF, 0x00})
	return e.tr.Write(f)
}
