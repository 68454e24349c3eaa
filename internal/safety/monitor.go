// Package safety implements the stateless clamping helpers and the
// stateful heartbeat, message-freshness and emergency-stop trackers that
// the protocol engine consults before every cyclic transmission.
package safety

import (
	"sync"
	"time"
)

// Limits holds the hard ceilings derived from the database's signal ranges
// together with the user ceilings that must stay inside them.
type Limits struct {
	mu sync.RWMutex

	hardMinV, hardMaxV float64
	hardMinA, hardMaxA float64
	hardMinW, hardMaxW float64

	userMaxV, userMaxA, userMaxW float64
}

// NewLimits builds a Limits set from the hard envelope and the initial
// user ceilings, saturating the latter into the former.
func NewLimits(hardMinV, hardMaxV, hardMinA, hardMaxA, hardMinW, hardMaxW float64, userMaxV, userMaxA, userMaxW float64) *Limits {
	l := &Limits{
		hardMinV: hardMinV, hardMaxV: hardMaxV,
		hardMinA: hardMinA, hardMaxA: hardMaxA,
		hardMinW: hardMinW, hardMaxW: hardMaxW,
	}
	l.SetUserMaxVoltage(userMaxV)
	l.SetUserMaxCurrent(userMaxA)
	l.SetUserMaxPower(userMaxW)
	return l
}

func saturate(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// SetUserMaxVoltage saturates the requested ceiling into the hard envelope
// before storing it, preserving the 0 <= user_max <= hard_max invariant.
func (l *Limits) SetUserMaxVoltage(v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userMaxV = saturate(v, 0, l.hardMaxV)
}

func (l *Limits) SetUserMaxCurrent(v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userMaxA = saturate(v, 0, l.hardMaxA)
}

func (l *Limits) SetUserMaxPower(v float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.userMaxW = saturate(v, 0, l.hardMaxW)
}

// ClampVoltage saturates a candidate voltage into [hardMinV, min(hardMaxV, userMaxV)].
func (l *Limits) ClampVoltage(v float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return saturate(v, l.hardMinV, min(l.hardMaxV, l.userMaxV))
}

// ClampCurrent saturates a candidate current into [hardMinA, min(hardMaxA, userMaxA)].
func (l *Limits) ClampCurrent(v float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return saturate(v, l.hardMinA, min(l.hardMaxA, l.userMaxA))
}

// ClampPower saturates a candidate power into [hardMinW, min(hardMaxW, userMaxW)].
func (l *Limits) ClampPower(v float64) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return saturate(v, l.hardMinW, min(l.hardMaxW, l.userMaxW))
}

// InVoltageRange is the non-saturating predicate form of ClampVoltage.
func (l *Limits) InVoltageRange(v float64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return v >= l.hardMinV && v <= min(l.hardMaxV, l.userMaxV)
}

func (l *Limits) InCurrentRange(v float64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return v >= l.hardMinA && v <= min(l.hardMaxA, l.userMaxA)
}

func (l *Limits) InPowerRange(v float64) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return v >= l.hardMinW && v <= min(l.hardMaxW, l.userMaxW)
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// EventKind identifies the kind of safety event delivered on the Events channel.
type EventKind uint8

const (
	HeartbeatLost EventKind = iota
	HeartbeatRestored
	MessageTimeout
	EmergencyStopTriggered
	EmergencyStopCleared
)

// Event is a single safety-monitor notification.
type Event struct {
	Kind       EventKind
	Identifier uint32 // populated for MessageTimeout
	Reason     string // populated for EmergencyStopTriggered
}

// Monitor bundles the heartbeat tracker, per-identifier freshness tracker
// and the emergency-stop latch behind a single event stream.
type Monitor struct {
	Limits *Limits

	heartbeatTimeout time.Duration
	freshnessTimeout time.Duration

	mu              sync.Mutex
	aliveLast       uint8
	aliveKnown      bool
	heartbeatOK     bool
	lastChangeTime  time.Time
	freshness       map[uint32]*freshnessEntry
	estopLatched    bool
	events          chan Event
}

type freshnessEntry struct {
	lastSeen  time.Time
	timedOut  bool
}

// NewMonitor builds a Monitor with the given limits and timeouts. events
// is buffered generously since the monitor must never block its callers
// (the cyclic tick and the inbound decode path).
func NewMonitor(limits *Limits, heartbeatTimeout, freshnessTimeout time.Duration) *Monitor {
	return &Monitor{
		Limits:           limits,
		heartbeatTimeout: heartbeatTimeout,
		freshnessTimeout: freshnessTimeout,
		heartbeatOK:      true,
		freshness:        make(map[uint32]*freshnessEntry),
		events:           make(chan Event, 64),
	}
}

// Events returns the monitor's event stream. Consume it from a single
// reader; it is never closed.
func (m *Monitor) Events() <-chan Event { return m.events }

func (m *Monitor) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		// Drop rather than block the tick or the decode path; a full
		// queue means nobody is listening and the event is stale anyway.
	}
}

// ObserveAliveCounter feeds the decoded ChargeInfo alive counter (0..14,
// 15 = SNA, ignored) into the heartbeat tracker. Any change refreshes the
// last-seen timestamp and clears a lost heartbeat.
func (m *Monitor) ObserveAliveCounter(counter uint8, now time.Time) {
	if counter == 15 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := !m.aliveKnown || counter != m.aliveLast
	m.aliveLast = counter
	m.aliveKnown = true
	if !changed {
		return
	}
	m.lastChangeTime = now
	wasLost := !m.heartbeatOK
	m.heartbeatOK = true
	if wasLost {
		m.emit(Event{Kind: HeartbeatRestored})
	}
}

// TickHeartbeat must be called every 100ms; it declares the heartbeat lost
// if too long has elapsed since the last observed counter change.
func (m *Monitor) TickHeartbeat(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.aliveKnown || !m.heartbeatOK {
		return
	}
	if now.Sub(m.lastChangeTime) > m.heartbeatTimeout {
		m.heartbeatOK = false
		m.emit(Event{Kind: HeartbeatLost})
	}
}

// HeartbeatOK reports the current heartbeat state.
func (m *Monitor) HeartbeatOK() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heartbeatOK
}

// ObserveMessage refreshes the last-seen time for identifier id and clears
// a sticky timeout flag if one was set.
func (m *Monitor) ObserveMessage(id uint32, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.freshness[id]
	if !ok {
		e = &freshnessEntry{}
		m.freshness[id] = e
	}
	e.lastSeen = now
	e.timedOut = false
}

// TickFreshness must be called every 100ms; any identifier whose age
// exceeds the freshness timeout and whose sticky flag is false is marked
// timed out and reported exactly once per transition.
func (m *Monitor) TickFreshness(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.freshness {
		if e.timedOut {
			continue
		}
		if now.Sub(e.lastSeen) > m.freshnessTimeout {
			e.timedOut = true
			m.emit(Event{Kind: MessageTimeout, Identifier: id})
		}
	}
}

// IsTimedOut reports whether identifier id is currently flagged stale.
func (m *Monitor) IsTimedOut(id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.freshness[id]
	return ok && e.timedOut
}

// TriggerEmergencyStop latches the e-stop and emits
// EmergencyStopTriggered exactly once per transition; it is idempotent
// while already latched.
func (m *Monitor) TriggerEmergencyStop(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.estopLatched {
		return
	}
	m.estopLatched = true
	m.emit(Event{Kind: EmergencyStopTriggered, Reason: reason})
}

// ClearEmergencyStop releases the latch and emits EmergencyStopCleared
// only when transitioning out of a latched state.
func (m *Monitor) ClearEmergencyStop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.estopLatched {
		return
	}
	m.estopLatched = false
	m.emit(Event{Kind: EmergencyStopCleared})
}

// EmergencyStopped reports whether the latch is currently set.
func (m *Monitor) EmergencyStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.estopLatched
}
