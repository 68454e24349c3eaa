// Package dbc parses the textual DBC bus description and exposes messages
// by identifier and signals by name with their bit layout, scaling and
// value enumerations, grounded on the line-oriented EDS parsing style of
// the object dictionary this module was adapted from.
package dbc

import (
	"github.com/RudolfRTC/CCS-Charger/internal/canframe"
)

// SNA is the conventional value-description label meaning "signal not
// available": the producer did not populate this signal.
const SNA = "SNA"

// SignalDef describes one scalar field embedded in a message's payload.
type SignalDef struct {
	Name      string
	StartBit  uint8
	Length    uint8
	Order     canframe.ByteOrder
	Signed    bool
	Factor    float64
	Offset    float64
	Min       float64
	Max       float64
	Unit      string
	Values    map[int64]string
	Default   *uint64
	Receivers []string
}

// DecodedSignal is the result of decoding one signal out of a frame.
type DecodedSignal struct {
	Name      string
	Raw       uint64
	Physical  float64
	Unit      string
	Label     string
	HasLabel  bool
	Valid     bool
}

// ExtractPhysical decodes the signal's raw value out of payload and
// converts it to a physical value. Codec misses (short payload) are
// reported, not panicked on; callers decide whether to log and skip.
func (s SignalDef) ExtractPhysical(payload []byte) (physical float64, raw uint64, err error) {
	raw, err = canframe.ExtractRaw(payload, s.StartBit, s.Length, s.Order)
	if err != nil {
		return 0, 0, err
	}
	physical = s.rawToPhysical(raw)
	return physical, raw, nil
}

// Decode extracts the signal and attaches its value-description label
// (if any); a label equal to SNA marks the decoded signal invalid.
func (s SignalDef) Decode(payload []byte) (DecodedSignal, error) {
	physical, raw, err := s.ExtractPhysical(payload)
	if err != nil {
		return DecodedSignal{}, err
	}
	d := DecodedSignal{Name: s.Name, Raw: raw, Physical: physical, Unit: s.Unit, Valid: true}
	if label, ok := s.Values[rawAsSigned(raw, s.Length, s.Signed)]; ok {
		d.Label = label
		d.HasLabel = true
		if label == SNA {
			d.Valid = false
		}
	}
	return d, nil
}

func rawAsSigned(raw uint64, length uint8, signed bool) int64 {
	if signed {
		return canframe.SignExtend(raw, length)
	}
	return int64(raw)
}

func (s SignalDef) rawToPhysical(raw uint64) float64 {
	value := rawAsSigned(raw, s.Length, s.Signed)
	return float64(value)*s.Factor + s.Offset
}

// EncodePhysical clamps physical into [min, max], converts it to a raw
// value and inserts it into payload, clamping the raw value into the
// representable range for the signal's bit length. If factor is zero the
// raw value written is 0.
func (s SignalDef) EncodePhysical(payload []byte, physical float64) error {
	if physical < s.Min {
		physical = s.Min
	}
	if physical > s.Max {
		physical = s.Max
	}
	var raw uint64
	if s.Factor != 0 {
		scaled := roundHalfAwayFromZero((physical - s.Offset) / s.Factor)
		maxRaw := canframe.MaxUnsigned(s.Length)
		switch {
		case scaled < 0:
			raw = 0
		case uint64(scaled) > maxRaw:
			raw = maxRaw
		default:
			raw = uint64(scaled)
		}
	}
	return canframe.InsertRaw(payload, s.StartBit, s.Length, s.Order, raw)
}

// EncodeRaw bypasses the physical conversion entirely; used for
// enumerations and booleans.
func (s SignalDef) EncodeRaw(payload []byte, raw uint64) error {
	return canframe.InsertRaw(payload, s.StartBit, s.Length, s.Order, raw)
}

func roundHalfAwayFromZero(v float64) float64 {
	if v >= 0 {
		return float64(int64(v + 0.5))
	}
	return float64(int64(v - 0.5))
}

// MessageDef describes one CAN message: its canonical identifier, extended
// flag, transmitter and ordered signal list.
type MessageDef struct {
	Identifier  uint32 // canonical identifier, low 29 bits
	Extended    bool
	Name        string
	DLC         uint8
	Transmitter string
	CycleTimeMs *uint32
	SendType    *int
	Signals     []SignalDef
}

// Signal looks a signal up by name.
func (m *MessageDef) Signal(name string) (*SignalDef, bool) {
	for i := range m.Signals {
		if m.Signals[i].Name == name {
			return &m.Signals[i], true
		}
	}
	return nil, false
}

// DecodeAll decodes every signal in the message out of payload. Per-signal
// codec failures are skipped silently (the database is tolerant of
// malformed layouts) rather than aborting the whole decode.
func (m *MessageDef) DecodeAll(payload []byte) []DecodedSignal {
	out := make([]DecodedSignal, 0, len(m.Signals))
	for _, sig := range m.Signals {
		d, err := sig.Decode(payload)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	return out
}

// EncodeSignal writes a physical value into the named signal of payload.
// Unknown signal names are a silent no-op (schema tolerant), reported via
// the boolean return for callers that want to log it.
func (m *MessageDef) EncodeSignal(payload []byte, name string, physical float64) bool {
	sig, ok := m.Signal(name)
	if !ok {
		return false
	}
	return sig.EncodePhysical(payload, physical) == nil
}

// EncodeSignalRaw is EncodeSignal's raw-value counterpart.
func (m *MessageDef) EncodeSignalRaw(payload []byte, name string, raw uint64) bool {
	sig, ok := m.Signal(name)
	if !ok {
		return false
	}
	return sig.EncodeRaw(payload, raw) == nil
}

// Database is the parsed, read-only-after-load bus description.
type Database struct {
	Name           string
	BusType        string
	Nodes          []string
	messagesByID   map[uint32]*MessageDef
	messagesByName map[string]*MessageDef
}

func newDatabase() *Database {
	return &Database{
		messagesByID:   make(map[uint32]*MessageDef),
		messagesByName: make(map[string]*MessageDef),
	}
}

// addMessage inserts or replaces a message; duplicate identifiers are
// last-wins, matching the tolerant DBC parsing policy.
func (db *Database) addMessage(m *MessageDef) {
	db.messagesByID[m.Identifier] = m
	db.messagesByName[m.Name] = m
}

// FindMessage looks a message up by its canonical (low 29 bit) identifier.
func (db *Database) FindMessage(id uint32) (*MessageDef, bool) {
	m, ok := db.messagesByID[id]
	return m, ok
}

// FindMessageByName looks a message up by its symbolic name.
func (db *Database) FindMessageByName(name string) (*MessageDef, bool) {
	m, ok := db.messagesByName[name]
	return m, ok
}

// IdentifierOrFallback returns the identifier the database publishes a
// named message at, or fallback if the database has no message by that
// name. This is how the engine resolves the documented ChargeInfo
// identifier discrepancy between DBC variants: prefer what the database
// says, fall back to the historical hardcoded value only when the name is
// absent.
func (db *Database) IdentifierOrFallback(name string, fallback uint32) uint32 {
	if m, ok := db.FindMessageByName(name); ok {
		return m.Identifier
	}
	return fallback
}

