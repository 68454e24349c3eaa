// Package canframe implements the bit-exact CAN frame and signal codec:
// the immutable frame value type and the little/big-endian extract/insert
// primitives that the DBC signal layer builds on.
package canframe

import (
	"errors"
	"time"
)

// ErrShortPayload is returned when the caller supplies a payload slice
// shorter than the bytes a signal's bit range actually touches.
var ErrShortPayload = errors.New("canframe: payload shorter than signal demands")

// ByteOrder selects the bit-packing convention of a signal.
type ByteOrder uint8

const (
	// LittleEndian is DBC's Intel format: start bit is the LSB of the value.
	LittleEndian ByteOrder = iota
	// BigEndian is DBC's Motorola (forward) format: start bit is the MSB.
	BigEndian
)

// Frame is an immutable CAN frame: identifier, extended/standard flag,
// data length 0..8 and an 8-byte payload (bytes beyond DLC are unspecified).
type Frame struct {
	ID        uint32
	Extended  bool
	DLC       uint8
	Data      [8]byte
	Timestamp time.Time
}

// New builds a Frame, zero-padding or truncating data to 8 bytes.
func New(id uint32, extended bool, data []byte) Frame {
	f := Frame{ID: id, Extended: extended, Timestamp: time.Now()}
	n := copy(f.Data[:], data)
	f.DLC = uint8(n)
	return f
}

// NewZero returns a zero-initialized frame with the given extended flag and
// length (capped at 8), the starting point for each cyclic frame composed
// by the protocol engine.
func NewZero(id uint32, extended bool, dlc uint8) Frame {
	if dlc > 8 {
		dlc = 8
	}
	return Frame{ID: id, Extended: extended, DLC: dlc, Timestamp: time.Now()}
}

// Payload returns the 8-byte buffer as a slice for use with the codec
// functions below.
func (f *Frame) Payload() []byte { return f.Data[:] }
