package canframe

import (
	"math"
	"testing"
)

func TestLittleEndianRoundTrip(t *testing.T) {
	payload := make([]byte, 8)
	if err := InsertRaw(payload, 0, 16, LittleEndian, 2000); err != nil {
		t.Fatalf("insert: %v", err)
	}
	want := []byte{0xD0, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	for i := range want {
		if payload[i] != want[i] {
			t.Fatalf("payload = % X, want % X", payload, want)
		}
	}
	raw, err := ExtractRaw(payload, 0, 16, LittleEndian)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if raw != 2000 {
		t.Fatalf("raw = %d, want 2000", raw)
	}
	physical := float64(raw)*0.1 + 0
	if math.Abs(physical-200.0) > 1e-9 {
		t.Fatalf("physical = %v, want 200.0", physical)
	}
}

func TestBigEndianExtraction(t *testing.T) {
	payload := []byte{0x00, 0x15, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	raw, err := ExtractRaw(payload, 8, 4, BigEndian)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if raw != 1 {
		t.Fatalf("raw = %d, want 1 (StateMachineState = Init)", raw)
	}
}

func TestSNADecode(t *testing.T) {
	payload := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	raw, err := ExtractRaw(payload, 0, 4, LittleEndian)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if raw != 15 {
		t.Fatalf("raw = %d, want 15", raw)
	}
}

func TestInsertPreservesOtherBits(t *testing.T) {
	payload := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if err := InsertRaw(payload, 4, 4, LittleEndian, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if payload[0] != 0x0F {
		t.Fatalf("payload[0] = %#x, want 0x0f (high nibble cleared, low nibble preserved)", payload[0])
	}
}

func TestExtractInsertRoundTripAllLengths(t *testing.T) {
	for _, order := range []ByteOrder{LittleEndian, BigEndian} {
		for length := uint8(1); length <= 32; length++ {
			for _, start := range []uint8{0, 3, 8, 16} {
				payload := make([]byte, 8)
				v := MaxUnsigned(length) / 3
				if err := InsertRaw(payload, start, length, order, v); err != nil {
					t.Fatalf("insert(order=%v len=%d start=%d): %v", order, length, start, err)
				}
				got, err := ExtractRaw(payload, start, length, order)
				if err != nil {
					t.Fatalf("extract(order=%v len=%d start=%d): %v", order, length, start, err)
				}
				if got != v {
					t.Fatalf("order=%v len=%d start=%d: got %d want %d", order, length, start, got, v)
				}
			}
		}
	}
}

func TestShortPayloadError(t *testing.T) {
	short := make([]byte, 2)
	_, err := ExtractRaw(short, 32, 8, LittleEndian)
	if err != ErrShortPayload {
		t.Fatalf("err = %v, want ErrShortPayload", err)
	}
	err = InsertRaw(short, 32, 8, LittleEndian, 1)
	if err != ErrShortPayload {
		t.Fatalf("err = %v, want ErrShortPayload", err)
	}
}

func TestBitsBeyondFrameAreDiscarded(t *testing.T) {
	payload := make([]byte, 8)
	// Signal starting at bit 60 with length 16 exits the 8-byte frame; the
	// in-range bits (60..63) must still be written/read without error.
	if err := InsertRaw(payload, 60, 16, LittleEndian, 0xFFFF); err != nil {
		t.Fatalf("insert: %v", err)
	}
	raw, err := ExtractRaw(payload, 60, 16, LittleEndian)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if raw != 0x000F {
		t.Fatalf("raw = %#x, want 0x000f (bits beyond byte 7 read as 0)", raw)
	}
}

func TestSignExtend(t *testing.T) {
	if SignExtend(0x7F, 8) != 127 {
		t.Fatalf("0x7F should stay positive")
	}
	if SignExtend(0xFF, 8) != -1 {
		t.Fatalf("0xFF as int8 should be -1")
	}
	if SignExtend(0x8000, 16) != -32768 {
		t.Fatalf("0x8000 as int16 should be -32768")
	}
}
