package dbc

import (
	"strings"
	"testing"

	"github.com/RudolfRTC/CCS-Charger/internal/canframe"
)

const sampleDBCPath = "../../testdata/sample.dbc"

func TestParseSampleDatabase(t *testing.T) {
	db, err := Parse(sampleDBCPath)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if db.Name != "VCU_CCS_DC" {
		t.Fatalf("Name = %q", db.Name)
	}
	if db.BusType != "CAN" {
		t.Fatalf("BusType = %q", db.BusType)
	}
	if len(db.Nodes) != 2 {
		t.Fatalf("Nodes = %v", db.Nodes)
	}
	for _, id := range []uint32{0x1300, 0x1301, 0x1302, 0x1303, 0x1304, 0x1305, 0x0600, 0x1400, 0x1401, 0x1402, 0x2001, 0x2002, 0x2003} {
		msg, ok := db.FindMessage(id)
		if !ok {
			t.Fatalf("message %#x not found", id)
		}
		if msg.Identifier != id {
			t.Fatalf("message %#x stored with identifier %#x", id, msg.Identifier)
		}
		if !msg.Extended {
			t.Fatalf("message %#x should be extended", id)
		}
	}
}

func TestFindMessageIdentifierInvariant(t *testing.T) {
	db, err := Parse(sampleDBCPath)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	msg, ok := db.FindMessage(0x0600)
	if !ok {
		t.Fatal("ChargeInfo not found")
	}
	if msg.Identifier != 0x0600 {
		t.Fatalf("FindMessage(0x0600).Identifier = %#x", msg.Identifier)
	}
}

func TestParsedCycleTime(t *testing.T) {
	db, err := Parse(sampleDBCPath)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	msg, _ := db.FindMessage(0x1300)
	if msg.CycleTimeMs == nil || *msg.CycleTimeMs != 100 {
		t.Fatalf("CycleTimeMs = %v, want 100", msg.CycleTimeMs)
	}
}

func TestParsedValueMapAndSNA(t *testing.T) {
	db, err := Parse(sampleDBCPath)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	msg, _ := db.FindMessage(0x0600)
	sig, ok := msg.Signal("StateMachineState")
	if !ok {
		t.Fatal("StateMachineState signal not found")
	}
	if label, ok := sig.Values[1]; !ok || label != "Init" {
		t.Fatalf("value 1 label = %q, %v", label, ok)
	}

	aliveCounter, ok := msg.Signal("AliveCounter")
	if !ok {
		t.Fatal("AliveCounter signal not found")
	}
	payload := []byte{0x00, 0x0F, 0, 0, 0, 0, 0, 0}
	decoded, err := aliveCounter.Decode(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Raw != 15 || !decoded.HasLabel || decoded.Label != SNA || decoded.Valid {
		t.Fatalf("decoded = %+v, want raw=15 label=SNA valid=false", decoded)
	}
}

func TestBigEndianStateMachineStateFromDatabase(t *testing.T) {
	db, err := Parse(sampleDBCPath)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	msg, _ := db.FindMessage(0x0600)
	payload := []byte{0x00, 0x15, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	decoded := msg.DecodeAll(payload)
	var state *DecodedSignal
	for i := range decoded {
		if decoded[i].Name == "StateMachineState" {
			state = &decoded[i]
		}
	}
	if state == nil {
		t.Fatal("StateMachineState not decoded")
	}
	if state.Raw != 1 || state.Label != "Init" {
		t.Fatalf("state = %+v, want raw=1 label=Init", state)
	}
}

func TestParserToleratesMalformedLines(t *testing.T) {
	text := `BU_: VCU CMS

BO_ 2147488512 Good: 8 VCU
 SG_ ThisLineIsFine : 0|8@1+ (1,0) [0|255] "" CMS
 SG_ this is garbage and should be skipped
 garbage line entirely
BA_ "GenMsgCycleTime" BO_ 2147488512 100;
`
	db, err := ParseReader(strings.NewReader(text))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	msg, ok := db.FindMessage(0x1300)
	if !ok {
		t.Fatal("Good message missing")
	}
	if len(msg.Signals) != 1 {
		t.Fatalf("Signals = %v, want 1 (malformed SG_ line skipped)", msg.Signals)
	}
	if msg.CycleTimeMs == nil || *msg.CycleTimeMs != 100 {
		t.Fatal("cycle time attribute should still apply")
	}
}

func TestParseIOErrorOnMissingFile(t *testing.T) {
	_, err := Parse("/nonexistent/path/does-not-exist.dbc")
	if err == nil {
		t.Fatal("expected error")
	}
	var ioErr *ErrParseIO
	if !isParseIOErr(err, &ioErr) {
		t.Fatalf("err = %v, want *ErrParseIO", err)
	}
}

func isParseIOErr(err error, target **ErrParseIO) bool {
	e, ok := err.(*ErrParseIO)
	if ok {
		*target = e
	}
	return ok
}

func TestLittleEndianByteOrderParsed(t *testing.T) {
	db, err := Parse(sampleDBCPath)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	msg, _ := db.FindMessage(0x1300)
	sig, _ := msg.Signal("EVMaxCurrent")
	if sig.Order != canframe.LittleEndian {
		t.Fatalf("EVMaxCurrent order = %v, want LittleEndian", sig.Order)
	}
}
