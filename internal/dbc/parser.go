package dbc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/RudolfRTC/CCS-Charger/internal/canframe"
)

// Send-type indices as attributed by BA_ "GenMsgSendType".
const (
	SendTypeCyclic      = 0
	SendTypeEventDriven = 1
	SendTypeOnRequest   = 2
	SendTypeDummy       = 3
)

var (
	reBU    = regexp.MustCompile(`^BU_\s*:\s*(.*)$`)
	reBO    = regexp.MustCompile(`^BO_\s+(\d+)\s+(\S+?)\s*:\s*(\d+)\s+(\S+)\s*$`)
	reSG    = regexp.MustCompile(`^\s*SG_\s+(\S+)\s*:\s*(\d+)\|(\d+)@(\d)([+-])\s*\(([^,]+),([^)]+)\)\s*\[([^|]*)\|([^\]]*)\]\s*"([^"]*)"\s*(.*)$`)
	reCmCmt = regexp.MustCompile(`^CM_\s+BO_\s+(\d+)\s+"(.*)"\s*;\s*$`)
	reCmSig = regexp.MustCompile(`^CM_\s+SG_\s+(\d+)\s+(\S+)\s+"(.*)"\s*;\s*$`)
	reCycle = regexp.MustCompile(`^BA_\s+"GenMsgCycleTime"\s+BO_\s+(\d+)\s+(\d+)\s*;\s*$`)
	reSend  = regexp.MustCompile(`^BA_\s+"GenMsgSendType"\s+BO_\s+(\d+)\s+(\d+)\s*;\s*$`)
	reStart = regexp.MustCompile(`^BA_\s+"GenSigStartValue"\s+SG_\s+(\d+)\s+(\S+)\s+(-?\d+)\s*;\s*$`)
	reDBN   = regexp.MustCompile(`^BA_\s+"DBName"\s+"([^"]*)"\s*;\s*$`)
	reBusT  = regexp.MustCompile(`^BA_\s+"BusType"\s+"([^"]*)"\s*;\s*$`)
	reVal   = regexp.MustCompile(`^VAL_\s+(\d+)\s+(\S+)\s+(.*?)\s*;\s*$`)
	reValIt = regexp.MustCompile(`(-?\d+)\s+"([^"]*)"`)
)

// ErrParseIO wraps a file open/read failure while loading a DBC file.
type ErrParseIO struct{ Err error }

func (e *ErrParseIO) Error() string { return fmt.Sprintf("dbc: parse io error: %v", e.Err) }
func (e *ErrParseIO) Unwrap() error { return e.Err }

// Parse reads a DBC file from disk and builds a Database. The parser is
// tolerant: syntactically invalid lines are skipped rather than aborting
// the parse. It fails only on file open/read errors.
func Parse(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ErrParseIO{Err: err}
	}
	defer f.Close()
	return ParseReader(f)
}

// ParseReader parses a DBC file already open as an io.Reader.
func ParseReader(r io.Reader) (*Database, error) {
	db := newDatabase()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	// currentMessage is the explicit scope carried across lines: the
	// canonical identifier of the most recently opened BO_ message. A
	// blank line ends the scope, per the format.
	var currentMessage uint32
	var haveScope bool

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			haveScope = false
			continue
		}
		currentMessage, haveScope = foldLine(db, line, currentMessage, haveScope)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ErrParseIO{Err: err}
	}
	return db, nil
}

// foldLine recognizes one DBC line and folds it into db, returning the
// (possibly updated) message scope. Unknown or malformed lines are
// returned unchanged and otherwise ignored.
func foldLine(db *Database, line string, scope uint32, haveScope bool) (uint32, bool) {
	switch {
	case strings.HasPrefix(strings.TrimSpace(line), "BU_"):
		if m := reBU.FindStringSubmatch(line); m != nil {
			db.Nodes = strings.Fields(m[1])
		}
		return scope, haveScope

	case strings.HasPrefix(line, "BO_ "):
		m := reBO.FindStringSubmatch(line)
		if m == nil {
			return scope, haveScope
		}
		rawID, err := strconv.ParseUint(m[1], 10, 32)
		if err != nil {
			log.Warnf("[DBC] malformed BO_ identifier %q, skipping", m[1])
			return scope, haveScope
		}
		dlc, err := strconv.ParseUint(m[3], 10, 8)
		if err != nil {
			return scope, haveScope
		}
		extended := rawID&0x80000000 != 0
		canonical := uint32(rawID) & 0x1FFFFFFF
		msg := &MessageDef{
			Identifier:  canonical,
			Extended:    extended,
			Name:        m[2],
			DLC:         uint8(dlc),
			Transmitter: m[4],
		}
		db.addMessage(msg)
		log.Debugf("[DBC] message %s id=%#x dlc=%d tx=%s", msg.Name, msg.Identifier, msg.DLC, msg.Transmitter)
		return canonical, true

	case strings.HasPrefix(strings.TrimSpace(line), "SG_"):
		if !haveScope {
			return scope, haveScope
		}
		m := reSG.FindStringSubmatch(line)
		if m == nil {
			return scope, haveScope
		}
		msg, ok := db.FindMessage(scope)
		if !ok {
			return scope, haveScope
		}
		sig, err := parseSignal(m)
		if err != nil {
			log.Warnf("[DBC] malformed SG_ line for %q, skipping: %v", m[1], err)
			return scope, haveScope
		}
		msg.Signals = append(msg.Signals, sig)
		return scope, haveScope

	case reCmCmt.MatchString(line), reCmSig.MatchString(line):
		// Comments carry no structural information the core needs.
		return scope, haveScope

	case strings.HasPrefix(line, `BA_ "GenMsgCycleTime"`):
		if m := reCycle.FindStringSubmatch(line); m != nil {
			applyToMessage(db, m[1], func(msg *MessageDef) {
				ms, err := strconv.ParseUint(m[2], 10, 32)
				if err == nil {
					v := uint32(ms)
					msg.CycleTimeMs = &v
				}
			})
		}
		return scope, haveScope

	case strings.HasPrefix(line, `BA_ "GenMsgSendType"`):
		if m := reSend.FindStringSubmatch(line); m != nil {
			applyToMessage(db, m[1], func(msg *MessageDef) {
				n, err := strconv.Atoi(m[2])
				if err == nil {
					msg.SendType = &n
				}
			})
		}
		return scope, haveScope

	case strings.HasPrefix(line, `BA_ "GenSigStartValue"`):
		if m := reStart.FindStringSubmatch(line); m != nil {
			applyToSignal(db, m[1], m[2], func(sig *SignalDef) {
				n, err := strconv.ParseInt(m[3], 10, 64)
				if err == nil {
					v := uint64(n)
					sig.Default = &v
				}
			})
		}
		return scope, haveScope

	case strings.HasPrefix(line, `BA_ "DBName"`):
		if m := reDBN.FindStringSubmatch(line); m != nil {
			db.Name = m[1]
		}
		return scope, haveScope

	case strings.HasPrefix(line, `BA_ "BusType"`):
		if m := reBusT.FindStringSubmatch(line); m != nil {
			db.BusType = m[1]
		}
		return scope, haveScope

	case strings.HasPrefix(line, "VAL_ "):
		if m := reVal.FindStringSubmatch(line); m != nil {
			applyToSignal(db, m[1], m[2], func(sig *SignalDef) {
				values := make(map[int64]string)
				for _, it := range reValIt.FindAllStringSubmatch(m[3], -1) {
					n, err := strconv.ParseInt(it[1], 10, 64)
					if err == nil {
						values[n] = it[2]
					}
				}
				sig.Values = values
			})
		}
		return scope, haveScope

	default:
		return scope, haveScope
	}
}

func parseSignal(m []string) (SignalDef, error) {
	start, err := strconv.ParseUint(m[2], 10, 8)
	if err != nil {
		return SignalDef{}, err
	}
	length, err := strconv.ParseUint(m[3], 10, 8)
	if err != nil {
		return SignalDef{}, err
	}
	order := canframe.LittleEndian
	if m[4] == "0" {
		order = canframe.BigEndian
	}
	factor, err := strconv.ParseFloat(strings.TrimSpace(m[6]), 64)
	if err != nil {
		return SignalDef{}, err
	}
	offset, err := strconv.ParseFloat(strings.TrimSpace(m[7]), 64)
	if err != nil {
		return SignalDef{}, err
	}
	min, err := strconv.ParseFloat(strings.TrimSpace(m[8]), 64)
	if err != nil {
		min = 0
	}
	max, err := strconv.ParseFloat(strings.TrimSpace(m[9]), 64)
	if err != nil {
		max = 0
	}
	receivers := strings.Fields(m[11])
	return SignalDef{
		Name:      m[1],
		StartBit:  uint8(start),
		Length:    uint8(length),
		Order:     order,
		Signed:    m[5] == "-",
		Factor:    factor,
		Offset:    offset,
		Min:       min,
		Max:       max,
		Unit:      m[10],
		Receivers: receivers,
	}, nil
}

func applyToMessage(db *Database, idStr string, fn func(*MessageDef)) {
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return
	}
	if msg, ok := db.FindMessage(uint32(id) & 0x1FFFFFFF); ok {
		fn(msg)
	}
}

func applyToSignal(db *Database, idStr, sigName string, fn func(*SignalDef)) {
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		return
	}
	msg, ok := db.FindMessage(uint32(id) & 0x1FFFFFFF)
	if !ok {
		return
	}
	if sig, ok := msg.Signal(sigName); ok {
		fn(sig)
	}
}
