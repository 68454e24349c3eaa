package safety

import "fmt"

// ErrorDescription is the human-facing pair a numeric error code maps to:
// a short label/description and the recommended operator action.
type ErrorDescription struct {
	Label  string
	Action string
}

// errorTable carries the literal entries named in the external interface
// spec. Codes outside it fall back to the banded defaults in
// DescribeErrorCode.
var errorTable = map[int]ErrorDescription{
	0:   {"UNPLUGGED", "Plug in the connector to begin a session"},
	1:   {"STATUS_OK", "No action required"},
	160: {"V2G_HLC_INIT_TIMEOUT", "Retry session; check PLC/SLAC pairing"},
	161: {"EVSE_EMERGENCY", "Inspect charger for an emergency condition"},
	162: {"LIMITS_MSG_TIMEOUT", "Check CAN bus wiring and supervisor liveness"},
	163: {"STATUS_MSG_TIMEOUT", "Check CAN bus wiring and supervisor liveness"},
	164: {"PLUGSTATUS_MSG_TIMEOUT", "Check CAN bus wiring and supervisor liveness"},
	217: {"CABLECHECK_TIMEOUT", "Inspect charging cable and connector"},
	218: {"PRECHARGE_TIMEOUT", "Abort and retry; inspect precharge contactor"},
	219: {"READYTOCHARGE_TIMEOUT", "Abort and retry session"},
	249: {"E_STOP_TRIGGERED", "Clear the emergency stop once the cause is resolved"},
}

func init() {
	for c := 139; c <= 151; c++ {
		errorTable[c] = ErrorDescription{
			Label:  fmt.Sprintf("SM_%d_RESPONSE_FAILED", c),
			Action: "Retry the supervisor message exchange",
		}
	}
	for c := 240; c <= 248; c++ {
		errorTable[c] = ErrorDescription{
			Label:  fmt.Sprintf("MANDATORY_SIGNAL_%d_SNA", c),
			Action: "Check that the supervisor is populating the required signal",
		}
	}
}

// DescribeErrorCode maps a numeric error code to its description. Codes
// not in the literal table fall back to band defaults: 0x02..0x8A
// "Internal error", 0xA7..0xC1 "Range overflow error". Codes outside any
// known band return a generic unknown-code description.
func DescribeErrorCode(code int) ErrorDescription {
	if d, ok := errorTable[code]; ok {
		return d
	}
	switch {
	case code >= 0x02 && code <= 0x8A:
		return ErrorDescription{Label: "Internal error", Action: "Contact charger vendor support"}
	case code >= 0xA7 && code <= 0xC1:
		return ErrorDescription{Label: "Range overflow error", Action: "Check sensor wiring and signal scaling"}
	default:
		return ErrorDescription{Label: "Unknown error", Action: "No recommended action available"}
	}
}
