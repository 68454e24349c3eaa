// Package engine owns the DBC-driven signal map and the safety monitor,
// runs the cyclic transmission schedule, decodes inbound frames into a
// supervisor snapshot, and exposes the high-level actions and events a
// caller drives the charging session with.
package engine

// SupervisorState is the decoded CMS state-machine value carried by
// ChargeInfo's StateMachineState signal.
type SupervisorState int

const (
	StateDefault        SupervisorState = 0
	StateInit           SupervisorState = 1
	StateAuthentication SupervisorState = 2
	StateParameter      SupervisorState = 3
	StateIsolation      SupervisorState = 4
	StatePreCharge      SupervisorState = 5
	StateCharge         SupervisorState = 6
	StateWelding        SupervisorState = 7
	StateStopCharge     SupervisorState = 8
	StateSessionStop    SupervisorState = 9
	StateShutOff        SupervisorState = 10
	StatePaused         SupervisorState = 11
	StateError          SupervisorState = 12
	StateSNA            SupervisorState = 15
)

func (s SupervisorState) String() string {
	switch s {
	case StateDefault:
		return "Default"
	case StateInit:
		return "Init"
	case StateAuthentication:
		return "Authentication"
	case StateParameter:
		return "Parameter"
	case StateIsolation:
		return "Isolation"
	case StatePreCharge:
		return "PreCharge"
	case StateCharge:
		return "Charge"
	case StateWelding:
		return "Welding"
	case StateStopCharge:
		return "StopCharge"
	case StateSessionStop:
		return "SessionStop"
	case StateShutOff:
		return "ShutOff"
	case StatePaused:
		return "Paused"
	case StateError:
		return "Error"
	case StateSNA:
		return "SNA"
	default:
		return "Unknown"
	}
}

// ChargeProgress is the VCU's outgoing charge-progress indication.
type ChargeProgress uint8

const (
	ChargeProgressStart ChargeProgress = 0
	ChargeProgressStop  ChargeProgress = 1
)

// ChargeStop is the VCU's outgoing charge-stop indication.
type ChargeStop uint8

const (
	ChargeStopTerminate ChargeStop = 0
	ChargeStopNoStop    ChargeStop = 2
)

// SupervisorSnapshot is the most recently decoded state of the CMS.
// Every field defaults to its SNA-equivalent until the first frame of
// its kind arrives.
type SupervisorSnapshot struct {
	State           SupervisorState
	AliveCounter    uint8
	ControlPilotState int
	ControlPilotDuty float64
	ActiveProtocol  int
	ProximityPin    int

	S2Closed      bool
	VoltageMatch  bool
	Compatible    bool
	TCPUp         bool
	BCBStatus     bool

	EVSEMaxVoltage      float64
	EVSEMaxCurrent      float64
	EVSEMaxPower        float64
	EVSEEnergyToDeliver float64

	EVSEMinVoltage float64
	EVSEMinCurrent float64
	EVSERipple     float64
	EVSETolerance  float64

	PresentVoltage float64
	PresentCurrent float64

	IsolationStatus  int
	StatusCode       int
	NotificationCode int
	MaxDelay         int

	LimitAchievedCurrent bool
	LimitAchievedVoltage bool
	LimitAchievedPower   bool

	ErrorCodeLevel0 int
	ErrorCodeLevel1 int
	ErrorCodeLevel2 int
	ErrorCodeLevel3 int

	FWVersionMajor uint8
	FWVersionMinor uint8
	FWVersionPatch uint8
	FWVersionBuild uint8

	SLACState       int
	SLACLink        bool
	SLACAttenuation int
}

// NewSupervisorSnapshot returns a snapshot with every field at its
// SNA-equivalent: state unknown, alive counter SNA (15), everything else
// zero-valued (the legitimate startup value, not an error).
func NewSupervisorSnapshot() SupervisorSnapshot {
	return SupervisorSnapshot{State: StateSNA, AliveCounter: 15}
}

// VcuParameters are the VCU setpoints transmitted cyclically.
type VcuParameters struct {
	MaxVoltage float64
	MaxCurrent float64
	MaxPower   float64
	FullSoC    float64
	BulkSoC    float64

	TargetVoltage    float64
	TargetCurrent    float64
	PreChargeVoltage float64

	ChargeProgressIndication ChargeProgress
	ChargeStopIndication     ChargeStop
	EVReady                  bool
	WeldingDetectionEnable   bool
	ChargeProtocolPriority   int
	BCBControl               bool

	SoCPercent float64
	ErrorCode  int

	ChargingComplete  bool
	BulkComplete      bool
	CabinConditioning bool
	RESSConditioning  bool

	TimeToFullSoC int
	TimeToBulkSoC int

	CPState      int
	CPDuty       float64
	ProximityPin int

	EnergyCapacity float64
	EnergyRequest  float64
}

// NewVcuParameters returns the VCU's safe power-up defaults: not ready to
// charge, no progress, stop indication Terminate.
func NewVcuParameters() VcuParameters {
	return VcuParameters{
		ChargeProgressIndication: ChargeProgressStop,
		ChargeStopIndication:     ChargeStopTerminate,
	}
}

// safeState forces the fields the emergency-stop and stop() paths must
// drive regardless of any interleaved setter call.
func (p *VcuParameters) safeState() {
	p.EVReady = false
	p.ChargeProgressIndication = ChargeProgressStop
	p.ChargeStopIndication = ChargeStopTerminate
}
