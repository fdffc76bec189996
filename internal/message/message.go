// Package message defines every value that crosses the Controller's bus:
// the tagged Message variants, the Command variants an authenticated
// websocket client may send, and the wire-level sensor/command structs
// exchanged with winches and the gimbal. Treat the variants here as
// authoritative; no other package should define a competing Command type.
package message

import (
	"time"

	"github.com/tucoflyer/flyer-controller/internal/geom"
)

// TICK_HZ-style constants live in internal/config; message.go only
// carries wire shapes.

// ControllerMode selects which subsystem, if any, is driving winch motion.
// Halted is the safe state: reachable from any mode, and the only mode in
// which every winch is guaranteed a zero-velocity command.
type ControllerMode struct {
	Kind   ControllerModeKind `json:"kind"`
	Winch  int                `json:"winch,omitempty"` // valid only when Kind == ManualWinch
}

type ControllerModeKind int

const (
	Halted ControllerModeKind = iota
	Normal
	ManualFlyer
	ManualWinch
)

func (m ControllerMode) String() string {
	switch m.Kind {
	case Halted:
		return "Halted"
	case Normal:
		return "Normal"
	case ManualFlyer:
		return "ManualFlyer"
	case ManualWinch:
		return "ManualWinch"
	default:
		return "Unknown"
	}
}

// ManualControlAxis names one axis of the joystick-style manual control
// surface. Missing axes read as zero.
type ManualControlAxis int

const (
	CameraYaw ManualControlAxis = iota
	CameraPitch
	RelativeX
	RelativeY
	RelativeZ
)

// CameraDetectedObject is one object reported by the vision detector.
type CameraDetectedObject struct {
	Rect  geom.Rect `json:"rect"`
	Prob  float32   `json:"prob"`
	Label string    `json:"label"`
}

// CameraDetectedObjects is a detector frame: a batch of objects sharing a
// monotonically increasing frame id.
type CameraDetectedObjects struct {
	Objects []CameraDetectedObject `json:"objects"`
	Frame   uint32                 `json:"frame"`
}

// CameraTrackedRegion is the actively tracked rectangle, either snapped from
// a detection or steered manually.
type CameraTrackedRegion struct {
	Rect geom.Rect `json:"rect"`
	PSR  float32   `json:"psr"`
	Age  uint32    `json:"age"`
	Frame uint32   `json:"frame"`
}

func (r CameraTrackedRegion) IsEmpty() bool {
	return r.Rect.IsEmpty()
}

// Command is the superset of instructions an authenticated client may send.
// This is the single authoritative Command enum; there is no older "bus"
// mirror in this codebase.
type Command struct {
	Kind Commandkind `json:"kind"`

	SetMode                ControllerMode         `json:"setMode,omitempty"`
	ManualAxis             ManualControlAxis      `json:"manualAxis,omitempty"`
	ManualValue            float32                `json:"manualValue,omitempty"`
	CameraObjectDetection  CameraDetectedObjects  `json:"cameraObjectDetection,omitempty"`
	CameraRegionTracking   CameraTrackedRegion    `json:"cameraRegionTracking,omitempty"`
	GimbalPacket           []byte                 `json:"gimbalPacket,omitempty"`
	GimbalValueWrite       GimbalValueWrite       `json:"gimbalValueWrite,omitempty"`
	GimbalValueRequests    []uint16               `json:"gimbalValueRequests,omitempty"`
	GimbalMotorEnable      bool                   `json:"gimbalMotorEnable,omitempty"`
}

type Commandkind int

const (
	CmdSetMode Commandkind = iota
	CmdManualControlReset
	CmdManualControlValue
	CmdCameraObjectDetection
	CmdCameraRegionTracking
	CmdGimbalPacket
	CmdGimbalValueWrite
	CmdGimbalValueRequests
	CmdGimbalMotorEnable
)

// GimbalValueWrite is a raw gimbal register write, forwarded as-is.
type GimbalValueWrite struct {
	Address uint16 `json:"address"`
	Value   int32  `json:"value"`
}

// GimbalCommand is the rate command synthesized each tick for the gimbal.
type GimbalCommand struct {
	MotorOn bool        `json:"motorOn"`
	Rates   geom.Vector2 `json:"rates"`
}

// GimbalStatus is the gimbal's periodic status report.
type GimbalStatus struct {
	Command            GimbalCommand `json:"command"`
	Counter            uint32        `json:"counter"`
	EncoderAngles      geom.Vector3  `json:"encoderAngles"`
	CenterCalibration  geom.Vector3  `json:"centerCalibration"`
}

// GimbalValue is one decoded register value received from the gimbal.
type GimbalValue struct {
	Address uint16
	Value   int32
}

// OverlayRect is one drawing primitive in a rendered camera-overlay scene.
type OverlayRect struct {
	Src  geom.Rect    `json:"src"`
	Dest geom.Rect    `json:"dest"`
	RGBA [4]float32   `json:"rgba"`
}

// ForceTelemetry is the raw and filtered cable-tension reading for a winch.
type ForceTelemetry struct {
	Measure  int32   `json:"measure"`  // uncalibrated, (+) = increasing tension
	Filtered float32 `json:"filtered"` // same units, low-pass filtered
	Counter  uint32  `json:"counter"`
}

// ForceCommand is the force-interlock configuration sent to winch firmware.
type ForceCommand struct {
	FilterParam  float32 `json:"filterParam"`
	NegMotionMin float32 `json:"negMotionMin"`
	PosMotionMax float32 `json:"posMotionMax"`
	LockoutBelow float32 `json:"lockoutBelow"`
	LockoutAbove float32 `json:"lockoutAbove"`
}

// PIDGains is the per-winch PID tuning, re-read from config each tick.
type PIDGains struct {
	GainP         float32 `json:"gainP"`
	GainI         float32 `json:"gainI"`
	GainD         float32 `json:"gainD"`
	PFilterParam  float32 `json:"pFilterParam"`
	IDecayParam   float32 `json:"iDecayParam"`
	DFilterParam  float32 `json:"dFilterParam"`
}

// WinchDeadband defines when a winch is considered stopped.
type WinchDeadband struct {
	Position int32   `json:"position"`
	Velocity float32 `json:"velocity"`
}

// WinchCommand is emitted once per received WinchStatus, even in Halted.
type WinchCommand struct {
	Position int32         `json:"position"`
	Force    ForceCommand  `json:"force"`
	PID      PIDGains      `json:"pid"`
	Deadband WinchDeadband `json:"deadband"`
}

// WinchSensors is the hardware-reported state of one winch.
type WinchSensors struct {
	Force    ForceTelemetry `json:"force"`
	Position int32          `json:"position"`
	Velocity float32        `json:"velocity"`
}

// WinchPWM is the PID loop's output, before and after quantization.
type WinchPWM struct {
	Total   float32 `json:"total"` // clamped to [-1,1]
	P       float32 `json:"p"`
	I       float32 `json:"i"`
	D       float32 `json:"d"`
	Quant   int16   `json:"quant"`
	Enabled bool    `json:"enabled"`
}

// WinchMotorControl mirrors the controller's PID internals back to
// observers, for diagnostics.
type WinchMotorControl struct {
	PWM              WinchPWM `json:"pwm"`
	PositionErr      int32    `json:"positionErr"`
	PosErrFiltered   float32  `json:"posErrFiltered"`
	PosErrIntegral   float32  `json:"posErrIntegral"`
	VelErrInst       float32  `json:"velErrInst"`
	VelErrFiltered   float32  `json:"velErrFiltered"`
}

// WinchStatus is one periodic report from a winch driver.
type WinchStatus struct {
	CommandCounter uint32            `json:"commandCounter"`
	TickCounter    uint32            `json:"tickCounter"`
	Command        WinchCommand      `json:"command"`
	Sensors        WinchSensors      `json:"sensors"`
	Motor          WinchMotorControl `json:"motor"`
}

// XBandTelemetry, LIDARTelemetry, AnalogTelemetry and IMUTelemetry are the
// flyer's raw sensor pack, passed through untouched.
type XBandTelemetry struct {
	EdgeCount    uint32 `json:"edgeCount"`
	SpeedMeasure uint32 `json:"speedMeasure"`
	MeasureCount uint32 `json:"measureCount"`
}

type LIDARTelemetry struct {
	Ranges   [4]uint32 `json:"ranges"`
	Counters [4]uint32 `json:"counters"`
}

type AnalogTelemetry struct {
	Values  [8]uint32 `json:"values"`
	Counter uint32    `json:"counter"`
}

type IMUTelemetry struct {
	Accelerometer geom.Vector3 `json:"accelerometer"`
	Magnetometer  geom.Vector3 `json:"magnetometer"`
	Gyroscope     geom.Vector3 `json:"gyroscope"`
	EulerAngles   geom.Vector3 `json:"eulerAngles"`
	Temperature   int8         `json:"temperature"`
	CalibStat     int8         `json:"calibStat"`
	Counter       uint32       `json:"counter"`
}

type FlyerSensors struct {
	XBand   XBandTelemetry  `json:"xband"`
	LIDAR   LIDARTelemetry  `json:"lidar"`
	Analog  AnalogTelemetry `json:"analog"`
	IMU     IMUTelemetry    `json:"imu"`
}

// Message is the tagged variant wrapped by every TimestampedMessage.
// Only one of the typed fields is valid, selected by Kind.
type Message struct {
	Kind Kind `json:"kind"`

	Command               Command               `json:"command,omitempty"`
	FlyerSensors          FlyerSensors          `json:"flyerSensors,omitempty"`
	WinchID               int                   `json:"winchId,omitempty"`
	WinchStatus           WinchStatus           `json:"winchStatus,omitempty"`
	UpdateConfig          []byte                `json:"updateConfig,omitempty"` // raw JSON merge patch
	ConfigIsCurrent       interface{}           `json:"configIsCurrent,omitempty"`
	GimbalStatus          GimbalStatus          `json:"gimbalStatus,omitempty"`
	UnhandledGimbalPacket []byte                `json:"unhandledGimbalPacket,omitempty"`
	CameraOverlayScene    []OverlayRect         `json:"cameraOverlayScene,omitempty"`
	CameraInitTrackedRegion geom.Rect           `json:"cameraInitTrackedRegion,omitempty"`
	GimbalValue           GimbalValue           `json:"gimbalValue,omitempty"`
}

// Kind discriminates Message's variants.
type Kind int

const (
	KindCommand Kind = iota
	KindFlyerSensors
	KindWinchStatus
	KindUpdateConfig
	KindConfigIsCurrent
	KindGimbalStatus
	KindUnhandledGimbalPacket
	KindCameraOverlayScene
	KindCameraInitTrackedRegion
	KindGimbalValue
)

// TimestampedMessage wraps every message crossing the bus with the instant
// it was handed to the port — captured at send time, not receive time, so
// queue delay is visible to subscribers.
type TimestampedMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Message   Message   `json:"message"`
}

// Wrap stamps msg with the current time. bus.Port.Send calls it at the port
// boundary, so the stamp is the send time.
func Wrap(msg Message) TimestampedMessage {
	return TimestampedMessage{Timestamp: time.Now(), Message: msg}
}
