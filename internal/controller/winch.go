package controller

import (
	"time"

	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/geom"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

// MechStatus classifies a winch's mechanical state from its filtered force
// and velocity history (spec §4.4).
type MechStatus int

const (
	MechNormal MechStatus = iota
	MechStuck
	MechForceLimitedPositive
	MechForceLimitedNegative
)

// ForceSign returns +1/-1 for the force-limited variants and 0 for the
// others, matching the Rust source's ForceLimited(sign).
func (s MechStatus) ForceSign() float32 {
	switch s {
	case MechForceLimitedPositive:
		return 1
	case MechForceLimitedNegative:
		return -1
	default:
		return 0
	}
}

// WinchController is the per-winch PID state: position setpoint, filtered
// force/error signals, and watchdog bookkeeping. Created once per configured
// winch and never rebuilt on config change — only parameters are re-read
// each tick.
type WinchController struct {
	id int

	setpoint int32

	filteredForce      float32
	posErrFiltered     float32
	velErrFiltered     float32
	posErrIntegral     float32
	mechStatus         MechStatus
	stuckSince         time.Time
	isStuckCandidate   bool

	lastTickCounter   uint32
	lastUpdateInstant time.Time
	haveUpdate        bool

	quantResidual  float32
	posResidual    float32
	lastPWM        message.WinchPWM
	lastCommandedV float32
}

// NewWinchController constructs the controller for winch id, with zeroed
// state.
func NewWinchController(id int) *WinchController {
	return &WinchController{id: id}
}

// Update recomputes filtered_force and the mechanical status classification
// from the latest status report.
func (w *WinchController) Update(cfg config.Config, cal config.WinchCalibration, status message.WinchStatus) {
	now := time.Now()
	if !w.haveUpdate {
		// The first report seeds the setpoint at the winch's current
		// position, so an idle winch holds where it is.
		w.setpoint = status.Sensors.Position
	}
	w.lastTickCounter = status.TickCounter
	w.lastUpdateInstant = now
	w.haveUpdate = true

	w.filteredForce = geom.Lerp(w.filteredForce, float32(status.Sensors.Force.Measure), cfg.Params.ForceFilterParam)

	velocity := status.Sensors.Velocity
	deadbandVel := cfg.Params.DeadbandVelocity
	commandedNonzero := w.lastCommandedV != 0

	if abs32(velocity) < deadbandVel && commandedNonzero {
		if !w.isStuckCandidate {
			w.isStuckCandidate = true
			w.stuckSince = now
		}
	} else {
		w.isStuckCandidate = false
	}

	stuckTimeout := time.Duration(cfg.Params.StuckTimeoutSeconds * float64(time.Second))
	switch {
	case w.isStuckCandidate && now.Sub(w.stuckSince) >= stuckTimeout:
		w.mechStatus = MechStuck
	case w.filteredForce >= float32(cfg.Params.ForceMaxKg):
		w.mechStatus = MechForceLimitedPositive
	case w.filteredForce <= float32(cfg.Params.ForceMinKg):
		w.mechStatus = MechForceLimitedNegative
	default:
		w.mechStatus = MechNormal
	}
}

// MechStatus returns the most recently classified mechanical status.
func (w *WinchController) MechStatus() MechStatus { return w.mechStatus }

const tickDt = 1.0 / float64(config.TickHz)

// VelocityTick integrates the position setpoint by the commanded velocity
// for one tick, honoring the force interlock and the halt-mode snap.
func (w *WinchController) VelocityTick(cfg config.Config, cal config.WinchCalibration, status message.WinchStatus, vTarget float32) {
	w.lastCommandedV = vTarget

	if cfg.Mode.Kind == message.Halted {
		w.setpoint = status.Sensors.Position
		w.posErrIntegral = 0
		return
	}

	sign := w.mechStatus.ForceSign()
	if sign != 0 && sign*vTarget > 0 {
		// Force interlock: motion in the direction that would worsen an
		// already-excessive cable tension is frozen.
		return
	}

	// vTarget arrives in m/s; vMax and the setpoint integrator both operate
	// in counts/sec, so vTarget is converted through the same
	// MDistPerCount calibration as vMax before clamping.
	vMax := float32(cfg.Params.ManualControlVelocityMPerSec / cal.MDistPerCount)
	v := clampf(vTarget/float32(cal.MDistPerCount), -vMax, vMax)

	// v is in counts/sec; at TICK_HZ a realistic velocity contributes less
	// than one count per tick, so the fractional remainder is carried
	// forward rather than truncated away every tick (mirrors quantize's
	// Bresenham-style residual for the PWM output).
	w.posResidual += v * float32(tickDt)
	delta := int32(w.posResidual)
	w.posResidual -= float32(delta)
	w.setpoint += delta
}

// MakeCommand runs the PID loop and quantizes the result into a
// WinchCommand, pulling gains/force/deadband straight from the current
// config (the winch firmware enforces lockouts independently).
func (w *WinchController) MakeCommand(cfg config.Config, cal config.WinchCalibration, status message.WinchStatus) message.WinchCommand {
	pid := message.PIDGains{
		GainP:        cfg.Params.PWMGainP,
		GainI:        cfg.Params.PWMGainI,
		GainD:        cfg.Params.PWMGainD,
		PFilterParam: cfg.Params.PFilterParam,
		IDecayParam:  cfg.Params.IDecayParam,
		DFilterParam: cfg.Params.DFilterParam,
	}

	posErr := w.setpoint - status.Sensors.Position
	w.posErrFiltered = geom.Lerp(w.posErrFiltered, float32(posErr), pid.PFilterParam)

	velErr := -status.Sensors.Velocity
	w.velErrFiltered = geom.Lerp(w.velErrFiltered, velErr, pid.DFilterParam)

	w.posErrIntegral = w.posErrIntegral*(1-pid.IDecayParam) + float32(posErr)*float32(tickDt)

	p := pid.GainP * w.posErrFiltered
	i := pid.GainI * w.posErrIntegral
	d := pid.GainD * w.velErrFiltered
	total := clampf(p+i+d, -1, 1)

	watchdogOK := w.watchdogOK(cfg)
	enabled := cfg.Mode.Kind != message.Halted && watchdogOK

	quant := w.quantize(total)

	w.lastPWM = message.WinchPWM{
		Total:   total,
		P:       p,
		I:       i,
		D:       d,
		Quant:   quant,
		Enabled: enabled,
	}

	return message.WinchCommand{
		Position: w.setpoint,
		Force: message.ForceCommand{
			FilterParam:  cfg.Params.ForceFilterParam,
			NegMotionMin: cfg.Params.ForceNegMotionMin,
			PosMotionMax: cfg.Params.ForcePosMotionMax,
			LockoutBelow: cfg.Params.ForceLockoutBelow,
			LockoutAbove: cfg.Params.ForceLockoutAbove,
		},
		PID:      pid,
		Deadband: message.WinchDeadband{Position: cfg.Params.DeadbandPosition, Velocity: cfg.Params.DeadbandVelocity},
	}
}

// LastPWM returns the PID/PWM breakdown computed by the most recent call to
// MakeCommand, for diagnostic reporting on WinchStatus.Motor.
func (w *WinchController) LastPWM() message.WinchPWM { return w.lastPWM }

// LastMotorControl assembles the full diagnostic breakdown mirrored back to
// observers alongside each WinchCommand.
func (w *WinchController) LastMotorControl(status message.WinchStatus) message.WinchMotorControl {
	return message.WinchMotorControl{
		PWM:            w.lastPWM,
		PositionErr:    w.setpoint - status.Sensors.Position,
		PosErrFiltered: w.posErrFiltered,
		PosErrIntegral: w.posErrIntegral,
		VelErrInst:     -status.Sensors.Velocity,
		VelErrFiltered: w.velErrFiltered,
	}
}

// quantize converts a [-1,1] duty cycle into an integer clock-tick count,
// preserving the average duty via a Bresenham-style accumulated residual.
func (w *WinchController) quantize(total float32) int16 {
	const ticksPerPeriod = 256
	target := total * ticksPerPeriod
	w.quantResidual += target - float32(int32(target))
	adjust := int32(0)
	if w.quantResidual >= 1 {
		adjust = 1
		w.quantResidual -= 1
	} else if w.quantResidual <= -1 {
		adjust = -1
		w.quantResidual += 1
	}
	return int16(int32(target) + adjust)
}

func (w *WinchController) watchdogOK(cfg config.Config) bool {
	if !w.haveUpdate {
		return false
	}
	timeout := time.Duration(cfg.Params.WatchdogTimeoutSeconds * float64(time.Second))
	return time.Since(w.lastUpdateInstant) <= timeout
}

// WatchdogExpired reports whether this winch has not reported within the
// configured watchdog timeout (spec §4.4 multi-winch watchdog).
func (w *WinchController) WatchdogExpired(cfg config.Config) bool {
	if !w.haveUpdate {
		return true
	}
	timeout := time.Duration(cfg.Params.WatchdogTimeoutSeconds * float64(time.Second))
	return time.Since(w.lastUpdateInstant) > timeout
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
