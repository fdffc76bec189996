package controller

import (
	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/gimbalport"
	"github.com/tucoflyer/flyer-controller/internal/geom"
	"github.com/tucoflyer/flyer-controller/internal/led"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

// ControllerState aggregates the winches, manual controls, tracking and
// sensor caches, and reacts to mode transitions (spec §4). It is created
// once at startup and mutated only from the event loop goroutine.
type ControllerState struct {
	Manual   *ManualControls
	Tracking *TrackingState
	Gimbal   *GimbalController

	winches []*WinchController

	flyerSensors    message.FlyerSensors
	haveFlyerSensors bool

	lastMode message.ControllerMode
}

// NewControllerState builds per-winch controllers from the initial config
// and returns a freshly initialized state.
func NewControllerState(initial config.Config) *ControllerState {
	winches := make([]*WinchController, len(initial.Winches))
	for i := range initial.Winches {
		winches[i] = NewWinchController(i)
	}
	return &ControllerState{
		Manual:   NewManualControls(),
		Tracking: NewTrackingState(),
		Gimbal:   NewGimbalController(),
		winches:  winches,
		lastMode: initial.Mode,
	}
}

// ConfigChanged reacts to a new config snapshot: if the mode changed, it
// performs a motion halt (full manual reset and every winch's position-error
// integrator zeroed).
func (s *ControllerState) ConfigChanged(cfg config.Config) {
	if cfg.Mode != s.lastMode {
		s.Manual.FullReset()
		for _, w := range s.winches {
			w.posErrIntegral = 0
		}
		s.lastMode = cfg.Mode
	}
}

// FlyerSensorUpdate caches the latest flyer sensor pack; it has no
// immediate side effect.
func (s *ControllerState) FlyerSensorUpdate(sensors message.FlyerSensors) {
	s.flyerSensors = sensors
	s.haveFlyerSensors = true
}

// WinchControlLoop runs one WinchStatus through update, mode-gated velocity
// selection, the velocity integrator, and PID command synthesis (spec §4.4).
func (s *ControllerState) WinchControlLoop(cfg config.Config, id int, status message.WinchStatus) message.WinchCommand {
	cal := cfg.Winches[id].Calibration
	w := s.winches[id]
	w.Update(cfg, cal, status)

	var velocity float32
	if cfg.Mode.Kind == message.ManualWinch && cfg.Mode.Winch == id {
		v := s.Manual.LimitedVelocity(cfg, tickDt)[1]
		switch w.MechStatus() {
		case MechNormal:
			velocity = v
		case MechStuck:
			velocity = 0
		default:
			sign := w.MechStatus().ForceSign()
			if v*sign < 0 {
				velocity = v
			} else {
				velocity = 0
			}
		}
	}

	w.VelocityTick(cfg, cal, status, velocity)
	return w.MakeCommand(cfg, cal, status)
}

// WinchMotorControl exposes the diagnostic PID breakdown for winch id after
// WinchControlLoop has run for it this tick.
func (s *ControllerState) WinchMotorControl(id int, status message.WinchStatus) message.WinchMotorControl {
	return s.winches[id].LastMotorControl(status)
}

// MultiWinchWatchdogShouldHalt reports whether any configured winch has not
// reported within watchdog_timeout.
func (s *ControllerState) MultiWinchWatchdogShouldHalt(cfg config.Config) bool {
	for _, w := range s.winches {
		if w.WatchdogExpired(cfg) {
			return true
		}
	}
	return false
}

// EnsureWinchCount grows the per-winch controller slice to match a config
// that added winches; existing controllers (and their state) are preserved,
// matching the spec's "not rebuilt on config change" lifecycle rule.
func (s *ControllerState) EnsureWinchCount(n int) {
	for len(s.winches) < n {
		s.winches = append(s.winches, NewWinchController(len(s.winches)))
	}
}

// EveryTick advances manual control ramping and the gimbal/tracking chain
// for one tick, returning a newly initialized tracking rect if one resulted
// along with the gimbal rate command just sent, for status broadcast.
func (s *ControllerState) EveryTick(cfg config.Config, gimbal gimbalport.Port) (*geom.Rect, message.GimbalCommand) {
	s.Manual.ControlTick(tickDt)

	gimbalCmd := s.Gimbal.Tick(cfg, gimbal, s.Tracking.Tracked())
	resetTracking := s.Gimbal.CurrentErrorDuration().Seconds() > cfg.Gimbal.ErrorDurationForRehomeSec
	if resetTracking {
		s.Gimbal.Rehome()
	}

	rect := s.Tracking.Update(cfg, s.Manual, cfg.Mode, tickDt, resetTracking)
	return rect, gimbalCmd
}

// LightEnvironment derives the LED animation snapshot from winch mechanical
// state and the tracked region's presence and age. The controller mode is
// not consulted, and CameraYawAngle is always 0.
func (s *ControllerState) LightEnvironment(cfg config.Config) led.LightEnvironment {
	winches := make([]led.WinchLight, len(s.winches))
	for i, w := range s.winches {
		color := [4]float32{0, 1, 0, 1}
		if w.MechStatus() != MechNormal {
			color = [4]float32{1, 0, 0, 1}
		}
		winches[i] = led.WinchLight{CommandColor: color, MotionColor: color}
	}

	tracked := s.Tracking.Tracked()
	return led.LightEnvironment{
		Winches:        winches,
		CameraYawAngle: 0,
		IsTracking:     !tracked.IsEmpty(),
		IsBored:        tracked.Age > cfg.Vision.TrackingAgeBoredomThreshold,
	}
}
