package controller

import (
	"time"

	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/geom"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

// ManualControls holds the latest commanded value per axis and derives the
// rate-limited velocity and camera vectors the tick handler consumes
// (spec §4.3). Missing axes read as zero; insertion order is irrelevant.
type ManualControls struct {
	axes map[message.ManualControlAxis]float32

	lastVelocity geom.Vector3
	lastTick     time.Time
	haveLastTick bool
}

// NewManualControls returns a ManualControls with every axis at zero.
func NewManualControls() *ManualControls {
	return &ManualControls{axes: make(map[message.ManualControlAxis]float32)}
}

// ControlValue sets one axis, clamped to [-1,1].
func (m *ManualControls) ControlValue(axis message.ManualControlAxis, v float32) {
	m.axes[axis] = geom.Clamp(v, -1, 1)
}

func (m *ManualControls) axis(a message.ManualControlAxis) float32 {
	return m.axes[a]
}

// ControlReset zeroes every axis but preserves rate-limit history, so an
// in-flight ramp continues smoothly toward zero rather than snapping.
func (m *ManualControls) ControlReset() {
	m.axes = make(map[message.ManualControlAxis]float32)
}

// FullReset additionally clears rate-limit history. Called on every mode
// change (spec §4.3).
func (m *ManualControls) FullReset() {
	m.ControlReset()
	m.lastVelocity = geom.Vector3{}
	m.haveLastTick = false
}

// ControlTick records the instant of the latest tick; dt is not used. It
// does not move the ramped velocity: LimitedVelocity advances the ramp by
// its own dt on every call, so the ramp steps once per call rather than
// once per tick.
func (m *ManualControls) ControlTick(dt float64) {
	m.lastTick = time.Now()
	m.haveLastTick = true
	_ = dt // velocity itself is recomputed on demand by LimitedVelocity
}

// LimitedVelocity returns the commanded (RelativeX,RelativeY,RelativeZ)
// velocity vector scaled by the configured manual speed, then clamped so its
// per-component change since the previous LimitedVelocity call does not exceed
// accel_rate_m_per_sec2 * dt (a simple ramp).
func (m *ManualControls) LimitedVelocity(cfg config.Config, dt float64) geom.Vector3 {
	target := geom.Vector3{
		m.axis(message.RelativeX),
		m.axis(message.RelativeY),
		m.axis(message.RelativeZ),
	}
	speed := float32(cfg.Params.ManualControlVelocityMPerSec)
	target = geom.Vector3{target[0] * speed, target[1] * speed, target[2] * speed}

	maxStep := float32(cfg.Params.AccelRateMPerSec2 * dt)
	result := geom.Vector3{}
	for i := 0; i < 3; i++ {
		delta := target[i] - m.lastVelocity[i]
		if delta > maxStep {
			delta = maxStep
		} else if delta < -maxStep {
			delta = -maxStep
		}
		result[i] = m.lastVelocity[i] + delta
	}
	m.lastVelocity = result
	return result
}

// CameraVector returns the (CameraYaw, CameraPitch) axes, unscaled.
func (m *ManualControls) CameraVector() geom.Vector2 {
	return geom.Vector2{m.axis(message.CameraYaw), m.axis(message.CameraPitch)}
}

// CameraVectorInDeadzone reports whether v's magnitude is below the
// configured manual-camera deadzone.
func CameraVectorInDeadzone(v geom.Vector2, cfg config.Config) bool {
	return v.Len() < cfg.Vision.ManualCameraDeadzone
}

// CameraControlActive is true iff either camera axis is nonzero.
func (m *ManualControls) CameraControlActive() bool {
	return m.axis(message.CameraYaw) != 0 || m.axis(message.CameraPitch) != 0
}
