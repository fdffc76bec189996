// Package led defines the LightEnvironment snapshot the Controller computes
// each tick and the Animator port it forwards that snapshot to; the
// animator thread itself lives outside this module (spec §1).
package led

// WinchLight is the per-winch lighting state derived from its mechanical
// status.
type WinchLight struct {
	CommandColor [4]float32
	MotionColor  [4]float32
}

// LightEnvironment is the full snapshot handed to the LED animator each
// tick.
type LightEnvironment struct {
	Winches         []WinchLight
	CameraYawAngle  float32
	RingColor       [4]float32
	IsTracking      bool
	IsBored         bool
}

// Animator is the narrow port to the LED animation thread.
type Animator interface {
	Update(env LightEnvironment)
}

// NoopAnimator discards updates. Used when no animation thread is wired up
// (e.g. in tests or a headless run).
type NoopAnimator struct{}

func (NoopAnimator) Update(LightEnvironment) {}
