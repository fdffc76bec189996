package controller

import (
	"time"

	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/gimbalport"
	"github.com/tucoflyer/flyer-controller/internal/geom"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

// GimbalController maps the tracked region's overlap with a set of
// configured rectangles into a 2D rate command, and tracks how long the
// tracked region has sat outside central tolerance for rehoming (spec §4.6).
type GimbalController struct {
	currentAngles        geom.Vector3
	errorSince           time.Time
	haveError            bool
	lastErrorDuration    time.Duration
}

// NewGimbalController returns a GimbalController with zeroed angle estimate.
func NewGimbalController() *GimbalController {
	return &GimbalController{}
}

// CurrentErrorDuration is the contiguous time the tracked rect has lain
// outside the central tolerance.
func (g *GimbalController) CurrentErrorDuration() time.Duration {
	return g.lastErrorDuration
}

// Angles returns the current 3-axis angle estimate integrated from inbound
// GimbalValue reports.
func (g *GimbalController) Angles() geom.Vector3 {
	return g.currentAngles
}

// Tick computes the commanded gimbal rate from the tracked region's overlap
// with each configured tracking rect, sends it, and updates the persistent
// error timer used to trigger a rehome.
func (g *GimbalController) Tick(cfg config.Config, port gimbalport.Port, tracked message.CameraTrackedRegion) message.GimbalCommand {
	rate := geom.Vector2{}
	for _, tr := range cfg.Gimbal.TrackingRects {
		overlap := geom.Intersect(tracked.Rect, tr.Rect())
		area := overlap.Area()
		gain := tr.Gain()
		rate = rate.AddScaled(geom.Vector2{area, area}, gain)
	}

	center := tracked.Rect.Center()
	dist := center.Len()
	if dist > cfg.Gimbal.CentralToleranceRadius {
		if !g.haveError {
			g.errorSince = time.Now()
			g.haveError = true
		}
		g.lastErrorDuration = time.Since(g.errorSince)
	} else {
		g.haveError = false
		g.lastErrorDuration = 0
	}

	cmd := message.GimbalCommand{MotorOn: cfg.Mode.Kind != message.Halted, Rates: rate}
	if port != nil {
		_ = port.SendRateCommand(cmd)
	}
	return cmd
}

// Rehome resets the persistent-error timer and recenters the angle
// estimate, called when CurrentErrorDuration exceeds the rehome threshold.
func (g *GimbalController) Rehome() {
	g.haveError = false
	g.lastErrorDuration = 0
	g.currentAngles = geom.Vector3{}
}

// ValueReceived integrates one inbound gimbal register value into the
// 3-axis angle estimate.
func (g *GimbalController) ValueReceived(val message.GimbalValue) {
	switch val.Address {
	case 0:
		g.currentAngles[0] = float32(val.Value)
	case 1:
		g.currentAngles[1] = float32(val.Value)
	case 2:
		g.currentAngles[2] = float32(val.Value)
	}
}

// SetMotorEnable is a pass-through to the gimbal port.
func (g *GimbalController) SetMotorEnable(port gimbalport.Port, enable bool) {
	if port != nil {
		_ = port.SetMotorEnable(enable)
	}
}
