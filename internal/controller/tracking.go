package controller

import (
	"math"
	"time"

	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/geom"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

// detectionFreshness bounds how old a detection batch may be before it is
// no longer eligible for a snap (spec §6 constants).
const detectionFreshness = 500 * time.Millisecond

// TrackingState maintains the actively tracked rectangle, steered either by
// detections or manual joystick input (spec §4.5).
type TrackingState struct {
	tracked     message.CameraTrackedRegion
	detected    message.CameraDetectedObjects
	detectedAt  time.Time
	pendingSnap bool
}

// NewTrackingState returns a TrackingState with an empty tracked rect.
func NewTrackingState() *TrackingState {
	return &TrackingState{}
}

// Tracked returns the current tracked region.
func (t *TrackingState) Tracked() message.CameraTrackedRegion { return t.tracked }

// ObjectDetectionUpdate records a fresh batch of detections and arms a
// pending snap for the next tracking_update call.
func (t *TrackingState) ObjectDetectionUpdate(det message.CameraDetectedObjects) {
	t.detected = det
	t.detectedAt = time.Now()
	t.pendingSnap = true
}

// RegionTrackingUpdate accepts an externally supplied tracked region, but
// only when manual camera control is not active.
func (t *TrackingState) RegionTrackingUpdate(manual *ManualControls, tr message.CameraTrackedRegion) {
	if !manual.CameraControlActive() {
		t.tracked = tr
	}
}

func defaultTrackingRect(cfg config.Config) geom.Rect {
	side := float32(math.Sqrt(float64(cfg.Vision.TrackingDefaultArea)))
	return geom.Rect{-side / 2, -side / 2, side, side}
}

// Update runs one tick (or one detection-triggered pass, with dt=0) of the
// tracking logic, returning the new rect when it changed and nil otherwise.
func (t *TrackingState) Update(cfg config.Config, manual *ManualControls, mode message.ControllerMode, dt float64, resetFromGimbal bool) *geom.Rect {
	vis := cfg.Vision
	area := t.tracked.Rect.Area()
	bad := (t.tracked.Age > 0 && t.tracked.PSR < vis.TrackingMinPSR) ||
		area < vis.TrackingMinArea || area > vis.TrackingMaxArea || resetFromGimbal

	switch {
	case manual.CameraControlActive():
		v := manual.CameraVector()
		if CameraVectorInDeadzone(v, cfg) {
			v = geom.Vector2{}
		}
		v = v.Mul(geom.Vector2{vis.ManualControlSpeed, -vis.ManualControlSpeed})
		restore := geom.Vector2{-vis.ManualControlRestoringForce, -vis.ManualControlRestoringForce}
		v = v.AddScaled(t.tracked.Rect.Center(), restore)
		center := t.tracked.Rect.Center().AddScaled(v, geom.Vector2{float32(dt), float32(dt)})
		rect := defaultTrackingRect(cfg).Translate(center)
		rect = geom.Constrain(rect, vis.BorderRect)
		t.tracked.Rect = rect
		return &rect

	default:
		if best, ok := t.bestSnapObject(cfg, mode); ok {
			t.pendingSnap = false
			rect := geom.Constrain(best.Rect, vis.BorderRect)
			t.tracked.Rect = rect
			t.tracked.Frame = t.detected.Frame
			return &rect
		}
		if bad {
			rect := defaultTrackingRect(cfg)
			t.tracked.Rect = rect
			t.tracked.PSR = 0
			t.tracked.Age = 0
			return &rect
		}
		return nil
	}
}

// bestSnapObject returns the highest-probability detected object satisfying
// some configured snap rule, processing rules in order and breaking ties by
// first-seen. No snap occurs in Halted or once the pending detection has
// gone stale.
func (t *TrackingState) bestSnapObject(cfg config.Config, mode message.ControllerMode) (message.CameraDetectedObject, bool) {
	if !t.pendingSnap {
		return message.CameraDetectedObject{}, false
	}
	if time.Since(t.detectedAt) > detectionFreshness {
		return message.CameraDetectedObject{}, false
	}
	if mode.Kind == message.Halted {
		return message.CameraDetectedObject{}, false
	}

	var best message.CameraDetectedObject
	found := false
	for _, obj := range t.detected.Objects {
		for _, rule := range cfg.Vision.SnapTrackedRegionTo {
			if obj.Label != rule.Label || obj.Prob < rule.MinProb {
				continue
			}
			// First matching rule in config order decides eligibility;
			// among eligible objects the highest probability wins, ties
			// keeping the first-seen (strict > only).
			if !found || obj.Prob > best.Prob {
				best = obj
				found = true
			}
			break
		}
	}
	return best, found
}
