package controller

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/geom"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

func visionTestCfg() config.Config {
	cfg := config.Config{
		Mode: message.ControllerMode{Kind: message.Normal},
		Vision: config.VisionParams{
			BorderRect:          geom.Rect{-1, -1, 2, 2},
			TrackingMinArea:     0.001,
			TrackingMaxArea:     1,
			TrackingDefaultArea: 0.04,
			SnapTrackedRegionTo: []config.SnapRule{
				{Label: "person", MinProb: 0.5},
				{Label: "car", MinProb: 0.8},
			},
		},
	}
	return cfg
}

func TestBestSnapObject(t *testing.T) {
	Convey("Given a tracking state with a pending detection batch", t, func() {
		cfg := visionTestCfg()
		ts := NewTrackingState()
		ts.ObjectDetectionUpdate(message.CameraDetectedObjects{
			Objects: []message.CameraDetectedObject{
				{Label: "person", Prob: 0.6, Rect: geom.Rect{0, 0, 0.1, 0.1}},
				{Label: "person", Prob: 0.9, Rect: geom.Rect{0.2, 0.2, 0.1, 0.1}},
				{Label: "car", Prob: 0.95, Rect: geom.Rect{0.4, 0.4, 0.1, 0.1}},
			},
		})

		Convey("it snaps to the highest-probability eligible object", func() {
			best, ok := ts.bestSnapObject(cfg, cfg.Mode)
			So(ok, ShouldBeTrue)
			So(best.Prob, ShouldEqual, float32(0.95))
			So(best.Label, ShouldEqual, "car")
		})

		Convey("no snap occurs while Halted", func() {
			_, ok := ts.bestSnapObject(cfg, message.ControllerMode{Kind: message.Halted})
			So(ok, ShouldBeFalse)
		})

		Convey("objects below a rule's threshold are ineligible", func() {
			ts2 := NewTrackingState()
			ts2.ObjectDetectionUpdate(message.CameraDetectedObjects{
				Objects: []message.CameraDetectedObject{
					{Label: "car", Prob: 0.5, Rect: geom.Rect{0, 0, 0.1, 0.1}},
				},
			})
			_, ok := ts2.bestSnapObject(cfg, cfg.Mode)
			So(ok, ShouldBeFalse)
		})
	})
}

func TestTrackingUpdateBadTrackingReset(t *testing.T) {
	Convey("Given a tracking state whose rect has collapsed below the minimum area", t, func() {
		cfg := visionTestCfg()
		manual := NewManualControls()
		ts := NewTrackingState()
		ts.tracked.Rect = geom.Rect{0, 0, 0.0001, 0.0001}
		ts.tracked.Age = 1
		ts.tracked.PSR = 0

		Convey("Update resets to the default centered rect", func() {
			rect := ts.Update(cfg, manual, cfg.Mode, 1.0/250, false)
			So(rect, ShouldNotBeNil)
			So(rect.Area(), ShouldAlmostEqual, cfg.Vision.TrackingDefaultArea, 0.0001)
		})
	})
}

func TestTrackingManualSteering(t *testing.T) {
	Convey("Given manual camera control is active", t, func() {
		cfg := visionTestCfg()
		manual := NewManualControls()
		manual.ControlValue(message.CameraYaw, 1)
		ts := NewTrackingState()

		Convey("Update steers the rect instead of snapping", func() {
			rect := ts.Update(cfg, manual, cfg.Mode, 1.0/250, false)
			So(rect, ShouldNotBeNil)
		})
	})
}
