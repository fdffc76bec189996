package controller

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

func TestManualControlsRamp(t *testing.T) {
	Convey("Given manual controls commanding full +X", t, func() {
		m := NewManualControls()
		m.ControlValue(message.RelativeX, 1)
		cfg := config.Config{Params: config.BotParams{
			ManualControlVelocityMPerSec: 1,
			AccelRateMPerSec2:            1,
		}}

		Convey("LimitedVelocity ramps toward target rather than snapping", func() {
			v := m.LimitedVelocity(cfg, 1.0/250)
			So(v[0], ShouldBeGreaterThan, 0)
			So(v[0], ShouldBeLessThan, 1)
		})

		Convey("repeated ticks converge toward the full target velocity", func() {
			var v [3]float32
			for i := 0; i < 1000; i++ {
				got := m.LimitedVelocity(cfg, 1.0/250)
				v = got
			}
			So(v[0], ShouldAlmostEqual, 1, 0.01)
		})
	})
}

func TestManualControlsClamping(t *testing.T) {
	Convey("Given an out-of-range axis value", t, func() {
		m := NewManualControls()

		Convey("ControlValue clamps to [-1, 1]", func() {
			m.ControlValue(message.CameraYaw, 5)
			So(m.axis(message.CameraYaw), ShouldEqual, float32(1))
			m.ControlValue(message.CameraYaw, -5)
			So(m.axis(message.CameraYaw), ShouldEqual, float32(-1))
		})
	})
}

func TestManualFullReset(t *testing.T) {
	Convey("Given manual controls with axis and ramp history", t, func() {
		m := NewManualControls()
		m.ControlValue(message.RelativeX, 1)
		cfg := config.Config{Params: config.BotParams{ManualControlVelocityMPerSec: 1, AccelRateMPerSec2: 1}}
		m.LimitedVelocity(cfg, 1.0/250)

		Convey("FullReset clears both axes and ramp history", func() {
			m.FullReset()
			So(m.axis(message.RelativeX), ShouldEqual, float32(0))
			v := m.LimitedVelocity(cfg, 1.0/250)
			So(v[0], ShouldEqual, float32(0))
		})
	})
}
