package controller

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

func testCfg() config.Config {
	return config.Config{
		Mode: message.ControllerMode{Kind: message.ManualWinch, Winch: 0},
		Params: config.BotParams{
			ForceMinKg:                   -2,
			ForceMaxKg:                   20,
			ManualControlVelocityMPerSec: 1,
			AccelRateMPerSec2:            10,
			WatchdogTimeoutSeconds:       1,
			StuckTimeoutSeconds:          1,
		},
	}
}

func TestWinchHaltedSnapsSetpoint(t *testing.T) {
	Convey("Given a winch controller in Halted mode", t, func() {
		cfg := testCfg()
		cfg.Mode = message.ControllerMode{Kind: message.Halted}
		cal := config.WinchCalibration{MDistPerCount: 1}
		w := NewWinchController(0)
		status := message.WinchStatus{Sensors: message.WinchSensors{Position: 42}}

		Convey("VelocityTick snaps the setpoint to the reported position", func() {
			w.VelocityTick(cfg, cal, status, 5)
			cmd := w.MakeCommand(cfg, cal, status)
			So(cmd.Position, ShouldEqual, int32(42))
		})

		Convey("MakeCommand reports enabled=false", func() {
			w.VelocityTick(cfg, cal, status, 0)
			_ = w.MakeCommand(cfg, cal, status)
			So(w.LastPWM().Enabled, ShouldBeFalse)
		})
	})
}

func TestWinchForceInterlock(t *testing.T) {
	Convey("Given a winch whose filtered force exceeds the positive limit", t, func() {
		cfg := testCfg()
		cal := config.WinchCalibration{MDistPerCount: 1}
		w := NewWinchController(0)
		status := message.WinchStatus{Sensors: message.WinchSensors{
			Force: message.ForceTelemetry{Measure: 100},
		}}
		// Drive filteredForce toward the raw measurement.
		cfg.Params.ForceFilterParam = 1
		w.Update(cfg, cal, status)
		So(w.MechStatus(), ShouldEqual, MechForceLimitedPositive)

		Convey("Motion that would worsen the tension is frozen", func() {
			w.VelocityTick(cfg, cal, status, 5) // positive velocity worsens positive force limit
			cmd := w.MakeCommand(cfg, cal, status)
			So(cmd.Position, ShouldEqual, int32(0))
		})

		Convey("Motion that relieves the tension is allowed", func() {
			var cmd message.WinchCommand
			for i := 0; i < 500; i++ {
				w.VelocityTick(cfg, cal, status, -5)
				cmd = w.MakeCommand(cfg, cal, status)
			}
			So(cmd.Position, ShouldNotEqual, int32(0))
		})
	})
}

func TestWinchStuckDetection(t *testing.T) {
	Convey("Given a winch commanded to move but reporting zero velocity", t, func() {
		cfg := testCfg()
		cfg.Params.DeadbandVelocity = 0.1
		cfg.Params.StuckTimeoutSeconds = 0
		cal := config.WinchCalibration{MDistPerCount: 1}
		w := NewWinchController(0)
		status := message.WinchStatus{Sensors: message.WinchSensors{Velocity: 0}}

		w.Update(cfg, cal, status)       // baseline: lastCommandedV starts at zero
		w.VelocityTick(cfg, cal, status, 5) // commands a nonzero velocity
		w.Update(cfg, cal, status)       // observes zero velocity despite the nonzero command

		Convey("it is classified as stuck once the stuck timeout elapses", func() {
			So(w.MechStatus(), ShouldEqual, MechStuck)
		})
	})
}
