package controller

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

func stateTestCfg() config.Config {
	return config.Config{
		Mode: message.ControllerMode{Kind: message.Halted},
		Params: config.BotParams{
			ForceMinKg:                   -2,
			ForceMaxKg:                   20,
			ManualControlVelocityMPerSec: 1,
			AccelRateMPerSec2:            10,
			WatchdogTimeoutSeconds:       1,
		},
		Winches: []config.WinchConfig{
			{Calibration: config.WinchCalibration{MDistPerCount: 1}},
			{Calibration: config.WinchCalibration{MDistPerCount: 1}},
		},
	}
}

func TestWinchControlLoopModeGating(t *testing.T) {
	Convey("Given a controller state with two winches", t, func() {
		cfg := stateTestCfg()
		s := NewControllerState(cfg)
		status := message.WinchStatus{Sensors: message.WinchSensors{Position: 10}}

		Convey("Halted mode never commands nonzero velocity, even with manual axes set", func() {
			s.Manual.ControlValue(message.RelativeY, 1)
			cmd := s.WinchControlLoop(cfg, 0, status)
			So(cmd.Position, ShouldEqual, int32(10))
		})

		Convey("ManualWinch(1) does not drive winch 0", func() {
			cfg.Mode = message.ControllerMode{Kind: message.ManualWinch, Winch: 1}
			s.Manual.ControlValue(message.RelativeY, 1)
			cmd := s.WinchControlLoop(cfg, 0, status)
			So(cmd.Position, ShouldEqual, int32(10))
		})

		Convey("ManualWinch(0) drives winch 0", func() {
			cfg.Mode = message.ControllerMode{Kind: message.ManualWinch, Winch: 0}
			s.Manual.ControlValue(message.RelativeY, 1)
			var cmd message.WinchCommand
			for i := 0; i < 500; i++ {
				cmd = s.WinchControlLoop(cfg, 0, status)
			}
			So(cmd.Position, ShouldBeGreaterThan, int32(10))
		})
	})
}

func TestMultiWinchWatchdog(t *testing.T) {
	Convey("Given a controller state whose winches have never reported", t, func() {
		cfg := stateTestCfg()
		s := NewControllerState(cfg)

		Convey("the watchdog reports a halt is due", func() {
			So(s.MultiWinchWatchdogShouldHalt(cfg), ShouldBeTrue)
		})

		Convey("after one winch reports, the other still forces a halt", func() {
			s.WinchControlLoop(cfg, 0, message.WinchStatus{})
			So(s.MultiWinchWatchdogShouldHalt(cfg), ShouldBeTrue)
		})

		Convey("once every winch has reported within the timeout, no halt is due", func() {
			s.WinchControlLoop(cfg, 0, message.WinchStatus{})
			s.WinchControlLoop(cfg, 1, message.WinchStatus{})
			So(s.MultiWinchWatchdogShouldHalt(cfg), ShouldBeFalse)
		})
	})
}
