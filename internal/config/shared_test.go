package config

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/tucoflyer/flyer-controller/internal/message"
)

func baseTestConfig() Config {
	cfg := Config{
		ModeName: "Halted",
		Params: BotParams{
			ForceMinKg: -2,
			ForceMaxKg: 20,
			PWMGainP:   1,
		},
		Winches: []WinchConfig{
			{Addr: "10.0.0.11:9000"},
			{Addr: "10.0.0.12:9000"},
		},
	}
	cfg.postDecode()
	return cfg
}

func TestMergePatch(t *testing.T) {
	Convey("Given a base config", t, func() {
		base := baseTestConfig()

		Convey("A patch overwriting a leaf field changes only that field", func() {
			patched, err := MergePatch(base, []byte(`{"params":{"forceMaxKg":30}}`))
			So(err, ShouldBeNil)
			So(patched.Params.ForceMaxKg, ShouldEqual, 30)
			So(patched.Params.ForceMinKg, ShouldEqual, base.Params.ForceMinKg)
		})

		Convey("A patch with a null value deletes that member, reverting to zero value", func() {
			patched, err := MergePatch(base, []byte(`{"params":{"forceMaxKg":null}}`))
			So(err, ShouldBeNil)
			So(patched.Params.ForceMaxKg, ShouldEqual, 0)
		})

		Convey("A patch naming the winches array replaces it wholesale", func() {
			patched, err := MergePatch(base, []byte(`{"winches":[{"addr":"10.0.0.99:9000"}]}`))
			So(err, ShouldBeNil)
			So(len(patched.Winches), ShouldEqual, 1)
			So(patched.Winches[0].Addr, ShouldEqual, "10.0.0.99:9000")
		})

		Convey("A mode-name patch re-derives the strongly typed Mode", func() {
			patched, err := MergePatch(base, []byte(`{"modeName":"Normal"}`))
			So(err, ShouldBeNil)
			So(patched.Mode.Kind, ShouldEqual, message.Normal)
		})

		Convey("A ManualWinch patch round-trips the winch index", func() {
			patched, err := MergePatch(base, []byte(`{"modeName":"ManualWinch","modeWinch":2}`))
			So(err, ShouldBeNil)
			So(patched.Mode.Kind, ShouldEqual, message.ManualWinch)
			So(patched.Mode.Winch, ShouldEqual, 2)
		})
	})
}

func TestConfigClone(t *testing.T) {
	Convey("Given a config with slices", t, func() {
		base := baseTestConfig()

		Convey("Clone produces independently mutable slices", func() {
			clone := base.Clone()
			clone.Winches = append(clone.Winches, WinchConfig{Addr: "extra"})
			So(len(base.Winches), ShouldEqual, 2)
			So(len(clone.Winches), ShouldEqual, 3)
		})
	})
}
