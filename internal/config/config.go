// Package config loads and merges the bot's TOML configuration.
//
// The configuration file supports roughly:
//
//	mode = "Halted"
//
//	[web]
//	http_addr = "0.0.0.0:8080"
//	ws_addr = "0.0.0.0:8081"
//
//	[params]
//	accel_rate_m_per_sec2 = 0.5
//	manual_control_velocity_m_per_sec = 0.2
//	force_min_kg = -2.0
//	force_max_kg = 20.0
//
//	[[winches]]
//	addr = "10.0.0.11:9000"
//	[winches.loc]
//	x = 0.0
//	y = 0.0
//	z = 2.0
//	[winches.calibration]
//	kg_force_at_zero = 0.0
//	kg_force_per_count = 0.001
//	m_dist_per_count = 0.0001
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/tucoflyer/flyer-controller/internal/geom"
	"github.com/tucoflyer/flyer-controller/internal/message"
)

// Point3 is a 3D mount location, in meters, relative to the flyer's origin.
type Point3 struct {
	X float64 `toml:"x" json:"x"`
	Y float64 `toml:"y" json:"y"`
	Z float64 `toml:"z" json:"z"`
}

// WinchCalibration is an affine mapping between raw driver units (counts)
// and the physical units a human or higher-level planner uses (kg, meters).
// Both directions must be exact inverses of each other.
type WinchCalibration struct {
	KgForceAtZero   float64 `toml:"kg_force_at_zero" json:"kgForceAtZero"`
	KgForcePerCount float64 `toml:"kg_force_per_count" json:"kgForcePerCount"`
	MDistPerCount   float64 `toml:"m_dist_per_count" json:"mDistPerCount"`
}

func (c WinchCalibration) ForceToKg(counts float64) float64 {
	return c.KgForceAtZero + c.KgForcePerCount*counts
}

func (c WinchCalibration) ForceFromKg(kg float64) float64 {
	return (kg - c.KgForceAtZero) / c.KgForcePerCount
}

func (c WinchCalibration) DistToM(counts float64) float64 {
	return c.MDistPerCount * counts
}

func (c WinchCalibration) DistFromM(m float64) float64 {
	return m / c.MDistPerCount
}

// WinchConfig is one configured winch: its network address, 3D mount
// location, and calibration.
type WinchConfig struct {
	Addr        string           `toml:"addr" json:"addr"`
	Loc         Point3           `toml:"loc" json:"loc"`
	Calibration WinchCalibration `toml:"calibration" json:"calibration"`
}

// BotParams holds the scalar tuning parameters shared by manual control and
// the per-winch PID loops.
type BotParams struct {
	AccelRateMPerSec2            float64 `toml:"accel_rate_m_per_sec2" json:"accelRateMPerSec2"`
	ManualControlVelocityMPerSec float64 `toml:"manual_control_velocity_m_per_sec" json:"manualControlVelocityMPerSec"`
	ForceMinKg                   float64 `toml:"force_min_kg" json:"forceMinKg"`
	ForceMaxKg                   float64 `toml:"force_max_kg" json:"forceMaxKg"`
	ForceFilterParam             float32 `toml:"force_filter_param" json:"forceFilterParam"`
	PWMGainP                     float32 `toml:"pwm_gain_p" json:"pwmGainP"`
	PWMGainI                     float32 `toml:"pwm_gain_i" json:"pwmGainI"`
	PWMGainD                     float32 `toml:"pwm_gain_d" json:"pwmGainD"`
	PFilterParam                 float32 `toml:"p_filter_param" json:"pFilterParam"`
	IDecayParam                  float32 `toml:"i_decay_param" json:"iDecayParam"`
	DFilterParam                 float32 `toml:"d_filter_param" json:"dFilterParam"`
	DeadbandPosition             int32   `toml:"deadband_position" json:"deadbandPosition"`
	DeadbandVelocity             float32 `toml:"deadband_velocity" json:"deadbandVelocity"`
	StuckTimeoutSeconds          float64 `toml:"stuck_timeout_seconds" json:"stuckTimeoutSeconds"`
	WatchdogTimeoutSeconds       float64 `toml:"watchdog_timeout_seconds" json:"watchdogTimeoutSeconds"`
	ForceNegMotionMin            float32 `toml:"force_neg_motion_min" json:"forceNegMotionMin"`
	ForcePosMotionMax            float32 `toml:"force_pos_motion_max" json:"forcePosMotionMax"`
	ForceLockoutBelow            float32 `toml:"force_lockout_below" json:"forceLockoutBelow"`
	ForceLockoutAbove            float32 `toml:"force_lockout_above" json:"forceLockoutAbove"`
}

// SnapRule pairs a detector label with the minimum probability required for
// the tracker to snap to it.
type SnapRule struct {
	Label   string  `toml:"label" json:"label"`
	MinProb float32 `toml:"min_prob" json:"minProb"`
}

// VisionParams configures the tracked-region logic (§4.5).
type VisionParams struct {
	BorderRect                  geom.Rect  `toml:"-" json:"-"`
	BorderRectValues            [4]float32 `toml:"border_rect" json:"borderRect"`
	TrackingMinPSR              float32    `toml:"tracking_min_psr" json:"trackingMinPSR"`
	TrackingMinArea             float32    `toml:"tracking_min_area" json:"trackingMinArea"`
	TrackingMaxArea             float32    `toml:"tracking_max_area" json:"trackingMaxArea"`
	TrackingDefaultArea         float32    `toml:"tracking_default_area" json:"trackingDefaultArea"`
	TrackingAgeBoredomThreshold uint32     `toml:"tracking_age_boredom_threshold" json:"trackingAgeBoredomThreshold"`
	ManualControlSpeed          float32    `toml:"manual_control_speed" json:"manualControlSpeed"`
	ManualControlRestoringForce float32    `toml:"manual_control_restoring_force" json:"manualControlRestoringForce"`
	ManualCameraDeadzone        float32    `toml:"manual_camera_deadzone" json:"manualCameraDeadzone"`
	SnapTrackedRegionTo         []SnapRule `toml:"snap_tracked_region_to" json:"snapTrackedRegionTo"`
}

// GimbalTrackingRect pairs a configured rectangle with the 2D gain vector
// applied to its overlap with the tracked region.
type GimbalTrackingRect struct {
	RectValues [4]float32 `toml:"rect" json:"rect"`
	GainValues [2]float32 `toml:"gain" json:"gain"`
}

func (g GimbalTrackingRect) Rect() geom.Rect    { return geom.Rect(g.RectValues) }
func (g GimbalTrackingRect) Gain() geom.Vector2 { return geom.Vector2(g.GainValues) }

// GimbalParams configures the gimbal controller (§4.6).
type GimbalParams struct {
	TrackingRects             []GimbalTrackingRect `toml:"tracking_rects" json:"trackingRects"`
	ErrorDurationForRehomeSec float64              `toml:"error_duration_for_rehome_seconds" json:"errorDurationForRehomeSec"`
	CentralToleranceRadius    float32              `toml:"central_tolerance_radius" json:"centralToleranceRadius"`
}

// LightingParams configures the LED animation consumer.
type LightingParams struct {
	Animation string `toml:"animation" json:"animation"`
}

// WebConfig names the addresses external surfaces bind to. cmd/flyercontrold
// binds its HTTP and websocket servers to HTTPAddr and WSAddr; the other
// fields are carried in the config only.
type WebConfig struct {
	HTTPAddr           string `toml:"http_addr" json:"httpAddr"`
	WSAddr             string `toml:"ws_addr" json:"wsAddr"`
	WebRootPath        string `toml:"web_root_path" json:"webRootPath"`
	ConnectionFilePath string `toml:"connection_file_path" json:"connectionFilePath"`
}

// Config is the full, immutable configuration snapshot passed by value
// through the control loop. Never mutate a Config in place; build a new one
// and swap it into the SharedConfigFile.
type Config struct {
	Mode           message.ControllerMode `toml:"-" json:"-"`
	ModeName       string                 `toml:"mode" json:"modeName"`
	ModeWinch      int                    `toml:"mode_winch" json:"modeWinch"`
	ControllerAddr string                 `toml:"controller_addr" json:"controllerAddr"`
	FlyerAddr      string                 `toml:"flyer_addr" json:"flyerAddr"`
	Web            WebConfig              `toml:"web" json:"web"`
	Params         BotParams              `toml:"params" json:"params"`
	Vision         VisionParams           `toml:"vision" json:"vision"`
	Gimbal         GimbalParams           `toml:"gimbal" json:"gimbal"`
	Lighting       LightingParams         `toml:"lighting" json:"lighting"`
	Winches        []WinchConfig          `toml:"winches" json:"winches"`
}

// TickHz is TICK_HZ, the fixed rate of the control loop's tick timer.
const TickHz = 250

// Load reads and parses a TOML configuration file into a Config snapshot.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.postDecode()
	return cfg, nil
}

// postDecode derives fields that TOML cannot populate directly (the
// strongly-typed ControllerMode and the Rect view of BorderRectValues).
func (c *Config) postDecode() {
	c.Vision.BorderRect = geom.Rect(c.Vision.BorderRectValues)
	c.Mode = parseMode(c.ModeName, c.ModeWinch)
}

// parseMode reconstructs a ControllerMode from its persisted form. winch is
// only meaningful (and only populated on the wire) when name is
// "ManualWinch"; it is carried alongside modeName rather than encoded into
// it so ManualWinch(i) round-trips losslessly through TOML/JSON, matching
// the original Rust enum's ManualWinch(usize) variant.
func parseMode(name string, winch int) message.ControllerMode {
	switch name {
	case "Normal":
		return message.ControllerMode{Kind: message.Normal}
	case "ManualFlyer":
		return message.ControllerMode{Kind: message.ManualFlyer}
	case "ManualWinch":
		return message.ControllerMode{Kind: message.ManualWinch, Winch: winch}
	default:
		return message.ControllerMode{Kind: message.Halted}
	}
}

// ModeName renders a ControllerMode's kind back to the TOML/JSON string
// form. The winch index, when Kind == ManualWinch, is carried separately in
// Config.ModeWinch — see parseMode.
func ModeName(m message.ControllerMode) string {
	switch m.Kind {
	case message.Normal:
		return "Normal"
	case message.ManualFlyer:
		return "ManualFlyer"
	case message.ManualWinch:
		return "ManualWinch"
	default:
		return "Halted"
	}
}

// Clone returns a deep-enough copy of c suitable for independent mutation;
// slices are copied so that appending to Winches on one copy never affects
// another.
func (c Config) Clone() Config {
	out := c
	out.Winches = append([]WinchConfig(nil), c.Winches...)
	out.Vision.SnapTrackedRegionTo = append([]SnapRule(nil), c.Vision.SnapTrackedRegionTo...)
	out.Gimbal.TrackingRects = append([]GimbalTrackingRect(nil), c.Gimbal.TrackingRects...)
	return out
}
