// Package controller implements the Controller event loop: a
// single-threaded, cooperative loop that demultiplexes the message bus,
// runs the per-winch PID loops at TICK_HZ, steers the tracked region,
// broadcasts every event to subscribers, and applies live config updates
// (spec §4).
package controller

import (
	"reflect"

	"github.com/tucoflyer/flyer-controller/internal/botsocket"
	"github.com/tucoflyer/flyer-controller/internal/bus"
	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/gimbalport"
	"github.com/tucoflyer/flyer-controller/internal/led"
	"github.com/tucoflyer/flyer-controller/internal/message"
	"github.com/tucoflyer/flyer-controller/internal/overlay"
	"go.uber.org/zap"
)

// Loop owns every piece of Controller state. It is constructed once and run
// on a single goroutine for the process lifetime.
type Loop struct {
	port        *bus.Port
	rawIn       <-chan bus.PortItem
	broadcaster *bus.Broadcaster

	socket       botsocket.Socket
	gimbal       gimbalport.Port
	sharedConfig *config.SharedConfigFile
	localConfig  config.Config

	state  *ControllerState
	timers *loopTimers
	draw   *overlay.DrawingContext
	lights led.Animator

	log *zap.Logger
}

// New constructs a Loop from its collaborators. The loop does not start
// running until Run is called.
func New(
	sharedConfig *config.SharedConfigFile,
	socket botsocket.Socket,
	gimbal gimbalport.Port,
	lights led.Animator,
	log *zap.Logger,
) *Loop {
	port, in := bus.NewPort()
	localConfig := sharedConfig.GetLatest()

	l := &Loop{
		port:         port,
		rawIn:        in,
		sharedConfig: sharedConfig,
		localConfig:  localConfig,
		state:        NewControllerState(localConfig),
		timers:       newLoopTimers(),
		draw:         overlay.NewDrawingContext(),
		socket:       socket,
		gimbal:       gimbal,
		lights:       lights,
		log:          log,
	}
	l.broadcaster = bus.NewBroadcaster(func(n int) {
		log.Warn("broadcast subscriber overflow, dropping message", zap.Int("count", n))
	})
	return l
}

// Port returns the cheap, cloneable handle collaborator threads use to send
// messages and add subscribers.
func (l *Loop) Port() *bus.Port { return l.port }

// Run blocks forever, servicing one input item and polling every timer on
// each wake (spec §4.1). Call it on its own goroutine.
func (l *Loop) Run() {
	for item := range l.rawIn {
		l.poll(item)
	}
}

func (l *Loop) poll(item bus.PortItem) {
	if item.IsReaderRequest() {
		sub := l.broadcaster.Subscribe()
		item.Fulfill(sub)
	} else {
		tsMsg := item.Message()
		l.broadcaster.Publish(tsMsg)
		l.handle(tsMsg)
	}

	if fired, _ := l.timers.tick.Poll(); fired {
		l.tick()
	}
	if fired, _ := l.timers.videoFrame.Poll(); fired {
		l.videoFrameTick()
	}
	if fired, _ := l.timers.configPoll.Poll(); fired {
		l.configPollTick()
	}
}

// broadcast wraps and publishes a message originated by the loop itself
// (as opposed to one relayed from the input queue).
func (l *Loop) broadcast(msg message.Message) {
	l.broadcaster.Publish(message.Wrap(msg))
}

// configChanged persists the local config, broadcasts ConfigIsCurrent, and
// notifies ControllerState — in that order, per the invariant that
// SharedConfigFile is updated strictly before the broadcast.
func (l *Loop) configChanged() {
	if err := l.sharedConfig.Set(l.localConfig); err != nil {
		l.log.Error("failed to persist config", zap.Error(err))
	}
	l.broadcast(message.Message{Kind: message.KindConfigIsCurrent, ConfigIsCurrent: l.localConfig})
	l.state.ConfigChanged(l.localConfig)
}

func (l *Loop) tick() {
	rect, gimbalCmd := l.state.EveryTick(l.localConfig, l.gimbal)
	l.lights.Update(l.state.LightEnvironment(l.localConfig))
	if rect != nil {
		l.broadcast(message.Message{Kind: message.KindCameraInitTrackedRegion, CameraInitTrackedRegion: *rect})
	}
	l.broadcast(message.Message{Kind: message.KindGimbalStatus, GimbalStatus: message.GimbalStatus{
		Command:       gimbalCmd,
		EncoderAngles: l.state.Gimbal.Angles(),
	}})
}

func (l *Loop) videoFrameTick() {
	l.renderOverlay()
	scene := l.draw.Drain()
	l.broadcast(message.Message{Kind: message.KindCameraOverlayScene, CameraOverlayScene: scene})
}

func (l *Loop) renderOverlay() {
	l.draw.Clear()
	// Detailed drawing primitives (mode indicator, detection boxes) belong
	// to the renderer outside this module; the loop only owns the scene's
	// lifecycle and the one primitive cheap enough to compute here: the
	// current tracked-region outline.
	tracked := l.state.Tracking.Tracked()
	if !tracked.Rect.IsEmpty() {
		l.draw.Add(message.OverlayRect{
			Src:  tracked.Rect,
			Dest: tracked.Rect,
			RGBA: [4]float32{0, 1, 0, 1},
		})
	}
}

func (l *Loop) configPollTick() {
	latest, err := config.Load(l.sharedConfig.Path())
	if err != nil {
		l.log.Warn("config poll: reload failed", zap.Error(err))
		return
	}
	if !reflect.DeepEqual(latest, l.localConfig) {
		l.localConfig = latest
		l.configChanged()
	}
}

func (l *Loop) handle(tsMsg message.TimestampedMessage) {
	msg := tsMsg.Message
	switch msg.Kind {

	case message.KindUpdateConfig:
		merged, err := config.MergePatch(l.localConfig, msg.UpdateConfig)
		if err != nil {
			l.log.Error("UpdateConfig merge failed", zap.Error(err))
			return
		}
		l.localConfig = merged
		l.configChanged()

	case message.KindWinchStatus:
		l.handleWinchStatus(msg.WinchID, msg.WinchStatus)

	case message.KindFlyerSensors:
		l.state.FlyerSensorUpdate(msg.FlyerSensors)

	case message.KindGimbalValue:
		l.state.Gimbal.ValueReceived(msg.GimbalValue)

	case message.KindCommand:
		l.handleCommand(msg.Command)

	default:
		// Other variants (ConfigIsCurrent, GimbalStatus,
		// UnhandledGimbalPacket, CameraOverlayScene,
		// CameraInitTrackedRegion) need no handling: all but
		// UnhandledGimbalPacket are loop-originated broadcasts, and every
		// one of them was already rebroadcast on arrival.
	}
}

func (l *Loop) handleWinchStatus(id int, status message.WinchStatus) {
	if id < 0 || id >= len(l.localConfig.Winches) {
		l.log.Warn("winch status for unconfigured winch", zap.Int("winch", id))
		return
	}
	l.state.EnsureWinchCount(len(l.localConfig.Winches))

	// Run this winch's control loop first so its freshness is recorded
	// before the multi-winch watchdog check below — otherwise a winch's
	// very first status report would still read as never-reported and
	// force an immediate halt (matches the original's winch_control_loop
	// before watchdog ordering). A halt decided here takes effect from the
	// next tick onward rather than retroactively recomputing cmd, avoiding
	// a second PID/filter pass over the same status.
	cmd := l.state.WinchControlLoop(l.localConfig, id, status)

	if l.localConfig.Mode.Kind != message.Halted && l.state.MultiWinchWatchdogShouldHalt(l.localConfig) {
		l.log.Warn("halting: lost communication with one or more winches")
		l.localConfig.Mode = message.ControllerMode{Kind: message.Halted}
		l.localConfig.ModeName = config.ModeName(l.localConfig.Mode)
		l.localConfig.ModeWinch = l.localConfig.Mode.Winch
		l.configChanged()
	}

	addr := l.localConfig.Winches[id].Addr
	if err := l.socket.WinchCommand(id, addr, cmd); err != nil {
		l.log.Warn("winch command send failed", zap.Int("winch", id), zap.Error(err))
	}

	// Mirror the just-computed PID breakdown back to observers alongside
	// the command, so a telemetry client sees both in the same status.
	status.Command = cmd
	status.Motor = l.state.WinchMotorControl(id, status)
	l.broadcast(message.Message{Kind: message.KindWinchStatus, WinchID: id, WinchStatus: status})
}

func (l *Loop) handleCommand(cmd message.Command) {
	switch cmd.Kind {

	case message.CmdCameraObjectDetection:
		l.state.Tracking.ObjectDetectionUpdate(cmd.CameraObjectDetection)
		if rect := l.state.Tracking.Update(l.localConfig, l.state.Manual, l.localConfig.Mode, 0, false); rect != nil {
			l.broadcast(message.Message{Kind: message.KindCameraInitTrackedRegion, CameraInitTrackedRegion: *rect})
		}

	case message.CmdCameraRegionTracking:
		l.state.Tracking.RegionTrackingUpdate(l.state.Manual, cmd.CameraRegionTracking)

	case message.CmdSetMode:
		if l.localConfig.Mode != cmd.SetMode {
			l.localConfig.Mode = cmd.SetMode
			// Keep the persisted-form fields in sync with Mode so the next
			// config-poll reload (which re-derives Mode from ModeName/
			// ModeWinch) compares equal and doesn't spuriously re-fire
			// configChanged.
			l.localConfig.ModeName = config.ModeName(cmd.SetMode)
			l.localConfig.ModeWinch = cmd.SetMode.Winch
			l.configChanged()
		}

	case message.CmdGimbalMotorEnable:
		l.state.Gimbal.SetMotorEnable(l.gimbal, cmd.GimbalMotorEnable)

	case message.CmdGimbalPacket:
		if l.gimbal != nil {
			if err := l.gimbal.SendPacket(cmd.GimbalPacket); err != nil {
				l.log.Warn("gimbal packet send failed", zap.Error(err))
			}
		}

	case message.CmdGimbalValueWrite:
		if l.gimbal != nil {
			if err := l.gimbal.WriteValue(cmd.GimbalValueWrite); err != nil {
				l.log.Warn("gimbal value write failed", zap.Error(err))
			}
		}

	case message.CmdGimbalValueRequests:
		if l.gimbal != nil {
			if err := l.gimbal.RequestValues(cmd.GimbalValueRequests); err != nil {
				l.log.Warn("gimbal value request failed", zap.Error(err))
			}
		}

	case message.CmdManualControlValue:
		l.state.Manual.ControlValue(cmd.ManualAxis, cmd.ManualValue)

	case message.CmdManualControlReset:
		l.state.Manual.ControlReset()
	}
}
