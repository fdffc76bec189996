// Command flyercontrold runs the flyer Controller: it loads the bot's TOML
// configuration, starts the single-threaded control loop, and exposes it to
// the outside world over a websocket telemetry feed and a small HTTP command
// surface. Winch/flyer wire decoding and the gimbal serial link are out of
// scope for this module (see internal/botsocket and internal/gimbalport);
// this binary wires in the minimal stdlib transports needed to exercise
// them end to end.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tucoflyer/flyer-controller/internal/botsocket"
	"github.com/tucoflyer/flyer-controller/internal/bus"
	"github.com/tucoflyer/flyer-controller/internal/config"
	"github.com/tucoflyer/flyer-controller/internal/controller"
	"github.com/tucoflyer/flyer-controller/internal/gimbalport"
	"github.com/tucoflyer/flyer-controller/internal/led"
	"github.com/tucoflyer/flyer-controller/internal/message"
	"github.com/tucoflyer/flyer-controller/internal/telemetry"
)

var (
	configPath *string
	debug      *bool
	botListen  *string
)

// init parses the command-line flags; no environment variables are read.
func init() {
	configPath = flag.String("config", "./flyer.toml", "path to the bot TOML configuration")
	debug = flag.Bool("debug", false, "enable debug-level logging")
	botListen = flag.String("bot-listen", ":9100", "UDP address to receive winch/flyer status datagrams on")
	flag.Parse()
}

func newLogger() (*zap.Logger, error) {
	if *debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runApp() error {
	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	sharedConfig, err := config.NewSharedConfigFile(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := sharedConfig.GetLatest()

	socket, err := botsocket.NewUDPSocket()
	if err != nil {
		return fmt.Errorf("opening bot socket: %w", err)
	}
	defer socket.Close()

	// No gimbal serial device is wired up for this binary; a discard sink
	// keeps gimbalport.Port's Write calls safe while nothing reads back.
	gimbal := gimbalport.NewSerialPort(&discardReadWriter{})

	loop := controller.New(sharedConfig, socket, gimbal, led.NoopAnimator{}, log)
	go loop.Run()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	statusConn, err := listenBotStatus(ctx, *botListen, loop.Port(), log)
	if err != nil {
		return fmt.Errorf("listening for bot status: %w", err)
	}
	defer statusConn.Close()

	router := newRouter(loop.Port(), log)
	httpSrv := &http.Server{Addr: cfg.Web.HTTPAddr, Handler: router}
	wsSrv := &http.Server{Addr: cfg.Web.WSAddr, Handler: router}

	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	go func() { errCh <- wsSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		httpSrv.Shutdown(context.Background())
		wsSrv.Shutdown(context.Background())
		return nil
	case err := <-errCh:
		return err
	}
}

func newRouter(port *bus.Port, log *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/telemetry", telemetryHandler(port, log)).Methods(http.MethodGet)
	r.HandleFunc("/command", commandHandler(port, log)).Methods(http.MethodPost)
	r.HandleFunc("/config", configPatchHandler(port, log)).Methods(http.MethodPatch)
	return r
}

func telemetryHandler(port *bus.Port, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pub, err := telemetry.Upgrade(port, w, r)
		if err != nil {
			log.Warn("telemetry upgrade failed", zap.Error(err))
			return
		}
		if err := pub.Sync(r.Context()); err != nil {
			log.Debug("telemetry client disconnected", zap.Error(err))
		}
	}
}

func commandHandler(port *bus.Port, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd message.Command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !port.Send(message.Message{Kind: message.KindCommand, Command: cmd}) {
			log.Warn("command dropped: input queue full")
			http.Error(w, "controller busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func configPatchHandler(port *bus.Port, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !port.Send(message.Message{Kind: message.KindUpdateConfig, UpdateConfig: buf.Bytes()}) {
			log.Warn("config patch dropped: input queue full")
			http.Error(w, "controller busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// statusDatagram is the JSON envelope winch drivers and the flyer sensor
// pack send inbound: either a winch status with its winch id, or a flyer
// sensor pack.
type statusDatagram struct {
	WinchID      *int                  `json:"winchId,omitempty"`
	WinchStatus  *message.WinchStatus  `json:"winchStatus,omitempty"`
	FlyerSensors *message.FlyerSensors `json:"flyerSensors,omitempty"`
}

func listenBotStatus(ctx context.Context, addr string, port *bus.Port, log *zap.Logger) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	go func() {
		buf := make([]byte, 65536)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					log.Warn("bot status read failed", zap.Error(err))
					continue
				}
			}

			var dg statusDatagram
			if err := json.Unmarshal(buf[:n], &dg); err != nil {
				log.Warn("bot status decode failed", zap.Error(err))
				continue
			}

			switch {
			case dg.WinchStatus != nil && dg.WinchID != nil:
				if !port.Send(message.Message{Kind: message.KindWinchStatus, WinchID: *dg.WinchID, WinchStatus: *dg.WinchStatus}) {
					log.Warn("winch status dropped: input queue full", zap.Int("winch", *dg.WinchID))
				}
			case dg.FlyerSensors != nil:
				if !port.Send(message.Message{Kind: message.KindFlyerSensors, FlyerSensors: *dg.FlyerSensors}) {
					log.Warn("flyer sensors dropped: input queue full")
				}
			}
		}
	}()

	return conn, nil
}

// discardReadWriter is a minimal io.ReadWriter standing in for a real serial
// device. gimbalport.Port never reads through this, it only writes framed
// commands, so discarding output is the correct no-device behavior.
type discardReadWriter struct{}

func (discardReadWriter) Read(p []byte) (int, error) { <-make(chan struct{}); return 0, nil }
func (discardReadWriter) Write(p []byte) (int, error) { return len(p), nil }

func main() {
	if err := runApp(); err != nil {
		fmt.Println(err)
	}
}
