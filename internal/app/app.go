// Package app is the controller layer for the vcu-charger binary: it
// loads configuration, wires a transport backend to the protocol
// engine, and drives the actions the CLI commands expose. No package
// under cmd/ touches config, boardconfig, dbc, transport or engine
// directly — every action goes through here.
package app

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/RudolfRTC/CCS-Charger/internal/boardconfig"
	"github.com/RudolfRTC/CCS-Charger/internal/config"
	"github.com/RudolfRTC/CCS-Charger/internal/dbc"
	"github.com/RudolfRTC/CCS-Charger/internal/engine"
	"github.com/RudolfRTC/CCS-Charger/internal/telemetry"
	"github.com/RudolfRTC/CCS-Charger/internal/transport"
)

// App holds the binary's runtime wiring, assembled once by Initialize
// and reused by every action.
type App struct {
	ConfigPath  string
	ChannelName string
	ForceSim    bool
	Debug       bool

	Config  *config.Configuration
	Board   *boardconfig.Board
	DB      *dbc.Database
	Channel boardconfig.Channel

	tr  transport.Transport
	Eng *engine.Engine
}

// Initialize loads configuration, the board profile and the DBC
// database, and resolves which channel this run targets. It does not
// open the transport or start the engine; Run does that.
func (a *App) Initialize() error {
	if a.Debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.Config = cfg

	board, err := boardconfig.Load(cfg.BoardPath)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.Board = board

	name := a.ChannelName
	if name == "" {
		name = cfg.Channel
	}
	var channel boardconfig.Channel
	var ok bool
	if name == "" {
		channel, ok = board.DefaultChannel()
	} else {
		channel, ok = board.Channel(name)
	}
	if !ok {
		return fmt.Errorf("app: no such channel %q", name)
	}
	a.Channel = channel

	db, err := dbc.Parse(cfg.DBCPath)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	a.DB = db

	return nil
}

// buildTransport resolves a.Channel's backend into a concrete
// Transport, forcing the simulator when ForceSim is set regardless of
// what the channel profile names.
func (a *App) buildTransport() transport.Transport {
	if a.ForceSim || a.Channel.Backend == "simulator" {
		return transport.NewSimulator()
	}
	return transport.NewHardware()
}

// buildEngine opens the transport and constructs the protocol engine
// over it, using the loaded DBC database and engine config.
func (a *App) buildEngine() error {
	a.tr = a.buildTransport()
	if err := a.tr.Open(a.Channel.Device, a.Channel.Baud); err != nil {
		return fmt.Errorf("app: opening channel %q: %w", a.Channel.Name, err)
	}

	engCfg := engine.DefaultConfig()
	engCfg.HeartbeatTimeout = a.Config.Engine.HeartbeatTimeout()
	engCfg.FreshnessTimeout = a.Config.Engine.FreshnessTimeout()
	engCfg.CyclicPeriod = a.Config.Engine.CyclicPeriod()

	eng := engine.New(a.DB, a.tr, engCfg)
	eng.SetUserMaxVoltage(a.Config.Engine.UserMaxVoltage)
	eng.SetUserMaxCurrent(a.Config.Engine.UserMaxCurrent)
	eng.SetUserMaxPower(a.Config.Engine.UserMaxPower)
	a.Eng = eng
	return nil
}

// RunOptions configures which telemetry surfaces a Run starts.
type RunOptions struct {
	HTTPAddr  string // empty disables the HTTP/WebSocket surface
	MQTTBrokr string // empty disables MQTT publishing
}

// Run opens the transport, starts the protocol engine, and blocks
// serving the requested telemetry surfaces until stop is closed.
func (a *App) Run(opts RunOptions, stop <-chan struct{}) error {
	if err := a.buildEngine(); err != nil {
		return err
	}
	defer a.tr.Close()

	log.WithFields(log.Fields{
		"channel": a.Channel.Name,
		"backend": a.Channel.Backend,
		"device":  a.Channel.Device,
	}).Info("app: starting protocol engine")

	if err := a.Eng.Start(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	defer a.Eng.Stop()
	log.WithField("session", a.Eng.SessionID()).Info("app: protocol engine started")

	var mqttPub *telemetry.MQTTPublisher
	if opts.MQTTBrokr != "" {
		mqttCfg := telemetry.DefaultMQTTConfig()
		mqttCfg.Broker = opts.MQTTBrokr
		mqttPub = telemetry.NewMQTTPublisher(mqttCfg, a.Eng)
		if err := mqttPub.Connect(); err != nil {
			log.WithError(err).Warn("app: MQTT connect failed, continuing without it")
			mqttPub = nil
		} else {
			mqttPub.StartPublishing()
			defer mqttPub.StopPublishing()
			defer mqttPub.Disconnect()
		}
	}

	if opts.HTTPAddr == "" {
		<-stop
		return nil
	}

	server := telemetry.NewServer(a.Eng)
	log.WithField("addr", opts.HTTPAddr).Info("app: serving telemetry")
	return server.Run(opts.HTTPAddr, stop)
}

// ResetAction opens the channel just long enough to send one
// reset-module frame, then closes it.
func (a *App) ResetAction() error {
	if err := a.buildEngine(); err != nil {
		return err
	}
	defer a.tr.Close()
	return a.Eng.ResetModule()
}

// ListChannels returns every profile this board config knows about.
func (a *App) ListChannels() []boardconfig.Channel {
	return a.Board.Channels()
}
