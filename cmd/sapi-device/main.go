// Command sapi-device is a reference SAPI device implementation.
//
// This command demonstrates a complete sensor device with:
//   - CLI argument parsing
//   - Configuration file support
//   - Simulated temperature, humidity, and door sensors
//   - Periodic and push-triggered observation notifications
//   - Optional MQTT northbound bridge
//   - Optional HDLC frame dump of outgoing notifications
//   - Sensor configuration persistence across restarts
//
// Usage:
//
//	sapi-device [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-tick duration      Scheduler tick interval (default 1s)
//	-state string       Sensor config state file (default "sapi-state.json")
//	-mqtt               Enable the MQTT bridge
//	-broker string      MQTT broker URL (default "tcp://localhost:1883")
//	-uart-dump string   Write HDLC-framed notifications to this file
//	-log-level string   Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Run with defaults, notifications logged to console
//	sapi-device
//
//	# Publish notifications to a local broker
//	sapi-device -mqtt -broker tcp://localhost:1883
//
//	# Capture the serial frames a NIC module would receive
//	sapi-device -uart-dump frames.bin -log-level debug
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sapi-protocol/sapi-go/pkg/bridge"
	sapilog "github.com/sapi-protocol/sapi-go/pkg/log"
	"github.com/sapi-protocol/sapi-go/pkg/observe"
	"github.com/sapi-protocol/sapi-go/pkg/persistence"
	"github.com/sapi-protocol/sapi-go/pkg/registry"
	"github.com/sapi-protocol/sapi-go/pkg/sapi"
	"github.com/sapi-protocol/sapi-go/pkg/transport"
	"github.com/sapi-protocol/sapi-go/pkg/version"
	"github.com/sapi-protocol/sapi-go/pkg/wire"
)

// Config holds the device configuration.
type Config struct {
	ConfigFile  string
	Tick        time.Duration
	StatePath   string
	MQTTEnabled bool
	UARTDump    string
	LogLevel    string

	MQTT bridge.Config
}

// fileConfig is the YAML configuration file layout.
type fileConfig struct {
	Tick      string `yaml:"tick"`
	StatePath string `yaml:"state_path"`
	MQTT      struct {
		Enabled       bool `yaml:"enabled"`
		bridge.Config `yaml:",inline"`
	} `yaml:"mqtt"`
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.DurationVar(&config.Tick, "tick", time.Second, "Scheduler tick interval")
	flag.StringVar(&config.StatePath, "state", "sapi-state.json", "Sensor config state file")
	flag.BoolVar(&config.MQTTEnabled, "mqtt", false, "Enable the MQTT bridge")
	flag.StringVar(&config.MQTT.BrokerURL, "broker", "tcp://localhost:1883", "MQTT broker URL")
	flag.StringVar(&config.UARTDump, "uart-dump", "", "Write HDLC-framed notifications to this file")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")

	config.MQTT = bridge.DefaultConfig()
}

func main() {
	flag.Parse()

	setupLogging(config.LogLevel)

	for _, line := range version.Banner() {
		log.Println(line)
	}

	if config.ConfigFile != "" {
		if err := loadConfigFile(config.ConfigFile); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
	}

	events := sapilog.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(config.LogLevel),
	})))

	// Register the simulated sensors.
	table := registry.NewTable()
	sensors := registerSensors(table)
	log.Printf("Registered %d sensors", table.Len())

	// Replay any persisted sensor configurations.
	store := persistence.NewStateStore(config.StatePath)
	if err := replayConfigs(table, store); err != nil {
		log.Printf("Warning: config replay failed: %v", err)
	}

	subs := newSubscriptionTable()
	server := sapi.NewServer(table, subs)
	server.SetLogger(events)

	// Notification sink: console, and optionally MQTT and a frame dump.
	var publisher *bridge.Publisher
	if config.MQTTEnabled {
		var err error
		publisher, err = bridge.Connect(config.MQTT)
		if err != nil {
			log.Fatalf("MQTT bridge: %v", err)
		}
		publisher.SetLogger(events)
		defer publisher.Close()
		log.Printf("MQTT bridge connected: %s", config.MQTT.BrokerURL)
	}

	var frames *transport.FrameWriter
	if config.UARTDump != "" {
		f, err := os.Create(config.UARTDump)
		if err != nil {
			log.Fatalf("Failed to open uart dump: %v", err)
		}
		defer f.Close()
		frames = transport.NewFrameWriter(f)
		frames.SetLogger(events)
	}

	sink := func(n observe.Notification) {
		kind := "periodic"
		if n.IsPush {
			kind = "push"
		}
		log.Printf("Notification (%s) %s: %d bytes, max-age %ds", kind, n.DeviceType, len(n.Body), n.MaxAge)

		if publisher != nil {
			if err := publisher.Publish(n); err != nil {
				log.Printf("MQTT publish failed for %s: %v", n.DeviceType, err)
			}
		}
		if frames != nil {
			if err := frames.WriteFrame(n.Body); err != nil {
				log.Printf("Frame write failed for %s: %v", n.DeviceType, err)
			}
		}
	}

	engine := observe.NewEngine(table, sapi.NewComposer(table).ComposeValue, sink, nil)
	engine.SetLogger(events)

	// Show each sensor once through the full dispatch path.
	selfTest(server, table)

	// Drive the engine and the simulation until shutdown.
	done := make(chan struct{})
	go runTicks(engine, config.Tick, done)
	go runSimulation(engine, table, sensors, store, done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	log.Printf("Received signal: %v", sig)
	close(done)
	log.Println("Goodbye!")
}

// runTicks drives the notification engine's periodic trigger.
func runTicks(engine *observe.Engine, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			engine.Tick()
		case <-done:
			return
		}
	}
}

// selfTest dispatches a GET for every registered sensor and logs the
// decoded envelope, proving the request path end to end.
func selfTest(server *sapi.Server, table *registry.Table) {
	for _, reg := range table.Registrations() {
		req := &wire.Request{
			MessageID: uint16(reg.ID) + 1,
			Method:    wire.MethodGet,
			Path:      []string{"snsr", "arduino", reg.DeviceType},
		}
		rsp := server.HandleRequest(req)
		if !rsp.Code.IsSuccess() {
			log.Printf("Self-test %s: %s", reg.DeviceType, rsp.Code)
			continue
		}
		e, err := wire.DecodeEnvelope(rsp.Payload)
		if err != nil {
			log.Printf("Self-test %s: bad envelope: %v", reg.DeviceType, err)
			continue
		}
		log.Printf("Self-test %s: %q", e.DeviceType, e.Payload)
	}
}

// replayConfigs pushes persisted configurations back into the sensors.
func replayConfigs(table *registry.Table, store *persistence.StateStore) error {
	state, err := store.Load()
	if err != nil || state == nil {
		return err
	}
	for _, reg := range table.Registrations() {
		cfg, ok := state.Configs[reg.DeviceType]
		if !ok || reg.WriteConfig == nil {
			continue
		}
		if err := reg.WriteConfig(cfg); err != nil {
			log.Printf("Warning: replayed config rejected by %s: %v", reg.DeviceType, err)
			continue
		}
		log.Printf("Replayed config for %s", reg.DeviceType)
	}
	return nil
}

func loadConfigFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if fc.Tick != "" {
		d, err := time.ParseDuration(fc.Tick)
		if err != nil {
			return fmt.Errorf("invalid tick %q: %w", fc.Tick, err)
		}
		config.Tick = d
	}
	if fc.StatePath != "" {
		config.StatePath = fc.StatePath
	}
	if fc.MQTT.Enabled {
		config.MQTTEnabled = true
		config.MQTT = fc.MQTT.Config
		if config.MQTT.TopicPrefix == "" {
			config.MQTT.TopicPrefix = bridge.DefaultConfig().TopicPrefix
		}
	}
	return nil
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
	case "warn", "error":
		log.SetFlags(log.Ltime)
	}
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
