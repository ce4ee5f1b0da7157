// Command barscanner reads a serial barcode scanner and a push button and
// publishes scans and button gestures to MQTT.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sweeney/barscanner/internal/button"
	"github.com/sweeney/barscanner/internal/config"
	"github.com/sweeney/barscanner/internal/events"
	"github.com/sweeney/barscanner/internal/gpio"
	"github.com/sweeney/barscanner/internal/mqtt"
	"github.com/sweeney/barscanner/internal/scanner"
	"github.com/sweeney/barscanner/internal/status"
	"github.com/sweeney/barscanner/internal/web"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Settings file")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	printState := flag.Bool("print-state", false, "Print current button state and exit")
	writeDefaults := flag.Bool("write-defaults", false, "Write the settings file with current values and exit")

	flag.Parse()

	if err := run(*configPath, *logLevel, *printState, *writeDefaults); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(level zap.AtomicLevel) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Sugar(), nil
}

// setLevel applies a level name. An empty name leaves the level unchanged.
func setLevel(level zap.AtomicLevel, name string) error {
	if name == "" {
		return nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("log level %q: %w", name, err)
	}
	level.SetLevel(l)
	return nil
}

func run(configPath, logLevel string, printState, writeDefaults bool) error {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if err := setLevel(level, logLevel); err != nil {
		return err
	}
	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store := config.NewStore(configPath, logger)
	cfg, err := store.Load()
	if err != nil && !errors.Is(err, config.ErrNotFound) {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel == "" {
		if err := setLevel(level, cfg.LogLevel); err != nil {
			logger.Warnw("Ignoring log level", "error", err)
		}
	}

	if writeDefaults {
		return store.Save(cfg)
	}

	th := button.ThresholdsFromDurations(cfg.Debounce, cfg.DoubleClick, cfg.LongClick)
	if err := th.Validate(); err != nil {
		return fmt.Errorf("click thresholds: %w", err)
	}

	// Initialize GPIO
	watcher, err := gpio.NewRealWatcher(cfg.GPIOChip)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer watcher.Close()

	queue := events.NewQueue(events.DefaultCapacity)
	group, err := button.NewSingle(cfg.ButtonPin, cfg.ButtonActiveHigh, queue, th, watcher)
	if err != nil {
		return fmt.Errorf("init button: %w", err)
	}

	// Print state mode
	if printState {
		levels, err := watcher.Levels()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		for i := 0; i < group.Len(); i++ {
			pin, _ := group.Pin(i)
			high := (levels>>pin)&1 == 1
			fmt.Printf("button %d (pin %d): %s\n", i, pin, pressedString(high == cfg.ButtonActiveHigh))
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize scanner
	var barcodes chan string
	if cfg.SerialPort != "" {
		port, err := scanner.OpenPort(cfg.SerialPort, cfg.SerialBaud)
		if err != nil {
			return fmt.Errorf("init scanner: %w", err)
		}
		// Stop the reader before closing the port under it.
		defer func() {
			cancel()
			port.Close()
		}()

		barcodes = make(chan string, 8)
		sc := scanner.New(port, cfg.Terminator, logger)
		go func() {
			if err := sc.Run(ctx, barcodes); err != nil {
				logger.Errorw("Scanner stopped", "error", err)
			}
		}()
		logger.Infow("Scanner ready", "port", cfg.SerialPort, "baud", cfg.SerialBaud)
	}

	// Initialize MQTT
	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	}
	topics := topicsFor(cfg)
	if cfg.MQTTEnabled() {
		publisher = mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.Broker(),
			ClientID: cfg.MQTTClient,
			Username: cfg.MQTTUser,
			Password: cfg.MQTTPassword,
			Topics:   topics,
		}, logger)
	} else {
		logger.Warnw("No MQTT server configured, messages will be discarded")
		publisher = mqtt.Discard{}
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	tracker.SetButtons(buttonStates(group))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logger.Warnw("Failed to publish startup event", "error", err)
	} else {
		logger.Debugw("Published startup event")
	}

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorw("HTTP server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infow("HTTP status server listening", "addr", cfg.HTTPAddr)
	}

	logger.Infow("Started",
		"pin", cfg.ButtonPin,
		"poll", cfg.Poll,
		"debounce", cfg.Debounce,
		"doubleClick", cfg.DoubleClick,
		"longClick", cfg.LongClick,
		"heartbeat", cfg.Heartbeat)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		hb := time.NewTicker(cfg.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	d := &daemon{
		cfg:        cfg,
		level:      level,
		levelFixed: logLevel != "",
		group:      group,
		queue:      queue,
		publisher:  publisher,
		mqttStatus: publisher,
		tracker:    tracker,
		barcodes:   barcodes,
		reload:     store.Watch(),
		logger:     logger,
		now:        time.Now,
	}
	return d.runLoop(ticker.C, heartbeat, sigCh)
}

func pressedString(pressed bool) string {
	if pressed {
		return "PRESSED"
	}
	return "RELEASED"
}

func topicsFor(c config.Config) mqtt.Topics {
	return mqtt.Topics{
		Barcode:  c.BarcodeTopic,
		Button:   c.ButtonTopic,
		System:   mqtt.SystemTopic(c.MQTTClient),
		Retained: c.MQTTRetained,
	}
}

func statusConfig(c config.Config) status.Config {
	sc := status.Config{
		PollMs:        c.Poll.Milliseconds(),
		DebounceMs:    c.Debounce.Milliseconds(),
		DoubleClickMs: c.DoubleClick.Milliseconds(),
		LongClickMs:   c.LongClick.Milliseconds(),
		HeartbeatMs:   c.Heartbeat.Milliseconds(),
		BarcodeTopic:  c.BarcodeTopic,
		ButtonTopic:   c.ButtonTopic,
		SerialPort:    c.SerialPort,
		HTTPAddr:      c.HTTPAddr,
	}
	if c.MQTTEnabled() {
		sc.Broker = c.Broker()
	}
	return sc
}

func buttonStates(g *button.Group) []status.Button {
	out := make([]status.Button, g.Len())
	for i := range out {
		pin, _ := g.Pin(i)
		out[i] = status.Button{Index: i, Pin: uint8(pin), Paused: g.Paused(i)}
	}
	return out
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
