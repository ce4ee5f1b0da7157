// Package config loads and saves the daemon's JSON settings file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// DefaultPath is where the daemon looks for its settings.
const DefaultPath = "/etc/barscanner/config.json"

const configType = "json"

const (
	keyMQTTServer       = "mqtt_server"
	keyMQTTPort         = "mqtt_port"
	keyMQTTUser         = "mqtt_user"
	keyMQTTPassword     = "mqtt_pswd"
	keyMQTTClient       = "mqtt_client"
	keyMQTTRetained     = "mqtt_retained"
	keyBarcodeTopic     = "mqtt_barcode_topic"
	keyButtonTopic      = "mqtt_button_topic"
	keySerialPort       = "serial_port"
	keySerialBaud       = "serial_baud"
	keyTerminator       = "barcode_terminator"
	keyGPIOChip         = "gpio_chip"
	keyButtonPin        = "button_pin"
	keyButtonActiveHigh = "button_active_high"
	keyDebounceMs       = "debounce_ms"
	keyDoubleClickMs    = "double_click_ms"
	keyLongClickMs      = "long_click_ms"
	keyPollMs           = "poll_ms"
	keyHeartbeatMs      = "heartbeat_ms"
	keyHTTPAddr         = "http_addr"
	keyLogLevel         = "log_level"
)

const (
	defaultMQTTPort      = 1883
	defaultBarcodeTopic  = "/barcode"
	defaultButtonTopic   = "/button"
	defaultSerialBaud    = 9600
	defaultTerminator    = "\r"
	defaultGPIOChip      = "gpiochip0"
	defaultButtonPin     = 16
	defaultDebounceMs    = 20
	defaultDoubleClickMs = 500
	defaultLongClickMs   = 2000
	defaultPollMs        = 10
	defaultHeartbeatMs   = 15 * 60 * 1000
	defaultHTTPAddr      = ":80"
	defaultLogLevel      = "info"

	clientPrefix = "barscanner_"
)

// ErrNotFound is returned by Load when the settings file does not exist.
// The returned Config then holds the defaults.
var ErrNotFound = errors.New("config: settings file not found")

// Config is the daemon configuration.
type Config struct {
	MQTTServer   string
	MQTTPort     int
	MQTTUser     string
	MQTTPassword string
	MQTTClient   string
	MQTTRetained bool
	BarcodeTopic string
	ButtonTopic  string

	SerialPort string
	SerialBaud int
	Terminator byte

	GPIOChip         string
	ButtonPin        int
	ButtonActiveHigh bool

	Debounce    time.Duration
	DoubleClick time.Duration
	LongClick   time.Duration

	Poll      time.Duration
	Heartbeat time.Duration
	HTTPAddr  string
	LogLevel  string
}

// MQTTEnabled reports whether enough is configured to reach a broker.
func (c Config) MQTTEnabled() bool {
	return c.MQTTServer != "" && c.MQTTClient != ""
}

// Broker returns the broker URL for the MQTT client.
func (c Config) Broker() string {
	return fmt.Sprintf("tcp://%s:%d", c.MQTTServer, c.MQTTPort)
}

// Store reads and writes a settings file.
type Store struct {
	v        *viper.Viper
	path     string
	logger   *zap.SugaredLogger
	clientID string // generated once when the file has none
}

// NewStore creates a Store for the settings file at path.
func NewStore(path string, logger *zap.SugaredLogger) *Store {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configType)

	v.SetDefault(keyMQTTServer, "")
	v.SetDefault(keyMQTTPort, defaultMQTTPort)
	v.SetDefault(keyMQTTUser, "")
	v.SetDefault(keyMQTTPassword, "")
	v.SetDefault(keyMQTTClient, "")
	v.SetDefault(keyMQTTRetained, false)
	v.SetDefault(keyBarcodeTopic, defaultBarcodeTopic)
	v.SetDefault(keyButtonTopic, defaultButtonTopic)
	v.SetDefault(keySerialPort, "")
	v.SetDefault(keySerialBaud, defaultSerialBaud)
	v.SetDefault(keyTerminator, defaultTerminator)
	v.SetDefault(keyGPIOChip, defaultGPIOChip)
	v.SetDefault(keyButtonPin, defaultButtonPin)
	v.SetDefault(keyButtonActiveHigh, false)
	v.SetDefault(keyDebounceMs, defaultDebounceMs)
	v.SetDefault(keyDoubleClickMs, defaultDoubleClickMs)
	v.SetDefault(keyLongClickMs, defaultLongClickMs)
	v.SetDefault(keyPollMs, defaultPollMs)
	v.SetDefault(keyHeartbeatMs, defaultHeartbeatMs)
	v.SetDefault(keyHTTPAddr, defaultHTTPAddr)
	v.SetDefault(keyLogLevel, defaultLogLevel)

	return &Store{
		v:      v,
		path:   path,
		logger: logger.Named("config"),
	}
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the settings file. A missing file yields the defaults together
// with ErrNotFound; a malformed file is an error.
func (s *Store) Load() (Config, error) {
	s.logger.Debugw("Loading config", "path", s.path)

	if err := s.v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warnw("Config file not found, using defaults", "path", s.path)
			return s.current(), ErrNotFound
		}
		return Config{}, fmt.Errorf("read config %s: %w", s.path, err)
	}

	c := s.current()
	s.logger.Infow("Loaded config",
		"broker", c.MQTTServer,
		"client", c.MQTTClient,
		"serialPort", c.SerialPort,
		"buttonPin", c.ButtonPin)
	return c, nil
}

func (s *Store) current() Config {
	v := s.v
	c := Config{
		MQTTServer:       v.GetString(keyMQTTServer),
		MQTTPort:         v.GetInt(keyMQTTPort),
		MQTTUser:         v.GetString(keyMQTTUser),
		MQTTPassword:     v.GetString(keyMQTTPassword),
		MQTTClient:       v.GetString(keyMQTTClient),
		MQTTRetained:     v.GetBool(keyMQTTRetained),
		BarcodeTopic:     v.GetString(keyBarcodeTopic),
		ButtonTopic:      v.GetString(keyButtonTopic),
		SerialPort:       v.GetString(keySerialPort),
		SerialBaud:       v.GetInt(keySerialBaud),
		Terminator:       defaultTerminator[0],
		GPIOChip:         v.GetString(keyGPIOChip),
		ButtonPin:        v.GetInt(keyButtonPin),
		ButtonActiveHigh: v.GetBool(keyButtonActiveHigh),
		Debounce:         ms(v.GetInt64(keyDebounceMs)),
		DoubleClick:      ms(v.GetInt64(keyDoubleClickMs)),
		LongClick:        ms(v.GetInt64(keyLongClickMs)),
		Poll:             ms(v.GetInt64(keyPollMs)),
		Heartbeat:        ms(v.GetInt64(keyHeartbeatMs)),
		HTTPAddr:         v.GetString(keyHTTPAddr),
		LogLevel:         strings.ToLower(v.GetString(keyLogLevel)),
	}
	if t := v.GetString(keyTerminator); t != "" {
		c.Terminator = t[0]
	}
	if c.MQTTClient == "" {
		if s.clientID == "" {
			s.clientID = GenerateClientID()
		}
		c.MQTTClient = s.clientID
	}
	return c
}

func ms(n int64) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Save writes c to the settings file.
func (s *Store) Save(c Config) error {
	v := s.v
	v.Set(keyMQTTServer, c.MQTTServer)
	v.Set(keyMQTTPort, c.MQTTPort)
	v.Set(keyMQTTUser, c.MQTTUser)
	v.Set(keyMQTTPassword, c.MQTTPassword)
	v.Set(keyMQTTClient, c.MQTTClient)
	v.Set(keyMQTTRetained, c.MQTTRetained)
	v.Set(keyBarcodeTopic, c.BarcodeTopic)
	v.Set(keyButtonTopic, c.ButtonTopic)
	v.Set(keySerialPort, c.SerialPort)
	v.Set(keySerialBaud, c.SerialBaud)
	v.Set(keyTerminator, string([]byte{c.Terminator}))
	v.Set(keyGPIOChip, c.GPIOChip)
	v.Set(keyButtonPin, c.ButtonPin)
	v.Set(keyButtonActiveHigh, c.ButtonActiveHigh)
	v.Set(keyDebounceMs, c.Debounce.Milliseconds())
	v.Set(keyDoubleClickMs, c.DoubleClick.Milliseconds())
	v.Set(keyLongClickMs, c.LongClick.Milliseconds())
	v.Set(keyPollMs, c.Poll.Milliseconds())
	v.Set(keyHeartbeatMs, c.Heartbeat.Milliseconds())
	v.Set(keyHTTPAddr, c.HTTPAddr)
	v.Set(keyLogLevel, c.LogLevel)

	if err := v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write config %s: %w", s.path, err)
	}
	s.logger.Infow("Saved config", "path", s.path)
	return nil
}

// Watch re-reads the settings file whenever it is written and sends the new
// Config on the returned channel. A reload that is still pending when the
// next one arrives is replaced.
func (s *Store) Watch() <-chan Config {
	ch := make(chan Config, 1)

	s.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		s.logger.Debugw("Config file modified", "event", e)
		c := s.current()
		select {
		case <-ch:
		default:
		}
		ch <- c
	})
	s.v.WatchConfig()

	s.logger.Debugw("Watching config file", "path", s.path)
	return ch
}

// GenerateClientID returns a random MQTT client id such as "barscanner_1a2b3c4d".
func GenerateClientID() string {
	id := uuid.New()
	return fmt.Sprintf("%s%x", clientPrefix, id[:4])
}
