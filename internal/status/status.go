// Package status provides a thread-safe status tracker for the barscanner daemon.
// It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/barscanner/internal/events"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs        int64
	DebounceMs    int64
	DoubleClickMs int64
	LongClickMs   int64
	HeartbeatMs   int64
	Broker        string
	BarcodeTopic  string
	ButtonTopic   string
	SerialPort    string
	HTTPAddr      string
}

// Counts tallies what the daemon has seen since startup.
type Counts struct {
	Presses      int
	Releases     int
	Clicks       int
	LongClicks   int
	DoubleClicks int
	Barcodes     int
}

// Add counts one button event.
func (c *Counts) Add(k events.Kind) {
	switch k {
	case events.Pressed:
		c.Presses++
	case events.Released:
		c.Releases++
	case events.Click:
		c.Clicks++
	case events.LongClick:
		c.LongClicks++
	case events.DoubleClick:
		c.DoubleClicks++
	}
}

// Button is the display state of one configured button.
type Button struct {
	Index  int
	Pin    uint8
	Paused bool
}

// Queue reports event queue occupancy.
type Queue struct {
	Depth    int
	Capacity int
	Dropped  uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Buttons       []Button
	Counts        Counts
	LastBarcode   string
	LastBarcodeAt time.Time
	Queue         Queue
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordEvent counts a button event.
func (t *Tracker) RecordEvent(e events.Event) {
	t.mu.Lock()
	t.snap.Counts.Add(e.Kind)
	t.mu.Unlock()
}

// RecordBarcode counts a scanned barcode and remembers it.
func (t *Tracker) RecordBarcode(code string, at time.Time) {
	t.mu.Lock()
	t.snap.Counts.Barcodes++
	t.snap.LastBarcode = code
	t.snap.LastBarcodeAt = at
	t.mu.Unlock()
}

// SetQueue records queue occupancy. Called from runLoop on every tick.
func (t *Tracker) SetQueue(q Queue) {
	t.mu.Lock()
	t.snap.Queue = q
	t.mu.Unlock()
}

// SetButtons replaces the button list.
func (t *Tracker) SetButtons(b []Button) {
	cp := make([]Button, len(b))
	copy(cp, b)
	t.mu.Lock()
	t.snap.Buttons = cp
	t.mu.Unlock()
}

// SetConfig replaces the displayed config after a reload.
func (t *Tracker) SetConfig(cfg Config) {
	t.mu.Lock()
	t.snap.Config = cfg
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	if s.Buttons != nil {
		s.Buttons = append([]Button(nil), s.Buttons...)
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
