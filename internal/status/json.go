package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Buttons       []ButtonJSON `json:"buttons"`
	Counts        CountsJSON   `json:"event_counts"`
	LastBarcode   *BarcodeJSON `json:"last_barcode,omitempty"`
	Queue         QueueJSON    `json:"queue"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ButtonJSON is the JSON representation of one button.
type ButtonJSON struct {
	Index  int   `json:"index"`
	Pin    uint8 `json:"pin"`
	Paused bool  `json:"paused"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Presses      int `json:"presses"`
	Releases     int `json:"releases"`
	Clicks       int `json:"clicks"`
	LongClicks   int `json:"long_clicks"`
	DoubleClicks int `json:"double_clicks"`
	Barcodes     int `json:"barcodes"`
}

// BarcodeJSON is the most recent scan.
type BarcodeJSON struct {
	Code string `json:"code"`
	At   string `json:"at"`
}

// QueueJSON is the JSON representation of queue occupancy.
type QueueJSON struct {
	Depth    int    `json:"depth"`
	Capacity int    `json:"capacity"`
	Dropped  uint64 `json:"dropped"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs        int64  `json:"poll_ms"`
	DebounceMs    int64  `json:"debounce_ms"`
	DoubleClickMs int64  `json:"double_click_ms"`
	LongClickMs   int64  `json:"long_click_ms"`
	HeartbeatMs   int64  `json:"heartbeat_ms"`
	Broker        string `json:"broker"`
	BarcodeTopic  string `json:"barcode_topic"`
	ButtonTopic   string `json:"button_topic"`
	SerialPort    string `json:"serial_port"`
	HTTPAddr      string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	buttons := make([]ButtonJSON, len(snap.Buttons))
	for i, b := range snap.Buttons {
		buttons[i] = ButtonJSON{Index: b.Index, Pin: b.Pin, Paused: b.Paused}
	}

	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Buttons:       buttons,
		Counts: CountsJSON{
			Presses:      snap.Counts.Presses,
			Releases:     snap.Counts.Releases,
			Clicks:       snap.Counts.Clicks,
			LongClicks:   snap.Counts.LongClicks,
			DoubleClicks: snap.Counts.DoubleClicks,
			Barcodes:     snap.Counts.Barcodes,
		},
		Queue: QueueJSON{
			Depth:    snap.Queue.Depth,
			Capacity: snap.Queue.Capacity,
			Dropped:  snap.Queue.Dropped,
		},
		Config: ConfigJSON{
			PollMs:        snap.Config.PollMs,
			DebounceMs:    snap.Config.DebounceMs,
			DoubleClickMs: snap.Config.DoubleClickMs,
			LongClickMs:   snap.Config.LongClickMs,
			HeartbeatMs:   snap.Config.HeartbeatMs,
			Broker:        snap.Config.Broker,
			BarcodeTopic:  snap.Config.BarcodeTopic,
			ButtonTopic:   snap.Config.ButtonTopic,
			SerialPort:    snap.Config.SerialPort,
			HTTPAddr:      snap.Config.HTTPAddr,
		},
	}
	if snap.LastBarcode != "" {
		inner.LastBarcode = &BarcodeJSON{
			Code: snap.LastBarcode,
			At:   snap.LastBarcodeAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
