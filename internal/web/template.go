package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/barscanner/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"orNone": func(s string) string {
		if s == "" {
			return "(none)"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Barcode Scanner</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.paused { color: orange; }
.active { color: green; }
.connected { color: green; }
.disconnected { color: red; }
.dropped { color: red; font-weight: bold; }
</style>
</head>
<body>
<h1>Barcode Scanner</h1>

<h2>Scanner</h2>
<table>
<tr><th>Serial port</th><td>{{orNone .Config.SerialPort}}</td></tr>
<tr><th>Last barcode</th><td id="last-barcode">{{orNone .LastBarcode}}</td></tr>
{{if .LastBarcode}}<tr><th>Scanned at</th><td>{{.LastBarcodeAt.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>{{end}}
</table>

<h2>Buttons</h2>
<table>
{{range .Buttons}}<tr><th>Button {{.Index}} (pin {{.Pin}})</th><td class="{{if .Paused}}paused{{else}}active{{end}}">{{if .Paused}}paused{{else}}active{{end}}</td></tr>
{{else}}<tr><th>Buttons</th><td>none</td></tr>
{{end}}<tr><th>Queue</th><td>{{.Queue.Depth}}/{{.Queue.Capacity}}{{if .Queue.Dropped}} <span class="dropped">{{.Queue.Dropped}} dropped</span>{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{orNone .Config.Broker}}</td></tr>
<tr><th>Barcode topic</th><td>{{orNone .Config.BarcodeTopic}}</td></tr>
<tr><th>Button topic</th><td>{{orNone .Config.ButtonTopic}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Barcodes</th><td>{{.Counts.Barcodes}}</td></tr>
<tr><th>Clicks</th><td>{{.Counts.Clicks}}</td></tr>
<tr><th>Long clicks</th><td>{{.Counts.LongClicks}}</td></tr>
<tr><th>Double clicks</th><td>{{.Counts.DoubleClicks}}</td></tr>
<tr><th>Presses</th><td>{{.Counts.Presses}}</td></tr>
<tr><th>Releases</th><td>{{.Counts.Releases}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Double click</th><td>{{.Config.DoubleClickMs}}ms</td></tr>
<tr><th>Long click</th><td>{{.Config.LongClickMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
