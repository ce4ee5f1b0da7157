package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/barscanner/internal/events"
	"github.com/sweeney/barscanner/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:        10,
		DebounceMs:    20,
		DoubleClickMs: 500,
		LongClickMs:   2000,
		HeartbeatMs:   900000,
		Broker:        "tcp://192.168.1.200:1883",
		BarcodeTopic:  "/barcode",
		ButtonTopic:   "/button",
		SerialPort:    "/dev/ttyUSB0",
		HTTPAddr:      ":80",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func getBody(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.RecordEvent(events.Event{Kind: events.Click})
	tr.RecordEvent(events.Event{Kind: events.LongClick})
	tr.RecordBarcode("4006381333931", time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC))
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.Clicks != 1 {
		t.Errorf("Counts.Clicks: got %d, want 1", sj.Status.Counts.Clicks)
	}
	if sj.Status.Counts.LongClicks != 1 {
		t.Errorf("Counts.LongClicks: got %d, want 1", sj.Status.Counts.LongClicks)
	}
	if sj.Status.Counts.Barcodes != 1 {
		t.Errorf("Counts.Barcodes: got %d, want 1", sj.Status.Counts.Barcodes)
	}
	if sj.Status.LastBarcode == nil || sj.Status.LastBarcode.Code != "4006381333931" {
		t.Errorf("LastBarcode: got %+v", sj.Status.LastBarcode)
	}
	if sj.Status.Config.PollMs != 10 {
		t.Errorf("Config.PollMs: got %d, want 10", sj.Status.Config.PollMs)
	}
	if sj.Status.Config.ButtonTopic != "/button" {
		t.Errorf("Config.ButtonTopic: got %q", sj.Status.Config.ButtonTopic)
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetNetwork(&status.NetworkInfo{
		Type:   "wifi",
		IP:     "192.168.1.42",
		Status: "connected",
		SSID:   "MyNet",
	})

	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if sj.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", sj.Status.Network.IP)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetButtons([]status.Button{{Index: 0, Pin: 16}, {Index: 1, Pin: 5, Paused: true}})

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"Button 0 (pin 16)", "Button 1 (pin 5)", "paused", "/dev/ttyUSB0"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestHTMLEscapesBarcode(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.RecordBarcode("<script>x</script>", time.Now())

	body := getBody(t, ts.URL+"/")
	if strings.Contains(body, "<script>x</script>") {
		t.Error("barcode should be HTML escaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Error("expected escaped barcode in body")
	}
}

func TestHTMLShowsDrops(t *testing.T) {
	ts, tr := newTestServer(t)
	tr.SetQueue(status.Queue{Depth: 2, Capacity: 32, Dropped: 4})

	body := getBody(t, ts.URL+"/")
	if !strings.Contains(body, "2/32") {
		t.Error("expected queue depth in body")
	}
	if !strings.Contains(body, "4 dropped") {
		t.Error("expected dropped count in body")
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/index.json", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.MQTT.Connected {
		t.Error("expected MQTT disconnected initially")
	}
	if sj1.Status.LastBarcode != nil {
		t.Error("expected no barcode initially")
	}

	tr.RecordBarcode("123", time.Now())
	tr.RecordEvent(events.Event{Kind: events.DoubleClick})
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if sj2.Status.LastBarcode == nil || sj2.Status.LastBarcode.Code != "123" {
		t.Errorf("LastBarcode: got %+v", sj2.Status.LastBarcode)
	}
	if sj2.Status.Counts.DoubleClicks != 1 {
		t.Errorf("Counts.DoubleClicks: got %d, want 1", sj2.Status.Counts.DoubleClicks)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}

func TestServeAndShutdown(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{})
	srv := New(":0", tr)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ln) }()

	sj := getJSON(t, "http://"+ln.Addr().String()+"/index.json")
	if sj.Status.StartTime == "" {
		t.Error("expected start_time in response")
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != http.ErrServerClosed {
		t.Errorf("Serve returned %v, want ErrServerClosed", err)
	}
}
