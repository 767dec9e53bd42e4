package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/mpx-bridge/internal/logic"
	"github.com/sweeney/mpx-bridge/internal/status"
)

func newTestServer(t *testing.T, hub *Hub) (*httptest.Server, *status.Tracker) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		PollMs:      50,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPPort:    ":80",
		Backend:     "gpiocdev",
		RxPin:       17,
		TxPin:       27,
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, hub)
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

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.RecordEvent(logic.EventAlarmArmed, logic.CodeAlarmArmed, time.Now())
	tr.RecordEvent(logic.EventSensorZ2, logic.CodeZ2Wired, time.Now())
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

	if sj.Status.Alarm != "ARMED" {
		t.Errorf("Alarm: got %q, want ARMED", sj.Status.Alarm)
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.MQTT.Broker != "tcp://192.168.1.200:1883" {
		t.Errorf("MQTT.Broker: got %q, want tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	}
	if sj.Status.Counts.AlarmArmed != 1 || sj.Status.Counts.SensorZ2 != 1 {
		t.Errorf("Counts: %+v", sj.Status.Counts)
	}
	if sj.Status.LastEvent == nil || sj.Status.LastEvent.Word != "0xB045" {
		t.Errorf("LastEvent: %+v", sj.Status.LastEvent)
	}
	if sj.Status.Config.PollMs != 50 || sj.Status.Config.RxPin != 17 {
		t.Errorf("Config: %+v", sj.Status.Config)
	}
}

func TestJSONUnknownBeforeFirstEvent(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	sj := getJSON(t, ts.URL+"/index.json")

	if sj.Status.Alarm != "UNKNOWN" {
		t.Errorf("Alarm before any event: got %q, want UNKNOWN", sj.Status.Alarm)
	}
	if sj.Status.LastEvent != nil {
		t.Error("expected no last event")
	}
}

func TestJSONNetworkInfo(t *testing.T) {
	ts, tr := newTestServer(t, nil)
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
	ts, tr := newTestServer(t, nil)
	tr.RecordEvent(logic.EventSensorZ3, logic.CodeZ3MPXH, time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC))

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
	page := string(body)
	for _, want := range []string{"MPX Bridge", "SENSOR_Z3 (0x9630)", "2026-01-01T00:05:00Z", "Zone 4"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, "new WebSocket") {
		t.Error("live script should be omitted without a hub")
	}
}

func TestHTMLIncludesLiveScriptWithHub(t *testing.T) {
	ts, _ := newTestServer(t, NewHub())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "new WebSocket") {
		t.Error("expected live script with a hub")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	for _, path := range []string{"/nonexistent", "/events"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()

		if resp.StatusCode != 404 {
			t.Errorf("%s status: got %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr := newTestServer(t, nil)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Alarm != "UNKNOWN" {
		t.Errorf("expected UNKNOWN initially, got %q", sj1.Status.Alarm)
	}

	tr.RecordEvent(logic.EventAlarmDisarmed, logic.CodeAlarmDisarmed, time.Now())
	tr.SetTraffic(status.Traffic{Words: 7, Sent: 2})
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if sj2.Status.Alarm != "DISARMED" {
		t.Errorf("Alarm: got %q, want DISARMED", sj2.Status.Alarm)
	}
	if sj2.Status.Bus.Words != 7 || sj2.Status.Bus.Sent != 2 {
		t.Errorf("Bus: %+v", sj2.Status.Bus)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
