package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/mpx-bridge/internal/status"
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
	"armClass": func(a status.ArmState) string {
		switch a {
		case status.ArmArmed:
			return "armed"
		case status.ArmDisarmed:
			return "disarmed"
		}
		return "unknown"
	},
	"seen": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.UTC().Format(time.RFC3339)
	},
	"inc": func(i int) int { return i + 1 },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>MPX Bridge</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.armed { color: red; font-weight: bold; }
.disarmed { color: green; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>MPX Bridge{{if .Live}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Panel</h2>
<table>
<tr><th>Alarm</th><td id="arm-state" class="{{armClass .Arm}}">{{.Arm}}</td></tr>
<tr><th>Last event</th><td id="last-event">{{if .Last}}{{.Last.Event}} ({{.Last.Word}}) at {{seen .Last.Time}}{{else}}none{{end}}</td></tr>
</table>

<h2>Zones</h2>
<table>
{{range $i, $seen := .ZoneLastSeen}}<tr><th>Zone {{inc $i}}</th><td id="zone-{{inc $i}}">{{seen $seen}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>ALARM_ARMED</th><td>{{.Counts.AlarmArmed}}</td></tr>
<tr><th>ALARM_DISARMED</th><td>{{.Counts.AlarmDisarmed}}</td></tr>
<tr><th>ESTOY</th><td>{{.Counts.Estoy}}</td></tr>
<tr><th>ME_VOY</th><td>{{.Counts.MeVoy}}</td></tr>
{{range $i, $n := .Counts.Zones}}<tr><th>SENSOR_Z{{inc $i}}</th><td>{{$n}}</td></tr>
{{end}}</table>

<h2>Bus</h2>
<table>
<tr><th>Words</th><td>{{.Traffic.Words}}</td></tr>
<tr><th>Bad parity</th><td>{{.Traffic.Invalid}}</td></tr>
<tr><th>Dropped</th><td>{{.Traffic.Dropped}}</td></tr>
<tr><th>Sent</th><td>{{.Traffic.Sent}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Backend</th><td>{{.Config.Backend}} (rx {{.Config.RxPin}}, tx {{.Config.TxPin}})</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Live}}
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var armEl = document.getElementById("arm-state");
  var lastEl = document.getElementById("last-event");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/events");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(m) {
      try {
        var msg = JSON.parse(m.data).mpx;
        if (!msg) return;
        lastEl.textContent = msg.event + " (" + msg.word + ") at " + msg.timestamp;
        if (msg.event === "ALARM_ARMED") { armEl.textContent = "ARMED"; armEl.className = "armed"; }
        if (msg.event === "ALARM_DISARMED") { armEl.textContent = "DISARMED"; armEl.className = "disarmed"; }
        var z = msg.event.match(/^SENSOR_Z(\d)$/);
        if (z) { document.getElementById("zone-" + z[1]).textContent = msg.timestamp; }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot, live bool) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Live   bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Live:     live,
	}
	indexTmpl.Execute(w, data)
}
