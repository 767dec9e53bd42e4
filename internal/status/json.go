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
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Alarm         string         `json:"alarm"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	Zones         []ZoneJSON     `json:"zones"`
	LastEvent     *LastEventJSON `json:"last_event,omitempty"`
	Bus           BusJSON        `json:"bus"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	AlarmArmed    int `json:"alarm_armed"`
	AlarmDisarmed int `json:"alarm_disarmed"`
	Estoy         int `json:"estoy"`
	MeVoy         int `json:"me_voy"`
	SensorZ1      int `json:"sensor_z1"`
	SensorZ2      int `json:"sensor_z2"`
	SensorZ3      int `json:"sensor_z3"`
	SensorZ4      int `json:"sensor_z4"`
}

// ZoneJSON is one zone's activity. LastSeen is empty if the zone never fired.
type ZoneJSON struct {
	Zone     int    `json:"zone"`
	Count    int    `json:"count"`
	LastSeen string `json:"last_seen,omitempty"`
}

// LastEventJSON is the most recent decoded event.
type LastEventJSON struct {
	Event     string `json:"event"`
	Word      string `json:"word"`
	Timestamp string `json:"timestamp"`
}

// BusJSON reports bus traffic counters.
type BusJSON struct {
	Words   uint64 `json:"words"`
	Invalid uint64 `json:"invalid"`
	Dropped uint64 `json:"dropped"`
	Sent    uint64 `json:"sent"`
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
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	Payload     string `json:"payload,omitempty"`
	Backend     string `json:"backend,omitempty"`
	RxPin       int    `json:"rx_pin"`
	TxPin       int    `json:"tx_pin"`
}

func buildInner(snap Snapshot) StatusInner {
	arm := string(snap.Arm)
	if arm == "" {
		arm = string(ArmUnknown)
	}

	inner := StatusInner{
		Alarm:         arm,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			AlarmArmed:    snap.Counts.AlarmArmed,
			AlarmDisarmed: snap.Counts.AlarmDisarmed,
			Estoy:         snap.Counts.Estoy,
			MeVoy:         snap.Counts.MeVoy,
			SensorZ1:      snap.Counts.Zones[0],
			SensorZ2:      snap.Counts.Zones[1],
			SensorZ3:      snap.Counts.Zones[2],
			SensorZ4:      snap.Counts.Zones[3],
		},
		Bus: BusJSON{
			Words:   snap.Traffic.Words,
			Invalid: snap.Traffic.Invalid,
			Dropped: snap.Traffic.Dropped,
			Sent:    snap.Traffic.Sent,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			Payload:     snap.Config.Payload,
			Backend:     snap.Config.Backend,
			RxPin:       snap.Config.RxPin,
			TxPin:       snap.Config.TxPin,
		},
	}

	inner.Zones = make([]ZoneJSON, ZoneCount)
	for i := range inner.Zones {
		z := ZoneJSON{Zone: i + 1, Count: snap.Counts.Zones[i]}
		if seen := snap.ZoneLastSeen[i]; !seen.IsZero() {
			z.LastSeen = seen.UTC().Format(time.RFC3339)
		}
		inner.Zones[i] = z
	}

	if snap.Last != nil {
		inner.LastEvent = &LastEventJSON{
			Event:     string(snap.Last.Event),
			Word:      snap.Last.Word.String(),
			Timestamp: snap.Last.Time.UTC().Format(time.RFC3339),
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
