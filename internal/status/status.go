// Package status provides a thread-safe status tracker for the mpx-bridge daemon.
// It is read by HTTP handlers, heartbeats and the websocket stream.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/mpx-bridge/internal/logic"
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
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	Payload     string
	Backend     string
	RxPin       int
	TxPin       int
}

// ArmState is the panel's arming state as last reported on the bus.
type ArmState string

const (
	ArmUnknown  ArmState = "UNKNOWN"
	ArmArmed    ArmState = "ARMED"
	ArmDisarmed ArmState = "DISARMED"
)

// ZoneCount is the number of sensor zones the panel reports.
const ZoneCount = 4

// EventCounts counts events by type since startup.
type EventCounts struct {
	AlarmArmed    int
	AlarmDisarmed int
	Estoy         int
	MeVoy         int
	Zones         [ZoneCount]int
}

// Add counts e.
func (c *EventCounts) Add(e logic.Event) {
	switch e {
	case logic.EventAlarmArmed:
		c.AlarmArmed++
	case logic.EventAlarmDisarmed:
		c.AlarmDisarmed++
	case logic.EventEstoy:
		c.Estoy++
	case logic.EventMeVoy:
		c.MeVoy++
	default:
		if z := e.Zone(); z >= 1 && z <= ZoneCount {
			c.Zones[z-1]++
		}
	}
}

// Total returns the number of counted events.
func (c EventCounts) Total() int {
	n := c.AlarmArmed + c.AlarmDisarmed + c.Estoy + c.MeVoy
	for _, z := range c.Zones {
		n += z
	}
	return n
}

// LastEvent is the most recent decoded event.
type LastEvent struct {
	Event logic.Event
	Word  logic.Word
	Time  time.Time
}

// Traffic mirrors the bus controller counters.
type Traffic struct {
	Words   uint64
	Invalid uint64
	Dropped uint64
	Sent    uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Arm           ArmState
	Counts        EventCounts
	ZoneLastSeen  [ZoneCount]time.Time
	Last          *LastEvent
	Traffic       Traffic
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
			Arm:       ArmUnknown,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// RecordEvent counts a decoded event and updates arm and zone state.
// Called from the run loop's event observer.
func (t *Tracker) RecordEvent(e logic.Event, w logic.Word, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snap.Counts.Add(e)
	t.snap.Last = &LastEvent{Event: e, Word: w, Time: at}
	switch e {
	case logic.EventAlarmArmed:
		t.snap.Arm = ArmArmed
	case logic.EventAlarmDisarmed:
		t.snap.Arm = ArmDisarmed
	}
	if z := e.Zone(); z >= 1 && z <= ZoneCount {
		t.snap.ZoneLastSeen[z-1] = at
	}
}

// SetTraffic replaces the bus counters.
func (t *Tracker) SetTraffic(tr Traffic) {
	t.mu.Lock()
	t.snap.Traffic = tr
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
	if s.Last != nil {
		last := *s.Last
		s.Last = &last
	}
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
