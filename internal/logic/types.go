// Package logic contains the pure MPX bus protocol: word codec, word queue,
// bit-timing decoder and the key/event tables.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable as a monotonic time.Duration.
package logic

import (
	"fmt"
	"strings"
	"time"
)

// Bus timing contract.
const (
	BitTime  = 1270 * time.Microsecond
	ZeroTime = 2000 * time.Microsecond // must be < 2*BitTime
	IdleTime = 5000 * time.Microsecond
	CTSTime  = 25000 * time.Microsecond // 5 * IdleTime
)

// WordBits is the number of bits in a bus word.
const WordBits = 16

// Event is a recognised bus event.
type Event string

const (
	EventAlarmArmed    Event = "ALARM_ARMED"
	EventAlarmDisarmed Event = "ALARM_DISARMED"
	EventEstoy         Event = "ESTOY"
	EventMeVoy         Event = "ME_VOY"
	EventSensorZ1      Event = "SENSOR_Z1"
	EventSensorZ2      Event = "SENSOR_Z2"
	EventSensorZ3      Event = "SENSOR_Z3"
	EventSensorZ4      Event = "SENSOR_Z4"
)

// Events lists every event in a stable order.
var Events = []Event{
	EventAlarmArmed,
	EventAlarmDisarmed,
	EventEstoy,
	EventMeVoy,
	EventSensorZ1,
	EventSensorZ2,
	EventSensorZ3,
	EventSensorZ4,
}

// Zone returns the zone number (1-4) for sensor events, 0 otherwise.
func (e Event) Zone() int {
	switch e {
	case EventSensorZ1:
		return 1
	case EventSensorZ2:
		return 2
	case EventSensorZ3:
		return 3
	case EventSensorZ4:
		return 4
	}
	return 0
}

// Key is a keypad key that can be transmitted on the bus.
type Key int

const (
	Key0 Key = iota
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyP
	KeyPLong
	KeyF
	KeyFLong
	KeyZonaIn
	KeyZonaOut
	KeyModo
	KeyPanic
	KeyPanicLong
	KeyFire
	KeyFireLong

	keyCount
)

var keyNames = [keyCount]string{
	"0", "1", "2", "3", "4", "5", "6", "7", "8", "9",
	"P", "P_LONG",
	"F", "F_LONG",
	"ZONA_IN", "ZONA_OUT",
	"MODO",
	"PANIC", "PANIC_LONG",
	"FIRE", "FIRE_LONG",
}

func (k Key) String() string {
	if k < 0 || k >= keyCount {
		return fmt.Sprintf("Key(%d)", int(k))
	}
	return keyNames[k]
}

// Valid reports whether k names a key in the key table.
func (k Key) Valid() bool {
	return k >= 0 && k < keyCount
}

// Keys returns all keys in table order.
func Keys() []Key {
	out := make([]Key, keyCount)
	for i := range out {
		out[i] = Key(i)
	}
	return out
}

// ParseKey parses a key name ("ZONA_IN", "panic_long", "7").
func ParseKey(s string) (Key, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range keyNames {
		if n == name {
			return Key(i), nil
		}
	}
	return 0, fmt.Errorf("unknown key %q", s)
}

// DigitKey returns the key for a decimal digit rune.
func DigitKey(r rune) (Key, bool) {
	if r < '0' || r > '9' {
		return 0, false
	}
	return Key(r - '0'), true
}
