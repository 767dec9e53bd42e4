package logic

// keyWords maps each key to the word(s) a keypad sends for it.
// Long presses and zone toggles are two-word sequences.
var keyWords = [keyCount][]Word{
	Key0:         {0x0000},
	Key1:         {0x8013},
	Key2:         {0x8025},
	Key3:         {0x0036},
	Key4:         {0x8046},
	Key5:         {0x0055},
	Key6:         {0x0063},
	Key7:         {0x8070},
	Key8:         {0x8089},
	Key9:         {0x009A},
	KeyP:         {0x00AC},
	KeyPLong:     {0x00AC, 0x810A},
	KeyF:         {0x80BF},
	KeyFLong:     {0x80BF, 0x813C},
	KeyZonaIn:    {0x00CF, 0x0000},
	KeyZonaOut:   {0x00CF, 0x8169},
	KeyModo:      {0x80DC},
	KeyPanic:     {0x80EA},
	KeyPanicLong: {0x80EA, 0x012F},
	KeyFire:      {0x00F9},
	KeyFireLong:  {0x00F9, 0x0119},
}

// Codes sent by the panel. Zones are reported by both the MPXH
// expansion module and the wired inputs, with different codes.
const (
	CodeAlarmArmed    Word = 0x49C1
	CodeAlarmDisarmed Word = 0xC92B
	CodeEstoy         Word = 0x4BE8
	CodeMeVoy         Word = 0xCBAE
	CodeZ1MPXH        Word = 0x1615
	CodeZ2MPXH        Word = 0x1623
	CodeZ3MPXH        Word = 0x9630
	CodeZ4MPXH        Word = 0x1640
	CodeZ1Wired       Word = 0xB08A
	CodeZ2Wired       Word = 0xB045
	CodeZ3Wired       Word = 0xB026
	CodeZ4Wired       Word = 0xB010
)

var codeEvents = map[Word]Event{
	CodeAlarmArmed:    EventAlarmArmed,
	CodeAlarmDisarmed: EventAlarmDisarmed,
	CodeEstoy:         EventEstoy,
	CodeMeVoy:         EventMeVoy,
	CodeZ1MPXH:        EventSensorZ1,
	CodeZ1Wired:       EventSensorZ1,
	CodeZ2MPXH:        EventSensorZ2,
	CodeZ2Wired:       EventSensorZ2,
	CodeZ3MPXH:        EventSensorZ3,
	CodeZ3Wired:       EventSensorZ3,
	CodeZ4MPXH:        EventSensorZ4,
	CodeZ4Wired:       EventSensorZ4,
}

// keyboardCodes is the set of words any keypad can put on the bus.
var keyboardCodes = func() map[Word]struct{} {
	m := make(map[Word]struct{})
	for _, words := range keyWords {
		for _, w := range words {
			m[w] = struct{}{}
		}
	}
	return m
}()

// KeyWords returns the words transmitted for k, or nil for an unknown key.
// The returned slice must not be modified.
func KeyWords(k Key) []Word {
	if !k.Valid() {
		return nil
	}
	return keyWords[k]
}

// LookupEvent classifies a received word.
func LookupEvent(w Word) (Event, bool) {
	e, ok := codeEvents[w]
	return e, ok
}

// EventCodes returns every code that maps to an event.
func EventCodes() map[Word]Event {
	out := make(map[Word]Event, len(codeEvents))
	for w, e := range codeEvents {
		out[w] = e
	}
	return out
}

// IsKeyboardCode reports whether w is a word a keypad sends.
func IsKeyboardCode(w Word) bool {
	_, ok := keyboardCodes[w]
	return ok
}
