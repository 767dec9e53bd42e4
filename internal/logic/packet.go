package logic

import (
	"fmt"
	"math/bits"
)

// Word is a raw 16-bit bus word.
//
//	bit 15     parity
//	bits 14-12 id
//	bits 11-4  data
//	bits 3-0   checksum
type Word uint16

// Parity returns bit 15.
func (w Word) Parity() uint8 {
	return uint8(w>>15) & 0x01
}

// ID returns bits 14-12.
func (w Word) ID() uint8 {
	return uint8(w>>12) & 0x07
}

// Data returns bits 11-4.
func (w Word) Data() uint8 {
	return uint8(w >> 4)
}

// Checksum returns bits 3-0.
func (w Word) Checksum() uint8 {
	return uint8(w) & 0x0F
}

// Valid reports whether the word has even parity over all 16 bits.
func (w Word) Valid() bool {
	return bits.OnesCount16(uint16(w))%2 == 0
}

func (w Word) String() string {
	return fmt.Sprintf("0x%04X", uint16(w))
}

// Direction of a word relative to this host.
type Direction bool

const (
	Inbound  Direction = false
	Outbound Direction = true
)

func (d Direction) String() string {
	if d == Outbound {
		return ">>"
	}
	return "<<"
}

// Describe formats a word for diagnostic output.
func Describe(w Word, dir Direction) string {
	kb := 0
	if IsKeyboardCode(w) {
		kb = 1
	}
	return fmt.Sprintf("Packet | %s | isKB: %d | word: %016bb (%s) | parity: %d | id: %d | data: %d | checksum: %d",
		dir, kb, uint16(w), w, w.Parity(), w.ID(), w.Data(), w.Checksum())
}
