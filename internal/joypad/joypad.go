// Package joypad models the DMG/CGB button matrix: the JOYP register's
// two select lines and the edge-latched joypad interrupt.
package joypad

import (
	"bytes"
	"encoding/gob"
)

// Button enumerates the eight physical inputs, numbered the way spec.md
// §6 lists them (bit position within the pressed mask).
type Button int

const (
	Right Button = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// Pad tracks which buttons are currently held and the select-line state
// of the JOYP register (0xFF00).
type Pad struct {
	pressed  byte // bit per Button, 1 = held
	selDPad  bool // P14 low: direction keys selected
	selBtn   bool // P15 low: action keys selected
	prevLow4 byte // previous low nibble, for falling-edge detection
}

// New returns a Pad with nothing pressed and both select lines released.
func New() *Pad {
	return &Pad{prevLow4: 0x0F}
}

// Press marks a button held.
func (p *Pad) Press(b Button) { p.pressed |= 1 << uint(b) }

// Release marks a button no longer held.
func (p *Pad) Release(b Button) { p.pressed &^= 1 << uint(b) }

// Read returns the JOYP register value: bits 7-6 always read 1, bits
// 5-4 reflect the select lines, bits 3-0 are active-low button state
// for whichever group is selected (both groups OR'd together if both
// selected, all 1s if neither is).
func (p *Pad) Read() byte {
	v := byte(0xC0)
	if !p.selDPad {
		v |= 0x10
	}
	if !p.selBtn {
		v |= 0x20
	}
	v |= p.low4()
	return v
}

func (p *Pad) low4() byte {
	low := byte(0x0F)
	if p.selDPad {
		low &^= (p.pressed & 0x0F)
	}
	if p.selBtn {
		low &^= (p.pressed >> 4)
	}
	return low
}

// Write updates the two select lines from a JOYP write (bits 5-4; 0
// selects the group). Returns true if this write, or the button state
// at the time, produced a high-to-low transition on any of the low
// nibble's bits — the event that raises the joypad interrupt.
func (p *Pad) Write(v byte) (interruptRequested bool) {
	p.selDPad = v&0x10 == 0
	p.selBtn = v&0x20 == 0
	return p.checkEdge()
}

// Poll re-evaluates the low nibble against button state changes applied
// since the last Poll/Write and reports whether a new falling edge
// occurred. The orchestrator calls this once per CPU step after Press/
// Release so held-button interrupts are caught even without a JOYP
// write in between.
func (p *Pad) Poll() (interruptRequested bool) {
	return p.checkEdge()
}

func (p *Pad) checkEdge() bool {
	cur := p.low4()
	fell := p.prevLow4&^cur != 0
	p.prevLow4 = cur
	return fell
}

type state struct {
	Pressed  byte
	SelDPad  bool
	SelBtn   bool
	PrevLow4 byte
}

// SaveState serializes button-latch and select-line state.
func (p *Pad) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(state{p.pressed, p.selDPad, p.selBtn, p.prevLow4})
	return buf.Bytes()
}

// LoadState restores a blob produced by SaveState.
func (p *Pad) LoadState(data []byte) {
	var s state
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.pressed, p.selDPad, p.selBtn, p.prevLow4 = s.Pressed, s.SelDPad, s.SelBtn, s.PrevLow4
}
