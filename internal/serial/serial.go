// Package serial implements the link-cable shift register. Real
// networking is an explicit non-goal, so the "other side" is a dummy
// peer that always shifts in 1 bits, matching the behavior of an
// unplugged link cable.
package serial

import (
	"bytes"
	"encoding/gob"
)

const cyclesPerBit = 512 // 8192 Hz shift clock at a 4.194304 MHz system clock

// Port models SB (0xFF01) and SC (0xFF02).
type Port struct {
	sb   byte
	sc   byte // bit7 transfer-start, bit0 clock-select (1=internal)
	acc  int  // cycle accumulator toward the next bit shift
	bits int  // bits shifted so far in the active transfer
}

// New returns an idle Port.
func New() *Port { return &Port{} }

// SB reads the shift register.
func (p *Port) SB() byte { return p.sb }

// SC reads the control register; unused bits read as 1.
func (p *Port) SC() byte { return p.sc | 0x7E }

// WriteSB loads the shift register.
func (p *Port) WriteSB(v byte) { p.sb = v }

// WriteSC starts a transfer if bit7 is set and the internal clock
// (bit0) is selected; an external-clock transfer never completes since
// there is no peer driving it.
func (p *Port) WriteSC(v byte) {
	p.sc = v & 0x81
	if p.sc&0x80 != 0 && p.sc&0x01 != 0 {
		p.acc, p.bits = 0, 0
	}
}

// Tick advances the shift clock by one CPU cycle. It reports true the
// cycle the 8th bit completes and the serial interrupt should fire.
func (p *Port) Tick() (interruptRequested bool) {
	if p.sc&0x80 == 0 || p.sc&0x01 == 0 {
		return false
	}
	p.acc++
	if p.acc < cyclesPerBit {
		return false
	}
	p.acc = 0
	p.sb = (p.sb << 1) | 1 // no peer: shift in a 1 bit
	p.bits++
	if p.bits >= 8 {
		p.sc &^= 0x80
		p.bits = 0
		return true
	}
	return false
}

type state struct {
	SB, SC   byte
	Acc, Bits int
}

// SaveState serializes the shifter's register and progress state.
func (p *Port) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(state{p.sb, p.sc, p.acc, p.bits})
	return buf.Bytes()
}

// LoadState restores a blob produced by SaveState.
func (p *Port) LoadState(data []byte) {
	var s state
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.sb, p.sc, p.acc, p.bits = s.SB, s.SC, s.Acc, s.Bits
}
