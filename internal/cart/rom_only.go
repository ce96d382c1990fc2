package cart

import (
	"bytes"
	"encoding/gob"
)

// ROMOnly implements a cartridge with no bank switching: a flat ROM image
// and, for cart types 0x08/0x09, a single flat external RAM region.
type ROMOnly struct {
	rom []byte
	ram []byte
}

func NewROMOnly(rom []byte) *ROMOnly {
	return &ROMOnly{rom: rom}
}

// NewROMOnlyWithRAM is used for cart types 0x08/0x09, which add unbanked
// external RAM without any MBC logic.
func NewROMOnlyWithRAM(rom []byte, ramSize int) *ROMOnly {
	c := &ROMOnly{rom: rom}
	if ramSize > 0 {
		c.ram = make([]byte, ramSize)
	}
	return c
}

func (c *ROMOnly) Read(addr uint16) byte {
	switch {
	case addr < 0x8000: // ROM fixed area
		if int(addr) < len(c.rom) {
			return c.rom[addr]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		off := int(addr - 0xA000)
		if off < len(c.ram) {
			return c.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (c *ROMOnly) Write(addr uint16, value byte) {
	if addr >= 0xA000 && addr <= 0xBFFF {
		off := int(addr - 0xA000)
		if off < len(c.ram) {
			c.ram[off] = value
		}
	}
	// 0x0000-0x7FFF: no MBC registers, writes are ignored.
}

// SaveRAM/LoadRAM implement BatteryBacked for the 0x08/0x09 variants.
func (c *ROMOnly) SaveRAM() []byte {
	if len(c.ram) == 0 {
		return nil
	}
	out := make([]byte, len(c.ram))
	copy(out, c.ram)
	return out
}

func (c *ROMOnly) LoadRAM(data []byte) {
	if len(c.ram) == 0 || len(data) == 0 {
		return
	}
	copy(c.ram, data)
}

// SaveState serializes the flat RAM region, if any.
func (c *ROMOnly) SaveState() []byte {
	if len(c.ram) == 0 {
		return nil
	}
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(c.ram)
	return buf.Bytes()
}

// LoadState restores a blob produced by SaveState.
func (c *ROMOnly) LoadState(data []byte) {
	if len(data) == 0 {
		return
	}
	var ram []byte
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&ram); err != nil {
		return
	}
	if len(ram) == len(c.ram) {
		copy(c.ram, ram)
	}
}
