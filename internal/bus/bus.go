package bus

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/pixelmaw/gbcore/internal/apu"
	"github.com/pixelmaw/gbcore/internal/cart"
	"github.com/pixelmaw/gbcore/internal/joypad"
	"github.com/pixelmaw/gbcore/internal/ppu"
	"github.com/pixelmaw/gbcore/internal/serial"
	"github.com/pixelmaw/gbcore/internal/timer"
)

// Bus wires CPU-visible address space to cartridge, WRAM, HRAM, PPU, and the
// timer/joypad/serial peripherals, and drives OAM DMA and CGB HDMA.
type Bus struct {
	cart cart.Cartridge

	// Work RAM: bank 0 is fixed at 0xC000-0xCFFF; bank 1 (DMG) or the
	// CGB-selected bank 1-7 sits at 0xD000-0xDFFF. Echo 0xE000-0xFDFF
	// mirrors 0xC000-0xDDFF.
	wram     [8][0x1000]byte
	wramBank byte // FF70 bits 0-2, CGB only; 0 reads/writes as bank 1

	hram [0x7F]byte

	ppu *ppu.PPU
	tmr *timer.Timer
	pad *joypad.Pad
	ser *serial.Port
	apu *apu.APU

	ie    byte
	ifReg byte

	cgb bool

	dma byte // FF46

	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int
	dmaClock  int // clocks (T-states) into the current M-cycle, 0-3

	// CGB HDMA (FF51-FF55)
	hdmaSrc    uint16
	hdmaDst    uint16
	hdmaLen    int  // remaining 16-byte blocks - 1, per HDMA5 encoding
	hdmaActive bool // general-purpose transfer in progress (completes instantly on trigger)
	hdmaHBlank bool // HBlank-gated block transfer armed

	bootROM     []byte
	bootEnabled bool

	sw                io.Writer
	pendingSerialByte byte
}

// New constructs a Bus with a ROM-only or auto-detected cartridge for rom.
func New(rom []byte) (*Bus, error) {
	c, err := cart.NewCartridge(rom)
	if err != nil {
		return nil, err
	}
	return NewWithCartridge(c), nil
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge) *Bus {
	b := &Bus{
		cart: c,
		tmr:  timer.New(),
		pad:  joypad.New(),
		ser:  serial.New(),
		apu:  apu.New(44100),
	}
	b.ppu = ppu.New(func(bit int) { b.ifReg |= 1 << bit })
	b.ppu.SetOnHBlank(func() { b.stepHDMABlock() })
	return b
}

// PPU returns the internal PPU for read-only rendering helpers.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// APU returns the internal sound generator for audio pull/sample-rate setup.
func (b *Bus) APU() *apu.APU { return b.apu }

// Cart returns the underlying cartridge for battery/RTC access.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// SetCGB toggles CGB-only register behavior (WRAM banking, VBK, HDMA, palettes).
func (b *Bus) SetCGB(on bool) {
	b.cgb = on
	b.ppu.SetCGB(on)
}

func (b *Bus) wramBankIndex() int {
	n := b.wramBank & 0x07
	if n == 0 {
		n = 1
	}
	return int(n)
}

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xCFFF:
		return b.wram[0][addr-0xC000]
	case addr >= 0xD000 && addr <= 0xDFFF:
		return b.wram[b.wramBankIndex()][addr-0xD000]
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror <= 0xCFFF {
			return b.wram[0][mirror-0xC000]
		}
		return b.wram[b.wramBankIndex()][mirror-0xD000]
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr == 0xFF00:
		return b.pad.Read()
	case addr == 0xFF04:
		return b.tmr.DIV()
	case addr == 0xFF05:
		return b.tmr.TIMA()
	case addr == 0xFF06:
		return b.tmr.TMA()
	case addr == 0xFF07:
		return b.tmr.TAC()
	case addr == 0xFF01:
		return b.ser.SB()
	case addr == 0xFF02:
		return b.ser.SC()
	case addr >= 0xFF10 && addr <= 0xFF26, addr >= 0xFF30 && addr <= 0xFF3F:
		return b.apu.CPURead(addr)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B, addr == 0xFF4F,
		addr == 0xFF68, addr == 0xFF69, addr == 0xFF6A, addr == 0xFF6B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	case addr == 0xFF51, addr == 0xFF52, addr == 0xFF53, addr == 0xFF54:
		return 0xFF // HDMA source/dest registers are write-only
	case addr == 0xFF55:
		if !b.hdmaHBlank && !b.hdmaActive {
			return 0xFF
		}
		return byte(b.hdmaLen & 0x7F)
	case addr == 0xFF70:
		if !b.cgb {
			return 0xFF
		}
		return 0xF8 | (b.wramBank & 0x07)
	case addr == 0xFF50:
		return 0xFF
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr == 0xFFFF:
		return b.ie
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
		return
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
		return
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
		return
	case addr >= 0xC000 && addr <= 0xCFFF:
		b.wram[0][addr-0xC000] = value
		return
	case addr >= 0xD000 && addr <= 0xDFFF:
		b.wram[b.wramBankIndex()][addr-0xD000] = value
		return
	case addr >= 0xE000 && addr <= 0xFDFF:
		mirror := addr - 0x2000
		if mirror <= 0xCFFF {
			b.wram[0][mirror-0xC000] = value
		} else {
			b.wram[b.wramBankIndex()][mirror-0xD000] = value
		}
		return
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
		return
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dmaActive {
			return
		}
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF00:
		if b.pad.Write(value) {
			b.ifReg |= 1 << 4
		}
		return
	case addr == 0xFF04:
		b.tmr.WriteDIV()
		return
	case addr == 0xFF05:
		b.tmr.WriteTIMA(value)
		return
	case addr == 0xFF06:
		b.tmr.WriteTMA(value)
		return
	case addr == 0xFF07:
		b.tmr.WriteTAC(value)
		return
	case addr == 0xFF01:
		b.ser.WriteSB(value)
		return
	case addr == 0xFF02:
		if value&0x80 != 0 {
			b.pendingSerialByte = b.ser.SB()
		}
		b.ser.WriteSC(value)
		return
	case addr >= 0xFF10 && addr <= 0xFF26, addr >= 0xFF30 && addr <= 0xFF3F:
		b.apu.CPUWrite(addr, value)
		return
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B, addr == 0xFF4F,
		addr == 0xFF68, addr == 0xFF69, addr == 0xFF6A, addr == 0xFF6B:
		b.ppu.CPUWrite(addr, value)
		return
	case addr == 0xFF46:
		b.dma = value
		b.dmaActive = true
		b.dmaSrc = uint16(value) << 8
		b.dmaIndex = 0
		b.dmaClock = 0
		return
	case addr == 0xFF51:
		b.hdmaSrc = (b.hdmaSrc & 0x00FF) | (uint16(value) << 8)
		return
	case addr == 0xFF52:
		b.hdmaSrc = (b.hdmaSrc & 0xFF00) | uint16(value&0xF0)
		return
	case addr == 0xFF53:
		b.hdmaDst = (b.hdmaDst & 0x00FF) | (uint16(value&0x1F) << 8)
		return
	case addr == 0xFF54:
		b.hdmaDst = (b.hdmaDst & 0xFF00) | uint16(value&0xF0)
		return
	case addr == 0xFF55:
		if !b.cgb {
			return
		}
		b.hdmaLen = int(value & 0x7F)
		if value&0x80 == 0 {
			if b.hdmaHBlank {
				// writing bit7=0 while an HBlank transfer is armed cancels it
				b.hdmaHBlank = false
				return
			}
			b.runGeneralHDMA()
		} else {
			b.hdmaHBlank = true
		}
		return
	case addr == 0xFF70:
		if b.cgb {
			b.wramBank = value & 0x07
		}
		return
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
		return
	case addr == 0xFF0F:
		b.ifReg = value & 0x1F
		return
	case addr == 0xFFFF:
		b.ie = value
		return
	}
}

// runGeneralHDMA copies (hdmaLen+1)*16 bytes from ROM/RAM to VRAM immediately.
func (b *Bus) runGeneralHDMA() {
	n := (b.hdmaLen + 1) * 16
	for i := 0; i < n; i++ {
		v := b.Read(b.hdmaSrc + uint16(i))
		b.ppu.CPUWrite(0x8000+((b.hdmaDst+uint16(i))&0x1FFF), v)
	}
	b.hdmaSrc += uint16(n)
	b.hdmaDst += uint16(n)
	b.hdmaLen = 0x7F
	b.hdmaActive = false
}

// stepHDMABlock copies one 16-byte block on HBlank entry when an
// HBlank-gated transfer is armed, called via PPU.SetOnHBlank.
func (b *Bus) stepHDMABlock() {
	if !b.hdmaHBlank {
		return
	}
	for i := 0; i < 16; i++ {
		v := b.Read(b.hdmaSrc + uint16(i))
		b.ppu.CPUWrite(0x8000+((b.hdmaDst+uint16(i))&0x1FFF), v)
	}
	b.hdmaSrc += 16
	b.hdmaDst += 16
	if b.hdmaLen == 0 {
		b.hdmaHBlank = false
		b.hdmaLen = 0x7F
	} else {
		b.hdmaLen--
	}
}

// Joypad button bitmasks for SetJoypadState. Bits set mean "pressed".
const (
	JoypRight     = 1 << 0
	JoypLeft      = 1 << 1
	JoypUp        = 1 << 2
	JoypDown      = 1 << 3
	JoypA         = 1 << 4
	JoypB         = 1 << 5
	JoypSelectBtn = 1 << 6
	JoypStart     = 1 << 7
)

var joypMaskToButton = []struct {
	mask byte
	btn  joypad.Button
}{
	{JoypRight, joypad.Right}, {JoypLeft, joypad.Left},
	{JoypUp, joypad.Up}, {JoypDown, joypad.Down},
	{JoypA, joypad.A}, {JoypB, joypad.B},
	{JoypSelectBtn, joypad.Select}, {JoypStart, joypad.Start},
}

// SetJoypadState sets which buttons are currently pressed (bits per the
// Joyp* constants) and polls for the resulting interrupt edge.
func (b *Bus) SetJoypadState(mask byte) {
	for _, m := range joypMaskToButton {
		if mask&m.mask != 0 {
			b.pad.Press(m.btn)
		} else {
			b.pad.Release(m.btn)
		}
	}
	if b.pad.Poll() {
		b.ifReg |= 1 << 4
	}
}

// SetSerialWriter installs a sink that receives each byte that was loaded
// into SB at the start of a completed transfer — the conventional way test
// ROMs (e.g. Blargg's test suite) report progress over the link cable.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM to be mapped at 0x0000-0x00FF until disabled via 0xFF50 write.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// Tick advances every sub-component by the given number of CPU cycles, in
// the fan-out order: timer, OAM DMA, PPU, APU, cartridge RTC, serial.
func (b *Bus) Tick(cycles int) {
	if cycles <= 0 {
		return
	}
	for i := 0; i < cycles; i++ {
		if b.tmr.Tick() {
			b.ifReg |= 1 << 2
		}
		b.tickOAMDMA()
		b.ppu.Tick(1)
		b.apu.Tick(1)
		if rt, ok := b.cart.(cart.RTCTicker); ok {
			rt.AdvanceRTC(1)
		}
		if b.ser.Tick() {
			b.ifReg |= 1 << 3
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.pendingSerialByte})
			}
		}
	}
}

// tickOAMDMA advances the DMA engine by one clock (T-state). OAM DMA moves
// one byte per M-cycle (4 clocks), so a 160-byte transfer takes 160 M-cycles
// (640 clocks), not 160 clocks.
func (b *Bus) tickOAMDMA() {
	if !b.dmaActive {
		return
	}
	b.dmaClock++
	if b.dmaClock < 4 {
		return
	}
	b.dmaClock = 0
	v := b.Read(b.dmaSrc + uint16(b.dmaIndex))
	b.ppu.CPUWrite(0xFE00+uint16(b.dmaIndex), v)
	b.dmaIndex++
	if b.dmaIndex >= 0xA0 {
		b.dmaActive = false
	}
}

// --- Save/Load state ---
type busState struct {
	WRAM      [8][0x1000]byte
	WRAMBank  byte
	HRAM      [0x7F]byte
	IE, IF    byte
	CGB       bool
	DMA       byte
	DMAActive bool
	DMASrc    uint16
	DMAIdx    int
	DMAClock  int
	HDMASrc   uint16
	HDMADst   uint16
	HDMALen   int
	HDMAGen   bool
	HDMAHB    bool
	BootEn    bool
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, WRAMBank: b.wramBank, HRAM: b.hram,
		IE: b.ie, IF: b.ifReg, CGB: b.cgb,
		DMA: b.dma, DMAActive: b.dmaActive, DMASrc: b.dmaSrc, DMAIdx: b.dmaIndex, DMAClock: b.dmaClock,
		HDMASrc: b.hdmaSrc, HDMADst: b.hdmaDst, HDMALen: b.hdmaLen,
		HDMAGen: b.hdmaActive, HDMAHB: b.hdmaHBlank,
		BootEn: b.bootEnabled,
	}
	_ = enc.Encode(s)
	_ = enc.Encode(b.ppu.SaveState())
	_ = enc.Encode(b.tmr.SaveState())
	_ = enc.Encode(b.pad.SaveState())
	_ = enc.Encode(b.ser.SaveState())
	_ = enc.Encode(b.apu.SaveState())
	if bb, ok := b.cart.(interface{ SaveState() []byte }); ok {
		_ = enc.Encode(bb.SaveState())
	} else {
		_ = enc.Encode([]byte(nil))
	}
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return fmt.Errorf("bus: decode state: %w", err)
	}
	b.wram, b.wramBank, b.hram = s.WRAM, s.WRAMBank, s.HRAM
	b.ie, b.ifReg, b.cgb = s.IE, s.IF, s.CGB
	b.dma, b.dmaActive, b.dmaSrc, b.dmaIndex = s.DMA, s.DMAActive, s.DMASrc, s.DMAIdx
	b.dmaClock = s.DMAClock
	b.hdmaSrc, b.hdmaDst, b.hdmaLen = s.HDMASrc, s.HDMADst, s.HDMALen
	b.hdmaActive, b.hdmaHBlank = s.HDMAGen, s.HDMAHB
	b.bootEnabled = s.BootEn

	var ppuBlob, tmrBlob, padBlob, serBlob, cartBlob []byte
	_ = dec.Decode(&ppuBlob)
	b.ppu.LoadState(ppuBlob)
	_ = dec.Decode(&tmrBlob)
	b.tmr.LoadState(tmrBlob)
	_ = dec.Decode(&padBlob)
	b.pad.LoadState(padBlob)
	_ = dec.Decode(&serBlob)
	b.ser.LoadState(serBlob)
	var apuBlob []byte
	_ = dec.Decode(&apuBlob)
	b.apu.LoadState(apuBlob)
	if err := dec.Decode(&cartBlob); err == nil {
		if bb, ok := b.cart.(interface{ LoadState([]byte) }); ok {
			bb.LoadState(cartBlob)
		}
	}
	return nil
}
