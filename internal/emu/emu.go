// Package emu orchestrates the CPU, bus, and APU into a single steppable
// machine: one frame is exactly 70224 CPU cycles, with every sub-component
// fanned out from the cycle count each CPU.Step() returns.
package emu

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/pixelmaw/gbcore/internal/bus"
	"github.com/pixelmaw/gbcore/internal/cart"
	"github.com/pixelmaw/gbcore/internal/cpu"
)

// cyclesPerFrame is 70224 CPU cycles: 154 scanlines * 456 dots.
const cyclesPerFrame = 70224

// Buttons is the joypad state for one input sample.
type Buttons struct {
	A, B, Start, Select   bool
	Up, Down, Left, Right bool
}

func (b Buttons) mask() byte {
	var m byte
	if b.Right {
		m |= bus.JoypRight
	}
	if b.Left {
		m |= bus.JoypLeft
	}
	if b.Up {
		m |= bus.JoypUp
	}
	if b.Down {
		m |= bus.JoypDown
	}
	if b.A {
		m |= bus.JoypA
	}
	if b.B {
		m |= bus.JoypB
	}
	if b.Select {
		m |= bus.JoypSelectBtn
	}
	if b.Start {
		m |= bus.JoypStart
	}
	return m
}

// Machine wires a CPU and a Bus (which itself owns PPU/APU/timer/joypad/
// serial/cartridge) into a runnable console, stepping whole frames at a time.
type Machine struct {
	cfg Config

	bus *bus.Bus
	cpu *cpu.CPU

	romPath  string
	romTitle string
	romRaw   []byte
	bootROM  []byte
	cgb      bool
	compat   bool // true when a DMG cartridge is running under a CGB compat palette
	compatID int

	buttons Buttons
}

// New creates a Machine with no cartridge loaded. Call LoadCartridge or
// LoadROMFromFile before stepping.
func New(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// SetBootROM stages a DMG boot ROM image to be mapped at the next cartridge load.
func (m *Machine) SetBootROM(data []byte) {
	m.bootROM = append([]byte(nil), data...)
}

// LoadCartridge parses rom's header, constructs a fresh Bus/CPU pair around
// it, and (optionally) maps boot at 0x0000-0x00FF until the game disables it.
func (m *Machine) LoadCartridge(rom []byte, boot []byte) error {
	b, err := bus.New(rom)
	if err != nil {
		return fmt.Errorf("emu: load cartridge: %w", err)
	}

	cgb := false
	m.compat = false
	m.compatID = 0
	m.romTitle = ""
	if h, herr := cart.ParseHeader(rom); herr == nil {
		m.romTitle = h.Title
		cgb = h.CGBFlag == 0x80 || h.CGBFlag == 0xC0
		if id, ok := autoCompatPaletteFromHeader(h); ok && !cgb {
			if pal, ok2 := cgbCompatSets[id]; ok2 {
				b.PPU().SetDMGPalette(&pal)
				m.compat = true
				m.compatID = id
			}
		}
	}
	b.SetCGB(cgb)
	m.cgb = cgb
	m.romRaw = append([]byte(nil), rom...)

	if len(boot) == 0 {
		boot = m.bootROM
	}
	c := cpu.New(b)
	if len(boot) >= 0x100 {
		b.SetBootROM(boot)
		c.SetPC(0x0000)
	} else {
		c.ResetNoBoot()
		c.SetPC(0x0100)
	}

	m.bus = b
	m.cpu = c
	return nil
}

// LoadROMFromFile reads path and loads it as the current cartridge, then
// records path for ROMPath()/battery-file conventions.
func (m *Machine) LoadROMFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("emu: read ROM %s: %w", path, err)
	}
	if err := m.LoadCartridge(data, m.bootROM); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path passed to the most recent LoadROMFromFile call.
func (m *Machine) ROMPath() string { return m.romPath }

// SetSerialWriter installs a sink for bytes emitted over the serial port
// (the usual way test ROMs like Blargg's report progress).
func (m *Machine) SetSerialWriter(w io.Writer) {
	if m.bus != nil {
		m.bus.SetSerialWriter(w)
	}
}

// SetButtons records the joypad state applied on the next step.
func (m *Machine) SetButtons(b Buttons) { m.buttons = b }

// ROMTitle returns the cartridge header title of the currently loaded ROM.
func (m *Machine) ROMTitle() string { return m.romTitle }

// IsCGBCompat reports whether the loaded cartridge is a DMG title currently
// running under an auto-selected CGB compatibility palette.
func (m *Machine) IsCGBCompat() bool { return m.compat }

// CurrentCompatPalette returns the active compat palette ID.
func (m *Machine) CurrentCompatPalette() int { return m.compatID }

// CompatPaletteName returns a human label for a compat palette ID.
func (m *Machine) CompatPaletteName(id int) string {
	if id >= 0 && id < len(cgbCompatSetNames) {
		return cgbCompatSetNames[id]
	}
	return "Default"
}

// SetCompatPalette overrides the active DMG compat palette by ID.
func (m *Machine) SetCompatPalette(id int) bool {
	pal, ok := cgbCompatSets[id]
	if !ok || m.bus == nil {
		return false
	}
	m.bus.PPU().SetDMGPalette(&pal)
	m.compat, m.compatID = true, id
	return true
}

// CycleCompatPalette advances the active compat palette by delta, wrapping
// within the curated set.
func (m *Machine) CycleCompatPalette(delta int) {
	n := len(cgbCompatSetNames)
	if n == 0 {
		return
	}
	id := ((m.compatID+delta)%n + n) % n
	m.SetCompatPalette(id)
}

// ResetPostBoot reloads the current ROM and resets straight to post-boot
// register state, bypassing any boot ROM.
func (m *Machine) ResetPostBoot() error {
	if len(m.romRaw) == 0 {
		return fmt.Errorf("emu: no cartridge loaded")
	}
	saved := m.bootROM
	m.bootROM = nil
	err := m.LoadCartridge(m.romRaw, nil)
	m.bootROM = saved
	return err
}

// ResetWithBoot reloads the current ROM and re-runs the staged boot ROM from 0x0000.
func (m *Machine) ResetWithBoot() error {
	if len(m.romRaw) == 0 {
		return fmt.Errorf("emu: no cartridge loaded")
	}
	return m.LoadCartridge(m.romRaw, m.bootROM)
}

// stepCycles runs CPU instructions (and, transitively, every sub-component
// ticked from the bus) until at least n CPU cycles have elapsed.
func (m *Machine) stepCycles(n int) {
	if m.cpu == nil || m.bus == nil {
		return
	}
	m.bus.SetJoypadState(m.buttons.mask())
	done := 0
	for done < n {
		cycles := m.cpu.Step()
		if cycles <= 0 {
			cycles = 4
		}
		m.bus.Tick(cycles)
		done += cycles
	}
}

// StepFrame advances the machine by one full frame (70224 CPU cycles); the
// PPU has already rendered into its framebuffer by the time this returns.
func (m *Machine) StepFrame() { m.stepCycles(cyclesPerFrame) }

// StepFrameNoRender is StepFrame's identical cycle-accurate twin, named for
// callers (e.g. test-ROM runners) that only care about serial/CPU progress
// and never read Framebuffer.
func (m *Machine) StepFrameNoRender() { m.stepCycles(cyclesPerFrame) }

// Framebuffer returns the last rendered 160x144 RGBA8888 frame.
func (m *Machine) Framebuffer() []byte {
	if m.bus == nil {
		return make([]byte, 160*144*4)
	}
	return m.bus.PPU().Framebuffer()
}

// APUBufferedStereo reports how many stereo sample frames are queued.
func (m *Machine) APUBufferedStereo() int {
	if m.bus == nil {
		return 0
	}
	return m.bus.APU().StereoAvailable()
}

// APUPullStereo drains up to max buffered stereo frames as [L0,R0,L1,R1,...].
func (m *Machine) APUPullStereo(max int) []int16 {
	if m.bus == nil {
		return nil
	}
	return m.bus.APU().PullStereo(max)
}

// SaveBattery returns the cartridge's battery-backed RAM (and RTC, where
// applicable). It reports false when no cartridge is loaded or the
// cartridge has no RAM or RTC data to persist.
func (m *Machine) SaveBattery() ([]byte, bool) {
	if m.bus == nil {
		return nil, false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return nil, false
	}
	data := bb.SaveRAM()
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// LoadBattery restores previously saved battery RAM, if the cartridge supports it.
func (m *Machine) LoadBattery(data []byte) bool {
	if m.bus == nil || len(data) == 0 {
		return false
	}
	bb, ok := m.bus.Cart().(cart.BatteryBacked)
	if !ok {
		return false
	}
	bb.LoadRAM(data)
	return true
}

// --- Save/Load state ---

type machineState struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16
	IME                    bool
	RomPath                string
	CGB                    bool
}

// SaveState serializes the full machine (CPU registers plus the bus, which
// in turn nests PPU/APU/timer/joypad/serial/cartridge state) to one blob.
func (m *Machine) SaveState() ([]byte, error) {
	if m.bus == nil || m.cpu == nil {
		return nil, fmt.Errorf("emu: no cartridge loaded")
	}
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := machineState{
		A: m.cpu.A, F: m.cpu.F, B: m.cpu.B, C: m.cpu.C,
		D: m.cpu.D, E: m.cpu.E, H: m.cpu.H, L: m.cpu.L,
		SP: m.cpu.SP, PC: m.cpu.PC, IME: m.cpu.IME,
		RomPath: m.romPath, CGB: m.cgb,
	}
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("emu: encode cpu state: %w", err)
	}
	if err := enc.Encode(m.bus.SaveState()); err != nil {
		return nil, fmt.Errorf("emu: encode bus state: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadState restores a blob produced by SaveState onto the current
// cartridge/bus/cpu (which must already be loaded via LoadCartridge).
func (m *Machine) LoadState(data []byte) error {
	if m.bus == nil || m.cpu == nil {
		return fmt.Errorf("emu: no cartridge loaded")
	}
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s machineState
	if err := dec.Decode(&s); err != nil {
		return fmt.Errorf("emu: decode cpu state: %w", err)
	}
	m.cpu.A, m.cpu.F, m.cpu.B, m.cpu.C = s.A, s.F, s.B, s.C
	m.cpu.D, m.cpu.E, m.cpu.H, m.cpu.L = s.D, s.E, s.H, s.L
	m.cpu.SP, m.cpu.PC, m.cpu.IME = s.SP, s.PC, s.IME
	m.romPath, m.cgb = s.RomPath, s.CGB

	var busBlob []byte
	if err := dec.Decode(&busBlob); err != nil {
		return fmt.Errorf("emu: decode bus state: %w", err)
	}
	return m.bus.LoadState(busBlob)
}

// SaveStateToFile writes SaveState's output to path.
func (m *Machine) SaveStateToFile(path string) error {
	data, err := m.SaveState()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadStateFromFile reads and applies a blob written by SaveStateToFile.
func (m *Machine) LoadStateFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("emu: read state %s: %w", path, err)
	}
	return m.LoadState(data)
}
