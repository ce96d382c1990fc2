package ppu

import (
	"bytes"
	"encoding/gob"
)

type ppuState struct {
	VRAM0, VRAM1                   [0x2000]byte
	OAM                             [0xA0]byte
	VRAMBank                        byte
	LCDC, STAT, SCY, SCX, LY, LYC   byte
	BGP, OBP0, OBP1, WY, WX         byte
	Dot                             int
	StatLine                        bool
	WinLineCounter                  int
	WinActivated                    bool
	CGB                             bool
	BGPI, OBPI                      byte
	BGPalRAM, ObjPalRAM              [64]byte
}

// SaveState serializes VRAM, OAM, registers, and window/STAT edge state.
func (p *PPU) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(ppuState{
		VRAM0: p.vram[0], VRAM1: p.vram[1], OAM: p.oam, VRAMBank: p.vramBank,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx, LY: p.ly, LYC: p.lyc,
		BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1, WY: p.wy, WX: p.wx,
		Dot: p.dot, StatLine: p.statLine,
		WinLineCounter: p.winLineCounter, WinActivated: p.winActivated,
		CGB: p.cgb, BGPI: p.bgpi, OBPI: p.obpi,
		BGPalRAM: p.bgPalRAM, ObjPalRAM: p.objPalRAM,
	})
	return buf.Bytes()
}

// LoadState restores a blob produced by SaveState. The per-line render
// snapshot cache is not persisted; it repopulates as the next frame renders.
func (p *PPU) LoadState(data []byte) {
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram[0], p.vram[1], p.oam, p.vramBank = s.VRAM0, s.VRAM1, s.OAM, s.VRAMBank
	p.lcdc, p.stat, p.scy, p.scx, p.ly, p.lyc = s.LCDC, s.STAT, s.SCY, s.SCX, s.LY, s.LYC
	p.bgp, p.obp0, p.obp1, p.wy, p.wx = s.BGP, s.OBP0, s.OBP1, s.WY, s.WX
	p.dot, p.statLine = s.Dot, s.StatLine
	p.winLineCounter, p.winActivated = s.WinLineCounter, s.WinActivated
	p.cgb, p.bgpi, p.obpi = s.CGB, s.BGPI, s.OBPI
	p.bgPalRAM, p.objPalRAM = s.BGPalRAM, s.ObjPalRAM
}
