package ppu

// shadeFromPalette maps a 2-bit color index through a DMG-style palette
// register (two bits per index) to a 2-bit shade.
func shadeFromPalette(reg, ci byte) byte {
	return (reg >> (ci * 2)) & 0x03
}

// captureLine snapshots the registers that govern this scanline's render at
// PixelTransfer entry, and advances the window's internal line counter on
// lines where the window is actually visible.
func (p *PPU) captureLine(ly byte) {
	if p.windowVisible(ly) {
		if !p.winActivated {
			p.winActivated = true
		} else {
			p.winLineCounter++
		}
	}
	p.lineRegs[ly] = LineRegs{
		WinLine: byte(p.winLineCounter),
		SCX:     p.scx, SCY: p.scy,
		LCDC: p.lcdc,
		BGP:  p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WX: p.wx, WY: p.wy,
	}
}

func (p *PPU) windowVisible(ly byte) bool {
	if p.lcdc&0x20 == 0 || p.lcdc&0x01 == 0 {
		return false
	}
	if p.wy > ly {
		return false
	}
	if p.wx > 166 {
		return false
	}
	return true
}

// renderLine composites background, window, and sprites for ly into the
// framebuffer, using the register snapshot captured at PixelTransfer entry.
func (p *PPU) renderLine(ly byte) {
	lr := p.lineRegs[ly]
	var bgci [160]byte

	if lr.LCDC&0x01 != 0 {
		mapBase := uint16(0x9800)
		if lr.LCDC&0x08 != 0 {
			mapBase = 0x9C00
		}
		tileData8000 := lr.LCDC&0x10 != 0
		bgci = RenderBGScanlineUsingFetcher(p, mapBase, tileData8000, lr.SCX, lr.SCY, ly)

		if lr.LCDC&0x20 != 0 && lr.WY <= ly && lr.WX <= 166 {
			winMapBase := uint16(0x9800)
			if lr.LCDC&0x40 != 0 {
				winMapBase = 0x9C00
			}
			wxStart := int(lr.WX) - 7
			winRow := RenderWindowScanlineUsingFetcher(p, winMapBase, tileData8000, wxStart, lr.WinLine)
			start := wxStart
			if start < 0 {
				start = 0
			}
			for x := start; x < 160; x++ {
				bgci[x] = winRow[x]
			}
		}
	}

	var row [160]byte
	for x := 0; x < 160; x++ {
		row[x] = shadeFromPalette(lr.BGP, bgci[x])
	}

	if lr.LCDC&0x02 != 0 {
		sprites := p.scanSprites(ly)
		spriteCI, useOBP1 := composeSpriteLineFull(p, sprites, ly, bgci)
		for x := 0; x < 160; x++ {
			if spriteCI[x] == 0 {
				continue
			}
			if useOBP1[x] {
				row[x] = shadeFromPalette(lr.OBP1, spriteCI[x])
			} else {
				row[x] = shadeFromPalette(lr.OBP0, spriteCI[x])
			}
		}
	}

	ramp := &dmgPalette
	if p.palette != nil {
		ramp = p.palette
	}

	base := int(ly) * 160 * 4
	for x := 0; x < 160; x++ {
		c := ramp[row[x]&0x03]
		off := base + x*4
		p.fb[off+0], p.fb[off+1], p.fb[off+2], p.fb[off+3] = c[0], c[1], c[2], c[3]
	}
}
