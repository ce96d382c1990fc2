package ppu

// Sprite is a resolved per-scanline sprite descriptor. X/Y are already in
// screen coordinates for the single 8-pixel tile row to draw: for 8x16
// objects the OAM scan picks the correct tile half and folds any Y-flip
// into Y/Tile before building this value, so ComposeSpriteLine only ever
// deals with one physical 8x8 tile row. Attr keeps its other OAM bits
// (palette, X-flip, BG-priority) untouched.
type Sprite struct {
	X, Y     byte
	Tile     byte
	Attr     byte
	OAMIndex int
}

// ComposeSpriteLine draws up to len(sprites) single-tile-row sprites onto a
// scanline. Color index 0 is transparent. A sprite pixel is hidden when its
// BG-priority bit (Attr bit 7) is set and bgci at that column is non-zero.
// When more than one sprite covers the same column, the sprite with the
// smallest X wins; ties break by the smallest OAM index, matching hardware.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, cgb bool) [160]byte {
	ci, _ := composeSpriteLineFull(mem, sprites, ly, bgci)
	return ci
}

// composeSpriteLineFull is ComposeSpriteLine's implementation, additionally
// reporting which sprite (by its palette-select attr bit) won each column so
// the full scanline renderer can pick OBP0 vs OBP1 without recomputing the
// tie-break independently.
func composeSpriteLineFull(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte) (out [160]byte, useOBP1 [160]bool) {
	var wonX, wonOAM [160]int
	var has [160]bool
	for i := range wonX {
		wonX[i], wonOAM[i] = 1<<30, 1<<30
	}

	for _, s := range sprites {
		row := int(ly) - int(s.Y)
		if row < 0 || row > 7 {
			continue
		}
		xflip := s.Attr&0x20 != 0
		hideBehindBG := s.Attr&0x80 != 0
		palette1 := s.Attr&0x10 != 0

		base := uint16(s.Tile)*16 + uint16(row)*2
		lo := mem.Read(0x8000 + base)
		hi := mem.Read(0x8000 + base + 1)

		for px := 0; px < 8; px++ {
			sx := int(s.X) + px
			if sx < 0 || sx >= 160 {
				continue
			}
			col := px
			if xflip {
				col = 7 - px
			}
			bit := byte(7 - col)
			ci := ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			if ci == 0 {
				continue
			}
			better := int(s.X) < wonX[sx] || (int(s.X) == wonX[sx] && s.OAMIndex < wonOAM[sx])
			if has[sx] && !better {
				continue
			}
			wonX[sx], wonOAM[sx], has[sx] = int(s.X), s.OAMIndex, true
			useOBP1[sx] = palette1
			if hideBehindBG && bgci[sx] != 0 {
				// Still claims priority at this column (so a later, lower
				// -priority sprite cannot draw over it) but stays invisible.
				out[sx] = 0
				continue
			}
			out[sx] = ci
		}
	}
	return out, useOBP1
}

// spriteHeight returns 8 or 16 per LCDC bit 2.
func (p *PPU) spriteHeight() int {
	if p.lcdc&0x04 != 0 {
		return 16
	}
	return 8
}

// scanSprites admits up to 10 OAM entries (in OAM order) whose Y range
// covers ly, resolving 8x16 tile-half/Y-flip selection so ComposeSpriteLine
// only ever needs to draw one 8x8 tile row per sprite.
func (p *PPU) scanSprites(ly byte) []Sprite {
	height := p.spriteHeight()
	var out []Sprite
	for i := 0; i < 40 && len(out) < 10; i++ {
		base := i * 4
		oamY := p.oam[base+0]
		oamX := p.oam[base+1]
		tile := p.oam[base+2]
		attr := p.oam[base+3]

		objY := int(oamY) - 16
		row := int(ly) - objY
		if row < 0 || row >= height {
			continue
		}
		yflip := attr&0x40 != 0
		if yflip {
			row = height - 1 - row
		}
		effTile := tile
		if height == 16 {
			effTile = tile &^ 0x01
			if row >= 8 {
				effTile |= 0x01
				row -= 8
			}
		}
		screenTop := int(ly) - row
		out = append(out, Sprite{
			X:        byte(int(oamX) - 8),
			Y:        byte(screenTop),
			Tile:     effTile,
			Attr:     attr &^ 0x40, // Y-flip already folded into row selection above.
			OAMIndex: i,
		})
	}
	return out
}
