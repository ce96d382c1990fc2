package ppu

// CGBVRAMReader adds bank-aware access to VRAMReader for the two-bank CGB
// tile/attribute maps. Bank 0 holds tile indices; bank 1 holds the parallel
// attribute byte at the same map address.
type CGBVRAMReader interface {
	VRAMReader
	ReadBank(bank int, addr uint16) byte
}

// cgbAttr decodes a CGB BG/window attribute byte: bits 0-2 palette, bit 4
// VRAM bank, bit 5 X-flip, bit 6 Y-flip, bit 7 BG-to-OBJ priority.
type cgbAttr struct {
	palette  byte
	bank     int
	xflip    bool
	yflip    bool
	priority bool
}

func decodeCGBAttr(v byte) cgbAttr {
	a := cgbAttr{palette: v & 0x07}
	if v&0x10 != 0 {
		a.bank = 1
	}
	a.xflip = v&0x20 != 0
	a.yflip = v&0x40 != 0
	a.priority = v&0x80 != 0
	return a
}

// RenderBGScanlineCGB renders 160 background pixels honoring per-tile CGB
// attributes (palette, VRAM bank, flips, priority). mapBase selects the tile
// index map (bank 0); attrBase selects the parallel attribute byte (bank 1).
func RenderBGScanlineCGB(mem CGBVRAMReader, mapBase, attrBase uint16, tileData8000 bool, scx, scy, ly byte) (ci, pal [160]byte, pri [160]bool) {
	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapY := (bgY >> 3) & 31
	startX := uint16(scx)
	tileX := (startX >> 3) & 31
	fineX := int(startX & 7)

	x := 0
	first := true
	for x < 160 {
		mapOff := mapY*32 + tileX
		tileNum := mem.ReadBank(0, mapBase+mapOff)
		attr := decodeCGBAttr(mem.ReadBank(1, attrBase+mapOff))

		row := fineY
		if attr.yflip {
			row = 7 - row
		}
		var base uint16
		if tileData8000 {
			base = 0x8000 + uint16(tileNum)*16 + uint16(row)*2
		} else {
			base = 0x9000 + uint16(int8(tileNum))*16 + uint16(row)*2
		}
		lo := mem.ReadBank(attr.bank, base)
		hi := mem.ReadBank(attr.bank, base+1)

		start := 0
		if first {
			start = fineX
		}
		for px := start; px < 8 && x < 160; px++ {
			col := px
			if attr.xflip {
				col = 7 - px
			}
			bit := byte(7 - col)
			ci[x] = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			pal[x] = attr.palette
			pri[x] = attr.priority
			x++
		}
		first = false
		tileX = (tileX + 1) & 31
	}
	return
}

// RenderWindowScanlineCGB is RenderBGScanlineCGB's window-layer counterpart:
// it fills columns [wxStart, 160) using winLine as the window's own vertical
// line counter, leaving earlier columns at their zero value.
func RenderWindowScanlineCGB(mem CGBVRAMReader, mapBase, attrBase uint16, tileData8000 bool, wxStart int, winLine byte) (ci, pal [160]byte, pri [160]bool) {
	if wxStart >= 160 {
		return
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapY := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7
	tileX := uint16(0)

	x := wxStart
	for x < 160 {
		mapOff := mapY*32 + tileX
		tileNum := mem.ReadBank(0, mapBase+mapOff)
		attr := decodeCGBAttr(mem.ReadBank(1, attrBase+mapOff))

		row := fineY
		if attr.yflip {
			row = 7 - row
		}
		var base uint16
		if tileData8000 {
			base = 0x8000 + uint16(tileNum)*16 + uint16(row)*2
		} else {
			base = 0x9000 + uint16(int8(tileNum))*16 + uint16(row)*2
		}
		lo := mem.ReadBank(attr.bank, base)
		hi := mem.ReadBank(attr.bank, base+1)

		for px := 0; px < 8 && x < 160; px++ {
			col := px
			if attr.xflip {
				col = 7 - px
			}
			bit := byte(7 - col)
			ci[x] = ((hi>>bit)&1)<<1 | ((lo >> bit) & 1)
			pal[x] = attr.palette
			pri[x] = attr.priority
			x++
		}
		tileX = (tileX + 1) & 31
	}
	return
}
