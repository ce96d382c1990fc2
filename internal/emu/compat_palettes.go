package emu

// cgbCompatSetNames labels each curated compat palette by the hue
// compat_tables.go's heuristics assign to known title families.
var cgbCompatSetNames = []string{"Green", "Sepia", "Blue", "Red", "Pastel"}

// cgbCompatSets holds one [4][4]byte DMG shade ramp per curated palette,
// lightest to darkest, indexed the same as cgbCompatSetNames.
var cgbCompatSets = map[int][4][4]byte{
	0: { // Green, the original DMG-on-CGB default
		{0xE0, 0xF8, 0xD0, 0xFF},
		{0x88, 0xC0, 0x70, 0xFF},
		{0x34, 0x68, 0x56, 0xFF},
		{0x08, 0x18, 0x20, 0xFF},
	},
	1: { // Sepia
		{0xF8, 0xE8, 0xC8, 0xFF},
		{0xD0, 0xA8, 0x78, 0xFF},
		{0x88, 0x60, 0x40, 0xFF},
		{0x38, 0x24, 0x18, 0xFF},
	},
	2: { // Blue
		{0xE0, 0xF0, 0xF8, 0xFF},
		{0x90, 0xB0, 0xE0, 0xFF},
		{0x48, 0x60, 0xA0, 0xFF},
		{0x10, 0x18, 0x38, 0xFF},
	},
	3: { // Red
		{0xF8, 0xE0, 0xE0, 0xFF},
		{0xE0, 0x90, 0x90, 0xFF},
		{0xA0, 0x40, 0x40, 0xFF},
		{0x38, 0x10, 0x10, 0xFF},
	},
	4: { // Pastel
		{0xF8, 0xF0, 0xF8, 0xFF},
		{0xD8, 0xC8, 0xE8, 0xFF},
		{0xA0, 0x90, 0xC0, 0xFF},
		{0x48, 0x40, 0x60, 0xFF},
	},
}
