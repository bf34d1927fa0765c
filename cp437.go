package fatvfs

// Code page 437 translation tables.
//
// displayTable is a lossless CP437 -> Unicode mapping used when decoding
// on-disk short names for display. runeTo8dot3 searches the same table in
// reverse, restricted to characters legal in an 8.3 short name: uppercase
// only, no path separators, no reserved DOS characters. invalidRune (no
// CP437 representation at all) and lfnOnlyRune (valid in a long name but
// never in 8.3) name those two cases; the lookup functions below report them
// through their boolean results rather than returning these values.
const (
	invalidRune = 0xFFFF
	lfnOnlyRune = 0xFFFE
)

// displayTable maps CP437 byte values 0x80-0xFF, indexed by the byte
// itself, to their Unicode code points. Bytes below 0x80 map to themselves
// (plain ASCII); their slots are left zero.
var displayTable = [256]rune{
	0x80: 'Ç', 0x81: 'ü', 0x82: 'é', 0x83: 'â', 0x84: 'ä', 0x85: 'à', 0x86: 'å', 0x87: 'ç',
	0x88: 'ê', 0x89: 'ë', 0x8A: 'è', 0x8B: 'ï', 0x8C: 'î', 0x8D: 'ì', 0x8E: 'Ä', 0x8F: 'Å',
	0x90: 'É', 0x91: 'æ', 0x92: 'Æ', 0x93: 'ô', 0x94: 'ö', 0x95: 'ò', 0x96: 'û', 0x97: 'ù',
	0x98: 'ÿ', 0x99: 'Ö', 0x9A: 'Ü', 0x9B: '¢', 0x9C: '£', 0x9D: '¥', 0x9E: '₧', 0x9F: 'ƒ',
	0xA0: 'á', 0xA1: 'í', 0xA2: 'ó', 0xA3: 'ú', 0xA4: 'ñ', 0xA5: 'Ñ', 0xA6: 'ª', 0xA7: 'º',
	0xA8: '¿', 0xA9: '⌐', 0xAA: '¬', 0xAB: '½', 0xAC: '¼', 0xAD: '¡', 0xAE: '«', 0xAF: '»',
	0xB0: '░', 0xB1: '▒', 0xB2: '▓', 0xB3: '│', 0xB4: '┤', 0xB5: '╡', 0xB6: '╢', 0xB7: '╖',
	0xB8: '╕', 0xB9: '╣', 0xBA: '║', 0xBB: '╗', 0xBC: '╝', 0xBD: '╜', 0xBE: '╛', 0xBF: '┐',
	0xC0: '└', 0xC1: '┴', 0xC2: '┬', 0xC3: '├', 0xC4: '─', 0xC5: '┼', 0xC6: '╞', 0xC7: '╟',
	0xC8: '╚', 0xC9: '╔', 0xCA: '╩', 0xCB: '╦', 0xCC: '╠', 0xCD: '═', 0xCE: '╬', 0xCF: '╧',
	0xD0: '╨', 0xD1: '╤', 0xD2: '╥', 0xD3: '╙', 0xD4: '╘', 0xD5: '╒', 0xD6: '╓', 0xD7: '╫',
	0xD8: '╪', 0xD9: '┘', 0xDA: '┌', 0xDB: '█', 0xDC: '▄', 0xDD: '▌', 0xDE: '▐', 0xDF: '▀',
	0xE0: 'α', 0xE1: 'ß', 0xE2: 'Γ', 0xE3: 'π', 0xE4: 'Σ', 0xE5: 'σ', 0xE6: 'µ', 0xE7: 'τ',
	0xE8: 'Φ', 0xE9: 'Θ', 0xEA: 'Ω', 0xEB: 'δ', 0xEC: '∞', 0xED: 'φ', 0xEE: 'ε', 0xEF: '∩',
	0xF0: '≡', 0xF1: '±', 0xF2: '≥', 0xF3: '≤', 0xF4: '⌠', 0xF5: '⌡', 0xF6: '÷', 0xF7: '≈',
	0xF8: '°', 0xF9: '∙', 0xFA: '·', 0xFB: '√', 0xFC: 'ⁿ', 0xFD: '²', 0xFE: '■', 0xFF: ' ',
}

// reservedIn83 lists ASCII bytes that are legal CP437/display characters
// but forbidden inside an 8.3 short name component (path separators,
// wildcard and redirection characters, and DOS-reserved punctuation).
var reservedIn83 = [...]byte{'"', '*', '+', ',', '/', ':', ';', '<', '=', '>', '?', '[', '\\', ']', '|'}

func isReservedIn83(b byte) bool {
	for _, r := range reservedIn83 {
		if r == b {
			return true
		}
	}
	return false
}

// cp437DisplayToRune converts a single CP437 byte to its Unicode code point.
func cp437DisplayToRune(b byte) rune {
	if b < 0x80 {
		return rune(b)
	}
	return displayTable[b]
}

// runeTo8dot3 maps a Unicode code point to the byte it would occupy in an
// 8.3 name. ASCII letters a-z are uppercased first; other runes are looked
// up as given. It returns (0, false) if the rune has no CP437
// representation or is not legal in an 8.3 name.
func runeTo8dot3(r rune) (byte, bool) {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	if r < 0x80 {
		b := byte(r)
		if b < 0x20 || b == ' ' || b == '.' || isReservedIn83(b) {
			return 0, false
		}
		return b, true
	}
	for i, dr := range displayTable {
		if dr == r {
			return byte(i), true
		}
	}
	return 0, false
}

// runeValidForLFN reports whether r can appear in a long filename. FAT
// forbids the same path/wildcard punctuation in long names as in 8.3 names,
// plus control characters, regardless of whether the rune has an 8.3
// representation.
func runeValidForLFN(r rune) bool {
	if r < 0x20 {
		return false
	}
	if r < 0x80 {
		return !isReservedIn83(byte(r))
	}
	return r != 0xFFFE && r != 0xFFFF
}
