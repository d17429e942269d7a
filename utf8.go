package jdeserialize

import "unicode/utf16"

// decodeModifiedUTF8 decodes the JVM's modified UTF-8, which differs from
// standard UTF-8 in exactly two ways: U+0000 is written as the two-byte
// sequence C0 80 (a lone 0x00 byte is illegal), and supplementary code
// points appear as two three-byte surrogate halves rather than a four-byte
// sequence. A standard UTF-8 decoder must not be substituted here.
func decodeModifiedUTF8(data []byte) (string, error) {
	units := make([]uint16, 0, len(data))
	for i := 0; i < len(data); {
		ba := data[i]
		switch {
		case ba&0x80 == 0: /* U+0001..U+007F */
			if ba == 0 {
				return "", validityErrorf("improperly-encoded null in modified UTF-8 string")
			}
			units = append(units, uint16(ba))
			i++
		case ba&0xe0 == 0xc0: /* U+0000..U+07FF */
			if i+1 >= len(data) {
				return "", validityErrorf("unexpected end of modified UTF-8 string in 0000-07FF sequence")
			}
			bb := data[i+1]
			if bb&0xc0 != 0x80 {
				return "", validityErrorf("byte b in 0000-07FF sequence doesn't begin with the continuation prefix: %s", hex(int64(bb)))
			}
			units = append(units, uint16(ba&0x1f)<<6|uint16(bb&0x3f))
			i += 2
		case ba&0xf0 == 0xe0: /* U+0800..U+FFFF */
			if i+2 >= len(data) {
				return "", validityErrorf("unexpected end of modified UTF-8 string in 0800-FFFF sequence")
			}
			bb, bc := data[i+1], data[i+2]
			if bb&0xc0 != 0x80 {
				return "", validityErrorf("byte b in 0800-FFFF sequence doesn't begin with the continuation prefix: %s", hex(int64(bb)))
			}
			if bc&0xc0 != 0x80 {
				return "", validityErrorf("byte c in 0800-FFFF sequence doesn't begin with the continuation prefix: %s", hex(int64(bc)))
			}
			units = append(units, uint16(ba&0x0f)<<12|uint16(bb&0x3f)<<6|uint16(bc&0x3f))
			i += 3
		default:
			return "", validityErrorf("invalid byte in modified UTF-8 string: %s", hex(int64(ba)))
		}
	}
	// utf16.Decode pairs up surrogate halves, which is exactly how
	// supplementary code points arrive in this encoding.
	return string(utf16.Decode(units)), nil
}
