package doc

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/pbnjay/wdoc"
)

// offset of xszFfn within an FFN
const ffnNameOffset = 39

// Font is one entry of the font table.
type Font struct {
	Name     string
	AltName  string
	Family   uint8
	TrueType bool
	Weight   uint16
	Charset  uint8
	Pitch    uint8
}

// parseFonts decodes the SttbfFfn string table.
func parseFonts(b []byte) ([]Font, error) {
	le := binary.LittleEndian
	if len(b) < 4 {
		return nil, fail(wdoc.ErrInvalidFormat, "font table too short (%d bytes)", len(b))
	}
	n := int(le.Uint16(b))
	if n == 0xFFFF {
		return nil, fail(wdoc.ErrInvalidFormat, "font table uses extended strings")
	}
	pos := 4
	fonts := make([]Font, 0, n)
	for i := 0; i < n; i++ {
		if pos >= len(b) {
			return nil, fail(wdoc.ErrInvalidFormat, "font %d: table truncated", i)
		}
		cch := int(b[pos])
		pos++
		if pos+cch > len(b) {
			return nil, fail(wdoc.ErrInvalidFormat, "font %d: %d bytes past the end", i, cch)
		}
		fonts = append(fonts, parseFfn(b[pos:pos+cch]))
		pos += cch
	}
	return fonts, nil
}

func parseFfn(ffn []byte) Font {
	var f Font
	if len(ffn) < ffnNameOffset {
		return f
	}
	f.Pitch = ffn[0] & 0x03
	f.TrueType = ffn[0]&0x04 != 0
	f.Family = (ffn[0] >> 4) & 0x07
	f.Weight = binary.LittleEndian.Uint16(ffn[1:])
	f.Charset = ffn[3]
	ixchSzAlt := int(ffn[4])

	var units []uint16
	for i := ffnNameOffset; i+1 < len(ffn); i += 2 {
		units = append(units, binary.LittleEndian.Uint16(ffn[i:]))
	}
	f.Name = cstring(units)
	if ixchSzAlt > 0 && ixchSzAlt < len(units) {
		f.AltName = cstring(units[ixchSzAlt:])
	}
	return f
}

// cstring decodes UTF-16 units up to the first null.
func cstring(units []uint16) string {
	for i, u := range units {
		if u == 0 {
			units = units[:i]
			break
		}
	}
	return string(utf16.Decode(units))
}
