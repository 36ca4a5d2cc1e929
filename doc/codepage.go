package doc

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// DefaultCodePage is used for compressed pieces when nothing else is configured.
const DefaultCodePage = 1252

var codePages = map[int]*charmap.Charmap{
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	852:   charmap.CodePage852,
	866:   charmap.CodePage866,
	874:   charmap.Windows874,
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	10000: charmap.Macintosh,
	20866: charmap.KOI8R,
	28591: charmap.ISO8859_1,
	28592: charmap.ISO8859_2,
	28595: charmap.ISO8859_5,
	28597: charmap.ISO8859_7,
	28605: charmap.ISO8859_15,
}

// CodePage returns the single-byte charmap for a Windows code page number.
func CodePage(cp int) (*charmap.Charmap, error) {
	if cp == 0 {
		cp = DefaultCodePage
	}
	cm, ok := codePages[cp]
	if !ok {
		return nil, fmt.Errorf("doc: unsupported code page %d", cp)
	}
	return cm, nil
}

// ansi code pages by primary language id (lid & 0x3FF)
var lidCodePages = map[uint16]int{
	0x01: 1256, // Arabic
	0x02: 1251, // Bulgarian
	0x05: 1250, // Czech
	0x08: 1253, // Greek
	0x0D: 1255, // Hebrew
	0x0E: 1250, // Hungarian
	0x15: 1250, // Polish
	0x18: 1250, // Romanian
	0x19: 1251, // Russian
	0x1B: 1250, // Slovak
	0x1E: 874,  // Thai
	0x1F: 1254, // Turkish
	0x22: 1251, // Ukrainian
	0x23: 1251, // Belarusian
	0x24: 1250, // Slovenian
	0x25: 1257, // Estonian
	0x26: 1257, // Latvian
	0x27: 1257, // Lithuanian
	0x2A: 1258, // Vietnamese
}

// CodePageForLid returns the ANSI code page conventionally used with a
// language id, or DefaultCodePage.
func CodePageForLid(lid uint16) int {
	if cp, ok := lidCodePages[lid&0x3FF]; ok {
		return cp
	}
	return DefaultCodePage
}
