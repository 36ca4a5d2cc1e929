package doc

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/go-restruct/restruct"
	"github.com/pbnjay/wdoc"
)

const (
	istdNil    = 0x0FFF
	istdNormal = 0
	// "Default Paragraph Font"
	istdDefaultChar = 10
)

// StyleKind is the stk of a style.
type StyleKind uint8

const (
	StyleParagraph StyleKind = 1
	StyleCharacter StyleKind = 2
	StyleTable     StyleKind = 3
	StyleNumbering StyleKind = 4
)

func (k StyleKind) String() string {
	switch k {
	case StyleParagraph:
		return "paragraph"
	case StyleCharacter:
		return "character"
	case StyleTable:
		return "table"
	case StyleNumbering:
		return "numbering"
	}
	return "unknown"
}

// Style is one entry of the style sheet.
type Style struct {
	Istd uint16
	Sti  uint16
	Name string
	Kind StyleKind
	Base uint16
	Next uint16

	papx []byte
	chpx []byte
}

// Stshif, the fixed part of the style sheet header
type stshif struct {
	Cstd                      uint16
	CbSTDBaseInFile           uint16
	Flags                     uint16
	StiMaxWhenSaved           uint16
	IstdMaxFixedWhenSaved     uint16
	NVerBuiltInNamesWhenSaved uint16
	FtcAsci                   uint16
	FtcFE                     uint16
	FtcOther                  uint16
}

// StyleSheet holds the styles and their fully inherited properties.
type StyleSheet struct {
	styles []*Style
	info   stshif

	// resolved per istd, following istdBase
	paps   []ParaProps
	chps   []CharProps
	chains [][]Sprm
}

func parseStyleSheet(b []byte) (*StyleSheet, error) {
	le := binary.LittleEndian
	if len(b) < 2 {
		return nil, fail(wdoc.ErrInvalidFormat, "style sheet too short")
	}
	cbStshi := int(le.Uint16(b))
	if 2+cbStshi > len(b) || cbStshi < 4 {
		return nil, fail(wdoc.ErrInvalidFormat, "style sheet header size %d", cbStshi)
	}
	ss := &StyleSheet{}
	raw := make([]byte, 18)
	copy(raw, b[2:2+cbStshi])
	if err := restruct.Unpack(raw, binary.LittleEndian, &ss.info); err != nil {
		return nil, fail(wdoc.ErrInvalidFormat, "Stshif: %v", err)
	}

	cstd := int(ss.info.Cstd)
	baseSize := int(ss.info.CbSTDBaseInFile)
	ss.styles = make([]*Style, cstd)
	pos := 2 + cbStshi
	for istd := 0; istd < cstd; istd++ {
		if pos+2 > len(b) {
			return nil, fail(wdoc.ErrInvalidFormat, "style %d: truncated", istd)
		}
		cbStd := int(le.Uint16(b[pos:]))
		pos += 2
		if pos+cbStd > len(b) {
			return nil, fail(wdoc.ErrInvalidFormat, "style %d: %d bytes past the end", istd, cbStd)
		}
		if cbStd != 0 {
			ss.styles[istd] = parseStd(uint16(istd), b[pos:pos+cbStd], baseSize)
		}
		pos += cbStd
	}
	ss.resolve()
	return ss, nil
}

// parseStd decodes one STD. Malformed trailing parts leave the style
// with whatever was decoded before them.
func parseStd(istd uint16, std []byte, baseSize int) *Style {
	le := binary.LittleEndian
	s := &Style{Istd: istd, Base: istdNil}
	if len(std) < 10 || baseSize < 10 {
		return s
	}
	s.Sti = le.Uint16(std) & 0x0FFF
	w := le.Uint16(std[2:])
	s.Kind = StyleKind(w & 0x000F)
	s.Base = w >> 4
	w = le.Uint16(std[4:])
	cupx := int(w & 0x000F)
	s.Next = w >> 4

	pos := baseSize
	if pos+2 > len(std) {
		return s
	}
	cch := int(le.Uint16(std[pos:]))
	pos += 2
	if pos+cch*2 > len(std) {
		return s
	}
	name := make([]uint16, cch)
	for i := range name {
		name[i] = le.Uint16(std[pos+i*2:])
	}
	s.Name = string(utf16.Decode(name))
	pos += cch*2 + 2 // null terminator

	var upx [][]byte
	for i := 0; i < cupx; i++ {
		if pos&1 != 0 {
			pos++
		}
		if pos+2 > len(std) {
			break
		}
		cb := int(le.Uint16(std[pos:]))
		pos += 2
		if pos+cb > len(std) {
			break
		}
		upx = append(upx, std[pos:pos+cb])
		pos += cb
	}

	switch s.Kind {
	case StyleParagraph:
		if len(upx) > 0 && len(upx[0]) >= 2 {
			// the paragraph UPX leads with its own istd
			s.papx = upx[0][2:]
		}
		if len(upx) > 1 {
			s.chpx = upx[1]
		}
	case StyleCharacter:
		if len(upx) > 0 {
			s.chpx = upx[0]
		}
	case StyleTable:
		if len(upx) > 1 && len(upx[1]) >= 2 {
			s.papx = upx[1][2:]
		}
		if len(upx) > 2 {
			s.chpx = upx[2]
		}
	case StyleNumbering:
		if len(upx) > 0 && len(upx[0]) >= 2 {
			s.papx = upx[0][2:]
		}
	}
	return s
}

func (ss *StyleSheet) defaultChp() CharProps {
	c := CharProps{Istd: istdDefaultChar, Size: some(uint16(20))}
	c.FontASCII = some(ss.info.FtcAsci)
	c.FontFarEast = some(ss.info.FtcFE)
	c.FontOther = some(ss.info.FtcOther)
	return c
}

// resolve computes the inherited properties of every style. A base chain
// that loops back on itself is cut where it revisits a style.
func (ss *StyleSheet) resolve() {
	n := len(ss.styles)
	ss.paps = make([]ParaProps, n)
	ss.chps = make([]CharProps, n)
	ss.chains = make([][]Sprm, n)
	state := make([]byte, n) // 0 new, 1 in progress, 2 done

	var visit func(istd int)
	visit = func(istd int) {
		if state[istd] != 0 {
			return
		}
		state[istd] = 1
		s := ss.styles[istd]
		pap := ParaProps{Istd: uint16(istd)}
		chp := ss.defaultChp()
		var chain []Sprm
		if s != nil && s.Base != istdNil && int(s.Base) < n && ss.styles[s.Base] != nil {
			b := int(s.Base)
			switch state[b] {
			case 0:
				visit(b)
				fallthrough
			case 2:
				pap = ss.paps[b]
				pap.Istd = uint16(istd)
				chp = ss.chps[b]
				chain = append(chain, ss.chains[b]...)
			case 1:
				if wdoc.Debug {
					logger.Warningf(nil, "style %d: istdBase chain loops through %d", istd, b)
				}
			}
		}
		if s != nil {
			papx, _ := ParseGrpprl(s.papx)
			pap = applyPap(pap, papx)
			pap.Istd = uint16(istd)
			chpx, _ := ParseGrpprl(s.chpx)
			chp = applyChp(chp, chp, chpx, nil)
			chain = append(chain, filterSgc(chpx, SgcChar)...)
			if s.Kind == StyleCharacter {
				chp.Istd = uint16(istd)
			}
		}
		ss.paps[istd] = pap
		ss.chps[istd] = chp
		ss.chains[istd] = chain
		state[istd] = 2
	}
	for i := 0; i < n; i++ {
		visit(i)
	}
}

// Styles returns the defined styles; empty slots are skipped.
func (ss *StyleSheet) Styles() []*Style {
	var res []*Style
	for _, s := range ss.styles {
		if s != nil {
			res = append(res, s)
		}
	}
	return res
}

// Style returns the style at istd.
func (ss *StyleSheet) Style(istd uint16) (*Style, bool) {
	if int(istd) >= len(ss.styles) || ss.styles[istd] == nil {
		return nil, false
	}
	return ss.styles[istd], true
}

// Para returns the inherited paragraph properties of a style, or the
// Normal style when istd is undefined.
func (ss *StyleSheet) Para(istd uint16) ParaProps {
	if ss == nil {
		return ParaProps{Istd: istd}
	}
	if int(istd) < len(ss.paps) && ss.styles[istd] != nil {
		return ss.paps[istd]
	}
	if len(ss.paps) > istdNormal {
		p := ss.paps[istdNormal]
		p.Istd = istd
		return p
	}
	return ParaProps{Istd: istd}
}

// Char returns the inherited character properties of a style.
func (ss *StyleSheet) Char(istd uint16) CharProps {
	if ss == nil {
		return CharProps{Istd: istdDefaultChar}
	}
	if int(istd) < len(ss.chps) && ss.styles[istd] != nil {
		return ss.chps[istd]
	}
	return ss.defaultChp()
}

// chpxChain returns the character sprms of a style and its bases, base first.
func (ss *StyleSheet) chpxChain(istd uint16) []Sprm {
	if ss == nil || int(istd) >= len(ss.chains) {
		return nil
	}
	return ss.chains[istd]
}
