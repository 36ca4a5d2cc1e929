// Package doctest builds minimal Word 97 documents in memory for tests.
package doctest

import (
	"encoding/binary"
	"sort"
	"unicode/utf16"

	"github.com/pbnjay/wdoc/internal/cfbtest"
)

const (
	fibSize   = 1024
	cbRgFcLcb = 93
	pageSize  = 512

	rgFcLcbOffset = 32 + 2 + 14*2 + 2 + 22*4 + 2
)

// Structure indices in FibRgFcLcb.
const (
	idxStshf       = 1
	idxPlcfBteChpx = 12
	idxPlcfBtePapx = 13
	idxSttbfFfn    = 15
	idxClx         = 33
)

// Piece is a run of text stored either as 8-bit (Compressed) or UTF-16.
type Piece struct {
	Text       string
	Compressed bool
	Prm        uint16
}

// Run applies a grpprl to the character positions [CPStart,CPEnd). A run
// must not cross a piece boundary.
type Run struct {
	CPStart uint32
	CPEnd   uint32
	Istd    uint16
	Grpprl  []byte
}

// NoBase marks a style without a base style.
const NoBase = 0x0FFF

// Style is a style sheet entry. Empty styles leave a hole in the sheet.
type Style struct {
	Empty bool
	Name  string
	Kind  uint8 // 1 paragraph, 2 character
	Base  uint16
	Papx  []byte
	Chpx  []byte
}

// Builder lays out a WordDocument stream and its table stream.
type Builder struct {
	Ident      uint16
	TableName  string
	Lid        uint16
	Encrypted  bool
	Obfuscated bool
	Key        uint32
	// EncryptionHeader is written at the start of the table stream.
	EncryptionHeader []byte

	Pieces []Piece
	Prcs   [][]byte
	// Ccp overrides the subdocument lengths; the default puts all text in
	// the main document.
	Ccp []uint32

	CharRuns []Run
	ParaRuns []Run
	Styles   []Style
	Fonts    []string

	Data  []byte
	Extra map[string][]byte

	// CorruptClx replaces the CLX bytes.
	CorruptClx []byte
}

// New returns a builder for an unencrypted document using 1Table.
func New(pieces ...Piece) *Builder {
	return &Builder{
		Ident:     0xA5EC,
		TableName: "1Table",
		Lid:       0x0409,
		Pieces:    pieces,
	}
}

// LastCP is the total number of character positions of the pieces.
func (b *Builder) LastCP() uint32 {
	var n uint32
	for _, p := range b.Pieces {
		n += uint32(len(utf16.Encode([]rune(p.Text))))
	}
	return n
}

type placed struct {
	cpStart, cpEnd uint32
	off            uint32
	width          uint32
}

func pad(b []byte, n int) []byte {
	for len(b)%n != 0 {
		b = append(b, 0)
	}
	return b
}

func encodeText(p Piece) []byte {
	if p.Compressed {
		out := make([]byte, 0, len(p.Text))
		for _, r := range p.Text {
			out = append(out, byte(r))
		}
		return out
	}
	units := utf16.Encode([]rune(p.Text))
	out := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[i*2:], u)
	}
	return out
}

// Streams returns the WordDocument and table stream contents.
func (b *Builder) Streams() (wordDocument, table []byte) {
	le := binary.LittleEndian
	wd := make([]byte, fibSize)

	// text, with a gap between pieces so fcs and cps never line up
	var pieces []placed
	var cp uint32
	for _, p := range b.Pieces {
		raw := encodeText(p)
		wd = append(wd, 0, 0)
		pl := placed{cpStart: cp, off: uint32(len(wd)), width: 2}
		if p.Compressed {
			pl.width = 1
		}
		cp += uint32(len(raw)) / pl.width
		pl.cpEnd = cp
		pieces = append(pieces, pl)
		wd = append(wd, raw...)
	}

	// end positions belong to the piece they close
	fcOf := func(cp uint32, end bool) uint32 {
		for _, p := range pieces {
			if cp >= p.cpStart && (cp < p.cpEnd || end && cp == p.cpEnd) {
				return p.off + (cp-p.cpStart)*p.width
			}
		}
		return 0
	}

	var pnChpx, pnPapx []uint32
	var fcsChpx, fcsPapx [2]uint32
	if len(b.CharRuns) > 0 {
		wd = pad(wd, pageSize)
		page, lo, hi := fkpPage(b.CharRuns, fcOf, false)
		pnChpx = append(pnChpx, uint32(len(wd)/pageSize))
		fcsChpx = [2]uint32{lo, hi}
		wd = append(wd, page...)
	}
	if len(b.ParaRuns) > 0 {
		wd = pad(wd, pageSize)
		page, lo, hi := fkpPage(b.ParaRuns, fcOf, true)
		pnPapx = append(pnPapx, uint32(len(wd)/pageSize))
		fcsPapx = [2]uint32{lo, hi}
		wd = append(wd, page...)
	}

	// table stream
	tbl := append([]byte(nil), b.EncryptionHeader...)
	type loc struct{ fc, lcb uint32 }
	locs := map[int]loc{}
	put := func(idx int, data []byte) {
		if len(data) == 0 {
			return
		}
		locs[idx] = loc{uint32(len(tbl)), uint32(len(data))}
		tbl = append(tbl, data...)
	}

	clx := b.CorruptClx
	if clx == nil {
		for _, g := range b.Prcs {
			clx = append(clx, 0x01, 0, 0)
			le.PutUint16(clx[len(clx)-2:], uint16(len(g)))
			clx = append(clx, g...)
		}
		plc := make([]byte, 0, (len(pieces)+1)*4+len(pieces)*8)
		for _, p := range pieces {
			plc = le.AppendUint32(plc, p.cpStart)
		}
		plc = le.AppendUint32(plc, cp)
		for i, p := range pieces {
			fc := p.off
			if p.width == 1 {
				fc = (p.off * 2) | 0x40000000
			}
			plc = append(plc, 0, 0)
			plc = le.AppendUint32(plc, fc)
			plc = le.AppendUint16(plc, b.Pieces[i].Prm)
		}
		clx = append(clx, 0x02)
		clx = le.AppendUint32(clx, uint32(len(plc)))
		clx = append(clx, plc...)
	}
	put(idxClx, clx)
	if len(pnChpx) > 0 {
		put(idxPlcfBteChpx, bte(fcsChpx, pnChpx))
	}
	if len(pnPapx) > 0 {
		put(idxPlcfBtePapx, bte(fcsPapx, pnPapx))
	}
	if len(b.Styles) > 0 {
		put(idxStshf, b.styleSheet())
	}
	if len(b.Fonts) > 0 {
		put(idxSttbfFfn, b.fontTable())
	}

	// FIB
	le.PutUint16(wd[0:], b.Ident)
	le.PutUint16(wd[2:], 0x00C1)
	le.PutUint16(wd[6:], b.Lid)
	var flags uint16
	if b.TableName == "1Table" {
		flags |= 0x0200
	}
	if b.Encrypted {
		flags |= 0x0100
	}
	if b.Obfuscated {
		flags |= 0x8000
	}
	le.PutUint16(wd[10:], flags)
	le.PutUint32(wd[14:], b.Key)
	le.PutUint16(wd[32:], 14)
	rgLw := 32 + 2 + 28 + 2
	le.PutUint16(wd[rgLw-2:], 22)
	le.PutUint32(wd[rgLw:], uint32(len(wd)))
	ccp := b.Ccp
	if ccp == nil {
		ccp = []uint32{cp}
	}
	for i, n := range ccp {
		le.PutUint32(wd[rgLw+12+i*4:], n)
	}
	le.PutUint16(wd[rgFcLcbOffset-2:], cbRgFcLcb)
	for idx, l := range locs {
		le.PutUint32(wd[rgFcLcbOffset+idx*8:], l.fc)
		le.PutUint32(wd[rgFcLcbOffset+idx*8+4:], l.lcb)
	}
	return wd, tbl
}

func bte(fcs [2]uint32, pns []uint32) []byte {
	var out []byte
	out = binary.LittleEndian.AppendUint32(out, fcs[0])
	out = binary.LittleEndian.AppendUint32(out, fcs[1])
	for _, pn := range pns {
		out = binary.LittleEndian.AppendUint32(out, pn)
	}
	return out
}

// fkpPage lays out one CHPX or PAPX page. Gaps between runs become
// entries without formatting.
func fkpPage(runs []Run, fcOf func(uint32, bool) uint32, papx bool) ([]byte, uint32, uint32) {
	type span struct {
		lo, hi uint32
		run    *Run
	}
	var spans []span
	for i := range runs {
		r := &runs[i]
		spans = append(spans, span{fcOf(r.CPStart, false), fcOf(r.CPEnd, true), r})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })
	var filled []span
	for _, s := range spans {
		if n := len(filled); n > 0 && filled[n-1].hi < s.lo {
			filled = append(filled, span{filled[n-1].hi, s.lo, nil})
		}
		filled = append(filled, s)
	}

	le := binary.LittleEndian
	page := make([]byte, pageSize)
	crun := len(filled)
	page[pageSize-1] = byte(crun)
	for i, s := range filled {
		le.PutUint32(page[i*4:], s.lo)
	}
	le.PutUint32(page[crun*4:], filled[crun-1].hi)

	entry := 1
	if papx {
		entry = 13
	}
	rgb := (crun + 1) * 4
	top := pageSize - 1
	for i, s := range filled {
		if s.run == nil {
			continue
		}
		var blob []byte
		if papx {
			content := le.AppendUint16(nil, s.run.Istd)
			content = append(content, s.run.Grpprl...)
			if len(content)%2 == 1 {
				blob = append([]byte{byte((len(content) + 1) / 2)}, content...)
			} else {
				blob = append([]byte{0, byte(len(content) / 2)}, content...)
			}
		} else {
			blob = append([]byte{byte(len(s.run.Grpprl))}, s.run.Grpprl...)
		}
		top -= len(blob)
		top &^= 1
		copy(page[top:], blob)
		page[rgb+i*entry] = byte(top / 2)
	}
	return page, filled[0].lo, filled[crun-1].hi
}

func utf16z(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 0, len(units)*2+2)
	for _, u := range units {
		out = binary.LittleEndian.AppendUint16(out, u)
	}
	return append(out, 0, 0)
}

func (b *Builder) styleSheet() []byte {
	le := binary.LittleEndian
	out := le.AppendUint16(nil, 18)
	out = le.AppendUint16(out, uint16(len(b.Styles))) // cstd
	out = le.AppendUint16(out, 10)                    // cbSTDBaseInFile
	out = le.AppendUint16(out, 1)
	out = le.AppendUint16(out, 15)
	out = le.AppendUint16(out, 15)
	out = le.AppendUint16(out, 0)
	out = le.AppendUint16(out, 0) // ftcAsci
	out = le.AppendUint16(out, 0)
	out = le.AppendUint16(out, 0)

	for i, s := range b.Styles {
		if s.Empty {
			out = le.AppendUint16(out, 0)
			continue
		}
		cupx := 1
		if s.Kind == 1 {
			cupx = 2
		}
		std := le.AppendUint16(nil, uint16(i))
		std = le.AppendUint16(std, uint16(s.Kind)|s.Base<<4)
		std = le.AppendUint16(std, uint16(cupx)|uint16(i)<<4)
		std = le.AppendUint16(std, 0)
		std = le.AppendUint16(std, 0)
		name := utf16z(s.Name)
		std = le.AppendUint16(std, uint16(len(name)/2-1))
		std = append(std, name...)
		if s.Kind == 1 {
			std = pad(std, 2)
			papx := le.AppendUint16(nil, uint16(i))
			papx = append(papx, s.Papx...)
			std = le.AppendUint16(std, uint16(len(papx)))
			std = append(std, papx...)
		}
		std = pad(std, 2)
		std = le.AppendUint16(std, uint16(len(s.Chpx)))
		std = append(std, s.Chpx...)

		out = le.AppendUint16(out, uint16(len(std)))
		out = append(out, std...)
	}
	return out
}

func (b *Builder) fontTable() []byte {
	le := binary.LittleEndian
	out := le.AppendUint16(nil, uint16(len(b.Fonts)))
	out = le.AppendUint16(out, 0)
	for _, name := range b.Fonts {
		ffn := make([]byte, 39)
		ffn[0] = 0x04 | 2<<4 // TrueType, swiss
		le.PutUint16(ffn[1:], 400)
		ffn = append(ffn, utf16z(name)...)
		out = append(out, byte(len(ffn)))
		out = append(out, ffn...)
	}
	return out
}

// Bytes wraps the streams in a compound file.
func (b *Builder) Bytes() []byte {
	wd, tbl := b.Streams()
	cb := cfbtest.New()
	cb.Add("WordDocument", wd)
	cb.Add(b.TableName, tbl)
	if b.Data != nil {
		cb.Add("Data", b.Data)
	}
	for name, data := range b.Extra {
		cb.Add(name, data)
	}
	return cb.Bytes()
}
