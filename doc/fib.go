package doc

// https://docs.microsoft.com/en-us/openspecs/office_file_formats/ms-doc/26fb6c06-4e5c-4778-ab4e-edbf26a545bb

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
	"github.com/pbnjay/wdoc"
)

const (
	fibIdentWord97 = 0xA5EC
	fibIdentWord6  = 0xA5DC
)

// FibBase flag bits.
const (
	fibDot         = 0x0001
	fibComplex     = 0x0004
	fibHasPic      = 0x0008
	fibEncrypted   = 0x0100
	fibWhichTblStm = 0x0200
	fibExtChar     = 0x1000
	fibFarEast     = 0x4000
	fibObfuscated  = 0x8000
)

// Indices into FibRgFcLcb of the structures used here.
const (
	StructStshfOrig   = 0
	StructStshf       = 1
	StructPlcffndRef  = 2
	StructPlcffndTxt  = 3
	StructPlcfandRef  = 4
	StructPlcfandTxt  = 5
	StructPlcfSed     = 6
	StructPlcfHdd     = 11
	StructPlcfBteChpx = 12
	StructPlcfBtePapx = 13
	StructSttbfFfn    = 15
	StructClx         = 33
)

// 32 bytes at the start of the WordDocument stream
type fibBase struct {
	WIdent    uint16
	NFib      uint16
	Unused    uint16
	Lid       uint16
	PnNext    uint16
	Flags     uint16
	NFibBack  uint16
	LKey      uint32
	Envr      byte
	FlagsB    byte
	Reserved3 uint16
	Reserved4 uint16
	Reserved5 uint32
	Reserved6 uint32
}

// Subdoc identifies one of the text ranges stored back to back in the
// document's character position space.
type Subdoc int

const (
	SubdocMain Subdoc = iota
	SubdocFootnotes
	SubdocHeaders
	SubdocMacro
	SubdocComments
	SubdocEndnotes
	SubdocTextboxes
	SubdocHeaderTextboxes
)

var subdocNames = [...]string{"main", "footnotes", "headers", "macro", "comments", "endnotes", "textboxes", "header-textboxes"}

func (s Subdoc) String() string {
	if s < 0 || int(s) >= len(subdocNames) {
		return fmt.Sprintf("subdoc(%d)", int(s))
	}
	return subdocNames[s]
}

// SubdocRange is a [Start,End) span of character positions.
type SubdocRange struct {
	Kind  Subdoc
	Start uint32
	End   uint32
}

type fcLcb struct {
	fc  uint32
	lcb uint32
}

// Fib is the decoded File Information Block. It is immutable after parsing.
type Fib struct {
	base    fibBase
	nFib    uint16
	lidFE   uint16
	cbMac   uint32
	ccp     [8]uint32
	rgFcLcb []fcLcb
}

// ParseFib decodes the FIB at the start of the WordDocument stream.
func ParseFib(wordDocument []byte) (*Fib, error) {
	if len(wordDocument) < 34 {
		return nil, fail(wdoc.ErrBadFib, "WordDocument stream too short (%d bytes)", len(wordDocument))
	}
	f := &Fib{}
	if err := restruct.Unpack(wordDocument[:32], binary.LittleEndian, &f.base); err != nil {
		return nil, fail(wdoc.ErrBadFib, "FibBase: %v", err)
	}
	switch f.base.WIdent {
	case fibIdentWord97:
	case fibIdentWord6:
		return nil, fail(wdoc.ErrBadFib, "Word 6/95 documents (nFib %d) are not supported", f.base.NFib)
	default:
		return nil, fail(wdoc.ErrBadFib, "invalid signature 0x%04x", f.base.WIdent)
	}
	f.nFib = f.base.NFib

	le := binary.LittleEndian
	pos := 32
	need := func(n int, what string) error {
		if pos+n > len(wordDocument) {
			return fail(wdoc.ErrBadFib, "%s extends past the stream (%d > %d)", what, pos+n, len(wordDocument))
		}
		return nil
	}

	// FibRgW97
	csw := int(le.Uint16(wordDocument[pos:]))
	pos += 2
	if err := need(csw*2, "FibRgW97"); err != nil {
		return nil, err
	}
	if csw >= 14 {
		f.lidFE = le.Uint16(wordDocument[pos+26:])
	}
	pos += csw * 2

	// FibRgLw97
	if err := need(2, "cslw"); err != nil {
		return nil, err
	}
	cslw := int(le.Uint16(wordDocument[pos:]))
	pos += 2
	if err := need(cslw*4, "FibRgLw97"); err != nil {
		return nil, err
	}
	if cslw < 11 {
		return nil, fail(wdoc.ErrBadFib, "FibRgLw97 has %d entries, need at least 11", cslw)
	}
	rgLw := wordDocument[pos:]
	f.cbMac = le.Uint32(rgLw)
	for i := range f.ccp {
		f.ccp[i] = le.Uint32(rgLw[12+i*4:])
	}
	pos += cslw * 4

	// FibRgFcLcb
	if err := need(2, "cbRgFcLcb"); err != nil {
		return nil, err
	}
	cb := int(le.Uint16(wordDocument[pos:]))
	pos += 2
	if err := need(cb*8, "FibRgFcLcb"); err != nil {
		return nil, err
	}
	f.rgFcLcb = make([]fcLcb, cb)
	for i := range f.rgFcLcb {
		f.rgFcLcb[i] = fcLcb{fc: le.Uint32(wordDocument[pos+i*8:]), lcb: le.Uint32(wordDocument[pos+i*8+4:])}
	}
	pos += cb * 8

	// FibRgCswNew, whose first field overrides nFib
	if pos+4 <= len(wordDocument) {
		if cswNew := le.Uint16(wordDocument[pos:]); cswNew > 0 {
			f.nFib = le.Uint16(wordDocument[pos+2:])
		}
	}
	if wdoc.Debug {
		logger.Debugf(nil, "FIB nFib=0x%04x lid=0x%04x flags=0x%04x ccpText=%d rgFcLcb=%d", f.nFib, f.base.Lid, f.base.Flags, f.ccp[0], cb)
	}
	return f, nil
}

// Version returns the effective nFib.
func (f *Fib) Version() uint16 { return f.nFib }

// VersionName returns a human readable application version for nFib.
func (f *Fib) VersionName() string {
	switch f.nFib {
	case 0x00C1:
		return "Word 97"
	case 0x00D9:
		return "Word 2000"
	case 0x0101:
		return "Word 2002"
	case 0x010C:
		return "Word 2003"
	case 0x0112:
		return "Word 2007"
	}
	return fmt.Sprintf("nFib 0x%04x", f.nFib)
}

// Lid is the install language of the application that wrote the file.
func (f *Fib) Lid() uint16 { return f.base.Lid }

// IsEncrypted reports whether the document is encrypted or obfuscated.
func (f *Fib) IsEncrypted() bool { return f.base.Flags&fibEncrypted != 0 }

// IsObfuscated reports XOR obfuscation; only meaningful when IsEncrypted.
func (f *Fib) IsObfuscated() bool { return f.base.Flags&fibObfuscated != 0 }

// IsTemplate reports whether the file is a .dot template.
func (f *Fib) IsTemplate() bool { return f.base.Flags&fibDot != 0 }

// IsComplex reports an incremental (fast) save.
func (f *Fib) IsComplex() bool { return f.base.Flags&fibComplex != 0 }

// HasPictures reports whether the document claims to contain pictures.
func (f *Fib) HasPictures() bool { return f.base.Flags&fibHasPic != 0 }

// Key is lKey: the encryption header size or the XOR verifier.
func (f *Fib) Key() uint32 { return f.base.LKey }

// TableStreamName returns the name of the table stream selected by fWhichTblStm.
func (f *Fib) TableStreamName() string {
	if f.base.Flags&fibWhichTblStm != 0 {
		return "1Table"
	}
	return "0Table"
}

// Lookup returns the (offset,length) pair at index of FibRgFcLcb.
func (f *Fib) Lookup(index int) (fc, lcb uint32, ok bool) {
	if index < 0 || index >= len(f.rgFcLcb) {
		return 0, 0, false
	}
	p := f.rgFcLcb[index]
	return p.fc, p.lcb, true
}

// Clx returns the location of the piece table in the table stream.
func (f *Fib) Clx() (fc, lcb uint32, ok bool) { return f.Lookup(StructClx) }

// PlcfBteChpx returns the location of the character bin table.
func (f *Fib) PlcfBteChpx() (fc, lcb uint32, ok bool) { return f.Lookup(StructPlcfBteChpx) }

// PlcfBtePapx returns the location of the paragraph bin table.
func (f *Fib) PlcfBtePapx() (fc, lcb uint32, ok bool) { return f.Lookup(StructPlcfBtePapx) }

// Stshf returns the location of the style sheet.
func (f *Fib) Stshf() (fc, lcb uint32, ok bool) { return f.Lookup(StructStshf) }

// SttbfFfn returns the location of the font table.
func (f *Fib) SttbfFfn() (fc, lcb uint32, ok bool) { return f.Lookup(StructSttbfFfn) }

// CcpText is the number of character positions in the main document.
func (f *Fib) CcpText() uint32 { return f.ccp[SubdocMain] }

// Ccp returns the character position count of a subdocument.
func (f *Fib) Ccp(s Subdoc) uint32 {
	if s < 0 || int(s) >= len(f.ccp) {
		return 0
	}
	return f.ccp[s]
}

// SubdocRanges returns the non-empty subdocument ranges in storage order.
func (f *Fib) SubdocRanges() []SubdocRange {
	var res []SubdocRange
	var cp uint32
	for i, n := range f.ccp {
		if n > 0 {
			res = append(res, SubdocRange{Kind: Subdoc(i), Start: cp, End: cp + n})
		}
		cp += n
	}
	return res
}

// LastCP is the end of all text. When any subdocument besides the main
// one is present, a final paragraph mark follows them.
func (f *Fib) LastCP() uint32 {
	var n uint32
	for _, c := range f.ccp {
		n += c
	}
	if n != f.ccp[SubdocMain] {
		n++
	}
	return n
}

// Fields returns a flat dump of the FIB for diagnostics.
func (f *Fib) Fields() map[string]interface{} {
	res := map[string]interface{}{
		"wIdent":       fmt.Sprintf("0x%04X", f.base.WIdent),
		"nFib":         fmt.Sprintf("0x%04X", f.nFib),
		"version":      f.VersionName(),
		"lid":          fmt.Sprintf("0x%04X", f.base.Lid),
		"lidFE":        fmt.Sprintf("0x%04X", f.lidFE),
		"fEncrypted":   f.IsEncrypted(),
		"fObfuscated":  f.IsObfuscated(),
		"fWhichTblStm": f.base.Flags&fibWhichTblStm != 0,
		"fExtChar":     f.base.Flags&fibExtChar != 0,
		"fFarEast":     f.base.Flags&fibFarEast != 0,
		"cbMac":        f.cbMac,
	}
	for i, n := range f.ccp {
		res["ccp."+Subdoc(i).String()] = n
	}
	return res
}
