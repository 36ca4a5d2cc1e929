package doc

import (
	"encoding/binary"
	"fmt"

	"github.com/pbnjay/wdoc"
)

// Sgc is the property kind a sprm modifies.
type Sgc byte

const (
	SgcPara  Sgc = 1
	SgcChar  Sgc = 2
	SgcPic   Sgc = 3
	SgcSect  Sgc = 4
	SgcTable Sgc = 5
)

// Sprm is a single property modifier: an opcode and its operand bytes.
type Sprm struct {
	Op      uint16
	Operand []byte
}

// Ispmd is the operation number within its kind.
func (s Sprm) Ispmd() uint16 { return s.Op & 0x01FF }

// Spec reports the fSpec bit.
func (s Sprm) Spec() bool { return s.Op&0x0200 != 0 }

// Sgc is the property kind.
func (s Sprm) Sgc() Sgc { return Sgc((s.Op >> 10) & 0x7) }

// Spra is the operand size code.
func (s Sprm) Spra() byte { return byte(s.Op >> 13) }

func (s Sprm) String() string {
	return fmt.Sprintf("sprm(0x%04X, sgc=%d, %d bytes)", s.Op, s.Sgc(), len(s.Operand))
}

// Byte returns the first operand byte.
func (s Sprm) Byte() byte {
	if len(s.Operand) < 1 {
		return 0
	}
	return s.Operand[0]
}

// Word returns the operand as an unsigned 16-bit value.
func (s Sprm) Word() uint16 {
	if len(s.Operand) < 2 {
		return uint16(s.Byte())
	}
	return binary.LittleEndian.Uint16(s.Operand)
}

// Short returns the operand as a signed 16-bit value.
func (s Sprm) Short() int16 { return int16(s.Word()) }

// Dword returns the operand as an unsigned 32-bit value.
func (s Sprm) Dword() uint32 {
	if len(s.Operand) < 4 {
		return uint32(s.Word())
	}
	return binary.LittleEndian.Uint32(s.Operand)
}

// operandSize returns the operand length for fixed size codes, or -1.
func operandSize(spra byte) int {
	switch spra {
	case 0, 1:
		return 1
	case 2, 4, 5:
		return 2
	case 3:
		return 4
	case 7:
		return 3
	}
	return -1
}

// ParseGrpprl splits a property modifier list into sprms. A list that
// ends in the middle of a sprm returns the complete prefix and an error.
func ParseGrpprl(b []byte) ([]Sprm, error) {
	var res []Sprm
	le := binary.LittleEndian
	pos := 0
	for pos+2 <= len(b) {
		op := le.Uint16(b[pos:])
		pos += 2
		n := operandSize(byte(op >> 13))
		if n < 0 {
			// variable length
			switch op {
			case sprmTDefTable, sprmTDefTable10:
				if pos+2 > len(b) {
					return res, truncated(op, pos)
				}
				n = int(le.Uint16(b[pos:])) - 1
				pos += 2
			case sprmPChgTabs:
				if pos+1 > len(b) {
					return res, truncated(op, pos)
				}
				n = int(b[pos])
				pos++
				if n == 255 {
					n = chgTabsSize(b[pos:])
				}
			default:
				if pos+1 > len(b) {
					return res, truncated(op, pos)
				}
				n = int(b[pos])
				pos++
			}
		}
		if n < 0 || pos+n > len(b) {
			return res, truncated(op, pos)
		}
		res = append(res, Sprm{Op: op, Operand: b[pos : pos+n]})
		pos += n
	}
	if pos != len(b) {
		return res, truncated(0, pos)
	}
	return res, nil
}

// the long form of sprmPChgTabs: deletions with tolerances, then additions
func chgTabsSize(b []byte) int {
	if len(b) < 1 {
		return -1
	}
	del := int(b[0])
	if 1+del*4 >= len(b) {
		return -1
	}
	add := int(b[1+del*4])
	return 1 + del*4 + 1 + add*3
}

func truncated(op uint16, pos int) error {
	return wdoc.Invalid(fmt.Errorf("doc: grpprl truncated at %d (sprm 0x%04X)", pos, op))
}

// filterSgc keeps the sprms of one property kind.
func filterSgc(sprms []Sprm, kind Sgc) []Sprm {
	res := sprms[:0:0]
	for _, s := range sprms {
		if s.Sgc() == kind {
			res = append(res, s)
		}
	}
	return res
}

// Character sprms.
const (
	sprmCFRMarkDel   = 0x0800
	sprmCFRMarkIns   = 0x0801
	sprmCFFldVanish  = 0x0802
	sprmCPicLocation = 0x6A03
	sprmCFData       = 0x0806
	sprmCFOle2       = 0x080A
	sprmCHighlight   = 0x2A0C
	sprmCIstd        = 0x4A30
	sprmCIstdPermute = 0xCA31
	sprmCDefault     = 0x2A32
	sprmCPlain       = 0x2A33
	sprmCKcd         = 0x2A34
	sprmCFBold       = 0x0835
	sprmCFItalic     = 0x0836
	sprmCFStrike     = 0x0837
	sprmCFOutline    = 0x0838
	sprmCFShadow     = 0x0839
	sprmCFSmallCaps  = 0x083A
	sprmCFCaps       = 0x083B
	sprmCFVanish     = 0x083C
	sprmCKul         = 0x2A3E
	sprmCDxaSpace    = 0x8840
	sprmCLid         = 0x4A41
	sprmCIco         = 0x2A42
	sprmCHps         = 0x4A43
	sprmCHpsPos      = 0x4845
	sprmCIss         = 0x2A48
	sprmCHpsKern     = 0x484B
	sprmCRgFtc0      = 0x4A4F
	sprmCRgFtc1      = 0x4A50
	sprmCRgFtc2      = 0x4A51
	sprmCCharScale   = 0x4852
	sprmCFDStrike    = 0x2A53
	sprmCFImprint    = 0x0854
	sprmCFSpec       = 0x0855
	sprmCFObj        = 0x0856
	sprmCFEmboss     = 0x0858
	sprmCRgLid0      = 0x486D
	sprmCRgLid1      = 0x486E
	sprmCCv          = 0x6870
	sprmCFBoldBi     = 0x085C
	sprmCFItalicBi   = 0x085D
	sprmCHpsBi       = 0x4A61
)

// Paragraph sprms.
const (
	sprmPIstd             = 0x4600
	sprmPIstdPermute      = 0xC601
	sprmPIncLvl           = 0x2602
	sprmPJc80             = 0x2403
	sprmPFKeep            = 0x2405
	sprmPFKeepFollow      = 0x2406
	sprmPFPageBreakBefore = 0x2407
	sprmPIlvl             = 0x260A
	sprmPIlfo             = 0x460B
	sprmPFNoLineNumb      = 0x240C
	sprmPChgTabsPapx      = 0xC60D
	sprmPDxaRight80       = 0x840E
	sprmPDxaLeft80        = 0x840F
	sprmPDxaLeft180       = 0x8411
	sprmPDyaLine          = 0x6412
	sprmPDyaBefore        = 0xA413
	sprmPDyaAfter         = 0xA414
	sprmPChgTabs          = 0xC615
	sprmPFInTable         = 0x2416
	sprmPFTtp             = 0x2417
	sprmPBrcTop80         = 0x6424
	sprmPBrcLeft80        = 0x6425
	sprmPBrcBottom80      = 0x6426
	sprmPBrcRight80       = 0x6427
	sprmPBrcBetween80     = 0x6428
	sprmPBrcBar80         = 0x6629
	sprmPShd80            = 0x442D
	sprmPFWidowControl    = 0x2431
	sprmPOutLvl           = 0x2640
	sprmPDxaRight         = 0x845D
	sprmPDxaLeft          = 0x845E
	sprmPDxaLeft1         = 0x8460
	sprmPJc               = 0x2461
	sprmPItap             = 0x6649
	sprmPFInnerTableCell  = 0x244B
	sprmPFInnerTtp        = 0x244C
	sprmPHugePapx         = 0x6646
)

// Table sprms whose operand length is stored in two bytes.
const (
	sprmTDefTable10 = 0xD606
	sprmTDefTable   = 0xD608
)
