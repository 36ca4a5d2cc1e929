package doc

import (
	"encoding/binary"
	"sort"
)

func borderIndex(op uint16) int {
	switch op {
	case sprmPBrcTop80:
		return BorderTop
	case sprmPBrcLeft80:
		return BorderLeft
	case sprmPBrcBottom80:
		return BorderBottom
	case sprmPBrcRight80:
		return BorderRight
	case sprmPBrcBetween80:
		return BorderBetween
	case sprmPBrcBar80:
		return BorderBar
	}
	return -1
}

// decodeBrc80 returns an unset border for the 0xFFFFFFFF "nil" value.
func decodeBrc80(b []byte) Opt[Border] {
	if len(b) < 4 || binary.LittleEndian.Uint32(b) == 0xFFFFFFFF {
		return Opt[Border]{}
	}
	return some(Border{
		Width:  b[0],
		Type:   b[1],
		Ico:    b[2],
		Space:  b[3] & 0x1F,
		Shadow: b[3]&0x20 != 0,
		Frame:  b[3]&0x40 != 0,
	})
}

func decodeShd80(v uint16) Shading {
	return Shading{
		Fore:    uint8(v & 0x1F),
		Back:    uint8((v >> 5) & 0x1F),
		Pattern: uint8(v >> 10),
	}
}

// applyTabs deletes then adds tab stops. withClose selects the sprmPChgTabs
// layout, which carries a tolerance after the deleted positions.
func applyTabs(p *ParaProps, b []byte, withClose bool) {
	le := binary.LittleEndian
	if len(b) < 1 {
		return
	}
	ndel := int(b[0])
	pos := 1
	width := 2
	if withClose {
		width = 4
	}
	if pos+ndel*width > len(b) {
		return
	}
	del := make([]int16, ndel)
	for i := range del {
		del[i] = int16(le.Uint16(b[pos+i*2:]))
	}
	pos += ndel * width

	tabs := make([]TabStop, 0, p.ntabs)
	for _, t := range p.tabs[:p.ntabs] {
		removed := false
		for _, d := range del {
			if t.Pos == d {
				removed = true
				break
			}
		}
		if !removed {
			tabs = append(tabs, t)
		}
	}

	if pos < len(b) {
		nadd := int(b[pos])
		pos++
		if pos+nadd*3 <= len(b) {
			for i := 0; i < nadd; i++ {
				tbd := b[pos+nadd*2+i]
				t := TabStop{
					Pos:    int16(le.Uint16(b[pos+i*2:])),
					Align:  tbd & 0x07,
					Leader: (tbd >> 3) & 0x07,
				}
				replaced := false
				for j := range tabs {
					if tabs[j].Pos == t.Pos {
						tabs[j] = t
						replaced = true
						break
					}
				}
				if !replaced {
					tabs = append(tabs, t)
				}
			}
		}
	}

	sort.SliceStable(tabs, func(i, j int) bool { return tabs[i].Pos < tabs[j].Pos })
	if len(tabs) > maxTabs {
		tabs = tabs[:maxTabs]
	}
	p.tabs = [maxTabs]TabStop{}
	copy(p.tabs[:], tabs)
	p.ntabs = uint8(len(tabs))
}

// applyPap replays the paragraph sprms over base and returns the result.
func applyPap(base ParaProps, sprms []Sprm) ParaProps {
	p := base
	for _, s := range sprms {
		if s.Sgc() != SgcPara {
			continue
		}
		if i := borderIndex(s.Op); i >= 0 {
			p.Borders[i] = decodeBrc80(s.Operand)
			continue
		}

		switch s.Op {
		case sprmPIstd:
			p.Istd = s.Word()
		case sprmPJc80, sprmPJc:
			p.Justify = some(Justification(s.Byte()))

		case sprmPDxaLeft80, sprmPDxaLeft:
			p.IndentLeft = some(s.Short())
		case sprmPDxaRight80, sprmPDxaRight:
			p.IndentRight = some(s.Short())
		case sprmPDxaLeft180, sprmPDxaLeft1:
			p.IndentFirst = some(s.Short())
		case sprmPDyaBefore:
			p.SpaceBefore = some(s.Word())
		case sprmPDyaAfter:
			p.SpaceAfter = some(s.Word())
		case sprmPDyaLine:
			ls := LineSpacing{Dya: s.Short()}
			if len(s.Operand) >= 4 {
				ls.Multiple = binary.LittleEndian.Uint16(s.Operand[2:]) != 0
			}
			p.LineSpacing = some(ls)

		case sprmPFKeep:
			p.Keep = some(s.Byte() != 0)
		case sprmPFKeepFollow:
			p.KeepNext = some(s.Byte() != 0)
		case sprmPFPageBreakBefore:
			p.PageBreakBefore = some(s.Byte() != 0)
		case sprmPFWidowControl:
			p.WidowControl = some(s.Byte() != 0)
		case sprmPFNoLineNumb:
			p.NoLineNumbers = some(s.Byte() != 0)

		case sprmPFInTable, sprmPFInnerTableCell:
			p.InTable = some(s.Byte() != 0)
		case sprmPFTtp, sprmPFInnerTtp:
			p.TableRowEnd = some(s.Byte() != 0)
		case sprmPItap:
			p.TableDepth = some(int32(s.Dword()))

		case sprmPOutLvl:
			p.OutlineLevel = some(s.Byte())
		case sprmPIlvl:
			p.ListLevel = some(s.Byte())
		case sprmPIlfo:
			p.ListOverride = some(s.Short())

		case sprmPShd80:
			p.Shading = some(decodeShd80(s.Word()))
		case sprmPChgTabsPapx:
			applyTabs(&p, s.Operand, false)
		case sprmPChgTabs:
			applyTabs(&p, s.Operand, true)
		}
	}
	return p
}
