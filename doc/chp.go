package doc

const cvAuto = 0xFF000000

// toggleValue interprets the operand of a boolean character sprm.
// 0x80 and 0x81 copy or invert the value the style would give.
func toggleValue(operand byte, cur, style Opt[bool]) Opt[bool] {
	switch operand {
	case 0:
		return some(false)
	case 1:
		return some(true)
	case 0x80:
		return style
	case 0x81:
		return some(!style.V)
	}
	return cur
}

// applyChp replays the character sprms over base and returns the result.
// style is the formatting the text has before direct formatting; it is
// what toggle operands are resolved against. ss may be nil, in which case
// sprmCIstd only records the style index.
func applyChp(base, style CharProps, sprms []Sprm, ss *StyleSheet) CharProps {
	c := base
	for _, s := range sprms {
		if s.Sgc() != SgcChar {
			continue
		}
		if t := c.toggle(s.Op); t != nil {
			*t = toggleValue(s.Byte(), *t, *style.toggle(s.Op))
			continue
		}

		switch s.Op {
		case sprmCIstd:
			istd := s.Word()
			c.Istd = istd
			if ss != nil {
				chain := ss.chpxChain(istd)
				style = applyChp(style, style, chain, nil)
				style.Istd = istd
				c = applyChp(c, style, chain, nil)
			}

		case sprmCDefault:
			c.Bold, c.Italic, c.Strike, c.DStrike = Opt[bool]{}, Opt[bool]{}, Opt[bool]{}, Opt[bool]{}
			c.Outline, c.Shadow, c.Emboss, c.Imprint = Opt[bool]{}, Opt[bool]{}, Opt[bool]{}, Opt[bool]{}
			c.SmallCaps, c.Caps, c.Vanish = Opt[bool]{}, Opt[bool]{}, Opt[bool]{}
			c.Underline = Opt[Underline]{}
			c.Color = Opt[RGB]{}
			c.VertPos = Opt[VertPos]{}

		case sprmCPlain:
			keep := c
			c = style
			c.Special, c.Ole2, c.Data, c.Object = keep.Special, keep.Ole2, keep.Data, keep.Object
			c.PicLocation = keep.PicLocation

		case sprmCKul:
			c.Underline = some(Underline(s.Byte()))
		case sprmCIss:
			switch s.Byte() {
			case 1:
				c.VertPos = some(VertSuper)
			case 2:
				c.VertPos = some(VertSub)
			default:
				c.VertPos = some(VertNormal)
			}

		case sprmCIco:
			ico := s.Byte()
			if ico == 0 || int(ico) >= len(icoPalette) {
				c.Color = Opt[RGB]{}
			} else {
				c.Color = some(icoPalette[ico])
			}
		case sprmCCv:
			cv := s.Dword()
			if cv&cvAuto == cvAuto {
				c.Color = Opt[RGB]{}
			} else {
				c.Color = some(RGB{R: uint8(cv), G: uint8(cv >> 8), B: uint8(cv >> 16)})
			}
		case sprmCHighlight:
			c.Highlight = some(s.Byte())

		case sprmCHps:
			c.Size = some(s.Word())
		case sprmCRgFtc0:
			c.FontASCII = some(s.Word())
		case sprmCRgFtc1:
			c.FontFarEast = some(s.Word())
		case sprmCRgFtc2:
			c.FontOther = some(s.Word())

		case sprmCDxaSpace:
			c.Spacing = some(s.Short())
		case sprmCHpsKern:
			c.Kerning = some(s.Word())
		case sprmCCharScale:
			c.Scale = some(s.Word())
		case sprmCLid, sprmCRgLid0:
			c.Lid = some(s.Word())

		case sprmCFSpec:
			c.Special = s.Byte() != 0
		case sprmCFOle2:
			c.Ole2 = s.Byte() != 0
		case sprmCFData:
			c.Data = s.Byte() != 0
		case sprmCFObj:
			c.Object = s.Byte() != 0
		case sprmCPicLocation:
			c.PicLocation = some(s.Dword())
		}
	}
	return c
}
