package doc

import (
	"fmt"
	"slices"
)

// Opt is an optional property value. The zero value is unset.
type Opt[T comparable] struct {
	V   T
	Set bool
}

func some[T comparable](v T) Opt[T] { return Opt[T]{V: v, Set: true} }

// Get returns the value and whether it was set.
func (o Opt[T]) Get() (T, bool) { return o.V, o.Set }

func (o Opt[T]) String() string {
	if !o.Set {
		return "-"
	}
	return fmt.Sprint(o.V)
}

// RGB is a 24-bit color.
type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// icoPalette maps the 16 legacy color indices; index 0 is "auto".
var icoPalette = [17]RGB{
	{}, // auto
	{0, 0, 0},
	{0, 0, 255},
	{0, 255, 255},
	{0, 255, 0},
	{255, 0, 255},
	{255, 0, 0},
	{255, 255, 0},
	{255, 255, 255},
	{0, 0, 128},
	{0, 128, 128},
	{0, 128, 0},
	{128, 0, 128},
	{128, 0, 0},
	{128, 128, 0},
	{128, 128, 128},
	{192, 192, 192},
}

// Underline is the kul underline style code.
type Underline uint8

const (
	UnderlineNone       Underline = 0
	UnderlineSingle     Underline = 1
	UnderlineWords      Underline = 2
	UnderlineDouble     Underline = 3
	UnderlineDotted     Underline = 4
	UnderlineThick      Underline = 6
	UnderlineDash       Underline = 7
	UnderlineDotDash    Underline = 9
	UnderlineDotDotDash Underline = 10
	UnderlineWave       Underline = 11
)

// VertPos is the superscript/subscript state.
type VertPos uint8

const (
	VertNormal VertPos = iota
	VertSuper
	VertSub
)

// CharProps is a resolved character property snapshot. It is a plain
// value: two snapshots are equal when == says so.
type CharProps struct {
	Istd uint16

	Bold      Opt[bool]
	Italic    Opt[bool]
	Strike    Opt[bool]
	DStrike   Opt[bool]
	Outline   Opt[bool]
	Shadow    Opt[bool]
	Emboss    Opt[bool]
	Imprint   Opt[bool]
	SmallCaps Opt[bool]
	Caps      Opt[bool]
	Vanish    Opt[bool]

	Underline Opt[Underline]
	VertPos   Opt[VertPos]

	// font size in half-points
	Size        Opt[uint16]
	FontASCII   Opt[uint16]
	FontFarEast Opt[uint16]
	FontOther   Opt[uint16]

	Color     Opt[RGB]
	Highlight Opt[uint8]

	Spacing Opt[int16]
	Kerning Opt[uint16]
	Scale   Opt[uint16]
	Lid     Opt[uint16]

	Special     bool
	Ole2        bool
	Data        bool
	Object      bool
	PicLocation Opt[uint32]
}

// Equal reports value equality.
func (c CharProps) Equal(o CharProps) bool { return c == o }

// toggles lists the boolean properties sharing the 0x80/0x81 operand rules.
func (c *CharProps) toggle(op uint16) *Opt[bool] {
	switch op {
	case sprmCFBold:
		return &c.Bold
	case sprmCFItalic:
		return &c.Italic
	case sprmCFStrike:
		return &c.Strike
	case sprmCFDStrike:
		return &c.DStrike
	case sprmCFOutline:
		return &c.Outline
	case sprmCFShadow:
		return &c.Shadow
	case sprmCFEmboss:
		return &c.Emboss
	case sprmCFImprint:
		return &c.Imprint
	case sprmCFSmallCaps:
		return &c.SmallCaps
	case sprmCFCaps:
		return &c.Caps
	case sprmCFVanish:
		return &c.Vanish
	}
	return nil
}

// Justification is the paragraph alignment.
type Justification uint8

const (
	JustifyLeft Justification = iota
	JustifyCenter
	JustifyRight
	JustifyBoth
	JustifyDistribute
)

var justifyNames = [...]string{"left", "center", "right", "both", "distribute"}

func (j Justification) String() string {
	if int(j) < len(justifyNames) {
		return justifyNames[j]
	}
	return fmt.Sprintf("jc(%d)", uint8(j))
}

// LineSpacing is the dyaLine/fMultLinespace pair.
type LineSpacing struct {
	Dya      int16
	Multiple bool
}

// Border is a decoded Brc80.
type Border struct {
	Width  uint8 // eighths of a point
	Type   uint8
	Ico    uint8
	Space  uint8
	Shadow bool
	Frame  bool
}

// Border positions in ParaProps.Borders.
const (
	BorderTop = iota
	BorderLeft
	BorderBottom
	BorderRight
	BorderBetween
	BorderBar
)

// Shading is a decoded Shd80.
type Shading struct {
	Fore    uint8
	Back    uint8
	Pattern uint8
}

// TabStop is a single tab position in twips.
type TabStop struct {
	Pos    int16
	Align  uint8
	Leader uint8
}

// ParaProps is a resolved paragraph property snapshot.
type ParaProps struct {
	Istd uint16

	Justify     Opt[Justification]
	IndentLeft  Opt[int16]
	IndentRight Opt[int16]
	IndentFirst Opt[int16]
	SpaceBefore Opt[uint16]
	SpaceAfter  Opt[uint16]
	LineSpacing Opt[LineSpacing]

	Keep            Opt[bool]
	KeepNext        Opt[bool]
	PageBreakBefore Opt[bool]
	WidowControl    Opt[bool]
	NoLineNumbers   Opt[bool]

	InTable     Opt[bool]
	TableRowEnd Opt[bool]
	TableDepth  Opt[int32]

	OutlineLevel Opt[uint8]
	ListLevel    Opt[uint8]
	ListOverride Opt[int16]

	Borders [6]Opt[Border]
	Shading Opt[Shading]

	// fixed capacity keeps the snapshot comparable with ==
	tabs  [maxTabs]TabStop
	ntabs uint8
}

const maxTabs = 64

// Equal reports value equality.
func (p ParaProps) Equal(o ParaProps) bool { return p == o }

// Tabs returns the tab stops in position order.
func (p ParaProps) Tabs() []TabStop {
	return slices.Clone(p.tabs[:p.ntabs])
}
