package doc

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/pbnjay/wdoc"
)

func sprm(op uint16, operand ...byte) []byte {
	b := binary.LittleEndian.AppendUint16(nil, op)
	return append(b, operand...)
}

func grpprl(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

func TestOperandSizes(t *testing.T) {
	g := grpprl(
		sprm(sprmCFBold, 1),
		sprm(sprmCHps, 24, 0),
		sprm(sprmCCv, 0x10, 0x20, 0x30, 0),
		sprm(0xF614, 1, 2, 3), // spra 7
		sprm(sprmPChgTabsPapx, 4, 1, 2, 3, 4),
		sprm(sprmTDefTable, 4, 0, 9, 9, 9),
	)
	sprms, err := ParseGrpprl(g)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		op uint16
		n  int
	}{
		{sprmCFBold, 1}, {sprmCHps, 2}, {sprmCCv, 4}, {0xF614, 3}, {sprmPChgTabsPapx, 4}, {sprmTDefTable, 3},
	}
	if len(sprms) != len(want) {
		t.Fatalf("got %d sprms, want %d", len(sprms), len(want))
	}
	for i, w := range want {
		if sprms[i].Op != w.op || len(sprms[i].Operand) != w.n {
			t.Fatalf("sprm %d: got %s, want op 0x%04X with %d bytes", i, sprms[i], w.op, w.n)
		}
	}
	if sprms[1].Word() != 24 || sprms[2].Dword() != 0x302010 {
		t.Fatal("operand values decoded incorrectly")
	}
	if sprms[0].Sgc() != SgcChar || sprms[4].Sgc() != SgcPara || sprms[5].Sgc() != SgcTable {
		t.Fatal("unexpected sgc")
	}
}

func TestChgTabsLongForm(t *testing.T) {
	// one deleted tab with its tolerance, two added tabs
	op := []byte{255, 1, 0x10, 0x00, 0x05, 0x00, 2, 0x20, 0x00, 0x40, 0x00, 0x01, 0x02}
	g := grpprl(sprm(sprmPChgTabs, op...), sprm(sprmPFKeep, 1))
	sprms, err := ParseGrpprl(g)
	if err != nil {
		t.Fatal(err)
	}
	if len(sprms) != 2 || len(sprms[0].Operand) != len(op)-1 {
		t.Fatalf("unexpected parse: %v", sprms)
	}
}

func TestTruncatedGrpprl(t *testing.T) {
	g := grpprl(sprm(sprmCFBold, 1), sprm(sprmCHps, 24))
	sprms, err := ParseGrpprl(g)
	if !errors.Is(err, wdoc.ErrInvalidFormat) {
		t.Fatalf("expected an invalid format error, got %v", err)
	}
	if len(sprms) != 1 || sprms[0].Op != sprmCFBold {
		t.Fatalf("expected the complete prefix, got %v", sprms)
	}
}

func TestToggleValue(t *testing.T) {
	on, off, unset := some(true), some(false), Opt[bool]{}
	cases := []struct {
		operand    byte
		cur, style Opt[bool]
		want       Opt[bool]
	}{
		{0, on, on, off},
		{1, off, off, on},
		{0x80, off, on, on},
		{0x80, on, unset, unset},
		{0x81, off, on, off},
		{0x81, on, off, on},
		{0x42, on, off, on},
	}
	for _, c := range cases {
		if got := toggleValue(c.operand, c.cur, c.style); got != c.want {
			t.Fatalf("toggle 0x%02X over %v/%v: got %v, want %v", c.operand, c.cur, c.style, got, c.want)
		}
	}
}

func TestApplyChp(t *testing.T) {
	style := CharProps{Bold: some(true)}
	sprms, _ := ParseGrpprl(grpprl(
		sprm(sprmCFBold, 0x81),
		sprm(sprmCFItalic, 1),
		sprm(sprmCKul, 3),
		sprm(sprmCHps, 28, 0),
		sprm(sprmCCv, 0xFF, 0x00, 0x00, 0x00),
		sprm(sprmCIss, 1),
		sprm(0x2A99, 7),  // unknown
		sprm(sprmPJc, 1), // paragraph sprm, ignored here
	))
	c := applyChp(style, style, sprms, nil)
	if v, ok := c.Bold.Get(); !ok || v {
		t.Fatal("0x81 should invert the style's bold")
	}
	if v, _ := c.Italic.Get(); !v {
		t.Fatal("expected italic")
	}
	if c.Underline != some(UnderlineDouble) || c.Size != some(uint16(28)) || c.VertPos != some(VertSuper) {
		t.Fatalf("unexpected props %+v", c)
	}
	if c.Color != some(RGB{R: 255}) {
		t.Fatalf("unexpected color %v", c.Color)
	}

	// auto color and the legacy palette
	sprms, _ = ParseGrpprl(grpprl(sprm(sprmCIco, 6)))
	if c = applyChp(c, style, sprms, nil); c.Color != some(RGB{R: 255}) {
		t.Fatalf("ico 6 should be red, got %v", c.Color)
	}
	sprms, _ = ParseGrpprl(grpprl(sprm(sprmCCv, 0, 0, 0, 0xFF)))
	if c = applyChp(c, style, sprms, nil); c.Color.Set {
		t.Fatal("cvAuto should clear the color")
	}
}

func TestApplyPap(t *testing.T) {
	sprms, _ := ParseGrpprl(grpprl(
		sprm(sprmPJc, 2),
		sprm(sprmPDxaLeft, 0xD0, 0x02), // 720
		sprm(sprmPDyaLine, 0xF0, 0x00, 0x01, 0x00),
		sprm(sprmPBrcTop80, 4, 1, 6, 0x22),
		sprm(sprmPBrcBottom80, 0xFF, 0xFF, 0xFF, 0xFF),
		sprm(sprmPChgTabsPapx, 8, 0, 2, 0x20, 0x01, 0x40, 0x02, 0x01, 0x0A),
		sprm(sprmPFInTable, 1),
		sprm(sprmPItap, 1, 0, 0, 0),
		sprm(sprmCFBold, 1), // character sprm, ignored here
	))
	p := applyPap(ParaProps{}, sprms)
	if p.Justify != some(JustifyRight) || p.IndentLeft != some(int16(720)) {
		t.Fatalf("unexpected props %+v", p)
	}
	if p.LineSpacing != some(LineSpacing{Dya: 240, Multiple: true}) {
		t.Fatalf("unexpected line spacing %v", p.LineSpacing)
	}
	top, ok := p.Borders[BorderTop].Get()
	if !ok || top.Width != 4 || top.Ico != 6 || top.Space != 2 || !top.Shadow {
		t.Fatalf("unexpected top border %+v", top)
	}
	if p.Borders[BorderBottom].Set {
		t.Fatal("0xFFFFFFFF border should stay unset")
	}
	tabs := p.Tabs()
	if len(tabs) != 2 || tabs[0].Pos != 288 || tabs[1].Pos != 576 || tabs[1].Align != 2 || tabs[1].Leader != 1 {
		t.Fatalf("unexpected tabs %+v", tabs)
	}
	if v, _ := p.InTable.Get(); !v || p.TableDepth != some(int32(1)) {
		t.Fatal("expected a table paragraph")
	}

	// delete one tab
	sprms, _ = ParseGrpprl(sprm(sprmPChgTabsPapx, 4, 1, 0x20, 0x01, 0))
	q := applyPap(p, sprms)
	if tabs := q.Tabs(); len(tabs) != 1 || tabs[0].Pos != 576 {
		t.Fatalf("unexpected tabs after delete %+v", tabs)
	}
	if len(p.Tabs()) != 2 {
		t.Fatal("applyPap modified its input")
	}
}
