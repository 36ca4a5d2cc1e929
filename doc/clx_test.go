package doc

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"unicode/utf16"

	"github.com/pbnjay/wdoc"
)

type testPiece struct {
	cp  uint32
	fc  uint32
	prm uint16
}

func buildClx(prcs [][]byte, pieces []testPiece, lastCP uint32) []byte {
	le := binary.LittleEndian
	var clx []byte
	for _, g := range prcs {
		clx = append(clx, clxPrc)
		clx = le.AppendUint16(clx, uint16(len(g)))
		clx = append(clx, g...)
	}
	var plc []byte
	for _, p := range pieces {
		plc = le.AppendUint32(plc, p.cp)
	}
	plc = le.AppendUint32(plc, lastCP)
	for _, p := range pieces {
		plc = append(plc, 0, 0)
		plc = le.AppendUint32(plc, p.fc)
		plc = le.AppendUint16(plc, p.prm)
	}
	clx = append(clx, clxPcdt)
	clx = le.AppendUint32(clx, uint32(len(plc)))
	return append(clx, plc...)
}

func putUTF16(b []byte, s string) {
	for i, u := range utf16.Encode([]rune(s)) {
		binary.LittleEndian.PutUint16(b[i*2:], u)
	}
}

// five ANSI characters at byte 100, three UTF-16 characters at byte 200
func mixedPieces() ([]byte, []byte) {
	wd := make([]byte, 300)
	copy(wd[100:], "Hello")
	putUTF16(wd[200:], "wör")
	clx := buildClx(nil, []testPiece{
		{cp: 0, fc: 100*2 | fcCompressed},
		{cp: 5, fc: 200},
	}, 8)
	return wd, clx
}

func TestDecodeClx(t *testing.T) {
	wd, clx := mixedPieces()
	pt, err := DecodeClx(clx, len(wd))
	if err != nil {
		t.Fatal(err)
	}
	ps := pt.Pieces()
	if len(ps) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(ps))
	}
	if ps[0].Encoding != Compressed || ps[0].FC != 100 || ps[0].ByteLen() != 5 {
		t.Fatalf("unexpected first piece %+v", ps[0])
	}
	if ps[1].Encoding != Unicode || ps[1].FC != 200 || ps[1].ByteLen() != 6 {
		t.Fatalf("unexpected second piece %+v", ps[1])
	}

	var sum uint32
	for _, p := range ps {
		sum += p.Len()
	}
	if sum != pt.LastCP() || sum != 8 {
		t.Fatalf("piece spans sum to %d, last cp is %d", sum, pt.LastCP())
	}

	if fc, ok := pt.CPToFC(6); !ok || fc != 202 {
		t.Fatalf("cp 6 maps to %d", fc)
	}
	if cp, ok := pt.FCToCP(103); !ok || cp != 3 {
		t.Fatalf("fc 103 maps to %d", cp)
	}
	if _, ok := pt.FCToCP(150); ok {
		t.Fatal("fc 150 lies between pieces")
	}
	if i, ok := pt.PieceAt(5); !ok || i != 1 {
		t.Fatalf("cp 5 should be in piece 1, got %d", i)
	}
	if _, ok := pt.PieceAt(8); ok {
		t.Fatal("cp 8 is past the end")
	}
}

func TestMixedPieceText(t *testing.T) {
	wd, clx := mixedPieces()
	pt, err := DecodeClx(clx, len(wd))
	if err != nil {
		t.Fatal(err)
	}
	cm, _ := CodePage(0)
	text, err := Assemble(context.Background(), pt, wd, cm, 2)
	if err != nil {
		t.Fatal(err)
	}
	if text.String() != "Hellowör" {
		t.Fatalf("got %q", text.String())
	}
	if text.Slice(4, 7) != "owö" {
		t.Fatalf("slice [4,7) is %q", text.Slice(4, 7))
	}
	if text.RuneAt(6) != 'ö' {
		t.Fatalf("rune at 6 is %q", text.RuneAt(6))
	}
}

func TestBadPieceTables(t *testing.T) {
	cases := map[string][]byte{
		"not ascending": buildClx(nil, []testPiece{{cp: 0, fc: 0}, {cp: 4, fc: 20}, {cp: 4, fc: 40}}, 8),
		"past stream":   buildClx(nil, []testPiece{{cp: 0, fc: 90}}, 20),
		"no pcdt":       {clxPrc, 0, 0},
		"bad prc size":  {clxPrc, 0x10, 0},
		"nonzero start": buildClx(nil, []testPiece{{cp: 2, fc: 0}}, 8),
		"ansi past end": buildClx(nil, []testPiece{{cp: 0, fc: 95*2 | fcCompressed}}, 10),
		"unicode wraps": buildClx(nil, []testPiece{{cp: 0, fc: 0}}, 0x80000001),
	}
	for name, clx := range cases {
		_, err := DecodeClx(clx, 100)
		if !errors.Is(err, wdoc.ErrBadPieceTable) || !errors.Is(err, wdoc.ErrInvalidFormat) {
			t.Fatalf("%s: expected a bad piece table error, got %v", name, err)
		}
	}
}

func TestPrmGrpprl(t *testing.T) {
	bold := sprm(sprmCFBold, 1)
	clx := buildClx([][]byte{sprm(sprmCFItalic, 1), bold}, []testPiece{
		{cp: 0, fc: 0, prm: 1<<1 | 1},
		{cp: 4, fc: 8, prm: 0x1234 &^ 1},
	}, 8)
	pt, err := DecodeClx(clx, 64)
	if err != nil {
		t.Fatal(err)
	}
	ps := pt.Pieces()
	if g := pt.PrmGrpprl(ps[0]); string(g) != string(bold) {
		t.Fatalf("piece 0 should reference the second Prc, got %v", g)
	}
	if g := pt.PrmGrpprl(ps[1]); g != nil {
		t.Fatalf("a single-sprm Prm is not replayed, got %v", g)
	}
}
