package doc

import (
	"context"
	"strings"
	"testing"
	"unicode/utf16"
	"unicode/utf8"
)

func TestAnsiRoundTrip(t *testing.T) {
	const n = 300
	wd := make([]byte, n+16)
	for i := 0; i < n; i++ {
		wd[16+i] = byte(0x20 + i%0xDF) // includes 0x80-0xFF
	}
	pt, err := DecodeClx(buildClx(nil, []testPiece{{cp: 0, fc: 16*2 | fcCompressed}}, n), len(wd))
	if err != nil {
		t.Fatal(err)
	}
	cm, _ := CodePage(1252)
	text, err := Assemble(context.Background(), pt, wd, cm, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got := utf8.RuneCountInString(text.String()); got != n {
		t.Fatalf("decoded %d characters, want %d", got, n)
	}
	if text.RuneAt(0x80-0x20) != '€' {
		t.Fatalf("0x80 should decode to the euro sign in 1252, got %q", text.RuneAt(0x80-0x20))
	}
	if text.Len() != n || text.Index(n) != len(text.String()) {
		t.Fatal("end position does not map to the end of the text")
	}
}

func TestUnicodeRoundTrip(t *testing.T) {
	s := "a𝄞b€c😀"
	units := utf16.Encode([]rune(s))
	wd := make([]byte, 8+len(units)*2)
	putUTF16(wd[8:], s)
	pt, err := DecodeClx(buildClx(nil, []testPiece{{cp: 0, fc: 8}}, uint32(len(units))), len(wd))
	if err != nil {
		t.Fatal(err)
	}
	text, err := Assemble(context.Background(), pt, wd, nil, 1)
	if err != nil {
		t.Fatal(err)
	}
	if text.String() != s {
		t.Fatalf("got %q, want %q", text.String(), s)
	}
	if text.Len() != uint32(len(units)) {
		t.Fatalf("text covers %d cps, want %d", text.Len(), len(units))
	}
	// both halves of a surrogate pair map onto the same character
	if text.RuneAt(1) != '𝄞' || text.RuneAt(2) != '𝄞' || text.RuneAt(3) != 'b' {
		t.Fatal("surrogate pair positions decoded incorrectly")
	}
	if text.Slice(1, 3) != "𝄞" || text.Slice(3, 5) != "b€" {
		t.Fatalf("unexpected slices %q %q", text.Slice(1, 3), text.Slice(3, 5))
	}
}

func TestPieceGranularity(t *testing.T) {
	// one character per piece decodes the same as a single piece
	s := "granular"
	wd := make([]byte, 64)
	copy(wd[10:], s)
	var many []testPiece
	for i := range s {
		many = append(many, testPiece{cp: uint32(i), fc: uint32(10+i)*2 | fcCompressed})
	}
	cm, _ := CodePage(0)
	var got []string
	for _, ps := range [][]testPiece{{{cp: 0, fc: 10*2 | fcCompressed}}, many} {
		pt, err := DecodeClx(buildClx(nil, ps, uint32(len(s))), len(wd))
		if err != nil {
			t.Fatal(err)
		}
		text, err := Assemble(context.Background(), pt, wd, cm, 3)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, text.String())
		if len(text.Spans()) != len(ps) {
			t.Fatalf("expected %d spans, got %d", len(ps), len(text.Spans()))
		}
	}
	if got[0] != s || got[1] != s {
		t.Fatalf("got %v", got)
	}
}

func TestAssembleCancelled(t *testing.T) {
	wd := []byte(strings.Repeat("x", 32))
	pt, err := DecodeClx(buildClx(nil, []testPiece{{cp: 0, fc: 0 | fcCompressed}}, 32), len(wd))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cm, _ := CodePage(0)
	if _, err := Assemble(ctx, pt, wd, cm, 1); err == nil {
		t.Fatal("expected a cancelled context to stop assembly")
	}
}

func TestCodePages(t *testing.T) {
	if _, err := CodePage(936); err == nil {
		t.Fatal("double-byte code pages are not supported")
	}
	if CodePageForLid(0x0419) != 1251 || CodePageForLid(0x0409) != 1252 || CodePageForLid(0x0408) != 1253 {
		t.Fatal("unexpected language code pages")
	}
}
