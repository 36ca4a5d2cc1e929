package doc

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/pbnjay/wdoc"
)

// Span records where the text of one piece landed in the assembled string.
type Span struct {
	CPStart uint32
	CPEnd   uint32
	Start   int
	End     int
}

type decodedPiece struct {
	text string
	// byte offset of each cp relative to text, plus a final entry for the end
	offs []int
}

// Text is the logical character stream of a document in cp order.
type Text struct {
	s     string
	spans []Span
	offs  [][]int
}

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func decodeCompressed(b []byte, cm *charmap.Charmap) decodedPiece {
	var sb strings.Builder
	sb.Grow(len(b))
	offs := make([]int, len(b)+1)
	for i, c := range b {
		offs[i] = sb.Len()
		sb.WriteRune(cm.DecodeByte(c))
	}
	offs[len(b)] = sb.Len()
	return decodedPiece{text: sb.String(), offs: offs}
}

func decodeUnicode(b []byte, ncp int) (decodedPiece, error) {
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return decodedPiece{}, err
	}
	s := string(out)
	offs := make([]int, ncp+1)
	cp := 0
	for i, r := range s {
		if cp >= ncp {
			break
		}
		offs[cp] = i
		cp++
		if r >= 0x10000 && cp < ncp {
			// second half of a surrogate pair starts at the same rune
			offs[cp] = i
			cp++
		}
	}
	for ; cp <= ncp; cp++ {
		offs[cp] = len(s)
	}
	return decodedPiece{text: s, offs: offs}, nil
}

// Assemble decodes every piece of pt from wordDocument and joins them in
// cp order. Pieces are independent and decoded concurrently.
func Assemble(ctx context.Context, pt *PieceTable, wordDocument []byte, cm *charmap.Charmap, workers int) (*Text, error) {
	pieces := pt.Pieces()
	results := make([]decodedPiece, len(pieces))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range pieces {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := pieces[i]
			if uint64(p.FCEnd()) > uint64(len(wordDocument)) {
				return fail(wdoc.ErrBadPieceTable, "piece %d bytes [%d,%d) exceed the stream", i, p.FC, p.FCEnd())
			}
			raw := wordDocument[p.FC:p.FCEnd()]
			if p.Encoding == Compressed {
				results[i] = decodeCompressed(raw, cm)
				return nil
			}
			d, err := decodeUnicode(raw, int(p.Len()))
			if err != nil {
				return fail(wdoc.ErrBadPieceTable, "piece %d: %v", i, err)
			}
			results[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	t := &Text{
		spans: make([]Span, len(pieces)),
		offs:  make([][]int, len(pieces)),
	}
	var sb strings.Builder
	for i, p := range pieces {
		start := sb.Len()
		sb.WriteString(results[i].text)
		t.spans[i] = Span{CPStart: p.CPStart, CPEnd: p.CPEnd, Start: start, End: sb.Len()}
		t.offs[i] = results[i].offs
	}
	t.s = sb.String()
	return t, nil
}

// String returns the whole assembled text.
func (t *Text) String() string { return t.s }

// Len is the number of character positions covered.
func (t *Text) Len() uint32 {
	if len(t.spans) == 0 {
		return 0
	}
	return t.spans[len(t.spans)-1].CPEnd
}

// Spans returns the per-piece output ranges.
func (t *Text) Spans() []Span { return t.spans }

// Index maps a character position to a byte offset in String(). The end
// position maps to len(String()).
func (t *Text) Index(cp uint32) int {
	i := sort.Search(len(t.spans), func(i int) bool { return t.spans[i].CPEnd > cp })
	if i == len(t.spans) {
		return len(t.s)
	}
	sp := t.spans[i]
	if cp < sp.CPStart {
		return sp.Start
	}
	return sp.Start + t.offs[i][cp-sp.CPStart]
}

// Slice returns the text of the character positions [cpStart,cpEnd).
func (t *Text) Slice(cpStart, cpEnd uint32) string {
	if cpEnd <= cpStart {
		return ""
	}
	a, b := t.Index(cpStart), t.Index(cpEnd)
	if b < a {
		return ""
	}
	return t.s[a:b]
}

// RuneAt returns the character at cp.
func (t *Text) RuneAt(cp uint32) rune {
	a := t.Index(cp)
	if a >= len(t.s) {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRuneInString(t.s[a:])
	return r
}
