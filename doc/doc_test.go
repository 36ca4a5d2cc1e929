package doc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pbnjay/wdoc"
	"github.com/pbnjay/wdoc/doc/crypto"
	"github.com/pbnjay/wdoc/internal/cfbtest"
	"github.com/pbnjay/wdoc/internal/doctest"
)

func open(t *testing.T, b *doctest.Builder) *Document {
	t.Helper()
	d, err := OpenBytes(b.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func resolver(t *testing.T, d *Document) *Resolver {
	t.Helper()
	r, err := d.Resolver()
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestBoldRange(t *testing.T) {
	b := doctest.New(doctest.Piece{Text: "Hello world\r", Compressed: true})
	b.CharRuns = []doctest.Run{{CPStart: 0, CPEnd: 5, Grpprl: sprm(sprmCFBold, 1)}}
	d := open(t, b)
	r := resolver(t, d)

	c, err := r.Char(2)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := c.Bold.Get(); !ok || !v {
		t.Fatal("cp 2 should be bold")
	}
	c, err = r.Char(6)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Bold.Get(); v {
		t.Fatal("cp 6 is outside the bold run")
	}
	if _, err = r.Char(12); !errors.Is(err, wdoc.ErrOutOfBounds) {
		t.Fatalf("expected out of bounds past the text, got %v", err)
	}
}

func TestResolveIdempotent(t *testing.T) {
	b := doctest.New(
		doctest.Piece{Text: "plain ", Compressed: true},
		doctest.Piece{Text: "ünïcode\r"},
	)
	b.CharRuns = []doctest.Run{
		{CPStart: 2, CPEnd: 4, Grpprl: grpprl(sprm(sprmCFItalic, 1), sprm(sprmCHps, 30, 0))},
		{CPStart: 7, CPEnd: 9, Grpprl: sprm(sprmCKul, 1)},
	}
	data := b.Bytes()

	cached, err := OpenBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	opts := wdoc.DefaultOptions()
	opts.ResolveCacheSize = 0
	uncached, err := OpenBytesWithOptions(data, opts)
	if err != nil {
		t.Fatal(err)
	}
	rc, ru := resolver(t, cached), resolver(t, uncached)
	for cp := uint32(0); cp < b.LastCP(); cp++ {
		first, err := rc.Char(cp)
		if err != nil {
			t.Fatal(err)
		}
		second, _ := rc.Char(cp)
		plain, _ := ru.Char(cp)
		if first != second || !first.Equal(plain) {
			t.Fatalf("cp %d resolved differently: %+v / %+v / %+v", cp, first, second, plain)
		}
		p1, _ := rc.Para(cp)
		p2, _ := ru.Para(cp)
		if !p1.Equal(p2) {
			t.Fatalf("cp %d paragraph resolved differently", cp)
		}
	}
	c, _ := rc.Char(3)
	if c.Italic != some(true) || c.Size != some(uint16(30)) {
		t.Fatalf("unexpected props at cp 3: %+v", c)
	}
	c, _ = rc.Char(8)
	if c.Underline != some(UnderlineSingle) {
		t.Fatalf("unicode piece run lost its underline: %+v", c)
	}
}

func TestTableStreamSelection(t *testing.T) {
	b := doctest.New(doctest.Piece{Text: "zero\r", Compressed: true})
	b.TableName = "0Table"
	b.Extra = map[string][]byte{"1Table": make([]byte, 64)}
	d := open(t, b)
	if d.Fib().TableStreamName() != "0Table" {
		t.Fatalf("selected %s", d.Fib().TableStreamName())
	}
	if s, err := d.Text(); err != nil || s != "zero\r" {
		t.Fatalf("got %q, %v", s, err)
	}

	// the FIB selects 1Table but the data only exists in 0Table
	b = doctest.New(doctest.Piece{Text: "one\r", Compressed: true})
	wd, tbl := b.Streams()
	data := cfbtest.New().Add("WordDocument", wd).Add("0Table", tbl).Bytes()
	_, err := OpenBytes(data)
	if !errors.Is(err, wdoc.ErrBadFib) || !errors.Is(err, wdoc.ErrInvalidFormat) {
		t.Fatalf("expected the missing 1Table to be reported, got %v", err)
	}
}

func TestBadMagic(t *testing.T) {
	data := doctest.New(doctest.Piece{Text: "x\r", Compressed: true}).Bytes()
	data[0] ^= 0xFF
	_, err := OpenBytes(data)
	if !errors.Is(err, wdoc.ErrInvalidFormat) || !errors.Is(err, wdoc.ErrNotInFormat) {
		t.Fatalf("expected an invalid format error, got %v", err)
	}
}

func TestNotAWordDocument(t *testing.T) {
	data := cfbtest.New().Add("Workbook", make([]byte, 100)).Bytes()
	if _, err := OpenBytes(data); !errors.Is(err, wdoc.ErrNotInFormat) {
		t.Fatalf("expected ErrNotInFormat, got %v", err)
	}
}

func TestBadFibIdent(t *testing.T) {
	for _, ident := range []uint16{0xA5DC, 0x1234} {
		b := doctest.New(doctest.Piece{Text: "x\r", Compressed: true})
		b.Ident = ident
		_, err := OpenBytes(b.Bytes())
		if !errors.Is(err, wdoc.ErrBadFib) || !errors.Is(err, wdoc.ErrInvalidFormat) {
			t.Fatalf("ident 0x%04X: expected a bad FIB, got %v", ident, err)
		}
	}
}

func styledDocument() *doctest.Builder {
	b := doctest.New(
		doctest.Piece{Text: "Title\rBody text\r", Compressed: true},
		doctest.Piece{Text: "ünïcode\r"},
	)
	b.Styles = []doctest.Style{
		{Name: "Normal", Kind: 1, Base: doctest.NoBase, Chpx: sprm(sprmCHps, 24, 0)},
		{Name: "Heading 1", Kind: 1, Base: 0, Papx: sprm(sprmPFKeepFollow, 1), Chpx: grpprl(sprm(sprmCFBold, 1), sprm(sprmCHps, 32, 0))},
		{Name: "Strong", Kind: 2, Base: doctest.NoBase, Chpx: sprm(sprmCFBold, 1)},
	}
	b.Fonts = []string{"Times New Roman", "Arial"}
	b.ParaRuns = []doctest.Run{
		{CPStart: 0, CPEnd: 6, Istd: 1, Grpprl: sprm(sprmPJc, 1)},
		{CPStart: 6, CPEnd: 16, Istd: 0},
	}
	b.CharRuns = []doctest.Run{
		{CPStart: 6, CPEnd: 10, Grpprl: sprm(sprmCFBold, 1)},
		{CPStart: 11, CPEnd: 15, Grpprl: sprm(sprmCRgFtc0, 1, 0)},
	}
	return b
}

func TestParagraphs(t *testing.T) {
	d := open(t, styledDocument())
	paras, err := d.Paragraphs()
	if err != nil {
		t.Fatal(err)
	}
	if len(paras) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", len(paras))
	}
	want := []string{"Title", "Body text", "ünïcode"}
	for i, p := range paras {
		if p.Text() != want[i] || p.Terminator != '\r' {
			t.Fatalf("paragraph %d: %q", i, p.Text())
		}
	}

	title := paras[0]
	if title.Style() != "Heading 1" || title.Props().Justify != some(JustifyCenter) {
		t.Fatalf("unexpected title props %+v", title.Props())
	}
	if v, _ := title.Props().KeepNext.Get(); !v {
		t.Fatal("title should inherit keep-with-next from its style")
	}
	runs := title.Runs()
	if len(runs) != 1 {
		t.Fatalf("title has %d runs", len(runs))
	}
	if v, ok := runs[0].Bold(); !ok || !v {
		t.Fatal("title should be bold through its style")
	}
	if sz, _ := runs[0].FontSize(); sz != 16 {
		t.Fatalf("title size %v", sz)
	}

	body := paras[1]
	if body.Style() != "Normal" {
		t.Fatalf("body style %q", body.Style())
	}
	runs = body.Runs()
	if len(runs) != 3 {
		t.Fatalf("body has %d runs", len(runs))
	}
	texts := []string{runs[0].Text(), runs[1].Text(), runs[2].Text()}
	if texts[0] != "Body" || texts[1] != " " || texts[2] != "text" {
		t.Fatalf("unexpected runs %q", texts)
	}
	if v, _ := runs[0].Bold(); !v {
		t.Fatal("first body run should be bold")
	}
	if _, ok := runs[1].Bold(); ok {
		t.Fatal("second body run has no bold formatting")
	}
	if sz, _ := runs[1].FontSize(); sz != 12 {
		t.Fatalf("body size %v", sz)
	}
	if name, _ := runs[1].FontName(); name != "Times New Roman" {
		t.Fatalf("default font %q", name)
	}
	if name, _ := runs[2].FontName(); name != "Arial" {
		t.Fatalf("direct font %q", name)
	}

	if runs := paras[2].Runs(); len(runs) != 1 || runs[0].Text() != "ünïcode" {
		t.Fatalf("unexpected unicode runs")
	}
}

func TestStylesAndFonts(t *testing.T) {
	d := open(t, styledDocument())
	styles := d.Styles()
	if len(styles) != 3 || styles[1].Name != "Heading 1" || styles[1].Base != 0 || styles[2].Kind != StyleCharacter {
		t.Fatalf("unexpected styles %+v", styles)
	}
	fonts := d.Fonts()
	if len(fonts) != 2 || fonts[1].Name != "Arial" || !fonts[1].TrueType || fonts[1].Weight != 400 {
		t.Fatalf("unexpected fonts %+v", fonts)
	}
}

func TestCharacterStyle(t *testing.T) {
	b := styledDocument()
	b.CharRuns = []doctest.Run{{CPStart: 11, CPEnd: 15, Grpprl: sprm(sprmCIstd, 2, 0)}}
	r := resolver(t, open(t, b))
	c, err := r.Char(12)
	if err != nil {
		t.Fatal(err)
	}
	if c.Istd != 2 || c.Bold != some(true) {
		t.Fatalf("character style not applied: %+v", c)
	}
}

func TestPiecePrm(t *testing.T) {
	b := doctest.New(
		doctest.Piece{Text: "abc", Compressed: true},
		doctest.Piece{Text: "def\r", Compressed: true, Prm: 0<<1 | 1},
	)
	b.Prcs = [][]byte{sprm(sprmCFItalic, 1)}
	r := resolver(t, open(t, b))
	for cp, want := range []bool{false, false, false, true, true, true, true} {
		c, _ := r.Char(uint32(cp))
		if v, _ := c.Italic.Get(); v != want {
			t.Fatalf("cp %d italic = %v", cp, v)
		}
	}
}

func TestHugePapx(t *testing.T) {
	b := doctest.New(doctest.Piece{Text: "huge\r", Compressed: true})
	b.Data = append([]byte{0, 0, 0, 0}, 3, 0)
	b.Data = append(b.Data, sprm(sprmPJc, 2)...)
	b.ParaRuns = []doctest.Run{{CPStart: 0, CPEnd: 5, Grpprl: sprm(sprmPHugePapx, 4, 0, 0, 0)}}
	r := resolver(t, open(t, b))
	p, err := r.Para(2)
	if err != nil {
		t.Fatal(err)
	}
	if p.Justify != some(JustifyRight) {
		t.Fatalf("huge PAPX not expanded: %+v", p)
	}
}

func TestStrictGrpprl(t *testing.T) {
	b := doctest.New(doctest.Piece{Text: "strict\r", Compressed: true})
	b.CharRuns = []doctest.Run{{CPStart: 0, CPEnd: 3, Grpprl: []byte{0x35, 0x08}}}
	data := b.Bytes()

	d, err := OpenBytes(data)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := resolver(t, d).Char(1); err != nil {
		t.Fatalf("a truncated grpprl should be tolerated: %v", err)
	}

	opts := wdoc.DefaultOptions()
	opts.Strict = true
	d, err = OpenBytesWithOptions(data, opts)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := resolver(t, d).Char(1); !errors.Is(err, wdoc.ErrInvalidFormat) {
		t.Fatalf("strict mode should reject a truncated grpprl, got %v", err)
	}
}

func TestEncrypted(t *testing.T) {
	hdr := make([]byte, 52)
	hdr[0], hdr[2] = 1, 1
	b := doctest.New(doctest.Piece{Text: "secret\r", Compressed: true})
	b.Encrypted = true
	b.EncryptionHeader = hdr
	d := open(t, b)
	if !d.IsEncrypted() || d.Encryption().Method != crypto.RC4 {
		t.Fatalf("expected RC4 encryption, got %s", d.Encryption())
	}
	if _, err := d.Text(); !errors.Is(err, wdoc.ErrEncrypted) || !errors.Is(err, wdoc.ErrInvalidFormat) {
		t.Fatalf("expected ErrEncrypted, got %v", err)
	}
	if _, err := d.Paragraphs(); !errors.Is(err, wdoc.ErrEncrypted) {
		t.Fatalf("expected ErrEncrypted, got %v", err)
	}
	if _, err := d.Resolver(); !errors.Is(err, wdoc.ErrEncrypted) {
		t.Fatalf("expected ErrEncrypted, got %v", err)
	}
	if _, err := d.OpenStream("WordDocument"); err != nil {
		t.Fatalf("streams stay readable: %v", err)
	}

	b.Obfuscated = true
	b.EncryptionHeader = nil
	if d = open(t, b); d.Encryption().Method != crypto.XOR {
		t.Fatalf("expected XOR obfuscation, got %s", d.Encryption())
	}
}

func TestSubdocuments(t *testing.T) {
	b := doctest.New(doctest.Piece{Text: "Main\rNote\r\r", Compressed: true})
	b.Ccp = []uint32{5, 5}
	d := open(t, b)
	if d.Fib().LastCP() != 11 {
		t.Fatalf("last cp %d", d.Fib().LastCP())
	}
	s, err := d.SubdocText(SubdocFootnotes)
	if err != nil || s != "Note\r" {
		t.Fatalf("footnotes %q, %v", s, err)
	}

	names, _ := d.List()
	if len(names) != 2 || names[0] != "main" || names[1] != "footnotes" {
		t.Fatalf("unexpected parts %v", names)
	}
	c, err := d.Get("footnotes")
	if err != nil {
		t.Fatal(err)
	}
	if c.IsEmpty() || !c.Next() || c.Text() != "Note" || c.Next() {
		t.Fatal("unexpected footnote paragraphs")
	}
	if _, err := d.Get("comments"); err == nil {
		t.Fatal("expected an error for an empty part")
	}
}

func TestRegisteredOpen(t *testing.T) {
	b := doctest.New(doctest.Piece{Text: "First\rSecond", Compressed: true})
	fn := filepath.Join(t.TempDir(), "test.doc")
	if err := os.WriteFile(fn, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := wdoc.Open(fn)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()
	c, err := src.Get("main")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for c.Next() {
		got = append(got, c.Text())
	}
	if len(got) != 2 || got[0] != "First" || got[1] != "Second" {
		t.Fatalf("unexpected paragraphs %q", got)
	}
}

func TestStyleBaseCycle(t *testing.T) {
	b := doctest.New(doctest.Piece{Text: "loop\r", Compressed: true})
	b.Styles = []doctest.Style{
		{Name: "Normal", Kind: 1, Base: 2, Chpx: sprm(sprmCFItalic, 1)},
		{Empty: true},
		{Name: "Loop", Kind: 1, Base: 0, Chpx: sprm(sprmCFBold, 1)},
	}
	d := open(t, b)
	if _, ok := d.ss.Style(1); ok {
		t.Fatal("an empty slot should not define a style")
	}
	c, err := resolver(t, d).Char(1)
	if err != nil {
		t.Fatal(err)
	}
	if c.Bold != some(true) || c.Italic != some(true) {
		t.Fatalf("Normal should inherit from its base: %+v", c)
	}
	// the loop is cut at Normal, so Loop only carries its own formatting
	if c := d.ss.Char(2); c.Bold != some(true) || c.Italic.Set {
		t.Fatalf("unexpected Loop props %+v", c)
	}
}

func TestCloseWhileReading(t *testing.T) {
	d := open(t, styledDocument())
	done := make(chan error)
	go func() {
		_, err := d.Paragraphs()
		done <- err
	}()
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if s, err := d.Text(); err != nil || s != "Title\rBody text\rünïcode\r" {
		t.Fatalf("text after Close: %q, %v", s, err)
	}
}
