// Package doc implements the Microsoft Word Binary File Format (.doc) Structure.
// More specifically, it contains just enough detail to reassemble the
// document text from its piece table and to resolve the character and
// paragraph formatting of any position. It does NOT implement decryption,
// fields, tables or drawing objects.
package doc

// https://docs.microsoft.com/en-us/openspecs/office_file_formats/ms-doc/ccd7b486-7881-484c-a137-51170af7cc22

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/text/encoding/charmap"

	"github.com/pbnjay/wdoc"
	"github.com/pbnjay/wdoc/cfb"
	"github.com/pbnjay/wdoc/doc/crypto"
)

var _ = wdoc.Register("doc", 1, Open)

var logger = wdoc.NewLogger("wdoc.doc")

// fail builds a structural error of the given kind.
func fail(kind error, format string, args ...interface{}) error {
	err := fmt.Errorf("doc: "+format, args...)
	if kind == wdoc.ErrInvalidFormat {
		return wdoc.WrapErr(err, kind)
	}
	return wdoc.WrapErr(err, kind, wdoc.ErrInvalidFormat)
}

// Document is an opened Word 97-2003 document. All parsed tables are
// immutable, so a Document may be used from multiple goroutines.
type Document struct {
	filename string
	opts     wdoc.Options
	cfb      *cfb.Document

	wordDocument []byte
	table        []byte
	data         []byte

	fib   *Fib
	pt    *PieceTable
	ss    *StyleSheet
	fonts []Font
	res   *Resolver
	cm    *charmap.Charmap
	enc   crypto.Info

	textMu sync.Mutex
	text   *Text
}

// Open a document and return it as a wdoc.Source with one collection of
// paragraphs per non-empty subdocument.
func Open(filename string) (wdoc.Source, error) {
	d, err := OpenDocument(filename)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// OpenDocument opens a Word document with the default options.
func OpenDocument(filename string) (*Document, error) {
	return OpenWithOptions(filename, wdoc.DefaultOptions())
}

// OpenWithOptions opens a Word document.
func OpenWithOptions(filename string, opts wdoc.Options) (*Document, error) {
	c, err := cfb.OpenWithOptions(filename, opts)
	if err != nil {
		return nil, err
	}
	d := &Document{filename: filename, opts: opts, cfb: c}
	if err = d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

// OpenBytes decodes a document held in memory.
func OpenBytes(data []byte) (*Document, error) {
	return OpenBytesWithOptions(data, wdoc.DefaultOptions())
}

// OpenBytesWithOptions decodes a document held in memory.
func OpenBytesWithOptions(data []byte, opts wdoc.Options) (*Document, error) {
	c, err := cfb.OpenBytesWithOptions(data, opts)
	if err != nil {
		return nil, err
	}
	d := &Document{opts: opts, cfb: c}
	if err = d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

// section returns lcb bytes at fc of the table stream.
func (d *Document) section(kind error, what string, fc, lcb uint32) ([]byte, error) {
	end := uint64(fc) + uint64(lcb)
	if end > uint64(len(d.table)) {
		return nil, fail(kind, "%s [%d,%d) is outside the %d byte %s stream", what, fc, end, len(d.table), d.fib.TableStreamName())
	}
	return d.table[fc:end], nil
}

func (d *Document) load() error {
	var err error
	d.wordDocument, err = d.cfb.OpenStream("WordDocument")
	if err != nil {
		if errors.Is(err, wdoc.ErrStreamNotFound) {
			return wdoc.WrapErr(err, wdoc.ErrNotInFormat)
		}
		return err
	}
	if d.fib, err = ParseFib(d.wordDocument); err != nil {
		return err
	}

	// step 1: the table stream picked by fWhichTblStm
	name := d.fib.TableStreamName()
	d.table, err = d.cfb.OpenStream(name)
	if err != nil {
		if errors.Is(err, wdoc.ErrStreamNotFound) {
			return fail(wdoc.ErrBadFib, "table stream %s selected by the FIB is missing", name)
		}
		return err
	}
	d.data, err = d.cfb.OpenStream("Data")
	if err != nil && !errors.Is(err, wdoc.ErrStreamNotFound) {
		return err
	}

	if d.fib.IsEncrypted() {
		d.enc, err = crypto.Detect(d.table, d.fib.IsObfuscated(), d.fib.Key())
		if err != nil {
			logger.Warningf(nil, "encrypted document: %v", err)
			d.enc.Method = crypto.Unknown
		}
		if wdoc.Debug {
			logger.Debugf(nil, "document is protected with %s", d.enc)
		}
		// nothing past the FIB can be trusted
		return nil
	}

	cp := d.opts.CodePage
	if cp == 0 {
		cp = CodePageForLid(d.fib.Lid())
	}
	if d.cm, err = CodePage(cp); err != nil {
		return err
	}

	// step 2: piece table
	fc, lcb, ok := d.fib.Clx()
	if !ok || lcb == 0 {
		return fail(wdoc.ErrBadPieceTable, "FIB has no CLX")
	}
	clx, err := d.section(wdoc.ErrBadPieceTable, "CLX", fc, lcb)
	if err != nil {
		return err
	}
	if d.pt, err = DecodeClx(clx, len(d.wordDocument)); err != nil {
		return err
	}
	if last := d.fib.LastCP(); d.pt.LastCP() != last {
		if d.opts.Strict {
			return fail(wdoc.ErrBadPieceTable, "pieces cover %d cps, FIB declares %d", d.pt.LastCP(), last)
		}
		logger.Warningf(nil, "pieces cover %d cps, FIB declares %d", d.pt.LastCP(), last)
	}

	// step 3: bin tables and their FKP pages
	chpx, err := d.binTable(fkpChpx)
	if err != nil {
		return err
	}
	papx, err := d.binTable(fkpPapx)
	if err != nil {
		return err
	}

	// step 4: style sheet and fonts, which only refine formatting
	if fc, lcb, ok := d.fib.Stshf(); ok && lcb > 0 {
		b, err := d.section(wdoc.ErrInvalidFormat, "STSH", fc, lcb)
		if err == nil {
			d.ss, err = parseStyleSheet(b)
		}
		if err != nil {
			if d.opts.Strict {
				return err
			}
			logger.Warningf(nil, "ignoring style sheet: %v", err)
		}
	}
	if fc, lcb, ok := d.fib.SttbfFfn(); ok && lcb > 0 {
		b, err := d.section(wdoc.ErrInvalidFormat, "SttbfFfn", fc, lcb)
		if err == nil {
			d.fonts, err = parseFonts(b)
		}
		if err != nil {
			if d.opts.Strict {
				return err
			}
			logger.Warningf(nil, "ignoring font table: %v", err)
		}
	}

	d.res = newResolver(d.pt, chpx, papx, d.ss, d.data, d.opts)
	if wdoc.Debug {
		logger.Debugf(nil, "%s: %d pieces, %d cps, code page %d", d.fib.VersionName(), len(d.pt.Pieces()), d.pt.LastCP(), cp)
	}
	return nil
}

func (d *Document) binTable(kind fkpKind) (*binTable, error) {
	var fc, lcb uint32
	var ok bool
	if kind == fkpChpx {
		fc, lcb, ok = d.fib.PlcfBteChpx()
	} else {
		fc, lcb, ok = d.fib.PlcfBtePapx()
	}
	if !ok || lcb == 0 {
		return nil, nil
	}
	plc, err := d.section(wdoc.ErrBadFKP, "PlcBte"+kind.String(), fc, lcb)
	if err != nil {
		return nil, err
	}
	return parseBinTable(kind, plc, d.wordDocument)
}

func (d *Document) encrypted() error {
	return wdoc.WrapErr(fmt.Errorf("doc: document is protected with %s", d.enc), wdoc.ErrEncrypted, wdoc.ErrInvalidFormat)
}

// Fib returns the parsed File Information Block.
func (d *Document) Fib() *Fib { return d.fib }

// Container returns the underlying compound file.
func (d *Document) Container() *cfb.Document { return d.cfb }

// IsEncrypted reports whether the document is encrypted or obfuscated.
// Text and formatting are unavailable for such documents.
func (d *Document) IsEncrypted() bool { return d.fib.IsEncrypted() }

// Encryption describes how an encrypted document is protected.
func (d *Document) Encryption() crypto.Info { return d.enc }

// OpenStream returns the contents of a stream of the container.
func (d *Document) OpenStream(name string) ([]byte, error) { return d.cfb.OpenStream(name) }

// ListDir lists every directory entry of the container.
func (d *Document) ListDir() []cfb.EntryInfo { return d.cfb.ListDir() }

// PieceTable returns the decoded piece table.
func (d *Document) PieceTable() (*PieceTable, error) {
	if d.IsEncrypted() {
		return nil, d.encrypted()
	}
	return d.pt, nil
}

// Resolver returns the property resolver of the document.
func (d *Document) Resolver() (*Resolver, error) {
	if d.IsEncrypted() {
		return nil, d.encrypted()
	}
	return d.res, nil
}

// Styles returns the style sheet entries, or nil when the document has none.
func (d *Document) Styles() []*Style {
	if d.ss == nil {
		return nil
	}
	return d.ss.Styles()
}

// Fonts returns the font table.
func (d *Document) Fonts() []Font { return d.fonts }

// Font returns the font table entry at ftc.
func (d *Document) Font(ftc uint16) (Font, bool) {
	if int(ftc) >= len(d.fonts) {
		return Font{}, false
	}
	return d.fonts[ftc], true
}

// TextContext assembles the full document text. A successful result is
// kept and shared by later calls.
func (d *Document) TextContext(ctx context.Context) (*Text, error) {
	if d.IsEncrypted() {
		return nil, d.encrypted()
	}
	d.textMu.Lock()
	defer d.textMu.Unlock()
	if d.text != nil {
		return d.text, nil
	}
	t, err := Assemble(ctx, d.pt, d.wordDocument, d.cm, d.opts.Workers())
	if err != nil {
		return nil, err
	}
	d.text = t
	return t, nil
}

// Text returns the text of every subdocument, in cp order.
func (d *Document) Text() (string, error) {
	t, err := d.TextContext(context.Background())
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// SubdocText returns the text of a single subdocument.
func (d *Document) SubdocText(kind Subdoc) (string, error) {
	t, err := d.TextContext(context.Background())
	if err != nil {
		return "", err
	}
	for _, r := range d.fib.SubdocRanges() {
		if r.Kind == kind {
			return t.Slice(r.Start, r.End), nil
		}
	}
	return "", nil
}

// Close implements wdoc.Source. The document only holds memory, so it
// stays usable and safe for concurrent readers after Close.
func (d *Document) Close() error {
	return nil
}

///////

// List the non-empty subdocuments by name.
func (d *Document) List() ([]string, error) {
	var res []string
	for _, r := range d.fib.SubdocRanges() {
		res = append(res, r.Kind.String())
	}
	return res, nil
}

// Get the paragraphs of the named subdocument.
func (d *Document) Get(name string) (wdoc.Collection, error) {
	for _, r := range d.fib.SubdocRanges() {
		if r.Kind.String() == name {
			paras, err := d.SubdocParagraphs(r.Kind)
			if err != nil {
				return nil, err
			}
			return &collection{paras: paras, iter: -1}, nil
		}
	}
	return nil, fmt.Errorf("doc: subdocument '%s' not found", name)
}
