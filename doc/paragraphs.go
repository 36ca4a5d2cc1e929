package doc

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Characters that end a paragraph.
const (
	paraMark = '\r'
	cellMark = 0x07
)

// Run is a span of text within a paragraph sharing one set of character
// properties.
type Run struct {
	CPStart uint32
	CPEnd   uint32

	text  string
	props CharProps
	doc   *Document
}

// Text returns the characters of the run.
func (r *Run) Text() string { return r.text }

// Props returns the resolved character properties.
func (r *Run) Props() CharProps { return r.props }

// Bold reports the bold state and whether any formatting set it.
func (r *Run) Bold() (bool, bool) { return r.props.Bold.Get() }

// Italic reports the italic state and whether any formatting set it.
func (r *Run) Italic() (bool, bool) { return r.props.Italic.Get() }

// Strikethrough reports single or double strikethrough.
func (r *Run) Strikethrough() (bool, bool) {
	s, ok := r.props.Strike.Get()
	if ds, dok := r.props.DStrike.Get(); dok {
		return s || ds, true
	}
	return s, ok
}

// Underline reports whether the run is underlined in any style.
func (r *Run) Underline() (bool, bool) {
	u, ok := r.props.Underline.Get()
	return u != UnderlineNone, ok
}

// FontSize returns the size in points.
func (r *Run) FontSize() (float64, bool) {
	hps, ok := r.props.Size.Get()
	return float64(hps) / 2, ok
}

// Color returns the text color; unset means automatic.
func (r *Run) Color() (RGB, bool) { return r.props.Color.Get() }

// FontName returns the name of the font used for ASCII text.
func (r *Run) FontName() (string, bool) {
	ftc, ok := r.props.FontASCII.Get()
	if !ok || r.doc == nil {
		return "", false
	}
	f, ok := r.doc.Font(ftc)
	if !ok {
		return "", false
	}
	return f.Name, true
}

// Paragraph is a run of text ended by a paragraph or cell mark. The final
// paragraph of a range may have no terminator.
type Paragraph struct {
	CPStart uint32
	CPEnd   uint32
	// Terminator is the closing mark, or 0.
	Terminator rune

	text  string
	props ParaProps
	runs  []*Run
	doc   *Document
}

// Text returns the paragraph text without its terminator.
func (p *Paragraph) Text() string { return p.text }

// Props returns the resolved paragraph properties.
func (p *Paragraph) Props() ParaProps { return p.props }

// Runs returns the formatting runs. Adjacent runs with identical
// properties are merged.
func (p *Paragraph) Runs() []*Run { return p.runs }

// Style returns the paragraph style name.
func (p *Paragraph) Style() string {
	if p.doc == nil || p.doc.ss == nil {
		return ""
	}
	if s, ok := p.doc.ss.Style(p.props.Istd); ok {
		return s.Name
	}
	return ""
}

// InTable reports whether the paragraph belongs to a table cell.
func (p *Paragraph) InTable() bool {
	v, _ := p.props.InTable.Get()
	return v || p.Terminator == cellMark
}

// splitParagraphs returns the [start,end) cp ranges of the paragraphs in
// [cpStart,cpEnd), each including its terminator.
func splitParagraphs(t *Text, cpStart, cpEnd uint32) [][2]uint32 {
	var res [][2]uint32
	start := cpStart
	for cp := cpStart; cp < cpEnd; cp++ {
		switch t.RuneAt(cp) {
		case paraMark, cellMark:
			res = append(res, [2]uint32{start, cp + 1})
			start = cp + 1
		}
	}
	if start < cpEnd {
		res = append(res, [2]uint32{start, cpEnd})
	}
	return res
}

// Paragraphs returns the paragraphs of the main document.
func (d *Document) Paragraphs() ([]*Paragraph, error) {
	return d.SubdocParagraphs(SubdocMain)
}

// SubdocParagraphs returns the paragraphs of one subdocument.
func (d *Document) SubdocParagraphs(kind Subdoc) ([]*Paragraph, error) {
	for _, r := range d.fib.SubdocRanges() {
		if r.Kind == kind {
			return d.ParagraphsContext(context.Background(), r.Start, r.End)
		}
	}
	return nil, nil
}

// ParagraphsContext splits [cpStart,cpEnd) into paragraphs and resolves
// their formatting. Paragraphs are independent and resolved concurrently.
func (d *Document) ParagraphsContext(ctx context.Context, cpStart, cpEnd uint32) ([]*Paragraph, error) {
	t, err := d.TextContext(ctx)
	if err != nil {
		return nil, err
	}
	if cpEnd > t.Len() {
		cpEnd = t.Len()
	}
	ranges := splitParagraphs(t, cpStart, cpEnd)
	paras := make([]*Paragraph, len(ranges))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers())
	for i, rng := range ranges {
		i, rng := i, rng
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := d.paragraph(t, rng[0], rng[1])
			if err != nil {
				return err
			}
			paras[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paras, nil
}

func (d *Document) paragraph(t *Text, start, end uint32) (*Paragraph, error) {
	p := &Paragraph{CPStart: start, CPEnd: end, doc: d}
	textEnd := end
	if r := t.RuneAt(end - 1); r == paraMark || r == cellMark {
		p.Terminator = r
		textEnd = end - 1
	}
	p.text = t.Slice(start, textEnd)

	// the paragraph mark carries the paragraph's properties
	var err error
	if p.props, err = d.res.Para(end - 1); err != nil {
		return nil, err
	}
	if textEnd == start {
		return p, nil
	}

	bounds := d.res.Boundaries(start, textEnd)
	for i, a := range bounds {
		b := textEnd
		if i+1 < len(bounds) {
			b = bounds[i+1]
		}
		c, err := d.res.Char(a)
		if err != nil {
			return nil, err
		}
		if n := len(p.runs); n > 0 && p.runs[n-1].props == c {
			last := p.runs[n-1]
			last.CPEnd = b
			last.text = t.Slice(last.CPStart, b)
			continue
		}
		p.runs = append(p.runs, &Run{CPStart: a, CPEnd: b, text: t.Slice(a, b), props: c, doc: d})
	}
	return p, nil
}

///////

type collection struct {
	paras []*Paragraph
	iter  int
}

func (c *collection) Next() bool {
	c.iter++
	return c.iter < len(c.paras)
}

// Text returns the current paragraph text.
func (c *collection) Text() string {
	return c.paras[c.iter].text
}

// Strings returns the text of each run of the current paragraph.
func (c *collection) Strings() []string {
	runs := c.paras[c.iter].runs
	res := make([]string, len(runs))
	for i, r := range runs {
		res[i] = r.text
	}
	return res
}

// IsEmpty returns true if there are no paragraphs.
func (c *collection) IsEmpty() bool {
	return len(c.paras) == 0
}

// Err returns the last error that occured.
func (c *collection) Err() error {
	return nil
}
