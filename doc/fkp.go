package doc

import (
	"encoding/binary"
	"sort"

	"github.com/pbnjay/wdoc"
)

const (
	fkpPageSize = 512
	bxPapSize   = 13 // bOffset + PHE
	pnMask      = 0x3FFFFF
)

type fkpKind int

const (
	fkpChpx fkpKind = iota
	fkpPapx
)

func (k fkpKind) String() string {
	if k == fkpPapx {
		return "PAPX"
	}
	return "CHPX"
}

// fkpRun is one rgfc gap of a formatted disk page: the stream bytes
// [FCStart,FCEnd) share the property modifiers in grpprl.
type fkpRun struct {
	FCStart uint32
	FCEnd   uint32
	Istd    uint16
	grpprl  []byte
}

// binTable is a flattened PlcBte: every run of every FKP page it points to,
// in ascending fc order.
type binTable struct {
	kind fkpKind
	runs []fkpRun
}

// parseBinTable decodes a PlcBteChpx/PlcBtePapx and loads the pages it
// references from wordDocument.
func parseBinTable(kind fkpKind, plc []byte, wordDocument []byte) (*binTable, error) {
	le := binary.LittleEndian
	if len(plc) < 4 || (len(plc)-4)%8 != 0 {
		return nil, fail(wdoc.ErrBadFKP, "%s bin table has invalid size %d", kind, len(plc))
	}
	n := (len(plc) - 4) / 8
	bt := &binTable{kind: kind}
	for i := 0; i < n; i++ {
		pn := le.Uint32(plc[(n+1)*4+i*4:]) & pnMask
		off := uint64(pn) * fkpPageSize
		if off+fkpPageSize > uint64(len(wordDocument)) {
			return nil, fail(wdoc.ErrBadFKP, "%s page %d at %d is outside the stream", kind, pn, off)
		}
		runs, err := parseFKP(kind, wordDocument[off:off+fkpPageSize])
		if err != nil {
			return nil, err
		}
		bt.runs = append(bt.runs, runs...)
	}
	for i := 1; i < len(bt.runs); i++ {
		if bt.runs[i].FCStart < bt.runs[i-1].FCStart {
			// pages are normally in order; tolerate files that are not
			sort.SliceStable(bt.runs, func(a, b int) bool { return bt.runs[a].FCStart < bt.runs[b].FCStart })
			break
		}
	}
	if wdoc.Debug {
		logger.Debugf(nil, "%s bin table: %d pages, %d runs", kind, n, len(bt.runs))
	}
	return bt, nil
}

// parseFKP decodes a single 512 byte page.
func parseFKP(kind fkpKind, page []byte) ([]fkpRun, error) {
	le := binary.LittleEndian
	crun := int(page[fkpPageSize-1])
	entry := 1
	if kind == fkpPapx {
		entry = bxPapSize
	}
	if (crun+1)*4+crun*entry > fkpPageSize-1 {
		return nil, fail(wdoc.ErrBadFKP, "%s page holds %d runs, too many for a page", kind, crun)
	}
	fcs := make([]uint32, crun+1)
	for i := range fcs {
		fcs[i] = le.Uint32(page[i*4:])
		if i > 0 && fcs[i] < fcs[i-1] {
			return nil, fail(wdoc.ErrBadFKP, "%s page rgfc not ascending at %d", kind, i)
		}
	}
	rgb := page[(crun+1)*4:]

	runs := make([]fkpRun, crun)
	for i := 0; i < crun; i++ {
		r := fkpRun{FCStart: fcs[i], FCEnd: fcs[i+1]}
		off := int(rgb[i*entry]) * 2
		if off == 0 {
			// no direct formatting
			runs[i] = r
			continue
		}
		if off >= fkpPageSize-1 {
			return nil, fail(wdoc.ErrBadFKP, "%s run %d offset %d outside the page", kind, i, off)
		}
		var data []byte
		switch kind {
		case fkpChpx:
			cb := int(page[off])
			if off+1+cb > fkpPageSize-1 {
				return nil, fail(wdoc.ErrBadFKP, "CHPX run %d size %d overruns the page", i, cb)
			}
			data = page[off+1 : off+1+cb]
			r.grpprl = data
		case fkpPapx:
			start, size := off+1, 2*int(page[off])-1
			if page[off] == 0 {
				if off+1 >= fkpPageSize-1 {
					return nil, fail(wdoc.ErrBadFKP, "PAPX run %d truncated", i)
				}
				start, size = off+2, 2*int(page[off+1])
			}
			if size < 2 || start+size > fkpPageSize-1 {
				return nil, fail(wdoc.ErrBadFKP, "PAPX run %d size %d overruns the page", i, size)
			}
			data = page[start : start+size]
			r.Istd = le.Uint16(data)
			r.grpprl = data[2:]
		}
		runs[i] = r
	}
	return runs, nil
}

// find returns the index of the run covering fc, or -1.
func (bt *binTable) find(fc uint32) int {
	if bt == nil {
		return -1
	}
	i := sort.Search(len(bt.runs), func(i int) bool { return bt.runs[i].FCEnd > fc })
	if i == len(bt.runs) || fc < bt.runs[i].FCStart {
		return -1
	}
	return i
}

// boundaries returns the cps at which direct formatting may change within
// [cpStart,cpEnd), always including cpStart. Piece starts count too, since
// each piece may carry its own Prm.
func (bt *binTable) boundaries(pt *PieceTable, cpStart, cpEnd uint32) []uint32 {
	res := []uint32{cpStart}
	for _, p := range pt.Pieces() {
		if p.CPEnd <= cpStart || p.CPStart >= cpEnd {
			continue
		}
		if p.CPStart > cpStart {
			res = append(res, p.CPStart)
		}
		if bt == nil {
			continue
		}
		lo := sort.Search(len(bt.runs), func(i int) bool { return bt.runs[i].FCEnd > p.FC })
		for j := lo; j < len(bt.runs) && bt.runs[j].FCStart < p.FCEnd(); j++ {
			// runs need not be contiguous, so both ends count
			for _, fc := range [2]uint32{bt.runs[j].FCStart, bt.runs[j].FCEnd} {
				if fc <= p.FC || fc >= p.FCEnd() {
					continue
				}
				cp := p.CPStart + (fc-p.FC)/p.BytesPerChar()
				if cp > cpStart && cp < cpEnd {
					res = append(res, cp)
				}
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	out := res[:1]
	for _, cp := range res[1:] {
		if cp != out[len(out)-1] {
			out = append(out, cp)
		}
	}
	return out
}
