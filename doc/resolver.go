package doc

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"

	"github.com/pbnjay/wdoc"
)

type propKind uint8

const (
	kindChar propKind = iota + 1
	kindPara
)

// Everything a resolved snapshot depends on. Two cps with equal keys
// resolve to equal snapshots.
type resolveKey struct {
	kind  propKind
	istd  uint16
	piece int32
	run   int32
}

func hashKey(k resolveKey) uint64 {
	var b [11]byte
	b[0] = byte(k.kind)
	binary.LittleEndian.PutUint16(b[1:], k.istd)
	binary.LittleEndian.PutUint32(b[3:], uint32(k.piece))
	binary.LittleEndian.PutUint32(b[7:], uint32(k.run))
	return xxhash.Sum64(b[:])
}

// Resolver computes character and paragraph properties at a cp by
// replaying the property modifiers that apply there over the style
// baseline. It only reads immutable tables; the memo cache is the one
// piece of shared state and is guarded by mu.
type Resolver struct {
	pt     *PieceTable
	chpx   *binTable
	papx   *binTable
	ss     *StyleSheet
	data   []byte
	strict bool

	mu    sync.Mutex
	chars *tinylfu.T[resolveKey, CharProps]
	paras *tinylfu.T[resolveKey, ParaProps]
}

func newResolver(pt *PieceTable, chpx, papx *binTable, ss *StyleSheet, data []byte, opts wdoc.Options) *Resolver {
	r := &Resolver{
		pt:     pt,
		chpx:   chpx,
		papx:   papx,
		ss:     ss,
		data:   data,
		strict: opts.Strict,
	}
	if n := opts.ResolveCacheSize; n > 0 {
		r.chars = tinylfu.New[resolveKey, CharProps](n, n*10, hashKey)
		r.paras = tinylfu.New[resolveKey, ParaProps](n, n*10, hashKey)
	}
	return r
}

// locate maps cp to its piece and stream offset.
func (r *Resolver) locate(cp uint32) (int, uint32, error) {
	i, ok := r.pt.PieceAt(cp)
	if !ok {
		return -1, 0, wdoc.WrapErr(fmt.Errorf("doc: cp %d is outside the text [0,%d)", cp, r.pt.LastCP()), wdoc.ErrOutOfBounds)
	}
	p := r.pt.pieces[i]
	return i, p.FC + (cp-p.CPStart)*p.BytesPerChar(), nil
}

func (r *Resolver) sprms(b []byte, what string) ([]Sprm, error) {
	sprms, err := ParseGrpprl(b)
	if err != nil {
		if r.strict {
			return nil, err
		}
		if wdoc.Debug {
			logger.Debugf(nil, "%s: %v; using %d complete sprms", what, err, len(sprms))
		}
	}
	return sprms, nil
}

// paraRun returns the PAPX run index and paragraph style at fc.
func (r *Resolver) paraRun(fc uint32) (int, uint16) {
	j := r.papx.find(fc)
	if j < 0 {
		return -1, istdNormal
	}
	return j, r.papx.runs[j].Istd
}

// hugePapx replaces a sprmPHugePapx with the modifiers it points to in the
// Data stream.
func (r *Resolver) hugePapx(sprms []Sprm) ([]Sprm, error) {
	for i, s := range sprms {
		if s.Op != sprmPHugePapx {
			continue
		}
		off := int64(s.Dword())
		if off+2 > int64(len(r.data)) {
			if r.strict {
				return nil, fail(wdoc.ErrBadFKP, "huge PAPX at %d is outside the Data stream", off)
			}
			logger.Warningf(nil, "huge PAPX at %d is outside the %d byte Data stream", off, len(r.data))
			return sprms, nil
		}
		cb := int64(binary.LittleEndian.Uint16(r.data[off:]))
		if off+2+cb > int64(len(r.data)) {
			return nil, fail(wdoc.ErrBadFKP, "huge PAPX at %d with %d bytes overruns the Data stream", off, cb)
		}
		huge, err := r.sprms(r.data[off+2:off+2+cb], "huge PAPX")
		if err != nil {
			return nil, err
		}
		res := make([]Sprm, 0, len(sprms)-1+len(huge))
		res = append(res, sprms[:i]...)
		res = append(res, huge...)
		return append(res, sprms[i+1:]...), nil
	}
	return sprms, nil
}

// Para resolves the paragraph properties at cp.
func (r *Resolver) Para(cp uint32) (ParaProps, error) {
	pi, fc, err := r.locate(cp)
	if err != nil {
		return ParaProps{}, err
	}
	run, istd := r.paraRun(fc)
	key := resolveKey{kind: kindPara, istd: istd, piece: int32(pi), run: int32(run)}
	if p, ok := r.cachedPara(key); ok {
		return p, nil
	}

	p := r.ss.Para(istd)
	if run >= 0 {
		sprms, err := r.sprms(r.papx.runs[run].grpprl, "PAPX")
		if err != nil {
			return ParaProps{}, err
		}
		if sprms, err = r.hugePapx(sprms); err != nil {
			return ParaProps{}, err
		}
		p = applyPap(p, sprms)
	}
	prm, err := r.sprms(r.pt.PrmGrpprl(r.pt.pieces[pi]), "piece Prm")
	if err != nil {
		return ParaProps{}, err
	}
	p = applyPap(p, prm)

	r.store(key, p, CharProps{})
	return p, nil
}

// Char resolves the character properties at cp. The baseline is the
// character formatting of the enclosing paragraph's style.
func (r *Resolver) Char(cp uint32) (CharProps, error) {
	pi, fc, err := r.locate(cp)
	if err != nil {
		return CharProps{}, err
	}
	_, istd := r.paraRun(fc)
	run := r.chpx.find(fc)
	key := resolveKey{kind: kindChar, istd: istd, piece: int32(pi), run: int32(run)}
	if c, ok := r.cachedChar(key); ok {
		return c, nil
	}

	style := r.ss.Char(istd)
	c := style
	if run >= 0 {
		sprms, err := r.sprms(r.chpx.runs[run].grpprl, "CHPX")
		if err != nil {
			return CharProps{}, err
		}
		c = applyChp(c, style, sprms, r.ss)
	}
	prm, err := r.sprms(r.pt.PrmGrpprl(r.pt.pieces[pi]), "piece Prm")
	if err != nil {
		return CharProps{}, err
	}
	c = applyChp(c, style, prm, r.ss)

	r.store(key, ParaProps{}, c)
	return c, nil
}

// Boundaries returns the cps inside [cpStart,cpEnd) where character
// formatting may change, starting with cpStart.
func (r *Resolver) Boundaries(cpStart, cpEnd uint32) []uint32 {
	return r.chpx.boundaries(r.pt, cpStart, cpEnd)
}

func (r *Resolver) cachedChar(k resolveKey) (CharProps, bool) {
	if r.chars == nil {
		return CharProps{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chars.Get(k)
}

func (r *Resolver) cachedPara(k resolveKey) (ParaProps, bool) {
	if r.paras == nil {
		return ParaProps{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paras.Get(k)
}

func (r *Resolver) store(k resolveKey, p ParaProps, c CharProps) {
	if r.chars == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if k.kind == kindPara {
		r.paras.Add(k, p)
	} else {
		r.chars.Add(k, c)
	}
}
