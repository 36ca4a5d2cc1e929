package doc

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/pbnjay/wdoc"
)

// Encoding is the storage form of a piece's characters.
type Encoding byte

const (
	// Unicode pieces hold UTF-16LE code units, two bytes per character position.
	Unicode Encoding = iota
	// Compressed pieces hold one 8-bit code page byte per character position.
	Compressed
)

func (e Encoding) String() string {
	if e == Compressed {
		return "compressed"
	}
	return "unicode"
}

const (
	fcCompressed = 0x40000000
	fcMask       = 0x3FFFFFFF

	clxPrc  = 0x01
	clxPcdt = 0x02
	pcdSize = 8
)

// Piece maps the character positions [CPStart,CPEnd) onto bytes of the
// WordDocument stream starting at FC.
type Piece struct {
	CPStart  uint32
	CPEnd    uint32
	FC       uint32
	Encoding Encoding
	Prm      uint16
}

// Len is the number of character positions in the piece.
func (p Piece) Len() uint32 { return p.CPEnd - p.CPStart }

// BytesPerChar is 1 for compressed pieces and 2 for unicode pieces.
func (p Piece) BytesPerChar() uint32 {
	if p.Encoding == Compressed {
		return 1
	}
	return 2
}

// ByteLen is the number of stream bytes the piece occupies. DecodeClx
// guarantees it fits the stream.
func (p Piece) ByteLen() uint32 { return p.Len() * p.BytesPerChar() }

// FCEnd is the stream offset just past the piece.
func (p Piece) FCEnd() uint32 { return p.FC + p.ByteLen() }

// PieceTable is the decoded CLX: the piece descriptors plus the shared
// property modifier groups they may reference.
type PieceTable struct {
	pieces []Piece
	prcs   [][]byte
}

// DecodeClx parses a CLX structure read from the table stream. streamSize
// is the WordDocument stream length every piece must fit inside.
func DecodeClx(clx []byte, streamSize int) (*PieceTable, error) {
	le := binary.LittleEndian
	pt := &PieceTable{}
	pos := 0
	for pos < len(clx) && clx[pos] == clxPrc {
		if pos+3 > len(clx) {
			return nil, fail(wdoc.ErrBadPieceTable, "truncated Prc at %d", pos)
		}
		cb := int(int16(le.Uint16(clx[pos+1:])))
		if cb < 0 || pos+3+cb > len(clx) {
			return nil, fail(wdoc.ErrBadPieceTable, "Prc at %d has invalid size %d", pos, cb)
		}
		pt.prcs = append(pt.prcs, clx[pos+3:pos+3+cb])
		pos += 3 + cb
	}
	if pos+5 > len(clx) || clx[pos] != clxPcdt {
		return nil, fail(wdoc.ErrBadPieceTable, "missing Pcdt at %d", pos)
	}
	lcb := int(le.Uint32(clx[pos+1:]))
	pos += 5
	if lcb < 4 || pos+lcb > len(clx) || (lcb-4)%(4+pcdSize) != 0 {
		return nil, fail(wdoc.ErrBadPieceTable, "PlcPcd has invalid size %d", lcb)
	}
	plc := clx[pos : pos+lcb]
	n := (lcb - 4) / (4 + pcdSize)
	if n == 0 {
		return nil, fail(wdoc.ErrBadPieceTable, "PlcPcd has no pieces")
	}

	cps := make([]uint32, n+1)
	for i := range cps {
		cps[i] = le.Uint32(plc[i*4:])
	}
	if cps[0] != 0 {
		return nil, fail(wdoc.ErrBadPieceTable, "first piece starts at cp %d", cps[0])
	}
	pcds := plc[(n+1)*4:]
	pt.pieces = make([]Piece, n)
	for i := 0; i < n; i++ {
		if cps[i+1] <= cps[i] {
			return nil, fail(wdoc.ErrBadPieceTable, "piece %d boundaries are not ascending (%d, %d)", i, cps[i], cps[i+1])
		}
		pcd := pcds[i*pcdSize:]
		fc := le.Uint32(pcd[2:])
		p := Piece{
			CPStart: cps[i],
			CPEnd:   cps[i+1],
			Prm:     le.Uint16(pcd[6:]),
		}
		if fc&fcCompressed != 0 {
			p.Encoding = Compressed
			p.FC = (fc & fcMask) / 2
		} else {
			p.Encoding = Unicode
			p.FC = fc & fcMask
		}
		// computed wide: a long unicode piece overflows uint32 bytes
		end := uint64(p.FC) + uint64(p.Len())*uint64(p.BytesPerChar())
		if end > uint64(streamSize) || end > math.MaxUint32 {
			return nil, fail(wdoc.ErrBadPieceTable, "piece %d bytes [%d,%d) exceed the %d byte stream", i, p.FC, end, streamSize)
		}
		pt.pieces[i] = p
	}
	return pt, nil
}

// Pieces returns the pieces in character position order.
func (pt *PieceTable) Pieces() []Piece { return pt.pieces }

// LastCP is the end of the final piece.
func (pt *PieceTable) LastCP() uint32 { return pt.pieces[len(pt.pieces)-1].CPEnd }

// PieceAt returns the index of the piece containing cp.
func (pt *PieceTable) PieceAt(cp uint32) (int, bool) {
	i := sort.Search(len(pt.pieces), func(i int) bool { return pt.pieces[i].CPEnd > cp })
	if i == len(pt.pieces) || cp < pt.pieces[i].CPStart {
		return -1, false
	}
	return i, true
}

// CPToFC maps a character position to its stream offset.
func (pt *PieceTable) CPToFC(cp uint32) (uint32, bool) {
	i, ok := pt.PieceAt(cp)
	if !ok {
		return 0, false
	}
	p := pt.pieces[i]
	return p.FC + (cp-p.CPStart)*p.BytesPerChar(), true
}

// FCToCP maps a stream offset back to a character position. Pieces may
// be stored in any order, so every piece is checked.
func (pt *PieceTable) FCToCP(fc uint32) (uint32, bool) {
	for _, p := range pt.pieces {
		if fc >= p.FC && fc < p.FCEnd() {
			return p.CPStart + (fc-p.FC)/p.BytesPerChar(), true
		}
	}
	return 0, false
}

// PrmGrpprl returns the property modifiers a piece applies to all of its
// text. Only the complex form (an index into the Prc list) is supported;
// single-sprm Prm0 values are reported as empty.
func (pt *PieceTable) PrmGrpprl(p Piece) []byte {
	if p.Prm&1 == 0 {
		return nil
	}
	igrpprl := int(p.Prm >> 1)
	if igrpprl >= len(pt.prcs) {
		return nil
	}
	return pt.prcs[igrpprl]
}
