// Package cfbtest builds small compound files in memory for tests.
package cfbtest

import (
	"encoding/binary"
	"strings"
	"unicode/utf16"
)

const (
	EndOfChain uint32 = 0xFFFFFFFE
	FreeSect   uint32 = 0xFFFFFFFF
	FATSect    uint32 = 0xFFFFFFFD
	NoStream   uint32 = 0xFFFFFFFF

	miniCutoff = 4096
	miniSize   = 64
)

type node struct {
	name     string
	kind     byte
	data     []byte
	children []int
	start    uint32
	size     uint64
	clsid    [16]byte
}

// Builder collects storages and streams and lays them out as a compound file.
type Builder struct {
	// Shift is the sector size exponent, 9 (default) or 12.
	Shift uint16

	nodes []*node
	paths map[string]int
}

// New returns a builder for a version 3 file with 512-byte sectors.
func New() *Builder {
	return &Builder{
		Shift: 9,
		nodes: []*node{{name: "Root Entry", kind: 5}},
		paths: map[string]int{"": 0},
	}
}

func (b *Builder) parent(path string) (int, string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return 0, path
	}
	return b.Storage(path[:i]), path[i+1:]
}

// Storage creates (if needed) the storage at path and returns its index.
func (b *Builder) Storage(path string) int {
	if idx, ok := b.paths[path]; ok {
		return idx
	}
	p, name := b.parent(path)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, &node{name: name, kind: 1})
	b.nodes[p].children = append(b.nodes[p].children, idx)
	b.paths[path] = idx
	return idx
}

// Add a stream at path. Intermediate storages are created as needed.
func (b *Builder) Add(path string, data []byte) *Builder {
	p, name := b.parent(path)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, &node{name: name, kind: 2, data: data})
	b.nodes[p].children = append(b.nodes[p].children, idx)
	b.paths[path] = idx
	return b
}

// SetCLSID sets the class id of the entry at path ("" is the root).
func (b *Builder) SetCLSID(path string, clsid [16]byte) {
	b.nodes[b.paths[path]].clsid = clsid
}

// Image is a laid out compound file with enough bookkeeping to corrupt it.
type Image struct {
	Data  []byte
	Shift uint16

	fatSectors     []uint32
	miniFATSectors []uint32
	starts         map[string]uint32
	mini           map[string]bool
}

// Start returns the first (mini) sector of the stream at path.
func (im *Image) Start(path string) uint32 { return im.starts[path] }

// IsMini reports whether the stream at path lives in the mini stream.
func (im *Image) IsMini(path string) bool { return im.mini[path] }

func (im *Image) sectorOffset(sid uint32) int {
	return int(sid+1) << im.Shift
}

// SetFAT overwrites FAT entry sid.
func (im *Image) SetFAT(sid, next uint32) {
	per := uint32(1<<im.Shift) / 4
	off := im.sectorOffset(im.fatSectors[sid/per]) + int(sid%per)*4
	binary.LittleEndian.PutUint32(im.Data[off:], next)
}

// SetMiniFAT overwrites mini FAT entry sid.
func (im *Image) SetMiniFAT(sid, next uint32) {
	per := uint32(1<<im.Shift) / 4
	off := im.sectorOffset(im.miniFATSectors[sid/per]) + int(sid%per)*4
	binary.LittleEndian.PutUint32(im.Data[off:], next)
}

// Bytes lays out the file and returns its contents.
func (b *Builder) Bytes() []byte {
	return b.Build().Data
}

// Build lays out the file: stream sectors, mini stream, mini FAT,
// directory, then the FAT itself.
func (b *Builder) Build() *Image {
	ss := 1 << b.Shift
	per := ss / 4
	im := &Image{
		Shift:  b.Shift,
		starts: make(map[string]uint32),
		mini:   make(map[string]bool),
	}

	var sectors [][]byte
	var fat []uint32
	alloc := func(data []byte) []uint32 {
		n := (len(data) + ss - 1) / ss
		sids := make([]uint32, 0, n)
		for i := 0; i < n; i++ {
			sec := make([]byte, ss)
			copy(sec, data[i*ss:])
			sids = append(sids, uint32(len(sectors)))
			sectors = append(sectors, sec)
			if i == n-1 {
				fat = append(fat, EndOfChain)
			} else {
				fat = append(fat, uint32(len(sectors)))
			}
		}
		return sids
	}
	first := func(sids []uint32) uint32 {
		if len(sids) == 0 {
			return EndOfChain
		}
		return sids[0]
	}

	pathOf := make(map[int]string, len(b.paths))
	for p, idx := range b.paths {
		pathOf[idx] = p
	}

	var mini []byte
	var minifat []uint32
	for idx, n := range b.nodes {
		if n.kind != 2 {
			continue
		}
		n.size = uint64(len(n.data))
		switch {
		case len(n.data) == 0:
			n.start = EndOfChain
		case len(n.data) < miniCutoff:
			nm := (len(n.data) + miniSize - 1) / miniSize
			n.start = uint32(len(minifat))
			for i := 0; i < nm; i++ {
				if i == nm-1 {
					minifat = append(minifat, EndOfChain)
				} else {
					minifat = append(minifat, uint32(len(minifat)+1))
				}
			}
			padded := make([]byte, nm*miniSize)
			copy(padded, n.data)
			mini = append(mini, padded...)
			im.mini[pathOf[idx]] = true
		default:
			n.start = first(alloc(n.data))
		}
		im.starts[pathOf[idx]] = n.start
	}

	root := b.nodes[0]
	root.start = first(alloc(mini))
	root.size = uint64(len(mini))

	miniFATStart := EndOfChain
	if len(minifat) > 0 {
		for len(minifat)%per != 0 {
			minifat = append(minifat, FreeSect)
		}
		raw := make([]byte, len(minifat)*4)
		for i, v := range minifat {
			binary.LittleEndian.PutUint32(raw[i*4:], v)
		}
		im.miniFATSectors = alloc(raw)
		miniFATStart = im.miniFATSectors[0]
	}

	perDir := ss / 128
	ndir := len(b.nodes)
	for ndir%perDir != 0 {
		ndir++
	}
	dir := make([]byte, ndir*128)
	for i := 0; i < ndir; i++ {
		e := dir[i*128 : (i+1)*128]
		binary.LittleEndian.PutUint32(e[68:], NoStream)
		binary.LittleEndian.PutUint32(e[72:], NoStream)
		binary.LittleEndian.PutUint32(e[76:], NoStream)
	}
	for i, n := range b.nodes {
		e := dir[i*128 : (i+1)*128]
		name := utf16.Encode([]rune(n.name))
		for j, c := range name {
			binary.LittleEndian.PutUint16(e[j*2:], c)
		}
		binary.LittleEndian.PutUint16(e[64:], uint16((len(name)+1)*2))
		e[66] = n.kind
		e[67] = 1 // black
		if len(n.children) > 0 {
			binary.LittleEndian.PutUint32(e[76:], uint32(n.children[0]))
			for k := 0; k+1 < len(n.children); k++ {
				c := dir[n.children[k]*128:]
				binary.LittleEndian.PutUint32(c[72:], uint32(n.children[k+1]))
			}
		}
		copy(e[80:96], n.clsid[:])
		if n.kind == 2 || n.kind == 5 {
			binary.LittleEndian.PutUint32(e[116:], n.start)
			binary.LittleEndian.PutUint64(e[120:], n.size)
		}
	}
	dirStart := first(alloc(dir))

	ncontent := len(sectors)
	nfat := 1
	for ncontent+nfat > nfat*per {
		nfat++
	}
	for i := 0; i < nfat; i++ {
		im.fatSectors = append(im.fatSectors, uint32(ncontent+i))
		fat = append(fat, FATSect)
	}
	for len(fat)%per != 0 {
		fat = append(fat, FreeSect)
	}

	hdr := make([]byte, ss)
	copy(hdr, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1})
	le := binary.LittleEndian
	le.PutUint16(hdr[24:], 0x3E)
	if b.Shift == 12 {
		le.PutUint16(hdr[26:], 4)
		le.PutUint32(hdr[40:], uint32(ndir*128/ss))
	} else {
		le.PutUint16(hdr[26:], 3)
	}
	le.PutUint16(hdr[28:], 0xFFFE)
	le.PutUint16(hdr[30:], b.Shift)
	le.PutUint16(hdr[32:], 6)
	le.PutUint32(hdr[44:], uint32(nfat))
	le.PutUint32(hdr[48:], dirStart)
	le.PutUint32(hdr[56:], miniCutoff)
	le.PutUint32(hdr[60:], miniFATStart)
	le.PutUint32(hdr[64:], uint32(len(im.miniFATSectors)))
	le.PutUint32(hdr[68:], EndOfChain)
	for i := 0; i < 109; i++ {
		v := FreeSect
		if i < nfat {
			v = im.fatSectors[i]
		}
		le.PutUint32(hdr[76+i*4:], v)
	}

	out := make([]byte, 0, ss*(1+ncontent+nfat))
	out = append(out, hdr...)
	for _, s := range sectors {
		out = append(out, s...)
	}
	for i := 0; i < nfat; i++ {
		sec := make([]byte, ss)
		for j := 0; j < per; j++ {
			le.PutUint32(sec[j*4:], fat[i*per+j])
		}
		out = append(out, sec...)
	}
	im.Data = out
	return im
}
