package cfb

import (
	"encoding/binary"
	"fmt"

	"github.com/pbnjay/wdoc"
)

var logger = wdoc.NewLogger("wdoc.cfb")

// sectorSpace is the two-tier allocator view of the file: regular sectors
// addressed through the FAT and 64-byte mini sectors addressed through the
// mini FAT inside the mini stream.
type sectorSpace struct {
	// the entire file, loaded into memory
	data []byte

	shift   uint16
	nsec    uint32
	fat     []uint32
	minifat []uint32

	// mini stream contents, assembled once from the root entry chain
	ministream []byte
}

func newSectorSpace(data []byte, h *header) (*sectorSpace, error) {
	s := &sectorSpace{
		data:  data,
		shift: h.SectorShift,
	}
	ss := len(data) - h.sectorSize()
	if ss < 0 {
		ss = 0
	}
	// a short trailing sector still counts, reads are clamped to the buffer
	s.nsec = uint32((ss + h.sectorSize() - 1) >> h.SectorShift)

	if err := s.loadFAT(h); err != nil {
		return nil, err
	}
	if err := s.loadMiniFAT(h); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *sectorSpace) sectorSize() int {
	return 1 << s.shift
}

// sector returns the raw bytes of regular sector sid.
func (s *sectorSpace) sector(sid uint32) ([]byte, error) {
	if sid >= s.nsec {
		return nil, wdoc.Invalid(fmt.Errorf("cfb: sector %d out of range (%d sectors)", sid, s.nsec))
	}
	offs := int64(1+sid) << s.shift
	end := offs + int64(s.sectorSize())
	if end > int64(len(s.data)) {
		end = int64(len(s.data))
	}
	return s.data[offs:end], nil
}

func (s *sectorSpace) appendFATSector(sid uint32) error {
	sector, err := s.sector(sid)
	if err != nil {
		return err
	}
	for len(sector) >= 4 {
		s.fat = append(s.fat, binary.LittleEndian.Uint32(sector))
		sector = sector[4:]
	}
	return nil
}

// loadFAT assembles the FAT from the header DIFAT entries and the DIFAT chain.
func (s *sectorSpace) loadFAT(h *header) error {
	// each FAT and DIFAT sector is a sector of the file
	if h.NumFATSectors > s.nsec {
		return wdoc.Invalid(fmt.Errorf("cfb: header declares %d FAT sectors in a %d sector file", h.NumFATSectors, s.nsec))
	}
	if h.NumDIFATSectors > s.nsec {
		return wdoc.Invalid(fmt.Errorf("cfb: header declares %d DIFAT sectors in a %d sector file", h.NumDIFATSectors, s.nsec))
	}
	perSector := s.sectorSize() / 4
	want := int(h.NumFATSectors)
	s.fat = make([]uint32, 0, perSector*want)

	nfat := 0
	for i := 0; i < inlineDIFAT && nfat < want; i++ {
		sid := h.DIFAT[i]
		if sid == secFree {
			break
		}
		if err := s.appendFATSector(sid); err != nil {
			return err
		}
		nfat++
	}

	seen := newVisited(int(s.nsec))
	sid := h.FirstDIFATSectorLocation
	for n := uint32(0); n < h.NumDIFATSectors && nfat < want; n++ {
		if sid == secEndOfChain || sid == secFree {
			break
		}
		if sid >= s.nsec {
			return wdoc.Invalid(fmt.Errorf("cfb: DIFAT sector %d out of range", sid))
		}
		if seen.mark(int(sid)) {
			return wdoc.WrapErr(fmt.Errorf("cfb: DIFAT chain revisits sector %d", sid), wdoc.ErrCyclicChain, wdoc.ErrInvalidFormat)
		}
		difat, err := s.sector(sid)
		if err != nil {
			return err
		}
		for i := 0; i < perSector-1 && nfat < want; i++ {
			fsid := binary.LittleEndian.Uint32(difat[i*4:])
			if fsid == secFree || fsid == secEndOfChain {
				continue
			}
			if err := s.appendFATSector(fsid); err != nil {
				return err
			}
			nfat++
		}
		// chain the next DIFAT sector
		sid = binary.LittleEndian.Uint32(difat[(perSector-1)*4:])
	}

	if nfat < want && wdoc.Debug {
		logger.Warningf(nil, "header declares %d FAT sectors, found %d", want, nfat)
	}
	return nil
}

func (s *sectorSpace) loadMiniFAT(h *header) error {
	if h.NumMiniFATSectors == 0 || h.FirstMiniFATSectorLocation == secEndOfChain {
		return nil
	}
	if h.NumMiniFATSectors > s.nsec {
		return wdoc.Invalid(fmt.Errorf("cfb: header declares %d mini FAT sectors in a %d sector file", h.NumMiniFATSectors, s.nsec))
	}
	sectors, err := s.readChain(h.FirstMiniFATSectorLocation, int64(h.NumMiniFATSectors)<<s.shift)
	if err != nil {
		return fmt.Errorf("cfb: mini FAT: %w", err)
	}
	s.minifat = make([]uint32, 0, int(h.NumMiniFATSectors)*s.sectorSize()/4)
	for _, sector := range sectors {
		for len(sector) >= 4 {
			s.minifat = append(s.minifat, binary.LittleEndian.Uint32(sector))
			sector = sector[4:]
		}
	}
	return nil
}

// chain walks the FAT from start and returns the visited sector ids,
// stopping after max sectors when max >= 0.
func (s *sectorSpace) chain(start uint32, max int) ([]uint32, error) {
	var res []uint32
	seen := newVisited(int(s.nsec))
	sid := start
	for max < 0 || len(res) < max {
		if sid == secEndOfChain {
			if max < 0 {
				return res, nil
			}
			return res, wdoc.WrapErr(fmt.Errorf("cfb: chain from %d ends after %d sectors", start, len(res)), wdoc.ErrTruncatedChain, wdoc.ErrInvalidFormat)
		}
		if sid > secMaxRegular || sid >= s.nsec || int(sid) >= len(s.fat) {
			return res, wdoc.WrapErr(fmt.Errorf("cfb: chain from %d reaches invalid sector 0x%x", start, sid), wdoc.ErrTruncatedChain, wdoc.ErrInvalidFormat)
		}
		if seen.mark(int(sid)) {
			return res, wdoc.WrapErr(fmt.Errorf("cfb: chain from %d revisits sector %d", start, sid), wdoc.ErrCyclicChain, wdoc.ErrInvalidFormat)
		}
		res = append(res, sid)
		sid = s.fat[sid]
	}
	return res, nil
}

// readChain returns length bytes of the regular sector chain starting at
// start. The result is a list of slices into the file buffer; nothing is copied.
func (s *sectorSpace) readChain(start uint32, length int64) ([][]byte, error) {
	if length == 0 {
		return nil, nil
	}
	max := -1
	if length > 0 {
		max = int((length + int64(s.sectorSize()) - 1) >> s.shift)
	}
	sids, err := s.chain(start, max)
	if err != nil {
		return nil, err
	}

	// NB the result holds slices of the raw data, so this is the
	// only allocation - for the (much smaller) list of sector slices
	res := make([][]byte, 0, len(sids))
	remain := length
	for _, sid := range sids {
		slice, err := s.sector(sid)
		if err != nil {
			return nil, err
		}
		if remain >= 0 && int64(len(slice)) > remain {
			slice = slice[:remain]
		}
		res = append(res, slice)
		if remain >= 0 {
			remain -= int64(len(slice))
		}
	}
	if remain > 0 {
		return nil, wdoc.WrapErr(fmt.Errorf("cfb: chain from %d is %d bytes short", start, remain), wdoc.ErrTruncatedChain, wdoc.ErrInvalidFormat)
	}
	return res, nil
}

// readMiniChain is readChain over the mini FAT, slicing the mini stream.
func (s *sectorSpace) readMiniChain(start uint32, length int64) ([][]byte, error) {
	if length == 0 {
		return nil, nil
	}
	const miniSize = 1 << miniSectorShift
	nmini := len(s.ministream) / miniSize
	if len(s.ministream)%miniSize != 0 {
		nmini++
	}
	seen := newVisited(nmini)

	res := make([][]byte, 0, 1+length/miniSize)
	sid := start
	remain := length
	for remain > 0 {
		if sid == secEndOfChain {
			return nil, wdoc.WrapErr(fmt.Errorf("cfb: mini chain from %d is %d bytes short", start, remain), wdoc.ErrTruncatedChain, wdoc.ErrInvalidFormat)
		}
		if int(sid) >= nmini || int(sid) >= len(s.minifat) {
			return nil, wdoc.WrapErr(fmt.Errorf("cfb: mini chain from %d reaches invalid mini sector 0x%x", start, sid), wdoc.ErrTruncatedChain, wdoc.ErrInvalidFormat)
		}
		if seen.mark(int(sid)) {
			return nil, wdoc.WrapErr(fmt.Errorf("cfb: mini chain from %d revisits mini sector %d", start, sid), wdoc.ErrCyclicChain, wdoc.ErrInvalidFormat)
		}
		offs := int(sid) * miniSize
		end := offs + miniSize
		if end > len(s.ministream) {
			end = len(s.ministream)
		}
		slice := s.ministream[offs:end]
		if int64(len(slice)) > remain {
			slice = slice[:remain]
		}
		res = append(res, slice)
		remain -= int64(len(slice))
		sid = s.minifat[sid]
	}
	return res, nil
}

// loadMiniStream reads the root entry chain that backs all mini sectors.
func (s *sectorSpace) loadMiniStream(start uint32, size int64) error {
	if size == 0 || start == secEndOfChain {
		return nil
	}
	parts, err := s.readChain(start, size)
	if err != nil {
		return fmt.Errorf("cfb: mini stream: %w", err)
	}
	s.ministream = flatten(parts, size)
	return nil
}

// flatten joins a list of sector slices into one buffer.
func flatten(parts [][]byte, size int64) []byte {
	if len(parts) == 1 {
		return parts[0]
	}
	res := make([]byte, 0, size)
	for _, p := range parts {
		res = append(res, p...)
	}
	return res
}
