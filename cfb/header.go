package cfb

// https://docs.microsoft.com/en-us/openspecs/windows_protocols/ms-cfb/53989ce4-7b05-4f8d-829b-d08d6148375b
// Note for myself:
//   Storage = Directory
//   Stream = File

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
	"github.com/pbnjay/wdoc"
)

const (
	secFree       uint32 = 0xFFFFFFFF // FREESECT
	secEndOfChain uint32 = 0xFFFFFFFE // ENDOFCHAIN
	secFAT        uint32 = 0xFFFFFFFD // FATSECT
	secDIFAT      uint32 = 0xFFFFFFFC // DIFSECT
	secMaxRegular uint32 = 0xFFFFFFFA // MAXREGSECT

	noStream uint32 = 0xFFFFFFFF // NOSTREAM

	headerSize      = 512
	signature       = 0xe11ab1a1e011cfd0
	miniSectorShift = 6
	miniCutoff      = 4096
	inlineDIFAT     = 109
)

// Header of the Compound File MUST be at the beginning of the file (offset 0).
type header struct {
	Signature                    uint64            // MUST be 0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1.
	ClassID                      [16]byte          // Reserved and unused class ID.
	MinorVersion                 uint16            // SHOULD be 0x003E.
	MajorVersion                 uint16            // 3 (512-byte sectors) or 4 (4096-byte sectors).
	ByteOrder                    uint16            // MUST be 0xFFFE.
	SectorShift                  uint16            // 9 or 12.
	MiniSectorShift              uint16            // MUST be 6.
	Reserved1                    [6]byte           //
	NumDirectorySectors          uint32            // zero for version 3.
	NumFATSectors                uint32            //
	FirstDirectorySectorLocation uint32            //
	TransactionSignature         uint32            //
	MiniStreamCutoffSize         uint32            // MUST be 4096.
	FirstMiniFATSectorLocation   uint32            //
	NumMiniFATSectors            uint32            //
	FirstDIFATSectorLocation     uint32            //
	NumDIFATSectors              uint32            //
	DIFAT                        [inlineDIFAT]uint32 // first 109 FAT sector locations.
}

func parseHeader(data []byte, strict bool) (*header, error) {
	if len(data) < headerSize {
		return nil, wdoc.WrapErr(fmt.Errorf("cfb: file too short (%d bytes)", len(data)), wdoc.ErrNotInFormat, wdoc.ErrInvalidFormat)
	}
	if binary.LittleEndian.Uint64(data) != signature {
		return nil, wdoc.WrapErr(wdoc.ErrNotInFormat, wdoc.ErrInvalidFormat)
	}

	h := &header{}
	if err := restruct.Unpack(data[:headerSize], binary.LittleEndian, h); err != nil {
		return nil, wdoc.Invalid(fmt.Errorf("cfb: header: %w", err))
	}
	if h.ByteOrder != 0xFFFE {
		return nil, wdoc.Invalid(fmt.Errorf("cfb: byte order mark 0x%04x", h.ByteOrder))
	}
	if h.SectorShift != 9 && h.SectorShift != 12 {
		return nil, wdoc.Invalid(fmt.Errorf("cfb: invalid sector shift %d", h.SectorShift))
	}
	if h.MiniSectorShift != miniSectorShift {
		return nil, wdoc.Invalid(fmt.Errorf("cfb: invalid mini sector shift %d", h.MiniSectorShift))
	}
	if h.MiniStreamCutoffSize != miniCutoff {
		return nil, wdoc.Invalid(fmt.Errorf("cfb: invalid mini stream cutoff %d", h.MiniStreamCutoffSize))
	}
	if strict {
		if h.MajorVersion != 3 && h.MajorVersion != 4 {
			return nil, wdoc.Invalid(fmt.Errorf("cfb: unknown major version %d", h.MajorVersion))
		}
		if (h.MajorVersion == 3) != (h.SectorShift == 9) {
			return nil, wdoc.Invalid(fmt.Errorf("cfb: sector shift %d in version %d file", h.SectorShift, h.MajorVersion))
		}
		for _, v := range h.Reserved1 {
			if v != 0 {
				return nil, wdoc.Invalid(fmt.Errorf("cfb: reserved header bytes are non-zero"))
			}
		}
	} else if wdoc.Debug && h.MinorVersion != 0x3E {
		logger.Warningf(nil, "MinorVersion = 0x%02x NOT 0x3E", h.MinorVersion)
	}
	return h, nil
}

func (h *header) sectorSize() int {
	return 1 << h.SectorShift
}
