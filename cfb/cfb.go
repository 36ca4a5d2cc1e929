// Package cfb implements the Microsoft Compound File Binary File Format.
package cfb

import (
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/golang-lru/arc/v2"
	"github.com/pbnjay/wdoc"
)

// Document represents a Compound File Binary Format document.
// It is immutable once opened and safe for concurrent use.
type Document struct {
	opts   wdoc.Options
	header *header
	space  *sectorSpace
	dir    []*DirEntry

	// decoded streams by directory index, nil when disabled
	cache *arc.ARCCache[int, []byte]
}

// Open a Compound File Binary Format document.
func Open(filename string) (*Document, error) {
	return OpenWithOptions(filename, wdoc.DefaultOptions())
}

// OpenWithOptions opens a Compound File Binary Format document.
func OpenWithOptions(filename string, opts wdoc.Options) (*Document, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return OpenBytesWithOptions(data, opts)
}

// OpenBytes decodes a compound file held entirely in memory.
// The buffer is retained and must not be modified afterwards.
func OpenBytes(data []byte) (*Document, error) {
	return OpenBytesWithOptions(data, wdoc.DefaultOptions())
}

// OpenBytesWithOptions decodes a compound file held entirely in memory.
func OpenBytesWithOptions(data []byte, opts wdoc.Options) (*Document, error) {
	d := &Document{opts: opts}
	if err := d.load(data); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) load(data []byte) error {
	h, err := parseHeader(data, d.opts.Strict)
	if err != nil {
		return err
	}
	d.header = h

	// step 1: FAT and mini FAT
	d.space, err = newSectorSpace(data, h)
	if err != nil {
		return err
	}

	// step 2: directory entries
	if err = d.buildDirs(); err != nil {
		return err
	}

	// step 3: mini stream, rooted at the root entry
	root := d.dir[0]
	if err = d.space.loadMiniStream(root.Start, int64(root.Size)); err != nil {
		return err
	}

	if d.opts.StreamCacheSize > 0 {
		d.cache, err = arc.NewARC[int, []byte](d.opts.StreamCacheSize)
		if err != nil {
			return fmt.Errorf("cfb: stream cache: %w", err)
		}
	}
	if wdoc.Debug {
		logger.Debugf(nil, "opened v%d compound file: %d-byte sectors, %d sectors, %d FAT entries, %d mini FAT entries",
			h.MajorVersion, h.sectorSize(), d.space.nsec, len(d.space.fat), len(d.space.minifat))
	}
	return nil
}

// SectorSize returns the regular sector size in bytes.
func (d *Document) SectorSize() int {
	return d.header.sectorSize()
}

// Version returns the major version of the container (3 or 4).
func (d *Document) Version() int {
	return int(d.header.MajorVersion)
}
