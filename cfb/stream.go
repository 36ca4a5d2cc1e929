package cfb

import (
	"fmt"
	"io"
	"strings"

	"github.com/pbnjay/wdoc"
)

// chainOf returns the sector slices holding the contents of a stream entry.
func (d *Document) chainOf(e *DirEntry) ([][]byte, error) {
	if e.Kind != KindStream && e.Kind != KindRoot {
		return nil, fmt.Errorf("cfb: %q is a %s, not a stream", e.Name, e.Kind)
	}
	if e.Size == 0 {
		return nil, nil
	}
	var (
		parts [][]byte
		err   error
	)
	if e.Kind == KindStream && e.Size < uint64(d.header.MiniStreamCutoffSize) {
		parts, err = d.space.readMiniChain(e.Start, int64(e.Size))
	} else {
		parts, err = d.space.readChain(e.Start, int64(e.Size))
	}
	if err != nil {
		return nil, fmt.Errorf("cfb: stream %q: %w", e.Name, err)
	}
	return parts, nil
}

// Stream returns the full contents of a stream entry.
// The returned slice may be shared and must not be modified.
func (d *Document) Stream(e *DirEntry) ([]byte, error) {
	if d.cache != nil {
		if b, ok := d.cache.Get(e.Index); ok {
			return b, nil
		}
	}
	parts, err := d.chainOf(e)
	if err != nil {
		return nil, err
	}
	b := flatten(parts, int64(e.Size))
	if d.cache != nil {
		d.cache.Add(e.Index, b)
	}
	return b, nil
}

// ReadAt returns length bytes of a stream entry starting at offset.
func (d *Document) ReadAt(e *DirEntry, offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 || uint64(offset+length) > e.Size {
		return nil, fmt.Errorf("cfb: read [%d,%d) of %q (%d bytes): %w", offset, offset+length, e.Name, e.Size, wdoc.ErrOutOfBounds)
	}
	b, err := d.Stream(e)
	if err != nil {
		return nil, err
	}
	return b[offset : offset+length], nil
}

func (d *Document) lookup(name string) (*DirEntry, error) {
	e, ok := d.Find(strings.Split(name, "/")...)
	if !ok || (e.Kind != KindStream) {
		return nil, fmt.Errorf("cfb: stream '%s': %w", name, wdoc.ErrStreamNotFound)
	}
	return e, nil
}

// OpenStream returns the contents of the named stream. Nested streams are
// addressed with slash-separated paths such as "ObjectPool/_1234/CompObj".
func (d *Document) OpenStream(name string) ([]byte, error) {
	e, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	return d.Stream(e)
}

// List the streams contained in the document.
func (d *Document) List() ([]string, error) {
	var res []string
	for _, e := range d.Entries() {
		if e.Kind == KindStream {
			res = append(res, d.Path(e))
		}
	}
	return res, nil
}

// Open the named stream contained in the document.
func (d *Document) Open(name string) (io.ReadSeeker, error) {
	e, err := d.lookup(name)
	if err != nil {
		return nil, err
	}
	parts, err := d.chainOf(e)
	if err != nil {
		return nil, err
	}
	return &SliceReader{Data: parts}, nil
}
