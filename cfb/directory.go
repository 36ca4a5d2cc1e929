package cfb

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/Microsoft/go-winio/pkg/guid"
	"github.com/go-restruct/restruct"
	"github.com/pbnjay/wdoc"
)

const dirEntrySize = 128

// Kind is the object type of a directory entry.
type Kind byte

const (
	KindUnknown Kind = 0x00
	KindStorage Kind = 0x01
	KindStream  Kind = 0x02
	KindRoot    Kind = 0x05
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindStream:
		return "stream"
	case KindRoot:
		return "root"
	}
	return "unknown"
}

// on-disk directory entry, 128 bytes
type direntry struct {
	Name                   [32]uint16 // 32 utf16 characters
	NameByteLen            uint16     // length of Name in bytes, including the terminator
	ObjectType             byte
	ColorFlag              byte // 0=red, 1=black
	LeftSiblingID          uint32
	RightSiblingID         uint32
	ChildID                uint32
	ClassID                [16]byte
	StateBits              uint32
	CreationTime           uint64
	ModifiedTime           uint64
	StartingSectorLocation uint32
	StreamSize             uint64
}

func (d *direntry) name() (string, bool) {
	if (d.NameByteLen&1) == 1 || d.NameByteLen > 64 || d.NameByteLen < 2 {
		return "", false
	}
	r16 := utf16.Decode(d.Name[:int(d.NameByteLen)/2])
	// trim off null terminator
	return string(r16[:len(r16)-1]), true
}

// DirEntry is a storage or stream in the compound file.
// Left, Right and Child are indices into the flat entry array, or -1.
type DirEntry struct {
	Name     string
	Kind     Kind
	CLSID    guid.GUID
	State    uint32
	Created  time.Time
	Modified time.Time
	Start    uint32
	Size     uint64

	Index int
	Left  int
	Right int
	Child int

	parent   int
	children []int
}

// EntryInfo is one line of a directory listing.
type EntryInfo struct {
	Path string
	Kind Kind
	Size uint64
}

// windows FILETIME: 100ns intervals since 1601-01-01
func filetime(v uint64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	const epochDelta = 116444736000000000
	return time.Unix(0, (int64(v)-epochDelta)*100).UTC()
}

func sibling(id uint32, n int) int {
	if id == noStream || int(id) >= n {
		return -1
	}
	return int(id)
}

// buildDirs decodes the directory stream and links each storage to its children.
func (d *Document) buildDirs() error {
	h := d.header
	parts, err := d.space.readChain(h.FirstDirectorySectorLocation, -1)
	if err != nil {
		return fmt.Errorf("cfb: directory: %w", err)
	}
	raw := flatten(parts, int64(len(parts))<<h.SectorShift)
	n := len(raw) / dirEntrySize
	if n == 0 {
		return wdoc.Invalid(fmt.Errorf("cfb: empty directory"))
	}

	d.dir = make([]*DirEntry, n)
	for i := 0; i < n; i++ {
		de := &direntry{}
		if err := restruct.Unpack(raw[i*dirEntrySize:(i+1)*dirEntrySize], binary.LittleEndian, de); err != nil {
			return wdoc.Invalid(fmt.Errorf("cfb: directory entry %d: %w", i, err))
		}
		if h.MajorVersion == 3 {
			// mask out upper 32bits
			de.StreamSize = de.StreamSize & 0xFFFFFFFF
		}
		e := &DirEntry{
			Kind:     Kind(de.ObjectType),
			CLSID:    guid.FromWindowsArray(de.ClassID),
			State:    de.StateBits,
			Created:  filetime(de.CreationTime),
			Modified: filetime(de.ModifiedTime),
			Start:    de.StartingSectorLocation,
			Size:     de.StreamSize,
			Index:    i,
			Left:     -1,
			Right:    -1,
			Child:    -1,
			parent:   -1,
		}
		switch e.Kind {
		case KindStorage, KindStream, KindRoot:
			name, ok := de.name()
			if !ok {
				if d.opts.Strict {
					return wdoc.Invalid(fmt.Errorf("cfb: directory entry %d has an invalid name length %d", i, de.NameByteLen))
				}
				name = fmt.Sprintf("<invalid name %d>", i)
			}
			e.Name = name
			e.Left = sibling(de.LeftSiblingID, n)
			e.Right = sibling(de.RightSiblingID, n)
			e.Child = sibling(de.ChildID, n)
		default:
			// free slot, kept so indices stay stable
			e.Kind = KindUnknown
		}
		d.dir[i] = e
	}

	if d.dir[0].Kind != KindRoot {
		return wdoc.Invalid(fmt.Errorf("cfb: first directory entry is %s, not root", d.dir[0].Kind))
	}
	for i, e := range d.dir[1:] {
		if e.Kind == KindRoot {
			return wdoc.Invalid(fmt.Errorf("cfb: second root entry at %d", i+1))
		}
	}

	seen := newVisited(n)
	seen.mark(0)
	if err := d.linkChildren(0, seen); err != nil {
		return err
	}
	if wdoc.Debug {
		logger.Debugf(nil, "directory has %d slots, %d reachable entries", n, seen.count())
	}
	return nil
}

// linkChildren walks the sibling tree under storage idx in order.
func (d *Document) linkChildren(idx int, seen *visited) error {
	parent := d.dir[idx]
	var walk func(i int) error
	walk = func(i int) error {
		if i < 0 {
			return nil
		}
		e := d.dir[i]
		if seen.mark(i) {
			return wdoc.WrapErr(fmt.Errorf("cfb: directory entry %d is reachable twice", i), wdoc.ErrCyclicChain, wdoc.ErrInvalidFormat)
		}
		if e.Kind == KindUnknown {
			return wdoc.Invalid(fmt.Errorf("cfb: free directory entry %d is linked from %q", i, parent.Name))
		}
		if err := walk(e.Left); err != nil {
			return err
		}
		e.parent = idx
		parent.children = append(parent.children, i)
		if err := walk(e.Right); err != nil {
			return err
		}
		if e.Kind == KindStorage {
			return d.linkChildren(i, seen)
		}
		return nil
	}
	return walk(parent.Child)
}

// Root returns the root storage entry.
func (d *Document) Root() *DirEntry {
	return d.dir[0]
}

// Children returns the entries directly under a storage.
func (d *Document) Children(e *DirEntry) []*DirEntry {
	res := make([]*DirEntry, len(e.children))
	for i, c := range e.children {
		res[i] = d.dir[c]
	}
	return res
}

// Find looks up an entry by path from the root, comparing names case-insensitively.
// A missing segment is reported with ok=false, never an error.
func (d *Document) Find(path ...string) (*DirEntry, bool) {
	cur := d.dir[0]
	for _, seg := range path {
		var next *DirEntry
		for _, c := range cur.children {
			if strings.EqualFold(d.dir[c].Name, seg) {
				next = d.dir[c]
				break
			}
		}
		if next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Path returns the slash-separated path of e below the root.
func (d *Document) Path(e *DirEntry) string {
	var parts []string
	for ; e != nil && e.Index != 0; e = d.parentOf(e) {
		parts = append(parts, e.Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

func (d *Document) parentOf(e *DirEntry) *DirEntry {
	if e.parent < 0 {
		return nil
	}
	return d.dir[e.parent]
}

// Entries returns every reachable entry in pre-order, root first.
func (d *Document) Entries() []*DirEntry {
	var res []*DirEntry
	var walk func(e *DirEntry)
	walk = func(e *DirEntry) {
		res = append(res, e)
		for _, c := range e.children {
			walk(d.dir[c])
		}
	}
	walk(d.dir[0])
	return res
}

// ListDir returns a pre-order listing of every reachable storage and stream.
func (d *Document) ListDir() []EntryInfo {
	entries := d.Entries()
	res := make([]EntryInfo, 0, len(entries))
	for _, e := range entries {
		res = append(res, EntryInfo{Path: d.Path(e), Kind: e.Kind, Size: e.Size})
	}
	return res
}
