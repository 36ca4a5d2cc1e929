package cfb

import (
	"errors"
	"io"
)

// SliceReader reads a stream scattered over a list of sector slices.
type SliceReader struct {
	Data   [][]byte
	Index  uint
	Offset uint
}

func (s *SliceReader) Read(b []byte) (int, error) {
	for s.Index < uint(len(s.Data)) && s.Offset == uint(len(s.Data[s.Index])) {
		s.Offset = 0
		s.Index++
	}
	if s.Index >= uint(len(s.Data)) {
		return 0, io.EOF
	}
	n := copy(b, s.Data[s.Index][s.Offset:])
	s.Offset += uint(n)
	if s.Offset == uint(len(s.Data[s.Index])) {
		s.Offset = 0
		s.Index++
	}
	return n, nil
}

// Size returns the total length of the stream.
func (s *SliceReader) Size() int64 {
	var n int64
	for _, d := range s.Data {
		n += int64(len(d))
	}
	return n
}

func (s *SliceReader) tell() int64 {
	var n int64
	for i := uint(0); i < s.Index && i < uint(len(s.Data)); i++ {
		n += int64(len(s.Data[i]))
	}
	return n + int64(s.Offset)
}

// Seek implements io.Seeker.
func (s *SliceReader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += s.tell()
	case io.SeekEnd:
		offset += s.Size()
	default:
		return 0, errors.New("cfb: invalid whence")
	}
	if offset < 0 {
		return 0, errors.New("cfb: negative seek position")
	}
	pos := offset
	s.Index, s.Offset = 0, 0
	for s.Index < uint(len(s.Data)) && pos >= int64(len(s.Data[s.Index])) {
		pos -= int64(len(s.Data[s.Index]))
		s.Index++
	}
	s.Offset = uint(pos)
	return offset, nil
}

// ReadAt implements io.ReaderAt without moving the read position.
func (s *SliceReader) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("cfb: negative offset")
	}
	if len(b) == 0 {
		return 0, nil
	}
	n := 0
	for _, d := range s.Data {
		if off >= int64(len(d)) {
			off -= int64(len(d))
			continue
		}
		c := copy(b[n:], d[off:])
		n += c
		off = 0
		if n == len(b) {
			return n, nil
		}
	}
	return n, io.EOF
}
