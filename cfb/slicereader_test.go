package cfb

import (
	"io"
	"testing"
)

var testSlices = [][]byte{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	{10, 11, 12, 13, 14, 15, 16, 17, 18, 19},
	{20, 21, 22, 23, 24, 25, 26, 27, 28, 29},
	{30, 31, 32, 33, 34, 35, 36, 37, 38, 39},
	{40, 41, 42, 43, 44, 45, 46, 47, 48, 49},
}

func readOrdered(t *testing.T, sr *SliceReader) {
	t.Helper()
	var uno, old [1]byte
	_, err := sr.Read(uno[:])
	for err == nil {
		old[0] = uno[0]
		_, err = sr.Read(uno[:])
		if err == nil && uno[0] != (old[0]+1) {
			t.Errorf("read data out of order new=%d, old=%d", uno[0], old[0])
		}
	}
}

func TestSliceReader(t *testing.T) {
	sr := &SliceReader{
		Data: testSlices,
	}
	readOrdered(t, sr)
	sr.Seek(0, io.SeekStart)
	readOrdered(t, sr)

	var uno [1]byte
	for _, c := range []struct {
		offset int64
		whence int
		want   byte
	}{
		{10, io.SeekStart, 10},
		{35, io.SeekStart, 35},
		{7, io.SeekCurrent, 43},
		{-9, io.SeekCurrent, 35},
		{-1, io.SeekEnd, 49},
	} {
		sr.Seek(c.offset, c.whence)
		sr.Read(uno[:])
		if uno[0] != c.want {
			t.Errorf("unexpected element %d (expected %d)", uno[0], c.want)
		}
	}
	if _, err := sr.Seek(-100, io.SeekCurrent); err == nil {
		t.Error("negative seek succeeded")
	}
}

func TestSliceReaderAt(t *testing.T) {
	sr := &SliceReader{Data: testSlices}
	if sr.Size() != 50 {
		t.Fatalf("size = %d", sr.Size())
	}
	buf := make([]byte, 12)
	n, err := sr.ReadAt(buf, 18)
	if err != nil || n != 12 {
		t.Fatalf("ReadAt = %d, %v", n, err)
	}
	for i, v := range buf {
		if int(v) != 18+i {
			t.Fatalf("byte %d = %d", i, v)
		}
	}
	n, err = sr.ReadAt(buf, 45)
	if err != io.EOF || n != 5 {
		t.Fatalf("short ReadAt = %d, %v", n, err)
	}
}
