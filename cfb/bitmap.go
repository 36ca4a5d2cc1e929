package cfb

import "math/bits"

// visited tracks which sector (or directory) indices a walk has touched.
type visited struct {
	size int
	data []uint
}

func newVisited(size int) *visited {
	return &visited{
		size: size,
		data: make([]uint, (size+bits.UintSize-1)/bits.UintSize),
	}
}

// mark sets idx and reports whether it was already set.
func (m *visited) mark(idx int) bool {
	w, mask := idx/bits.UintSize, uint(1)<<(idx%bits.UintSize)
	seen := m.data[w]&mask != 0
	m.data[w] |= mask
	return seen
}

func (m *visited) count() int {
	n := 0
	for _, w := range m.data {
		n += bits.OnesCount(w)
	}
	return n
}
