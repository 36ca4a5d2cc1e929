package wdoc

import "runtime"

// Options configures how documents are opened and decoded.
type Options struct {
	// CodePage overrides the Windows code page used to decode 8-bit text.
	// Zero derives it from the document language, falling back to 1252.
	CodePage int

	// Parallelism bounds the number of goroutines used to decode text pieces.
	// Zero means runtime.GOMAXPROCS(0).
	Parallelism int

	// ResolveCacheSize is the number of resolved property snapshots to
	// memoize per document. Zero disables the cache.
	ResolveCacheSize int

	// StreamCacheSize is the number of decoded container streams to keep
	// in memory per document. Zero disables the cache.
	StreamCacheSize int

	// Strict turns recoverable format oddities into errors.
	Strict bool
}

// DefaultOptions returns the options used by Open.
func DefaultOptions() Options {
	return Options{
		ResolveCacheSize: 4096,
		StreamCacheSize:  16,
	}
}

// Workers returns the effective piece decoding parallelism.
func (o Options) Workers() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}
