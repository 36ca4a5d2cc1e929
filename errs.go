package wdoc

import (
	"errors"

	log "github.com/dsoprea/go-logging"
)

var (
	// configure at build time by adding go build arguments:
	//   -ldflags="-X github.com/pbnjay/wdoc.loglevel=debug"
	loglevel string = "warn"

	// Debug should be set to true to expose detailed logging.
	Debug bool = (loglevel == "debug")
)

// NewLogger returns a component logger. Callers check Debug before
// emitting debug output so the default build stays quiet.
func NewLogger(noun string) *log.Logger {
	return log.NewLogger(noun)
}

// ErrNotInFormat is used to auto-detect file types using the defined OpenFunc
// It is returned by OpenFunc when the code does not detect correct file formats.
var ErrNotInFormat = errors.New("wdoc: file is not in this format")

// ErrUnknownFormat is used when wdoc does not know how to open a file format.
var ErrUnknownFormat = errors.New("wdoc: file format is not known/supported")

// ErrInvalidFormat is the category of every structural decoding failure.
// More specific errors below are always wrapped with it.
var ErrInvalidFormat = errors.New("wdoc: invalid file format")

var (
	// ErrCyclicChain is returned when a sector chain or directory tree revisits a node.
	ErrCyclicChain = errors.New("wdoc: cyclic sector chain")

	// ErrTruncatedChain is returned when a chain ends before the declared stream size.
	ErrTruncatedChain = errors.New("wdoc: truncated sector chain")

	// ErrOutOfBounds is returned for reads past the end of a stream.
	ErrOutOfBounds = errors.New("wdoc: read out of bounds")

	// ErrStreamNotFound is returned when a named stream is absent.
	ErrStreamNotFound = errors.New("wdoc: stream not found")

	// ErrBadFib is returned when the File Information Block cannot be decoded.
	ErrBadFib = errors.New("wdoc: bad file information block")

	// ErrBadPieceTable is returned for malformed CLX / piece table data.
	ErrBadPieceTable = errors.New("wdoc: bad piece table")

	// ErrBadFKP is returned for malformed formatted disk pages and bin tables.
	ErrBadFKP = errors.New("wdoc: bad formatted disk page")

	// ErrEncrypted is returned when text or properties are requested from an
	// encrypted or obfuscated document. Decryption is not supported.
	ErrEncrypted = errors.New("wdoc: document is encrypted")
)

type errx struct {
	errs []error
}

func (e errx) Error() string {
	return e.errs[0].Error()
}
func (e errx) Unwrap() error {
	if len(e.errs) > 1 {
		return WrapErr(e.errs[1:]...)
	}
	return nil
}

// Is reports whether the head of the chain matches target.
func (e errx) Is(target error) bool {
	return errors.Is(e.errs[0], target)
}

// WrapErr wraps a set of errors.
func WrapErr(e ...error) error {
	if len(e) == 1 {
		return e[0]
	}
	return errx{errs: e}
}

// Invalid wraps a specific structural error with ErrInvalidFormat.
func Invalid(e error) error {
	return WrapErr(e, ErrInvalidFormat)
}
