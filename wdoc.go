// Package wdoc opens legacy compound-file documents (such as Word 97-2003 .doc files)
// and allows programmatic access to their text contents in a consistent interface.
package wdoc

import (
	"errors"
	"sort"
)

// Source represents a set of text collections, one per document part.
type Source interface {
	// List the individual parts (main text, footnotes, headers...) within this source.
	List() ([]string, error)

	// Get a Collection of paragraphs from the source by part name.
	Get(name string) (Collection, error)

	// Close releases any resources held by the source.
	Close() error
}

// Collection represents an iterable collection of paragraphs.
type Collection interface {
	// Next advances to the next paragraph of content.
	// It MUST be called prior to any Text() or Strings().
	Next() bool

	// Text returns the plain text of the current paragraph without its terminator.
	Text() string

	// Strings returns the text of each formatting run in the current paragraph.
	Strings() []string

	// IsEmpty returns true if there are no paragraphs.
	IsEmpty() bool

	// Err returns the last error that occured.
	Err() error
}

// OpenFunc defines a Source's instantiation function.
// It should return ErrNotInFormat immediately if filename is not of the correct file type.
type OpenFunc func(filename string) (Source, error)

// Open a document file and return a Source for accessing it's contents.
func Open(filename string) (Source, error) {
	for _, o := range srcTable {
		src, err := o.op(filename)
		if err == nil {
			return src, nil
		}
		if !errors.Is(err, ErrNotInFormat) {
			return nil, err
		}
		if Debug {
			logger.Debugf(nil, "%s is not in %s format", filename, o.name)
		}
	}
	return nil, ErrUnknownFormat
}

var logger = NewLogger("wdoc")

type srcOpenTab struct {
	name string
	pri  int
	op   OpenFunc
}

var srcTable = make([]*srcOpenTab, 0, 20)

// Register the named source as a wdoc datasource implementation.
func Register(name string, priority int, opener OpenFunc) error {
	srcTable = append(srcTable, &srcOpenTab{name: name, pri: priority, op: opener})
	sort.Slice(srcTable, func(i, j int) bool {
		return srcTable[i].pri < srcTable[j].pri
	})
	return nil
}

// Formats lists the registered format names in priority order.
func Formats() []string {
	res := make([]string, len(srcTable))
	for i, o := range srcTable {
		res[i] = o.name
	}
	return res
}
