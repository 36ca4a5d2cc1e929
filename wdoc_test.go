package wdoc

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type nopSource struct{ name string }

func (s nopSource) List() ([]string, error)             { return []string{s.name}, nil }
func (s nopSource) Get(name string) (Collection, error) { return nil, fmt.Errorf("no %s", name) }
func (s nopSource) Close() error                        { return nil }

func TestWrapErr(t *testing.T) {
	specific := errors.New("specific")
	err := WrapErr(specific, ErrBadFib, ErrInvalidFormat)
	if err.Error() != "specific" {
		t.Fatalf("message should come from the first error, got %q", err)
	}
	for _, target := range []error{specific, ErrBadFib, ErrInvalidFormat} {
		if !errors.Is(err, target) {
			t.Fatalf("%v should match %v", err, target)
		}
	}
	if errors.Is(err, ErrBadFKP) {
		t.Fatal("unrelated error matched")
	}
	if WrapErr(specific) != specific {
		t.Fatal("a single error should not be wrapped")
	}
	if !errors.Is(Invalid(ErrCyclicChain), ErrInvalidFormat) {
		t.Fatal("Invalid should categorize the error")
	}
}

func TestOpenRegistry(t *testing.T) {
	var tried []string
	Register("test-skip", 100, func(fn string) (Source, error) {
		tried = append(tried, "skip")
		return nil, ErrNotInFormat
	})
	Register("test-take", 101, func(fn string) (Source, error) {
		tried = append(tried, "take")
		if !strings.HasSuffix(fn, ".take") {
			return nil, ErrNotInFormat
		}
		return nopSource{name: fn}, nil
	})
	Register("test-fail", 102, func(fn string) (Source, error) {
		tried = append(tried, "fail")
		return nil, WrapErr(errors.New("corrupt"), ErrInvalidFormat)
	})

	formats := strings.Join(Formats(), ",")
	if !strings.Contains(formats, "test-skip,test-take,test-fail") {
		t.Fatalf("formats not in priority order: %s", formats)
	}

	src, err := Open("a.take")
	if err != nil {
		t.Fatal(err)
	}
	if names, _ := src.List(); names[0] != "a.take" {
		t.Fatalf("unexpected source %v", names)
	}
	if strings.Join(tried, ",") != "skip,take" {
		t.Fatalf("unexpected probe order %v", tried)
	}

	// a format that recognizes the file but fails to decode it stops the search
	tried = nil
	if _, err = Open("a.other"); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected the decode failure, got %v", err)
	}
	if strings.Join(tried, ",") != "skip,take,fail" {
		t.Fatalf("unexpected probe order %v", tried)
	}
}

func TestOptions(t *testing.T) {
	o := DefaultOptions()
	if o.Workers() < 1 {
		t.Fatal("at least one worker is required")
	}
	o.Parallelism = 3
	if o.Workers() != 3 {
		t.Fatalf("expected 3 workers, got %d", o.Workers())
	}
}
