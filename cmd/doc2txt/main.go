// Command doc2txt converts Word 97 documents to plain text files, one per
// non-empty subdocument. Arguments may be glob patterns including "**", and
// inputs ending in .xz are decompressed first.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/therootcompany/xz"
	"golang.org/x/exp/mmap"

	"github.com/pbnjay/wdoc"
	"github.com/pbnjay/wdoc/doc"
)

var (
	logfile        = flag.String("l", "", "save processing logs to `filename.txt`")
	pretend        = flag.Bool("p", false, "pretend to output .txt")
	infoFile       = flag.String("i", "results.txt", "`filename` to record stats about the process")
	outDir         = flag.String("o", ".", "write text files into `dir`")
	removeNewlines = flag.Bool("r", true, "replace embedded tabs and line breaks in paragraphs with spaces")
	trimSpaces     = flag.Bool("w", true, "trim whitespace from paragraphs")
	skipBlanks     = flag.Bool("b", true, "discard blank paragraphs from the output")
	strict         = flag.Bool("strict", false, "fail on malformed formatting instead of skipping it")
	cpuprofile     = flag.String("cpuprofile", "", "write cpu profile to file")
)

func main() {
	timeFormat := "2006-01-02 15:04:05"
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if *logfile != "" {
		fo, err := os.Create(*logfile)
		if err != nil {
			log.Fatal(err)
		}
		defer fo.Close()
		log.SetOutput(fo)
	}

	fstats, err := os.OpenFile(*infoFile, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		log.Fatal(err)
	}
	defer fstats.Close()
	pos, err := fstats.Seek(0, io.SeekEnd)
	if err != nil {
		log.Fatal(err)
	}
	if pos == 0 {
		fmt.Fprintf(fstats, "time\tfilename\tpart\tparagraphs\tcharacters\terrors\n")
	}

	for _, pattern := range flag.Args() {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			log.Printf("bad pattern '%s': %v", pattern, err)
			continue
		}
		if len(matches) == 0 {
			log.Printf("no files match '%s'", pattern)
		}
		for _, fn := range matches {
			nowFmt := time.Now().Format(timeFormat)
			results, err := processFile(fn)
			if err != nil {
				// returned errors are fatal
				fmt.Fprintf(fstats, "%s\t%s\t-\t-\t-\t%s\n", nowFmt, fn, err.Error())
				continue
			}

			for _, res := range results {
				e := "-"
				if res.Err != nil {
					e = res.Err.Error()
				}
				fmt.Fprintf(fstats, "%s\t%s\t%s\t%d\t%d\t%s\n", nowFmt, res.Filename, res.Part,
					res.NumParagraphs, res.NumChars, e)
			}
		}
	}
}

var (
	sanitize = regexp.MustCompile("[^a-zA-Z0-9]+")
	newlines = regexp.MustCompile("[ \v\t\f]+")
)

type stats struct {
	Filename      string
	Part          string
	NumParagraphs int
	NumChars      int
	Err           error
}

type Flusher interface {
	Flush() error
}

var cfbSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// readInput returns the file contents. Plain files are mapped so globbed
// files that are not compound files are rejected without reading them; the
// decoder keeps its buffer, so accepted files are copied out once.
func readInput(fn string) ([]byte, error) {
	if strings.HasSuffix(fn, ".xz") {
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r, err := xz.NewReader(f, xz.DefaultDictMax)
		if err != nil {
			return nil, fmt.Errorf("xz: %w", err)
		}
		return io.ReadAll(r)
	}

	m, err := mmap.Open(fn)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	if m.Len() < len(cfbSignature) {
		return nil, fmt.Errorf("%d bytes is too short for a document", m.Len())
	}
	for i, c := range cfbSignature {
		if m.At(i) != c {
			return nil, errors.New("not a compound file")
		}
	}
	data := make([]byte, m.Len())
	if _, err = m.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, err
	}
	return data, nil
}

func processFile(fn string) ([]stats, error) {
	log.Printf("Opening file '%s' ...", fn)
	data, err := readInput(fn)
	if err != nil {
		return nil, err
	}
	opts := wdoc.DefaultOptions()
	opts.Strict = *strict
	d, err := doc.OpenBytesWithOptions(data, opts)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	if d.IsEncrypted() {
		return nil, fmt.Errorf("document is protected with %s", d.Encryption())
	}

	results := []stats{}

	base := strings.TrimSuffix(fn, ".xz")
	fn2 := filepath.Base(strings.TrimSuffix(base, filepath.Ext(base)))

	parts, err := d.List()
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		ps := stats{
			Filename: fn,
			Part:     part,
		}
		log.Printf("  Reading '%s'...", part)
		c, err := d.Get(part)
		if err != nil {
			ps.Err = err
			results = append(results, ps)
			continue
		}
		if c.IsEmpty() {
			log.Println("    Empty part. Skipping.")
			results = append(results, ps)
			continue
		}

		name := fn2 + ".txt"
		if part != "main" {
			name = fn2 + "." + sanitize.ReplaceAllString(part, "_") + ".txt"
		}
		var w io.Writer = io.Discard
		if !*pretend {
			f, err := os.Create(filepath.Join(*outDir, name))
			if err != nil {
				return nil, err
			}
			defer f.Close()
			w = bufio.NewWriter(f)
		}

		for c.Next() {
			x := c.Text()
			if *removeNewlines {
				x = newlines.ReplaceAllString(x, " ")
			}
			if *trimSpaces {
				x = strings.TrimSpace(x)
			}
			if x == "" && *skipBlanks {
				continue
			}
			fmt.Fprintln(w, x)
			ps.NumParagraphs++
			ps.NumChars += len([]rune(x))
		}
		ps.Err = c.Err()
		results = append(results, ps)

		if ff, ok := w.(Flusher); ok {
			ff.Flush()
		}
	}
	return results, nil
}
