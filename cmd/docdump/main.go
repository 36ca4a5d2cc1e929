// Command docdump prints the contents and structure of Word 97 documents.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/pbnjay/wdoc"
	"github.com/pbnjay/wdoc/doc"
)

func main() {
	if err := Main(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func Main() error {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "USAGE: %s [-mode text|runs|ls|fib] [file1.doc file2.doc ...]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       Prints the contents of the Word documents to stdout\n")
		flag.PrintDefaults()
	}
	flagMode := flag.String("mode", "text", "what to print: text, runs, ls or fib")
	flagStrict := flag.Bool("strict", false, "fail on malformed formatting instead of skipping it")
	flagDebug := flag.Bool("debug", false, "log parser warnings")
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("a file is needed")
	}
	wdoc.Debug = *flagDebug

	opts := wdoc.DefaultOptions()
	opts.Strict = *flagStrict

	bw := bufio.NewWriter(os.Stdout)
	defer bw.Flush()
	for _, fn := range flag.Args() {
		d, err := doc.OpenWithOptions(fn, opts)
		if err != nil {
			return fmt.Errorf("open %q: %w", fn, err)
		}
		if flag.NArg() > 1 {
			fmt.Fprintf(bw, "==> %s <==\n", fn)
		}
		switch *flagMode {
		case "text":
			err = printText(bw, d)
		case "runs":
			err = printRuns(bw, d)
		case "ls":
			printDir(bw, d)
		case "fib":
			printFib(bw, d)
		default:
			err = fmt.Errorf("unknown mode %q", *flagMode)
		}
		d.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", fn, err)
		}
	}
	return nil
}

func printText(bw *bufio.Writer, d *doc.Document) error {
	parts, err := d.List()
	if err != nil {
		return err
	}
	for _, name := range parts {
		c, err := d.Get(name)
		if err != nil {
			return err
		}
		if name != "main" {
			fmt.Fprintf(bw, "\n[%s]\n", name)
		}
		for c.Next() {
			bw.WriteString(c.Text())
			bw.WriteByte('\n')
		}
		if err = c.Err(); err != nil {
			return err
		}
	}
	return nil
}

func printRuns(bw *bufio.Writer, d *doc.Document) error {
	paras, err := d.Paragraphs()
	if err != nil {
		return err
	}
	for _, p := range paras {
		fmt.Fprintf(bw, "[%d,%d) style=%q", p.CPStart, p.CPEnd, p.Style())
		if j, ok := p.Props().Justify.Get(); ok {
			fmt.Fprintf(bw, " jc=%s", j)
		}
		if p.InTable() {
			bw.WriteString(" table")
		}
		bw.WriteByte('\n')
		for _, r := range p.Runs() {
			fmt.Fprintf(bw, "  [%d,%d)", r.CPStart, r.CPEnd)
			if v, ok := r.Bold(); ok && v {
				bw.WriteString(" bold")
			}
			if v, ok := r.Italic(); ok && v {
				bw.WriteString(" italic")
			}
			if v, ok := r.Underline(); ok && v {
				bw.WriteString(" underline")
			}
			if v, ok := r.Strikethrough(); ok && v {
				bw.WriteString(" strike")
			}
			if sz, ok := r.FontSize(); ok {
				fmt.Fprintf(bw, " %gpt", sz)
			}
			if name, ok := r.FontName(); ok {
				fmt.Fprintf(bw, " %q", name)
			}
			if c, ok := r.Color(); ok {
				fmt.Fprintf(bw, " %s", c)
			}
			fmt.Fprintf(bw, " %q\n", r.Text())
		}
	}
	return nil
}

func printDir(bw *bufio.Writer, d *doc.Document) {
	for _, e := range d.ListDir() {
		fmt.Fprintf(bw, "%-8s %10d  %s\n", e.Kind, e.Size, e.Path)
	}
}

func printFib(bw *bufio.Writer, d *doc.Document) {
	fields := d.Fib().Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(bw, "%-16s %v\n", k, fields[k])
	}
	if d.IsEncrypted() {
		fmt.Fprintf(bw, "%-16s %s\n", "encryption", d.Encryption())
		return
	}
	for _, r := range d.Fib().SubdocRanges() {
		fmt.Fprintf(bw, "%-16s [%d,%d)\n", r.Kind, r.Start, r.End)
	}
}
