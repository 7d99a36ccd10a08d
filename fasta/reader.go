// Package fasta reads protein sequences in FASTA format.
package fasta

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	bcbfasta "github.com/TuftsBCB/io/fasta"
	"github.com/TuftsBCB/seq"

	"github.com/davecao/tappm-cli/internal/errutil"
)

// Record is one sequence of a FASTA file.
type Record struct {
	Header

	// The header line without the leading '>'
	Line string

	// Residues in upper case
	Seq []byte
}

// lineFilter blanks out '#' comment lines and records the line number of
// every header, so that the line numbers reported by the underlying
// reader stay those of the input.
type lineFilter struct {
	r       *bufio.Reader
	pending []byte
	lineno  int
	headers []int
	err     error
}

func (f *lineFilter) Read(p []byte) (int, error) {

	for len(f.pending) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		line, err := f.r.ReadBytes('\n')
		if err != nil {
			f.err = err
			if len(line) == 0 {
				continue
			}
		}
		f.lineno++

		line = bytes.TrimSpace(line)
		switch {
		case len(line) > 0 && line[0] == '#':
			line = line[:0]
		case len(line) > 0 && line[0] == '>':
			if len(bytes.TrimSpace(bytes.TrimLeft(line, ">"))) == 0 {
				f.err = fmt.Errorf("line %d: empty header", f.lineno)
				continue
			}
			f.headers = append(f.headers, f.lineno)
		}
		f.pending = append(append(f.pending[:0], line...), '\n')
	}

	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

// Reader reads FASTA records one at a time.  Blank lines and lines
// starting with '#' are skipped.
type Reader struct {
	fr     *bcbfasta.Reader
	lines  *lineFilter
	format HeaderFormat
	n      int // records returned so far
}

// NewReader returns a Reader that parses headers with format.
func NewReader(r io.Reader, format HeaderFormat) *Reader {
	lines := &lineFilter{r: bufio.NewReader(r)}
	return &Reader{fr: bcbfasta.NewReader(lines), lines: lines, format: format}
}

// Read returns the next record, or io.EOF when there are no more.
func (rd *Reader) Read() (*Record, error) {

	s, err := rd.fr.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		if rd.lines.err != nil && rd.lines.err != io.EOF {
			return nil, rd.lines.err
		}
		return nil, err
	}

	lineno := rd.lines.headers[rd.n]
	rd.n++

	h, err := ParseHeader(rd.format, s.Name)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", lineno, err)
	}

	return &Record{Header: h, Line: s.Name, Seq: s.Bytes()}, nil
}

// ReadAll reads all remaining records.  Identifiers must be unique.
func (rd *Reader) ReadAll() ([]*Record, error) {
	var recs []*Record
	seen := make(map[string]bool)
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		if seen[rec.Identifier] {
			return nil, fmt.Errorf("duplicate sequence identifier %q", rec.Identifier)
		}
		seen[rec.Identifier] = true
		recs = append(recs, rec)
	}
}

// ReadFile reads all records of a file.  Files ending in ".gz" are
// decompressed and "-" is standard input.
func ReadFile(path string, format HeaderFormat) (recs []*Record, err error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errutil.Combine(err, rc.Close())
	}()
	recs, err = NewReader(rc, format).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

type gzipFile struct {
	*gzip.Reader
	fh *os.File
}

func (g gzipFile) Close() error {
	return errutil.Combine(g.Reader.Close(), g.fh.Close())
}

func openReader(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".gz") {
		gr, err := gzip.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, err
		}
		return gzipFile{Reader: gr, fh: fh}, nil
	}
	return fh, nil
}

// Write writes records in FASTA format with lines of at most width
// residues.  A width of zero or less does not wrap.
func Write(w io.Writer, recs []*Record, width int) error {
	fw := bcbfasta.NewWriter(w)
	fw.Columns = width
	for _, rec := range recs {
		line := rec.Line
		if line == "" {
			line = rec.Identifier
		}
		if err := fw.Write(seq.NewSequenceString(line, string(rec.Seq))); err != nil {
			return err
		}
	}
	return fw.Flush()
}
