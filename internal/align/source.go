package align

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// ErrUnknownFormat is returned for alignment files that are neither SAM nor BAM.
var ErrUnknownFormat = errors.New("unrecognized alignment format")

// RecordReader iterates alignment records. Both *sam.Reader and *bam.Reader
// satisfy it. Read returns io.EOF after the last record.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// File is an open SAM or BAM file.
type File struct {
	f      *os.File
	r      RecordReader
	header *sam.Header
	close  func() error
}

// Open opens a SAM or BAM file, choosing the decoder by extension.
func Open(path string) (*File, error) {
	format := detectFormat(path)
	if format == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alignments: %w", err)
	}

	af := &File{f: f}
	switch format {
	case "bam":
		br, err := bam.NewReader(f, 0)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("read BAM header: %w", err)
		}
		af.r, af.header, af.close = br, br.Header(), br.Close
	case "sam":
		sr, err := sam.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("read SAM header: %w", err)
		}
		af.r, af.header = sr, sr.Header()
	}
	return af, nil
}

// detectFormat maps a file extension to "sam", "bam" or "".
func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bam":
		return "bam"
	case ".sam":
		return "sam"
	}
	return ""
}

// Header returns the file header.
func (af *File) Header() *sam.Header {
	return af.header
}

// Read returns the next record, or io.EOF.
func (af *File) Read() (*sam.Record, error) {
	return af.r.Read()
}

// Close releases the underlying file.
func (af *File) Close() error {
	var err error
	if af.close != nil {
		err = af.close()
	}
	if cerr := af.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadAll drains r into a slice.
func ReadAll(r RecordReader) ([]*sam.Record, error) {
	var recs []*sam.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, fmt.Errorf("read alignment record: %w", err)
		}
		recs = append(recs, rec)
	}
}

// Strand returns -1 for reverse-strand records and +1 otherwise.
func Strand(r *sam.Record) int8 {
	if r.Flags&sam.Reverse != 0 {
		return -1
	}
	return 1
}

// IsMapped reports whether r has a usable placement.
func IsMapped(r *sam.Record) bool {
	return r.Flags&sam.Unmapped == 0 && r.Ref != nil && r.Pos >= 0 && len(r.Cigar) > 0
}
