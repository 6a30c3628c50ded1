// Package genome provides random access to reference and contig sequences.
package genome

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
	"github.com/biogo/hts/fai"
)

var (
	// ErrOutOfRange is returned when a fetch extends past either end of a sequence.
	ErrOutOfRange = errors.New("genome: range out of bounds")
	// ErrUnknownSequence is returned when the named sequence does not exist.
	ErrUnknownSequence = errors.New("genome: unknown sequence")
)

// Source fetches upper-cased sequence for a 0-based half-open interval.
type Source interface {
	Fetch(chrom string, start, end int) ([]byte, error)
}

// Sequences is an in-memory sequence collection.
type Sequences struct {
	seqs  map[string][]byte
	names []string
}

// NewSequences creates an empty collection.
func NewSequences() *Sequences {
	return &Sequences{seqs: make(map[string][]byte)}
}

// Add stores a sequence under name, replacing any previous one.
func (s *Sequences) Add(name string, seq []byte) {
	if _, ok := s.seqs[name]; !ok {
		s.names = append(s.names, name)
	}
	s.seqs[name] = bytes.ToUpper(seq)
}

// Get returns the full sequence for name.
func (s *Sequences) Get(name string) ([]byte, bool) {
	seq, ok := s.seqs[name]
	return seq, ok
}

// Names returns sequence names in insertion order.
func (s *Sequences) Names() []string {
	return s.names
}

// Fetch implements Source.
func (s *Sequences) Fetch(chrom string, start, end int) ([]byte, error) {
	seq, ok := s.seqs[chrom]
	if !ok {
		return nil, fmt.Errorf("%q: %w", chrom, ErrUnknownSequence)
	}
	if start < 0 || end > len(seq) || start > end {
		return nil, fmt.Errorf("%s:%d-%d: %w", chrom, start, end, ErrOutOfRange)
	}
	return seq[start:end], nil
}

// ReadFASTA parses FASTA records from r. Record names are the first word of
// the header line.
func ReadFASTA(r io.Reader) (*Sequences, error) {
	s := NewSequences()
	sc := seqio.NewScanner(fasta.NewReader(r, linear.NewSeq("", nil, alphabet.DNAredundant)))
	for sc.Next() {
		rec := sc.Seq().(*linear.Seq)
		s.Add(firstWord(rec.Name()), lettersToBytes(rec.Seq))
	}
	if err := sc.Error(); err != nil {
		return nil, fmt.Errorf("parse FASTA: %w", err)
	}
	return s, nil
}

// LoadFASTA reads a FASTA file into memory; gzipped files are detected by
// their .gz suffix.
func LoadFASTA(path string) (*Sequences, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}
	return ReadFASTA(reader)
}

// Indexed serves fetches from a FASTA file with a samtools .fai index.
type Indexed struct {
	mu  sync.Mutex
	f   *os.File
	idx fai.Index
	fa  *fai.File
}

// OpenIndexed opens path using the index at path+".fai".
func OpenIndexed(path string) (*Indexed, error) {
	ir, err := os.Open(path + ".fai")
	if err != nil {
		return nil, fmt.Errorf("open FASTA index: %w", err)
	}
	idx, err := fai.ReadFrom(ir)
	ir.Close()
	if err != nil {
		return nil, fmt.Errorf("read FASTA index: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	return &Indexed{f: f, idx: idx, fa: fai.NewFile(f, idx)}, nil
}

// Fetch implements Source. Reads are serialized because the index shares one
// file offset.
func (g *Indexed) Fetch(chrom string, start, end int) ([]byte, error) {
	rec, ok := g.idx[chrom]
	if !ok {
		return nil, fmt.Errorf("%q: %w", chrom, ErrUnknownSequence)
	}
	if start < 0 || end > rec.Length || start > end {
		return nil, fmt.Errorf("%s:%d-%d: %w", chrom, start, end, ErrOutOfRange)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	sr, err := g.fa.SeqRange(chrom, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch %s:%d-%d: %w", chrom, start, end, err)
	}
	b, err := io.ReadAll(sr)
	if err != nil {
		return nil, fmt.Errorf("fetch %s:%d-%d: %w", chrom, start, end, err)
	}
	return bytes.ToUpper(b), nil
}

// Close closes the FASTA file.
func (g *Indexed) Close() error {
	return g.f.Close()
}

// Open returns an indexed source when path+".fai" exists, and otherwise
// loads the whole file. The returned closer is a no-op for in-memory sources.
func Open(path string) (Source, io.Closer, error) {
	if _, err := os.Stat(path + ".fai"); err == nil && !strings.HasSuffix(path, ".gz") {
		g, err := OpenIndexed(path)
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	}
	s, err := LoadFASTA(path)
	if err != nil {
		return nil, nil, err
	}
	return s, io.NopCloser(nil), nil
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}

func lettersToBytes(l alphabet.Letters) []byte {
	b := make([]byte, len(l))
	for i, c := range l {
		b[i] = byte(c)
	}
	return b
}
