// Package align converts contig alignments into coordinate blocks and
// provides access to SAM/BAM alignment records.
package align

import (
	"errors"
	"sort"

	"github.com/biogo/hts/sam"
)

// ErrNoBlocks is returned when an alignment cannot be translated into blocks:
// the CIGAR is empty, begins with a deletion, or its first retained operation
// is not a match.
var ErrNoBlocks = errors.New("alignment yields no blocks")

// Block is one ungapped aligned segment.
//
// T is the 0-based genome position of the segment's leftmost base and Q is the
// 0-based contig position aligned to it. On the reverse strand Q is the
// highest contig position of the segment and contig positions decrease as T
// increases.
type Block struct {
	T   int
	Q   int
	Len int
}

// Translator maps positions between genome space and contig space for a
// single contig alignment. All positions are 0-based base indices; contig
// positions are expressed in the contig's own orientation.
type Translator struct {
	Strand   int8 // +1 or -1, the contig's alignment orientation
	Blocks   []Block
	QueryLen int
}

// NewTranslator builds blocks from a CIGAR whose first aligned base sits at
// refStart (0-based). Leading clips shift the first contig position; trailing
// clips are ignored. Equal and Mismatch count as matches.
func NewTranslator(cigar sam.Cigar, refStart int, strand int8) (*Translator, error) {
	if len(cigar) == 0 {
		return nil, ErrNoBlocks
	}

	qlen := QueryLen(cigar)
	step := 1
	q := 0
	if strand < 0 {
		step = -1
		q = qlen - 1
	}
	t := refStart

	var blocks []Block
	leading := true
	for _, co := range cigar {
		n := co.Len()
		switch co.Type() {
		case sam.CigarSoftClipped, sam.CigarHardClipped:
			if leading {
				q += step * n
			}
			continue
		case sam.CigarPadded:
			continue
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			blocks = append(blocks, Block{T: t, Q: q, Len: n})
			t += n
			q += step * n
		case sam.CigarInsertion:
			if leading {
				return nil, ErrNoBlocks
			}
			q += step * n
		case sam.CigarDeletion, sam.CigarSkipped:
			if leading {
				return nil, ErrNoBlocks
			}
			t += n
		default:
			return nil, ErrNoBlocks
		}
		leading = false
	}

	if len(blocks) == 0 {
		return nil, ErrNoBlocks
	}

	return &Translator{Strand: strand, Blocks: blocks, QueryLen: qlen}, nil
}

// QueryLen returns the full contig length implied by a CIGAR: every operation
// consuming the query plus hard clips.
func QueryLen(cigar sam.Cigar) int {
	n := 0
	for _, co := range cigar {
		if co.Type() == sam.CigarHardClipped || co.Type().Consumes().Query > 0 {
			n += co.Len()
		}
	}
	return n
}

func (tr *Translator) step() int {
	if tr.Strand < 0 {
		return -1
	}
	return 1
}

// QueryPos returns the contig position aligned to genome position t. A
// position inside an intron or deletion maps to the nearest block endpoint;
// ok is false outside the aligned span.
func (tr *Translator) QueryPos(t int) (q int, ok bool) {
	i, off, ok := locate(tr.Blocks, t, func(b Block) int { return b.T })
	if !ok {
		return 0, false
	}
	return tr.Blocks[i].Q + tr.step()*off, true
}

// TargetPos returns the genome position aligned to contig position q. It is
// the inverse of QueryPos for positions inside blocks; a position inside an
// insertion maps to the nearest block endpoint.
func (tr *Translator) TargetPos(q int) (t int, ok bool) {
	step := tr.step()
	i, off, ok := locate(tr.Blocks, step*q, func(b Block) int { return step * b.Q })
	if !ok {
		return 0, false
	}
	return tr.Blocks[i].T + off, true
}

// QueryBounds returns the lowest and highest aligned contig positions
// (inclusive).
func (tr *Translator) QueryBounds() (lo, hi int) {
	first, last := tr.Blocks[0], tr.Blocks[len(tr.Blocks)-1]
	if tr.Strand < 0 {
		return last.Q - last.Len + 1, first.Q
	}
	return first.Q, last.Q + last.Len - 1
}

// TargetBounds returns the aligned genome span as a half-open interval.
func (tr *Translator) TargetBounds() (start, end int) {
	last := tr.Blocks[len(tr.Blocks)-1]
	return tr.Blocks[0].T, last.T + last.Len
}

// locate finds the block covering x, where key gives each block's first
// coordinate in a space increasing with block order. Coordinates in the gap
// between two blocks snap to the closer endpoint, the left one on ties.
func locate(blocks []Block, x int, key func(Block) int) (idx, off int, ok bool) {
	if len(blocks) == 0 {
		return 0, 0, false
	}
	last := blocks[len(blocks)-1]
	if x < key(blocks[0]) || x >= key(last)+last.Len {
		return 0, 0, false
	}

	i := sort.Search(len(blocks), func(i int) bool { return key(blocks[i]) > x }) - 1
	b := blocks[i]
	off = x - key(b)
	if off < b.Len {
		return i, off, true
	}

	next := blocks[i+1]
	if x-(key(b)+b.Len-1) <= key(next)-x {
		return i, b.Len - 1, true
	}
	return i + 1, 0, true
}
