// Package polya detects polyA tail evidence in contigs and in the reads
// aligned to them.
package polya

import (
	"bytes"

	"github.com/inodb/vibe-polya/internal/genome"
)

// Ratio allows at most X bases other than the tail base for every Y tail
// bases.
type Ratio struct {
	X int
	Y int
}

// perfectTail accepts a sequence made only of the tail base.
var perfectTail = Ratio{X: 0, Y: 1}

// Side names the end of a contig or read that holds a clip.
type Side int

const (
	SideNone Side = iota
	SideStart
	SideEnd
)

func (s Side) String() string {
	switch s {
	case SideStart:
		return "start"
	case SideEnd:
		return "end"
	}
	return "none"
}

// tailBases are tried in this order; the first match wins.
var tailBases = []byte{'A', 'T'}

// IsPolyATail reports whether seq could be a polyA (base 'A') or polyT
// (base 'T') tail: it holds at least minLen copies of base, and the ratio of
// base to other bases is at least r.Y/r.X. With r.X == 0 every base must
// match.
func IsPolyATail(seq []byte, base byte, minLen int, r Ratio) bool {
	if len(seq) == 0 {
		return false
	}

	n := bytes.Count(bytes.ToUpper(seq), []byte{base})
	if n == 0 || n < minLen {
		return false
	}

	other := len(seq) - n
	if other == 0 {
		return true
	}
	if r.X == 0 {
		return false
	}
	return n*r.X >= other*r.Y
}

// IsBridgeReadGood reports whether a clipped read sequence supports a tail:
// either it is a run of base of any length, or it passes IsPolyATail.
func IsBridgeReadGood(seq []byte, base byte, minLen int, r Ratio) bool {
	if len(seq) == 0 {
		return false
	}
	if isRun(seq, base) {
		return true
	}
	return IsPolyATail(seq, base, minLen, r)
}

// isRun reports whether every base of seq equals base, ignoring case.
func isRun(seq []byte, base byte) bool {
	for _, c := range seq {
		if upper(c) != base {
			return false
		}
	}
	return true
}

func upper(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// Trim removes a run of low quality bases (Phred <= threshold) from one end
// of seq. When runs exist at both ends, hint chooses the end; without a hint
// the longer run is removed and equal runs leave seq untouched. A hint also
// suppresses trimming of a lone run at the other end. Missing qualities
// (0xff) never count as low quality.
func Trim(seq, qual []byte, threshold int, hint Side) []byte {
	if threshold <= 0 || len(qual) != len(seq) || len(seq) == 0 {
		return seq
	}

	poor := func(q byte) bool { return q != 0xff && int(q) <= threshold }

	head := 0
	for head < len(qual) && poor(qual[head]) {
		head++
	}
	tail := 0
	for tail < len(qual) && poor(qual[len(qual)-1-tail]) {
		tail++
	}

	trimStart := func() []byte { return seq[head:] }
	trimEnd := func() []byte { return seq[:len(seq)-tail] }

	switch {
	case head > 0 && tail == 0:
		if hint != SideEnd {
			return trimStart()
		}
	case tail > 0 && head == 0:
		if hint != SideStart {
			return trimEnd()
		}
	case head > 0 && tail > 0:
		switch hint {
		case SideStart:
			return trimStart()
		case SideEnd:
			return trimEnd()
		}
		if head > tail {
			return trimStart()
		}
		if tail > head {
			return trimEnd()
		}
	}
	return seq
}

// InHomopolymer reports whether a run of base already sits in the genome
// next to pos, so that a tail of tailLen bases there is indistinguishable
// from the edge of a genomic homopolymer. The window spans max(5, 2*tailLen)
// bases on each side of pos and the run must touch pos or one of its two
// neighbours. A fetch error means no evidence of a homopolymer.
func InHomopolymer(src genome.Source, chrom string, pos, tailLen int, base byte) bool {
	length := max(5, 2*tailLen)
	window, err := src.Fetch(chrom, pos-length, pos+length+1)
	if err != nil {
		return false
	}

	homo := bytes.Repeat([]byte{base}, length)
	mid := length // index of pos
	for i := 0; i+length <= len(window); i++ {
		if !bytes.Equal(window[i:i+length], homo) {
			continue
		}
		if i <= mid+1 && i+length-1 >= mid-1 {
			return true
		}
	}
	return false
}
