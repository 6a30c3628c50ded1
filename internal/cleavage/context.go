// Package cleavage attributes polyA evidence found on contigs to annotated
// transcripts and turns it into cleavage site rows.
package cleavage

import (
	"errors"
	"sort"

	"github.com/biogo/hts/sam"

	"github.com/inodb/vibe-polya/internal/align"
	"github.com/inodb/vibe-polya/internal/cache"
	"github.com/inodb/vibe-polya/internal/genome"
	"github.com/inodb/vibe-polya/internal/polya"
)

// ImpliedWindow is the largest distance between a contig end and a
// transcript end for which the transcript end is reported as a site.
const ImpliedWindow = cache.SiteWindow

// Reasons a contig alignment is skipped.
var (
	ErrUnmapped      = errors.New("alignment is unmapped")
	ErrNoTranscripts = errors.New("no overlapping transcripts")
	ErrNoSequence    = errors.New("contig sequence unavailable")
)

// Closeness is the distance between a contig's distal end and a
// transcript's 3' end.
type Closeness struct {
	Transcript *cache.Transcript
	Distance   int
}

// AlignmentContext holds everything known about one contig alignment while
// it is processed.
type AlignmentContext struct {
	Record *sam.Record
	Contig *polya.Contig

	// Chrom is the chromosome name used for annotation and genome lookups.
	Chrom string
	// Strand is the transcript strand inferred for the contig. In
	// strand-specific mode it equals the alignment strand.
	Strand int8

	Overlapping []*cache.Transcript
	// Close lists transcripts on Strand by distance to the contig end.
	Close   []Closeness
	Closest Closeness

	// ReportImplied is cleared once a candidate site makes the implied
	// transcript end redundant.
	ReportImplied bool
}

// Prepare builds the context for rec. Contig sequences come from contigs
// when present, otherwise from the record itself. strandSpecific restricts
// transcripts to the alignment strand.
func Prepare(index *cache.Index, contigs *genome.Sequences, aliases genome.ChromAliases, rec *sam.Record, strandSpecific bool) (*AlignmentContext, error) {
	if !align.IsMapped(rec) {
		return nil, ErrUnmapped
	}
	alignStrand := align.Strand(rec)
	chrom := aliases.Name(rec.Ref.Name())

	overlapping := index.Overlapping(chrom, rec.Pos, rec.End())
	if strandSpecific {
		kept := overlapping[:0:0]
		for _, t := range overlapping {
			if t.Strand == alignStrand {
				kept = append(kept, t)
			}
		}
		overlapping = kept
	}
	if len(overlapping) == 0 {
		return nil, ErrNoTranscripts
	}

	strand := alignStrand
	if !strandSpecific {
		strand = majorityStrand(overlapping)
	}

	closeList := closeTranscripts(overlapping, strand, rec)
	if len(closeList) == 0 {
		return nil, ErrNoTranscripts
	}
	closest := pickClosest(closeList)

	tr, err := align.NewTranslator(rec.Cigar, rec.Pos, alignStrand)
	if err != nil {
		return nil, err
	}

	seq := contigSeq(contigs, rec)
	if seq == nil {
		return nil, ErrNoSequence
	}

	return &AlignmentContext{
		Record: rec,
		Contig: &polya.Contig{
			Name:  rec.Name,
			Chrom: chrom,
			Seq:   seq,
			Tr:    tr,
		},
		Chrom:         chrom,
		Strand:        strand,
		Overlapping:   overlapping,
		Close:         closeList,
		Closest:       closest,
		ReportImplied: closest.Distance <= ImpliedWindow,
	}, nil
}

// ImpliedSite returns the 0-based genome position of the contig end on the
// transcript strand.
func (a *AlignmentContext) ImpliedSite() int {
	if a.Strand < 0 {
		return a.Record.Pos
	}
	return a.Record.End() - 1
}

// majorityStrand returns the strand carried by most transcripts, '+' on ties.
func majorityStrand(ts []*cache.Transcript) int8 {
	plus := 0
	for _, t := range ts {
		if t.Strand > 0 {
			plus++
		}
	}
	if plus*2 >= len(ts) {
		return 1
	}
	return -1
}

// closeTranscripts orders transcripts on strand by the distance between
// their 3' end and the alignment's distal end.
func closeTranscripts(ts []*cache.Transcript, strand int8, rec *sam.Record) []Closeness {
	var out []Closeness
	for _, t := range ts {
		if t.Strand != strand {
			continue
		}
		d := t.End - rec.End()
		if strand < 0 {
			d = t.Start - rec.Pos
		}
		out = append(out, Closeness{Transcript: t, Distance: abs(d)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// pickClosest prefers a transcript with a 3'UTR within ImpliedWindow.
func pickClosest(cl []Closeness) Closeness {
	for _, c := range cl {
		if c.Distance > ImpliedWindow {
			break
		}
		if c.Transcript.HasUTR3() {
			return c
		}
	}
	return cl[0]
}

func contigSeq(contigs *genome.Sequences, rec *sam.Record) []byte {
	if contigs != nil {
		if s, ok := contigs.Get(rec.Name); ok {
			return s
		}
	}
	if rec.Seq.Length == 0 {
		return nil
	}
	s := rec.Seq.Expand()
	if rec.Flags&sam.Reverse != 0 {
		s = genome.RevComp(s)
	}
	return s
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
