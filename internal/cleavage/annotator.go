package cleavage

import (
	"go.uber.org/zap"

	"github.com/inodb/vibe-polya/internal/cache"
	"github.com/inodb/vibe-polya/internal/polya"
)

// Annotation attributes a candidate to a transcript.
type Annotation struct {
	Candidate  *polya.Candidate
	Transcript *cache.Transcript
	Distance   int  // to the transcript's annotated 3' end
	WithinUTR  bool // the transcript has a 3'UTR
	Novel      bool // the site is not the annotated 3' end
}

// Annotator attributes candidates to transcripts and records the chosen
// sites in the index.
type Annotator struct {
	index   *cache.Index
	maxDist int
	logger  *zap.Logger
}

// NewAnnotator creates an annotator over index.
func NewAnnotator(index *cache.Index) *Annotator {
	return &Annotator{
		index:  index,
		logger: zap.NewNop(),
	}
}

// SetMaxDist rejects candidates further than d bases from every transcript
// end. Zero disables the limit.
func (a *Annotator) SetMaxDist(d int) {
	a.maxDist = d
}

// SetLogger sets the logger for debug messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// RequiredStrand returns the transcript strand a tail on side implies for a
// contig aligned on alignStrand. A tail before the aligned block reads
// against the contig's orientation.
func RequiredStrand(side polya.Side, alignStrand int8) int8 {
	if side == polya.SideStart {
		return -alignStrand
	}
	return alignStrand
}

// Consistent reports whether a tail of base can end a transcript on strand.
func Consistent(strand int8, base byte) bool {
	return (strand > 0 && base == 'A') || (strand < 0 && base == 'T')
}

// Annotate chooses a transcript for cand and records the site. It returns
// nil when the candidate is rejected.
func (a *Annotator) Annotate(ac *AlignmentContext, cand *polya.Candidate) *Annotation {
	ann := a.Choose(ac, cand)
	if ann != nil {
		a.Record(ac, ann)
	}
	return ann
}

// Choose picks the transcript cand belongs to without touching the index.
// Among transcripts on the required strand, one with a 3'UTR ending within
// ImpliedWindow of the site wins; otherwise the nearest end wins.
func (a *Annotator) Choose(ac *AlignmentContext, cand *polya.Candidate) *Annotation {
	strand := RequiredStrand(cand.Side, ac.Contig.Strand())
	if !Consistent(strand, cand.Base) {
		a.logger.Debug("tail base inconsistent with strand",
			zap.String("contig", ac.Contig.Name),
			zap.Stringer("side", cand.Side),
			zap.String("base", string(cand.Base)))
		return nil
	}

	var pool []Closeness
	for _, t := range ac.Overlapping {
		if t.Strand == strand {
			pool = append(pool, Closeness{Transcript: t, Distance: abs(cand.Pos - t.ThreePrimeEnd())})
		}
	}
	if len(pool) == 0 {
		a.logger.Debug("no transcript on required strand",
			zap.String("contig", ac.Contig.Name),
			zap.Int("pos", cand.Pos))
		return nil
	}

	best := -1
	for i, c := range pool {
		if c.Distance <= ImpliedWindow && c.Transcript.HasUTR3() &&
			(best < 0 || c.Distance < pool[best].Distance) {
			best = i
		}
	}
	if best < 0 {
		best = 0
		for i, c := range pool {
			if c.Distance < pool[best].Distance {
				best = i
			}
		}
	}
	chosen := pool[best]

	if a.maxDist > 0 && chosen.Distance > a.maxDist {
		a.logger.Debug("site too far from transcript end",
			zap.String("contig", ac.Contig.Name),
			zap.String("transcript", chosen.Transcript.ID),
			zap.Int("distance", chosen.Distance))
		return nil
	}

	return &Annotation{
		Candidate:  cand,
		Transcript: chosen.Transcript,
		Distance:   chosen.Distance,
		WithinUTR:  chosen.Transcript.HasUTR3(),
		Novel:      chosen.Distance != 0,
	}
}

// Record adds the site to its transcript. A site close to the annotated end
// or to a site recorded earlier makes the contig's implied site redundant.
func (a *Annotator) Record(ac *AlignmentContext, ann *Annotation) {
	nearby := a.index.RecordSite(ac.Chrom, ann.Transcript.ID, ann.Candidate.Pos)
	if nearby || ann.Distance <= ImpliedWindow {
		ac.ReportImplied = false
	}
}
