package polya

import (
	"context"

	"github.com/biogo/hts/sam"
	"go.uber.org/zap"

	"github.com/inodb/vibe-polya/internal/align"
	"github.com/inodb/vibe-polya/internal/blat"
	"github.com/inodb/vibe-polya/internal/genome"
)

// Config holds the tail and bridge thresholds.
type Config struct {
	MinAT         int   // minimum tail bases in an imperfect tail
	MaxDiff       Ratio // non-tail bases allowed in tails and bridges
	MaxDiffLink   int   // non-tail bases allowed in a link mate
	MinBridgeSize int   // minimum clipped bases in a bridge read
	TrimQual      int   // trim read bases with Phred <= TrimQual; 0 disables

	// ExtendedBridges re-aligns clipped reads that fail the bridge test to
	// find tails preceded by genomic sequence. Requires an aligner.
	ExtendedBridges bool
	// BlatFilter drops bridge reads that align entirely to the genome.
	// Requires an aligner.
	BlatFilter bool
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MinAT:         4,
		MaxDiff:       Ratio{X: 1, Y: 5},
		MaxDiffLink:   2,
		MinBridgeSize: 1,
		TrimQual:      3,
	}
}

// Contig is one contig alignment prepared for detection.
type Contig struct {
	Name  string
	Chrom string // genome sequence name as used by the genome source
	Seq   []byte // contig sequence in its own orientation
	Tr    *align.Translator
}

// Strand returns the contig's alignment orientation.
func (c *Contig) Strand() int8 {
	return c.Tr.Strand
}

// toGenome expresses a contig-oriented sequence in genome orientation.
func (c *Contig) toGenome(s []byte) []byte {
	if c.Tr.Strand < 0 {
		return genome.RevComp(s)
	}
	return s
}

// BridgeRead is a read whose clipped part looks like a tail.
type BridgeRead struct {
	Read    *sam.Record
	Clipped []byte // clipped bases in genome orientation
	Pos     int    // genome position of the read's last matched base
}

// Candidate is a putative cleavage event at one end of a contig.
type Candidate struct {
	Side        Side
	Base        byte // 'A' or 'T'
	Pos         int  // 0-based genome position of the last aligned base before the tail
	LastMatched int  // contig position of that base
	Tail        []byte
	TailReads   int
	Bridges     []BridgeRead
	Links       []LinkPair
}

// HasTail reports whether the contig itself carries the tail.
func (c *Candidate) HasTail() bool {
	return c.Tail != nil
}

// MaxBridgeLen returns the longest clipped bridge sequence.
func (c *Candidate) MaxBridgeLen() int {
	n := 0
	for _, b := range c.Bridges {
		n = max(n, len(b.Clipped))
	}
	return n
}

// MaxLinkLen returns the longest tested mate sequence.
func (c *Candidate) MaxLinkLen() int {
	n := 0
	for _, l := range c.Links {
		n = max(n, len(l.Seq))
	}
	return n
}

// Detector finds tail and bridge evidence for contig alignments. It only
// reads shared state and is safe for concurrent use.
type Detector struct {
	cfg     Config
	genome  genome.Source
	reads   *align.ReadStore
	aligner blat.Aligner
	logger  *zap.Logger
}

// NewDetector creates a detector. reads may be nil, in which case no read
// evidence is collected.
func NewDetector(cfg Config, g genome.Source, reads *align.ReadStore) *Detector {
	if reads == nil {
		reads = align.NewReadStore()
	}
	return &Detector{
		cfg:    cfg,
		genome: g,
		reads:  reads,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for debug messages.
func (d *Detector) SetLogger(l *zap.Logger) {
	d.logger = l
}

// SetAligner sets the aligner used for extended bridges and the genomic
// bridge filter.
func (d *Detector) SetAligner(a blat.Aligner) {
	d.aligner = a
}

// Config returns the detector thresholds.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect runs tail detection followed by bridge detection and merges the
// two: bridge groups at the position of a tail candidate on the same side
// are attached to it, others become bridge-only candidates. Aligner failures
// only remove evidence and are logged.
func (d *Detector) Detect(ctx context.Context, c *Contig) []*Candidate {
	cands := d.FindTails(c)
	groups, rest := d.FindBridges(c)
	if d.aligner != nil && d.cfg.ExtendedBridges {
		ext, err := d.FindExtendedBridges(ctx, c, rest)
		if err != nil {
			d.logger.Debug("extended bridge search failed",
				zap.String("contig", c.Name), zap.Error(err))
		}
		groups = append(groups, ext...)
	}
	cands = MergeBridges(cands, d.dropHomopolymerGroups(c, groups))
	if d.aligner != nil && d.cfg.BlatFilter {
		filtered, err := d.DropGenomicBridges(ctx, c, cands)
		if err != nil {
			d.logger.Debug("genomic bridge filter failed",
				zap.String("contig", c.Name), zap.Error(err))
		} else {
			cands = filtered
		}
	}
	return cands
}

// FindTails examines the clipped ends of a contig for a polyA/polyT tail.
func (d *Detector) FindTails(c *Contig) []*Candidate {
	if len(c.Seq) != c.Tr.QueryLen {
		d.logger.Debug("contig length disagrees with alignment",
			zap.String("contig", c.Name),
			zap.Int("seq_len", len(c.Seq)),
			zap.Int("cigar_len", c.Tr.QueryLen))
		return nil
	}

	lo, hi := c.Tr.QueryBounds()
	var cands []*Candidate
	for _, side := range []Side{SideStart, SideEnd} {
		var lastMatched int
		var clipped []byte
		switch side {
		case SideStart:
			if lo <= 0 {
				continue
			}
			lastMatched, clipped = lo, c.Seq[:lo]
		case SideEnd:
			if hi >= len(c.Seq)-1 {
				continue
			}
			lastMatched, clipped = hi, c.Seq[hi+1:]
		}

		pos, ok := c.Tr.TargetPos(lastMatched)
		if !ok {
			continue
		}
		tail := c.toGenome(clipped)

		for _, base := range tailBases {
			perfect := IsPolyATail(tail, base, 1, perfectTail)
			imperfect := IsPolyATail(tail, base, d.cfg.MinAT, d.cfg.MaxDiff)
			if !perfect && !imperfect {
				continue
			}
			if len(tail) == 1 && InHomopolymer(d.genome, c.Chrom, pos, len(tail), base) {
				d.logger.Debug("tail next to genomic homopolymer",
					zap.String("contig", c.Name),
					zap.Stringer("side", side),
					zap.Int("pos", pos))
				break
			}
			cands = append(cands, &Candidate{
				Side:        side,
				Base:        base,
				Pos:         pos,
				LastMatched: lastMatched,
				Tail:        tail,
				TailReads:   d.countTailReads(c.Name, lastMatched, side),
			})
			break
		}
	}
	return cands
}

// countTailReads counts ungapped reads spanning the junction between the
// last matched contig base and the tail.
func (d *Detector) countTailReads(contig string, lastMatched int, side Side) int {
	lo, hi := lastMatched, lastMatched+1
	if side == SideStart {
		lo, hi = lastMatched-1, lastMatched
	}
	n := 0
	for _, r := range d.reads.Contig(contig) {
		if len(r.Cigar) != 1 || r.Cigar[0].Type().Consumes().Reference == 0 {
			continue
		}
		if r.Pos <= lo && r.End() > hi {
			n++
		}
	}
	return n
}
