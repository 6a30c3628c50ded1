package polya

import (
	"bytes"

	"github.com/biogo/hts/sam"
	"go.uber.org/zap"

	"github.com/inodb/vibe-polya/internal/align"
)

const (
	// linkWindow is the genomic span past the cleavage site searched for
	// A/T tracts before link pairs are collected.
	linkWindow = 200
	// linkHomopolymer is the tract length that makes link evidence unusable.
	linkHomopolymer = 20
)

// LinkPair is a read pair with one mate anchored on the contig and the other
// mate reading through the tail.
type LinkPair struct {
	Anchor *sam.Record
	Mate   *sam.Record
	Seq    []byte // mate sequence after trimming
}

// FindLinkPairs collects link pairs supporting cand. txStrand is the strand of
// the transcript the site was attributed to; it orients the genomic window
// checked for A/T tracts downstream of the site.
func (d *Detector) FindLinkPairs(c *Contig, cand *Candidate, txStrand int8) []LinkPair {
	var anchorReverse bool
	switch cand.Side {
	case SideStart:
		anchorReverse = true
	case SideEnd:
		anchorReverse = false
	default:
		return nil
	}

	start, end := cand.Pos, cand.Pos+linkWindow
	if txStrand < 0 {
		start, end = cand.Pos-linkWindow+1, cand.Pos+1
	}
	window, err := d.genome.Fetch(c.Chrom, start, end)
	if err != nil {
		d.logger.Debug("link pair window unavailable",
			zap.String("contig", c.Name), zap.Error(err))
		return nil
	}
	if hasTract(window, 'A', linkHomopolymer) || hasTract(window, 'T', linkHomopolymer) {
		d.logger.Debug("genome has A/T tract next to site, link pairs unreliable",
			zap.String("contig", c.Name),
			zap.Int("pos", cand.Pos))
		return nil
	}

	var pairs []LinkPair
	for _, r := range d.reads.Contig(c.Name) {
		if !align.MateElsewhere(r) || !align.IsMapped(r) || len(r.Cigar) > 1 {
			continue
		}
		reverse := r.Flags&sam.Reverse != 0
		if reverse != anchorReverse {
			continue
		}
		if !anchorReverse && r.Pos > cand.LastMatched {
			continue
		}
		if anchorReverse && r.End()-1 < cand.LastMatched {
			continue
		}

		mate := d.reads.Mate(r)
		if mate == nil {
			continue
		}
		seq := Trim(mate.Seq.Expand(), mate.Qual, d.cfg.TrimQual, SideNone)
		if len(seq) == 0 {
			continue
		}
		for _, base := range tailBases {
			minLen := len(seq) - d.cfg.MaxDiffLink
			if IsBridgeReadGood(seq, base, minLen, Ratio{X: d.cfg.MaxDiffLink, Y: len(seq)}) {
				pairs = append(pairs, LinkPair{Anchor: r, Mate: mate, Seq: seq})
				break
			}
		}
	}
	return pairs
}

// hasTract reports whether seq holds n or more consecutive copies of base.
func hasTract(seq []byte, base byte, n int) bool {
	return bytes.Contains(bytes.ToUpper(seq), bytes.Repeat([]byte{base}, n))
}
