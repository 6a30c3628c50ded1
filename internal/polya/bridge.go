package polya

import (
	"sort"

	"github.com/biogo/hts/sam"
	"go.uber.org/zap"
)

// BridgeGroup collects bridge reads sharing a clip side, contig position and
// tail base.
type BridgeGroup struct {
	Side        Side
	LastMatched int
	Base        byte
	Pos         int // genome position of LastMatched
	Reads       []BridgeRead
}

type groupKey struct {
	side        Side
	lastMatched int
	base        byte
}

// clippedRead is a read with a single clip at one edge and a matched block.
type clippedRead struct {
	rec         *sam.Record
	side        Side
	lastMatched int
	clipped     []byte
	qual        []byte
}

// edgeClip returns the clip layout of reads with exactly two CIGAR
// operations, a soft or hard clip and a match. Hard clipped bases are not
// in the record, so the clipped sequence is empty for them.
func edgeClip(r *sam.Record) (clippedRead, bool) {
	if len(r.Cigar) != 2 || r.Flags&sam.Unmapped != 0 {
		return clippedRead{}, false
	}
	isClip := func(co sam.CigarOp) bool {
		t := co.Type()
		return t == sam.CigarSoftClipped || t == sam.CigarHardClipped
	}
	isMatch := func(co sam.CigarOp) bool {
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			return true
		}
		return false
	}

	seq := r.Seq.Expand()
	qual := r.Qual
	if len(qual) != len(seq) {
		qual = nil
	}
	slice := func(b []byte, lo, hi int) []byte {
		if b == nil {
			return nil
		}
		return b[lo:hi]
	}

	first, last := r.Cigar[0], r.Cigar[1]
	switch {
	case isClip(first) && isMatch(last):
		n := 0
		if first.Type() == sam.CigarSoftClipped {
			n = first.Len()
		}
		if n > len(seq) {
			return clippedRead{}, false
		}
		return clippedRead{
			rec:         r,
			side:        SideStart,
			lastMatched: r.Pos,
			clipped:     seq[:n],
			qual:        slice(qual, 0, n),
		}, true
	case isMatch(first) && isClip(last):
		n := 0
		if last.Type() == sam.CigarSoftClipped {
			n = last.Len()
		}
		if n > len(seq) {
			return clippedRead{}, false
		}
		return clippedRead{
			rec:         r,
			side:        SideEnd,
			lastMatched: r.End() - 1,
			clipped:     seq[len(seq)-n:],
			qual:        slice(qual, len(qual)-n, len(qual)),
		}, true
	}
	return clippedRead{}, false
}

// extendTo moves matched bases beyond the contig's aligned query bounds into
// the clip so that the read's last matched base sits on the boundary. It
// reports false when the read holds too few bases.
func (cr *clippedRead) extendTo(lo, hi int) bool {
	seq := cr.rec.Seq.Expand()
	qual := cr.rec.Qual
	if len(qual) != len(seq) {
		qual = nil
	}
	switch {
	case cr.side == SideStart && cr.lastMatched < lo:
		n := len(cr.clipped) + lo - cr.lastMatched
		if n > len(seq) {
			return false
		}
		cr.lastMatched = lo
		cr.clipped = seq[:n]
		if qual != nil {
			cr.qual = qual[:n]
		}
	case cr.side == SideEnd && cr.lastMatched > hi:
		n := len(cr.clipped) + cr.lastMatched - hi
		if n > len(seq) {
			return false
		}
		cr.lastMatched = hi
		cr.clipped = seq[len(seq)-n:]
		if qual != nil {
			cr.qual = qual[len(qual)-n:]
		}
	}
	return true
}

// FindBridges collects reads on the contig whose clipped part is a polyA or
// polyT tail and groups them by side, contig position and base. Edge clipped
// reads that pass the size filter but not the tail test are returned in rest
// for the extended bridge search.
func (d *Detector) FindBridges(c *Contig) (groups []*BridgeGroup, rest []*sam.Record) {
	lo, hi := c.Tr.QueryBounds()

	byKey := make(map[groupKey]*BridgeGroup)
	for _, r := range d.reads.Contig(c.Name) {
		cr, ok := edgeClip(r)
		if !ok || !cr.extendTo(lo, hi) {
			continue
		}

		clipped := Trim(cr.clipped, cr.qual, d.cfg.TrimQual, cr.side)
		if len(clipped) < 1 || len(clipped) < d.cfg.MinBridgeSize {
			continue
		}
		clipped = c.toGenome(clipped)

		pos, ok := c.Tr.TargetPos(cr.lastMatched)
		if !ok {
			continue
		}

		picked := false
		for _, base := range tailBases {
			if !IsBridgeReadGood(clipped, base, d.cfg.MinAT, d.cfg.MaxDiff) {
				continue
			}
			key := groupKey{side: cr.side, lastMatched: cr.lastMatched, base: base}
			g, ok := byKey[key]
			if !ok {
				g = &BridgeGroup{Side: cr.side, LastMatched: cr.lastMatched, Base: base, Pos: pos}
				byKey[key] = g
				groups = append(groups, g)
			}
			g.Reads = append(g.Reads, BridgeRead{Read: r, Clipped: clipped, Pos: pos})
			picked = true
			break
		}
		if !picked {
			rest = append(rest, r)
		}
	}
	return groups, rest
}

// dropHomopolymerGroups removes every group in which any read's tail sits
// next to a genomic run of the tail base.
func (d *Detector) dropHomopolymerGroups(c *Contig, groups []*BridgeGroup) []*BridgeGroup {
	kept := groups[:0]
	for _, g := range groups {
		bad := false
		for _, br := range g.Reads {
			if InHomopolymer(d.genome, c.Chrom, br.Pos, len(br.Clipped), g.Base) {
				bad = true
				break
			}
		}
		if bad {
			d.logger.Debug("bridge group next to genomic homopolymer",
				zap.String("contig", c.Name),
				zap.Stringer("side", g.Side),
				zap.Int("pos", g.Pos))
			continue
		}
		kept = append(kept, g)
	}
	return kept
}

// MergeBridges attaches bridge groups to tail candidates on the same side and
// genome position. Groups without a tail candidate become bridge-only
// candidates, one per side, position and base. Candidates keep tail
// candidates first, then bridge-only candidates ordered by side and position.
func MergeBridges(cands []*Candidate, groups []*BridgeGroup) []*Candidate {
	var extra []*Candidate
	for _, g := range groups {
		var target *Candidate
		for _, c := range cands {
			if c.HasTail() && c.Side == g.Side && c.Pos == g.Pos {
				target = c
				break
			}
		}
		if target == nil {
			for _, c := range extra {
				if c.Side == g.Side && c.Pos == g.Pos && c.Base == g.Base {
					target = c
					break
				}
			}
		}
		if target == nil {
			target = &Candidate{
				Side:        g.Side,
				Base:        g.Base,
				Pos:         g.Pos,
				LastMatched: g.LastMatched,
			}
			extra = append(extra, target)
		}
		target.Bridges = append(target.Bridges, g.Reads...)
	}

	sort.SliceStable(extra, func(i, j int) bool {
		if extra[i].Side != extra[j].Side {
			return extra[i].Side < extra[j].Side
		}
		return extra[i].Pos < extra[j].Pos
	})
	return append(cands, extra...)
}
