package polya

import (
	"context"
	"errors"
	"fmt"

	"github.com/biogo/hts/sam"

	"github.com/inodb/vibe-polya/internal/blat"
	"github.com/inodb/vibe-polya/internal/genome"
)

// genomeBuffer is how far past the contig alignment reads are re-aligned.
const genomeBuffer = 1000

type extKey struct {
	side Side
	pos  int
	base byte
}

// FindExtendedBridges re-aligns edge clipped reads to the genome next to the
// clipped contig end. A read that aligns in one block with a single unaligned
// end is a bridge read when that end is a tail; its site is the genome base
// beside the aligned block.
func (d *Detector) FindExtendedBridges(ctx context.Context, c *Contig, reads []*sam.Record) ([]*BridgeGroup, error) {
	bySide := make(map[Side][]clippedRead)
	for _, r := range reads {
		if cr, ok := edgeClip(r); ok {
			bySide[cr.side] = append(bySide[cr.side], cr)
		}
	}

	var groups []*BridgeGroup
	byKey := make(map[extKey]*BridgeGroup)
	tStart, tEnd := c.Tr.TargetBounds()
	for _, side := range []Side{SideStart, SideEnd} {
		crs := bySide[side]
		if len(crs) == 0 {
			continue
		}

		start, end := tStart, tEnd+genomeBuffer
		if (side == SideStart) == (c.Strand() > 0) {
			start, end = max(0, tStart-genomeBuffer), tEnd
		}
		target, err := d.fetchTarget(c.Chrom, start, end)
		if err != nil {
			return groups, err
		}

		queries := make([]blat.Sequence, len(crs))
		for i, cr := range crs {
			queries[i] = blat.Sequence{Name: queryName(i), Seq: cr.rec.Seq.Expand()}
		}
		hits, err := d.aligner.Align(ctx, target, queries)
		if err != nil {
			return groups, fmt.Errorf("align extended bridge reads: %w", err)
		}

		partial := blat.PartiallyAligned(hits)
		for i, cr := range crs {
			h, ok := partial[queryName(i)]
			if !ok {
				continue
			}
			part, atEnd := h.Unaligned(cr.rec.Seq.Expand())
			if len(part) < 1 || len(part) < d.cfg.MinBridgeSize {
				continue
			}
			if h.Strand < 0 {
				part = genome.RevComp(part)
			}
			pos := start + h.TStart
			if atEnd == (h.Strand > 0) {
				pos = start + h.TEnd - 1
			}

			for _, base := range tailBases {
				if !IsBridgeReadGood(part, base, d.cfg.MinAT, d.cfg.MaxDiff) {
					continue
				}
				key := extKey{side: side, pos: pos, base: base}
				g, ok := byKey[key]
				if !ok {
					lm, ok := c.Tr.QueryPos(pos)
					if !ok {
						lm = cr.lastMatched
					}
					g = &BridgeGroup{Side: side, LastMatched: lm, Base: base, Pos: pos}
					byKey[key] = g
					groups = append(groups, g)
				}
				g.Reads = append(g.Reads, BridgeRead{Read: cr.rec, Clipped: part, Pos: pos})
				break
			}
		}
	}
	return groups, nil
}

// DropGenomicBridges removes bridge reads whose whole sequence aligns to the
// genome around the contig, and drops bridge-only candidates left without
// reads.
func (d *Detector) DropGenomicBridges(ctx context.Context, c *Contig, cands []*Candidate) ([]*Candidate, error) {
	var queries []blat.Sequence
	for _, cand := range cands {
		for _, br := range cand.Bridges {
			queries = append(queries, blat.Sequence{Name: queryName(len(queries)), Seq: br.Read.Seq.Expand()})
		}
	}
	if len(queries) == 0 {
		return cands, nil
	}

	tStart, tEnd := c.Tr.TargetBounds()
	start := max(0, tStart-genomeBuffer)
	target, err := d.fetchTarget(c.Chrom, start, tEnd+genomeBuffer)
	if err != nil {
		return cands, err
	}
	hits, err := d.aligner.Align(ctx, target, queries)
	if err != nil {
		return cands, fmt.Errorf("align bridge reads: %w", err)
	}
	full := blat.FullyAligned(hits)

	kept := cands[:0]
	i := 0
	for _, cand := range cands {
		bridges := cand.Bridges[:0]
		for _, br := range cand.Bridges {
			if _, ok := full[queryName(i)]; !ok {
				bridges = append(bridges, br)
			}
			i++
		}
		cand.Bridges = bridges
		if !cand.HasTail() && len(cand.Bridges) == 0 {
			continue
		}
		kept = append(kept, cand)
	}
	return kept, nil
}

// fetchTarget fetches [start, end) of chrom, retrying without the part past
// the chromosome end when the window overhangs it.
func (d *Detector) fetchTarget(chrom string, start, end int) (blat.Sequence, error) {
	seq, err := d.genome.Fetch(chrom, start, end)
	for errors.Is(err, genome.ErrOutOfRange) && end-genomeBuffer/10 > start {
		end -= genomeBuffer / 10
		seq, err = d.genome.Fetch(chrom, start, end)
	}
	if err != nil {
		return blat.Sequence{}, fmt.Errorf("fetch %s:%d-%d: %w", chrom, start, end, err)
	}
	return blat.Sequence{Name: fmt.Sprintf("%s:%d-%d", chrom, start, end), Seq: seq}, nil
}

func queryName(i int) string {
	return fmt.Sprintf("q%d", i)
}
