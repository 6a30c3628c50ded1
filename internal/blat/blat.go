// Package blat aligns short sequences against a target with the BLAT aligner
// and selects hits by how much of each query they cover.
package blat

import (
	"context"
)

// Sequence is a named nucleotide sequence passed to the aligner.
type Sequence struct {
	Name string
	Seq  []byte
}

// Hit is one PSL alignment record. Query coordinates are 0-based half-open on
// the forward strand of the query, as PSL reports them.
type Hit struct {
	Matches int
	Strand  int8
	QName   string
	QSize   int
	QStart  int
	QEnd    int
	TName   string
	TSize   int
	TStart  int
	TEnd    int
	Blocks  int
}

// Aligner aligns queries against a single target sequence.
type Aligner interface {
	Align(ctx context.Context, target Sequence, queries []Sequence) ([]Hit, error)
}

// FullyAligned returns, per query name, a single-block hit covering the whole
// query.
func FullyAligned(hits []Hit) map[string]Hit {
	m := make(map[string]Hit)
	for _, h := range hits {
		if h.Blocks == 1 && h.QStart == 0 && h.QEnd == h.QSize {
			m[h.QName] = h
		}
	}
	return m
}

// PartiallyAligned returns, per query name, a single-block hit that leaves
// exactly one end of the query unaligned. When a query has several such hits
// the one with the most matches is kept.
func PartiallyAligned(hits []Hit) map[string]Hit {
	m := make(map[string]Hit)
	for _, h := range hits {
		if h.Blocks != 1 {
			continue
		}
		headOnly := h.QStart == 0 && h.QEnd < h.QSize
		tailOnly := h.QStart > 0 && h.QEnd == h.QSize
		if !headOnly && !tailOnly {
			continue
		}
		if prev, ok := m[h.QName]; ok && prev.Matches >= h.Matches {
			continue
		}
		m[h.QName] = h
	}
	return m
}

// Unaligned returns the part of seq left unaligned by a partial hit, and
// whether that part lies at the end of the query (true) or its start.
func (h Hit) Unaligned(seq []byte) (part []byte, atEnd bool) {
	if h.QStart == 0 {
		return seq[min(h.QEnd, len(seq)):], true
	}
	return seq[:min(h.QStart, len(seq))], false
}
