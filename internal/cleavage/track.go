package cleavage

import (
	"strconv"
	"strings"

	"github.com/inodb/vibe-polya/internal/cache"
)

// HexamerColours holds the BED item colour for each motif rank.
var HexamerColours = []string{
	"255,0,0", "255,100,100", "255,150,150", "255,200,200",
	"0,255,0", "100,255,100", "150,255,150", "200,255,200",
	"0,0,255", "100,100,255", "150,150,255", "200,200,255",
	"255,0,255", "255,100,255", "255,150,255", "255,200,255",
}

const utrColour = "255,0,0"

// Tracks collects genome browser lines for reported rows.
type Tracks struct {
	Plus     []string // bedGraph lines for '+' transcripts
	Minus    []string // bedGraph lines for '-' transcripts
	Hexamers []string
	UTRs     []string

	seenUTR map[int]bool
}

// NewTracks returns empty tracks.
func NewTracks() *Tracks {
	return &Tracks{seenUTR: make(map[int]bool)}
}

// Add appends the lines describing r.
func (t *Tracks) Add(r ResultRow) {
	expr := tabJoin(r.Chrom, strconv.Itoa(r.Site), strconv.Itoa(r.Site+1), r.TailBridgeReads.String())
	if r.TranscriptStrand < 0 {
		t.Minus = append(t.Minus, expr)
	} else {
		t.Plus = append(t.Plus, expr)
	}

	for i := len(r.Hexamers) - 1; i >= 0; i-- {
		h := r.Hexamers[i]
		if h.Motif() == "" {
			continue
		}
		start, end := h.Pos, h.Pos+6
		if h.Strand < 0 {
			start, end = h.Pos-6, h.Pos
		}
		s, e := strconv.Itoa(start), strconv.Itoa(end)
		score := strconv.FormatFloat(float64(h.Rank)*62.5, 'f', 1, 64)
		t.Hexamers = append(t.Hexamers, tabJoin(r.Chrom, s, e, h.Motif(), score,
			cache.StrandSymbol(h.Strand), s, e, HexamerColours[h.Rank-1]))
	}

	if r.UTR3 != nil {
		key := cantorPair(r.UTR3.Start, r.UTR3.End)
		if !t.seenUTR[key] {
			t.seenUTR[key] = true
			s, e := strconv.Itoa(r.UTR3.Start), strconv.Itoa(r.UTR3.End)
			t.UTRs = append(t.UTRs, tabJoin(r.Chrom, s, e, joinOrDash(r.Contigs), "0",
				cache.StrandSymbol(r.TranscriptStrand), s, e, utrColour))
		}
	}
}

// cantorPair maps a pair of non-negative integers to a unique integer.
func cantorPair(a, b int) int {
	return (a+b)*(a+b+1)/2 + b
}

func tabJoin(fields ...string) string {
	return strings.Join(fields, "\t")
}
