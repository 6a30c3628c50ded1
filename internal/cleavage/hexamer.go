package cleavage

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/inodb/vibe-polya/internal/genome"
)

// Motifs lists the polyadenylation signal hexamers by rank, strongest first.
var Motifs = []string{
	"AATAAA", "ATTAAA", "AGTAAA", "TATAAA",
	"CATAAA", "GATAAA", "AATATA", "AATACA",
	"AATAGA", "AAAAAG", "ACTAAA", "AAGAAA",
	"AATGAA", "TTTAAA", "AAAACA", "GGGGCT",
}

var motifRank = func() map[string]int {
	m := make(map[string]int, len(Motifs))
	for i, s := range Motifs {
		m[s] = i + 1
	}
	return m
}()

// hexamerFlank is the number of bases scanned on each side of a site.
const hexamerFlank = 50

// Hexamer is a motif hit near a cleavage site.
type Hexamer struct {
	// Pos is the 0-based start of a forward hit or the end (exclusive) of a
	// reverse complement hit.
	Pos    int
	Rank   int
	Strand int8
}

// Motif returns the motif sequence for h's rank.
func (h Hexamer) Motif() string {
	if h.Rank < 1 || h.Rank > len(Motifs) {
		return ""
	}
	return Motifs[h.Rank-1]
}

// FindHexamers scans the genome around the 0-based site. Without strand
// information both strands of the flanks are searched and every hit is
// kept. With it only the upstream flank on strand is searched and the best
// ranked hit is kept.
func FindHexamers(src genome.Source, chrom string, site int, strand int8, strandSpecific bool) []Hexamer {
	if !strandSpecific {
		start, win := fetchWindow(src, chrom, site-hexamerFlank+1, site+hexamerFlank+1)
		var hits []Hexamer
		for i := 0; i+6 <= len(win); i++ {
			hex := win[i : i+6]
			if r, ok := motifRank[string(hex)]; ok {
				hits = append(hits, Hexamer{Pos: start + i, Rank: r, Strand: 1})
			}
			if r, ok := motifRank[string(genome.RevComp(hex))]; ok {
				hits = append(hits, Hexamer{Pos: start + i + 6, Rank: r, Strand: -1})
			}
		}
		return hits
	}

	var best *Hexamer
	keep := func(h Hexamer) {
		if best == nil || h.Rank < best.Rank {
			best = &h
		}
	}
	if strand > 0 {
		start, win := fetchWindow(src, chrom, site-hexamerFlank+1, site+1)
		for i := 0; i+6 <= len(win); i++ {
			if r, ok := motifRank[string(win[i:i+6])]; ok {
				keep(Hexamer{Pos: start + i, Rank: r, Strand: 1})
			}
		}
	} else {
		start, win := fetchWindow(src, chrom, site+1, site+hexamerFlank+1)
		for i := 0; i+6 <= len(win); i++ {
			if r, ok := motifRank[string(genome.RevComp(win[i:i+6]))]; ok {
				keep(Hexamer{Pos: start + i + 6, Rank: r, Strand: -1})
			}
		}
	}
	if best == nil {
		return nil
	}
	return []Hexamer{*best}
}

// fetchWindow returns [start, end) clipped at the chromosome start, upper
// cased, or nothing when the window cannot be fetched.
func fetchWindow(src genome.Source, chrom string, start, end int) (int, []byte) {
	start = max(start, 0)
	seq, err := src.Fetch(chrom, start, end)
	if err != nil {
		return start, nil
	}
	return start, bytes.ToUpper(seq)
}

// FormatHexamers renders hits as "pos:rank" joined by ';', or "-".
func FormatHexamers(hs []Hexamer) string {
	if len(hs) == 0 {
		return "-"
	}
	parts := make([]string, len(hs))
	for i, h := range hs {
		parts[i] = strconv.Itoa(h.Pos) + ":" + strconv.Itoa(h.Rank)
	}
	return strings.Join(parts, ";")
}
