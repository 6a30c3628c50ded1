// Package cache provides the transcript feature index used to annotate
// cleavage sites.
package cache

import (
	"sort"
	"sync"

	"github.com/biogo/store/interval"
)

// Feature types kept from the annotation.
const (
	FeatureExon       = "exon"
	FeatureCDS        = "CDS"
	FeatureStartCodon = "start_codon"
	FeatureStopCodon  = "stop_codon"
)

// SiteWindow is the distance within which two cleavage sites on the same
// transcript are considered the same event.
const SiteWindow = 20

// Feature is a single annotation interval. Coordinates are 0-based half-open.
type Feature struct {
	Chrom        string
	Type         string
	Start        int
	End          int
	Strand       int8
	TranscriptID string
	GeneID       string
	GeneName     string
}

// Transcript holds the features of one transcript and the values derived
// from them. Feature indices are -1 when the feature was not seen.
type Transcript struct {
	ID       string
	GeneID   string
	GeneName string
	Chrom    string
	Strand   int8 // +1 or -1
	Start    int  // span start (0-based)
	End      int  // span end (exclusive)
	Features []Feature

	CDSStart   int // first CDS feature
	CDSEnd     int // last CDS feature
	MaxFeature int // feature with the largest end
	StartCodon int
	StopCodon  int

	// UTR3 is the 3'UTR, 0-based half-open, or nil when the CDS is unresolved.
	UTR3 *interval.IntRange

	mu    sync.Mutex
	sites []int
}

// NewTranscript builds a transcript from its features and derives CDS
// indices, span and 3'UTR. Features are ordered by start coordinate first.
func NewTranscript(features []Feature) *Transcript {
	feats := make([]Feature, len(features))
	copy(feats, features)
	sort.SliceStable(feats, func(i, j int) bool {
		return feats[i].Start < feats[j].Start
	})

	first := feats[0]
	t := &Transcript{
		ID:         first.TranscriptID,
		GeneID:     first.GeneID,
		GeneName:   first.GeneName,
		Chrom:      first.Chrom,
		Strand:     first.Strand,
		Start:      first.Start,
		End:        first.End,
		Features:   feats,
		CDSStart:   -1,
		CDSEnd:     -1,
		MaxFeature: -1,
		StartCodon: -1,
		StopCodon:  -1,
	}

	for i, f := range feats {
		if t.MaxFeature < 0 || f.End > feats[t.MaxFeature].End {
			t.MaxFeature = i
		}
		if f.Start < t.Start {
			t.Start = f.Start
		}
		if f.End > t.End {
			t.End = f.End
		}
		switch f.Type {
		case FeatureCDS:
			if t.CDSStart < 0 {
				t.CDSStart = i
			}
			t.CDSEnd = i
		case FeatureStartCodon:
			t.StartCodon = i
		case FeatureStopCodon:
			t.StopCodon = i
		}
	}

	t.UTR3 = t.deriveUTR3()
	return t
}

// deriveUTR3 places the 3'UTR three bases past the CDS to skip the stop codon.
func (t *Transcript) deriveUTR3() *interval.IntRange {
	if t.CDSStart < 0 || t.CDSEnd < 0 {
		return nil
	}
	if t.Strand < 0 {
		cdsStart := t.Features[t.CDSStart].Start
		if t.Start < cdsStart-3 {
			return &interval.IntRange{Start: t.Start, End: cdsStart - 2}
		}
		return nil
	}
	cdsEnd := t.Features[t.CDSEnd].End
	maxEnd := t.Features[t.MaxFeature].End
	if maxEnd > cdsEnd+3 {
		return &interval.IntRange{Start: cdsEnd + 2, End: maxEnd}
	}
	return nil
}

// IsCoding reports whether both CDS boundaries are known.
func (t *Transcript) IsCoding() bool {
	return t.CDSStart >= 0 && t.CDSEnd >= 0
}

// HasUTR3 reports whether a 3'UTR could be derived.
func (t *Transcript) HasUTR3() bool {
	return t.UTR3 != nil
}

// ThreePrimeEnd returns the 0-based position of the transcript's last base in
// transcription order.
func (t *Transcript) ThreePrimeEnd() int {
	if t.Strand < 0 {
		return t.Start
	}
	return t.End - 1
}

// StrandSymbol returns "+" or "-".
func (t *Transcript) StrandSymbol() string {
	return StrandSymbol(t.Strand)
}

// StrandSymbol formats a +1/-1 strand.
func StrandSymbol(s int8) string {
	if s < 0 {
		return "-"
	}
	return "+"
}

// recordSite appends pos and reports whether a previously recorded site lies
// within SiteWindow of it.
func (t *Transcript) recordSite(pos int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	nearby := false
	for _, s := range t.sites {
		if abs(s-pos) <= SiteWindow {
			nearby = true
			break
		}
	}
	t.sites = append(t.sites, pos)
	return nearby
}

// Sites returns a copy of the cleavage sites attributed to t.
func (t *Transcript) Sites() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.sites...)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
