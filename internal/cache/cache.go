package cache

import (
	"sort"
	"strings"

	"github.com/biogo/store/interval"
)

// Index stores transcripts by chromosome and transcript ID, with an interval
// tree per chromosome for region queries. Chromosome names are normalized, so
// "chr1" and "1" address the same entries.
type Index struct {
	chroms map[string]*chromIndex
	nextID uintptr
}

type chromIndex struct {
	transcripts map[string]*Transcript
	tree        *interval.IntTree
}

// New creates an empty index.
func New() *Index {
	return &Index{chroms: make(map[string]*chromIndex)}
}

// txSpan adapts a transcript to interval.IntInterface.
type txSpan struct {
	t  *Transcript
	id uintptr
}

func (s txSpan) Overlap(b interval.IntRange) bool {
	return s.t.End > b.Start && s.t.Start < b.End
}
func (s txSpan) ID() uintptr { return s.id }
func (s txSpan) Range() interval.IntRange {
	return interval.IntRange{Start: s.t.Start, End: s.t.End}
}

// region is a half-open query interval.
type region struct{ start, end int }

func (r region) Overlap(b interval.IntRange) bool {
	return r.end > b.Start && r.start < b.End
}
func (r region) ID() uintptr { return 0 }
func (r region) Range() interval.IntRange {
	return interval.IntRange{Start: r.start, End: r.end}
}

// AddTranscript adds a transcript to the index. A transcript with an ID
// already present on the chromosome replaces the earlier entry in lookups.
func (x *Index) AddTranscript(t *Transcript) error {
	key := normalizeChrom(t.Chrom)
	ci, ok := x.chroms[key]
	if !ok {
		ci = &chromIndex{
			transcripts: make(map[string]*Transcript),
			tree:        &interval.IntTree{},
		}
		x.chroms[key] = ci
	}
	ci.transcripts[t.ID] = t
	x.nextID++
	return ci.tree.Insert(txSpan{t: t, id: x.nextID}, false)
}

// Overlapping returns transcripts on chrom overlapping [start, end), ordered
// by start then ID.
func (x *Index) Overlapping(chrom string, start, end int) []*Transcript {
	ci, ok := x.chroms[normalizeChrom(chrom)]
	if !ok || end <= start {
		return nil
	}

	var result []*Transcript
	seen := make(map[string]bool)
	for _, e := range ci.tree.Get(region{start: start, end: end}) {
		t := e.(txSpan).t
		if seen[t.ID] || ci.transcripts[t.ID] != t {
			continue
		}
		seen[t.ID] = true
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Start != result[j].Start {
			return result[i].Start < result[j].Start
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Transcript returns the entry for id on chrom, or nil.
func (x *Index) Transcript(chrom, id string) *Transcript {
	ci, ok := x.chroms[normalizeChrom(chrom)]
	if !ok {
		return nil
	}
	return ci.transcripts[id]
}

// RecordSite attributes a cleavage site to a transcript and reports whether
// another site was already recorded within SiteWindow. It is the only
// operation that mutates the index after loading and is safe for concurrent
// use.
func (x *Index) RecordSite(chrom, id string, pos int) (nearby bool) {
	t := x.Transcript(chrom, id)
	if t == nil {
		return false
	}
	return t.recordSite(pos)
}

// Sites returns the cleavage sites recorded for a transcript.
func (x *Index) Sites(chrom, id string) []int {
	t := x.Transcript(chrom, id)
	if t == nil {
		return nil
	}
	return t.Sites()
}

// TranscriptCount returns the total number of transcripts in the index.
func (x *Index) TranscriptCount() int {
	count := 0
	for _, ci := range x.chroms {
		count += len(ci.transcripts)
	}
	return count
}

// Chromosomes returns a sorted list of normalized chromosome names.
func (x *Index) Chromosomes() []string {
	chroms := make([]string, 0, len(x.chroms))
	for chrom := range x.chroms {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	return chroms
}

// TranscriptsByChrom returns all transcripts on a chromosome ordered by ID.
func (x *Index) TranscriptsByChrom(chrom string) []*Transcript {
	ci, ok := x.chroms[normalizeChrom(chrom)]
	if !ok {
		return nil
	}
	result := make([]*Transcript, 0, len(ci.transcripts))
	for _, t := range ci.transcripts {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// normalizeChrom removes a "chr" prefix so annotation and alignment naming
// conventions meet.
func normalizeChrom(chrom string) string {
	if strings.HasPrefix(chrom, "chr") {
		return chrom[3:]
	}
	return chrom
}
