package cleavage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-polya/internal/align"
	"github.com/inodb/vibe-polya/internal/cache"
	"github.com/inodb/vibe-polya/internal/genome"
	"github.com/inodb/vibe-polya/internal/polya"
)

// testGenome has no base repeated twice in a row and no polyA signal.
var testGenome = []byte(strings.Repeat("ACGTAGCT", 50))

type sliceReader struct {
	recs []*sam.Record
}

func (r *sliceReader) Read() (*sam.Record, error) {
	if len(r.recs) == 0 {
		return nil, io.EOF
	}
	rec := r.recs[0]
	r.recs = r.recs[1:]
	return rec, nil
}

func mustRef(t *testing.T, name string, length int) *sam.Reference {
	t.Helper()
	ref, err := sam.NewReference(name, "", "", length, nil, nil)
	require.NoError(t, err)
	return ref
}

func newRecord(t *testing.T, name string, ref *sam.Reference, pos int, cigar string, seq []byte, flags sam.Flags) *sam.Record {
	t.Helper()
	co, err := sam.ParseCigar([]byte(cigar))
	require.NoError(t, err)
	return &sam.Record{
		Name:  name,
		Ref:   ref,
		Pos:   pos,
		Cigar: co,
		Flags: flags,
		Seq:   sam.NewSeq(seq),
		Qual:  bytes.Repeat([]byte{30}, len(seq)),
	}
}

// newTranscript builds a transcript from 0-based half-open exon and CDS
// intervals. cds may be nil.
func newTranscript(id string, strand int8, exon [2]int, cds []int) *cache.Transcript {
	feats := []cache.Feature{{
		Chrom: "chr1", Type: cache.FeatureExon, Start: exon[0], End: exon[1],
		Strand: strand, TranscriptID: id, GeneID: "G" + id, GeneName: "GENE" + id,
	}}
	if cds != nil {
		feats = append(feats, cache.Feature{
			Chrom: "chr1", Type: cache.FeatureCDS, Start: cds[0], End: cds[1],
			Strand: strand, TranscriptID: id, GeneID: "G" + id, GeneName: "GENE" + id,
		})
	}
	return cache.NewTranscript(feats)
}

func newIndex(t *testing.T, ts ...*cache.Transcript) *cache.Index {
	t.Helper()
	idx := cache.New()
	for _, tx := range ts {
		require.NoError(t, idx.AddTranscript(tx))
	}
	return idx
}

type fixture struct {
	index   *cache.Index
	genome  *genome.Sequences
	contigs *genome.Sequences
	reads   *align.ReadStore
	chr1    *sam.Reference
}

// newFixture indexes TX1, a '+' transcript spanning [100, 150) with a 3'UTR
// at [122, 150).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	g := genome.NewSequences()
	g.Add("chr1", testGenome)
	return &fixture{
		index:   newIndex(t, newTranscript("TX1", 1, [2]int{100, 150}, []int{100, 120})),
		genome:  g,
		contigs: genome.NewSequences(),
		reads:   align.NewReadStore(),
		chr1:    mustRef(t, "chr1", len(testGenome)),
	}
}

func (f *fixture) run(t *testing.T, opts Options, recs ...*sam.Record) []ResultRow {
	t.Helper()
	d := polya.NewDetector(polya.DefaultConfig(), f.genome, f.reads)
	c := NewCaller(opts, f.index, f.genome, f.contigs, d)
	rows, err := c.Run(context.Background(), &sliceReader{recs: recs})
	require.NoError(t, err)
	return rows
}

// tailContig adds contig c1 ending in five A bases at TX1's 3' end, with
// five reads spanning the tail junction and three bridge reads.
func (f *fixture) tailContig(t *testing.T) *sam.Record {
	t.Helper()
	seq := append(append([]byte(nil), testGenome[100:150]...), "AAAAA"...)
	f.contigs.Add("c1", seq)

	c1 := mustRef(t, "c1", len(seq))
	for i := range 5 {
		f.reads.Add(newRecord(t, fmt.Sprintf("t%d", i), c1, 24, "30M", seq[24:54], 0))
	}
	for i := range 3 {
		read := append(append([]byte(nil), seq[30:50]...), "AAAAAA"...)
		f.reads.Add(newRecord(t, fmt.Sprintf("b%d", i), c1, 30, "20M6S", read, 0))
	}
	return newRecord(t, "c1", f.chr1, 100, "50M5S", seq, 0)
}

func TestCaller_TailAndBridges(t *testing.T) {
	f := newFixture(t)
	rows := f.run(t, Options{Workers: 2}, f.tailContig(t))

	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, "GENETX1", r.Gene)
	assert.Equal(t, "TX1", r.Transcript)
	assert.Equal(t, 149, r.Site)
	assert.True(t, r.WithinUTR)
	assert.Equal(t, 0, r.Distance)
	assert.Equal(t, Count(5), r.TailLen)
	assert.Equal(t, Count(5), r.TailReads)
	assert.Equal(t, Count(3), r.BridgeReads)
	assert.Equal(t, Count(6), r.MaxBridgeLen)
	assert.Equal(t, Count(8), r.TailBridgeReads)
	assert.Equal(t, []string{"b0", "b1", "b2"}, r.BridgeIDs)
	assert.Equal(t, Count(0), r.ESTs)

	fields := r.Fields()
	assert.Equal(t, "150", fields[6])
	assert.Equal(t, "5", fields[10])
	assert.Equal(t, "3", fields[12])
	assert.Equal(t, "8", fields[15])
	assert.Equal(t, []int{149}, f.index.Sites("chr1", "TX1"))
}

// startTailContig adds contig c1 whose own sequence begins with five T
// bases, with five reads spanning the tail junction and three bridge reads.
// The contig aligns to [100, 150) on the given strand.
func (f *fixture) startTailContig(t *testing.T, strand int8) *sam.Record {
	t.Helper()
	aligned := testGenome[100:150]
	var flags sam.Flags
	if strand < 0 {
		aligned = genome.RevComp(aligned)
		flags = sam.Reverse
	}
	seq := append([]byte("TTTTT"), aligned...)
	f.contigs.Add("c1", seq)

	c1 := mustRef(t, "c1", len(seq))
	for i := range 5 {
		f.reads.Add(newRecord(t, fmt.Sprintf("t%d", i), c1, 1, "30M", seq[1:31], 0))
	}
	for i := range 3 {
		read := append([]byte("TTTTTT"), seq[5:25]...)
		f.reads.Add(newRecord(t, fmt.Sprintf("b%d", i), c1, 5, "6S20M", read, 0))
	}

	cigar, recSeq := "5S50M", seq
	if strand < 0 {
		cigar, recSeq = "50M5S", genome.RevComp(seq)
	}
	return newRecord(t, "c1", f.chr1, 100, cigar, recSeq, flags)
}

func TestCaller_StartClipTails(t *testing.T) {
	tests := []struct {
		name       string
		transcript *cache.Transcript
		strand     int8
		site       int
	}{
		{
			name:       "minus transcript, forward contig",
			transcript: newTranscript("TX2", -1, [2]int{100, 150}, []int{130, 150}),
			strand:     1,
			site:       100,
		},
		{
			name:       "plus transcript, reverse contig",
			transcript: newTranscript("TX1", 1, [2]int{100, 150}, []int{100, 120}),
			strand:     -1,
			site:       149,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.index = newIndex(t, tt.transcript)
			rows := f.run(t, Options{Workers: 2}, f.startTailContig(t, tt.strand))

			require.Len(t, rows, 1)
			r := rows[0]
			assert.Equal(t, tt.transcript.ID, r.Transcript)
			assert.Equal(t, tt.transcript.Strand, r.TranscriptStrand)
			assert.Equal(t, tt.site, r.Site)
			assert.Equal(t, 0, r.Distance)
			assert.True(t, r.WithinUTR)
			assert.Equal(t, Count(5), r.TailLen)
			assert.Equal(t, Count(5), r.TailReads)
			assert.Equal(t, Count(3), r.BridgeReads)
			assert.Equal(t, Count(6), r.MaxBridgeLen)
			assert.Equal(t, Count(8), r.TailBridgeReads)
			assert.Equal(t, []string{"b0", "b1", "b2"}, r.BridgeIDs)
			assert.Equal(t, []int{tt.site}, f.index.Sites("chr1", tt.transcript.ID))
		})
	}
}

func TestCaller_ImpliedSite(t *testing.T) {
	f := newFixture(t)
	f.contigs.Add("c2", testGenome[100:150])
	rows := f.run(t, Options{}, newRecord(t, "c2", f.chr1, 100, "50M", testGenome[100:150], 0))

	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 149, r.Site)
	assert.Equal(t, []string{"c2"}, r.Contigs)
	assert.Equal(t, Missing, r.ESTs)
	assert.Equal(t, Missing, r.TailLen)
	assert.Equal(t, Missing, r.TailReads)
	assert.Equal(t, Count(0), r.BridgeReads)
	assert.Equal(t, "-", r.Fields()[10])

	merged := Merge(rows, 1)
	assert.Len(t, merged, 1, "implied sites carry no numeric tail length and survive the merge")
}

func TestCaller_ImpliedSiteSuppressedByRecordedSite(t *testing.T) {
	f := newFixture(t)
	f.contigs.Add("c2", testGenome[100:150])
	rows := f.run(t, Options{},
		newRecord(t, "c2", f.chr1, 100, "50M", testGenome[100:150], 0),
		f.tailContig(t))

	require.Len(t, rows, 1)
	assert.Equal(t, []string{"c1"}, rows[0].Contigs)
}

func TestCaller_ContigFilter(t *testing.T) {
	f := newFixture(t)
	rows := f.run(t, Options{Contigs: []string{"other"}}, f.tailContig(t))
	assert.Empty(t, rows)
}

func TestCaller_SkipsUnusableAlignments(t *testing.T) {
	f := newFixture(t)
	far := newRecord(t, "far", f.chr1, 300, "50M", testGenome[300:350], 0)
	unmapped := newRecord(t, "u", f.chr1, 100, "50M", testGenome[100:150], sam.Unmapped)
	rows := f.run(t, Options{}, far, unmapped)
	assert.Empty(t, rows)
}

func TestCaller_ReadErrorIsReturned(t *testing.T) {
	f := newFixture(t)
	d := polya.NewDetector(polya.DefaultConfig(), f.genome, f.reads)
	c := NewCaller(Options{}, f.index, f.genome, f.contigs, d)
	_, err := c.Run(context.Background(), errReader{})
	assert.Error(t, err)
}

type errReader struct{}

func (errReader) Read() (*sam.Record, error) {
	return nil, errors.New("truncated file")
}

func TestOrderedCollect(t *testing.T) {
	results := make(chan WorkResult, 4)
	for _, seq := range []int{2, 0, 3, 1} {
		results <- WorkResult{Seq: seq}
	}
	close(results)

	var got []int
	err := OrderedCollect(results, func(r WorkResult) error {
		got = append(got, r.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestOrderedCollect_StopsOnError(t *testing.T) {
	results := make(chan WorkResult, 3)
	for seq := range 3 {
		results <- WorkResult{Seq: seq}
	}
	close(results)

	calls := 0
	err := OrderedCollect(results, func(r WorkResult) error {
		calls++
		if r.Seq == 1 {
			return errors.New("stop")
		}
		return nil
	})
	assert.EqualError(t, err, "stop")
	assert.Equal(t, 2, calls)
}
