package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcriptIDs(ts []*Transcript) []string {
	ids := make([]string, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids
}

func TestIndex_Overlapping(t *testing.T) {
	x := loadTestIndex(t)

	tests := []struct {
		name       string
		chrom      string
		start, end int
		want       []string
	}{
		{"inside forward transcript", "chr1", 1090, 1095, []string{"TX1"}},
		{"chromosome alias", "1", 1500, 2001, []string{"TX2"}},
		{"spans both", "chr1", 1399, 2001, []string{"TX1", "TX2"}},
		{"between transcripts", "chr1", 1400, 2000, []string{}},
		{"empty query", "chr1", 1090, 1090, []string{}},
		{"unknown chromosome", "chr9", 0, 100000, []string{}},
		{"second chromosome", "chr2", 0, 2000, []string{"TX3", "TX4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := x.Overlapping(tt.chrom, tt.start, tt.end)
			assert.Equal(t, tt.want, append([]string{}, transcriptIDs(got)...))
		})
	}
}

func TestIndex_RecordSite(t *testing.T) {
	x := loadTestIndex(t)

	assert.False(t, x.RecordSite("chr1", "TX1", 1399))
	assert.True(t, x.RecordSite("chr1", "TX1", 1389), "site 10 bases away")
	assert.True(t, x.RecordSite("chr1", "TX1", 1369), "exactly SiteWindow from 1389")
	assert.False(t, x.RecordSite("chr1", "TX1", 1300))
	assert.Equal(t, []int{1399, 1389, 1369, 1300}, x.Sites("chr1", "TX1"))

	assert.False(t, x.RecordSite("chr1", "missing", 10))
	assert.Nil(t, x.Sites("chr1", "missing"))
	assert.Empty(t, x.Sites("chr1", "TX2"))
}

func TestIndex_RecordSiteConcurrent(t *testing.T) {
	x := loadTestIndex(t)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			x.RecordSite("chr1", "TX2", 2000+i*100)
		}()
	}
	wg.Wait()
	assert.Len(t, x.Sites("chr1", "TX2"), 50)
}

func TestIndex_Chromosomes(t *testing.T) {
	x := loadTestIndex(t)
	assert.Equal(t, []string{"1", "2"}, x.Chromosomes())
	require.Len(t, x.TranscriptsByChrom("chr1"), 2)
	assert.Equal(t, "TX1", x.TranscriptsByChrom("chr1")[0].ID)
}

func TestIndex_ReplaceTranscript(t *testing.T) {
	x := New()
	old := NewTranscript([]Feature{{Chrom: "chr3", Type: FeatureExon, Start: 0, End: 100, Strand: 1, TranscriptID: "T"}})
	repl := NewTranscript([]Feature{{Chrom: "chr3", Type: FeatureExon, Start: 500, End: 600, Strand: 1, TranscriptID: "T"}})
	require.NoError(t, x.AddTranscript(old))
	require.NoError(t, x.AddTranscript(repl))

	assert.Empty(t, x.Overlapping("chr3", 0, 100))
	assert.Equal(t, []string{"T"}, transcriptIDs(x.Overlapping("chr3", 550, 551)))
}
