package align

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRef(t *testing.T, name string, length int) *sam.Reference {
	t.Helper()
	ref, err := sam.NewReference(name, "", "", length, nil, nil)
	require.NoError(t, err)
	return ref
}

func TestReadStore_GroupsAndMates(t *testing.T) {
	c1 := mustRef(t, "contig1", 200)
	c2 := mustRef(t, "contig2", 200)

	r1 := &sam.Record{Name: "pair", Ref: c1, Pos: 10, Flags: sam.Paired | sam.Read1, MateRef: c2}
	r2 := &sam.Record{Name: "pair", Ref: c2, Pos: 40, Flags: sam.Paired | sam.Read2 | sam.Reverse, MateRef: c1}
	lone := &sam.Record{Name: "lone", Ref: c1, Pos: 50, Flags: sam.Paired | sam.Read1 | sam.MateUnmapped}
	sec := &sam.Record{Name: "pair", Ref: c1, Pos: 90, Flags: sam.Paired | sam.Read2 | sam.Secondary}

	s := NewReadStore()
	for _, r := range []*sam.Record{r1, r2, lone, sec} {
		s.Add(r)
	}

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []*sam.Record{r1, lone}, s.Contig("contig1"))
	assert.Equal(t, []*sam.Record{r2}, s.Contig("contig2"))
	assert.Empty(t, s.Contig("contig3"))

	assert.Same(t, r2, s.Mate(r1))
	assert.Same(t, r1, s.Mate(r2))
	assert.Nil(t, s.Mate(lone))

	assert.True(t, MateElsewhere(r1))
	assert.True(t, MateElsewhere(lone))
	same := &sam.Record{Name: "x", Ref: c1, MateRef: c1, Flags: sam.Paired}
	assert.False(t, MateElsewhere(same))
}

func TestStrandAndMapped(t *testing.T) {
	ref := mustRef(t, "chr1", 1000)
	cigar := sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 10)}

	fwd := &sam.Record{Ref: ref, Pos: 5, Cigar: cigar}
	rev := &sam.Record{Ref: ref, Pos: 5, Cigar: cigar, Flags: sam.Reverse}
	unmapped := &sam.Record{Ref: ref, Pos: 5, Flags: sam.Unmapped}

	assert.Equal(t, int8(1), Strand(fwd))
	assert.Equal(t, int8(-1), Strand(rev))
	assert.True(t, IsMapped(fwd))
	assert.False(t, IsMapped(unmapped))
	assert.False(t, IsMapped(&sam.Record{Pos: 5, Cigar: cigar}))
}

func TestOpen_UnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contigs.psl")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestOpen_SAM(t *testing.T) {
	content := "@SQ\tSN:contig1\tLN:100\n" +
		"r1\t99\tcontig1\t1\t60\t10M\t=\t50\t59\tACGTACGTAC\tIIIIIIIIII\n" +
		"r2\t0\tcontig1\t20\t60\t3S7M\t*\t0\t0\tTTTACGTACG\tIIIIIIIIII\n"
	path := filepath.Join(t.TempDir(), "r2c.sam")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	require.Len(t, f.Header().Refs(), 1)

	store, err := LoadReads(f)
	require.NoError(t, err)

	reads := store.Contig("contig1")
	require.Len(t, reads, 2)
	assert.Equal(t, "r1", reads[0].Name)
	assert.Equal(t, 0, reads[0].Pos)
	assert.Equal(t, 19, reads[1].Pos)
	assert.Equal(t, "3S7M", reads[1].Cigar.String())
}
