package genome

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFASTA = `>chr1 test chromosome
ACGTACGTAC
GTacgtTTTT
>contig7
AAAACCCCGGGGTTTT
`

func TestReadFASTA(t *testing.T) {
	s, err := ReadFASTA(strings.NewReader(testFASTA))
	require.NoError(t, err)

	assert.Equal(t, []string{"chr1", "contig7"}, s.Names())

	seq, ok := s.Get("chr1")
	require.True(t, ok)
	assert.Equal(t, "ACGTACGTACGTACGTTTTT", string(seq))
}

func TestSequences_Fetch(t *testing.T) {
	s := NewSequences()
	s.Add("chr1", []byte("acgtACGTNN"))

	tests := []struct {
		name       string
		chrom      string
		start, end int
		want       string
		err        error
	}{
		{"whole", "chr1", 0, 10, "ACGTACGTNN", nil},
		{"middle", "chr1", 2, 6, "GTAC", nil},
		{"empty", "chr1", 4, 4, "", nil},
		{"negative start", "chr1", -1, 4, "", ErrOutOfRange},
		{"past end", "chr1", 5, 11, "", ErrOutOfRange},
		{"unknown", "chr2", 0, 1, "", ErrUnknownSequence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Fetch(tt.chrom, tt.start, tt.end)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestOpen_InMemoryAndIndexed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ref.fa")
	content := ">chr1\nACGTACGTAC\nGTACGTTTTT\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	src, closer, err := Open(path)
	require.NoError(t, err)
	_, inMemory := src.(*Sequences)
	assert.True(t, inMemory)
	require.NoError(t, closer.Close())

	// name, length, offset, bases per line, bytes per line
	require.NoError(t, os.WriteFile(path+".fai", []byte("chr1\t20\t6\t10\t11\n"), 0644))

	src, closer, err = Open(path)
	require.NoError(t, err)
	defer closer.Close()
	_, indexed := src.(*Indexed)
	require.True(t, indexed)

	got, err := src.Fetch("chr1", 8, 14)
	require.NoError(t, err)
	assert.Equal(t, "ACGTAC", string(got))

	_, err = src.Fetch("chr1", 15, 21)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = src.Fetch("chrX", 0, 1)
	assert.ErrorIs(t, err, ErrUnknownSequence)
}

func TestRevComp(t *testing.T) {
	assert.Equal(t, "TTTTN", string(RevComp([]byte("naaaa"))))
	assert.Equal(t, "ACGT", string(RevComp([]byte("ACGT"))))
	assert.Equal(t, "GGCA", string(RevComp([]byte("TGCC"))))
	assert.Nil(t, RevComp(nil))
}

func TestParseChromAliases(t *testing.T) {
	aliases, err := ParseChromAliases(strings.NewReader("# ensembl to ucsc\n1 chr1\nMT chrM\n\n"))
	require.NoError(t, err)

	assert.Equal(t, "chr1", aliases.Name("1"))
	assert.Equal(t, "chrM", aliases.Name("MT"))
	assert.Equal(t, "GL000192.1", aliases.Name("GL000192.1"))

	_, err = ParseChromAliases(strings.NewReader("1 chr1 extra\n"))
	assert.Error(t, err)
}
