package cleavage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultRow_Fields(t *testing.T) {
	r := sampleRow("c1")
	r.LinkIDs = []string{"l1", "l2"}
	r.LinkPairs, r.MaxLinkLen = 2, 30

	want := "GENE1\tTX1\t+\tyes\tc1\tchr1\t150\tyes\t0\t0\t5\t2\t3\t6\tc1-b\t5\t2\t30\tl1,l2\t130:1\t123-150"
	assert.Equal(t, want, strings.Join(r.Fields(), "\t"))
	assert.Len(t, r.Fields(), len(Columns))

	empty := ResultRow{Chrom: "chr2", TranscriptStrand: -1, ESTs: Missing, TailLen: Missing}
	fields := empty.Fields()
	assert.Equal(t, "-", fields[0])
	assert.Equal(t, "-", fields[2])
	assert.Equal(t, "no", fields[3])
	assert.Equal(t, "-", fields[4])
	assert.Equal(t, "-", fields[9])
	assert.Equal(t, "-", fields[10])
	assert.Equal(t, "-", fields[19])
	assert.Equal(t, "-", fields[20])
}

func TestParseRow(t *testing.T) {
	r := sampleRow("c1")
	r.TailReads = Missing
	got, err := ParseRow(r.Fields())
	require.NoError(t, err)
	assert.Equal(t, r, got)

	bad := r.Fields()
	bad[6] = "zero"
	_, err = ParseRow(bad)
	assert.Error(t, err)

	bad = r.Fields()
	bad[12] = "-3"
	_, err = ParseRow(bad)
	assert.ErrorContains(t, err, "number_of_bridge_reads")

	_, err = ParseRow([]string{"too", "short"})
	assert.Error(t, err)
}
