package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/store/interval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-polya/internal/cleavage"
)

func testRow() cleavage.ResultRow {
	return cleavage.ResultRow{
		Gene:             "KRAS",
		Transcript:       "ENST00000311936",
		TranscriptStrand: -1,
		Coding:           true,
		Contigs:          []string{"k31_1"},
		Chrom:            "chr12",
		Site:             25205245,
		WithinUTR:        true,
		Distance:         0,
		ESTs:             0,
		TailLen:          12,
		TailReads:        4,
		BridgeReads:      2,
		MaxBridgeLen:     9,
		BridgeIDs:        []string{"r1", "r2"},
		TailBridgeReads:  6,
		Hexamers:         []cleavage.Hexamer{{Pos: 25205270, Rank: 1, Strand: -1}},
		UTR3:             &interval.IntRange{Start: 25205245, End: 25209911},
	}
}

func TestTabWriter_WriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)

	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Flush())

	header := strings.TrimSuffix(buf.String(), "\n")
	cols := strings.Split(header, "\t")
	assert.Len(t, cols, 21)
	assert.Equal(t, "gene", cols[0])
	assert.Equal(t, "cleavage_site", cols[6])
	assert.Equal(t, "3UTR_start_end", cols[20])
}

func TestTabWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)
	r := testRow()
	require.NoError(t, w.Write(&r))
	require.NoError(t, w.Flush())

	assert.Equal(t,
		"KRAS\tENST00000311936\t-\tyes\tk31_1\tchr12\t25205246\tyes\t0\t0\t12\t4\t2\t9\tr1,r2\t6\t0\t0\t-\t25205270:1\t25205246-25209911\n",
		buf.String())
}

func TestReadRows(t *testing.T) {
	var buf bytes.Buffer
	w := NewTabWriter(&buf)
	r := testRow()
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(&r))
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.Write(&r))
	require.NoError(t, w.Flush())

	rows, err := ReadRows(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, r, rows[0])

	_, err = ReadRows(strings.NewReader("bad\tline\n"))
	assert.ErrorContains(t, err, "line 1")
}

func TestWriteStats(t *testing.T) {
	s := cleavage.NewStats()
	s.Add(testRow())

	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, s))
	out := buf.String()
	assert.Contains(t, out, "total cleavage sites: 1\n")
	assert.Contains(t, out, "cleavage sites with tail, bridge support: 1\n")
	assert.Contains(t, out, "average cleavage sites per gene: 1.0\n")
	assert.Contains(t, out, "total coding transcripts: 1\n")

	buf.Reset()
	require.NoError(t, WriteStats(&buf, cleavage.NewStats()))
	assert.Contains(t, buf.String(), "average cleavage sites per gene: error\n")
}

func TestTrackWriter(t *testing.T) {
	tracks := cleavage.NewTracks()
	tracks.Add(testRow())

	tw := TrackWriter{
		Prefix:      filepath.Join(t.TempDir(), "sample"),
		Name:        "sample",
		Description: "polyA sites",
		RGB:         "0,0,255",
	}
	require.NoError(t, tw.Write(tracks))

	minus, err := os.ReadFile(tw.Prefix + ".-.bg")
	require.NoError(t, err)
	assert.Equal(t,
		"track type=bedGraph name=\"sample.-\" description=\"polyA sites\" visibility=full color=0,0,255\n"+
			"chr12\t25205245\t25205246\t6\n",
		string(minus))

	plus, err := os.ReadFile(tw.Prefix + ".+.bg")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(plus), "\n"), "header only")

	hex, err := os.ReadFile(tw.Prefix + ".HEXAMERS.bed")
	require.NoError(t, err)
	assert.Contains(t, string(hex), "chr12\t25205264\t25205270\tAATAAA\t62.5\t-")

	utr, err := os.ReadFile(tw.Prefix + ".3UTR.bed")
	require.NoError(t, err)
	assert.Contains(t, string(utr), `track name="sample.3UTRs"`)
	assert.Contains(t, string(utr), "chr12\t25205245\t25209911\tk31_1\t0\t-")
}
