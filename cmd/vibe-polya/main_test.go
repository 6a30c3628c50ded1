package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-polya/internal/align"
	"github.com/inodb/vibe-polya/internal/cleavage"
	"github.com/inodb/vibe-polya/internal/output"
)

func TestRun_ExitCodes(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	assert.Equal(t, ExitSuccess, run([]string{"version"}))
	assert.Equal(t, ExitUsage, run([]string{"merge", "--no-such-flag", "x"}))
	assert.Equal(t, ExitUsage, run([]string{"call", "only-one-arg"}))
	assert.Equal(t, ExitError, run([]string{"merge", "-o", filepath.Join(t.TempDir(), "out"), "missing.KLEAT"}))
}

func TestRunCall_BadAlignmentFailsFirst(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	viper.Reset()
	t.Cleanup(viper.Reset)
	setDefaults()

	dir := t.TempDir()
	viper.Set("call.output", filepath.Join(dir, "out"))
	viper.Set("annotation", filepath.Join(dir, "missing.gtf"))

	err := runCall(context.Background(), filepath.Join(dir, "contigs.txt"),
		filepath.Join(dir, "contigs.fa"), filepath.Join(dir, "genome.fa"), filepath.Join(dir, "reads.bam"))
	require.ErrorIs(t, err, align.ErrUnknownFormat)
	assert.NotContains(t, err.Error(), "annotation")
}

func TestTranscriptCacheDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	gencode := transcriptCacheDir("GRCh38", "/data/gencode.v46.annotation.gtf.gz")
	custom := transcriptCacheDir("GRCh38", "/data/custom.gtf")

	assert.Equal(t, filepath.Join(home, ".vibe-polya", "grch38", "cache"), filepath.Dir(gencode))
	assert.NotEqual(t, gencode, custom)
	assert.Equal(t, gencode, transcriptCacheDir("GRCh38", "/data/gencode.v46.annotation.gtf.gz"))
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in         string
		chrom      string
		start, end int
		wantErr    bool
	}{
		{"chr12:25205000-25210000", "chr12", 25204999, 25210000, false},
		{"12:1,000-2,000", "12", 999, 2000, false},
		{"chrX:5-5", "chrX", 4, 5, false},
		{"chr1:0-10", "", 0, 0, true},
		{"chr1:10-5", "", 0, 0, true},
		{"chr1:abc", "", 0, 0, true},
		{":1-2", "", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			chrom, start, end, err := parseRegion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.chrom, chrom)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}

	chrom, start, end, err := parseRegion("chr2")
	require.NoError(t, err)
	assert.Equal(t, "chr2", chrom)
	assert.Equal(t, 0, start)
	assert.Greater(t, end, 1<<30)
}

func TestParseConfigValue(t *testing.T) {
	v, err := parseConfigValue("min_at", "6")
	require.NoError(t, err)
	assert.Equal(t, 6, v)

	v, err = parseConfigValue("max_diff", "1, 4")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, v)

	v, err = parseConfigValue("strand_specific", "yes")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = parseConfigValue("track.name", "sample")
	require.NoError(t, err)
	assert.Equal(t, "sample", v)

	_, err = parseConfigValue("trim", "three")
	assert.Error(t, err)
}

func TestGencodeGTFURL(t *testing.T) {
	assert.True(t, strings.HasSuffix(gencodeGTFURL("GRCh38"), "/gencode.v46.annotation.gtf.gz"))
	assert.Contains(t, gencodeGTFURL("grch37"), "GRCh37_mapping/gencode.v46lift37.annotation.gtf.gz")
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2<<20))
}

func writeTestReport(t *testing.T, path string, rows ...cleavage.ResultRow) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := output.NewTabWriter(f)
	require.NoError(t, w.WriteHeader())
	for i := range rows {
		require.NoError(t, w.Write(&rows[i]))
	}
	require.NoError(t, w.Flush())
}

func TestMergeCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()

	site := cleavage.ResultRow{
		Gene:             "KRAS",
		Transcript:       "ENST00000311936",
		TranscriptStrand: -1,
		Coding:           true,
		Contigs:          []string{"k31_1"},
		Chrom:            "chr12",
		Site:             25205245,
		WithinUTR:        true,
		ESTs:             0,
		TailLen:          12,
		TailReads:        4,
		BridgeReads:      2,
		MaxBridgeLen:     9,
		BridgeIDs:        []string{"r1", "r2"},
		TailBridgeReads:  6,
		LinkPairs:        0,
		MaxLinkLen:       0,
	}
	other := site
	other.Contigs = []string{"k41_3"}
	other.TailLen = 15
	other.BridgeIDs = []string{"r9"}
	other.BridgeReads = 1
	other.TailBridgeReads = 5

	a := filepath.Join(dir, "a.KLEAT")
	b := filepath.Join(dir, "b.KLEAT")
	writeTestReport(t, a, site)
	writeTestReport(t, b, other)

	prefix := filepath.Join(dir, "merged")
	require.Equal(t, ExitSuccess, run([]string{"merge", "-o", prefix, "--track-name", "merged", a, b}))

	f, err := os.Open(prefix + ".KLEAT")
	require.NoError(t, err)
	defer f.Close()
	rows, err := output.ReadRows(f)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"k31_1", "k41_3"}, rows[0].Contigs)
	assert.Equal(t, cleavage.Count(15), rows[0].TailLen)
	assert.Equal(t, cleavage.Count(8), rows[0].TailReads)
	assert.Equal(t, cleavage.Count(11), rows[0].TailBridgeReads)

	stats, err := os.ReadFile(prefix + ".stats")
	require.NoError(t, err)
	assert.Contains(t, string(stats), "total cleavage sites: 1\n")

	_, err = os.Stat(prefix + ".-.bg")
	assert.NoError(t, err)
}
