package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-polya/internal/align"
	"github.com/inodb/vibe-polya/internal/blat"
	"github.com/inodb/vibe-polya/internal/cache"
	"github.com/inodb/vibe-polya/internal/cleavage"
	"github.com/inodb/vibe-polya/internal/duckdb"
	"github.com/inodb/vibe-polya/internal/genome"
	"github.com/inodb/vibe-polya/internal/output"
	"github.com/inodb/vibe-polya/internal/polya"
)

func newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call [flags] <contig-to-genome> <contigs> <genome> <reads-to-contigs>",
		Short: "Find cleavage sites from contig and read alignments",
		Long: `Find polyA cleavage sites from assembled contigs.

Inputs:
  <contig-to-genome>  contig-to-genome alignment (BAM or SAM)
  <contigs>           contig sequences (FASTA)
  <genome>            reference genome (FASTA, indexed when a .fai exists)
  <reads-to-contigs>  read-to-contig alignment (BAM or SAM)

The merged report is written to <output>.KLEAT with a summary in
<output>.stats. Browser tracks are written when --track-name is set.`,
		Example: `  vibe-polya call -o out/sample c2g.bam contigs.fa hg38.fa r2c.bam
  vibe-polya call -o out/sample --annotation gencode.gtf.gz --strand-specific c2g.bam contigs.fa hg38.fa r2c.bam
  vibe-polya call -o out/sample --track-name sample --track-desc "polyA sites" c2g.bam contigs.fa hg38.fa r2c.bam`,
		Args: usageArgs(cobra.ExactArgs(4)),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, callKeys)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runCall(ctx, args[0], args[1], args[2], args[3])
		},
	}

	f := cmd.Flags()
	f.StringP("output", "o", "", "Output path prefix (required)")
	f.String("annotation", "", "Annotation GTF (default: downloaded GENCODE GTF for --assembly)")
	f.String("assembly", "GRCh38", "Genome assembly used to locate the downloaded annotation")
	f.String("chrom-aliases", "", "Chromosome name conversion table (from<TAB>to)")
	f.IntP("trim", "t", 3, "Trim read bases with quality <= this value")
	f.Bool("strand-specific", false, "Reads are strand specific")
	f.Int("min-at", 4, "Minimum number of A|T bases in a tail")
	f.IntSlice("max-diff", []int{1, 5}, "Maximum ratio x,y of non-A|T to A|T bases in a tail")
	f.Int("max-diff-link", 2, "Maximum number of non-A|T bases in a link read")
	f.Int("min-bridge-size", 1, "Minimum size of a bridge")
	f.Int("max-dist", 5000, "Maximum distance of a cleavage site from an annotated end (0 disables)")
	f.String("track-name", "", "Name of the browser tracks to write")
	f.String("track-desc", "", "Description of the browser tracks")
	f.String("rgb", "0,0,255", "RGB colour of the bedGraph tracks")
	f.StringSliceP("contigs", "c", nil, "Only process these contigs")
	f.Bool("link", false, "Search for link pair evidence (slow)")
	f.Int("workers", 0, "Detection workers (default: number of CPUs)")
	f.Bool("extended-bridge", false, "Re-align clipped reads to find bridges preceded by genomic sequence")
	f.Bool("blat-filter", false, "Drop bridge reads that align entirely to the genome")
	f.String("blat", "blat", "Path to the blat binary")
	f.String("db", "", "Also store the merged sites in this DuckDB database")
	f.Bool("no-cache", false, "Do not read or write the transcript cache")

	return cmd
}

// callKeys maps flag names to config keys.
var callKeys = map[string]string{
	"output":          "call.output",
	"annotation":      "annotation",
	"assembly":        "assembly",
	"chrom-aliases":   "chrom_aliases",
	"trim":            "trim",
	"strand-specific": "strand_specific",
	"min-at":          "min_at",
	"max-diff":        "max_diff",
	"max-diff-link":   "max_diff_link",
	"min-bridge-size": "min_bridge_size",
	"max-dist":        "max_dist",
	"track-name":      "track.name",
	"track-desc":      "track.description",
	"rgb":             "track.rgb",
	"contigs":         "contigs",
	"link":            "link",
	"workers":         "workers",
	"extended-bridge": "extended_bridge",
	"blat-filter":     "blat_filter",
	"blat":            "blat.path",
	"db":              "db",
	"no-cache":        "no_cache",
}

// bindFlags binds each flag to its config key so the config file and
// environment supply defaults.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for name, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// detectorConfig reads the detection thresholds from the bound config.
func detectorConfig() (polya.Config, error) {
	cfg := polya.DefaultConfig()
	cfg.TrimQual = viper.GetInt("trim")
	cfg.MinAT = viper.GetInt("min_at")
	cfg.MaxDiffLink = viper.GetInt("max_diff_link")
	cfg.MinBridgeSize = viper.GetInt("min_bridge_size")
	cfg.ExtendedBridges = viper.GetBool("extended_bridge")
	cfg.BlatFilter = viper.GetBool("blat_filter")

	diff := viper.GetIntSlice("max_diff")
	if len(diff) != 2 || diff[1] <= 0 || diff[0] < 0 {
		return cfg, usageError{fmt.Errorf("--max-diff needs two values x,y with y > 0, got %v", diff)}
	}
	cfg.MaxDiff = polya.Ratio{X: diff[0], Y: diff[1]}
	return cfg, nil
}

func runCall(ctx context.Context, c2gPath, contigsPath, genomePath, r2cPath string) error {
	logger, err := newLogger(viper.GetBool("verbose"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	prefix := viper.GetString("call.output")
	if prefix == "" {
		return usageError{fmt.Errorf("--output is required")}
	}
	contigFilter := viper.GetStringSlice("contigs")
	if len(contigFilter) > 0 {
		prefix += "." + strings.Join(contigFilter, "_")
	}

	cfg, err := detectorConfig()
	if err != nil {
		return err
	}

	c2g, err := align.Open(c2gPath)
	if err != nil {
		return fmt.Errorf("open contig alignments: %w", err)
	}
	defer c2g.Close()

	index, err := loadAnnotation(logger)
	if err != nil {
		return err
	}

	g, closer, err := genome.Open(genomePath)
	if err != nil {
		return fmt.Errorf("open genome: %w", err)
	}
	defer closer.Close()

	contigs, err := genome.LoadFASTA(contigsPath)
	if err != nil {
		return fmt.Errorf("load contigs: %w", err)
	}
	logger.Info("loaded contigs", zap.Int("count", len(contigs.Names())))

	var aliases genome.ChromAliases
	if path := viper.GetString("chrom_aliases"); path != "" {
		if aliases, err = genome.LoadChromAliases(path); err != nil {
			return fmt.Errorf("load chromosome aliases: %w", err)
		}
	}

	reads, err := loadReads(r2cPath)
	if err != nil {
		return err
	}
	logger.Info("loaded read alignments", zap.Int("reads", reads.Len()))

	d := polya.NewDetector(cfg, g, reads)
	d.SetLogger(logger)
	if cfg.ExtendedBridges || cfg.BlatFilter {
		bc := blat.NewCommand(viper.GetString("blat.path"), "")
		bc.SetLogger(logger)
		d.SetAligner(bc)
	}

	caller := cleavage.NewCaller(cleavage.Options{
		StrandSpecific: viper.GetBool("strand_specific"),
		Links:          viper.GetBool("link"),
		MaxDist:        viper.GetInt("max_dist"),
		Contigs:        contigFilter,
		Workers:        viper.GetInt("workers"),
	}, index, g, contigs, d)
	caller.SetAliases(aliases)
	caller.SetLogger(logger)

	rows, err := caller.Run(ctx, c2g)
	if err != nil {
		return err
	}

	merged := cleavage.Merge(rows, cfg.MinBridgeSize)
	logger.Info("merged cleavage sites", zap.Int("rows", len(rows)), zap.Int("sites", len(merged)))

	return writeResults(prefix, merged, viper.GetString("db"), logger)
}

// transcriptCacheDir returns the transcript cache directory for one GTF.
// Each annotation file gets its own directory under the assembly's data dir.
func transcriptCacheDir(assembly, gtfPath string) string {
	base := DefaultGENCODEPath(assembly)
	if base == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(gtfPath))
	return filepath.Join(base, "cache", hex.EncodeToString(sum[:6]))
}

// loadAnnotation builds the transcript index from the GTF, going through the
// gob transcript cache when the GTF is unchanged since the last run.
func loadAnnotation(logger *zap.Logger) (*cache.Index, error) {
	assembly := viper.GetString("assembly")
	gtfPath := viper.GetString("annotation")
	if gtfPath == "" {
		found, ok := FindGENCODEFile(assembly)
		if !ok {
			return nil, fmt.Errorf("no annotation given and no GENCODE GTF found for %s; run: vibe-polya download --assembly %s", assembly, assembly)
		}
		gtfPath = found
	}

	index := cache.New()
	fp, err := duckdb.StatFile(gtfPath)
	if err != nil {
		return nil, fmt.Errorf("annotation: %w", err)
	}

	var tc *duckdb.TranscriptCache
	if dir := transcriptCacheDir(assembly, fp.Path); dir != "" && !viper.GetBool("no_cache") {
		tc = duckdb.NewTranscriptCache(dir)
	}

	if tc != nil && tc.Valid(fp) {
		err := tc.Load(index)
		if err == nil {
			logger.Info("loaded transcripts from cache",
				zap.String("gtf", gtfPath),
				zap.Int("transcripts", index.TranscriptCount()))
			return index, nil
		}
		logger.Warn("transcript cache unreadable, reparsing annotation", zap.Error(err))
		index = cache.New()
	}

	if err := cache.NewGTFLoader(gtfPath).Load(index); err != nil {
		return nil, fmt.Errorf("load annotation: %w", err)
	}
	logger.Info("loaded transcripts",
		zap.String("gtf", gtfPath),
		zap.Int("transcripts", index.TranscriptCount()))

	if tc != nil {
		if err := tc.Write(index, fp); err != nil {
			logger.Warn("could not write transcript cache", zap.Error(err))
		}
	}
	return index, nil
}

func loadReads(path string) (*align.ReadStore, error) {
	f, err := align.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open read alignments: %w", err)
	}
	defer f.Close()

	reads, err := align.LoadReads(f)
	if err != nil {
		return nil, fmt.Errorf("load read alignments: %w", err)
	}
	return reads, nil
}

// writeResults writes the report, the summary and, when configured, the
// browser tracks and the site database.
func writeResults(prefix string, rows []cleavage.ResultRow, dbPath string, logger *zap.Logger) error {
	if err := writeReport(prefix+".KLEAT", rows); err != nil {
		return err
	}

	stats := cleavage.NewStats()
	tracks := cleavage.NewTracks()
	for _, r := range rows {
		stats.Add(r)
		tracks.Add(r)
	}

	sf, err := os.Create(prefix + ".stats")
	if err != nil {
		return fmt.Errorf("create stats: %w", err)
	}
	if err := output.WriteStats(sf, stats); err != nil {
		sf.Close()
		return fmt.Errorf("write stats: %w", err)
	}
	if err := sf.Close(); err != nil {
		return fmt.Errorf("close stats: %w", err)
	}

	if name := viper.GetString("track.name"); name != "" {
		tw := output.TrackWriter{
			Prefix:      prefix,
			Name:        name,
			Description: viper.GetString("track.description"),
			RGB:         viper.GetString("track.rgb"),
		}
		if err := tw.Write(tracks); err != nil {
			return err
		}
		logger.Info("wrote tracks", zap.Strings("files", tw.Files()))
	}

	if dbPath != "" {
		store, err := duckdb.Open(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.WriteSites(rows); err != nil {
			return fmt.Errorf("store sites: %w", err)
		}
		logger.Info("stored cleavage sites", zap.String("db", dbPath), zap.Int("sites", len(rows)))
	}

	logger.Info("wrote report", zap.String("file", prefix+".KLEAT"), zap.Int("sites", len(rows)))
	return nil
}

func writeReport(path string, rows []cleavage.ResultRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	w := output.NewTabWriter(f)
	if err := w.WriteHeader(); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	for i := range rows {
		if err := w.Write(&rows[i]); err != nil {
			f.Close()
			return fmt.Errorf("write report: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write report: %w", err)
	}
	return f.Close()
}
