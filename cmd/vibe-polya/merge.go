package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-polya/internal/cleavage"
	"github.com/inodb/vibe-polya/internal/output"
)

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [flags] <report>...",
		Short: "Consolidate cleavage site reports",
		Long: `Merge reports from several runs into one coordinate-centric report.

Rows for the same chromosome and cleavage site are combined: contigs and read
identities are joined, read counts are summed and lengths take the maximum.`,
		Example: `  vibe-polya merge -o all sample1.KLEAT sample2.KLEAT
  vibe-polya merge -o all --min-bridge-size 3 --track-name all run*/out.KLEAT`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, mergeKeys)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(args)
		},
	}

	f := cmd.Flags()
	f.StringP("output", "o", "", "Output path prefix (required)")
	f.Int("min-bridge-size", 1, "Minimum size of a bridge")
	f.String("track-name", "", "Name of the browser tracks to write")
	f.String("track-desc", "", "Description of the browser tracks")
	f.String("rgb", "0,0,255", "RGB colour of the bedGraph tracks")
	f.String("db", "", "Also store the merged sites in this DuckDB database")

	return cmd
}

var mergeKeys = map[string]string{
	"output":          "merge.output",
	"min-bridge-size": "min_bridge_size",
	"track-name":      "track.name",
	"track-desc":      "track.description",
	"rgb":             "track.rgb",
	"db":              "db",
}

func runMerge(paths []string) error {
	logger, err := newLogger(viper.GetBool("verbose"))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	prefix := viper.GetString("merge.output")
	if prefix == "" {
		return usageError{fmt.Errorf("--output is required")}
	}

	var rows []cleavage.ResultRow
	for _, path := range paths {
		rs, err := readReport(path)
		if err != nil {
			return err
		}
		logger.Info("read report", zap.String("file", path), zap.Int("rows", len(rs)))
		rows = append(rows, rs...)
	}

	merged := cleavage.Merge(rows, viper.GetInt("min_bridge_size"))
	return writeResults(prefix, merged, viper.GetString("db"), logger)
}

func readReport(path string) ([]cleavage.ResultRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	rows, err := output.ReadRows(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}
