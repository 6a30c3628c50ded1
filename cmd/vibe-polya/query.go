package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inodb/vibe-polya/internal/cleavage"
	"github.com/inodb/vibe-polya/internal/duckdb"
	"github.com/inodb/vibe-polya/internal/output"
)

func newQueryCmd() *cobra.Command {
	var (
		region string
		gene   string
	)

	cmd := &cobra.Command{
		Use:   "query [flags] <database>",
		Short: "Look up stored cleavage sites",
		Long: `Print cleavage sites stored with --db as a report.

Regions are 1-based and inclusive, like the report's cleavage_site column.`,
		Example: `  vibe-polya query sites.duckdb --gene KRAS
  vibe-polya query sites.duckdb --region chr12:25205000-25210000`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (region == "") == (gene == "") {
				return usageError{fmt.Errorf("exactly one of --region or --gene is required")}
			}

			store, err := duckdb.Open(args[0])
			if err != nil {
				return err
			}
			defer store.Close()

			var rows []cleavage.ResultRow
			if gene != "" {
				rows, err = store.SearchByGene(gene)
			} else {
				chrom, start, end, perr := parseRegion(region)
				if perr != nil {
					return usageError{perr}
				}
				rows, err = store.LookupSites(chrom, start, end)
			}
			if err != nil {
				return err
			}

			w := output.NewTabWriter(cmd.OutOrStdout())
			if err := w.WriteHeader(); err != nil {
				return err
			}
			for i := range rows {
				if err := w.Write(&rows[i]); err != nil {
					return err
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%d sites\n", len(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Region chrom:start-end (1-based, inclusive)")
	cmd.Flags().StringVar(&gene, "gene", "", "Gene name")

	return cmd
}

// parseRegion converts "chrom:start-end" (1-based, inclusive) to a 0-based
// half-open range. A bare chromosome name selects the whole chromosome.
func parseRegion(s string) (chrom string, start, end int, err error) {
	chrom, span, ok := strings.Cut(s, ":")
	if chrom == "" {
		return "", 0, 0, fmt.Errorf("invalid region %q", s)
	}
	if !ok {
		return chrom, 0, int(^uint(0) >> 1), nil
	}

	from, to, ok := strings.Cut(strings.ReplaceAll(span, ",", ""), "-")
	if !ok {
		return "", 0, 0, fmt.Errorf("invalid region %q", s)
	}
	a, err1 := strconv.Atoi(from)
	b, err2 := strconv.Atoi(to)
	if err1 != nil || err2 != nil || a < 1 || b < a {
		return "", 0, 0, fmt.Errorf("invalid region %q", s)
	}
	return chrom, a - 1, b, nil
}
