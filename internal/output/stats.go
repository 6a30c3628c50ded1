package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/inodb/vibe-polya/internal/cleavage"
)

// WriteStats writes the run summary.
func WriteStats(w io.Writer, s *cleavage.Stats) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "total cleavage sites: %d\n", s.CleavageSites)
	fmt.Fprintf(bw, "cleavage sites with tail, bridge, link support: %d\n", s.TailBridgeLink)
	fmt.Fprintf(bw, "cleavage sites with tail, bridge support: %d\n", s.TailBridge)
	fmt.Fprintf(bw, "cleavage sites with tail, link support: %d\n", s.TailLink)
	fmt.Fprintf(bw, "cleavage sites with bridge, link support: %d\n", s.BridgeLink)
	fmt.Fprintf(bw, "cleavage sites with only tail support: %d\n", s.TailOnly)
	fmt.Fprintf(bw, "cleavage sites with only bridge support: %d\n", s.BridgeOnly)
	fmt.Fprintf(bw, "cleavage sites with only link support: %d\n", s.LinkOnly)
	fmt.Fprintf(bw, "total genes: %d\n", s.Genes())
	if avg, ok := s.SitesPerGene(); ok {
		fmt.Fprintf(bw, "average cleavage sites per gene: %.1f\n", avg)
	} else {
		fmt.Fprintln(bw, "average cleavage sites per gene: error")
	}
	fmt.Fprintf(bw, "total transcripts: %d\n", s.CodingTranscripts()+s.NoncodingTranscripts())
	fmt.Fprintf(bw, "total coding transcripts: %d\n", s.CodingTranscripts())
	fmt.Fprintf(bw, "total noncoding transcripts: %d\n", s.NoncodingTranscripts())
	return bw.Flush()
}
