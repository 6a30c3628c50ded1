package cleavage

// Stats summarises reported sites by the kind of evidence behind them.
type Stats struct {
	CleavageSites  int
	TailBridgeLink int
	TailBridge     int
	TailLink       int
	BridgeLink     int
	TailOnly       int
	BridgeOnly     int
	LinkOnly       int

	genes     map[string]int
	coding    map[string]bool
	noncoding map[string]bool
}

// NewStats returns empty statistics.
func NewStats() *Stats {
	return &Stats{
		genes:     make(map[string]int),
		coding:    make(map[string]bool),
		noncoding: make(map[string]bool),
	}
}

// Add counts r if it has tail, bridge or link support.
func (s *Stats) Add(r ResultRow) {
	tail := r.TailLen.Known() && r.TailLen > 0
	bridge := r.BridgeReads.Known() && r.BridgeReads > 0
	link := r.LinkPairs.Known() && r.LinkPairs > 0
	if !tail && !bridge && !link {
		return
	}

	s.CleavageSites++
	s.genes[r.Gene]++
	if r.Coding {
		s.coding[r.Transcript] = true
	} else {
		s.noncoding[r.Transcript] = true
	}

	switch {
	case tail && bridge && link:
		s.TailBridgeLink++
	case tail && bridge:
		s.TailBridge++
	case bridge && link:
		s.BridgeLink++
	case tail && link:
		s.TailLink++
	case tail:
		s.TailOnly++
	case bridge:
		s.BridgeOnly++
	default:
		s.LinkOnly++
	}
}

// Genes returns the number of genes with at least one site.
func (s *Stats) Genes() int {
	return len(s.genes)
}

// SitesPerGene returns the mean number of sites per gene; ok is false when
// no gene has a site.
func (s *Stats) SitesPerGene() (avg float64, ok bool) {
	if len(s.genes) == 0 {
		return 0, false
	}
	return float64(s.CleavageSites) / float64(len(s.genes)), true
}

// CodingTranscripts returns the number of coding transcripts with a site.
func (s *Stats) CodingTranscripts() int {
	return len(s.coding)
}

// NoncodingTranscripts returns the number of noncoding transcripts with a
// site.
func (s *Stats) NoncodingTranscripts() int {
	return len(s.noncoding)
}
