package cleavage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/biogo/hts/sam"
	"go.uber.org/zap"

	"github.com/inodb/vibe-polya/internal/align"
	"github.com/inodb/vibe-polya/internal/cache"
	"github.com/inodb/vibe-polya/internal/genome"
	"github.com/inodb/vibe-polya/internal/polya"
)

// Options controls which contigs are processed and how sites are reported.
type Options struct {
	// StrandSpecific takes the transcript strand from the alignment strand.
	StrandSpecific bool
	// Links searches for link pairs for every annotated candidate.
	Links bool
	// MaxDist rejects candidates further from every transcript end. Zero
	// disables the limit.
	MaxDist int
	// Contigs restricts processing to the named contigs when non-empty.
	Contigs []string
	// Workers is the detection pool size; 0 means runtime.NumCPU().
	Workers int
}

// Caller turns contig alignments into cleavage site rows.
type Caller struct {
	opts      Options
	index     *cache.Index
	genome    genome.Source
	contigs   *genome.Sequences
	aliases   genome.ChromAliases
	detector  *polya.Detector
	annotator *Annotator
	logger    *zap.Logger
}

// NewCaller creates a caller. contigs may be nil, in which case contig
// sequences are taken from the alignment records.
func NewCaller(opts Options, index *cache.Index, g genome.Source, contigs *genome.Sequences, d *polya.Detector) *Caller {
	ann := NewAnnotator(index)
	ann.SetMaxDist(opts.MaxDist)
	return &Caller{
		opts:      opts,
		index:     index,
		genome:    g,
		contigs:   contigs,
		detector:  d,
		annotator: ann,
		logger:    zap.NewNop(),
	}
}

// SetAliases renames alignment target names before annotation lookups.
func (c *Caller) SetAliases(a genome.ChromAliases) {
	c.aliases = a
}

// SetLogger sets the logger for the caller and its annotator.
func (c *Caller) SetLogger(l *zap.Logger) {
	c.logger = l
	c.annotator.SetLogger(l)
}

// implied is a transcript end reported because a contig ends next to it.
type implied struct {
	ac  *AlignmentContext
	row ResultRow
}

// Run processes every record from src and returns one row per annotated
// candidate plus the implied transcript ends that no recorded site
// duplicates. Rows are in input order and unmerged. Per-contig problems skip
// the contig; only read errors and cancellation are returned.
func (c *Caller) Run(ctx context.Context, src align.RecordReader) ([]ResultRow, error) {
	keep := make(map[string]bool, len(c.opts.Contigs))
	for _, name := range c.opts.Contigs {
		keep[name] = true
	}

	items := make(chan WorkItem)
	readErr := make(chan error, 1)
	go func() {
		defer close(items)
		seq := 0
		for {
			rec, err := src.Read()
			if err == io.EOF {
				readErr <- nil
				return
			}
			if err != nil {
				readErr <- fmt.Errorf("read contig alignment: %w", err)
				return
			}
			if len(keep) > 0 && !keep[rec.Name] {
				continue
			}
			select {
			case items <- WorkItem{Seq: seq, Record: rec}:
				seq++
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
	}()

	var rows []ResultRow
	var staged []implied
	processed := 0
	err := OrderedCollect(c.ParallelDetect(ctx, items, c.opts.Workers), func(r WorkResult) error {
		processed++
		if r.Err != nil {
			c.logger.Debug("skipping contig",
				zap.String("contig", r.Record.Name), zap.Error(r.Err))
			return nil
		}
		evidence := c.annotate(r.Context, r.Candidates)
		rows = append(rows, evidence...)
		if r.Context.ReportImplied {
			staged = append(staged, implied{ac: r.Context, row: c.impliedRow(r.Context)})
		}
		return nil
	})
	if rerr := <-readErr; rerr != nil {
		return nil, rerr
	}
	if err != nil {
		return nil, err
	}

	kept := 0
	for _, im := range staged {
		if c.isolated(im.ac.Chrom, im.row.Transcript, im.row.Site) {
			rows = append(rows, im.row)
			kept++
		}
	}
	c.logger.Info("contigs processed",
		zap.Int("alignments", processed),
		zap.Int("rows", len(rows)),
		zap.Int("implied", kept))
	return rows, nil
}

// detect is the concurrent stage: it only reads shared state.
func (c *Caller) detect(ctx context.Context, rec *sam.Record) (*AlignmentContext, []*polya.Candidate, error) {
	ac, err := Prepare(c.index, c.contigs, c.aliases, rec, c.opts.StrandSpecific)
	if err != nil {
		return nil, nil, err
	}
	cands := c.detector.Detect(ctx, ac.Contig)
	if c.opts.Links {
		for _, cand := range cands {
			strand := RequiredStrand(cand.Side, ac.Contig.Strand())
			if Consistent(strand, cand.Base) {
				cand.Links = c.detector.FindLinkPairs(ac.Contig, cand, strand)
			}
		}
	}
	return ac, cands, nil
}

// errBothEnds marks contigs with tails on both ends.
var errBothEnds = errors.New("cleavage evidence on both contig ends")

// annotate attributes candidates to transcripts, records their sites and
// builds their rows. A contig with accepted candidates on both ends is
// dropped without recording anything.
func (c *Caller) annotate(ac *AlignmentContext, cands []*polya.Candidate) []ResultRow {
	var anns []*Annotation
	sides := make(map[polya.Side]bool)
	for _, cand := range cands {
		if ann := c.annotator.Choose(ac, cand); ann != nil {
			anns = append(anns, ann)
			sides[cand.Side] = true
		}
	}
	if sides[polya.SideStart] && sides[polya.SideEnd] {
		c.logger.Debug("skipping contig",
			zap.String("contig", ac.Contig.Name), zap.Error(errBothEnds))
		ac.ReportImplied = false
		return nil
	}

	rows := make([]ResultRow, 0, len(anns))
	for _, ann := range anns {
		c.annotator.Record(ac, ann)
		rows = append(rows, c.evidenceRow(ac, ann))
	}
	return rows
}

// isolated reports whether every site recorded on the transcript is at least
// ImpliedWindow bases from site.
func (c *Caller) isolated(chrom, transcript string, site int) bool {
	for _, s := range c.index.Sites(chrom, transcript) {
		if abs(s-site) < ImpliedWindow {
			return false
		}
	}
	return true
}

func (c *Caller) evidenceRow(ac *AlignmentContext, ann *Annotation) ResultRow {
	cand := ann.Candidate
	r := c.baseRow(ac, ann.Transcript, cand.Pos, ann.Distance, ann.WithinUTR)
	r.ESTs = 0
	r.TailLen, r.TailReads = 0, 0
	if cand.HasTail() {
		r.TailLen, r.TailReads = Count(len(cand.Tail)), Count(cand.TailReads)
	}

	r.BridgeReads = Count(len(cand.Bridges))
	r.MaxBridgeLen = Count(cand.MaxBridgeLen())
	for _, b := range cand.Bridges {
		r.BridgeIDs = append(r.BridgeIDs, b.Read.Name)
	}
	r.TailBridgeReads = r.TailReads + r.BridgeReads

	r.LinkPairs = Count(len(cand.Links))
	r.MaxLinkLen = Count(cand.MaxLinkLen())
	for _, l := range cand.Links {
		r.LinkIDs = append(r.LinkIDs, l.Anchor.Name)
	}
	r.Hexamers = FindHexamers(c.genome, ac.Chrom, cand.Pos, ann.Transcript.Strand, c.opts.StrandSpecific)
	return r
}

func (c *Caller) impliedRow(ac *AlignmentContext) ResultRow {
	t := ac.Closest.Transcript
	site := ac.ImpliedSite()
	r := c.baseRow(ac, t, site, ac.Closest.Distance, t.HasUTR3())
	r.ESTs = Missing
	r.TailLen, r.TailReads = Missing, Missing
	r.BridgeReads, r.MaxBridgeLen, r.TailBridgeReads = 0, 0, 0
	r.LinkPairs, r.MaxLinkLen = 0, 0
	r.Hexamers = FindHexamers(c.genome, ac.Chrom, site, ac.Strand, c.opts.StrandSpecific)
	return r
}

func (c *Caller) baseRow(ac *AlignmentContext, t *cache.Transcript, site, dist int, withinUTR bool) ResultRow {
	gene := t.GeneName
	if gene == "" {
		gene = t.GeneID
	}
	return ResultRow{
		Gene:             gene,
		Transcript:       t.ID,
		TranscriptStrand: t.Strand,
		Coding:           t.IsCoding(),
		Contigs:          []string{ac.Contig.Name},
		Chrom:            ac.Chrom,
		Site:             site,
		WithinUTR:        withinUTR,
		Distance:         dist,
		UTR3:             t.UTR3,
	}
}
