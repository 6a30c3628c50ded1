package cleavage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/biogo/store/interval"

	"github.com/inodb/vibe-polya/internal/cache"
)

// Columns is the report header.
var Columns = []string{
	"gene",
	"transcript",
	"transcript_strand",
	"coding",
	"contig",
	"chromosome",
	"cleavage_site",
	"within_UTR",
	"distance_from_annotated_site",
	"ESTs",
	"length_of_tail_in_contig",
	"number_of_tail_reads",
	"number_of_bridge_reads",
	"max_bridge_read_tail_length",
	"bridge_read_identities",
	"tail+bridge_reads",
	"number_of_link_pairs",
	"max_link_pair_length",
	"link_pair_identities",
	"hexamer_loc+id",
	"3UTR_start_end",
}

// Count is a non-negative count or length. Missing prints as "-".
type Count int

// Missing marks a value that does not apply to a row.
const Missing Count = -1

// Known reports whether c holds a value.
func (c Count) Known() bool {
	return c >= 0
}

func (c Count) String() string {
	if c < 0 {
		return "-"
	}
	return strconv.Itoa(int(c))
}

// parseCount accepts "-" as Missing.
func parseCount(s string) (Count, error) {
	if s == "-" {
		return Missing, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Missing, fmt.Errorf("invalid count %q", s)
	}
	return Count(n), nil
}

// ResultRow is one reported cleavage site. Site is 0-based; the report
// prints it 1-based.
type ResultRow struct {
	Gene             string
	Transcript       string
	TranscriptStrand int8
	Coding           bool
	Contigs          []string
	Chrom            string
	Site             int
	WithinUTR        bool
	Distance         int
	ESTs             Count
	TailLen          Count
	TailReads        Count
	BridgeReads      Count
	MaxBridgeLen     Count
	BridgeIDs        []string
	TailBridgeReads  Count
	LinkPairs        Count
	MaxLinkLen       Count
	LinkIDs          []string
	Hexamers         []Hexamer
	UTR3             *interval.IntRange // 0-based half-open
}

// Fields renders the row in Columns order.
func (r *ResultRow) Fields() []string {
	return []string{
		orDash(r.Gene),
		orDash(r.Transcript),
		cache.StrandSymbol(r.TranscriptStrand),
		yesNo(r.Coding),
		joinOrDash(r.Contigs),
		r.Chrom,
		strconv.Itoa(r.Site + 1),
		yesNo(r.WithinUTR),
		strconv.Itoa(r.Distance),
		r.ESTs.String(),
		r.TailLen.String(),
		r.TailReads.String(),
		r.BridgeReads.String(),
		r.MaxBridgeLen.String(),
		joinOrDash(r.BridgeIDs),
		r.TailBridgeReads.String(),
		r.LinkPairs.String(),
		r.MaxLinkLen.String(),
		joinOrDash(r.LinkIDs),
		FormatHexamers(r.Hexamers),
		formatUTR(r.UTR3),
	}
}

// ParseRow reads a row written by Fields.
func ParseRow(fields []string) (ResultRow, error) {
	if len(fields) != len(Columns) {
		return ResultRow{}, fmt.Errorf("expected %d columns, got %d", len(Columns), len(fields))
	}
	r := ResultRow{
		Gene:       dashEmpty(fields[0]),
		Transcript: dashEmpty(fields[1]),
		Coding:     fields[3] == "yes",
		Contigs:    splitIDs(fields[4]),
		Chrom:      fields[5],
		WithinUTR:  fields[7] == "yes",
		BridgeIDs:  splitIDs(fields[14]),
		LinkIDs:    splitIDs(fields[18]),
	}
	r.TranscriptStrand = 1
	if fields[2] == "-" {
		r.TranscriptStrand = -1
	}

	site, err := strconv.Atoi(fields[6])
	if err != nil || site < 1 {
		return ResultRow{}, fmt.Errorf("invalid cleavage site %q", fields[6])
	}
	r.Site = site - 1
	if r.Distance, err = strconv.Atoi(fields[8]); err != nil {
		return ResultRow{}, fmt.Errorf("invalid distance %q", fields[8])
	}

	counts := []struct {
		dst *Count
		col int
	}{
		{&r.ESTs, 9},
		{&r.TailLen, 10},
		{&r.TailReads, 11},
		{&r.BridgeReads, 12},
		{&r.MaxBridgeLen, 13},
		{&r.TailBridgeReads, 15},
		{&r.LinkPairs, 16},
		{&r.MaxLinkLen, 17},
	}
	for _, c := range counts {
		v, err := parseCount(fields[c.col])
		if err != nil {
			return ResultRow{}, fmt.Errorf("%s: %w", Columns[c.col], err)
		}
		*c.dst = v
	}

	if r.Hexamers, err = ParseHexamers(fields[19], r.TranscriptStrand); err != nil {
		return ResultRow{}, err
	}
	if r.UTR3, err = parseUTR(fields[20]); err != nil {
		return ResultRow{}, err
	}
	return r, nil
}

// ParseHexamers reads hits written by FormatHexamers. The hit strand is not
// part of the text, so strand is assumed.
func ParseHexamers(s string, strand int8) ([]Hexamer, error) {
	if s == "-" || s == "" {
		return nil, nil
	}
	var hs []Hexamer
	for _, part := range strings.Split(s, ";") {
		pos, rank, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid hexamer %q", part)
		}
		p, err1 := strconv.Atoi(pos)
		r, err2 := strconv.Atoi(rank)
		if err1 != nil || err2 != nil || r < 1 || r > len(Motifs) {
			return nil, fmt.Errorf("invalid hexamer %q", part)
		}
		hs = append(hs, Hexamer{Pos: p, Rank: r, Strand: strand})
	}
	return hs, nil
}

func formatUTR(u *interval.IntRange) string {
	if u == nil {
		return "-"
	}
	return strconv.Itoa(u.Start+1) + "-" + strconv.Itoa(u.End)
}

func parseUTR(s string) (*interval.IntRange, error) {
	if s == "-" {
		return nil, nil
	}
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return nil, fmt.Errorf("invalid 3'UTR %q", s)
	}
	a, err1 := strconv.Atoi(start)
	b, err2 := strconv.Atoi(end)
	if err1 != nil || err2 != nil || a < 1 {
		return nil, fmt.Errorf("invalid 3'UTR %q", s)
	}
	return &interval.IntRange{Start: a - 1, End: b}, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dashEmpty(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

func joinOrDash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ",")
}

func splitIDs(s string) []string {
	if s == "-" || s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
