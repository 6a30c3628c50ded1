package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/biogo/store/interval"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-polya/internal/cleavage"
)

const siteColumns = `chrom, site, gene, transcript_id, transcript_strand, coding,
	contigs, within_utr, distance, ests,
	tail_length, tail_reads, bridge_reads, max_bridge_length, bridge_ids,
	tail_bridge_reads, link_pairs, max_link_length, link_ids,
	hexamers, utr3_start, utr3_end`

type siteKey struct {
	chrom string
	site  int
}

// WriteSites batch-inserts merged cleavage sites using the Appender API.
// Rows repeating a (chrom, site) pair already written in this batch are
// skipped.
func (s *Store) WriteSites(rows []cleavage.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "cleavage_sites")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	seen := make(map[siteKey]bool, len(rows))
	for _, r := range rows {
		k := siteKey{r.Chrom, r.Site}
		if seen[k] {
			continue
		}
		seen[k] = true

		var utrStart, utrEnd driver.Value
		if r.UTR3 != nil {
			utrStart, utrEnd = int64(r.UTR3.Start), int64(r.UTR3.End)
		}
		if err := appender.AppendRow(
			r.Chrom, int64(r.Site), r.Gene, r.Transcript, r.TranscriptStrand, r.Coding,
			strings.Join(r.Contigs, ","), r.WithinUTR, int64(r.Distance), nullCount(r.ESTs),
			nullCount(r.TailLen), nullCount(r.TailReads), nullCount(r.BridgeReads),
			nullCount(r.MaxBridgeLen), strings.Join(r.BridgeIDs, ","),
			nullCount(r.TailBridgeReads), nullCount(r.LinkPairs), nullCount(r.MaxLinkLen),
			strings.Join(r.LinkIDs, ","),
			cleavage.FormatHexamers(r.Hexamers), utrStart, utrEnd,
		); err != nil {
			return fmt.Errorf("append cleavage site: %w", err)
		}
	}

	return appender.Flush()
}

// ClearSites removes all stored cleavage sites.
func (s *Store) ClearSites() error {
	_, err := s.db.Exec("DELETE FROM cleavage_sites")
	return err
}

// LookupSites returns the sites on chrom within the 0-based half-open range
// [start, end), ordered by position.
func (s *Store) LookupSites(chrom string, start, end int) ([]cleavage.ResultRow, error) {
	rows, err := s.db.Query(`SELECT `+siteColumns+`
		FROM cleavage_sites
		WHERE chrom=? AND site>=? AND site<?
		ORDER BY site`, chrom, start, end)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	return scanSites(rows)
}

// SearchByGene returns every site attributed to a gene, ordered by
// chromosome and position.
func (s *Store) SearchByGene(gene string) ([]cleavage.ResultRow, error) {
	rows, err := s.db.Query(`SELECT `+siteColumns+`
		FROM cleavage_sites
		WHERE gene=?
		ORDER BY chrom, site`, gene)
	if err != nil {
		return nil, fmt.Errorf("query by gene: %w", err)
	}
	defer rows.Close()

	return scanSites(rows)
}

func nullCount(c cleavage.Count) driver.Value {
	if !c.Known() {
		return nil
	}
	return int64(c)
}

func countOf(n sql.NullInt64) cleavage.Count {
	if !n.Valid {
		return cleavage.Missing
	}
	return cleavage.Count(n.Int64)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// scanSites scans rows into cleavage sites.
func scanSites(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]cleavage.ResultRow, error) {
	var results []cleavage.ResultRow
	for rows.Next() {
		var (
			r                           cleavage.ResultRow
			site, distance              int64
			contigs, bridgeIDs, linkIDs string
			hexamers                    string
			ests, tailLen, tailReads    sql.NullInt64
			bridgeReads, maxBridgeLen   sql.NullInt64
			tailBridge, links, maxLink  sql.NullInt64
			utrStart, utrEnd            sql.NullInt64
		)
		if err := rows.Scan(
			&r.Chrom, &site, &r.Gene, &r.Transcript, &r.TranscriptStrand, &r.Coding,
			&contigs, &r.WithinUTR, &distance, &ests,
			&tailLen, &tailReads, &bridgeReads, &maxBridgeLen, &bridgeIDs,
			&tailBridge, &links, &maxLink, &linkIDs,
			&hexamers, &utrStart, &utrEnd,
		); err != nil {
			return nil, fmt.Errorf("scan cleavage site: %w", err)
		}

		r.Site, r.Distance = int(site), int(distance)
		r.Contigs, r.BridgeIDs, r.LinkIDs = splitList(contigs), splitList(bridgeIDs), splitList(linkIDs)
		r.ESTs = countOf(ests)
		r.TailLen, r.TailReads = countOf(tailLen), countOf(tailReads)
		r.BridgeReads, r.MaxBridgeLen = countOf(bridgeReads), countOf(maxBridgeLen)
		r.TailBridgeReads = countOf(tailBridge)
		r.LinkPairs, r.MaxLinkLen = countOf(links), countOf(maxLink)
		if utrStart.Valid && utrEnd.Valid {
			r.UTR3 = &interval.IntRange{Start: int(utrStart.Int64), End: int(utrEnd.Int64)}
		}
		hs, err := cleavage.ParseHexamers(hexamers, r.TranscriptStrand)
		if err != nil {
			return nil, fmt.Errorf("scan cleavage site: %w", err)
		}
		r.Hexamers = hs

		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cleavage sites: %w", err)
	}
	return results, nil
}
