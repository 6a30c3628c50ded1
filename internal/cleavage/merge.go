package cleavage

import (
	"cmp"
	"sort"
	"strconv"
	"strings"
)

type siteKey struct {
	chrom string
	site  int
}

// Merge combines rows reporting the same chromosome and site. Identities
// are joined, read counts summed and lengths maximised; every other field
// comes from the first row. Groups without tail, bridge or link support and
// groups whose bridge tails are all shorter than minBridgeSize are dropped.
// The result is ordered by chromosome, then site.
func Merge(rows []ResultRow, minBridgeSize int) []ResultRow {
	groups := make(map[siteKey][]ResultRow)
	var keys []siteKey
	for _, r := range rows {
		k := siteKey{chrom: r.Chrom, site: r.Site}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r)
	}
	sort.Slice(keys, func(i, j int) bool {
		if c := CompareChrom(keys[i].chrom, keys[j].chrom); c != 0 {
			return c < 0
		}
		return keys[i].site < keys[j].site
	})

	var out []ResultRow
	for _, k := range keys {
		m := mergeGroup(groups[k])
		if m.TailLen.Known() && m.BridgeReads.Known() && m.LinkPairs.Known() &&
			m.TailLen == 0 && m.BridgeReads == 0 && m.LinkPairs == 0 {
			continue
		}
		if m.BridgeReads.Known() && m.BridgeReads > 0 && m.MaxBridgeLen < Count(minBridgeSize) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func mergeGroup(rows []ResultRow) ResultRow {
	m := rows[0]
	if len(rows) == 1 {
		return m
	}
	m.Contigs, m.BridgeIDs, m.LinkIDs = nil, nil, nil
	m.TailReads, m.BridgeReads, m.TailBridgeReads, m.LinkPairs = Missing, Missing, Missing, Missing
	m.TailLen, m.MaxBridgeLen, m.MaxLinkLen = Missing, Missing, Missing
	for _, r := range rows {
		m.Contigs = append(m.Contigs, r.Contigs...)
		m.BridgeIDs = append(m.BridgeIDs, r.BridgeIDs...)
		m.LinkIDs = append(m.LinkIDs, r.LinkIDs...)

		m.TailReads = sum(m.TailReads, r.TailReads)
		m.BridgeReads = sum(m.BridgeReads, r.BridgeReads)
		m.TailBridgeReads = sum(m.TailBridgeReads, r.TailBridgeReads)
		m.LinkPairs = sum(m.LinkPairs, r.LinkPairs)

		m.TailLen = maxCount(m.TailLen, r.TailLen)
		m.MaxBridgeLen = maxCount(m.MaxBridgeLen, r.MaxBridgeLen)
		m.MaxLinkLen = maxCount(m.MaxLinkLen, r.MaxLinkLen)
	}
	return m
}

func sum(a, b Count) Count {
	switch {
	case !a.Known():
		return b
	case !b.Known():
		return a
	}
	return a + b
}

func maxCount(a, b Count) Count {
	if a > b {
		return a
	}
	return b
}

// CompareChrom orders chromosome names ignoring a "chr" prefix. Numeric
// names come first in numeric order, the rest follow lexically.
func CompareChrom(a, b string) int {
	a, b = trimChr(a), trimChr(b)
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Compare(na, nb)
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func trimChr(s string) string {
	if len(s) > 3 && strings.EqualFold(s[:3], "chr") {
		return s[3:]
	}
	return s
}
