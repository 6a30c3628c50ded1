package align

import (
	"github.com/biogo/hts/sam"
)

// ReadStore holds reads aligned to contigs, grouped by contig in file order
// and indexed by name for mate lookup.
type ReadStore struct {
	byContig map[string][]*sam.Record
	byName   map[string][]*sam.Record
}

// NewReadStore creates an empty store.
func NewReadStore() *ReadStore {
	return &ReadStore{
		byContig: make(map[string][]*sam.Record),
		byName:   make(map[string][]*sam.Record),
	}
}

// LoadReads reads every record from r into a new store. Secondary and
// supplementary records are skipped.
func LoadReads(r RecordReader) (*ReadStore, error) {
	recs, err := ReadAll(r)
	if err != nil {
		return nil, err
	}
	s := NewReadStore()
	for _, rec := range recs {
		s.Add(rec)
	}
	return s, nil
}

// Add stores a record.
func (s *ReadStore) Add(r *sam.Record) {
	if r.Flags&(sam.Secondary|sam.Supplementary) != 0 {
		return
	}
	if r.Ref != nil {
		s.byContig[r.Ref.Name()] = append(s.byContig[r.Ref.Name()], r)
	}
	s.byName[r.Name] = append(s.byName[r.Name], r)
}

// Contig returns the reads placed on the named contig.
func (s *ReadStore) Contig(name string) []*sam.Record {
	return s.byContig[name]
}

// Len returns the number of stored records.
func (s *ReadStore) Len() int {
	n := 0
	for _, recs := range s.byName {
		n += len(recs)
	}
	return n
}

// Mate returns the other read of r's pair, or nil when it is not in the store.
func (s *ReadStore) Mate(r *sam.Record) *sam.Record {
	const ends = sam.Read1 | sam.Read2
	for _, m := range s.byName[r.Name] {
		if m == r {
			continue
		}
		if r.Flags&ends != 0 && m.Flags&ends == r.Flags&ends {
			continue
		}
		return m
	}
	return nil
}

// MateElsewhere reports whether r's mate is unmapped or placed on a different
// reference than r.
func MateElsewhere(r *sam.Record) bool {
	if r.Flags&sam.MateUnmapped != 0 || r.MateRef == nil {
		return true
	}
	return r.Ref == nil || r.MateRef.Name() != r.Ref.Name()
}
