package cache

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// GTFLoader loads transcript features from GENCODE/Ensembl GTF files.
type GTFLoader struct {
	path string
}

// NewGTFLoader creates a new GTF loader.
func NewGTFLoader(path string) *GTFLoader {
	return &GTFLoader{path: path}
}

// Load parses the GTF file and adds every transcript to the index.
func (l *GTFLoader) Load(x *Index) error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f

	// Handle gzipped files
	if strings.HasSuffix(l.path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return LoadGTF(reader, x)
}

// LoadGTF parses GTF content from r into x.
func LoadGTF(r io.Reader, x *Index) error {
	transcripts, err := parseGTF(r)
	if err != nil {
		return err
	}
	for _, t := range transcripts {
		if err := x.AddTranscript(t); err != nil {
			return fmt.Errorf("index transcript %s: %w", t.ID, err)
		}
	}
	return nil
}

// keptFeatures are the feature types used for cleavage site annotation.
var keptFeatures = map[string]bool{
	FeatureExon:       true,
	FeatureCDS:        true,
	FeatureStartCodon: true,
	FeatureStopCodon:  true,
}

// parseGTF groups features by transcript and builds transcripts in
// first-seen order.
func parseGTF(reader io.Reader) ([]*Transcript, error) {
	scanner := bufio.NewScanner(reader)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	byTranscript := make(map[string][]Feature)
	var order []string

	for scanner.Scan() {
		line := scanner.Text()

		// Skip comments and empty lines
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}
		if !keptFeatures[feat.Type] || feat.TranscriptID == "" {
			continue
		}

		// Transcript IDs are only unique per chromosome (PAR genes).
		key := feat.Chrom + "\x00" + feat.TranscriptID
		if _, ok := byTranscript[key]; !ok {
			order = append(order, key)
		}
		byTranscript[key] = append(byTranscript[key], feat)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	transcripts := make([]*Transcript, 0, len(order))
	for _, key := range order {
		transcripts = append(transcripts, NewTranscript(byTranscript[key]))
	}
	sort.SliceStable(transcripts, func(i, j int) bool {
		return transcripts[i].Chrom < transcripts[j].Chrom
	})
	return transcripts, nil
}

// parseLine parses a single GTF line, converting 1-based inclusive
// coordinates to 0-based half-open.
func parseLine(line string) (Feature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return Feature{}, fmt.Errorf("invalid GTF line: expected 9 fields, got %d", len(fields))
	}

	start, err := strconv.Atoi(fields[3])
	if err != nil {
		return Feature{}, fmt.Errorf("parse start: %w", err)
	}

	end, err := strconv.Atoi(fields[4])
	if err != nil {
		return Feature{}, fmt.Errorf("parse end: %w", err)
	}

	if start < 1 || end < start {
		return Feature{}, fmt.Errorf("invalid GTF interval %d-%d", start, end)
	}

	attrs := parseAttributes(fields[8])
	return Feature{
		Chrom:        fields[0],
		Type:         fields[2],
		Start:        start - 1,
		End:          end,
		Strand:       parseStrand(fields[6]),
		TranscriptID: stripVersion(attrs["transcript_id"]),
		GeneID:       stripVersion(attrs["gene_id"]),
		GeneName:     attrs["gene_name"],
	}, nil
}

// parseAttributes parses GTF attribute column.
// Format: key "value"; key "value"; ...
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)

	// Split by semicolon
	parts := strings.Split(attrStr, ";")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		// Find the first space to separate key from value
		idx := strings.Index(part, " ")
		if idx == -1 {
			continue
		}

		key := part[:idx]
		value := strings.TrimSpace(part[idx+1:])

		// Remove quotes
		value = strings.Trim(value, "\"")

		attrs[key] = value
	}

	return attrs
}

// parseStrand converts strand string to int8.
func parseStrand(s string) int8 {
	if s == "-" {
		return -1
	}
	return 1
}

// stripVersion removes the version suffix from an Ensembl ID.
// e.g., "ENST00000456328.2" -> "ENST00000456328"
func stripVersion(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}
