package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inodb/vibe-polya/internal/cache"
)

// TranscriptCache manages gob-serialized transcripts on disk so that the
// annotation does not have to be parsed on every run. Each annotation file
// gets its own directory under the assembly's data dir:
//
//	~/.vibe-polya/{assembly}/cache/{key}/transcripts.gob       (serialized transcripts)
//	~/.vibe-polya/{assembly}/cache/{key}/transcripts.gob.meta  (annotation fingerprint)
type TranscriptCache struct {
	dir string // cache directory (e.g. ~/.vibe-polya/grch38/cache/3f1c0a9e2b7d)
}

// NewTranscriptCache creates a transcript cache for the given directory.
func NewTranscriptCache(dir string) *TranscriptCache {
	return &TranscriptCache{dir: dir}
}

func (tc *TranscriptCache) gobPath() string {
	return filepath.Join(tc.dir, "transcripts.gob")
}

func (tc *TranscriptCache) metaPath() string {
	return filepath.Join(tc.dir, "transcripts.gob.meta")
}

// Valid checks whether the cached transcripts were built from gtf.
func (tc *TranscriptCache) Valid(gtf FileFingerprint) bool {
	meta, err := tc.readMeta()
	if err != nil || !gtf.matches(meta, "gtf") {
		return false
	}
	_, err = os.Stat(tc.gobPath())
	return err == nil
}

// Load reads serialized transcripts from disk into the index.
func (tc *TranscriptCache) Load(x *cache.Index) error {
	f, err := os.Open(tc.gobPath())
	if err != nil {
		return fmt.Errorf("open transcript cache: %w", err)
	}
	defer f.Close()

	var data map[string][]*cache.Transcript
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return fmt.Errorf("decode transcript cache: %w", err)
	}

	for _, transcripts := range data {
		for _, t := range transcripts {
			if err := x.AddTranscript(t); err != nil {
				return fmt.Errorf("index transcript %s: %w", t.ID, err)
			}
		}
	}
	return nil
}

// Write serializes all transcripts from the index to disk.
func (tc *TranscriptCache) Write(x *cache.Index, gtf FileFingerprint) error {
	if err := os.MkdirAll(tc.dir, 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	data := make(map[string][]*cache.Transcript)
	for _, chrom := range x.Chromosomes() {
		data[chrom] = x.TranscriptsByChrom(chrom)
	}

	f, err := os.Create(tc.gobPath())
	if err != nil {
		return fmt.Errorf("create transcript cache: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(data); err != nil {
		f.Close()
		os.Remove(tc.gobPath())
		return fmt.Errorf("encode transcript cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close transcript cache: %w", err)
	}

	return tc.writeMeta(gtf)
}

// Clear removes the cached transcript files.
func (tc *TranscriptCache) Clear() {
	os.Remove(tc.gobPath())
	os.Remove(tc.metaPath())
}

func (tc *TranscriptCache) writeMeta(gtf FileFingerprint) error {
	var lines []string
	for _, e := range gtf.metaEntries("gtf") {
		lines = append(lines, e[0]+"="+e[1])
	}
	lines = append(lines, "created_at="+time.Now().UTC().Format(time.RFC3339), "")
	return os.WriteFile(tc.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (tc *TranscriptCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(tc.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
