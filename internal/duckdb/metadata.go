package duckdb

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file. Path is made
// absolute.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// metaEntries returns the key/value pairs recorded for fp under prefix.
func (fp FileFingerprint) metaEntries(prefix string) [][2]string {
	return [][2]string{
		{prefix + "_path", fp.Path},
		{prefix + "_size", strconv.FormatInt(fp.Size, 10)},
		{prefix + "_modtime", fp.ModTime.UTC().Format(time.RFC3339Nano)},
	}
}

// matches reports whether meta records fp under prefix.
func (fp FileFingerprint) matches(meta map[string]string, prefix string) bool {
	for _, e := range fp.metaEntries(prefix) {
		if meta[e[0]] != e[1] {
			return false
		}
	}
	return true
}
